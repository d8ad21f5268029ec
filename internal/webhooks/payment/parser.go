package paymentwebhook

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Event is the typed, normalized outcome of parsing one provider delivery.
// Vendor-format quirks stop here; business logic never sees raw payloads
// except as the opaque Raw audit blob.
type Event struct {
	Secret    string
	Email     string
	OrderID   string
	RawStatus string
	Raw       json.RawMessage
	// fieldCount counts payload fields other than the secret itself; a
	// zero count marks a connectivity probe.
	fieldCount int
}

// IsProbe reports whether the delivery carried nothing beyond the secret —
// the provider's connectivity check, acknowledged without touching storage.
func (e Event) IsProbe() bool {
	return e.fieldCount == 0
}

// Field aliases, in priority order. Providers disagree on names; the first
// non-empty alias wins per logical field.
var (
	secretAliases = []string{"secret", "webhook_secret", "token"}
	emailAliases  = []string{"email", "customer_email", "payer_email", "buyer_email", "user_email"}
	orderAliases  = []string{"order_id", "orderId", "transaction_id", "txn_id", "payment_id", "invoice_id", "subscription_id"}
	statusAliases = []string{"status", "event", "event_type", "type", "payment_status", "state"}
)

// ParseBody accepts either a JSON object or an URL-encoded form body and
// extracts the logical fields through the alias tables.
func ParseBody(contentType string, body []byte) (Event, error) {
	if strings.Contains(contentType, "application/x-www-form-urlencoded") {
		return parseForm(body)
	}
	return parseJSON(body)
}

func parseJSON(body []byte) (Event, error) {
	fields := map[string]any{}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &fields); err != nil {
			return Event{}, fmt.Errorf("decoding webhook json: %w", err)
		}
	}

	flat := make(map[string]string, len(fields))
	for key, value := range fields {
		flat[key] = stringify(value)
	}
	return fromFields(flat, body), nil
}

func parseForm(body []byte) (Event, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return Event{}, fmt.Errorf("decoding webhook form: %w", err)
	}

	flat := make(map[string]string, len(values))
	for key := range values {
		flat[key] = values.Get(key)
	}

	raw, marshalErr := json.Marshal(flat)
	if marshalErr != nil {
		raw = body
	}
	return fromFields(flat, raw), nil
}

func fromFields(fields map[string]string, raw []byte) Event {
	event := Event{Raw: json.RawMessage(raw)}
	event.Secret = firstAlias(fields, secretAliases)
	event.Email = firstAlias(fields, emailAliases)
	event.OrderID = firstAlias(fields, orderAliases)
	event.RawStatus = firstAlias(fields, statusAliases)

	for key := range fields {
		if isSecretField(key) {
			continue
		}
		event.fieldCount++
	}
	return event
}

func firstAlias(fields map[string]string, aliases []string) string {
	for _, alias := range aliases {
		if value, ok := fields[alias]; ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func isSecretField(key string) bool {
	for _, alias := range secretAliases {
		if key == alias {
			return true
		}
	}
	return false
}

func stringify(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case nil:
		return ""
	case float64:
		// JSON numbers arrive as float64; order ids are frequently numeric.
		return strconv.FormatFloat(typed, 'f', -1, 64)
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}
