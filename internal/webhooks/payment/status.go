package paymentwebhook

import (
	"strings"

	"github.com/velvetfeed/velvetfeed-backend/pkg/enums"
)

// statusRule maps vendor substrings to a canonical status. Rules run in
// declaration order and the first hit wins: raw vendor strings can contain
// several matching substrings ("refund_for_cancelled_order",
// "unpaid_invoice") so the order is load-bearing. Revoking statuses are
// checked before granting ones — "refund" beats "cancel", and "unpaid" must
// never fall through to the "paid" rule.
type statusRule struct {
	substrings []string
	status     enums.SubscriptionStatus
}

var statusRules = []statusRule{
	{substrings: []string{"refund"}, status: enums.SubscriptionStatusRefunded},
	{substrings: []string{"chargeback"}, status: enums.SubscriptionStatusChargeback},
	{substrings: []string{"unpaid", "expired"}, status: enums.SubscriptionStatusExpired},
	{substrings: []string{"cancel"}, status: enums.SubscriptionStatusCanceled},
	{substrings: []string{"success", "completed", "paid"}, status: enums.SubscriptionStatusActive},
}

// NormalizeStatus folds a free-text vendor status/event string into the
// canonical vocabulary. Unrecognized input is never an error; it lands on
// pending, the "not yet entitled" default.
func NormalizeStatus(raw string) enums.SubscriptionStatus {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	for _, rule := range statusRules {
		for _, needle := range rule.substrings {
			if strings.Contains(lowered, needle) {
				return rule.status
			}
		}
	}
	return enums.SubscriptionStatusPending
}
