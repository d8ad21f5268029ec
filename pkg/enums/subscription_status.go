package enums

import "fmt"

// SubscriptionStatus is the canonical vocabulary every vendor-specific event
// string normalizes into. Only SubscriptionStatusActive grants access.
type SubscriptionStatus string

const (
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusPending    SubscriptionStatus = "pending"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
	SubscriptionStatusExpired    SubscriptionStatus = "expired"
	SubscriptionStatusRefunded   SubscriptionStatus = "refunded"
	SubscriptionStatusChargeback SubscriptionStatus = "chargeback"
)

var validSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusActive,
	SubscriptionStatusPending,
	SubscriptionStatusCanceled,
	SubscriptionStatusExpired,
	SubscriptionStatusRefunded,
	SubscriptionStatusChargeback,
}

// String implements fmt.Stringer.
func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s SubscriptionStatus) IsValid() bool {
	for _, candidate := range validSubscriptionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Grants reports whether the status entitles the holder to gated content.
func (s SubscriptionStatus) Grants() bool {
	return s == SubscriptionStatusActive
}

// ParseSubscriptionStatus converts raw input into a SubscriptionStatus.
func ParseSubscriptionStatus(value string) (SubscriptionStatus, error) {
	for _, candidate := range validSubscriptionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription status %q", value)
}
