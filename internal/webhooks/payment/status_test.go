package paymentwebhook

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/velvetfeed/velvetfeed-backend/pkg/enums"
)

func TestNormalizeStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want enums.SubscriptionStatus
	}{
		{"payment.completed", enums.SubscriptionStatusActive},
		{"SUCCESS", enums.SubscriptionStatusActive},
		{"order_paid", enums.SubscriptionStatusActive},
		{"subscription.cancelled", enums.SubscriptionStatusCanceled},
		{"cancel_requested", enums.SubscriptionStatusCanceled},
		{"invoice.unpaid", enums.SubscriptionStatusExpired},
		{"subscription_expired", enums.SubscriptionStatusExpired},
		{"refund_issued", enums.SubscriptionStatusRefunded},
		{"chargeback.created", enums.SubscriptionStatusChargeback},
		{"checkout.started", enums.SubscriptionStatusPending},
		{"", enums.SubscriptionStatusPending},
		{"something-new-the-vendor-invented", enums.SubscriptionStatusPending},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeStatus(tc.raw), "raw %q", tc.raw)
	}
}

// Raw vendor strings can satisfy more than one rule; the revoking rule has
// to win every such collision.
func TestNormalizeStatus_CompetingSubstrings(t *testing.T) {
	cases := []struct {
		raw  string
		want enums.SubscriptionStatus
	}{
		// "unpaid" contains "paid" and must never grant.
		{"unpaid", enums.SubscriptionStatusExpired},
		// "refund" outranks "cancel" when both appear.
		{"refund_for_cancelled_order", enums.SubscriptionStatusRefunded},
		{"cancelled_then_refunded", enums.SubscriptionStatusRefunded},
		// A refund on a previously successful payment revokes.
		{"successful_payment_refunded", enums.SubscriptionStatusRefunded},
		// A chargeback mentioning the paid order revokes.
		{"chargeback_on_paid_order", enums.SubscriptionStatusChargeback},
		// An expired-but-once-completed subscription stays expired.
		{"completed_subscription_expired", enums.SubscriptionStatusExpired},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeStatus(tc.raw), "raw %q", tc.raw)
	}
}
