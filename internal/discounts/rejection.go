package discounts

import (
	"errors"

	pkgerrors "github.com/freshmarket/storefront-backend/pkg/errors"
)

// Reason is a machine-readable discount refusal.
type Reason string

const (
	ReasonNotFound              Reason = "not_found"
	ReasonNotStarted            Reason = "not_started"
	ReasonExpired               Reason = "expired"
	ReasonUsageLimitReached     Reason = "usage_limit_reached"
	ReasonMinPurchaseNotMet     Reason = "min_purchase_not_met"
	ReasonUserUsageLimitReached Reason = "user_usage_limit_reached"
)

// Rejection is returned when a code exists in the request but cannot be applied.
type Rejection struct {
	Reason  Reason
	Message string
}

func (r *Rejection) Error() string {
	return r.Message
}

func reject(reason Reason, message string) *Rejection {
	return &Rejection{Reason: reason, Message: message}
}

// AsRejection extracts a Rejection from err.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// ToError converts a rejection into the API error used when an order must abort.
func (r *Rejection) ToError() error {
	return pkgerrors.New(pkgerrors.CodeBusinessRule, r.Message).
		WithDetails(map[string]any{"reason": string(r.Reason)})
}
