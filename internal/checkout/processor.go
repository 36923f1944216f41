package checkout

import (
	"context"

	"github.com/tresse/storefront/internal/models"
)

// ConfirmResult is the processor's answer to a confirmation call.
type ConfirmResult struct {
	// Status is the processor-reported intent status, "succeeded" on a
	// completed charge.
	Status string
	// PaymentIntentID is the processor-assigned intent id. It is the
	// recovery anchor for order persistence.
	PaymentIntentID string
}

// DeclineError is a processor-level decline or validation error. Its
// message is surfaced to the user verbatim.
type DeclineError struct {
	Message string
}

func (e *DeclineError) Error() string {
	return e.Message
}

// PaymentProcessor confirms a payment intent given its client secret and
// billing details. Implementations wrap the third-party processor SDK; the
// orchestrator treats it as opaque.
type PaymentProcessor interface {
	ConfirmPayment(ctx context.Context, clientSecret string, billing models.BillingDetails) (ConfirmResult, error)
}
