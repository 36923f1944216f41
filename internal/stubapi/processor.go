package stubapi

import (
	"context"
	"errors"

	"github.com/tresse/storefront/internal/checkout"
	"github.com/tresse/storefront/internal/models"
)

// Processor is a stub payment processor bound to the same State as the
// stub backend: confirming a client secret flips the matching intent to
// succeeded, so a subsequent order creation passes the backend's check.
type Processor struct {
	State *State

	// Decline, when set, makes every confirmation fail with this
	// processor message instead of succeeding.
	Decline string
}

// ConfirmPayment implements checkout.PaymentProcessor.
func (p *Processor) ConfirmPayment(ctx context.Context, clientSecret string, billing models.BillingDetails) (checkout.ConfirmResult, error) {
	if err := ctx.Err(); err != nil {
		return checkout.ConfirmResult{}, err
	}
	if p.Decline != "" {
		return checkout.ConfirmResult{}, &checkout.DeclineError{Message: p.Decline}
	}
	id, ok := p.State.MarkIntentSucceeded(clientSecret)
	if !ok {
		return checkout.ConfirmResult{}, errors.New("unknown client secret")
	}
	return checkout.ConfirmResult{Status: "succeeded", PaymentIntentID: id}, nil
}
