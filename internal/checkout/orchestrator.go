package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tresse/storefront/internal/api"
	"github.com/tresse/storefront/internal/cart"
	"github.com/tresse/storefront/internal/models"
)

var (
	// ErrIllegalPhase rejects an operation not allowed in the attempt's
	// current phase.
	ErrIllegalPhase = errors.New("illegal checkout phase for operation")

	// ErrInFlight drops a confirm or finalize call while another one is
	// outstanding for the same attempt (double-submit guard).
	ErrInFlight = errors.New("checkout call already in flight")

	// ErrOrderNotPersisted means the charge succeeded but the order could
	// not be saved. The charge is never retried; only Finalize may run.
	ErrOrderNotPersisted = errors.New("payment succeeded but order not persisted")
)

// Orchestrator drives one checkout attempt through its phases and persists
// the attempt so a crash after a successful charge remains finalizable.
type Orchestrator struct {
	api       *api.Client
	processor PaymentProcessor
	local     *cart.LocalCart
	store     *stateStore
	log       *zap.Logger

	mu       sync.Mutex
	attempt  Attempt
	inFlight bool
}

// NewOrchestrator loads any persisted non-terminal attempt from dir, or
// starts a fresh one.
func NewOrchestrator(apiClient *api.Client, processor PaymentProcessor, local *cart.LocalCart, dir string, log *zap.Logger) *Orchestrator {
	o := &Orchestrator{
		api:       apiClient,
		processor: processor,
		local:     local,
		store:     newStateStore(dir, log),
		log:       log,
	}
	if a := o.store.loadAttempt(); a != nil && !a.Phase.IsTerminal() {
		if a.Phase == PhaseConfirming {
			// A confirmation was cut off mid-flight; without a recorded
			// intent id the charge state is unknown, so fail closed.
			a.Phase = PhaseFailed
		}
		o.attempt = *a
	} else {
		o.attempt = newAttempt()
	}
	o.store.saveAttempt(&o.attempt)
	return o
}

func newAttempt() Attempt {
	return Attempt{AttemptID: uuid.NewString(), Phase: PhasePreparing}
}

// Attempt returns a snapshot of the current attempt.
func (o *Orchestrator) Attempt() Attempt {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attempt
}

// LastOrderID returns the public id of the last completed order, if any.
func (o *Orchestrator) LastOrderID() string {
	return o.store.lastOrderID()
}

// PrepareIntent requests a payment intent from the backend, passing the
// stable attempt id so repeated calls never create duplicate charges.
// Failure keeps the attempt in PhasePreparing and is retryable; a re-entry
// while already PhaseReady refreshes the client secret under the same
// attempt id.
func (o *Orchestrator) PrepareIntent(ctx context.Context) error {
	o.mu.Lock()
	if o.attempt.Phase != PhasePreparing && o.attempt.Phase != PhaseReady {
		o.mu.Unlock()
		return ErrIllegalPhase
	}
	attemptID := o.attempt.AttemptID
	o.mu.Unlock()

	data, err := o.api.Do(ctx, http.MethodPost, "/orders/create-intent/", map[string]string{
		"attempt_id": attemptID,
	})
	if err != nil {
		return fmt.Errorf("preparing payment: %w", err)
	}

	var body struct {
		ClientSecret    string `json:"client_secret"`
		PaymentIntentID string `json:"payment_intent_id"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.ClientSecret == "" {
		return fmt.Errorf("%w: intent response", models.ErrInvalidPayload)
	}

	o.mu.Lock()
	o.attempt.ClientSecret = body.ClientSecret
	o.attempt.PaymentIntentID = body.PaymentIntentID
	if o.attempt.Phase == PhasePreparing {
		o.attempt.Phase = PhaseReady
	}
	o.store.saveAttempt(&o.attempt)
	o.mu.Unlock()

	o.log.Info("payment intent ready", zap.String("attempt_id", attemptID))
	return nil
}

// Confirm confirms the payment with the processor and, on success, persists
// the order. A processor decline fails the attempt with the processor's
// message surfaced verbatim. A success that cannot be persisted leaves the
// attempt in PhaseSucceededUnpersisted and returns ErrOrderNotPersisted;
// the charge is never retried. A second Confirm while one is outstanding is
// dropped with ErrInFlight.
func (o *Orchestrator) Confirm(ctx context.Context, billing models.BillingDetails) error {
	if err := billing.Validate(); err != nil {
		return err
	}

	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return ErrInFlight
	}
	if !canTransition(o.attempt.Phase, PhaseConfirming) {
		o.mu.Unlock()
		return ErrIllegalPhase
	}
	o.inFlight = true
	o.attempt.Phase = PhaseConfirming
	o.attempt.Billing = billing
	secret := o.attempt.ClientSecret
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.inFlight = false
		o.mu.Unlock()
	}()

	res, err := o.processor.ConfirmPayment(ctx, secret, billing)
	if err != nil {
		o.failAttempt()
		return err
	}
	if res.Status != "succeeded" {
		o.failAttempt()
		return &DeclineError{Message: fmt.Sprintf("payment not completed (status: %s)", res.Status)}
	}

	o.mu.Lock()
	o.attempt.PaymentIntentID = res.PaymentIntentID
	o.attempt.Phase = PhaseSucceededUnpersisted
	o.store.saveAttempt(&o.attempt)
	o.mu.Unlock()

	return o.persistOrder(ctx)
}

// Finalize retries order persistence for an attempt whose charge already
// succeeded. Safe to repeat: the backend deduplicates on the payment intent
// id, so N calls create at most one order.
func (o *Orchestrator) Finalize(ctx context.Context) error {
	o.mu.Lock()
	if o.attempt.Phase != PhaseSucceededUnpersisted {
		o.mu.Unlock()
		return ErrIllegalPhase
	}
	if o.inFlight {
		o.mu.Unlock()
		return ErrInFlight
	}
	o.inFlight = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.inFlight = false
		o.mu.Unlock()
	}()

	return o.persistOrder(ctx)
}

// StartNewAttempt abandons a terminal (or still unprepared) attempt and
// begins a fresh one with a new attempt id. Refused once a charge has
// succeeded without a persisted order, and while a call is outstanding.
func (o *Orchestrator) StartNewAttempt() (Attempt, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight || o.attempt.Phase == PhaseConfirming || o.attempt.Phase == PhaseSucceededUnpersisted {
		return Attempt{}, ErrIllegalPhase
	}
	o.attempt = newAttempt()
	o.store.saveAttempt(&o.attempt)
	return o.attempt, nil
}

func (o *Orchestrator) failAttempt() {
	o.mu.Lock()
	o.attempt.Phase = PhaseFailed
	o.store.saveAttempt(&o.attempt)
	o.mu.Unlock()
}

// persistOrder creates the order referencing the succeeded payment intent.
// On success it records the public order id, clears the local cart, and
// completes the attempt.
func (o *Orchestrator) persistOrder(ctx context.Context) error {
	o.mu.Lock()
	intentID := o.attempt.PaymentIntentID
	billing := o.attempt.Billing
	o.mu.Unlock()

	data, err := o.api.Do(ctx, http.MethodPost, "/orders/", map[string]string{
		"full_name":         billing.FullName,
		"address":           billing.Address,
		"city":              billing.City,
		"state":             billing.State,
		"postal_code":       billing.PostalCode,
		"country":           billing.Country,
		"payment_method":    "card",
		"payment_intent_id": intentID,
	})
	if err != nil {
		o.log.Warn("order persistence failed, finalize available",
			zap.String("payment_intent_id", intentID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrOrderNotPersisted, err)
	}

	order, err := models.ParseOrder(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOrderNotPersisted, err)
	}

	o.mu.Lock()
	o.attempt.OrderID = order.PublicID
	o.attempt.Phase = PhaseCompleted
	o.store.saveAttempt(&o.attempt)
	o.store.saveLastOrderID(order.PublicID)
	o.mu.Unlock()

	o.local.Clear()
	o.log.Info("order persisted", zap.String("order_id", order.PublicID))
	return nil
}
