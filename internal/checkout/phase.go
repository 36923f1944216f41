// Package checkout drives a payment-intent checkout to completion and owns
// the recovery path for a charge that succeeded before the order was
// persisted.
package checkout

// Phase is the state of one checkout attempt.
type Phase string

const (
	// PhasePreparing means no payment intent exists yet.
	PhasePreparing Phase = "preparing"
	// PhaseReady means an intent exists and can be confirmed.
	PhaseReady Phase = "ready"
	// PhaseConfirming means a confirmation call is in flight.
	PhaseConfirming Phase = "confirming"
	// PhaseSucceededUnpersisted means the charge succeeded but the order
	// is not yet persisted; only finalization may run from here.
	PhaseSucceededUnpersisted Phase = "succeeded_unpersisted"
	// PhaseCompleted means the order is persisted.
	PhaseCompleted Phase = "completed"
	// PhaseFailed means the attempt failed before any charge succeeded.
	PhaseFailed Phase = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// String representation (for logging)
func (p Phase) String() string {
	return string(p)
}

// transitions is the allowed phase graph. PhaseFailed is reachable only
// before a charge succeeds; once the charge is through, the only forward
// path is PhaseCompleted.
var transitions = map[Phase][]Phase{
	PhasePreparing:            {PhaseReady},
	PhaseReady:                {PhaseConfirming},
	PhaseConfirming:           {PhaseSucceededUnpersisted, PhaseFailed},
	PhaseSucceededUnpersisted: {PhaseCompleted},
}

func canTransition(from, to Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
