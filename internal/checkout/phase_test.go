package checkout

import "testing"

func TestPhaseTransitions(t *testing.T) {
	allowed := []struct{ from, to Phase }{
		{PhasePreparing, PhaseReady},
		{PhaseReady, PhaseConfirming},
		{PhaseConfirming, PhaseSucceededUnpersisted},
		{PhaseConfirming, PhaseFailed},
		{PhaseSucceededUnpersisted, PhaseCompleted},
	}
	for _, tr := range allowed {
		if !canTransition(tr.from, tr.to) {
			t.Errorf("canTransition(%s, %s) = false; want true", tr.from, tr.to)
		}
	}

	forbidden := []struct{ from, to Phase }{
		{PhasePreparing, PhaseConfirming},
		{PhaseReady, PhaseSucceededUnpersisted},
		{PhaseConfirming, PhaseCompleted},
		// Once the charge succeeded, failing the attempt would strand
		// the customer's money.
		{PhaseSucceededUnpersisted, PhaseFailed},
		{PhaseCompleted, PhasePreparing},
		{PhaseFailed, PhaseReady},
	}
	for _, tr := range forbidden {
		if canTransition(tr.from, tr.to) {
			t.Errorf("canTransition(%s, %s) = true; want false", tr.from, tr.to)
		}
	}
}

func TestPhaseIsTerminal(t *testing.T) {
	for _, p := range []Phase{PhasePreparing, PhaseReady, PhaseConfirming, PhaseSucceededUnpersisted} {
		if p.IsTerminal() {
			t.Errorf("%s reported terminal", p)
		}
	}
	for _, p := range []Phase{PhaseCompleted, PhaseFailed} {
		if !p.IsTerminal() {
			t.Errorf("%s reported non-terminal", p)
		}
	}
}
