package cart

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/tresse/storefront/internal/models"
)

// Reconciler merges the anonymous local cart into the server cart exactly
// once per session establishment.
type Reconciler struct {
	local  *LocalCart
	remote *RemoteCart
	log    *zap.Logger

	mu sync.Mutex
	// merged latches after the first merge of the current session so a
	// duplicate trigger (a component initializing twice) is a no-op.
	merged bool
}

// NewReconciler creates a Reconciler over the two carts.
func NewReconciler(local *LocalCart, remote *RemoteCart, log *zap.Logger) *Reconciler {
	return &Reconciler{local: local, remote: remote, log: log}
}

// OnSessionEstablished runs the merge. Rules:
//
//   - an empty local cart skips the merge and only refetches the server cart
//   - one add request per local line, carrying that line's quantity
//   - requests run concurrently and every outcome is captured independently
//   - all succeeded: local cart is cleared, server cart refetched
//   - any failed: local cart kept untouched (no guest data lost), server
//     cart still refetched to show what partially committed
//
// A failed merge is not retried automatically; the next session
// establishment attempts it again, which may duplicate lines server-side if
// a prior partial merge committed some of them. That tradeoff is accepted
// rather than corrected client-side.
func (r *Reconciler) OnSessionEstablished(ctx context.Context) error {
	r.mu.Lock()
	if r.merged {
		r.mu.Unlock()
		return nil
	}
	r.merged = true
	r.mu.Unlock()

	lines := r.local.Lines()
	if len(lines) == 0 {
		_, err := r.remote.Fetch(ctx)
		return err
	}

	results := make([]error, len(lines))
	var wg sync.WaitGroup
	for i, line := range lines {
		wg.Add(1)
		go func(i int, line models.CartLine) {
			defer wg.Done()
			_, results[i] = r.remote.AddLine(ctx, line.ProductSizeID, line.Quantity)
		}(i, line)
	}
	wg.Wait()

	failed := 0
	for i, err := range results {
		if err != nil {
			failed++
			r.log.Warn("cart line merge failed",
				zap.Int64("product_size_id", lines[i].ProductSizeID),
				zap.Error(err))
		}
	}

	if failed == 0 {
		r.local.Clear()
		r.log.Info("local cart merged", zap.Int("lines", len(lines)))
	} else {
		r.log.Warn("cart merge partially failed, keeping local cart",
			zap.Int("failed", failed), zap.Int("total", len(lines)))
	}

	if _, err := r.remote.Fetch(ctx); err != nil {
		return err
	}
	return nil
}

// Reset re-arms the merge latch. Called on logout or invalidation so the
// next login merges again.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	r.merged = false
	r.mu.Unlock()
}

// AuthoritativeLines picks which cart the UI should display. When
// authenticated, the server cart wins as soon as it has content, or when
// the local cart has none; otherwise the local cart is shown. This avoids
// flashing an empty cart while a merge is in flight.
func (r *Reconciler) AuthoritativeLines(loggedIn bool) []models.CartLine {
	if loggedIn && (!r.remote.IsEmpty() || r.local.IsEmpty()) {
		return r.remote.Lines()
	}
	return r.local.Lines()
}
