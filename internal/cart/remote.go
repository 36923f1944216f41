package cart

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/tresse/storefront/internal/api"
	"github.com/tresse/storefront/internal/models"
)

// RemoteCart mirrors the server-owned cart. Mutations update nothing
// optimistically: the mirror changes only when the server response is in,
// so the view never diverges from the server.
type RemoteCart struct {
	api *api.Client
	log *zap.Logger

	mu sync.Mutex
	// lines is the last server state applied.
	lines []models.CartLine
	// issuedSeq/appliedSeq order concurrent fetches so that a stale
	// response never overwrites a newer one (last fetch wins).
	issuedSeq  int
	appliedSeq int
}

// NewRemoteCart creates a RemoteCart over the authenticated API client.
func NewRemoteCart(c *api.Client, log *zap.Logger) *RemoteCart {
	return &RemoteCart{api: c, log: log}
}

// Fetch reloads the cart from the server and returns its lines.
func (rc *RemoteCart) Fetch(ctx context.Context) ([]models.CartLine, error) {
	rc.mu.Lock()
	rc.issuedSeq++
	seq := rc.issuedSeq
	rc.mu.Unlock()

	data, err := rc.api.Do(ctx, http.MethodGet, "/products/cart/", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching cart: %w", err)
	}
	lines, err := models.ParseCart(data)
	if err != nil {
		return nil, err
	}

	rc.mu.Lock()
	if seq > rc.appliedSeq {
		rc.lines = lines
		rc.appliedSeq = seq
	}
	out := make([]models.CartLine, len(rc.lines))
	copy(out, rc.lines)
	rc.mu.Unlock()
	return out, nil
}

// AddLine adds quantity units of a variant to the server cart and returns
// the updated line.
func (rc *RemoteCart) AddLine(ctx context.Context, productSizeID int64, quantity int) (models.CartLine, error) {
	data, err := rc.api.Do(ctx, http.MethodPost, "/products/cart/items/", map[string]any{
		"product_size_id": productSizeID,
		"quantity":        quantity,
	})
	if err != nil {
		return models.CartLine{}, fmt.Errorf("adding cart line: %w", err)
	}
	line, err := models.ParseCartLine(data)
	if err != nil {
		return models.CartLine{}, err
	}
	rc.applyLine(line)
	return line, nil
}

// UpdateLine sets the quantity of a server cart line and returns the
// updated line.
func (rc *RemoteCart) UpdateLine(ctx context.Context, lineID int64, quantity int) (models.CartLine, error) {
	data, err := rc.api.Do(ctx, http.MethodPut, fmt.Sprintf("/products/cart/items/%d/", lineID), map[string]any{
		"quantity": quantity,
	})
	if err != nil {
		return models.CartLine{}, fmt.Errorf("updating cart line %d: %w", lineID, err)
	}
	line, err := models.ParseCartLine(data)
	if err != nil {
		return models.CartLine{}, err
	}
	rc.applyLine(line)
	return line, nil
}

// RemoveLine deletes a server cart line.
func (rc *RemoteCart) RemoveLine(ctx context.Context, lineID int64) error {
	if _, err := rc.api.Do(ctx, http.MethodDelete, fmt.Sprintf("/products/cart/items/%d/", lineID), nil); err != nil {
		return fmt.Errorf("removing cart line %d: %w", lineID, err)
	}
	rc.mu.Lock()
	for i := range rc.lines {
		if rc.lines[i].LineID == lineID {
			rc.lines = append(rc.lines[:i], rc.lines[i+1:]...)
			break
		}
	}
	rc.mu.Unlock()
	return nil
}

// Lines returns a copy of the last applied server state.
func (rc *RemoteCart) Lines() []models.CartLine {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]models.CartLine, len(rc.lines))
	copy(out, rc.lines)
	return out
}

// IsEmpty reports whether the mirrored server cart has no lines.
func (rc *RemoteCart) IsEmpty() bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.lines) == 0
}

func (rc *RemoteCart) applyLine(line models.CartLine) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for i := range rc.lines {
		if rc.lines[i].LineID == line.LineID {
			rc.lines[i] = line
			return
		}
	}
	rc.lines = append(rc.lines, line)
}
