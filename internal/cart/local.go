// Package cart implements the anonymous local cart, the server-backed
// remote cart, and the reconciler that merges the first into the second
// when a session is established.
package cart

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/tresse/storefront/internal/models"
)

const localFileName = "cart.json"

// localState is the on-disk shape of the anonymous cart.
type localState struct {
	Lines []models.CartLine `json:"lines"`
}

// LocalCart is the durable anonymous cart. Mutations are synchronous,
// always succeed, and persist immediately; persistence failures are
// swallowed. Lines are keyed by (ProductID, ProductSizeID).
type LocalCart struct {
	path string
	log  *zap.Logger

	mu    sync.Mutex
	lines []models.CartLine
}

// NewLocalCart loads the anonymous cart from dir. Missing or malformed
// state yields an empty cart, never an error.
func NewLocalCart(dir string, log *zap.Logger) *LocalCart {
	c := &LocalCart{path: filepath.Join(dir, localFileName), log: log}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return c
	}
	var st localState
	if err := json.Unmarshal(data, &st); err != nil {
		log.Debug("local cart file malformed, starting empty", zap.Error(err))
		return c
	}
	for _, l := range st.Lines {
		if err := l.Validate(); err != nil {
			continue
		}
		c.lines = append(c.lines, l)
	}
	return c
}

// AddLine adds quantity units of the line's variant, merging with an
// existing line for the same (ProductID, ProductSizeID). The resulting
// quantity is clamped to [1, StockCap].
func (c *LocalCart) AddLine(line models.CartLine) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.lines {
		if c.lines[i].ProductID == line.ProductID && c.lines[i].ProductSizeID == line.ProductSizeID {
			if line.StockCap > 0 {
				c.lines[i].StockCap = line.StockCap
			}
			c.lines[i].Quantity = c.lines[i].ClampQuantity(c.lines[i].Quantity + line.Quantity)
			c.persistLocked()
			return
		}
	}

	line.LineID = 0
	line.Quantity = line.ClampQuantity(line.Quantity)
	c.lines = append(c.lines, line)
	c.persistLocked()
}

// SetQuantity sets the quantity for the given variant, clamped to
// [1, StockCap]. A request below 1 stores 1; callers guard the "remove"
// gesture themselves. Unknown variants are ignored.
func (c *LocalCart) SetQuantity(productID, productSizeID int64, quantity int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.lines {
		if c.lines[i].ProductID == productID && c.lines[i].ProductSizeID == productSizeID {
			c.lines[i].Quantity = c.lines[i].ClampQuantity(quantity)
			c.persistLocked()
			return
		}
	}
}

// RemoveLine deletes the line for the given variant, if present.
func (c *LocalCart) RemoveLine(productID, productSizeID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.lines {
		if c.lines[i].ProductID == productID && c.lines[i].ProductSizeID == productSizeID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			c.persistLocked()
			return
		}
	}
}

// Clear empties the cart.
func (c *LocalCart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
	c.persistLocked()
}

// Lines returns a copy of the cart lines.
func (c *LocalCart) Lines() []models.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// IsEmpty reports whether the cart has no lines.
func (c *LocalCart) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines) == 0
}

func (c *LocalCart) persistLocked() {
	data, err := json.Marshal(localState{Lines: c.lines})
	if err != nil {
		c.log.Debug("cannot marshal local cart", zap.Error(err))
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		c.log.Debug("cannot create state dir", zap.Error(err))
		return
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		c.log.Debug("cannot persist local cart", zap.Error(err))
	}
}
