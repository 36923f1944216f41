package cart

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tresse/storefront/internal/models"
)

func scarfLine(qty int) models.CartLine {
	return models.CartLine{
		ProductID:     3,
		ProductSizeID: 7,
		ProductName:   "Silk Scarf",
		SizeName:      "One Size",
		Quantity:      qty,
		UnitPrice:     "79.00",
		StockCap:      12,
	}
}

func TestLocalCart_PersistAndReload(t *testing.T) {
	dir := t.TempDir()

	c := NewLocalCart(dir, zap.NewNop())
	c.AddLine(scarfLine(2))

	reloaded := NewLocalCart(dir, zap.NewNop())
	lines := reloaded.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, "Silk Scarf", lines[0].ProductName)
}

func TestLocalCart_DropsInvalidPersistedLines(t *testing.T) {
	dir := t.TempDir()
	raw := `{"lines":[
		{"product_id":3,"product_size_id":7,"quantity":2},
		{"product_id":4,"product_size_id":0,"quantity":1},
		{"product_id":5,"product_size_id":9,"quantity":0}
	]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, localFileName), []byte(raw), 0o600))

	c := NewLocalCart(dir, zap.NewNop())
	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, int64(7), lines[0].ProductSizeID)
}

func TestLocalCart_MalformedFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, localFileName), []byte("{oops"), 0o600))
	assert.True(t, NewLocalCart(dir, zap.NewNop()).IsEmpty())
}

func TestLocalCart_AddMergesSameVariant(t *testing.T) {
	c := NewLocalCart(t.TempDir(), zap.NewNop())
	c.AddLine(scarfLine(2))
	c.AddLine(scarfLine(3))

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
}

func TestLocalCart_AddClampsToStock(t *testing.T) {
	c := NewLocalCart(t.TempDir(), zap.NewNop())
	c.AddLine(scarfLine(10))
	c.AddLine(scarfLine(10))

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 12, lines[0].Quantity, "merged quantity capped at stock")
}

func TestLocalCart_SetQuantity(t *testing.T) {
	c := NewLocalCart(t.TempDir(), zap.NewNop())
	c.AddLine(scarfLine(2))

	c.SetQuantity(3, 7, 99)
	assert.Equal(t, 12, c.Lines()[0].Quantity, "clamped to stock")

	c.SetQuantity(3, 7, -4)
	assert.Equal(t, 1, c.Lines()[0].Quantity, "never below 1")

	c.SetQuantity(99, 99, 5) // unknown variant is a no-op
	require.Len(t, c.Lines(), 1)
}

func TestLocalCart_RemoveAndClear(t *testing.T) {
	c := NewLocalCart(t.TempDir(), zap.NewNop())
	c.AddLine(scarfLine(1))
	c.AddLine(models.CartLine{ProductID: 4, ProductSizeID: 8, Quantity: 1, StockCap: 3})

	c.RemoveLine(3, 7)
	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, int64(8), lines[0].ProductSizeID)

	c.Clear()
	assert.True(t, c.IsEmpty())
}

func TestLocalCart_LinesReturnsCopy(t *testing.T) {
	c := NewLocalCart(t.TempDir(), zap.NewNop())
	c.AddLine(scarfLine(2))

	lines := c.Lines()
	lines[0].Quantity = 99
	assert.Equal(t, 2, c.Lines()[0].Quantity)
}
