package checkout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tresse/storefront/internal/models"
)

func TestProfileDraft_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	draft := NewProfileDraft(dir, zap.NewNop())
	assert.Equal(t, models.BillingDetails{}, draft.Get())

	b := models.BillingDetails{FullName: "Jo Doe", Address: "1 Main St", City: "Springfield", Country: "US"}
	draft.Set(b)

	assert.Equal(t, b, NewProfileDraft(dir, zap.NewNop()).Get())
}

func TestProfileDraft_MalformedFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, profileFileName), []byte("??"), 0o600))
	assert.Equal(t, models.BillingDetails{}, NewProfileDraft(dir, zap.NewNop()).Get())
}
