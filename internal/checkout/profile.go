package checkout

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/tresse/storefront/internal/models"
)

const profileFileName = "profile.json"

// ProfileDraft persists the last billing details the user entered so the
// checkout form can be prefilled next time. Same best-effort persistence
// policy as the other client stores.
type ProfileDraft struct {
	path string
	log  *zap.Logger

	mu    sync.Mutex
	draft models.BillingDetails
}

// NewProfileDraft loads the draft from dir; missing or malformed state
// yields an empty draft.
func NewProfileDraft(dir string, log *zap.Logger) *ProfileDraft {
	p := &ProfileDraft{path: filepath.Join(dir, profileFileName), log: log}
	data, err := os.ReadFile(p.path)
	if err != nil {
		return p
	}
	if err := json.Unmarshal(data, &p.draft); err != nil {
		log.Debug("profile draft malformed, starting empty", zap.Error(err))
		p.draft = models.BillingDetails{}
	}
	return p
}

// Get returns the stored draft.
func (p *ProfileDraft) Get() models.BillingDetails {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.draft
}

// Set stores and persists the draft.
func (p *ProfileDraft) Set(b models.BillingDetails) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.draft = b
	data, err := json.Marshal(p.draft)
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		p.log.Debug("cannot create state dir", zap.Error(err))
		return
	}
	if err := os.WriteFile(p.path, data, 0o600); err != nil {
		p.log.Debug("cannot persist profile draft", zap.Error(err))
	}
}
