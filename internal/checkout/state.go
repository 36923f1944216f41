package checkout

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/tresse/storefront/internal/models"
)

const stateFileName = "checkout.json"

// Attempt is one checkout attempt. AttemptID is generated once and reused
// for every intent-creation call of the attempt so the backend can
// deduplicate retries.
type Attempt struct {
	AttemptID       string                `json:"attempt_id"`
	ClientSecret    string                `json:"client_secret,omitempty"`
	PaymentIntentID string                `json:"payment_intent_id,omitempty"`
	OrderID         string                `json:"order_id,omitempty"`
	Phase           Phase                 `json:"phase"`
	Billing         models.BillingDetails `json:"billing,omitempty"`
}

// checkoutState is the on-disk shape of the checkout package's persisted
// state. The attempt survives restarts so a crash after a successful charge
// can still be finalized.
type checkoutState struct {
	Attempt     *Attempt `json:"attempt,omitempty"`
	LastOrderID string   `json:"last_order_id,omitempty"`
}

// stateStore persists checkout state best-effort, like every other client
// store: a failing disk degrades to in-memory state.
type stateStore struct {
	path string
	log  *zap.Logger

	mu sync.Mutex
	st checkoutState
}

func newStateStore(dir string, log *zap.Logger) *stateStore {
	s := &stateStore{path: filepath.Join(dir, stateFileName), log: log}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return s
	}
	if err := json.Unmarshal(data, &s.st); err != nil {
		log.Debug("checkout state malformed, starting empty", zap.Error(err))
		s.st = checkoutState{}
	}
	if a := s.st.Attempt; a != nil && a.AttemptID == "" {
		s.st.Attempt = nil
	}
	return s
}

func (s *stateStore) loadAttempt() *Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.Attempt == nil {
		return nil
	}
	a := *s.st.Attempt
	return &a
}

func (s *stateStore) saveAttempt(a *Attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a == nil {
		s.st.Attempt = nil
	} else {
		cp := *a
		s.st.Attempt = &cp
	}
	s.persistLocked()
}

func (s *stateStore) saveLastOrderID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.LastOrderID = id
	s.persistLocked()
}

func (s *stateStore) lastOrderID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.LastOrderID
}

func (s *stateStore) persistLocked() {
	data, err := json.Marshal(s.st)
	if err != nil {
		s.log.Debug("cannot marshal checkout state", zap.Error(err))
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		s.log.Debug("cannot create state dir", zap.Error(err))
		return
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		s.log.Debug("cannot persist checkout state", zap.Error(err))
	}
}
