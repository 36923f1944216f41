// Package stubapi is an in-memory implementation of the storefront backend
// used by the development stub server and the client test suites. It
// enforces the same idempotency contracts the real backend provides:
// intent creation deduplicates on attempt id, order creation deduplicates
// on payment intent id.
package stubapi

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ProductSize is one sellable variant known to the stub catalog.
type ProductSize struct {
	ID        int64
	ProductID int64
	Name      string
	SizeName  string
	Price     string
	Stock     int
}

type user struct {
	id        int64
	email     string
	password  string
	firstName string
	lastName  string
}

type cartItem struct {
	id            int64
	productSizeID int64
	quantity      int
}

type intent struct {
	id           string
	clientSecret string
	status       string
	amountCents  int64
	userID       int64
	attemptID    string
}

type order struct {
	id            int64
	publicID      string
	userID        int64
	intentID      string
	status        string
	total         string
	createdAt     time.Time
	billing       map[string]string
	items         []orderItem
}

type orderItem struct {
	id          int64
	productName string
	size        string
	quantity    int
	unitPrice   string
}

// State holds all backend data behind one mutex. Zero value is not usable;
// construct with NewState.
type State struct {
	mu sync.Mutex

	users      map[string]*user // by email
	nextUserID int64

	access  map[string]int64 // access token -> user id
	refresh map[string]int64 // refresh token -> user id

	catalog map[int64]ProductSize

	carts      map[int64][]cartItem // by user id
	nextItemID int64

	intents          map[string]*intent // by intent id
	intentsByAttempt map[string]string  // attempt key -> intent id
	secrets          map[string]string  // client secret -> intent id

	orders      []*order
	nextOrderID int64

	// cancelWindow bounds how long a paid order stays cancelable.
	cancelWindow time.Duration

	// failNextOrders makes that many POST /orders/ calls return a 500,
	// simulating order persistence failing after a successful charge.
	failNextOrders int
}

// NewState creates an empty backend with the given catalog.
func NewState(catalog []ProductSize) *State {
	s := &State{
		users:            make(map[string]*user),
		access:           make(map[string]int64),
		refresh:          make(map[string]int64),
		catalog:          make(map[int64]ProductSize),
		carts:            make(map[int64][]cartItem),
		intents:          make(map[string]*intent),
		intentsByAttempt: make(map[string]string),
		secrets:          make(map[string]string),
		cancelWindow:     24 * time.Hour,
	}
	for _, ps := range catalog {
		s.catalog[ps.ID] = ps
	}
	return s
}

// AddUser registers an account directly, returning its id.
func (s *State) AddUser(email, password, firstName, lastName string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	s.users[email] = &user{
		id:        s.nextUserID,
		email:     email,
		password:  password,
		firstName: firstName,
		lastName:  lastName,
	}
	return s.nextUserID
}

// issueTokens mints a fresh access/refresh pair for the user.
func (s *State) issueTokens(userID int64) (string, string) {
	access := "acc-" + uuid.NewString()
	refresh := "ref-" + uuid.NewString()
	s.access[access] = userID
	s.refresh[refresh] = userID
	return access, refresh
}

// ExpireAccessTokens invalidates every outstanding access token, forcing
// the next authenticated request into the refresh path. Test hook.
func (s *State) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = make(map[string]int64)
}

// RevokeRefreshTokens invalidates every refresh token as well, so a
// refresh attempt is rejected. Test hook.
func (s *State) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = make(map[string]int64)
}

// userForAccess resolves an access token; 0 when unknown.
func (s *State) userForAccess(token string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access[token]
}

// FailNextOrders arranges for the next n order-creation calls to fail with
// a server error. Test hook for the post-charge persistence failure path.
func (s *State) FailNextOrders(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNextOrders = n
}

// OrderCount reports how many orders exist for the payment intent. Test
// hook for asserting idempotency.
func (s *State) OrderCount(intentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, o := range s.orders {
		if o.intentID == intentID {
			n++
		}
	}
	return n
}

// MarkIntentSucceeded flips an intent to succeeded by client secret,
// returning the intent id. Used by the stub payment processor.
func (s *State) MarkIntentSucceeded(clientSecret string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.secrets[clientSecret]
	if !ok {
		return "", false
	}
	s.intents[id].status = "succeeded"
	return id, true
}

// cartTotalCents computes the cart total; prices are decimal strings.
func (s *State) cartTotalCentsLocked(userID int64) int64 {
	var total int64
	for _, it := range s.carts[userID] {
		ps := s.catalog[it.productSizeID]
		total += priceCents(ps.Price) * int64(it.quantity)
	}
	return total
}

func priceCents(price string) int64 {
	f, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return 0
	}
	return int64(f*100 + 0.5)
}

func newPublicID(id int64) string {
	return fmt.Sprintf("TR-%06d", id)
}
