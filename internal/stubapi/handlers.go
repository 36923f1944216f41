package stubapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Handler serves the stub backend endpoints against a State.
type Handler struct {
	State *State
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func detail(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"detail": msg})
}

func userJSON(u *user) map[string]any {
	return map[string]any{
		"id":         u.id,
		"email":      u.email,
		"first_name": u.firstName,
		"last_name":  u.lastName,
	}
}

// Login handles POST /accounts/token/.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		detail(w, http.StatusBadRequest, "invalid request")
		return
	}

	s := h.State
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[strings.ToLower(req.Email)]
	if !ok || u.password != req.Password {
		detail(w, http.StatusUnauthorized, "No active account found with the given credentials")
		return
	}
	access, refresh := s.issueTokens(u.id)
	writeJSON(w, http.StatusOK, map[string]any{
		"access":  access,
		"refresh": refresh,
		"user":    userJSON(u),
	})
}

// Register handles POST /accounts/register/.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		detail(w, http.StatusBadRequest, "invalid request")
		return
	}

	s := h.State
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(req.Email)
	if _, exists := s.users[email]; exists {
		detail(w, http.StatusBadRequest, "User with this email already exists.")
		return
	}
	s.nextUserID++
	u := &user{
		id:        s.nextUserID,
		email:     email,
		password:  req.Password,
		firstName: req.FirstName,
		lastName:  req.LastName,
	}
	s.users[email] = u
	access, refresh := s.issueTokens(u.id)
	writeJSON(w, http.StatusCreated, map[string]any{
		"access":  access,
		"refresh": refresh,
		"user":    userJSON(u),
	})
}

// Refresh handles POST /accounts/token/refresh/.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Refresh == "" {
		detail(w, http.StatusBadRequest, "invalid request")
		return
	}

	s := h.State
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.refresh[req.Refresh]
	if !ok {
		detail(w, http.StatusUnauthorized, "Token is invalid or expired")
		return
	}
	access := "acc-" + uuid.NewString()
	s.access[access] = userID
	writeJSON(w, http.StatusOK, map[string]string{"access": access})
}

func (h *Handler) cartItemJSONLocked(it cartItem) map[string]any {
	ps := h.State.catalog[it.productSizeID]
	return map[string]any{
		"id": it.id,
		"product_size": map[string]any{
			"id": ps.ID,
			"product": map[string]any{
				"id":    ps.ProductID,
				"name":  ps.Name,
				"price": ps.Price,
			},
			"size":     map[string]any{"id": ps.ID, "name": ps.SizeName},
			"quantity": ps.Stock,
		},
		"quantity": it.quantity,
	}
}

// GetCart handles GET /products/cart/.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	s := h.State
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]map[string]any, 0, len(s.carts[userID]))
	for _, it := range s.carts[userID] {
		items = append(items, h.cartItemJSONLocked(it))
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": userID, "items": items})
}

// AddCartItem handles POST /products/cart/items/.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	var req struct {
		ProductSizeID int64 `json:"product_size_id"`
		Quantity      int   `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		detail(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Quantity < 1 {
		detail(w, http.StatusBadRequest, "Must be >= 1")
		return
	}

	s := h.State
	s.mu.Lock()
	defer s.mu.Unlock()

	ps, ok := s.catalog[req.ProductSizeID]
	if !ok {
		detail(w, http.StatusBadRequest, "Unknown product size")
		return
	}

	items := s.carts[userID]
	for i := range items {
		if items[i].productSizeID == req.ProductSizeID {
			if items[i].quantity+req.Quantity > ps.Stock {
				detail(w, http.StatusBadRequest, "Not enough stock for this size.")
				return
			}
			items[i].quantity += req.Quantity
			writeJSON(w, http.StatusOK, h.cartItemJSONLocked(items[i]))
			return
		}
	}

	if req.Quantity > ps.Stock {
		detail(w, http.StatusBadRequest, "Not enough stock for this size.")
		return
	}
	s.nextItemID++
	it := cartItem{id: s.nextItemID, productSizeID: req.ProductSizeID, quantity: req.Quantity}
	s.carts[userID] = append(items, it)
	writeJSON(w, http.StatusCreated, h.cartItemJSONLocked(it))
}

// UpdateCartItem handles PUT /products/cart/items/{id}/.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	itemID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		detail(w, http.StatusBadRequest, "invalid item id")
		return
	}
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity < 1 {
		detail(w, http.StatusBadRequest, "Must be >= 1")
		return
	}

	s := h.State
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.carts[userID]
	for i := range items {
		if items[i].id == itemID {
			ps := s.catalog[items[i].productSizeID]
			if req.Quantity > ps.Stock {
				detail(w, http.StatusBadRequest, "Not enough stock for this size.")
				return
			}
			items[i].quantity = req.Quantity
			writeJSON(w, http.StatusOK, h.cartItemJSONLocked(items[i]))
			return
		}
	}
	detail(w, http.StatusNotFound, "Cart item not found")
}

// DeleteCartItem handles DELETE /products/cart/items/{id}/.
func (h *Handler) DeleteCartItem(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	itemID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		detail(w, http.StatusBadRequest, "invalid item id")
		return
	}

	s := h.State
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.carts[userID]
	for i := range items {
		if items[i].id == itemID {
			s.carts[userID] = append(items[:i], items[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	detail(w, http.StatusNotFound, "Cart item not found")
}

// CreateIntent handles POST /orders/create-intent/. Repeated calls with
// the same attempt id return the same intent instead of creating a new
// charge.
func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	var req struct {
		AttemptID string `json:"attempt_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.AttemptID) == "" {
		detail(w, http.StatusBadRequest, "attempt_id is required")
		return
	}

	s := h.State
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.carts[userID]) == 0 {
		detail(w, http.StatusBadRequest, "Cart is empty")
		return
	}

	key := strconv.FormatInt(userID, 10) + "|" + req.AttemptID
	if id, ok := s.intentsByAttempt[key]; ok {
		in := s.intents[id]
		writeJSON(w, http.StatusOK, map[string]string{
			"client_secret":     in.clientSecret,
			"payment_intent_id": in.id,
		})
		return
	}

	in := &intent{
		id:           "pi_" + uuid.NewString()[:8],
		clientSecret: "cs_" + uuid.NewString(),
		status:       "requires_confirmation",
		amountCents:  s.cartTotalCentsLocked(userID),
		userID:       userID,
		attemptID:    req.AttemptID,
	}
	s.intents[in.id] = in
	s.intentsByAttempt[key] = in.id
	s.secrets[in.clientSecret] = in.id
	writeJSON(w, http.StatusOK, map[string]string{
		"client_secret":     in.clientSecret,
		"payment_intent_id": in.id,
	})
}

func orderJSON(o *order) map[string]any {
	items := make([]map[string]any, 0, len(o.items))
	for _, it := range o.items {
		items = append(items, map[string]any{
			"id":           it.id,
			"product_name": it.productName,
			"size":         it.size,
			"quantity":     it.quantity,
			"unit_price":   it.unitPrice,
		})
	}
	out := map[string]any{
		"id":                    o.id,
		"public_id":             o.publicID,
		"email":                 "",
		"total_amount":          o.total,
		"currency":              "usd",
		"stripe_payment_intent": o.intentID,
		"status":                o.status,
		"created_at":            o.createdAt.Format(time.RFC3339),
		"items":                 items,
	}
	for k, v := range o.billing {
		out[k] = v
	}
	return out
}

// CreateOrder handles POST /orders/. An order already existing for the
// payment intent is returned as-is, making retried persistence safe.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	var req struct {
		PaymentIntentID string `json:"payment_intent_id"`
		FullName        string `json:"full_name"`
		Address         string `json:"address"`
		City            string `json:"city"`
		State           string `json:"state"`
		PostalCode      string `json:"postal_code"`
		Country         string `json:"country"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PaymentIntentID == "" {
		detail(w, http.StatusBadRequest, "payment_intent_id is required")
		return
	}

	s := h.State
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNextOrders > 0 {
		s.failNextOrders--
		detail(w, http.StatusInternalServerError, "internal error")
		return
	}

	in, ok := s.intents[req.PaymentIntentID]
	if !ok || in.userID != userID {
		detail(w, http.StatusBadRequest, "Invalid payment_intent_id")
		return
	}
	if in.status != "succeeded" {
		detail(w, http.StatusBadRequest, "Payment not completed (status: "+in.status+")")
		return
	}

	for _, o := range s.orders {
		if o.intentID == req.PaymentIntentID && o.userID == userID {
			writeJSON(w, http.StatusOK, orderJSON(o))
			return
		}
	}

	if len(s.carts[userID]) == 0 {
		detail(w, http.StatusBadRequest, "Cart is empty")
		return
	}

	s.nextOrderID++
	o := &order{
		id:        s.nextOrderID,
		publicID:  newPublicID(s.nextOrderID),
		userID:    userID,
		intentID:  req.PaymentIntentID,
		status:    "paid",
		total:     strconv.FormatFloat(float64(s.cartTotalCentsLocked(userID))/100, 'f', 2, 64),
		createdAt: time.Now(),
		billing: map[string]string{
			"full_name":   req.FullName,
			"address":     req.Address,
			"city":        req.City,
			"state":       req.State,
			"postal_code": req.PostalCode,
			"country":     req.Country,
		},
	}
	for _, it := range s.carts[userID] {
		ps := s.catalog[it.productSizeID]
		ps.Stock -= it.quantity
		s.catalog[it.productSizeID] = ps
		o.items = append(o.items, orderItem{
			id:          it.id,
			productName: ps.Name,
			size:        ps.SizeName,
			quantity:    it.quantity,
			unitPrice:   ps.Price,
		})
	}
	delete(s.carts, userID)
	s.orders = append(s.orders, o)
	writeJSON(w, http.StatusCreated, orderJSON(o))
}

// CancelOrder handles POST /orders/{id}/cancel/.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		detail(w, http.StatusBadRequest, "invalid order id")
		return
	}

	s := h.State
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.orders {
		if o.id == orderID && o.userID == userID {
			if o.status != "paid" {
				detail(w, http.StatusBadRequest, "Only paid orders can be canceled")
				return
			}
			if time.Since(o.createdAt) > s.cancelWindow {
				detail(w, http.StatusBadRequest, "Cancellation window has expired")
				return
			}
			o.status = "canceled"
			writeJSON(w, http.StatusOK, orderJSON(o))
			return
		}
	}
	detail(w, http.StatusNotFound, "Order not found")
}

// MyOrders handles GET /orders/my/.
func (h *Handler) MyOrders(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())

	s := h.State
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]map[string]any, 0)
	for i := len(s.orders) - 1; i >= 0; i-- {
		if s.orders[i].userID == userID {
			out = append(out, orderJSON(s.orders[i]))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// ConfirmIntent handles POST /stub/confirm, the stand-in for the payment
// processor's client-side confirmation. A "decline" field simulates a card
// decline.
func (h *Handler) ConfirmIntent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientSecret string `json:"client_secret"`
		Decline      string `json:"decline"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClientSecret == "" {
		detail(w, http.StatusBadRequest, "client_secret is required")
		return
	}
	if req.Decline != "" {
		detail(w, http.StatusPaymentRequired, req.Decline)
		return
	}
	id, ok := h.State.MarkIntentSucceeded(req.ClientSecret)
	if !ok {
		detail(w, http.StatusBadRequest, "Unknown client secret")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":            "succeeded",
		"payment_intent_id": id,
	})
}

// Suggest handles GET /suggest for the address stub: it echoes a couple of
// canned candidates derived from the query.
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, []map[string]string{
		{
			"label":       q + " Street 1, Springfield",
			"address":     q + " Street 1",
			"city":        "Springfield",
			"state":       "IL",
			"postal_code": "62701",
			"country":     "US",
		},
		{
			"label":       q + " Avenue 2, Springfield",
			"address":     q + " Avenue 2",
			"city":        "Springfield",
			"state":       "IL",
			"postal_code": "62702",
			"country":     "US",
		},
	})
}
