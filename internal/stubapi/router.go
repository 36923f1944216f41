package stubapi

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const userKey ctxKey = "user"

// userIDFromContext extracts the authenticated user id set by BearerAuth.
// Returns 0 if not found.
func userIDFromContext(ctx context.Context) int64 {
	if id, ok := ctx.Value(userKey).(int64); ok {
		return id
	}
	return 0
}

// BearerAuth enforces bearer-token authentication against the stub state.
// It rejects requests without a valid access token so the client's refresh
// path can be exercised realistically.
func BearerAuth(state *State) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				detail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
				return
			}
			userID := state.userForAccess(token)
			if userID == 0 {
				detail(w, http.StatusUnauthorized, "Given token not valid for any token type")
				return
			}
			ctx := context.WithValue(r.Context(), userKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewRouter constructs the stub backend router. Credential-issuing
// endpoints are public; everything else requires a bearer token.
//
// Routes:
//
//	POST /accounts/token/              → Login
//	POST /accounts/register/           → Register
//	POST /accounts/token/refresh/      → Refresh
//	GET  /products/cart/               → GetCart
//	POST /products/cart/items/         → AddCartItem
//	PUT  /products/cart/items/{id}/    → UpdateCartItem
//	DELETE /products/cart/items/{id}/  → DeleteCartItem
//	POST /orders/create-intent/        → CreateIntent
//	POST /orders/                      → CreateOrder
//	POST /orders/{id}/cancel/          → CancelOrder
//	GET  /orders/my/                   → MyOrders
//	GET  /suggest                      → Suggest
func NewRouter(state *State, logger *zap.Logger) http.Handler {
	h := &Handler{State: state}
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(withRequestLogging(logger))

	// Public endpoints
	r.Post("/accounts/token/", h.Login)
	r.Post("/accounts/register/", h.Register)
	r.Post("/accounts/token/refresh/", h.Refresh)
	r.Get("/suggest", h.Suggest)
	r.Post("/stub/confirm", h.ConfirmIntent)

	// Protected group: requires a valid bearer token
	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(state))

		r.Get("/products/cart/", h.GetCart)
		r.Post("/products/cart/items/", h.AddCartItem)
		r.Put("/products/cart/items/{id}/", h.UpdateCartItem)
		r.Delete("/products/cart/items/{id}/", h.DeleteCartItem)

		r.Post("/orders/create-intent/", h.CreateIntent)
		r.Post("/orders/", h.CreateOrder)
		r.Post("/orders/{id}/cancel/", h.CancelOrder)
		r.Get("/orders/my/", h.MyOrders)
	})

	return r
}

// withRequestLogging logs each request and its metadata.
func withRequestLogging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
			next.ServeHTTP(w, r)
		})
	}
}
