package stubapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tresse/storefront/internal/api"
	"github.com/tresse/storefront/internal/credstore"
	"github.com/tresse/storefront/internal/session"
	"github.com/tresse/storefront/internal/stubapi"
	"github.com/tresse/storefront/internal/transport"
)

func newServer(t *testing.T) (*stubapi.State, *httptest.Server) {
	t.Helper()
	state := stubapi.NewState([]stubapi.ProductSize{
		{ID: 7, ProductID: 3, Name: "Silk Scarf", SizeName: "One Size", Price: "79.00", Stock: 12},
	})
	srv := httptest.NewServer(stubapi.NewRouter(state, zap.NewNop()))
	t.Cleanup(srv.Close)
	return state, srv
}

func TestProtectedEndpointsRequireBearer(t *testing.T) {
	_, srv := newServer(t)

	resp, err := http.Get(srv.URL + "/products/cart/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/products/cart/", nil)
	req.Header.Set("Authorization", "Bearer nonsense")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRegisterThenLogin(t *testing.T) {
	_, srv := newServer(t)
	client := api.New(srv.Client(), srv.URL)
	auth := session.NewAuthClient(client)

	grant, err := auth.Register(context.Background(), session.RegisterInput{
		Email:     "New@Example.com",
		Password:  "pw12345",
		FirstName: "New",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, grant.Access)
	assert.NotEmpty(t, grant.Refresh)
	assert.Equal(t, "new@example.com", grant.User.Email)

	// Registering the same email twice is rejected.
	_, err = auth.Register(context.Background(), session.RegisterInput{
		Email: "new@example.com", Password: "pw12345",
	})
	var statusErr *api.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.Status)

	relogin, err := auth.Login(context.Background(), "new@example.com", "pw12345")
	require.NoError(t, err)
	assert.Equal(t, grant.User.ID, relogin.User.ID)

	_, err = auth.Login(context.Background(), "new@example.com", "wrong")
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.Status)
}

func TestExpiredAccessTokenIsTransparentlyRefreshed(t *testing.T) {
	state, srv := newServer(t)
	state.AddUser("jo@example.com", "pw", "Jo", "Doe")

	creds := credstore.New(t.TempDir(), zap.NewNop())
	tr := transport.New(nil, creds, srv.URL, zap.NewNop())
	client := api.New(tr.Client(), srv.URL)

	grant, err := session.NewAuthClient(client).Login(context.Background(), "jo@example.com", "pw")
	require.NoError(t, err)
	creds.Set(credstore.AccessToken, grant.Access)
	creds.Set(credstore.RefreshToken, grant.Refresh)

	state.ExpireAccessTokens()

	// The cart fetch hits a 401, refreshes, and retries without the
	// caller noticing.
	_, err = client.Do(context.Background(), http.MethodGet, "/products/cart/", nil)
	require.NoError(t, err)
	assert.NotEqual(t, grant.Access, creds.Get(credstore.AccessToken))
}

func TestRevokedRefreshTokenEndsSession(t *testing.T) {
	state, srv := newServer(t)
	state.AddUser("jo@example.com", "pw", "Jo", "Doe")

	creds := credstore.New(t.TempDir(), zap.NewNop())
	tr := transport.New(nil, creds, srv.URL, zap.NewNop())
	client := api.New(tr.Client(), srv.URL)

	grant, err := session.NewAuthClient(client).Login(context.Background(), "jo@example.com", "pw")
	require.NoError(t, err)
	creds.Set(credstore.AccessToken, grant.Access)
	creds.Set(credstore.RefreshToken, grant.Refresh)

	state.ExpireAccessTokens()
	state.RevokeRefreshTokens()

	_, err = client.Do(context.Background(), http.MethodGet, "/products/cart/", nil)
	assert.True(t, errors.Is(err, transport.ErrSessionInvalidated))
	assert.Equal(t, "", creds.Get(credstore.AccessToken))
}

func TestCreateIntentRequiresNonEmptyCart(t *testing.T) {
	state, srv := newServer(t)
	state.AddUser("jo@example.com", "pw", "Jo", "Doe")

	creds := credstore.New(t.TempDir(), zap.NewNop())
	client := api.New(transport.New(nil, creds, srv.URL, zap.NewNop()).Client(), srv.URL)
	grant, err := session.NewAuthClient(client).Login(context.Background(), "jo@example.com", "pw")
	require.NoError(t, err)
	creds.Set(credstore.AccessToken, grant.Access)
	creds.Set(credstore.RefreshToken, grant.Refresh)

	_, err = client.Do(context.Background(), http.MethodPost, "/orders/create-intent/",
		map[string]string{"attempt_id": "a-1"})
	var statusErr *api.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "Cart is empty", statusErr.Detail)
}

func TestSuggestEndpoint(t *testing.T) {
	_, srv := newServer(t)

	resp, err := http.Get(srv.URL + "/suggest?q=Main")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
