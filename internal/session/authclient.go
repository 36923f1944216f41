package session

import (
	"context"
	"net/http"

	"github.com/tresse/storefront/internal/api"
	"github.com/tresse/storefront/internal/models"
)

// AuthClient calls the credential-issuing accounts endpoints. These paths
// are on the transport's allow-list, so no bearer token is attached and a
// 401 here never triggers a refresh.
type AuthClient struct {
	api *api.Client
}

// NewAuthClient creates an AuthClient on the given API client.
func NewAuthClient(c *api.Client) *AuthClient {
	return &AuthClient{api: c}
}

// Login exchanges email and password for a token grant.
func (a *AuthClient) Login(ctx context.Context, email, password string) (models.TokenGrant, error) {
	data, err := a.api.Do(ctx, http.MethodPost, "/accounts/token/", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return models.TokenGrant{}, err
	}
	return models.ParseTokenGrant(data)
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
}

// Register creates an account; the response shape matches Login.
func (a *AuthClient) Register(ctx context.Context, in RegisterInput) (models.TokenGrant, error) {
	data, err := a.api.Do(ctx, http.MethodPost, "/accounts/register/", in)
	if err != nil {
		return models.TokenGrant{}, err
	}
	return models.ParseTokenGrant(data)
}
