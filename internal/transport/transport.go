// Package transport implements the authenticated HTTP transport: it
// attaches the bearer token to outbound requests, detects unauthorized
// responses, and coordinates a single-flight token refresh shared by all
// concurrent requests.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/tresse/storefront/internal/credstore"
	"github.com/tresse/storefront/internal/models"
)

// ErrSessionInvalidated is returned for requests whose credentials could
// not be refreshed. The session manager clears state when it fires.
var ErrSessionInvalidated = errors.New("session invalidated")

// errNoRefreshToken aborts a refresh attempt before any network call.
var errNoRefreshToken = errors.New("no refresh token stored")

// allowList holds the credential-issuing endpoints that are called without
// a bearer token and never trigger a refresh.
var allowList = map[string]bool{
	"/accounts/token/":         true,
	"/accounts/register/":      true,
	"/accounts/token/refresh/": true,
}

type ctxKey int

// retryKey carries the explicit retry counter for a request, capped at 1.
const retryKey ctxKey = 0

func retryCount(ctx context.Context) int {
	if n, ok := ctx.Value(retryKey).(int); ok {
		return n
	}
	return 0
}

// Transport is an http.RoundTripper that authenticates outbound requests
// against the storefront API.
type Transport struct {
	base    http.RoundTripper
	creds   *credstore.Store
	baseURL string
	log     *zap.Logger

	// refresh is the single-flight group guaranteeing at most one
	// refresh call regardless of how many requests hit 401 at once.
	refresh singleflight.Group

	// onInvalidate is called whenever the refresh-or-retry path gives
	// up on the session. May fire more than once; the session manager
	// latches it into a one-shot signal.
	onInvalidate func()
}

// New builds a Transport over an instrumented copy of base (or
// http.DefaultTransport when base is nil).
func New(base http.RoundTripper, creds *credstore.Store, baseURL string, log *zap.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		base:    otelhttp.NewTransport(base),
		creds:   creds,
		baseURL: baseURL,
		log:     log,
	}
}

// OnInvalidate registers the handler called when the session can no longer
// be refreshed. Must be set before the transport serves requests.
func (t *Transport) OnInvalidate(fn func()) {
	t.onInvalidate = fn
}

// Client returns an http.Client using this transport.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t, Timeout: 30 * time.Second}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if allowList[req.URL.Path] {
		return t.base.RoundTrip(req)
	}

	r := req.Clone(req.Context())
	if tok := t.creds.Get(credstore.AccessToken); tok != "" {
		r.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := t.base.RoundTrip(r)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	if retryCount(req.Context()) >= 1 {
		// Already retried with a fresh token and still unauthorized.
		resp.Body.Close()
		t.invalidate("retried request unauthorized")
		return nil, ErrSessionInvalidated
	}

	if req.Body != nil && req.GetBody == nil {
		// Body cannot be replayed; surface the 401 as-is.
		return resp, nil
	}
	resp.Body.Close()

	if _, err := t.doRefresh(req.Context()); err != nil {
		t.invalidate("token refresh failed")
		return nil, fmt.Errorf("%w: %v", ErrSessionInvalidated, err)
	}

	retry := req.Clone(context.WithValue(req.Context(), retryKey, 1))
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("replaying request body: %w", err)
		}
		retry.Body = body
	}
	return t.RoundTrip(retry)
}

// doRefresh exchanges the stored refresh token for a new access token.
// Concurrent callers collapse into one network call and all observe the
// same token or the same failure.
func (t *Transport) doRefresh(ctx context.Context) (string, error) {
	v, err, _ := t.refresh.Do("refresh", func() (interface{}, error) {
		refreshTok := t.creds.Get(credstore.RefreshToken)
		if refreshTok == "" {
			return nil, errNoRefreshToken
		}

		// Detach from the triggering request so its cancellation does
		// not fail every queued request sharing this refresh.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()

		payload, _ := json.Marshal(map[string]string{"refresh": refreshTok})
		req, err := http.NewRequestWithContext(rctx, http.MethodPost,
			t.baseURL+"/accounts/token/refresh/", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, fmt.Errorf("refresh call failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("refresh token rejected: status %d", resp.StatusCode)
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		access, err := models.ParseRefreshResponse(data)
		if err != nil {
			return nil, err
		}

		t.creds.Set(credstore.AccessToken, access)
		t.log.Debug("access token refreshed")
		return access, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (t *Transport) invalidate(reason string) {
	t.log.Info("session invalidated", zap.String("reason", reason))
	t.creds.ClearAll()
	if t.onInvalidate != nil {
		t.onInvalidate()
	}
}
