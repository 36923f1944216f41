package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tresse/storefront/internal/models"
)

func TestHTTPProcessor_ConfirmPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ClientSecret   string                `json:"client_secret"`
			BillingDetails models.BillingDetails `json:"billing_details"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "cs_ok", req.ClientSecret)
		assert.Equal(t, "Jo Doe", req.BillingDetails.FullName)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"succeeded","payment_intent_id":"pi_1"}`))
	}))
	defer srv.Close()

	p := &HTTPProcessor{URL: srv.URL}
	res, err := p.ConfirmPayment(context.Background(), "cs_ok",
		models.BillingDetails{FullName: "Jo Doe", Address: "1 Main St", Country: "US"})
	require.NoError(t, err)
	assert.Equal(t, "succeeded", res.Status)
	assert.Equal(t, "pi_1", res.PaymentIntentID)
}

func TestHTTPProcessor_DeclineCarriesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"detail":"Your card has insufficient funds."}`))
	}))
	defer srv.Close()

	p := &HTTPProcessor{URL: srv.URL}
	_, err := p.ConfirmPayment(context.Background(), "cs_x", models.BillingDetails{})

	var decline *DeclineError
	require.ErrorAs(t, err, &decline)
	assert.Equal(t, "Your card has insufficient funds.", decline.Message)
}

func TestHTTPProcessor_ServerErrorIsNotADecline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := &HTTPProcessor{URL: srv.URL}
	_, err := p.ConfirmPayment(context.Background(), "cs_x", models.BillingDetails{})
	require.Error(t, err)

	var decline *DeclineError
	assert.False(t, errors.As(err, &decline),
		"an outage must stay retryable, not read as a card decline")
}
