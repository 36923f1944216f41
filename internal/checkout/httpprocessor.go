package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tresse/storefront/internal/models"
)

// HTTPProcessor confirms payments against a processor endpoint speaking a
// minimal JSON protocol. It stands in for the real processor SDK; the
// orchestrator only sees the PaymentProcessor interface.
type HTTPProcessor struct {
	URL  string
	HTTP *http.Client
}

// ConfirmPayment implements PaymentProcessor. A 402 response is a decline
// and its detail message is surfaced verbatim.
func (p *HTTPProcessor) ConfirmPayment(ctx context.Context, clientSecret string, billing models.BillingDetails) (ConfirmResult, error) {
	client := p.HTTP
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	payload, _ := json.Marshal(map[string]any{
		"client_secret":   clientSecret,
		"billing_details": billing,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(payload))
	if err != nil {
		return ConfirmResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return ConfirmResult{}, fmt.Errorf("confirming payment: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return ConfirmResult{}, err
	}

	if resp.StatusCode == http.StatusPaymentRequired {
		msg := models.APIDetail(data)
		if msg == "" {
			msg = "payment declined"
		}
		return ConfirmResult{}, &DeclineError{Message: msg}
	}
	if resp.StatusCode != http.StatusOK {
		return ConfirmResult{}, fmt.Errorf("processor error: status %d", resp.StatusCode)
	}

	var body struct {
		Status          string `json:"status"`
		PaymentIntentID string `json:"payment_intent_id"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ConfirmResult{}, fmt.Errorf("%w: processor response: %v", models.ErrInvalidPayload, err)
	}
	return ConfirmResult{Status: body.Status, PaymentIntentID: body.PaymentIntentID}, nil
}
