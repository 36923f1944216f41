package checkout

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tresse/storefront/internal/api"
	"github.com/tresse/storefront/internal/models"
)

// OrdersClient reads and cancels placed orders.
type OrdersClient struct {
	api *api.Client
}

// NewOrdersClient creates an OrdersClient on the authenticated API client.
func NewOrdersClient(c *api.Client) *OrdersClient {
	return &OrdersClient{api: c}
}

// ListMine returns the caller's order history, newest first.
func (c *OrdersClient) ListMine(ctx context.Context) ([]models.Order, error) {
	data, err := c.api.Do(ctx, http.MethodGet, "/orders/my/", nil)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return models.ParseOrders(data)
}

// Cancel cancels a paid order. The backend enforces the cancellation
// window and initiates the refund; its rejection message is surfaced
// verbatim through the returned error.
func (c *OrdersClient) Cancel(ctx context.Context, orderID int64) (models.Order, error) {
	data, err := c.api.Do(ctx, http.MethodPost, fmt.Sprintf("/orders/%d/cancel/", orderID), nil)
	if err != nil {
		return models.Order{}, err
	}
	return models.ParseOrder(data)
}
