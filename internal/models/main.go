// Package models defines the core data structures shared by the storefront
// client: user identity, cart lines, orders, and checkout attempts.
package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPayload is returned by the Parse* helpers when a payload from
// the network or from persisted state fails shape validation. Callers treat
// the entity as absent rather than propagating the error as a crash.
var ErrInvalidPayload = errors.New("invalid payload")

// UserIdentity is the authenticated user as returned by the accounts API.
type UserIdentity struct {
	// ID is the server-assigned user id, always positive.
	ID int64 `json:"id"`
	// Email is the login email, stored lower-cased.
	Email string `json:"email"`
	// FirstName is the user's given name.
	FirstName string `json:"first_name"`
	// LastName is the user's family name.
	LastName string `json:"last_name"`
}

// Validate checks the UserIdentity constraints: positive id and an email
// containing "@". It normalizes the email to lower case in place.
func (u *UserIdentity) Validate() error {
	if u.ID <= 0 {
		return fmt.Errorf("%w: user id must be positive", ErrInvalidPayload)
	}
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if !strings.Contains(email, "@") {
		return fmt.Errorf("%w: malformed email", ErrInvalidPayload)
	}
	u.Email = email
	return nil
}

// CartLine is one cart position. Local (anonymous) lines are keyed by
// (ProductID, ProductSizeID) and have LineID == 0; server lines carry the
// server-assigned LineID.
type CartLine struct {
	// LineID is the server-assigned cart item id, 0 for local lines.
	LineID int64 `json:"line_id,omitempty"`
	// ProductID identifies the product.
	ProductID int64 `json:"product_id"`
	// ProductSizeID identifies the concrete product/size variant.
	ProductSizeID int64 `json:"product_size_id"`
	// ProductName is a display snapshot taken when the line was added.
	ProductName string `json:"product_name,omitempty"`
	// SizeName is a display snapshot of the size label.
	SizeName string `json:"size_name,omitempty"`
	// Quantity is the number of units, always >= 1.
	Quantity int `json:"quantity"`
	// UnitPrice is the price snapshot as a decimal string, e.g. "79.00".
	UnitPrice string `json:"unit_price,omitempty"`
	// StockCap is the known stock for the variant; 0 means unknown.
	StockCap int `json:"stock_cap,omitempty"`
}

// Validate checks the CartLine invariants.
func (l *CartLine) Validate() error {
	if l.ProductSizeID <= 0 {
		return fmt.Errorf("%w: product size id must be positive", ErrInvalidPayload)
	}
	if l.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be >= 1", ErrInvalidPayload)
	}
	if l.StockCap > 0 && l.Quantity > l.StockCap {
		return fmt.Errorf("%w: quantity exceeds stock", ErrInvalidPayload)
	}
	return nil
}

// ClampQuantity returns q forced into the valid range for the line:
// at least 1, and at most StockCap when the cap is known.
func (l *CartLine) ClampQuantity(q int) int {
	if q < 1 {
		q = 1
	}
	if l.StockCap > 0 && q > l.StockCap {
		q = l.StockCap
	}
	return q
}

// OrderItem is one position of a placed order.
type OrderItem struct {
	ID          int64  `json:"id"`
	ProductName string `json:"product_name"`
	Size        string `json:"size"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
}

// Order is a placed order as returned by the orders API.
type Order struct {
	ID            int64       `json:"id"`
	PublicID      string      `json:"public_id"`
	FullName      string      `json:"full_name"`
	Address       string      `json:"address"`
	City          string      `json:"city"`
	State         string      `json:"state"`
	PostalCode    string      `json:"postal_code"`
	Country       string      `json:"country"`
	Email         string      `json:"email"`
	TotalAmount   string      `json:"total_amount"`
	Currency      string      `json:"currency"`
	PaymentIntent string      `json:"stripe_payment_intent"`
	Status        string      `json:"status"`
	CreatedAt     string      `json:"created_at"`
	Items         []OrderItem `json:"items"`
}

// BillingDetails are the shipping/contact fields sent on order creation and
// to the payment processor during confirmation.
type BillingDetails struct {
	FullName   string `json:"full_name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Validate requires the fields the backend rejects orders without.
func (b *BillingDetails) Validate() error {
	if strings.TrimSpace(b.FullName) == "" {
		return fmt.Errorf("%w: full name required", ErrInvalidPayload)
	}
	if strings.TrimSpace(b.Address) == "" {
		return fmt.Errorf("%w: address required", ErrInvalidPayload)
	}
	if strings.TrimSpace(b.Country) == "" {
		return fmt.Errorf("%w: country required", ErrInvalidPayload)
	}
	return nil
}

// AddressCandidate is one suggestion from the address lookup service.
type AddressCandidate struct {
	Label      string `json:"label"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}
