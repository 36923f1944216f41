package models

import (
	"encoding/json"
	"fmt"
)

// The backend is not trusted to return well-formed payloads; every response
// body goes through one of the Parse* helpers below before any field is
// used. All of them fail with ErrInvalidPayload wrapped in context.

// TokenGrant is the response of the login and register endpoints.
type TokenGrant struct {
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	User    UserIdentity `json:"user"`
}

// ParseTokenGrant decodes and validates a login/register response.
func ParseTokenGrant(data []byte) (TokenGrant, error) {
	var g TokenGrant
	if err := json.Unmarshal(data, &g); err != nil {
		return TokenGrant{}, fmt.Errorf("%w: token grant: %v", ErrInvalidPayload, err)
	}
	if g.Access == "" {
		return TokenGrant{}, fmt.Errorf("%w: empty access token", ErrInvalidPayload)
	}
	if err := g.User.Validate(); err != nil {
		return TokenGrant{}, fmt.Errorf("token grant user: %w", err)
	}
	return g, nil
}

// ParseRefreshResponse decodes a token refresh response and returns the new
// access token.
func ParseRefreshResponse(data []byte) (string, error) {
	var body struct {
		Access string `json:"access"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return "", fmt.Errorf("%w: refresh response: %v", ErrInvalidPayload, err)
	}
	if body.Access == "" {
		return "", fmt.Errorf("%w: refresh response without access token", ErrInvalidPayload)
	}
	return body.Access, nil
}

// ParseUser decodes and validates a persisted or received user identity.
func ParseUser(data []byte) (UserIdentity, error) {
	var u UserIdentity
	if err := json.Unmarshal(data, &u); err != nil {
		return UserIdentity{}, fmt.Errorf("%w: user: %v", ErrInvalidPayload, err)
	}
	if err := u.Validate(); err != nil {
		return UserIdentity{}, err
	}
	return u, nil
}

// Wire shapes of the cart endpoints. product_size.quantity is the remaining
// stock for the variant, not the cart quantity.
type cartPayload struct {
	ID    int64             `json:"id"`
	Items []cartItemPayload `json:"items"`
}

type cartItemPayload struct {
	ID          int64              `json:"id"`
	ProductSize productSizePayload `json:"product_size"`
	Quantity    int                `json:"quantity"`
}

type productSizePayload struct {
	ID      int64              `json:"id"`
	Product productMiniPayload `json:"product"`
	Size    sizePayload        `json:"size"`
	// Quantity is the stock remaining for this size.
	Quantity int `json:"quantity"`
}

type productMiniPayload struct {
	ID    int64         `json:"id"`
	Name  string        `json:"name"`
	Price decimalString `json:"price"`
}

// decimalString accepts a decimal encoded either as a JSON string
// ("79.00", the DRF default) or as a bare number.
type decimalString string

func (d *decimalString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = decimalString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*d = decimalString(n.String())
	return nil
}

type sizePayload struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ParseCart decodes a GET /products/cart/ response into cart lines. Lines
// that fail validation are dropped rather than failing the whole cart.
func ParseCart(data []byte) ([]CartLine, error) {
	var p cartPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: cart: %v", ErrInvalidPayload, err)
	}
	lines := make([]CartLine, 0, len(p.Items))
	for _, it := range p.Items {
		line := CartLine{
			LineID:        it.ID,
			ProductID:     it.ProductSize.Product.ID,
			ProductSizeID: it.ProductSize.ID,
			ProductName:   it.ProductSize.Product.Name,
			SizeName:      it.ProductSize.Size.Name,
			Quantity:      it.Quantity,
			UnitPrice:     string(it.ProductSize.Product.Price),
			StockCap:      it.ProductSize.Quantity,
		}
		if err := line.Validate(); err != nil {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// ParseCartLine decodes a single cart item response (POST/PUT on
// /products/cart/items/).
func ParseCartLine(data []byte) (CartLine, error) {
	var it cartItemPayload
	if err := json.Unmarshal(data, &it); err != nil {
		return CartLine{}, fmt.Errorf("%w: cart item: %v", ErrInvalidPayload, err)
	}
	line := CartLine{
		LineID:        it.ID,
		ProductID:     it.ProductSize.Product.ID,
		ProductSizeID: it.ProductSize.ID,
		ProductName:   it.ProductSize.Product.Name,
		SizeName:      it.ProductSize.Size.Name,
		Quantity:      it.Quantity,
		UnitPrice:     string(it.ProductSize.Product.Price),
		StockCap:      it.ProductSize.Quantity,
	}
	if err := line.Validate(); err != nil {
		return CartLine{}, err
	}
	return line, nil
}

// ParseOrder decodes an order response. PublicID is required; the rest is
// display data.
func ParseOrder(data []byte) (Order, error) {
	var o Order
	if err := json.Unmarshal(data, &o); err != nil {
		return Order{}, fmt.Errorf("%w: order: %v", ErrInvalidPayload, err)
	}
	if o.PublicID == "" {
		return Order{}, fmt.Errorf("%w: order without public id", ErrInvalidPayload)
	}
	return o, nil
}

// ParseOrders decodes the order-history listing.
func ParseOrders(data []byte) ([]Order, error) {
	var orders []Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, fmt.Errorf("%w: orders: %v", ErrInvalidPayload, err)
	}
	return orders, nil
}

// APIDetail extracts the backend's {"detail": "..."} error message from an
// error response body. Returns the empty string when the body has no detail.
func APIDetail(data []byte) string {
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	return body.Detail
}
