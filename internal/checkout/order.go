// Package checkout implements the order creation and order capture
// handlers on top of the payment gateway.
package checkout

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

const DefaultCurrency = "USD"

var (
	ErrInvalidJSON  = errors.New("invalid json")
	ErrMissingItems = errors.New("missing items")
	ErrEmptyCart    = errors.New("items must not be empty")
	ErrInvalidItem  = errors.New("invalid item")
)

type CartItem struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Qty   int             `json:"qty"`
}

type OrderRequest struct {
	Items    []CartItem
	Shipping decimal.Decimal
	Currency string
}

type Totals struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

type orderBody struct {
	Items    json.RawMessage  `json:"items"`
	Shipping *decimal.Decimal `json:"shipping"`
	Currency string           `json:"currency"`
}

// ParseOrderRequest decodes and validates an order-creation body. An absent,
// null or non-array "items" is ErrMissingItems; an empty array is ErrEmptyCart.
func ParseOrderRequest(r io.Reader) (OrderRequest, error) {
	var body orderBody
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return OrderRequest{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	raw := bytes.TrimSpace(body.Items)
	if len(raw) == 0 || raw[0] != '[' {
		return OrderRequest{}, ErrMissingItems
	}
	var items []CartItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return OrderRequest{}, fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	if len(items) == 0 {
		return OrderRequest{}, ErrEmptyCart
	}
	for i, it := range items {
		items[i].Name = strings.TrimSpace(it.Name)
		switch {
		case items[i].Name == "":
			return OrderRequest{}, fmt.Errorf("%w: item %d has no name", ErrInvalidItem, i)
		case it.Qty < 1:
			return OrderRequest{}, fmt.Errorf("%w: item %d qty must be >= 1", ErrInvalidItem, i)
		case it.Price.IsNegative():
			return OrderRequest{}, fmt.Errorf("%w: item %d price must be >= 0", ErrInvalidItem, i)
		}
	}

	req := OrderRequest{Items: items, Currency: DefaultCurrency}
	if body.Shipping != nil {
		if body.Shipping.IsNegative() {
			return OrderRequest{}, fmt.Errorf("%w: shipping must be >= 0", ErrInvalidItem)
		}
		req.Shipping = *body.Shipping
	}
	if c := strings.ToUpper(strings.TrimSpace(body.Currency)); c != "" {
		req.Currency = c
	}
	return req, nil
}

// Totals computes subtotal = Σ(price×qty) and total = subtotal + shipping,
// each rounded to 2 decimal places.
func (o OrderRequest) Totals() Totals {
	subtotal := decimal.Zero
	for _, it := range o.Items {
		subtotal = subtotal.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Qty))))
	}
	subtotal = subtotal.Round(2)
	return Totals{
		Subtotal: subtotal,
		Shipping: o.Shipping.Round(2),
		Total:    subtotal.Add(o.Shipping).Round(2),
	}
}
