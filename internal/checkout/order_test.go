package checkout

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderRequestDefaults(t *testing.T) {
	req, err := ParseOrderRequest(strings.NewReader(`{"items":[{"name":"Candle","price":12.5,"qty":2}]}`))
	require.NoError(t, err)
	assert.Equal(t, "USD", req.Currency)
	assert.True(t, req.Shipping.IsZero())
	require.Len(t, req.Items, 1)
	assert.Equal(t, "Candle", req.Items[0].Name)
	assert.Equal(t, 2, req.Items[0].Qty)
}

func TestParseOrderRequestMissingItems(t *testing.T) {
	cases := map[string]string{
		"absent": `{"shipping":5}`,
		"null":   `{"items":null}`,
		"object": `{"items":{"name":"Candle"}}`,
		"string": `{"items":"Candle"}`,
		"number": `{"items":3}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseOrderRequest(strings.NewReader(body))
			assert.True(t, errors.Is(err, ErrMissingItems), "got %v", err)
		})
	}
}

func TestParseOrderRequestEmptyCart(t *testing.T) {
	_, err := ParseOrderRequest(strings.NewReader(`{"items":[]}`))
	assert.True(t, errors.Is(err, ErrEmptyCart))
}

func TestParseOrderRequestInvalid(t *testing.T) {
	cases := map[string]string{
		"zero qty":          `{"items":[{"name":"Candle","price":1,"qty":0}]}`,
		"negative price":    `{"items":[{"name":"Candle","price":-1,"qty":1}]}`,
		"no name":           `{"items":[{"price":1,"qty":1}]}`,
		"negative shipping": `{"items":[{"name":"Candle","price":1,"qty":1}],"shipping":-2}`,
		"bad element":       `{"items":[1,2]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseOrderRequest(strings.NewReader(body))
			assert.True(t, errors.Is(err, ErrInvalidItem), "got %v", err)
		})
	}

	_, err := ParseOrderRequest(strings.NewReader(`{not json`))
	assert.True(t, errors.Is(err, ErrInvalidJSON))
}

func TestParseOrderRequestCurrencyAndShipping(t *testing.T) {
	req, err := ParseOrderRequest(strings.NewReader(`{"items":[{"name":"Charm","price":"3.10","qty":1}],"shipping":"4.5","currency":"eur"}`))
	require.NoError(t, err)
	assert.Equal(t, "EUR", req.Currency)
	assert.Equal(t, "4.5", req.Shipping.String())
}

func TestTotals(t *testing.T) {
	req := OrderRequest{
		Items: []CartItem{
			{Name: "Candle", Price: decimal.RequireFromString("12.50"), Qty: 2},
		},
		Shipping: decimal.NewFromInt(5),
	}
	tot := req.Totals()
	assert.Equal(t, "25.00", tot.Subtotal.StringFixed(2))
	assert.Equal(t, "5.00", tot.Shipping.StringFixed(2))
	assert.Equal(t, "30.00", tot.Total.StringFixed(2))
}

func TestTotalsRounding(t *testing.T) {
	items := []struct {
		price string
		qty   int
	}{
		{"0.105", 3},
		{"19.999", 1},
		{"1.005", 7},
		{"0", 4},
	}
	for _, shipping := range []string{"0", "2.345", "10"} {
		req := OrderRequest{Shipping: decimal.RequireFromString(shipping)}
		want := decimal.Zero
		for _, it := range items {
			p := decimal.RequireFromString(it.price)
			req.Items = append(req.Items, CartItem{Name: "x", Price: p, Qty: it.qty})
			want = want.Add(p.Mul(decimal.NewFromInt(int64(it.qty))))
		}
		tot := req.Totals()
		assert.True(t, want.Round(2).Equal(tot.Subtotal), "subtotal %s", tot.Subtotal)
		assert.True(t, tot.Subtotal.Add(req.Shipping).Round(2).Equal(tot.Total), "total %s", tot.Total)
		assert.True(t, tot.Total.Equal(tot.Total.Round(2)))
	}
}
