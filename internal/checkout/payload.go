package checkout

import (
	"strconv"

	"github.com/drezzillah-prog/velvet-charms/internal/paypal"
)

const (
	CapturePath   = "/order-capture"
	CataloguePath = "/catalogue"
)

// AppContext is the fixed part of the gateway application context.
type AppContext struct {
	BrandName string
	BaseURL   string
}

// BuildGatewayOrder turns a validated order into the gateway payload: an
// immediate-capture intent with a single purchase unit.
func BuildGatewayOrder(o OrderRequest, app AppContext) paypal.CreateOrderRequest {
	t := o.Totals()
	money := func(v string) paypal.Money {
		return paypal.Money{CurrencyCode: o.Currency, Value: v}
	}

	items := make([]paypal.Item, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, paypal.Item{
			Name:       it.Name,
			UnitAmount: money(it.Price.StringFixed(2)),
			Quantity:   strconv.Itoa(it.Qty),
		})
	}

	return paypal.CreateOrderRequest{
		Intent: paypal.IntentCapture,
		PurchaseUnits: []paypal.PurchaseUnit{{
			Amount: paypal.Amount{
				CurrencyCode: o.Currency,
				Value:        t.Total.StringFixed(2),
				Breakdown: &paypal.Breakdown{
					ItemTotal: money(t.Subtotal.StringFixed(2)),
					Shipping:  money(t.Shipping.StringFixed(2)),
				},
			},
			Items: items,
		}},
		ApplicationContext: paypal.ApplicationContext{
			BrandName:   app.BrandName,
			LandingPage: paypal.LandingPageBilling,
			UserAction:  paypal.UserActionPayNow,
			ReturnURL:   app.BaseURL + CapturePath,
			CancelURL:   app.BaseURL + CataloguePath,
		},
	}
}
