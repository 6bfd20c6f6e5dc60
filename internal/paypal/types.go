package paypal

const (
	IntentCapture      = "CAPTURE"
	LandingPageBilling = "BILLING"
	UserActionPayNow   = "PAY_NOW"

	RelApprove = "approve"
)

type Money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type Breakdown struct {
	ItemTotal Money `json:"item_total"`
	Shipping  Money `json:"shipping"`
}

type Amount struct {
	CurrencyCode string     `json:"currency_code"`
	Value        string     `json:"value"`
	Breakdown    *Breakdown `json:"breakdown,omitempty"`
}

type Item struct {
	Name       string `json:"name"`
	UnitAmount Money  `json:"unit_amount"`
	Quantity   string `json:"quantity"`
}

type PurchaseUnit struct {
	Amount Amount `json:"amount"`
	Items  []Item `json:"items,omitempty"`
}

type ApplicationContext struct {
	BrandName   string `json:"brand_name,omitempty"`
	LandingPage string `json:"landing_page,omitempty"`
	UserAction  string `json:"user_action,omitempty"`
	ReturnURL   string `json:"return_url,omitempty"`
	CancelURL   string `json:"cancel_url,omitempty"`
}

type CreateOrderRequest struct {
	Intent             string             `json:"intent"`
	PurchaseUnits      []PurchaseUnit     `json:"purchase_units"`
	ApplicationContext ApplicationContext `json:"application_context"`
}

type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

// Order holds the fields of a gateway order this service reads. Unknown
// fields are ignored; callers that need them keep the raw response.
type Order struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []Link `json:"links"`
}

// ApprovalURL returns the href of the "approve" link, or "" when the gateway
// did not send one.
func (o Order) ApprovalURL() string {
	for _, l := range o.Links {
		if l.Rel == RelApprove {
			return l.Href
		}
	}
	return ""
}

type Capture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}
