package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drezzillah-prog/velvet-charms/internal/paypal"
	"github.com/drezzillah-prog/velvet-charms/pkg/contracts"
	"github.com/drezzillah-prog/velvet-charms/pkg/metrics"
)

// fakeGateway stands in for the payment gateway in handler tests.
type fakeGateway struct {
	mu         sync.Mutex
	tokenErr   error
	createErr  error
	captureErr error
	order      paypal.Order
	orderRaw   string
	captureRaw string

	tokenCalls int
	created    []paypal.CreateOrderRequest
	captured   []string
}

func (f *fakeGateway) AccessToken(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenCalls++
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return "tok", nil
}

func (f *fakeGateway) CreateOrder(_ context.Context, _ string, in paypal.CreateOrderRequest) (paypal.Order, json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in)
	return f.order, json.RawMessage(f.orderRaw), f.createErr
}

func (f *fakeGateway) CaptureOrder(_ context.Context, _ string, orderID string) (paypal.Capture, json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captured = append(f.captured, orderID)
	var c paypal.Capture
	_ = json.Unmarshal([]byte(f.captureRaw), &c)
	return c, json.RawMessage(f.captureRaw), f.captureErr
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []contracts.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt contracts.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func newTestHandler(gw Gateway, pub contracts.Publisher) *Handler {
	return NewHandler(Options{
		Gateway:   gw,
		BrandName: "Velvet Charms",
		BaseURL:   "https://shop.example.com",
		Metrics:   metrics.NewServerMetrics(prometheus.NewRegistry(), "test"),
		Events:    pub,
	})
}

func postJSON(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/order-creation", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestCreateOrderMethodNotAllowed(t *testing.T) {
	h := newTestHandler(&fakeGateway{}, nil)
	rec := httptest.NewRecorder()
	h.CreateOrder(rec, httptest.NewRequest(http.MethodGet, "/order-creation", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCreateOrderMissingItems(t *testing.T) {
	gw := &fakeGateway{}
	h := newTestHandler(gw, nil)

	for _, body := range []string{`{}`, `{"items":"x"}`, `{"items":[]}`} {
		rec := postJSON(h.CreateOrder, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Zero(t, gw.tokenCalls)

	rec := postJSON(h.CreateOrder, `{}`)
	assert.Contains(t, rec.Body.String(), "Missing items")
}

func TestCreateOrderWithoutCredentials(t *testing.T) {
	h := newTestHandler(nil, nil)
	rec := postJSON(h.CreateOrder, `{"items":[{"name":"Candle","price":12.5,"qty":2}]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "not configured")
}

func TestCreateOrderAuthFailure(t *testing.T) {
	gw := &fakeGateway{tokenErr: errors.Join(paypal.ErrAuth, &paypal.APIError{Op: "token", StatusCode: 401, Body: []byte(`{"error":"invalid_client"}`)})}
	h := newTestHandler(gw, nil)

	rec := postJSON(h.CreateOrder, `{"items":[{"name":"Candle","price":12.5,"qty":2}]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "PayPal auth failed", body["error"])
	assert.Equal(t, map[string]any{"error": "invalid_client"}, body["details"])
	assert.Empty(t, gw.created)
}

func TestCreateOrderGatewayFailure(t *testing.T) {
	gw := &fakeGateway{createErr: &paypal.APIError{Op: "create_order", StatusCode: 400, Body: []byte(`{"name":"INVALID_REQUEST"}`)}}
	h := newTestHandler(gw, nil)

	rec := postJSON(h.CreateOrder, `{"items":[{"name":"Candle","price":12.5,"qty":2}]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_REQUEST")
}

func TestCreateOrderSuccess(t *testing.T) {
	gw := &fakeGateway{
		order:    paypal.Order{ID: "ORDER1", Status: "CREATED", Links: []paypal.Link{{Rel: "approve", Href: "https://gw/approve?token=ORDER1"}}},
		orderRaw: `{"id":"ORDER1","status":"CREATED","links":[{"rel":"approve","href":"https://gw/approve?token=ORDER1"}]}`,
	}
	pub := &recordingPublisher{}
	h := newTestHandler(gw, pub)

	rec := postJSON(h.CreateOrder, `{"items":[{"name":"Candle","price":12.50,"qty":2}],"shipping":5}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Order       map[string]any `json:"order"`
		ApprovalURL *string        `json:"approvalUrl"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ORDER1", body.Order["id"])
	require.NotNil(t, body.ApprovalURL)
	assert.Equal(t, "https://gw/approve?token=ORDER1", *body.ApprovalURL)

	require.Len(t, gw.created, 1)
	amount := gw.created[0].PurchaseUnits[0].Amount
	assert.Equal(t, "30.00", amount.Value)
	assert.Equal(t, "25.00", amount.Breakdown.ItemTotal.Value)
	assert.Equal(t, "5.00", amount.Breakdown.Shipping.Value)

	require.Len(t, pub.events, 1)
	assert.Equal(t, contracts.EventOrderCreated, pub.events[0].Type)
	assert.Equal(t, "ORDER1", pub.events[0].OrderID)
}

func TestCreateOrderNoApprovalLink(t *testing.T) {
	gw := &fakeGateway{order: paypal.Order{ID: "ORDER2"}, orderRaw: `{"id":"ORDER2","links":[]}`}
	h := newTestHandler(gw, nil)

	rec := postJSON(h.CreateOrder, `{"items":[{"name":"Candle","price":1,"qty":1}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"approvalUrl":null`)
}

func TestResolveOrderIDPriority(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/order-capture?token=FROM_TOKEN&orderId=FROM_QUERY", strings.NewReader(`{"orderID":"FROM_BODY"}`))
	assert.Equal(t, "FROM_TOKEN", ResolveOrderID(req))

	req = httptest.NewRequest(http.MethodPost, "/order-capture?orderId=FROM_QUERY", strings.NewReader(`{"orderID":"FROM_BODY"}`))
	assert.Equal(t, "FROM_BODY", ResolveOrderID(req))

	req = httptest.NewRequest(http.MethodPost, "/order-capture?orderId=FROM_QUERY", strings.NewReader(`not json`))
	assert.Equal(t, "FROM_QUERY", ResolveOrderID(req))

	req = httptest.NewRequest(http.MethodPost, "/order-capture", strings.NewReader("orderID=FROM_FORM"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, "FROM_FORM", ResolveOrderID(req))

	req = httptest.NewRequest(http.MethodGet, "/order-capture", nil)
	assert.Equal(t, "", ResolveOrderID(req))
}

func TestCaptureOrderMissingID(t *testing.T) {
	gw := &fakeGateway{}
	h := newTestHandler(gw, nil)
	rec := httptest.NewRecorder()
	h.CaptureOrder(rec, httptest.NewRequest(http.MethodGet, "/order-capture", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Missing order ID")
	assert.Zero(t, gw.tokenCalls)
}

func TestCaptureOrderTokenWinsOverBody(t *testing.T) {
	gw := &fakeGateway{captureRaw: `{"id":"CAP1","status":"COMPLETED"}`}
	h := newTestHandler(gw, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/order-capture?token=A", strings.NewReader(`{"orderID":"B"}`))
	h.CaptureOrder(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"A"}, gw.captured)
}

func TestCaptureOrderFailure(t *testing.T) {
	gw := &fakeGateway{captureErr: &paypal.APIError{Op: "capture_order", StatusCode: 422, Body: []byte(`{"name":"ORDER_NOT_APPROVED"}`)}}
	h := newTestHandler(gw, nil)
	rec := httptest.NewRecorder()
	h.CaptureOrder(rec, httptest.NewRequest(http.MethodGet, "/order-capture?token=X", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Capture failed")
	assert.Contains(t, rec.Body.String(), "ORDER_NOT_APPROVED")
}

func TestTokenFetchedPerRequest(t *testing.T) {
	gw := &fakeGateway{captureRaw: `{"status":"COMPLETED"}`}
	h := newTestHandler(gw, nil)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.CaptureOrder(rec, httptest.NewRequest(http.MethodGet, "/order-capture?token=X", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 2, gw.tokenCalls)
}

// newGatewayServer mocks the gateway HTTP API for end-to-end tests.
func newGatewayServer(t *testing.T, captureBody string) (*httptest.Server, *[]map[string]any) {
	t.Helper()
	var created []map[string]any
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/oauth2/token":
			_, _ = io.WriteString(w, `{"access_token":"tok"}`)
		case r.URL.Path == "/v2/checkout/orders":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			mu.Lock()
			created = append(created, body)
			mu.Unlock()
			_, _ = io.WriteString(w, `{"id":"ORDER123","status":"CREATED","links":[{"rel":"approve","href":"https://gw/checkoutnow?token=ORDER123"}]}`)
		case strings.HasSuffix(r.URL.Path, "/capture"):
			_, _ = io.WriteString(w, captureBody)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &created
}

func TestEndToEndCreateOrder(t *testing.T) {
	srv, created := newGatewayServer(t, `{}`)
	h := newTestHandler(paypal.NewClient(srv.URL, "id", "secret", srv.Client()), nil)

	rec := postJSON(h.CreateOrder, `{"items":[{"name":"Candle","price":12.50,"qty":2}],"shipping":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://gw/checkoutnow?token=ORDER123")

	require.Len(t, *created, 1)
	pu := (*created)[0]["purchase_units"].([]any)[0].(map[string]any)
	amount := pu["amount"].(map[string]any)
	assert.Equal(t, "30.00", amount["value"])
	breakdown := amount["breakdown"].(map[string]any)
	assert.Equal(t, "25.00", breakdown["item_total"].(map[string]any)["value"])
	assert.Equal(t, "5.00", breakdown["shipping"].(map[string]any)["value"])
}

func TestEndToEndCaptureOrder(t *testing.T) {
	srv, _ := newGatewayServer(t, `{"id":"ORDER123","status":"COMPLETED"}`)
	pub := &recordingPublisher{}
	h := newTestHandler(paypal.NewClient(srv.URL, "id", "secret", srv.Client()), pub)

	rec := httptest.NewRecorder()
	h.CaptureOrder(rec, httptest.NewRequest(http.MethodGet, "/order-capture?token=ORDER123", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "Payment Received")
	assert.Contains(t, body, "COMPLETED")
	assert.Contains(t, body, `href="https://shop.example.com/"`)

	require.Len(t, pub.events, 1)
	assert.Equal(t, contracts.EventPaymentCaptured, pub.events[0].Type)
}
