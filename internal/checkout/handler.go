package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/drezzillah-prog/velvet-charms/internal/paypal"
	"github.com/drezzillah-prog/velvet-charms/pkg/contracts"
	"github.com/drezzillah-prog/velvet-charms/pkg/httpjson"
	"github.com/drezzillah-prog/velvet-charms/pkg/logging"
	"github.com/drezzillah-prog/velvet-charms/pkg/metrics"
)

const service = "storefront"

// Gateway is the subset of the payment gateway the handlers use.
type Gateway interface {
	AccessToken(ctx context.Context) (string, error)
	CreateOrder(ctx context.Context, token string, in paypal.CreateOrderRequest) (paypal.Order, json.RawMessage, error)
	CaptureOrder(ctx context.Context, token, orderID string) (paypal.Capture, json.RawMessage, error)
}

type Options struct {
	// Gateway is nil when the gateway credentials are not configured.
	Gateway   Gateway
	BrandName string
	BaseURL   string
	Metrics   *metrics.ServerMetrics
	Events    contracts.Publisher
}

type Handler struct {
	gw      Gateway
	app     AppContext
	metrics *metrics.ServerMetrics
	events  contracts.Publisher
}

func NewHandler(opts Options) *Handler {
	events := opts.Events
	if events == nil {
		events = contracts.NopPublisher{}
	}
	return &Handler{
		gw:      opts.Gateway,
		app:     AppContext{BrandName: opts.BrandName, BaseURL: opts.BaseURL},
		metrics: opts.Metrics,
		events:  events,
	}
}

type createOrderResponse struct {
	Order       json.RawMessage `json:"order"`
	ApprovalURL *string         `json:"approvalUrl"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	code := h.createOrder(w, r, start)
	h.metrics.Observe("create_order", code, start)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request, start time.Time) int {
	if r.Method != http.MethodPost {
		httpjson.MethodNotAllowed(w)
		return http.StatusMethodNotAllowed
	}

	req, err := ParseOrderRequest(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		msg := err.Error()
		if errors.Is(err, ErrMissingItems) {
			msg = "Missing items"
		}
		httpjson.Error(w, http.StatusBadRequest, msg, nil)
		return http.StatusBadRequest
	}
	if h.gw == nil {
		httpjson.Error(w, http.StatusInternalServerError, "PayPal credentials not configured", nil)
		return http.StatusInternalServerError
	}

	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	token, err := h.gw.AccessToken(ctx)
	h.metrics.Gateway("token", err)
	if err != nil {
		logging.Log(logging.Fields{Service: service, RequestID: reqID, Step: "token", Status: "failed", Error: err.Error()})
		httpjson.Error(w, http.StatusInternalServerError, "PayPal auth failed", gatewayDetails(err))
		return http.StatusInternalServerError
	}

	order, raw, err := h.gw.CreateOrder(ctx, token, BuildGatewayOrder(req, h.app))
	h.metrics.Gateway("create_order", err)
	if err != nil {
		logging.Log(logging.Fields{Service: service, RequestID: reqID, Step: "create_order", Status: "failed", Error: err.Error()})
		httpjson.Error(w, http.StatusInternalServerError, "server error", gatewayDetails(err))
		return http.StatusInternalServerError
	}

	resp := createOrderResponse{Order: raw}
	if href := order.ApprovalURL(); href != "" {
		resp.ApprovalURL = &href
	}

	totals := req.Totals()
	logging.Log(logging.Fields{Service: service, RequestID: reqID, OrderID: order.ID, Step: "create_order", Status: order.Status,
		DurationMS: time.Since(start).Milliseconds()})
	h.publish(ctx, contracts.NewEvent(contracts.EventOrderCreated, order.ID, map[string]any{
		"total":    totals.Total.StringFixed(2),
		"currency": req.Currency,
		"items":    len(req.Items),
	}))

	httpjson.Write(w, http.StatusOK, resp)
	return http.StatusOK
}

func (h *Handler) publish(ctx context.Context, evt contracts.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := h.events.Publish(ctx, evt); err != nil {
		logging.Log(logging.Fields{Service: service, OrderID: evt.OrderID, EventID: evt.EventID, Step: evt.Type, Status: "publish_failed", Error: err.Error()})
	}
}

// gatewayDetails exposes the raw gateway body when there is one and the
// error text otherwise.
func gatewayDetails(err error) any {
	var apiErr *paypal.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Details()
	}
	return err.Error()
}
