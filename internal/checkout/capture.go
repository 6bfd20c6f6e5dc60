package checkout

import (
	"bytes"
	"encoding/json"
	"html/template"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/drezzillah-prog/velvet-charms/pkg/contracts"
	"github.com/drezzillah-prog/velvet-charms/pkg/logging"
)

var pageTmpl = template.Must(template.New("capture").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
{{if .Message}}<p>{{.Message}}</p>{{end}}
{{if .Details}}<pre>{{.Details}}</pre>{{end}}
<p><a href="{{.HomeURL}}">Back to the shop</a></p>
</body>
</html>
`))

type page struct {
	Title   string
	Message string
	Details string
	HomeURL string
}

// ResolveOrderID picks the order identifier: the gateway redirect "token"
// query parameter, then the body "orderID", then the "orderId" query parameter.
func ResolveOrderID(r *http.Request) string {
	q := r.URL.Query()
	if id := strings.TrimSpace(q.Get("token")); id != "" {
		return id
	}
	if id := bodyOrderID(r); id != "" {
		return id
	}
	return strings.TrimSpace(q.Get("orderId"))
}

func bodyOrderID(r *http.Request) string {
	if r.Body == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return ""
	}
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "application/x-www-form-urlencoded" {
		vals, err := url.ParseQuery(string(data))
		if err != nil {
			return ""
		}
		return strings.TrimSpace(vals.Get("orderID"))
	}
	var body struct {
		OrderID string `json:"orderID"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	return strings.TrimSpace(body.OrderID)
}

func (h *Handler) CaptureOrder(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	code := h.captureOrder(w, r, start)
	h.metrics.Observe("capture_order", code, start)
}

func (h *Handler) captureOrder(w http.ResponseWriter, r *http.Request, start time.Time) int {
	orderID := ResolveOrderID(r)
	if orderID == "" {
		return h.render(w, http.StatusBadRequest, page{Title: "Capture failed", Message: "Missing order ID"})
	}
	if h.gw == nil {
		return h.render(w, http.StatusInternalServerError, page{Title: "Capture failed", Message: "PayPal credentials not configured"})
	}

	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	token, err := h.gw.AccessToken(ctx)
	h.metrics.Gateway("token", err)
	if err != nil {
		logging.Log(logging.Fields{Service: service, RequestID: reqID, OrderID: orderID, Step: "token", Status: "failed", Error: err.Error()})
		return h.render(w, http.StatusInternalServerError, page{Title: "Capture failed", Message: "PayPal auth failed", Details: detailText(gatewayDetails(err))})
	}

	capture, raw, err := h.gw.CaptureOrder(ctx, token, orderID)
	h.metrics.Gateway("capture_order", err)
	if err != nil {
		logging.Log(logging.Fields{Service: service, RequestID: reqID, OrderID: orderID, Step: "capture_order", Status: "failed", Error: err.Error()})
		return h.render(w, http.StatusInternalServerError, page{Title: "Capture failed", Message: "The payment could not be captured.", Details: detailText(gatewayDetails(err))})
	}

	logging.Log(logging.Fields{Service: service, RequestID: reqID, OrderID: orderID, Step: "capture_order", Status: capture.Status,
		DurationMS: time.Since(start).Milliseconds()})
	h.publish(ctx, contracts.NewEvent(contracts.EventPaymentCaptured, orderID, map[string]any{
		"capture_id": capture.ID,
		"status":     capture.Status,
	}))

	return h.render(w, http.StatusOK, page{
		Title:   "Payment Received",
		Message: "Thank you! Your payment has been captured.",
		Details: detailText(json.RawMessage(raw)),
	})
}

func (h *Handler) render(w http.ResponseWriter, code int, p page) int {
	p.HomeURL = h.app.BaseURL + "/"
	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, p); err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, _ = buf.WriteTo(w)
	return code
}

// detailText pretty-prints JSON diagnostics and passes strings through.
func detailText(v any) string {
	switch d := v.(type) {
	case json.RawMessage:
		var out bytes.Buffer
		if err := json.Indent(&out, d, "", "  "); err != nil {
			return string(d)
		}
		return out.String()
	case string:
		return d
	default:
		data, _ := json.MarshalIndent(d, "", "  ")
		return string(data)
	}
}
