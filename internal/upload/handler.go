// Package upload implements the custom-order attachment endpoint: a
// multipart form with an optional file, stored and recorded in an audit log.
package upload

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/drezzillah-prog/velvet-charms/pkg/contracts"
	"github.com/drezzillah-prog/velvet-charms/pkg/httpjson"
	"github.com/drezzillah-prog/velvet-charms/pkg/logging"
	"github.com/drezzillah-prog/velvet-charms/pkg/metrics"
)

const service = "storefront"

type Options struct {
	Store   FileStore
	Log     Log
	Events  contracts.Publisher
	Metrics *metrics.ServerMetrics
	// Limiter, when set, bounds the accepted upload rate.
	Limiter *rate.Limiter
	// StagingDir holds files while they are being received; defaults to
	// the system temp dir.
	StagingDir  string
	MaxFileSize int64
}

type Handler struct {
	store   FileStore
	log     Log
	events  contracts.Publisher
	metrics *metrics.ServerMetrics
	limiter *rate.Limiter
	staging string
	maxFile int64
	now     func() time.Time
}

func NewHandler(opts Options) *Handler {
	h := &Handler{
		store:   opts.Store,
		log:     opts.Log,
		events:  opts.Events,
		metrics: opts.Metrics,
		limiter: opts.Limiter,
		staging: opts.StagingDir,
		maxFile: opts.MaxFileSize,
		now:     time.Now,
	}
	if h.events == nil {
		h.events = contracts.NopPublisher{}
	}
	if h.staging == "" {
		h.staging = os.TempDir()
	}
	if h.maxFile <= 0 {
		h.maxFile = MaxFileSize
	}
	return h
}

type response struct {
	OK     bool              `json:"ok"`
	File   *FileDescriptor   `json:"file"`
	Fields map[string]string `json:"fields"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	code := h.serve(w, r)
	h.metrics.Observe("upload", code, start)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) int {
	if r.Method != http.MethodPost {
		httpjson.MethodNotAllowed(w)
		return http.StatusMethodNotAllowed
	}
	if h.limiter != nil && !h.limiter.Allow() {
		httpjson.Error(w, http.StatusTooManyRequests, "too many uploads", nil)
		return http.StatusTooManyRequests
	}

	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	fields, file, err := parseMultipart(r, h.staging, h.maxFile)
	if err != nil {
		logging.Log(logging.Fields{Service: service, RequestID: reqID, Step: "upload_parse", Status: "failed", Error: err.Error()})
		httpjson.Error(w, http.StatusInternalServerError, "parse failed", nil)
		return http.StatusInternalServerError
	}

	var desc *FileDescriptor
	if file != nil {
		name := uuid.NewString() + filepath.Ext(file.originalName)
		path, err := h.store.Put(ctx, name, file.path)
		if err != nil {
			file.remove()
			logging.Log(logging.Fields{Service: service, RequestID: reqID, Step: "upload_store", Status: "failed", Error: err.Error()})
			httpjson.Error(w, http.StatusInternalServerError, "upload failed", nil)
			return http.StatusInternalServerError
		}
		desc = &FileDescriptor{Name: name, OriginalName: file.originalName, Size: file.size, Path: path}
	}

	rec := Record{Timestamp: h.now().UTC(), Fields: fields, File: desc}
	if err := h.log.Append(ctx, rec); err != nil {
		logging.Log(logging.Fields{Service: service, RequestID: reqID, Step: "upload_log", Status: "failed", Error: err.Error()})
	}
	h.publish(ctx, rec)

	logging.Log(logging.Fields{Service: service, RequestID: reqID, Step: "upload", Status: "received"})
	httpjson.Write(w, http.StatusOK, response{OK: true, File: desc, Fields: fields})
	return http.StatusOK
}

func (h *Handler) publish(ctx context.Context, rec Record) {
	payload := map[string]any{"fields": rec.Fields}
	if rec.File != nil {
		payload["file"] = rec.File
	}
	evt := contracts.NewEvent(contracts.EventUploadReceived, "", payload)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := h.events.Publish(ctx, evt); err != nil {
		logging.Log(logging.Fields{Service: service, EventID: evt.EventID, Step: evt.Type, Status: "publish_failed", Error: err.Error()})
	}
}
