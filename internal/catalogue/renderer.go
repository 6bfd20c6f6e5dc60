package catalogue

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/drezzillah-prog/velvet-charms/internal/i18n"
	"github.com/drezzillah-prog/velvet-charms/pkg/httpjson"
	"github.com/drezzillah-prog/velvet-charms/pkg/logging"
	"github.com/drezzillah-prog/velvet-charms/pkg/metrics"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

type tile struct {
	Key   string
	Label string
	URL   string
}

type view struct {
	Lang  string
	T     func(string) string
	Title string
	Error string
	Tiles []tile
	Items []Item
}

// Renderer serves the catalogue pages and their JSON counterparts.
type Renderer struct {
	src     Source
	tr      *i18n.Bundle
	metrics *metrics.ServerMetrics
	pages   map[string]*template.Template
}

func NewRenderer(src Source, tr *i18n.Bundle, m *metrics.ServerMetrics) (*Renderer, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{"index", "category", "custom_order"} {
		t, err := template.ParseFS(templateFS, "templates/layout.tmpl", "templates/"+name+".tmpl")
		if err != nil {
			return nil, err
		}
		pages[name] = t
	}
	return &Renderer{src: src, tr: tr, metrics: m, pages: pages}, nil
}

func (rd *Renderer) newView(r *http.Request) view {
	lang := rd.tr.Negotiate(r)
	return view{Lang: lang, T: func(key string) string { return rd.tr.T(lang, key) }}
}

func (rd *Renderer) Index(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	v := rd.newView(r)
	code := http.StatusOK

	ix, err := rd.src.Index(r.Context())
	if err != nil {
		rd.logFailure(r, "catalogue_index", err)
		v.Error = v.T("catalogue.error")
		code = http.StatusServiceUnavailable
	}
	for _, key := range ix.Keys() {
		v.Tiles = append(v.Tiles, tile{Key: key, Label: Label(key), URL: "/category?category=" + url.QueryEscape(key)})
	}

	rd.render(w, code, "index", v)
	rd.metrics.Observe("catalogue_index", code, start)
}

func (rd *Renderer) Category(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	v := rd.newView(r)
	key := r.URL.Query().Get("category")
	code := http.StatusOK

	ix, err := rd.src.Index(r.Context())
	if err != nil {
		rd.logFailure(r, "catalogue_index", err)
	}
	if p, ok := ix[key]; err != nil || !ok || key == "" {
		v.Title = v.T("category.not_found")
		v.Error = v.T("category.not_found")
		code = http.StatusNotFound
	} else if items, err := rd.src.Items(r.Context(), p); err != nil {
		rd.logFailure(r, "catalogue_category", err)
		v.Title = Label(key)
		v.Error = v.T("category.error")
		code = http.StatusServiceUnavailable
	} else {
		v.Title = Label(key)
		v.Items = items
	}

	rd.render(w, code, "category", v)
	rd.metrics.Observe("catalogue_category", code, start)
}

func (rd *Renderer) CustomOrder(w http.ResponseWriter, r *http.Request) {
	v := rd.newView(r)
	v.Title = v.T("upload.heading")
	rd.render(w, http.StatusOK, "custom_order", v)
}

type apiCategory struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Path  string `json:"path"`
}

func (rd *Renderer) APIIndex(w http.ResponseWriter, r *http.Request) {
	ix, err := rd.src.Index(r.Context())
	if err != nil {
		rd.logFailure(r, "api_catalogue", err)
		httpjson.Error(w, http.StatusServiceUnavailable, "unable to load catalogue", nil)
		return
	}
	out := make([]apiCategory, 0, len(ix))
	for _, key := range ix.Keys() {
		out = append(out, apiCategory{Key: key, Label: Label(key), Path: ix[key]})
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"categories": out})
}

func (rd *Renderer) APICategory(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "category")
	items, err := CategoryItems(r.Context(), rd.src, key)
	if errors.Is(err, ErrUnknownCategory) {
		httpjson.Error(w, http.StatusNotFound, "category not found", nil)
		return
	}
	if err != nil {
		rd.logFailure(r, "api_category", err)
		httpjson.Error(w, http.StatusServiceUnavailable, "unable to load items", nil)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"category": key, "label": Label(key), "items": items})
}

func (rd *Renderer) render(w http.ResponseWriter, code int, page string, v view) {
	var buf bytes.Buffer
	if err := rd.pages[page].ExecuteTemplate(&buf, "layout", v); err != nil {
		logging.Log(logging.Fields{Service: "storefront", Step: "render_" + page, Status: "failed", Error: err.Error()})
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, _ = buf.WriteTo(w)
}

func (rd *Renderer) logFailure(r *http.Request, step string, err error) {
	logging.Log(logging.Fields{Service: "storefront", RequestID: middleware.GetReqID(r.Context()), Step: step, Status: "failed", Error: err.Error()})
}
