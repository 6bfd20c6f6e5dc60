package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/drezzillah-prog/velvet-charms/internal/catalogue"
	"github.com/drezzillah-prog/velvet-charms/internal/checkout"
	"github.com/drezzillah-prog/velvet-charms/internal/config"
	"github.com/drezzillah-prog/velvet-charms/internal/i18n"
	"github.com/drezzillah-prog/velvet-charms/internal/paypal"
	"github.com/drezzillah-prog/velvet-charms/internal/upload"
	"github.com/drezzillah-prog/velvet-charms/pkg/contracts"
	"github.com/drezzillah-prog/velvet-charms/pkg/httpjson"
	"github.com/drezzillah-prog/velvet-charms/pkg/kafka"
	"github.com/drezzillah-prog/velvet-charms/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	srvMetrics := metrics.NewServerMetrics(reg, "storefront")

	bundle, err := i18n.Default(cfg.DefaultLocale)
	if err != nil {
		log.Fatalf("locale error: %v", err)
	}

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}

	var src catalogue.Source = catalogue.FSSource{FS: os.DirFS(cfg.CatalogueDir)}
	if cfg.CatalogueBaseURL != "" {
		src = catalogue.HTTPSource{BaseURL: cfg.CatalogueBaseURL, Client: httpClient}
	}
	renderer, err := catalogue.NewRenderer(src, bundle, srvMetrics)
	if err != nil {
		log.Fatalf("template error: %v", err)
	}

	var events contracts.Publisher = contracts.NopPublisher{}
	if pub, err := kafka.NewPublisher(kafka.NewClient(cfg.KafkaBrokers), cfg.KafkaTopic); err == nil {
		defer pub.Close()
		events = pub
	} else if !errors.Is(err, kafka.ErrDisabled) {
		log.Fatalf("kafka error: %v", err)
	}

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err = pgxpool.New(dbCtx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			log.Fatalf("db connect error: %v", err)
		}
		defer pool.Close()
	}

	uploads, err := newUploadHandler(ctx, cfg, pool, events, srvMetrics)
	if err != nil {
		log.Fatalf("upload setup error: %v", err)
	}

	opts := checkout.Options{
		BrandName: cfg.BrandName,
		BaseURL:   cfg.BaseURL,
		Metrics:   srvMetrics,
		Events:    events,
	}
	if cfg.PayPal.Configured() {
		opts.Gateway = paypal.NewClient(cfg.PayPal.APIBase, cfg.PayPal.ClientID, cfg.PayPal.ClientSecret, httpClient)
	} else {
		log.Printf("PAYPAL_CLIENT_ID/PAYPAL_CLIENT_SECRET not set, checkout disabled")
	}
	orders := checkout.NewHandler(opts)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/", renderer.Index)
	r.Get(checkout.CataloguePath, renderer.Index)
	r.Get("/category", renderer.Category)
	r.Get("/custom-order", renderer.CustomOrder)
	r.Handle("/data/*", http.StripPrefix("/data/", http.FileServer(http.Dir(cfg.CatalogueDir))))

	r.Get("/api/catalogue", renderer.APIIndex)
	r.Get("/api/catalogue/{category}", renderer.APICategory)

	r.Handle("/upload", uploads)
	r.HandleFunc("/order-creation", orders.CreateOrder)
	r.HandleFunc("/api/create-order", orders.CreateOrder)
	r.HandleFunc(checkout.CapturePath, orders.CaptureOrder)
	r.HandleFunc("/api/capture-order", orders.CaptureOrder)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if pool != nil {
			if err := pool.Ping(r.Context()); err != nil {
				httpjson.Write(w, http.StatusServiceUnavailable, map[string]any{"status": "db_error"})
				srvMetrics.Observe("health", http.StatusServiceUnavailable, start)
				return
			}
		}
		httpjson.Write(w, http.StatusOK, map[string]any{"status": "ok", "paypal": cfg.PayPal.Env, "checkout": cfg.PayPal.Configured()})
		srvMetrics.Observe("health", http.StatusOK, start)
	})
	r.Handle("/metrics", metrics.Handler(reg))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("storefront listening on :%s (PAYPAL_ENV=%s, BASE_URL=%s)", cfg.Port, cfg.PayPal.Env, cfg.BaseURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server error: %v", err)
	}
}

func newUploadHandler(ctx context.Context, cfg config.Config, pool *pgxpool.Pool, events contracts.Publisher, m *metrics.ServerMetrics) (*upload.Handler, error) {
	var store upload.FileStore = upload.LocalStore{Dir: cfg.UploadDir}
	if cfg.S3Bucket != "" {
		s3Store, err := upload.NewS3Store(ctx, upload.S3StoreConfig{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
			Prefix:   "uploads/",
		})
		if err != nil {
			return nil, err
		}
		store = s3Store
	}

	var submissions upload.Log = upload.NewFileLog(cfg.UploadLogPath)
	if pool != nil {
		pgLog, err := upload.NewPostgresLog(ctx, pool)
		if err != nil {
			return nil, err
		}
		submissions = pgLog
	}

	var limiter *rate.Limiter
	if cfg.UploadRatePerSec > 0 {
		burst := int(cfg.UploadRatePerSec)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.UploadRatePerSec), burst)
	}

	return upload.NewHandler(upload.Options{
		Store:   store,
		Log:     submissions,
		Events:  events,
		Metrics: m,
		Limiter: limiter,
	}), nil
}
