package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/drezzillah-prog/velvet-charms/internal/notify"
	"github.com/drezzillah-prog/velvet-charms/pkg/kafka"
	"github.com/drezzillah-prog/velvet-charms/pkg/metrics"
)

type cfg struct {
	Port         string
	DatabaseURL  string
	KafkaBrokers string
	Topic        string
	GroupID      string
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("env file error: %v", err)
	}
	cfg, err := readCfg()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	defer pool.Close()
	inbox, err := notify.NewPostgresInbox(ctx, pool)
	if err != nil {
		log.Fatalf("db schema error: %v", err)
	}

	reg := prometheus.NewRegistry()
	srvMetrics := metrics.NewServerMetrics(reg, "notification_service")
	consumed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "velvet",
		Subsystem: "notification_service",
		Name:      "events_total",
		Help:      "Consumed storefront events by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(consumed)

	kafkaClient := kafka.NewClient(cfg.KafkaBrokers)
	if kafkaClient.Enabled() {
		go consumeEvents(notify.NewConsumer(inbox), kafkaClient, cfg, consumed)
	} else {
		log.Printf("KAFKA_BROKERS not set, consumer disabled")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if err := inbox.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "db_error"})
			srvMetrics.Observe("health", http.StatusServiceUnavailable, start)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		srvMetrics.Observe("health", http.StatusOK, start)
	})
	mux.Handle("/metrics", metrics.Handler(reg))

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log.Printf("notification-service listening on :%s", cfg.Port)
	log.Fatal(srv.ListenAndServe())
}

func readCfg() (cfg, error) {
	port := getenv("PORT", "8081")
	db := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if db == "" {
		return cfg{}, errors.New("DATABASE_URL is required")
	}
	return cfg{
		Port:         port,
		DatabaseURL:  db,
		KafkaBrokers: getenv("KAFKA_BROKERS", ""),
		Topic:        getenv("KAFKA_TOPIC", "storefront.events"),
		GroupID:      getenv("KAFKA_GROUP_ID", "notification-service"),
	}, nil
}

func consumeEvents(c *notify.Consumer, client *kafka.Client, cfg cfg, consumed *prometheus.CounterVec) {
	reader := client.NewReader(cfg.Topic, cfg.GroupID)
	defer reader.Close()
	for {
		msg, err := reader.ReadMessage(context.Background())
		if err != nil {
			log.Printf("kafka read error: %v", err)
			time.Sleep(2 * time.Second)
			continue
		}
		if err := c.Handle(context.Background(), msg.Value); err != nil {
			log.Printf("event handle error: %v", err)
			consumed.WithLabelValues("error").Inc()
			continue
		}
		consumed.WithLabelValues("ok").Inc()
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
