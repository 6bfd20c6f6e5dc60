// Package config reads the storefront configuration from the environment
// once at process start.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	LiveAPIBase    = "https://api-m.paypal.com"
	SandboxAPIBase = "https://api-m.sandbox.paypal.com"
)

type PayPal struct {
	ClientID     string
	ClientSecret string
	Env          string // live | sandbox
	APIBase      string
}

// Configured reports whether both gateway credentials are present.
func (p PayPal) Configured() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

type Config struct {
	Port             string
	BaseURL          string
	BrandName        string
	RequestTimeout   time.Duration
	DefaultLocale    string
	PayPal           PayPal
	CatalogueDir     string
	CatalogueBaseURL string
	UploadDir        string
	UploadLogPath    string
	UploadRatePerSec float64
	S3Bucket         string
	S3Region         string
	S3Endpoint       string
	DatabaseURL      string
	KafkaBrokers     string
	KafkaTopic       string
}

// Load reads a .env file when one exists in the working directory and then
// builds the Config from the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	toutMS, err := strconv.Atoi(getenv("REQUEST_TIMEOUT_MS", "10000"))
	if err != nil || toutMS <= 0 {
		return Config{}, fmt.Errorf("REQUEST_TIMEOUT_MS must be a positive integer")
	}
	rate, err := strconv.ParseFloat(getenv("UPLOAD_RATE_PER_SEC", "0"), 64)
	if err != nil || rate < 0 {
		return Config{}, fmt.Errorf("UPLOAD_RATE_PER_SEC must be a non-negative number")
	}

	port := getenv("PORT", "8080")
	baseURL := strings.TrimRight(getenv("BASE_URL", "http://localhost:"+port), "/")

	env := strings.ToLower(getenv("PAYPAL_ENV", "sandbox"))
	apiBase := SandboxAPIBase
	if env == "live" {
		apiBase = LiveAPIBase
	} else {
		env = "sandbox"
	}
	if override := getenv("PAYPAL_API_BASE", ""); override != "" {
		apiBase = override
	}

	tmp := os.TempDir()
	return Config{
		Port:           port,
		BaseURL:        baseURL,
		BrandName:      getenv("STORE_BRAND_NAME", "Velvet Charms"),
		RequestTimeout: time.Duration(toutMS) * time.Millisecond,
		DefaultLocale:  getenv("DEFAULT_LOCALE", "en"),
		PayPal: PayPal{
			ClientID:     getenv("PAYPAL_CLIENT_ID", ""),
			ClientSecret: getenv("PAYPAL_CLIENT_SECRET", ""),
			Env:          env,
			APIBase:      strings.TrimRight(apiBase, "/"),
		},
		CatalogueDir:     getenv("CATALOGUE_DIR", "data"),
		CatalogueBaseURL: strings.TrimRight(getenv("CATALOGUE_BASE_URL", ""), "/"),
		UploadDir:        getenv("UPLOAD_DIR", filepath.Join(tmp, "uploads")),
		UploadLogPath:    getenv("UPLOAD_LOG_PATH", filepath.Join(tmp, "submissions.json")),
		UploadRatePerSec: rate,
		S3Bucket:         getenv("UPLOAD_S3_BUCKET", ""),
		S3Region:         getenv("UPLOAD_S3_REGION", "us-east-1"),
		S3Endpoint:       getenv("UPLOAD_S3_ENDPOINT", ""),
		DatabaseURL:      getenv("DATABASE_URL", ""),
		KafkaBrokers:     getenv("KAFKA_BROKERS", ""),
		KafkaTopic:       getenv("KAFKA_TOPIC", "storefront.events"),
	}, nil
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
