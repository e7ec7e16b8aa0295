package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"CATALOG_PRODUCTS_URL": "https://cdn.example.com/store/products.json",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second || cfg.Server.WriteTimeout != 30*time.Second {
		t.Errorf("unexpected timeouts: %s/%s", cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
	}
	if cfg.Server.IdleTimeout != time.Minute || cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("unexpected idle/shutdown timeouts: %s/%s", cfg.Server.IdleTimeout, cfg.Server.ShutdownTimeout)
	}
	if cfg.Images.BaseURL != "https://cdn.example.com/store/" {
		t.Errorf("expected image base to default to the products directory, got %q", cfg.Images.BaseURL)
	}
	if cfg.Images.Concurrency != 4 || cfg.Images.MaxBytes != 5<<20 {
		t.Errorf("unexpected image defaults: %+v", cfg.Images)
	}
	if cfg.Images.CacheTTL != 10*time.Minute || cfg.Images.Timeout != 5*time.Second {
		t.Errorf("unexpected image durations: %+v", cfg.Images)
	}
	if cfg.Session.TTL != 30*time.Minute || cfg.Session.SweepInterval != time.Minute {
		t.Errorf("unexpected session defaults: %+v", cfg.Session)
	}
	if cfg.Session.Secure() {
		t.Errorf("local environment should not use secure cookies")
	}
	if cfg.Render.SettleTimeout != 3*time.Second {
		t.Errorf("unexpected settle timeout: %s", cfg.Render.SettleTimeout)
	}
	if cfg.Web.TemplatesDir != "templates" || cfg.Web.PublicDir != "public" || cfg.Web.LocalesDir != "locales" {
		t.Errorf("unexpected web dirs: %+v", cfg.Web)
	}
	if cfg.Web.DefaultLocale != "en" || cfg.Web.Dev {
		t.Errorf("unexpected web defaults: %+v", cfg.Web)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("unexpected log level %q", cfg.LogLevel)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	env := map[string]string{
		"PORT":                           "7070",
		"CATALOG_SERVER_PORT":            "9090",
		"CATALOG_PRODUCTS_FILE":          "testdata/products.json",
		"CATALOG_IMAGES_BUCKET":          "catalog-assets",
		"CATALOG_IMAGES_CONCURRENCY":     "8",
		"CATALOG_IMAGES_CACHE_TTL":       "1m",
		"CATALOG_SESSION_SIGNING_KEY":    "k",
		"CATALOG_ENV":                    "PROD",
		"CATALOG_RENDER_SETTLE_TIMEOUT":  "0s",
		"CATALOG_DEV":                    "yes",
		"CATALOG_DEFAULT_LOCALE":         "JA",
		"CATALOG_SESSION_SWEEP_INTERVAL": "not-a-duration",
		"LOG_LEVEL":                      "DEBUG",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("expected CATALOG_SERVER_PORT to win, got %s", cfg.Server.Port)
	}
	if cfg.Products.File != "testdata/products.json" || cfg.Products.URL != "" {
		t.Errorf("unexpected products config: %+v", cfg.Products)
	}
	if cfg.Images.Bucket != "catalog-assets" || cfg.Images.BaseURL != "" {
		t.Errorf("unexpected images config: %+v", cfg.Images)
	}
	if cfg.Images.Concurrency != 8 || cfg.Images.CacheTTL != time.Minute {
		t.Errorf("unexpected image overrides: %+v", cfg.Images)
	}
	if !cfg.Session.Secure() {
		t.Errorf("prod environment should use secure cookies")
	}
	if cfg.Session.SweepInterval != time.Minute {
		t.Errorf("invalid duration should fall back to default, got %s", cfg.Session.SweepInterval)
	}
	if cfg.Render.SettleTimeout != 0 || !cfg.Web.Dev || cfg.Web.DefaultLocale != "ja" || cfg.LogLevel != "debug" {
		t.Errorf("unexpected overrides: %+v %+v %s", cfg.Render, cfg.Web, cfg.LogLevel)
	}
}

func TestLoadPortFallback(t *testing.T) {
	env := map[string]string{
		"PORT":                 "7070",
		"CATALOG_PRODUCTS_URL": "http://localhost:9000/products.json",
	}
	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("expected PORT fallback, got %s", cfg.Server.Port)
	}
	if cfg.Images.BaseURL != "http://localhost:9000/" {
		t.Errorf("unexpected image base %q", cfg.Images.BaseURL)
	}
}

func TestLoadValidationErrors(t *testing.T) {
	env := map[string]string{
		"CATALOG_PRODUCTS_URL":       "ftp://example.com/products.json",
		"CATALOG_IMAGES_CONCURRENCY": "0",
		"CATALOG_ENV":                "prod",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := map[string]bool{
		"Products.URL":       true,
		"Images.BaseURL":     true,
		"Images.Concurrency": true,
		"Session.SigningKey": true,
	}
	for _, field := range vErr.Fields() {
		delete(want, field)
	}
	if len(want) != 0 {
		t.Fatalf("missing validation fields %v in %v", want, vErr.Fields())
	}
}

func TestLoadRequiresProductsSource(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := `# local overrides
export CATALOG_PRODUCTS_URL="https://example.com/products.json"
CATALOG_IMAGES_TIMEOUT=2s
CATALOG_SERVER_PORT='6060'
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(),
		WithEnvFile(path),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{"CATALOG_SERVER_PORT": "5050"}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Products.URL != "https://example.com/products.json" {
		t.Errorf("unexpected products url %q", cfg.Products.URL)
	}
	if cfg.Images.Timeout != 2*time.Second {
		t.Errorf("unexpected image timeout %s", cfg.Images.Timeout)
	}
	if cfg.Server.Port != "5050" {
		t.Errorf("explicit env map should win over .env, got %s", cfg.Server.Port)
	}
}

func TestLoadHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Load(ctx, WithoutSystemEnv(), WithEnvFile("")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
