package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile           = ".env"
	defaultPort              = "8080"
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 60 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultFetchTimeout      = 8 * time.Second
	defaultImagesConcurrency = 4
	defaultImagesTimeout     = 5 * time.Second
	defaultImagesCacheTTL    = 10 * time.Minute
	defaultImagesMaxBytes    = 5 << 20
	defaultSessionTTL        = 30 * time.Minute
	defaultSweepInterval     = time.Minute
	defaultEnvironment       = "local"
	defaultSettleTimeout     = 3 * time.Second
	defaultTemplatesDir      = "templates"
	defaultPublicDir         = "public"
	defaultLocalesDir        = "locales"
	defaultLocale            = "en"
	defaultLogLevel          = "info"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server   ServerConfig
	Products ProductsConfig
	Images   ImagesConfig
	Session  SessionConfig
	Render   RenderConfig
	Web      WebConfig
	LogLevel string
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// ProductsConfig locates the product list. Exactly one of URL and File is used;
// URL wins when both are set.
type ProductsConfig struct {
	URL          string
	File         string
	FetchTimeout time.Duration
}

// ImagesConfig controls where product images come from. Bucket wins over BaseURL.
type ImagesConfig struct {
	BaseURL     string
	Bucket      string
	Concurrency int
	Timeout     time.Duration
	CacheTTL    time.Duration
	MaxBytes    int64
}

// SessionConfig controls visitor view sessions and their cookie.
type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
	SigningKey    string
	Environment   string
}

// Secure reports whether session cookies should carry the Secure flag.
func (s SessionConfig) Secure() bool {
	return strings.EqualFold(s.Environment, "prod")
}

// RenderConfig bounds how long a full page waits for images before responding.
type RenderConfig struct {
	SettleTimeout time.Duration
}

// WebConfig locates templates, static assets and locale files.
type WebConfig struct {
	TemplatesDir  string
	PublicDir     string
	LocalesDir    string
	DefaultLocale string
	Dev           bool
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables and an optional explicit map.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	if err := ctx.Err(); err != nil {
		return Config{}, err
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if v, ok := options.envMap[key]; ok {
				return v, true
			}
		}
		if options.useSystemEnv {
			if v, ok := os.LookupEnv(key); ok {
				return v, true
			}
		}
		if dotEnvValues != nil {
			if v, ok := dotEnvValues[key]; ok {
				return v, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "CATALOG_SERVER_PORT", stringWithDefault(lookup, "PORT", defaultPort)),
			ReadTimeout:     durationWithDefault(lookup, "CATALOG_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "CATALOG_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "CATALOG_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "CATALOG_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Products: ProductsConfig{
			URL:          strings.TrimSpace(stringWithDefault(lookup, "CATALOG_PRODUCTS_URL", "")),
			File:         strings.TrimSpace(stringWithDefault(lookup, "CATALOG_PRODUCTS_FILE", "")),
			FetchTimeout: durationWithDefault(lookup, "CATALOG_FETCH_TIMEOUT", defaultFetchTimeout),
		},
		Images: ImagesConfig{
			BaseURL:     strings.TrimSpace(stringWithDefault(lookup, "CATALOG_IMAGES_BASE_URL", "")),
			Bucket:      strings.TrimSpace(stringWithDefault(lookup, "CATALOG_IMAGES_BUCKET", "")),
			Concurrency: intWithDefault(lookup, "CATALOG_IMAGES_CONCURRENCY", defaultImagesConcurrency),
			Timeout:     durationWithDefault(lookup, "CATALOG_IMAGES_TIMEOUT", defaultImagesTimeout),
			CacheTTL:    durationWithDefault(lookup, "CATALOG_IMAGES_CACHE_TTL", defaultImagesCacheTTL),
			MaxBytes:    int64(intWithDefault(lookup, "CATALOG_IMAGES_MAX_BYTES", defaultImagesMaxBytes)),
		},
		Session: SessionConfig{
			TTL:           durationWithDefault(lookup, "CATALOG_SESSION_TTL", defaultSessionTTL),
			SweepInterval: durationWithDefault(lookup, "CATALOG_SESSION_SWEEP_INTERVAL", defaultSweepInterval),
			SigningKey:    stringWithDefault(lookup, "CATALOG_SESSION_SIGNING_KEY", ""),
			Environment:   strings.ToLower(stringWithDefault(lookup, "CATALOG_ENV", defaultEnvironment)),
		},
		Render: RenderConfig{
			SettleTimeout: durationWithDefault(lookup, "CATALOG_RENDER_SETTLE_TIMEOUT", defaultSettleTimeout),
		},
		Web: WebConfig{
			TemplatesDir:  stringWithDefault(lookup, "CATALOG_TEMPLATES_DIR", defaultTemplatesDir),
			PublicDir:     stringWithDefault(lookup, "CATALOG_PUBLIC_DIR", defaultPublicDir),
			LocalesDir:    stringWithDefault(lookup, "CATALOG_LOCALES_DIR", defaultLocalesDir),
			DefaultLocale: strings.ToLower(stringWithDefault(lookup, "CATALOG_DEFAULT_LOCALE", defaultLocale)),
			Dev:           boolWithDefault(lookup, "CATALOG_DEV", false),
		},
		LogLevel: strings.ToLower(stringWithDefault(lookup, "LOG_LEVEL", defaultLogLevel)),
	}

	if cfg.Images.BaseURL == "" && cfg.Images.Bucket == "" && cfg.Products.URL != "" {
		cfg.Images.BaseURL = baseOf(cfg.Products.URL)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// baseOf returns the directory of a products URL, keeping the trailing slash.
func baseOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	dir := path.Dir(u.Path)
	if dir == "." || dir == "/" {
		dir = ""
	}
	u.Path = dir + "/"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Products.URL == "" && cfg.Products.File == "" {
		missing = append(missing, "Products.URL")
	}
	if cfg.Products.URL != "" && !isHTTPURL(cfg.Products.URL) {
		missing = append(missing, "Products.URL")
	}
	if cfg.Images.BaseURL == "" && cfg.Images.Bucket == "" {
		missing = append(missing, "Images.BaseURL")
	}
	if cfg.Images.BaseURL != "" && !isHTTPURL(cfg.Images.BaseURL) {
		missing = append(missing, "Images.BaseURL")
	}
	if cfg.Images.Concurrency < 1 {
		missing = append(missing, "Images.Concurrency")
	}
	if cfg.Images.MaxBytes <= 0 {
		missing = append(missing, "Images.MaxBytes")
	}
	if cfg.Session.TTL <= 0 {
		missing = append(missing, "Session.TTL")
	}
	if cfg.Session.SweepInterval <= 0 {
		missing = append(missing, "Session.SweepInterval")
	}
	if cfg.Session.Secure() && cfg.Session.SigningKey == "" {
		missing = append(missing, "Session.SigningKey")
	}
	if cfg.Render.SettleTimeout < 0 {
		missing = append(missing, "Render.SettleTimeout")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
