package main

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"finitefield.org/hanko-catalog/internal/catalog"
	"finitefield.org/hanko-catalog/internal/config"
	"finitefield.org/hanko-catalog/internal/i18n"
	"finitefield.org/hanko-catalog/internal/images"
	mw "finitefield.org/hanko-catalog/internal/middleware"
	"finitefield.org/hanko-catalog/internal/observability"
	"finitefield.org/hanko-catalog/internal/session"
)

var supportedLocales = []string{"en", "ja"}

// app holds the dependencies shared by all handlers.
type app struct {
	logger        *zap.Logger
	bundle        *i18n.Bundle
	views         *session.Manager
	cookies       *mw.Sessions
	pages         *templates
	publicDir     string
	settleTimeout time.Duration
}

func newApp(cfg config.Config, logger *zap.Logger, cat *catalog.Catalog, resolver images.Resolver) (*app, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	bundle, err := i18n.Load(cfg.Web.LocalesDir, cfg.Web.DefaultLocale, supportedLocales)
	if err != nil {
		return nil, fmt.Errorf("load locales: %w", err)
	}
	pages, err := newTemplates(cfg.Web.TemplatesDir, cfg.Web.Dev, bundle)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	views := session.NewManager(cat, resolver,
		session.WithLogger(logger.Named("render")),
		session.WithTTL(cfg.Session.TTL),
		session.WithImageConcurrency(cfg.Images.Concurrency),
	)
	return &app{
		logger:        logger,
		bundle:        bundle,
		views:         views,
		cookies:       mw.NewSessions(cfg.Session.SigningKey, cfg.Session.Secure(), logger.Named("session")),
		pages:         pages,
		publicDir:     cfg.Web.PublicDir,
		settleTimeout: cfg.Render.SettleTimeout,
	}, nil
}

func (a *app) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	// If deployed behind a trusted reverse proxy/load balancer, RealIP will use
	// X-Forwarded-For to determine the client IP.
	r.Use(chimw.RealIP)
	r.Use(mw.Logger(a.logger.Named("http")))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", a.handleReady)
	r.Handle("/metrics", observability.MetricsHandler())

	// Static assets under /assets/
	r.Handle("/assets/*", http.StripPrefix("/assets", mw.AssetsWithCache(filepath.Join(a.publicDir, "assets"))))

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(30 * time.Second))
		r.Use(mw.HTMX)
		r.Use(a.cookies.Middleware)
		r.Use(mw.Locale(a.bundle))
		r.Use(mw.Vary)

		r.Get("/", a.handleCatalog)
		r.Get("/products", a.handleProducts)
	})
	return r
}

func (a *app) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if !a.views.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("catalog unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
