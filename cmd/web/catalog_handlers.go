package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"finitefield.org/hanko-catalog/internal/catalog"
	"finitefield.org/hanko-catalog/internal/handlers"
	mw "finitefield.org/hanko-catalog/internal/middleware"
	"finitefield.org/hanko-catalog/internal/observability"
	"finitefield.org/hanko-catalog/internal/session"
)

// handleCatalog renders the full catalog page for the filter in the query string.
func (a *app) handleCatalog(w http.ResponseWriter, r *http.Request) {
	lang := mw.Lang(r)
	tr := a.translator(lang)
	if !a.views.Ready() {
		a.renderPage(w, r, http.StatusServiceUnavailable, "base", handlers.BuildUnavailablePage(lang, tr))
		return
	}
	v, ok := a.view(w, r)
	if !ok {
		return
	}
	page, ok := a.catalogPage(w, r, v, lang)
	if !ok {
		return
	}
	a.renderPage(w, r, http.StatusOK, "base", page)
}

// handleProducts answers htmx filter requests with the results fragment and pushes
// the matching page URL onto the browser history.
func (a *app) handleProducts(w http.ResponseWriter, r *http.Request) {
	if !mw.IsHTMX(r.Context()) {
		http.Redirect(w, r, handlers.CatalogPath(stateFromQuery(r.URL.Query())), http.StatusSeeOther)
		return
	}
	lang := mw.Lang(r)
	if !a.views.Ready() {
		mw.WriteError(w, r, http.StatusServiceUnavailable, a.bundle.T(lang, "catalog.unavailable"))
		return
	}
	v, ok := a.view(w, r)
	if !ok {
		return
	}
	page, ok := a.catalogPage(w, r, v, lang)
	if !ok {
		return
	}
	mw.PushURL(w, page.Path)
	a.renderPage(w, r, http.StatusOK, "catalog_results", page)
}

// catalogPage applies the request filter to v, waits for images up to the settle
// timeout and builds the page model from whatever is attached by then.
func (a *app) catalogPage(w http.ResponseWriter, r *http.Request, v *session.View, lang string) (handlers.PageData, bool) {
	logger := observability.FromContext(r.Context())

	// A non-positive settle timeout responds with whatever has arrived.
	ctx, cancel := context.WithTimeout(r.Context(), a.settleTimeout)
	snap, err := v.Snapshot(ctx, stateFromQuery(r.URL.Query()))
	cancel()
	if err != nil {
		logger.Error("serialise catalog view", zap.Error(err))
		mw.WriteError(w, r, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return handlers.PageData{}, false
	}
	if !snap.Settled {
		logger.Debug("responding before all images settled", zap.Uint64("generation", snap.Generation))
	}
	return handlers.BuildCatalogPage(handlers.CatalogInput{
		Lang:       lang,
		T:          a.translator(lang),
		Catalog:    snap.Catalog,
		State:      snap.State,
		Visible:    snap.Visible,
		Markup:     snap.Markup,
		Generation: snap.Generation,
		BaseURL:    baseURL(r),
	}), true
}

func (a *app) view(w http.ResponseWriter, r *http.Request) (*session.View, bool) {
	v, created, err := a.views.Get(mw.GetSession(r).ID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, catalog.ErrDataUnavailable) {
			status = http.StatusServiceUnavailable
		}
		observability.FromContext(r.Context()).Error("catalog view unavailable", zap.Error(err))
		mw.WriteError(w, r, status, http.StatusText(status))
		return nil, false
	}
	if created {
		observability.FromContext(r.Context()).Debug("new catalog view", zap.Int("sessions", a.views.Len()))
	}
	return v, true
}

func (a *app) renderPage(w http.ResponseWriter, r *http.Request, status int, name string, data handlers.PageData) {
	if err := a.pages.render(w, status, name, data); err != nil {
		observability.FromContext(r.Context()).Error("render page", zap.String("template", name), zap.Error(err))
	}
}

func (a *app) translator(lang string) handlers.Translator {
	return func(key string) string { return a.bundle.T(lang, key) }
}

// stateFromQuery reads category and q. A missing or empty category means all
// categories; the search term is used verbatim.
func stateFromQuery(q url.Values) catalog.FilterState {
	state := catalog.DefaultFilterState()
	if c := q.Get("category"); c != "" {
		state.Category = c
	}
	state.SearchTerm = q.Get("q")
	return state
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/"
}
