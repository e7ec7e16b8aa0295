package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"finitefield.org/hanko-catalog/internal/catalog"
	"finitefield.org/hanko-catalog/internal/config"
	"finitefield.org/hanko-catalog/internal/images"
	"finitefield.org/hanko-catalog/internal/source"
)

func testConfig() config.Config {
	return config.Config{
		Images:  config.ImagesConfig{Concurrency: 4},
		Session: config.SessionConfig{TTL: time.Minute, SigningKey: "test-key"},
		Render:  config.RenderConfig{SettleTimeout: 2 * time.Second},
		Web: config.WebConfig{
			TemplatesDir:  "../../templates",
			PublicDir:     "../../public",
			LocalesDir:    "../../locales",
			DefaultLocale: "en",
		},
	}
}

func loadFixture(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Load(context.Background(), source.File{Path: "../../testdata/products.json"}, nil)
	require.NoError(t, err)
	return c
}

var fakeImages = images.ResolverFunc(func(_ context.Context, p catalog.Product) (images.Image, error) {
	if p.Image == "spam.jpg" {
		return images.Image{}, images.ErrImageUnavailable
	}
	return images.Image{ContentType: "image/jpeg", Data: []byte(p.Image)}, nil
})

// newTestRouter builds the router used by main with a fixture catalog.
func newTestRouter(t *testing.T, cat *catalog.Catalog) (*app, http.Handler) {
	t.Helper()
	a, err := newApp(testConfig(), nil, cat, fakeImages)
	require.NoError(t, err)
	t.Cleanup(a.views.Close)
	return a, a.routes()
}

func get(t *testing.T, h http.Handler, target string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func parseHTML(t *testing.T, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	return doc
}

func htmx(req *http.Request) {
	req.Header.Set("HX-Request", "true")
	req.Header.Set("HX-Target", "catalog-results")
}

func TestHealthzOK(t *testing.T) {
	_, srv := newTestRouter(t, loadFixture(t))
	rec := get(t, srv, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", strings.TrimSpace(rec.Body.String()))
}

func TestReadyz(t *testing.T) {
	_, ready := newTestRouter(t, loadFixture(t))
	require.Equal(t, http.StatusOK, get(t, ready, "/readyz").Code)

	_, down := newTestRouter(t, nil)
	require.Equal(t, http.StatusServiceUnavailable, get(t, down, "/readyz").Code)
}

func TestCatalogPageRendersAllProducts(t *testing.T) {
	_, srv := newTestRouter(t, loadFixture(t))
	rec := get(t, srv, "/", func(r *http.Request) { r.Header.Set("Accept-Language", "en") })
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	doc := parseHTML(t, rec.Body.String())
	articles := doc.Find("#catalog-products > article")
	require.Equal(t, 12, articles.Length())

	first := articles.First()
	require.True(t, first.HasClass("vegetables"))
	require.Equal(t, "Beans", first.Find("p.productContent").Text())
	require.Equal(t, "$0.40", first.Find("p.price").Text())
	alt, _ := first.Find("img").Attr("alt")
	require.Equal(t, "beans", alt)

	// The failing image leaves its product without an img.
	spam := articles.Eq(2)
	require.Equal(t, "Spam", spam.Find("p.productContent").Text())
	require.Equal(t, 0, spam.Find("img").Length())
	require.Equal(t, 11, doc.Find("#catalog-products img").Length())

	require.Equal(t, 4, doc.Find("select#category option").Length())
	selected, _ := doc.Find("select#category option[selected]").Attr("value")
	require.Equal(t, "all", selected)
	require.Equal(t, 0, doc.Find("p.notice").Length())
	require.Equal(t, 2, doc.Find(`script[type="application/ld+json"]`).Length())
	require.Contains(t, rec.Header().Values("Vary"), "Accept-Language")
}

func TestCatalogPageFiltersFromQuery(t *testing.T) {
	_, srv := newTestRouter(t, loadFixture(t))
	rec := get(t, srv, "/?category=soup&q=SOUP")
	require.Equal(t, http.StatusOK, rec.Code)

	doc := parseHTML(t, rec.Body.String())
	names := doc.Find("#catalog-products p.productContent").Map(func(_ int, s *goquery.Selection) string {
		return s.Text()
	})
	require.Equal(t, []string{"Tomato soup", "Chicken noodle soup", "Lentil soup"}, names)
	robots, _ := doc.Find(`meta[name="robots"]`).Attr("content")
	require.Equal(t, "noindex, follow", robots)
	value, _ := doc.Find("input#q").Attr("value")
	require.Equal(t, "SOUP", value)
}

func TestCatalogPageEmptyState(t *testing.T) {
	_, srv := newTestRouter(t, loadFixture(t))
	rec := get(t, srv, "/?q=caviar")
	require.Equal(t, http.StatusOK, rec.Code)

	doc := parseHTML(t, rec.Body.String())
	require.Equal(t, "No results to display!", doc.Find("#catalog-results > p.notice").Text())
	require.Equal(t, 1, doc.Find("#catalog-products").Length())
	require.Equal(t, 0, doc.Find("#catalog-products").Children().Length())
}

func TestProductsFragmentPushesURL(t *testing.T) {
	_, srv := newTestRouter(t, loadFixture(t))
	rec := get(t, srv, "/products?category=meat&q=", htmx)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "/?category=meat", rec.Header().Get("HX-Push-Url"))

	body := rec.Body.String()
	require.NotContains(t, body, "<html")
	doc := parseHTML(t, body)
	require.Equal(t, 3, doc.Find("#catalog-products > article.meat").Length())
	require.Equal(t, 3, doc.Find("#catalog-products > article").Length())
}

func TestProductsWithoutHTMXRedirects(t *testing.T) {
	_, srv := newTestRouter(t, loadFixture(t))
	rec := get(t, srv, "/products?category=soup")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/?category=soup", rec.Header().Get("Location"))
}

func TestSessionKeepsOneViewPerVisitor(t *testing.T) {
	a, srv := newTestRouter(t, loadFixture(t))
	first := get(t, srv, "/")
	require.Equal(t, http.StatusOK, first.Code)
	cookies := first.Result().Cookies()
	require.NotEmpty(t, cookies)

	withCookies := func(r *http.Request) {
		for _, c := range cookies {
			r.AddCookie(c)
		}
	}
	generation := func(rec *httptest.ResponseRecorder) string {
		g, _ := parseHTML(t, rec.Body.String()).Find("p.catalog-count").Attr("data-generation")
		return g
	}

	again := get(t, srv, "/", withCookies)
	require.Equal(t, "1", generation(again), "unchanged filter should not start a new cycle")

	filtered := get(t, srv, "/products?category=vegetables", withCookies, htmx)
	require.Equal(t, "2", generation(filtered))
	require.Equal(t, 1, a.views.Len())

	get(t, srv, "/")
	require.Equal(t, 2, a.views.Len())
}

func TestUnavailableCatalogIsLocalized(t *testing.T) {
	_, srv := newTestRouter(t, nil)
	rec := get(t, srv, "/", func(r *http.Request) { r.Header.Set("Accept-Language", "ja-JP,ja;q=0.9") })
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "ja", rec.Header().Get("Content-Language"))

	doc := parseHTML(t, rec.Body.String())
	require.Contains(t, doc.Find(".notice-error").Text(), "商品カタログ")
	require.Equal(t, 0, doc.Find("#catalog-products").Length())

	frag := get(t, srv, "/products", htmx)
	require.Equal(t, http.StatusServiceUnavailable, frag.Code)
}

func TestLanguageQueryOverride(t *testing.T) {
	_, srv := newTestRouter(t, loadFixture(t))
	rec := get(t, srv, "/?hl=ja")
	require.Equal(t, http.StatusOK, rec.Code)
	doc := parseHTML(t, rec.Body.String())
	require.Equal(t, "ja", doc.Find("html").AttrOr("lang", ""))
	require.Equal(t, "商品一覧", strings.TrimSpace(doc.Find("header h1").Text()))
	require.Equal(t, "野菜", strings.TrimSpace(doc.Find(`#category option[value="vegetables"]`).Text()))
	require.Equal(t, "Spam", strings.TrimSpace(doc.Find(`#catalog-products article.meat p.productContent`).Eq(1).Text()))
}

func TestMetricsEndpoint(t *testing.T) {
	_, srv := newTestRouter(t, loadFixture(t))
	get(t, srv, "/")
	rec := get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "catalog_render_cycles_total")
}

func TestAssetsServed(t *testing.T) {
	_, srv := newTestRouter(t, loadFixture(t))
	rec := get(t, srv, "/assets/catalog.css")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("ETag"))
}

func TestStateFromQuery(t *testing.T) {
	require.Equal(t, catalog.DefaultFilterState(), stateFromQuery(nil))
	state := stateFromQuery(map[string][]string{"category": {"meat"}, "q": {" dog "}})
	require.Equal(t, catalog.FilterState{Category: "meat", SearchTerm: " dog "}, state)
}
