package handlers

import (
	"fmt"
	"html/template"
	"net/url"

	"finitefield.org/hanko-catalog/internal/catalog"
	"finitefield.org/hanko-catalog/internal/format"
	"finitefield.org/hanko-catalog/internal/seo"
)

// Translator looks up a localized label by key.
type Translator func(key string) string

// CategoryOption is one entry of the category selector.
type CategoryOption struct {
	Value    string
	Label    string
	Selected bool
}

// CatalogData is the view model shared by the catalog page and its fragment.
type CatalogData struct {
	Category    string
	SearchTerm  string
	Categories  []CategoryOption
	Products    template.HTML
	Visible     int
	Total       int
	Count       string
	Empty       bool
	Unavailable bool
	UpdatedAt   string
	Generation  uint64
}

// PageData is the view model for pages using the shared layout.
type PageData struct {
	Title string
	Lang  string
	SEO   seo.Meta
	Path  string

	Catalog CatalogData
}

// CatalogInput collects what a catalog page needs from the request and the view.
type CatalogInput struct {
	Lang       string
	T          Translator
	Catalog    *catalog.Catalog
	State      catalog.FilterState
	Visible    []catalog.Product
	Markup     template.HTML
	Generation uint64
	// BaseURL is the absolute site root used for canonical links, e.g. "https://example.com/".
	BaseURL string
}

// BuildCatalogData builds the catalog view model.
func BuildCatalogData(in CatalogInput) CatalogData {
	t := translator(in.T)
	total := in.Catalog.Len()
	data := CatalogData{
		Category:   in.State.Category,
		SearchTerm: in.State.SearchTerm,
		Categories: categoryOptions(t, in.Catalog.Categories(), in.State.Category),
		Products:   in.Markup,
		Visible:    len(in.Visible),
		Total:      total,
		Count:      fmt.Sprintf(t("catalog.count"), len(in.Visible), total),
		Empty:      len(in.Visible) == 0,
		Generation: in.Generation,
	}
	if loaded := in.Catalog.LoadedAt(); !loaded.IsZero() {
		data.UpdatedAt = format.Date(loaded, in.Lang)
	}
	return data
}

// BuildCatalogPage builds the full page view model, including SEO metadata.
func BuildCatalogPage(in CatalogInput) PageData {
	t := translator(in.T)
	data := BuildCatalogData(in)
	path := CatalogPath(in.State)
	meta := seo.Meta{
		Title:       t("site.title"),
		Description: t("site.description"),
		OG: seo.OpenGraph{
			Title:       t("site.title"),
			Description: t("site.description"),
			Type:        "website",
			SiteName:    t("site.title"),
		},
	}
	if in.BaseURL != "" {
		meta.Canonical = absolute(in.BaseURL, path)
		meta.OG.URL = meta.Canonical
	}
	// Filtered views are thin copies of the main listing.
	if path != "/" {
		meta.Robots = "noindex, follow"
	}
	meta.JSONLD = []template.JS{
		seo.JSON(seo.WebSite(t("site.title"), in.BaseURL, searchTarget(in.BaseURL))),
		seo.JSON(seo.ItemList(t("catalog.heading"), listed(in.Visible))),
	}
	return PageData{
		Title:   t("site.title"),
		Lang:    in.Lang,
		SEO:     meta,
		Path:    path,
		Catalog: data,
	}
}

// BuildUnavailablePage is shown while no catalog could be loaded.
func BuildUnavailablePage(lang string, tr Translator) PageData {
	t := translator(tr)
	return PageData{
		Title: t("site.title"),
		Lang:  lang,
		SEO: seo.Meta{
			Title:  t("site.title"),
			Robots: "noindex",
		},
		Path: "/",
		Catalog: CatalogData{
			Category:    catalog.AllCategories,
			Categories:  categoryOptions(t, nil, catalog.AllCategories),
			Empty:       true,
			Unavailable: true,
		},
	}
}

// CatalogPath is the shareable URL for a filter state. The default state maps to "/".
func CatalogPath(state catalog.FilterState) string {
	q := url.Values{}
	if state.Category != "" && state.Category != catalog.AllCategories {
		q.Set("category", state.Category)
	}
	if state.SearchTerm != "" {
		q.Set("q", state.SearchTerm)
	}
	if len(q) == 0 {
		return "/"
	}
	return "/?" + q.Encode()
}

func categoryOptions(t Translator, categories []string, selected string) []CategoryOption {
	out := make([]CategoryOption, 0, len(categories)+1)
	out = append(out, CategoryOption{
		Value:    catalog.AllCategories,
		Label:    t("catalog.category.all"),
		Selected: selected == catalog.AllCategories,
	})
	found := selected == catalog.AllCategories
	for _, c := range categories {
		out = append(out, CategoryOption{Value: c, Label: categoryLabel(t, c), Selected: c == selected})
		if c == selected {
			found = true
		}
	}
	// Keep an unknown selection visible so the form reflects the active filter.
	if !found && selected != "" {
		out = append(out, CategoryOption{Value: selected, Label: selected, Selected: true})
	}
	return out
}

// categoryLabel looks up "category.<type>" and falls back to the formatted type.
func categoryLabel(t Translator, category string) string {
	key := "category." + category
	if label := t(key); label != "" && label != key {
		return label
	}
	return format.Name(category)
}

func listed(products []catalog.Product) []seo.ListedProduct {
	out := make([]seo.ListedProduct, 0, len(products))
	for _, p := range products {
		cents, err := format.MinorUnits(p.Price)
		if err != nil {
			continue
		}
		out = append(out, seo.ListedProduct{
			Name:     format.Name(p.Name),
			Category: p.Type,
			Price:    fmt.Sprintf("%d.%02d", cents/100, cents%100),
		})
	}
	return out
}

func absolute(base, path string) string {
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(path)
	if err != nil {
		return ""
	}
	return u.ResolveReference(ref).String()
}

func searchTarget(base string) string {
	if base == "" {
		return ""
	}
	return absolute(base, "/?q=")
}

func translator(t Translator) Translator {
	if t == nil {
		return func(key string) string { return key }
	}
	return t
}
