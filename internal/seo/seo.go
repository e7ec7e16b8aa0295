package seo

import (
	"encoding/json"
	"html/template"
)

type OpenGraph struct {
	Title       string
	Description string
	Type        string
	URL         string
	SiteName    string
}

type Meta struct {
	Title       string
	Description string
	Canonical   string
	Robots      string
	OG          OpenGraph
	JSONLD      []template.JS
}

// JSON marshals v for embedding in a <script type="application/ld+json"> block.
// It returns an empty value on error. json.Marshal escapes <, > and & so the
// payload cannot close the script element.
func JSON(v any) template.JS {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return template.JS(b)
}

// WebSite returns a minimal WebSite schema with optional SearchAction.
func WebSite(name, url, searchActionURL string) map[string]any {
	m := map[string]any{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     name,
	}
	if url != "" {
		m["url"] = url
	}
	if searchActionURL != "" {
		m["potentialAction"] = map[string]any{
			"@type":       "SearchAction",
			"target":      searchActionURL + "{search_term_string}",
			"query-input": "required name=search_term_string",
		}
	}
	return m
}

// ListedProduct is one entry of an ItemList.
type ListedProduct struct {
	Name     string
	Category string
	// Price is already formatted in major units, e.g. "0.40".
	Price string
}

// ItemList builds a schema.org ItemList of products priced in USD.
func ItemList(name string, products []ListedProduct) map[string]any {
	el := make([]map[string]any, 0, len(products))
	for i, p := range products {
		el = append(el, map[string]any{
			"@type":    "ListItem",
			"position": i + 1,
			"item": map[string]any{
				"@type":    "Product",
				"name":     p.Name,
				"category": p.Category,
				"offers": map[string]any{
					"@type":         "Offer",
					"price":         p.Price,
					"priceCurrency": "USD",
				},
			},
		})
	}
	return map[string]any{
		"@context":        "https://schema.org",
		"@type":           "ItemList",
		"name":            name,
		"numberOfItems":   len(products),
		"itemListElement": el,
	}
}
