package seo

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestItemListIsValidJSON(t *testing.T) {
	out := JSON(ItemList("Products", []ListedProduct{
		{Name: "Beans", Category: "vegetables", Price: "0.40"},
		{Name: "</script><b>", Category: "meat", Price: "5.00"},
	}))
	if strings.Contains(string(out), "</script>") {
		t.Fatalf("payload must not close the script element: %s", out)
	}
	var decoded struct {
		Type  string `json:"@type"`
		Count int    `json:"numberOfItems"`
		Items []struct {
			Position int `json:"position"`
			Item     struct {
				Name   string `json:"name"`
				Offers struct {
					Price    string `json:"price"`
					Currency string `json:"priceCurrency"`
				} `json:"offers"`
			} `json:"item"`
		} `json:"itemListElement"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != "ItemList" || decoded.Count != 2 || len(decoded.Items) != 2 {
		t.Fatalf("unexpected list %+v", decoded)
	}
	if decoded.Items[1].Position != 2 || decoded.Items[1].Item.Name != "</script><b>" {
		t.Fatalf("unexpected second item %+v", decoded.Items[1])
	}
	if decoded.Items[0].Item.Offers.Price != "0.40" || decoded.Items[0].Item.Offers.Currency != "USD" {
		t.Fatalf("unexpected offer %+v", decoded.Items[0].Item.Offers)
	}
}

func TestWebSiteSearchAction(t *testing.T) {
	m := WebSite("Catalog", "https://example.com/", "https://example.com/?q=")
	action, ok := m["potentialAction"].(map[string]any)
	if !ok || action["target"] != "https://example.com/?q={search_term_string}" {
		t.Fatalf("unexpected search action %v", m["potentialAction"])
	}
	if _, ok := WebSite("Catalog", "", "")["potentialAction"]; ok {
		t.Fatalf("search action should be omitted without a target")
	}
}
