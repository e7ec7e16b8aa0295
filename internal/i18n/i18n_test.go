package i18n

import (
	"os"
	"path/filepath"
	"testing"
)

func loadBundle(t *testing.T) *Bundle {
	t.Helper()
	b, err := Load("../../locales", "en", []string{"en", "ja"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return b
}

func TestResolveHonorsQValues(t *testing.T) {
	b := loadBundle(t)
	if got := b.Resolve("ja;q=0.8, en;q=0.9"); got != "en" {
		t.Fatalf("expected en, got %s", got)
	}
	if got := b.Resolve("ja-JP,ja;q=0.9,en;q=0.5"); got != "ja" {
		t.Fatalf("expected ja, got %s", got)
	}
}

func TestResolveFallsBack(t *testing.T) {
	b := loadBundle(t)
	for _, header := range []string{"", "fr-FR", "@@@"} {
		if got := b.Resolve(header); got != "en" {
			t.Fatalf("Resolve(%q): expected fallback en, got %s", header, got)
		}
	}
}

func TestTranslateFallsBackToDefaultThenKey(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "en.yaml"), []byte("a: \"A\"\nb: \"B\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ja.yaml"), []byte("a: \"エー\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	b, err := Load(dir, "en", []string{"en", "ja", "de"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := b.T("ja", "a"); got != "エー" {
		t.Fatalf("unexpected ja translation %q", got)
	}
	if got := b.T("ja", "b"); got != "B" {
		t.Fatalf("expected fallback translation, got %q", got)
	}
	if got := b.T("ja", "missing"); got != "missing" {
		t.Fatalf("expected key, got %q", got)
	}
	if b.IsSupported("de") {
		t.Fatalf("locale without a file should not be supported")
	}
	if got := b.Supported(); len(got) != 2 || got[0] != "en" || got[1] != "ja" {
		t.Fatalf("unexpected supported list %v", got)
	}
}

func TestLoadRequiresFallback(t *testing.T) {
	if _, err := Load(t.TempDir(), "en", nil); err == nil {
		t.Fatalf("expected error when fallback locale is missing")
	}
}

func TestLocalesShareKeys(t *testing.T) {
	b := loadBundle(t)
	for key := range b.dict["en"] {
		if _, ok := b.dict["ja"][key]; !ok {
			t.Errorf("ja locale missing key %q", key)
		}
	}
}
