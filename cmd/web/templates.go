package main

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"finitefield.org/hanko-catalog/internal/i18n"
)

// templates parses every .tmpl file under dir. In dev mode, templates are
// reparsed on each render.
type templates struct {
	dir   string
	dev   bool
	funcs template.FuncMap
	cache *template.Template
}

func newTemplates(dir string, dev bool, bundle *i18n.Bundle) (*templates, error) {
	t := &templates{
		dir: dir,
		dev: dev,
		funcs: template.FuncMap{
			"now": time.Now,
			"t":   bundle.T,
		},
	}
	// Parse once even in dev mode so broken templates fail at startup.
	tc, err := t.parse()
	if err != nil {
		return nil, err
	}
	t.cache = tc
	return t, nil
}

func (t *templates) parse() (*template.Template, error) {
	// Recursively discover and parse all .tmpl files. Note: ParseGlob doesn't support **.
	var files []string
	if err := filepath.WalkDir(t.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".tmpl") {
			files = append(files, path)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no templates found under %s", t.dir)
	}
	return template.New("_root").Funcs(t.funcs).ParseFiles(files...)
}

// render executes name into a buffer first so template errors still produce a clean 500.
func (t *templates) render(w http.ResponseWriter, status int, name string, data any) error {
	tc := t.cache
	if t.dev {
		parsed, err := t.parse()
		if err != nil {
			http.Error(w, "template parse error", http.StatusInternalServerError)
			return fmt.Errorf("template parse: %w", err)
		}
		tc = parsed
	}
	var buf bytes.Buffer
	if err := tc.ExecuteTemplate(&buf, name, data); err != nil {
		http.Error(w, "template exec error", http.StatusInternalServerError)
		return fmt.Errorf("template exec %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
