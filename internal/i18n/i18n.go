// Package i18n is the storefront's localization table: one JSON file per
// locale mapping UI keys to strings.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

//go:embed locales/*.json
var embedded embed.FS

type Bundle struct {
	def     string
	langs   []string
	tables  map[string]map[string]string
	matcher language.Matcher
}

// Default loads the locales compiled into the binary.
func Default(def string) (*Bundle, error) {
	sub, err := fs.Sub(embedded, "locales")
	if err != nil {
		return nil, err
	}
	return Load(sub, def)
}

// Load reads every *.json file at the root of fsys; the file name without
// extension is the locale. def must be one of them.
func Load(fsys fs.FS, def string) (*Bundle, error) {
	files, err := fs.Glob(fsys, "*.json")
	if err != nil {
		return nil, err
	}
	b := &Bundle{def: def, tables: make(map[string]map[string]string)}
	for _, f := range files {
		data, err := fs.ReadFile(fsys, f)
		if err != nil {
			return nil, err
		}
		table := map[string]string{}
		if err := json.Unmarshal(data, &table); err != nil {
			return nil, fmt.Errorf("locale %s: %w", f, err)
		}
		b.tables[strings.TrimSuffix(path.Base(f), ".json")] = table
	}
	if _, ok := b.tables[def]; !ok {
		return nil, fmt.Errorf("default locale %q not found", def)
	}

	// The default locale goes first so the matcher falls back to it.
	b.langs = append(b.langs, def)
	others := make([]string, 0, len(b.tables))
	for l := range b.tables {
		if l != def {
			others = append(others, l)
		}
	}
	sort.Strings(others)
	b.langs = append(b.langs, others...)

	tags := make([]language.Tag, 0, len(b.langs))
	for _, l := range b.langs {
		tags = append(tags, language.Make(l))
	}
	b.matcher = language.NewMatcher(tags)
	return b, nil
}

func (b *Bundle) DefaultLocale() string { return b.def }

func (b *Bundle) Locales() []string {
	return append([]string(nil), b.langs...)
}

// T looks key up in lang, then in the default locale, and finally returns
// the key itself.
func (b *Bundle) T(lang, key string) string {
	if v, ok := b.tables[lang][key]; ok {
		return v
	}
	if v, ok := b.tables[b.def][key]; ok {
		return v
	}
	return key
}

// Negotiate picks the locale for a request: a supported ?lang= value wins,
// otherwise the best match for Accept-Language.
func (b *Bundle) Negotiate(r *http.Request) string {
	if l := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("lang"))); l != "" {
		if _, ok := b.tables[l]; ok {
			return l
		}
	}
	accept := r.Header.Get("Accept-Language")
	if accept == "" {
		return b.def
	}
	_, idx := language.MatchStrings(b.matcher, accept)
	return b.langs[idx]
}
