// Package findfile maps logical file attributes (night, exposure, camera)
// to physical paths under a data root.
package findfile

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of resolved paths kept per layout.
const DefaultCacheSize = 4096

// ErrUnknownFiletype is returned for filetypes without a template.
var ErrUnknownFiletype = errors.New("unknown filetype")

// DefaultTemplates are the built-in path templates, relative to the root.
// Templates see the locate attributes plus "root".
var DefaultTemplates = map[string]string{
	"raw":      `raw/{{ .night }}/{{ printf "%08d" .expid }}/desi-{{ printf "%08d" .expid }}.fits.fz`,
	"preproc":  `preproc/{{ .night }}/{{ printf "%08d" .expid }}/preproc-{{ .camera }}-{{ printf "%08d" .expid }}.fits`,
	"fibermap": `preproc/{{ .night }}/{{ printf "%08d" .expid }}/fibermap-{{ printf "%08d" .expid }}.fits`,
	"psfnight": `calibnight/{{ .night }}/psfnight-{{ .camera }}-{{ .night }}.fits`,
	"frame":    `exposures/{{ .night }}/{{ printf "%08d" .expid }}/frame-{{ .camera }}-{{ printf "%08d" .expid }}.fits`,
}

// Layout resolves paths from a fixed set of templates. It is safe for
// concurrent use.
type Layout struct {
	root      string
	templates map[string]*template.Template
	cache     *lru.Cache[string, string]
}

// New compiles the default templates, replaced or extended by overrides.
func New(root string, overrides map[string]string) (*Layout, error) {
	merged := make(map[string]string, len(DefaultTemplates)+len(overrides))
	for k, v := range DefaultTemplates {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}

	cache, err := lru.New[string, string](DefaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating path cache: %w", err)
	}
	l := &Layout{
		root:      root,
		templates: make(map[string]*template.Template, len(merged)),
		cache:     cache,
	}
	for name, text := range merged {
		tmpl, err := template.New(name).
			Funcs(sprig.TxtFuncMap()).
			Option("missingkey=error").
			Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", name, err)
		}
		l.templates[name] = tmpl
	}
	return l, nil
}

// Root returns the data root.
func (l *Layout) Root() string { return l.root }

// Filetypes returns the known filetypes in lexical order.
func (l *Layout) Filetypes() []string {
	out := make([]string, 0, len(l.templates))
	for k := range l.templates {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Locate renders the filetype's template with attrs. Relative results are
// joined to the root. Results are cached by filetype and attributes.
func (l *Layout) Locate(filetype string, attrs map[string]any) (string, error) {
	tmpl, ok := l.templates[filetype]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFiletype, filetype)
	}

	key := cacheKey(filetype, attrs)
	if path, ok := l.cache.Get(key); ok {
		return path, nil
	}

	data := make(map[string]any, len(attrs)+1)
	for k, v := range attrs {
		if v == nil {
			continue
		}
		data[k] = v
	}
	data["root"] = l.root

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("locating %s: %w", filetype, err)
	}

	path := buf.String()
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.root, path)
	}
	path = filepath.Clean(path)
	l.cache.Add(key, path)
	return path, nil
}

// Cached returns the number of cached paths.
func (l *Layout) Cached() int { return l.cache.Len() }

// cacheKey renders attrs in key order. Values are formatted with %T so that
// 42 and "42" never share an entry.
func cacheKey(filetype string, attrs map[string]any) string {
	keys := make([]string, 0, len(attrs))
	for k, v := range attrs {
		if v != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(filetype)
	for _, k := range keys {
		fmt.Fprintf(&b, "\x00%s=%T:%v", k, attrs[k], attrs[k])
	}
	return b.String()
}
