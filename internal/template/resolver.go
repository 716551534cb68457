// Package template renders action commands and conditions against the
// selections of every context on the navigation stack.
//
// Templates are mustache without HTML escaping. Each frame is exposed under
// its spell id:
//
//	{{context.search_files.selection.data}}
//	{{context.quickspell.selection.type}} == 'APP'
//
// A frame exposes query, spellId and selection{type, label, data, fields, raw}.
package template

import (
	"fmt"

	"github.com/cbroglie/mustache"
	lru "github.com/hashicorp/golang-lru/v2"

	"quickspell/internal/domain"
)

// DefaultCacheSize is the number of parsed templates kept by a Resolver
const DefaultCacheSize = 256

// Frame is the part of a navigation frame visible to templates
type Frame struct {
	SpellID  string
	Query    string
	Selected *domain.Item
}

// RenderError reports a template that could not be parsed or rendered
type RenderError struct {
	Template string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("failed to render template %q: %v", e.Template, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Resolver renders templates, caching the parsed form by source text
type Resolver struct {
	cache *lru.Cache[string, *mustache.Template]
}

// NewResolver creates a resolver caching up to size parsed templates
func NewResolver(size int) (*Resolver, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *mustache.Template](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create template cache: %w", err)
	}
	return &Resolver{cache: cache}, nil
}

// Render resolves tmpl against frames, bottom of the stack first. When two
// frames share a spell id the upper one wins.
func (r *Resolver) Render(tmpl string, frames []Frame) (string, error) {
	parsed, err := r.parse(tmpl)
	if err != nil {
		return "", &RenderError{Template: tmpl, Err: err}
	}
	out, err := parsed.Render(buildContext(frames))
	if err != nil {
		return "", &RenderError{Template: tmpl, Err: err}
	}
	return out, nil
}

func (r *Resolver) parse(tmpl string) (*mustache.Template, error) {
	if parsed, ok := r.cache.Get(tmpl); ok {
		return parsed, nil
	}
	parsed, err := mustache.ParseStringRaw(tmpl, true)
	if err != nil {
		return nil, err
	}
	r.cache.Add(tmpl, parsed)
	return parsed, nil
}

func buildContext(frames []Frame) map[string]any {
	ctx := make(map[string]any, len(frames))
	for _, f := range frames {
		ctx[f.SpellID] = map[string]any{
			"query":     f.Query,
			"spellId":   f.SpellID,
			"selection": selection(f.Selected),
		}
	}
	return map[string]any{"context": ctx}
}

func selection(item *domain.Item) map[string]any {
	if item == nil {
		return map[string]any{
			"type":   "",
			"label":  "",
			"data":   "",
			"fields": []string{},
			"raw":    "",
		}
	}
	return map[string]any{
		"type":   item.Kind,
		"label":  item.Label,
		"data":   item.Data,
		"fields": item.Fields(),
		"raw":    item.String(),
	}
}
