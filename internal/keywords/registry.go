// Package keywords loads the watchlist of target terms and matches them
// against article content, exactly and fuzzily.
package keywords

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Term is a single tracked keyword within a category.
type Term struct {
	Keyword     string   `yaml:"keyword"`
	Variations  []string `yaml:"variations"`
	Weight      float64  `yaml:"weight"`
	Description string   `yaml:"description"`
}

// Category groups related terms (e.g. "malware_families", "threat_actors").
type Category struct {
	Name  string `yaml:"-"`
	Terms []Term `yaml:"terms"`
}

// Settings controls the matcher's behavior.
type Settings struct {
	CaseSensitive         bool    `yaml:"case_sensitive"`
	WordBoundaryMatching  bool    `yaml:"word_boundary_matching"`
	EnableFuzzyMatching   bool    `yaml:"enable_fuzzy_matching"`
	MaxEditDistance       int     `yaml:"max_edit_distance"`
	MinConfidence         float64 `yaml:"min_confidence"`
	ContextWindow         int     `yaml:"context_window"`
}

// DefaultSettings returns the matcher defaults named in the spec.
func DefaultSettings() Settings {
	return Settings{
		CaseSensitive:        false,
		WordBoundaryMatching: true,
		EnableFuzzyMatching:  false,
		MaxEditDistance:      2,
		MinConfidence:        0.7,
		ContextWindow:        10,
	}
}

// rawDocument mirrors the YAML shape: four top-level priority-tier term
// lists (critical, high, medium, low) plus a settings block.
type rawDocument struct {
	Critical []Term `yaml:"critical"`
	High     []Term `yaml:"high"`
	Medium   []Term `yaml:"medium"`
	Low      []Term `yaml:"low"`
	Settings Settings `yaml:"settings"`
}

// Document is the fully indexed keyword registry.
type Document struct {
	Categories map[string][]Term
	Settings   Settings
}

// ConfigInvalidError reports a malformed keyword registry.
type ConfigInvalidError struct {
	Reason string
}

func (e *ConfigInvalidError) Error() string {
	return fmt.Sprintf("config invalid: %s", e.Reason)
}

// LoadDocument parses and validates a keywords YAML document into an
// indexed Registry. Validation fails with ConfigInvalidError if any weight
// is outside [0,1] or any duplicate primary term exists within a category.
func LoadDocument(data []byte) (*Registry, error) {
	var raw rawDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigInvalidError{Reason: fmt.Sprintf("yaml parse: %v", err)}
	}

	doc := Document{
		Categories: map[string][]Term{
			"critical": raw.Critical,
			"high":     raw.High,
			"medium":   raw.Medium,
			"low":      raw.Low,
		},
		Settings: raw.Settings,
	}
	if doc.Settings.MaxEditDistance == 0 {
		doc.Settings.MaxEditDistance = 2
	}
	if doc.Settings.MinConfidence == 0 {
		doc.Settings.MinConfidence = 0.7
	}

	for category, terms := range doc.Categories {
		seen := make(map[string]bool, len(terms))
		for _, t := range terms {
			if t.Weight < 0 || t.Weight > 1 {
				return nil, &ConfigInvalidError{Reason: fmt.Sprintf("category %q: keyword %q weight %.2f out of [0,1]", category, t.Keyword, t.Weight)}
			}
			if seen[t.Keyword] {
				return nil, &ConfigInvalidError{Reason: fmt.Sprintf("category %q: duplicate primary term %q", category, t.Keyword)}
			}
			seen[t.Keyword] = true
		}
	}

	return newRegistry(doc), nil
}

// indexEntry is the registry's lookup-by-term record.
type indexEntry struct {
	Term     Term
	Category string
	IsPrimary bool
}

// Registry is the loaded, indexed keyword registry ready for matching.
type Registry struct {
	doc Document

	// primary term (lowercased) -> entry
	byPrimary map[string]indexEntry
	// variation (lowercased) -> entry naming the owning primary term
	byVariation map[string]indexEntry
}

func newRegistry(doc Document) *Registry {
	r := &Registry{
		doc:         doc,
		byPrimary:   make(map[string]indexEntry),
		byVariation: make(map[string]indexEntry),
	}
	for category, terms := range doc.Categories {
		for _, t := range terms {
			key := normalizeKey(t.Keyword)
			r.byPrimary[key] = indexEntry{Term: t, Category: category, IsPrimary: true}
			for _, v := range t.Variations {
				r.byVariation[normalizeKey(v)] = indexEntry{Term: t, Category: category, IsPrimary: false}
			}
		}
	}
	return r
}

// AllTerms returns every configured term across all categories, in
// unspecified order.
func (r *Registry) AllTerms() []Term {
	var out []Term
	for _, terms := range r.doc.Categories {
		out = append(out, terms...)
	}
	return out
}

// Settings returns the matcher settings from the loaded document.
func (r *Registry) Settings() Settings {
	return r.doc.Settings
}
