// Package feeds loads and indexes the watchlist of RSS/Atom feed sources.
package feeds

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var fetchIntervalPattern = regexp.MustCompile(`^\d+[smhd]$`)

// Feed is a single configured RSS/Atom source.
type Feed struct {
	Name          string `yaml:"name"`
	URL           string `yaml:"url"`
	Category      string `yaml:"category"`
	Enabled       bool   `yaml:"enabled"`
	FetchInterval string `yaml:"fetch_interval"`
}

// Settings holds registry-wide feed defaults.
type Settings struct {
	DefaultFetchInterval string `yaml:"default_fetch_interval"`
	MaxArticlesPerFetch  int    `yaml:"max_articles_per_fetch"`
}

// Document is the top-level shape of the feeds YAML configuration.
type Document struct {
	Feeds      []Feed   `yaml:"feeds"`
	Categories []string `yaml:"categories"`
	Settings   Settings `yaml:"settings"`
}

// ConfigInvalidError reports a malformed feeds or keywords registry.
// It is non-retryable and surfaces at startup.
type ConfigInvalidError struct {
	Reason string
}

func (e *ConfigInvalidError) Error() string {
	return fmt.Sprintf("config invalid: %s", e.Reason)
}

// Registry is an indexed, validated view over a feeds Document.
type Registry struct {
	doc    Document
	byName map[string]*Feed
}

// LoadRegistry parses and validates a feeds YAML document.
func LoadRegistry(data []byte) (*Registry, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigInvalidError{Reason: fmt.Sprintf("yaml parse: %v", err)}
	}

	byName := make(map[string]*Feed, len(doc.Feeds))
	for i := range doc.Feeds {
		f := &doc.Feeds[i]
		if _, dup := byName[f.Name]; dup {
			return nil, &ConfigInvalidError{Reason: fmt.Sprintf("duplicate feed name %q", f.Name)}
		}
		if err := validateURL(f.URL); err != nil {
			return nil, &ConfigInvalidError{Reason: fmt.Sprintf("feed %q: %v", f.Name, err)}
		}
		interval := f.FetchInterval
		if interval == "" {
			interval = doc.Settings.DefaultFetchInterval
		}
		if !fetchIntervalPattern.MatchString(interval) {
			return nil, &ConfigInvalidError{Reason: fmt.Sprintf("feed %q: malformed fetch_interval %q", f.Name, f.FetchInterval)}
		}
		byName[f.Name] = f
	}

	return &Registry{doc: doc, byName: byName}, nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url %q must be http or https", raw)
	}
	return nil
}

// Enabled returns every feed with Enabled=true.
func (r *Registry) Enabled() []Feed {
	var out []Feed
	for _, f := range r.doc.Feeds {
		if f.Enabled {
			out = append(out, f)
		}
	}
	return out
}

// ByName looks up a feed by its configured name.
func (r *Registry) ByName(name string) (Feed, bool) {
	f, ok := r.byName[name]
	if !ok {
		return Feed{}, false
	}
	return *f, true
}

// Categories returns the declared feed categories.
func (r *Registry) Categories() []string {
	return r.doc.Categories
}

// StripTrackingParams removes common tracking query parameters from a URL,
// returning the canonical form used for dedup fingerprints.
func StripTrackingParams(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") || lower == "fbclid" || lower == "gclid" || lower == "ref" || lower == "source" {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return u.String()
}
