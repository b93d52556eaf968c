// Package dedup implements the two-stage duplicate-detection engine: a
// cheap heuristic fingerprint comparison followed by a semantic
// embedding/vector-index fallback, plus the cluster-assignment bookkeeping
// that follows either stage.
package dedup

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var (
	titlePrefixPattern = regexp.MustCompile(`(?i)^\s*(breaking|urgent|update|exclusive)\s*[:\-–]\s*`)
	titlePunctPattern  = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	whitespacePattern  = regexp.MustCompile(`\s+`)

	datePathPattern = regexp.MustCompile(`/\d{4}/\d{2}/\d{2}/`)
	idPathPattern   = regexp.MustCompile(`/\d+(/|$)`)
)

// Fingerprint is the set of fields the heuristic stage compares between a
// new article and each candidate in the sliding window.
type Fingerprint struct {
	URL              string
	CanonicalURL     string
	NormalizedTitle  string
	RegisteredDomain string
	ContentHash      string
	URLPath          string
}

// NormalizeTitle lowercases, strips a leading "breaking:"/"urgent:"-style
// prefix, strips punctuation, and collapses whitespace.
func NormalizeTitle(title string) string {
	t := strings.ToLower(title)
	t = titlePrefixPattern.ReplaceAllString(t, "")
	t = titlePunctPattern.ReplaceAllString(t, " ")
	t = whitespacePattern.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// RegisteredDomain returns the registered-domain (eTLD+1) of a URL, or the
// raw host if public-suffix parsing fails.
func RegisteredDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := u.Hostname()
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// NormalizeURLPath replaces date segments (/YYYY/MM/DD/) with /DATE/ and
// bare numeric path segments with /ID/, so two URLs that differ only in
// the article's numeric ID or publish date compare equal.
func NormalizeURLPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	path := datePathPattern.ReplaceAllString(u.Path, "/DATE/")
	path = idPathPattern.ReplaceAllString(path, "/ID/")
	return path
}

// BuildFingerprint derives a Fingerprint from the raw fields stored on an
// article.
func BuildFingerprint(rawURL, canonicalURL, title, contentHash string) Fingerprint {
	return Fingerprint{
		URL:              rawURL,
		CanonicalURL:     canonicalURL,
		NormalizedTitle:  NormalizeTitle(title),
		RegisteredDomain: RegisteredDomain(canonicalURL),
		ContentHash:      contentHash,
		URLPath:          NormalizeURLPath(canonicalURL),
	}
}
