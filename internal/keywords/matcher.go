package keywords

import (
	"regexp"
	"sort"
	"strings"

	"sentinel/internal/core"

	"github.com/agnivade/levenshtein"
)

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}'-]*`)

type wordOccurrence struct {
	text  string
	start int // index into words slice
}

// Match runs the keyword matcher (§4.1) over title+content and returns a
// KeywordMatch per matched primary term, sorted by confidence*weight desc.
func (r *Registry) Match(title, content string) []core.KeywordMatch {
	settings := r.doc.Settings
	text := title + " " + content
	if !settings.CaseSensitive {
		text = strings.ToLower(text)
	}

	words := wordPattern.FindAllString(text, -1)
	windowSize := settings.ContextWindow
	if windowSize <= 0 {
		windowSize = 10
	}

	byPrimaryKey := make(map[string]*core.KeywordMatch)

	// compareWords is the tokenized text to match exact phrases against:
	// lowercased unless settings.CaseSensitive asks to preserve case on
	// both sides of the comparison.
	compareWords := words
	if !settings.CaseSensitive {
		compareWords = lowerSlice(words)
	}

	// Exact matching: word-boundary occurrences of primary terms and
	// variations (each may be a multi-word phrase), mapped back to their
	// owning primary term.
	for _, entry := range r.exactEntries() {
		phrase := strings.TrimSpace(entry.phrase)
		if !settings.CaseSensitive {
			phrase = normalizeKey(phrase)
		}
		phraseWords := strings.Fields(phrase)
		n := len(phraseWords)
		if n == 0 {
			continue
		}
		for idx := 0; idx+n <= len(compareWords); idx++ {
			if !phraseEquals(compareWords[idx:idx+n], phraseWords) {
				continue
			}
			primaryKey := normalizeKey(entry.term.Keyword)
			km, ok := byPrimaryKey[primaryKey]
			if !ok {
				km = &core.KeywordMatch{Keyword: entry.term.Keyword, Confidence: 1.0}
				byPrimaryKey[primaryKey] = km
			}
			km.HitCount++
			if len(km.Contexts) < 5 {
				km.Contexts = append(km.Contexts, contextWindow(words, idx, windowSize))
			}
		}
	}

	// Fuzzy matching: only for primary terms with no exact match yet,
	// compared against single words and phrases scaled to term length.
	if settings.EnableFuzzyMatching {
		maxDist := settings.MaxEditDistance
		if maxDist <= 0 {
			maxDist = 2
		}
		minConf := settings.MinConfidence
		if minConf <= 0 {
			minConf = 0.7
		}
		for _, t := range r.AllTerms() {
			primaryKey := normalizeKey(t.Keyword)
			if _, already := byPrimaryKey[primaryKey]; already {
				continue // exact wins
			}
			termWords := strings.Fields(normalizeKey(t.Keyword))
			budget := maxDist * len(termWords)
			if budget <= 0 {
				budget = maxDist
			}

			var best *core.KeywordMatch
			for idx := range words {
				if idx+len(termWords) > len(words) {
					continue
				}
				candidate := strings.Join(lowerSlice(words[idx:idx+len(termWords)]), " ")
				dist := levenshtein.ComputeDistance(candidate, normalizeKey(t.Keyword))
				if dist > budget {
					continue
				}
				maxLen := len(candidate)
				if len(t.Keyword) > maxLen {
					maxLen = len(t.Keyword)
				}
				if maxLen == 0 {
					continue
				}
				confidence := 1.0 - float64(dist)/float64(maxLen)
				if confidence < minConf {
					continue
				}
				if best == nil {
					best = &core.KeywordMatch{Keyword: t.Keyword, Fuzzy: true}
				}
				best.HitCount++
				best.Confidence = maxFloat(best.Confidence, confidence)
				if len(best.Contexts) < 5 {
					best.Contexts = append(best.Contexts, contextWindow(words, idx, windowSize))
				}
			}
			if best != nil {
				byPrimaryKey[primaryKey] = best
			}
		}
	}

	matches := make([]core.KeywordMatch, 0, len(byPrimaryKey))
	weightOf := make(map[string]float64, len(byPrimaryKey))
	for _, t := range r.AllTerms() {
		weightOf[normalizeKey(t.Keyword)] = t.Weight
	}
	for _, km := range byPrimaryKey {
		matches = append(matches, *km)
	}

	sort.Slice(matches, func(i, j int) bool {
		wi := weightOf[normalizeKey(matches[i].Keyword)]
		wj := weightOf[normalizeKey(matches[j].Keyword)]
		return matches[i].Confidence*wi > matches[j].Confidence*wj
	})

	return matches
}

// exactEntry pairs a literal phrase (a primary term or one of its
// variations) with the owning term and its registry entry.
type exactEntry struct {
	phrase string
	term   Term
}

// exactEntries flattens the registry into one (phrase, term) pair per
// primary term and per variation, for phrase-aware exact scanning.
func (r *Registry) exactEntries() []exactEntry {
	var out []exactEntry
	for _, t := range r.AllTerms() {
		out = append(out, exactEntry{phrase: t.Keyword, term: t})
		for _, v := range t.Variations {
			out = append(out, exactEntry{phrase: v, term: t})
		}
	}
	return out
}

func phraseEquals(window, phrase []string) bool {
	if len(window) != len(phrase) {
		return false
	}
	for i := range window {
		if window[i] != phrase[i] {
			return false
		}
	}
	return true
}

func contextWindow(words []string, idx, size int) string {
	start := idx - size
	if start < 0 {
		start = 0
	}
	end := idx + size + 1
	if end > len(words) {
		end = len(words)
	}
	return strings.Join(words[start:end], " ")
}

func lowerSlice(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.ToLower(w)
	}
	return out
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
