package guardrail

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"sentinel/internal/core"
	"sentinel/internal/models"
)

var piiRegexDetectors = []struct {
	kind       string
	pattern    *regexp.Regexp
	confidence float64
}{
	{"email", regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), 0.9},
	{"phone", regexp.MustCompile(`\b(?:\+?1[\s.\-]?)?\(?\d{3}\)?[\s.\-]\d{3}[\s.\-]\d{4}\b`), 0.75},
	{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), 0.9},
	{"credit_card", regexp.MustCompile(`\b(?:\d{4}[\s\-]){3}\d{4}\b`), 0.85},
	{"ipv4", regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), 0.6},
	{"opaque_token", regexp.MustCompile(`\b[a-zA-Z0-9]{32,}\b`), 0.5},
	{"bcrypt_hash", regexp.MustCompile(`\$2[aby]\$\d{2}\$[A-Za-z0-9./]{53}`), 0.95},
}

type span struct {
	start, end int
	kind       string
	confidence float64
}

// checkPII combines regex detectors with the external PIIModel, dedupes
// overlapping spans by (start, end), and on any hit emits one
// high-severity violation plus redacted content.
func checkPII(ctx context.Context, content string, model models.PIIModel) (violations []core.Violation, redacted string) {
	var spans []span
	for _, d := range piiRegexDetectors {
		for _, loc := range d.pattern.FindAllStringIndex(content, -1) {
			spans = append(spans, span{start: loc[0], end: loc[1], kind: d.kind, confidence: d.confidence})
		}
	}

	if model != nil {
		modelSpans, err := model.DetectPII(ctx, content)
		if err == nil {
			for _, s := range modelSpans {
				spans = append(spans, span{start: s.Start, end: s.End, kind: s.Kind, confidence: s.Confidence})
			}
		}
	}

	spans = dedupeSpans(spans)
	if len(spans) == 0 {
		return nil, ""
	}

	var confidenceSum float64
	for _, s := range spans {
		confidenceSum += s.confidence
	}
	meanConfidence := confidenceSum / float64(len(spans))

	violations = append(violations, core.Violation{
		Kind:        "pii",
		Severity:    core.SeverityHigh,
		Description: fmt.Sprintf("%d personally identifying span(s) detected", len(spans)),
		Confidence:  meanConfidence,
	})

	return violations, redact(content, spans)
}

// dedupeSpans removes duplicate (start, end) pairs, preferring the
// highest-confidence detector for any pair seen more than once.
func dedupeSpans(spans []span) []span {
	best := make(map[[2]int]span, len(spans))
	for _, s := range spans {
		key := [2]int{s.start, s.end}
		if existing, ok := best[key]; !ok || s.confidence > existing.confidence {
			best[key] = s
		}
	}
	out := make([]span, 0, len(best))
	for _, s := range best {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

func redact(content string, spans []span) string {
	// spans is sorted ascending by start and already deduped; overlapping
	// spans (from different detectors on the same text) are skipped past
	// once consumed by an earlier, wider span.
	var out []byte
	cursor := 0
	for _, s := range spans {
		if s.start < cursor || s.start > len(content) || s.end > len(content) || s.end <= s.start {
			continue
		}
		out = append(out, content[cursor:s.start]...)
		out = append(out, []byte(fmt.Sprintf("[REDACTED_%s]", upperKind(s.kind)))...)
		cursor = s.end
	}
	out = append(out, content[cursor:]...)
	return string(out)
}

func upperKind(kind string) string {
	out := make([]byte, len(kind))
	for i := 0; i < len(kind); i++ {
		c := kind[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
