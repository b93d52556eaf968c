package guardrail

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"sentinel/internal/core"
	"sentinel/internal/models"
)

var sensationalWords = map[string]bool{
	"shocking": true, "devastating": true, "unprecedented": true, "explosive": true,
	"bombshell": true, "terrifying": true, "catastrophic": true, "alarming": true,
}

var biasLexicons = map[string]map[string]bool{
	"political": {"leftist": true, "far-right": true, "radical": true, "regime": true},
	"emotional": {"outrageous": true, "horrifying": true, "heartbreaking": true},
	"absolute":  {"always": true, "never": true, "everyone": true, "no one": true},
}

var bannedTerms = map[string]bool{}

var wordSplitter = regexp.MustCompile(`[\p{L}\p{N}']+`)

const (
	titleSensationalDensityThreshold = 0.15
	bodySensationalDensityThreshold  = 0.03
)

// checkBias runs the lexicon-based sensationalism/bias checks and
// consults the external ModerationModel.
func checkBias(ctx context.Context, title, content string, model models.ModerationModel) []core.Violation {
	var violations []core.Violation

	titleWords := wordSplitter.FindAllString(strings.ToLower(title), -1)
	bodyWords := wordSplitter.FindAllString(strings.ToLower(content), -1)

	if density := lexiconDensity(titleWords, sensationalWords); density > titleSensationalDensityThreshold {
		violations = append(violations, core.Violation{
			Kind:        "sensationalism_title",
			Severity:    core.SeverityMedium,
			Description: fmt.Sprintf("sensational-word density in title is %.0f%%", density*100),
			Confidence:  0.7,
		})
	}
	if density := lexiconDensity(bodyWords, sensationalWords); density > bodySensationalDensityThreshold {
		violations = append(violations, core.Violation{
			Kind:        "sensationalism_body",
			Severity:    core.SeverityLow,
			Description: fmt.Sprintf("sensational-word density in body is %.1f%%", density*100),
			Confidence:  0.6,
		})
	}

	allWords := append(append([]string{}, titleWords...), bodyWords...)
	for category, lexicon := range biasLexicons {
		if containsAny(allWords, lexicon) {
			violations = append(violations, core.Violation{
				Kind:        "bias_" + category,
				Severity:    core.SeverityMedium,
				Description: fmt.Sprintf("%s bias indicator terms present", category),
				Confidence:  0.65,
			})
		}
	}

	if containsAny(allWords, bannedTerms) {
		violations = append(violations, core.Violation{
			Kind:        "banned_term",
			Severity:    core.SeverityHigh,
			Description: "banned term present",
			Confidence:  0.95,
		})
	}

	if model != nil {
		finding, err := model.Moderate(ctx, title, content)
		if err == nil && finding.HasBias {
			severity := finding.Severity
			if severity == "" {
				severity = core.SeverityMedium
			}
			violations = append(violations, core.Violation{
				Kind:        "moderation_" + finding.BiasType,
				Severity:    severity,
				Description: finding.Description,
				Confidence:  finding.Confidence,
			})
		}
	}

	return violations
}

func lexiconDensity(words []string, lexicon map[string]bool) float64 {
	if len(words) == 0 {
		return 0
	}
	var hits int
	for _, w := range words {
		if lexicon[w] {
			hits++
		}
	}
	return float64(hits) / float64(len(words))
}

func containsAny(words []string, lexicon map[string]bool) bool {
	for _, w := range words {
		if lexicon[w] {
			return true
		}
	}
	return false
}
