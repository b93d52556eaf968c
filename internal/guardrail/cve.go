package guardrail

import (
	"fmt"
	"regexp"
	"strconv"

	"sentinel/internal/core"
)

var (
	cveFormatPattern = regexp.MustCompile(`^CVE-(\d{4})-(\d{4,})$`)
	cveContentRegexp = regexp.MustCompile(`CVE-\d{4}-\d{4,}`)
)

const cveFirstValidYear = 1999

// checkCVE validates each extracted CVE's format and year range, then
// reconciles the extracted set against CVEs literally present in the
// content: extras not in the content are hallucinations (high); CVEs in
// the content but not extracted are missing (medium).
func checkCVE(extracted []string, content string, currentYear int) []core.Violation {
	var violations []core.Violation

	extractedSet := make(map[string]bool, len(extracted))
	for _, cve := range extracted {
		extractedSet[cve] = true

		match := cveFormatPattern.FindStringSubmatch(cve)
		if match == nil {
			violations = append(violations, core.Violation{
				Kind:        "cve_format",
				Severity:    core.SeverityHigh,
				Description: fmt.Sprintf("%q does not match CVE-YYYY-NNNN+ format", cve),
				Confidence:  0.95,
			})
			continue
		}
		year, _ := strconv.Atoi(match[1])
		if year < cveFirstValidYear || year > currentYear+1 {
			violations = append(violations, core.Violation{
				Kind:        "cve_year_range",
				Severity:    core.SeverityMedium,
				Description: fmt.Sprintf("%q has an out-of-range year %d", cve, year),
				Confidence:  0.85,
			})
		}
	}

	contentSet := make(map[string]bool)
	for _, m := range cveContentRegexp.FindAllString(content, -1) {
		contentSet[m] = true
	}

	for cve := range extractedSet {
		if !contentSet[cve] {
			violations = append(violations, core.Violation{
				Kind:        "cve_hallucination",
				Severity:    core.SeverityHigh,
				Description: fmt.Sprintf("%q was extracted but does not appear in the article content", cve),
				Confidence:  0.9,
			})
		}
	}
	for cve := range contentSet {
		if !extractedSet[cve] {
			violations = append(violations, core.Violation{
				Kind:        "cve_missing",
				Severity:    core.SeverityMedium,
				Description: fmt.Sprintf("%q appears in the article content but was not extracted", cve),
				Confidence:  0.8,
			})
		}
	}

	return violations
}
