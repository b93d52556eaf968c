package guardrail

import (
	"encoding/json"
	"fmt"

	"sentinel/internal/core"
)

// SchemaKind names which declared schema a payload should be checked
// against.
type SchemaKind string

const (
	SchemaArticle          SchemaKind = "article"
	SchemaRelevanceResult  SchemaKind = "relevance_result"
	SchemaEntityExtraction SchemaKind = "entity_extraction"
)

var requiredFields = map[SchemaKind][]string{
	SchemaArticle:          {"article_id", "feed_id", "canonical_url", "title", "content_hash"},
	SchemaRelevanceResult:  {"is_relevant", "relevancy_score"},
	SchemaEntityExtraction: {"cves", "threat_actors", "malware", "vendors", "products", "sectors", "countries"},
}

// checkSchema validates payload (already-marshalled JSON) against the
// declared schema kind. Missing required fields are high severity; a
// present field with the wrong JSON type is also high; an unrecognized
// kind is medium.
func checkSchema(kind SchemaKind, payload []byte) []core.Violation {
	fields, known := requiredFields[kind]
	if !known {
		return []core.Violation{{
			Kind:        "schema",
			Severity:    core.SeverityMedium,
			Description: fmt.Sprintf("unknown schema kind %q", kind),
			Confidence:  0.9,
		}}
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return []core.Violation{{
			Kind:        "schema",
			Severity:    core.SeverityHigh,
			Description: fmt.Sprintf("payload is not a valid JSON object: %v", err),
			Confidence:  0.95,
		}}
	}

	var violations []core.Violation
	for _, field := range fields {
		value, present := doc[field]
		if !present {
			violations = append(violations, core.Violation{
				Kind:        "schema",
				Severity:    core.SeverityHigh,
				Description: fmt.Sprintf("missing required field %q", field),
				Confidence:  0.95,
			})
			continue
		}
		if !fieldTypeMatches(kind, field, value) {
			violations = append(violations, core.Violation{
				Kind:        "schema",
				Severity:    core.SeverityHigh,
				Description: fmt.Sprintf("field %q has an unexpected type", field),
				Confidence:  0.9,
			})
		}
	}
	return violations
}

func fieldTypeMatches(kind SchemaKind, field string, value interface{}) bool {
	switch field {
	case "is_relevant":
		_, ok := value.(bool)
		return ok
	case "relevancy_score":
		n, ok := value.(float64)
		return ok && n >= 0 && n <= 1
	case "cves", "threat_actors", "malware", "vendors", "products", "sectors", "countries":
		_, ok := value.([]interface{})
		return ok
	default:
		_, ok := value.(string)
		return ok
	}
}
