package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"google.golang.org/genai"

	"sentinel/internal/core"
)

// GenAIModel is a single google.golang.org/genai-backed implementation of
// every model interface this package declares. Production deployments can
// swap any one of these for a different provider without touching the
// pipeline, since each is consumed through its own narrow interface.
type GenAIModel struct {
	client         *genai.Client
	generativeName string
	embeddingName  string
}

// NewGenAIModel constructs a genai client from apiKey for
// genai.BackendGeminiAPI, the same client-construction shape the teacher's
// internal/llm.Client uses.
func NewGenAIModel(ctx context.Context, apiKey, generativeModel, embeddingModel string) (*GenAIModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("models: create genai client: %w", err)
	}
	return &GenAIModel{client: client, generativeName: generativeModel, embeddingName: embeddingModel}, nil
}

func (m *GenAIModel) generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}
	resp, err := m.client.Models.GenerateContent(ctx, m.generativeName, contents, nil)
	if err != nil {
		return "", fmt.Errorf("models: generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("models: empty response from model")
	}
	return text, nil
}

// Embed implements EmbeddingModel.
func (m *GenAIModel) Embed(ctx context.Context, text string) ([]float64, error) {
	result, err := m.client.Models.EmbedContent(ctx, m.embeddingName, []*genai.Content{{
		Parts: []*genai.Part{{Text: text}},
	}}, nil)
	if err != nil {
		return nil, fmt.Errorf("models: embed content: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("models: empty embedding response")
	}
	values := result.Embeddings[0].Values
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out, nil
}

// AssessRelevance implements RelevanceModel.
func (m *GenAIModel) AssessRelevance(ctx context.Context, title, content, keywordSummary string) (RelevanceAssessment, error) {
	prompt := fmt.Sprintf(`You are a cyber threat intelligence triage analyst. Given the article
title, body, and the keyword matches already found in it, judge whether
this article is relevant to a cybersecurity intelligence watchlist.

Title: %s
Keyword matches: %s
Body:
%s

Respond with a single JSON object: {"is_relevant": bool, "relevancy_score": number between 0 and 1, "rationale": string}.`, title, keywordSummary, content)

	raw, err := m.generate(ctx, prompt)
	if err != nil {
		return RelevanceAssessment{}, err
	}

	obj := ExtractJSONObject(raw)
	if obj == "" {
		return RelevanceAssessment{}, fmt.Errorf("models: no JSON object found in relevance response")
	}
	parsed := gjson.Parse(obj)
	return RelevanceAssessment{
		IsRelevant:     parsed.Get("is_relevant").Bool(),
		RelevancyScore: parsed.Get("relevancy_score").Float(),
		Rationale:      parsed.Get("rationale").String(),
	}, nil
}

// ExtractEntities implements EntityExtractionModel.
func (m *GenAIModel) ExtractEntities(ctx context.Context, content string) (core.EntityExtraction, error) {
	prompt := fmt.Sprintf(`Extract named entities from the following cybersecurity article. Return
a single JSON object with these exact keys, each an array of strings:
"cves", "threat_actors", "malware", "vendors", "products", "sectors", "countries".
Use an empty array for any kind with no matches.

Article:
%s`, content)

	raw, err := m.generate(ctx, prompt)
	if err != nil {
		return core.EntityExtraction{}, err
	}

	obj := ExtractJSONObject(raw)
	if obj == "" {
		return core.EntityExtraction{}, fmt.Errorf("models: no JSON object found in entity extraction response")
	}
	parsed := gjson.Parse(obj)
	return core.EntityExtraction{
		CVEs:         stringArray(parsed.Get("cves")),
		ThreatActors: stringArray(parsed.Get("threat_actors")),
		Malware:      stringArray(parsed.Get("malware")),
		Vendors:      stringArray(parsed.Get("vendors")),
		Products:     stringArray(parsed.Get("products")),
		Sectors:      stringArray(parsed.Get("sectors")),
		Countries:    stringArray(parsed.Get("countries")),
	}, nil
}

// Moderate implements ModerationModel.
func (m *GenAIModel) Moderate(ctx context.Context, title, content string) (ModerationFinding, error) {
	prompt := fmt.Sprintf(`Judge the following article for bias and sensationalism. Respond with a
single JSON object: {"has_bias": bool, "bias_type": string, "severity":
one of "low","medium","high","critical", "description": string,
"confidence": number between 0 and 1}.

Title: %s
Body:
%s`, title, content)

	raw, err := m.generate(ctx, prompt)
	if err != nil {
		return ModerationFinding{}, err
	}

	obj := ExtractJSONObject(raw)
	if obj == "" {
		return ModerationFinding{}, fmt.Errorf("models: no JSON object found in moderation response")
	}
	parsed := gjson.Parse(obj)
	return ModerationFinding{
		HasBias:     parsed.Get("has_bias").Bool(),
		BiasType:    parsed.Get("bias_type").String(),
		Severity:    core.Severity(parsed.Get("severity").String()),
		Description: parsed.Get("description").String(),
		Confidence:  parsed.Get("confidence").Float(),
	}, nil
}

// DetectPII implements PIIModel.
func (m *GenAIModel) DetectPII(ctx context.Context, content string) ([]PIISpan, error) {
	prompt := fmt.Sprintf(`Find spans of personally identifying information in the following text:
named persons, street addresses, dates of birth, and government ID
numbers. Respond with a single JSON object: {"spans": [{"start": int,
"end": int, "kind": string, "confidence": number}]}. Character offsets
are into the exact text given below.

Text:
%s`, content)

	raw, err := m.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	obj := ExtractJSONObject(raw)
	if obj == "" {
		return nil, fmt.Errorf("models: no JSON object found in PII response")
	}

	var spans []PIISpan
	gjson.Parse(obj).Get("spans").ForEach(func(_, value gjson.Result) bool {
		spans = append(spans, PIISpan{
			Start:      int(value.Get("start").Int()),
			End:        int(value.Get("end").Int()),
			Kind:       value.Get("kind").String(),
			Confidence: value.Get("confidence").Float(),
		})
		return true
	})
	return spans, nil
}

func stringArray(result gjson.Result) []string {
	var out []string
	result.ForEach(func(_, value gjson.Result) bool {
		if s := value.String(); s != "" {
			out = append(out, s)
		}
		return true
	})
	return out
}

// ExtractJSONObject locates the first balanced {...} substring in text,
// tolerating surrounding prose or markdown code fences the model may add
// around its JSON response.
func ExtractJSONObject(text string) string {
	text = strings.TrimSpace(text)
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// inside a string literal, braces don't count
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
