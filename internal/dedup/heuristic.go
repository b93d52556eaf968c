package dedup

const (
	titleSimilarityThreshold = 0.85
	urlPatternThreshold      = 0.90

	scoreExactURL       = 1.0
	scoreCanonicalURL   = 0.95
	methodExactURL      = "exact_url_match"
	methodCanonicalURL  = "canonical_url_match"
	methodTitleSim      = "title_similarity"
	methodURLPatternSim = "url_pattern_similarity"
)

// Candidate pairs a prior article's ID with its fingerprint, scoped to the
// 72-hour sliding window the caller has already filtered for.
type Candidate struct {
	ArticleID   string
	Fingerprint Fingerprint
}

// HeuristicResult is the outcome of the fingerprint comparison stage.
type HeuristicResult struct {
	IsDuplicate bool
	DuplicateOf string
	Score       float64
	Method      string
}

// RunHeuristic tests candidates, in spec order, against the new article's
// fingerprint and returns on the first match. Candidates are assumed
// pre-filtered to the 72-hour window. Each test is evaluated against every
// candidate before falling through to the next test, so candidate order
// only decides which candidate is reported when several pass the same test.
// The URL-pattern test skips pairs where either path is empty.
func RunHeuristic(fp Fingerprint, candidates []Candidate) HeuristicResult {
	for _, c := range candidates {
		if fp.URL != "" && fp.URL == c.Fingerprint.URL {
			return HeuristicResult{IsDuplicate: true, DuplicateOf: c.ArticleID, Score: scoreExactURL, Method: methodExactURL}
		}
	}
	for _, c := range candidates {
		if fp.CanonicalURL != "" && fp.CanonicalURL == c.Fingerprint.CanonicalURL {
			return HeuristicResult{IsDuplicate: true, DuplicateOf: c.ArticleID, Score: scoreCanonicalURL, Method: methodCanonicalURL}
		}
	}
	for _, c := range candidates {
		if fp.RegisteredDomain == "" || fp.RegisteredDomain != c.Fingerprint.RegisteredDomain {
			continue
		}
		ratio := sequenceRatio(fp.NormalizedTitle, c.Fingerprint.NormalizedTitle)
		if ratio >= titleSimilarityThreshold {
			return HeuristicResult{IsDuplicate: true, DuplicateOf: c.ArticleID, Score: ratio, Method: methodTitleSim}
		}
	}
	for _, c := range candidates {
		if fp.URLPath == "" || c.Fingerprint.URLPath == "" {
			continue
		}
		ratio := sequenceRatio(fp.URLPath, c.Fingerprint.URLPath)
		if ratio >= urlPatternThreshold {
			return HeuristicResult{IsDuplicate: true, DuplicateOf: c.ArticleID, Score: ratio, Method: methodURLPatternSim}
		}
	}
	return HeuristicResult{IsDuplicate: false}
}
