// Package core defines the domain types shared across the triage pipeline.
package core

import "time"

// ArticleState is the lifecycle state of an Article.
type ArticleState string

const (
	StateIngested  ArticleState = "INGESTED"
	StateProcessed ArticleState = "PROCESSED"
	StatePublished ArticleState = "PUBLISHED"
	StateReview    ArticleState = "REVIEW"
	StateArchived  ArticleState = "ARCHIVED"
)

// TriageAction is the output of the triage decision engine.
type TriageAction string

const (
	ActionAutoPublish TriageAction = "AUTO_PUBLISH"
	ActionReview       TriageAction = "REVIEW"
	ActionDrop         TriageAction = "DROP"
)

// Article is the central entity of the pipeline.
type Article struct {
	ID                string       `json:"article_id"`
	FeedID            string       `json:"feed_id"`
	CanonicalURL      string       `json:"canonical_url"` // fetched URL with tracking params removed
	RawURL            string       `json:"raw_url"`
	Title             string       `json:"title"`
	PublishedAt       time.Time    `json:"published_at"` // UTC
	IngestedAt        time.Time    `json:"ingested_at"`
	ContentHash       string       `json:"content_hash"` // hex SHA-256 of normalized text
	RawBlobKey        string       `json:"raw_blob_key"`
	NormalizedBlobKey string       `json:"normalized_blob_key"`

	// Processing outputs (versioned bag).
	RelevancyScore   float64         `json:"relevancy_score"`
	KeywordMatches   []KeywordMatch  `json:"keyword_matches"`
	Entities         EntityExtraction `json:"entities"`
	GuardrailFlags   []Violation     `json:"guardrail_flags"`
	TriageAction     TriageAction    `json:"triage_action"`
	PriorityScore    float64         `json:"priority_score"`
	Confidence       float64         `json:"confidence"`
	Summary          string          `json:"summary"`

	// Dedup/cluster bookkeeping.
	IsDuplicate  bool   `json:"is_duplicate"`
	DuplicateOf  string `json:"duplicate_of,omitempty"`
	ClusterID    string `json:"cluster_id,omitempty"`

	State   ArticleState `json:"state"`
	Version int64        `json:"version"`

	Escalation *EscalationRecord `json:"escalation,omitempty"`
	AuditTrail []AuditEntry      `json:"audit_trail,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
}

// KeywordMatch is a single target-term hit against an article's content.
type KeywordMatch struct {
	Keyword    string   `json:"keyword"`
	HitCount   int      `json:"hit_count"`
	Contexts   []string `json:"contexts,omitempty"` // up to 5, ~10-word windows
	Confidence float64  `json:"confidence"`         // 1.0 exact, lower for fuzzy
	Fuzzy      bool     `json:"fuzzy"`
}

// EntityExtraction holds named-entity lists keyed by kind.
type EntityExtraction struct {
	CVEs          []string `json:"cves"`
	ThreatActors  []string `json:"threat_actors"`
	Malware       []string `json:"malware"`
	Vendors       []string `json:"vendors"`
	Products      []string `json:"products"`
	Sectors       []string `json:"sectors"`
	Countries     []string `json:"countries"`
}

// Count returns the total number of extracted entities across all kinds.
func (e EntityExtraction) Count() int {
	return len(e.CVEs) + len(e.ThreatActors) + len(e.Malware) + len(e.Vendors) +
		len(e.Products) + len(e.Sectors) + len(e.Countries)
}

// Severity is the severity level of a guardrail violation.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Violation is a typed, severity-tagged finding emitted by a guardrail check.
type Violation struct {
	Kind        string   `json:"kind"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Confidence  float64  `json:"confidence"`
}

// EscalationRecord is attached to an article transitioned into REVIEW.
// Immutable once created.
type EscalationRecord struct {
	EscalationID  string            `json:"escalation_id"`
	Reason        string            `json:"reason"`
	PriorityScore float64           `json:"priority_score"`
	EscalatedAt   time.Time         `json:"escalated_at"`
	Context       map[string]string `json:"context,omitempty"`
}

// AuditEntry is an append-only record describing a single state-changing
// event on an article.
type AuditEntry struct {
	AuditID     string       `json:"audit_id"`
	Timestamp   time.Time    `json:"timestamp"`
	Action      string       `json:"action"`
	Actor       string       `json:"actor"`
	PrevState   ArticleState `json:"prev_state"`
	NewState    ArticleState `json:"new_state"`
	Decision    string       `json:"decision,omitempty"`
	Rationale   string       `json:"rationale,omitempty"`
	PrevVersion int64        `json:"prev_version"`
	NewVersion  int64        `json:"new_version"`
}

// CommentVisibility is the moderation state of a Comment.
type CommentVisibility string

const (
	VisibilityPublic    CommentVisibility = "public"
	VisibilityModerated CommentVisibility = "moderated"
	VisibilityDeleted   CommentVisibility = "deleted"
)

// MaxCommentDepth is the maximum nesting depth for a comment thread.
const MaxCommentDepth = 10

// Comment is a threaded comment attached to an article by a weak reference.
type Comment struct {
	CommentID       string            `json:"comment_id"`
	ArticleID       string            `json:"article_id"`
	ThreadID        string            `json:"thread_id"` // equals root comment's id
	ParentCommentID string            `json:"parent_comment_id,omitempty"`
	Author          string            `json:"author"`
	Content         string            `json:"content"`
	Depth           int               `json:"depth"`
	Visibility      CommentVisibility `json:"visibility"`
	CreatedAt       time.Time         `json:"created_at"`
	ReplyCount      int               `json:"reply_count"`
}

// ParsedArticle is the shape produced by the external feed parser per feed
// invocation. It is the orchestrator's only input per article.
type ParsedArticle struct {
	ArticleID          string
	Title              string
	URL                string
	CanonicalURL       string
	PublishedAt        time.Time // RFC3339 UTC
	Author             string
	NormalizedContent  string
	RawBlobRef         string
	NormalizedBlobRef  string
	ContentHash        string // hex SHA-256
	ExtractedURLs      []string
	Tags               []string
	FeedMetadata       map[string]string
}
