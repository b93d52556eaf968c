// Package query implements the read-only analyst-facing HTTP projection
// (spec.md §2, §4.11): article state, audit trail, and review-queue
// position. The natural-language query parser and report exporter stay
// external collaborators; this is the facade's literal, specified shape.
package query

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sentinel/internal/core"
	"sentinel/internal/store"
)

// Facade serves read-only article and review-queue state over HTTP.
type Facade struct {
	Articles *store.ArticleRepository
	Blob     store.BlobStore // optional; nil disables content retrieval
	router   chi.Router
	log      *slog.Logger
	metrics  *metrics
}

// NewFacade builds a Facade with routes and instrumentation wired. blob may
// be nil when no blob store is configured, in which case content retrieval
// responds 503 rather than panicking.
func NewFacade(articles *store.ArticleRepository, blob store.BlobStore, reg *prometheus.Registry) *Facade {
	f := &Facade{
		Articles: articles,
		Blob:     blob,
		log:      slog.Default(),
		metrics:  newMetrics(reg),
	}
	f.router = f.routes()
	return f
}

// ServeHTTP makes Facade an http.Handler.
func (f *Facade) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.router.ServeHTTP(w, r)
}

func (f *Facade) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(f.metrics.instrument)

	r.Get("/health", f.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(f.metrics.registry, promhttp.HandlerOpts{}))

	r.Route("/api/articles", func(r chi.Router) {
		r.Get("/{id}", f.handleGetArticle)
		r.Get("/{id}/audit", f.handleGetAuditTrail)
		r.Get("/{id}/content/{kind}", f.handleGetArticleContent)
	})
	r.Get("/api/review-queue", f.handleReviewQueue)

	return r
}

func (f *Facade) handleHealth(w http.ResponseWriter, r *http.Request) {
	f.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ArticleStateResponse is the projection handleGetArticle returns: just
// enough for an analyst to see where an article stands, not the full
// processing payload.
type ArticleStateResponse struct {
	ArticleID      string                 `json:"article_id"`
	Title          string                 `json:"title"`
	State          core.ArticleState      `json:"state"`
	TriageAction   core.TriageAction      `json:"triage_action,omitempty"`
	RelevancyScore float64                `json:"relevancy_score"`
	PriorityScore  float64                `json:"priority_score,omitempty"`
	IsDuplicate    bool                   `json:"is_duplicate"`
	Version        int64                  `json:"version"`
	Escalation     *core.EscalationRecord `json:"escalation,omitempty"`
}

func (f *Facade) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	article, err := f.Articles.Get(r.Context(), id)
	if err != nil {
		if store.IsNotFound(err) {
			f.respondError(w, http.StatusNotFound, "article not found")
			return
		}
		f.log.Error("query: failed to get article", "article_id", id, "error", err)
		f.respondError(w, http.StatusInternalServerError, "failed to load article")
		return
	}

	f.respondJSON(w, http.StatusOK, ArticleStateResponse{
		ArticleID:      article.ID,
		Title:          article.Title,
		State:          article.State,
		TriageAction:   article.TriageAction,
		RelevancyScore: article.RelevancyScore,
		PriorityScore:  article.PriorityScore,
		IsDuplicate:    article.IsDuplicate,
		Version:        article.Version,
		Escalation:     article.Escalation,
	})
}

func (f *Facade) handleGetAuditTrail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	article, err := f.Articles.Get(r.Context(), id)
	if err != nil {
		if store.IsNotFound(err) {
			f.respondError(w, http.StatusNotFound, "article not found")
			return
		}
		f.log.Error("query: failed to get article for audit trail", "article_id", id, "error", err)
		f.respondError(w, http.StatusInternalServerError, "failed to load article")
		return
	}

	f.respondJSON(w, http.StatusOK, map[string]interface{}{
		"article_id":  article.ID,
		"audit_trail": article.AuditTrail,
	})
}

// handleGetArticleContent serves the raw or normalized blob behind an
// article's RawBlobKey/NormalizedBlobKey reference (spec §4.2's
// content-store adapter), the one production path that exercises
// store.BlobStore.Get outside of the external feed parser's writes.
func (f *Facade) handleGetArticleContent(w http.ResponseWriter, r *http.Request) {
	if f.Blob == nil {
		f.respondError(w, http.StatusServiceUnavailable, "blob store not configured")
		return
	}

	id := chi.URLParam(r, "id")
	kind := chi.URLParam(r, "kind")

	article, err := f.Articles.Get(r.Context(), id)
	if err != nil {
		if store.IsNotFound(err) {
			f.respondError(w, http.StatusNotFound, "article not found")
			return
		}
		f.log.Error("query: failed to get article for content", "article_id", id, "error", err)
		f.respondError(w, http.StatusInternalServerError, "failed to load article")
		return
	}

	var ref string
	switch kind {
	case "raw":
		ref = article.RawBlobKey
	case "normalized":
		ref = article.NormalizedBlobKey
	default:
		f.respondError(w, http.StatusBadRequest, "kind must be 'raw' or 'normalized'")
		return
	}
	if ref == "" {
		f.respondError(w, http.StatusNotFound, "no stored content for this article")
		return
	}

	bucket, key, err := store.DecodeBlobRef(ref)
	if err != nil {
		f.log.Error("query: malformed blob ref", "article_id", id, "kind", kind, "error", err)
		f.respondError(w, http.StatusInternalServerError, "failed to resolve stored content")
		return
	}

	data, contentType, err := f.Blob.Get(r.Context(), bucket, key)
	if err != nil {
		if store.IsNotFound(err) {
			f.respondError(w, http.StatusNotFound, "stored content not found")
			return
		}
		f.log.Error("query: failed to read blob", "article_id", id, "kind", kind, "error", err)
		f.respondError(w, http.StatusInternalServerError, "failed to read stored content")
		return
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ReviewQueueEntry is one row of the ordered review queue: an article in
// REVIEW state plus its rank among its peers by priority.
type ReviewQueueEntry struct {
	ArticleID     string  `json:"article_id"`
	Title         string  `json:"title"`
	PriorityScore float64 `json:"priority_score"`
	Position      int     `json:"position"`
	Reason        string  `json:"reason,omitempty"`
}

func (f *Facade) handleReviewQueue(w http.ResponseWriter, r *http.Request) {
	articles, err := f.Articles.ListState(r.Context(), core.StateReview, 0)
	if err != nil {
		f.log.Error("query: failed to list review queue", "error", err)
		f.respondError(w, http.StatusInternalServerError, "failed to load review queue")
		return
	}

	sort.Slice(articles, func(i, j int) bool {
		return articles[i].PriorityScore > articles[j].PriorityScore
	})

	entries := make([]ReviewQueueEntry, len(articles))
	for i, article := range articles {
		entry := ReviewQueueEntry{
			ArticleID:     article.ID,
			Title:         article.Title,
			PriorityScore: article.PriorityScore,
			Position:      i + 1,
		}
		if article.Escalation != nil {
			entry.Reason = article.Escalation.Reason
		}
		entries[i] = entry
	}

	f.respondJSON(w, http.StatusOK, map[string]interface{}{
		"queue": entries,
		"total": len(entries),
	})
}

func (f *Facade) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		f.log.Error("query: failed to encode JSON response", "error", err)
	}
}

func (f *Facade) respondError(w http.ResponseWriter, status int, message string) {
	f.respondJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"status":  status,
			"message": message,
		},
	})
}
