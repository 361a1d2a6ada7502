// Package search answers scoped semantic queries: the vector store generates
// candidates, the relational catalog validates them.
//
// The two-phase contract is deliberate: point payloads are denormalized
// snapshots that drift when files move or memberships change, so the scope
// fields on a payload only narrow the candidate set. Existence, access and
// scope membership are always re-checked against the catalog before a hit is
// returned.
package search

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docsearchd/internal/catalog"
	"github.com/fyrsmithlabs/docsearchd/internal/embeddings"
	"github.com/fyrsmithlabs/docsearchd/internal/logging"
	"github.com/fyrsmithlabs/docsearchd/internal/vectorstore"
)

// DefaultLimit is the result count when the request does not specify one.
const DefaultLimit = 10

var queriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "docsearchd",
		Subsystem: "search",
		Name:      "queries_total",
		Help:      "Search queries by scope kind and outcome.",
	},
	[]string{"scope", "status"},
)

// Request is one search invocation.
type Request struct {
	// Query is the free-text query. Required.
	Query string `json:"query"`

	// Limit caps the result count. Defaults to DefaultLimit, clamped to
	// [1, 100].
	Limit int `json:"limit,omitempty"`

	// UserID is the requesting user. Required; without it every access
	// check fails and the response is empty.
	UserID string `json:"-"`

	// ProjectID narrows the search to one project.
	ProjectID string `json:"project_id,omitempty"`

	// MeetingID narrows the search to one meeting. Takes precedence over
	// ProjectID.
	MeetingID string `json:"meeting_id,omitempty"`
}

// Result is one validated hit, enriched from the relational record.
type Result struct {
	FileID     string  `json:"file_id"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float32 `json:"score"`
	ChunkSize  int     `json:"chunk_size"`
	Filename   string  `json:"filename"`
	MimeType   string  `json:"mime_type"`
}

// Response is the search result set, ordered by descending similarity.
type Response struct {
	Results      []Result `json:"results"`
	TotalResults int      `json:"total_results"`
}

// Service performs scoped semantic search.
type Service struct {
	store    vectorstore.Store
	embedder embeddings.Client
	catalog  catalog.Store
	logger   *logging.Logger

	collection string
}

// NewService wires the search path.
func NewService(store vectorstore.Store, embedder embeddings.Client, cat catalog.Store, collection string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		store:      store,
		embedder:   embedder,
		catalog:    cat,
		logger:     logger.Named("search"),
		collection: collection,
	}
}

// Search runs one scoped query. It never fails: embedding errors, vector
// store errors and validation drops all degrade to fewer (or zero) results,
// because search is advisory rather than a critical path.
func (s *Service) Search(ctx context.Context, req Request) *Response {
	resp := &Response{Results: []Result{}}
	scope := vectorstore.Scope{UserID: req.UserID, ProjectID: req.ProjectID, MeetingID: req.MeetingID}

	if req.Query == "" {
		queriesTotal.WithLabelValues(scopeKind(scope), "empty").Inc()
		return resp
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > 100 {
		limit = 100
	}

	queryVector, err := s.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		s.logger.Warn(ctx, "query embedding failed, returning no results", zap.Error(err))
		queriesTotal.WithLabelValues(scopeKind(scope), "error").Inc()
		return resp
	}

	hits := s.store.Search(ctx, s.collection, queryVector, limit, scope)
	for _, hit := range hits {
		result, ok := s.validate(ctx, req, hit)
		if !ok {
			continue
		}
		resp.Results = append(resp.Results, result)
	}

	resp.TotalResults = len(resp.Results)
	queriesTotal.WithLabelValues(scopeKind(scope), "ok").Inc()
	return resp
}

// validate applies the relational double-check to one candidate: the file
// must exist, the user must pass the access check, and an explicitly
// requested scope must match the file's current relational scope. Drops are
// silent; access is never an error here.
func (s *Service) validate(ctx context.Context, req Request, hit vectorstore.ScoredPoint) (Result, bool) {
	payload := hit.Payload
	if payload == nil || payload.FileID == "" {
		return Result{}, false
	}

	file, err := s.catalog.FileByID(ctx, payload.FileID)
	if err != nil {
		if !errors.Is(err, catalog.ErrFileNotFound) {
			s.logger.Warn(ctx, "file lookup failed, dropping hit",
				zap.String("file_id", payload.FileID),
				zap.Error(err))
		}
		return Result{}, false
	}

	allowed, err := s.catalog.HasAccess(ctx, file, req.UserID)
	if err != nil || !allowed {
		return Result{}, false
	}

	if !scopeStillMatches(req, file) {
		// The payload filter matched but the relational record moved on:
		// an indexing-consistency signal, not an error.
		s.logger.Debug(ctx, "stale scope on indexed point, dropping hit",
			zap.String("file_id", file.ID),
			zap.String("file_project_id", file.ProjectID),
			zap.String("file_meeting_id", file.MeetingID))
		return Result{}, false
	}

	return Result{
		FileID:     file.ID,
		ChunkIndex: payload.ChunkIndex,
		Text:       payload.Text,
		Score:      hit.Score,
		ChunkSize:  len(payload.Text),
		Filename:   file.Name,
		MimeType:   file.MimeType,
	}, true
}

// scopeStillMatches checks an explicitly requested scope against the
// relational record, mirroring the vector filter semantics: a meeting scope
// admits the meeting's files plus the user's own unattached files, a project
// scope admits the project's files plus the user's own files.
func scopeStillMatches(req Request, file *catalog.File) bool {
	switch {
	case req.MeetingID != "":
		if file.MeetingID == req.MeetingID {
			return true
		}
		return file.ProjectID == "" && file.MeetingID == "" && file.UploadedBy == req.UserID
	case req.ProjectID != "":
		return file.ProjectID == req.ProjectID || file.UploadedBy == req.UserID
	default:
		return true
	}
}

func scopeKind(scope vectorstore.Scope) string {
	switch {
	case scope.MeetingID != "":
		return "meeting"
	case scope.ProjectID != "":
		return "project"
	default:
		return "none"
	}
}
