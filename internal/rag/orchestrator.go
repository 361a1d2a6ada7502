// Package rag answers questions over indexed documents with a two-node
// pipeline: retrieve, then generate. No cycles, no retries.
//
// Retrieval reuses the search scope filters but re-validates candidates
// against the point payload only — no relational round-trip. That is an
// intentional cheaper check: RAG output is best-effort generation context,
// not an access-control boundary.
package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docsearchd/internal/completion"
	"github.com/fyrsmithlabs/docsearchd/internal/embeddings"
	"github.com/fyrsmithlabs/docsearchd/internal/logging"
	"github.com/fyrsmithlabs/docsearchd/internal/vectorstore"
)

const (
	// maxContexts is the number of context chunks handed to generation.
	maxContexts = 5

	// fetchK is the candidate fan-out per retrieval query, before the
	// local re-filter and dedup trim it down to maxContexts.
	fetchK = 20

	// maxExpansions caps the query-expansion alternatives.
	maxExpansions = 2
)

const answerSystemPrompt = `You are a documentation assistant. Answer the question using only the provided context. If the context does not contain enough information to answer, say so plainly. Do not invent facts.`

const expandSystemPrompt = `Rewrite the user's search query as up to two alternative phrasings that could surface additional relevant documents. Reply with one phrasing per line and nothing else.`

var answersTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "docsearchd",
		Subsystem: "rag",
		Name:      "answers_total",
		Help:      "RAG answers by outcome.",
	},
	[]string{"status"},
)

// Context is one retrieved chunk included in the generation prompt.
type Context struct {
	PointID    string  `json:"-"`
	FileID     string  `json:"file_id"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float32 `json:"score"`
}

// Answer is the generated response plus the contexts it was grounded on.
type Answer struct {
	Text     string    `json:"answer"`
	Contexts []Context `json:"contexts"`
}

// Orchestrator runs the retrieve → generate pipeline.
type Orchestrator struct {
	store     vectorstore.Store
	embedder  embeddings.Client
	completer completion.Client
	logger    *logging.Logger

	collection    string
	expandQueries bool
}

// NewOrchestrator wires the pipeline. expandQueries enables the optional
// completion-backed query expansion during retrieval.
func NewOrchestrator(
	store vectorstore.Store,
	embedder embeddings.Client,
	completer completion.Client,
	collection string,
	expandQueries bool,
	logger *logging.Logger,
) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		store:         store,
		embedder:      embedder,
		completer:     completer,
		logger:        logger.Named("rag"),
		collection:    collection,
		expandQueries: expandQueries,
	}
}

// Answer retrieves context for the query within scope and generates a
// response constrained to it. Retrieval failures degrade to an empty context
// (producing a low-confidence answer); only a failed completion call
// propagates, since there is no answer to degrade to.
func (o *Orchestrator) Answer(ctx context.Context, query string, scope vectorstore.Scope) (*Answer, error) {
	contexts := o.retrieve(ctx, query, scope)

	text, err := o.generate(ctx, query, contexts)
	if err != nil {
		answersTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	answersTotal.WithLabelValues("ok").Inc()
	return &Answer{Text: text, Contexts: contexts}, nil
}

// retrieve embeds the query (and optional expansions), searches within
// scope, re-filters each hit's payload locally against the same scope, and
// keeps the top contexts after dedup. Every failure path returns what was
// gathered so far — retrieval never aborts the pipeline.
func (o *Orchestrator) retrieve(ctx context.Context, query string, scope vectorstore.Scope) []Context {
	queries := []string{query}
	if o.expandQueries {
		queries = append(queries, o.expand(ctx, query)...)
	}

	var candidates []vectorstore.ScoredPoint
	for _, q := range queries {
		vector, err := o.embedder.EmbedQuery(ctx, q)
		if err != nil {
			o.logger.Warn(ctx, "query embedding failed, continuing without it", zap.Error(err))
			continue
		}
		for _, hit := range o.store.Search(ctx, o.collection, vector, fetchK, scope) {
			if hit.Payload == nil || !scope.Matches(hit.Payload) {
				continue
			}
			candidates = append(candidates, hit)
		}
	}

	merged := mergeCandidates(candidates, maxContexts)
	contexts := make([]Context, 0, len(merged))
	for _, hit := range merged {
		contexts = append(contexts, Context{
			PointID:    hit.ID,
			FileID:     hit.Payload.FileID,
			ChunkIndex: hit.Payload.ChunkIndex,
			Text:       hit.Payload.Text,
			Score:      hit.Score,
		})
	}
	return contexts
}

// expand asks the completion model for alternative phrasings. Best-effort:
// errors yield no expansions.
func (o *Orchestrator) expand(ctx context.Context, query string) []string {
	reply, err := o.completer.Complete(ctx, expandSystemPrompt, query)
	if err != nil {
		o.logger.Warn(ctx, "query expansion failed, using original query only", zap.Error(err))
		return nil
	}

	var expansions []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.EqualFold(line, query) {
			continue
		}
		expansions = append(expansions, line)
		if len(expansions) == maxExpansions {
			break
		}
	}
	return expansions
}

// generate builds the constrained prompt and makes one completion call. The
// prompt is deterministic given the query and contexts.
func (o *Orchestrator) generate(ctx context.Context, query string, contexts []Context) (string, error) {
	var b strings.Builder
	if len(contexts) == 0 {
		b.WriteString("No context documents were found.\n")
	} else {
		b.WriteString("Context:\n")
		for i, c := range contexts {
			if i > 0 {
				b.WriteString("\n---\n")
			}
			b.WriteString(c.Text)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(query)

	return o.completer.Complete(ctx, answerSystemPrompt, b.String())
}

// mergeCandidates deduplicates candidates gathered from multiple retrieval
// sources: grouped by (file_id, chunk_index) when the file id is present,
// otherwise by point id; the highest-scoring candidate of each group
// survives. The result is sorted descending by score and truncated to limit.
func mergeCandidates(candidates []vectorstore.ScoredPoint, limit int) []vectorstore.ScoredPoint {
	best := make(map[string]vectorstore.ScoredPoint, len(candidates))
	for _, candidate := range candidates {
		key := candidate.ID
		if candidate.Payload != nil && candidate.Payload.FileID != "" {
			key = fmt.Sprintf("%s#%d", candidate.Payload.FileID, candidate.Payload.ChunkIndex)
		}
		if existing, ok := best[key]; !ok || candidate.Score > existing.Score {
			best[key] = candidate
		}
	}

	merged := make([]vectorstore.ScoredPoint, 0, len(best))
	for _, candidate := range best {
		merged = append(merged, candidate)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
