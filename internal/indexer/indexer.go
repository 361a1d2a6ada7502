// Package indexer turns uploaded documents into stored vector points: fetch
// bytes, extract text, chunk, embed, upsert. One run per file; the caller's
// job scheduler is responsible for at-most-one concurrent run per file.
package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docsearchd/internal/catalog"
	"github.com/fyrsmithlabs/docsearchd/internal/chunker"
	"github.com/fyrsmithlabs/docsearchd/internal/embeddings"
	"github.com/fyrsmithlabs/docsearchd/internal/logging"
	"github.com/fyrsmithlabs/docsearchd/internal/vectorstore"
)

var (
	// ErrNoReadableContent indicates extraction or chunking produced
	// nothing to index. Reported distinctly from backend errors so
	// operators can tell "bad document" from "infrastructure down".
	ErrNoReadableContent = errors.New("no readable content")

	// ErrEmbeddingFailed indicates the embedding client returned an error
	// or no vectors.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrVectorStoreUnavailable indicates the upsert or delete did not
	// apply after retries.
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")

	// ErrUnsupportedFileType indicates a MIME type the extractor cannot
	// handle.
	ErrUnsupportedFileType = errors.New("unsupported file type")
)

var runsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "docsearchd",
		Subsystem: "indexer",
		Name:      "runs_total",
		Help:      "Indexing runs by outcome.",
	},
	[]string{"operation", "status"},
)

// Step is one stage of an indexing run.
type Step string

const (
	StepExtracting Step = "extracting"
	StepChunking   Step = "chunking"
	StepEmbedding  Step = "embedding"
	StepStoring    Step = "storing"
	StepCompleted  Step = "completed"
	StepFailed     Step = "failed"
)

// Per-step progress percentages reported to the task runner.
var stepProgress = map[Step]int{
	StepExtracting: 10,
	StepChunking:   30,
	StepEmbedding:  50,
	StepStoring:    80,
	StepCompleted:  100,
}

// ObjectStore fetches the raw bytes of an uploaded file. The object-storage
// wire protocol lives outside this service.
type ObjectStore interface {
	Fetch(ctx context.Context, file *catalog.File) ([]byte, error)
}

// ProgressReporter receives step/percent updates during a run. Delivery is
// best-effort: implementations must not block, and their failures are
// non-fatal to the run.
type ProgressReporter interface {
	Report(fileID string, step Step, percent int)
}

// NopProgress discards progress updates.
type NopProgress struct{}

func (NopProgress) Report(string, Step, int) {}

// Service runs the indexing pipeline.
type Service struct {
	store    vectorstore.Store
	embedder embeddings.Client
	chunker  *chunker.Chunker
	objects  ObjectStore
	progress ProgressReporter
	logger   *logging.Logger
	tracker  *runTracker

	collection string
	vectorSize int
}

// NewService wires the pipeline. progress may be nil.
func NewService(
	store vectorstore.Store,
	embedder embeddings.Client,
	ch *chunker.Chunker,
	objects ObjectStore,
	progress ProgressReporter,
	collection string,
	vectorSize int,
	logger *logging.Logger,
) *Service {
	if progress == nil {
		progress = NopProgress{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		store:      store,
		embedder:   embedder,
		chunker:    ch,
		objects:    objects,
		progress:   progress,
		logger:     logger.Named("indexer"),
		tracker:    newRunTracker(),
		collection: collection,
		vectorSize: vectorSize,
	}
}

// Index runs the full pipeline for one file. Failures propagate to the job
// scheduler so it can retry and report; the terminal failed state is
// reachable from any step.
func (s *Service) Index(ctx context.Context, file *catalog.File) error {
	err := s.run(ctx, file)
	if err != nil {
		s.tracker.fail(file.ID)
		s.report(file.ID, StepFailed)
		runsTotal.WithLabelValues("index", "error").Inc()
		s.logger.Error(ctx, "indexing failed",
			zap.String("file_id", file.ID),
			zap.String("file_name", file.Name),
			zap.Error(err))
		return err
	}

	s.tracker.finish(file.ID)
	s.report(file.ID, StepCompleted)
	runsTotal.WithLabelValues("index", "ok").Inc()
	return nil
}

func (s *Service) run(ctx context.Context, file *catalog.File) error {
	s.tracker.begin(file.ID, StepExtracting)
	s.report(file.ID, StepExtracting)

	data, err := s.objects.Fetch(ctx, file)
	if err != nil {
		return fmt.Errorf("fetching file %s: %w", file.ID, err)
	}
	text, err := extractText(file.MimeType, data)
	if err != nil {
		return fmt.Errorf("extracting file %s: %w", file.ID, err)
	}

	s.tracker.begin(file.ID, StepChunking)
	s.report(file.ID, StepChunking)

	chunks := s.chunker.Chunk(text)
	if len(chunks) == 0 {
		return fmt.Errorf("%w: file %s", ErrNoReadableContent, file.ID)
	}

	s.tracker.begin(file.ID, StepEmbedding)
	s.report(file.ID, StepEmbedding)

	vectors, err := s.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: got %d vectors for %d chunks", ErrEmbeddingFailed, len(vectors), len(chunks))
	}

	s.tracker.begin(file.ID, StepStoring)
	s.report(file.ID, StepStoring)

	payloads := make([]*vectorstore.Payload, len(chunks))
	for i, chunk := range chunks {
		payload := &vectorstore.Payload{
			Text:        chunk,
			ChunkIndex:  i,
			TotalChunks: len(chunks),
			SourceFile:  file.Name,
			FileID:      file.ID,
			ProjectID:   file.ProjectID,
			MeetingID:   file.MeetingID,
			UploadedBy:  file.UploadedBy,
			FileType:    file.MimeType,
		}
		payload.Normalize()
		payloads[i] = payload
	}

	s.store.EnsureCollection(ctx, s.collection, s.vectorSize)
	if !s.store.Upsert(ctx, s.collection, vectors, payloads) {
		return fmt.Errorf("%w: upsert of %d points did not apply", ErrVectorStoreUnavailable, len(payloads))
	}

	s.logger.Info(ctx, "file indexed",
		zap.String("file_id", file.ID),
		zap.String("file_name", file.Name),
		zap.Int("chunk_count", len(chunks)))
	return nil
}

// Reindex deletes the file's existing points and runs a fresh index. This is
// destructive-then-additive, not transactional: between the delete and the
// upsert completing, the file is unsearchable. Concurrent reindexes of the
// same file must be serialized by the caller.
func (s *Service) Reindex(ctx context.Context, file *catalog.File) error {
	if !s.store.DeleteByField(ctx, s.collection, vectorstore.FieldFileID, file.ID) {
		runsTotal.WithLabelValues("reindex", "error").Inc()
		return fmt.Errorf("%w: delete of stale points did not apply", ErrVectorStoreUnavailable)
	}
	return s.Index(ctx, file)
}

// Delete removes every point of the file. Idempotent.
func (s *Service) Delete(ctx context.Context, fileID string) error {
	if !s.store.DeleteByField(ctx, s.collection, vectorstore.FieldFileID, fileID) {
		return fmt.Errorf("%w: delete for file %s did not apply", ErrVectorStoreUnavailable, fileID)
	}
	s.tracker.clear(fileID)
	return nil
}

// SyncScope patches the file's stored payloads to match its current
// relational scope, so a file moved between projects or meetings does not
// need re-embedding. Best-effort: returns ErrVectorStoreUnavailable when the
// patch did not apply.
func (s *Service) SyncScope(ctx context.Context, file *catalog.File) error {
	patch := map[string]any{
		vectorstore.FieldProjectID: file.ProjectID,
		vectorstore.FieldMeetingID: file.MeetingID,
		vectorstore.FieldIsGlobal:  file.ProjectID == "" && file.MeetingID == "" && file.UploadedBy != "",
	}

	if !s.store.UpdatePayloadByField(ctx, s.collection, vectorstore.FieldFileID, file.ID, patch) {
		return fmt.Errorf("%w: scope patch for file %s did not apply", ErrVectorStoreUnavailable, file.ID)
	}
	s.logger.Info(ctx, "file scope synced",
		zap.String("file_id", file.ID),
		zap.String("project_id", file.ProjectID),
		zap.String("meeting_id", file.MeetingID))
	return nil
}

// report delivers one progress update, swallowing reporter panics.
func (s *Service) report(fileID string, step Step) {
	defer func() { _ = recover() }()
	s.progress.Report(fileID, step, stepProgress[step])
}
