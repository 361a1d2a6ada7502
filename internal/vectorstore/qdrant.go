package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/docsearchd/internal/logging"
)

// Tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("docsearchd.vectorstore.qdrant")

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

const (
	// maxTopK caps search fan-out to prevent resource exhaustion.
	maxTopK = 100

	// scrollPageSize is the page size for paginated point scans.
	scrollPageSize = 256
)

// ValidateCollectionName validates a collection name.
// Rejects: uppercase, special chars, path traversal, spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// IsTransientError checks if an error is transient (should retry).
// Returns true for network timeouts and temporary unavailability.
// Returns false for invalid arguments, not found, permission denied.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	st, ok := status.FromError(err)
	if !ok {
		return false
	}

	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// Gateway is the Qdrant-backed Store implementation over native gRPC
// (port 6334), bypassing the HTTP layer's payload size limits.
type Gateway struct {
	config *Config
	conns  *ConnectionManager
	logger *logging.Logger

	// collections caches collection existence to avoid repeated checks.
	collections sync.Map
}

// NewGateway creates a Gateway. The connection is dialed lazily on first
// use, so construction succeeds even while the backend is down.
func NewGateway(config *Config, conns *ConnectionManager, logger *logging.Logger) (*Gateway, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Gateway{
		config: config,
		conns:  conns,
		logger: logger.Named("vectorstore"),
	}, nil
}

// Collection returns the configured default collection name.
func (g *Gateway) Collection() string {
	return g.config.Collection
}

// VectorSize returns the configured embedding dimensionality.
func (g *Gateway) VectorSize() int {
	return g.config.VectorSize
}

// Close releases the underlying connection handle.
func (g *Gateway) Close() error {
	return g.conns.Close()
}

// HealthCheck probes the backend, invalidating the cached handle on failure.
func (g *Gateway) HealthCheck(ctx context.Context) error {
	return g.conns.HealthCheck(ctx)
}

// retry runs fn with exponential backoff on transient failures. A transient
// failure triggers a connection probe so a restarted backend gets a fresh
// handle on the next attempt.
func (g *Gateway) retry(ctx context.Context, operation string, fn func(client *qdrant.Client) error) error {
	start := time.Now()
	backoff := g.config.RetryBackoff
	var err error
	defer func() { observeOperation(operation, start, err) }()

	for attempt := 0; ; attempt++ {
		var client *qdrant.Client
		client, err = g.conns.Get(ctx)
		if err != nil {
			return err
		}

		err = fn(client)
		if err == nil {
			return nil
		}

		if !IsTransientError(err) {
			err = fmt.Errorf("%s failed (permanent): %w", operation, err)
			return err
		}

		if attempt == g.config.MaxRetries {
			err = fmt.Errorf("%s failed after %d retries: %w", operation, g.config.MaxRetries, err)
			return err
		}

		if _, healthErr := client.HealthCheck(ctx); healthErr != nil {
			g.conns.Invalidate()
		}

		select {
		case <-ctx.Done():
			err = fmt.Errorf("%s canceled: %w", operation, ctx.Err())
			return err
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

// EnsureCollection creates the collection if missing. Idempotent: returns
// true only when this call created it, false when it already existed or on
// any backend error (logged, not propagated — existence is re-checked on
// every indexing run).
func (g *Gateway) EnsureCollection(ctx context.Context, name string, dim int) bool {
	ctx, span := tracer.Start(ctx, "Gateway.EnsureCollection")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", name),
		attribute.Int("vector_size", dim),
	)

	if err := ValidateCollectionName(name); err != nil {
		g.logger.Warn(ctx, "rejecting collection name", zap.Error(err))
		return false
	}
	if _, ok := g.collections.Load(name); ok {
		return false
	}

	created := false
	err := g.retry(ctx, "ensure_collection", func(client *qdrant.Client) error {
		info, err := client.GetCollectionInfo(ctx, name)
		if err != nil {
			st, ok := status.FromError(err)
			if !ok || st.Code() != grpccodes.NotFound {
				return err
			}
		} else if info != nil {
			return nil
		}

		if err := client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dim),
				Distance: g.config.Distance,
			}),
		}); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Warn(ctx, "ensure collection failed",
			zap.String("collection", name),
			zap.Error(err))
		return false
	}

	g.collections.Store(name, true)
	span.SetStatus(codes.Ok, "success")
	return created
}

// Upsert stores one point per (vector, payload) pair under fresh UUIDs in a
// single batch call. Returns false on empty or mismatched input and on
// backend errors.
func (g *Gateway) Upsert(ctx context.Context, collection string, vectors [][]float32, payloads []*Payload) bool {
	ctx, span := tracer.Start(ctx, "Gateway.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("point_count", len(vectors)),
	)

	if err := ValidateCollectionName(collection); err != nil {
		g.logger.Warn(ctx, "rejecting collection name", zap.Error(err))
		return false
	}
	if len(vectors) == 0 || len(vectors) != len(payloads) {
		g.logger.Warn(ctx, "rejecting upsert input",
			zap.Int("vectors", len(vectors)),
			zap.Int("payloads", len(payloads)))
		return false
	}

	points := make([]*qdrant.PointStruct, len(vectors))
	for i := range vectors {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.New().String()),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: payloads[i].ToValueMap(),
		}
	}

	err := g.retry(ctx, "upsert", func(client *qdrant.Client) error {
		_, err := client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Error(ctx, "upsert failed",
			zap.String("collection", collection),
			zap.Int("point_count", len(points)),
			zap.Error(err))
		return false
	}

	span.SetStatus(codes.Ok, "success")
	return true
}

// Search returns up to topK nearest points for queryVector, narrowed by the
// scope filter. topK is clamped to [1, 100]. Any backend error degrades to
// nil: retrieval is advisory, not a critical path.
func (g *Gateway) Search(ctx context.Context, collection string, queryVector []float32, topK int, scope Scope) []ScoredPoint {
	ctx, span := tracer.Start(ctx, "Gateway.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("top_k", topK),
	)

	if err := ValidateCollectionName(collection); err != nil {
		g.logger.Warn(ctx, "rejecting collection name", zap.Error(err))
		return nil
	}
	if len(queryVector) == 0 {
		return nil
	}
	if topK < 1 {
		topK = 1
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	var results []*qdrant.ScoredPoint
	err := g.retry(ctx, "search", func(client *qdrant.Client) error {
		res, err := client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: collection,
			Query:          qdrant.NewQuery(queryVector...),
			Filter:         scope.Filter(),
			Limit:          qdrant.PtrOf(uint64(topK)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return err
		}
		results = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Warn(ctx, "search failed, degrading to empty results",
			zap.String("collection", collection),
			zap.Error(err))
		return nil
	}

	points := make([]ScoredPoint, 0, len(results))
	for _, result := range results {
		points = append(points, ScoredPoint{
			ID:      pointIDString(result.GetId()),
			Score:   result.GetScore(),
			Payload: PayloadFromValueMap(result.GetPayload()),
		})
	}

	span.SetAttributes(attribute.Int("result_count", len(points)))
	span.SetStatus(codes.Ok, "success")
	return points
}

// DeleteByField removes every point whose payload field matches value.
// Idempotent: deleting nothing is success.
func (g *Gateway) DeleteByField(ctx context.Context, collection, field, value string) bool {
	ctx, span := tracer.Start(ctx, "Gateway.DeleteByField")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.String("field", field),
	)

	if err := ValidateCollectionName(collection); err != nil {
		g.logger.Warn(ctx, "rejecting collection name", zap.Error(err))
		return false
	}

	err := g.retry(ctx, "delete_by_field", func(client *qdrant.Client) error {
		_, err := client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: collection,
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
					Filter: fieldMatchFilter(field, value),
				},
			},
			Wait: qdrant.PtrOf(true),
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Error(ctx, "delete by field failed",
			zap.String("collection", collection),
			zap.String("field", field),
			zap.Error(err))
		return false
	}

	span.SetStatus(codes.Ok, "success")
	return true
}

// UpdatePayloadByField patches the payload of every point whose field
// matches value: a paginated scan collects the matching ids, then one bulk
// SetPayload applies the patch. Used when a file's scope changes after
// indexing so embeddings need no recomputation. Patching nothing is success.
func (g *Gateway) UpdatePayloadByField(ctx context.Context, collection, field, value string, patch map[string]any) bool {
	ctx, span := tracer.Start(ctx, "Gateway.UpdatePayloadByField")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.String("field", field),
	)

	if err := ValidateCollectionName(collection); err != nil {
		g.logger.Warn(ctx, "rejecting collection name", zap.Error(err))
		return false
	}
	values := toValueMap(patch)
	if len(values) == 0 {
		return true
	}

	var ids []*qdrant.PointId
	err := g.retry(ctx, "scroll", func(client *qdrant.Client) error {
		ids = ids[:0]
		var offset *qdrant.PointId
		for {
			resp, err := client.GetPointsClient().Scroll(ctx, &qdrant.ScrollPoints{
				CollectionName: collection,
				Filter:         fieldMatchFilter(field, value),
				Limit:          qdrant.PtrOf(uint32(scrollPageSize)),
				Offset:         offset,
				WithPayload:    qdrant.NewWithPayload(false),
				WithVectors:    qdrant.NewWithVectors(false),
			})
			if err != nil {
				return err
			}
			for _, point := range resp.GetResult() {
				ids = append(ids, point.GetId())
			}
			offset = resp.GetNextPageOffset()
			if offset == nil || len(resp.GetResult()) == 0 {
				return nil
			}
		}
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Error(ctx, "payload scan failed",
			zap.String("collection", collection),
			zap.String("field", field),
			zap.Error(err))
		return false
	}
	if len(ids) == 0 {
		span.SetStatus(codes.Ok, "no matches")
		return true
	}

	err = g.retry(ctx, "set_payload", func(client *qdrant.Client) error {
		_, err := client.SetPayload(ctx, &qdrant.SetPayloadPoints{
			CollectionName: collection,
			Payload:        values,
			PointsSelector: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Points{
					Points: &qdrant.PointsIdsList{Ids: ids},
				},
			},
			Wait: qdrant.PtrOf(true),
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Error(ctx, "payload patch failed",
			zap.String("collection", collection),
			zap.Int("point_count", len(ids)),
			zap.Error(err))
		return false
	}

	span.SetAttributes(attribute.Int("point_count", len(ids)))
	span.SetStatus(codes.Ok, "success")
	return true
}

// CountByField returns the number of points whose payload field matches
// value. A missing collection counts as zero; connection failures propagate
// so callers can distinguish "nothing indexed" from "store unreachable".
func (g *Gateway) CountByField(ctx context.Context, collection, field, value string) (uint64, error) {
	ctx, span := tracer.Start(ctx, "Gateway.CountByField")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.String("field", field),
	)

	if err := ValidateCollectionName(collection); err != nil {
		return 0, err
	}

	var count uint64
	err := g.retry(ctx, "count", func(client *qdrant.Client) error {
		n, err := client.Count(ctx, &qdrant.CountPoints{
			CollectionName: collection,
			Filter:         fieldMatchFilter(field, value),
			Exact:          qdrant.PtrOf(true),
		})
		if err != nil {
			st, ok := status.FromError(err)
			if ok && st.Code() == grpccodes.NotFound {
				return ErrCollectionNotFound
			}
			return err
		}
		count = n
		return nil
	})
	if errors.Is(err, ErrCollectionNotFound) {
		return 0, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("counting points in %s: %w", collection, err)
	}

	span.SetAttributes(attribute.Int("count", int(count)))
	span.SetStatus(codes.Ok, "success")
	return count, nil
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

// Ensure Gateway implements Store.
var _ Store = (*Gateway)(nil)
