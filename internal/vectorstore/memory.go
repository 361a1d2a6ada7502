package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store with the same operation semantics as the
// Qdrant gateway, including scope filtering and cosine scoring. It backs
// tests and local development without a running vector database.
//
// Setting Unavailable simulates a disconnected backend: mutations stop
// applying, searches degrade to nil and counts error.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]int
	points      map[string]*memoryPoint

	Unavailable bool
}

type memoryPoint struct {
	id      string
	vector  []float32
	payload *Payload
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]int),
		points:      make(map[string]*memoryPoint),
	}
}

// Len returns the number of stored points.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.points)
}

// EnsureCollection implements Store.
func (s *MemoryStore) EnsureCollection(_ context.Context, name string, dim int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Unavailable || ValidateCollectionName(name) != nil {
		return false
	}
	if _, ok := s.collections[name]; ok {
		return false
	}
	s.collections[name] = dim
	return true
}

// Upsert implements Store.
func (s *MemoryStore) Upsert(_ context.Context, collection string, vectors [][]float32, payloads []*Payload) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Unavailable || ValidateCollectionName(collection) != nil {
		return false
	}
	if len(vectors) == 0 || len(vectors) != len(payloads) {
		return false
	}
	for i := range vectors {
		id := uuid.New().String()
		copied := *payloads[i]
		s.points[id] = &memoryPoint{id: id, vector: vectors[i], payload: &copied}
	}
	return true
}

// Search implements Store: cosine scoring over all points passing the scope,
// descending, clamped to [1, 100].
func (s *MemoryStore) Search(_ context.Context, collection string, queryVector []float32, topK int, scope Scope) []ScoredPoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Unavailable || ValidateCollectionName(collection) != nil || len(queryVector) == 0 {
		return nil
	}
	if topK < 1 {
		topK = 1
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	var hits []ScoredPoint
	for _, point := range s.points {
		if !scope.Matches(point.payload) {
			continue
		}
		copied := *point.payload
		hits = append(hits, ScoredPoint{
			ID:      point.id,
			Score:   cosine(queryVector, point.vector),
			Payload: &copied,
		})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// DeleteByField implements Store.
func (s *MemoryStore) DeleteByField(_ context.Context, collection, field, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Unavailable || ValidateCollectionName(collection) != nil {
		return false
	}
	for id, point := range s.points {
		if fieldMatches(point.payload, field, value) {
			delete(s.points, id)
		}
	}
	return true
}

// UpdatePayloadByField implements Store.
func (s *MemoryStore) UpdatePayloadByField(_ context.Context, collection, field, value string, patch map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Unavailable || ValidateCollectionName(collection) != nil {
		return false
	}
	for _, point := range s.points {
		if fieldMatches(point.payload, field, value) {
			applyPatch(point.payload, patch)
		}
	}
	return true
}

// CountByField implements Store.
func (s *MemoryStore) CountByField(_ context.Context, collection, field, value string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Unavailable {
		return 0, ErrConnectionFailed
	}
	if err := ValidateCollectionName(collection); err != nil {
		return 0, err
	}
	var count uint64
	for _, point := range s.points {
		if fieldMatches(point.payload, field, value) {
			count++
		}
	}
	return count, nil
}

// HealthCheck implements Store.
func (s *MemoryStore) HealthCheck(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Unavailable {
		return ErrConnectionFailed
	}
	return nil
}

func fieldMatches(p *Payload, field, value string) bool {
	switch field {
	case FieldFileID:
		return p.FileID == value
	case FieldProjectID:
		return p.ProjectID == value
	case FieldMeetingID:
		return p.MeetingID == value
	case FieldUploadedBy:
		return p.UploadedBy == value
	case FieldSourceFile:
		return p.SourceFile == value
	default:
		return false
	}
}

func applyPatch(p *Payload, patch map[string]any) {
	for key, value := range patch {
		switch key {
		case FieldProjectID:
			if v, ok := value.(string); ok {
				p.ProjectID = v
			}
		case FieldMeetingID:
			if v, ok := value.(string); ok {
				p.MeetingID = v
			}
		case FieldUploadedBy:
			if v, ok := value.(string); ok {
				p.UploadedBy = v
			}
		case FieldIsGlobal:
			if v, ok := value.(bool); ok {
				p.IsGlobal = v
			}
		}
	}
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
