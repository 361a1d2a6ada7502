package indexer

import (
	"context"
	"sync"

	"github.com/fyrsmithlabs/docsearchd/internal/vectorstore"
)

// Status is the externally visible indexing state of a file.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// StatusInfo is the indexing status surface for one file.
type StatusInfo struct {
	FileID   string `json:"file_id"`
	Status   Status `json:"status"`
	Progress int    `json:"progress"`
}

// runTracker remembers in-flight and failed runs per file. Completed runs
// leave no entry; completion is derived from the stored points instead, so
// the status survives process restarts.
type runTracker struct {
	mu   sync.Mutex
	runs map[string]*runState
}

type runState struct {
	step   Step
	failed bool
}

func newRunTracker() *runTracker {
	return &runTracker{runs: make(map[string]*runState)}
}

func (t *runTracker) begin(fileID string, step Step) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs[fileID] = &runState{step: step}
}

func (t *runTracker) fail(fileID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if state, ok := t.runs[fileID]; ok {
		state.failed = true
	} else {
		t.runs[fileID] = &runState{step: StepFailed, failed: true}
	}
}

func (t *runTracker) finish(fileID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.runs, fileID)
}

func (t *runTracker) clear(fileID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.runs, fileID)
}

func (t *runTracker) state(fileID string) (Step, bool, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.runs[fileID]
	if !ok {
		return "", false, false
	}
	return state.step, state.failed, true
}

// Status reports the indexing state of a file: an in-flight run wins, a
// recorded failure is failed, otherwise stored points mean completed and
// their absence not_started.
func (s *Service) Status(ctx context.Context, fileID string) (*StatusInfo, error) {
	if step, failed, ok := s.tracker.state(fileID); ok {
		if failed {
			return &StatusInfo{FileID: fileID, Status: StatusFailed, Progress: stepProgress[step]}, nil
		}
		return &StatusInfo{FileID: fileID, Status: StatusInProgress, Progress: stepProgress[step]}, nil
	}

	count, err := s.store.CountByField(ctx, s.collection, vectorstore.FieldFileID, fileID)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return &StatusInfo{FileID: fileID, Status: StatusCompleted, Progress: 100}, nil
	}
	return &StatusInfo{FileID: fileID, Status: StatusNotStarted, Progress: 0}, nil
}
