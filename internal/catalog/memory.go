package catalog

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store, used in tests and as a stand-in when
// the relational backend is wired elsewhere in the deployment.
type MemoryStore struct {
	mu             sync.RWMutex
	files          map[string]*File
	projectMembers map[string]map[string]bool
	meetingMembers map[string]map[string]bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files:          make(map[string]*File),
		projectMembers: make(map[string]map[string]bool),
		meetingMembers: make(map[string]map[string]bool),
	}
}

// PutFile inserts or replaces a file record.
func (s *MemoryStore) PutFile(file *File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *file
	s.files[file.ID] = &copied
}

// RemoveFile deletes a file record.
func (s *MemoryStore) RemoveFile(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, id)
}

// AddProjectMember grants userID membership of a project.
func (s *MemoryStore) AddProjectMember(projectID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.projectMembers[projectID] == nil {
		s.projectMembers[projectID] = make(map[string]bool)
	}
	s.projectMembers[projectID][userID] = true
}

// RemoveProjectMember revokes userID's membership of a project.
func (s *MemoryStore) RemoveProjectMember(projectID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.projectMembers[projectID], userID)
}

// AddMeetingMember grants userID membership of a meeting.
func (s *MemoryStore) AddMeetingMember(meetingID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meetingMembers[meetingID] == nil {
		s.meetingMembers[meetingID] = make(map[string]bool)
	}
	s.meetingMembers[meetingID][userID] = true
}

// FileByID implements Store.
func (s *MemoryStore) FileByID(_ context.Context, id string) (*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, ok := s.files[id]
	if !ok {
		return nil, ErrFileNotFound
	}
	copied := *file
	return &copied, nil
}

// HasAccess implements Store: the owner, project members and meeting members
// may read the file.
func (s *MemoryStore) HasAccess(_ context.Context, file *File, userID string) (bool, error) {
	if file == nil || userID == "" {
		return false, nil
	}
	if file.UploadedBy == userID {
		return true, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if file.ProjectID != "" && s.projectMembers[file.ProjectID][userID] {
		return true, nil
	}
	if file.MeetingID != "" && s.meetingMembers[file.MeetingID][userID] {
		return true, nil
	}
	return false, nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
