package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreFileByID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.PutFile(&File{ID: "f1", Name: "notes.txt", UploadedBy: "u1"})

	file, err := store.FileByID(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", file.Name)

	// Returned records are copies; mutations do not leak back.
	file.Name = "mutated"
	again, err := store.FileByID(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", again.Name)

	_, err = store.FileByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestMemoryStoreHasAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	projectFile := &File{ID: "f1", UploadedBy: "owner", ProjectID: "p1"}
	meetingFile := &File{ID: "f2", UploadedBy: "owner", MeetingID: "m1"}
	store.AddProjectMember("p1", "teammate")
	store.AddMeetingMember("m1", "attendee")

	ok, err := store.HasAccess(ctx, projectFile, "owner")
	require.NoError(t, err)
	assert.True(t, ok, "owner always has access")

	ok, _ = store.HasAccess(ctx, projectFile, "teammate")
	assert.True(t, ok, "project member has access")

	ok, _ = store.HasAccess(ctx, meetingFile, "attendee")
	assert.True(t, ok, "meeting member has access")

	ok, _ = store.HasAccess(ctx, projectFile, "stranger")
	assert.False(t, ok)

	store.RemoveProjectMember("p1", "teammate")
	ok, _ = store.HasAccess(ctx, projectFile, "teammate")
	assert.False(t, ok, "revoked member loses access")
}
