package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadNormalize(t *testing.T) {
	personal := &Payload{FileID: "f1", UploadedBy: "u1"}
	personal.Normalize()
	assert.True(t, personal.IsGlobal, "no project and no meeting with an uploader is global")

	scoped := &Payload{FileID: "f1", UploadedBy: "u1", ProjectID: "p1"}
	scoped.Normalize()
	assert.False(t, scoped.IsGlobal)

	orphan := &Payload{FileID: "f1"}
	orphan.Normalize()
	assert.False(t, orphan.IsGlobal, "a point without an uploader is never global")
}

func TestPayloadRoundTrip(t *testing.T) {
	p := &Payload{
		Text:        "chunk text",
		ChunkIndex:  2,
		TotalChunks: 5,
		SourceFile:  "notes.pdf",
		FileID:      "f1",
		MeetingID:   "m1",
		UploadedBy:  "u1",
		FileType:    "application/pdf",
	}
	p.Normalize()

	m := p.ToValueMap()
	assert.NotContains(t, m, FieldProjectID, "empty scope fields are omitted so absence stays queryable")
	require.Contains(t, m, FieldMeetingID)

	got := PayloadFromValueMap(m)
	assert.Equal(t, p, got)
}

func TestToValueMapPatch(t *testing.T) {
	patch := map[string]any{
		FieldProjectID: "p2",
		FieldIsGlobal:  false,
		"chunk_count":  int64(7),
		"unsupported":  []string{"dropped"},
	}

	values := toValueMap(patch)
	assert.Len(t, values, 3)
	assert.Equal(t, "p2", values[FieldProjectID].GetStringValue())
	assert.False(t, values[FieldIsGlobal].GetBoolValue())
	assert.EqualValues(t, 7, values["chunk_count"].GetIntegerValue())
}
