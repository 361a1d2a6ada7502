package vectorstore

import (
	"github.com/qdrant/go-client/qdrant"
)

// Payload field keys. These are the wire names stored on every point and
// used in filters; renaming any of them orphans previously indexed data.
const (
	FieldText        = "text"
	FieldChunkIndex  = "chunk_index"
	FieldTotalChunks = "total_chunks"
	FieldSourceFile  = "source_file"
	FieldFileID      = "file_id"
	FieldProjectID   = "project_id"
	FieldMeetingID   = "meeting_id"
	FieldUploadedBy  = "uploaded_by"
	FieldFileType    = "file_type"
	FieldIsGlobal    = "is_global"
)

// Payload is the denormalized metadata stored on a vector point: the chunk
// itself plus the scope snapshot taken at indexing time. Scope fields are a
// filter-narrowing hint only; the relational store remains the authority for
// access decisions.
type Payload struct {
	Text        string
	ChunkIndex  int
	TotalChunks int
	SourceFile  string

	FileID     string
	ProjectID  string
	MeetingID  string
	UploadedBy string
	FileType   string
	IsGlobal   bool
}

// Normalize derives IsGlobal from the scope fields: a point with no project
// and no meeting is globally visible to its uploader only.
func (p *Payload) Normalize() {
	p.IsGlobal = p.ProjectID == "" && p.MeetingID == "" && p.UploadedBy != ""
}

// ToValueMap converts the payload to the Qdrant wire representation.
// Optional scope fields are omitted when empty so absence is queryable.
func (p *Payload) ToValueMap() map[string]*qdrant.Value {
	m := map[string]*qdrant.Value{
		FieldText:        stringValue(p.Text),
		FieldChunkIndex:  intValue(int64(p.ChunkIndex)),
		FieldTotalChunks: intValue(int64(p.TotalChunks)),
		FieldSourceFile:  stringValue(p.SourceFile),
		FieldFileID:      stringValue(p.FileID),
		FieldIsGlobal:    boolValue(p.IsGlobal),
	}
	if p.ProjectID != "" {
		m[FieldProjectID] = stringValue(p.ProjectID)
	}
	if p.MeetingID != "" {
		m[FieldMeetingID] = stringValue(p.MeetingID)
	}
	if p.UploadedBy != "" {
		m[FieldUploadedBy] = stringValue(p.UploadedBy)
	}
	if p.FileType != "" {
		m[FieldFileType] = stringValue(p.FileType)
	}
	return m
}

// PayloadFromValueMap reconstructs a Payload from the Qdrant wire
// representation. Unknown keys and mismatched types are ignored.
func PayloadFromValueMap(m map[string]*qdrant.Value) *Payload {
	p := &Payload{}
	for key, value := range m {
		switch key {
		case FieldText:
			p.Text = value.GetStringValue()
		case FieldChunkIndex:
			p.ChunkIndex = int(value.GetIntegerValue())
		case FieldTotalChunks:
			p.TotalChunks = int(value.GetIntegerValue())
		case FieldSourceFile:
			p.SourceFile = value.GetStringValue()
		case FieldFileID:
			p.FileID = value.GetStringValue()
		case FieldProjectID:
			p.ProjectID = value.GetStringValue()
		case FieldMeetingID:
			p.MeetingID = value.GetStringValue()
		case FieldUploadedBy:
			p.UploadedBy = value.GetStringValue()
		case FieldFileType:
			p.FileType = value.GetStringValue()
		case FieldIsGlobal:
			p.IsGlobal = value.GetBoolValue()
		}
	}
	return p
}

// toValueMap converts a generic patch map to the Qdrant wire representation.
// Unsupported value types are dropped.
func toValueMap(patch map[string]any) map[string]*qdrant.Value {
	out := make(map[string]*qdrant.Value, len(patch))
	for key, value := range patch {
		switch v := value.(type) {
		case string:
			out[key] = stringValue(v)
		case int:
			out[key] = intValue(int64(v))
		case int64:
			out[key] = intValue(v)
		case float64:
			out[key] = &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: v}}
		case bool:
			out[key] = boolValue(v)
		case nil:
			out[key] = &qdrant.Value{Kind: &qdrant.Value_NullValue{}}
		}
	}
	return out
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func intValue(i int64) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: i}}
}

func boolValue(b bool) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: b}}
}
