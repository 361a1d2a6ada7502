package vectorstore

import (
	"github.com/qdrant/go-client/qdrant"
)

// Scope narrows a search to a meeting, a project, or nothing. Meeting takes
// precedence over project when both are set. The zero Scope matches all
// points.
type Scope struct {
	// UserID is the requesting user. Required for meeting scope and used to
	// widen project scope to the user's own uploads.
	UserID string

	// ProjectID narrows to one project's content.
	ProjectID string

	// MeetingID narrows to one meeting's content. Takes precedence over
	// ProjectID.
	MeetingID string
}

// IsZero reports whether the scope applies no narrowing.
func (s Scope) IsZero() bool {
	return s.MeetingID == "" && s.ProjectID == ""
}

// Filter builds the Qdrant filter for this scope, or nil for an unscoped
// search (post-validation against the relational store then carries the
// entire access burden).
//
// Meeting scope: meeting_id == M OR (is_global AND uploaded_by == U) —
// meeting content from any member plus the requesting user's own global
// uploads, never another user's global content.
//
// Project scope: project_id == P OR uploaded_by == U — project content plus
// the user's own files even when not yet attached to the project.
func (s Scope) Filter() *qdrant.Filter {
	switch {
	case s.MeetingID != "":
		return &qdrant.Filter{
			Should: []*qdrant.Condition{
				matchKeyword(FieldMeetingID, s.MeetingID),
				nested(&qdrant.Filter{
					Must: []*qdrant.Condition{
						matchBool(FieldIsGlobal, true),
						matchKeyword(FieldUploadedBy, s.UserID),
					},
				}),
			},
		}
	case s.ProjectID != "":
		return &qdrant.Filter{
			Should: []*qdrant.Condition{
				matchKeyword(FieldProjectID, s.ProjectID),
				matchKeyword(FieldUploadedBy, s.UserID),
			},
		}
	default:
		return nil
	}
}

// Matches evaluates the scope against a payload, mirroring Filter's
// semantics. This is the payload-only check: cheaper and laxer than the
// relational validation, appropriate for best-effort retrieval but never for
// an access-control boundary.
func (s Scope) Matches(p *Payload) bool {
	if p == nil {
		return false
	}
	switch {
	case s.MeetingID != "":
		return p.MeetingID == s.MeetingID || (p.IsGlobal && p.UploadedBy == s.UserID)
	case s.ProjectID != "":
		return p.ProjectID == s.ProjectID || p.UploadedBy == s.UserID
	default:
		return true
	}
}

// fieldMatchFilter matches all points whose payload field equals value.
func fieldMatchFilter(field, value string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{matchKeyword(field, value)},
	}
}

func matchKeyword(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

func matchBool(key string, value bool) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Boolean{Boolean: value},
				},
			},
		},
	}
}

func nested(filter *qdrant.Filter) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Filter{Filter: filter},
	}
}
