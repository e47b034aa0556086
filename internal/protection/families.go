// Package protection implements the per-user private-data protection layer:
// the field transformer that compresses and encrypts sensitive document
// fields, the protection-level resolver, and the write/read pipelines that
// repositories compose around the document store.
package protection

import (
	"github.com/BasedHardware/omi-sub000/internal/models"
)

// FieldKind selects the transformation strategy for a sensitive field.
type FieldKind int

const (
	// FieldText is a string field: encrypted at enhanced, plaintext at standard.
	FieldText FieldKind = iota
	// FieldHashedText is a string field that additionally maintains a
	// deterministic hash sibling for equality lookups while encrypted.
	FieldHashedText
	// FieldSegments is a list-of-maps field that is JSON-encoded and
	// compressed at every level, and additionally encrypted at enhanced.
	FieldSegments
)

// FieldSpec names one sensitive field and its transformation strategy.
type FieldSpec struct {
	Name string
	Kind FieldKind
}

// Marker is the sibling field signalling that the value holds a compressed frame.
func (f FieldSpec) Marker() string {
	return f.Name + "_compressed"
}

// HashField is the sibling field holding the deterministic query hash.
func (f FieldSpec) HashField() string {
	return f.Name + "_hash"
}

// FamilySpec enumerates the sensitive fields of one document family.
// Fields not listed here are stored verbatim.
type FamilySpec struct {
	// Name is the family type identifier used in migration requests.
	Name string
	// Fields are the sensitive fields of the family.
	Fields []FieldSpec
	// VisibilityField, when set, names the field whose "public" or "shared"
	// value excludes a document from per-user re-encryption.
	VisibilityField string
}

// Touches reports whether the document carries the reserved level key or any
// of the family's sensitive fields. Documents that touch neither bypass the
// write pipeline entirely.
func (s FamilySpec) Touches(doc map[string]any) bool {
	if _, ok := doc[models.LevelKey]; ok {
		return true
	}
	for _, f := range s.Fields {
		if _, ok := doc[f.Name]; ok {
			return true
		}
	}
	return false
}

// The document families covered by the protection layer.
var (
	Conversations = FamilySpec{
		Name:            models.FamilyConversation,
		Fields:          []FieldSpec{{Name: "transcript_segments", Kind: FieldSegments}},
		VisibilityField: "visibility",
	}
	Photos = FamilySpec{
		Name:   "photo",
		Fields: []FieldSpec{{Name: "base64", Kind: FieldText}},
	}
	ChatMessages = FamilySpec{
		Name:   models.FamilyChat,
		Fields: []FieldSpec{{Name: "text", Kind: FieldText}},
	}
	Memories = FamilySpec{
		Name:   models.FamilyMemory,
		Fields: []FieldSpec{{Name: "content", Kind: FieldText}},
	}
	People = FamilySpec{
		Name:   models.FamilyPerson,
		Fields: []FieldSpec{{Name: "phone_number", Kind: FieldHashedText}},
	}
)
