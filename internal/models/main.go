// Package models defines the core data structures for protection levels,
// document families, and migration requests.
package models

// ProtectionLevel selects which sensitive fields of a document are encrypted.
type ProtectionLevel string

const (
	// LevelStandard stores sensitive fields compressed but unencrypted.
	LevelStandard ProtectionLevel = "standard"
	// LevelEnhanced stores sensitive fields encrypted under a per-user key.
	LevelEnhanced ProtectionLevel = "enhanced"
)

// Valid reports whether l is a known protection level.
func (l ProtectionLevel) Valid() bool {
	return l == LevelStandard || l == LevelEnhanced
}

// LevelKey is the reserved document field recording the protection level
// under which the document's sensitive fields were encoded.
const LevelKey = "data_protection_level"

// Visibility values; documents visible outside the owner's trust boundary
// are never re-encrypted under a per-user key.
const (
	VisibilityPrivate = "private"
	VisibilityPublic  = "public"
	VisibilityShared  = "shared"
)

// Document family type identifiers as used by migration requests.
const (
	FamilyConversation = "conversation"
	FamilyChat         = "chat"
	FamilyMemory       = "memory"
	FamilyPerson       = "person"
)

// MigrationRequest identifies a single document to migrate to a target
// protection level.
type MigrationRequest struct {
	// ID is the document id within its family's collection.
	ID string `json:"id"`
	// Type is the document family ("conversation", "chat", "memory", "person").
	Type string `json:"type"`
	// TargetLevel is the protection level to migrate the document to.
	TargetLevel ProtectionLevel `json:"target_level"`
}

// BatchMigrationRequest carries a set of migration requests which are grouped
// by family and target level before execution.
type BatchMigrationRequest struct {
	Requests []MigrationRequest `json:"requests"`
}

// MigrationTargetRequest initiates or finalizes a migration to a target level.
type MigrationTargetRequest struct {
	TargetLevel ProtectionLevel `json:"target_level"`
}

// PendingMigration describes one document still awaiting migration.
type PendingMigration struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}
