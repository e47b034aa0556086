// Package http provides HTTP handlers for protection-level settings and
// data migration.
package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/BasedHardware/omi-sub000/internal/middleware"
	"github.com/BasedHardware/omi-sub000/internal/models"
)

// MigrationService defines the migration operations required by the handlers.
type MigrationService interface {
	// Status returns every document still awaiting migration to the target level.
	Status(ctx context.Context, uid string, target models.ProtectionLevel) ([]models.PendingMigration, error)
	// MigrateBatch migrates the requested documents, grouped by family and level.
	MigrateBatch(ctx context.Context, uid string, requests []models.MigrationRequest) error
}

// UserService defines the profile operations required by the handlers.
type UserService interface {
	// GetLevel returns the user's default protection level.
	GetLevel(ctx context.Context, uid string) (models.ProtectionLevel, error)
	// SetLevel updates the user's default protection level.
	SetLevel(ctx context.Context, uid string, level models.ProtectionLevel) error
}

// UsersHandler handles the protection-level and migration endpoints.
type UsersHandler struct {
	Migrations MigrationService
	Users      UserService
}

// GetLevel handles GET /v1/users/data-protection-level.
func (h *UsersHandler) GetLevel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := middleware.GetUserIDFromContext(ctx)

	level, err := h.Users.GetLevel(ctx, uid)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{models.LevelKey: level})
}

// SetLevel handles PATCH /v1/users/data-protection-level.
func (h *UsersHandler) SetLevel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := middleware.GetUserIDFromContext(ctx)

	var req models.MigrationTargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if !req.TargetLevel.Valid() {
		http.Error(w, "invalid target_level", http.StatusBadRequest)
		return
	}
	if err := h.Users.SetLevel(ctx, uid, req.TargetLevel); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"status": "ok"})
}

// GetMigrationRequests handles GET /v1/users/migration/requests.
// It reports which documents still need migration to the target level.
func (h *UsersHandler) GetMigrationRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := middleware.GetUserIDFromContext(ctx)

	target := models.ProtectionLevel(r.URL.Query().Get("target_level"))
	if target != models.LevelEnhanced {
		http.Error(w, "invalid target_level, only migration to 'enhanced' is supported", http.StatusBadRequest)
		return
	}

	pending, err := h.Migrations.Status(ctx, uid, target)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"needs_migration": pending})
}

// HandleMigrationRequest handles POST /v1/users/migration/requests.
// With an id and type it migrates a single document; with only a
// target_level it acknowledges the start of the migration process.
func (h *UsersHandler) HandleMigrationRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := middleware.GetUserIDFromContext(ctx)

	var req models.MigrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		if req.TargetLevel != models.LevelEnhanced {
			http.Error(w, "invalid target_level, only migration to 'enhanced' is supported", http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{"status": "ok", "message": "Migration started."})
		return
	}
	if !req.TargetLevel.Valid() {
		http.Error(w, "invalid target_level", http.StatusBadRequest)
		return
	}
	if err := h.Migrations.MigrateBatch(ctx, uid, []models.MigrationRequest{req}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"status": "ok"})
}

// HandleBatchMigrationRequests handles POST /v1/users/migration/batch-requests.
func (h *UsersHandler) HandleBatchMigrationRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := middleware.GetUserIDFromContext(ctx)

	var req models.BatchMigrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := h.Migrations.MigrateBatch(ctx, uid, req.Requests); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"status": "ok"})
}

// FinalizeMigration handles
// POST /v1/users/migration/requests/data-protection-level/finalize.
// It flips the profile's default level once every document is re-encoded.
func (h *UsersHandler) FinalizeMigration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := middleware.GetUserIDFromContext(ctx)

	var req models.MigrationTargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.TargetLevel != models.LevelEnhanced {
		http.Error(w, "invalid target_level, only migration to 'enhanced' is supported", http.StatusBadRequest)
		return
	}
	if err := h.Users.SetLevel(ctx, uid, req.TargetLevel); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
