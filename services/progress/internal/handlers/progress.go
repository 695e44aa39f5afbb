package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/journey-platform/internal/journey/remotestore"
	"github.com/example/journey-platform/internal/platform/analytics"
	"github.com/example/journey-platform/internal/platform/api"
	"github.com/example/journey-platform/internal/platform/auth"
	"github.com/example/journey-platform/internal/platform/httpserver"
)

// ProgressHandler serves the per-user progress rows. The user always comes
// from the verified token, never from the body.
type ProgressHandler struct {
	rows remotestore.RowStore
	pub  *analytics.Publisher
	log  *zap.Logger
}

func NewProgressHandler(rows remotestore.RowStore, pub *analytics.Publisher, log *zap.Logger) *ProgressHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProgressHandler{rows: rows, pub: pub, log: log}
}

// Mount registers the routes behind RequireUser.
func (h *ProgressHandler) Mount(r chi.Router, verifier auth.JWTVerifier) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Get("/v1/journeys/{journey_id}/progress", h.Get)
		r.Put("/v1/journeys/{journey_id}/progress", h.Put)
	})
}

func (h *ProgressHandler) Get(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.Unauthorized(w, "UNAUTHORIZED", "authentication required", rid)
		return
	}
	journeyID := strings.TrimSpace(chi.URLParam(r, "journey_id"))
	if journeyID == "" {
		api.BadRequest(w, "MISSING_JOURNEY_ID", "journey_id is required", rid, nil)
		return
	}

	row, err := h.rows.Select(r.Context(), uid, journeyID)
	if err != nil {
		if errors.Is(err, remotestore.ErrNotFound) {
			api.NotFound(w, "NOT_FOUND", "no progress for this journey", rid)
			return
		}
		h.log.Error("select progress", zap.String("journey_id", journeyID), zap.String("request_id", rid), zap.Error(err))
		api.Internal(w, rid)
		return
	}
	api.WriteJSON(w, http.StatusOK, row)
}

func (h *ProgressHandler) Put(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.Unauthorized(w, "UNAUTHORIZED", "authentication required", rid)
		return
	}
	journeyID := strings.TrimSpace(chi.URLParam(r, "journey_id"))
	if journeyID == "" {
		api.BadRequest(w, "MISSING_JOURNEY_ID", "journey_id is required", rid, nil)
		return
	}

	var row remotestore.Row
	if err := api.DecodeJSON(r, &row); err != nil {
		api.BadRequest(w, "INVALID_JSON", "cannot parse progress", rid, nil)
		return
	}
	if row.UserID != "" && row.UserID != uid {
		api.Forbidden(w, "USER_MISMATCH", "user_id does not match the token subject", rid)
		return
	}
	if row.JourneyID != "" && row.JourneyID != journeyID {
		api.BadRequest(w, "JOURNEY_MISMATCH", "journey_id does not match the path", rid, nil)
		return
	}
	row.UserID = uid
	row.JourneyID = journeyID
	if row.CompletedSteps == nil {
		row.CompletedSteps = []string{}
	}
	if err := row.Validate(); err != nil {
		api.BadRequest(w, "INVALID_PROGRESS", err.Error(), rid, nil)
		return
	}

	if err := h.rows.Upsert(r.Context(), row); err != nil {
		h.log.Error("upsert progress", zap.String("journey_id", journeyID), zap.String("request_id", rid), zap.Error(err))
		api.Internal(w, rid)
		return
	}

	h.pub.Publish(analytics.SubjectProgressSaved, "progress_saved", uid, map[string]any{
		"journey_id":         journeyID,
		"current_step_index": row.CurrentStepIndex,
		"completed_count":    len(row.CompletedSteps),
	})
	api.WriteJSON(w, http.StatusOK, row)
}
