package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/medtrack/go-adherence/internal/api/middleware"
	"github.com/medtrack/go-adherence/internal/domain/adherence"
)

// RecordHandler handles adherence record endpoints.
type RecordHandler struct {
	adherence *adherence.Service
	logger    *zap.Logger
}

// NewRecordHandler creates a new handler.
func NewRecordHandler(adh *adherence.Service, logger *zap.Logger) *RecordHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordHandler{adherence: adh, logger: logger}
}

// Routes returns the handler routes.
func (h *RecordHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{id}/taken", h.Taken)
	r.Post("/{id}/skip", h.Skip)
	r.Post("/{id}/snooze", h.Snooze)
	return r
}

// Taken handles POST /records/{id}/taken.
func (h *RecordHandler) Taken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	rec, err := h.adherence.MarkTaken(ctx, id)
	if err != nil {
		h.transitionError(w, r, id, err)
		return
	}

	h.logger.Info("record taken",
		zap.String("record_id", id),
		zap.String("request_id", middleware.GetRequestID(ctx)),
	)
	h.writeRecord(w, rec)
}

// Skip handles POST /records/{id}/skip.
func (h *RecordHandler) Skip(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	rec, err := h.adherence.MarkSkipped(ctx, id)
	if err != nil {
		h.transitionError(w, r, id, err)
		return
	}
	h.writeRecord(w, rec)
}

// SnoozeRequest is the request body for snoozing a record.
type SnoozeRequest struct {
	Minutes int `json:"minutes,omitempty"`
}

// Snooze handles POST /records/{id}/snooze. Responds with the re-armed
// record, due at the original time plus the snooze duration.
func (h *RecordHandler) Snooze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req SnoozeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.jsonError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	if req.Minutes < 0 {
		h.jsonError(w, "minutes cannot be negative", http.StatusBadRequest)
		return
	}

	rearmed, err := h.adherence.Snooze(ctx, id, req.Minutes)
	if err != nil {
		h.transitionError(w, r, id, err)
		return
	}

	h.logger.Info("record snoozed",
		zap.String("record_id", id),
		zap.String("rearmed_id", rearmed.ID),
		zap.String("request_id", middleware.GetRequestID(ctx)),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(recordResponse(rearmed))
}

func (h *RecordHandler) writeRecord(w http.ResponseWriter, rec *adherence.Record) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(recordResponse(rec))
}

// transitionError maps domain errors to HTTP: a missing record is 404 and an
// illegal transition (double-taken, acting on a terminal record) is 409.
func (h *RecordHandler) transitionError(w http.ResponseWriter, r *http.Request, id string, err error) {
	switch {
	case errors.Is(err, adherence.ErrNotFound):
		h.jsonError(w, "record not found", http.StatusNotFound)
	case errors.Is(err, adherence.ErrInvalidTransition):
		h.jsonError(w, "record is not in a state that allows this action", http.StatusConflict)
	default:
		h.logger.Error("record transition failed",
			zap.String("record_id", id),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err),
		)
		h.jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *RecordHandler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
