// Package handlers provides HTTP handlers for the adherence API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/medtrack/go-adherence/internal/api/middleware"
	"github.com/medtrack/go-adherence/internal/domain/adherence"
	"github.com/medtrack/go-adherence/internal/domain/medication"
	"github.com/medtrack/go-adherence/internal/observability/metrics"
	"github.com/medtrack/go-adherence/internal/safety"
	"github.com/medtrack/go-adherence/internal/scheduler"
)

// MedicationHandler handles medication endpoints.
type MedicationHandler struct {
	medications medication.Repository
	scheduler   *scheduler.Service
	adherence   *adherence.Service
	validator   *safety.Validator
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// NewMedicationHandler creates a new handler.
func NewMedicationHandler(
	medications medication.Repository,
	sched *scheduler.Service,
	adh *adherence.Service,
	validator *safety.Validator,
	logger *zap.Logger,
	m *metrics.Metrics,
) *MedicationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MedicationHandler{
		medications: medications,
		scheduler:   sched,
		adherence:   adh,
		validator:   validator,
		logger:      logger,
		metrics:     m,
	}
}

// Routes returns the handler routes.
func (h *MedicationHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)
	r.Get("/{id}/records", h.ListRecords)
	return r
}

// ScheduleRequest is the dosing rule in a create request.
type ScheduleRequest struct {
	Rule        string                 `json:"rule"`
	Times       []string               `json:"times,omitempty"`
	IntervalHrs int                    `json:"intervalHrs,omitempty"`
	MaxPerDay   int                    `json:"maxPerDay,omitempty"`
	QuietHours  *medication.QuietHours `json:"quietHours,omitempty"`
}

// CreateRequest is the request body for creating a medication.
type CreateRequest struct {
	Name     string          `json:"name"`
	Form     string          `json:"form,omitempty"`
	Strength string          `json:"strength,omitempty"`
	Notes    string          `json:"notes,omitempty"`
	StartAt  time.Time       `json:"startAt"`
	EndAt    *time.Time      `json:"endAt,omitempty"`
	Timezone string          `json:"timezone,omitempty"`
	Schedule ScheduleRequest `json:"schedule"`
}

// CreateResponse is the response for creating a medication. Safety warnings
// ride along for acknowledgement; they never block creation.
type CreateResponse struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	RecordsCreated int              `json:"records_created"`
	Warnings       []safety.Warning `json:"warnings"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Create handles POST /medications.
func (h *MedicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("medication-handler")
	ctx, span := tracer.Start(ctx, "create_medication")
	defer span.End()

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name == "" {
		h.jsonError(w, "name is required", http.StatusBadRequest)
		return
	}
	if req.StartAt.IsZero() {
		h.jsonError(w, "startAt is required", http.StatusBadRequest)
		return
	}

	ownerID := middleware.GetUserID(ctx)
	if ownerID == "" {
		h.jsonError(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	med := &medication.Medication{
		ID:       uuid.New().String(),
		OwnerID:  ownerID,
		Name:     req.Name,
		Form:     req.Form,
		Strength: req.Strength,
		Notes:    req.Notes,
		StartAt:  req.StartAt.UTC(),
		EndAt:    req.EndAt,
		Timezone: req.Timezone,
		Schedule: medication.Schedule{
			Rule:        medication.Rule(req.Schedule.Rule),
			Times:       req.Schedule.Times,
			IntervalHrs: req.Schedule.IntervalHrs,
			MaxPerDay:   req.Schedule.MaxPerDay,
			QuietHours:  req.Schedule.QuietHours,
		},
	}
	med.Schedule.MedicationID = med.ID
	span.SetAttributes(attribute.String("medication_id", med.ID))

	if err := med.Schedule.Validate(); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Advisory only. Whatever the severity, creation proceeds and the
	// warnings are returned for acknowledgement.
	warnings := h.validator.Validate(ctx, ownerID, safety.Regimen{
		DrugName:    med.Name,
		MaxPerDay:   dosesPerDay(med.Schedule),
		IntervalHrs: med.Schedule.IntervalHrs,
	})
	if h.metrics != nil {
		for _, warn := range warnings {
			h.metrics.SafetyWarnings.WithLabelValues(string(warn.Type), string(warn.Severity)).Inc()
		}
	}

	if err := h.medications.Create(ctx, med); err != nil {
		h.logger.Error("medication create failed", zap.Error(err))
		h.jsonError(w, "failed to create medication", http.StatusInternalServerError)
		return
	}
	if h.metrics != nil {
		h.metrics.MedicationsCreated.Inc()
	}

	created, err := h.scheduler.ExpandInitial(ctx, med)
	if err != nil {
		// The medication exists; the hourly run will pick up expansion.
		h.logger.Error("initial expansion failed",
			zap.String("medication_id", med.ID),
			zap.Error(err))
	}

	h.logger.Info("medication created",
		zap.String("id", med.ID),
		zap.String("request_id", middleware.GetRequestID(ctx)),
		zap.Int("records_created", created),
		zap.Int("warnings", len(warnings)),
	)

	if warnings == nil {
		warnings = []safety.Warning{}
	}
	resp := CreateResponse{
		ID:             med.ID,
		Name:           med.Name,
		RecordsCreated: created,
		Warnings:       warnings,
		CreatedAt:      med.CreatedAt,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

// Get handles GET /medications/{id}.
func (h *MedicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	med, err := h.medications.GetByID(ctx, id)
	if err != nil {
		h.jsonError(w, "medication not found", http.StatusNotFound)
		return
	}
	if med.OwnerID != middleware.GetUserID(ctx) {
		h.jsonError(w, "medication not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(medicationResponse(med))
}

// Delete handles DELETE /medications/{id}. Future due records are cancelled
// so no reminders outlive the medication.
func (h *MedicationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	med, err := h.medications.GetByID(ctx, id)
	if err != nil || med.OwnerID != middleware.GetUserID(ctx) {
		h.jsonError(w, "medication not found", http.StatusNotFound)
		return
	}

	cancelled, err := h.adherence.CancelFuture(ctx, id)
	if err != nil {
		h.logger.Error("cancel future records failed", zap.String("medication_id", id), zap.Error(err))
		h.jsonError(w, "failed to cancel pending reminders", http.StatusInternalServerError)
		return
	}

	if err := h.medications.Delete(ctx, id); err != nil {
		if errors.Is(err, medication.ErrNotFound) {
			h.jsonError(w, "medication not found", http.StatusNotFound)
			return
		}
		h.jsonError(w, "failed to delete medication", http.StatusInternalServerError)
		return
	}

	h.logger.Info("medication deleted",
		zap.String("id", id),
		zap.Int64("cancelled_records", cancelled),
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":                id,
		"cancelled_records": cancelled,
	})
}

// ListRecords handles GET /medications/{id}/records.
func (h *MedicationHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	med, err := h.medications.GetByID(ctx, id)
	if err != nil || med.OwnerID != middleware.GetUserID(ctx) {
		h.jsonError(w, "medication not found", http.StatusNotFound)
		return
	}

	recs, err := h.adherence.ListByMedication(ctx, id, 200)
	if err != nil {
		h.jsonError(w, "failed to list records", http.StatusInternalServerError)
		return
	}

	out := make([]map[string]interface{}, 0, len(recs))
	for _, rec := range recs {
		out = append(out, recordResponse(rec))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (h *MedicationHandler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// dosesPerDay derives the proposed daily dose count the safety validator
// compares against catalog limits.
func dosesPerDay(s medication.Schedule) int {
	var n int
	switch s.Rule {
	case medication.RuleDaily:
		n = len(s.Times)
	case medication.RuleInterval:
		if s.IntervalHrs > 0 {
			n = 24 / s.IntervalHrs
			if n == 0 {
				n = 1
			}
		}
	}
	if s.MaxPerDay > 0 && n > s.MaxPerDay {
		n = s.MaxPerDay
	}
	return n
}

func medicationResponse(m *medication.Medication) map[string]interface{} {
	resp := map[string]interface{}{
		"id":       m.ID,
		"name":     m.Name,
		"form":     m.Form,
		"strength": m.Strength,
		"notes":    m.Notes,
		"start_at": m.StartAt,
		"timezone": m.Timezone,
		"schedule": map[string]interface{}{
			"rule":        m.Schedule.Rule,
			"times":       m.Schedule.Times,
			"intervalHrs": m.Schedule.IntervalHrs,
			"maxPerDay":   m.Schedule.MaxPerDay,
			"quietHours":  m.Schedule.QuietHours,
		},
		"created_at": m.CreatedAt,
	}
	if m.EndAt != nil {
		resp["end_at"] = m.EndAt
	}
	return resp
}

func recordResponse(rec *adherence.Record) map[string]interface{} {
	resp := map[string]interface{}{
		"id":            rec.ID,
		"medication_id": rec.MedicationID,
		"due_at":        rec.DueAt,
		"status":        rec.Status,
		"channels":      rec.Channels,
		"updated_at":    rec.UpdatedAt,
	}
	if rec.TakenAt != nil {
		resp["taken_at"] = rec.TakenAt
	}
	return resp
}
