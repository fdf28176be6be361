package adherence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medtrack/go-adherence/internal/domain/medication"
	"github.com/medtrack/go-adherence/internal/observability/metrics"
	"github.com/medtrack/go-adherence/pkg/clock"
)

// Service owns the adherence lifecycle: user-triggered transitions, the
// dispatch sweep, the missed-dose sweep and retention.
type Service struct {
	records     Repository
	medications medication.Repository
	dispatcher  Dispatcher
	clock       clock.Clock
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// NewService creates an adherence service.
func NewService(records Repository, medications medication.Repository, dispatcher Dispatcher, clk clock.Clock, logger *zap.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		records:     records,
		medications: medications,
		dispatcher:  dispatcher,
		clock:       clk,
		logger:      logger,
		metrics:     m,
	}
}

// MarkTaken flips a due or sent record to taken and stamps TakenAt.
// A second call on the same record is rejected with ErrInvalidTransition.
func (s *Service) MarkTaken(ctx context.Context, id string) (*Record, error) {
	now := s.clock.Now()
	ok, err := s.records.MarkTaken(ctx, id, now)
	if err != nil {
		return nil, fmt.Errorf("mark taken: %w", err)
	}
	if !ok {
		return nil, s.rejectTransition(ctx, id)
	}
	return s.records.GetByID(ctx, id)
}

// MarkSkipped flips a due or sent record to skipped.
func (s *Service) MarkSkipped(ctx context.Context, id string) (*Record, error) {
	ok, err := s.records.MarkSkipped(ctx, id, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("mark skipped: %w", err)
	}
	if !ok {
		return nil, s.rejectTransition(ctx, id)
	}
	return s.records.GetByID(ctx, id)
}

// Snooze flips a due or sent record to snoozed and re-arms a fresh due record
// at the original DueAt plus the snooze duration. Minutes below the minimum
// are clamped; zero selects the default.
func (s *Service) Snooze(ctx context.Context, id string, minutes int) (*Record, error) {
	if minutes == 0 {
		minutes = DefaultSnoozeMinutes
	}
	if minutes < MinSnoozeMinutes {
		minutes = MinSnoozeMinutes
	}

	orig, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	ok, err := s.records.MarkSnoozed(ctx, id, now)
	if err != nil {
		return nil, fmt.Errorf("mark snoozed: %w", err)
	}
	if !ok {
		return nil, s.rejectTransition(ctx, id)
	}

	rearmed := &Record{
		ID:           uuid.NewString(),
		MedicationID: orig.MedicationID,
		DueAt:        orig.DueAt.Add(time.Duration(minutes) * time.Minute),
		Status:       StatusDue,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.records.Create(ctx, rearmed); err != nil {
		return nil, fmt.Errorf("re-arm snoozed record: %w", err)
	}

	s.logger.Info("record snoozed",
		zap.String("record_id", id),
		zap.String("rearmed_id", rearmed.ID),
		zap.Int("minutes", minutes),
	)
	return rearmed, nil
}

// DispatchDue hands every due record whose DueAt has arrived to the
// dispatcher and flips it to sent. The flip happens regardless of delivery
// outcome: delivery failure is the dispatcher's concern, not a scheduling
// failure. Returns how many records were dispatched.
func (s *Service) DispatchDue(ctx context.Context, batchSize int) (int, error) {
	now := s.clock.Now()
	due, err := s.records.ListDue(ctx, now, batchSize)
	if err != nil {
		return 0, fmt.Errorf("list due records: %w", err)
	}

	dispatched := 0
	for _, rec := range due {
		summary := Summary{MedicationID: rec.MedicationID, DueAt: rec.DueAt}
		if med, err := s.medications.GetByID(ctx, rec.MedicationID); err == nil {
			summary.OwnerID = med.OwnerID
			summary.Name = med.Name
			summary.Strength = med.Strength
		}

		if _, err := s.dispatcher.Notify(ctx, rec, summary); err != nil {
			if s.metrics != nil {
				s.metrics.DispatchFailures.Inc()
			}
			s.logger.Warn("notification dispatch failed",
				zap.String("record_id", rec.ID),
				zap.Error(err),
			)
		}

		ok, err := s.records.MarkSent(ctx, rec.ID, s.dispatcher.Channels(), now)
		if err != nil {
			s.logger.Error("mark sent failed", zap.String("record_id", rec.ID), zap.Error(err))
			continue
		}
		if ok {
			dispatched++
		}
	}
	return dispatched, nil
}

// SweepMissed flips sent records whose DueAt is older than the grace period
// to missed. This is a coarse timeout run every few hours, not a per-record
// timer.
func (s *Service) SweepMissed(ctx context.Context) (int64, error) {
	now := s.clock.Now()
	n, err := s.records.SweepMissed(ctx, now.Add(-MissedGracePeriod), now)
	if err != nil {
		return 0, fmt.Errorf("missed sweep: %w", err)
	}
	if n > 0 {
		if s.metrics != nil {
			s.metrics.RecordsMissed.Add(float64(n))
		}
		s.logger.Info("missed sweep flipped records", zap.Int64("count", n))
	}
	return n, nil
}

// PurgeTerminal removes terminal records older than the retention window.
func (s *Service) PurgeTerminal(ctx context.Context) (int64, error) {
	n, err := s.records.PurgeTerminal(ctx, s.clock.Now().Add(-TerminalRetention))
	if err != nil {
		return 0, fmt.Errorf("purge terminal: %w", err)
	}
	if n > 0 && s.metrics != nil {
		s.metrics.RecordsPurged.Add(float64(n))
	}
	return n, nil
}

// CancelFuture deletes all future due records for a medication. Deleting or
// editing a medication must call this: a cancelled record is gone and can
// never be flipped to missed.
func (s *Service) CancelFuture(ctx context.Context, medicationID string) (int64, error) {
	return s.records.DeleteFuture(ctx, medicationID, s.clock.Now())
}

// ListByMedication returns recent records for a medication.
func (s *Service) ListByMedication(ctx context.Context, medicationID string, limit int) ([]*Record, error) {
	return s.records.ListByMedication(ctx, medicationID, limit)
}

// rejectTransition distinguishes a missing record from an illegal transition
// after a conditional update matched no rows.
func (s *Service) rejectTransition(ctx context.Context, id string) error {
	if _, err := s.records.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrInvalidTransition
}
