package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medtrack/go-adherence/internal/domain/adherence"
	"github.com/medtrack/go-adherence/internal/domain/medication"
	"github.com/medtrack/go-adherence/internal/observability/metrics"
	"github.com/medtrack/go-adherence/pkg/clock"
	"github.com/medtrack/go-adherence/pkg/keymutex"
	"github.com/medtrack/go-adherence/pkg/workerpool"
)

// HourlyWindowOffset is where the hourly run's one-hour window begins. Each
// run advances the horizon by one hour, maintaining the standing 48-hour
// look-ahead without re-expanding the near-term window.
const HourlyWindowOffset = LookaheadWindow - time.Hour

// ExpansionTask is the worker-pool payload for one medication's expansion.
type ExpansionTask struct {
	Medication  *medication.Medication
	WindowStart time.Time
	WindowEnd   time.Time
}

// Service materializes schedules into adherence records.
type Service struct {
	medications medication.Repository
	records     adherence.Repository
	clock       clock.Clock
	logger      *zap.Logger
	metrics     *metrics.Metrics
	locks       *keymutex.KeyMutex

	// pool, when set, runs hourly expansion tasks concurrently. Nil means
	// inline execution (tests, at-creation expansion).
	pool *workerpool.Pool
}

// NewService creates a scheduler service. The pool may be nil.
func NewService(medications medication.Repository, records adherence.Repository, clk clock.Clock, logger *zap.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		medications: medications,
		records:     records,
		clock:       clk,
		logger:      logger,
		metrics:     m,
		locks:       keymutex.New(),
	}
}

// SetPool attaches a worker pool for concurrent hourly runs. The pool's
// worker function must call ProcessTask.
func (s *Service) SetPool(pool *workerpool.Pool) { s.pool = pool }

// RunHourly expands every medication overlapping the [now+47h, now+48h]
// horizon slice. A single medication's failure is logged and skipped; the run
// continues with the rest.
func (s *Service) RunHourly(ctx context.Context) error {
	now := s.clock.Now()
	windowStart := now.Add(HourlyWindowOffset)
	windowEnd := now.Add(LookaheadWindow)

	meds, err := s.medications.ListOverlapping(ctx, windowStart, windowEnd)
	if err != nil {
		return fmt.Errorf("list medications for expansion: %w", err)
	}

	for _, med := range meds {
		task := &ExpansionTask{Medication: med, WindowStart: windowStart, WindowEnd: windowEnd}
		if s.pool != nil {
			if err := s.pool.Submit(&workerpool.Task{ID: med.ID, Payload: task, Context: ctx}); err != nil {
				s.logger.Warn("expansion task rejected", zap.String("medication_id", med.ID), zap.Error(err))
			}
			continue
		}
		if _, err := s.ExpandMedication(ctx, med, windowStart, windowEnd); err != nil {
			s.logger.Error("medication expansion failed",
				zap.String("medication_id", med.ID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("hourly expansion run submitted",
		zap.Int("medications", len(meds)),
		zap.Time("window_start", windowStart),
		zap.Time("window_end", windowEnd),
	)
	return nil
}

// ExpandInitial covers the full look-ahead window at medication creation so
// the first 48 hours are materialized before the hourly runs take over.
func (s *Service) ExpandInitial(ctx context.Context, med *medication.Medication) (int, error) {
	now := s.clock.Now()
	return s.ExpandMedication(ctx, med, now, now.Add(LookaheadWindow))
}

// ProcessTask adapts ExpandMedication to the worker pool.
func (s *Service) ProcessTask(ctx context.Context, task *workerpool.Task) *workerpool.Result {
	payload, ok := task.Payload.(*ExpansionTask)
	if !ok {
		return &workerpool.Result{TaskID: task.ID, Success: false, Error: fmt.Errorf("unexpected payload %T", task.Payload)}
	}
	created, err := s.ExpandMedication(ctx, payload.Medication, payload.WindowStart, payload.WindowEnd)
	if err != nil {
		return &workerpool.Result{TaskID: task.ID, Success: false, Error: err}
	}
	return &workerpool.Result{TaskID: task.ID, Success: true, Data: created}
}

// ExpandMedication generates candidates for one medication inside the window,
// clamped to the medication's active span, and persists the ones that survive
// the dedup check. Runs are serialized per medication so overlapping triggers
// cannot double-book through the check-then-create gap.
func (s *Service) ExpandMedication(ctx context.Context, med *medication.Medication, windowStart, windowEnd time.Time) (int, error) {
	s.locks.Lock(med.ID)
	defer s.locks.Unlock(med.ID)

	start := s.clock.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ExpansionDuration.Observe(time.Since(start).Seconds())
		}
	}()

	if med.StartAt.After(windowStart) {
		windowStart = med.StartAt
	}
	if med.EndAt != nil && med.EndAt.Before(windowEnd) {
		windowEnd = *med.EndAt
	}
	if windowEnd.Before(windowStart) {
		return 0, nil
	}

	loc := med.Location()
	candidates, err := Expand(med.Schedule, loc, med.StartAt, windowStart, windowEnd, s.clock.Now())
	if err != nil {
		if s.metrics != nil {
			s.metrics.ExpansionFailures.Inc()
		}
		return 0, fmt.Errorf("expand medication %s: %w", med.ID, err)
	}

	// Day-cap accounting spans runs: the candidate's local calendar day is
	// seeded with the records already persisted for it, then tracks creations
	// made in this run.
	dayCounts := map[string]int{}

	created := 0
	for _, dueAt := range candidates {
		var dayKey string
		if med.Schedule.MaxPerDay > 0 {
			local := dueAt.In(loc)
			dayKey = local.Format("2006-01-02")
			count, ok := dayCounts[dayKey]
			if !ok {
				dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
				count, err = s.records.CountInRange(ctx, med.ID, dayStart, dayStart.AddDate(0, 0, 1))
				if err != nil {
					return created, fmt.Errorf("day count for %s: %w", med.ID, err)
				}
				dayCounts[dayKey] = count
			}
			if count >= med.Schedule.MaxPerDay {
				continue
			}
		}

		exists, err := s.records.ExistsNear(ctx, med.ID, dueAt, DedupTolerance)
		if err != nil {
			return created, fmt.Errorf("dedup check for %s: %w", med.ID, err)
		}
		if exists {
			if s.metrics != nil {
				s.metrics.RecordsDeduplicated.Inc()
			}
			continue
		}

		now := s.clock.Now()
		rec := &adherence.Record{
			ID:           uuid.NewString(),
			MedicationID: med.ID,
			DueAt:        dueAt.UTC(),
			Status:       adherence.StatusDue,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.records.Create(ctx, rec); err != nil {
			return created, fmt.Errorf("create record for %s: %w", med.ID, err)
		}
		created++
		if dayKey != "" {
			dayCounts[dayKey]++
		}
		if s.metrics != nil {
			s.metrics.RecordsCreated.Inc()
		}
	}

	if created > 0 {
		s.logger.Debug("materialized adherence records",
			zap.String("medication_id", med.ID),
			zap.Int("created", created),
		)
	}
	return created, nil
}
