package adherence_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medtrack/go-adherence/internal/domain/adherence"
	"github.com/medtrack/go-adherence/internal/domain/medication"
	"github.com/medtrack/go-adherence/internal/storage/memory"
	"github.com/medtrack/go-adherence/pkg/clock"
)

// fakeDispatcher records notifications and optionally fails.
type fakeDispatcher struct {
	notified []string
	fail     bool
}

func (d *fakeDispatcher) Notify(_ context.Context, rec *adherence.Record, _ adherence.Summary) (bool, error) {
	if d.fail {
		return false, fmt.Errorf("downstream unavailable")
	}
	d.notified = append(d.notified, rec.ID)
	return true, nil
}

func (d *fakeDispatcher) Channels() []string { return []string{"push"} }

func utc(y int, m time.Month, d, hour, minute int) time.Time {
	return time.Date(y, m, d, hour, minute, 0, 0, time.UTC)
}

func newFixture(now time.Time) (*adherence.Service, *memory.RecordRepository, *fakeDispatcher, *clock.Fake) {
	recs := memory.NewRecordRepository()
	meds := memory.NewMedicationRepository()
	disp := &fakeDispatcher{}
	clk := clock.NewFake(now)
	svc := adherence.NewService(recs, meds, disp, clk, nil, nil)
	return svc, recs, disp, clk
}

func seedRecord(t *testing.T, recs *memory.RecordRepository, status adherence.Status, dueAt time.Time) *adherence.Record {
	t.Helper()
	rec := &adherence.Record{
		ID:           uuid.NewString(),
		MedicationID: "med-1",
		DueAt:        dueAt,
		Status:       status,
	}
	if err := recs.Create(context.Background(), rec); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	return rec
}

func TestMarkTakenOnce(t *testing.T) {
	now := utc(2024, 1, 1, 9, 0)
	svc, recs, _, _ := newFixture(now)
	rec := seedRecord(t, recs, adherence.StatusSent, utc(2024, 1, 1, 8, 0))

	taken, err := svc.MarkTaken(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("mark taken: %v", err)
	}
	if taken.Status != adherence.StatusTaken {
		t.Errorf("status = %s, want taken", taken.Status)
	}
	if taken.TakenAt == nil || !taken.TakenAt.Equal(now) {
		t.Errorf("TakenAt = %v, want %v", taken.TakenAt, now)
	}
}

func TestMarkTakenTwiceRejected(t *testing.T) {
	svc, recs, _, _ := newFixture(utc(2024, 1, 1, 9, 0))
	rec := seedRecord(t, recs, adherence.StatusSent, utc(2024, 1, 1, 8, 0))

	if _, err := svc.MarkTaken(context.Background(), rec.ID); err != nil {
		t.Fatalf("first mark taken: %v", err)
	}
	_, err := svc.MarkTaken(context.Background(), rec.ID)
	if !errors.Is(err, adherence.ErrInvalidTransition) {
		t.Fatalf("second mark taken error = %v, want ErrInvalidTransition", err)
	}
}

func TestMarkTakenMissingRecord(t *testing.T) {
	svc, _, _, _ := newFixture(utc(2024, 1, 1, 9, 0))
	_, err := svc.MarkTaken(context.Background(), "no-such-record")
	if !errors.Is(err, adherence.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestSnoozeRearmsAtOriginalDuePlusMinutes(t *testing.T) {
	now := utc(2024, 1, 1, 8, 10)
	svc, recs, _, _ := newFixture(now)
	dueAt := utc(2024, 1, 1, 8, 0)
	rec := seedRecord(t, recs, adherence.StatusSent, dueAt)

	rearmed, err := svc.Snooze(context.Background(), rec.ID, 0)
	if err != nil {
		t.Fatalf("snooze: %v", err)
	}

	// Zero minutes selects the 15-minute default, measured from the
	// original due time.
	if want := dueAt.Add(15 * time.Minute); !rearmed.DueAt.Equal(want) {
		t.Errorf("rearmed due at %v, want %v", rearmed.DueAt, want)
	}
	if rearmed.Status != adherence.StatusDue {
		t.Errorf("rearmed status = %s, want due", rearmed.Status)
	}

	orig, err := recs.GetByID(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("get original: %v", err)
	}
	if orig.Status != adherence.StatusSnoozed {
		t.Errorf("original status = %s, want snoozed", orig.Status)
	}
}

func TestSnoozeClampsBelowMinimum(t *testing.T) {
	svc, recs, _, _ := newFixture(utc(2024, 1, 1, 8, 10))
	dueAt := utc(2024, 1, 1, 8, 0)
	rec := seedRecord(t, recs, adherence.StatusDue, dueAt)

	rearmed, err := svc.Snooze(context.Background(), rec.ID, 2)
	if err != nil {
		t.Fatalf("snooze: %v", err)
	}
	if want := dueAt.Add(adherence.MinSnoozeMinutes * time.Minute); !rearmed.DueAt.Equal(want) {
		t.Errorf("rearmed due at %v, want clamp to %v", rearmed.DueAt, want)
	}
}

func TestSnoozeTerminalRecordRejected(t *testing.T) {
	svc, recs, _, _ := newFixture(utc(2024, 1, 1, 9, 0))
	rec := seedRecord(t, recs, adherence.StatusTaken, utc(2024, 1, 1, 8, 0))

	_, err := svc.Snooze(context.Background(), rec.ID, 10)
	if !errors.Is(err, adherence.ErrInvalidTransition) {
		t.Fatalf("error = %v, want ErrInvalidTransition", err)
	}
}

func TestDispatchDueFlipsToSent(t *testing.T) {
	now := utc(2024, 1, 1, 9, 0)
	svc, recs, disp, _ := newFixture(now)
	due := seedRecord(t, recs, adherence.StatusDue, utc(2024, 1, 1, 8, 55))
	seedRecord(t, recs, adherence.StatusDue, utc(2024, 1, 1, 10, 0)) // not yet due

	n, err := svc.DispatchDue(context.Background(), 100)
	if err != nil {
		t.Fatalf("dispatch due: %v", err)
	}
	if n != 1 {
		t.Fatalf("dispatched %d, want 1", n)
	}
	if len(disp.notified) != 1 || disp.notified[0] != due.ID {
		t.Fatalf("notified %v, want [%s]", disp.notified, due.ID)
	}

	sent, _ := recs.GetByID(context.Background(), due.ID)
	if sent.Status != adherence.StatusSent {
		t.Errorf("status = %s, want sent", sent.Status)
	}
	if len(sent.Channels) != 1 || sent.Channels[0] != "push" {
		t.Errorf("channels = %v, want [push]", sent.Channels)
	}
}

func TestDispatchDueFlipsEvenWhenDeliveryFails(t *testing.T) {
	now := utc(2024, 1, 1, 9, 0)
	svc, recs, disp, _ := newFixture(now)
	disp.fail = true
	due := seedRecord(t, recs, adherence.StatusDue, utc(2024, 1, 1, 8, 55))

	if _, err := svc.DispatchDue(context.Background(), 100); err != nil {
		t.Fatalf("dispatch due: %v", err)
	}

	// Delivery failure never leaves the record stuck in due, where it would
	// be re-dispatched forever.
	sent, _ := recs.GetByID(context.Background(), due.ID)
	if sent.Status != adherence.StatusSent {
		t.Errorf("status = %s, want sent despite delivery failure", sent.Status)
	}
}

func TestSweepMissedRespectsGracePeriod(t *testing.T) {
	now := utc(2024, 1, 1, 12, 0)
	svc, recs, _, _ := newFixture(now)

	stale := seedRecord(t, recs, adherence.StatusSent, now.Add(-adherence.MissedGracePeriod-time.Minute))
	fresh := seedRecord(t, recs, adherence.StatusSent, now.Add(-time.Hour))
	unsent := seedRecord(t, recs, adherence.StatusDue, now.Add(-3*time.Hour))

	n, err := svc.SweepMissed(context.Background())
	if err != nil {
		t.Fatalf("sweep missed: %v", err)
	}
	if n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}

	got, _ := recs.GetByID(context.Background(), stale.ID)
	if got.Status != adherence.StatusMissed {
		t.Errorf("stale record status = %s, want missed", got.Status)
	}
	got, _ = recs.GetByID(context.Background(), fresh.ID)
	if got.Status != adherence.StatusSent {
		t.Errorf("fresh record status = %s, want sent", got.Status)
	}
	// Never-sent records are not the sweep's business.
	got, _ = recs.GetByID(context.Background(), unsent.ID)
	if got.Status != adherence.StatusDue {
		t.Errorf("unsent record status = %s, want due", got.Status)
	}
}

func TestTakenRacesMissedSweep(t *testing.T) {
	now := utc(2024, 1, 1, 12, 0)
	svc, recs, _, _ := newFixture(now)
	rec := seedRecord(t, recs, adherence.StatusSent, now.Add(-3*time.Hour))

	// User marks taken first; the sweep must not overwrite it.
	if _, err := svc.MarkTaken(context.Background(), rec.ID); err != nil {
		t.Fatalf("mark taken: %v", err)
	}
	if _, err := svc.SweepMissed(context.Background()); err != nil {
		t.Fatalf("sweep missed: %v", err)
	}

	got, _ := recs.GetByID(context.Background(), rec.ID)
	if got.Status != adherence.StatusTaken {
		t.Errorf("status = %s, want taken to win over the sweep", got.Status)
	}
}

func TestPurgeTerminal(t *testing.T) {
	now := utc(2024, 3, 1, 0, 0)
	svc, recs, _, clk := newFixture(now.Add(-adherence.TerminalRetention - 24*time.Hour))

	old := seedRecord(t, recs, adherence.StatusSent, utc(2024, 1, 1, 8, 0))
	recs.MarkTaken(context.Background(), old.ID, clk.Now())

	clk.Set(now)
	recent := seedRecord(t, recs, adherence.StatusMissed, now.Add(-time.Hour))

	n, err := svc.PurgeTerminal(context.Background())
	if err != nil {
		t.Fatalf("purge terminal: %v", err)
	}
	if n != 1 {
		t.Fatalf("purged %d, want 1", n)
	}
	if _, err := recs.GetByID(context.Background(), old.ID); !errors.Is(err, adherence.ErrNotFound) {
		t.Errorf("old record should be purged, got %v", err)
	}
	if _, err := recs.GetByID(context.Background(), recent.ID); err != nil {
		t.Errorf("recent record should survive, got %v", err)
	}
}

func TestCancelFutureLeavesPastAlone(t *testing.T) {
	now := utc(2024, 1, 2, 12, 0)
	svc, recs, _, _ := newFixture(now)

	future := seedRecord(t, recs, adherence.StatusDue, now.Add(2*time.Hour))
	past := seedRecord(t, recs, adherence.StatusDue, now.Add(-2*time.Hour))
	terminal := seedRecord(t, recs, adherence.StatusTaken, now.Add(3*time.Hour))

	n, err := svc.CancelFuture(context.Background(), "med-1")
	if err != nil {
		t.Fatalf("cancel future: %v", err)
	}
	if n != 1 {
		t.Fatalf("cancelled %d, want 1", n)
	}
	if _, err := recs.GetByID(context.Background(), future.ID); !errors.Is(err, adherence.ErrNotFound) {
		t.Errorf("future due record should be cancelled, got %v", err)
	}
	if _, err := recs.GetByID(context.Background(), past.ID); err != nil {
		t.Errorf("past record should survive, got %v", err)
	}
	if _, err := recs.GetByID(context.Background(), terminal.ID); err != nil {
		t.Errorf("terminal record should survive, got %v", err)
	}
}

var _ medication.Repository = (*memory.MedicationRepository)(nil)
