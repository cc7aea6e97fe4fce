package scheduler

import (
	"testing"
	"time"

	"github.com/shaiso/conveyor/internal/domain"
)

func TestCalculateNextDue_Cron(t *testing.T) {
	task := &domain.Task{CronExpr: "0 * * * *"} // every hour at :00

	from := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	next, err := CalculateNextDue(task, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %s, got %s", want, next)
	}
}

func TestCalculateNextDue_Timezone(t *testing.T) {
	// Daily at 09:00 New York time
	task := &domain.Task{CronExpr: "0 9 * * *", Timezone: "America/New_York"}

	// 13:00 UTC in June (EDT, UTC-4) is 09:00 New York, so the next
	// fire is a day later
	from := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(task, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loc, _ := time.LoadLocation("America/New_York")
	if got := next.In(loc); got.Hour() != 9 || got.Minute() != 0 {
		t.Errorf("expected 09:00 in New York, got %s", got)
	}
	if !next.After(from) {
		t.Errorf("next due %s should be after %s", next, from)
	}
}

func TestCalculateNextDue_InvalidTimezoneFallsBackToUTC(t *testing.T) {
	task := &domain.Task{CronExpr: "0 * * * *", Timezone: "Mars/Olympus"}

	from := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	next, err := CalculateNextDue(task, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected UTC fallback %s, got %s", want, next)
	}
}

func TestCalculateNextDue_OneShot(t *testing.T) {
	runAt := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	task := &domain.Task{RunAt: &runAt}

	// A one-shot task has no next due after it fires
	next, err := CalculateNextDue(task, runAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.IsZero() {
		t.Errorf("expected zero time for one-shot task, got %s", next)
	}
}

func TestCalculateNextDue_NoSchedule(t *testing.T) {
	task := &domain.Task{}
	if _, err := CalculateNextDue(task, time.Now()); err == nil {
		t.Error("expected error for task without schedule")
	}
}

func TestCalculateInitialNextDue_OneShot(t *testing.T) {
	runAt := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	task := &domain.Task{RunAt: &runAt}

	next, err := CalculateInitialNextDue(task, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.Equal(runAt) {
		t.Errorf("expected %s, got %s", runAt, next)
	}
}

func TestValidateCronExpr(t *testing.T) {
	if err := ValidateCronExpr("*/5 * * * *"); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
	if err := ValidateCronExpr("not a cron"); err == nil {
		t.Error("invalid expression accepted")
	}
	if err := ValidateCronExpr("61 * * * *"); err == nil {
		t.Error("out-of-range minute accepted")
	}
}
