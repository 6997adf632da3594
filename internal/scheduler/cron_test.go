package scheduler

import (
	"testing"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
)

func TestNextExecutionCron(t *testing.T) {
	// Daily at 02:00.
	spec := &domain.ScheduleSpec{CronExpr: "0 2 * * ? *"}
	from := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	got, err := NextExecution(spec, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 3, 2, 2, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNextExecutionCronWrapped(t *testing.T) {
	spec := &domain.ScheduleSpec{CronExpr: "cron(30 4 * * ? *)"}
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	got, err := NextExecution(spec, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 3, 1, 4, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNextExecutionCronTimezone(t *testing.T) {
	spec := &domain.ScheduleSpec{CronExpr: "0 9 * * ? *", Timezone: "Europe/Berlin"}
	// 12:00 UTC, 1 March — 13:00 in Berlin, so the next 09:00 Berlin
	// is tomorrow, 08:00 UTC.
	from := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	got, err := NextExecution(spec, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNextExecutionInterval(t *testing.T) {
	spec := &domain.ScheduleSpec{IntervalSec: 3600}
	from := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	got, err := NextExecution(spec, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(from.Add(time.Hour)) {
		t.Errorf("got %v", got)
	}
}

func TestNextExecutionOneTime(t *testing.T) {
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	spec := &domain.ScheduleSpec{RunOnceAt: &at}

	got, err := NextExecution(spec, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(at) {
		t.Errorf("got %v, want %v", got, at)
	}
}

func TestNextExecutionOneTimeNoTime(t *testing.T) {
	if _, err := NextExecution(&domain.ScheduleSpec{}, time.Now()); err == nil {
		t.Fatal("expected error for a one-time schedule without a start time")
	}
}

func TestValidateCronExpr(t *testing.T) {
	valid := []string{
		"0 2 * * ? *",
		"cron(*/15 * * * ? *)",
		"0 0 12 ? * MON-FRI *",
	}
	for _, expr := range valid {
		if err := ValidateCronExpr(expr); err != nil {
			t.Errorf("%q: unexpected error: %v", expr, err)
		}
	}

	invalid := []string{
		"",
		"0 2 * * *",
		"not a cron",
		"99 99 * * ? *",
	}
	for _, expr := range invalid {
		if err := ValidateCronExpr(expr); err == nil {
			t.Errorf("%q: expected error", expr)
		}
	}
}
