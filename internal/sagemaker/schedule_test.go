package sagemaker

import (
	"testing"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
)

func TestBuildScheduleExpressionCron(t *testing.T) {
	spec := &domain.ScheduleSpec{CronExpr: "0 2 * * ? *", Timezone: "Europe/Berlin"}

	got, err := BuildScheduleExpression(spec, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Expression != "cron(0 2 * * ? *)" {
		t.Errorf("expression: got %q", got.Expression)
	}
	if got.Timezone != "Europe/Berlin" {
		t.Errorf("timezone: got %q", got.Timezone)
	}
}

func TestBuildScheduleExpressionCronWrapped(t *testing.T) {
	spec := &domain.ScheduleSpec{CronExpr: "cron(0 2 * * ? *)"}

	got, err := BuildScheduleExpression(spec, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Expression != "cron(0 2 * * ? *)" {
		t.Errorf("expression: got %q", got.Expression)
	}
	if got.Timezone != "UTC" {
		t.Errorf("default timezone: got %q", got.Timezone)
	}
}

func TestBuildScheduleExpressionCronInvalid(t *testing.T) {
	// Five fields is the standard Unix format, not the AWS one.
	spec := &domain.ScheduleSpec{CronExpr: "0 2 * * *"}
	if _, err := BuildScheduleExpression(spec, time.Now()); err == nil {
		t.Fatal("expected error for a five-field cron expression")
	}
}

func TestBuildScheduleExpressionInterval(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	spec := &domain.ScheduleSpec{IntervalSec: 900}

	got, err := BuildScheduleExpression(spec, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Expression != "rate(15 minutes)" {
		t.Errorf("expression: got %q", got.Expression)
	}
	if got.NextExecution == nil || !got.NextExecution.Equal(now.Add(15*time.Minute)) {
		t.Errorf("next execution: got %v", got.NextExecution)
	}
}

func TestBuildScheduleExpressionIntervalRoundsUp(t *testing.T) {
	// Sub-minute intervals round up to one minute.
	spec := &domain.ScheduleSpec{IntervalSec: 10}

	got, err := BuildScheduleExpression(spec, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Expression != "rate(1 minutes)" {
		t.Errorf("expression: got %q", got.Expression)
	}
}

func TestBuildScheduleExpressionIntervalStartTime(t *testing.T) {
	start := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	spec := &domain.ScheduleSpec{IntervalSec: 3600, StartTime: &start}

	got, err := BuildScheduleExpression(spec, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.StartDate == nil || !got.StartDate.Equal(start) {
		t.Errorf("start date: got %v", got.StartDate)
	}
	if got.NextExecution == nil || !got.NextExecution.Equal(start.Add(time.Hour)) {
		t.Errorf("next execution: got %v", got.NextExecution)
	}
}

func TestBuildScheduleExpressionOneTime(t *testing.T) {
	at := time.Date(2024, 6, 15, 9, 30, 0, 0, time.FixedZone("CEST", 2*3600))
	spec := &domain.ScheduleSpec{RunOnceAt: &at}

	got, err := BuildScheduleExpression(spec, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Expression != "at(2024-06-15T07:30:00)" {
		t.Errorf("expression: got %q", got.Expression)
	}
	if got.NextExecution == nil || !got.NextExecution.Equal(at) {
		t.Errorf("next execution: got %v", got.NextExecution)
	}
}

func TestBuildScheduleExpressionOneTimeNoTime(t *testing.T) {
	if _, err := BuildScheduleExpression(&domain.ScheduleSpec{}, time.Now()); err == nil {
		t.Fatal("expected error for a one-time schedule without a start time")
	}
}

func TestValidateAWSCron(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "0 2 * * ? *", want: "0 2 * * ? *"},
		{in: "0 12 ? * MON-FRI * 2024", want: "0 12 ? * MON-FRI * 2024"},
		{in: "cron(0  2 * * ? *)", want: "0 2 * * ? *"},
		{in: "0 2 * * *", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ValidateAWSCron(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%q: expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: got %q, want %q", tt.in, got, tt.want)
		}
	}
}
