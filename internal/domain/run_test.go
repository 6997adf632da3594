package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestRun() *PipelineRun {
	return &PipelineRun{
		ID:           uuid.New(),
		DeploymentID: uuid.New(),
		Name:         "training-pipeline-1",
		Status:       StatusPending,
		CreatedAt:    time.Now(),
	}
}

func TestPipelineRun_Lifecycle(t *testing.T) {
	run := newTestRun()

	if run.IsFinished() {
		t.Error("pending run should not be finished")
	}

	run.MarkRunning()
	if run.Status != StatusRunning || run.StartedAt == nil {
		t.Error("MarkRunning should set status and start time")
	}
	if run.IsFinished() {
		t.Error("running run should not be finished")
	}

	run.MarkSucceeded()
	if run.Status != StatusSucceeded || run.FinishedAt == nil {
		t.Error("MarkSucceeded should set status and finish time")
	}
	if !run.IsFinished() {
		t.Error("succeeded run should be finished")
	}
}

func TestPipelineRun_MarkFailed(t *testing.T) {
	run := newTestRun()
	run.MarkRunning()
	run.MarkFailed("pipeline execution failed")

	if run.Status != StatusFailed {
		t.Errorf("status: got %s, want %s", run.Status, StatusFailed)
	}
	if run.Error != "pipeline execution failed" {
		t.Errorf("error: got %q", run.Error)
	}
	if run.FinishedAt == nil {
		t.Error("MarkFailed should set finish time")
	}
}

func TestPipelineRun_MarkStopped(t *testing.T) {
	run := newTestRun()
	run.MarkRunning()
	run.MarkStopped()

	if run.Status != StatusStopped {
		t.Errorf("status: got %s, want %s", run.Status, StatusStopped)
	}
	if !run.IsFinished() {
		t.Error("stopped run should be finished")
	}
	if run.Error != "" {
		t.Errorf("stopped run should carry no error, got %q", run.Error)
	}
}

func TestPipelineRun_ExecutionARN(t *testing.T) {
	const arn = "arn:aws:sagemaker:eu-west-1:123456789012:pipeline/train/execution/abc123"

	run := newTestRun()
	if got := run.ExecutionARN(); got != "" {
		t.Errorf("unsent run should have no execution ARN, got %q", got)
	}

	run.OrchestratorRunID = arn
	if got := run.ExecutionARN(); got != arn {
		t.Errorf("execution ARN from orchestrator run ID: got %q", got)
	}

	// Метаданные имеют приоритет над OrchestratorRunID.
	other := "arn:aws:sagemaker:eu-west-1:123456789012:pipeline/train/execution/def456"
	run.SetMetadata(MetadataOrchestratorRunID, other)
	if got := run.ExecutionARN(); got != other {
		t.Errorf("execution ARN from metadata: got %q, want %q", got, other)
	}
}

func TestPipelineRun_Duration(t *testing.T) {
	run := newTestRun()
	if run.Duration() != 0 {
		t.Error("unstarted run should have zero duration")
	}

	start := time.Now().Add(-5 * time.Minute)
	finish := start.Add(3 * time.Minute)
	run.StartedAt = &start
	run.FinishedAt = &finish

	if got := run.Duration(); got != 3*time.Minute {
		t.Errorf("duration: got %s, want %s", got, 3*time.Minute)
	}
}

func TestExecutionStatus_IsTerminal(t *testing.T) {
	terminal := []ExecutionStatus{StatusSucceeded, StatusFailed, StatusStopped, StatusCached}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	for _, s := range []ExecutionStatus{StatusPending, StatusRunning} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestParseExecutionStatus(t *testing.T) {
	for _, s := range []string{"PENDING", "RUNNING", "SUCCEEDED", "FAILED", "STOPPED", "CACHED"} {
		got, err := ParseExecutionStatus(s)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("%s: got %s", s, got)
		}
	}

	for _, s := range []string{"", "running", "DONE", "SUCCEEDED "} {
		if _, err := ParseExecutionStatus(s); err == nil {
			t.Errorf("%q: expected error", s)
		}
	}
}
