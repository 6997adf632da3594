package poller

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
)

func TestApplyStatus_NoChange(t *testing.T) {
	run := &domain.PipelineRun{ID: uuid.New(), Status: domain.StatusRunning}

	if applyStatus(run, domain.StatusRunning) {
		t.Error("same status should not be a transition")
	}
}

func TestApplyStatus_PendingToRunning(t *testing.T) {
	run := &domain.PipelineRun{ID: uuid.New(), Status: domain.StatusPending}

	if !applyStatus(run, domain.StatusRunning) {
		t.Fatal("expected a transition")
	}
	if run.Status != domain.StatusRunning {
		t.Errorf("expected RUNNING, got %s", run.Status)
	}
	if run.StartedAt == nil {
		t.Error("StartedAt should be set on transition to RUNNING")
	}
}

func TestApplyStatus_RunningToSucceeded(t *testing.T) {
	started := time.Now().Add(-time.Minute)
	run := &domain.PipelineRun{
		ID:        uuid.New(),
		Status:    domain.StatusRunning,
		StartedAt: &started,
	}

	if !applyStatus(run, domain.StatusSucceeded) {
		t.Fatal("expected a transition")
	}
	if run.Status != domain.StatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", run.Status)
	}
	if run.FinishedAt == nil {
		t.Error("FinishedAt should be set on terminal transition")
	}
	if !run.IsFinished() {
		t.Error("run should be finished")
	}
}

func TestApplyStatus_RunningToFailed(t *testing.T) {
	run := &domain.PipelineRun{ID: uuid.New(), Status: domain.StatusRunning}

	if !applyStatus(run, domain.StatusFailed) {
		t.Fatal("expected a transition")
	}
	if run.Status != domain.StatusFailed {
		t.Errorf("expected FAILED, got %s", run.Status)
	}
	if run.Error == "" {
		t.Error("failed run should carry an error message")
	}
}

func TestApplyStatus_UnknownTarget(t *testing.T) {
	run := &domain.PipelineRun{ID: uuid.New(), Status: domain.StatusRunning}

	if applyStatus(run, domain.StatusCached) {
		t.Error("CACHED is not a valid poll transition for a pipeline run")
	}
	if run.Status != domain.StatusRunning {
		t.Error("status should be unchanged")
	}
}

func TestAcquireReleaseRun(t *testing.T) {
	p := New(Config{})
	runID := uuid.New()

	if !p.acquireRun(runID) {
		t.Fatal("first acquire should succeed")
	}
	if p.acquireRun(runID) {
		t.Error("second acquire of the same run should fail")
	}

	p.releaseRun(runID)

	if !p.acquireRun(runID) {
		t.Error("acquire after release should succeed")
	}
}
