package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func artifact(name string, saveType SaveType) ArtifactVersion {
	return ArtifactVersion{
		ID:       uuid.New(),
		Name:     name,
		Version:  1,
		URI:      "s3://bucket/artifacts/" + name,
		SaveType: saveType,
	}
}

func input(name string, inputType InputType) StepRunInput {
	return StepRunInput{
		ArtifactVersion: artifact(name, SaveTypeStepOutput),
		InputType:       inputType,
	}
}

// --- Input / Output ---

func TestStepRun_Input_Single(t *testing.T) {
	in := input("data", InputTypeRegular)
	step := &StepRun{
		Name:   "trainer",
		Inputs: map[string][]StepRunInput{"data": {in}},
	}

	got, err := step.Input()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != in.ID {
		t.Error("should return the single input artifact")
	}
}

func TestStepRun_Input_None(t *testing.T) {
	step := &StepRun{Name: "trainer"}

	if _, err := step.Input(); err == nil {
		t.Error("expected error for step without inputs")
	}
}

func TestStepRun_Input_Ambiguous(t *testing.T) {
	step := &StepRun{
		Name: "trainer",
		Inputs: map[string][]StepRunInput{
			"a": {input("a", InputTypeRegular)},
			"b": {input("b", InputTypeRegular)},
		},
	}

	if _, err := step.Input(); err == nil {
		t.Error("expected error for multiple input names")
	}

	// Одна запись с несколькими версиями — тоже неоднозначно.
	step = &StepRun{
		Name: "trainer",
		Inputs: map[string][]StepRunInput{
			"a": {input("a", InputTypeRegular), input("a", InputTypeManual)},
		},
	}

	if _, err := step.Input(); err == nil {
		t.Error("expected error for multiple versions under one name")
	}
}

func TestStepRun_Output_Single(t *testing.T) {
	out := artifact("model", SaveTypeStepOutput)
	step := &StepRun{
		Name:    "trainer",
		Outputs: map[string][]ArtifactVersion{"model": {out}},
	}

	got, err := step.Output()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != out.ID {
		t.Error("should return the single output artifact")
	}
}

func TestStepRun_Output_Ambiguous(t *testing.T) {
	step := &StepRun{
		Name: "trainer",
		Outputs: map[string][]ArtifactVersion{
			"model":   {artifact("model", SaveTypeStepOutput)},
			"metrics": {artifact("metrics", SaveTypeStepOutput)},
		},
	}

	if _, err := step.Output(); err == nil {
		t.Error("expected error for multiple outputs")
	}
}

// --- RegularInputs / RegularOutputs ---

func TestStepRun_RegularInputs_FiltersManual(t *testing.T) {
	regular := input("data", InputTypeRegular)
	manual := input("extra", InputTypeManual)
	step := &StepRun{
		Name: "trainer",
		Inputs: map[string][]StepRunInput{
			"data":  {regular},
			"extra": {manual},
		},
	}

	got, err := step.RegularInputs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 regular input, got %d", len(got))
	}
	if got["data"].ID != regular.ID {
		t.Error("regular input should survive filtering")
	}
}

func TestStepRun_RegularInputs_DuplicateError(t *testing.T) {
	step := &StepRun{
		Name: "trainer",
		Inputs: map[string][]StepRunInput{
			"data": {input("data", InputTypeRegular), input("data", InputTypeLazy)},
		},
	}

	if _, err := step.RegularInputs(); err == nil {
		t.Error("expected error for duplicate regular inputs")
	}
}

func TestStepRun_RegularOutputs_FiltersManual(t *testing.T) {
	regular := artifact("model", SaveTypeStepOutput)
	manual := artifact("debug", SaveTypeManual)
	step := &StepRun{
		Name: "trainer",
		Outputs: map[string][]ArtifactVersion{
			"model": {regular, manual},
			"dump":  {artifact("dump", SaveTypeManual)},
		},
	}

	got, err := step.RegularOutputs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 regular output, got %d", len(got))
	}
	if got["model"].ID != regular.ID {
		t.Error("step_output artifact should survive filtering")
	}
}

// --- Lifecycle ---

func TestStepRun_Lifecycle(t *testing.T) {
	step := &StepRun{Name: "trainer", Status: StatusPending}

	step.MarkRunning()
	if step.Status != StatusRunning || step.StartedAt == nil {
		t.Error("MarkRunning should set status and start time")
	}

	step.MarkSucceeded()
	if step.Status != StatusSucceeded || step.FinishedAt == nil {
		t.Error("MarkSucceeded should set status and finish time")
	}
	if !step.IsFinished() {
		t.Error("SUCCEEDED should be terminal")
	}
}

func TestStepRun_MarkCached(t *testing.T) {
	original := uuid.New()
	step := &StepRun{Name: "trainer", Status: StatusPending}

	step.MarkCached(original)

	if step.Status != StatusCached {
		t.Errorf("expected CACHED, got %s", step.Status)
	}
	if step.OriginalStepRunID == nil || *step.OriginalStepRunID != original {
		t.Error("original step run ID should be recorded")
	}
	if !step.IsFinished() {
		t.Error("CACHED should be terminal")
	}
}

func TestStepRun_Duration(t *testing.T) {
	start := time.Now()
	end := start.Add(2 * time.Minute)
	step := &StepRun{StartedAt: &start, FinishedAt: &end}

	if step.Duration() != 2*time.Minute {
		t.Errorf("expected 2m, got %s", step.Duration())
	}

	if (&StepRun{}).Duration() != 0 {
		t.Error("unfinished step should have zero duration")
	}
}
