package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StepRun — запись об одном выполненном шаге внутри pipeline run.
//
// StepRun хранит входы, выходы, статус и метаданные шага.
// Запись создаётся entrypoint'ом в контейнере при старте шага
// и дополняется по мере выполнения.
type StepRun struct {
	// ID — уникальный идентификатор step run.
	ID uuid.UUID `json:"id"`

	// PipelineRunID — ссылка на родительский run.
	PipelineRunID uuid.UUID `json:"pipeline_run_id"`

	// DeploymentID — deployment, в рамках которого выполнялся шаг.
	DeploymentID uuid.UUID `json:"deployment_id"`

	// Name — имя шага (соответствует ключу в DeploymentSpec.Steps).
	Name string `json:"name"`

	// Status — текущий статус шага.
	Status ExecutionStatus `json:"status"`

	// CacheKey — ключ кеширования шага. Совпадение ключа с более
	// ранним step run позволяет переиспользовать его результаты.
	CacheKey string `json:"cache_key,omitempty"`

	// CodeHash — хеш кода шага.
	CodeHash string `json:"code_hash,omitempty"`

	// Docstring — документация функции шага.
	Docstring string `json:"docstring,omitempty"`

	// SourceCode — исходный код функции шага.
	SourceCode string `json:"source_code,omitempty"`

	// OriginalStepRunID — ID исходного step run, если этот шаг
	// был закеширован (Status == CACHED).
	OriginalStepRunID *uuid.UUID `json:"original_step_run_id,omitempty"`

	// ParentStepIDs — ID step runs, от которых зависел этот шаг.
	ParentStepIDs []uuid.UUID `json:"parent_step_ids,omitempty"`

	// ModelVersionID — версия модели, явно сконфигурированная шагом.
	ModelVersionID *uuid.UUID `json:"model_version_id,omitempty"`

	// Substitutions — подстановки имён, применённые при выполнении.
	Substitutions map[string]string `json:"substitutions,omitempty"`

	// Inputs — входные артефакты шага (имя входа → версии артефактов).
	Inputs map[string][]StepRunInput `json:"inputs,omitempty"`

	// Outputs — выходные артефакты шага (имя выхода → версии артефактов).
	Outputs map[string][]ArtifactVersion `json:"outputs,omitempty"`

	// LogsURI — расположение логов шага.
	LogsURI string `json:"logs_uri,omitempty"`

	// RunMetadata — произвольные метаданные шага.
	RunMetadata map[string]string `json:"run_metadata,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания записи.
	CreatedAt time.Time `json:"created_at"`
}

// StepRunInput — входной артефакт step run вместе с типом входа.
type StepRunInput struct {
	ArtifactVersion

	// InputType — как артефакт попал на вход шага.
	InputType InputType `json:"input_type"`
}

// Duration возвращает продолжительность выполнения шага.
func (s *StepRun) Duration() time.Duration {
	if s.StartedAt == nil || s.FinishedAt == nil {
		return 0
	}
	return s.FinishedAt.Sub(*s.StartedAt)
}

// IsFinished возвращает true, если step run завершён.
func (s *StepRun) IsFinished() bool {
	return s.Status.IsTerminal()
}

// MarkRunning переводит step run в статус RUNNING.
func (s *StepRun) MarkRunning() {
	now := time.Now()
	s.Status = StatusRunning
	s.StartedAt = &now
}

// MarkSucceeded переводит step run в статус SUCCEEDED.
func (s *StepRun) MarkSucceeded() {
	now := time.Now()
	s.Status = StatusSucceeded
	s.FinishedAt = &now
}

// MarkFailed переводит step run в статус FAILED.
func (s *StepRun) MarkFailed() {
	now := time.Now()
	s.Status = StatusFailed
	s.FinishedAt = &now
}

// MarkCached отмечает шаг как закешированный от original.
func (s *StepRun) MarkCached(originalID uuid.UUID) {
	now := time.Now()
	s.Status = StatusCached
	s.OriginalStepRunID = &originalID
	s.FinishedAt = &now
}

// Input возвращает единственный входной артефакт шага.
//
// Возвращает ошибку, если входов нет или их несколько —
// в этом случае нужно обращаться к Inputs напрямую.
func (s *StepRun) Input() (StepRunInput, error) {
	if len(s.Inputs) == 0 {
		return StepRunInput{}, fmt.Errorf("step %s has no inputs", s.Name)
	}
	if len(s.Inputs) > 1 {
		return StepRunInput{}, fmt.Errorf("step %s has multiple inputs, use Inputs instead", s.Name)
	}
	for _, versions := range s.Inputs {
		if len(versions) != 1 {
			return StepRunInput{}, fmt.Errorf("step %s has multiple inputs, use Inputs instead", s.Name)
		}
		return versions[0], nil
	}
	return StepRunInput{}, fmt.Errorf("step %s has no inputs", s.Name)
}

// Output возвращает единственный выходной артефакт шага.
//
// Возвращает ошибку, если выходов нет или их несколько.
func (s *StepRun) Output() (ArtifactVersion, error) {
	if len(s.Outputs) == 0 {
		return ArtifactVersion{}, fmt.Errorf("step %s has no outputs", s.Name)
	}
	if len(s.Outputs) > 1 {
		return ArtifactVersion{}, fmt.Errorf("step %s has multiple outputs, use Outputs instead", s.Name)
	}
	for _, versions := range s.Outputs {
		if len(versions) != 1 {
			return ArtifactVersion{}, fmt.Errorf("step %s has multiple outputs, use Outputs instead", s.Name)
		}
		return versions[0], nil
	}
	return ArtifactVersion{}, fmt.Errorf("step %s has no outputs", s.Name)
}

// RegularInputs возвращает "обычные" входы шага — те, что объявлены
// в сигнатуре шага и не были загружены вручную во время выполнения.
//
// Возвращает ошибку, если для одного имени входа найдено несколько
// не-manual артефактов.
func (s *StepRun) RegularInputs() (map[string]StepRunInput, error) {
	result := make(map[string]StepRunInput)

	for name, versions := range s.Inputs {
		var filtered []StepRunInput
		for _, v := range versions {
			if v.InputType != InputTypeManual {
				filtered = append(filtered, v)
			}
		}
		if len(filtered) > 1 {
			return nil, fmt.Errorf("expected 1 regular input artifact for %s, got %d", name, len(filtered))
		}
		if len(filtered) == 1 {
			result[name] = filtered[0]
		}
	}

	return result, nil
}

// RegularOutputs возвращает "обычные" выходы шага — те, что объявлены
// в сигнатуре шага (save_type == step_output).
//
// Возвращает ошибку, если для одного имени выхода найдено несколько
// таких артефактов.
func (s *StepRun) RegularOutputs() (map[string]ArtifactVersion, error) {
	result := make(map[string]ArtifactVersion)

	for name, versions := range s.Outputs {
		var filtered []ArtifactVersion
		for _, v := range versions {
			if v.SaveType == SaveTypeStepOutput {
				filtered = append(filtered, v)
			}
		}
		if len(filtered) > 1 {
			return nil, fmt.Errorf("expected 1 regular output artifact for %s, got %d", name, len(filtered))
		}
		if len(filtered) == 1 {
			result[name] = filtered[0]
		}
	}

	return result, nil
}
