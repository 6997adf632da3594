package domain

import (
	"time"

	"github.com/google/uuid"
)

// Ключи метаданных run, записываемых оркестратором.
const (
	// MetadataExecutionARN — ARN выполнения на стороне SageMaker.
	MetadataExecutionARN = "pipeline_execution_arn"

	// MetadataOrchestratorRunID — идентификатор run в оркестраторе
	// (совпадает с execution ARN).
	MetadataOrchestratorRunID = "orchestrator_run_id"

	// MetadataOrchestratorURL — URL страницы выполнения в SageMaker Studio.
	MetadataOrchestratorURL = "orchestrator_url"

	// MetadataOrchestratorLogsURL — URL логов выполнения в CloudWatch.
	MetadataOrchestratorLogsURL = "orchestrator_logs_url"

	// MetadataScheduleARN — ARN расписания EventBridge.
	MetadataScheduleARN = "schedule_arn"

	// MetadataTriggerURL — URL расписания в консоли EventBridge Scheduler.
	MetadataTriggerURL = "trigger_url"
)

// PipelineRun — экземпляр выполнения deployment.
//
// Run создаётся когда:
//   - Пользователь запускает deployment вручную (через API/CLI)
//   - EventBridge запускает scheduled deployment
//
// Launcher отправляет run в SageMaker, Poller отслеживает его статус.
type PipelineRun struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// DeploymentID — ссылка на deployment, который выполняется.
	DeploymentID uuid.UUID `json:"deployment_id"`

	// Name — имя run на стороне оркестратора
	// (санитизированное имя pipeline + суффикс).
	Name string `json:"name"`

	// Status — текущий статус выполнения.
	Status ExecutionStatus `json:"status"`

	// OrchestratorRunID — идентификатор выполнения в SageMaker
	// (ARN pipeline execution). Пустой, пока run не отправлен.
	OrchestratorRunID string `json:"orchestrator_run_id,omitempty"`

	// Metadata — метаданные, записанные оркестратором
	// (execution ARN, ссылки на Studio и CloudWatch).
	Metadata map[string]string `json:"metadata,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения (успешного или с ошибкой).
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки, если run завершился с FAILED.
	Error string `json:"error,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *PipelineRun) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён.
func (r *PipelineRun) IsFinished() bool {
	return r.Status.IsTerminal()
}

// SetMetadata записывает пару ключ-значение в метаданные run.
func (r *PipelineRun) SetMetadata(key, value string) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]string)
	}
	r.Metadata[key] = value
}

// ExecutionARN возвращает ARN выполнения: сперва из метаданных,
// затем из OrchestratorRunID. Пустая строка, если run не отправлен.
func (r *PipelineRun) ExecutionARN() string {
	if arn, ok := r.Metadata[MetadataOrchestratorRunID]; ok && arn != "" {
		return arn
	}
	return r.OrchestratorRunID
}

// MarkRunning переводит run в статус RUNNING.
func (r *PipelineRun) MarkRunning() {
	now := time.Now()
	r.Status = StatusRunning
	r.StartedAt = &now
}

// MarkSucceeded переводит run в статус SUCCEEDED.
func (r *PipelineRun) MarkSucceeded() {
	now := time.Now()
	r.Status = StatusSucceeded
	r.FinishedAt = &now
}

// MarkFailed переводит run в статус FAILED с ошибкой.
func (r *PipelineRun) MarkFailed(err string) {
	now := time.Now()
	r.Status = StatusFailed
	r.FinishedAt = &now
	r.Error = err
}

// MarkStopped переводит run в статус STOPPED.
func (r *PipelineRun) MarkStopped() {
	now := time.Now()
	r.Status = StatusStopped
	r.FinishedAt = &now
}
