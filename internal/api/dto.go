package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Pipeline DTOs

// CreatePipelineRequest — запрос на регистрацию pipeline.
type CreatePipelineRequest struct {
	Name string `json:"name"`
}

// UpdatePipelineRequest — запрос на обновление pipeline.
type UpdatePipelineRequest struct {
	Name     *string `json:"name,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// PipelineResponse — ответ с pipeline.
type PipelineResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// PipelineFromDomain конвертирует domain.Pipeline в PipelineResponse.
func PipelineFromDomain(p domain.Pipeline) PipelineResponse {
	return PipelineResponse{
		ID:        p.ID,
		Name:      p.Name,
		IsActive:  p.IsActive,
		CreatedAt: p.CreatedAt,
	}
}

// Deployment DTOs

// CreateDeploymentRequest — запрос на создание deployment.
type CreateDeploymentRequest struct {
	Spec     domain.DeploymentSpec `json:"spec"`
	Schedule *domain.ScheduleSpec  `json:"schedule,omitempty"`
}

// DeploymentResponse — ответ с deployment.
type DeploymentResponse struct {
	ID         uuid.UUID             `json:"id"`
	PipelineID uuid.UUID             `json:"pipeline_id"`
	Version    int                   `json:"version"`
	Spec       domain.DeploymentSpec `json:"spec"`
	Schedule   *domain.ScheduleSpec  `json:"schedule,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
}

// DeploymentFromDomain конвертирует domain.Deployment в DeploymentResponse.
func DeploymentFromDomain(d domain.Deployment) DeploymentResponse {
	return DeploymentResponse{
		ID:         d.ID,
		PipelineID: d.PipelineID,
		Version:    d.Version,
		Spec:       d.Spec,
		Schedule:   d.Schedule,
		CreatedAt:  d.CreatedAt,
	}
}

// Run DTOs

// CreateRunRequest — запрос на создание run.
//
// OrchestratorRunID заполняет entrypoint, регистрируя run для уже
// идущего выполнения (срабатывание EventBridge schedule). Такой run
// создаётся сразу в RUNNING, launcher его не обрабатывает, статус
// дальше ведёт poller.
type CreateRunRequest struct {
	Name              string `json:"name,omitempty"`
	OrchestratorRunID string `json:"orchestrator_run_id,omitempty"`
}

// RunResponse — ответ с run.
type RunResponse struct {
	ID                uuid.UUID         `json:"id"`
	DeploymentID      uuid.UUID         `json:"deployment_id"`
	Name              string            `json:"name"`
	Status            string            `json:"status"`
	OrchestratorRunID string            `json:"orchestrator_run_id,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	StartedAt         *time.Time        `json:"started_at,omitempty"`
	FinishedAt        *time.Time        `json:"finished_at,omitempty"`
	Error             string            `json:"error,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// RunFromDomain конвертирует domain.PipelineRun в RunResponse.
func RunFromDomain(r domain.PipelineRun) RunResponse {
	return RunResponse{
		ID:                r.ID,
		DeploymentID:      r.DeploymentID,
		Name:              r.Name,
		Status:            string(r.Status),
		OrchestratorRunID: r.OrchestratorRunID,
		Metadata:          r.Metadata,
		StartedAt:         r.StartedAt,
		FinishedAt:        r.FinishedAt,
		Error:             r.Error,
		CreatedAt:         r.CreatedAt,
	}
}

// StepRun DTOs

// CreateStepRunRequest — запрос на регистрацию step run.
// Отправляется entrypoint'ом из контейнера при старте шага.
type CreateStepRunRequest struct {
	PipelineRunID  uuid.UUID            `json:"pipeline_run_id"`
	DeploymentID   uuid.UUID            `json:"deployment_id"`
	Name           string               `json:"name"`
	Status         string               `json:"status,omitempty"`
	CacheKey       string               `json:"cache_key,omitempty"`
	CodeHash       string               `json:"code_hash,omitempty"`
	Docstring      string               `json:"docstring,omitempty"`
	SourceCode     string               `json:"source_code,omitempty"`
	ParentStepIDs  []uuid.UUID          `json:"parent_step_ids,omitempty"`
	ModelVersionID *uuid.UUID           `json:"model_version_id,omitempty"`
	Substitutions  map[string]string    `json:"substitutions,omitempty"`
	Inputs         map[string]uuid.UUID `json:"inputs,omitempty"`
}

// UpdateStepRunRequest — запрос на частичное обновление step run.
type UpdateStepRunRequest struct {
	Status            *string                `json:"status,omitempty"`
	FinishedAt        *time.Time             `json:"finished_at,omitempty"`
	LogsURI           *string                `json:"logs_uri,omitempty"`
	OriginalStepRunID *uuid.UUID             `json:"original_step_run_id,omitempty"`
	Outputs           map[string][]uuid.UUID `json:"outputs,omitempty"`
	LoadedArtifacts   map[string]uuid.UUID   `json:"loaded_artifacts,omitempty"`
	RunMetadata       map[string]string      `json:"run_metadata,omitempty"`
}

// StepRunResponse — ответ со step run.
//
// Inputs и Outputs заполняются только при гидрации
// (GET .../step-runs/{id}?hydrate=true).
type StepRunResponse struct {
	ID                uuid.UUID                           `json:"id"`
	PipelineRunID     uuid.UUID                           `json:"pipeline_run_id"`
	DeploymentID      uuid.UUID                           `json:"deployment_id"`
	Name              string                              `json:"name"`
	Status            string                              `json:"status"`
	CacheKey          string                              `json:"cache_key,omitempty"`
	CodeHash          string                              `json:"code_hash,omitempty"`
	Docstring         string                              `json:"docstring,omitempty"`
	SourceCode        string                              `json:"source_code,omitempty"`
	OriginalStepRunID *uuid.UUID                          `json:"original_step_run_id,omitempty"`
	ParentStepIDs     []uuid.UUID                         `json:"parent_step_ids,omitempty"`
	ModelVersionID    *uuid.UUID                          `json:"model_version_id,omitempty"`
	Substitutions     map[string]string                   `json:"substitutions,omitempty"`
	Inputs            map[string][]domain.StepRunInput    `json:"inputs,omitempty"`
	Outputs           map[string][]domain.ArtifactVersion `json:"outputs,omitempty"`
	LogsURI           string                              `json:"logs_uri,omitempty"`
	RunMetadata       map[string]string                   `json:"run_metadata,omitempty"`
	StartedAt         *time.Time                          `json:"started_at,omitempty"`
	FinishedAt        *time.Time                          `json:"finished_at,omitempty"`
	CreatedAt         time.Time                           `json:"created_at"`
}

// StepRunFromDomain конвертирует domain.StepRun в StepRunResponse.
func StepRunFromDomain(s domain.StepRun) StepRunResponse {
	return StepRunResponse{
		ID:                s.ID,
		PipelineRunID:     s.PipelineRunID,
		DeploymentID:      s.DeploymentID,
		Name:              s.Name,
		Status:            string(s.Status),
		CacheKey:          s.CacheKey,
		CodeHash:          s.CodeHash,
		Docstring:         s.Docstring,
		SourceCode:        s.SourceCode,
		OriginalStepRunID: s.OriginalStepRunID,
		ParentStepIDs:     s.ParentStepIDs,
		ModelVersionID:    s.ModelVersionID,
		Substitutions:     s.Substitutions,
		Inputs:            s.Inputs,
		Outputs:           s.Outputs,
		LogsURI:           s.LogsURI,
		RunMetadata:       s.RunMetadata,
		StartedAt:         s.StartedAt,
		FinishedAt:        s.FinishedAt,
		CreatedAt:         s.CreatedAt,
	}
}

// Artifact DTOs

// CreateArtifactRequest — запрос на регистрацию версии артефакта.
type CreateArtifactRequest struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	SaveType string `json:"save_type,omitempty"`
}

// ArtifactResponse — ответ с версией артефакта.
type ArtifactResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	URI       string    `json:"uri"`
	SaveType  string    `json:"save_type"`
	CreatedAt time.Time `json:"created_at"`
}

// ArtifactFromDomain конвертирует domain.ArtifactVersion в ArtifactResponse.
func ArtifactFromDomain(a domain.ArtifactVersion) ArtifactResponse {
	return ArtifactResponse{
		ID:        a.ID,
		Name:      a.Name,
		Version:   a.Version,
		URI:       a.URI,
		SaveType:  string(a.SaveType),
		CreatedAt: a.CreatedAt,
	}
}

// Model DTOs

// CreateModelRequest — запрос на регистрацию модели.
type CreateModelRequest struct {
	Name string `json:"name"`
}

// ModelResponse — ответ с моделью.
type ModelResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ModelFromDomain конвертирует domain.Model в ModelResponse.
func ModelFromDomain(m domain.Model) ModelResponse {
	return ModelResponse{
		ID:        m.ID,
		Name:      m.Name,
		CreatedAt: m.CreatedAt,
	}
}

// ModelVersionResponse — ответ с версией модели.
type ModelVersionResponse struct {
	ID        uuid.UUID `json:"id"`
	ModelID   uuid.UUID `json:"model_id"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

// ModelVersionFromDomain конвертирует domain.ModelVersion в ModelVersionResponse.
func ModelVersionFromDomain(v domain.ModelVersion) ModelVersionResponse {
	return ModelVersionResponse{
		ID:        v.ID,
		ModelID:   v.ModelID,
		Version:   v.Version,
		CreatedAt: v.CreatedAt,
	}
}

// Schedule DTOs

// SetEnabledRequest — запрос на включение/выключение schedule.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ScheduleResponse — ответ со schedule.
type ScheduleResponse struct {
	ID           uuid.UUID           `json:"id"`
	DeploymentID uuid.UUID           `json:"deployment_id"`
	Name         string              `json:"name"`
	Spec         domain.ScheduleSpec `json:"spec"`
	Enabled      bool                `json:"enabled"`
	ScheduleARN  string              `json:"schedule_arn,omitempty"`
	NextDueAt    *time.Time          `json:"next_due_at,omitempty"`
	LastRunAt    *time.Time          `json:"last_run_at,omitempty"`
	LastRunID    *uuid.UUID          `json:"last_run_id,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	if s == nil {
		return ScheduleResponse{}
	}
	return ScheduleResponse{
		ID:           s.ID,
		DeploymentID: s.DeploymentID,
		Name:         s.Name,
		Spec:         s.Spec,
		Enabled:      s.Enabled,
		ScheduleARN:  s.ScheduleARN,
		NextDueAt:    s.NextDueAt,
		LastRunAt:    s.LastRunAt,
		LastRunID:    s.LastRunID,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}
