package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/repo"
)

// ListStepRuns возвращает список step runs с фильтрацией.
//
// Поддерживаемые query параметры: pipeline_run_id, deployment_id, name,
// status, cache_key, code_hash, original_step_run_id, model_version_id,
// model (имя или ID модели), started_after/started_before,
// finished_after/finished_before, limit, offset.
//
// GET /api/v1/step-runs
func (h *Handler) ListStepRuns(w http.ResponseWriter, r *http.Request) {
	filter, errMsg := stepRunFilterFromQuery(r)
	if errMsg != "" {
		BadRequest(w, errMsg)
		return
	}

	stepRuns, err := h.stepRunRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]StepRunResponse, len(stepRuns))
	for i, s := range stepRuns {
		result[i] = StepRunFromDomain(s)
	}

	List(w, result, len(result))
}

// CreateStepRun регистрирует новый step run.
// POST /api/v1/step-runs
func (h *Handler) CreateStepRun(w http.ResponseWriter, r *http.Request) {
	var req CreateStepRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.PipelineRunID == uuid.Nil {
		BadRequest(w, "pipeline_run_id is required")
		return
	}
	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	// Проверяем, что run существует
	run, err := h.runRepo.GetByID(r.Context(), req.PipelineRunID)
	if HandleRepoError(w, h.logger, err, "pipeline run not found") {
		return
	}

	deploymentID := req.DeploymentID
	if deploymentID == uuid.Nil {
		deploymentID = run.DeploymentID
	}

	status := domain.StatusRunning
	if req.Status != "" {
		status, err = domain.ParseExecutionStatus(req.Status)
		if err != nil {
			BadRequest(w, err.Error())
			return
		}
	}

	stepRun := &domain.StepRun{
		ID:             uuid.New(),
		PipelineRunID:  run.ID,
		DeploymentID:   deploymentID,
		Name:           req.Name,
		Status:         status,
		CacheKey:       req.CacheKey,
		CodeHash:       req.CodeHash,
		Docstring:      req.Docstring,
		SourceCode:     req.SourceCode,
		ParentStepIDs:  req.ParentStepIDs,
		ModelVersionID: req.ModelVersionID,
		Substitutions:  req.Substitutions,
	}
	if status == domain.StatusRunning {
		now := time.Now()
		stepRun.StartedAt = &now
	}

	// Входы по сигнатуре шага: одна версия артефакта на имя входа
	if len(req.Inputs) > 0 {
		stepRun.Inputs = make(map[string][]domain.StepRunInput, len(req.Inputs))
		for name, versionID := range req.Inputs {
			stepRun.Inputs[name] = []domain.StepRunInput{{
				ArtifactVersion: domain.ArtifactVersion{ID: versionID},
				InputType:       domain.InputTypeRegular,
			}}
		}
	}

	if err := h.stepRunRepo.Create(r.Context(), stepRun); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, StepRunFromDomain(*stepRun))
}

// GetStepRun возвращает step run по ID.
//
// С ?hydrate=true ответ включает входные и выходные версии артефактов.
//
// GET /api/v1/step-runs/{id}
func (h *Handler) GetStepRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid step run id")
		return
	}

	hydrate := r.URL.Query().Get("hydrate") == "true"

	stepRun, err := h.stepRunRepo.GetByID(r.Context(), id, hydrate)
	if HandleRepoError(w, h.logger, err, "step run not found") {
		return
	}

	Success(w, StepRunFromDomain(*stepRun))
}

// UpdateStepRun выполняет частичное обновление step run.
// PATCH /api/v1/step-runs/{id}
func (h *Handler) UpdateStepRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid step run id")
		return
	}

	var req UpdateStepRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	update := repo.StepRunUpdate{
		FinishedAt:        req.FinishedAt,
		LogsURI:           req.LogsURI,
		OriginalStepRunID: req.OriginalStepRunID,
		Outputs:           req.Outputs,
		LoadedArtifacts:   req.LoadedArtifacts,
		RunMetadata:       req.RunMetadata,
	}
	if req.Status != nil {
		status, err := domain.ParseExecutionStatus(*req.Status)
		if err != nil {
			BadRequest(w, err.Error())
			return
		}
		update.Status = &status

		// Терминальный статус без явного времени — фиксируем сейчас
		if status.IsTerminal() && update.FinishedAt == nil {
			now := time.Now()
			update.FinishedAt = &now
		}
	}

	if err := h.stepRunRepo.Update(r.Context(), id, update); err != nil {
		if HandleRepoError(w, h.logger, err, "step run not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	stepRun, err := h.stepRunRepo.GetByID(r.Context(), id, true)
	if HandleRepoError(w, h.logger, err, "step run not found") {
		return
	}

	Success(w, StepRunFromDomain(*stepRun))
}

// stepRunFilterFromQuery собирает StepRunFilter из query параметров.
// Возвращает текст ошибки для некорректных значений.
func stepRunFilterFromQuery(r *http.Request) (repo.StepRunFilter, string) {
	filter := repo.StepRunFilter{}
	q := r.URL.Query()

	uuidParams := map[string]**uuid.UUID{
		"pipeline_run_id":      &filter.PipelineRunID,
		"deployment_id":        &filter.DeploymentID,
		"original_step_run_id": &filter.OriginalStepRunID,
		"model_version_id":     &filter.ModelVersionID,
	}
	for name, target := range uuidParams {
		if s := q.Get(name); s != "" {
			id, err := uuid.Parse(s)
			if err != nil {
				return filter, "invalid " + name
			}
			*target = &id
		}
	}

	timeParams := map[string]**time.Time{
		"started_after":   &filter.StartedAfter,
		"started_before":  &filter.StartedBefore,
		"finished_after":  &filter.FinishedAfter,
		"finished_before": &filter.FinishedBefore,
	}
	for name, target := range timeParams {
		if s := q.Get(name); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return filter, "invalid " + name + ", expected RFC3339"
			}
			*target = &t
		}
	}

	filter.Name = q.Get("name")
	filter.Status = domain.ExecutionStatus(q.Get("status"))
	filter.CacheKey = q.Get("cache_key")
	filter.CodeHash = q.Get("code_hash")
	filter.Model = q.Get("model")
	filter.Limit = queryInt(r, "limit", 50)
	filter.Offset = queryInt(r, "offset", 0)

	return filter, ""
}
