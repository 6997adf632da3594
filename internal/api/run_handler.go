package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/repo"
)

// ListRuns возвращает список runs с фильтрацией.
// GET /api/v1/runs?deployment_id=...&status=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter := repo.RunFilter{}

	// Парсим query параметры
	if deploymentIDStr := r.URL.Query().Get("deployment_id"); deploymentIDStr != "" {
		deploymentID, err := uuid.Parse(deploymentIDStr)
		if err != nil {
			BadRequest(w, "invalid deployment_id")
			return
		}
		filter.DeploymentID = &deploymentID
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.ExecutionStatus(status)
	}

	filter.Limit = queryInt(r, "limit", 50)
	filter.Offset = queryInt(r, "offset", 0)

	runs, err := h.runRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}

	List(w, result, len(result))
}

// CreateRun создаёт новый run для deployment.
//
// Обычный run создаётся в статусе PENDING; отправкой в SageMaker
// занимается launcher, которому публикуется событие deployment.pending.
// Run с orchestrator_run_id в запросе уже выполняется на стороне
// SageMaker (его регистрирует entrypoint при срабатывании schedule):
// он создаётся сразу в RUNNING и launcher'у не публикуется.
//
// POST /api/v1/deployments/{id}/runs
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	deploymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid deployment id")
		return
	}

	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	// Проверяем, что deployment существует
	deployment, err := h.deploymentRepo.GetByID(r.Context(), deploymentID)
	if HandleRepoError(w, h.logger, err, "deployment not found") {
		return
	}

	run := &domain.PipelineRun{
		ID:           uuid.New(),
		DeploymentID: deployment.ID,
		Name:         req.Name,
		Status:       domain.StatusPending,
		CreatedAt:    time.Now(),
	}
	if run.Name == "" {
		run.Name = fmt.Sprintf("%s-%s", deployment.Spec.PipelineName, run.ID)
	}

	if req.OrchestratorRunID != "" {
		run.OrchestratorRunID = req.OrchestratorRunID
		run.SetMetadata(domain.MetadataOrchestratorRunID, req.OrchestratorRunID)
		run.SetMetadata(domain.MetadataExecutionARN, req.OrchestratorRunID)
		run.MarkRunning()
	}

	if err := h.runRepo.Create(r.Context(), run); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	// Событие для launcher'а — только для pending runs: run с execution
	// ARN уже запущен, его подхватит poller через ListUnfinished.
	if h.publisher != nil && run.Status == domain.StatusPending {
		if err := h.publisher.PublishDeploymentPending(r.Context(), run.ID, deployment.ID); err != nil {
			h.logger.Warn("failed to publish deployment.pending", "run_id", run.ID, "error", err)
		}
	}

	Created(w, RunFromDomain(*run))
}

// GetRun возвращает run по ID.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	Success(w, RunFromDomain(*run))
}

// GetRunByName возвращает run по имени.
// GET /api/v1/runs/by-name/{name}
func (h *Handler) GetRunByName(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		BadRequest(w, "run name is required")
		return
	}

	run, err := h.runRepo.GetByName(r.Context(), name)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	Success(w, RunFromDomain(*run))
}

// queryInt парсит числовой query параметр с дефолтным значением.
func queryInt(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return n
}
