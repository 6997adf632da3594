package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/scheduler"
)

// ListPipelines возвращает список pipelines.
// GET /api/v1/pipelines
func (h *Handler) ListPipelines(w http.ResponseWriter, r *http.Request) {
	pipelines, err := h.pipelineRepo.List(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]PipelineResponse, len(pipelines))
	for i, p := range pipelines {
		result[i] = PipelineFromDomain(p)
	}

	List(w, result, len(result))
}

// CreatePipeline регистрирует новый pipeline.
// POST /api/v1/pipelines
func (h *Handler) CreatePipeline(w http.ResponseWriter, r *http.Request) {
	var req CreatePipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	// Регистрация идемпотентна: повторный запрос с тем же именем
	// возвращает существующий pipeline.
	if existing, err := h.pipelineRepo.GetByName(r.Context(), req.Name); err == nil {
		Success(w, PipelineFromDomain(*existing))
		return
	}

	pipeline := &domain.Pipeline{
		ID:       uuid.New(),
		Name:     req.Name,
		IsActive: true,
	}

	if err := h.pipelineRepo.Create(r.Context(), pipeline); err != nil {
		if HandleRepoError(w, h.logger, err, "") {
			return
		}
	}

	Created(w, PipelineFromDomain(*pipeline))
}

// GetPipeline возвращает pipeline по ID или имени.
// GET /api/v1/pipelines/{id}
func (h *Handler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	pipeline, ok := h.findPipeline(w, r)
	if !ok {
		return
	}

	Success(w, PipelineFromDomain(*pipeline))
}

// UpdatePipeline обновляет pipeline.
// PUT /api/v1/pipelines/{id}
func (h *Handler) UpdatePipeline(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	var req UpdatePipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	pipeline, err := h.pipelineRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "pipeline not found") {
		return
	}

	if req.Name != nil {
		pipeline.Name = *req.Name
	}
	if req.IsActive != nil {
		pipeline.IsActive = *req.IsActive
	}

	if err := h.pipelineRepo.Update(r.Context(), pipeline); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, PipelineFromDomain(*pipeline))
}

// DeletePipeline удаляет pipeline.
// DELETE /api/v1/pipelines/{id}
func (h *Handler) DeletePipeline(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	if err := h.pipelineRepo.Delete(r.Context(), id); err != nil {
		if HandleRepoError(w, h.logger, err, "pipeline not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	NoContent(w)
}

// ListDeployments возвращает deployments pipeline.
// GET /api/v1/pipelines/{id}/deployments
func (h *Handler) ListDeployments(w http.ResponseWriter, r *http.Request) {
	pipeline, ok := h.findPipeline(w, r)
	if !ok {
		return
	}

	deployments, err := h.deploymentRepo.ListByPipeline(r.Context(), pipeline.ID)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]DeploymentResponse, len(deployments))
	for i, d := range deployments {
		result[i] = DeploymentFromDomain(d)
	}

	List(w, result, len(result))
}

// CreateDeployment создаёт новый deployment для pipeline.
// POST /api/v1/pipelines/{id}/deployments
func (h *Handler) CreateDeployment(w http.ResponseWriter, r *http.Request) {
	pipeline, ok := h.findPipeline(w, r)
	if !ok {
		return
	}

	if !pipeline.IsActive {
		InvalidState(w, "pipeline is not active")
		return
	}

	var req CreateDeploymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if len(req.Spec.Steps) == 0 {
		BadRequest(w, "spec must contain at least one step")
		return
	}

	if req.Schedule != nil {
		if msg := validateScheduleSpec(req.Schedule); msg != "" {
			BadRequest(w, msg)
			return
		}
	}

	if req.Spec.PipelineName == "" {
		req.Spec.PipelineName = pipeline.Name
	}

	deployment := &domain.Deployment{
		ID:         uuid.New(),
		PipelineID: pipeline.ID,
		Spec:       req.Spec,
		Schedule:   req.Schedule,
	}

	if err := h.deploymentRepo.Create(r.Context(), deployment); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, DeploymentFromDomain(*deployment))
}

// GetDeployment возвращает deployment по ID.
// GET /api/v1/deployments/{id}
func (h *Handler) GetDeployment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid deployment id")
		return
	}

	deployment, err := h.deploymentRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "deployment not found") {
		return
	}

	Success(w, DeploymentFromDomain(*deployment))
}

// GetLatestDeployment возвращает последний deployment pipeline.
// GET /api/v1/pipelines/{id}/deployments/latest
func (h *Handler) GetLatestDeployment(w http.ResponseWriter, r *http.Request) {
	pipeline, ok := h.findPipeline(w, r)
	if !ok {
		return
	}

	deployment, err := h.deploymentRepo.GetLatest(r.Context(), pipeline.ID)
	if HandleRepoError(w, h.logger, err, "pipeline has no deployments") {
		return
	}

	Success(w, DeploymentFromDomain(*deployment))
}

// findPipeline находит pipeline по path-параметру {id}:
// сперва как UUID, затем как имя.
func (h *Handler) findPipeline(w http.ResponseWriter, r *http.Request) (*domain.Pipeline, bool) {
	ref := r.PathValue("id")

	if id, err := uuid.Parse(ref); err == nil {
		pipeline, err := h.pipelineRepo.GetByID(r.Context(), id)
		if HandleRepoError(w, h.logger, err, "pipeline not found") {
			return nil, false
		}
		return pipeline, true
	}

	pipeline, err := h.pipelineRepo.GetByName(r.Context(), ref)
	if HandleRepoError(w, h.logger, err, "pipeline not found") {
		return nil, false
	}
	return pipeline, true
}

// validateScheduleSpec проверяет ScheduleSpec нового deployment.
// Возвращает текст ошибки или пустую строку.
func validateScheduleSpec(spec *domain.ScheduleSpec) string {
	if spec.IsCron() {
		if err := scheduler.ValidateCronExpr(spec.CronExpr); err != nil {
			return "invalid cron expression: " + err.Error()
		}
		return ""
	}

	if spec.IsInterval() {
		return ""
	}

	// One-time запуск требует явного времени.
	if spec.RunOnceAt == nil && spec.StartTime == nil {
		return "schedule must define cron_expr, interval_sec or a start time"
	}

	return ""
}
