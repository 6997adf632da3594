package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
)

// ListArtifacts возвращает версии артефакта по имени.
// GET /api/v1/artifacts?name=...
func (h *Handler) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		BadRequest(w, "name query parameter is required")
		return
	}

	versions, err := h.artifactRepo.ListByName(r.Context(), name)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ArtifactResponse, len(versions))
	for i, v := range versions {
		result[i] = ArtifactFromDomain(v)
	}

	List(w, result, len(result))
}

// CreateArtifact регистрирует новую версию артефакта.
//
// Номер версии назначается автоматически (следующий по имени).
//
// POST /api/v1/artifacts
func (h *Handler) CreateArtifact(w http.ResponseWriter, r *http.Request) {
	var req CreateArtifactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}
	if req.URI == "" {
		BadRequest(w, "uri is required")
		return
	}

	saveType := domain.SaveTypeStepOutput
	if req.SaveType != "" {
		saveType = domain.SaveType(req.SaveType)
	}

	version := &domain.ArtifactVersion{
		ID:       uuid.New(),
		Name:     req.Name,
		URI:      req.URI,
		SaveType: saveType,
	}

	if err := h.artifactRepo.Create(r.Context(), version); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, ArtifactFromDomain(*version))
}

// GetArtifact возвращает версию артефакта по ID.
// GET /api/v1/artifacts/{id}
func (h *Handler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid artifact id")
		return
	}

	version, err := h.artifactRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "artifact not found") {
		return
	}

	Success(w, ArtifactFromDomain(*version))
}

// CreateModel регистрирует модель.
//
// Регистрация идемпотентна: повторный запрос с тем же именем
// возвращает существующую модель.
//
// POST /api/v1/models
func (h *Handler) CreateModel(w http.ResponseWriter, r *http.Request) {
	var req CreateModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	if existing, err := h.modelRepo.GetByName(r.Context(), req.Name); err == nil {
		Success(w, ModelFromDomain(*existing))
		return
	}

	model := &domain.Model{
		ID:   uuid.New(),
		Name: req.Name,
	}

	if err := h.modelRepo.Create(r.Context(), model); err != nil {
		if HandleRepoError(w, h.logger, err, "") {
			return
		}
	}

	Created(w, ModelFromDomain(*model))
}

// GetModel возвращает модель по имени.
// GET /api/v1/models/{name}
func (h *Handler) GetModel(w http.ResponseWriter, r *http.Request) {
	model, ok := h.findModel(w, r)
	if !ok {
		return
	}

	Success(w, ModelFromDomain(*model))
}

// ListModelVersions возвращает версии модели.
// GET /api/v1/models/{name}/versions
func (h *Handler) ListModelVersions(w http.ResponseWriter, r *http.Request) {
	model, ok := h.findModel(w, r)
	if !ok {
		return
	}

	versions, err := h.modelRepo.ListVersions(r.Context(), model.ID)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ModelVersionResponse, len(versions))
	for i, v := range versions {
		result[i] = ModelVersionFromDomain(v)
	}

	List(w, result, len(result))
}

// CreateModelVersion создаёт новую версию модели.
// POST /api/v1/models/{name}/versions
func (h *Handler) CreateModelVersion(w http.ResponseWriter, r *http.Request) {
	model, ok := h.findModel(w, r)
	if !ok {
		return
	}

	version, err := h.modelRepo.CreateVersion(r.Context(), model.ID)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, ModelVersionFromDomain(*version))
}

// GetModelVersion возвращает версию модели по ID.
// GET /api/v1/model-versions/{id}
func (h *Handler) GetModelVersion(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid model version id")
		return
	}

	version, err := h.modelRepo.GetVersion(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "model version not found") {
		return
	}

	Success(w, ModelVersionFromDomain(*version))
}

// findModel находит модель по path-параметру {name}.
func (h *Handler) findModel(w http.ResponseWriter, r *http.Request) (*domain.Model, bool) {
	name := r.PathValue("name")
	if name == "" {
		BadRequest(w, "model name is required")
		return nil, false
	}

	model, err := h.modelRepo.GetByName(r.Context(), name)
	if HandleRepoError(w, h.logger, err, "model not found") {
		return nil, false
	}
	return model, true
}
