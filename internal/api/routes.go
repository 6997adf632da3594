package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Metrics(),
		Logging(h.logger),
	)

	// Pipelines
	mux.Handle("GET /api/v1/pipelines", chain(http.HandlerFunc(h.ListPipelines)))
	mux.Handle("POST /api/v1/pipelines", chain(http.HandlerFunc(h.CreatePipeline)))
	mux.Handle("GET /api/v1/pipelines/{id}", chain(http.HandlerFunc(h.GetPipeline)))
	mux.Handle("PUT /api/v1/pipelines/{id}", chain(http.HandlerFunc(h.UpdatePipeline)))
	mux.Handle("DELETE /api/v1/pipelines/{id}", chain(http.HandlerFunc(h.DeletePipeline)))

	// Deployments
	mux.Handle("GET /api/v1/pipelines/{id}/deployments", chain(http.HandlerFunc(h.ListDeployments)))
	mux.Handle("POST /api/v1/pipelines/{id}/deployments", chain(http.HandlerFunc(h.CreateDeployment)))
	mux.Handle("GET /api/v1/pipelines/{id}/deployments/latest", chain(http.HandlerFunc(h.GetLatestDeployment)))
	mux.Handle("GET /api/v1/deployments/{id}", chain(http.HandlerFunc(h.GetDeployment)))

	// Runs
	mux.Handle("GET /api/v1/runs", chain(http.HandlerFunc(h.ListRuns)))
	mux.Handle("POST /api/v1/deployments/{id}/runs", chain(http.HandlerFunc(h.CreateRun)))
	mux.Handle("GET /api/v1/runs/{id}", chain(http.HandlerFunc(h.GetRun)))
	mux.Handle("GET /api/v1/runs/by-name/{name}", chain(http.HandlerFunc(h.GetRunByName)))

	// Step runs
	mux.Handle("GET /api/v1/step-runs", chain(http.HandlerFunc(h.ListStepRuns)))
	mux.Handle("POST /api/v1/step-runs", chain(http.HandlerFunc(h.CreateStepRun)))
	mux.Handle("GET /api/v1/step-runs/{id}", chain(http.HandlerFunc(h.GetStepRun)))
	mux.Handle("PATCH /api/v1/step-runs/{id}", chain(http.HandlerFunc(h.UpdateStepRun)))

	// Artifacts
	mux.Handle("GET /api/v1/artifacts", chain(http.HandlerFunc(h.ListArtifacts)))
	mux.Handle("POST /api/v1/artifacts", chain(http.HandlerFunc(h.CreateArtifact)))
	mux.Handle("GET /api/v1/artifacts/{id}", chain(http.HandlerFunc(h.GetArtifact)))

	// Models
	mux.Handle("POST /api/v1/models", chain(http.HandlerFunc(h.CreateModel)))
	mux.Handle("GET /api/v1/models/{name}", chain(http.HandlerFunc(h.GetModel)))
	mux.Handle("GET /api/v1/models/{name}/versions", chain(http.HandlerFunc(h.ListModelVersions)))
	mux.Handle("POST /api/v1/models/{name}/versions", chain(http.HandlerFunc(h.CreateModelVersion)))
	mux.Handle("GET /api/v1/model-versions/{id}", chain(http.HandlerFunc(h.GetModelVersion)))

	// Schedules
	mux.Handle("GET /api/v1/schedules", chain(http.HandlerFunc(h.ListSchedules)))
	mux.Handle("GET /api/v1/schedules/{id}", chain(http.HandlerFunc(h.GetSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}/enabled", chain(http.HandlerFunc(h.SetScheduleEnabled)))
	mux.Handle("DELETE /api/v1/schedules/{id}", chain(http.HandlerFunc(h.DeleteSchedule)))
}
