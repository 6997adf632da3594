package api

import (
	"log/slog"

	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	pipelineRepo   *repo.PipelineRepo
	deploymentRepo *repo.DeploymentRepo
	runRepo        *repo.RunRepo
	stepRunRepo    *repo.StepRunRepo
	artifactRepo   *repo.ArtifactRepo
	modelRepo      *repo.ModelRepo
	scheduleRepo   *repo.ScheduleRepo
	publisher      *mq.Publisher
	logger         *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	PipelineRepo   *repo.PipelineRepo
	DeploymentRepo *repo.DeploymentRepo
	RunRepo        *repo.RunRepo
	StepRunRepo    *repo.StepRunRepo
	ArtifactRepo   *repo.ArtifactRepo
	ModelRepo      *repo.ModelRepo
	ScheduleRepo   *repo.ScheduleRepo
	Publisher      *mq.Publisher
	Logger         *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		pipelineRepo:   cfg.PipelineRepo,
		deploymentRepo: cfg.DeploymentRepo,
		runRepo:        cfg.RunRepo,
		stepRunRepo:    cfg.StepRunRepo,
		artifactRepo:   cfg.ArtifactRepo,
		modelRepo:      cfg.ModelRepo,
		scheduleRepo:   cfg.ScheduleRepo,
		publisher:      cfg.Publisher,
		logger:         cfg.Logger,
	}
}
