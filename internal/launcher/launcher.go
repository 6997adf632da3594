package launcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/sagemaker"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 100
)

// Метрики launcher'а.
var (
	runsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conveyor_launcher_runs_submitted_total",
		Help: "Pipeline runs submitted to SageMaker",
	})
	schedulesAttached = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conveyor_launcher_schedules_attached_total",
		Help: "EventBridge schedules attached to pipelines",
	})
	submitErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conveyor_launcher_submit_errors_total",
		Help: "Failed run submissions",
	})
)

// Launcher отправляет pending runs в SageMaker.
//
// Launcher:
//   - Получает новые runs из очереди deployments.pending (event-driven)
//   - Периодически проверяет pending runs в БД (polling fallback)
//   - Отправляет каждый run в SageMaker (submit.go)
type Launcher struct {
	// Repositories
	runRepo        *repo.RunRepo
	deploymentRepo *repo.DeploymentRepo
	scheduleRepo   *repo.ScheduleRepo

	// MQ
	publisher *mq.Publisher
	conn      *mq.Connection

	// AWS
	sm        sagemaker.PipelineAPI
	scheduler sagemaker.SchedulerAPI
	sts       sagemaker.IdentityAPI
	awsCfg    sagemaker.Config

	// Active runs — runs в процессе отправки (runID → struct{})
	activeRuns map[uuid.UUID]struct{}
	mu         sync.Mutex

	// Consumer
	consumer *mq.Consumer

	// Configuration
	pollInterval time.Duration
	batchSize    int

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Launcher.
type Config struct {
	// Repositories
	RunRepo        *repo.RunRepo
	DeploymentRepo *repo.DeploymentRepo
	ScheduleRepo   *repo.ScheduleRepo

	// MQ (опционально: без MQ работает только polling)
	Publisher *mq.Publisher
	Conn      *mq.Connection

	// AWS
	Clients *sagemaker.Clients
	AWS     sagemaker.Config

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество runs за один poll (default: 100)

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Launcher.
func New(cfg Config) *Launcher {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	l := &Launcher{
		runRepo:        cfg.RunRepo,
		deploymentRepo: cfg.DeploymentRepo,
		scheduleRepo:   cfg.ScheduleRepo,
		publisher:      cfg.Publisher,
		conn:           cfg.Conn,
		awsCfg:         cfg.AWS,
		activeRuns:     make(map[uuid.UUID]struct{}),
		pollInterval:   pollInterval,
		batchSize:      batchSize,
		logger:         logger,
	}

	if cfg.Clients != nil {
		l.sm = cfg.Clients.SageMaker
		l.scheduler = cfg.Clients.Scheduler
		l.sts = cfg.Clients.STS
	}

	return l
}

// Start запускает Launcher.
//
// Запускает consumer для deployments.pending и polling горутину.
func (l *Launcher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	l.cancelFunc = cancel

	l.logger.Info("starting launcher",
		"poll_interval", l.pollInterval,
		"batch_size", l.batchSize,
	)

	if l.conn != nil {
		l.consumer = mq.NewConsumer(l.conn, l.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueDeploymentsPending),
			Handler:  l.handleDeploymentPending,
			Prefetch: 10,
		})

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			if err := l.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				l.logger.Error("deployment consumer error", "error", err)
			}
		}()
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.pollLoop(ctx)
	}()

	l.logger.Info("launcher started")
	return nil
}

// Stop останавливает Launcher.
func (l *Launcher) Stop() {
	l.logger.Info("stopping launcher...")

	if l.cancelFunc != nil {
		l.cancelFunc()
	}
	if l.consumer != nil {
		l.consumer.Stop()
	}

	l.wg.Wait()

	l.logger.Info("launcher stopped")
}

// handleDeploymentPending обрабатывает событие о новом pending run.
func (l *Launcher) handleDeploymentPending(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.DeploymentPendingPayload](&delivery.Message)
	if err != nil {
		l.logger.Error("failed to parse deployment.pending payload", "error", err)
		return err
	}

	l.logger.Debug("received deployment.pending event", "run_id", payload.RunID)

	if err := l.submitRun(ctx, payload.RunID); err != nil {
		if errors.Is(err, ErrRunNotPending) || errors.Is(err, ErrRunAlreadyActive) {
			l.logger.Debug("run not submitted", "run_id", payload.RunID, "reason", err)
			return nil
		}
		l.logger.Error("failed to submit run", "run_id", payload.RunID, "error", err)
		return err
	}

	return nil
}

// pollLoop — цикл polling для fallback.
func (l *Launcher) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем runs, созданные
	// пока launcher был выключен)
	l.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (l *Launcher) poll(ctx context.Context) {
	runs, err := l.runRepo.ListPending(ctx, l.batchSize)
	if err != nil {
		l.logger.Error("failed to list pending runs", "error", err)
		return
	}

	if len(runs) == 0 {
		return
	}

	l.logger.Debug("poll found pending runs", "count", len(runs))

	for i := range runs {
		run := &runs[i]

		if err := l.submitRun(ctx, run.ID); err != nil {
			if errors.Is(err, ErrRunNotPending) || errors.Is(err, ErrRunAlreadyActive) {
				continue
			}
			l.logger.Error("failed to submit run from poll",
				"run_id", run.ID,
				"error", err,
			)
		}
	}
}

// acquireRun помечает run как обрабатываемый.
func (l *Launcher) acquireRun(runID uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.activeRuns[runID]; exists {
		return false
	}
	l.activeRuns[runID] = struct{}{}
	return true
}

// releaseRun снимает пометку обработки.
func (l *Launcher) releaseRun(runID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.activeRuns, runID)
}
