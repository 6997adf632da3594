package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/sagemaker"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// Ошибки poller.
var (
	// ErrNoExecutionARN — run не содержит ARN выполнения SageMaker.
	ErrNoExecutionARN = errors.New("run has no execution ARN")
)

// Метрики Prometheus.
var (
	runsPolled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conveyor_poller_runs_polled_total",
		Help: "Total number of run status checks against SageMaker",
	})

	statusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_poller_status_transitions_total",
		Help: "Total number of observed run status transitions",
	}, []string{"status"})

	pollErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conveyor_poller_errors_total",
		Help: "Total number of failed run status checks",
	})
)

const (
	defaultSweepInterval = 30 * time.Second
	defaultBatchSize     = 100
)

// Poller наблюдает за статусами выполнений SageMaker.
type Poller struct {
	runRepo   *repo.RunRepo
	publisher *mq.Publisher
	conn      *mq.Connection

	sm sagemaker.ExecutionDescriber

	sweepInterval time.Duration
	batchSize     int

	// Runs, находящиеся в обработке (защита от гонки
	// между consumer и sweep)
	mu         sync.Mutex
	activeRuns map[uuid.UUID]struct{}

	consumer *mq.Consumer

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Poller.
type Config struct {
	RunRepo   *repo.RunRepo
	Publisher *mq.Publisher
	Conn      *mq.Connection

	SageMaker sagemaker.ExecutionDescriber

	// SweepInterval — период обхода незавершённых runs.
	SweepInterval time.Duration

	// BatchSize — максимум runs за один обход.
	BatchSize int

	Logger *slog.Logger
}

// New создаёт новый Poller.
func New(cfg Config) *Poller {
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Poller{
		runRepo:       cfg.RunRepo,
		publisher:     cfg.Publisher,
		conn:          cfg.Conn,
		sm:            cfg.SageMaker,
		sweepInterval: cfg.SweepInterval,
		batchSize:     cfg.BatchSize,
		activeRuns:    make(map[uuid.UUID]struct{}),
		logger:        cfg.Logger,
	}
}

// Start запускает Poller.
//
// Запускает consumer для runs.submitted и sweep горутину.
func (p *Poller) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancelFunc = cancel

	p.logger.Info("starting poller",
		"sweep_interval", p.sweepInterval,
		"batch_size", p.batchSize,
	)

	if p.conn != nil {
		p.consumer = mq.NewConsumer(p.conn, p.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueRunsSubmitted),
			Handler:  p.handleRunSubmitted,
			Prefetch: 10,
		})

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			if err := p.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				p.logger.Error("run consumer error", "error", err)
			}
		}()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.sweepLoop(ctx)
	}()

	p.logger.Info("poller started")
	return nil
}

// Stop останавливает Poller.
func (p *Poller) Stop() {
	p.logger.Info("stopping poller...")

	if p.cancelFunc != nil {
		p.cancelFunc()
	}
	if p.consumer != nil {
		p.consumer.Stop()
	}

	p.wg.Wait()

	p.logger.Info("poller stopped")
}

// handleRunSubmitted обрабатывает событие об отправленном run.
func (p *Poller) handleRunSubmitted(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunSubmittedPayload](&delivery.Message)
	if err != nil {
		p.logger.Error("failed to parse run.submitted payload", "error", err)
		return err
	}

	p.logger.Debug("received run.submitted event",
		"run_id", payload.RunID,
		"execution_arn", payload.ExecutionARN,
	)

	if err := p.checkRun(ctx, payload.RunID); err != nil {
		if errors.Is(err, ErrNoExecutionARN) || errors.Is(err, repo.ErrNotFound) {
			p.logger.Warn("skipping run", "run_id", payload.RunID, "reason", err)
			return nil
		}
		return err
	}

	return nil
}

// sweepLoop — цикл обхода незавершённых runs.
func (p *Poller) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()

	// Первый обход сразу при старте (подхватываем runs,
	// запущенные пока poller был выключен)
	p.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

// sweep выполняет один обход незавершённых runs.
func (p *Poller) sweep(ctx context.Context) {
	runs, err := p.runRepo.ListUnfinished(ctx, p.batchSize)
	if err != nil {
		p.logger.Error("failed to list unfinished runs", "error", err)
		return
	}

	if len(runs) == 0 {
		return
	}

	p.logger.Debug("sweep found unfinished runs", "count", len(runs))

	for i := range runs {
		run := &runs[i]

		if err := p.checkRun(ctx, run.ID); err != nil {
			if errors.Is(err, ErrNoExecutionARN) {
				continue
			}
			p.logger.Error("failed to check run status",
				"run_id", run.ID,
				"error", err,
			)
		}

		if ctx.Err() != nil {
			return
		}
	}
}

// checkRun сверяет статус одного run со статусом выполнения в SageMaker
// и фиксирует переход, если он произошёл.
func (p *Poller) checkRun(ctx context.Context, runID uuid.UUID) error {
	if !p.acquireRun(runID) {
		return nil
	}
	defer p.releaseRun(runID)

	run, err := p.runRepo.GetByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	if run.IsFinished() {
		return nil
	}

	executionARN := run.ExecutionARN()
	if executionARN == "" {
		return fmt.Errorf("%w: %s", ErrNoExecutionARN, runID)
	}

	runsPolled.Inc()

	status, err := sagemaker.FetchExecutionStatus(ctx, p.sm, executionARN)
	if err != nil {
		pollErrors.Inc()
		return fmt.Errorf("fetch execution status: %w", err)
	}

	if !applyStatus(run, status) {
		return nil
	}

	if err := p.runRepo.Update(ctx, run); err != nil {
		return fmt.Errorf("update run: %w", err)
	}

	statusTransitions.WithLabelValues(string(status)).Inc()

	logger := telemetry.WithRunID(p.logger, run.ID.String())
	logger.Info("run status changed",
		"status", run.Status,
		"execution_arn", executionARN,
	)

	if p.publisher != nil {
		payload := mq.RunStatusPayload{RunID: run.ID, Status: string(run.Status), Error: run.Error}
		if err := p.publisher.PublishRunStatus(ctx, payload); err != nil {
			logger.Warn("failed to publish run.status", "error", err)
		}
	}

	return nil
}

// applyStatus применяет статус выполнения SageMaker к run.
// Возвращает true, если статус run изменился.
func applyStatus(run *domain.PipelineRun, status domain.ExecutionStatus) bool {
	if run.Status == status {
		return false
	}

	switch status {
	case domain.StatusRunning:
		run.MarkRunning()
	case domain.StatusSucceeded:
		run.MarkSucceeded()
	case domain.StatusFailed:
		run.MarkFailed("pipeline execution failed")
	default:
		return false
	}

	return true
}

// acquireRun помечает run как обрабатываемый.
func (p *Poller) acquireRun(runID uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.activeRuns[runID]; exists {
		return false
	}
	p.activeRuns[runID] = struct{}{}
	return true
}

// releaseRun снимает пометку обработки с run.
func (p *Poller) releaseRun(runID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.activeRuns, runID)
}
