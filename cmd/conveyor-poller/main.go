// Conveyor Poller — отслеживает статусы выполнений SageMaker.
//
// Poller:
//   - Получает события run.submitted из RabbitMQ
//   - Периодически обходит незавершённые runs в store
//   - Сверяет статусы с DescribePipelineExecution
//   - Фиксирует переходы и публикует run.status
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/poller"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/sagemaker"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting conveyor-poller")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// AWS клиенты
	awsCfg := sagemaker.ConfigFromEnv()
	clients, err := sagemaker.NewClients(ctx, awsCfg)
	if err != nil {
		logger.Error("failed to create AWS clients", "error", err)
		os.Exit(1)
	}
	logger.Info("AWS clients ready", "region", awsCfg.Region)

	// RabbitMQ
	var publisher *mq.Publisher
	var mqConn *mq.Connection
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err = mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in sweep-only mode", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Создаём poller
	p := poller.New(poller.Config{
		RunRepo:   repo.NewRunRepo(pool),
		Publisher: publisher,
		Conn:      mqConn,
		SageMaker: clients.SageMaker,
		Logger:    logger,
	})

	// Запускаем poller
	if err := p.Start(ctx); err != nil {
		logger.Error("failed to start poller", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8084"
	if v := os.Getenv("POLLER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем poller
	p.Stop()
	logger.Info("conveyor-poller stopped")
}
