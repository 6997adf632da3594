// conveyor-entrypoint оборачивает команду шага внутри SageMaker контейнера:
// восстанавливает разбитые переменные окружения, регистрирует step run
// в store и сообщает итоговый статус после завершения команды.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/Conveyor/internal/cli"
	"github.com/shaiso/Conveyor/internal/envutil"
	"github.com/shaiso/Conveyor/internal/sagemaker"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// version заполняется при сборке через ldflags.
var version = "dev"

func main() {
	logger := telemetry.SetupLogger()

	root := &cobra.Command{
		Use:           "conveyor-entrypoint STEP_NAME -- COMMAND [ARGS...]",
		Short:         "Обёртка шага пайплайна внутри SageMaker контейнера",
		Version:       version,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), logger, args[0], args[1:])
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		// Код выхода команды шага пробрасывается наружу как есть,
		// чтобы SageMaker пометил шаг упавшим.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		logger.Error("entrypoint failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, stepName string, command []string) error {
	if err := restoreEnvironment(); err != nil {
		return fmt.Errorf("restore environment: %w", err)
	}

	apiURL := os.Getenv("CONVEYOR_API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}
	client := cli.NewClient(apiURL)

	// Регистрация шага в store не должна блокировать выполнение:
	// при недоступном API шаг всё равно выполняется.
	step := registerStep(client, logger, stepName)

	logger.Info("running step command", "step", stepName, "command", strings.Join(command, " "))
	cmdErr := runCommand(ctx, command)

	if step != nil {
		status := "SUCCEEDED"
		if cmdErr != nil {
			status = "FAILED"
		}
		if _, err := client.UpdateStepRun(step.ID, cli.UpdateStepRunRequest{Status: &status}); err != nil {
			logger.Warn("failed to report step status", "step_run_id", step.ID, "status", status, "error", err)
		}
	}

	return cmdErr
}

// registerStep находит run текущего выполнения и создаёт под ним step run.
func registerStep(client *cli.Client, logger *slog.Logger, stepName string) *cli.StepRunResponse {
	runID, err := resolveRun(client)
	if err != nil {
		logger.Warn("failed to resolve run, step will not be tracked", "error", err)
		return nil
	}

	step, err := client.CreateStepRun(cli.CreateStepRunRequest{
		PipelineRunID: runID,
		DeploymentID:  os.Getenv(sagemaker.EnvDeploymentID),
		Name:          stepName,
		Status:        "RUNNING",
	})
	if err != nil {
		logger.Warn("failed to register step run", "run_id", runID, "step", stepName, "error", err)
		return nil
	}

	logger.Info("step run registered", "run_id", runID, "step_run_id", step.ID, "step", stepName)
	return step
}

// resolveRun возвращает ID run из store для текущего выполнения.
//
// Для обычных deployments ID зашит в определение пайплайна. Для scheduled
// deployments run создаёт первый стартовавший шаг: имя выводится
// детерминированно из execution ARN, поэтому параллельные шаги сходятся
// на одном run.
func resolveRun(client *cli.Client) (string, error) {
	if id := os.Getenv(sagemaker.EnvStoreRunID); id != "" {
		return id, nil
	}

	executionARN := os.Getenv(sagemaker.EnvRunID)
	arn := sagemaker.DissectExecutionARN(executionARN)
	if arn.ExecutionID == "" {
		return "", fmt.Errorf("neither %s nor a pipeline execution ARN found in environment", sagemaker.EnvStoreRunID)
	}
	name := "exec-" + arn.ExecutionID

	if existing, err := client.GetRunByName(name); err == nil {
		return existing.ID, nil
	}

	deploymentID := os.Getenv(sagemaker.EnvDeploymentID)
	if deploymentID == "" {
		return "", fmt.Errorf("environment variable %s is not set", sagemaker.EnvDeploymentID)
	}

	// Run регистрируется с execution ARN: API создаёт его сразу
	// в RUNNING, и статус дальше ведёт poller, а не launcher.
	created, err := client.CreateRun(deploymentID, cli.CreateRunRequest{
		Name:              name,
		OrchestratorRunID: executionARN,
	})
	if err != nil {
		// Параллельный шаг мог создать run первым.
		if existing, gerr := client.GetRunByName(name); gerr == nil {
			return existing.ID, nil
		}
		return "", fmt.Errorf("create run %s: %w", name, err)
	}
	return created.ID, nil
}

// restoreEnvironment склеивает переменные, разбитые на части из-за
// лимита SageMaker на длину значения, и выставляет их в окружение процесса.
func restoreEnvironment() error {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		env[key] = value
	}

	if err := envutil.Reconstruct(env); err != nil {
		return err
	}

	for key, value := range env {
		if os.Getenv(key) != value {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("set %s: %w", key, err)
			}
		}
	}
	return nil
}

func runCommand(ctx context.Context, command []string) error {
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	return cmd.Run()
}
