package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssm "github.com/aws/aws-sdk-go-v2/service/sagemaker"
	smtypes "github.com/aws/aws-sdk-go-v2/service/sagemaker/types"
	awssched "github.com/aws/aws-sdk-go-v2/service/scheduler"
	schedtypes "github.com/aws/aws-sdk-go-v2/service/scheduler/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/sagemaker"
	"github.com/shaiso/Conveyor/internal/scheduler"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// submitRun отправляет один pending run в SageMaker.
//
// 1. Строит definition-документ из deployment
// 2. Создаёт pipeline (или обновляет существующий)
// 3. Для scheduled deployment — создаёт EventBridge schedule
// 4. Иначе — запускает выполнение и записывает метаданные
func (l *Launcher) submitRun(ctx context.Context, runID uuid.UUID) error {
	if !l.acquireRun(runID) {
		return ErrRunAlreadyActive
	}
	defer l.releaseRun(runID)

	run, err := l.runRepo.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return fmt.Errorf("get run: %w", err)
	}
	if run.Status != domain.StatusPending {
		return ErrRunNotPending
	}

	logger := telemetry.WithRunID(l.logger, run.ID.String())

	deployment, err := l.deploymentRepo.GetByID(ctx, run.DeploymentID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return l.failRun(ctx, run, fmt.Sprintf("%s: %s", ErrDeploymentNotFound, run.DeploymentID))
		}
		return fmt.Errorf("get deployment: %w", err)
	}

	pipelineName := sagemaker.SanitizeRunName(deployment.Spec.PipelineName)
	if run.Name == "" {
		run.Name = fmt.Sprintf("%s-%d", pipelineName, run.CreatedAt.Unix())
	}

	// Environment шагов дополняется ссылками на store: по ним
	// entrypoint в контейнере находит deployment и run.
	env := make(map[string]string, len(deployment.Spec.Environment)+2)
	for k, v := range deployment.Spec.Environment {
		env[k] = v
	}
	env[sagemaker.EnvDeploymentID] = deployment.ID.String()
	if deployment.Schedule == nil {
		// Для scheduled deployments run ID в definition не фиксируется:
		// каждое срабатывание EventBridge — отдельный run.
		env[sagemaker.EnvStoreRunID] = run.ID.String()
	}

	def, err := sagemaker.BuildDefinition(deployment, pipelineName, env, sagemaker.BuilderConfig{
		ExecutionRole:   l.awsCfg.ExecutionRole,
		UseTrainingStep: l.awsCfg.UseTrainingStep,
	})
	if err != nil {
		return l.failRun(ctx, run, fmt.Sprintf("build pipeline definition: %v", err))
	}

	defJSON, err := def.JSON()
	if err != nil {
		return l.failRun(ctx, run, fmt.Sprintf("serialize pipeline definition: %v", err))
	}

	pipelineARN, err := l.ensurePipeline(ctx, pipelineName, defJSON, deployment.Spec.PipelineTags)
	if err != nil {
		submitErrors.Inc()
		return fmt.Errorf("ensure pipeline %s: %w", pipelineName, err)
	}

	logger.Info("pipeline registered",
		"pipeline_name", pipelineName,
		"pipeline_arn", pipelineARN,
		"steps", len(def.Steps),
	)

	if deployment.Schedule != nil {
		// Расписание уже зарегистрировано — повторно создавать его
		// нельзя, CreateSchedule упадёт с конфликтом имени.
		if arn := l.existingScheduleARN(ctx, deployment.ID); arn != "" {
			return l.confirmSchedule(ctx, logger, run, arn)
		}
		return l.attachSchedule(ctx, logger, run, deployment, pipelineName, pipelineARN)
	}

	return l.startExecution(ctx, logger, run, deployment, pipelineName)
}

// ensurePipeline создаёт pipeline или обновляет определение существующего.
func (l *Launcher) ensurePipeline(ctx context.Context, name, definition string, tags map[string]string) (string, error) {
	out, err := l.sm.CreatePipeline(ctx, &awssm.CreatePipelineInput{
		PipelineName:       aws.String(name),
		PipelineDefinition: aws.String(definition),
		RoleArn:            aws.String(l.awsCfg.ExecutionRole),
		Tags:               buildAWSTags(tags),
	})
	if err == nil {
		return aws.ToString(out.PipelineArn), nil
	}

	// Pipeline с таким именем уже существует — обновляем определение.
	var inUse *smtypes.ResourceInUse
	if !errors.As(err, &inUse) {
		return "", fmt.Errorf("create pipeline: %w", err)
	}

	updated, err := l.sm.UpdatePipeline(ctx, &awssm.UpdatePipelineInput{
		PipelineName:       aws.String(name),
		PipelineDefinition: aws.String(definition),
		RoleArn:            aws.String(l.awsCfg.ExecutionRole),
	})
	if err != nil {
		return "", fmt.Errorf("update pipeline: %w", err)
	}
	return aws.ToString(updated.PipelineArn), nil
}

// startExecution запускает выполнение pipeline и записывает метаданные run.
func (l *Launcher) startExecution(ctx context.Context, logger *slog.Logger, run *domain.PipelineRun, deployment *domain.Deployment, pipelineName string) error {
	out, err := l.sm.StartPipelineExecution(ctx, &awssm.StartPipelineExecutionInput{
		PipelineName:                 aws.String(pipelineName),
		PipelineExecutionDisplayName: aws.String(sagemaker.SanitizeRunName(run.Name)),
	})
	if err != nil {
		submitErrors.Inc()
		return l.failRun(ctx, run, fmt.Sprintf("start pipeline execution: %v", err))
	}

	executionARN := aws.ToString(out.PipelineExecutionArn)
	if executionARN == "" {
		submitErrors.Inc()
		return l.failRun(ctx, run, ErrNoExecutionARN.Error())
	}

	run.OrchestratorRunID = executionARN
	run.SetMetadata(domain.MetadataExecutionARN, executionARN)
	run.SetMetadata(domain.MetadataOrchestratorRunID, executionARN)
	l.recordConsoleURLs(ctx, logger, run, deployment, executionARN)

	run.MarkRunning()
	if err := l.runRepo.Update(ctx, run); err != nil {
		return fmt.Errorf("update run to running: %w", err)
	}

	runsSubmitted.Inc()
	logger.Info("pipeline execution started",
		"pipeline_name", pipelineName,
		"execution_arn", executionARN,
	)

	if l.publisher != nil {
		if err := l.publisher.PublishRunSubmitted(ctx, run.ID, executionARN); err != nil {
			// Не фатальная ошибка — poller подхватит run через ListUnfinished.
			logger.Warn("failed to publish run.submitted", "error", err)
		}
	}

	if deployment.Spec.Synchronous {
		return l.waitForRun(ctx, logger, run, executionARN)
	}
	return nil
}

// waitForRun синхронно ждёт завершения выполнения и финализирует run.
func (l *Launcher) waitForRun(ctx context.Context, logger *slog.Logger, run *domain.PipelineRun, executionARN string) error {
	logger.Info("waiting for pipeline execution to finish", "execution_arn", executionARN)

	status, err := sagemaker.WaitForExecution(ctx, l.sm, executionARN, sagemaker.PollingDelay, sagemaker.MaxPollingAttempts)
	if err != nil {
		return l.failRun(ctx, run, fmt.Sprintf("wait for execution: %v", err))
	}

	switch status {
	case domain.StatusSucceeded:
		run.MarkSucceeded()
	default:
		run.MarkFailed(fmt.Sprintf("pipeline execution finished with status %s", status))
	}

	if err := l.runRepo.Update(ctx, run); err != nil {
		return fmt.Errorf("finalize run: %w", err)
	}

	logger.Info("pipeline execution finished", "status", run.Status, "duration", run.Duration())

	if l.publisher != nil {
		payload := mq.RunStatusPayload{RunID: run.ID, Status: string(run.Status), Error: run.Error}
		if err := l.publisher.PublishRunStatus(ctx, payload); err != nil {
			logger.Warn("failed to publish run.status", "error", err)
		}
	}
	return nil
}

// attachSchedule создаёт EventBridge schedule для deployment.
func (l *Launcher) attachSchedule(ctx context.Context, logger *slog.Logger, run *domain.PipelineRun, deployment *domain.Deployment, pipelineName, pipelineARN string) error {
	if deployment.Spec.Synchronous {
		logger.Warn("synchronous mode is ignored for scheduled deployments")
	}

	expr, err := sagemaker.BuildScheduleExpression(deployment.Schedule, time.Now())
	if err != nil {
		return l.failRun(ctx, run, fmt.Sprintf("build schedule expression: %v", err))
	}

	roleARN, err := l.resolveSchedulerRole(ctx)
	if err != nil {
		return l.failRun(ctx, run, fmt.Sprintf("resolve scheduler role: %v", err))
	}

	in := &awssched.CreateScheduleInput{
		Name:               aws.String(pipelineName),
		ScheduleExpression: aws.String(expr.Expression),
		State:              schedtypes.ScheduleStateEnabled,
		FlexibleTimeWindow: &schedtypes.FlexibleTimeWindow{
			Mode: schedtypes.FlexibleTimeWindowModeOff,
		},
		Target: &schedtypes.Target{
			Arn:     aws.String(pipelineARN),
			RoleArn: aws.String(roleARN),
			SageMakerPipelineParameters: &schedtypes.SageMakerPipelineParameters{
				PipelineParameterList: []schedtypes.SageMakerPipelineParameter{},
			},
		},
	}
	if expr.Timezone != "" {
		in.ScheduleExpressionTimezone = aws.String(expr.Timezone)
	}
	if expr.StartDate != nil {
		in.StartDate = expr.StartDate
	}

	out, err := l.scheduler.CreateSchedule(ctx, in)
	if err != nil {
		// Конфликт имени: расписание создано раньше (мы же или другой
		// экземпляр launcher'а). Проваливать run нельзя — schedule
		// работает на стороне AWS.
		if isScheduleConflict(err) {
			logger.Info("schedule already exists", "schedule_name", pipelineName)
			return l.confirmSchedule(ctx, logger, run, l.existingScheduleARN(ctx, deployment.ID))
		}
		submitErrors.Inc()
		return l.failRun(ctx, run, fmt.Sprintf("create EventBridge schedule: %v", err))
	}

	scheduleARN := aws.ToString(out.ScheduleArn)
	run.SetMetadata(domain.MetadataScheduleARN, scheduleARN)
	if triggerURL, err := sagemaker.TriggerURL(scheduleARN); err == nil {
		run.SetMetadata(domain.MetadataTriggerURL, triggerURL)
	}

	// Run для scheduled deployment фиксирует регистрацию расписания;
	// фактические выполнения запускает EventBridge на стороне AWS.
	run.MarkSucceeded()
	if err := l.runRepo.Update(ctx, run); err != nil {
		return fmt.Errorf("finalize scheduled run: %w", err)
	}

	schedulesAttached.Inc()
	if expr.NextExecution != nil {
		logger.Info("schedule attached",
			"schedule_arn", scheduleARN,
			"expression", expr.Expression,
			"first_execution", expr.NextExecution,
		)
	} else {
		logger.Info("schedule attached",
			"schedule_arn", scheduleARN,
			"expression", expr.Expression,
		)
	}

	l.recordScheduleRow(ctx, logger, deployment, pipelineName, scheduleARN)
	return nil
}

// isScheduleConflict сообщает, что CreateSchedule упал из-за уже
// существующего расписания с тем же именем.
func isScheduleConflict(err error) bool {
	var conflict *schedtypes.ConflictException
	return errors.As(err, &conflict)
}

// existingScheduleARN возвращает ARN уже зарегистрированного расписания
// deployment, если запись о нём есть в store.
func (l *Launcher) existingScheduleARN(ctx context.Context, deploymentID uuid.UUID) string {
	if l.scheduleRepo == nil {
		return ""
	}
	schedules, err := l.scheduleRepo.List(ctx, repo.ScheduleFilter{DeploymentID: &deploymentID, Limit: 1})
	if err != nil || len(schedules) == 0 {
		return ""
	}
	return schedules[0].ScheduleARN
}

// confirmSchedule завершает run, когда расписание deployment уже
// зарегистрировано и повторная регистрация не требуется.
func (l *Launcher) confirmSchedule(ctx context.Context, logger *slog.Logger, run *domain.PipelineRun, scheduleARN string) error {
	if scheduleARN != "" {
		run.SetMetadata(domain.MetadataScheduleARN, scheduleARN)
		if triggerURL, err := sagemaker.TriggerURL(scheduleARN); err == nil {
			run.SetMetadata(domain.MetadataTriggerURL, triggerURL)
		}
	}

	run.MarkSucceeded()
	if err := l.runRepo.Update(ctx, run); err != nil {
		return fmt.Errorf("finalize scheduled run: %w", err)
	}

	logger.Info("schedule already registered", "schedule_arn", scheduleARN)
	return nil
}

// recordScheduleRow сохраняет schedule в store (информационно).
func (l *Launcher) recordScheduleRow(ctx context.Context, logger *slog.Logger, deployment *domain.Deployment, name, scheduleARN string) {
	if l.scheduleRepo == nil {
		return
	}

	now := time.Now()
	sched := &domain.Schedule{
		ID:           uuid.New(),
		DeploymentID: deployment.ID,
		Name:         name,
		Spec:         *deployment.Schedule,
		Enabled:      true,
		ScheduleARN:  scheduleARN,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if next, err := scheduler.NextExecution(deployment.Schedule, now); err == nil {
		sched.NextDueAt = &next
	}

	if err := l.scheduleRepo.Create(ctx, sched); err != nil {
		// Schedule уже работает на стороне AWS; запись в store информационная.
		logger.Warn("failed to record schedule", "schedule_arn", scheduleARN, "error", err)
	}
}

// resolveSchedulerRole возвращает IAM роль для EventBridge Scheduler:
// явную из конфигурации либо выведенную из caller identity.
func (l *Launcher) resolveSchedulerRole(ctx context.Context) (string, error) {
	if l.awsCfg.SchedulerRole != "" {
		return l.awsCfg.SchedulerRole, nil
	}

	identity, err := l.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("get caller identity: %w", err)
	}

	return sagemaker.RoleARNFromCallerIdentity(aws.ToString(identity.Arn))
}

// recordConsoleURLs записывает ссылки на Studio и CloudWatch в метаданные run.
// Ошибки не фатальны: ссылки информационные.
func (l *Launcher) recordConsoleURLs(ctx context.Context, logger *slog.Logger, run *domain.PipelineRun, deployment *domain.Deployment, executionARN string) {
	if url, err := sagemaker.StudioURL(ctx, l.sm, executionARN); err == nil {
		run.SetMetadata(domain.MetadataOrchestratorURL, url)
	} else {
		logger.Warn("failed to build studio URL", "error", err)
	}

	useTraining := true
	if l.awsCfg.UseTrainingStep != nil {
		useTraining = *l.awsCfg.UseTrainingStep
	}
	if s := deployment.Spec.Settings.UseTrainingStep; s != nil {
		useTraining = *s
	}

	if url, err := sagemaker.LogsURL(executionARN, useTraining); err == nil {
		run.SetMetadata(domain.MetadataOrchestratorLogsURL, url)
	} else {
		logger.Warn("failed to build logs URL", "error", err)
	}
}

// failRun переводит run в статус FAILED.
func (l *Launcher) failRun(ctx context.Context, run *domain.PipelineRun, errMsg string) error {
	run.MarkFailed(errMsg)

	if err := l.runRepo.Update(ctx, run); err != nil {
		return fmt.Errorf("update run to failed: %w", err)
	}

	l.logger.Warn("run failed before execution",
		"run_id", run.ID,
		"error", errMsg,
	)

	if l.publisher != nil {
		payload := mq.RunStatusPayload{RunID: run.ID, Status: string(run.Status), Error: errMsg}
		if err := l.publisher.PublishRunStatus(ctx, payload); err != nil {
			l.logger.Warn("failed to publish run.status", "run_id", run.ID, "error", err)
		}
	}

	return fmt.Errorf("run failed: %s", errMsg)
}

// buildAWSTags переводит map тегов в формат SageMaker.
func buildAWSTags(in map[string]string) []smtypes.Tag {
	if len(in) == 0 {
		return nil
	}
	tags := make([]smtypes.Tag, 0, len(in))
	for k, v := range in {
		tags = append(tags, smtypes.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	return tags
}
