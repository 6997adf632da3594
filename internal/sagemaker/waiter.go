package sagemaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Параметры ожидания завершения pipeline execution.
const (
	// PollingDelay — пауза между опросами статуса.
	PollingDelay = 30 * time.Second

	// MaxPollingAttempts — максимальное число опросов.
	MaxPollingAttempts = 100
)

// ErrWaitTimeout — выполнение не завершилось за отведённые попытки.
var ErrWaitTimeout = errors.New("timed out waiting for pipeline execution to finish")

// ExecutionDescriber — часть клиента SageMaker для опроса статуса.
type ExecutionDescriber interface {
	DescribePipelineExecution(ctx context.Context, in *sagemaker.DescribePipelineExecutionInput, optFns ...func(*sagemaker.Options)) (*sagemaker.DescribePipelineExecutionOutput, error)
}

// FetchExecutionStatus опрашивает статус выполнения один раз
// и переводит его в статус Conveyor.
func FetchExecutionStatus(ctx context.Context, client ExecutionDescriber, executionARN string) (domain.ExecutionStatus, error) {
	out, err := client.DescribePipelineExecution(ctx, &sagemaker.DescribePipelineExecutionInput{
		PipelineExecutionArn: aws.String(executionARN),
	})
	if err != nil {
		return "", fmt.Errorf("describe pipeline execution: %w", err)
	}

	return MapExecutionStatus(out.PipelineExecutionStatus)
}

// WaitForExecution ждёт завершения выполнения, опрашивая статус
// с паузой delay не более maxAttempts раз.
//
// Возвращает финальный статус, ErrWaitTimeout при исчерпании попыток
// или ошибку контекста при отмене.
func WaitForExecution(ctx context.Context, client ExecutionDescriber, executionARN string, delay time.Duration, maxAttempts int) (domain.ExecutionStatus, error) {
	if delay <= 0 {
		delay = PollingDelay
	}
	if maxAttempts <= 0 {
		maxAttempts = MaxPollingAttempts
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		status, err := FetchExecutionStatus(ctx, client, executionARN)
		if err != nil {
			return "", err
		}
		if status.IsTerminal() {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}

	return "", ErrWaitTimeout
}
