package sagemaker

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sagemaker/types"

	"github.com/shaiso/Conveyor/internal/domain"
)

// MapExecutionStatus переводит статус SageMaker pipeline execution
// в статус Conveyor.
//
// Stopping считается RUNNING: выполнение ещё не завершено.
// Stopped считается FAILED: результат выполнения не получен.
func MapExecutionStatus(status types.PipelineExecutionStatus) (domain.ExecutionStatus, error) {
	switch status {
	case types.PipelineExecutionStatusExecuting, types.PipelineExecutionStatusStopping:
		return domain.StatusRunning, nil
	case types.PipelineExecutionStatusStopped, types.PipelineExecutionStatusFailed:
		return domain.StatusFailed, nil
	case types.PipelineExecutionStatusSucceeded:
		return domain.StatusSucceeded, nil
	default:
		return "", fmt.Errorf("unknown pipeline execution status: %q", status)
	}
}
