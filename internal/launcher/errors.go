package launcher

import "errors"

// Ошибки launcher'а.
var (
	// ErrRunNotFound — run не найден в БД.
	ErrRunNotFound = errors.New("run not found")

	// ErrDeploymentNotFound — deployment не найден в БД.
	ErrDeploymentNotFound = errors.New("deployment not found")

	// ErrRunNotPending — run не в статусе PENDING.
	ErrRunNotPending = errors.New("run is not in PENDING status")

	// ErrRunAlreadyActive — run уже обрабатывается.
	ErrRunAlreadyActive = errors.New("run already being processed")

	// ErrNoExecutionARN — SageMaker не вернул ARN выполнения.
	ErrNoExecutionARN = errors.New("no pipeline execution ARN returned")
)
