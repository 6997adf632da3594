package domain

import "fmt"

// ExecutionStatus — статус выполнения run или step run.
//
// Жизненный цикл run:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//	                  ↘ STOPPED
//
// Step run дополнительно может быть CACHED — шаг не выполнялся,
// результаты взяты из более раннего step run (original_step_run_id).
type ExecutionStatus string

const (
	// StatusPending — запись создана, выполнение ещё не началось.
	StatusPending ExecutionStatus = "PENDING"

	// StatusRunning — выполняется на стороне оркестратора.
	StatusRunning ExecutionStatus = "RUNNING"

	// StatusSucceeded — успешно завершено.
	StatusSucceeded ExecutionStatus = "SUCCEEDED"

	// StatusFailed — завершено с ошибкой.
	StatusFailed ExecutionStatus = "FAILED"

	// StatusStopped — остановлено извне (оператором или оркестратором).
	StatusStopped ExecutionStatus = "STOPPED"

	// StatusCached — шаг не выполнялся, результаты переиспользованы.
	StatusCached ExecutionStatus = "CACHED"
)

// IsTerminal возвращает true, если статус финальный.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusStopped, StatusCached:
		return true
	default:
		return false
	}
}

// ParseExecutionStatus проверяет строку со статусом из внешнего запроса.
func ParseExecutionStatus(s string) (ExecutionStatus, error) {
	switch status := ExecutionStatus(s); status {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed, StatusStopped, StatusCached:
		return status, nil
	default:
		return "", fmt.Errorf("unknown execution status %q", s)
	}
}

// InputType — тип входного артефакта step run.
type InputType string

const (
	// InputTypeRegular — вход, объявленный в сигнатуре шага.
	InputTypeRegular InputType = "regular"

	// InputTypeManual — артефакт, загруженный вручную во время выполнения шага.
	InputTypeManual InputType = "manual"

	// InputTypeLazy — вход, разрешаемый лениво при обращении.
	InputTypeLazy InputType = "lazy"
)

// SaveType — способ сохранения артефакта.
type SaveType string

const (
	// SaveTypeStepOutput — артефакт записан как выход шага.
	SaveTypeStepOutput SaveType = "step_output"

	// SaveTypeManual — артефакт сохранён вручную внутри шага.
	SaveTypeManual SaveType = "manual"

	// SaveTypeExternal — артефакт зарегистрирован извне пайплайна.
	SaveTypeExternal SaveType = "external"
)
