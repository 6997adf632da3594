package domain

import (
	"time"

	"github.com/google/uuid"
)

// Schedule — зарегистрированное расписание выполнения deployment.
//
// Само срабатывание расписания делегировано EventBridge Scheduler:
// Launcher создаёт schedule на стороне AWS и записывает сюда его ARN.
// Запись в store нужна для отображения, отключения и вычисления
// ожидаемого времени следующего запуска.
type Schedule struct {
	// ID — уникальный идентификатор schedule.
	ID uuid.UUID `json:"id"`

	// DeploymentID — deployment, который запускается по расписанию.
	DeploymentID uuid.UUID `json:"deployment_id"`

	// Name — имя расписания (совпадает с именем на стороне EventBridge).
	Name string `json:"name"`

	// Spec — определение расписания (cron / interval / one-time).
	Spec ScheduleSpec `json:"spec"`

	// Enabled — флаг активности расписания.
	Enabled bool `json:"enabled"`

	// ScheduleARN — ARN расписания EventBridge после создания.
	ScheduleARN string `json:"schedule_arn,omitempty"`

	// NextDueAt — ожидаемое время следующего запуска (информационно;
	// фактическое срабатывание выполняет EventBridge).
	NextDueAt *time.Time `json:"next_due_at,omitempty"`

	// LastRunAt — время последнего запуска.
	LastRunAt *time.Time `json:"last_run_at,omitempty"`

	// LastRunID — ID последнего созданного run.
	LastRunID *uuid.UUID `json:"last_run_id,omitempty"`

	// CreatedAt — время создания schedule.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordRun записывает информацию о срабатывании расписания.
func (s *Schedule) RecordRun(runID uuid.UUID, nextDue time.Time) {
	now := time.Now()
	s.LastRunAt = &now
	s.LastRunID = &runID
	s.NextDueAt = &nextDue
	s.UpdatedAt = now
}
