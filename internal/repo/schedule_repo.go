package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Conveyor/internal/domain"
)

// ScheduleRepo — репозиторий для работы с schedules.
type ScheduleRepo struct {
	pool *pgxpool.Pool
}

// NewScheduleRepo создаёт новый ScheduleRepo.
func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

// Create создаёт новый schedule.
func (r *ScheduleRepo) Create(ctx context.Context, schedule *domain.Schedule) error {
	specJSON, err := json.Marshal(schedule.Spec)
	if err != nil {
		return fmt.Errorf("marshal spec: %w", err)
	}

	query := `
		INSERT INTO schedules (id, deployment_id, name, spec, enabled, schedule_arn,
		                       next_due_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		schedule.ID,
		schedule.DeploymentID,
		schedule.Name,
		specJSON,
		schedule.Enabled,
		nullString(schedule.ScheduleARN),
		schedule.NextDueAt,
		schedule.CreatedAt,
		schedule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

// GetByID возвращает schedule по ID.
func (r *ScheduleRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error) {
	query := `
		SELECT id, deployment_id, name, spec, enabled, schedule_arn,
		       next_due_at, last_run_at, last_run_id, created_at, updated_at
		FROM schedules
		WHERE id = $1
	`
	return r.scanSchedule(r.pool.QueryRow(ctx, query, id))
}

// List возвращает список schedules с фильтрацией.
func (r *ScheduleRepo) List(ctx context.Context, filter ScheduleFilter) ([]domain.Schedule, error) {
	query := `
		SELECT id, deployment_id, name, spec, enabled, schedule_arn,
		       next_due_at, last_run_at, last_run_id, created_at, updated_at
		FROM schedules
		WHERE ($1::uuid IS NULL OR deployment_id = $1)
		  AND ($2::boolean IS NULL OR enabled = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.DeploymentID),
		filter.Enabled,
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []domain.Schedule
	for rows.Next() {
		schedule, err := r.scanScheduleFromRows(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *schedule)
	}
	return schedules, rows.Err()
}

// Update обновляет schedule.
func (r *ScheduleRepo) Update(ctx context.Context, schedule *domain.Schedule) error {
	specJSON, err := json.Marshal(schedule.Spec)
	if err != nil {
		return fmt.Errorf("marshal spec: %w", err)
	}

	query := `
		UPDATE schedules
		SET name = $2, spec = $3, enabled = $4, schedule_arn = $5,
		    next_due_at = $6, last_run_at = $7, last_run_id = $8, updated_at = $9
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		schedule.ID,
		schedule.Name,
		specJSON,
		schedule.Enabled,
		nullString(schedule.ScheduleARN),
		schedule.NextDueAt,
		schedule.LastRunAt,
		schedule.LastRunID,
		schedule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет schedule.
func (r *ScheduleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEnabled включает/выключает schedule.
func (r *ScheduleRepo) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE schedules SET enabled = $2, updated_at = NOW() WHERE id = $1
	`, id, enabled)
	if err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

// ScheduleFilter — параметры фильтрации schedules.
type ScheduleFilter struct {
	DeploymentID *uuid.UUID
	Enabled      *bool
	Limit        int
	Offset       int
}

func (r *ScheduleRepo) scanSchedule(row pgx.Row) (*domain.Schedule, error) {
	var s domain.Schedule
	var specJSON []byte
	var scheduleARN *string

	err := row.Scan(
		&s.ID,
		&s.DeploymentID,
		&s.Name,
		&specJSON,
		&s.Enabled,
		&scheduleARN,
		&s.NextDueAt,
		&s.LastRunAt,
		&s.LastRunID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan schedule: %w", err)
	}

	if err := json.Unmarshal(specJSON, &s.Spec); err != nil {
		return nil, fmt.Errorf("unmarshal spec: %w", err)
	}
	if scheduleARN != nil {
		s.ScheduleARN = *scheduleARN
	}

	return &s, nil
}

func (r *ScheduleRepo) scanScheduleFromRows(rows pgx.Rows) (*domain.Schedule, error) {
	var s domain.Schedule
	var specJSON []byte
	var scheduleARN *string

	err := rows.Scan(
		&s.ID,
		&s.DeploymentID,
		&s.Name,
		&specJSON,
		&s.Enabled,
		&scheduleARN,
		&s.NextDueAt,
		&s.LastRunAt,
		&s.LastRunID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan schedule: %w", err)
	}

	if err := json.Unmarshal(specJSON, &s.Spec); err != nil {
		return nil, fmt.Errorf("unmarshal spec: %w", err)
	}
	if scheduleARN != nil {
		s.ScheduleARN = *scheduleARN
	}

	return &s, nil
}
