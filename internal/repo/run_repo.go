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

// RunRepo — репозиторий для работы с pipeline runs.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// Create создаёт новый run.
func (r *RunRepo) Create(ctx context.Context, run *domain.PipelineRun) error {
	metadataJSON, err := json.Marshal(run.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO pipeline_runs (id, deployment_id, name, status, orchestrator_run_id,
		                           metadata, started_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.pool.Exec(ctx, query,
		run.ID,
		run.DeploymentID,
		run.Name,
		run.Status,
		nullString(run.OrchestratorRunID),
		metadataJSON,
		run.StartedAt,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetByID возвращает run по ID.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error) {
	query := `
		SELECT id, deployment_id, name, status, orchestrator_run_id, metadata,
		       started_at, finished_at, error, created_at
		FROM pipeline_runs
		WHERE id = $1
	`
	return r.scanRun(r.pool.QueryRow(ctx, query, id))
}

// GetByName возвращает run по имени.
func (r *RunRepo) GetByName(ctx context.Context, name string) (*domain.PipelineRun, error) {
	query := `
		SELECT id, deployment_id, name, status, orchestrator_run_id, metadata,
		       started_at, finished_at, error, created_at
		FROM pipeline_runs
		WHERE name = $1
	`
	return r.scanRun(r.pool.QueryRow(ctx, query, name))
}

// List возвращает список runs с фильтрацией.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]domain.PipelineRun, error) {
	query := `
		SELECT id, deployment_id, name, status, orchestrator_run_id, metadata,
		       started_at, finished_at, error, created_at
		FROM pipeline_runs
		WHERE ($1::uuid IS NULL OR deployment_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.DeploymentID),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.PipelineRun
	for rows.Next() {
		run, err := r.scanRunFromRows(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Update обновляет run.
func (r *RunRepo) Update(ctx context.Context, run *domain.PipelineRun) error {
	metadataJSON, err := json.Marshal(run.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		UPDATE pipeline_runs
		SET name = $2, status = $3, orchestrator_run_id = $4, metadata = $5,
		    started_at = $6, finished_at = $7, error = $8
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Name,
		run.Status,
		nullString(run.OrchestratorRunID),
		metadataJSON,
		run.StartedAt,
		run.FinishedAt,
		nullString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPending возвращает runs в статусе PENDING (очередь launcher'а).
func (r *RunRepo) ListPending(ctx context.Context, limit int) ([]domain.PipelineRun, error) {
	query := `
		SELECT id, deployment_id, name, status, orchestrator_run_id, metadata,
		       started_at, finished_at, error, created_at
		FROM pipeline_runs
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.PipelineRun
	for rows.Next() {
		run, err := r.scanRunFromRows(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// ListUnfinished возвращает незавершённые runs, уже отправленные
// в оркестратор (очередь poller'а).
func (r *RunRepo) ListUnfinished(ctx context.Context, limit int) ([]domain.PipelineRun, error) {
	query := `
		SELECT id, deployment_id, name, status, orchestrator_run_id, metadata,
		       started_at, finished_at, error, created_at
		FROM pipeline_runs
		WHERE status IN ('PENDING', 'RUNNING')
		  AND orchestrator_run_id IS NOT NULL
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list unfinished runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.PipelineRun
	for rows.Next() {
		run, err := r.scanRunFromRows(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// --- Helpers ---

// RunFilter — параметры фильтрации runs.
type RunFilter struct {
	DeploymentID *uuid.UUID
	Status       domain.ExecutionStatus
	Limit        int
	Offset       int
}

// scanRun сканирует одну строку в PipelineRun.
func (r *RunRepo) scanRun(row pgx.Row) (*domain.PipelineRun, error) {
	var run domain.PipelineRun
	var metadataJSON []byte
	var orchestratorRunID *string
	var runError *string

	err := row.Scan(
		&run.ID,
		&run.DeploymentID,
		&run.Name,
		&run.Status,
		&orchestratorRunID,
		&metadataJSON,
		&run.StartedAt,
		&run.FinishedAt,
		&runError,
		&run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &run.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	if orchestratorRunID != nil {
		run.OrchestratorRunID = *orchestratorRunID
	}
	if runError != nil {
		run.Error = *runError
	}

	return &run, nil
}

// scanRunFromRows сканирует строку из rows в PipelineRun.
func (r *RunRepo) scanRunFromRows(rows pgx.Rows) (*domain.PipelineRun, error) {
	var run domain.PipelineRun
	var metadataJSON []byte
	var orchestratorRunID *string
	var runError *string

	err := rows.Scan(
		&run.ID,
		&run.DeploymentID,
		&run.Name,
		&run.Status,
		&orchestratorRunID,
		&metadataJSON,
		&run.StartedAt,
		&run.FinishedAt,
		&runError,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &run.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	if orchestratorRunID != nil {
		run.OrchestratorRunID = *orchestratorRunID
	}
	if runError != nil {
		run.Error = *runError
	}

	return &run, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}
