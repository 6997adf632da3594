package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Conveyor/internal/domain"
)

// PipelineRepo — репозиторий для работы с pipelines.
type PipelineRepo struct {
	pool *pgxpool.Pool
}

// NewPipelineRepo создаёт новый PipelineRepo.
func NewPipelineRepo(pool *pgxpool.Pool) *PipelineRepo {
	return &PipelineRepo{pool: pool}
}

// Create создаёт новый pipeline.
func (r *PipelineRepo) Create(ctx context.Context, pipeline *domain.Pipeline) error {
	query := `
		INSERT INTO pipelines (id, name, is_active, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.pool.Exec(ctx, query,
		pipeline.ID,
		pipeline.Name,
		pipeline.IsActive,
		pipeline.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pipeline: %w", err)
	}
	return nil
}

// GetByID возвращает pipeline по ID.
func (r *PipelineRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Pipeline, error) {
	query := `
		SELECT id, name, is_active, created_at
		FROM pipelines
		WHERE id = $1
	`
	var p domain.Pipeline
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.IsActive,
		&p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pipeline by id: %w", err)
	}
	return &p, nil
}

// GetByName возвращает pipeline по имени.
func (r *PipelineRepo) GetByName(ctx context.Context, name string) (*domain.Pipeline, error) {
	query := `
		SELECT id, name, is_active, created_at
		FROM pipelines
		WHERE name = $1
	`
	var p domain.Pipeline
	err := r.pool.QueryRow(ctx, query, name).Scan(
		&p.ID,
		&p.Name,
		&p.IsActive,
		&p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pipeline by name: %w", err)
	}
	return &p, nil
}

// List возвращает список всех pipelines.
func (r *PipelineRepo) List(ctx context.Context) ([]domain.Pipeline, error) {
	query := `
		SELECT id, name, is_active, created_at
		FROM pipelines
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	defer rows.Close()

	var pipelines []domain.Pipeline
	for rows.Next() {
		var p domain.Pipeline
		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.IsActive,
			&p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan pipeline: %w", err)
		}
		pipelines = append(pipelines, p)
	}
	return pipelines, rows.Err()
}

// Update обновляет pipeline.
func (r *PipelineRepo) Update(ctx context.Context, pipeline *domain.Pipeline) error {
	query := `
		UPDATE pipelines
		SET name = $2, is_active = $3
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, pipeline.ID, pipeline.Name, pipeline.IsActive)
	if err != nil {
		return fmt.Errorf("update pipeline: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет pipeline (каскадно удалит deployments, runs, schedules).
func (r *PipelineRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM pipelines WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete pipeline: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
