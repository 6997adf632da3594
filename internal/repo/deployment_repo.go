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

// DeploymentRepo — репозиторий для работы с deployments.
//
// Spec и schedule хранятся как JSONB: deployment неизменяем,
// по отдельным полям spec не фильтруем.
type DeploymentRepo struct {
	pool *pgxpool.Pool
}

// NewDeploymentRepo создаёт новый DeploymentRepo.
func NewDeploymentRepo(pool *pgxpool.Pool) *DeploymentRepo {
	return &DeploymentRepo{pool: pool}
}

// Create создаёт новый deployment.
// Номер версии автоматически инкрементируется в рамках pipeline.
func (r *DeploymentRepo) Create(ctx context.Context, deployment *domain.Deployment) error {
	specJSON, err := json.Marshal(deployment.Spec)
	if err != nil {
		return fmt.Errorf("marshal spec: %w", err)
	}

	var scheduleJSON []byte
	if deployment.Schedule != nil {
		scheduleJSON, err = json.Marshal(deployment.Schedule)
		if err != nil {
			return fmt.Errorf("marshal schedule: %w", err)
		}
	}

	var nextVersion int
	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(version), 0) + 1
		FROM deployments
		WHERE pipeline_id = $1
	`, deployment.PipelineID).Scan(&nextVersion)
	if err != nil {
		return fmt.Errorf("get next version: %w", err)
	}
	deployment.Version = nextVersion

	query := `
		INSERT INTO deployments (id, pipeline_id, version, spec, schedule, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.pool.Exec(ctx, query,
		deployment.ID,
		deployment.PipelineID,
		deployment.Version,
		specJSON,
		scheduleJSON,
		deployment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert deployment: %w", err)
	}
	return nil
}

// GetByID возвращает deployment по ID.
func (r *DeploymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Deployment, error) {
	query := `
		SELECT id, pipeline_id, version, spec, schedule, created_at
		FROM deployments
		WHERE id = $1
	`
	return r.scanDeployment(r.pool.QueryRow(ctx, query, id))
}

// GetLatest возвращает последний deployment pipeline.
func (r *DeploymentRepo) GetLatest(ctx context.Context, pipelineID uuid.UUID) (*domain.Deployment, error) {
	query := `
		SELECT id, pipeline_id, version, spec, schedule, created_at
		FROM deployments
		WHERE pipeline_id = $1
		ORDER BY version DESC
		LIMIT 1
	`
	return r.scanDeployment(r.pool.QueryRow(ctx, query, pipelineID))
}

// ListByPipeline возвращает все deployments pipeline.
func (r *DeploymentRepo) ListByPipeline(ctx context.Context, pipelineID uuid.UUID) ([]domain.Deployment, error) {
	query := `
		SELECT id, pipeline_id, version, spec, schedule, created_at
		FROM deployments
		WHERE pipeline_id = $1
		ORDER BY version DESC
	`
	rows, err := r.pool.Query(ctx, query, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	defer rows.Close()

	var deployments []domain.Deployment
	for rows.Next() {
		d, err := r.scanDeploymentFromRows(rows)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, *d)
	}
	return deployments, rows.Err()
}

// --- Helpers ---

func (r *DeploymentRepo) scanDeployment(row pgx.Row) (*domain.Deployment, error) {
	var d domain.Deployment
	var specJSON, scheduleJSON []byte

	err := row.Scan(
		&d.ID,
		&d.PipelineID,
		&d.Version,
		&specJSON,
		&scheduleJSON,
		&d.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan deployment: %w", err)
	}

	if err := json.Unmarshal(specJSON, &d.Spec); err != nil {
		return nil, fmt.Errorf("unmarshal spec: %w", err)
	}
	if scheduleJSON != nil {
		if err := json.Unmarshal(scheduleJSON, &d.Schedule); err != nil {
			return nil, fmt.Errorf("unmarshal schedule: %w", err)
		}
	}

	return &d, nil
}

func (r *DeploymentRepo) scanDeploymentFromRows(rows pgx.Rows) (*domain.Deployment, error) {
	var d domain.Deployment
	var specJSON, scheduleJSON []byte

	err := rows.Scan(
		&d.ID,
		&d.PipelineID,
		&d.Version,
		&specJSON,
		&scheduleJSON,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan deployment: %w", err)
	}

	if err := json.Unmarshal(specJSON, &d.Spec); err != nil {
		return nil, fmt.Errorf("unmarshal spec: %w", err)
	}
	if scheduleJSON != nil {
		if err := json.Unmarshal(scheduleJSON, &d.Schedule); err != nil {
			return nil, fmt.Errorf("unmarshal schedule: %w", err)
		}
	}

	return &d, nil
}
