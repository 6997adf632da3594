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

// ModelRepo — репозиторий для работы с моделями и их версиями.
type ModelRepo struct {
	pool *pgxpool.Pool
}

// NewModelRepo создаёт новый ModelRepo.
func NewModelRepo(pool *pgxpool.Pool) *ModelRepo {
	return &ModelRepo{pool: pool}
}

// Create регистрирует модель.
func (r *ModelRepo) Create(ctx context.Context, model *domain.Model) error {
	query := `
		INSERT INTO models (id, name, created_at)
		VALUES ($1, $2, $3)
	`
	_, err := r.pool.Exec(ctx, query, model.ID, model.Name, model.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert model: %w", err)
	}
	return nil
}

// GetByName возвращает модель по имени.
func (r *ModelRepo) GetByName(ctx context.Context, name string) (*domain.Model, error) {
	query := `
		SELECT id, name, created_at
		FROM models
		WHERE name = $1
	`
	var m domain.Model
	err := r.pool.QueryRow(ctx, query, name).Scan(&m.ID, &m.Name, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get model by name: %w", err)
	}
	return &m, nil
}

// CreateVersion создаёт версию модели.
// Номер версии автоматически инкрементируется.
func (r *ModelRepo) CreateVersion(ctx context.Context, modelID uuid.UUID) (*domain.ModelVersion, error) {
	var version domain.ModelVersion
	err := r.pool.QueryRow(ctx, `
		INSERT INTO model_versions (id, model_id, version, created_at)
		VALUES (gen_random_uuid(), $1,
		        (SELECT COALESCE(MAX(version), 0) + 1 FROM model_versions WHERE model_id = $1),
		        NOW())
		RETURNING id, model_id, version, created_at
	`, modelID).Scan(
		&version.ID,
		&version.ModelID,
		&version.Version,
		&version.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert model version: %w", err)
	}
	return &version, nil
}

// GetVersion возвращает версию модели по ID.
func (r *ModelRepo) GetVersion(ctx context.Context, id uuid.UUID) (*domain.ModelVersion, error) {
	query := `
		SELECT id, model_id, version, created_at
		FROM model_versions
		WHERE id = $1
	`
	var v domain.ModelVersion
	err := r.pool.QueryRow(ctx, query, id).Scan(&v.ID, &v.ModelID, &v.Version, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get model version: %w", err)
	}
	return &v, nil
}

// ListVersions возвращает версии модели, новые первыми.
func (r *ModelRepo) ListVersions(ctx context.Context, modelID uuid.UUID) ([]domain.ModelVersion, error) {
	query := `
		SELECT id, model_id, version, created_at
		FROM model_versions
		WHERE model_id = $1
		ORDER BY version DESC
	`
	rows, err := r.pool.Query(ctx, query, modelID)
	if err != nil {
		return nil, fmt.Errorf("list model versions: %w", err)
	}
	defer rows.Close()

	var versions []domain.ModelVersion
	for rows.Next() {
		var v domain.ModelVersion
		if err := rows.Scan(&v.ID, &v.ModelID, &v.Version, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan model version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}
