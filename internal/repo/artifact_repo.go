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

// ArtifactRepo — репозиторий для работы с версиями артефактов.
type ArtifactRepo struct {
	pool *pgxpool.Pool
}

// NewArtifactRepo создаёт новый ArtifactRepo.
func NewArtifactRepo(pool *pgxpool.Pool) *ArtifactRepo {
	return &ArtifactRepo{pool: pool}
}

// Create создаёт версию артефакта.
// Номер версии автоматически инкрементируется в рамках имени.
func (r *ArtifactRepo) Create(ctx context.Context, version *domain.ArtifactVersion) error {
	var nextVersion int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(version), 0) + 1
		FROM artifact_versions
		WHERE name = $1
	`, version.Name).Scan(&nextVersion)
	if err != nil {
		return fmt.Errorf("get next version: %w", err)
	}
	version.Version = nextVersion

	query := `
		INSERT INTO artifact_versions (id, name, version, uri, save_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.pool.Exec(ctx, query,
		version.ID,
		version.Name,
		version.Version,
		version.URI,
		version.SaveType,
		version.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert artifact version: %w", err)
	}
	return nil
}

// GetByID возвращает версию артефакта по ID.
func (r *ArtifactRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ArtifactVersion, error) {
	query := `
		SELECT id, name, version, uri, save_type, created_at
		FROM artifact_versions
		WHERE id = $1
	`
	var v domain.ArtifactVersion
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&v.ID,
		&v.Name,
		&v.Version,
		&v.URI,
		&v.SaveType,
		&v.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact version by id: %w", err)
	}
	return &v, nil
}

// ListByName возвращает все версии артефакта, новые первыми.
func (r *ArtifactRepo) ListByName(ctx context.Context, name string) ([]domain.ArtifactVersion, error) {
	query := `
		SELECT id, name, version, uri, save_type, created_at
		FROM artifact_versions
		WHERE name = $1
		ORDER BY version DESC
	`
	rows, err := r.pool.Query(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("list artifact versions: %w", err)
	}
	defer rows.Close()

	var versions []domain.ArtifactVersion
	for rows.Next() {
		var v domain.ArtifactVersion
		if err := rows.Scan(
			&v.ID,
			&v.Name,
			&v.Version,
			&v.URI,
			&v.SaveType,
			&v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan artifact version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}
