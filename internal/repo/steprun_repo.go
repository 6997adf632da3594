package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Conveyor/internal/domain"
)

// StepRunRepo — репозиторий для работы со step runs.
//
// Связи входов/выходов хранятся в отдельных таблицах
// step_run_input_artifacts и step_run_output_artifacts
// (одно имя входа/выхода может ссылаться на несколько версий артефактов).
type StepRunRepo struct {
	pool *pgxpool.Pool
}

// NewStepRunRepo создаёт новый StepRunRepo.
func NewStepRunRepo(pool *pgxpool.Pool) *StepRunRepo {
	return &StepRunRepo{pool: pool}
}

const stepRunColumns = `
	id, pipeline_run_id, deployment_id, name, status, cache_key, code_hash,
	docstring, source_code, original_step_run_id, parent_step_ids,
	model_version_id, substitutions, logs_uri, run_metadata,
	started_at, finished_at, created_at
`

// Create создаёт step run вместе со связями входов и выходов.
func (r *StepRunRepo) Create(ctx context.Context, stepRun *domain.StepRun) error {
	parentsJSON, err := json.Marshal(stepRun.ParentStepIDs)
	if err != nil {
		return fmt.Errorf("marshal parent step ids: %w", err)
	}
	substitutionsJSON, err := json.Marshal(stepRun.Substitutions)
	if err != nil {
		return fmt.Errorf("marshal substitutions: %w", err)
	}
	metadataJSON, err := json.Marshal(stepRun.RunMetadata)
	if err != nil {
		return fmt.Errorf("marshal run metadata: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO step_runs (id, pipeline_run_id, deployment_id, name, status,
		                       cache_key, code_hash, docstring, source_code,
		                       original_step_run_id, parent_step_ids, model_version_id,
		                       substitutions, logs_uri, run_metadata,
		                       started_at, finished_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err = tx.Exec(ctx, query,
		stepRun.ID,
		stepRun.PipelineRunID,
		stepRun.DeploymentID,
		stepRun.Name,
		stepRun.Status,
		nullString(stepRun.CacheKey),
		nullString(stepRun.CodeHash),
		nullString(stepRun.Docstring),
		nullString(stepRun.SourceCode),
		stepRun.OriginalStepRunID,
		parentsJSON,
		stepRun.ModelVersionID,
		substitutionsJSON,
		nullString(stepRun.LogsURI),
		metadataJSON,
		stepRun.StartedAt,
		stepRun.FinishedAt,
		stepRun.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert step run: %w", err)
	}

	for name, versions := range stepRun.Inputs {
		for _, v := range versions {
			if err := insertInputLink(ctx, tx, stepRun.ID, name, v.ID, v.InputType); err != nil {
				return err
			}
		}
	}
	for name, versions := range stepRun.Outputs {
		for _, v := range versions {
			if err := insertOutputLink(ctx, tx, stepRun.ID, name, v.ID); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID возвращает step run по ID.
//
// При hydrate дополнительно загружаются связанные версии артефактов
// входов и выходов; без hydrate Inputs/Outputs остаются пустыми.
func (r *StepRunRepo) GetByID(ctx context.Context, id uuid.UUID, hydrate bool) (*domain.StepRun, error) {
	query := `SELECT ` + stepRunColumns + ` FROM step_runs WHERE id = $1`

	stepRun, err := r.scanStepRun(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	if hydrate {
		if err := r.loadArtifactLinks(ctx, stepRun); err != nil {
			return nil, err
		}
	}
	return stepRun, nil
}

// List возвращает step runs с фильтрацией.
// Результаты не гидрируются; для полной записи используется GetByID.
func (r *StepRunRepo) List(ctx context.Context, filter StepRunFilter) ([]domain.StepRun, error) {
	query := `
		SELECT ` + stepRunColumns + `
		FROM step_runs
		WHERE ($1::uuid IS NULL OR pipeline_run_id = $1)
		  AND ($2::uuid IS NULL OR deployment_id = $2)
		  AND ($3::text IS NULL OR name = $3)
		  AND ($4::text IS NULL OR status = $4)
		  AND ($5::text IS NULL OR cache_key = $5)
		  AND ($6::text IS NULL OR code_hash = $6)
		  AND ($7::uuid IS NULL OR original_step_run_id = $7)
		  AND ($8::uuid IS NULL OR model_version_id = $8)
		  AND ($9::timestamptz IS NULL OR started_at >= $9)
		  AND ($10::timestamptz IS NULL OR started_at < $10)
		  AND ($11::timestamptz IS NULL OR finished_at >= $11)
		  AND ($12::timestamptz IS NULL OR finished_at < $12)
		  AND ($13::text IS NULL OR EXISTS (
		        SELECT 1
		        FROM model_versions mv
		        JOIN models m ON m.id = mv.model_id
		        WHERE mv.id = step_runs.model_version_id
		          AND (m.name = $13 OR m.id::text = $13)
		  ))
		ORDER BY created_at DESC
		LIMIT $14 OFFSET $15
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.PipelineRunID),
		nullUUID(filter.DeploymentID),
		nullString(filter.Name),
		nullString(string(filter.Status)),
		nullString(filter.CacheKey),
		nullString(filter.CodeHash),
		nullUUID(filter.OriginalStepRunID),
		nullUUID(filter.ModelVersionID),
		filter.StartedAfter,
		filter.StartedBefore,
		filter.FinishedAfter,
		filter.FinishedBefore,
		nullString(filter.Model),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list step runs: %w", err)
	}
	defer rows.Close()

	var stepRuns []domain.StepRun
	for rows.Next() {
		stepRun, err := r.scanStepRunFromRows(rows)
		if err != nil {
			return nil, err
		}
		stepRuns = append(stepRuns, *stepRun)
	}
	return stepRuns, rows.Err()
}

// Update применяет частичное обновление step run.
//
// Новые выходы и подгруженные вручную входы добавляются к существующим
// связям; поля обновляются только если заданы в update.
func (r *StepRunRepo) Update(ctx context.Context, id uuid.UUID, update StepRunUpdate) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE step_runs
		SET status = COALESCE($2, status),
		    finished_at = COALESCE($3, finished_at),
		    logs_uri = COALESCE($4, logs_uri),
		    original_step_run_id = COALESCE($5, original_step_run_id),
		    run_metadata = CASE WHEN $6::jsonb IS NULL THEN run_metadata
		                        ELSE COALESCE(run_metadata, '{}'::jsonb) || $6::jsonb END
		WHERE id = $1
	`
	var metadataJSON []byte
	if update.RunMetadata != nil {
		metadataJSON, err = json.Marshal(update.RunMetadata)
		if err != nil {
			return fmt.Errorf("marshal run metadata: %w", err)
		}
	}

	result, err := tx.Exec(ctx, query,
		id,
		update.Status,
		update.FinishedAt,
		update.LogsURI,
		update.OriginalStepRunID,
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("update step run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	for name, versionIDs := range update.Outputs {
		for _, versionID := range versionIDs {
			if err := insertOutputLink(ctx, tx, id, name, versionID); err != nil {
				return err
			}
		}
	}
	for name, versionID := range update.LoadedArtifacts {
		if err := insertInputLink(ctx, tx, id, name, versionID, domain.InputTypeManual); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// --- Helpers ---

// StepRunFilter — параметры фильтрации step runs.
//
// Model фильтрует по модели, сконфигурированной шагом: значение
// сравнивается и с именем, и с ID модели (через model_versions).
type StepRunFilter struct {
	PipelineRunID     *uuid.UUID
	DeploymentID      *uuid.UUID
	Name              string
	Status            domain.ExecutionStatus
	CacheKey          string
	CodeHash          string
	OriginalStepRunID *uuid.UUID
	ModelVersionID    *uuid.UUID
	StartedAfter      *time.Time
	StartedBefore     *time.Time
	FinishedAfter     *time.Time
	FinishedBefore    *time.Time
	Model             string
	Limit             int
	Offset            int
}

// StepRunUpdate — частичное обновление step run.
// Nil-поля не изменяются.
type StepRunUpdate struct {
	Status            *domain.ExecutionStatus
	FinishedAt        *time.Time
	LogsURI           *string
	OriginalStepRunID *uuid.UUID

	// Outputs — новые выходные связи (имя выхода → версии артефактов).
	Outputs map[string][]uuid.UUID

	// LoadedArtifacts — артефакты, подгруженные вручную во время
	// выполнения шага (имя → версия). Записываются как manual входы.
	LoadedArtifacts map[string]uuid.UUID

	// RunMetadata — метаданные, добавляемые к существующим.
	RunMetadata map[string]string
}

func insertInputLink(ctx context.Context, tx pgx.Tx, stepRunID uuid.UUID, name string, versionID uuid.UUID, inputType domain.InputType) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO step_run_input_artifacts (step_run_id, name, artifact_version_id, input_type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
	`, stepRunID, name, versionID, inputType)
	if err != nil {
		return fmt.Errorf("insert input link %s: %w", name, err)
	}
	return nil
}

func insertOutputLink(ctx context.Context, tx pgx.Tx, stepRunID uuid.UUID, name string, versionID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO step_run_output_artifacts (step_run_id, name, artifact_version_id)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, stepRunID, name, versionID)
	if err != nil {
		return fmt.Errorf("insert output link %s: %w", name, err)
	}
	return nil
}

// loadArtifactLinks загружает входные и выходные версии артефактов step run.
func (r *StepRunRepo) loadArtifactLinks(ctx context.Context, stepRun *domain.StepRun) error {
	inputRows, err := r.pool.Query(ctx, `
		SELECT l.name, l.input_type, a.id, a.name, a.version, a.uri, a.save_type, a.created_at
		FROM step_run_input_artifacts l
		JOIN artifact_versions a ON a.id = l.artifact_version_id
		WHERE l.step_run_id = $1
	`, stepRun.ID)
	if err != nil {
		return fmt.Errorf("load input artifacts: %w", err)
	}
	defer inputRows.Close()

	stepRun.Inputs = make(map[string][]domain.StepRunInput)
	for inputRows.Next() {
		var inputName string
		var input domain.StepRunInput
		if err := inputRows.Scan(
			&inputName,
			&input.InputType,
			&input.ID,
			&input.Name,
			&input.Version,
			&input.URI,
			&input.SaveType,
			&input.CreatedAt,
		); err != nil {
			return fmt.Errorf("scan input artifact: %w", err)
		}
		stepRun.Inputs[inputName] = append(stepRun.Inputs[inputName], input)
	}
	if err := inputRows.Err(); err != nil {
		return err
	}

	outputRows, err := r.pool.Query(ctx, `
		SELECT l.name, a.id, a.name, a.version, a.uri, a.save_type, a.created_at
		FROM step_run_output_artifacts l
		JOIN artifact_versions a ON a.id = l.artifact_version_id
		WHERE l.step_run_id = $1
	`, stepRun.ID)
	if err != nil {
		return fmt.Errorf("load output artifacts: %w", err)
	}
	defer outputRows.Close()

	stepRun.Outputs = make(map[string][]domain.ArtifactVersion)
	for outputRows.Next() {
		var outputName string
		var version domain.ArtifactVersion
		if err := outputRows.Scan(
			&outputName,
			&version.ID,
			&version.Name,
			&version.Version,
			&version.URI,
			&version.SaveType,
			&version.CreatedAt,
		); err != nil {
			return fmt.Errorf("scan output artifact: %w", err)
		}
		stepRun.Outputs[outputName] = append(stepRun.Outputs[outputName], version)
	}
	return outputRows.Err()
}

func (r *StepRunRepo) scanStepRun(row pgx.Row) (*domain.StepRun, error) {
	stepRun, err := scanStepRunRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return stepRun, err
}

func (r *StepRunRepo) scanStepRunFromRows(rows pgx.Rows) (*domain.StepRun, error) {
	return scanStepRunRow(rows)
}

func scanStepRunRow(row pgx.Row) (*domain.StepRun, error) {
	var s domain.StepRun
	var cacheKey, codeHash, docstring, sourceCode, logsURI *string
	var parentsJSON, substitutionsJSON, metadataJSON []byte

	err := row.Scan(
		&s.ID,
		&s.PipelineRunID,
		&s.DeploymentID,
		&s.Name,
		&s.Status,
		&cacheKey,
		&codeHash,
		&docstring,
		&sourceCode,
		&s.OriginalStepRunID,
		&parentsJSON,
		&s.ModelVersionID,
		&substitutionsJSON,
		&logsURI,
		&metadataJSON,
		&s.StartedAt,
		&s.FinishedAt,
		&s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan step run: %w", err)
	}

	if cacheKey != nil {
		s.CacheKey = *cacheKey
	}
	if codeHash != nil {
		s.CodeHash = *codeHash
	}
	if docstring != nil {
		s.Docstring = *docstring
	}
	if sourceCode != nil {
		s.SourceCode = *sourceCode
	}
	if logsURI != nil {
		s.LogsURI = *logsURI
	}

	if parentsJSON != nil {
		if err := json.Unmarshal(parentsJSON, &s.ParentStepIDs); err != nil {
			return nil, fmt.Errorf("unmarshal parent step ids: %w", err)
		}
	}
	if substitutionsJSON != nil {
		if err := json.Unmarshal(substitutionsJSON, &s.Substitutions); err != nil {
			return nil, fmt.Errorf("unmarshal substitutions: %w", err)
		}
	}
	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &s.RunMetadata); err != nil {
			return nil, fmt.Errorf("unmarshal run metadata: %w", err)
		}
	}

	return &s, nil
}
