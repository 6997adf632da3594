package domain

import (
	"time"

	"github.com/google/uuid"
)

// ArtifactVersion — версия артефакта (датасет, модель, метрики),
// произведённого или потреблённого step run.
type ArtifactVersion struct {
	// ID — уникальный идентификатор версии артефакта.
	ID uuid.UUID `json:"id"`

	// Name — имя артефакта (например, "training_data").
	Name string `json:"name"`

	// Version — номер версии артефакта.
	Version int `json:"version"`

	// URI — расположение данных артефакта (обычно S3).
	URI string `json:"uri"`

	// SaveType — способ сохранения артефакта.
	SaveType SaveType `json:"save_type"`

	// CreatedAt — время создания версии.
	CreatedAt time.Time `json:"created_at"`
}

// Model — зарегистрированная модель.
//
// Модель группирует версии (ModelVersion); step runs ссылаются
// на конкретную версию через model_version_id.
type Model struct {
	// ID — уникальный идентификатор модели.
	ID uuid.UUID `json:"id"`

	// Name — уникальное имя модели.
	Name string `json:"name"`

	// CreatedAt — время регистрации модели.
	CreatedAt time.Time `json:"created_at"`
}

// ModelVersion — версия модели.
type ModelVersion struct {
	// ID — уникальный идентификатор версии модели.
	ID uuid.UUID `json:"id"`

	// ModelID — ссылка на модель.
	ModelID uuid.UUID `json:"model_id"`

	// Version — номер версии.
	Version int `json:"version"`

	// CreatedAt — время создания версии.
	CreatedAt time.Time `json:"created_at"`
}
