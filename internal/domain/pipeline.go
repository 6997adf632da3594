package domain

import (
	"time"

	"github.com/google/uuid"
)

// Pipeline — определение ML-пайплайна.
//
// Pipeline — это именованный "шаблон": граф шагов, который выполняется
// на стороне SageMaker. Каждая отправка на выполнение фиксируется
// как Deployment, каждое выполнение — как PipelineRun.
type Pipeline struct {
	// ID — уникальный идентификатор pipeline.
	ID uuid.UUID `json:"id"`

	// Name — уникальное имя pipeline (например, "train-fraud-model").
	Name string `json:"name"`

	// IsActive — флаг активности. Для неактивных pipelines не создаются
	// новые deployments и schedules.
	IsActive bool `json:"is_active"`

	// CreatedAt — время создания pipeline.
	CreatedAt time.Time `json:"created_at"`
}

// Deployment — зафиксированная отправка pipeline на выполнение.
//
// Deployment неизменяем: он содержит полный снимок графа шагов
// и настроек на момент отправки. Благодаря этому run всегда можно
// воспроизвести, даже если pipeline уже изменился.
type Deployment struct {
	// ID — уникальный идентификатор deployment.
	ID uuid.UUID `json:"id"`

	// PipelineID — ссылка на родительский pipeline.
	PipelineID uuid.UUID `json:"pipeline_id"`

	// Version — номер версии pipeline (автоинкремент).
	Version int `json:"version"`

	// Spec — снимок графа шагов и настроек.
	Spec DeploymentSpec `json:"spec"`

	// Schedule — расписание, если deployment должен выполняться
	// по расписанию, а не однократно.
	Schedule *ScheduleSpec `json:"schedule,omitempty"`

	// CreatedAt — время создания deployment.
	CreatedAt time.Time `json:"created_at"`
}

// DeploymentSpec — спецификация deployment (содержимое JSONB поля spec).
type DeploymentSpec struct {
	// PipelineName — имя pipeline (дублируется для удобства).
	PipelineName string `json:"pipeline_name"`

	// Settings — настройки уровня deployment (применяются ко всем шагам,
	// если шаг их не переопределяет).
	Settings StepSettings `json:"settings,omitempty"`

	// PipelineTags — теги, вешаемые на SageMaker pipeline.
	PipelineTags map[string]string `json:"pipeline_tags,omitempty"`

	// Environment — переменные окружения для всех шагов.
	Environment map[string]string `json:"environment,omitempty"`

	// Synchronous — ждать ли завершения выполнения при запуске.
	// Игнорируется для scheduled deployments.
	Synchronous bool `json:"synchronous,omitempty"`

	// Steps — конфигурации шагов (stepName → StepConfig).
	Steps map[string]StepConfig `json:"steps"`
}

// StepConfig — конфигурация одного шага.
type StepConfig struct {
	// Image — URI docker-образа для шага.
	Image string `json:"image"`

	// Command — команда entrypoint контейнера.
	Command []string `json:"command,omitempty"`

	// Arguments — аргументы entrypoint.
	Arguments []string `json:"arguments,omitempty"`

	// UpstreamSteps — имена шагов, от которых зависит этот шаг.
	UpstreamSteps []string `json:"upstream_steps,omitempty"`

	// Settings — настройки шага, переопределяющие настройки deployment.
	Settings StepSettings `json:"settings,omitempty"`
}

// StepSettings — настройки выполнения шага на стороне SageMaker.
//
// Пустые поля наследуются: шаг → deployment → значения по умолчанию.
type StepSettings struct {
	// UseTrainingStep — выполнять шаг как Training job (true)
	// или Processing job (false). Nil — унаследовать.
	UseTrainingStep *bool `json:"use_training_step,omitempty"`

	// InstanceType — тип инстанса (например, "ml.m5.xlarge").
	InstanceType string `json:"instance_type,omitempty"`

	// ExecutionRole — IAM роль, под которой выполняется job.
	ExecutionRole string `json:"execution_role,omitempty"`

	// VolumeSizeGB — размер EBS тома в гигабайтах.
	VolumeSizeGB int `json:"volume_size_gb,omitempty"`

	// MaxRuntimeSec — максимальное время выполнения job в секундах.
	MaxRuntimeSec int `json:"max_runtime_sec,omitempty"`

	// KeepAliveSec — время удержания warm pool после завершения
	// (только для Training jobs).
	KeepAliveSec int `json:"keep_alive_sec,omitempty"`

	// Tags — теги на уровне job.
	Tags map[string]string `json:"tags,omitempty"`

	// Environment — переменные окружения шага.
	Environment map[string]string `json:"environment,omitempty"`

	// InputDataURI — S3 источники данных: либо один URI (ключ ""),
	// либо несколько каналов (ключ — имя канала).
	InputDataURI map[string]string `json:"input_data_uri,omitempty"`

	// InputDataMode — режим доставки входных данных ("File", "Pipe").
	InputDataMode string `json:"input_data_mode,omitempty"`

	// OutputDataURI — S3 назначения результатов, аналогично InputDataURI.
	OutputDataURI map[string]string `json:"output_data_uri,omitempty"`

	// OutputDataMode — режим выгрузки результатов ("EndOfJob", "Continuous").
	OutputDataMode string `json:"output_data_mode,omitempty"`

	// Network — сетевые настройки job.
	Network *NetworkConfig `json:"network,omitempty"`

	// ExtraArgs — дополнительные поля запроса Training/Processing job
	// (ключи верхнего уровня CreateTrainingJob/CreateProcessingJob,
	// например "CheckpointConfig"). Накладываются поверх собранных
	// аргументов; образ, entrypoint, environment и число инстансов
	// переопределить нельзя.
	ExtraArgs map[string]any `json:"extra_args,omitempty"`
}

// NetworkConfig — сетевые настройки SageMaker job.
type NetworkConfig struct {
	// Subnets — ID подсетей VPC.
	Subnets []string `json:"subnets,omitempty"`

	// SecurityGroupIDs — ID security groups.
	SecurityGroupIDs []string `json:"security_group_ids,omitempty"`

	// EnableIsolation — запретить job исходящий сетевой трафик.
	EnableIsolation bool `json:"enable_isolation,omitempty"`
}

// ScheduleSpec — расписание выполнения deployment.
//
// Выбор режима:
//   - CronExpr задан        → cron-расписание
//   - IntervalSec > 0       → rate-расписание
//   - иначе                 → однократный запуск в RunOnceAt/StartTime
type ScheduleSpec struct {
	// CronExpr — cron-выражение в формате AWS (6 или 7 полей).
	CronExpr string `json:"cron_expr,omitempty"`

	// IntervalSec — интервал между запусками в секундах.
	// Значения меньше 60 округляются вверх до одной минуты.
	IntervalSec int `json:"interval_sec,omitempty"`

	// StartTime — время начала действия расписания.
	StartTime *time.Time `json:"start_time,omitempty"`

	// RunOnceAt — время однократного запуска.
	RunOnceAt *time.Time `json:"run_once_at,omitempty"`

	// Timezone — часовой пояс расписания. По умолчанию: "UTC".
	Timezone string `json:"timezone,omitempty"`
}

// IsCron возвращает true, если расписание использует cron-выражение.
func (s *ScheduleSpec) IsCron() bool {
	return s.CronExpr != ""
}

// IsInterval возвращает true, если расписание использует интервал.
func (s *ScheduleSpec) IsInterval() bool {
	return s.CronExpr == "" && s.IntervalSec > 0
}

// IsOneTime возвращает true для однократного запуска.
func (s *ScheduleSpec) IsOneTime() bool {
	return !s.IsCron() && !s.IsInterval()
}

// StepSettingsFor возвращает эффективные настройки шага:
// настройки шага, дополненные настройками deployment.
func (d *Deployment) StepSettingsFor(stepName string) StepSettings {
	step, ok := d.Spec.Steps[stepName]
	if !ok {
		return d.Spec.Settings
	}
	return mergeSettings(step.Settings, d.Spec.Settings)
}

// mergeSettings дополняет пустые поля step настройками base.
func mergeSettings(step, base StepSettings) StepSettings {
	out := step
	if out.UseTrainingStep == nil {
		out.UseTrainingStep = base.UseTrainingStep
	}
	if out.InstanceType == "" {
		out.InstanceType = base.InstanceType
	}
	if out.ExecutionRole == "" {
		out.ExecutionRole = base.ExecutionRole
	}
	if out.VolumeSizeGB == 0 {
		out.VolumeSizeGB = base.VolumeSizeGB
	}
	if out.MaxRuntimeSec == 0 {
		out.MaxRuntimeSec = base.MaxRuntimeSec
	}
	if out.KeepAliveSec == 0 {
		out.KeepAliveSec = base.KeepAliveSec
	}
	if out.InputDataMode == "" {
		out.InputDataMode = base.InputDataMode
	}
	if out.OutputDataMode == "" {
		out.OutputDataMode = base.OutputDataMode
	}
	if out.Network == nil {
		out.Network = base.Network
	}
	if len(out.Tags) == 0 {
		out.Tags = base.Tags
	}
	if len(out.InputDataURI) == 0 {
		out.InputDataURI = base.InputDataURI
	}
	if len(out.OutputDataURI) == 0 {
		out.OutputDataURI = base.OutputDataURI
	}
	if len(out.ExtraArgs) == 0 {
		out.ExtraArgs = base.ExtraArgs
	}
	return out
}
