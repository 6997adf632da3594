package sagemaker

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/envutil"
)

// EnvRunID — переменная окружения, через которую шаг узнаёт
// идентификатор своего run (ARN pipeline execution).
// Значение подставляет SageMaker во время выполнения.
const EnvRunID = "CONVEYOR_SAGEMAKER_RUN_ID"

// Переменные окружения, которые launcher записывает в environment
// шагов при отправке. По ним entrypoint находит свои записи в store.
const (
	// EnvStoreRunID — ID run в store. Отсутствует для scheduled
	// deployments: там run создаёт entrypoint первого шага.
	EnvStoreRunID = "CONVEYOR_RUN_ID"

	// EnvDeploymentID — ID deployment в store.
	EnvDeploymentID = "CONVEYOR_DEPLOYMENT_ID"
)

// Значения по умолчанию для шагов.
const (
	defaultInstanceType  = "ml.m5.xlarge"
	defaultVolumeSizeGB  = 30
	defaultMaxRuntimeSec = 86400
	defaultInputMode     = "File"
	defaultUploadMode    = "EndOfJob"

	// Пути данных внутри контейнера Processing шага.
	processingInputPath  = "/opt/ml/processing/input/data"
	processingOutputPath = "/opt/ml/processing/output/data"
)

// runNameRe — допустимые символы имени pipeline на стороне SageMaker.
var runNameRe = regexp.MustCompile(`[^a-zA-Z0-9\-]`)

// SanitizeRunName заменяет недопустимые символы имени на дефисы.
// SageMaker разрешает только латиницу, цифры и дефис.
func SanitizeRunName(name string) string {
	return runNameRe.ReplaceAllString(name, "-")
}

// Definition — definition-документ SageMaker pipeline.
//
// Это JSON-документ формата 2020-12-01, который SageMaker принимает
// в CreatePipeline/UpdatePipeline.
type Definition struct {
	Version    string           `json:"Version"`
	Metadata   map[string]any   `json:"Metadata"`
	Parameters []any            `json:"Parameters"`
	Steps      []StepDefinition `json:"Steps"`
}

// StepDefinition — один шаг definition-документа.
type StepDefinition struct {
	Name      string   `json:"Name"`
	Type      string   `json:"Type"`
	DependsOn []string `json:"DependsOn,omitempty"`
	Arguments any      `json:"Arguments"`
}

// JSON сериализует definition-документ.
func (d *Definition) JSON() (string, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("marshal pipeline definition: %w", err)
	}
	return string(raw), nil
}

// --- Training job arguments ---

type trainingArguments struct {
	AlgorithmSpecification algorithmSpecification `json:"AlgorithmSpecification"`
	RoleArn                string                 `json:"RoleArn"`
	ResourceConfig         resourceConfig         `json:"ResourceConfig"`
	StoppingCondition      stoppingCondition      `json:"StoppingCondition"`
	OutputDataConfig       *outputDataConfig      `json:"OutputDataConfig,omitempty"`
	InputDataConfig        []trainingChannel      `json:"InputDataConfig,omitempty"`
	Environment            map[string]any         `json:"Environment,omitempty"`
	VpcConfig              *vpcConfig             `json:"VpcConfig,omitempty"`
	EnableNetworkIsolation bool                   `json:"EnableNetworkIsolation,omitempty"`
	Tags                   []tag                  `json:"Tags,omitempty"`
}

type algorithmSpecification struct {
	TrainingImage       string   `json:"TrainingImage"`
	TrainingInputMode   string   `json:"TrainingInputMode"`
	ContainerEntrypoint []string `json:"ContainerEntrypoint,omitempty"`
	ContainerArguments  []string `json:"ContainerArguments,omitempty"`
}

type resourceConfig struct {
	InstanceCount            int    `json:"InstanceCount"`
	InstanceType             string `json:"InstanceType"`
	VolumeSizeInGB           int    `json:"VolumeSizeInGB"`
	KeepAlivePeriodInSeconds int    `json:"KeepAlivePeriodInSeconds,omitempty"`
}

type stoppingCondition struct {
	MaxRuntimeInSeconds int `json:"MaxRuntimeInSeconds"`
}

type outputDataConfig struct {
	S3OutputPath string `json:"S3OutputPath"`
}

type trainingChannel struct {
	ChannelName string     `json:"ChannelName"`
	DataSource  dataSource `json:"DataSource"`
	InputMode   string     `json:"InputMode,omitempty"`
}

type dataSource struct {
	S3DataSource s3DataSource `json:"S3DataSource"`
}

type s3DataSource struct {
	S3DataType string `json:"S3DataType"`
	S3Uri      string `json:"S3Uri"`
}

type vpcConfig struct {
	SecurityGroupIds []string `json:"SecurityGroupIds"`
	Subnets          []string `json:"Subnets"`
}

type tag struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

// --- Processing job arguments ---

type processingArguments struct {
	AppSpecification       appSpecification        `json:"AppSpecification"`
	RoleArn                string                  `json:"RoleArn"`
	ProcessingResources    processingResources     `json:"ProcessingResources"`
	StoppingCondition      *stoppingCondition      `json:"StoppingCondition,omitempty"`
	ProcessingInputs       []processingInput       `json:"ProcessingInputs,omitempty"`
	ProcessingOutputConfig *processingOutputConfig `json:"ProcessingOutputConfig,omitempty"`
	NetworkConfig          *networkConfig          `json:"NetworkConfig,omitempty"`
	Environment            map[string]any          `json:"Environment,omitempty"`
	Tags                   []tag                   `json:"Tags,omitempty"`
}

type appSpecification struct {
	ImageUri            string   `json:"ImageUri"`
	ContainerEntrypoint []string `json:"ContainerEntrypoint,omitempty"`
	ContainerArguments  []string `json:"ContainerArguments,omitempty"`
}

type processingResources struct {
	ClusterConfig clusterConfig `json:"ClusterConfig"`
}

type clusterConfig struct {
	InstanceCount  int    `json:"InstanceCount"`
	InstanceType   string `json:"InstanceType"`
	VolumeSizeInGB int    `json:"VolumeSizeInGB"`
}

type processingInput struct {
	InputName string  `json:"InputName"`
	S3Input   s3Input `json:"S3Input"`
}

type s3Input struct {
	S3Uri       string `json:"S3Uri"`
	LocalPath   string `json:"LocalPath"`
	S3DataType  string `json:"S3DataType"`
	S3InputMode string `json:"S3InputMode,omitempty"`
}

type processingOutputConfig struct {
	Outputs []processingOutput `json:"Outputs"`
}

type processingOutput struct {
	OutputName string   `json:"OutputName"`
	S3Output   s3Output `json:"S3Output"`
}

type s3Output struct {
	S3Uri        string `json:"S3Uri"`
	LocalPath    string `json:"LocalPath"`
	S3UploadMode string `json:"S3UploadMode"`
}

// executionVariable возвращает ссылку на execution variable SageMaker.
// В definition-документе это объект {"Get": "Execution.<Name>"},
// который SageMaker подставляет во время выполнения.
func executionVariable(name string) map[string]any {
	return map[string]any{"Get": "Execution." + name}
}

// BuilderConfig — настройки построения definition-документа.
type BuilderConfig struct {
	// ExecutionRole — IAM роль по умолчанию для шагов.
	ExecutionRole string

	// UseTrainingStep — выполнять шаги как Training jobs,
	// если шаг не указал иное. Nil означает true.
	UseTrainingStep *bool
}

// BuildDefinition строит definition-документ SageMaker pipeline
// из deployment.
//
// runName — санитизированное имя pipeline на стороне SageMaker;
// env — переменные окружения, общие для всех шагов (чанкование
// длинных значений применяется внутри).
func BuildDefinition(deployment *domain.Deployment, runName string, env map[string]string, cfg BuilderConfig) (*Definition, error) {
	if err := validateStepGraph(deployment.Spec.Steps); err != nil {
		return nil, err
	}

	// Общие переменные окружения: длинные значения чанкуются,
	// entrypoint собирает их обратно внутри контейнера.
	globalEnv := make(map[string]string, len(env))
	for k, v := range env {
		globalEnv[k] = v
	}
	if err := envutil.Split(globalEnv, envutil.SageMakerProcessorSizeLimit); err != nil {
		return nil, fmt.Errorf("split environment: %w", err)
	}

	// Детерминированный порядок шагов в документе.
	names := make([]string, 0, len(deployment.Spec.Steps))
	for name := range deployment.Spec.Steps {
		names = append(names, name)
	}
	sort.Strings(names)

	def := &Definition{
		Version:    "2020-12-01",
		Metadata:   map[string]any{},
		Parameters: []any{},
	}

	for _, name := range names {
		step := deployment.Spec.Steps[name]
		settings := deployment.StepSettingsFor(name)

		stepDef, err := buildStep(name, step, settings, runName, globalEnv, cfg)
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", name, err)
		}
		def.Steps = append(def.Steps, stepDef)
	}

	return def, nil
}

// buildStep строит определение одного шага.
func buildStep(name string, step domain.StepConfig, settings domain.StepSettings, runName string, globalEnv map[string]string, cfg BuilderConfig) (StepDefinition, error) {
	useTraining := true
	if settings.UseTrainingStep != nil {
		useTraining = *settings.UseTrainingStep
	} else if cfg.UseTrainingStep != nil {
		useTraining = *cfg.UseTrainingStep
	}

	role := settings.ExecutionRole
	if role == "" {
		role = cfg.ExecutionRole
	}
	if role == "" {
		return StepDefinition{}, fmt.Errorf("no execution role configured")
	}

	instanceType := settings.InstanceType
	if instanceType == "" {
		instanceType = defaultInstanceType
	}
	volumeSize := settings.VolumeSizeGB
	if volumeSize == 0 {
		volumeSize = defaultVolumeSizeGB
	}
	maxRuntime := settings.MaxRuntimeSec
	if maxRuntime == 0 {
		maxRuntime = defaultMaxRuntimeSec
	}
	inputMode := settings.InputDataMode
	if inputMode == "" {
		inputMode = defaultInputMode
	}
	uploadMode := settings.OutputDataMode
	if uploadMode == "" {
		uploadMode = defaultUploadMode
	}

	stepEnv, err := buildStepEnvironment(globalEnv, settings.Environment)
	if err != nil {
		return StepDefinition{}, err
	}

	tags := buildTags(settings.Tags)

	stepDef := StepDefinition{
		Name:      name,
		DependsOn: step.UpstreamSteps,
	}

	if useTraining {
		args := trainingArguments{
			AlgorithmSpecification: algorithmSpecification{
				TrainingImage:       step.Image,
				TrainingInputMode:   inputMode,
				ContainerEntrypoint: step.Command,
				ContainerArguments:  step.Arguments,
			},
			RoleArn: role,
			ResourceConfig: resourceConfig{
				// Шаг Conveyor — одна единица работы, всегда один инстанс.
				InstanceCount:            1,
				InstanceType:             instanceType,
				VolumeSizeInGB:           volumeSize,
				KeepAlivePeriodInSeconds: settings.KeepAliveSec,
			},
			StoppingCondition: stoppingCondition{MaxRuntimeInSeconds: maxRuntime},
			InputDataConfig:   buildTrainingInputs(settings.InputDataURI, inputMode),
			Environment:       stepEnv,
			Tags:              tags,
		}

		if uri, ok := singleURI(settings.OutputDataURI); ok {
			args.OutputDataConfig = &outputDataConfig{S3OutputPath: uri}
		}
		if settings.Network != nil {
			args.VpcConfig = buildVpcConfig(settings.Network)
			args.EnableNetworkIsolation = settings.Network.EnableIsolation
		}

		stepDef.Type = "Training"
		stepDef.Arguments = args
		if len(settings.ExtraArgs) > 0 {
			merged, err := overlayExtraArgs(args, settings.ExtraArgs, "AlgorithmSpecification", "Environment")
			if err != nil {
				return StepDefinition{}, err
			}
			forceSingleInstance(merged, "ResourceConfig")
			stepDef.Arguments = merged
		}
		return stepDef, nil
	}

	args := processingArguments{
		AppSpecification: appSpecification{
			ImageUri:            step.Image,
			ContainerEntrypoint: step.Command,
			ContainerArguments:  step.Arguments,
		},
		RoleArn: role,
		ProcessingResources: processingResources{
			ClusterConfig: clusterConfig{
				InstanceCount:  1,
				InstanceType:   instanceType,
				VolumeSizeInGB: volumeSize,
			},
		},
		StoppingCondition: &stoppingCondition{MaxRuntimeInSeconds: maxRuntime},
		ProcessingInputs:  buildProcessingInputs(settings.InputDataURI, inputMode),
		Environment:       stepEnv,
		Tags:              tags,
	}

	if outputs := buildProcessingOutputs(settings.OutputDataURI, uploadMode); len(outputs) > 0 {
		args.ProcessingOutputConfig = &processingOutputConfig{Outputs: outputs}
	}
	if settings.Network != nil {
		args.NetworkConfig = &networkConfig{
			EnableNetworkIsolation: settings.Network.EnableIsolation,
			VpcConfig:              buildVpcConfig(settings.Network),
		}
	}

	stepDef.Type = "Processing"
	stepDef.Arguments = args
	if len(settings.ExtraArgs) > 0 {
		merged, err := overlayExtraArgs(args, settings.ExtraArgs, "AppSpecification", "Environment")
		if err != nil {
			return StepDefinition{}, err
		}
		forceSingleInstance(merged, "ProcessingResources")
		stepDef.Arguments = merged
	}
	return stepDef, nil
}

type networkConfig struct {
	EnableNetworkIsolation bool       `json:"EnableNetworkIsolation,omitempty"`
	VpcConfig              *vpcConfig `json:"VpcConfig,omitempty"`
}

// overlayExtraArgs накладывает дополнительные аргументы настроек шага
// поверх собранных аргументов job. Перечисленные в keep ключи
// не переопределяются: их значения обязаны прийти из определения шага.
func overlayExtraArgs(base any, extra map[string]any, keep ...string) (map[string]any, error) {
	raw, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("marshal step arguments: %w", err)
	}
	var merged map[string]any
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, fmt.Errorf("unmarshal step arguments: %w", err)
	}

	kept := make(map[string]bool, len(keep))
	for _, k := range keep {
		kept[k] = true
	}
	for k, v := range extra {
		if kept[k] {
			continue
		}
		merged[k] = v
	}
	return merged, nil
}

// forceSingleInstance восстанавливает InstanceCount=1 в конфигурации
// ресурсов: шаг — одна единица работы.
func forceSingleInstance(args map[string]any, resourceKey string) {
	rc, ok := args[resourceKey].(map[string]any)
	if !ok {
		return
	}
	if resourceKey == "ProcessingResources" {
		if cc, ok := rc["ClusterConfig"].(map[string]any); ok {
			cc["InstanceCount"] = 1
		}
		return
	}
	rc["InstanceCount"] = 1
}

// buildStepEnvironment объединяет общее окружение с окружением шага
// и добавляет переменную run ID (execution variable).
func buildStepEnvironment(globalEnv, stepEnv map[string]string) (map[string]any, error) {
	merged := make(map[string]string, len(globalEnv)+len(stepEnv))
	for k, v := range globalEnv {
		merged[k] = v
	}

	if len(stepEnv) > 0 {
		split := make(map[string]string, len(stepEnv))
		for k, v := range stepEnv {
			split[k] = v
		}
		if err := envutil.Split(split, envutil.SageMakerProcessorSizeLimit); err != nil {
			return nil, fmt.Errorf("split step environment: %w", err)
		}
		for k, v := range split {
			merged[k] = v
		}
	}

	env := make(map[string]any, len(merged)+1)
	for k, v := range merged {
		env[k] = v
	}
	env[EnvRunID] = executionVariable("PipelineExecutionArn")

	return env, nil
}

// buildTags переводит map тегов в список Key/Value.
func buildTags(in map[string]string) []tag {
	if len(in) == 0 {
		return nil
	}
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tags := make([]tag, 0, len(keys))
	for _, k := range keys {
		tags = append(tags, tag{Key: k, Value: in[k]})
	}
	return tags
}

// singleURI возвращает URI, если настройка задана одним значением
// (ключ "" либо единственный канал "default").
func singleURI(uris map[string]string) (string, bool) {
	if uri, ok := uris[""]; ok {
		return uri, true
	}
	if len(uris) == 1 {
		if uri, ok := uris["default"]; ok {
			return uri, true
		}
	}
	return "", false
}

// buildTrainingInputs строит каналы входных данных Training шага.
func buildTrainingInputs(uris map[string]string, inputMode string) []trainingChannel {
	if len(uris) == 0 {
		return nil
	}

	if uri, ok := singleURI(uris); ok {
		return []trainingChannel{{
			ChannelName: "training",
			DataSource:  dataSource{S3DataSource: s3DataSource{S3DataType: "S3Prefix", S3Uri: uri}},
			InputMode:   inputMode,
		}}
	}

	channels := make([]string, 0, len(uris))
	for channel := range uris {
		channels = append(channels, channel)
	}
	sort.Strings(channels)

	out := make([]trainingChannel, 0, len(channels))
	for _, channel := range channels {
		out = append(out, trainingChannel{
			ChannelName: channel,
			DataSource:  dataSource{S3DataSource: s3DataSource{S3DataType: "S3Prefix", S3Uri: uris[channel]}},
			InputMode:   inputMode,
		})
	}
	return out
}

// buildProcessingInputs строит входы Processing шага.
// Данные каждого канала монтируются в подкаталог input path.
func buildProcessingInputs(uris map[string]string, inputMode string) []processingInput {
	if len(uris) == 0 {
		return nil
	}

	if uri, ok := singleURI(uris); ok {
		return []processingInput{{
			InputName: "data",
			S3Input: s3Input{
				S3Uri:       uri,
				LocalPath:   processingInputPath,
				S3DataType:  "S3Prefix",
				S3InputMode: inputMode,
			},
		}}
	}

	channels := make([]string, 0, len(uris))
	for channel := range uris {
		channels = append(channels, channel)
	}
	sort.Strings(channels)

	out := make([]processingInput, 0, len(channels))
	for _, channel := range channels {
		out = append(out, processingInput{
			InputName: channel,
			S3Input: s3Input{
				S3Uri:       uris[channel],
				LocalPath:   processingInputPath + "/" + channel,
				S3DataType:  "S3Prefix",
				S3InputMode: inputMode,
			},
		})
	}
	return out
}

// buildProcessingOutputs строит выходы Processing шага.
func buildProcessingOutputs(uris map[string]string, uploadMode string) []processingOutput {
	if len(uris) == 0 {
		return nil
	}

	if uri, ok := singleURI(uris); ok {
		return []processingOutput{{
			OutputName: "data",
			S3Output: s3Output{
				S3Uri:        uri,
				LocalPath:    processingOutputPath,
				S3UploadMode: uploadMode,
			},
		}}
	}

	channels := make([]string, 0, len(uris))
	for channel := range uris {
		channels = append(channels, channel)
	}
	sort.Strings(channels)

	out := make([]processingOutput, 0, len(channels))
	for _, channel := range channels {
		out = append(out, processingOutput{
			OutputName: channel,
			S3Output: s3Output{
				S3Uri:        uris[channel],
				LocalPath:    processingOutputPath + "/" + channel,
				S3UploadMode: uploadMode,
			},
		})
	}
	return out
}

func buildVpcConfig(n *domain.NetworkConfig) *vpcConfig {
	if len(n.Subnets) == 0 && len(n.SecurityGroupIDs) == 0 {
		return nil
	}
	return &vpcConfig{
		SecurityGroupIds: n.SecurityGroupIDs,
		Subnets:          n.Subnets,
	}
}

// validateStepGraph проверяет граф шагов: зависимости существуют,
// шаг не зависит от себя, циклов нет.
func validateStepGraph(steps map[string]domain.StepConfig) error {
	if len(steps) == 0 {
		return fmt.Errorf("deployment has no steps")
	}

	for name, step := range steps {
		for _, dep := range step.UpstreamSteps {
			if dep == name {
				return fmt.Errorf("step %s depends on itself", name)
			}
			if _, ok := steps[dep]; !ok {
				return fmt.Errorf("step %s depends on unknown step %s", name, dep)
			}
		}
	}

	// Поиск циклов обходом в глубину.
	const (
		white = 0 // не посещён
		grey  = 1 // в текущем пути
		black = 2 // обработан
	)
	colors := make(map[string]int, len(steps))

	var visit func(name string) error
	visit = func(name string) error {
		switch colors[name] {
		case grey:
			return fmt.Errorf("cyclic dependency involving step %s", name)
		case black:
			return nil
		}
		colors[name] = grey
		for _, dep := range steps[name].UpstreamSteps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		colors[name] = black
		return nil
	}

	for name := range steps {
		if err := visit(name); err != nil {
			return err
		}
	}

	return nil
}
