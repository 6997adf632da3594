package sagemaker

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shaiso/Conveyor/internal/domain"
)

func boolPtr(v bool) *bool { return &v }

func testDeployment(steps map[string]domain.StepConfig) *domain.Deployment {
	return &domain.Deployment{
		Spec: domain.DeploymentSpec{
			PipelineName: "train-fraud-model",
			Steps:        steps,
		},
	}
}

func TestSanitizeRunName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"train_fraud_model", "train-fraud-model"},
		{"run.2024/03", "run-2024-03"},
		{"already-ok-123", "already-ok-123"},
	}
	for _, tt := range tests {
		if got := SanitizeRunName(tt.in); got != tt.want {
			t.Errorf("%q: got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildDefinitionTrainingStep(t *testing.T) {
	dep := testDeployment(map[string]domain.StepConfig{
		"train": {
			Image:     "123456789012.dkr.ecr.eu-west-1.amazonaws.com/trainer:latest",
			Command:   []string{"conveyor-entrypoint"},
			Arguments: []string{"--step", "train"},
		},
	})

	def, err := BuildDefinition(dep, "train-fraud-model", map[string]string{"LOG_LEVEL": "debug"}, BuilderConfig{
		ExecutionRole: "arn:aws:iam::123456789012:role/sm-exec",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if def.Version != "2020-12-01" {
		t.Errorf("version: got %q", def.Version)
	}
	if len(def.Steps) != 1 {
		t.Fatalf("expected one step, got %d", len(def.Steps))
	}

	step := def.Steps[0]
	if step.Name != "train" || step.Type != "Training" {
		t.Fatalf("step: got %s/%s", step.Name, step.Type)
	}

	args, ok := step.Arguments.(trainingArguments)
	if !ok {
		t.Fatalf("arguments: got %T", step.Arguments)
	}
	if args.RoleArn != "arn:aws:iam::123456789012:role/sm-exec" {
		t.Errorf("role: got %q", args.RoleArn)
	}
	if args.AlgorithmSpecification.TrainingInputMode != "File" {
		t.Errorf("input mode: got %q", args.AlgorithmSpecification.TrainingInputMode)
	}
	if args.ResourceConfig.InstanceCount != 1 || args.ResourceConfig.InstanceType != "ml.m5.xlarge" {
		t.Errorf("resource config: got %+v", args.ResourceConfig)
	}
	if args.ResourceConfig.VolumeSizeInGB != 30 {
		t.Errorf("volume size: got %d", args.ResourceConfig.VolumeSizeInGB)
	}
	if args.StoppingCondition.MaxRuntimeInSeconds != 86400 {
		t.Errorf("max runtime: got %d", args.StoppingCondition.MaxRuntimeInSeconds)
	}
	if args.Environment["LOG_LEVEL"] != "debug" {
		t.Errorf("environment: got %v", args.Environment)
	}
}

func TestBuildDefinitionProcessingStep(t *testing.T) {
	dep := testDeployment(map[string]domain.StepConfig{
		"evaluate": {
			Image: "evaluator:latest",
			Settings: domain.StepSettings{
				UseTrainingStep: boolPtr(false),
				InstanceType:    "ml.c5.large",
				InputDataURI:    map[string]string{"": "s3://bucket/input"},
				OutputDataURI:   map[string]string{"": "s3://bucket/output"},
			},
		},
	})

	def, err := BuildDefinition(dep, "train-fraud-model", nil, BuilderConfig{
		ExecutionRole: "arn:aws:iam::123456789012:role/sm-exec",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	step := def.Steps[0]
	if step.Type != "Processing" {
		t.Fatalf("step type: got %s", step.Type)
	}

	args, ok := step.Arguments.(processingArguments)
	if !ok {
		t.Fatalf("arguments: got %T", step.Arguments)
	}
	if args.ProcessingResources.ClusterConfig.InstanceType != "ml.c5.large" {
		t.Errorf("instance type: got %q", args.ProcessingResources.ClusterConfig.InstanceType)
	}
	if len(args.ProcessingInputs) != 1 {
		t.Fatalf("inputs: got %d", len(args.ProcessingInputs))
	}
	in := args.ProcessingInputs[0]
	if in.InputName != "data" || in.S3Input.S3Uri != "s3://bucket/input" || in.S3Input.LocalPath != "/opt/ml/processing/input/data" {
		t.Errorf("input: got %+v", in)
	}
	if args.ProcessingOutputConfig == nil || len(args.ProcessingOutputConfig.Outputs) != 1 {
		t.Fatalf("output config: got %+v", args.ProcessingOutputConfig)
	}
	out := args.ProcessingOutputConfig.Outputs[0]
	if out.S3Output.S3Uri != "s3://bucket/output" || out.S3Output.S3UploadMode != "EndOfJob" {
		t.Errorf("output: got %+v", out)
	}
}

func TestBuildDefinitionMultiChannelInputs(t *testing.T) {
	dep := testDeployment(map[string]domain.StepConfig{
		"train": {
			Image: "trainer:latest",
			Settings: domain.StepSettings{
				InputDataURI: map[string]string{
					"validation": "s3://bucket/val",
					"train":      "s3://bucket/train",
				},
			},
		},
	})

	def, err := BuildDefinition(dep, "p", nil, BuilderConfig{ExecutionRole: "role"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	args := def.Steps[0].Arguments.(trainingArguments)
	if len(args.InputDataConfig) != 2 {
		t.Fatalf("channels: got %d", len(args.InputDataConfig))
	}
	// Channels come out in sorted order.
	if args.InputDataConfig[0].ChannelName != "train" || args.InputDataConfig[1].ChannelName != "validation" {
		t.Errorf("channel order: got %s, %s", args.InputDataConfig[0].ChannelName, args.InputDataConfig[1].ChannelName)
	}
	if args.InputDataConfig[0].DataSource.S3DataSource.S3Uri != "s3://bucket/train" {
		t.Errorf("train channel URI: got %q", args.InputDataConfig[0].DataSource.S3DataSource.S3Uri)
	}
}

func TestBuildDefinitionSingleDefaultChannel(t *testing.T) {
	dep := testDeployment(map[string]domain.StepConfig{
		"train": {
			Image: "trainer:latest",
			Settings: domain.StepSettings{
				InputDataURI: map[string]string{"default": "s3://bucket/input"},
			},
		},
	})

	def, err := BuildDefinition(dep, "p", nil, BuilderConfig{ExecutionRole: "role"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	args := def.Steps[0].Arguments.(trainingArguments)
	if len(args.InputDataConfig) != 1 {
		t.Fatalf("channels: got %d", len(args.InputDataConfig))
	}
	// A lone "default" channel collapses to the single-URI form.
	ch := args.InputDataConfig[0]
	if ch.ChannelName != "training" || ch.DataSource.S3DataSource.S3Uri != "s3://bucket/input" {
		t.Errorf("channel: got %+v", ch)
	}
}

func TestBuildDefinitionExtraArgsTraining(t *testing.T) {
	dep := testDeployment(map[string]domain.StepConfig{
		"train": {
			Image: "trainer:latest",
			Settings: domain.StepSettings{
				ExtraArgs: map[string]any{
					"CheckpointConfig":       map[string]any{"S3Uri": "s3://bucket/ckpt"},
					"AlgorithmSpecification": map[string]any{"TrainingImage": "evil:latest"},
					"Environment":            map[string]any{"HACK": "1"},
					"ResourceConfig": map[string]any{
						"InstanceCount": 5,
						"InstanceType":  "ml.p3.2xlarge",
					},
				},
			},
		},
	})

	def, err := BuildDefinition(dep, "p", map[string]string{"LOG_LEVEL": "debug"}, BuilderConfig{
		ExecutionRole: "role",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	args, ok := def.Steps[0].Arguments.(map[string]any)
	if !ok {
		t.Fatalf("arguments: got %T", def.Steps[0].Arguments)
	}

	ckpt, ok := args["CheckpointConfig"].(map[string]any)
	if !ok || ckpt["S3Uri"] != "s3://bucket/ckpt" {
		t.Errorf("checkpoint config: got %v", args["CheckpointConfig"])
	}

	// Image и environment задаются deployment'ом и не переопределяются.
	spec := args["AlgorithmSpecification"].(map[string]any)
	if spec["TrainingImage"] != "trainer:latest" {
		t.Errorf("training image overridden: got %v", spec["TrainingImage"])
	}
	env := args["Environment"].(map[string]any)
	if _, ok := env["HACK"]; ok {
		t.Error("environment must not be overridable through extra args")
	}
	if env["LOG_LEVEL"] != "debug" {
		t.Errorf("environment lost: got %v", env)
	}

	rc := args["ResourceConfig"].(map[string]any)
	if rc["InstanceCount"] != 1 {
		t.Errorf("instance count must stay 1, got %v", rc["InstanceCount"])
	}
	if rc["InstanceType"] != "ml.p3.2xlarge" {
		t.Errorf("instance type: got %v", rc["InstanceType"])
	}
}

func TestBuildDefinitionExtraArgsProcessing(t *testing.T) {
	dep := testDeployment(map[string]domain.StepConfig{
		"evaluate": {
			Image: "evaluator:latest",
			Settings: domain.StepSettings{
				UseTrainingStep: boolPtr(false),
				ExtraArgs: map[string]any{
					"NetworkConfig": map[string]any{"EnableNetworkIsolation": true},
					"ProcessingResources": map[string]any{
						"ClusterConfig": map[string]any{"InstanceCount": 3},
					},
				},
			},
		},
	})

	def, err := BuildDefinition(dep, "p", nil, BuilderConfig{ExecutionRole: "role"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	args, ok := def.Steps[0].Arguments.(map[string]any)
	if !ok {
		t.Fatalf("arguments: got %T", def.Steps[0].Arguments)
	}
	if _, ok := args["NetworkConfig"]; !ok {
		t.Error("extra NetworkConfig missing from arguments")
	}
	cc := args["ProcessingResources"].(map[string]any)["ClusterConfig"].(map[string]any)
	if cc["InstanceCount"] != 1 {
		t.Errorf("instance count must stay 1, got %v", cc["InstanceCount"])
	}
}

func TestBuildDefinitionDependsOn(t *testing.T) {
	dep := testDeployment(map[string]domain.StepConfig{
		"load":  {Image: "loader:latest"},
		"train": {Image: "trainer:latest", UpstreamSteps: []string{"load"}},
	})

	def, err := BuildDefinition(dep, "p", nil, BuilderConfig{ExecutionRole: "role"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Steps are emitted in name order: load, train.
	if def.Steps[1].Name != "train" {
		t.Fatalf("step order: got %s", def.Steps[1].Name)
	}
	if len(def.Steps[1].DependsOn) != 1 || def.Steps[1].DependsOn[0] != "load" {
		t.Errorf("depends on: got %v", def.Steps[1].DependsOn)
	}
}

func TestBuildDefinitionInjectsRunID(t *testing.T) {
	dep := testDeployment(map[string]domain.StepConfig{
		"train": {Image: "trainer:latest"},
	})

	def, err := BuildDefinition(dep, "p", nil, BuilderConfig{ExecutionRole: "role"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	args := def.Steps[0].Arguments.(trainingArguments)
	ref, ok := args.Environment[EnvRunID].(map[string]any)
	if !ok {
		t.Fatalf("run ID variable: got %T", args.Environment[EnvRunID])
	}
	if ref["Get"] != "Execution.PipelineExecutionArn" {
		t.Errorf("run ID reference: got %v", ref)
	}
}

func TestBuildDefinitionChunksLongEnv(t *testing.T) {
	dep := testDeployment(map[string]domain.StepConfig{
		"train": {Image: "trainer:latest"},
	})
	long := strings.Repeat("x", 600)

	def, err := BuildDefinition(dep, "p", map[string]string{"BIG": long}, BuilderConfig{ExecutionRole: "role"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	args := def.Steps[0].Arguments.(trainingArguments)
	if _, ok := args.Environment["BIG"]; ok {
		t.Error("long variable should have been replaced by chunks")
	}
	if _, ok := args.Environment["BIG_CHUNK_0"]; !ok {
		t.Errorf("missing first chunk, env keys: %v", envKeys(args.Environment))
	}
}

func envKeys(env map[string]any) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	return keys
}

func TestBuildDefinitionNoExecutionRole(t *testing.T) {
	dep := testDeployment(map[string]domain.StepConfig{
		"train": {Image: "trainer:latest"},
	})
	if _, err := BuildDefinition(dep, "p", nil, BuilderConfig{}); err == nil {
		t.Fatal("expected error without an execution role")
	}
}

func TestBuildDefinitionGraphValidation(t *testing.T) {
	tests := []struct {
		name  string
		steps map[string]domain.StepConfig
	}{
		{
			name:  "no steps",
			steps: map[string]domain.StepConfig{},
		},
		{
			name: "unknown dependency",
			steps: map[string]domain.StepConfig{
				"train": {Image: "i", UpstreamSteps: []string{"missing"}},
			},
		},
		{
			name: "self dependency",
			steps: map[string]domain.StepConfig{
				"train": {Image: "i", UpstreamSteps: []string{"train"}},
			},
		},
		{
			name: "cycle",
			steps: map[string]domain.StepConfig{
				"a": {Image: "i", UpstreamSteps: []string{"b"}},
				"b": {Image: "i", UpstreamSteps: []string{"a"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dep := testDeployment(tt.steps)
			if _, err := BuildDefinition(dep, "p", nil, BuilderConfig{ExecutionRole: "role"}); err == nil {
				t.Fatal("expected graph validation error")
			}
		})
	}
}

func TestDefinitionJSON(t *testing.T) {
	dep := testDeployment(map[string]domain.StepConfig{
		"train": {Image: "trainer:latest"},
	})

	def, err := BuildDefinition(dep, "p", nil, BuilderConfig{ExecutionRole: "role"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := def.JSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatalf("definition is not valid JSON: %v", err)
	}
	if decoded["Version"] != "2020-12-01" {
		t.Errorf("version: got %v", decoded["Version"])
	}
	if _, ok := decoded["Steps"].([]any); !ok {
		t.Errorf("steps: got %T", decoded["Steps"])
	}
}
