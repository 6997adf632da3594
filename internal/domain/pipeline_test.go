package domain

import "testing"

func TestStepSettingsFor(t *testing.T) {
	dep := &Deployment{
		Spec: DeploymentSpec{
			Settings: StepSettings{
				InstanceType: "ml.m5.xlarge",
				ExtraArgs:    map[string]any{"CheckpointConfig": map[string]any{"S3Uri": "s3://bucket/ckpt"}},
			},
			Steps: map[string]StepConfig{
				"train": {},
				"evaluate": {
					Settings: StepSettings{
						InstanceType: "ml.c5.large",
						ExtraArgs:    map[string]any{"NetworkConfig": map[string]any{}},
					},
				},
			},
		},
	}

	inherited := dep.StepSettingsFor("train")
	if inherited.InstanceType != "ml.m5.xlarge" {
		t.Errorf("instance type: got %q", inherited.InstanceType)
	}
	if _, ok := inherited.ExtraArgs["CheckpointConfig"]; !ok {
		t.Errorf("extra args not inherited: got %v", inherited.ExtraArgs)
	}

	overridden := dep.StepSettingsFor("evaluate")
	if overridden.InstanceType != "ml.c5.large" {
		t.Errorf("instance type: got %q", overridden.InstanceType)
	}
	if _, ok := overridden.ExtraArgs["NetworkConfig"]; !ok {
		t.Errorf("step extra args lost: got %v", overridden.ExtraArgs)
	}
	if _, ok := overridden.ExtraArgs["CheckpointConfig"]; ok {
		t.Error("step extra args must replace deployment extra args, not merge")
	}

	unknown := dep.StepSettingsFor("missing")
	if unknown.InstanceType != "ml.m5.xlarge" {
		t.Errorf("unknown step must fall back to deployment settings, got %q", unknown.InstanceType)
	}
}
