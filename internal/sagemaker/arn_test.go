package sagemaker

import "testing"

func TestDissectExecutionARN(t *testing.T) {
	arn := "arn:aws:sagemaker:eu-west-1:123456789012:pipeline/train-fraud-model/execution/abc123def456"

	got := DissectExecutionARN(arn)
	if got.Region != "eu-west-1" {
		t.Errorf("region: got %q, want %q", got.Region, "eu-west-1")
	}
	if got.PipelineName != "train-fraud-model" {
		t.Errorf("pipeline name: got %q, want %q", got.PipelineName, "train-fraud-model")
	}
	if got.ExecutionID != "abc123def456" {
		t.Errorf("execution ID: got %q, want %q", got.ExecutionID, "abc123def456")
	}
}

func TestDissectExecutionARNPartial(t *testing.T) {
	got := DissectExecutionARN("not-an-arn")
	if got.Region != "" || got.PipelineName != "" || got.ExecutionID != "" {
		t.Errorf("expected empty parts for a malformed ARN, got %+v", got)
	}
}

func TestDissectScheduleARN(t *testing.T) {
	region, name, err := DissectScheduleARN("arn:aws:scheduler:us-east-1:123456789012:schedule/default/nightly-train")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if region != "us-east-1" {
		t.Errorf("region: got %q, want %q", region, "us-east-1")
	}
	if name != "default/nightly-train" {
		t.Errorf("name: got %q, want %q", name, "default/nightly-train")
	}
}

func TestDissectScheduleARNInvalid(t *testing.T) {
	for _, arn := range []string{
		"",
		"arn:aws:scheduler:us-east-1",
		"arn:aws:sagemaker:us-east-1:123456789012:pipeline/x",
	} {
		if _, _, err := DissectScheduleARN(arn); err == nil {
			t.Errorf("expected error for ARN %q", arn)
		}
	}
}

func TestRoleARNFromCallerIdentity(t *testing.T) {
	tests := []struct {
		name    string
		caller  string
		want    string
		wantErr bool
	}{
		{
			name:   "user ARN passes through",
			caller: "arn:aws:iam::123456789012:user/alice",
			want:   "arn:aws:iam::123456789012:user/alice",
		},
		{
			name:   "assumed role is rewritten to the role ARN",
			caller: "arn:aws:sts::123456789012:assumed-role/launcher-role/session-1",
			want:   "arn:aws:iam::123456789012:role/launcher-role",
		},
		{
			name:   "role ARN passes through",
			caller: "arn:aws:iam::123456789012:role/launcher-role",
			want:   "arn:aws:iam::123456789012:role/launcher-role",
		},
		{
			name:    "anything else is rejected",
			caller:  "arn:aws:iam::123456789012:group/admins",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RoleARNFromCallerIdentity(tt.caller)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
