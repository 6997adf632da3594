package sagemaker

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sagemaker/types"

	"github.com/shaiso/Conveyor/internal/domain"
)

func TestMapExecutionStatus(t *testing.T) {
	tests := []struct {
		in   types.PipelineExecutionStatus
		want domain.ExecutionStatus
	}{
		{types.PipelineExecutionStatusExecuting, domain.StatusRunning},
		{types.PipelineExecutionStatusStopping, domain.StatusRunning},
		{types.PipelineExecutionStatusStopped, domain.StatusFailed},
		{types.PipelineExecutionStatusFailed, domain.StatusFailed},
		{types.PipelineExecutionStatusSucceeded, domain.StatusSucceeded},
	}

	for _, tt := range tests {
		got, err := MapExecutionStatus(tt.in)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("%s: got %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestMapExecutionStatusUnknown(t *testing.T) {
	if _, err := MapExecutionStatus(types.PipelineExecutionStatus("Archived")); err == nil {
		t.Fatal("expected error for an unknown status")
	}
}
