package sagemaker

import (
	"context"
	"errors"
	"testing"
	"time"

	awssagemaker "github.com/aws/aws-sdk-go-v2/service/sagemaker"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker/types"

	"github.com/shaiso/Conveyor/internal/domain"
)

type fakeDescriber struct {
	statuses []types.PipelineExecutionStatus
	err      error
	calls    int
}

func (f *fakeDescriber) DescribePipelineExecution(ctx context.Context, in *awssagemaker.DescribePipelineExecutionInput, optFns ...func(*awssagemaker.Options)) (*awssagemaker.DescribePipelineExecutionOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	status := f.statuses[f.calls]
	if f.calls < len(f.statuses)-1 {
		f.calls++
	}
	return &awssagemaker.DescribePipelineExecutionOutput{PipelineExecutionStatus: status}, nil
}

func TestFetchExecutionStatus(t *testing.T) {
	client := &fakeDescriber{statuses: []types.PipelineExecutionStatus{types.PipelineExecutionStatusExecuting}}

	got, err := FetchExecutionStatus(context.Background(), client, testExecutionARN)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != domain.StatusRunning {
		t.Errorf("got %s, want %s", got, domain.StatusRunning)
	}
}

func TestFetchExecutionStatusError(t *testing.T) {
	client := &fakeDescriber{err: errors.New("throttled")}
	if _, err := FetchExecutionStatus(context.Background(), client, testExecutionARN); err == nil {
		t.Fatal("expected error from the API to propagate")
	}
}

func TestWaitForExecutionSucceeds(t *testing.T) {
	client := &fakeDescriber{statuses: []types.PipelineExecutionStatus{
		types.PipelineExecutionStatusExecuting,
		types.PipelineExecutionStatusExecuting,
		types.PipelineExecutionStatusSucceeded,
	}}

	got, err := WaitForExecution(context.Background(), client, testExecutionARN, time.Millisecond, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != domain.StatusSucceeded {
		t.Errorf("got %s, want %s", got, domain.StatusSucceeded)
	}
}

func TestWaitForExecutionTimesOut(t *testing.T) {
	client := &fakeDescriber{statuses: []types.PipelineExecutionStatus{types.PipelineExecutionStatusExecuting}}

	_, err := WaitForExecution(context.Background(), client, testExecutionARN, time.Millisecond, 3)
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("got %v, want ErrWaitTimeout", err)
	}
}

func TestWaitForExecutionCancelled(t *testing.T) {
	client := &fakeDescriber{statuses: []types.PipelineExecutionStatus{types.PipelineExecutionStatusExecuting}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WaitForExecution(ctx, client, testExecutionARN, time.Minute, 10)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}
