package sagemaker

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssagemaker "github.com/aws/aws-sdk-go-v2/service/sagemaker"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker/types"
)

const testExecutionARN = "arn:aws:sagemaker:eu-west-1:123456789012:pipeline/train-fraud-model/execution/abc123"

type fakeDomainLister struct {
	domains []types.DomainDetails
	err     error
}

func (f *fakeDomainLister) ListDomains(ctx context.Context, in *awssagemaker.ListDomainsInput, optFns ...func(*awssagemaker.Options)) (*awssagemaker.ListDomainsOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &awssagemaker.ListDomainsOutput{Domains: f.domains}, nil
}

func TestStudioURL(t *testing.T) {
	client := &fakeDomainLister{domains: []types.DomainDetails{{DomainId: aws.String("d-xyz")}}}

	got, err := StudioURL(context.Background(), client, testExecutionARN)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://studio-d-xyz.studio.eu-west-1.sagemaker.aws/pipelines/view/train-fraud-model/executions/abc123/graph"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStudioURLNoDomains(t *testing.T) {
	client := &fakeDomainLister{}
	if _, err := StudioURL(context.Background(), client, testExecutionARN); err == nil {
		t.Fatal("expected error when no studio domains exist")
	}
}

func TestStudioURLBadARN(t *testing.T) {
	client := &fakeDomainLister{domains: []types.DomainDetails{{DomainId: aws.String("d-xyz")}}}
	if _, err := StudioURL(context.Background(), client, "garbage"); err == nil {
		t.Fatal("expected error for a malformed execution ARN")
	}
}

func TestLogsURL(t *testing.T) {
	got, err := LogsURL(testExecutionARN, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "eu-west-1.console.aws.amazon.com/cloudwatch") {
		t.Errorf("missing console host: %q", got)
	}
	if !strings.Contains(got, "TrainingJobs") {
		t.Errorf("expected Training log group: %q", got)
	}
	if !strings.Contains(got, "pipelines-abc123-") {
		t.Errorf("missing log stream filter: %q", got)
	}

	got, err = LogsURL(testExecutionARN, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "ProcessingJobs") {
		t.Errorf("expected Processing log group: %q", got)
	}
}

func TestTriggerURL(t *testing.T) {
	got, err := TriggerURL("arn:aws:scheduler:us-east-1:123456789012:schedule/default/nightly")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://us-east-1.console.aws.amazon.com/scheduler/home?region=us-east-1#schedules/default/nightly"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
