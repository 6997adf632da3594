package launcher

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssm "github.com/aws/aws-sdk-go-v2/service/sagemaker"
	smtypes "github.com/aws/aws-sdk-go-v2/service/sagemaker/types"
	schedtypes "github.com/aws/aws-sdk-go-v2/service/scheduler/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/sagemaker"
)

// --- Fakes ---

type fakePipelineAPI struct {
	createErr   error
	createCalls int
	updateCalls int
	startCalls  int

	lastDefinition string
}

func (f *fakePipelineAPI) CreatePipeline(_ context.Context, in *awssm.CreatePipelineInput, _ ...func(*awssm.Options)) (*awssm.CreatePipelineOutput, error) {
	f.createCalls++
	f.lastDefinition = aws.ToString(in.PipelineDefinition)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &awssm.CreatePipelineOutput{
		PipelineArn: aws.String("arn:aws:sagemaker:eu-west-1:123456789012:pipeline/" + aws.ToString(in.PipelineName)),
	}, nil
}

func (f *fakePipelineAPI) UpdatePipeline(_ context.Context, in *awssm.UpdatePipelineInput, _ ...func(*awssm.Options)) (*awssm.UpdatePipelineOutput, error) {
	f.updateCalls++
	f.lastDefinition = aws.ToString(in.PipelineDefinition)
	return &awssm.UpdatePipelineOutput{
		PipelineArn: aws.String("arn:aws:sagemaker:eu-west-1:123456789012:pipeline/" + aws.ToString(in.PipelineName)),
	}, nil
}

func (f *fakePipelineAPI) StartPipelineExecution(_ context.Context, in *awssm.StartPipelineExecutionInput, _ ...func(*awssm.Options)) (*awssm.StartPipelineExecutionOutput, error) {
	f.startCalls++
	return &awssm.StartPipelineExecutionOutput{
		PipelineExecutionArn: aws.String("arn:aws:sagemaker:eu-west-1:123456789012:pipeline/" + aws.ToString(in.PipelineName) + "/execution/abc123"),
	}, nil
}

func (f *fakePipelineAPI) StopPipelineExecution(_ context.Context, _ *awssm.StopPipelineExecutionInput, _ ...func(*awssm.Options)) (*awssm.StopPipelineExecutionOutput, error) {
	return &awssm.StopPipelineExecutionOutput{}, nil
}

func (f *fakePipelineAPI) DescribePipelineExecution(_ context.Context, _ *awssm.DescribePipelineExecutionInput, _ ...func(*awssm.Options)) (*awssm.DescribePipelineExecutionOutput, error) {
	return &awssm.DescribePipelineExecutionOutput{
		PipelineExecutionStatus: smtypes.PipelineExecutionStatusSucceeded,
	}, nil
}

func (f *fakePipelineAPI) ListDomains(_ context.Context, _ *awssm.ListDomainsInput, _ ...func(*awssm.Options)) (*awssm.ListDomainsOutput, error) {
	return &awssm.ListDomainsOutput{}, nil
}

type fakeIdentityAPI struct {
	arn   string
	calls int
}

func (f *fakeIdentityAPI) GetCallerIdentity(_ context.Context, _ *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	f.calls++
	return &sts.GetCallerIdentityOutput{Arn: aws.String(f.arn)}, nil
}

// --- Pipeline registration ---

func TestEnsurePipeline_CreatesNew(t *testing.T) {
	sm := &fakePipelineAPI{}
	l := &Launcher{sm: sm, awsCfg: sagemaker.Config{ExecutionRole: "arn:aws:iam::123456789012:role/exec"}}

	arn, err := l.ensurePipeline(context.Background(), "my-pipeline", `{"Version":"2020-12-01"}`, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if arn != "arn:aws:sagemaker:eu-west-1:123456789012:pipeline/my-pipeline" {
		t.Errorf("unexpected pipeline ARN: %s", arn)
	}
	if sm.createCalls != 1 {
		t.Errorf("expected 1 create call, got %d", sm.createCalls)
	}
	if sm.updateCalls != 0 {
		t.Errorf("expected no update calls, got %d", sm.updateCalls)
	}
}

func TestEnsurePipeline_UpdatesExisting(t *testing.T) {
	sm := &fakePipelineAPI{createErr: &smtypes.ResourceInUse{Message: aws.String("pipeline already exists")}}
	l := &Launcher{sm: sm, awsCfg: sagemaker.Config{ExecutionRole: "arn:aws:iam::123456789012:role/exec"}}

	arn, err := l.ensurePipeline(context.Background(), "my-pipeline", `{"Version":"2020-12-01"}`, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if arn == "" {
		t.Error("expected pipeline ARN from update")
	}
	if sm.updateCalls != 1 {
		t.Errorf("expected 1 update call, got %d", sm.updateCalls)
	}
}

// --- Scheduler role resolution ---

func TestResolveSchedulerRole_Explicit(t *testing.T) {
	identity := &fakeIdentityAPI{}
	l := &Launcher{
		sts:    identity,
		awsCfg: sagemaker.Config{SchedulerRole: "arn:aws:iam::123456789012:role/scheduler"},
	}

	role, err := l.resolveSchedulerRole(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if role != "arn:aws:iam::123456789012:role/scheduler" {
		t.Errorf("unexpected role: %s", role)
	}
	if identity.calls != 0 {
		t.Error("caller identity should not be queried when role is configured")
	}
}

func TestResolveSchedulerRole_FromCallerIdentity(t *testing.T) {
	identity := &fakeIdentityAPI{
		arn: "arn:aws:sts::123456789012:assumed-role/my-role/session-name",
	}
	l := &Launcher{sts: identity}

	role, err := l.resolveSchedulerRole(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if role != "arn:aws:iam::123456789012:role/my-role" {
		t.Errorf("unexpected derived role: %s", role)
	}
	if identity.calls != 1 {
		t.Errorf("expected 1 caller identity call, got %d", identity.calls)
	}
}

// --- Tags ---

func TestBuildAWSTags(t *testing.T) {
	tags := buildAWSTags(map[string]string{"team": "ml", "env": "prod"})

	if len(tags) != 2 {
		t.Fatalf("expected 2 tags, got %d", len(tags))
	}
	seen := map[string]string{}
	for _, tag := range tags {
		seen[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	if seen["team"] != "ml" || seen["env"] != "prod" {
		t.Errorf("unexpected tags: %v", seen)
	}
}

func TestBuildAWSTags_Empty(t *testing.T) {
	if buildAWSTags(nil) != nil {
		t.Error("expected nil for empty tag map")
	}
}

// --- Schedule conflicts ---

func TestIsScheduleConflict(t *testing.T) {
	conflict := &schedtypes.ConflictException{Message: aws.String("Schedule already exists")}

	if !isScheduleConflict(conflict) {
		t.Error("ConflictException should be recognized as a schedule conflict")
	}
	if !isScheduleConflict(fmt.Errorf("create EventBridge schedule: %w", conflict)) {
		t.Error("wrapped ConflictException should be recognized as a schedule conflict")
	}
	if isScheduleConflict(errors.New("throttled")) {
		t.Error("unrelated error should not be treated as a schedule conflict")
	}
}

// --- Run guard ---

func TestAcquireReleaseRun(t *testing.T) {
	l := &Launcher{activeRuns: make(map[uuid.UUID]struct{})}
	runID := uuid.New()

	if !l.acquireRun(runID) {
		t.Fatal("first acquire should succeed")
	}
	if l.acquireRun(runID) {
		t.Error("second acquire of the same run should fail")
	}

	l.releaseRun(runID)

	if !l.acquireRun(runID) {
		t.Error("acquire after release should succeed")
	}
}
