package sagemaker

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Config — конфигурация доступа к AWS.
//
// Авторизация (в порядке приоритета):
//  1. Явные AccessKeyID/SecretAccessKey
//  2. Именованный профиль (Profile)
//  3. Цепочка по умолчанию (env, instance profile, ...)
//
// Если задан AuthRoleARN, поверх полученных credentials
// выполняется AssumeRole.
type Config struct {
	// Region — регион AWS.
	Region string

	// Profile — имя профиля AWS config.
	Profile string

	// AccessKeyID и SecretAccessKey — явные credentials.
	AccessKeyID     string
	SecretAccessKey string

	// AuthRoleARN — роль, которую нужно принять для работы с SageMaker.
	AuthRoleARN string

	// ExecutionRole — IAM роль, под которой выполняются jobs.
	ExecutionRole string

	// SchedulerRole — IAM роль для EventBridge Scheduler.
	// Пустая строка — вывести из caller identity.
	SchedulerRole string

	// UseTrainingStep — выполнять шаги как Training jobs по умолчанию.
	UseTrainingStep *bool
}

// ConfigFromEnv читает конфигурацию AWS из переменных окружения.
func ConfigFromEnv() Config {
	return Config{
		Region:          os.Getenv("AWS_REGION"),
		Profile:         os.Getenv("AWS_PROFILE"),
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		AuthRoleARN:     os.Getenv("CONVEYOR_AWS_AUTH_ROLE"),
		ExecutionRole:   os.Getenv("CONVEYOR_EXECUTION_ROLE"),
		SchedulerRole:   os.Getenv("CONVEYOR_SCHEDULER_ROLE"),
	}
}

// PipelineAPI — используемая часть клиента SageMaker.
type PipelineAPI interface {
	CreatePipeline(ctx context.Context, in *sagemaker.CreatePipelineInput, optFns ...func(*sagemaker.Options)) (*sagemaker.CreatePipelineOutput, error)
	UpdatePipeline(ctx context.Context, in *sagemaker.UpdatePipelineInput, optFns ...func(*sagemaker.Options)) (*sagemaker.UpdatePipelineOutput, error)
	StartPipelineExecution(ctx context.Context, in *sagemaker.StartPipelineExecutionInput, optFns ...func(*sagemaker.Options)) (*sagemaker.StartPipelineExecutionOutput, error)
	StopPipelineExecution(ctx context.Context, in *sagemaker.StopPipelineExecutionInput, optFns ...func(*sagemaker.Options)) (*sagemaker.StopPipelineExecutionOutput, error)
	DescribePipelineExecution(ctx context.Context, in *sagemaker.DescribePipelineExecutionInput, optFns ...func(*sagemaker.Options)) (*sagemaker.DescribePipelineExecutionOutput, error)
	ListDomains(ctx context.Context, in *sagemaker.ListDomainsInput, optFns ...func(*sagemaker.Options)) (*sagemaker.ListDomainsOutput, error)
}

// DomainLister — часть клиента SageMaker для поиска Studio domains.
type DomainLister interface {
	ListDomains(ctx context.Context, in *sagemaker.ListDomainsInput, optFns ...func(*sagemaker.Options)) (*sagemaker.ListDomainsOutput, error)
}

// SchedulerAPI — используемая часть клиента EventBridge Scheduler.
type SchedulerAPI interface {
	CreateSchedule(ctx context.Context, in *scheduler.CreateScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.CreateScheduleOutput, error)
	DeleteSchedule(ctx context.Context, in *scheduler.DeleteScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.DeleteScheduleOutput, error)
}

// IdentityAPI — используемая часть клиента STS.
type IdentityAPI interface {
	GetCallerIdentity(ctx context.Context, in *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Clients — сконфигурированные AWS клиенты.
type Clients struct {
	SageMaker PipelineAPI
	Scheduler SchedulerAPI
	STS       IdentityAPI
}

// NewClients создаёт AWS клиенты по конфигурации.
func NewClients(ctx context.Context, cfg Config) (*Clients, error) {
	var opts []func(*config.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	if cfg.AuthRoleARN != "" {
		stsClient := sts.NewFromConfig(awsCfg)
		provider := stscreds.NewAssumeRoleProvider(stsClient, cfg.AuthRoleARN, func(o *stscreds.AssumeRoleOptions) {
			o.RoleSessionName = "conveyor-sagemaker-launcher"
		})
		awsCfg.Credentials = aws.NewCredentialsCache(provider)
	}

	return &Clients{
		SageMaker: sagemaker.NewFromConfig(awsCfg),
		Scheduler: scheduler.NewFromConfig(awsCfg),
		STS:       sts.NewFromConfig(awsCfg),
	}, nil
}
