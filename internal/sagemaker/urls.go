package sagemaker

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
)

// StudioURL строит ссылку на страницу выполнения pipeline
// в SageMaker Studio.
//
// Для ссылки нужен ID Studio domain — берётся первый domain аккаунта.
// Возвращает ошибку, если ARN не разбирается или domains нет.
func StudioURL(ctx context.Context, client DomainLister, executionARN string) (string, error) {
	arn := DissectExecutionARN(executionARN)
	if arn.Region == "" || arn.PipelineName == "" || arn.ExecutionID == "" {
		return "", fmt.Errorf("cannot dissect execution ARN %q", executionARN)
	}

	domains, err := client.ListDomains(ctx, &sagemaker.ListDomainsInput{})
	if err != nil {
		return "", fmt.Errorf("list studio domains: %w", err)
	}
	if len(domains.Domains) == 0 {
		return "", fmt.Errorf("no studio domains found")
	}
	domainID := domains.Domains[0].DomainId
	if domainID == nil {
		return "", fmt.Errorf("studio domain has no ID")
	}

	return fmt.Sprintf(
		"https://studio-%s.studio.%s.sagemaker.aws/pipelines/view/%s/executions/%s/graph",
		*domainID, arn.Region, arn.PipelineName, arn.ExecutionID,
	), nil
}

// LogsURL строит ссылку на логи выполнения в CloudWatch.
//
// Лог-группа зависит от типа jobs: Training или Processing.
func LogsURL(executionARN string, useTrainingJobs bool) (string, error) {
	arn := DissectExecutionARN(executionARN)
	if arn.Region == "" || arn.ExecutionID == "" {
		return "", fmt.Errorf("cannot dissect execution ARN %q", executionARN)
	}

	jobType := "Processing"
	if useTrainingJobs {
		jobType = "Training"
	}

	return fmt.Sprintf(
		"https://%s.console.aws.amazon.com/cloudwatch/home?region=%s"+
			"#logsV2:log-groups/log-group/$252Faws$252Fsagemaker$252F%sJobs$3FlogStreamNameFilter$3Dpipelines-%s-",
		arn.Region, arn.Region, jobType, arn.ExecutionID,
	), nil
}

// TriggerURL строит ссылку на расписание в консоли EventBridge Scheduler.
func TriggerURL(scheduleARN string) (string, error) {
	region, name, err := DissectScheduleARN(scheduleARN)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		"https://%s.console.aws.amazon.com/scheduler/home?region=%s#schedules/%s",
		region, region, name,
	), nil
}
