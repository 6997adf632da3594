package sagemaker

import (
	"fmt"
	"regexp"
	"strings"
)

// Регулярные выражения для разбора ARN pipeline execution.
var (
	regionRe    = regexp.MustCompile(`sagemaker:(.*?):`)
	pipelineRe  = regexp.MustCompile(`pipeline/(.*?)/execution`)
	executionRe = regexp.MustCompile(`execution/(.*)`)

	// arn:aws:sts::123456789012:assumed-role/role-name/session-name
	// → arn:aws:iam::123456789012:role/role-name
	assumedRoleRe = regexp.MustCompile(`arn:aws:sts::(\d+):assumed-role/([^/]+)/.*`)
)

// ExecutionARN — составные части ARN pipeline execution.
type ExecutionARN struct {
	// Region — регион AWS (например, "eu-west-1").
	Region string

	// PipelineName — имя pipeline.
	PipelineName string

	// ExecutionID — идентификатор выполнения.
	ExecutionID string
}

// DissectExecutionARN извлекает регион, имя pipeline и ID выполнения
// из ARN вида
// arn:aws:sagemaker:eu-west-1:123456789012:pipeline/name/execution/id.
//
// Отсутствующие части остаются пустыми строками.
func DissectExecutionARN(arn string) ExecutionARN {
	var out ExecutionARN

	if m := regionRe.FindStringSubmatch(arn); m != nil {
		out.Region = m[1]
	}
	if m := pipelineRe.FindStringSubmatch(arn); m != nil {
		out.PipelineName = m[1]
	}
	if m := executionRe.FindStringSubmatch(arn); m != nil {
		out.ExecutionID = m[1]
	}

	return out
}

// DissectScheduleARN извлекает регион и имя (включая группу)
// из ARN расписания EventBridge вида
// arn:aws:scheduler:eu-west-1:123456789012:schedule/group/name.
func DissectScheduleARN(arn string) (region, name string, err error) {
	parts := strings.Split(arn, ":")
	if len(parts) < 6 || !strings.HasPrefix(parts[5], "schedule/") {
		return "", "", fmt.Errorf("invalid EventBridge schedule ARN: %q", arn)
	}

	return parts[3], strings.TrimPrefix(parts[5], "schedule/"), nil
}

// RoleARNFromCallerIdentity выводит IAM role ARN из ARN caller identity.
//
//   - user ARN возвращается как есть (credentials IAM пользователя)
//   - assumed-role ARN переписывается в ARN роли
//   - role ARN возвращается как есть
//   - всё остальное — ошибка
func RoleARNFromCallerIdentity(callerARN string) (string, error) {
	switch {
	case strings.Contains(callerARN, ":user/"):
		return callerARN, nil
	case strings.Contains(callerARN, ":assumed-role/"):
		return assumedRoleRe.ReplaceAllString(callerARN, "arn:aws:iam::$1:role/$2"), nil
	case strings.Contains(callerARN, ":role/"):
		return callerARN, nil
	default:
		return "", fmt.Errorf(
			"caller identity %q is neither a user nor a role, cannot derive a scheduler role", callerARN,
		)
	}
}
