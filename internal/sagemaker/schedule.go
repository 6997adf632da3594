package sagemaker

import (
	"fmt"
	"strings"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
)

// ScheduleExpression — выражение расписания для EventBridge Scheduler.
type ScheduleExpression struct {
	// Expression — выражение в формате EventBridge:
	// cron(...), rate(...) или at(...).
	Expression string

	// Timezone — часовой пояс расписания.
	Timezone string

	// StartDate — время начала действия расписания (для cron и rate).
	StartDate *time.Time

	// NextExecution — ожидаемое время первого запуска, если его
	// можно вычислить (rate и one-time).
	NextExecution *time.Time
}

// BuildScheduleExpression переводит ScheduleSpec в выражение
// EventBridge Scheduler.
//
// Правила:
//   - cron: выражение валидируется (6 или 7 полей AWS-формата)
//   - interval: rate(N minutes); интервалы меньше минуты округляются
//     вверх до одной минуты — EventBridge не принимает секунды
//   - one-time: at(...) в UTC; требуется RunOnceAt или StartTime
func BuildScheduleExpression(spec *domain.ScheduleSpec, now time.Time) (*ScheduleExpression, error) {
	tz := spec.Timezone
	if tz == "" {
		tz = "UTC"
	}

	out := &ScheduleExpression{Timezone: tz}
	if spec.StartTime != nil {
		utc := spec.StartTime.UTC()
		out.StartDate = &utc
	}

	switch {
	case spec.IsCron():
		expr, err := ValidateAWSCron(spec.CronExpr)
		if err != nil {
			return nil, err
		}
		out.Expression = fmt.Sprintf("cron(%s)", expr)

	case spec.IsInterval():
		minutes := spec.IntervalSec / 60
		if minutes < 1 {
			minutes = 1
		}
		out.Expression = fmt.Sprintf("rate(%d minutes)", minutes)

		base := now
		if spec.StartTime != nil {
			base = *spec.StartTime
		}
		next := base.Add(time.Duration(spec.IntervalSec) * time.Second).UTC()
		out.NextExecution = &next

	default:
		at := spec.RunOnceAt
		if at == nil {
			at = spec.StartTime
		}
		if at == nil {
			return nil, fmt.Errorf("a start time is required for a one-time schedule")
		}
		utc := at.UTC()
		out.Expression = fmt.Sprintf("at(%s)", utc.Format("2006-01-02T15:04:05"))
		out.NextExecution = &utc
	}

	return out, nil
}

// ValidateAWSCron проверяет cron-выражение AWS-формата и возвращает
// его без обёртки cron(...).
//
// AWS cron состоит из 6 или 7 полей:
// минуты часы день-месяца месяц день-недели [год].
func ValidateAWSCron(expr string) (string, error) {
	cleaned := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(expr), "cron("), ")")

	fields := strings.Fields(cleaned)
	if len(fields) != 6 && len(fields) != 7 {
		return "", fmt.Errorf(
			"invalid cron expression %q: AWS cron expressions have 6 or 7 fields "+
				"(minute hour day-of-month month day-of-week year), e.g. \"15 10 ? * 6L 2026\"",
			expr,
		)
	}

	return strings.Join(fields, " "), nil
}
