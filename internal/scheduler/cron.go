package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Conveyor/internal/domain"
)

// cronParser — парсер cron-выражений (пятипольный формат).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextExecution вычисляет следующее время запуска расписания.
//
// Для cron учитывается timezone расписания; для интервала — from + interval;
// для однократного запуска возвращается его время.
// Результат всегда в UTC (для хранения в БД).
func NextExecution(spec *domain.ScheduleSpec, from time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(timezoneOrUTC(spec.Timezone))
	if err != nil {
		// Fallback на UTC если timezone невалидный
		loc = time.UTC
	}

	fromInTz := from.In(loc)

	switch {
	case spec.IsCron():
		return nextCron(spec.CronExpr, fromInTz)

	case spec.IsInterval():
		return fromInTz.Add(time.Duration(spec.IntervalSec) * time.Second).UTC(), nil

	default:
		at := spec.RunOnceAt
		if at == nil {
			at = spec.StartTime
		}
		if at == nil {
			return time.Time{}, fmt.Errorf("one-time schedule has no start time")
		}
		return at.UTC(), nil
	}
}

// CalculateNextDue вычисляет next_due_at для schedule.
func CalculateNextDue(sched *domain.Schedule, from time.Time) (time.Time, error) {
	return NextExecution(&sched.Spec, from)
}

// nextCron вычисляет следующее время по AWS cron-выражению.
//
// AWS формат (6-7 полей, с годом и '?') сводится к пятипольному:
// год и секунды отбрасываются, '?' трактуется как '*'.
func nextCron(cronExpr string, from time.Time) (time.Time, error) {
	expr, err := normalizeAWSCron(cronExpr)
	if err != nil {
		return time.Time{}, err
	}

	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}

	return schedule.Next(from).UTC(), nil
}

// ValidateCronExpr проверяет валидность cron-выражения в формате AWS.
func ValidateCronExpr(cronExpr string) error {
	expr, err := normalizeAWSCron(cronExpr)
	if err != nil {
		return err
	}
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return nil
}

// normalizeAWSCron приводит AWS cron-выражение к пятипольному виду.
func normalizeAWSCron(cronExpr string) (string, error) {
	expr := strings.TrimSpace(cronExpr)
	if strings.HasPrefix(expr, "cron(") && strings.HasSuffix(expr, ")") {
		expr = strings.TrimSuffix(strings.TrimPrefix(expr, "cron("), ")")
	}

	fields := strings.Fields(expr)
	if len(fields) != 6 && len(fields) != 7 {
		return "", fmt.Errorf(
			"cron expression %q must have 6 or 7 fields (minute hour day-of-month month day-of-week year)", cronExpr,
		)
	}

	// Семипольный вариант начинается с секунд; поле года в конце
	// отбрасывается в обоих вариантах.
	if len(fields) == 7 {
		fields = fields[1:]
	}
	fields = fields[:5]

	for i, f := range fields {
		if f == "?" {
			fields[i] = "*"
		}
	}

	return strings.Join(fields, " "), nil
}

func timezoneOrUTC(tz string) string {
	if tz == "" {
		return "UTC"
	}
	return tz
}
