package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/conveyor/internal/domain"
)

// cronParser — парсер пятипольных cron-выражений
// (минуты часы дни месяцы дни_недели).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// CalculateNextDue вычисляет следующее due-время task'а после from.
//
// Для cron-tasks — следующее срабатывание выражения в timezone task'а.
// Для one-shot tasks (run_at) возвращается нулевое время: после запуска
// task больше не due.
func CalculateNextDue(task *domain.Task, from time.Time) (time.Time, error) {
	if task.IsCron() {
		loc := taskLocation(task)
		return calculateNextCron(task.CronExpr, from.In(loc))
	}

	if task.IsDelayed() {
		return time.Time{}, nil
	}

	return time.Time{}, fmt.Errorf("task has neither cron_expr nor run_at")
}

// CalculateInitialNextDue вычисляет первое due-время нового task'а.
// Используется на границе сохранения (API).
func CalculateInitialNextDue(task *domain.Task, now time.Time) (time.Time, error) {
	if task.IsCron() {
		loc := taskLocation(task)
		return calculateNextCron(task.CronExpr, now.In(loc))
	}

	if task.IsDelayed() {
		return task.RunAt.UTC(), nil
	}

	return time.Time{}, fmt.Errorf("task has neither cron_expr nor run_at")
}

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(cronExpr string) error {
	_, err := cronParser.Parse(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return nil
}

// calculateNextCron вычисляет следующее срабатывание cron-выражения.
func calculateNextCron(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}

	// UTC для хранения в БД
	return schedule.Next(from).UTC(), nil
}

// taskLocation возвращает timezone task'а. Невалидный — fallback на UTC.
func taskLocation(task *domain.Task) *time.Location {
	if task.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(task.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
