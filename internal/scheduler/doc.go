// Package scheduler создаёт runs для due tasks.
//
// Scheduler периодически проверяет tasks с истекшим next_due_at
// и создаёт pending executions, которые подхватывает orchestrator.
//
// Структура:
//   - scheduler.go — основная логика (Tick, processTask)
//   - cron.go      — cron-выражения, timezone, вычисление next_due_at
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    TaskRepo:  taskRepo,
//	    ExecRepo:  execRepo,
//	    Publisher: publisher, // опционально
//	    Logger:    logger,
//	})
//
//	// Вызывается каждый тик (обычно раз в секунду)
//	if err := sched.Tick(ctx); err != nil {
//	    logger.Error("scheduler tick failed", "error", err)
//	}
//
// Leader Election:
//
// Scheduler не реализует leader election самостоятельно.
// Это делается в main.go через pg_try_advisory_lock.
// Метод Tick() вызывается только лидером.
package scheduler
