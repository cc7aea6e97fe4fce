package domain

// ExecutionStatus — статус выполнения run (Execution).
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCESS
//	                  ↘ FAILED
//	                  ↘ PARTIAL (часть шагов упала, но chain дошёл до конца)
//	          (или) → CANCELLED (отказ admission или дедлайн chain)
type ExecutionStatus string

const (
	// ExecutionStatusPending — execution создан, но ещё не начал выполняться.
	ExecutionStatusPending ExecutionStatus = "PENDING"

	// ExecutionStatusRunning — execution в процессе выполнения.
	ExecutionStatusRunning ExecutionStatus = "RUNNING"

	// ExecutionStatusSuccess — все выполненные шаги успешны (или пропущены по condition).
	ExecutionStatusSuccess ExecutionStatus = "SUCCESS"

	// ExecutionStatusFailed — run остановлен нетерпимой ошибкой, либо все шаги упали.
	ExecutionStatusFailed ExecutionStatus = "FAILED"

	// ExecutionStatusPartial — есть и успешные шаги, и толерируемые ошибки
	// (continue_on_failure), run дошёл до конца.
	ExecutionStatusPartial ExecutionStatus = "PARTIAL"

	// ExecutionStatusCancelled — run отклонён admission-контролем
	// или остановлен по общему дедлайну chain.
	ExecutionStatusCancelled ExecutionStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный (execution завершён).
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusSuccess, ExecutionStatusFailed, ExecutionStatusPartial, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}

// StepStatus — статус выполнения одного шага (StepExecution).
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCESS
//	                  ↘ FAILED (после исчерпания retry)
//	                  ↘ SKIPPED (condition не выполнен; retry не делается)
type StepStatus string

const (
	// StepStatusPending — шаг создан, но ещё не начал выполняться.
	StepStatusPending StepStatus = "PENDING"

	// StepStatusRunning — шаг выполняется.
	StepStatusRunning StepStatus = "RUNNING"

	// StepStatusSuccess — шаг успешно завершён.
	StepStatusSuccess StepStatus = "SUCCESS"

	// StepStatusFailed — шаг завершился ошибкой после всех retry.
	StepStatusFailed StepStatus = "FAILED"

	// StepStatusSkipped — condition шага не выполнен.
	// SKIPPED зарезервирован только за condition-пропусками: шаги,
	// не начатые из-за дедлайна chain, вообще не получают записи.
	StepStatusSkipped StepStatus = "SKIPPED"
)

// IsTerminal возвращает true, если статус финальный.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepStatusSuccess, StepStatusFailed, StepStatusSkipped:
		return true
	default:
		return false
	}
}

// OverlapPolicy — политика пересечения одновременных runs одного task.
type OverlapPolicy string

const (
	// OverlapAllow — новые runs стартуют всегда; running_count ведётся
	// только для наблюдаемости.
	OverlapAllow OverlapPolicy = "ALLOW"

	// OverlapSkip — при занятых max_instances слотах due run отбрасывается
	// (CANCELLED в истории), повторно не запускается.
	OverlapSkip OverlapPolicy = "SKIP"

	// OverlapQueue — при занятых слотах run встаёт в FIFO-очередь
	// (до max_queue_size), стартует при освобождении слота.
	OverlapQueue OverlapPolicy = "QUEUE"
)

// ParseOverlapPolicy парсит строку в OverlapPolicy.
// Неизвестные значения трактуются как ALLOW.
func ParseOverlapPolicy(s string) OverlapPolicy {
	switch s {
	case "SKIP":
		return OverlapSkip
	case "QUEUE":
		return OverlapQueue
	default:
		return OverlapAllow
	}
}
