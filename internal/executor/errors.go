package executor

import "errors"

var (
	// ErrBadStatus — ответ получен, но статус-код классифицирован как ошибка.
	ErrBadStatus = errors.New("bad http status")

	// ErrInterrupted — выполнение прервано дедлайном chain или остановкой
	// orchestrator'а.
	ErrInterrupted = errors.New("execution interrupted")
)
