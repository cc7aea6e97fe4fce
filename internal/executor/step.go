package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shaiso/conveyor/internal/domain"
	"github.com/shaiso/conveyor/internal/engine"
)

// maxResponseBytes — предел чтения тела ответа.
const maxResponseBytes = 1 << 20

// StepOutcome — итог выполнения одного шага.
type StepOutcome struct {
	// Status — SUCCESS, SKIPPED или FAILED.
	Status domain.StepStatus

	// StatusCode — HTTP-код последнего ответа. 0, если ответа не было.
	StatusCode int

	// Body — тело последнего ответа.
	Body []byte

	// Extracted — переменные, извлечённые из тела по правилам шага.
	// Заполняется только для SUCCESS и SKIPPED.
	Extracted map[string]string

	// Attempts — сколько вызовов было сделано.
	Attempts int

	// Err — последняя ошибка при FAILED.
	Err error
}

// StepExecutor выполняет один шаг chain: интерполирует шаблоны,
// делает HTTP-вызов с retry, классифицирует исход и извлекает переменные.
type StepExecutor struct {
	client *http.Client
	logger *slog.Logger
}

// NewStepExecutor создаёт StepExecutor.
// nil client и nil logger заменяются значениями по умолчанию.
func NewStepExecutor(client *http.Client, logger *slog.Logger) *StepExecutor {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StepExecutor{client: client, logger: logger}
}

// Run выполняет шаг с binding'ами b.
//
// Классификация исхода:
//   - condition задан: выполнен → SUCCESS, не выполнен → SKIPPED (без retry);
//     condition заменяет правило по статус-коду целиком
//   - condition не задан: код < 400 → SUCCESS, иначе ошибка с retry
//   - transport-ошибки (таймаут, connection refused) ретраятся всегда
//
// Извлечение переменных выполняется для SUCCESS и SKIPPED: condition —
// ворота продолжения chain, не запрет на чтение ответа.
func (e *StepExecutor) Run(ctx context.Context, step *domain.ChainStep, b engine.Bindings) *StepOutcome {
	out := &StepOutcome{Status: domain.StepStatusFailed}

	cond, err := engine.Compile(step.Condition)
	if err != nil {
		// Ошибка конфигурации condition: шаг падает без единого вызова.
		out.Err = err
		return out
	}

	attempts := 1 + step.RetryCount
	for attempt := 1; attempt <= attempts; attempt++ {
		out.Attempts = attempt

		code, body, err := e.call(ctx, step, b)
		if err != nil {
			out.Err = err
			if ctx.Err() != nil {
				return out
			}
			e.logger.Warn("step call failed",
				"step_order", step.StepOrder,
				"attempt", attempt,
				"error", err)
			if attempt < attempts && !e.wait(ctx, step.RetryDelay()) {
				return out
			}
			continue
		}

		out.StatusCode = code
		out.Body = body
		out.Err = nil

		if cond != nil {
			if cond.Satisfied(code, body) {
				out.Status = domain.StepStatusSuccess
			} else {
				out.Status = domain.StepStatusSkipped
			}
			out.Extracted = engine.Extract(body, step.ExtractVariables)
			return out
		}

		if code < 400 {
			out.Status = domain.StepStatusSuccess
			out.Extracted = engine.Extract(body, step.ExtractVariables)
			return out
		}

		out.Err = fmt.Errorf("%w: %d", ErrBadStatus, code)
		e.logger.Warn("step returned error status",
			"step_order", step.StepOrder,
			"attempt", attempt,
			"status_code", code)
		if attempt < attempts && !e.wait(ctx, step.RetryDelay()) {
			return out
		}
	}

	return out
}

// call делает один HTTP-вызов шага с per-step таймаутом.
func (e *StepExecutor) call(ctx context.Context, step *domain.ChainStep, b engine.Bindings) (int, []byte, error) {
	url := engine.Render(step.URL, b)
	method := strings.ToUpper(step.Method)
	if method == "" {
		method = http.MethodGet
	}

	var reqBody io.Reader
	rendered := engine.Render(step.Body, b)
	if rendered != "" {
		reqBody = strings.NewReader(rendered)
	}

	callCtx, cancel := context.WithTimeout(ctx, step.CallTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, method, url, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range engine.RenderHeaders(step.Headers, b) {
		req.Header.Set(k, v)
	}
	if reqBody != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("call %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// wait ждёт задержку между попытками. Возвращает false, если контекст
// отменён раньше.
func (e *StepExecutor) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
