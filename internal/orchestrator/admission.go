package orchestrator

import (
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/conveyor/internal/domain"
)

// Decision — исход admission-контроля для одного due run'а.
type Decision int

const (
	// DecisionStart — слот свободен, run стартует немедленно.
	DecisionStart Decision = iota

	// DecisionEnqueue — слоты заняты, run встал в FIFO-очередь task'а.
	DecisionEnqueue

	// DecisionReject — run отклонён; в истории остаётся CANCELLED-запись
	// с причиной.
	DecisionReject
)

// String возвращает имя решения для логов.
func (d Decision) String() string {
	switch d {
	case DecisionStart:
		return "start"
	case DecisionEnqueue:
		return "enqueue"
	case DecisionReject:
		return "reject"
	default:
		return "unknown"
	}
}

// Причины отклонения. Попадают в Execution.Reason как есть.
const (
	ReasonSkipped   = "overlap policy: skip"
	ReasonQueueFull = "queue full"
)

// Admission — admission-контроль runs: считает занятые слоты по task'ам
// и применяет overlap policy.
//
// Состояние живёт в памяти одного orchestrator-процесса: создаётся лениво
// при первом due run task'а и убирается, когда у task'а не осталось
// ни выполняющихся, ни ожидающих runs.
type Admission struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*taskSlots
}

// taskSlots — счётчик занятых слотов и FIFO-очередь ожидающих runs
// одного task.
type taskSlots struct {
	running int
	queue   []uuid.UUID
}

// NewAdmission создаёт пустой admission-контроль.
func NewAdmission() *Admission {
	return &Admission{tasks: make(map[uuid.UUID]*taskSlots)}
}

// Admit решает судьбу due run'а execID по overlap policy task'а.
//
//   - ALLOW  — run стартует всегда, слоты считаются только для наблюдаемости
//   - SKIP   — при занятых max_instances слотах run отклоняется
//   - QUEUE  — при занятых слотах run встаёт в очередь (до max_queue_size),
//     при переполнении отклоняется
//
// Для DecisionReject вторым значением возвращается причина.
func (a *Admission) Admit(task *domain.Task, execID uuid.UUID) (Decision, string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	slots := a.tasks[task.ID]
	if slots == nil {
		slots = &taskSlots{}
		a.tasks[task.ID] = slots
	}

	switch task.OverlapPolicy {
	case domain.OverlapSkip:
		if slots.running >= task.EffectiveMaxInstances() {
			return DecisionReject, ReasonSkipped
		}
	case domain.OverlapQueue:
		if slots.running >= task.EffectiveMaxInstances() {
			if task.MaxQueueSize > 0 && len(slots.queue) >= task.MaxQueueSize {
				return DecisionReject, ReasonQueueFull
			}
			slots.queue = append(slots.queue, execID)
			return DecisionEnqueue, ""
		}
	}

	slots.running++
	return DecisionStart, ""
}

// Release освобождает слот завершившегося run'а.
//
// Если в очереди task'а ждёт run, слот немедленно переходит к голове
// очереди: возвращается её execution ID и true, счётчик running
// не меняется. Иначе счётчик уменьшается; опустевшее состояние task'а
// удаляется.
func (a *Admission) Release(taskID uuid.UUID) (uuid.UUID, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	slots := a.tasks[taskID]
	if slots == nil {
		return uuid.Nil, false
	}

	if len(slots.queue) > 0 {
		next := slots.queue[0]
		slots.queue = slots.queue[1:]
		return next, true
	}

	if slots.running > 0 {
		slots.running--
	}
	if slots.running == 0 {
		delete(a.tasks, taskID)
	}
	return uuid.Nil, false
}

// Running возвращает число выполняющихся runs task'а.
func (a *Admission) Running(taskID uuid.UUID) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if slots := a.tasks[taskID]; slots != nil {
		return slots.running
	}
	return 0
}

// Queued возвращает длину очереди ожидающих runs task'а.
func (a *Admission) Queued(taskID uuid.UUID) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if slots := a.tasks[taskID]; slots != nil {
		return len(slots.queue)
	}
	return 0
}
