package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/conveyor/internal/executor"
	"github.com/shaiso/conveyor/internal/mq"
	"github.com/shaiso/conveyor/internal/repo"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 100
)

// Orchestrator управляет выполнением runs.
//
// Orchestrator:
//   - Получает due runs из очереди RabbitMQ (event-driven)
//   - Периодически проверяет pending executions в БД (polling fallback)
//   - Пропускает каждый run через admission-контроль
//   - Выполняет принятые runs в отдельных горутинах
//   - Персистирует Execution и StepExecution записи
//   - Публикует execution.completed и передаёт слот очереди
type Orchestrator struct {
	// Repositories
	taskRepo  *repo.TaskRepo
	chainRepo *repo.ChainRepo
	execRepo  *repo.ExecutionRepo

	// MQ (опционально: nil — режим polling-only)
	publisher *mq.Publisher
	conn      *mq.Connection

	// Admission и исполнение
	admission *Admission
	chains    *executor.ChainExecutor

	// Active executions — runs в обработке (включая ожидающих в очереди)
	active map[uuid.UUID]struct{}
	mu     sync.RWMutex

	// Consumer
	runConsumer *mq.Consumer

	// Configuration
	pollInterval time.Duration
	batchSize    int

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	runCtx     context.Context
	wg         sync.WaitGroup
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Repositories
	TaskRepo  *repo.TaskRepo
	ChainRepo *repo.ChainRepo
	ExecRepo  *repo.ExecutionRepo

	// MQ. Nil допустим: orchestrator работает только через polling.
	Publisher *mq.Publisher
	Conn      *mq.Connection

	// Chains — executor для прогона chain'ов.
	// Nil — создаётся executor с настройками по умолчанию.
	Chains *executor.ChainExecutor

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество executions за один poll (default: 100)

	// Logger
	Logger *slog.Logger
}

// New создаёт Orchestrator.
func New(cfg Config) *Orchestrator {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	chains := cfg.Chains
	if chains == nil {
		chains = executor.NewChainExecutor(executor.NewStepExecutor(nil, logger), logger)
	}

	return &Orchestrator{
		taskRepo:     cfg.TaskRepo,
		chainRepo:    cfg.ChainRepo,
		execRepo:     cfg.ExecRepo,
		publisher:    cfg.Publisher,
		conn:         cfg.Conn,
		admission:    NewAdmission(),
		chains:       chains,
		active:       make(map[uuid.UUID]struct{}),
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Start запускает Orchestrator: consumer runs.requested (если есть MQ)
// и polling-горутину.
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.cancelFunc = cancel
	o.runCtx = ctx

	o.logger.Info("starting orchestrator",
		"poll_interval", o.pollInterval,
		"batch_size", o.batchSize,
		"mq_enabled", o.conn != nil,
	)

	if o.conn != nil {
		o.runConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueRunsRequested),
			Handler:  o.handleRunRequested,
			Prefetch: 10,
		})

		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			if err := o.runConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				o.logger.Error("run consumer error", "error", err)
			}
		}()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.pollLoop(ctx)
	}()

	o.logger.Info("orchestrator started")
	return nil
}

// Stop останавливает Orchestrator и дожидается завершения горутин.
// Выполняющиеся runs прерываются и финализируются как CANCELLED.
func (o *Orchestrator) Stop() {
	o.logger.Info("stopping orchestrator...")

	if o.cancelFunc != nil {
		o.cancelFunc()
	}

	if o.runConsumer != nil {
		o.runConsumer.Stop()
	}

	o.wg.Wait()

	o.logger.Info("orchestrator stopped")
}

// pollLoop — цикл polling fallback.
func (o *Orchestrator) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте: подхватываем executions,
	// созданные пока orchestrator был выключен
	o.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (o *Orchestrator) poll(ctx context.Context) {
	execs, err := o.execRepo.ListPending(ctx, o.batchSize)
	if err != nil {
		o.logger.Error("failed to list pending executions", "error", err)
		return
	}

	if len(execs) == 0 {
		return
	}

	o.logger.Debug("poll found pending executions", "count", len(execs))

	for i := range execs {
		exec := &execs[i]

		if o.isActive(exec.ID) {
			continue
		}

		if err := o.processExecution(ctx, exec.ID); err != nil {
			if errors.Is(err, ErrExecutionNotPending) || errors.Is(err, ErrExecutionAlreadyActive) {
				continue
			}
			o.logger.Error("failed to process execution from poll",
				"execution_id", exec.ID,
				"error", err,
			)
		}
	}
}

// isActive проверяет, обрабатывается ли execution этим процессом.
func (o *Orchestrator) isActive(execID uuid.UUID) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, exists := o.active[execID]
	return exists
}

// markActive помечает execution как обрабатываемый.
func (o *Orchestrator) markActive(execID uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.active[execID]; exists {
		return ErrExecutionAlreadyActive
	}

	o.active[execID] = struct{}{}
	return nil
}

// removeActive снимает пометку.
func (o *Orchestrator) removeActive(execID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, execID)
}

// ActiveCount возвращает число executions в обработке.
func (o *Orchestrator) ActiveCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.active)
}
