package api

import (
	"log/slog"

	"github.com/shaiso/conveyor/internal/mq"
	"github.com/shaiso/conveyor/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	taskRepo  *repo.TaskRepo
	chainRepo *repo.ChainRepo
	execRepo  *repo.ExecutionRepo
	publisher *mq.Publisher
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	TaskRepo  *repo.TaskRepo
	ChainRepo *repo.ChainRepo
	ExecRepo  *repo.ExecutionRepo
	Publisher *mq.Publisher
	Logger    *slog.Logger
}

// NewHandler создаёт Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		taskRepo:  cfg.TaskRepo,
		chainRepo: cfg.ChainRepo,
		execRepo:  cfg.ExecRepo,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
	}
}
