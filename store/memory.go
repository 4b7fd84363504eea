package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"imageCaptioner/models"
)

const sweepInterval = time.Minute

// Memory is the default in-process task store. Terminal tasks older than the
// retention window are evicted by a janitor sweep; QUEUED and PROCESSING
// tasks are never evicted.
type Memory struct {
	mu        sync.RWMutex
	tasks     map[string]*models.Task
	retention time.Duration
	logger    *zap.Logger
	stop      chan struct{}
	stopOnce  sync.Once
}

func NewMemory(retention time.Duration, logger *zap.Logger) *Memory {
	m := &Memory{
		tasks:     make(map[string]*models.Task),
		retention: retention,
		logger:    logger,
		stop:      make(chan struct{}),
	}
	if retention > 0 {
		go m.janitor()
	}
	return m
}

func (m *Memory) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Memory) Create(ctx context.Context, total int) (*models.Task, error) {
	task := &models.Task{
		ID:        NewTaskID(),
		Status:    models.StatusQueued,
		Total:     total,
		Results:   []models.ImageResult{},
		CreatedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.tasks[task.ID] = task
	m.mu.Unlock()

	return copyTask(task), nil
}

func (m *Memory) Get(ctx context.Context, id string) (*models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	task, ok := m.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return copyTask(task), nil
}

func (m *Memory) AppendResult(ctx context.Context, id string, result models.ImageResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	if len(task.Results) >= task.Total {
		return fmt.Errorf("task %s already holds %d of %d results", id, len(task.Results), task.Total)
	}
	task.Results = append(task.Results, result)
	return nil
}

func (m *Memory) SetStatus(ctx context.Context, id string, status models.TaskStatus, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	task.Status = status
	task.Message = message
	if status.Terminal() && task.CompletedAt == nil {
		now := time.Now().UTC()
		task.CompletedAt = &now
	}
	return nil
}

func (m *Memory) janitor() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep(time.Now().UTC())
		case <-m.stop:
			return
		}
	}
}

func (m *Memory) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, task := range m.tasks {
		if !task.Status.Terminal() || task.CompletedAt == nil {
			continue
		}
		if now.Sub(*task.CompletedAt) > m.retention {
			delete(m.tasks, id)
			m.logger.Debug("Evicted terminal task", zap.String("task_id", id))
		}
	}
}

func copyTask(task *models.Task) *models.Task {
	c := *task
	c.Results = append([]models.ImageResult(nil), task.Results...)
	if task.CompletedAt != nil {
		completedAt := *task.CompletedAt
		c.CompletedAt = &completedAt
	}
	return &c
}
