package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"imageCaptioner/models"
)

const taskKeyPrefix = "task:caption:"

// Redis is the alternate task-store backend. Task records are stored as JSON
// values; a TTL is applied once the task goes terminal so the store stays
// bounded. The single-writer discipline makes read-modify-write safe here.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func ConnectRedis(addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

func NewRedis(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Redis {
	return &Redis{client: client, ttl: ttl, logger: logger}
}

func (r *Redis) Create(ctx context.Context, total int) (*models.Task, error) {
	task := &models.Task{
		ID:        NewTaskID(),
		Status:    models.StatusQueued,
		Total:     total,
		Results:   []models.ImageResult{},
		CreatedAt: time.Now().UTC(),
	}
	if err := r.save(ctx, task, 0); err != nil {
		return nil, err
	}
	return task, nil
}

func (r *Redis) Get(ctx context.Context, id string) (*models.Task, error) {
	data, err := r.client.Get(ctx, taskKeyPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}

	var task models.Task
	if err := json.Unmarshal([]byte(data), &task); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", id, err)
	}
	return &task, nil
}

func (r *Redis) AppendResult(ctx context.Context, id string, result models.ImageResult) error {
	task, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if len(task.Results) >= task.Total {
		return fmt.Errorf("task %s already holds %d of %d results", id, len(task.Results), task.Total)
	}
	task.Results = append(task.Results, result)
	return r.save(ctx, task, 0)
}

func (r *Redis) SetStatus(ctx context.Context, id string, status models.TaskStatus, message string) error {
	task, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	task.Status = status
	task.Message = message

	ttl := time.Duration(0)
	if status.Terminal() {
		if task.CompletedAt == nil {
			now := time.Now().UTC()
			task.CompletedAt = &now
		}
		ttl = r.ttl
	}
	return r.save(ctx, task, ttl)
}

func (r *Redis) save(ctx context.Context, task *models.Task, ttl time.Duration) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", task.ID, err)
	}
	if err := r.client.Set(ctx, taskKeyPrefix+task.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("save task %s: %w", task.ID, err)
	}
	return nil
}
