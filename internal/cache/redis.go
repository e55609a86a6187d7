package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rorbcloud/calibration-backend/internal/logger"
	"github.com/rorbcloud/calibration-backend/internal/utils"
)

// TaskResultCache keeps merged results of completed tasks in redis so
// repeated status polls skip the per-simulation scan. The cache is optional:
// a nil *TaskResultCache is valid and every method on it is a no-op.
type TaskResultCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

func NewTaskResultCache(log *logger.Logger) *TaskResultCache {
	addr := utils.GetEnv("REDIS_ADDR", "", log)
	if addr == "" {
		log.Info("REDIS_ADDR not set, task result cache disabled")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: utils.GetEnv("REDIS_PASSWORD", "", nil),
	})
	ttl := utils.GetEnvAsDuration("RESULT_CACHE_TTL_SECONDS", 3600, log)
	return &TaskResultCache{
		client: client,
		ttl:    ttl,
		log:    log.With("service", "TaskResultCache"),
	}
}

func key(taskID uuid.UUID) string {
	return "task_result:" + taskID.String()
}

func (c *TaskResultCache) Get(ctx context.Context, taskID uuid.UUID) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	val, err := c.client.Get(ctx, key(taskID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("Result cache read failed", "task_id", taskID, "error", err)
		}
		return nil, false
	}
	return val, true
}

func (c *TaskResultCache) Set(ctx context.Context, taskID uuid.UUID, payload []byte) {
	if c == nil {
		return
	}
	if err := c.client.Set(ctx, key(taskID), payload, c.ttl).Err(); err != nil {
		c.log.Warn("Result cache write failed", "task_id", taskID, "error", err)
	}
}
