package storage

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"tasktrack-api/domain"
)

type backend interface {
	ListTasks(ctx context.Context, userID string) ([]domain.Task, error)
	GetTask(ctx context.Context, userID, taskID string) (domain.Task, error)
	CreateTask(ctx context.Context, userID string, nt domain.NewTask) (domain.Task, error)
	UpdateTask(ctx context.Context, userID, taskID string, upd domain.TaskUpdate) (domain.Task, error)
	DeleteTask(ctx context.Context, userID, taskID string) error
	FetchSettings(ctx context.Context, userID string) (domain.Settings, error)
	SaveSettings(ctx context.Context, userID string, settings domain.Settings) (domain.Settings, error)
	DeleteUser(ctx context.Context, userID string) error
	Ping(ctx context.Context) error
}

// generationTTL bounds how long an idle eviction counter is kept.
const generationTTL = 24 * time.Hour

var errStaleFill = errors.New("cache entry evicted during fill")

// Cache wraps a backend with Redis-backed caching for task lists and settings.
// Every write evicts the user's keys and bumps their generation; a fill is only
// stored when the generation it started under is still current.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) ListTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	key := tasksCacheKey(userID)
	var tasks []domain.Task
	if c.load(ctx, key, &tasks) {
		return tasks, nil
	}

	gen, fillable := c.generation(ctx, key)
	tasks, err := c.base.ListTasks(ctx, userID)
	if err != nil {
		return nil, err
	}

	if fillable {
		c.store(ctx, key, gen, tasks)
	}
	return tasks, nil
}

func (c *Cache) GetTask(ctx context.Context, userID, taskID string) (domain.Task, error) {
	return c.base.GetTask(ctx, userID, taskID)
}

func (c *Cache) CreateTask(ctx context.Context, userID string, nt domain.NewTask) (domain.Task, error) {
	task, err := c.base.CreateTask(ctx, userID, nt)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx, tasksCacheKey(userID))
	return task, nil
}

func (c *Cache) UpdateTask(ctx context.Context, userID, taskID string, upd domain.TaskUpdate) (domain.Task, error) {
	task, err := c.base.UpdateTask(ctx, userID, taskID, upd)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx, tasksCacheKey(userID))
	return task, nil
}

func (c *Cache) DeleteTask(ctx context.Context, userID, taskID string) error {
	if err := c.base.DeleteTask(ctx, userID, taskID); err != nil {
		return err
	}
	c.evict(ctx, tasksCacheKey(userID))
	return nil
}

func (c *Cache) FetchSettings(ctx context.Context, userID string) (domain.Settings, error) {
	key := settingsCacheKey(userID)
	var settings domain.Settings
	if c.load(ctx, key, &settings) {
		return settings, nil
	}

	gen, fillable := c.generation(ctx, key)
	settings, err := c.base.FetchSettings(ctx, userID)
	if err != nil {
		return domain.Settings{}, err
	}

	if fillable {
		c.store(ctx, key, gen, settings)
	}
	return settings, nil
}

func (c *Cache) SaveSettings(ctx context.Context, userID string, settings domain.Settings) (domain.Settings, error) {
	saved, err := c.base.SaveSettings(ctx, userID, settings)
	if err != nil {
		return domain.Settings{}, err
	}
	c.evict(ctx, settingsCacheKey(userID))
	return saved, nil
}

func (c *Cache) DeleteUser(ctx context.Context, userID string) error {
	if err := c.base.DeleteUser(ctx, userID); err != nil {
		return err
	}
	c.evict(ctx, tasksCacheKey(userID), settingsCacheKey(userID))
	return nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.base.Ping(ctx)
}

func (c *Cache) load(ctx context.Context, key string, dst any) bool {
	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return false
	}
	if err := valueJSON.Unmarshal(data, dst); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return false
	}
	return true
}

// generation reads the eviction counter for key before a backend read.
func (c *Cache) generation(ctx context.Context, key string) (int64, bool) {
	if c.redis == nil || c.ttl == 0 {
		return 0, false
	}
	gen, err := c.redis.Get(ctx, generationKey(key)).Int64()
	if err != nil && err != redis.Nil {
		return 0, false
	}
	return gen, true
}

// store writes value under key unless an eviction happened since gen was read.
func (c *Cache) store(ctx context.Context, key string, gen int64, value any) {
	data, err := sonic.Marshal(value)
	if err != nil {
		return
	}
	genKey := generationKey(key)
	_ = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, c.ttl)
			return nil
		})
		return err
	}, genKey)
}

func (c *Cache) evict(ctx context.Context, keys ...string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Del(ctx, key)
			pipe.Incr(ctx, generationKey(key))
			pipe.Expire(ctx, generationKey(key), generationTTL)
		}
		return nil
	})
}

func tasksCacheKey(userID string) string {
	return "tasks:" + userID
}

func settingsCacheKey(userID string) string {
	return "settings:" + userID
}

func generationKey(key string) string {
	return key + ":gen"
}
