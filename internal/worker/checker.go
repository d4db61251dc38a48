package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"assinatura-bot/internal/engine"
	"assinatura-bot/internal/metrics"
)

const (
	runLockKey = "assinaturas:reconcile_lock"
	runLockTTL = 2 * time.Hour

	lastRunKey = "assinaturas:last_run"
	lastRunTTL = 7 * 24 * time.Hour
)

// ErrRunInProgress is returned when a manual trigger collides with an
// in-flight run. Runs never overlap; the caller simply retries later.
var ErrRunInProgress = errors.New("a reconciliation run is already in progress")

// unlockScript deletes the run lock only while it still holds our token. A
// run that outlives the lock TTL must not release a lock reacquired by
// another replica in the meantime.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Checker drives the periodic reconciliation. One full run per tick,
// single-flight across the scheduler, manual triggers and replicas.
type Checker struct {
	Engine   *engine.Engine
	Redis    *redis.Client
	Interval time.Duration

	log *zap.Logger
	mu  sync.Mutex
}

func NewChecker(eng *engine.Engine, rdb *redis.Client, interval time.Duration, log *zap.Logger) *Checker {
	return &Checker{
		Engine:   eng,
		Redis:    rdb,
		Interval: interval,
		log:      log,
	}
}

// Start blocks until ctx is canceled. The first run fires immediately, the
// rest on the ticker.
func (c *Checker) Start(ctx context.Context) {
	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()
	c.log.Info("background subscription checker started", zap.Duration("interval", c.Interval))

	if _, err := c.RunNow(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
		c.log.Error("initial reconciliation run failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			c.log.Info("background subscription checker stopping")
			return
		case <-ticker.C:
			if _, err := c.RunNow(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
				c.log.Error("scheduled reconciliation run failed", zap.Error(err))
			}
		}
	}
}

// RunNow executes one reconciliation run unless one is already in flight.
// It is the code path shared by the scheduler tick and the manual /checar
// command.
func (c *Checker) RunNow(ctx context.Context) (*engine.RunReport, error) {
	if !c.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer c.mu.Unlock()

	token := uuid.NewString()
	locked, err := c.Redis.SetNX(ctx, runLockKey, token, runLockTTL).Result()
	if err != nil {
		// Redis being down must not stop the schedule; the local mutex still
		// guarantees single-flight within this process.
		c.log.Warn("redis run lock unavailable, relying on local lock", zap.Error(err))
	} else if !locked {
		return nil, ErrRunInProgress
	} else {
		defer c.releaseRunLock(token)
	}

	report, err := c.Engine.RunOnce(ctx)
	if err != nil {
		return nil, err
	}

	metrics.ObserveRun(report)
	c.cacheLastRun(report)
	return report, nil
}

func (c *Checker) releaseRunLock(token string) {
	if err := unlockScript.Run(context.Background(), c.Redis, []string{runLockKey}, token).Err(); err != nil {
		c.log.Warn("failed to release run lock", zap.Error(err))
	}
}

// LastRun returns the most recent run report, if one is cached.
func (c *Checker) LastRun(ctx context.Context) (*engine.RunReport, error) {
	raw, err := c.Redis.Get(ctx, lastRunKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var report engine.RunReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Checker) cacheLastRun(report *engine.RunReport) {
	raw, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := c.Redis.Set(context.Background(), lastRunKey, raw, lastRunTTL).Err(); err != nil {
		c.log.Warn("failed to cache run report", zap.Error(err))
	}
}
