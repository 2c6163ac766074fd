package globussync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/gestaofrota/globus_backend/config"
	"github.com/gestaofrota/globus_backend/models"
	"github.com/gestaofrota/globus_backend/utils"
)

// ScopeGuard enforces at-most-one concurrent sync run per scope with
// check-and-set semantics. The guard key is the domain: any two windows
// of the same domain are treated as overlapping (a conservative
// superset of window overlap), while different domains never conflict.
type ScopeGuard interface {
	// Acquire returns a release func, or ErrSyncAlreadyInProgress when
	// a run already holds the scope.
	Acquire(ctx context.Context, dominio models.Dominio) (func(), error)
}

// RedisScopeGuard is the production guard: a redislock per domain so
// the guard holds across service instances. TTL must exceed the run
// timeout so a crashed holder eventually frees the scope.
type RedisScopeGuard struct {
	Locker *redislock.Client
	TTL    time.Duration
}

func NewRedisScopeGuard(locker *redislock.Client, runTimeout time.Duration) *RedisScopeGuard {
	return &RedisScopeGuard{Locker: locker, TTL: runTimeout + time.Minute}
}

func (g *RedisScopeGuard) locker() *redislock.Client {
	if g.Locker != nil {
		return g.Locker
	}
	return config.GetRedisLock()
}

func (g *RedisScopeGuard) Acquire(ctx context.Context, dominio models.Dominio) (func(), error) {
	locker := g.locker()
	if locker == nil {
		return nil, errors.New("redis lock not ready")
	}
	lock, err := locker.Obtain(ctx, "sync:guard:"+string(dominio), g.TTL, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, utils.ErrSyncAlreadyInProgress
	}
	if err != nil {
		return nil, err
	}
	return func() {
		// Release on a fresh context: the run's context is usually
		// already cancelled or timed out by the time we get here.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = lock.Release(releaseCtx)
	}, nil
}

// MemoryScopeGuard is a single-process guard used in tests and as a
// fallback when Redis is not configured.
type MemoryScopeGuard struct {
	mu   sync.Mutex
	held map[models.Dominio]bool
}

func NewMemoryScopeGuard() *MemoryScopeGuard {
	return &MemoryScopeGuard{held: map[models.Dominio]bool{}}
}

func (g *MemoryScopeGuard) Acquire(ctx context.Context, dominio models.Dominio) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held[dominio] {
		return nil, utils.ErrSyncAlreadyInProgress
	}
	g.held[dominio] = true
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.held, dominio)
	}, nil
}
