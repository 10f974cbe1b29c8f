package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"purchase-order-service/internal/negotiation"
	"purchase-order-service/internal/util"

	"go.uber.org/zap"
)

// Locker serializes mutations of a single order. Acquire blocks for at most
// the locker's wait budget and fails with ErrConcurrentModification when the
// order stays held by someone else. The returned release func is safe to call
// more than once.
type Locker interface {
	Acquire(ctx context.Context, orderID string) (release func(), err error)
}

const (
	defaultLockWait  = 2 * time.Second
	lockPollInterval = 25 * time.Millisecond
)

func lockBusy(orderID string) error {
	util.ConcurrentModificationsTotal.WithLabelValues("lock_busy").Inc()
	return fmt.Errorf("%w: order %s is being modified by another request", negotiation.ErrConcurrentModification, orderID)
}

// LocalLocker is an in-process per-order lock for single-instance
// deployments and tests.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
	wait  time.Duration
}

type localLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker(wait time.Duration) *LocalLocker {
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &LocalLocker{locks: make(map[string]*localLock), wait: wait}
}

func (l *LocalLocker) Acquire(ctx context.Context, orderID string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[orderID]
	if !ok {
		lk = &localLock{ch: make(chan struct{}, 1)}
		l.locks[orderID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case lk.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-lk.ch
				l.unref(orderID, lk)
			})
		}, nil
	case <-ctx.Done():
		l.unref(orderID, lk)
		return nil, ctx.Err()
	case <-timer.C:
		l.unref(orderID, lk)
		return nil, lockBusy(orderID)
	}
}

func (l *LocalLocker) unref(orderID string, lk *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, orderID)
	}
}

// LockClient is the subset of the Redis client used for distributed locks.
type LockClient interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) (bool, error)
}

// RedisLocker holds an order lock in Redis so several API instances can
// share it. The TTL bounds how long a crashed holder blocks the order.
type RedisLocker struct {
	client LockClient
	ttl    time.Duration
	wait   time.Duration
	logger *zap.Logger
}

func NewRedisLocker(client LockClient, ttl, wait time.Duration) *RedisLocker {
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &RedisLocker{client: client, ttl: ttl, wait: wait, logger: util.GetLogger()}
}

func (l *RedisLocker) Acquire(ctx context.Context, orderID string) (func(), error) {
	key := "order:" + orderID
	deadline := time.Now().Add(l.wait)

	for {
		token, ok, err := l.client.AcquireLock(ctx, key, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire order lock: %w", err)
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() { l.release(key, token) })
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, lockBusy(orderID)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

func (l *RedisLocker) release(key, token string) {
	// The caller's context may already be done by the time we unlock.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	released, err := l.client.ReleaseLock(ctx, key, token)
	if err != nil {
		l.logger.Error("Failed to release order lock", zap.String("key", key), zap.Error(err))
		return
	}
	if !released {
		l.logger.Warn("Order lock expired before release", zap.String("key", key))
	}
}
