package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"
	redis "github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another writer holds the order.
var ErrLocked = errors.New("order is being modified, retry")

const lockTTL = 30 * time.Second

// OrderLocker serializes mutations of one order. The returned func releases
// the lock and is safe to call once.
type OrderLocker interface {
	Lock(ctx context.Context, orderID string) (func(), error)
}

// LocalLocker serializes within one process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*entry)}
}

func (l *LocalLocker) Lock(ctx context.Context, orderID string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[orderID]
	if !ok {
		e = &entry{}
		l.locks[orderID] = e
	}
	e.refs++
	l.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		e.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-ctx.Done():
		// The goroutine still takes the lock eventually; hand it back then.
		go func() {
			<-acquired
			l.release(orderID, e)
		}()
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() { once.Do(func() { l.release(orderID, e) }) }, nil
}

func (l *LocalLocker) release(orderID string, e *entry) {
	e.mu.Unlock()
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, orderID)
	}
	l.mu.Unlock()
}

// RedisLocker serializes across processes sharing one Redis. It still takes
// the local lock first so same-process callers queue instead of failing.
type RedisLocker struct {
	local  *LocalLocker
	locker *redislock.Client
	retry  redislock.RetryStrategy
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		local:  NewLocalLocker(),
		locker: redislock.New(client),
		retry:  redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 30),
	}
}

func (l *RedisLocker) Lock(ctx context.Context, orderID string) (func(), error) {
	unlockLocal, err := l.local.Lock(ctx, orderID)
	if err != nil {
		return nil, err
	}

	lock, err := l.locker.Obtain(ctx, "lock:order:"+orderID, lockTTL, &redislock.Options{RetryStrategy: l.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		unlockLocal()
		return nil, ErrLocked
	}
	if err != nil {
		unlockLocal()
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = lock.Release(context.Background())
			unlockLocal()
		})
	}, nil
}
