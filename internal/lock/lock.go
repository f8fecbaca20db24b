package redlock

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

// Ownership checks run inside Redis so a lock that expired and was
// re-acquired by someone else can never be released or extended by the
// previous holder.
const (
	releaseScript = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"
	extendScript  = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('pexpire', KEYS[1], ARGV[2]) else return 0 end"
)

// Locker is a single-key Redis lock. The value identifies the holder so
// only the goroutine that acquired the lock can release or extend it.
type Locker struct {
	client redis.UniversalClient
	key    string
	value  string
}

func NewLocker(client redis.UniversalClient, key, value string) *Locker {
	return &Locker{
		client: client,
		key:    key,
		value:  value,
	}
}

// Lock acquires the key for at most timeout. It fails immediately when
// another holder owns the key.
func (l *Locker) Lock(ctx context.Context, timeout time.Duration) error {
	acquired, err := l.client.SetNX(ctx, l.key, l.value, timeout).Result()
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("lock on %s held by another owner", l.key)
	}
	return nil
}

// guarded runs a script that only acts while the stored value still
// matches this locker's value, reporting whether it acted.
func (l *Locker) guarded(ctx context.Context, script string, args ...interface{}) (bool, error) {
	argv := append([]interface{}{l.value}, args...)
	result, err := l.client.Eval(ctx, script, []string{l.key}, argv...).Result()
	if err != nil {
		return false, err
	}
	return result != int64(0), nil
}

// Unlock releases the key if and only if this locker still holds it.
func (l *Locker) Unlock(ctx context.Context) error {
	released, err := l.guarded(ctx, releaseScript)
	if err != nil {
		return err
	}
	if !released {
		return fmt.Errorf("cannot release %s: lock expired or held by another owner", l.key)
	}
	return nil
}

// ExtendLock pushes the expiry out by extension while the lock is held.
func (l *Locker) ExtendLock(ctx context.Context, extension time.Duration) error {
	extended, err := l.guarded(ctx, extendScript, extension.Milliseconds())
	if err != nil {
		return err
	}
	if !extended {
		return fmt.Errorf("cannot extend %s: lock expired or held by another owner", l.key)
	}
	return nil
}

// WaitLock keeps retrying Lock with exponential backoff until it either
// acquires the key or waitTimeout elapses.
func (l *Locker) WaitLock(ctx context.Context, lockTimeout, waitTimeout time.Duration) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 20 * time.Millisecond
	policy.MaxInterval = 250 * time.Millisecond
	policy.MaxElapsedTime = waitTimeout

	attempt := func() error {
		return l.Lock(ctx, lockTimeout)
	}
	if err := backoff.Retry(attempt, backoff.WithContext(policy, ctx)); err != nil {
		return fmt.Errorf("lock on %s not acquired before wait timeout", l.key)
	}
	return nil
}
