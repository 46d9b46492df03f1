package audioindex

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"

	"audioindex/internal/audio"
)

// LockOptions bounds how long a writer waits for the index file lock.
type LockOptions struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultLockOptions allows five attempts starting at 50ms, capped at 1s.
func DefaultLockOptions() LockOptions {
	return LockOptions{Attempts: 5, InitialBackoff: 50 * time.Millisecond, MaxBackoff: time.Second}
}

func (o LockOptions) normalized() LockOptions {
	def := DefaultLockOptions()
	if o.Attempts <= 0 {
		o.Attempts = def.Attempts
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = def.InitialBackoff
	}
	if o.MaxBackoff < o.InitialBackoff {
		o.MaxBackoff = o.InitialBackoff
	}
	return o
}

// acquireLock takes the exclusive lock with capped exponential backoff. The
// returned error carries audio.ErrLockTimeout when the budget runs out.
func acquireLock(ctx context.Context, lock *flock.Flock, opts LockOptions, metrics *Metrics) error {
	delay := opts.InitialBackoff
	for attempt := 1; ; attempt++ {
		ok, err := lock.TryLock()
		if err != nil {
			return audio.Wrap(audio.ErrPersistence, "audioindex", "lock", fmt.Sprintf("lock %s", lock.Path()), err)
		}
		if ok {
			return nil
		}
		if attempt >= opts.Attempts {
			break
		}
		metrics.LockRetries.Inc()
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			metrics.LockTimeouts.Inc()
			return audio.Wrap(audio.ErrLockTimeout, "audioindex", "lock", "context done while waiting", ctx.Err())
		}
		if next := delay * 2; next <= opts.MaxBackoff {
			delay = next
		} else {
			delay = opts.MaxBackoff
		}
	}
	metrics.LockTimeouts.Inc()
	return audio.Wrap(audio.ErrLockTimeout, "audioindex", "lock",
		fmt.Sprintf("%s still held after %d attempts", lock.Path(), opts.Attempts), nil)
}
