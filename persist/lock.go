package persist

import (
	"time"

	"github.com/agent0/coevolve/core"
)

const (
	defaultLockTimeout = 5 * time.Second
	lockPollInterval   = 20 * time.Millisecond
)

// acquireLock retries a non-blocking exclusive flock on fd until it
// succeeds or timeout elapses. A real OS advisory lock is released by the
// kernel the moment its holding process exits or crashes, which is what
// gives it the "stale lock" cleanup a hand-rolled sentinel-file lock would
// otherwise have to implement separately.
func acquireLock(fd uintptr, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultLockTimeout
	}
	deadline := time.Now().Add(timeout)
	for {
		if err := lockExclusive(fd); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return core.NewFault(core.FaultLockContention, nil, map[string]any{"timeout": timeout.String()})
		}
		time.Sleep(lockPollInterval)
	}
}
