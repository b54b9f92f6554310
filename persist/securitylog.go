package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/agent0/coevolve/core"
)

// SecurityLog appends security-relevant events (blocked code, blocked
// shell, rate-limit hits) to a JSONL file under the same locking
// discipline as TrajectoryLog.
type SecurityLog struct {
	mu      sync.Mutex
	path    string
	timeout time.Duration
}

// NewSecurityLog opens (creating if needed) the JSONL file at path.
func NewSecurityLog(path string, lockTimeout time.Duration) *SecurityLog {
	return &SecurityLog{path: path, timeout: lockTimeout}
}

type securityEvent struct {
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}

// AppendEvent records one security event.
func (l *SecurityLog) AppendEvent(kind, detail string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	line, err := json.Marshal(securityEvent{Kind: kind, Detail: detail, Timestamp: time.Now()})
	if err != nil {
		return fmt.Errorf("persist: encode security event: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("persist: open security log: %w", err)
	}
	defer f.Close()

	if err := acquireLock(f.Fd(), l.timeout); err != nil {
		return err
	}
	defer unlockFile(f.Fd())

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("persist: write security event: %w", err)
	}
	return nil
}

var _ core.SecurityLog = (*SecurityLog)(nil)
