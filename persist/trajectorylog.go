// Package persist implements the run's on-disk state: an append-only
// trajectory log and security event log under an exclusive advisory file
// lock, and a bounded LRU router cache.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/agent0/coevolve/core"
)

// TrajectoryLog appends one JSON object per line to a trajectories.jsonl
// file under an exclusive advisory lock. A write that exceeds the lock
// timeout is demoted to a best-effort in-memory queue and retried, together
// with the next successful write, so a transient lock holder never drops a
// trajectory outright.
type TrajectoryLog struct {
	mu      sync.Mutex
	path    string
	timeout time.Duration
	pending []core.Trajectory
}

// NewTrajectoryLog opens (creating if needed) the JSONL file at path.
func NewTrajectoryLog(path string, lockTimeout time.Duration) *TrajectoryLog {
	return &TrajectoryLog{path: path, timeout: lockTimeout}
}

// Append writes t as a single JSON line, holding an exclusive lock on the
// file for the duration of the write. Any trajectories still queued from a
// prior lock-contention failure are drained ahead of t in the same locked
// section; if the lock still cannot be acquired, t joins the queue for the
// next call to retry.
func (l *TrajectoryLog) Append(t core.Trajectory) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	batch := make([]core.Trajectory, 0, len(l.pending)+1)
	batch = append(batch, l.pending...)
	batch = append(batch, t)

	if err := l.writeBatchLocked(batch); err != nil {
		var fault *core.Fault
		if errors.As(err, &fault) && fault.Kind == core.FaultLockContention {
			l.pending = batch
		}
		return err
	}
	l.pending = nil
	return nil
}

// PendingCount reports how many trajectories are currently queued behind a
// lock-contention failure, awaiting the next successful Append.
func (l *TrajectoryLog) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

func (l *TrajectoryLog) writeBatchLocked(batch []core.Trajectory) error {
	lines := make([]string, 0, len(batch))
	for _, t := range batch {
		line, err := encodeTrajectoryLine(t)
		if err != nil {
			return fmt.Errorf("persist: encode trajectory: %w", err)
		}
		lines = append(lines, line)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("persist: open trajectory log: %w", err)
	}
	defer f.Close()

	if err := acquireLock(f.Fd(), l.timeout); err != nil {
		return err
	}
	defer unlockFile(f.Fd())

	if _, err := f.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		return fmt.Errorf("persist: write trajectory: %w", err)
	}
	return nil
}

// trajectoryRecord mirrors core.Trajectory's on-disk shape: reward is
// flattened into its component keys plus total, and verification is
// nullable.
type trajectoryRecord struct {
	Task         core.Task            `json:"task"`
	Result       string               `json:"result"`
	ToolCalls    []core.ToolCall      `json:"tool_calls"`
	Reasoning    string               `json:"reasoning"`
	Success      bool                 `json:"success"`
	Confidence   float64              `json:"confidence"`
	Reward       core.RewardBreakdown `json:"reward"`
	Verification *float64             `json:"verification"`
	Route        string               `json:"route"`
	Timestamp    time.Time            `json:"timestamp"`
}

func encodeTrajectoryLine(t core.Trajectory) (string, error) {
	rec := trajectoryRecord{
		Task:         t.Task,
		Result:       t.Result,
		ToolCalls:    t.ToolCalls,
		Reasoning:    t.Reasoning,
		Success:      t.Success,
		Confidence:   t.Confidence,
		Reward:       t.Reward,
		Verification: t.Verification,
		Route:        t.Route,
		Timestamp:    t.Timestamp,
	}
	buf, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	// The invariant that each line is self-contained with no embedded
	// newlines holds for any valid JSON encoding, but reasoning text may
	// contain literal "\n" escape sequences rather than raw newlines,
	// which is fine; this guards against a pathological encoder bug.
	if strings.ContainsRune(string(buf), '\n') {
		return "", fmt.Errorf("persist: encoded trajectory contains an embedded newline")
	}
	return string(buf), nil
}

var _ core.TrajectoryLog = (*TrajectoryLog)(nil)
