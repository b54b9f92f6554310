package persist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agent0/coevolve/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrajectory() core.Trajectory {
	return core.Trajectory{
		Task: core.Task{
			TaskID:     "task-1",
			Domain:     core.DomainMath,
			Difficulty: 0.3,
			Prompt:     "solve for x",
			Verifier:   core.NumericVerifier{Expected: 2, Tolerance: 1e-6},
		},
		Result:     "2",
		ToolCalls:  nil,
		Reasoning:  "Thought: trivial\nAnswer: 2",
		Success:    true,
		Confidence: 0.9,
		Reward: core.RewardBreakdown{
			Uncertainty: 0.8,
			ToolUse:     -0.2,
			Novelty:     1.0,
			Correctness: 1.0,
			Total:       0.72,
		},
		Route:     "student",
		Timestamp: time.Unix(1700000000, 0).UTC(),
	}
}

func TestTrajectoryLog_AppendWritesValidNewlineFreeJSONLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trajectories.jsonl")
	log := NewTrajectoryLog(path, time.Second)

	require.NoError(t, log.Append(sampleTrajectory()))
	require.NoError(t, log.Append(sampleTrajectory()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))

	for _, key := range []string{"task", "result", "tool_calls", "reasoning", "success", "confidence", "reward", "verification", "route", "timestamp"} {
		assert.Contains(t, rec, key)
	}
	assert.False(t, strings.ContainsRune(lines[0], '\n'))
}

func TestTrajectoryLog_ConcurrentAppendsAreSerialized(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trajectories.jsonl")
	log := NewTrajectoryLog(path, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, log.Append(sampleTrajectory()))
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	assert.Len(t, lines, 20)
	for _, line := range lines {
		var rec map[string]any
		assert.NoError(t, json.Unmarshal([]byte(line), &rec))
	}
}

func TestTrajectoryLog_LockContentionQueuesAndDrainsOnNextSuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trajectories.jsonl")
	log := NewTrajectoryLog(path, 10*time.Millisecond)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(t, err)
	require.NoError(t, lockExclusive(f.Fd()))

	err = log.Append(sampleTrajectory())
	require.Error(t, err)
	var fault *core.Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, core.FaultLockContention, fault.Kind)
	assert.Equal(t, 1, log.PendingCount())

	require.NoError(t, unlockFile(f.Fd()))
	require.NoError(t, f.Close())

	require.NoError(t, log.Append(sampleTrajectory()))
	assert.Equal(t, 0, log.PendingCount())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	assert.Len(t, lines, 2, "the queued trajectory and the successful one should both land on drain")
}

func TestSecurityLog_AppendEventRecordsShape(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "security.jsonl")
	log := NewSecurityLog(path, time.Second)

	require.NoError(t, log.AppendEvent("blocked_shell", "rm -rf attempted"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var rec securityEvent
	require.NoError(t, json.Unmarshal(data[:len(data)-1], &rec))
	assert.Equal(t, "blocked_shell", rec.Kind)
	assert.Equal(t, "rm -rf attempted", rec.Detail)
	assert.False(t, rec.Timestamp.IsZero())
}

func TestRouterCache_SetThenGetRoundTrips(t *testing.T) {
	dir := t.TempDir()
	rc, err := NewRouterCache(filepath.Join(dir, "router_cache.json"), 10)
	require.NoError(t, err)

	entry := CachedResult{Result: "42", Confidence: 0.95, Timestamp: time.Unix(1700000000, 0).UTC()}
	require.NoError(t, rc.Set("fingerprint-a", entry))

	got, ok := rc.Get("fingerprint-a")
	require.True(t, ok)
	assert.Equal(t, entry, got)
}

func TestRouterCache_EvictsLeastRecentlyUsedAtCapacity(t *testing.T) {
	dir := t.TempDir()
	rc, err := NewRouterCache(filepath.Join(dir, "router_cache.json"), 2)
	require.NoError(t, err)

	require.NoError(t, rc.Set("a", CachedResult{Result: "1"}))
	require.NoError(t, rc.Set("b", CachedResult{Result: "2"}))
	// touch "a" so "b" becomes the least recently used entry
	_, _ = rc.Get("a")
	require.NoError(t, rc.Set("c", CachedResult{Result: "3"}))

	assert.Equal(t, 2, rc.Len())
	_, ok := rc.Get("b")
	assert.False(t, ok, "least recently used entry should have been evicted")
	_, ok = rc.Get("a")
	assert.True(t, ok)
	_, ok = rc.Get("c")
	assert.True(t, ok)
}

func TestRouterCache_PersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "router_cache.json")

	rc, err := NewRouterCache(path, 10)
	require.NoError(t, err)
	require.NoError(t, rc.Set("fingerprint-a", CachedResult{Result: "7", Confidence: 0.5}))

	reloaded, err := NewRouterCache(path, 10)
	require.NoError(t, err)

	got, ok := reloaded.Get("fingerprint-a")
	require.True(t, ok)
	assert.Equal(t, "7", got.Result)
}

func TestRouterCache_GetOrComputeDeduplicatesConcurrentMisses(t *testing.T) {
	dir := t.TempDir()
	rc, err := NewRouterCache(filepath.Join(dir, "router_cache.json"), 10)
	require.NoError(t, err)

	var calls int32
	var mu sync.Mutex
	compute := func() (CachedResult, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		return CachedResult{Result: "shared"}, nil
	}

	var wg sync.WaitGroup
	results := make([]CachedResult, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			res, err := rc.GetOrCompute("same-key", compute)
			assert.NoError(t, err)
			results[idx] = res
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, int32(1), calls, "concurrent misses for the same key should be deduplicated")
	for _, r := range results {
		assert.Equal(t, "shared", r.Result)
	}
}

func TestRouterCache_GetOrComputeReturnsCachedValueOnHit(t *testing.T) {
	dir := t.TempDir()
	rc, err := NewRouterCache(filepath.Join(dir, "router_cache.json"), 10)
	require.NoError(t, err)
	require.NoError(t, rc.Set("k", CachedResult{Result: "cached"}))

	called := false
	res, err := rc.GetOrCompute("k", func() (CachedResult, error) {
		called = true
		return CachedResult{Result: "fresh"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "cached", res.Result)
	assert.False(t, called)
}
