package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/atinyakov/shortlink/internal/counter"
	"github.com/atinyakov/shortlink/internal/storage"
	"github.com/atinyakov/shortlink/internal/worker"
)

type MockRepo struct {
	mu       sync.Mutex
	Calls    []map[string]int64
	FailOn   int
	FailWith error
	CallNo   int
}

func (m *MockRepo) BatchIncrementClickCounts(_ context.Context, deltas map[string]int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallNo++
	if m.CallNo == m.FailOn {
		if m.FailWith != nil {
			return m.FailWith
		}
		return errors.New("forced failure")
	}
	m.Calls = append(m.Calls, deltas)
	return nil
}

func (m *MockRepo) calls() []map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]int64(nil), m.Calls...)
}

type failingCounter struct{}

func (failingCounter) DrainAll(context.Context) (map[string]int64, error) {
	return nil, errors.New("redis down")
}

func (failingCounter) Restore(context.Context, map[string]int64) error { return nil }

func TestFlushOnce_AppliesDrainedDeltas(t *testing.T) {
	ctx := context.Background()
	repo := &MockRepo{}
	c := counter.NewMemoryCounter()

	_ = c.Increment(ctx, "a")
	_ = c.Increment(ctx, "a")
	_ = c.Increment(ctx, "b")

	agg := worker.NewClickAggregator(zap.NewNop(), repo, c, time.Second)

	n, err := agg.FlushOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, repo.calls(), 1)
	assert.Equal(t, map[string]int64{"a": 2, "b": 1}, repo.calls()[0])

	pending, _ := c.Pending(ctx, "a")
	assert.Zero(t, pending)
}

func TestFlushOnce_EmptySkipsStore(t *testing.T) {
	repo := &MockRepo{}
	agg := worker.NewClickAggregator(zap.NewNop(), repo, counter.NewMemoryCounter(), time.Second)

	n, err := agg.FlushOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, repo.calls())
}

func TestFlushOnce_FailureRestoresDeltas(t *testing.T) {
	ctx := context.Background()
	repo := &MockRepo{FailOn: 1}
	c := counter.NewMemoryCounter()

	core, logs := observer.New(zapcore.ErrorLevel)
	agg := worker.NewClickAggregator(zap.New(core), repo, c, time.Second)

	_ = c.Increment(ctx, "a")
	_ = c.Increment(ctx, "a")

	_, err := agg.FlushOnce(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, logs.FilterMessage("cannot apply click counts").Len())

	// A click arriving between the failed and the retried flush is kept too.
	_ = c.Increment(ctx, "a")

	n, err := agg.FlushOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, repo.calls(), 1)
	assert.Equal(t, int64(3), repo.calls()[0]["a"])
}

func TestFlushOnce_UnconfirmedCommitIsNotRestored(t *testing.T) {
	ctx := context.Background()
	repo := &MockRepo{FailOn: 1, FailWith: fmt.Errorf("commit: %w: %w", storage.ErrCommitUnknown, errors.New("conn reset"))}
	c := counter.NewMemoryCounter()

	core, logs := observer.New(zapcore.ErrorLevel)
	agg := worker.NewClickAggregator(zap.New(core), repo, c, time.Second)

	_ = c.Increment(ctx, "a")
	_ = c.Increment(ctx, "a")

	_, err := agg.FlushOnce(ctx)
	require.ErrorIs(t, err, storage.ErrCommitUnknown)
	assert.Equal(t, 1, logs.FilterMessage("click counts commit unconfirmed, not restoring").Len())

	pending, err := c.Pending(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, pending)

	n, err := agg.FlushOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, repo.calls())
}

func TestFlushOnce_DrainErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	agg := worker.NewClickAggregator(zap.New(core), &MockRepo{}, failingCounter{}, time.Second)

	_, err := agg.FlushOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, logs.FilterMessage("cannot drain pending clicks").Len())
}

func TestRun_TickerAndFinalFlush(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	repo := &MockRepo{}
	c := counter.NewMemoryCounter()

	agg := worker.NewClickAggregator(zap.NewNop(), repo, c, 20*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- agg.Run(ctx) }()

	_ = c.Increment(ctx, "tick")
	require.Eventually(t, func() bool { return len(repo.calls()) == 1 }, time.Second, 5*time.Millisecond)

	// Stop before the next tick can pick this up; the final flush must.
	_ = c.Increment(context.Background(), "final")
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("aggregator did not stop")
	}

	var total int64
	for _, call := range repo.calls() {
		total += call["final"]
	}
	assert.Equal(t, int64(1), total)
}

func TestRun_KeepsGoingAfterFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := &MockRepo{FailOn: 1}
	c := counter.NewMemoryCounter()
	_ = c.Increment(ctx, "a")

	agg := worker.NewClickAggregator(zap.NewNop(), repo, c, 10*time.Millisecond)
	go func() { _ = agg.Run(ctx) }()

	require.Eventually(t, func() bool {
		calls := repo.calls()
		return len(calls) == 1 && calls[0]["a"] == 1
	}, time.Second, 5*time.Millisecond)
}
