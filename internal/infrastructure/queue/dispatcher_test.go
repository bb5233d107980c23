package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garagedesk/staff-auth/internal/core/domain"
)

type memoryEventRepo struct {
	mu     sync.Mutex
	events []domain.AuthEvent
	err    error
	calls  int
	gate   chan struct{}
}

func (r *memoryEventRepo) InsertEvent(ctx context.Context, e *domain.AuthEvent) error {
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, *e)
	return nil
}

func (r *memoryEventRepo) snapshot() []domain.AuthEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AuthEvent(nil), r.events...)
}

func TestDispatcher_PreservesPerTerminalOrder(t *testing.T) {
	repo := &memoryEventRepo{}
	d := NewDispatcher(3, repo, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	for i := 1; i <= 20; i++ {
		d.Record(domain.AuthEvent{TerminalID: "bay-1", Method: domain.MethodPin, Attempt: i})
		d.Record(domain.AuthEvent{TerminalID: "bay-2", Method: domain.MethodPassword, Attempt: i})
	}

	require.Eventually(t, func() bool { return len(repo.snapshot()) == 40 }, time.Second, 5*time.Millisecond)
	cancel()
	d.Wait()

	last := map[string]int{}
	for _, e := range repo.snapshot() {
		assert.Equal(t, last[e.TerminalID]+1, e.Attempt, "terminal %s out of order", e.TerminalID)
		last[e.TerminalID] = e.Attempt
	}
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	repo := &memoryEventRepo{gate: make(chan struct{})}
	d := NewDispatcher(1, repo, zerolog.Nop())

	// not started: the single channel fills up and further events are dropped
	for i := 0; i < channelBuffer+10; i++ {
		d.Record(domain.AuthEvent{TerminalID: "bay-1"})
	}
	assert.Len(t, d.workers[0], channelBuffer)
}

func TestDispatcher_RepositoryErrorDoesNotStopWorker(t *testing.T) {
	repo := &memoryEventRepo{err: errors.New("mongo down")}
	d := NewDispatcher(1, repo, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	d.Record(domain.AuthEvent{TerminalID: "bay-1"})
	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return repo.calls == 1
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, repo.snapshot())

	repo.mu.Lock()
	repo.err = nil
	repo.mu.Unlock()

	d.Record(domain.AuthEvent{TerminalID: "bay-1", Success: true})
	require.Eventually(t, func() bool { return len(repo.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	d.Wait()
}

func TestDispatcher_DrainsQueueOnShutdown(t *testing.T) {
	repo := &memoryEventRepo{}
	d := NewDispatcher(2, repo, zerolog.Nop())
	for i := 1; i <= 50; i++ {
		d.Record(domain.AuthEvent{TerminalID: "bay-1", Attempt: i})
		d.Record(domain.AuthEvent{TerminalID: "bay-7", Attempt: i})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Start(ctx)
	d.Wait()

	events := repo.snapshot()
	require.Len(t, events, 100)
	last := map[string]int{}
	for _, e := range events {
		assert.Equal(t, last[e.TerminalID]+1, e.Attempt, "terminal %s out of order", e.TerminalID)
		last[e.TerminalID] = e.Attempt
	}
	for _, ch := range d.workers {
		assert.Empty(t, ch)
	}
}

func TestDispatcher_ShardIndexStable(t *testing.T) {
	d := NewDispatcher(0, &memoryEventRepo{}, zerolog.Nop())
	assert.Len(t, d.workers, defaultWorkers)

	first := d.shardIndex("front-desk")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, d.shardIndex("front-desk"))
	}
}
