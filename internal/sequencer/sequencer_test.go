package sequencer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"stakehub/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func start(t *testing.T) (*Sequencer, context.CancelFunc) {
	t.Helper()
	s := New(logger.NewNop(), 16)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Run(ctx) }()
	t.Cleanup(cancel)
	return s, cancel
}

func TestDoSerializesOperations(t *testing.T) {
	s, _ := start(t)

	// counter is deliberately unguarded; the race detector flags any overlap.
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Do(context.Background(), s, func(context.Context) (struct{}, error) {
				counter++
				return struct{}{}, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := Do(context.Background(), s, func(context.Context) (int, error) { return counter, nil })
	require.NoError(t, err)
	assert.Equal(t, 100, got)
}

func TestDoReturnsOperationError(t *testing.T) {
	s, _ := start(t)
	boom := errors.New("boom")

	_, err := Do(context.Background(), s, func(context.Context) (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
}

func TestDoRecoversPanics(t *testing.T) {
	s, _ := start(t)

	_, err := Do(context.Background(), s, func(context.Context) (int, error) { panic("bad op") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad op")

	v, err := Do(context.Background(), s, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestDoAfterStop(t *testing.T) {
	s, cancel := start(t)
	cancel()
	<-s.stopped

	_, err := Do(context.Background(), s, func(context.Context) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, ErrStopped)
}

func TestDoHonoursCallerContext(t *testing.T) {
	s := New(logger.NewNop(), 0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Nothing is running the queue, so the submit blocks until ctx expires.
	_, err := Do(ctx, s, func(context.Context) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
