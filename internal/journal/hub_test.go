package journal

import (
	"context"
	"testing"

	"stakehub/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubFansOutBySubject(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	hub := NewHub(mem, logger.NewNop())

	quiz := hub.Subscribe("quiz-1")
	all := hub.Subscribe("")
	defer all.Close()
	assert.Equal(t, 2, hub.Subscribers())

	require.NoError(t, hub.Append(ctx, Event{Type: PoolCreated, Subject: "quiz-1"}))
	require.NoError(t, hub.Append(ctx, Event{Type: RoundCreated, Subject: "r-1"}))

	ev := <-quiz.C
	assert.Equal(t, PoolCreated, ev.Type)
	assert.Empty(t, quiz.C)

	assert.Equal(t, PoolCreated, (<-all.C).Type)
	assert.Equal(t, RoundCreated, (<-all.C).Type)

	evs, err := hub.List(ctx, "r-1")
	require.NoError(t, err)
	assert.Len(t, evs, 1)

	quiz.Close()
	quiz.Close()
	_, open := <-quiz.C
	assert.False(t, open)
	assert.Equal(t, 1, hub.Subscribers())
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub(NewMemory(), logger.NewNop())
	sub := hub.Subscribe("quiz-1")
	defer sub.Close()

	for i := 0; i < subscriptionBuffer+5; i++ {
		require.NoError(t, hub.Append(context.Background(), Event{Type: PoolStaked, Subject: "quiz-1"}))
	}
	assert.Len(t, sub.C, subscriptionBuffer)

	evs, err := hub.List(context.Background(), "quiz-1")
	require.NoError(t, err)
	assert.Len(t, evs, subscriptionBuffer+5)
}

func TestHubSkipsFanOutWhenStoreFails(t *testing.T) {
	hub := NewHub(&failingSink{}, logger.NewNop())
	sub := hub.Subscribe("")
	defer sub.Close()

	assert.Error(t, hub.Append(context.Background(), Event{Type: PoolCreated, Subject: "quiz-1"}))
	assert.Empty(t, sub.C)
}
