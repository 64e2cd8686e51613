package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/Legit-prep/live-quiz-socket/internal/app"
	"github.com/Legit-prep/live-quiz-socket/internal/infra/memory"
)

func TestEvictIdleKeepsActiveSessions(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := memory.NewSessionStore(clock)
	opts := app.DefaultOptions()
	opts.Clock = clock
	opts.SessionIdleTTL = time.Hour
	service := app.NewQuizService(store, nil, newRecordingGateway(), opts)

	require.NoError(t, service.CreateSession(ctx, "t1", "111111"))
	require.NoError(t, service.CreateSession(ctx, "t2", "222222"))

	clock.Advance(45 * time.Minute)
	_, _, err := service.JoinSession(ctx, "alice-1", "222222", "Alice")
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	require.Equal(t, []string{"111111"}, service.EvictIdle(ctx))
	require.Equal(t, 1, store.Len())

	_, ok := store.Get("222222")
	require.True(t, ok)
}

func TestRunJanitor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewFakeClock()
	store := memory.NewSessionStore(clock)
	opts := app.DefaultOptions()
	opts.Clock = clock
	opts.SessionIdleTTL = time.Hour
	service := app.NewQuizService(store, nil, newRecordingGateway(), opts)
	require.NoError(t, service.CreateSession(ctx, "t1", "111111"))

	done := make(chan error, 1)
	go func() { done <- service.RunJanitor(ctx, time.Minute) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(2 * time.Hour)
	require.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestEvictIdleDisabled(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := memory.NewSessionStore(clock)
	opts := app.DefaultOptions()
	opts.Clock = clock
	opts.SessionIdleTTL = 0
	service := app.NewQuizService(store, nil, newRecordingGateway(), opts)
	require.NoError(t, service.CreateSession(context.Background(), "t1", "111111"))

	clock.Advance(24 * time.Hour)
	require.Empty(t, service.EvictIdle(context.Background()))
	require.Equal(t, 1, store.Len())
}
