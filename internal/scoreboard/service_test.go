package scoreboard_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizjudge/internal/domain"
	"github.com/victornm/quizjudge/internal/errors"
	"github.com/victornm/quizjudge/internal/event"
	"github.com/victornm/quizjudge/internal/scoreboard"
)

func newSQLiteStore(t *testing.T) scoreboard.Store {
	t.Helper()

	db, err := scoreboard.OpenDB(scoreboard.DriverSQLite, filepath.Join(t.TempDir(), "scoreboard.db"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, scoreboard.Migrate(ctx, db))
	require.NoError(t, scoreboard.Migrate(ctx, db), "migrating twice should be a no-op")

	s := scoreboard.NewBunStore(db)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Top(t *testing.T) {
	testStoreTop(t, newSQLiteStore(t))
}

func testStoreTop(t *testing.T, s scoreboard.Store) {
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	entries := []domain.ScoreboardEntry{
		{Username: "slow", ChallengeID: "sql_basics", Score: 50, ElapsedSeconds: 300, RecordedAt: at},
		{Username: "fast", ChallengeID: "sql_basics", Score: 50, ElapsedSeconds: 120, RecordedAt: at},
		{Username: "best", ChallengeID: "sql_basics", Score: 60, ElapsedSeconds: 900, RecordedAt: at},
		{Username: "other", ChallengeID: "mcq_theory", Score: 99, ElapsedSeconds: 1, RecordedAt: at},
		{Username: "fast", ChallengeID: "sql_basics", Score: 10, ElapsedSeconds: 30, RecordedAt: at},
	}
	for _, e := range entries {
		require.NoError(t, s.Record(ctx, e))
	}

	got, err := s.Top(ctx, "sql_basics", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)

	var names []string
	for _, e := range got {
		names = append(names, fmt.Sprintf("%s/%d/%d", e.Username, e.Score, e.ElapsedSeconds))
		assert.Equal(t, "sql_basics", e.ChallengeID)
		assert.WithinDuration(t, at, e.RecordedAt, time.Second)
	}
	assert.Equal(t, []string{"best/60/900", "fast/50/120", "slow/50/300"}, names)

	got, err = s.Top(ctx, "unknown", 20)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestService_RecordsCompletedSessions(t *testing.T) {
	eb := event.NewBus()
	s := scoreboard.NewService(scoreboard.Config{EventBus: eb, Store: newSQLiteStore(t)})

	var (
		mu       sync.Mutex
		recorded []domain.EventScoreRecorded
	)
	eb.Subscribe(domain.EventNameScoreRecorded, func(_ context.Context, e event.Event) error {
		mu.Lock()
		defer mu.Unlock()
		recorded = append(recorded, e.(domain.EventScoreRecorded))
		return nil
	})

	entry := domain.ScoreboardEntry{Username: "alice", ChallengeID: "sql_basics", Score: 25, ElapsedSeconds: 90, RecordedAt: time.Now()}
	eb.Publish(context.Background(), domain.EventSessionCompleted{SessionID: "s1", Entry: entry})
	eb.Stop()

	require.Len(t, recorded, 1)
	assert.Equal(t, entry, recorded[0].Entry)

	top, err := s.Top(context.Background(), scoreboard.TopRequest{ChallengeID: "sql_basics"})
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "alice", top[0].Username)
}

func TestService_Record_Invalid(t *testing.T) {
	s := scoreboard.NewService(scoreboard.Config{EventBus: event.NewBus(), Store: newSQLiteStore(t)})

	err := s.Record(context.Background(), domain.ScoreboardEntry{Username: " ", ChallengeID: "c"})
	assert.True(t, errors.Is(err, errors.CodeInvalidArgument))
}

func TestService_Top_Limit(t *testing.T) {
	s := scoreboard.NewService(scoreboard.Config{EventBus: event.NewBus(), Store: newSQLiteStore(t)})
	ctx := context.Background()

	for i := range 25 {
		require.NoError(t, s.Record(ctx, domain.ScoreboardEntry{
			Username:    fmt.Sprintf("u%02d", i),
			ChallengeID: "c",
			Score:       i,
			RecordedAt:  time.Now(),
		}))
	}

	top, err := s.Top(ctx, scoreboard.TopRequest{ChallengeID: "c"})
	require.NoError(t, err)
	assert.Len(t, top, scoreboard.DefaultLimit)
	assert.Equal(t, "u24", top[0].Username)
}
