package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bryan-buckman/newsreel/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleRun(at time.Time) model.RunRecord {
	finished := at.Add(3 * time.Minute)
	return model.RunRecord{
		SchemaVersion: model.SchemaVersion,
		ID:            "run-1",
		StartedAt:     &at,
		FinishedAt:    &finished,
		Items: []model.ItemOutcome{
			{
				Channel:       model.ChannelA,
				ArticleLink:   "https://ahrefs.com/blog/post",
				Title:         "Automotive SEO • ahrefs.com",
				VideoID:       "vid123",
				VideoWatchURL: "https://youtube.com/shorts/vid123",
				CommentURL:    "https://www.youtube.com/watch?v=vid123&lc=c1",
				EngagementOrderIDs: map[model.OrderType]string{
					model.OrderViews:    "1001",
					model.OrderLikes:    "1002",
					model.OrderPinLikes: "1003",
				},
			},
		},
		Failures: []model.ItemFailure{
			{Channel: model.ChannelB, ArticleLink: "https://blog.google/x", Stage: "upload", Error: "quota exceeded"},
		},
	}
}

func TestLoadStateOnEmptyDatabase(t *testing.T) {
	db := openTestDB(t)

	state, err := db.LoadState(context.Background())
	require.NoError(t, err)
	assert.Empty(t, state.Seen)
	assert.Empty(t, state.LastRun.Items)
	assert.Nil(t, state.LastRun.StartedAt)
	assert.Equal(t, int64(0), state.Version)
}

func TestSaveStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	at := time.Date(2025, 10, 10, 9, 30, 0, 0, time.UTC)

	state := &model.RunState{
		Seen:    model.SeenMap{"https://ahrefs.com/blog/post": at},
		LastRun: sampleRun(at),
	}
	require.NoError(t, db.SaveState(ctx, state))
	assert.Equal(t, int64(1), state.Version)

	loaded, err := db.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), loaded.Version)
	require.Len(t, loaded.Seen, 1)
	assert.True(t, loaded.Seen["https://ahrefs.com/blog/post"].Equal(at))

	want := sampleRun(at)
	got := loaded.LastRun
	require.NotNil(t, got.StartedAt)
	assert.True(t, got.StartedAt.Equal(*want.StartedAt))
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Items, got.Items)
	assert.Equal(t, want.Failures, got.Failures)

	last, err := db.LastRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, got.Items, last.Items)

	seen, err := db.SeenArticles(ctx)
	require.NoError(t, err)
	assert.Len(t, seen, 1)
}

func TestSaveStateRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	at := time.Now().UTC()

	first, err := db.LoadState(ctx)
	require.NoError(t, err)
	second, err := db.LoadState(ctx)
	require.NoError(t, err)

	first.LastRun = sampleRun(at)
	require.NoError(t, db.SaveState(ctx, first))

	second.LastRun = sampleRun(at)
	err = db.SaveState(ctx, second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStateConflict))
	var perr *PersistenceError
	assert.True(t, errors.As(err, &perr))

	// A reload picks up the new token and saves cleanly.
	third, err := db.LoadState(ctx)
	require.NoError(t, err)
	require.NoError(t, db.SaveState(ctx, third))
	assert.Equal(t, int64(2), third.Version)
}

func TestSaveStateConflictLeavesSeenUntouched(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	at := time.Now().UTC()

	winner := &model.RunState{Seen: model.SeenMap{"https://moz.com/a": at}, LastRun: sampleRun(at)}
	require.NoError(t, db.SaveState(ctx, winner))

	loser := &model.RunState{Seen: model.SeenMap{"https://moz.com/b": at}, LastRun: sampleRun(at)}
	require.Error(t, db.SaveState(ctx, loser))

	seen, err := db.SeenArticles(ctx)
	require.NoError(t, err)
	assert.Contains(t, seen, "https://moz.com/a")
	assert.NotContains(t, seen, "https://moz.com/b")
}

func TestGetJSONFallback(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	var dest map[string]int
	found, err := db.GetJSON(ctx, "missing", &dest)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, db.SetJSON(ctx, "counters", map[string]int{"runs": 3}))
	found, err = db.GetJSON(ctx, "counters", &dest)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 3, dest["runs"])
}

func TestSetJSONValidatesTypedKeys(t *testing.T) {
	db := openTestDB(t)

	err := db.SetJSON(context.Background(), model.KeyLastRun, map[string]string{"at": "yesterday"})
	require.Error(t, err)
	var perr *PersistenceError
	assert.True(t, errors.As(err, &perr))
}

func TestCorruptDocumentIsPersistenceError(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.conn.Exec(`INSERT INTO app_state (key, value, version, updated_at) VALUES (?, ?, 1, ?)`,
		model.KeyLastRun, `{"schemaVersion": 1, "at": null}`, time.Now())
	require.NoError(t, err)

	_, err = db.LoadState(ctx)
	var perr *PersistenceError
	require.True(t, errors.As(err, &perr), "got %v", err)

	last, err := db.LastRun(ctx)
	require.Error(t, err)
	assert.Empty(t, last.Items)
}

func TestRefreshTokens(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, ok, err := db.RefreshToken(ctx, model.ChannelA)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.SetRefreshToken(ctx, model.ChannelA, "tok-1"))
	require.NoError(t, db.SetRefreshToken(ctx, model.ChannelA, "tok-2"))

	token, ok, err := db.RefreshToken(ctx, model.ChannelA)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-2", token)

	_, ok, err = db.RefreshToken(ctx, model.ChannelB)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("mongo", "")
	require.Error(t, err)
}

func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := NewPostgres(dsn)
	require.NoError(t, err)
	defer db.Close()

	state, err := db.LoadState(ctx)
	require.NoError(t, err)
	state.LastRun = sampleRun(time.Now().UTC())
	state.Seen["https://ahrefs.com/blog/post"] = time.Now().UTC()
	require.NoError(t, db.SaveState(ctx, state))

	last, err := db.LastRun(ctx)
	require.NoError(t, err)
	assert.Len(t, last.Items, 1)
}
