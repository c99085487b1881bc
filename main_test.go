package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryan-buckman/newsreel/internal/model"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"DATABASE_URL", "RSS_URL", "NEWSREEL_FEED_URL", "NEWSREEL_LOG_FORMAT", "NEWSREEL_LOG_LEVEL"} {
		t.Setenv(name, "")
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "newsreel.toml")
	content := "[database]\ndriver = \"sqlite\"\ndsn = \"" + filepath.ToSlash(filepath.Join(dir, "state", "newsreel.db")) + "\"\n" +
		"[logging]\nformat = \"text\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestConfigInitWritesSample(t *testing.T) {
	clearEnv(t)
	target := filepath.Join(t.TempDir(), "conf", "config.toml")

	out, err := execute(t, "config", "init", "--path", target)
	require.NoError(t, err)
	assert.Contains(t, out, target)

	raw, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[smm.services.views]")

	_, err = execute(t, "config", "init", "--path", target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestStatusJSONOnFreshStore(t *testing.T) {
	clearEnv(t)
	cfgPath := writeConfig(t, t.TempDir())

	out, err := execute(t, "--config", cfgPath, "status", "--json")
	require.NoError(t, err)

	var resp struct {
		LastRun model.RunRecord `json:"lastRun"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Empty(t, resp.LastRun.Items)
	assert.Nil(t, resp.LastRun.StartedAt)
}

func TestAuthSetTokenThenStatus(t *testing.T) {
	clearEnv(t)
	cfgPath := writeConfig(t, t.TempDir())

	out, err := execute(t, "--config", cfgPath, "auth", "set-token", "a", "refresh-1")
	require.NoError(t, err)
	assert.Contains(t, out, "channel A")

	out, err = execute(t, "--config", cfgPath, "auth", "status")
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	var rowA, rowB string
	for _, l := range lines {
		if strings.Contains(l, "Ava") {
			rowA = l
		}
		if strings.Contains(l, "Maya") {
			rowB = l
		}
	}
	assert.Contains(t, rowA, "yes")
	assert.Contains(t, rowB, "no")
}

func TestAuthSetTokenRejectsUnknownChannel(t *testing.T) {
	clearEnv(t)
	cfgPath := writeConfig(t, t.TempDir())

	_, err := execute(t, "--config", cfgPath, "auth", "set-token", "C", "tok")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown channel")
}

func TestRunRequiresCredentials(t *testing.T) {
	clearEnv(t)
	cfgPath := writeConfig(t, t.TempDir())

	_, err := execute(t, "--config", cfgPath, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required settings")
}

func TestFormatOrdersUsesSubmissionOrder(t *testing.T) {
	orders := map[model.OrderType]string{
		model.OrderComments: "4",
		model.OrderViews:    "1",
		model.OrderLikes:    "2",
	}
	assert.Equal(t, "views=1 likes=2 comments=4", formatOrders(orders))
	assert.Equal(t, "-", formatOrders(nil))
}

func TestRenderRunRecord(t *testing.T) {
	at := time.Now().Add(-2 * time.Hour)
	rec := model.RunRecord{
		ID:        "run-1",
		StartedAt: &at,
		Items: []model.ItemOutcome{{
			Channel:            model.ChannelA,
			ArticleLink:        "https://moz.com/a",
			VideoWatchURL:      "https://www.youtube.com/watch?v=v1",
			EngagementOrderIDs: map[model.OrderType]string{model.OrderViews: "9"},
		}},
		Failures: []model.ItemFailure{{Channel: model.ChannelB, ArticleLink: "https://blog.google/x", Stage: "upload", Error: "quota"}},
	}

	var buf bytes.Buffer
	renderRunRecord(&buf, rec)
	out := buf.String()
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "2 hours ago")
	assert.Contains(t, out, "views=9")
	assert.Contains(t, out, "quota")
	assert.Contains(t, out, "Finished: never")
}

type stubSource struct {
	entries []model.Entry
	err     error
}

func (s stubSource) Fetch(ctx context.Context, feedURL string, maxItems int) ([]model.Entry, error) {
	return s.entries, s.err
}

type stubState struct {
	seen model.SeenMap
	run  model.RunRecord
	err  error
}

func (s stubState) LastRun(ctx context.Context) (model.RunRecord, error) { return s.run, s.err }

func (s stubState) SeenArticles(ctx context.Context) (model.SeenMap, error) { return s.seen, s.err }

func TestLoadArticlesAnnotatesRoutedEntries(t *testing.T) {
	channels := []model.Channel{
		{ID: model.ChannelA, Domains: []string{"moz.com"}},
		{ID: model.ChannelB, Domains: []string{"blog.google"}},
	}
	src := stubSource{entries: []model.Entry{
		{Title: "a", Link: "https://moz.com/a"},
		{Title: "b", Link: "https://blog.google/b"},
		{Title: "c", Link: "https://example.com/c"},
	}}
	state := stubState{
		seen: model.SeenMap{"https://moz.com/a": time.Now()},
		run:  model.RunRecord{Items: []model.ItemOutcome{{ArticleLink: "https://moz.com/a"}}},
	}
	cc := newCommandContext(nil)

	rows, err := loadArticles(context.Background(), cc, src, state, "https://feed", 10, channels)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, model.ChannelA, rows[0].Channel)
	assert.True(t, rows[0].Processed)
	assert.True(t, rows[0].LastRun)
	assert.Equal(t, model.ChannelB, rows[1].Channel)
	assert.False(t, rows[1].Processed)
	assert.Equal(t, model.ChannelID(""), rows[2].Channel)

	_, err = loadArticles(context.Background(), cc, stubSource{err: errors.New("feed down")}, state, "https://feed", 10, channels)
	require.Error(t, err)

	rows, err = loadArticles(context.Background(), cc, src, stubState{err: errors.New("db gone")}, "https://feed", 10, channels[:1])
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Processed)
}
