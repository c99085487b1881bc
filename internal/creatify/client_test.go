package creatify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitGeneratesScriptThenCreatesJob(t *testing.T) {
	var videoBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "id-1", r.Header.Get("X-API-ID"))
		assert.Equal(t, "key-1", r.Header.Get("X-API-KEY"))
		switch r.URL.Path {
		case "/api/ai_scripts/":
			_, _ = w.Write([]byte(`{"generated_scripts":[{"paragraphs":"Hrizn makes dealer SEO simple. Hrizn wins."}]}`))
		case "/api/link_to_videos/":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&videoBody))
			_, _ = w.Write([]byte(`{"id":"job-42"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(Config{
		BaseURL: srv.URL,
		APIID:   "id-1",
		APIKey:  "key-1",
		Pronunciations: []Pronunciation{
			{Term: "Hrizn.io", Say: `Hrizn.io (pronounced "horizon dot eye-oh")`},
			{Term: "Hrizn", Say: `Hrizn (pronounced "horizon")`},
		},
	})

	id, err := c.Submit(context.Background(), RenderRequest{ArticleURL: "https://moz.com/a", Persona: "Ava"})
	require.NoError(t, err)
	assert.Equal(t, "job-42", id)
	assert.Equal(t, "https://moz.com/a", videoBody["link"])
	assert.Equal(t, "Ava", videoBody["target_audience"])
	assert.Equal(t, float64(15), videoBody["video_length"])
	assert.Equal(t, "9x16", videoBody["aspect_ratio"])
	assert.Equal(t, `Hrizn (pronounced "horizon") makes dealer SEO simple. Hrizn wins.`, videoBody["override_script"])
}

func TestSubmitFailsOnEmptyScript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"generated_scripts":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).Submit(context.Background(), RenderRequest{ArticleURL: "https://moz.com/a"})
	require.Error(t, err)
}

func TestSubmitSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"invalid credentials"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).Submit(context.Background(), RenderRequest{ArticleURL: "https://moz.com/a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestPollNormalizesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/link_to_videos/job-1/", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"done","video_output":"https://cdn/x.mp4","video_thumbnail":"https://cdn/x.jpg"}`))
	}))
	defer srv.Close()

	job, err := NewClient(Config{BaseURL: srv.URL}).Poll(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, job.Status)
	assert.Equal(t, "https://cdn/x.mp4", job.OutputURL)
}

func TestScriptTextShapes(t *testing.T) {
	assert.Equal(t, "plain", scriptText(json.RawMessage(`"plain"`)))
	assert.Equal(t, "a\nb", scriptText(json.RawMessage(`{"paragraphs":["a","b"]}`)))
	assert.Equal(t, "s", scriptText(json.RawMessage(`{"script":"s"}`)))
	assert.Equal(t, "", scriptText(json.RawMessage(`{}`)))
}

func TestApplyPronunciationsUsesFirstMatchingRule(t *testing.T) {
	rules := []Pronunciation{
		{Term: "Hrizn.io", Say: "Hrizn.io (horizon dot eye-oh)"},
		{Term: "Hrizn", Say: "Hrizn (horizon)"},
	}
	assert.Equal(t, "Try Hrizn.io (horizon dot eye-oh) and Hrizn.io", ApplyPronunciations("Try Hrizn.io and Hrizn.io", rules))
	assert.Equal(t, "Hrizn (horizon) rocks", ApplyPronunciations("Hrizn rocks", rules))
	assert.Equal(t, "nothing here", ApplyPronunciations("nothing here", rules))
}

type scriptedPoller struct {
	statuses []JobStatus
	errs     []error
	calls    atomic.Int32
}

func (p *scriptedPoller) Poll(ctx context.Context, jobID string) (JobStatus, error) {
	i := int(p.calls.Add(1)) - 1
	if i < len(p.errs) && p.errs[i] != nil {
		return JobStatus{}, p.errs[i]
	}
	if i >= len(p.statuses) {
		return p.statuses[len(p.statuses)-1], nil
	}
	return p.statuses[i], nil
}

func TestAwaitReturnsWhenDone(t *testing.T) {
	p := &scriptedPoller{statuses: []JobStatus{
		{Status: StatusPending},
		{Status: StatusPending},
		{Status: StatusDone, OutputURL: "https://cdn/v.mp4"},
	}}

	job, err := Await(context.Background(), p, "job", time.Millisecond, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/v.mp4", job.OutputURL)
	assert.Equal(t, int32(3), p.calls.Load())
}

func TestAwaitFailedAndCancelled(t *testing.T) {
	for _, st := range []Status{StatusFailed, StatusCancelled} {
		p := &scriptedPoller{statuses: []JobStatus{{Status: st}}}
		_, err := Await(context.Background(), p, "job", time.Millisecond, time.Second)
		var failed *FailedError
		require.True(t, errors.As(err, &failed), "status %s: %v", st, err)
		assert.Equal(t, st, failed.Status)
	}
}

func TestAwaitDoneWithoutOutputIsFailure(t *testing.T) {
	p := &scriptedPoller{statuses: []JobStatus{{Status: StatusDone}}}
	_, err := Await(context.Background(), p, "job", time.Millisecond, time.Second)
	var failed *FailedError
	require.True(t, errors.As(err, &failed))
}

func TestAwaitTimesOut(t *testing.T) {
	p := &scriptedPoller{statuses: []JobStatus{{Status: StatusPending}}}
	_, err := Await(context.Background(), p, "job", 5*time.Millisecond, 30*time.Millisecond)
	var timeout *TimeoutError
	require.True(t, errors.As(err, &timeout), "got %v", err)
}

func TestAwaitToleratesTransientPollErrors(t *testing.T) {
	boom := errors.New("connection reset")
	p := &scriptedPoller{
		errs:     []error{boom, nil, boom},
		statuses: []JobStatus{{}, {Status: StatusPending}, {}, {Status: StatusDone, OutputURL: "u"}},
	}
	job, err := Await(context.Background(), p, "job", time.Millisecond, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "u", job.OutputURL)
}

func TestAwaitGivesUpAfterRepeatedPollErrors(t *testing.T) {
	boom := errors.New("connection reset")
	p := &scriptedPoller{errs: []error{boom, boom, boom}, statuses: []JobStatus{{}}}
	_, err := Await(context.Background(), p, "job", time.Millisecond, time.Second)
	assert.ErrorIs(t, err, boom)
}

func TestAwaitHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &scriptedPoller{statuses: []JobStatus{{Status: StatusPending}}}
	_, err := Await(ctx, p, "job", time.Second, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
