package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReplies(t *testing.T) {
	tests := []struct {
		name  string
		input string
		limit int
		want  []string
	}{
		{"plain array", `["Great tip!", "Trying this today"]`, 2, []string{"Great tip!", "Trying this today"}},
		{"code fence", "```json\n[\"one\", \"two\", \"three\"]\n```", 2, []string{"one", "two"}},
		{"surrounding prose", `Here you go: ["a", "b"] hope it helps`, 5, []string{"a", "b"}},
		{"mixed types", `["a", 3, null, "  ", "b"]`, 0, []string{"a", "b"}},
		{"object", `{"replies": "nope"}`, 2, []string{}},
		{"not json", `Sure! Nice video`, 2, []string{}},
		{"empty", ``, 2, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseReplies(tt.input, tt.limit))
		})
	}
}

func TestCleanComment(t *testing.T) {
	assert.Equal(t, "Drop your site below!", CleanComment(`  "Drop your site below!" `))
	assert.Equal(t, "it's fine", CleanComment(`'it's fine'`))
	assert.Equal(t, `He said "hi"`, CleanComment(`He said "hi"`))
	assert.Equal(t, "", CleanComment(`""`))
}

func TestPrompts(t *testing.T) {
	p := PinnedCommentPrompt("You are Ava.", "Automotive SEO • moz.com")
	assert.Contains(t, p, "You are Ava.")
	assert.Contains(t, p, "<140 char")
	assert.Contains(t, p, "Automotive SEO • moz.com")

	r := RepliesPrompt("You are Maya.", "Auto SEO Tip • blog.google", 2)
	assert.Contains(t, r, "Write 2 short natural viewer replies")
	assert.Contains(t, r, "JSON array of strings")
}

func TestOpenAIComplete(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Drop your site!  "}}]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1/", Temperature: 0.7, MaxTokens: 50})
	require.NoError(t, err)

	text, err := c.Complete(context.Background(), "hello", Params{})
	require.NoError(t, err)
	assert.Equal(t, "Drop your site!", text)
	assert.Equal(t, defaultOpenAIModel, got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, openai.ChatMessageRoleUser, got.Messages[0].Role)
	assert.Equal(t, "hello", got.Messages[0].Content)
	assert.InDelta(t, 0.7, got.Temperature, 0.001)
	assert.Equal(t, 50, got.MaxTokens)

	_, err = c.Complete(context.Background(), "hello", ReplyParams)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, got.Temperature, 0.001)
	assert.Equal(t, 160, got.MaxTokens)
}

func TestParamsFallBackToClientConfig(t *testing.T) {
	cfg := Config{Temperature: 0.5, MaxTokens: 200}
	assert.Equal(t, Params{Temperature: 0.5, MaxTokens: 200}, cfg.resolve(Params{}))
	assert.Equal(t, Params{Temperature: 0.7, MaxTokens: 80}, cfg.resolve(PinnedCommentParams))
	assert.Equal(t, Params{Temperature: 0.5, MaxTokens: 90}, cfg.resolve(Params{MaxTokens: 90}))
}

func TestOpenAICompleteErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), "hello", Params{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Contains(t, err.Error(), "429")

	_, err = c.Complete(context.Background(), "  ", Params{})
	require.Error(t, err)
}

func TestOpenAICompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), "hello", Params{})
	require.Error(t, err)
}

func TestNewCompleter(t *testing.T) {
	_, err := NewCompleter(context.Background(), Config{Provider: "openai"})
	require.Error(t, err, "missing key")

	c, err := NewCompleter(context.Background(), Config{APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	_, err = NewCompleter(context.Background(), Config{Provider: "bard", APIKey: "k"})
	require.Error(t, err)
}
