// Package creatify is a client for the Creatify link-to-video API.
package creatify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// DefaultBaseURL is the public Creatify API endpoint.
const DefaultBaseURL = "https://api.creatify.ai"

// Config describes how to reach the API and the render defaults.
type Config struct {
	BaseURL        string
	APIID          string
	APIKey         string
	Language       string
	VideoLength    int
	AspectRatio    string
	ScriptStyle    string
	VisualStyle    string
	TargetPlatform string
	Pronunciations []Pronunciation
	RequestTimeout time.Duration
}

// Pronunciation rewrites the first occurrence of Term in a script so the
// voice-over says it correctly.
type Pronunciation struct {
	Term string
	Say  string
}

// RenderRequest asks for a short video built from an article.
type RenderRequest struct {
	ArticleURL string
	Persona    string // target audience description
	Length     int    // seconds; zero uses the configured default
	Name       string
}

// Status is a normalized render job state.
type Status string

// Render job states.
const (
	StatusPending   Status = "pending"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the job will not change state again.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusCancelled
}

// JobStatus is the result of polling a render job.
type JobStatus struct {
	Status       Status
	RawStatus    string
	OutputURL    string
	ThumbnailURL string
	FailedReason string
}

// Client talks to the Creatify HTTP API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient builds a client from configuration.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.VideoLength == 0 {
		cfg.VideoLength = 15
	}
	if cfg.AspectRatio == "" {
		cfg.AspectRatio = "9x16"
	}
	if cfg.ScriptStyle == "" {
		cfg.ScriptStyle = "ThreeReasonsWriter"
	}
	if cfg.VisualStyle == "" {
		cfg.VisualStyle = "QuickTransitionTemplate"
	}
	if cfg.TargetPlatform == "" {
		cfg.TargetPlatform = "youtube_shorts"
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// Submit generates a script for the article and starts a render job for it.
// It returns the render job id.
func (c *Client) Submit(ctx context.Context, req RenderRequest) (string, error) {
	length := req.Length
	if length == 0 {
		length = c.cfg.VideoLength
	}
	name := req.Name
	if name == "" {
		name = "Auto Short"
	}

	script, err := c.generateScript(ctx, req.ArticleURL, req.Persona, length)
	if err != nil {
		return "", err
	}
	script = ApplyPronunciations(script, c.cfg.Pronunciations)

	body := map[string]any{
		"link":            req.ArticleURL,
		"name":            name,
		"target_platform": c.cfg.TargetPlatform,
		"target_audience": req.Persona,
		"language":        c.cfg.Language,
		"video_length":    length,
		"aspect_ratio":    c.cfg.AspectRatio,
		"script_style":    c.cfg.ScriptStyle,
		"visual_style":    c.cfg.VisualStyle,
		"override_script": script,
		"no_cta":          false,
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/link_to_videos/", body, &created); err != nil {
		return "", fmt.Errorf("create render job: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("create render job: response has no job id")
	}
	return created.ID, nil
}

// Poll returns the current state of a render job.
func (c *Client) Poll(ctx context.Context, jobID string) (JobStatus, error) {
	var job struct {
		Status         string `json:"status"`
		VideoOutput    string `json:"video_output"`
		VideoThumbnail string `json:"video_thumbnail"`
		FailedReason   string `json:"failed_reason"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/link_to_videos/"+jobID+"/", nil, &job); err != nil {
		return JobStatus{}, fmt.Errorf("poll render job %s: %w", jobID, err)
	}
	return JobStatus{
		Status:       normalizeStatus(job.Status),
		RawStatus:    job.Status,
		OutputURL:    job.VideoOutput,
		ThumbnailURL: job.VideoThumbnail,
		FailedReason: job.FailedReason,
	}, nil
}

func (c *Client) generateScript(ctx context.Context, articleURL, persona string, length int) (string, error) {
	body := map[string]any{
		"url":             articleURL,
		"language":        c.cfg.Language,
		"video_length":    length,
		"script_styles":   []string{c.cfg.ScriptStyle},
		"target_audience": persona,
	}
	var resp struct {
		GeneratedScripts []json.RawMessage `json:"generated_scripts"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/ai_scripts/", body, &resp); err != nil {
		return "", fmt.Errorf("generate script: %w", err)
	}
	if len(resp.GeneratedScripts) == 0 {
		return "", fmt.Errorf("generate script: empty script")
	}
	script := scriptText(resp.GeneratedScripts[0])
	if script == "" {
		return "", fmt.Errorf("generate script: empty script")
	}
	return script, nil
}

// scriptText accepts the shapes the scripts endpoint is known to return:
// a bare string, or an object with "paragraphs" (string or list) or "script".
func scriptText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Paragraphs json.RawMessage `json:"paragraphs"`
		Script     string          `json:"script"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	if len(obj.Paragraphs) > 0 {
		if err := json.Unmarshal(obj.Paragraphs, &s); err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
		var parts []string
		if err := json.Unmarshal(obj.Paragraphs, &parts); err == nil && len(parts) > 0 {
			return strings.TrimSpace(strings.Join(parts, "\n"))
		}
	}
	return strings.TrimSpace(obj.Script)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("X-API-ID", c.cfg.APIID)
	req.Header.Set("X-API-KEY", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("creatify error %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func normalizeStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "done", "completed", "success":
		return StatusDone
	case "failed", "error":
		return StatusFailed
	case "cancelled", "canceled":
		return StatusCancelled
	default:
		return StatusPending
	}
}

// ApplyPronunciations rewrites the first matching term, trying rules in order.
// Only one rule is applied so "Hrizn.io" and "Hrizn" rules do not stack.
func ApplyPronunciations(script string, rules []Pronunciation) string {
	for _, rule := range rules {
		if rule.Term == "" {
			continue
		}
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(rule.Term) + `\b`)
		if err != nil {
			continue
		}
		loc := re.FindStringIndex(script)
		if loc == nil {
			continue
		}
		return script[:loc[0]] + rule.Say + script[loc[1]:]
	}
	return script
}
