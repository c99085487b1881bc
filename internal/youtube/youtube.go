// Package youtube uploads rendered Shorts and posts channel comments.
package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bryan-buckman/newsreel/internal/model"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

// Upload defaults.
const (
	DefaultCategoryID = "27" // Education
	DefaultPrivacy    = "public"
	DefaultTitleMax   = 100
)

// TokenStore returns the stored OAuth refresh token for a channel.
type TokenStore interface {
	RefreshToken(ctx context.Context, channel model.ChannelID) (string, bool, error)
}

// Config holds the OAuth client and upload settings.
type Config struct {
	ClientID     string
	ClientSecret string
	CategoryID   string
	Privacy      string
	// Endpoint and TokenURL override the Google API hosts.
	Endpoint string
	TokenURL string
	// DownloadTimeout bounds fetching the rendered video.
	DownloadTimeout time.Duration
}

// UploadRequest describes a video to publish.
type UploadRequest struct {
	SourceURL   string
	Title       string
	Description string
	Tags        []string
}

// Video is an uploaded video.
type Video struct {
	ID       string
	WatchURL string
}

// AuthorizationMissingError reports a channel with no stored refresh token.
type AuthorizationMissingError struct {
	Channel model.ChannelID
}

func (e *AuthorizationMissingError) Error() string {
	return fmt.Sprintf("youtube channel %s not authorized", e.Channel)
}

// UploadError wraps failures while uploading a video.
type UploadError struct {
	Channel model.ChannelID
	Cause   error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("youtube upload (channel %s): %v", e.Channel, e.Cause)
}

func (e *UploadError) Unwrap() error { return e.Cause }

// CommentError wraps failures while posting a comment.
type CommentError struct {
	Channel model.ChannelID
	VideoID string
	Cause   error
}

func (e *CommentError) Error() string {
	return fmt.Sprintf("youtube comment on %s (channel %s): %v", e.VideoID, e.Channel, e.Cause)
}

func (e *CommentError) Unwrap() error { return e.Cause }

// Client publishes to YouTube on behalf of persona channels.
type Client struct {
	cfg      Config
	oauth    *oauth2.Config
	tokens   TokenStore
	download *http.Client
}

// NewClient builds a client whose credentials come from tokens.
func NewClient(cfg Config, tokens TokenStore) *Client {
	if cfg.CategoryID == "" {
		cfg.CategoryID = DefaultCategoryID
	}
	if cfg.Privacy == "" {
		cfg.Privacy = DefaultPrivacy
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 5 * time.Minute
	}
	endpoint := google.Endpoint
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	return &Client{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       []string{yt.YoutubeUploadScope, yt.YoutubeForceSslScope},
		},
		tokens:   tokens,
		download: &http.Client{Timeout: cfg.DownloadTimeout},
	}
}

// Authorized returns an AuthorizationMissingError if channel has no refresh token.
func (c *Client) Authorized(ctx context.Context, channel model.ChannelID) error {
	_, err := c.refreshToken(ctx, channel)
	return err
}

// Upload downloads the rendered video and publishes it to channel.
func (c *Client) Upload(ctx context.Context, channel model.ChannelID, req UploadRequest) (Video, error) {
	svc, err := c.service(ctx, channel)
	if err != nil {
		return Video{}, &UploadError{Channel: channel, Cause: err}
	}

	body, err := c.fetch(ctx, req.SourceURL)
	if err != nil {
		return Video{}, &UploadError{Channel: channel, Cause: err}
	}
	defer body.Close()

	video := &yt.Video{
		Snippet: &yt.VideoSnippet{
			Title:       req.Title,
			Description: req.Description,
			Tags:        req.Tags,
			CategoryId:  c.cfg.CategoryID,
		},
		Status: &yt.VideoStatus{
			PrivacyStatus:           c.cfg.Privacy,
			SelfDeclaredMadeForKids: false,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}
	created, err := svc.Videos.Insert([]string{"snippet", "status"}, video).
		Media(body, googleapi.ContentType("video/mp4")).
		Context(ctx).
		Do()
	if err != nil {
		return Video{}, &UploadError{Channel: channel, Cause: err}
	}
	if created.Id == "" {
		return Video{}, &UploadError{Channel: channel, Cause: fmt.Errorf("response has no video id")}
	}
	return Video{ID: created.Id, WatchURL: WatchURL(created.Id)}, nil
}

// PostComment posts text as a top-level comment on videoID and returns the
// comment's permalink.
func (c *Client) PostComment(ctx context.Context, channel model.ChannelID, videoID, text string) (string, error) {
	svc, err := c.service(ctx, channel)
	if err != nil {
		return "", &CommentError{Channel: channel, VideoID: videoID, Cause: err}
	}
	thread := &yt.CommentThread{
		Snippet: &yt.CommentThreadSnippet{
			VideoId: videoID,
			TopLevelComment: &yt.Comment{
				Snippet: &yt.CommentSnippet{TextOriginal: text},
			},
		},
	}
	created, err := svc.CommentThreads.Insert([]string{"snippet"}, thread).Context(ctx).Do()
	if err != nil {
		return "", &CommentError{Channel: channel, VideoID: videoID, Cause: err}
	}
	if created.Id == "" {
		return "", &CommentError{Channel: channel, VideoID: videoID, Cause: fmt.Errorf("response has no comment id")}
	}
	return CommentURL(videoID, created.Id), nil
}

func (c *Client) refreshToken(ctx context.Context, channel model.ChannelID) (string, error) {
	if c.tokens == nil {
		return "", &AuthorizationMissingError{Channel: channel}
	}
	token, ok, err := c.tokens.RefreshToken(ctx, channel)
	if err != nil {
		return "", fmt.Errorf("load refresh token: %w", err)
	}
	if !ok {
		return "", &AuthorizationMissingError{Channel: channel}
	}
	return token, nil
}

func (c *Client) service(ctx context.Context, channel model.ChannelID) (*yt.Service, error) {
	token, err := c.refreshToken(ctx, channel)
	if err != nil {
		return nil, err
	}
	httpClient := c.oauth.Client(ctx, &oauth2.Token{RefreshToken: token})
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if c.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.cfg.Endpoint))
	}
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return svc, nil
}

func (c *Client) fetch(ctx context.Context, sourceURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("download video: %w", err)
	}
	resp, err := c.download.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download video: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("download video: unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

// WatchURL is the public Shorts URL for a video.
func WatchURL(videoID string) string {
	return "https://youtube.com/shorts/" + videoID
}

// CommentURL is the permalink of a comment on a video.
func CommentURL(videoID, commentID string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID) + "&lc=" + url.QueryEscape(commentID)
}

// BuildTitle is prefix followed by the article's hostname, capped at maxLen runes.
func BuildTitle(prefix, articleLink string, maxLen int) string {
	host := articleLink
	if u, err := url.Parse(articleLink); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	title := strings.TrimSpace(prefix + host)
	if maxLen <= 0 {
		maxLen = DefaultTitleMax
	}
	if runes := []rune(title); len(runes) > maxLen {
		title = strings.TrimSpace(string(runes[:maxLen]))
	}
	return title
}
