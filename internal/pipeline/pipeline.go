// Package pipeline turns one article into a published, promoted Short.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bryan-buckman/newsreel/internal/creatify"
	"github.com/bryan-buckman/newsreel/internal/llm"
	"github.com/bryan-buckman/newsreel/internal/model"
	"github.com/bryan-buckman/newsreel/internal/smm"
	"github.com/bryan-buckman/newsreel/internal/youtube"
)

// Stage names a step of the item pipeline.
type Stage string

// Pipeline stages, in execution order.
const (
	StageScript     Stage = "script"
	StageUpload     Stage = "upload"
	StageComment    Stage = "comment"
	StageEngagement Stage = "engagement"
)

// DefaultReplyCount is the number of reply comments requested per video.
const DefaultReplyCount = 2

// StageError reports the stage at which an article's pipeline failed.
type StageError struct {
	Stage Stage
	Link  string
	Cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed for %s: %v", e.Stage, e.Link, e.Cause)
}

func (e *StageError) Unwrap() error { return e.Cause }

// Renderer submits and polls render jobs.
type Renderer interface {
	Submit(ctx context.Context, req creatify.RenderRequest) (string, error)
	creatify.Poller
}

// Uploader publishes a rendered video.
type Uploader interface {
	Upload(ctx context.Context, channel model.ChannelID, req youtube.UploadRequest) (youtube.Video, error)
}

// Commenter posts a top-level comment and returns its URL.
type Commenter interface {
	PostComment(ctx context.Context, channel model.ChannelID, videoID, text string) (string, error)
}

// Options tune the pipeline.
type Options struct {
	PollInterval  time.Duration
	RenderTimeout time.Duration
	VideoLength   int
	TitleMaxLen   int
	ReplyCount    int
	Services      smm.Services
	// CommentParams and ReplyParams tune the two completions.
	CommentParams llm.Params
	ReplyParams   llm.Params
}

// Processor runs the item pipeline against its collaborators.
type Processor struct {
	renderer  Renderer
	completer llm.Completer
	uploader  Uploader
	commenter Commenter
	orderer   smm.Orderer
	opts      Options
	logger    *slog.Logger
}

// NewProcessor wires the pipeline collaborators.
func NewProcessor(r Renderer, c llm.Completer, u Uploader, cm Commenter, o smm.Orderer, opts Options, logger *slog.Logger) *Processor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = creatify.DefaultPollInterval
	}
	if opts.RenderTimeout <= 0 {
		opts.RenderTimeout = creatify.DefaultRenderTimeout
	}
	if opts.TitleMaxLen <= 0 {
		opts.TitleMaxLen = youtube.DefaultTitleMax
	}
	if opts.ReplyCount <= 0 {
		opts.ReplyCount = DefaultReplyCount
	}
	if opts.Services == nil {
		opts.Services = smm.DefaultServices()
	}
	if opts.CommentParams == (llm.Params{}) {
		opts.CommentParams = llm.PinnedCommentParams
	}
	if opts.ReplyParams == (llm.Params{}) {
		opts.ReplyParams = llm.ReplyParams
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		renderer:  r,
		completer: c,
		uploader:  u,
		commenter: cm,
		orderer:   o,
		opts:      opts,
		logger:    logger.With("component", "pipeline"),
	}
}

// ProcessOne renders, uploads, comments on and promotes a video for entry.
// Each stage runs only if the previous one succeeded.
func (p *Processor) ProcessOne(ctx context.Context, entry model.Entry, channel model.Channel) (model.ItemOutcome, error) {
	log := p.logger.With("channel", channel.ID, "article", entry.Link)
	fail := func(stage Stage, err error) (model.ItemOutcome, error) {
		return model.ItemOutcome{}, &StageError{Stage: stage, Link: entry.Link, Cause: err}
	}

	// script
	jobID, err := p.renderer.Submit(ctx, creatify.RenderRequest{
		ArticleURL: entry.Link,
		Persona:    channel.Persona,
		Length:     p.opts.VideoLength,
		Name:       entry.Title,
	})
	if err != nil {
		return fail(StageScript, err)
	}
	log.Info("render job submitted", "job_id", jobID)
	job, err := creatify.Await(ctx, p.renderer, jobID, p.opts.PollInterval, p.opts.RenderTimeout)
	if err != nil {
		return fail(StageScript, err)
	}

	// upload
	title := youtube.BuildTitle(channel.TitlePrefix, entry.Link, p.opts.TitleMaxLen)
	video, err := p.uploader.Upload(ctx, channel.ID, youtube.UploadRequest{
		SourceURL:   job.OutputURL,
		Title:       title,
		Description: channel.Description,
		Tags:        channel.Tags,
	})
	if err != nil {
		return fail(StageUpload, err)
	}
	log.Info("video uploaded", "video_id", video.ID, "url", video.WatchURL)

	// comment
	pinned, err := p.completer.Complete(ctx, llm.PinnedCommentPrompt(channel.CommentPersona, title), p.opts.CommentParams)
	if err != nil {
		return fail(StageComment, fmt.Errorf("generate pinned comment: %w", err))
	}
	pinned = llm.CleanComment(pinned)
	if pinned == "" {
		return fail(StageComment, fmt.Errorf("generate pinned comment: empty text"))
	}
	commentURL, err := p.commenter.PostComment(ctx, channel.ID, video.ID, pinned)
	if err != nil {
		return fail(StageComment, err)
	}
	replies := p.replies(ctx, log, channel, title)

	// engagement
	orders, err := smm.PlaceBundle(ctx, p.orderer, p.opts.Services, smm.Bundle{
		VideoURL:   video.WatchURL,
		CommentURL: commentURL,
		Replies:    replies,
	})
	if err != nil {
		log.Warn("engagement bundle incomplete", "placed", orders, "error", err)
		return fail(StageEngagement, err)
	}

	return model.ItemOutcome{
		Channel:            channel.ID,
		ArticleLink:        entry.Link,
		Title:              title,
		VideoID:            video.ID,
		VideoWatchURL:      video.WatchURL,
		CommentURL:         commentURL,
		EngagementOrderIDs: orders,
	}, nil
}

// replies never fails; generation or parse problems yield no replies.
func (p *Processor) replies(ctx context.Context, log *slog.Logger, channel model.Channel, title string) []string {
	text, err := p.completer.Complete(ctx, llm.RepliesPrompt(channel.CommentPersona, title, p.opts.ReplyCount), p.opts.ReplyParams)
	if err != nil {
		log.Warn("reply generation failed, continuing without replies", "error", err)
		return nil
	}
	replies := llm.ParseReplies(text, p.opts.ReplyCount)
	if len(replies) == 0 {
		log.Warn("reply generation returned no usable replies")
	}
	return replies
}
