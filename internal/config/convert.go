package config

import (
	"time"

	"github.com/bryan-buckman/newsreel/internal/creatify"
	"github.com/bryan-buckman/newsreel/internal/llm"
	"github.com/bryan-buckman/newsreel/internal/model"
	"github.com/bryan-buckman/newsreel/internal/smm"
	"github.com/bryan-buckman/newsreel/internal/youtube"
)

// ModelChannels returns the channels in processing order.
func (c *Config) ModelChannels() []model.Channel {
	out := make([]model.Channel, 0, len(c.Channels))
	for _, ch := range c.Channels {
		out = append(out, model.Channel{
			ID:             model.ChannelID(ch.ID),
			Name:           ch.Name,
			Domains:        append([]string(nil), ch.Domains...),
			TitlePrefix:    ch.TitlePrefix,
			Description:    ch.Description,
			Tags:           append([]string(nil), ch.Tags...),
			Persona:        ch.Persona,
			CommentPersona: ch.CommentPersona,
		})
	}
	return out
}

// FeedTimeout is the feed request timeout.
func (c *Config) FeedTimeout() time.Duration {
	return time.Duration(c.Feed.TimeoutSeconds) * time.Second
}

// FreshnessWindow is how long a processed article stays ineligible.
func (c *Config) FreshnessWindow() time.Duration {
	return time.Duration(c.Run.FreshnessWindowHours) * time.Hour
}

// RunTimeout bounds a single pass.
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.Run.TimeoutMinutes) * time.Minute
}

// ScheduleInterval is the gap between scheduled passes.
func (c *Config) ScheduleInterval() time.Duration {
	return time.Duration(c.Run.ScheduleIntervalMinutes) * time.Minute
}

// CreatifyConfig returns the render client settings.
func (c *Config) CreatifyConfig() creatify.Config {
	rules := make([]creatify.Pronunciation, 0, len(c.Render.Pronunciations))
	for _, p := range c.Render.Pronunciations {
		rules = append(rules, creatify.Pronunciation{Term: p.Term, Say: p.Say})
	}
	return creatify.Config{
		BaseURL:        c.Render.BaseURL,
		APIID:          c.Render.APIID,
		APIKey:         c.Render.APIKey,
		Language:       c.Render.Language,
		VideoLength:    c.Render.VideoLength,
		AspectRatio:    c.Render.AspectRatio,
		ScriptStyle:    c.Render.ScriptStyle,
		VisualStyle:    c.Render.VisualStyle,
		TargetPlatform: c.Render.TargetPlatform,
		Pronunciations: rules,
	}
}

// LLMConfig returns the text generation settings.
func (c *Config) LLMConfig() llm.Config {
	return llm.Config{
		Provider:       c.LLM.Provider,
		APIKey:         c.LLM.APIKey,
		BaseURL:        c.LLM.BaseURL,
		Model:          c.LLM.Model,
		Temperature:    c.LLM.Temperature,
		MaxTokens:      c.LLM.MaxTokens,
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}

// CommentParams returns the pinned comment generation settings.
func (c *Config) CommentParams() llm.Params {
	return llm.Params{Temperature: c.LLM.Comment.Temperature, MaxTokens: c.LLM.Comment.MaxTokens}
}

// ReplyParams returns the reply generation settings.
func (c *Config) ReplyParams() llm.Params {
	return llm.Params{Temperature: c.LLM.Replies.Temperature, MaxTokens: c.LLM.Replies.MaxTokens}
}

// YouTubeConfig returns the upload client settings.
func (c *Config) YouTubeConfig() youtube.Config {
	return youtube.Config{
		ClientID:     c.YouTube.ClientID,
		ClientSecret: c.YouTube.ClientSecret,
		CategoryID:   c.YouTube.CategoryID,
		Privacy:      c.YouTube.Privacy,
	}
}

// SMMServices returns the panel services per order type. Order types not
// configured fall back to the built-in defaults.
func (c *Config) SMMServices() smm.Services {
	services := smm.DefaultServices()
	for name, svc := range c.SMM.Services {
		services[model.OrderType(name)] = smm.Service{ID: svc.ID, Quantity: svc.Quantity}
	}
	return services
}

// SMMTimeout is the panel request timeout.
func (c *Config) SMMTimeout() time.Duration {
	return time.Duration(c.SMM.TimeoutSeconds) * time.Second
}

// RenderPollInterval is the gap between render job polls.
func (c *Config) RenderPollInterval() time.Duration {
	return time.Duration(c.Render.PollIntervalSeconds) * time.Second
}

// RenderTimeout is the render job ceiling.
func (c *Config) RenderTimeout() time.Duration {
	return time.Duration(c.Render.TimeoutMinutes) * time.Minute
}
