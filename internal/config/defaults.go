package config

import (
	"path/filepath"
	"time"

	"github.com/bryan-buckman/newsreel/internal/llm"
	"github.com/bryan-buckman/newsreel/internal/worker"
)

const (
	avaPersona = "You are Ava, Group Dealer Strategist. You're sharp, analytical, and think big-picture about automotive SEO. " +
		"You understand the complexities of multi-location dealership groups and how to scale SEO strategies across markets. " +
		"Your insights are data-driven and focus on ROI, conversion optimization, and competitive positioning. " +
		"You speak with authority about technical SEO, local search, and the unique challenges dealers face in today's digital landscape."

	mayaPersona = "You are Maya, OEM Program Insider. You're professional, polished, and structured in your approach to automotive SEO. " +
		"You have deep knowledge of manufacturer programs, dealer compliance requirements, and how to navigate the complex relationship " +
		"between OEMs and their dealer networks. Your expertise spans brand guidelines, co-op advertising, and the delicate balance of " +
		"maintaining brand consistency while driving local performance. You're methodical, detail-oriented, and excel at translating " +
		"complex OEM requirements into actionable SEO strategies."
)

// Default returns the configuration used before any file or environment
// overrides are applied.
func Default() Config {
	dataDir := defaultDataDir()
	return Config{
		Feed: Feed{
			MaxItems:       30,
			TimeoutSeconds: 15,
		},
		Run: Run{
			PerChannel:              worker.DefaultPerChannel,
			FreshnessWindowHours:    int(worker.DefaultFreshnessWindow / time.Hour),
			LockPath:                filepath.Join(dataDir, "run.lock"),
			TimeoutMinutes:          120,
			ScheduleIntervalMinutes: 24 * 60,
		},
		Channels: []Channel{
			{
				ID:             "A",
				Name:           "Ava",
				Domains:        []string{"ahrefs.com", "moz.com", "seo.com"},
				TitlePrefix:    "Automotive SEO • ",
				Description:    "Quick automotive SEO tips. #Shorts",
				Tags:           []string{"automotive seo", "dealer seo", "shorts"},
				Persona:        avaPersona,
				CommentPersona: "Ava – sharp, analytical, big-picture",
			},
			{
				ID:             "B",
				Name:           "Maya",
				Domains:        []string{"developers.google.com", "blog.google", "searchengineland.com", "seroundtable.com"},
				TitlePrefix:    "Auto SEO Tip • ",
				Description:    "Daily automotive SEO plays. #Shorts",
				Tags:           []string{"seo", "car dealers", "shorts"},
				Persona:        mayaPersona,
				CommentPersona: "Maya – professional, polished, structured",
			},
		},
		Render: Render{
			BaseURL:             "https://api.creatify.ai",
			Language:            "en",
			VideoLength:         15,
			AspectRatio:         "9x16",
			ScriptStyle:         "ThreeReasonsWriter",
			VisualStyle:         "QuickTransitionTemplate",
			TargetPlatform:      "youtube_shorts",
			PollIntervalSeconds: 6,
			TimeoutMinutes:      10,
			Pronunciations: []Pronunciation{
				{Term: "Hrizn.io", Say: `Hrizn.io (pronounced "horizon dot eye-oh")`},
				{Term: "Hrizn", Say: `Hrizn (pronounced "horizon")`},
			},
		},
		LLM: LLM{
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			Temperature:    0.7,
			MaxTokens:      160,
			TimeoutSeconds: 30,
			Comment: Generation{
				Temperature: llm.PinnedCommentParams.Temperature,
				MaxTokens:   llm.PinnedCommentParams.MaxTokens,
			},
			Replies: Generation{
				Temperature: llm.ReplyParams.Temperature,
				MaxTokens:   llm.ReplyParams.MaxTokens,
			},
		},
		YouTube: YouTube{
			CategoryID:  "27",
			Privacy:     "public",
			TitleMaxLen: 100,
		},
		SMM: SMM{
			ReplyCount:     2,
			TimeoutSeconds: 30,
			Services: map[string]Service{
				"views":     {ID: 200, Quantity: 500},
				"likes":     {ID: 1217, Quantity: 15},
				"pin_likes": {ID: 115, Quantity: 15},
				"comments":  {ID: 1117},
			},
		},
		Database: Database{
			Driver: "sqlite",
			DSN:    filepath.Join(dataDir, "newsreel.db"),
		},
		Server: Server{
			Bind: "127.0.0.1:8080",
		},
		Logging: Logging{
			Level:  "info",
			Format: "auto",
		},
	}
}

func defaultDataDir() string {
	dir, err := expandPath("~/.local/share/newsreel")
	if err != nil || dir == "" {
		return "."
	}
	return dir
}
