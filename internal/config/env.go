package config

import (
	"os"
	"strconv"
	"strings"
)

// applyEnvOverrides lets secrets and deployment settings come from the
// environment. The unprefixed names match the variables the hosted deployment
// already sets.
func (c *Config) applyEnvOverrides() {
	setString(&c.Feed.URL, "NEWSREEL_FEED_URL", "RSS_URL")
	setInt(&c.Run.PerChannel, "NEWSREEL_PER_CHANNEL", "DAILY_PER_CHANNEL")
	setString(&c.Run.LockPath, "NEWSREEL_LOCK_PATH")

	setString(&c.Render.APIID, "NEWSREEL_RENDER_API_ID", "CREATIFY_API_ID")
	setString(&c.Render.APIKey, "NEWSREEL_RENDER_API_KEY", "CREATIFY_API_KEY")

	setString(&c.LLM.Provider, "NEWSREEL_LLM_PROVIDER")
	setString(&c.LLM.Model, "NEWSREEL_LLM_MODEL", "OPENAI_MODEL")
	switch c.LLM.Provider {
	case "gemini":
		setString(&c.LLM.APIKey, "NEWSREEL_LLM_API_KEY", "GEMINI_API_KEY")
	default:
		setString(&c.LLM.APIKey, "NEWSREEL_LLM_API_KEY", "OPENAI_API_KEY")
	}

	setString(&c.YouTube.ClientID, "GOOGLE_CLIENT_ID")
	setString(&c.YouTube.ClientSecret, "GOOGLE_CLIENT_SECRET")

	setString(&c.SMM.APIURL, "NEWSREEL_SMM_API_URL", "SMM_API_URL", "NUCLEAR_API_URL")
	setString(&c.SMM.APIKey, "NEWSREEL_SMM_API_KEY", "SMM_API_KEY", "NUCLEAR_API_KEY")

	if v := lookup("DATABASE_URL"); v != "" {
		c.Database.Driver = "postgres"
		c.Database.DSN = v
	}
	setString(&c.Server.Bind, "NEWSREEL_BIND")
	setString(&c.Server.APIToken, "NEWSREEL_API_TOKEN")
	setString(&c.Logging.Level, "NEWSREEL_LOG_LEVEL")
	setString(&c.Logging.Format, "NEWSREEL_LOG_FORMAT")
}

// lookup returns the first non-empty variable among names.
func lookup(names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

func setString(dst *string, names ...string) {
	if v := lookup(names...); v != "" {
		*dst = v
	}
}

func setInt(dst *int, names ...string) {
	if v := lookup(names...); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
