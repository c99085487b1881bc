package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate ensures the configuration is structurally usable.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return describe(err)
	}
	seen := make(map[string]bool, len(c.Channels))
	for _, ch := range c.Channels {
		if seen[ch.ID] {
			return fmt.Errorf("channels: duplicate channel id %q", ch.ID)
		}
		seen[ch.ID] = true
	}
	for name := range c.SMM.Services {
		switch name {
		case "views", "likes", "pin_likes", "comments":
		default:
			return fmt.Errorf("smm.services: unknown order type %q", name)
		}
	}
	return nil
}

// ValidateForRun checks the settings a publishing pass needs beyond Validate.
func (c *Config) ValidateForRun() error {
	var missing []string
	need := func(value, name string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	need(c.Feed.URL, "feed.url (RSS_URL)")
	need(c.Render.APIID, "render.api_id (CREATIFY_API_ID)")
	need(c.Render.APIKey, "render.api_key (CREATIFY_API_KEY)")
	need(c.LLM.APIKey, "llm.api_key (OPENAI_API_KEY)")
	need(c.YouTube.ClientID, "youtube.client_id (GOOGLE_CLIENT_ID)")
	need(c.YouTube.ClientSecret, "youtube.client_secret (GOOGLE_CLIENT_SECRET)")
	need(c.SMM.APIURL, "smm.api_url (SMM_API_URL)")
	need(c.SMM.APIKey, "smm.api_key (SMM_API_KEY)")
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// normalize trims values, canonicalizes enums and resolves paths.
func (c *Config) normalize() error {
	c.Feed.URL = strings.TrimSpace(c.Feed.URL)
	for i := range c.Channels {
		c.Channels[i].ID = strings.ToUpper(strings.TrimSpace(c.Channels[i].ID))
		c.Channels[i].Name = strings.TrimSpace(c.Channels[i].Name)
	}
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	c.YouTube.Privacy = strings.ToLower(strings.TrimSpace(c.YouTube.Privacy))
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))

	if c.Run.LockPath != "" {
		p, err := expandPath(c.Run.LockPath)
		if err != nil {
			return fmt.Errorf("run.lock_path: %w", err)
		}
		c.Run.LockPath = p
	}
	if c.Database.Driver == "sqlite" && c.Database.DSN != "" && !strings.HasPrefix(c.Database.DSN, "file:") {
		p, err := expandPath(c.Database.DSN)
		if err != nil {
			return fmt.Errorf("database.dsn: %w", err)
		}
		c.Database.DSN = p
	}
	return nil
}
