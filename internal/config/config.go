// Package config loads newsreel configuration from TOML or YAML files,
// applies defaults and environment overrides, and validates the result.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:embed sample_config.toml
var sampleConfig string

// Feed configures the article source.
type Feed struct {
	URL            string `toml:"url" yaml:"url" validate:"omitempty,url"`
	MaxItems       int    `toml:"max_items" yaml:"max_items" validate:"gte=1"`
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds" validate:"gte=1"`
}

// Run configures the orchestrator and its schedule.
type Run struct {
	PerChannel              int    `toml:"per_channel" yaml:"per_channel" validate:"gte=0"`
	FreshnessWindowHours    int    `toml:"freshness_window_hours" yaml:"freshness_window_hours" validate:"gte=0"`
	LockPath                string `toml:"lock_path" yaml:"lock_path"`
	TimeoutMinutes          int    `toml:"timeout_minutes" yaml:"timeout_minutes" validate:"gte=1"`
	Schedule                bool   `toml:"schedule" yaml:"schedule"`
	ScheduleIntervalMinutes int    `toml:"schedule_interval_minutes" yaml:"schedule_interval_minutes" validate:"gte=15"`
}

// Channel is one persona channel.
type Channel struct {
	ID             string   `toml:"id" yaml:"id" validate:"required,oneof=A B"`
	Name           string   `toml:"name" yaml:"name" validate:"required"`
	Domains        []string `toml:"domains" yaml:"domains" validate:"min=1,dive,required"`
	TitlePrefix    string   `toml:"title_prefix" yaml:"title_prefix"`
	Description    string   `toml:"description" yaml:"description"`
	Tags           []string `toml:"tags" yaml:"tags"`
	Persona        string   `toml:"persona" yaml:"persona" validate:"required"`
	CommentPersona string   `toml:"comment_persona" yaml:"comment_persona"`
}

// Pronunciation rewrites a term in generated scripts.
type Pronunciation struct {
	Term string `toml:"term" yaml:"term" validate:"required"`
	Say  string `toml:"say" yaml:"say" validate:"required"`
}

// Render configures the video render API.
type Render struct {
	BaseURL             string          `toml:"base_url" yaml:"base_url" validate:"omitempty,url"`
	APIID               string          `toml:"api_id" yaml:"api_id"`
	APIKey              string          `toml:"api_key" yaml:"api_key"`
	Language            string          `toml:"language" yaml:"language"`
	VideoLength         int             `toml:"video_length" yaml:"video_length" validate:"gte=5,lte=180"`
	AspectRatio         string          `toml:"aspect_ratio" yaml:"aspect_ratio"`
	ScriptStyle         string          `toml:"script_style" yaml:"script_style"`
	VisualStyle         string          `toml:"visual_style" yaml:"visual_style"`
	TargetPlatform      string          `toml:"target_platform" yaml:"target_platform"`
	PollIntervalSeconds int             `toml:"poll_interval_seconds" yaml:"poll_interval_seconds" validate:"gte=1"`
	TimeoutMinutes      int             `toml:"timeout_minutes" yaml:"timeout_minutes" validate:"gte=1"`
	Pronunciations      []Pronunciation `toml:"pronunciations" yaml:"pronunciations" validate:"dive"`
}

// LLM configures comment text generation.
type LLM struct {
	Provider       string  `toml:"provider" yaml:"provider" validate:"oneof=openai gemini"`
	APIKey         string  `toml:"api_key" yaml:"api_key"`
	BaseURL        string  `toml:"base_url" yaml:"base_url" validate:"omitempty,url"`
	Model          string  `toml:"model" yaml:"model"`
	Temperature    float32 `toml:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens      int     `toml:"max_tokens" yaml:"max_tokens" validate:"gte=0"`
	TimeoutSeconds int     `toml:"timeout_seconds" yaml:"timeout_seconds" validate:"gte=0"`
	// Comment and Replies override Temperature and MaxTokens per prompt.
	Comment Generation `toml:"comment" yaml:"comment"`
	Replies Generation `toml:"replies" yaml:"replies"`
}

// Generation tunes one kind of completion. Zero values fall back to [llm].
type Generation struct {
	Temperature float32 `toml:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `toml:"max_tokens" yaml:"max_tokens" validate:"gte=0"`
}

// YouTube configures the upload client.
type YouTube struct {
	ClientID     string `toml:"client_id" yaml:"client_id"`
	ClientSecret string `toml:"client_secret" yaml:"client_secret"`
	CategoryID   string `toml:"category_id" yaml:"category_id"`
	Privacy      string `toml:"privacy" yaml:"privacy" validate:"oneof=public unlisted private"`
	TitleMaxLen  int    `toml:"title_max_len" yaml:"title_max_len" validate:"gte=1,lte=100"`
}

// Service is an SMM panel service id and quantity.
type Service struct {
	ID       int `toml:"id" yaml:"id" validate:"gte=1"`
	Quantity int `toml:"quantity" yaml:"quantity" validate:"gte=0"`
}

// SMM configures the paid engagement panel.
type SMM struct {
	APIURL         string             `toml:"api_url" yaml:"api_url" validate:"omitempty,url"`
	APIKey         string             `toml:"api_key" yaml:"api_key"`
	ReplyCount     int                `toml:"reply_count" yaml:"reply_count" validate:"gte=0,lte=10"`
	TimeoutSeconds int                `toml:"timeout_seconds" yaml:"timeout_seconds" validate:"gte=0"`
	Services       map[string]Service `toml:"services" yaml:"services" validate:"dive"`
}

// Database selects the state store backend.
type Database struct {
	Driver string `toml:"driver" yaml:"driver" validate:"oneof=sqlite postgres postgresql"`
	DSN    string `toml:"dsn" yaml:"dsn" validate:"required"`
}

// Server configures the HTTP API.
type Server struct {
	Bind     string `toml:"bind" yaml:"bind" validate:"required"`
	APIToken string `toml:"api_token" yaml:"api_token"`
}

// Logging configures log output.
type Logging struct {
	Level  string `toml:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" yaml:"format" validate:"oneof=auto text json"`
}

// Config is the full application configuration.
type Config struct {
	Feed     Feed      `toml:"feed" yaml:"feed"`
	Run      Run       `toml:"run" yaml:"run"`
	Channels []Channel `toml:"channels" yaml:"channels" validate:"min=1,dive"`
	Render   Render    `toml:"render" yaml:"render"`
	LLM      LLM       `toml:"llm" yaml:"llm"`
	YouTube  YouTube   `toml:"youtube" yaml:"youtube"`
	SMM      SMM       `toml:"smm" yaml:"smm"`
	Database Database  `toml:"database" yaml:"database"`
	Server   Server    `toml:"server" yaml:"server"`
	Logging  Logging   `toml:"logging" yaml:"logging"`
}

// DefaultConfigPath returns the per-user config location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/newsreel/config.toml")
}

// Load reads the config file at path (or the default locations when empty),
// applies environment overrides and validates the result. It returns the
// resolved path and whether a file was found.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		raw, err := os.ReadFile(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		if err := decode(resolvedPath, raw, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

// decode merges the file into cfg. List sections replace the defaults
// wholesale when the file sets them.
func decode(path string, raw []byte, cfg *Config) error {
	defaultChannels := cfg.Channels
	defaultPronunciations := cfg.Render.Pronunciations
	cfg.Channels = nil
	cfg.Render.Pronunciations = nil

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, cfg)
	default:
		err = toml.NewDecoder(bytes.NewReader(raw)).Decode(cfg)
	}
	if err != nil {
		return err
	}

	if len(cfg.Channels) == 0 {
		cfg.Channels = defaultChannels
	}
	if cfg.Render.Pronunciations == nil {
		cfg.Render.Pronunciations = defaultPronunciations
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	for _, name := range []string{"newsreel.toml", "newsreel.yaml", "newsreel.yml"} {
		projectPath, err := filepath.Abs(name)
		if err != nil {
			return "", false, err
		}
		if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
			return projectPath, true, nil
		}
	}
	return defaultPath, false, nil
}

// ExpandPath resolves ~ and makes pathValue absolute.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// CreateSample writes the annotated sample configuration to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
