package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vampirenirmal/raylm/internal/core"
)

// Config is the single immutable configuration value built at startup and
// passed into every component constructor. No component reads ambient state.
type Config struct {
	AI        AIConfig        `yaml:"ai"`
	Render    RenderConfig    `yaml:"render"`
	Animation AnimationConfig `yaml:"animation"`
	Paths     PathsConfig     `yaml:"paths"`
	Limits    Limits          `yaml:"limits"`
}

type AIConfig struct {
	// APIKey is checked in Validate, not by tag: it is only required when
	// the run actually calls the AI gateway.
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url" validate:"omitempty,url"`
	GeneratorModel string `yaml:"generator_model" validate:"required"`
	VerifierModel  string `yaml:"verifier_model" validate:"required"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"min=1,max=600"`
}

type RenderConfig struct {
	Width   int `yaml:"width" validate:"required,min=16,max=8192"`
	Height  int `yaml:"height" validate:"required,min=16,max=8192"`
	Quality int `yaml:"quality" validate:"min=0,max=11"`
	// TimeoutSeconds bounds one renderer invocation; 0 waits forever.
	TimeoutSeconds int `yaml:"timeout_seconds" validate:"min=0"`
}

type AnimationConfig struct {
	FPS             int     `yaml:"fps" validate:"min=1,max=120"`
	DurationSeconds float64 `yaml:"duration_seconds" validate:"gt=0"`
}

type PathsConfig struct {
	OutputDir string `yaml:"output_dir" validate:"required"`
}

type Limits struct {
	MaxRetries int             `yaml:"max_retries" validate:"min=1,max=10"`
	APIRetries int             `yaml:"api_retries" validate:"min=1,max=10"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
	// VerifyStrict makes a verification failure fatal instead of falling
	// back to the unverified draft.
	VerifyStrict bool `yaml:"verify_strict"`
	Backups      bool `yaml:"backups"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"min=1,max=1000"`
	BurstSize         int `yaml:"burst_size" validate:"min=1,max=100"`
}

// Presets maps named resolutions to explicit dimensions.
var Presets = map[string][2]int{
	"480p":  {854, 480},
	"720p":  {1280, 720},
	"1080p": {1920, 1080},
	"4k":    {3840, 2160},
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		AI: AIConfig{
			GeneratorModel: "zaguanai/gemini-3-pro-preview",
			VerifierModel:  "zaguanai/claude-sonnet-4.5-latest",
			TimeoutSeconds: 60,
		},
		Render: RenderConfig{
			Width:   800,
			Height:  600,
			Quality: 9,
		},
		Animation: AnimationConfig{
			FPS:             24,
			DurationSeconds: 2.0,
		},
		Paths: PathsConfig{
			OutputDir: "output",
		},
		Limits: Limits{
			MaxRetries: 3,
			APIRetries: 3,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 30,
				BurstSize:         5,
			},
			Backups: true,
		},
	}
}

// Load builds the configuration: defaults, then the optional YAML config
// file, then environment credentials from .env or the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	configPath := getConfigPath()
	data, err := os.ReadFile(configPath)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if key := os.Getenv("ZAGUAN_API_KEY"); key != "" {
		cfg.AI.APIKey = key
	}
	if base := os.Getenv("ZAGUAN_BASE_URL"); base != "" {
		cfg.AI.BaseURL = base
	}

	return cfg, nil
}

func getConfigPath() string {
	if path := os.Getenv("RAYLM_CONFIG"); path != "" {
		return path
	}
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "raylm", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "raylm", "config.yaml")
}

// ApplyPreset overrides the render resolution from a named preset.
func (c *Config) ApplyPreset(name string) error {
	dims, ok := Presets[name]
	if !ok {
		return core.NewConfigError("preset", fmt.Sprintf("unknown resolution preset %q", name))
	}
	c.Render.Width, c.Render.Height = dims[0], dims[1]
	return nil
}

// ApplyPreview switches to the fast low-quality preview profile.
func (c *Config) ApplyPreview() {
	c.Render.Width, c.Render.Height = 320, 240
	c.Render.Quality = 4
}

// Validate checks the assembled configuration. It runs once, before any
// pipeline work starts. The API key is only required when requireAI is
// set; rendering an existing file needs no credentials.
func (c *Config) Validate(requireAI bool) error {
	if requireAI && c.AI.APIKey == "" {
		return core.NewConfigError("ai.api_key",
			"API key not found; set ZAGUAN_API_KEY in the environment or .env")
	}

	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return core.NewConfigError(first.Namespace(),
				fmt.Sprintf("failed %q validation (value %v)", first.Tag(), first.Value()))
		}
		return core.NewConfigError("", err.Error())
	}

	// Megapixel ceiling on top of the per-axis bounds.
	if c.Render.Width*c.Render.Height > 50_000_000 {
		return core.NewConfigError("render",
			fmt.Sprintf("resolution %dx%d exceeds 50 megapixels", c.Render.Width, c.Render.Height))
	}

	return nil
}

// RenderTimeout converts the configured render timeout seconds to a duration.
func (c *Config) RenderTimeout() time.Duration {
	return time.Duration(c.Render.TimeoutSeconds) * time.Second
}

// APITimeout converts the configured AI call timeout seconds to a duration.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.AI.TimeoutSeconds) * time.Second
}
