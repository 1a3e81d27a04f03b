package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	// Core settings
	WorkDir     string `yaml:"work_dir"`
	TempDir     string `yaml:"temp_dir"`
	Concurrency int    `yaml:"concurrency"`

	Log        LogConfig        `yaml:"log"`
	Timeline   TimelineConfig   `yaml:"timeline"`
	Canvas     CanvasConfig     `yaml:"canvas"`
	FFmpeg     FFmpegConfig     `yaml:"ffmpeg"`
	Compositor CompositorConfig `yaml:"compositor"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Storage    StorageConfig    `yaml:"storage"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Server     ServerConfig     `yaml:"server"`

	// Overlay image assets by name
	Overlays OverlayConfig `yaml:"overlays"`
}

type LogConfig struct {
	Verbose bool `yaml:"verbose"`
	// console or json
	Format string `yaml:"format"`
}

type TimelineConfig struct {
	PixelsPerSecond   float64 `yaml:"pixels_per_second"`
	DefaultDurationMs float64 `yaml:"default_duration_ms"`
	MinTrimSeconds    float64 `yaml:"min_trim_seconds"`
	TickHz            int     `yaml:"tick_hz"`
	LegacyPlayWindow  bool    `yaml:"legacy_play_window"`
}

type CanvasConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

type FFmpegConfig struct {
	Threads    int    `yaml:"threads"`
	Preset     string `yaml:"preset"`
	FontFile   string `yaml:"font_file"`
	AudioCodec string `yaml:"audio_codec"`
}

type CompositorConfig struct {
	// letterbox or strict
	AspectPolicy     string `yaml:"aspect_policy"`
	FetchConcurrency int    `yaml:"fetch_concurrency"`
}

type TranscriptConfig struct {
	APIURL    string        `yaml:"api_url"`
	ExportURL string        `yaml:"export_url"`
	Timeout   time.Duration `yaml:"timeout"`
	Language  string        `yaml:"language"`
}

type StorageConfig struct {
	// sqlite or memory
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

type MonitorConfig struct {
	SlowCall time.Duration `yaml:"slow_call"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type OverlayConfig struct {
	Assets map[string]string `yaml:"assets"`
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks values the rest of the program divides by or switches on
func (c *Config) Validate() error {
	if c.Timeline.PixelsPerSecond <= 0 {
		return fmt.Errorf("timeline.pixels_per_second must be positive, got %v", c.Timeline.PixelsPerSecond)
	}
	if c.Timeline.TickHz <= 0 {
		return fmt.Errorf("timeline.tick_hz must be positive, got %d", c.Timeline.TickHz)
	}
	if c.Timeline.MinTrimSeconds < 0 {
		return fmt.Errorf("timeline.min_trim_seconds cannot be negative")
	}
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		return fmt.Errorf("canvas dimensions must be positive, got %vx%v", c.Canvas.Width, c.Canvas.Height)
	}
	switch c.Compositor.AspectPolicy {
	case "letterbox", "strict":
	default:
		return fmt.Errorf("compositor.aspect_policy must be letterbox or strict, got %q", c.Compositor.AspectPolicy)
	}
	switch c.Storage.Driver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("storage.driver must be sqlite or memory, got %q", c.Storage.Driver)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}

// Default returns the built-in configuration
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		WorkDir:     "./work",
		TempDir:     "./temp",
		Concurrency: 4,
		Log: LogConfig{
			Format: "console",
		},
		Timeline: TimelineConfig{
			PixelsPerSecond:   50,
			DefaultDurationMs: 5000,
			MinTrimSeconds:    1,
			TickHz:            60,
		},
		Canvas: CanvasConfig{
			Width:  1080,
			Height: 1080,
		},
		FFmpeg: FFmpegConfig{
			Threads:    0,
			Preset:     "medium",
			AudioCodec: "aac",
		},
		Compositor: CompositorConfig{
			AspectPolicy:     "letterbox",
			FetchConcurrency: 4,
		},
		Transcript: TranscriptConfig{
			APIURL:    "http://localhost:5000",
			ExportURL: "http://localhost:5001",
			Timeout:   60 * time.Second,
			Language:  "en",
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   filepath.Join(homeDir(), ".cutline", "cutline.db"),
		},
		Monitor: MonitorConfig{
			SlowCall: 15 * time.Second,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Overlays: OverlayConfig{
			Assets: make(map[string]string),
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		"./config.yml",
		filepath.Join(homeDir(), ".cutline", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.TempDir()
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
