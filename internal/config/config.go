// Package config loads the civscope service configuration from defaults, an
// optional yaml or toml file and CIVSCOPE_* environment variables, in that
// order.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CIVSCOPE_"

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Source   SourceConfig   `yaml:"source" toml:"source" envPrefix:"SOURCE_"`
	History  HistoryConfig  `yaml:"history" toml:"history" envPrefix:"HISTORY_"`
	Playback PlaybackConfig `yaml:"playback" toml:"playback" envPrefix:"PLAYBACK_"`
	Render   RenderConfig   `yaml:"render" toml:"render" envPrefix:"RENDER_"`
	Hover    HoverConfig    `yaml:"hover" toml:"hover" envPrefix:"HOVER_"`
	Server   ServerConfig   `yaml:"server" toml:"server" envPrefix:"SERVER_"`
	Record   RecordConfig   `yaml:"record" toml:"record" envPrefix:"RECORD_"`
}

type SourceConfig struct {
	// URL is the simulation base URL or a recording directory.
	URL              string `yaml:"url" toml:"url" env:"URL"`
	PollIntervalMS   int    `yaml:"poll_interval_ms" toml:"poll_interval_ms" env:"POLL_INTERVAL_MS"`
	RequestTimeoutMS int    `yaml:"request_timeout_ms" toml:"request_timeout_ms" env:"REQUEST_TIMEOUT_MS"`
}

type HistoryConfig struct {
	MaxHistory int `yaml:"max_history" toml:"max_history" env:"MAX_HISTORY"`
}

type PlaybackConfig struct {
	ReplayIntervalMS int `yaml:"replay_interval_ms" toml:"replay_interval_ms" env:"REPLAY_INTERVAL_MS"`
}

type RenderConfig struct {
	FrameHz      int     `yaml:"frame_hz" toml:"frame_hz" env:"FRAME_HZ"`
	CanvasWidth  float64 `yaml:"canvas_width" toml:"canvas_width" env:"CANVAS_WIDTH"`
	CanvasHeight float64 `yaml:"canvas_height" toml:"canvas_height" env:"CANVAS_HEIGHT"`
	DisplayScale float64 `yaml:"display_scale" toml:"display_scale" env:"DISPLAY_SCALE"`
}

type HoverConfig struct {
	BaseThreshold  float64 `yaml:"base_threshold" toml:"base_threshold" env:"BASE_THRESHOLD"`
	Margin         float64 `yaml:"margin" toml:"margin" env:"MARGIN"`
	HitScale       float64 `yaml:"hit_scale" toml:"hit_scale" env:"HIT_SCALE"`
	PriorityWeight float64 `yaml:"priority_weight" toml:"priority_weight" env:"PRIORITY_WEIGHT"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr" toml:"addr" env:"ADDR"`
	AllowRemote bool   `yaml:"allow_remote" toml:"allow_remote" env:"ALLOW_REMOTE"`
}

type RecordConfig struct {
	// Dir enables batch recording when set.
	Dir string `yaml:"dir" toml:"dir" env:"DIR"`
	// IndexPath enables the sqlite tick/era index when set.
	IndexPath string `yaml:"index_path" toml:"index_path" env:"INDEX_PATH"`
}

func Default() Config {
	return Config{
		Source:   SourceConfig{URL: "http://127.0.0.1:8000", PollIntervalMS: 250, RequestTimeoutMS: 5000},
		History:  HistoryConfig{MaxHistory: 1500},
		Playback: PlaybackConfig{ReplayIntervalMS: 120},
		Render:   RenderConfig{FrameHz: 60, CanvasWidth: 960, CanvasHeight: 960, DisplayScale: 1},
		Hover:    HoverConfig{BaseThreshold: 10, Margin: 5, HitScale: 1.75, PriorityWeight: 0.8},
		Server:   ServerConfig{Addr: "127.0.0.1:8090"},
	}
}

// Load reads path (empty means defaults only), applies environment
// overrides, then normalizes and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return cfg, err
		}
	}
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, c); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	case ".toml":
		if _, err := toml.Decode(string(raw), c); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	default:
		return fmt.Errorf("%w: unsupported config extension %q", ErrInvalid, ext)
	}
	return nil
}

// ParseEnv applies CIVSCOPE_* overrides; unset variables leave fields alone.
func ParseEnv(target *Config) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Normalize fills zero values with defaults and trims strings.
func (c *Config) Normalize() {
	d := Default()
	c.Source.URL = strings.TrimSpace(c.Source.URL)
	c.Server.Addr = strings.TrimSpace(c.Server.Addr)
	c.Record.Dir = strings.TrimSpace(c.Record.Dir)
	c.Record.IndexPath = strings.TrimSpace(c.Record.IndexPath)
	if c.Source.PollIntervalMS == 0 {
		c.Source.PollIntervalMS = d.Source.PollIntervalMS
	}
	if c.Source.RequestTimeoutMS == 0 {
		c.Source.RequestTimeoutMS = d.Source.RequestTimeoutMS
	}
	if c.History.MaxHistory == 0 {
		c.History.MaxHistory = d.History.MaxHistory
	}
	if c.Playback.ReplayIntervalMS == 0 {
		c.Playback.ReplayIntervalMS = d.Playback.ReplayIntervalMS
	}
	if c.Render.FrameHz == 0 {
		c.Render.FrameHz = d.Render.FrameHz
	}
	if c.Render.CanvasWidth == 0 {
		c.Render.CanvasWidth = d.Render.CanvasWidth
	}
	if c.Render.CanvasHeight == 0 {
		c.Render.CanvasHeight = d.Render.CanvasHeight
	}
	if c.Render.DisplayScale == 0 {
		c.Render.DisplayScale = d.Render.DisplayScale
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
}

func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}
	if c.Source.URL == "" {
		add("source.url is required")
	}
	if c.Source.PollIntervalMS < 10 {
		add("source.poll_interval_ms must be >= 10")
	}
	if c.Source.RequestTimeoutMS <= 0 {
		add("source.request_timeout_ms must be > 0")
	}
	if c.History.MaxHistory < 1 {
		add("history.max_history must be >= 1")
	}
	if c.Playback.ReplayIntervalMS < 1 {
		add("playback.replay_interval_ms must be >= 1")
	}
	if c.Render.FrameHz < 1 || c.Render.FrameHz > 240 {
		add("render.frame_hz must be in [1,240]")
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"render.canvas_width", c.Render.CanvasWidth},
		{"render.canvas_height", c.Render.CanvasHeight},
		{"render.display_scale", c.Render.DisplayScale},
		{"hover.base_threshold", c.Hover.BaseThreshold},
		{"hover.hit_scale", c.Hover.HitScale},
	} {
		if f.v <= 0 || math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			add("%s must be positive", f.name)
		}
	}
	if c.Hover.Margin < 0 || c.Hover.PriorityWeight < 0 {
		add("hover.margin and hover.priority_weight must be >= 0")
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Source.PollIntervalMS) * time.Millisecond
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Source.RequestTimeoutMS) * time.Millisecond
}

func (c Config) ReplayInterval() time.Duration {
	return time.Duration(c.Playback.ReplayIntervalMS) * time.Millisecond
}

func (c Config) FrameInterval() time.Duration {
	if c.Render.FrameHz <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.Render.FrameHz)
}

// SourceIsRecording reports whether the source URL names a local directory.
func (c Config) SourceIsRecording() bool {
	u := c.Source.URL
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return false
	}
	fi, err := os.Stat(strings.TrimPrefix(u, "file://"))
	return err == nil && fi.IsDir()
}
