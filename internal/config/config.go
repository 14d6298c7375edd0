// SPDX-License-Identifier: MIT

// Package config loads and validates daemon configuration from a YAML file
// with REELCAST_* environment overrides.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration.
type Config struct {
	Listen   string `yaml:"listen"`
	LogLevel string `yaml:"logLevel"`
	WorkDir  string `yaml:"workDir"`

	Capture CaptureConfig `yaml:"capture"`
	FFmpeg  FFmpegConfig  `yaml:"ffmpeg"`
	Publish PublishConfig `yaml:"publish"`
	Notify  NotifyConfig  `yaml:"notify"`
	Upload  UploadConfig  `yaml:"upload"`
	API     APIConfig     `yaml:"api"`
}

// CaptureConfig selects the desktop capture sources.
type CaptureConfig struct {
	Display     string  `yaml:"display"`     // X11 display for screen capture
	PulseDevice string  `yaml:"pulseDevice"` // PulseAudio source for the microphone
	FrameRate   float64 `yaml:"frameRate"`
}

// FFmpegConfig locates the external media binaries.
type FFmpegConfig struct {
	Bin       string        `yaml:"bin"`
	ProbeBin  string        `yaml:"probeBin"`
	KillGrace time.Duration `yaml:"killGrace"`
}

// PublishConfig points at the remote session service.
type PublishConfig struct {
	BaseURL  string        `yaml:"baseUrl"`
	APIToken string        `yaml:"apiToken"`
	OrgID    string        `yaml:"orgId"`
	FolderID string        `yaml:"folderId"`
	Timeout  time.Duration `yaml:"timeout"`
}

// NotifyConfig points at the progress notification sink.
type NotifyConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	TicksPerSec float64 `yaml:"ticksPerSec"`
}

// UploadConfig tunes artifact transfers.
type UploadConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// APIConfig tunes the HTTP control surface.
type APIConfig struct {
	RateLimit  int           `yaml:"rateLimit"`
	RateWindow time.Duration `yaml:"rateWindow"`
}

// Default returns the built-in defaults applied before file and env merging.
func Default() Config {
	return Config{
		Listen:   ":8484",
		LogLevel: "info",
		WorkDir:  os.TempDir(),
		Capture: CaptureConfig{
			Display:     ":0",
			PulseDevice: "default",
			FrameRate:   30,
		},
		FFmpeg: FFmpegConfig{
			Bin:       "ffmpeg",
			ProbeBin:  "ffprobe",
			KillGrace: 5 * time.Second,
		},
		Publish: PublishConfig{
			Timeout: 30 * time.Second,
		},
		Notify: NotifyConfig{
			TicksPerSec: 4,
		},
		Upload: UploadConfig{
			Timeout: 10 * time.Minute,
		},
		API: APIConfig{
			RateLimit:  30,
			RateWindow: time.Minute,
		},
	}
}

// Load reads path (optional: "" skips the file), applies env overrides and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("REELCAST_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("REELCAST_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("REELCAST_WORK_DIR"); v != "" {
		cfg.WorkDir = v
	}
	if v := os.Getenv("REELCAST_CAPTURE_DISPLAY"); v != "" {
		cfg.Capture.Display = v
	}
	if v := os.Getenv("REELCAST_CAPTURE_PULSE_DEVICE"); v != "" {
		cfg.Capture.PulseDevice = v
	}
	if v := os.Getenv("REELCAST_FFMPEG_BIN"); v != "" {
		cfg.FFmpeg.Bin = v
	}
	if v := os.Getenv("REELCAST_FFPROBE_BIN"); v != "" {
		cfg.FFmpeg.ProbeBin = v
	}
	if v := os.Getenv("REELCAST_PUBLISH_BASE_URL"); v != "" {
		cfg.Publish.BaseURL = v
	}
	if v := os.Getenv("REELCAST_PUBLISH_API_TOKEN"); v != "" {
		cfg.Publish.APIToken = v
	}
	if v := os.Getenv("REELCAST_PUBLISH_ORG_ID"); v != "" {
		cfg.Publish.OrgID = v
	}
	if v := os.Getenv("REELCAST_PUBLISH_FOLDER_ID"); v != "" {
		cfg.Publish.FolderID = v
	}
	if v := os.Getenv("REELCAST_NOTIFY_ENDPOINT"); v != "" {
		cfg.Notify.Endpoint = v
	}
	if v := os.Getenv("REELCAST_API_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.API.RateLimit = n
		}
	}
}

// Validate rejects configurations the daemon cannot run with.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.WorkDir == "" {
		return fmt.Errorf("workDir must not be empty")
	}
	if c.Publish.BaseURL != "" {
		u, err := url.Parse(c.Publish.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("publish.baseUrl %q is not an absolute URL", c.Publish.BaseURL)
		}
	}
	if c.Notify.Endpoint != "" {
		u, err := url.Parse(c.Notify.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("notify.endpoint %q is not an absolute URL", c.Notify.Endpoint)
		}
	}
	if c.API.RateLimit < 1 {
		return fmt.Errorf("api.rateLimit must be >= 1")
	}
	if c.API.RateWindow <= 0 {
		return fmt.Errorf("api.rateWindow must be positive")
	}
	if c.Notify.TicksPerSec <= 0 {
		return fmt.Errorf("notify.ticksPerSec must be positive")
	}
	if c.Capture.FrameRate <= 0 {
		return fmt.Errorf("capture.frameRate must be positive")
	}
	return nil
}
