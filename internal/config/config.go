package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// DataPath is the root directory for all job artifacts
	// (uploads, audio, transcripts, scene indexes, clips)
	DataPath string `yaml:"data_path"`

	// FFmpegPath is the path to the ffmpeg binary (default: "ffmpeg")
	FFmpegPath string `yaml:"ffmpeg_path"`

	// FFprobePath is the path to the ffprobe binary (default: "ffprobe")
	FFprobePath string `yaml:"ffprobe_path"`

	// OpenAIBaseURL overrides the OpenAI API base URL (for compatible
	// transcription backends). Empty uses the default endpoint.
	OpenAIBaseURL string `yaml:"openai_base_url"`

	// EmbedServerURL is the base URL of the CLIP embedding sidecar
	EmbedServerURL string `yaml:"embed_server_url"`

	// EmbedBatchSize is how many frames are embedded per request (default 64)
	EmbedBatchSize int `yaml:"embed_batch_size"`

	// SampleIntervalSec is the frame sampling cadence in seconds (default 3)
	SampleIntervalSec int `yaml:"sample_interval_sec"`

	// FrameWidth is the resize width applied before embedding (default 320)
	FrameWidth int `yaml:"frame_width"`

	// DefaultClipDuration is the clip length in seconds when a search
	// request doesn't specify one (default 10)
	DefaultClipDuration float64 `yaml:"default_clip_duration"`

	// LogLevel sets logging verbosity: debug, info, warn, error (default info)
	LogLevel string `yaml:"log_level"`

	// LogFormat is "text" or "json" (default text)
	LogFormat string `yaml:"log_format"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		DataPath:            "data",
		FFmpegPath:          "ffmpeg",
		FFprobePath:         "ffprobe",
		EmbedServerURL:      "http://localhost:8091",
		EmbedBatchSize:      64,
		SampleIntervalSec:   3,
		FrameWidth:          320,
		DefaultClipDuration: 10,
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

// Load reads config from a YAML file, applying defaults for missing values
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file - use defaults
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Apply defaults for empty values
	if cfg.DataPath == "" {
		cfg.DataPath = "data"
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.EmbedServerURL == "" {
		cfg.EmbedServerURL = "http://localhost:8091"
	}
	if cfg.EmbedBatchSize < 1 {
		cfg.EmbedBatchSize = 64
	}
	if cfg.SampleIntervalSec < 1 {
		cfg.SampleIntervalSec = 3
	}
	if cfg.FrameWidth < 1 {
		cfg.FrameWidth = 320
	}
	if cfg.DefaultClipDuration <= 0 {
		cfg.DefaultClipDuration = 10
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}

	return cfg, nil
}

// Save writes the config to a YAML file
func (c *Config) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
