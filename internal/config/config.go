package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	MicIndex   int    `yaml:"mic_index"` // -1 selects the system default capture device
	Rate       int    `yaml:"rate"`
	Chunk      int    `yaml:"chunk"` // frames per capture period
	Channels   int    `yaml:"channels"`
	ModelName  string `yaml:"model_name"`
	ModelDir   string `yaml:"model_dir"`
	Hotkey     string `yaml:"hotkey"`
	Trigger    string `yaml:"translation_trigger"`
	StopPhrase string `yaml:"stop_translation"`

	RobloxWindowTitle  string `yaml:"roblox_window_title"`
	ChineseAutocorrect bool   `yaml:"enable_chinese_autocorrect"`
	LogLevel           string `yaml:"log_level"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "voxchat")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultModelsDir returns the default directory for whisper models.
func DefaultModelsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "voxchat", "models")
}

// Default returns a Config with a default value for every key.
func Default() *Config {
	return &Config{
		MicIndex:           -1,
		Rate:               48000,
		Chunk:              4096,
		Channels:           1,
		ModelName:          "base",
		ModelDir:           DefaultModelsDir(),
		Hotkey:             "f2",
		Trigger:            "start translation",
		StopPhrase:         "stop translation",
		RobloxWindowTitle:  "Roblox",
		ChineseAutocorrect: false,
		LogLevel:           "info",
	}
}

// Load reads and parses a YAML config file. Missing keys keep their
// defaults; unknown keys are ignored.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Rate <= 0 {
		return fmt.Errorf("rate must be > 0")
	}

	if c.Chunk <= 0 {
		return fmt.Errorf("chunk must be > 0")
	}

	if c.Channels <= 0 {
		return fmt.Errorf("channels must be > 0")
	}

	if c.ModelName == "" {
		return fmt.Errorf("model_name must not be empty")
	}

	if c.Hotkey == "" {
		return fmt.Errorf("hotkey must not be empty")
	}

	if c.RobloxWindowTitle == "" {
		return fmt.Errorf("roblox_window_title must not be empty")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}
