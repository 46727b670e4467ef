package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/danmuck/wirescript/internal/protocol/frame"
	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultLabel           = "wire"
	DefaultReadBufferBytes = 32 * 1024
)

// Config drives the wirescript CLI.
type Config struct {
	// Script is resolved relative to the config file.
	Script           string `toml:"script"`
	Label            string `toml:"label"`
	MaxMessageBytes  int    `toml:"max_message_bytes"`
	MaxBufferedBytes int    `toml:"max_buffered_bytes"`
	ReadBufferBytes  int    `toml:"read_buffer_bytes"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Label:           DefaultLabel,
		MaxMessageBytes: frame.DefaultLimits().MaxMessageBytes,
		ReadBufferBytes: DefaultReadBufferBytes,
	}
}

func Load(path string) (Config, error) {
	cfg := Default()
	if err := loadToml(path, &cfg); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.Label) == "" {
		cfg.Label = DefaultLabel
	}
	if cfg.ReadBufferBytes == 0 {
		cfg.ReadBufferBytes = DefaultReadBufferBytes
	}
	if cfg.Script != "" && !filepath.IsAbs(cfg.Script) {
		cfg.Script = filepath.Join(filepath.Dir(path), cfg.Script)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Label) == "" {
		return fmt.Errorf("config missing label")
	}
	if cfg.MaxMessageBytes < 0 {
		return fmt.Errorf("max_message_bytes must not be negative")
	}
	if cfg.MaxBufferedBytes < 0 {
		return fmt.Errorf("max_buffered_bytes must not be negative")
	}
	if cfg.ReadBufferBytes <= 0 {
		return fmt.Errorf("read_buffer_bytes must be positive")
	}
	if cfg.MaxBufferedBytes > 0 && cfg.MaxMessageBytes > cfg.MaxBufferedBytes {
		return fmt.Errorf("max_message_bytes (%d) exceeds max_buffered_bytes (%d)",
			cfg.MaxMessageBytes, cfg.MaxBufferedBytes)
	}
	return nil
}

// Limits maps the configured caps onto parser limits.
func (c Config) Limits() frame.Limits {
	return frame.Limits{
		MaxMessageBytes:  c.MaxMessageBytes,
		MaxBufferedBytes: c.MaxBufferedBytes,
	}
}
