// CLAUDE:SUMMARY Configuration struct and defaults for the notebook pipeline, plus the YAML file config.
package nbpipe

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/nbpipe/audit"
)

// Config configures the notebook pipeline.
type Config struct {
	// MaxFileSize is the maximum notebook size to read (default: 100 MB).
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size"`

	// Logger for debug/error messages.
	Logger *slog.Logger `json:"-" yaml:"-"`

	// Audit records tool invocations when set. Optional.
	Audit *audit.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 100 * 1024 * 1024
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// FileConfig is the optional YAML config file read by cmd/nbpipe.
// Environment variables take precedence over every field.
type FileConfig struct {
	MaxFileSize int64  `yaml:"max_file_size"`
	AuditDB     string `yaml:"audit_db"`
	Transport   string `yaml:"transport"` // "stdio" or "http"
	HTTPAddr    string `yaml:"http_addr"`
	LogLevel    string `yaml:"log_level"`
}

// LoadFileConfig reads and parses a YAML config file.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &fc, nil
}
