package main

import (
	"bytes"
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/natefinch/atomic"

	"github.com/amenyxia/templar/pkg/template"
)

// Config holds the generator's settings: where templates and data live,
// where output goes, and the default delimiter syntax. A template can
// override the syntax with an adjacent <name>.syntax.json file.
type Config struct {
	TemplateGlob string          `json:"template_glob"`
	OutputDir    string          `json:"output_dir"`
	DataFile     string          `json:"data_file"`
	DatabasePath string          `json:"database_path"`
	LogLevel     string          `json:"log_level"`
	Workers      int             `json:"workers"`
	Syntax       template.Syntax `json:"syntax"`
}

// DefaultConfig returns a Config with sensible defaults. Workers at zero
// means one worker per CPU.
func DefaultConfig() *Config {
	return &Config{
		TemplateGlob: "./templates/*.tmpl",
		OutputDir:    "./out",
		DataFile:     "./data.yaml",
		DatabasePath: "./templar.db?_journal_mode=WAL&_busy_timeout=5000",
		LogLevel:     "info",
		Workers:      0,
		Syntax:       template.DefaultSyntax(),
	}
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		// If the file doesn't exist, create it with the default config.
		if os.IsNotExist(err) {
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// Log a warning instead of failing, as the generator can still run with defaults.
				fmt.Printf("warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err = config.Syntax.Validate(); err != nil {
		return nil, fmt.Errorf("invalid default syntax in config: %w", err)
	}

	return config, nil
}
