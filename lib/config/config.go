// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/abp/lib/retry"
)

// Config is the host runner configuration.
type Config struct {
	// Sidecar describes the sidecar process to spawn.
	Sidecar SidecarConfig `json:"sidecar" yaml:"sidecar"`

	// Retry is the spawn retry policy.
	Retry RetryConfig `json:"retry" yaml:"retry"`

	// Run describes the work order to submit.
	Run RunConfig `json:"run" yaml:"run"`

	// Transcript configures session persistence.
	Transcript TranscriptConfig `json:"transcript" yaml:"transcript"`
}

// SidecarConfig describes the sidecar process.
type SidecarConfig struct {
	// Command is the executable to run. Required.
	Command string `json:"command" yaml:"command"`

	// Args are passed to the command.
	Args []string `json:"args" yaml:"args"`

	// Env is added to the inherited environment.
	Env map[string]string `json:"env" yaml:"env"`

	// Dir is the working directory for the process.
	Dir string `json:"dir" yaml:"dir"`
}

// RetryConfig is the spawn retry policy. Delays are Go duration
// strings ("100ms", "10s").
type RetryConfig struct {
	MaxRetries     int     `json:"max_retries" yaml:"max_retries"`
	BaseDelay      string  `json:"base_delay" yaml:"base_delay"`
	MaxDelay       string  `json:"max_delay" yaml:"max_delay"`
	OverallTimeout string  `json:"overall_timeout" yaml:"overall_timeout"`
	JitterFactor   float64 `json:"jitter_factor" yaml:"jitter_factor"`
}

// Policy converts the textual retry configuration into an executable
// [retry.Config].
func (retryConfig RetryConfig) Policy() (retry.Config, error) {
	base, err := parseDuration("retry.base_delay", retryConfig.BaseDelay)
	if err != nil {
		return retry.Config{}, err
	}
	max, err := parseDuration("retry.max_delay", retryConfig.MaxDelay)
	if err != nil {
		return retry.Config{}, err
	}
	overall, err := parseDuration("retry.overall_timeout", retryConfig.OverallTimeout)
	if err != nil {
		return retry.Config{}, err
	}
	return retry.Config{
		MaxRetries:     retryConfig.MaxRetries,
		BaseDelay:      base,
		MaxDelay:       max,
		OverallTimeout: overall,
		JitterFactor:   retryConfig.JitterFactor,
	}, nil
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return duration, nil
}

// RunConfig describes the work order the runner submits.
type RunConfig struct {
	// WorkOrderID identifies the work order. Empty means a generated
	// one.
	WorkOrderID string `json:"work_order_id" yaml:"work_order_id"`

	// Task is the natural-language task description. Required.
	Task string `json:"task" yaml:"task"`

	// Lane is the execution lane ("patch_first" or "workspace_first").
	Lane string `json:"lane" yaml:"lane"`

	// Model overrides the backend's default model.
	Model string `json:"model" yaml:"model"`

	// Env is passed to the backend runtime.
	Env map[string]string `json:"env" yaml:"env"`
}

// TranscriptConfig configures session persistence.
type TranscriptConfig struct {
	// Path is the transcript file. A ".zst" suffix enables
	// compression. Empty disables transcript writing.
	Path string `json:"path" yaml:"path"`

	// CheckpointDir, when set, receives a content-addressed CBOR
	// checkpoint of the finished session.
	CheckpointDir string `json:"checkpoint_dir" yaml:"checkpoint_dir"`
}

// Default returns the default configuration. The defaults exist to
// give every field a sensible zero state, not as a substitute for a
// config file: Sidecar.Command has no default and must come from the
// file.
func Default() *Config {
	return &Config{
		Retry: RetryConfig{
			MaxRetries:     3,
			BaseDelay:      "100ms",
			MaxDelay:       "10s",
			OverallTimeout: "1m",
			JitterFactor:   0.5,
		},
		Run: RunConfig{
			Lane: "patch_first",
		},
		Transcript: TranscriptConfig{
			Path: "session.jsonl",
		},
	}
}

// Load loads configuration from the file named by the ABP_CONFIG
// environment variable. There are no fallbacks: if ABP_CONFIG is not
// set, Load fails.
func Load() (*Config, error) {
	configPath := os.Getenv("ABP_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("ABP_CONFIG environment variable not set; " +
			"set it to the path of your config file, or use --config")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. The file is
// the single source of truth; environment variables do not override
// its values. The only expansion performed is ${HOME} and similar
// path variables for portability.
func LoadFile(path string) (*Config, error) {
	configuration := Default()
	if err := configuration.loadFile(path); err != nil {
		return nil, err
	}
	configuration.expandVariables()
	return configuration, nil
}

func (configuration *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), configuration); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, configuration); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields.
func (configuration *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	configuration.Sidecar.Command = expandVars(configuration.Sidecar.Command, vars)
	configuration.Sidecar.Dir = expandVars(configuration.Sidecar.Dir, vars)
	configuration.Transcript.Path = expandVars(configuration.Transcript.Path, vars)
	configuration.Transcript.CheckpointDir = expandVars(configuration.Transcript.CheckpointDir, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (configuration *Config) Validate() error {
	var errs []error

	if configuration.Sidecar.Command == "" {
		errs = append(errs, fmt.Errorf("sidecar.command is required"))
	}
	if configuration.Run.Task == "" {
		errs = append(errs, fmt.Errorf("run.task is required"))
	}
	switch configuration.Run.Lane {
	case "patch_first", "workspace_first":
	default:
		errs = append(errs, fmt.Errorf("run.lane must be patch_first or workspace_first, got %q", configuration.Run.Lane))
	}
	if configuration.Retry.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("retry.max_retries must not be negative"))
	}
	if configuration.Retry.JitterFactor < 0 || configuration.Retry.JitterFactor > 1 {
		errs = append(errs, fmt.Errorf("retry.jitter_factor must be in [0, 1]"))
	}
	if _, err := configuration.Retry.Policy(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
