// Package config loads the Remedian YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration
type Config struct {
	Version     string            `yaml:"version"`
	Region      string            `yaml:"region"`
	Notify      NotifyConfig      `yaml:"notify"`
	Remediation RemediationConfig `yaml:"remediation,omitempty"`
	Sweep       SweepConfig       `yaml:"sweep,omitempty"`
	Policies    []string          `yaml:"policies,omitempty"`
	OTEL        OTELConfig        `yaml:"otel,omitempty"`
}

// NotifyConfig identifies the notification sink
type NotifyConfig struct {
	TopicARN string `yaml:"topic_arn"`
	Subject  string `yaml:"subject,omitempty"`
}

// RemediationConfig tunes handler behavior
type RemediationConfig struct {
	DryRun   bool   `yaml:"dry_run"`
	AuditDir string `yaml:"audit_dir,omitempty"`
}

// SweepConfig tunes sweep and daemon modes
type SweepConfig struct {
	Interval    time.Duration `yaml:"interval,omitempty"`
	HistoryPath string        `yaml:"history_path,omitempty"`
	NotifyOnce  time.Duration `yaml:"notify_once_within,omitempty"`
}

// OTELConfig holds OpenTelemetry exporter settings
type OTELConfig struct {
	Endpoint    string `yaml:"endpoint,omitempty"`
	Insecure    bool   `yaml:"insecure,omitempty"`
	ServiceName string `yaml:"service_name,omitempty"`
}

// LoadConfig loads configuration from file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Notify.Subject == "" {
		c.Notify.Subject = "Compliance remediation"
	}
	if c.Sweep.Interval == 0 {
		c.Sweep.Interval = time.Hour
	}
	if c.OTEL.ServiceName == "" {
		c.OTEL.ServiceName = "remedian"
	}
}

// Validate ensures config has required fields
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	if c.Region == "" {
		return fmt.Errorf("region is required")
	}
	if c.Notify.TopicARN == "" {
		return fmt.Errorf("notify.topic_arn is required")
	}
	if c.Sweep.Interval < 0 {
		return fmt.Errorf("sweep.interval cannot be negative")
	}
	return nil
}
