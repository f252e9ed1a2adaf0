// CLAUDE:SUMMARY Defines domreplay config structs and parses YAML configuration files with defaults.
// Package config handles domreplay configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/domreplay/internal/privacy"
	"github.com/hazyhaar/domreplay/internal/scope"
)

// Config is the top-level domreplay configuration.
type Config struct {
	Recording RecordingConfig `yaml:"recording"`
	Browser   BrowserConfig   `yaml:"browser"`
	Pages     []PageConfig    `yaml:"pages"`
	Sinks     []SinkConfig    `yaml:"sinks"`
}

// RecordingConfig controls what a recording scope serializes.
type RecordingConfig struct {
	DefaultPrivacyLevel string   `yaml:"default_privacy_level"` // allow | mask-user-input | mask-unless-allowlisted | mask
	ActionNameAttribute string   `yaml:"action_name_attribute"`
	ExcludeAttribute    string   `yaml:"exclude_attribute"`
	AllowlistedTexts    []string `yaml:"allowlisted_texts"`
	ChangeRecords       bool     `yaml:"change_records"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string   `yaml:"remote"`
	Bin              string   `yaml:"bin"`
	ResourceBlocking []string `yaml:"resource_blocking"`
	Stealth          string   `yaml:"stealth"` // headless | headful
	XvfbDisplay      string   `yaml:"xvfb_display"`
}

// PageConfig defines a page to record.
type PageConfig struct {
	ID               string        `yaml:"id"`
	URL              string        `yaml:"url"`
	WaitSelector     string        `yaml:"wait_selector"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | sqlite | replica
	Path string `yaml:"path"` // for sqlite
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML configuration, applies defaults and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Recording.DefaultPrivacyLevel == "" {
		c.Recording.DefaultPrivacyLevel = privacy.Mask.String()
	}
	if c.Recording.ExcludeAttribute == "" {
		c.Recording.ExcludeAttribute = "data-replay-exclude"
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []SinkConfig{{Type: "stdout"}}
	}
	for i := range c.Pages {
		if c.Pages[i].ID == "" {
			c.Pages[i].ID = fmt.Sprintf("page-%d", i+1)
		}
	}
	for i := range c.Sinks {
		if c.Sinks[i].Type == "sqlite" && c.Sinks[i].Path == "" {
			c.Sinks[i].Path = "domreplay.db"
		}
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	level, err := privacy.ParseLevel(c.Recording.DefaultPrivacyLevel)
	if err != nil {
		return fmt.Errorf("config: recording: %w", err)
	}
	if level.Terminal() {
		return fmt.Errorf("config: recording: default level %q would record nothing", level)
	}
	switch c.Browser.Stealth {
	case "headless", "headful":
	default:
		return fmt.Errorf("config: browser: unknown stealth mode %q", c.Browser.Stealth)
	}
	for _, p := range c.Pages {
		if p.URL == "" {
			return fmt.Errorf("config: page %s: url is required", p.ID)
		}
	}
	for _, s := range c.Sinks {
		switch s.Type {
		case "stdout", "sqlite", "replica":
		default:
			return fmt.Errorf("config: unknown sink type %q", s.Type)
		}
	}
	return nil
}

// Scope returns the recording scope configuration. The level is assumed
// valid: Parse and Default validate it.
func (c *Config) Scope() scope.Config {
	level, err := privacy.ParseLevel(c.Recording.DefaultPrivacyLevel)
	if err != nil {
		level = privacy.Mask
	}
	return scope.Config{
		DefaultPrivacyLevel: level,
		ActionNameAttribute: c.Recording.ActionNameAttribute,
		ExcludeAttribute:    c.Recording.ExcludeAttribute,
		AllowlistedTexts:    c.Recording.AllowlistedTexts,
		ChangeRecords:       c.Recording.ChangeRecords,
	}
}
