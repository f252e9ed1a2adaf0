package domreplay

import (
	"github.com/hazyhaar/domreplay/internal/config"
	"github.com/hazyhaar/domreplay/internal/privacy"
	"github.com/hazyhaar/domreplay/internal/scope"
)

// Config is the top-level domreplay configuration. Re-exported from internal.
type Config = config.Config

// RecordingConfig controls what a recording scope serializes, as read from YAML.
type RecordingConfig = config.RecordingConfig

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// PageConfig defines a page to record.
type PageConfig = config.PageConfig

// SinkConfig defines an output backend.
type SinkConfig = config.SinkConfig

// ScopeConfig is the resolved configuration a Recorder hands to every
// recording scope.
type ScopeConfig = scope.Config

// PrivacyLevel is an effective privacy level.
type PrivacyLevel = privacy.Level

// Privacy levels, from least to most restrictive.
const (
	Allow                 = privacy.Allow
	MaskUserInput         = privacy.MaskUserInput
	MaskUnlessAllowlisted = privacy.MaskUnlessAllowlisted
	Mask                  = privacy.Mask
	Hidden                = privacy.Hidden
	Ignore                = privacy.Ignore
)

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return config.Default()
}
