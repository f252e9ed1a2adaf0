package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hazyhaar/domreplay/internal/privacy"
	"github.com/hazyhaar/domreplay/internal/scope"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Recording.DefaultPrivacyLevel != "mask" {
		t.Errorf("default level = %q, want mask", cfg.Recording.DefaultPrivacyLevel)
	}
	if cfg.Recording.ExcludeAttribute != "data-replay-exclude" {
		t.Errorf("exclude attribute = %q", cfg.Recording.ExcludeAttribute)
	}
	if len(cfg.Sinks) != 1 || cfg.Sinks[0].Type != "stdout" {
		t.Errorf("sinks = %+v, want one stdout sink", cfg.Sinks)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domreplay.yaml")
	data := `
recording:
  default_privacy_level: mask-unless-allowlisted
  action_name_attribute: data-action
  allowlisted_texts: [Checkout, Cart]
  change_records: true
browser:
  stealth: headful
  resource_blocking: [image, font]
pages:
  - url: https://shop.test/
    snapshot_interval: 10m
sinks:
  - type: sqlite
  - type: replica
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Pages[0].ID != "page-1" || cfg.Pages[0].SnapshotInterval != 10*time.Minute {
		t.Errorf("page = %+v", cfg.Pages[0])
	}
	if cfg.Sinks[0].Path != "domreplay.db" {
		t.Errorf("sqlite path = %q, want default", cfg.Sinks[0].Path)
	}
	if cfg.Browser.XvfbDisplay != ":99" {
		t.Errorf("xvfb display = %q", cfg.Browser.XvfbDisplay)
	}

	want := scope.Config{
		DefaultPrivacyLevel: privacy.MaskUnlessAllowlisted,
		ActionNameAttribute: "data-action",
		ExcludeAttribute:    "data-replay-exclude",
		AllowlistedTexts:    []string{"Checkout", "Cart"},
		ChangeRecords:       true,
	}
	if diff := cmp.Diff(want, cfg.Scope()); diff != "" {
		t.Errorf("scope config (-want +got):\n%s", diff)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown level", "recording: {default_privacy_level: secret}", "unknown level"},
		{"terminal level", "recording: {default_privacy_level: hidden}", "would record nothing"},
		{"stealth", "browser: {stealth: invisible}", "stealth mode"},
		{"page url", "pages: [{id: home}]", "url is required"},
		{"sink", "sinks: [{type: kafka}]", "unknown sink type"},
		{"yaml", "recording: [", "config: parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
