// CLAUDE:SUMMARY Owns the Chrome process of a recording run: local launch (headless or on Xvfb) or remote attach.
// Package browser drives Chrome through Rod for live recordings: it
// launches (or attaches to) the browser, opens stealth tabs and mirrors the
// DOM of a tab into a dom.Document through DevTools DOM events.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("browser: manager closed")

// Config configures the browser manager.
type Config struct {
	// RemoteURL attaches to a running Chrome (DevTools WebSocket URL)
	// instead of launching one.
	RemoteURL string
	// Bin overrides the Chrome binary found by the launcher.
	Bin string
	// ResourceBlocking names request types every tab fails: image(s),
	// font(s), media, stylesheet(s), or any DevTools resource type.
	ResourceBlocking []string
	// Headful runs a visible Chrome on the XvfbDisplay virtual screen.
	Headful     bool
	XvfbDisplay string // default ":99"

	Logger *slog.Logger
}

// Manager starts Chrome once and tears it down with Close. Tabs opened
// through OpenTab share the browser.
type Manager struct {
	cfg     Config
	blocker blocker

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	display  *display
	closed   bool
}

// NewManager creates a Manager. Nothing runs until Start.
func NewManager(cfg Config) *Manager {
	if cfg.XvfbDisplay == "" {
		cfg.XvfbDisplay = ":99"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{cfg: cfg, blocker: newBlocker(cfg.ResourceBlocking)}
}

// Start brings the browser up and connects Rod to it. Calling Start again
// returns the same browser.
func (m *Manager) Start(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.closed:
		return nil, ErrClosed
	case m.browser != nil:
		return m.browser, nil
	}

	controlURL, err := m.controlURL(ctx)
	if err != nil {
		m.teardown()
		return nil, err
	}
	b := rod.New().Context(ctx).ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		m.teardown()
		return nil, fmt.Errorf("browser: connect %s: %w", controlURL, err)
	}
	// Recorded pages are often staging hosts with self-signed certificates.
	if err := b.IgnoreCertErrors(true); err != nil {
		m.cfg.Logger.Warn("browser: ignore cert errors", "error", err)
	}
	m.browser = b
	return b, nil
}

// Browser returns the connected browser, nil before Start.
func (m *Manager) Browser() *rod.Browser {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browser
}

// Close disconnects and kills whatever Start brought up.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.teardown()
}

// controlURL returns the DevTools endpoint, launching Chrome (and Xvfb
// for headful runs) unless a remote browser is configured.
func (m *Manager) controlURL(ctx context.Context) (string, error) {
	log := m.cfg.Logger
	if m.cfg.RemoteURL != "" {
		log.Info("browser: attaching to remote chrome", "url", m.cfg.RemoteURL)
		return m.cfg.RemoteURL, nil
	}

	l := launcher.New().Context(ctx).
		Set("disable-blink-features", "AutomationControlled").
		Headless(!m.cfg.Headful)
	if m.cfg.Bin != "" {
		l = l.Bin(m.cfg.Bin)
	}
	if m.cfg.Headful {
		d, err := startDisplay(m.cfg.XvfbDisplay, log)
		if err != nil {
			return "", fmt.Errorf("browser: %w", err)
		}
		m.display = d
		l = l.Env("DISPLAY=" + d.name)
	}
	m.launcher = l

	u, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("browser: launch chrome: %w", err)
	}
	log.Info("browser: chrome launched", "url", u, "headful", m.cfg.Headful)
	return u, nil
}

func (m *Manager) teardown() error {
	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	if m.launcher != nil {
		m.launcher.Cleanup()
		m.launcher = nil
	}
	if m.display != nil {
		m.display.stop()
		m.display = nil
	}
	return err
}
