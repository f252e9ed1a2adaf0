package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
)

const navigateTimeout = 30 * time.Second

// Tab is a stealth page navigated to the URL being recorded.
type Tab struct {
	Page   *rod.Page
	URL    string
	router *rod.HijackRouter
}

// OpenTab creates a stealth tab, applies resource blocking, navigates to
// pageURL and waits for the load event. When waitSelector is set it also
// waits for a matching element, for pages that render client side.
func OpenTab(ctx context.Context, mgr *Manager, pageURL, waitSelector string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	t := &Tab{Page: page, URL: pageURL, router: mgr.blocker.install(page)}

	navCtx, cancel := context.WithTimeout(ctx, navigateTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		t.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	if waitSelector != "" {
		if _, err := page.Context(navCtx).Element(waitSelector); err != nil {
			mgr.cfg.Logger.Warn("browser: wait selector", "url", pageURL, "selector", waitSelector, "error", err)
		}
	}
	return t, nil
}

// Close stops request interception and closes the tab.
func (t *Tab) Close() error {
	if t.router != nil {
		t.router.Stop()
		t.router = nil
	}
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
