package domreplay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/domreplay/dom"
	"github.com/hazyhaar/domreplay/internal/browser"
)

// RecordHTML records a static HTML document: one initial full snapshot, in
// a new session whose id is returned.
func RecordHTML(ctx context.Context, src, url string, cfg ScopeConfig, s Sink, opts ...Option) (string, error) {
	q := &dom.Queue{}
	doc, err := dom.Parse(q, src)
	if err != nil {
		return "", fmt.Errorf("domreplay: parse: %w", err)
	}
	doc.URL = url
	rec := New(doc, cfg, s, opts...)
	if err := rec.Start(ctx); err != nil {
		return "", err
	}
	q.RunPending()
	if err := rec.Flush(); err != nil {
		return "", err
	}
	rec.Stop()
	return rec.SessionID(), nil
}

// RecordPage records a live page through Chrome until ctx is cancelled.
// The page gets a new full snapshot every SnapshotInterval (when set) and
// whenever it replaces its document.
func RecordPage(ctx context.Context, cfg *Config, page PageConfig, s Sink, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		Bin:              cfg.Browser.Bin,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Headful:          cfg.Browser.Stealth == "headful",
		XvfbDisplay:      cfg.Browser.XvfbDisplay,
		Logger:           logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("domreplay: start browser: %w", err)
	}
	defer mgr.Close()

	tab, err := browser.OpenTab(ctx, mgr, page.URL, page.WaitSelector)
	if err != nil {
		return fmt.Errorf("domreplay: open tab: %w", err)
	}
	defer tab.Close()

	// The loop outlives ctx for the final flush.
	loopCtx, stopLoop := context.WithCancel(context.WithoutCancel(ctx))
	defer stopLoop()
	loop := dom.NewLoop()
	go loop.Run(loopCtx)

	lp := &livePage{tab: tab, loop: loop, logger: logger.With("page", page.ID), resets: make(chan struct{}, 1)}
	defer lp.stop()

	doc, err := lp.capture(ctx)
	if err != nil {
		return err
	}
	rec := New(doc, cfg.Scope(), s, WithLogger(lp.logger))
	if err := lp.do(ctx, func() error { return rec.Start(context.WithoutCancel(ctx)) }); err != nil {
		return err
	}
	lp.logger.Info("domreplay: recording page", "url", page.URL, "session", rec.SessionID())

	var tick <-chan time.Time
	if page.SnapshotInterval > 0 {
		t := time.NewTicker(page.SnapshotInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return lp.do(loopCtx, func() error {
				err := rec.Flush()
				rec.Stop()
				return err
			})

		case <-tick:
			lp.layout(ctx, rec.Document())
			if err := lp.do(ctx, rec.TakeFullSnapshot); err != nil {
				lp.logger.Warn("domreplay: periodic snapshot", "error", err)
			}

		case <-lp.resets:
			doc, err := lp.capture(ctx)
			if err != nil {
				lp.logger.Warn("domreplay: recapture after document reset", "error", err)
				continue
			}
			if err := lp.do(ctx, func() error { return rec.SwitchDocument(doc) }); err != nil {
				lp.logger.Warn("domreplay: switch document", "error", err)
				continue
			}
			lp.logger.Info("domreplay: document replaced", "url", doc.URL, "session", rec.SessionID())
		}
	}
}

// livePage binds the mirror of one tab to the loop owning its document.
type livePage struct {
	tab    *browser.Tab
	loop   *dom.Loop
	logger *slog.Logger
	resets chan struct{}

	stopListen context.CancelFunc
}

// capture mirrors the current document of the tab and listens to its DOM
// events, replacing the previous mirror.
func (lp *livePage) capture(ctx context.Context) (*dom.Document, error) {
	lp.stop()
	m, err := browser.Capture(ctx, lp.tab.Page, lp.loop, lp.logger)
	if err != nil {
		return nil, fmt.Errorf("domreplay: capture: %w", err)
	}
	m.OnReset = func() {
		select {
		case lp.resets <- struct{}{}:
		default:
		}
	}
	listenCtx, cancel := context.WithCancel(ctx)
	lp.stopListen = cancel
	go m.Listen(listenCtx, lp.tab.Page, lp.loop)

	lp.layout(ctx, m.Document())
	lp.logger.Debug("domreplay: document captured", "url", m.Document().URL, "nodes", m.Len())
	return m.Document(), nil
}

// layout refreshes viewport size, scroll and visual viewport of doc.
func (lp *livePage) layout(ctx context.Context, doc *dom.Document) {
	lm, err := browser.LayoutMetrics(ctx, lp.tab.Page)
	if err != nil {
		lp.logger.Debug("domreplay: layout metrics", "error", err)
		return
	}
	_ = lp.loop.Do(ctx, func() { browser.ApplyLayout(doc, lm) })
}

// do runs fn on the loop and returns its error.
func (lp *livePage) do(ctx context.Context, fn func() error) error {
	var err error
	if doErr := lp.loop.Do(ctx, func() { err = fn() }); doErr != nil {
		return doErr
	}
	return err
}

func (lp *livePage) stop() {
	if lp.stopListen != nil {
		lp.stopListen()
		lp.stopListen = nil
	}
}
