package render

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
)

// Session is one isolated browser lifetime. Close must be called on every
// exit path; the engine does so in a deferred call.
type Session struct {
	Ctx   context.Context
	close context.CancelFunc
}

// Close tears down the session's tab and browser process.
func (s Session) Close() {
	if s.close != nil {
		s.close()
	}
}

// BrowserFactory opens an isolated browser session per render call. No
// session is ever reused across calls.
type BrowserFactory interface {
	Open(ctx context.Context) (Session, error)
}

// ChromeFactory launches headless Chrome via chromedp with automation
// fingerprints disabled at the process level.
type ChromeFactory struct {
	execPath string
}

// NewChromeFactory builds a factory. execPath optionally pins the browser
// binary; empty means chromedp's default lookup.
func NewChromeFactory(execPath string) *ChromeFactory {
	return &ChromeFactory{execPath: execPath}
}

// Open starts a fresh browser process and tab scoped to ctx.
func (f *ChromeFactory) Open(ctx context.Context) (Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if f.execPath != "" {
		opts = append(opts, chromedp.ExecPath(f.execPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	// Warm up so launch failures surface here instead of mid-navigation.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return Session{}, fmt.Errorf("chromedp warmup: %w", err)
	}
	return Session{
		Ctx: tabCtx,
		close: func() {
			tabCancel()
			allocCancel()
		},
	}, nil
}
