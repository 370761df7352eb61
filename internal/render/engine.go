package render

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ErrRenderTooSmall indicates the serialized DOM was implausibly small after
// all waits, so no usable content could be salvaged.
var ErrRenderTooSmall = errors.New("rendered content implausibly small")

// Engine implements enrich.Renderer over a BrowserFactory. Each Render call
// opens a fresh session, randomizes the fingerprint, simulates human behavior
// to trigger lazy-loaded content, and returns the serialized DOM.
type Engine struct {
	factory BrowserFactory
	cfg     Config
	logger  *zap.Logger
}

// NewEngine constructs an Engine.
func NewEngine(factory BrowserFactory, cfg Config, logger *zap.Logger) (*Engine, error) {
	if factory == nil {
		return nil, errors.New("render engine requires a browser factory")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}
	return &Engine{factory: factory, cfg: cfg, logger: logger}, nil
}

// Render navigates to rawURL in an isolated session and returns the DOM HTML.
// Navigation timeouts and blocked sub-resources are tolerated when a DOM was
// still obtained; only unexpected navigation errors propagate.
func (e *Engine) Render(ctx context.Context, rawURL string) (string, error) {
	session, err := e.factory.Open(ctx)
	if err != nil {
		return "", fmt.Errorf("open browser session: %w", err)
	}
	defer session.Close()

	fp := newFingerprint(e.cfg)
	if err := chromedp.Run(session.Ctx, e.prepareTasks(fp)); err != nil {
		return "", fmt.Errorf("prepare session: %w", err)
	}

	e.pause(ctx, 300, 900)

	navCtx, cancelNav := context.WithTimeout(session.Ctx, e.cfg.NavigationTimeout)
	stopForward := forwardCancel(ctx, cancelNav)
	navErr := chromedp.Run(navCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	stopForward()
	cancelNav()
	if navErr != nil {
		if !tolerableNavError(navErr) {
			return "", fmt.Errorf("navigate %s: %w", rawURL, navErr)
		}
		e.logger.Warn("navigation degraded; attempting salvage",
			zap.String("url", rawURL), zap.Error(navErr))
	}

	e.simulateHuman(session.Ctx, fp)
	e.pause(ctx, 400, 1200)

	extractCtx, cancelExtract := context.WithTimeout(session.Ctx, e.cfg.ExtractTimeout)
	defer cancelExtract()
	var html string
	if err := chromedp.Run(extractCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("extract dom for %s: %w", rawURL, err)
	}
	if len(html) < e.cfg.MinContentBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrRenderTooSmall, len(html))
	}
	return html, nil
}

// fingerprint is the per-call randomized browser identity.
type fingerprint struct {
	userAgent      string
	acceptLanguage string
	width          int64
	height         int64
	scale          float64
}

var defaultRenderAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
}

var defaultRenderLanguages = []string{
	"en-US,en;q=0.9",
	"en-GB,en;q=0.9",
	"es-ES,es;q=0.9,en;q=0.7",
}

var viewportWidths = []int64{1280, 1366, 1440, 1536, 1920}

var viewportHeights = []int64{720, 768, 800, 864, 1080}

var viewportScales = []float64{1.0, 1.25}

func newFingerprint(cfg Config) fingerprint {
	agents := cfg.UserAgents
	if len(agents) == 0 {
		agents = defaultRenderAgents
	}
	langs := cfg.AcceptLanguages
	if len(langs) == 0 {
		langs = defaultRenderLanguages
	}
	return fingerprint{
		userAgent:      agents[rand.IntN(len(agents))],
		acceptLanguage: langs[rand.IntN(len(langs))],
		width:          viewportWidths[rand.IntN(len(viewportWidths))],
		height:         viewportHeights[rand.IntN(len(viewportHeights))],
		scale:          viewportScales[rand.IntN(len(viewportScales))],
	}
}

// prepareTasks applies the fingerprint and installs the stealth script before
// any navigation happens.
func (e *Engine) prepareTasks(fp fingerprint) chromedp.Tasks {
	return chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(fp.userAgent).WithAcceptLanguage(fp.acceptLanguage),
		emulation.SetDeviceMetricsOverride(fp.width, fp.height, fp.scale, false),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": fp.acceptLanguage}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
	}
}

// simulateHuman performs randomized mouse movement, an occasional click on a
// neutral element, and incremental scrolling to trigger lazy-loaded content.
// Failures here never abort the render.
func (e *Engine) simulateHuman(ctx context.Context, fp fingerprint) {
	moves := 2 + rand.IntN(4)
	for range moves {
		x := float64(rand.Int64N(fp.width))
		y := float64(rand.Int64N(fp.height))
		err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
		}))
		if err != nil {
			e.logger.Debug("mouse move failed", zap.Error(err))
			return
		}
		sleepCtx(ctx, time.Duration(50+rand.IntN(150))*time.Millisecond)
	}

	if rand.Float64() < e.cfg.ClickProbability {
		x := rand.Int64N(fp.width)
		y := rand.Int64N(fp.height)
		click := fmt.Sprintf(`(() => {
			const el = document.elementFromPoint(%d, %d);
			if (el && !el.closest('a,button,form,input,select,textarea')) { el.click(); }
		})()`, x, y)
		if err := chromedp.Run(ctx, chromedp.Evaluate(click, nil)); err != nil {
			e.logger.Debug("neutral click failed", zap.Error(err))
		}
	}

	for range max(e.cfg.ScrollMaxSteps, 0) {
		scroll := fmt.Sprintf("window.scrollBy(0, %d)", e.cfg.ScrollStepPixels)
		if err := chromedp.Run(ctx, chromedp.Evaluate(scroll, nil)); err != nil {
			e.logger.Debug("scroll step failed", zap.Error(err))
			return
		}
		var atBottom bool
		err := chromedp.Run(ctx, chromedp.Evaluate(
			"window.innerHeight + window.scrollY >= document.body.scrollHeight", &atBottom))
		if err != nil || atBottom {
			return
		}
		sleepCtx(ctx, time.Duration(100+rand.IntN(200))*time.Millisecond)
	}
}

// pause sleeps for a random duration between minMS and maxMS milliseconds.
func (e *Engine) pause(ctx context.Context, minMS, maxMS int) {
	sleepCtx(ctx, time.Duration(minMS+rand.IntN(maxMS-minMS))*time.Millisecond)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// tolerableNavError reports whether a navigation error still leaves a usable
// partial DOM: timeouts and blocked sub-resources do, everything else does not.
func tolerableNavError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "net::ERR_BLOCKED_BY_CLIENT") ||
		strings.Contains(msg, "net::ERR_BLOCKED_BY_RESPONSE") ||
		strings.Contains(msg, "net::ERR_ABORTED")
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
