package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/sitesignal/sitesignal/internal/enrich"
	"github.com/sitesignal/sitesignal/internal/progress"
	"github.com/sitesignal/sitesignal/internal/robots"
)

// Gate is the robots compliance check consulted before every external fetch.
type Gate interface {
	Check(ctx context.Context, rawURL string) robots.Decision
	Sleep(ctx context.Context, d robots.Decision) error
}

// Controller implements enrich.Fetcher: plain HTTP fetch with rotated headers,
// jittered retry, bot-detection classification, and headless escalation.
type Controller struct {
	base       *colly.Collector
	gate       Gate
	renderer   enrich.Renderer
	classifier *Classifier
	suppressor *Suppressor
	pool       headerPool
	backoff    backoffPolicy
	pacer      *hostPacer
	emitter    progress.Emitter
	logger     *zap.Logger
}

// NewController constructs a configured Controller. The renderer may be nil,
// in which case escalation degrades to the plain result or the last error.
func NewController(cfg Config, gate Gate, renderer enrich.Renderer, emitter progress.Emitter, logger *zap.Logger) (*Controller, error) {
	if gate == nil {
		return nil, errors.New("fetch controller requires a robots gate")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	base := colly.NewCollector()
	base.AllowURLRevisit = true
	// The robots gate owns compliance, including fail-open semantics colly
	// does not provide.
	base.IgnoreRobotsTxt = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.RequestTimeout)

	return &Controller{
		base:       base,
		gate:       gate,
		renderer:   renderer,
		classifier: NewClassifier(cfg.MinBodyBytes),
		suppressor: NewSuppressor(cfg.BuilderPlatforms, cfg.KnownGoodDomains, cfg.WeakSignalMax),
		pool:       newHeaderPool(cfg.UserAgents, cfg.AcceptLanguages),
		backoff:    newBackoffPolicy(cfg.BackoffBase, cfg.BackoffCap),
		pacer:      newHostPacer(cfg.HostQPS),
		emitter:    emitter,
		logger:     logger,
	}, nil
}

// Fetch retrieves rawURL under the given policy. It fails only after
// policy.MaxRetries is exhausted with a retryable error, or immediately on a
// non-retryable error class.
func (c *Controller) Fetch(ctx context.Context, rawURL string, policy enrich.Policy) (enrich.FetchResult, error) {
	host := hostOf(rawURL)
	attempts := policy.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff.wait(ctx, attempt-1); err != nil {
				return enrich.FetchResult{}, fmt.Errorf("backoff wait: %w", err)
			}
		}
		decision := c.gate.Check(ctx, rawURL)
		if !decision.Allowed {
			return enrich.FetchResult{}, fmt.Errorf("fetch %s: %w", rawURL, ErrRobotsDisallowed)
		}
		if err := c.gate.Sleep(ctx, decision); err != nil {
			return enrich.FetchResult{}, err
		}
		if err := c.pacer.Wait(ctx, host); err != nil {
			return enrich.FetchResult{}, err
		}

		start := time.Now()
		resp, err := c.doRequest(ctx, rawURL)
		c.emitAttempt(ctx, host, rawURL, attempt, resp.statusCode, int64(len(resp.body)), time.Since(start), err)
		if err != nil {
			if isTerminal(err) {
				return enrich.FetchResult{}, fmt.Errorf("fetch %s: %w", rawURL, err)
			}
			lastErr = err
			continue
		}

		switch {
		case resp.statusCode == http.StatusForbidden || resp.statusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("%w: status %d", ErrRateLimited, resp.statusCode)
			continue
		case resp.statusCode < 200 || resp.statusCode >= 300:
			return enrich.FetchResult{}, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.statusCode)
		}

		plain := enrich.FetchResult{
			HTML:       string(resp.body),
			FinalURL:   resp.finalURL,
			StatusCode: resp.statusCode,
		}
		verdict := c.suppressor.Apply(c.classifier.Classify(plain.HTML), host, plain.HTML)
		if verdict.Suppressed != "" {
			c.logger.Debug("bot detection suppressed",
				zap.String("url", rawURL),
				zap.Strings("matched", verdict.Matched),
				zap.String("reason", verdict.Suppressed))
		}
		if !verdict.Detected {
			return plain, nil
		}
		c.logger.Info("bot detection triggered",
			zap.String("url", rawURL),
			zap.Strings("matched", verdict.Matched))
		return c.escalate(ctx, rawURL, policy, &plain,
			fmt.Errorf("fetch %s: %w (%s)", rawURL, ErrBotDetected, strings.Join(verdict.Matched, ",")))
	}

	if lastErr == nil {
		lastErr = errors.New("no attempts executed")
	}
	// Exhaustion mirrors the classifier path, except there is no plain result
	// to degrade to.
	return c.escalate(ctx, rawURL, policy, nil,
		fmt.Errorf("fetch %s: retries exhausted: %w", rawURL, lastErr))
}

// escalate dispatches to the headless render engine, or surfaces the degraded
// plain result (classifier path) or the terminal error (exhaustion path) when
// debug mode or policy disables the fallback.
func (c *Controller) escalate(ctx context.Context, rawURL string, policy enrich.Policy, plain *enrich.FetchResult, cause error) (enrich.FetchResult, error) {
	if policy.DebugMode || !policy.AllowHeadlessFallback || c.renderer == nil {
		if plain != nil {
			degraded := *plain
			degraded.Degraded = true
			return degraded, nil
		}
		return enrich.FetchResult{}, cause
	}

	c.emitEscalated(ctx, rawURL, cause)
	html, err := c.renderer.Render(ctx, rawURL)
	if err != nil {
		if plain != nil {
			c.logger.Warn("headless fallback failed; returning degraded plain result",
				zap.String("url", rawURL), zap.Error(err))
			degraded := *plain
			degraded.Degraded = true
			return degraded, nil
		}
		return enrich.FetchResult{}, fmt.Errorf("headless fallback for %s: %w", rawURL, err)
	}
	return enrich.FetchResult{
		HTML:               html,
		FinalURL:           rawURL,
		StatusCode:         http.StatusOK,
		UsedHeadlessRender: true,
	}, nil
}

type response struct {
	statusCode int
	body       []byte
	finalURL   string
}

// doRequest issues one GET through a fresh collector clone with a rotated
// header profile.
func (c *Controller) doRequest(ctx context.Context, rawURL string) (response, error) {
	if err := ctx.Err(); err != nil {
		return response{}, err
	}
	profile := c.pool.pick()
	collector := c.base.Clone()

	resultCh := make(chan fetchOutcome, 1)
	var once sync.Once
	send := func(res fetchOutcome) {
		once.Do(func() { resultCh <- res })
	}

	collector.OnRequest(func(r *colly.Request) {
		profile.apply(r.Headers)
	})
	collector.OnResponse(func(r *colly.Response) {
		send(fetchOutcome{resp: response{
			statusCode: r.StatusCode,
			body:       append([]byte{}, r.Body...),
			finalURL:   r.Request.URL.String(),
		}})
	})
	collector.OnError(func(r *colly.Response, err error) {
		// Non-2xx statuses surface here; keep the status so the caller can
		// classify 403/429 separately from transport failures.
		if r != nil && r.StatusCode != 0 {
			send(fetchOutcome{resp: response{
				statusCode: r.StatusCode,
				body:       append([]byte{}, r.Body...),
				finalURL:   r.Request.URL.String(),
			}})
			return
		}
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(fetchOutcome{err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return response{}, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return response{}, err
		}
		return res.resp, res.err
	default:
		return response{}, errors.New("fetch produced no result")
	}
}

type fetchOutcome struct {
	resp response
	err  error
}

func (c *Controller) emitAttempt(ctx context.Context, host, rawURL string, attempt, status int, bytes int64, dur time.Duration, err error) {
	runID, ok := enrich.RunIDFrom(ctx)
	if !ok {
		return
	}
	evt := progress.Event{
		RunID:       progress.UUIDToBytes(runID),
		TS:          time.Now().UTC(),
		Stage:       progress.StageFetchAttempt,
		Site:        host,
		URL:         rawURL,
		Attempt:     attempt,
		StatusClass: progress.ClassifyStatus(status),
		Bytes:       bytes,
		Dur:         dur,
	}
	if err != nil {
		evt.Note = err.Error()
	}
	c.emitter.Emit(evt)
}

func (c *Controller) emitEscalated(ctx context.Context, rawURL string, cause error) {
	runID, ok := enrich.RunIDFrom(ctx)
	if !ok {
		return
	}
	evt := progress.Event{
		RunID: progress.UUIDToBytes(runID),
		TS:    time.Now().UTC(),
		Stage: progress.StageEscalated,
		Site:  hostOf(rawURL),
		URL:   rawURL,
	}
	if cause != nil {
		evt.Note = cause.Error()
	}
	c.emitter.Emit(evt)
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Host)
}
