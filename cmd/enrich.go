package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	systemclock "github.com/sitesignal/sitesignal/internal/clock/system"
	"github.com/sitesignal/sitesignal/internal/contact"
	"github.com/sitesignal/sitesignal/internal/enrich"
	"github.com/sitesignal/sitesignal/internal/fetch"
	hashsha256 "github.com/sitesignal/sitesignal/internal/hash/sha256"
	"github.com/sitesignal/sitesignal/internal/icp"
	uuidgen "github.com/sitesignal/sitesignal/internal/id/uuid"
	"github.com/sitesignal/sitesignal/internal/location"
	"github.com/sitesignal/sitesignal/internal/logging"
	"github.com/sitesignal/sitesignal/internal/progress"
	"github.com/sitesignal/sitesignal/internal/progress/sinks"
	"github.com/sitesignal/sitesignal/internal/render"
	"github.com/sitesignal/sitesignal/internal/robots"
	"github.com/sitesignal/sitesignal/internal/sitemap"
)

// newEnrichCmd creates the 'enrich' subcommand, which runs the full signal
// extraction pipeline for one or more business URLs and prints the resulting
// records as JSON lines.
func newEnrichCmd() *cobra.Command {
	var (
		debug       bool
		noHeadless  bool
		maxRetries  int
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "enrich URL [URL...]",
		Short: "Enrich one or more business websites",
		Long: `Fetches each URL with retry and bot-detection classification, discovers
and categorizes its sitemap, extracts location and contact-email signals, and
analyzes ideal-customer-profile features. Each record is printed to stdout as
a JSON line; failures are reported per URL without aborting the batch.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnrich(cmd.Context(), args, debug, noHeadless, maxRetries, concurrency)
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "disable silent headless fallback; surface degraded results and errors")
	cmd.Flags().BoolVar(&noHeadless, "no-headless", false, "never escalate to the headless browser")
	cmd.Flags().IntVar(&maxRetries, "max-retries", -1, "retries after the initial fetch attempt (-1 uses enrich.max_retries)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "max concurrent enrichment runs (0 uses enrich.concurrency)")

	return cmd
}

func runEnrich(ctx context.Context, urls []string, debug, noHeadless bool, maxRetries, concurrency int) error {
	v := viper.GetViper()

	logger, err := logging.New(v.GetBool("log.development"))
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	fetchCfg, err := fetch.LoadConfig(v)
	if err != nil {
		return fmt.Errorf("load fetch config: %w", err)
	}
	sitemapCfg, err := sitemap.LoadConfig(v)
	if err != nil {
		return fmt.Errorf("load sitemap config: %w", err)
	}
	locationCfg, err := location.LoadConfig(v)
	if err != nil {
		return fmt.Errorf("load location config: %w", err)
	}
	contactCfg, err := contact.LoadConfig(v)
	if err != nil {
		return fmt.Errorf("load contact config: %w", err)
	}

	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	store := sinks.NewStoreSink()
	hub := progress.NewHub(progress.Config{Logger: logger}, sinks.NewLogSink(logger), promSink, store)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hub.Close(closeCtx); err != nil {
			logger.Warn("progress hub close failed", zap.Error(err))
		}
	}()

	userAgent := fetch.DefaultUserAgents[0]
	if len(fetchCfg.UserAgents) > 0 {
		userAgent = fetchCfg.UserAgents[0]
	}
	gate := robots.NewGate(userAgent, logger)

	var renderer enrich.Renderer
	if !noHeadless {
		renderCfg, err := render.LoadConfig(v)
		if err != nil {
			return fmt.Errorf("load render config: %w", err)
		}
		engine, err := render.NewEngine(render.NewChromeFactory(v.GetString("browser.exec_path")), renderCfg, logger)
		if err != nil {
			return fmt.Errorf("build render engine: %w", err)
		}
		renderer = engine
	}

	controller, err := fetch.NewController(fetchCfg, gate, renderer, hub, logger)
	if err != nil {
		return fmt.Errorf("build fetch controller: %w", err)
	}
	discoverer, err := sitemap.NewDiscoverer(gate, sitemapCfg, logger)
	if err != nil {
		return fmt.Errorf("build sitemap discoverer: %w", err)
	}
	detector, err := location.NewDetector(controller, renderer, gate, locationCfg, logger)
	if err != nil {
		return fmt.Errorf("build location detector: %w", err)
	}
	extractor, err := contact.NewExtractor(controller, contactCfg, logger)
	if err != nil {
		return fmt.Errorf("build contact extractor: %w", err)
	}

	clock := systemclock.New()
	enricher, err := enrich.NewEnricher(
		controller,
		discoverer,
		detector,
		extractor,
		icp.NewAnalyzer(clock, logger),
		hashsha256.New(),
		clock,
		uuidgen.New(),
		hub,
		logger,
	)
	if err != nil {
		return fmt.Errorf("build enricher: %w", err)
	}
	runner, err := enrich.NewRunner(enricher, logger)
	if err != nil {
		return fmt.Errorf("build runner: %w", err)
	}

	if maxRetries < 0 {
		maxRetries = v.GetInt("enrich.max_retries")
	}
	if concurrency <= 0 {
		concurrency = v.GetInt("enrich.concurrency")
	}
	policy := enrich.Policy{
		AllowHeadlessFallback: !noHeadless && v.GetBool("enrich.allow_headless_fallback"),
		DebugMode:             debug,
		MaxRetries:            maxRetries,
	}

	results := runner.EnrichAll(ctx, urls, policy, concurrency)

	// Drain the hub so the store sink holds the complete stream before the
	// summary is printed. The deferred close above becomes a no-op.
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := hub.Close(closeCtx); err != nil {
		logger.Warn("progress hub close failed", zap.Error(err))
	}
	cancel()

	enc := json.NewEncoder(os.Stdout)
	failures := 0
	for _, res := range results {
		if res.Err != nil {
			failures++
			logger.Error("enrichment failed", zap.String("url", res.URL), zap.Error(res.Err))
			continue
		}
		if err := enc.Encode(res.Record); err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
	}

	sum := summarize(store.Events())
	logger.Info("run summary",
		zap.Int("runs", sum.Runs),
		zap.Int("failures", sum.Failures),
		zap.Int("fetch_attempts", sum.FetchAttempts),
		zap.Int("escalations", sum.Escalations),
		zap.Int("signals", sum.Signals))

	if failures == len(results) {
		return fmt.Errorf("all %d enrichment runs failed", failures)
	}
	return nil
}

// runSummary tallies the stored progress stream for the end-of-run log line.
type runSummary struct {
	Runs          int
	Failures      int
	FetchAttempts int
	Escalations   int
	Signals       int
}

func summarize(events []progress.Event) runSummary {
	var sum runSummary
	for _, evt := range events {
		switch evt.Stage {
		case progress.StageRunStart:
			sum.Runs++
		case progress.StageRunError:
			sum.Failures++
		case progress.StageFetchAttempt:
			sum.FetchAttempts++
		case progress.StageEscalated:
			sum.Escalations++
		case progress.StageSignalFound:
			sum.Signals++
		}
	}
	return sum
}
