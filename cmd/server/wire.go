package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	bc "github.com/linnemanlabs/brainsync/internal/cfg"
	"github.com/linnemanlabs/brainsync/internal/feeds"
	"github.com/linnemanlabs/brainsync/internal/feeds/memstore"
	"github.com/linnemanlabs/brainsync/internal/feeds/pgstore"
	"github.com/linnemanlabs/brainsync/internal/ingest"
	"github.com/linnemanlabs/brainsync/internal/llm/claude"
	"github.com/linnemanlabs/brainsync/internal/llm/openai"
	"github.com/linnemanlabs/brainsync/internal/notify/slack"
	"github.com/linnemanlabs/brainsync/internal/postgres"
	"github.com/linnemanlabs/brainsync/internal/scheduler"
)

// fetchClientTimeout bounds a single outbound feed or article request.
const fetchClientTimeout = 30 * time.Second

// services holds the wired domain components and their teardown hooks.
type services struct {
	feeds         *feeds.Service
	token         string
	stopScheduler func(context.Context) error
	closers       []func()
}

func (s *services) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// wire builds the store, analyzer, fetcher and notifier, seeds sources and
// starts the periodic fetch.
func wire(ctx context.Context, c *bc.Config, reg prometheus.Registerer, L log.Logger) (*services, error) {
	svcs := &services{
		token:         c.APIToken,
		stopScheduler: func(context.Context) error { return nil },
	}

	store, err := openStore(ctx, c, reg, L, svcs)
	if err != nil {
		svcs.close()
		return nil, err
	}

	feedMetrics := feeds.NewMetrics(reg)

	var analyzer feeds.FeedAnalyzer
	if provider, model := newProvider(c); provider != nil {
		analyzer = feeds.NewAnalyzer(provider, ingest.PlainText, L.With("component", "analyzer"), feedMetrics.Hooks())
		L.Info(ctx, "analysis enabled", "provider", c.LLMProvider, "model", model)
	} else {
		L.Warn(ctx, "feed analysis disabled", "llm_provider", c.LLMProvider)
	}

	fetcher := ingest.NewFetcher(ingest.Config{
		Client: &http.Client{
			Timeout:   fetchClientTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		HostInterval: c.HostInterval,
		Logger:       L.With("component", "ingest"),
	})

	var notifier feeds.Notifier
	if c.SlackWebhookURL != "" {
		notifier = slack.New(c.SlackWebhookURL, L)
		L.Info(ctx, "note notifications enabled", "type", "slack")
	}

	svcs.feeds = feeds.NewService(store, analyzer, fetcher, notifier, feedMetrics, L, feeds.ServiceConfig{
		FetchConcurrency: c.FetchConcurrency,
		SourceFile:       c.SourceFile,
	})

	if c.SourceFile != "" {
		res, err := svcs.feeds.SyncSourcesFromConfig(ctx)
		if err != nil {
			L.Error(ctx, err, "initial source sync failed", "source_file", c.SourceFile)
		} else {
			L.Info(ctx, "initial source sync complete", "created", res.Created, "updated", res.Updated)
		}
	}

	if c.FetchIntervalHours > 0 {
		interval := time.Duration(c.FetchIntervalHours) * time.Hour
		sched := scheduler.New(ctx, svcs.feeds, scheduler.EverySpec(interval), c.FetchTimeout, L.With("component", "scheduler"))
		if err := sched.Start(); err != nil {
			svcs.close()
			return nil, fmt.Errorf("scheduler start: %w", err)
		}
		svcs.stopScheduler = func(context.Context) error {
			sched.Stop()
			return nil
		}
		L.Info(ctx, "scheduled fetch enabled", "interval", interval.String())
	}

	return svcs, nil
}

// openStore returns a postgres store when a database URL is configured and
// an in-memory store otherwise.
func openStore(ctx context.Context, c *bc.Config, reg prometheus.Registerer, L log.Logger, svcs *services) (feeds.Store, error) {
	if c.DatabaseURL == "" {
		L.Info(ctx, "using in-memory store, data is lost on restart")
		return memstore.New(), nil
	}

	pool, err := postgres.NewPool(ctx, c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	svcs.closers = append(svcs.closers, pool.Close)

	store, err := pgstore.New(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("pgstore init: %w", err)
	}

	queryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "brainsync_db_query_duration_seconds",
		Help:    "Duration of individual database queries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "outcome"})
	reg.MustRegister(queryDuration)
	postgres.SetQueryObserver(postgres.QueryObserverFunc(
		func(_ context.Context, method, route, outcome string, dur time.Duration) {
			queryDuration.WithLabelValues(method, route, outcome).Observe(dur.Seconds())
		},
	))

	L.Info(ctx, "using postgres store")
	return store, nil
}

// newProvider returns the configured LLM provider and its model, or nil when
// analysis is disabled.
func newProvider(c *bc.Config) (feeds.Provider, string) {
	switch c.LLMProvider {
	case bc.ProviderClaude:
		return claude.New(c.ClaudeAPIKey, c.ClaudeModel), c.ClaudeModel
	case bc.ProviderOpenAI:
		return openai.New(c.OpenAIAPIKey, c.OpenAIBaseURL, c.OpenAIModel), c.OpenAIModel
	}
	return nil, ""
}
