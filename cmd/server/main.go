// Brainsync server ingests RSS sources, analyzes feeds with an LLM and stores
// captured notes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/health"
	"github.com/linnemanlabs/go-core/httpmw"
	"github.com/linnemanlabs/go-core/httpserver"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/metrics"
	"github.com/linnemanlabs/go-core/opshttp"
	"github.com/linnemanlabs/go-core/otelx"
	"github.com/linnemanlabs/go-core/prof"
	v "github.com/linnemanlabs/go-core/version"

	bc "github.com/linnemanlabs/brainsync/internal/cfg"
)

const (
	appName   = "brainsync"
	component = "server"
	envPrefix = "BRAINSYNC_"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal error:", err)
		os.Exit(1)
	}
}

// settings groups the config of every package the server wires together.
type settings struct {
	app   bc.Config
	http  httpserver.Config
	mw    httpmw.Config
	log   log.Config
	ops   opshttp.Config
	prof  prof.Config
	trace otelx.Config
}

func (s *settings) register(fs *flag.FlagSet) {
	s.app.RegisterFlags(fs)
	s.http.RegisterFlags(fs)
	s.mw.RegisterFlags(fs)
	s.log.RegisterFlags(fs)
	s.ops.RegisterFlags(fs)
	s.prof.RegisterFlags(fs)
	s.trace.RegisterFlags(fs)
}

func (s *settings) validate() error {
	if err := errors.Join(
		s.app.Validate(),
		s.http.Validate(),
		s.mw.Validate(),
		s.log.Validate(),
		s.ops.Validate(),
		s.prof.Validate(),
		s.trace.Validate(),
	); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if s.app.APIPort == s.ops.Port {
		return fmt.Errorf("http and admin ports must differ (both %d)", s.app.APIPort)
	}
	return nil
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v.AppName = appName
	v.Component = component
	vi := v.Get()

	var s settings
	s.register(flag.CommandLine)
	showVersion := flag.Bool("V", false, "Print version+build information and exit")

	// flags win over env
	flag.Parse()
	if *showVersion {
		fmt.Printf(
			"%s (%s) %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.AppName, vi.Component, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		return nil
	}
	cfg.FillFromEnv(flag.CommandLine, envPrefix, func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})
	if err := s.validate(); err != nil {
		return err
	}

	lg, err := log.New(s.log.ToOptions(v.AppName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = lg.Sync() }()
	L := lg.With("component", vi.Component)
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "starting brainsync",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildId,
		"go_version", vi.GoVersion,
		"http_port", s.app.APIPort,
		"admin_port", s.ops.Port,
		"enable_pprof", s.ops.EnablePprof,
		"enable_pyroscope", s.prof.EnablePyroscope,
		"enable_tracing", s.trace.EnableTracing,
		"otlp_endpoint", s.trace.OTLPEndpoint,
		"trusted_proxy_hops", s.mw.TrustedProxyHops,
		"llm_provider", s.app.LLMProvider,
		"database", s.app.DatabaseURL != "",
		"fetch_interval_hours", s.app.FetchIntervalHours,
		"fetch_concurrency", s.app.FetchConcurrency,
		"source_file", s.app.SourceFile,
	)

	profOpts := s.prof.ToOptions()
	profOpts.AppName = v.AppName
	profOpts.Tags = map[string]string{
		"app":       v.AppName,
		"component": v.Component,
		"version":   vi.Version,
		"commit":    vi.Commit,
	}
	stopProf, profErr := prof.Start(ctx, profOpts)
	if profErr != nil {
		L.Error(ctx, profErr, "pyroscope start failed", "pyro_server", s.prof.PyroServer)
	}

	traceOpts := s.trace.ToOptions()
	traceOpts.Service = v.AppName
	traceOpts.Component = v.Component
	traceOpts.Version = v.Version
	shutdownOtel, err := otelx.Init(ctx, traceOpts)
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}

	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, component, &vi)
	m.SetProfilingActive(profErr == nil && s.prof.EnablePyroscope)

	app, err := wire(ctx, &s.app, m.Registry(), L)
	if err != nil {
		return err
	}
	defer app.close()

	// readiness fails once draining starts so the balancer stops routing here
	var gate health.ShutdownGate
	readiness := health.All(gate.Probe())
	liveness := health.Fixed(true, "")

	opsOpts := s.ops.ToOptions()
	opsOpts.Metrics = m.Handler()
	opsOpts.Health = liveness
	opsOpts.Readiness = readiness
	opsOpts.UseRecoverMW = true
	opsOpts.OnPanic = m.IncHttpPanic
	stopOps, err := opshttp.Start(ctx, L, opsOpts)
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		return err
	}

	apiOpts, err := s.http.ToOptions()
	if err != nil {
		L.Error(ctx, err, "invalid http config")
		return err
	}
	instrument := func(h http.Handler) http.Handler { return m.Middleware(h) }
	h := apiHandler(app, L, instrument, s.mw, func(r chi.Router) {
		r.Get("/-/healthy", health.HealthzHandler(liveness))
		r.Get("/-/ready", health.ReadyzHandler(readiness))
	})
	stopAPI, err := httpserver.Start(ctx, fmt.Sprintf(":%d", s.app.APIPort), h, L, apiOpts)
	if err != nil {
		L.Error(ctx, err, "failed to start api http listener")
		_ = stopOps(context.Background())
		return err
	}

	if err := notifySystemd(); err != nil {
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	<-ctx.Done()
	L.Info(context.Background(), "shutdown signal received")
	gate.Set("draining")
	drain(L, s.app.DrainSeconds)

	shutdown(L, s.app.ShutdownBudgetSeconds, []stopper{
		{"api http server", stopAPI},
		{"scheduler", app.stopScheduler},
		{"ops http server", stopOps},
		{"otel", shutdownOtel},
	})
	if stopProf != nil {
		stopProf()
	}

	L.Info(context.Background(), "shutdown complete")
	return nil
}
