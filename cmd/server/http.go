package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/linnemanlabs/go-core/httpmw"
	"github.com/linnemanlabs/go-core/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/brainsync/internal/feedapi"
	"github.com/linnemanlabs/brainsync/internal/postgres"
)

// maxRequestBody allows notes that carry a full original article.
const maxRequestBody = 1 << 20

// apiHandler builds the public listener's router and wraps it in the
// middleware chain. Wrappers applied later run earlier on the request.
func apiHandler(app *services, L log.Logger, instrument func(http.Handler) http.Handler, mwCfg httpmw.Config, mountHealth func(chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Compress(5, "application/json"))
	r.Use(httpmw.AnnotateHTTPRoute)
	r.Use(withDBStats)
	r.Use(httpmw.AccessLog())
	r.Use(httpmw.MaxBody(maxRequestBody))

	mountHealth(r)
	feedapi.New(L, app.feeds, app.token).RegisterRoutes(r)

	var h http.Handler = r
	// inner so request logs carry trace and route fields
	h = httpmw.WithLogger(L)(h)
	h = httpmw.TraceResponseHeaders("X-Trace-Id", "X-Span-Id")(h)
	h = otelhttp.NewHandler(h, "http.server",
		otelhttp.WithFilter(untracedPath),
		// renamed to the chi pattern by AnnotateHTTPRoute
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithPublicEndpointFn(func(*http.Request) bool { return true }),
	)
	h = instrument(h)
	h = httpmw.ClientIPWithOptions(httpmw.ClientIPOptions{TrustedHops: mwCfg.TrustedProxyHops})(h)
	h = httpmw.RequestID("X-Request-Id")(h)
	h = httpmw.Recover(L, nil)(h)
	return httpmw.SecurityHeaders(h)
}

// withDBStats records the request method for query duration labels and
// collects per-request query stats, logged once the handler returns.
func withDBStats(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := postgres.NewReqDBStatsContext(r.Context())
		ctx = postgres.WithHTTPMethod(ctx, r.Method)
		next.ServeHTTP(w, r.WithContext(ctx))

		stats, _ := postgres.ReqDBStatsFromContext(ctx)
		count, total, errs := stats.Snapshot()
		if count == 0 {
			return
		}
		log.FromContext(ctx).Info(ctx, "request db stats",
			"db_queries", count,
			"db_duration", total,
			"db_errors", errs,
		)
	})
}

func untracedPath(r *http.Request) bool {
	return r.URL.Path != "/-/healthy" && r.URL.Path != "/-/ready"
}
