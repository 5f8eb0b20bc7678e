package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestShortenFuncName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"full path", "github.com/linnemanlabs/brainsync/internal/feeds/pgstore.(*Store).GetFeed", "(*Store).GetFeed"},
		{"already short", "(*Store).GetFeed", "GetFeed"},
		{"empty string", "", ""},
		{"no dots", "main", "main"},
		{"no slashes", "pgstore.(*Store).ListNotes", "(*Store).ListNotes"},
		{"single segment", "foo.Bar", "Bar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := shortenFuncName(tt.in)
			if got != tt.want {
				t.Errorf("shortenFuncName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSkipFrame(t *testing.T) {
	t.Parallel()

	tests := []struct {
		fn   string
		want bool
	}{
		{"runtime.goexit", true},
		{"github.com/jackc/pgx/v5.(*Conn).Query", true},
		{"github.com/exaring/otelpgx.(*Tracer).TraceQueryStart", true},
		{"github.com/linnemanlabs/brainsync/internal/postgres.queryTracer.TraceQueryStart", true},
		{"github.com/linnemanlabs/brainsync/internal/feeds/pgstore.(*Store).ListFeeds", false},
		{"", true},
	}
	for _, tt := range tests {
		if got := skipFrame(tt.fn); got != tt.want {
			t.Errorf("skipFrame(%q) = %v, want %v", tt.fn, got, tt.want)
		}
	}
}

func TestReqDBStats_AddQuery(t *testing.T) {
	t.Parallel()

	s := &ReqDBStats{}
	s.AddQuery(10*time.Millisecond, nil)
	s.AddQuery(20*time.Millisecond, errors.New("timeout"))
	s.AddQuery(5*time.Millisecond, nil)

	count, total, errs := s.Snapshot()
	if count != 3 {
		t.Errorf("QueryCount = %d, want 3", count)
	}
	if total != 35*time.Millisecond {
		t.Errorf("TotalDuration = %v, want 35ms", total)
	}
	if errs != 1 {
		t.Errorf("ErrorCount = %d, want 1", errs)
	}
}

func TestReqDBStatsFromContext_Missing(t *testing.T) {
	t.Parallel()

	if _, ok := ReqDBStatsFromContext(context.Background()); ok {
		t.Error("expected ok=false for plain context")
	}
}

func TestWithHTTPMethod(t *testing.T) {
	t.Parallel()

	if got := methodFrom(WithHTTPMethod(context.Background(), "POST")); got != "POST" {
		t.Errorf("methodFrom = %q, want %q", got, "POST")
	}
	if got := methodFrom(WithHTTPMethod(context.Background(), "")); got != "UNKNOWN" {
		t.Errorf("methodFrom = %q, want %q", got, "UNKNOWN")
	}
}

// recordingTracer stands in for otelpgx.
type recordingTracer struct {
	starts, ends int
}

func (r *recordingTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, _ pgx.TraceQueryStartData) context.Context {
	r.starts++
	return ctx
}

func (r *recordingTracer) TraceQueryEnd(_ context.Context, _ *pgx.Conn, _ pgx.TraceQueryEndData) {
	r.ends++
}

//nolint:paralleltest // mutates the global query observer
func TestQueryTracer_RecordsStatsAndObserver(t *testing.T) {
	defer SetQueryObserver(nil)

	var mu sync.Mutex
	var outcomes []string
	SetQueryObserver(QueryObserverFunc(func(_ context.Context, method, route, outcome string, _ time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		outcomes = append(outcomes, method+" "+route+" "+outcome)
	}))

	inner := &recordingTracer{}
	qt := newQueryTracer(inner)

	ctx := WithHTTPMethod(NewReqDBStatsContext(context.Background()), "GET")

	qctx := qt.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	qt.TraceQueryEnd(qctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("SELECT 1")})

	qctx = qt.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "SELECT broken"})
	qt.TraceQueryEnd(qctx, nil, pgx.TraceQueryEndData{Err: errors.New("syntax error")})

	if inner.starts != 2 || inner.ends != 2 {
		t.Errorf("inner calls = %d/%d, want 2/2", inner.starts, inner.ends)
	}

	stats, _ := ReqDBStatsFromContext(ctx)
	count, _, errs := stats.Snapshot()
	if count != 2 || errs != 1 {
		t.Errorf("stats = %d queries %d errors, want 2 and 1", count, errs)
	}

	want := []string{"GET unknown ok", "GET unknown error"}
	mu.Lock()
	defer mu.Unlock()
	if len(outcomes) != len(want) {
		t.Fatalf("outcomes = %v, want %v", outcomes, want)
	}
	for i := range want {
		if outcomes[i] != want[i] {
			t.Errorf("outcomes[%d] = %q, want %q", i, outcomes[i], want[i])
		}
	}
}

func TestQueryTracer_EndWithoutStart(t *testing.T) {
	t.Parallel()

	qt := newQueryTracer(nil)
	// must not panic
	qt.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})
}

func TestNewPool_BadURL(t *testing.T) {
	t.Parallel()

	if _, err := NewPool(context.Background(), "postgres://%zz"); err == nil {
		t.Error("expected parse error")
	}
}
