package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// stopper is a named shutdown hook. A nil fn is skipped.
type stopper struct {
	name string
	fn   func(context.Context) error
}

// drain waits for the balancer to notice the closed gate. A second signal
// cuts the wait short.
func drain(L log.Logger, seconds int) {
	L.Info(context.Background(), "draining", "drain_seconds", seconds)
	force := make(chan os.Signal, 1)
	signal.Notify(force, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(force)

	select {
	case <-time.After(time.Duration(seconds) * time.Second):
		L.Info(context.Background(), "drain period complete")
	case <-force:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
}

// shutdown runs each stopper in order, giving each an equal slice of the
// total budget.
func shutdown(L log.Logger, budgetSeconds int, stoppers []stopper) {
	if len(stoppers) == 0 {
		return
	}
	budget := time.Duration(budgetSeconds) * time.Second
	slice := budget / time.Duration(len(stoppers))
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	for _, s := range stoppers {
		if s.fn == nil {
			continue
		}
		sctx, scancel := context.WithTimeout(ctx, slice)
		if err := s.fn(sctx); err != nil {
			L.Error(context.Background(), err, s.name+" shutdown")
		}
		scancel()
	}
}

// notifySystemd reports readiness when running as a Type=notify unit.
func notifySystemd() error {
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set, skipping systemd notify")
	}
	conn, err := net.Dial("unixgram", addr) //nolint:gosec,noctx // addr comes from systemd
	if err != nil {
		return fmt.Errorf("systemd notify failed: dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		return fmt.Errorf("systemd notify failed: write failed: %w", err)
	}
	return nil
}
