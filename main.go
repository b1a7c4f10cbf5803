// Agent Gateway - HTTP mediation bridge for supervised coding-agent subprocesses.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/workspace/agent-gateway/internal/config"
	"github.com/workspace/agent-gateway/internal/index"
	"github.com/workspace/agent-gateway/internal/logging"
	"github.com/workspace/agent-gateway/internal/server"
	"github.com/workspace/agent-gateway/internal/store"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to open session store: %v", err)
	}

	idx, err := index.Open(cfg.IndexDBPath)
	if err != nil {
		log.Fatalf("failed to open session index: %v", err)
	}
	defer idx.Close()

	// Any session still marked running at startup belongs to a process that
	// no longer exists - the gateway was restarted out from under it. This
	// must happen before the index is rebuilt below, or the rebuild would
	// snapshot those sessions as still running.
	if err := st.MarkAbortedOnStartup(); err != nil {
		log.Fatalf("failed to mark stale sessions aborted: %v", err)
	}

	summaries, err := st.ListSessions()
	if err != nil {
		log.Fatalf("failed to list sessions for index rebuild: %v", err)
	}
	if err := idx.Rebuild(summaries); err != nil {
		log.Fatalf("failed to rebuild session index: %v", err)
	}

	srv := server.New(cfg, st, idx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Fatalf("server error: %v", err)
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Stop(ctx); err != nil {
		slog.Error("error during shutdown", "error", err)
	}

	slog.Info("agent gateway stopped")
}
