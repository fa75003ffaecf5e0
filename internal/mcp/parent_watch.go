package mcp

import (
	"context"
	"log/slog"
	"os"
	"time"

	"provify/internal/logging"
)

// ParentPollInterval is how often WatchParent checks the parent PID.
var ParentPollInterval = 2 * time.Second

// WatchParent cancels the server when the process that launched it over
// stdio goes away (the parent PID changes), so orphaned servers do not keep
// device agents blocked. It never reads stdin; the stdio transport owns it.
// The goroutine exits when ctx is done.
func WatchParent(ctx context.Context, cancel context.CancelFunc) {
	ppid := os.Getppid()
	log := logging.New("mcp-watch")
	go func() {
		t := time.NewTicker(ParentPollInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if os.Getppid() != ppid {
					log.Warn("parent process exited, shutting down", slog.Int("ppid", ppid))
					cancel()
					return
				}
			}
		}
	}()
}
