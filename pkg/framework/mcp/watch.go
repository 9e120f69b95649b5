package mcp

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// WatchInterval is how often WatchParent polls the parent pid.
var WatchInterval = 2 * time.Second

// WatchParent calls cancel when the parent process goes away, so a stdio
// server does not outlive the client that spawned it. The goroutine exits
// when ctx is done.
//
// It must not read stdin: the SDK's StdioTransport owns it.
func WatchParent(ctx context.Context, cancel context.CancelFunc) {
	ppid := os.Getppid()
	go func() {
		t := time.NewTicker(WatchInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if os.Getppid() != ppid {
					slog.Warn("parent process exited, shutting down", slog.Int("ppid", ppid))
					cancel()
					return
				}
			}
		}
	}()
}
