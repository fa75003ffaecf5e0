package mcp_test

import (
	"bufio"
	"context"
	"io"
	"testing"
	"time"

	mcpserver "provify/internal/mcp"
)

func TestWatchParent_StopsWhenContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mcpserver.WatchParent(ctx, cancel)
	cancel()
	time.Sleep(20 * time.Millisecond)
}

func TestWatchParent_DoesNotConsumeData(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pr, pw := io.Pipe()
	defer pr.Close()

	mcpserver.WatchParent(ctx, cancel)
	time.Sleep(20 * time.Millisecond)

	msg := `{"jsonrpc":"2.0","id":1,"method":"initialize"}`
	go func() {
		_, _ = pw.Write([]byte(msg + "\n"))
		_ = pw.Close()
	}()

	scanner := bufio.NewScanner(pr)
	if !scanner.Scan() {
		t.Fatalf("reader got no data; err=%v", scanner.Err())
	}
	if got := scanner.Text(); got != msg {
		t.Fatalf("reader got corrupted data:\n  got:  %q\n  want: %q", got, msg)
	}
	if ctx.Err() != nil {
		t.Error("watcher cancelled while parent is alive")
	}
}
