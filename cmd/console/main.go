package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Root context that cancels on Ctrl-C
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newConsole(os.Stdout, os.Stderr).Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", userMessage(err))
		stop()
		os.Exit(1)
	}
}
