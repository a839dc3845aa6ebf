package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rzbill/pqueue/internal/cmd/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cli.NewRoot().ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}
