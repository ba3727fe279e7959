package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"gqljoin/internal/cli"
)

// Version is set at build time via -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := cli.NewRootCommand(Version)
	err := cmd.ExecuteContext(ctx)
	if err != nil && !cli.Reported(err) {
		fmt.Fprintf(os.Stderr, "gqljoin: %v\n", err)
	}
	stop()
	os.Exit(cli.ExitCode(err))
}
