package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/utafrali/marketplace/internal/cli"
	"github.com/utafrali/marketplace/pkg/logger"
)

func main() {
	level := os.Getenv("MARKETCTL_LOG_LEVEL")
	if level == "" {
		level = "warn"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	code := cli.Run(ctx, os.Args[1:], cli.Env{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Logger: logger.NewWithWriter("marketctl", level, os.Stderr),
	})
	cancel()
	os.Exit(code)
}
