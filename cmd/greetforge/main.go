// Command greetforge runs the holiday greeting card generation service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/greetforge/greetforge/internal/app"
	"github.com/greetforge/greetforge/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		log.WithError(err).Error("server exited")
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("greetforge", flag.ContinueOnError)
	configPath := flags.String("config", "", "path to config file (overrides CONFIG_PATH)")
	verbose := flags.Bool("verbose", false, "enable debug logging")
	if errParse := flags.Parse(args); errParse != nil {
		return fmt.Errorf("parse flags: %w", errParse)
	}

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	if *configPath != "" {
		if errSet := os.Setenv(config.EnvConfigPath, *configPath); errSet != nil {
			return fmt.Errorf("set config path: %w", errSet)
		}
	}

	cfg, errLoad := config.Load()
	if errLoad != nil {
		return errLoad
	}
	return app.RunServer(ctx, cfg)
}
