package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/yungbote/personaforge-backend/internal/app"
	"github.com/yungbote/personaforge-backend/internal/cli"
	"github.com/yungbote/personaforge-backend/internal/config"
	"github.com/yungbote/personaforge-backend/internal/platform/logger"
)

// Version is injected at build time via -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var core *app.Core
	rt := &cli.Runtime{
		Ctx: ctx,
		Out: os.Stdout,
		Open: func(ctx context.Context) (*cli.Services, error) {
			cfg, err := config.Load()
			if err != nil {
				return nil, err
			}
			log, err := logger.New(cfg.LogMode)
			if err != nil {
				return nil, fmt.Errorf("init logger: %w", err)
			}
			core, err = app.Bootstrap(ctx, cfg, log, app.Options{BaseContext: ctx, ForceInline: true})
			if err != nil {
				return nil, err
			}
			return &cli.Services{
				Generators: core.Registry,
				Engine:     core.Engine,
				Companies:  core.Companies,
			}, nil
		},
	}

	var root cli.CLI
	parser, err := cli.Parser(&root, rt, kong.Vars{"version": "persona-generate " + Version})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	runErr := kctx.Run()
	if core != nil {
		_ = core.Close()
		core.Log.Sync()
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}
