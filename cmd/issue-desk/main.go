package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/genuinetools/pkg/cli"
	"github.com/sirupsen/logrus"
	"github.com/wesm/issue-desk/config"
	"github.com/wesm/issue-desk/internal/app"
	"github.com/wesm/issue-desk/internal/db"
)

var (
	configPath string
	debug      bool
)

func main() {
	p := cli.NewProgram()
	p.Name = "issue-desk"
	p.Description = "Browse, cache and comment on GitHub issues across pinned repositories"

	p.GitCommit = GITCOMMIT
	p.Version = VERSION

	p.FlagSet = flag.NewFlagSet("global", flag.ExitOnError)
	p.FlagSet.StringVar(&configPath, "config", "config.json", "Path to configuration file")
	p.FlagSet.StringVar(&configPath, "c", "config.json", "Path to configuration file")

	p.FlagSet.BoolVar(&debug, "debug", false, "enable debug logging")
	p.FlagSet.BoolVar(&debug, "d", false, "enable debug logging")

	p.Commands = []cli.Command{
		&initCommand{},
		&serveCommand{},
		&issuesCommand{},
		&showCommand{},
		&commentCommand{},
		&pinCommand{},
		&pinsCommand{},
		&reposCommand{},
		&syncCommand{},
		&loginCommand{},
	}

	p.Before = func(ctx context.Context) error {
		if debug {
			logrus.SetLevel(logrus.DebugLevel)
		}
		return nil
	}

	p.Run()
}

// withSignals returns a context cancelled on ^C or SIGTERM
func withSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-signals:
			logrus.Infof("Received %s, exiting.", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(signals)
	}()

	return ctx, cancel
}

// openApp loads the configuration and the database and builds the backend
func openApp(ctx context.Context) (*app.App, *config.Config, func(), error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration (run 'issue-desk init' first?): %w", err)
	}

	database, err := db.New(cfg.DatabasePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.Initialize(); err != nil {
		database.Close()
		return nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a, err := app.New(ctx, cfg, database)
	if err != nil {
		database.Close()
		return nil, nil, nil, err
	}

	return a, cfg, func() { database.Close() }, nil
}
