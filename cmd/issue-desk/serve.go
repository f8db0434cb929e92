package main

import (
	"context"
	"flag"

	"github.com/wesm/issue-desk/internal/server"
)

const serveHelp = `Serve the desktop UI's JSON API on the configured local address.`

func (cmd *serveCommand) Name() string      { return "serve" }
func (cmd *serveCommand) Args() string      { return "[OPTIONS]" }
func (cmd *serveCommand) ShortHelp() string { return serveHelp }
func (cmd *serveCommand) LongHelp() string  { return serveHelp }
func (cmd *serveCommand) Hidden() bool      { return false }

func (cmd *serveCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.addr, "addr", "", "listen address (overrides listen_addr from the configuration)")
}

type serveCommand struct {
	addr string
}

func (cmd *serveCommand) Run(ctx context.Context, args []string) error {
	ctx, cancel := withSignals(ctx)
	defer cancel()

	a, cfg, closeApp, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp()

	addr := cfg.ListenAddr
	if cmd.addr != "" {
		addr = cmd.addr
	}

	return server.New(a).ListenAndServe(ctx, addr)
}
