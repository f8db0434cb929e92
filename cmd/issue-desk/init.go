package main

import (
	"context"
	"flag"

	"github.com/sirupsen/logrus"
	"github.com/wesm/issue-desk/config"
)

const initHelp = `Create a default configuration file if it doesn't exist.`

func (cmd *initCommand) Name() string      { return "init" }
func (cmd *initCommand) Args() string      { return "" }
func (cmd *initCommand) ShortHelp() string { return initHelp }
func (cmd *initCommand) LongHelp() string  { return initHelp }
func (cmd *initCommand) Hidden() bool      { return false }

func (cmd *initCommand) Register(fs *flag.FlagSet) {}

type initCommand struct{}

func (cmd *initCommand) Run(ctx context.Context, args []string) error {
	if err := config.CreateDefaultConfig(configPath); err != nil {
		return err
	}
	logrus.Infof("Configuration ready at %s", configPath)
	return nil
}
