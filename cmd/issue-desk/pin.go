package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
)

const pinHelp = `Pin a repository, or unpin it with -remove.`

func (cmd *pinCommand) Name() string      { return "pin" }
func (cmd *pinCommand) Args() string      { return "[OPTIONS] OWNER/REPO" }
func (cmd *pinCommand) ShortHelp() string { return pinHelp }
func (cmd *pinCommand) LongHelp() string  { return pinHelp }
func (cmd *pinCommand) Hidden() bool      { return false }

func (cmd *pinCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.remove, "remove", false, "unpin the repository")
}

type pinCommand struct {
	remove bool
}

func (cmd *pinCommand) Run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("expected exactly one repository")
	}

	a, _, closeApp, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp()

	var pinned []string
	if cmd.remove {
		pinned, err = a.UnpinRepo(args[0])
	} else {
		pinned, err = a.PinRepo(args[0])
	}
	if err != nil {
		return err
	}

	printPinned(pinned)
	return nil
}

func printPinned(pinned []string) {
	if len(pinned) == 0 {
		fmt.Println(styleDim.Render("No pinned repositories"))
		return
	}
	for i, repo := range pinned {
		fmt.Printf("%2d. %s\n", i+1, repo)
	}
}

const pinsHelp = `List the pinned repositories.`

func (cmd *pinsCommand) Name() string      { return "pins" }
func (cmd *pinsCommand) Args() string      { return "" }
func (cmd *pinsCommand) ShortHelp() string { return pinsHelp }
func (cmd *pinsCommand) LongHelp() string  { return pinsHelp }
func (cmd *pinsCommand) Hidden() bool      { return false }

func (cmd *pinsCommand) Register(fs *flag.FlagSet) {}

type pinsCommand struct{}

func (cmd *pinsCommand) Run(ctx context.Context, args []string) error {
	a, _, closeApp, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp()

	pinned, err := a.GetPinnedRepos()
	if err != nil {
		return err
	}

	printPinned(pinned)
	return nil
}
