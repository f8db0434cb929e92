package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

const loginHelp = `Verify a GitHub personal access token and store it for later runs.`

func (cmd *loginCommand) Name() string      { return "login" }
func (cmd *loginCommand) Args() string      { return "[OPTIONS]" }
func (cmd *loginCommand) ShortHelp() string { return loginHelp }
func (cmd *loginCommand) LongHelp() string  { return loginHelp }
func (cmd *loginCommand) Hidden() bool      { return false }

func (cmd *loginCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.token, "token", os.Getenv("GITHUB_TOKEN"), "GitHub API token (or env var GITHUB_TOKEN)")
	fs.BoolVar(&cmd.logout, "logout", false, "forget the stored token")
}

type loginCommand struct {
	token  string
	logout bool
}

func (cmd *loginCommand) Run(ctx context.Context, args []string) error {
	a, _, closeApp, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp()

	if cmd.logout {
		if err := a.Logout(); err != nil {
			return err
		}
		fmt.Println("Logged out")
		return nil
	}

	user, err := a.Login(ctx, cmd.token)
	if err != nil {
		return err
	}

	fmt.Printf("Logged in as %s\n", styleOpen.Render(user.Login))
	return nil
}
