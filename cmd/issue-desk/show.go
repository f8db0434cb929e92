package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wesm/issue-desk/internal/sync"
)

const showHelp = `Show an issue and its comments.`

func (cmd *showCommand) Name() string      { return "show" }
func (cmd *showCommand) Args() string      { return "OWNER/REPO NUMBER" }
func (cmd *showCommand) ShortHelp() string { return showHelp }
func (cmd *showCommand) LongHelp() string  { return showHelp }
func (cmd *showCommand) Hidden() bool      { return false }

func (cmd *showCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.raw, "raw", false, "print markdown without terminal styling")
}

type showCommand struct {
	raw bool
}

func parseIssueArgs(args []string) (owner, name string, number int, err error) {
	if len(args) < 2 {
		return "", "", 0, errors.New("expected a repository and an issue number")
	}
	owner, name, err = sync.ParseRepositoryString(args[0])
	if err != nil {
		return "", "", 0, err
	}
	number, err = strconv.Atoi(args[1])
	if err != nil || number <= 0 {
		return "", "", 0, fmt.Errorf("invalid issue number %q", args[1])
	}
	return owner, name, number, nil
}

func (cmd *showCommand) Run(ctx context.Context, args []string) error {
	owner, name, number, err := parseIssueArgs(args)
	if err != nil {
		return err
	}

	ctx, cancel := withSignals(ctx)
	defer cancel()

	a, _, closeApp, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp()

	if _, err := a.FetchIssues(ctx, owner, name, false); err != nil {
		return err
	}

	issue := a.GetCachedIssue(owner, name, number)
	if issue == nil {
		return fmt.Errorf("issue #%d not found in %s/%s", number, owner, name)
	}

	repo := fmt.Sprintf("%s/%s", owner, name)
	if _, err := a.AddRecent(fmt.Sprintf("%s#%d", repo, number), issue.Title); err != nil {
		logrus.WithError(err).Warn("Failed to record recent issue")
	}

	md := issueMarkdown(repo, *issue, time.Now())
	if cmd.raw {
		fmt.Print(md)
		return nil
	}
	fmt.Print(renderMarkdown(md))
	return nil
}
