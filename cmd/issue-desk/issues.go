package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/wesm/issue-desk/internal/sync"
)

const issuesHelp = `List the issues of a repository, refreshing them from GitHub when the cache is stale.`

func (cmd *issuesCommand) Name() string      { return "issues" }
func (cmd *issuesCommand) Args() string      { return "[OPTIONS] OWNER/REPO" }
func (cmd *issuesCommand) ShortHelp() string { return issuesHelp }
func (cmd *issuesCommand) LongHelp() string  { return issuesHelp }
func (cmd *issuesCommand) Hidden() bool      { return false }

func (cmd *issuesCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.force, "force", false, "refetch from GitHub even if the cache is fresh")
	fs.BoolVar(&cmd.force, "f", false, "refetch from GitHub even if the cache is fresh")
}

type issuesCommand struct {
	force bool
}

func (cmd *issuesCommand) Run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("expected exactly one repository, e.g. 'issue-desk issues acme/widgets'")
	}
	owner, name, err := sync.ParseRepositoryString(args[0])
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

	issues, err := a.FetchIssues(ctx, owner, name, cmd.force)
	if err != nil {
		return err
	}

	for _, issue := range issues {
		fmt.Println(issueLine(issue))
	}
	fmt.Printf("\n%s in %s/%s, %s\n", plural(len(issues), "issue"), owner, name, cacheLine(a.CheckCacheStatus(owner, name)))

	return nil
}
