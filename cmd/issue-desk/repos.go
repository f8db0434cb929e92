package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/wesm/issue-desk/internal/models"
)

const reposHelp = `List the repositories you can pin.`

func (cmd *reposCommand) Name() string      { return "repos" }
func (cmd *reposCommand) Args() string      { return "[OPTIONS]" }
func (cmd *reposCommand) ShortHelp() string { return reposHelp }
func (cmd *reposCommand) LongHelp() string  { return reposHelp }
func (cmd *reposCommand) Hidden() bool      { return false }

func (cmd *reposCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.noForks, "no-forks", false, "hide forked repositories")
}

type reposCommand struct {
	noForks bool
}

func (cmd *reposCommand) Run(ctx context.Context, args []string) error {
	ctx, cancel := withSignals(ctx)
	defer cancel()

	a, _, closeApp, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp()

	repos, err := a.ListUserRepos(ctx)
	if err != nil {
		return err
	}

	for _, repo := range repos {
		if cmd.noForks && repo.Fork {
			continue
		}
		fmt.Println(repoLine(repo))
	}
	return nil
}

// repoLine is the one-line summary printed by the repos command
func repoLine(repo models.Repository) string {
	meta := []string{repo.Visibility}
	if repo.Language != nil && *repo.Language != "" {
		meta = append(meta, *repo.Language)
	}
	meta = append(meta, fmt.Sprintf("★ %s", humanize.Comma(int64(repo.StargazersCount))))
	if repo.Fork {
		meta = append(meta, "fork")
	}
	return fmt.Sprintf("%-40s %s", repo.FullName, styleDim.Render(strings.Join(meta, " · ")))
}
