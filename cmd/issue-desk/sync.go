package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/wesm/issue-desk/internal/models"
)

const syncHelp = `Refresh every pinned repository.`

func (cmd *syncCommand) Name() string      { return "sync" }
func (cmd *syncCommand) Args() string      { return "[OPTIONS]" }
func (cmd *syncCommand) ShortHelp() string { return syncHelp }
func (cmd *syncCommand) LongHelp() string  { return syncHelp }
func (cmd *syncCommand) Hidden() bool      { return false }

func (cmd *syncCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.force, "force", false, "refetch from GitHub even if the cache is fresh")
	fs.BoolVar(&cmd.force, "f", false, "refetch from GitHub even if the cache is fresh")
}

type syncCommand struct {
	force bool
}

func (cmd *syncCommand) Run(ctx context.Context, args []string) error {
	ctx, cancel := withSignals(ctx)
	defer cancel()

	a, _, closeApp, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp()

	start := time.Now()
	results, err := a.SyncPinned(ctx, cmd.force)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		fmt.Println(syncLine(r))
		if r.Error != "" {
			failed++
		}
	}
	fmt.Printf("\nSynced %s in %s", plural(len(results), "repository"), time.Since(start).Round(time.Millisecond))
	if failed > 0 {
		fmt.Print(styleError.Render(fmt.Sprintf(", %d failed", failed)))
	}
	fmt.Println()

	return nil
}

func syncLine(r models.RepoSyncResult) string {
	if r.Error != "" {
		return fmt.Sprintf("%-40s %s", r.Repository, styleError.Render(r.Error))
	}
	return fmt.Sprintf("%-40s %s", r.Repository, plural(r.Issues, "issue"))
}
