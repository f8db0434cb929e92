package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/wesm/issue-desk/internal/models"
)

const commentHelp = `Add, edit or delete a comment on an issue.

  issue-desk comment acme/widgets 42 "Looks good to me"
  issue-desk comment -edit 123456 acme/widgets 42 "Fixed typo"
  issue-desk comment -delete 123456 acme/widgets 42`

func (cmd *commentCommand) Name() string      { return "comment" }
func (cmd *commentCommand) Args() string      { return "[OPTIONS] OWNER/REPO NUMBER [BODY]" }
func (cmd *commentCommand) ShortHelp() string { return "Add, edit or delete a comment on an issue." }
func (cmd *commentCommand) LongHelp() string  { return commentHelp }
func (cmd *commentCommand) Hidden() bool      { return false }

func (cmd *commentCommand) Register(fs *flag.FlagSet) {
	fs.Int64Var(&cmd.edit, "edit", 0, "id of the comment to replace")
	fs.Int64Var(&cmd.delete, "delete", 0, "id of the comment to delete")
}

type commentCommand struct {
	edit   int64
	delete int64
}

func (cmd *commentCommand) Run(ctx context.Context, args []string) error {
	if cmd.edit != 0 && cmd.delete != 0 {
		return errors.New("-edit and -delete cannot be combined")
	}

	owner, name, number, err := parseIssueArgs(args)
	if err != nil {
		return err
	}
	body := strings.Join(args[2:], " ")

	ctx, cancel := withSignals(ctx)
	defer cancel()

	a, _, closeApp, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp()

	var issue models.Issue
	switch {
	case cmd.delete != 0:
		issue, err = a.DeleteComment(ctx, owner, name, number, cmd.delete)
	case cmd.edit != 0:
		issue, err = a.EditComment(ctx, owner, name, number, cmd.edit, body)
	default:
		issue, err = a.AddComment(ctx, owner, name, number, body)
	}
	if err != nil {
		return err
	}

	fmt.Println(issueLine(issue))
	return nil
}
