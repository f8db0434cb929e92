package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/wesm/issue-desk/internal/models"
)

var (
	cGreen  = lipgloss.Color("118")
	cPurple = lipgloss.Color("99")
	cRed    = lipgloss.Color("196")
	cGray   = lipgloss.Color("240")

	styleOpen    = lipgloss.NewStyle().Foreground(cGreen).Bold(true)
	styleClosed  = lipgloss.NewStyle().Foreground(cPurple).Bold(true)
	styleUnknown = lipgloss.NewStyle().Foreground(cGray)
	styleError   = lipgloss.NewStyle().Foreground(cRed)
	styleDim     = lipgloss.NewStyle().Foreground(cGray)
)

const markdownWidth = 100

func renderState(state string) string {
	switch state {
	case models.StateOpen:
		return styleOpen.Render(fmt.Sprintf("%-6s", state))
	case models.StateClosed:
		return styleClosed.Render(fmt.Sprintf("%-6s", state))
	default:
		return styleUnknown.Render(fmt.Sprintf("%-6s", state))
	}
}

// issueLine is the one-line summary printed by the issues command
func issueLine(issue models.Issue) string {
	meta := fmt.Sprintf("%s, %s by %s", plural(len(issue.Comments), "comment"), humanize.Time(issue.CreatedAt), issue.Creator)
	return fmt.Sprintf("#%-5d %s %s  %s", issue.Number, renderState(issue.State), issue.Title, styleDim.Render(meta))
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func cacheLine(status models.CacheStatus) string {
	if !status.Cached || status.LastUpdated == nil {
		return styleDim.Render("not cached")
	}
	return styleDim.Render("updated " + humanize.Time(*status.LastUpdated))
}

// issueMarkdown lays out an issue and its comments as one markdown document
func issueMarkdown(repo string, issue models.Issue, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s #%d\n\n", issue.Title, issue.Number)
	fmt.Fprintf(&b, "**%s** · %s opened %s", issue.State, issue.Creator, humanize.RelTime(issue.CreatedAt, now, "ago", "from now"))
	fmt.Fprintf(&b, " · %s\n\n", repo)
	if len(issue.Labels) > 0 {
		fmt.Fprintf(&b, "Labels: `%s`\n\n", strings.Join(issue.Labels, "` `"))
	}
	if len(issue.Assignees) > 0 {
		fmt.Fprintf(&b, "Assignees: %s\n\n", strings.Join(issue.Assignees, ", "))
	}

	if issue.Body != nil && strings.TrimSpace(*issue.Body) != "" {
		b.WriteString(*issue.Body)
		b.WriteString("\n\n")
	} else {
		b.WriteString("_No description provided._\n\n")
	}

	for _, c := range issue.Comments {
		b.WriteString("---\n\n")
		fmt.Fprintf(&b, "**%s** commented %s", c.Author, humanize.RelTime(c.CreatedAt, now, "ago", "from now"))
		if c.UpdatedAt != nil && c.UpdatedAt.After(c.CreatedAt) {
			b.WriteString(" (edited)")
		}
		fmt.Fprintf(&b, " · id %d\n\n%s\n\n", c.ID, c.Body)
	}

	return b.String()
}

func renderMarkdown(md string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(markdownWidth),
	)
	if err != nil {
		return md
	}
	out, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}
