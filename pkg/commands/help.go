package commands

import (
	"cmp"
	"context"
	"fmt"
	"html"
	"slices"
	"strings"
)

// HelpOptions configures the built-in help command.
type HelpOptions struct {
	// Description is shown above the command list.
	Description string
	// NoCategory is the heading for commands outside any cog.
	// Defaults to "No Category".
	NoCategory string
	// Unsorted keeps registration order inside each category.
	Unsorted bool
}

// NewHelpCommand returns the "help" command (alias "start"). Without a query
// it lists every visible command grouped by cog. With a query it describes
// the matching cog or command.
func NewHelpCommand(opts HelpOptions) *Command {
	if opts.NoCategory == "" {
		opts.NoCategory = "No Category"
	}
	h := &helpCommand{opts: opts}
	h.cmd = New("help", h.run,
		WithAliases("start"),
		WithDescription("The help command"),
		WithParams(Rest("command").WithDefault("")),
	)
	return h.cmd
}

type helpCommand struct {
	opts HelpOptions
	cmd  *Command
}

func (h *helpCommand) run(ctx context.Context, c *Context) error {
	query, _ := c.Value("command")
	q, _ := query.(string)
	q = strings.TrimSpace(q)

	var lines []string
	switch {
	case q == "":
		lines = h.botHelp(c.Registry)
	case c.Registry.Cog(q) != nil:
		lines = h.cogHelp(c.Registry.Cog(q))
	case c.Registry.Get(q) != nil:
		lines = formatCommand(c.Registry.Get(q))
	default:
		_, err := c.Send(ctx, fmt.Sprintf("A command or cog named '%s' was not found.", q))
		return err
	}

	_, err := c.Send(ctx, strings.Join(lines, "\n"), ParseMode("HTML"))
	return err
}

func (h *helpCommand) endingNote() string {
	name := h.cmd.name
	return fmt.Sprintf("Type /%s [command] for more info on a command.\n"+
		"You can also type /%s [category] for more info on a category.", name, name)
}

func (h *helpCommand) botHelp(r *Registry) []string {
	var lines []string
	if h.opts.Description != "" {
		lines = append(lines, html.EscapeString(h.opts.Description), "")
	}

	var (
		order  []string
		groups = make(map[string][]*Command)
	)
	for _, cmd := range r.Commands() {
		category := h.opts.NoCategory
		if g := cmd.Cog(); g != nil {
			category = g.name
		}
		if _, ok := groups[category]; !ok {
			order = append(order, category)
		}
		groups[category] = append(groups[category], cmd)
	}
	slices.Sort(order)

	for _, category := range order {
		cmds := groups[category]
		if h.opts.Unsorted {
			if g := r.Cog(category); g != nil {
				cmds = g.Commands()
			}
		}
		if added := h.formatCommands(cmds, category); len(added) > 0 {
			lines = append(lines, added...)
			lines = append(lines, "")
		}
	}

	return append(lines, html.EscapeString(h.endingNote()))
}

func (h *helpCommand) cogHelp(g *Cog) []string {
	var lines []string
	if g.description != "" {
		lines = append(lines, html.EscapeString(g.description), "")
	}
	cmds := g.Commands()
	if !h.opts.Unsorted {
		slices.SortFunc(cmds, func(a, b *Command) int { return cmp.Compare(a.name, b.name) })
	}
	lines = append(lines, h.formatCommands(cmds, "Commands")...)
	return append(lines, "", html.EscapeString(h.endingNote()))
}

// formatCommands renders a heading followed by one line per visible command.
// It returns nothing when every command is hidden.
func (h *helpCommand) formatCommands(cmds []*Command, heading string) []string {
	var entries []string
	for _, cmd := range cmds {
		if cmd.hidden {
			continue
		}
		entry := commandSignature(cmd)
		if cmd.description != "" {
			entry += " - " + html.EscapeString(cmd.description)
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return nil
	}
	return append([]string{"<b>" + html.EscapeString(heading) + ":</b>"}, entries...)
}

func formatCommand(cmd *Command) []string {
	lines := []string{commandSignature(cmd)}
	if cmd.description != "" {
		lines = append(lines, html.EscapeString(cmd.description))
	}
	if len(cmd.aliases) > 0 {
		lines = append(lines, "Aliases: "+html.EscapeString(strings.Join(cmd.aliases, ", ")))
	}
	return lines
}

// commandSignature renders "/name <args>" escaped for HTML.
func commandSignature(cmd *Command) string {
	sig := "/" + html.EscapeString(cmd.name)
	if s := cmd.Signature(); s != "" {
		sig += " " + html.EscapeString(s)
	}
	return sig
}
