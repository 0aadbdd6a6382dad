package commands

import (
	"slices"

	"github.com/flemzord/tgram/pkg/events"
)

// Listener is an event handler declared by a cog.
type Listener struct {
	Event   string
	Handler events.Handler
}

// Cog groups commands and listeners that are registered and removed
// together. Its check runs after the checks of each of its commands.
type Cog struct {
	name        string
	description string
	commands    []*Command
	listeners   []Listener
	check       Check
}

// NewCog creates an empty cog.
func NewCog(name string) *Cog {
	return &Cog{name: name}
}

// WithDescription sets the text shown by the help command.
func (g *Cog) WithDescription(text string) *Cog {
	g.description = text
	return g
}

// AddCommand adds commands to the cog.
func (g *Cog) AddCommand(cmds ...*Command) *Cog {
	for _, cmd := range cmds {
		cmd.setCog(g)
	}
	g.commands = append(g.commands, cmds...)
	return g
}

// Listen adds an event listener to the cog.
func (g *Cog) Listen(event string, h events.Handler) *Cog {
	g.listeners = append(g.listeners, Listener{Event: event, Handler: h})
	return g
}

// WithCheck sets the cog-wide check.
func (g *Cog) WithCheck(check Check) *Cog {
	g.check = check
	return g
}

// Name returns the cog name.
func (g *Cog) Name() string { return g.name }

// Description returns the help text.
func (g *Cog) Description() string { return g.description }

// Commands returns the cog's commands.
func (g *Cog) Commands() []*Command { return slices.Clone(g.commands) }

// Listeners returns the cog's listeners.
func (g *Cog) Listeners() []Listener { return slices.Clone(g.listeners) }

// Check returns the cog-wide check, or nil.
func (g *Cog) Check() Check { return g.check }
