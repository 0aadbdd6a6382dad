package commands

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Kind says how a parameter consumes argument text.
type Kind int

const (
	// Positional takes one token.
	Positional Kind = iota
	// KeywordRest takes everything left, verbatim.
	KeywordRest
	// VarPositional takes every remaining token.
	VarPositional
)

// Param describes one command parameter.
type Param struct {
	Name       string
	Kind       Kind
	Types      []Type
	Default    any
	HasDefault bool
}

// Arg declares a positional parameter.
func Arg(name string, types ...Type) Param {
	return Param{Name: name, Kind: Positional, Types: types}
}

// Rest declares a parameter receiving the rest of the message.
func Rest(name string, types ...Type) Param {
	return Param{Name: name, Kind: KeywordRest, Types: types}
}

// Variadic declares a parameter receiving all remaining tokens. Without a
// default it requires at least one token.
func Variadic(name string, types ...Type) Param {
	return Param{Name: name, Kind: VarPositional, Types: types}
}

// WithDefault returns a copy of p that falls back to v when no token is left.
func (p Param) WithDefault(v any) Param {
	p.Default = v
	p.HasDefault = true
	return p
}

func (p Param) signature() string {
	if p.Kind == VarPositional {
		if p.HasDefault {
			return "[" + p.Name + "...]"
		}
		return "<" + p.Name + "...>"
	}
	if !p.HasDefault {
		return "<" + p.Name + ">"
	}
	if p.Default == nil || p.Default == "" {
		return "[" + p.Name + "]"
	}
	return fmt.Sprintf("[%s=%v]", p.Name, p.Default)
}

// Callback is the body of a command.
type Callback func(ctx context.Context, c *Context) error

// Check gates a command. Returning false or an error fails the invocation
// with a *CheckFailure.
type Check func(ctx context.Context, c *Context) (bool, error)

// Command is a named callback with parameters, aliases and checks.
// Configure it before registering; only AddCheck is safe afterwards.
type Command struct {
	name        string
	aliases     []string
	params      []Param
	description string
	usage       string
	hidden      bool
	callback    Callback

	mu     sync.RWMutex
	checks []Check
	cog    *Cog
}

// Option configures a Command.
type Option func(*Command)

// WithAliases adds alternative names.
func WithAliases(aliases ...string) Option {
	return func(c *Command) {
		c.aliases = append(c.aliases, aliases...)
	}
}

// WithParams declares the parameters in the order they are read.
func WithParams(params ...Param) Option {
	return func(c *Command) {
		c.params = append(c.params, params...)
	}
}

// WithCheck appends checks, run in order before the callback.
func WithCheck(checks ...Check) Option {
	return func(c *Command) {
		c.checks = append(c.checks, checks...)
	}
}

// WithDescription sets the text shown by the help command.
func WithDescription(text string) Option {
	return func(c *Command) {
		c.description = text
	}
}

// WithUsage replaces the generated signature.
func WithUsage(usage string) Option {
	return func(c *Command) {
		c.usage = usage
	}
}

// Hidden keeps the command out of help listings.
func Hidden() Option {
	return func(c *Command) {
		c.hidden = true
	}
}

// New creates a command.
func New(name string, callback Callback, opts ...Option) *Command {
	c := &Command{
		name:     name,
		callback: callback,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddCheck appends a check and returns the command.
func (c *Command) AddCheck(check Check) *Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, check)
	return c
}

// Name returns the command name.
func (c *Command) Name() string { return c.name }

// Aliases returns a copy of the alias list.
func (c *Command) Aliases() []string { return slices.Clone(c.aliases) }

// Params returns a copy of the parameter list.
func (c *Command) Params() []Param { return slices.Clone(c.params) }

// Description returns the help text.
func (c *Command) Description() string { return c.description }

// IsHidden reports whether help listings skip the command.
func (c *Command) IsHidden() bool { return c.hidden }

// Cog returns the group the command belongs to, or nil.
func (c *Command) Cog() *Cog {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cog
}

func (c *Command) setCog(g *Cog) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cog = g
}

func (c *Command) checkList() []Check {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.checks)
}

// names returns the name followed by the aliases.
func (c *Command) names() []string {
	return append([]string{c.name}, c.aliases...)
}

// Signature renders the parameters for help output, e.g.
// "<user> [reason] [count=1] [tags...]". A usage string set with WithUsage
// is returned as is.
func (c *Command) Signature() string {
	if c.usage != "" {
		return c.usage
	}
	parts := make([]string, 0, len(c.params))
	for _, p := range c.params {
		parts = append(parts, p.signature())
	}
	return strings.Join(parts, " ")
}

func (c *Command) String() string {
	return c.name
}
