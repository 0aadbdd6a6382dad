package commands

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/flemzord/tgram/pkg/commands"

// Registry errors.
var (
	ErrCogExists      = errors.New("commands: cog already registered")
	ErrCogNotFound    = errors.New("commands: cog not found")
	ErrUnknownType    = errors.New("commands: no converter registered")
	ErrEmptyName      = errors.New("commands: empty command name")
	ErrNilCallback    = errors.New("commands: nil callback")
	ErrTypeRegistered = errors.New("commands: converter already registered")
)

// Registry holds commands, cogs and converters. It is safe for concurrent
// use.
type Registry struct {
	mu         sync.RWMutex
	commands   map[string]*Command
	names      map[string]*Command
	cogs       map[string]*Cog
	converters map[Type]ConvertFunc

	tracer trace.Tracer
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithTracerProvider sets the provider used for invocation spans. The global
// provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) RegistryOption {
	return func(r *Registry) {
		r.tracer = tp.Tracer(tracerName)
	}
}

// NewRegistry returns an empty registry with the built-in converters.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		commands:   make(map[string]*Command),
		names:      make(map[string]*Command),
		cogs:       make(map[string]*Cog),
		converters: builtinConverters(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.tracer == nil {
		r.tracer = otel.GetTracerProvider().Tracer(tracerName)
	}
	return r
}

// RegisterConverter adds a converter for a custom type tag.
func (r *Registry) RegisterConverter(t Type, fn ConvertFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t == None {
		return fmt.Errorf("%w: %s", ErrTypeRegistered, t)
	}
	if _, ok := r.converters[t]; ok {
		return fmt.Errorf("%w: %s", ErrTypeRegistered, t)
	}
	r.converters[t] = fn
	return nil
}

// Add registers a command. A name or alias that is already taken returns a
// *CommandRegistrationError and leaves the registry unchanged.
func (r *Registry) Add(cmd *Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.validateLocked(cmd, nil); err != nil {
		return err
	}
	r.addLocked(cmd)
	return nil
}

// validateLocked checks cmd against the registry and against the names in
// pending, which belong to commands about to be added alongside it.
func (r *Registry) validateLocked(cmd *Command, pending map[string]bool) error {
	if cmd.name == "" {
		return ErrEmptyName
	}
	if cmd.callback == nil {
		return fmt.Errorf("%w: %s", ErrNilCallback, cmd.name)
	}
	for _, p := range cmd.params {
		for _, t := range p.Types {
			if t == None {
				continue
			}
			if _, ok := r.converters[t]; !ok {
				return fmt.Errorf("%w: %s (param %s of %s)", ErrUnknownType, t, p.Name, cmd.name)
			}
		}
	}

	seen := make(map[string]bool)
	for i, name := range cmd.names() {
		if _, taken := r.names[name]; taken || pending[name] || seen[name] {
			return &CommandRegistrationError{Name: name, IsAlias: i > 0}
		}
		seen[name] = true
	}
	return nil
}

func (r *Registry) addLocked(cmd *Command) {
	r.commands[cmd.name] = cmd
	for _, name := range cmd.names() {
		r.names[name] = cmd
	}
}

func (r *Registry) removeLocked(cmd *Command) {
	delete(r.commands, cmd.name)
	for _, name := range cmd.names() {
		if r.names[name] == cmd {
			delete(r.names, name)
		}
	}
}

// Remove unregisters the command with the given name or alias and returns it,
// or nil when nothing matched.
func (r *Registry) Remove(name string) *Command {
	r.mu.Lock()
	defer r.mu.Unlock()

	cmd, ok := r.names[name]
	if !ok {
		return nil
	}
	r.removeLocked(cmd)
	return cmd
}

// Get looks a command up by name or alias. Matching is case-sensitive.
func (r *Registry) Get(name string) *Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names[name]
}

// Commands returns every registered command sorted by name.
func (r *Registry) Commands() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := slices.Collect(maps.Values(r.commands))
	slices.SortFunc(out, func(a, b *Command) int {
		return strings.Compare(a.name, b.name)
	})
	return out
}

// AddCog registers a cog and all of its commands. Either every command is
// registered or none is.
func (r *Registry) AddCog(g *Cog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.cogs[g.name]; ok {
		return fmt.Errorf("%w: %s", ErrCogExists, g.name)
	}

	pending := make(map[string]bool)
	for _, cmd := range g.commands {
		if err := r.validateLocked(cmd, pending); err != nil {
			return err
		}
		for _, name := range cmd.names() {
			pending[name] = true
		}
	}

	for _, cmd := range g.commands {
		r.addLocked(cmd)
	}
	r.cogs[g.name] = g
	return nil
}

// RemoveCog unregisters a cog and its commands and returns it.
func (r *Registry) RemoveCog(name string) (*Cog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.cogs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCogNotFound, name)
	}
	for _, cmd := range g.commands {
		if r.commands[cmd.name] == cmd {
			r.removeLocked(cmd)
		}
	}
	delete(r.cogs, name)
	return g, nil
}

// Cog returns the named cog, or nil.
func (r *Registry) Cog(name string) *Cog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cogs[name]
}

// Cogs returns every registered cog sorted by name.
func (r *Registry) Cogs() []*Cog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := slices.Collect(maps.Values(r.cogs))
	slices.SortFunc(out, func(a, b *Cog) int {
		return strings.Compare(a.name, b.name)
	})
	return out
}

// Match is a message resolved to a command.
type Match struct {
	Command     *Command
	InvokedWith string
	Tail        string
}

// Resolve parses the command addressed by text. It returns (nil, nil) when
// the text is not a command or is addressed to another bot, and a
// *CommandNotFoundError when the name is unknown. username is the bot's own
// username; "/name@username" is accepted when it matches, case-insensitively.
func (r *Registry) Resolve(text, username string) (*Match, error) {
	if !strings.HasPrefix(text, "/") {
		return nil, nil
	}

	head, tail := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		head = text[:i]
		_, size := utf8.DecodeRuneInString(text[i:])
		tail = text[i+size:]
	}

	name := head[1:]
	if at := strings.IndexByte(name, '@'); at >= 0 {
		target := name[at+1:]
		name = name[:at]
		if !strings.EqualFold(target, username) {
			return nil, nil
		}
	}
	if name == "" {
		return nil, nil
	}

	cmd := r.Get(name)
	if cmd == nil {
		return nil, &CommandNotFoundError{Name: name}
	}
	return &Match{Command: cmd, InvokedWith: name, Tail: tail}, nil
}
