package commands

import (
	"context"
	"errors"
	"testing"
)

func noop(context.Context, *Context) error { return nil }

func TestRegistryAddRejectsCollisions(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	ban := New("ban", noop, WithAliases("b"))
	if err := r.Add(ban); err != nil {
		t.Fatalf("Add(ban) error = %v", err)
	}

	tests := []struct {
		name    string
		cmd     *Command
		taken   string
		isAlias bool
	}{
		{name: "same name", cmd: New("ban", noop), taken: "ban"},
		{name: "name is an alias", cmd: New("b", noop), taken: "b"},
		{name: "alias is a name", cmd: New("block", noop, WithAliases("ban")), taken: "ban", isAlias: true},
		{name: "alias repeats name", cmd: New("kick", noop, WithAliases("kick")), taken: "kick", isAlias: true},
	}
	for _, tt := range tests {
		err := r.Add(tt.cmd)
		var regErr *CommandRegistrationError
		if !errors.As(err, &regErr) {
			t.Fatalf("%s: error = %v, want *CommandRegistrationError", tt.name, err)
		}
		if regErr.Name != tt.taken || regErr.IsAlias != tt.isAlias {
			t.Errorf("%s: error = %+v", tt.name, regErr)
		}
	}

	if got := r.Get("b"); got != ban {
		t.Error("original alias should still resolve to the first command")
	}
	if got := r.Get("block"); got != nil {
		t.Error("rejected command must not be partially registered")
	}
	if n := len(r.Commands()); n != 1 {
		t.Errorf("len(Commands()) = %d, want 1", n)
	}
}

func TestRegistryAddValidates(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Add(New("", noop)); !errors.Is(err, ErrEmptyName) {
		t.Errorf("empty name error = %v", err)
	}
	if err := r.Add(New("x", nil)); !errors.Is(err, ErrNilCallback) {
		t.Errorf("nil callback error = %v", err)
	}
	if err := r.Add(New("y", noop, WithParams(Arg("v", "Colour")))); !errors.Is(err, ErrUnknownType) {
		t.Errorf("unknown type error = %v", err)
	}
}

func TestRegistryRemoveAndGet(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	cmd := New("Ping", noop, WithAliases("p"))
	if err := r.Add(cmd); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if r.Get("ping") != nil {
		t.Error("lookup must be case-sensitive")
	}
	if got := r.Remove("p"); got != cmd {
		t.Fatalf("Remove(alias) = %v", got)
	}
	if r.Get("Ping") != nil || r.Get("p") != nil {
		t.Error("command still registered after Remove")
	}
	if r.Remove("Ping") != nil {
		t.Error("second Remove should return nil")
	}
	if err := r.Add(New("p", noop)); err != nil {
		t.Errorf("freed alias should be reusable: %v", err)
	}
}

func TestRegistryCommandsSorted(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Add(New(name, noop)); err != nil {
			t.Fatal(err)
		}
	}
	var names []string
	for _, c := range r.Commands() {
		names = append(names, c.Name())
	}
	if names[0] != "alpha" || names[1] != "mid" || names[2] != "zeta" {
		t.Errorf("Commands() order = %v", names)
	}
}

func TestRegistryCogIsAtomic(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Add(New("taken", noop)); err != nil {
		t.Fatal(err)
	}

	bad := NewCog("Mod").AddCommand(New("kick", noop), New("taken", noop))
	err := r.AddCog(bad)
	var regErr *CommandRegistrationError
	if !errors.As(err, &regErr) || regErr.Name != "taken" {
		t.Fatalf("AddCog() error = %v", err)
	}
	if r.Get("kick") != nil || r.Cog("Mod") != nil {
		t.Error("failed AddCog left state behind")
	}

	dup := NewCog("Dup").AddCommand(New("one", noop, WithAliases("x")), New("two", noop, WithAliases("x")))
	if err := r.AddCog(dup); !errors.As(err, &regErr) {
		t.Errorf("collision inside cog error = %v", err)
	}

	good := NewCog("Fun").AddCommand(New("roll", noop), New("flip", noop))
	if err := r.AddCog(good); err != nil {
		t.Fatalf("AddCog() error = %v", err)
	}
	if err := r.AddCog(NewCog("Fun")); !errors.Is(err, ErrCogExists) {
		t.Errorf("duplicate cog error = %v", err)
	}
	if r.Get("roll").Cog() != good {
		t.Error("command should belong to its cog")
	}

	removed, err := r.RemoveCog("Fun")
	if err != nil || removed != good {
		t.Fatalf("RemoveCog() = %v, %v", removed, err)
	}
	if r.Get("roll") != nil || r.Get("flip") != nil {
		t.Error("cog commands still registered")
	}
	if _, err := r.RemoveCog("Fun"); !errors.Is(err, ErrCogNotFound) {
		t.Errorf("second RemoveCog error = %v", err)
	}
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	echo := New("echo", noop, WithAliases("say"))
	if err := r.Add(echo); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		text        string
		wantNil     bool
		invokedWith string
		tail        string
	}{
		{name: "plain", text: "/echo hello  world", invokedWith: "echo", tail: "hello  world"},
		{name: "alias", text: "/say hi", invokedWith: "say", tail: "hi"},
		{name: "no args", text: "/echo", invokedWith: "echo"},
		{name: "newline separator", text: "/echo\nline", invokedWith: "echo", tail: "line"},
		{name: "single separator dropped", text: "/echo   hi", invokedWith: "echo", tail: "  hi"},
		{name: "addressed to us", text: "/echo@TgramBot x", invokedWith: "echo", tail: "x"},
		{name: "addressed to us any case", text: "/echo@tgrambot", invokedWith: "echo"},
		{name: "addressed elsewhere", text: "/echo@OtherBot x", wantNil: true},
		{name: "not a command", text: "echo", wantNil: true},
		{name: "bare slash", text: "/ x", wantNil: true},
	}
	for _, tt := range tests {
		m, err := r.Resolve(tt.text, "TgramBot")
		if err != nil {
			t.Fatalf("%s: Resolve() error = %v", tt.name, err)
		}
		if tt.wantNil {
			if m != nil {
				t.Errorf("%s: Resolve() = %+v, want nil", tt.name, m)
			}
			continue
		}
		if m == nil || m.Command != echo || m.InvokedWith != tt.invokedWith || m.Tail != tt.tail {
			t.Errorf("%s: Resolve() = %+v", tt.name, m)
		}
	}

	_, err := r.Resolve("/Echo", "TgramBot")
	var nf *CommandNotFoundError
	if !errors.As(err, &nf) || nf.Name != "Echo" {
		t.Errorf("unknown command error = %v", err)
	}
}
