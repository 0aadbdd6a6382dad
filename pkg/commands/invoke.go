package commands

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Invoke runs c.Command: checks, then argument parsing, then the callback.
// The returned error is a *CheckFailure, a user input error (see
// ErrUserInput) or a *CommandInvokeError. On failure c.Failed is set and
// c.State is StateFailed.
func (r *Registry) Invoke(ctx context.Context, c *Context) (err error) {
	cmd := c.Command
	if cmd == nil {
		return &CommandNotFoundError{Name: c.InvokedWith}
	}

	attrs := []attribute.KeyValue{
		attribute.String("command.name", cmd.name),
		attribute.String("command.invoked_with", c.InvokedWith),
		attribute.String("command.invocation_id", c.ID),
	}
	if c.Chat != nil {
		attrs = append(attrs, attribute.Int64("telegram.chat.id", c.Chat.ID))
	}
	ctx, span := r.tracer.Start(ctx, "command "+cmd.name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	defer func() {
		if err != nil {
			c.Failed = true
			c.State = StateFailed
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			c.State = StateCompleted
		}
		span.SetAttributes(attribute.String("command.state", c.State.String()))
		span.End()
	}()

	c.State = StateResolved
	if err := runChecks(ctx, c); err != nil {
		return err
	}
	c.State = StateChecked

	if err := r.parseArgs(ctx, c); err != nil {
		return err
	}
	c.State = StateParsed

	c.State = StateInvoked
	if err := callCommand(ctx, c); err != nil {
		return &CommandInvokeError{Command: cmd.name, Err: err}
	}
	return nil
}

// runChecks runs the command's checks in order, then the cog check.
func runChecks(ctx context.Context, c *Context) error {
	checks := c.Command.checkList()
	if g := c.Command.Cog(); g != nil && g.check != nil {
		checks = append(checks, g.check)
	}
	for _, check := range checks {
		if err := runCheck(ctx, c, check); err != nil {
			return err
		}
	}
	return nil
}

func runCheck(ctx context.Context, c *Context, check Check) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &CheckFailure{Message: "A check for this command has failed", Err: &PanicError{Value: rec}}
		}
	}()

	ok, err := check(ctx, c)
	switch {
	case err != nil:
		var cf *CheckFailure
		if errors.As(err, &cf) {
			return cf
		}
		return &CheckFailure{Err: err}
	case !ok:
		return &CheckFailure{Message: "A check for this command has failed"}
	}
	return nil
}

// parseArgs fills c.Args, c.Kwargs and the named values from c.Tail.
func (r *Registry) parseArgs(ctx context.Context, c *Context) error {
	reader := NewReader(c.Tail)
	c.Args = c.Args[:0]
	if c.Kwargs == nil {
		c.Kwargs = make(map[string]any)
	}

	for _, p := range c.Command.params {
		switch p.Kind {
		case Positional:
			tok, err := reader.NextPositional()
			if err != nil {
				return err
			}
			v, err := r.valueFor(ctx, c, p, tok)
			if err != nil {
				return err
			}
			c.Args = append(c.Args, v)
			c.setValue(p.Name, v)

		case KeywordRest:
			v, err := r.valueFor(ctx, c, p, reader.NextKeywordRest())
			if err != nil {
				return err
			}
			c.Kwargs[p.Name] = v
			c.setValue(p.Name, v)

		case VarPositional:
			toks, err := reader.NextVariadic()
			if err != nil {
				return err
			}
			if len(toks) == 0 {
				if !p.HasDefault {
					return &MissingRequiredArgumentError{Param: p.Name}
				}
				c.Args = append(c.Args, p.Default)
				c.setValue(p.Name, p.Default)
				continue
			}
			values := make([]any, 0, len(toks))
			for _, tok := range toks {
				v, err := r.Convert(ctx, c, p.Types, tok)
				if err != nil {
					return err
				}
				values = append(values, v)
			}
			c.Args = append(c.Args, values...)
			c.setValue(p.Name, values)

		default:
			return fmt.Errorf("commands: unknown parameter kind %d for %s", p.Kind, p.Name)
		}
	}
	return nil
}

// valueFor converts tok, or falls back to the default when tok is empty.
func (r *Registry) valueFor(ctx context.Context, c *Context, p Param, tok string) (any, error) {
	if tok == "" {
		if !p.HasDefault {
			return nil, &MissingRequiredArgumentError{Param: p.Name}
		}
		return p.Default, nil
	}
	return r.Convert(ctx, c, p.Types, tok)
}

func callCommand(ctx context.Context, c *Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{Value: rec}
		}
	}()
	return c.Command.callback(ctx, c)
}
