package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Type tags a conversion target. A parameter lists one Type, or several to
// form a union tried in order.
type Type string

// Built-in conversion targets.
const (
	String     Type = "str"
	Int        Type = "int"
	Float      Type = "float"
	Bool       Type = "bool"
	ChatMember Type = "ChatMember"
	Chat       Type = "Chat"

	// None makes a union optional: when every other candidate fails the
	// value is nil instead of an error.
	None Type = "None"
)

// ConvertFunc turns a raw token into a typed value. Returning a
// *BadArgumentError keeps its message; any other error is replaced by a
// generic BadArgumentError naming the type.
type ConvertFunc func(ctx context.Context, c *Context, arg string) (any, error)

func builtinConverters() map[Type]ConvertFunc {
	return map[Type]ConvertFunc{
		String:     convertString,
		Int:        convertInt,
		Float:      convertFloat,
		Bool:       convertBool,
		ChatMember: convertChatMember,
		Chat:       convertChat,
	}
}

func convertString(_ context.Context, _ *Context, arg string) (any, error) {
	return arg, nil
}

func convertInt(_ context.Context, _ *Context, arg string) (any, error) {
	return strconv.Atoi(arg)
}

func convertFloat(_ context.Context, _ *Context, arg string) (any, error) {
	return strconv.ParseFloat(arg, 64)
}

func convertBool(_ context.Context, _ *Context, arg string) (any, error) {
	switch strings.ToLower(arg) {
	case "1", "true", "yes", "y", "on", "enable", "enabled":
		return true, nil
	case "0", "false", "no", "n", "off", "disable", "disabled":
		return false, nil
	}
	return nil, fmt.Errorf("not a boolean: %q", arg)
}

// convertChatMember resolves a user ID to a member of the invocation chat.
func convertChatMember(ctx context.Context, c *Context, arg string) (any, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return nil, &BadArgumentError{Arg: arg, Converter: string(ChatMember), Message: fmt.Sprintf("User '%s' is not an ID", arg)}
	}
	if c == nil || c.API == nil || c.Chat == nil {
		return nil, &BadArgumentError{Arg: arg, Converter: string(ChatMember), Message: fmt.Sprintf("User '%s' not found", arg)}
	}
	member, err := c.API.GetChatMember(ctx, c.Chat.ID, id)
	if err != nil {
		return nil, &BadArgumentError{Arg: arg, Converter: string(ChatMember), Message: fmt.Sprintf("User '%s' not found", arg)}
	}
	return member, nil
}

// convertChat resolves a chat ID through the Bot API.
func convertChat(ctx context.Context, c *Context, arg string) (any, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return nil, &BadArgumentError{Arg: arg, Converter: string(Chat), Message: fmt.Sprintf("Chat '%s' is not an ID", arg)}
	}
	if c == nil || c.API == nil {
		return nil, &BadArgumentError{Arg: arg, Converter: string(Chat), Message: fmt.Sprintf("Chat '%s' is not found", arg)}
	}
	chat, err := c.API.GetChat(ctx, id)
	if err != nil {
		return nil, &BadArgumentError{Arg: arg, Converter: string(Chat), Message: fmt.Sprintf("Chat '%s' is not found", arg)}
	}
	return chat, nil
}

// Convert converts arg to the first of types that accepts it. An empty type
// list returns arg unchanged.
func (r *Registry) Convert(ctx context.Context, c *Context, types []Type, arg string) (any, error) {
	candidates := make([]Type, 0, len(types))
	optional := false
	for _, t := range types {
		if t == None {
			optional = true
			continue
		}
		candidates = append(candidates, t)
	}

	if len(candidates) == 0 {
		return arg, nil
	}
	if len(candidates) == 1 && !optional {
		return r.convertOne(ctx, c, candidates[0], arg)
	}

	for _, t := range candidates {
		if v, err := r.convertOne(ctx, c, t, arg); err == nil {
			return v, nil
		}
	}
	if optional {
		return nil, nil
	}
	return nil, &BadArgumentError{Arg: arg, Converter: unionName(types)}
}

func (r *Registry) convertOne(ctx context.Context, c *Context, t Type, arg string) (v any, err error) {
	r.mu.RLock()
	fn, ok := r.converters[t]
	r.mu.RUnlock()
	if !ok {
		return nil, &BadArgumentError{Arg: arg, Converter: string(t), Message: fmt.Sprintf("No converter registered for %q", t)}
	}

	defer func() {
		if rec := recover(); rec != nil {
			v, err = nil, &BadArgumentError{Arg: arg, Converter: string(t)}
		}
	}()

	v, err = fn(ctx, c, arg)
	if err != nil {
		var bad *BadArgumentError
		if errors.As(err, &bad) {
			return nil, bad
		}
		return nil, &BadArgumentError{Arg: arg, Converter: string(t)}
	}
	return v, nil
}

func unionName(types []Type) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, " | ")
}
