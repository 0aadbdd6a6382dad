package commands

import (
	"context"
	"maps"
	"slices"

	"github.com/flemzord/tgram/pkg/telegram"
)

// API is the subset of the Bot API used by contexts and converters.
// *telegram.Client satisfies it.
type API interface {
	SendMessage(ctx context.Context, req telegram.SendMessageRequest) (*telegram.Message, error)
	SendChatAction(ctx context.Context, chatID int64, action string) error
	SendPoll(ctx context.Context, req telegram.SendPollRequest) (*telegram.Message, error)
	GetChat(ctx context.Context, chatID int64) (*telegram.Chat, error)
	GetChatMember(ctx context.Context, chatID, userID int64) (*telegram.ChatMember, error)
}

// State tracks an invocation through its phases.
type State int

const (
	StateResolved State = iota
	StateChecked
	StateParsed
	StateInvoked
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateResolved:
		return "resolved"
	case StateChecked:
		return "checked"
	case StateParsed:
		return "parsed"
	case StateInvoked:
		return "invoked"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Context carries one command invocation. Command is nil when the message
// named an unknown command.
type Context struct {
	ID          string
	Command     *Command
	InvokedWith string
	Tail        string

	Message *telegram.Message
	Chat    *telegram.Chat
	Author  *telegram.User

	// Args holds converted positional and variadic values in declaration
	// order. Kwargs holds the keyword-rest value, if any.
	Args   []any
	Kwargs map[string]any

	State  State
	Failed bool

	API      API
	OwnerIDs []int64
	Registry *Registry

	values map[string]any
}

// Value returns the converted value of the named parameter. Variadic
// parameters yield []any.
func (c *Context) Value(name string) (any, bool) {
	v, ok := c.values[name]
	return v, ok
}

// SendOption adjusts an outgoing message.
type SendOption func(*telegram.SendMessageRequest)

// ParseMode sets the parse mode ("HTML", "MarkdownV2").
func ParseMode(mode string) SendOption {
	return func(r *telegram.SendMessageRequest) {
		r.ParseMode = mode
	}
}

// Send posts text to the invocation chat.
func (c *Context) Send(ctx context.Context, text string, opts ...SendOption) (*telegram.Message, error) {
	req := telegram.SendMessageRequest{ChatID: c.Chat.ID, Text: text}
	if c.Message != nil {
		req.MessageThreadID = c.Message.MessageThreadID
	}
	for _, opt := range opts {
		opt(&req)
	}
	return c.API.SendMessage(ctx, req)
}

// Reply answers the invoking message.
func (c *Context) Reply(ctx context.Context, text string, opts ...SendOption) (*telegram.Message, error) {
	if c.Message != nil {
		opts = append([]SendOption{func(r *telegram.SendMessageRequest) {
			r.ReplyToMessageID = c.Message.MessageID
		}}, opts...)
	}
	return c.Send(ctx, text, opts...)
}

// SendAction shows a chat action such as "typing".
func (c *Context) SendAction(ctx context.Context, action string) error {
	return c.API.SendChatAction(ctx, c.Chat.ID, action)
}

// SendPoll posts a poll to the invocation chat.
func (c *Context) SendPoll(ctx context.Context, question string, options []string) (*telegram.Message, error) {
	return c.API.SendPoll(ctx, telegram.SendPollRequest{
		ChatID:   c.Chat.ID,
		Question: question,
		Options:  options,
	})
}

// Clone returns a copy that shares no mutable state with c. Listeners that
// observe an invocation while it runs get a clone.
func (c *Context) Clone() *Context {
	cp := *c
	cp.Args = slices.Clone(c.Args)
	cp.Kwargs = maps.Clone(c.Kwargs)
	cp.values = maps.Clone(c.values)
	return &cp
}

func (c *Context) setValue(name string, v any) {
	if c.values == nil {
		c.values = make(map[string]any)
	}
	c.values[name] = v
}
