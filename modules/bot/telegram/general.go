package telegram

import (
	"context"
	"fmt"

	"github.com/flemzord/tgram/pkg/commands"
)

// General returns the cog installed on every host bot.
func General() *commands.Cog {
	return commands.NewCog("General").WithDescription("Basic commands").AddCommand(
		commands.New("ping", ping,
			commands.WithDescription("Check that the bot is alive"),
		),
		commands.New("echo", echo,
			commands.WithDescription("Repeat a message"),
			commands.WithParams(commands.Rest("text", commands.String)),
		),
		commands.New("poll", poll,
			commands.WithDescription("Start a poll"),
			commands.WithParams(
				commands.Arg("question", commands.String),
				commands.Variadic("options", commands.String),
			),
			commands.WithCheck(commands.IsNotPrivateChat()),
		),
	)
}

func ping(ctx context.Context, c *commands.Context) error {
	_, err := c.Reply(ctx, "pong")
	return err
}

func echo(ctx context.Context, c *commands.Context) error {
	text, _ := c.Value("text")
	_, err := c.Send(ctx, fmt.Sprint(text))
	return err
}

func poll(ctx context.Context, c *commands.Context) error {
	question, _ := c.Value("question")
	raw, _ := c.Value("options")
	values, _ := raw.([]any)
	if len(values) < 2 {
		_, err := c.Reply(ctx, "A poll needs at least two options.")
		return err
	}
	options := make([]string, len(values))
	for i, v := range values {
		options[i] = fmt.Sprint(v)
	}
	_, err := c.SendPoll(ctx, fmt.Sprint(question), options)
	return err
}
