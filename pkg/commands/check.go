package commands

import (
	"context"
	"slices"
)

// IsOwner passes only for the configured owners.
func IsOwner() Check {
	return func(_ context.Context, c *Context) (bool, error) {
		if c.Author == nil || !slices.Contains(c.OwnerIDs, c.Author.ID) {
			return false, ErrNotOwner
		}
		return true, nil
	}
}

// IsPrivateChat passes only in one-to-one chats.
func IsPrivateChat() Check {
	return func(_ context.Context, c *Context) (bool, error) {
		if c.Chat == nil || !c.Chat.IsPrivate() {
			return false, ErrPrivateChatOnly
		}
		return true, nil
	}
}

// IsNotPrivateChat passes only in groups, supergroups and channels.
func IsNotPrivateChat() Check {
	return func(_ context.Context, c *Context) (bool, error) {
		if c.Chat == nil || c.Chat.IsPrivate() {
			return false, ErrGroupOnly
		}
		return true, nil
	}
}
