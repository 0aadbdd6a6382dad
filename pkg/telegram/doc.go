// Package telegram is a small Telegram Bot API client.
//
// It covers the methods the bot framework needs to receive updates and answer
// commands: long polling via getUpdates, webhook registration, sending text,
// chat actions and polls, and resolving chats and chat members.
//
// Every failed call returns either a transport error (network, decoding) or
// an *APIError carrying the Bot API error code. IsFatal separates the errors
// a polling loop must stop on (invalid token, forbidden, not found, conflict)
// from those it may retry.
//
// No external Telegram library is used; the client speaks to the Bot API via
// raw net/http + encoding/json.
package telegram
