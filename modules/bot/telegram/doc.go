// Package telegram provides the bot.telegram module, which runs a bot.Bot
// inside the tgram host.
//
// Two delivery modes are supported: long polling (the default) and webhook.
// In webhook mode the module mounts a receiver on the gateway's
// /webhooks/telegram route and registers that URL with the Bot API.
//
// The module installs a General cog and registers the bot as the "bot"
// service, where the gateway and the scheduler pick it up.
package telegram
