package bot

import (
	"github.com/flemzord/tgram/pkg/events"
	"github.com/flemzord/tgram/pkg/telegram"
)

// Events dispatched by the bot. Update events carry the typed payload as
// their only argument; raw_update carries the *telegram.Update.
const (
	EventRawUpdate         = "raw_update"
	EventMessage           = "message"
	EventMessageEdit       = "message_edit"
	EventPost              = "post"
	EventPostEdit          = "post_edit"
	EventCallbackQuery     = "callback_query"
	EventPoll              = "poll"
	EventPollAnswer        = "poll_answer"
	EventMyChatMember      = "my_chat_member"
	EventChatMember        = "chat_member"
	EventCommand           = "command"
	EventCommandCompletion = "command_completion"
	EventCommandError      = "command_error"
	EventError             = events.Error
)

// classify maps an update to its event and payload. Fields are checked in a
// fixed order and the first one set wins. ok is false for updates carrying
// none of the known payloads.
func classify(u *telegram.Update) (event string, payload any, ok bool) {
	switch {
	case u.Message != nil:
		return EventMessage, u.Message, true
	case u.EditedMessage != nil:
		return EventMessageEdit, u.EditedMessage, true
	case u.ChannelPost != nil:
		return EventPost, u.ChannelPost, true
	case u.EditedChannelPost != nil:
		return EventPostEdit, u.EditedChannelPost, true
	case u.CallbackQuery != nil:
		return EventCallbackQuery, u.CallbackQuery, true
	case u.Poll != nil:
		return EventPoll, u.Poll, true
	case u.PollAnswer != nil:
		return EventPollAnswer, u.PollAnswer, true
	case u.MyChatMember != nil:
		return EventMyChatMember, u.MyChatMember, true
	case u.ChatMember != nil:
		return EventChatMember, u.ChatMember, true
	}
	return "", nil, false
}
