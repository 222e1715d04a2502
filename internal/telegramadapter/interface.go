// Package telegramadapter is the thin boundary between this service and
// the Telegram Bot API: everything upstream of it works in terms of a
// telegram user ID and a message, never the wire protocol itself.
package telegramadapter

import "context"

// Notification is one outbound message to a Telegram user: a moderation
// decision, a payout status change, or similar.
type Notification struct {
	TelegramUserID int64
	Text           string
}

type Adapter interface {
	Notify(ctx context.Context, n Notification) error
}
