package telegramadapter

import (
	"context"
	"log/slog"
)

// LoggingAdapter stands in for the real Bot API client: it logs the
// notification instead of sending it. Speaking the Telegram wire
// protocol directly is out of scope here; a real deployment swaps this
// for an adapter backed by the bot's own outbound message queue.
type LoggingAdapter struct {
	log *slog.Logger
}

func NewLoggingAdapter(log *slog.Logger) *LoggingAdapter {
	return &LoggingAdapter{log: log}
}

func (a *LoggingAdapter) Notify(ctx context.Context, n Notification) error {
	a.log.Info("telegram notify", "telegram_user_id", n.TelegramUserID, "text", n.Text)
	return nil
}
