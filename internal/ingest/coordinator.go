// Package ingest receives normalized chat events, persists them, and fans
// out a live notification to connected viewers.
package ingest

import (
	"context"
	"log/slog"

	"github.com/fertilitypoint/leadrelay/internal/chat"
)

// ConversationUpserter is the slice of the store the coordinator needs.
type ConversationUpserter interface {
	Upsert(ctx context.Context, patch chat.Patch, msg *chat.Message) error
}

// Broadcaster is a fire-and-forget fan-out to live viewers.
type Broadcaster interface {
	Publish(event string, payload any)
}

type Coordinator struct {
	store  ConversationUpserter
	hub    Broadcaster
	logger *slog.Logger
}

func New(store ConversationUpserter, hub Broadcaster, logger *slog.Logger) *Coordinator {
	return &Coordinator{store: store, hub: hub, logger: logger}
}

// Ingest upserts the conversation and notifies viewers. It never returns an
// error: a malformed or unpersistable event is logged and dropped so the
// event stream keeps flowing. The notification is advisory only and is not
// retried or rolled back against the persisted write.
func (c *Coordinator) Ingest(ctx context.Context, patch chat.Patch, msg chat.Message) {
	if err := c.store.Upsert(ctx, patch, &msg); err != nil {
		c.logger.Error("failed to save message",
			"chat_id", patch.ChatID,
			"error", err,
		)
		return
	}

	c.logger.Info("message saved",
		"chat_id", patch.ChatID,
		"chat_name", patch.ChatName,
		"from", msg.From,
		"to", msg.To,
		"mine", msg.IsMine,
	)

	c.hub.Publish("message", map[string]any{
		"chatId":  patch.ChatID,
		"message": msg,
	})
}
