package chat

import (
	"context"
	"log/slog"
	"strings"
)

// IdentityResolver looks up the dialable phone number behind a transport
// address. On linked-device accounts the raw address is an opaque alias,
// not a number, so the lookup is the only way to recover the real contact.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, address string) (string, error)
}

// Normalizer converts raw transport events into canonical (Patch, Message)
// pairs. It never fails: an unresolvable identity degrades the record to
// address local parts instead of dropping the message.
type Normalizer struct {
	resolver IdentityResolver
	logger   *slog.Logger
}

func NewNormalizer(resolver IdentityResolver, logger *slog.Logger) *Normalizer {
	return &Normalizer{resolver: resolver, logger: logger}
}

// Normalize derives conversation metadata and the canonical message from a
// raw event. For individual chats the counterpart's real number is resolved
// and becomes the conversation's contact number; for groups the raw local
// parts are used verbatim and no contact number is set.
func (n *Normalizer) Normalize(ctx context.Context, evt Event) (Patch, Message) {
	chatID := evt.Chat.ID
	from := localPart(evt.From)
	to := localPart(evt.To)
	contactNumber := ""

	if !evt.Chat.IsGroup {
		if evt.FromMe {
			to, contactNumber = n.resolveCounterpart(ctx, evt.To, chatID)
		} else {
			from, contactNumber = n.resolveCounterpart(ctx, evt.From, chatID)
		}
	}

	chatName := evt.Chat.Name
	if chatName == "" {
		chatName = contactNumber
	}
	if chatName == "" {
		chatName = localPart(chatID)
	}

	patch := Patch{
		ChatID:        chatID,
		ChatName:      chatName,
		ContactNumber: contactNumber,
		IsGroup:       evt.Chat.IsGroup,
	}
	msg := Message{
		From:      from,
		To:        to,
		Body:      evt.Body,
		Timestamp: evt.Timestamp,
		IsMine:    evt.FromMe,
	}
	return patch, msg
}

// resolveCounterpart returns the counterpart identity and the conversation
// contact number. A lookup error falls back to the address local part, with
// the contact number taken from the chat id — the record degrades, the
// message is never lost.
func (n *Normalizer) resolveCounterpart(ctx context.Context, address, chatID string) (identity, contactNumber string) {
	number, err := n.resolver.ResolveIdentity(ctx, address)
	if err != nil {
		n.logger.Warn("identity lookup failed", "address", address, "error", err)
		return localPart(address), localPart(chatID)
	}
	if number == "" {
		// Resolved but no number on file (alias-only contact).
		return localPart(address), localPart(address)
	}
	return number, number
}

func localPart(address string) string {
	if i := strings.IndexByte(address, '@'); i >= 0 {
		return address[:i]
	}
	return address
}
