package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/fertilitypoint/leadrelay/internal/chat"
)

var ErrNotFound = errors.New("conversation not found")

// Upsert sets conversation metadata and appends msg to the message log,
// creating the row if absent. msg may be nil for a metadata-only update.
//
// The whole upsert is a single statement: ON CONFLICT takes the row lock,
// and the append concatenates onto the stored array, so concurrent upserts
// serialize per conversation and no append is ever lost.
func (s *Store) Upsert(ctx context.Context, patch chat.Patch, msg *chat.Message) error {
	appended := []byte("[]")
	if msg != nil {
		b, err := json.Marshal([]chat.Message{*msg})
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		appended = b
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO conversations (chat_id, chat_name, contact_number, is_group, messages, last_updated)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5::jsonb, now())
		ON CONFLICT (chat_id) DO UPDATE SET
			chat_name      = excluded.chat_name,
			contact_number = excluded.contact_number,
			is_group       = excluded.is_group,
			messages       = conversations.messages || excluded.messages,
			last_updated   = now()`,
		patch.ChatID, patch.ChatName, patch.ContactNumber, patch.IsGroup, appended,
	)
	if err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	return nil
}

// ListAll returns every conversation ordered by last_updated descending.
func (s *Store) ListAll(ctx context.Context) ([]chat.Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT chat_id, COALESCE(chat_name, ''), COALESCE(contact_number, ''), is_group, messages, last_updated
		FROM conversations
		ORDER BY last_updated DESC`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()
	return scanConversations(rows)
}

// Get returns the conversation for chatID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, chatID string) (chat.Conversation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT chat_id, COALESCE(chat_name, ''), COALESCE(contact_number, ''), is_group, messages, last_updated
		FROM conversations
		WHERE chat_id = $1`, chatID)

	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.Conversation{}, ErrNotFound
	}
	if err != nil {
		return chat.Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	return conv, nil
}

// ListActiveSince returns conversations with last_updated >= threshold,
// boundary inclusive. The jsonb read is a consistent snapshot of the log.
func (s *Store) ListActiveSince(ctx context.Context, threshold time.Time) ([]chat.Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT chat_id, COALESCE(chat_name, ''), COALESCE(contact_number, ''), is_group, messages, last_updated
		FROM conversations
		WHERE last_updated >= $1
		ORDER BY last_updated DESC`, threshold)
	if err != nil {
		return nil, fmt.Errorf("list active conversations: %w", err)
	}
	defer rows.Close()
	return scanConversations(rows)
}

func scanConversations(rows pgx.Rows) ([]chat.Conversation, error) {
	convs := []chat.Conversation{}
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return convs, nil
}

func scanConversation(row pgx.Row) (chat.Conversation, error) {
	var conv chat.Conversation
	var raw []byte
	if err := row.Scan(&conv.ChatID, &conv.ChatName, &conv.ContactNumber, &conv.IsGroup, &raw, &conv.LastUpdated); err != nil {
		return chat.Conversation{}, err
	}
	if err := json.Unmarshal(raw, &conv.Messages); err != nil {
		return chat.Conversation{}, fmt.Errorf("decode message log: %w", err)
	}
	return conv, nil
}
