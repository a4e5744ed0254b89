// Package chat holds the canonical conversation model and the normalizer
// that maps raw transport events onto it.
package chat

import "time"

// Message is immutable once stored. Messages are append-only within a
// conversation's log; append order is arrival order, not timestamp order.
type Message struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"`
	IsMine    bool   `json:"isMine"`
}

// Conversation is one addressable thread, individual or group.
// ContactNumber is empty for group conversations.
type Conversation struct {
	ChatID        string    `json:"chatId"`
	ChatName      string    `json:"chatName,omitempty"`
	ContactNumber string    `json:"contactNumber,omitempty"`
	IsGroup       bool      `json:"isGroup"`
	Messages      []Message `json:"messages"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// Patch carries the conversation metadata half of an upsert.
type Patch struct {
	ChatID        string
	ChatName      string
	ContactNumber string
	IsGroup       bool
}

// Handle identifies the parent conversation of a raw transport event.
type Handle struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsGroup bool   `json:"isGroup"`
}

// Event is a raw inbound/outbound message event as delivered by the
// messaging transport, before identity resolution.
type Event struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"`
	FromMe    bool   `json:"fromMe"`
	Chat      Handle `json:"chat"`
}
