// Package bridge connects this process to the WhatsApp driver sidecar over
// NATS. The sidecar owns the browser-automation session; this side issues
// lifecycle commands, resolves contact identities via request/reply, and
// consumes raw message and session events.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/fertilitypoint/leadrelay/internal/chat"
)

const (
	subjectInitialize = "wa.cmd.initialize"
	subjectLogout     = "wa.cmd.logout"
	subjectDestroy    = "wa.cmd.destroy"
	subjectResolve    = "wa.cmd.resolve"
	eventPrefix       = "wa.evt."
	subjectMessage    = eventPrefix + "message"

	resolveTimeout = 5 * time.Second
)

// MessageHandler receives raw message events from the sidecar.
type MessageHandler func(evt chat.Event)

// SessionHandler receives session lifecycle events (qr, ready,
// authenticated, auth_failure, disconnected) with their raw payload.
type SessionHandler func(event, payload string)

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func Connect(url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}

// Initialize asks the sidecar to start (or restart) its driver session.
func (c *Client) Initialize(context.Context) error {
	return c.command(subjectInitialize)
}

func (c *Client) Logout(context.Context) error {
	return c.command(subjectLogout)
}

func (c *Client) Destroy(context.Context) error {
	return c.command(subjectDestroy)
}

func (c *Client) command(subject string) error {
	if err := c.conn.Publish(subject, nil); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

type resolveRequest struct {
	Address string `json:"address"`
}

type resolveReply struct {
	Number string `json:"number"`
	Error  string `json:"error,omitempty"`
}

// ResolveIdentity asks the sidecar for the dialable number behind a
// transport address. Callers treat any error as a soft failure.
func (c *Client) ResolveIdentity(ctx context.Context, address string) (string, error) {
	payload, err := json.Marshal(resolveRequest{Address: address})
	if err != nil {
		return "", fmt.Errorf("marshal resolve request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	msg, err := c.conn.RequestWithContext(ctx, subjectResolve, payload)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", address, err)
	}

	reply, err := parseResolveReply(msg.Data)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", address, err)
	}
	return reply, nil
}

func parseResolveReply(data []byte) (string, error) {
	var reply resolveReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return "", fmt.Errorf("parse reply: %w", err)
	}
	if reply.Error != "" {
		return "", fmt.Errorf("sidecar error: %s", reply.Error)
	}
	return reply.Number, nil
}

// Subscribe wires both event streams. Message events parse into chat.Event;
// everything else under the event prefix is forwarded to the session
// handler keyed by subject suffix. A malformed event is logged and dropped.
func (c *Client) Subscribe(onMessage MessageHandler, onSession SessionHandler) error {
	sub, err := c.conn.Subscribe(eventPrefix+">", func(msg *nats.Msg) {
		if msg.Subject == subjectMessage {
			evt, err := parseMessageEvent(msg.Data)
			if err != nil {
				c.logger.Error("failed to parse message event", "error", err)
				return
			}
			onMessage(evt)
			return
		}
		onSession(strings.TrimPrefix(msg.Subject, eventPrefix), string(msg.Data))
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", eventPrefix+">", err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", eventPrefix+">")
	return nil
}

func parseMessageEvent(data []byte) (chat.Event, error) {
	var evt chat.Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return chat.Event{}, err
	}
	if evt.Chat.ID == "" {
		return chat.Event{}, fmt.Errorf("message event missing chat id")
	}
	return evt, nil
}
