package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

type fakeResolver struct {
	numbers map[string]string
	err     error
	calls   int
}

func (f *fakeResolver) ResolveIdentity(_ context.Context, address string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.numbers[address], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNormalize_GroupUsesVerbatimLocalParts(t *testing.T) {
	resolver := &fakeResolver{}
	n := NewNormalizer(resolver, discardLogger())

	patch, msg := n.Normalize(context.Background(), Event{
		From:      "254700000001@c.us",
		To:        "123456789-group@g.us",
		Body:      "hello everyone",
		Timestamp: 1700000000,
		FromMe:    false,
		Chat:      Handle{ID: "123456789-group@g.us", Name: "Clinic Q&A", IsGroup: true},
	})

	if resolver.calls != 0 {
		t.Errorf("expected no identity lookups for groups, got %d", resolver.calls)
	}
	if msg.From != "254700000001" {
		t.Errorf("expected from local part, got %q", msg.From)
	}
	if msg.To != "123456789-group" {
		t.Errorf("expected to local part, got %q", msg.To)
	}
	if patch.ContactNumber != "" {
		t.Errorf("expected empty contact number for group, got %q", patch.ContactNumber)
	}
	if !patch.IsGroup {
		t.Error("expected IsGroup to carry through")
	}
	if patch.ChatName != "Clinic Q&A" {
		t.Errorf("expected transport name, got %q", patch.ChatName)
	}
}

func TestNormalize_InboundResolvesSender(t *testing.T) {
	resolver := &fakeResolver{numbers: map[string]string{"99887766@lid": "254712345678"}}
	n := NewNormalizer(resolver, discardLogger())

	patch, msg := n.Normalize(context.Background(), Event{
		From:      "99887766@lid",
		To:        "254799999999@c.us",
		Body:      "I'd like an appointment",
		Timestamp: 1700000100,
		FromMe:    false,
		Chat:      Handle{ID: "99887766@lid", IsGroup: false},
	})

	if msg.From != "254712345678" {
		t.Errorf("expected resolved sender number, got %q", msg.From)
	}
	if msg.To != "254799999999" {
		t.Errorf("expected recipient local part, got %q", msg.To)
	}
	if patch.ContactNumber != "254712345678" {
		t.Errorf("expected resolved contact number, got %q", patch.ContactNumber)
	}
	// No transport name: falls back to the contact number.
	if patch.ChatName != "254712345678" {
		t.Errorf("expected chat name from contact number, got %q", patch.ChatName)
	}
}

func TestNormalize_SelfAuthoredResolvesRecipient(t *testing.T) {
	resolver := &fakeResolver{numbers: map[string]string{"11223344@lid": "254722000111"}}
	n := NewNormalizer(resolver, discardLogger())

	patch, msg := n.Normalize(context.Background(), Event{
		From:      "254799999999@c.us",
		To:        "11223344@lid",
		Body:      "Your appointment is confirmed",
		Timestamp: 1700000200,
		FromMe:    true,
		Chat:      Handle{ID: "11223344@lid", IsGroup: false},
	})

	if msg.To != "254722000111" {
		t.Errorf("expected resolved recipient number, got %q", msg.To)
	}
	if msg.From != "254799999999" {
		t.Errorf("expected sender local part, got %q", msg.From)
	}
	if !msg.IsMine {
		t.Error("expected IsMine to carry through")
	}
	if patch.ContactNumber != "254722000111" {
		t.Errorf("expected contact number from recipient, got %q", patch.ContactNumber)
	}
}

func TestNormalize_LookupFailureFallsBack(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("contact service unavailable")}
	n := NewNormalizer(resolver, discardLogger())

	patch, msg := n.Normalize(context.Background(), Event{
		From:      "99887766@lid",
		To:        "254799999999@c.us",
		Body:      "hi",
		Timestamp: 1700000300,
		FromMe:    false,
		Chat:      Handle{ID: "5550001111@c.us", IsGroup: false},
	})

	if msg.From != "99887766" {
		t.Errorf("expected sender local part fallback, got %q", msg.From)
	}
	if patch.ContactNumber != "5550001111" {
		t.Errorf("expected contact number from chat id local part, got %q", patch.ContactNumber)
	}
	if patch.ChatName != "5550001111" {
		t.Errorf("expected chat name fallback, got %q", patch.ChatName)
	}
}

func TestNormalize_ResolvedWithoutNumberUsesAddressLocalPart(t *testing.T) {
	resolver := &fakeResolver{numbers: map[string]string{}}
	n := NewNormalizer(resolver, discardLogger())

	patch, msg := n.Normalize(context.Background(), Event{
		From:      "254712345678@c.us",
		To:        "254799999999@c.us",
		Body:      "hi",
		Timestamp: 1700000400,
		FromMe:    false,
		Chat:      Handle{ID: "254712345678@c.us", IsGroup: false},
	})

	if msg.From != "254712345678" {
		t.Errorf("expected address local part, got %q", msg.From)
	}
	if patch.ContactNumber != "254712345678" {
		t.Errorf("expected contact number from address local part, got %q", patch.ContactNumber)
	}
}

func TestNormalize_NameResolutionOrder(t *testing.T) {
	resolver := &fakeResolver{numbers: map[string]string{"x@lid": "254700000000"}}
	n := NewNormalizer(resolver, discardLogger())

	// Transport-supplied name wins over the resolved number.
	patch, _ := n.Normalize(context.Background(), Event{
		From: "x@lid", To: "me@c.us", Body: "a", FromMe: false,
		Chat: Handle{ID: "x@lid", Name: "Jane Doe"},
	})
	if patch.ChatName != "Jane Doe" {
		t.Errorf("expected transport name first, got %q", patch.ChatName)
	}
}
