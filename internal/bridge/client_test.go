package bridge

import (
	"testing"
)

func TestParseMessageEvent(t *testing.T) {
	data := []byte(`{
		"from": "99887766@lid",
		"to": "254799999999@c.us",
		"body": "hello",
		"timestamp": 1700000000,
		"fromMe": false,
		"chat": {"id": "99887766@lid", "name": "Jane", "isGroup": false}
	}`)

	evt, err := parseMessageEvent(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evt.From != "99887766@lid" {
		t.Errorf("unexpected from %q", evt.From)
	}
	if evt.Timestamp != 1700000000 {
		t.Errorf("unexpected timestamp %d", evt.Timestamp)
	}
	if evt.Chat.Name != "Jane" || evt.Chat.IsGroup {
		t.Errorf("unexpected chat handle %+v", evt.Chat)
	}
}

func TestParseMessageEvent_MissingChatID(t *testing.T) {
	if _, err := parseMessageEvent([]byte(`{"body":"hi"}`)); err == nil {
		t.Error("expected error for event without chat id")
	}
}

func TestParseMessageEvent_MalformedJSON(t *testing.T) {
	if _, err := parseMessageEvent([]byte(`{nope`)); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestParseResolveReply(t *testing.T) {
	number, err := parseResolveReply([]byte(`{"number":"254712345678"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if number != "254712345678" {
		t.Errorf("unexpected number %q", number)
	}
}

func TestParseResolveReply_SidecarError(t *testing.T) {
	if _, err := parseResolveReply([]byte(`{"error":"contact not found"}`)); err == nil {
		t.Error("expected error for sidecar error reply")
	}
}
