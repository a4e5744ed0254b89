package leads

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fertilitypoint/leadrelay/internal/chat"
)

// Completer is the language-model capability: a prompt in, a JSON object
// (as text) out.
type Completer interface {
	CompleteJSON(ctx context.Context, prompt string) (string, error)
}

type Extractor struct {
	llm    Completer
	logger *slog.Logger
}

func NewExtractor(llm Completer, logger *slog.Logger) *Extractor {
	return &Extractor{llm: llm, logger: logger}
}

// Extract derives a lead from a conversation's message log. It returns nil
// for an empty log, an unqualified extraction, or any model/parse failure —
// extraction trouble in one conversation must never affect others, so
// failures are logged here and not propagated.
func (e *Extractor) Extract(ctx context.Context, messages []chat.Message, fallbackNumber string) *Lead {
	if len(messages) == 0 {
		return nil
	}

	prompt := fmt.Sprintf(extractionPrompt, fallbackNumber, renderTranscript(messages))

	raw, err := e.llm.CompleteJSON(ctx, prompt)
	if err != nil {
		e.logger.Error("lead extraction call failed", "error", err)
		return nil
	}

	var lead Lead
	if err := json.Unmarshal([]byte(raw), &lead); err != nil {
		e.logger.Error("failed to parse lead response", "error", err, "raw", raw)
		return nil
	}

	// A hallucinated branch degrades one field, not the whole lead.
	if lead.HospitalBranch != nil && !validBranch(*lead.HospitalBranch) {
		e.logger.Warn("discarding unknown branch", "branch", *lead.HospitalBranch)
		lead.HospitalBranch = nil
	}

	if lead.PhoneNumber == nil && fallbackNumber != "" {
		lead.PhoneNumber = &fallbackNumber
	}

	if !lead.Qualified() {
		return nil
	}
	return &lead
}

// renderTranscript labels each message by authorship, matching the two
// roles the extraction prompt is written against.
func renderTranscript(messages []chat.Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		if m.IsMine {
			b.WriteString("Bot: ")
		} else {
			b.WriteString("User: ")
		}
		b.WriteString(m.Body)
	}
	return b.String()
}
