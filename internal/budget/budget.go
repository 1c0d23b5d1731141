// Package budget implements the token budgeter (spec §4.7): heuristic
// chars-per-token accounting with an optional tiktoken-go precision mode,
// plus the preflight check the agent loop runs before every LLM call.
// Grounded on the teacher's activity_input_budget.go, which enforces a
// workflow-boundary byte budget before scheduling a Temporal activity;
// generalized here from a byte/JSON-size budget to the spec's token-count
// budget with its own fail-fast contract (BudgetExceeded).
package budget

import (
	"github.com/rudi77/taskforge/internal/errs"
	"github.com/rudi77/taskforge/internal/model"
)

// Defaults from spec §4.7.
const (
	DefaultCharsPerToken       = 4
	DefaultMessageOverhead     = 10
	DefaultToolSchemaOverhead  = 50
	DefaultSystemPromptOverhead = 100
	DefaultMaxInputTokens      = 100_000
	DefaultCompressionTrigger  = 0.8 // fraction of DefaultMaxInputTokens
	DefaultFallbackTailCount   = 10
)

// Counter estimates the token count of a string. The heuristic
// CharsPerToken uses a fixed chars-per-token factor; TiktokenCounter (in
// tiktoken.go, backed by github.com/pkoukk/tiktoken-go) offers exact BPE
// counts when precision matters more than speed.
type Counter interface {
	Count(s string) int
}

// CharsPerToken is the default heuristic Counter (spec §4.7 default factor
// of 4 characters per token).
type CharsPerToken struct{ Factor int }

// Count implements Counter.
func (c CharsPerToken) Count(s string) int {
	factor := c.Factor
	if factor <= 0 {
		factor = DefaultCharsPerToken
	}
	if len(s) == 0 {
		return 0
	}
	n := len(s) / factor
	if n == 0 {
		n = 1
	}
	return n
}

// Budgeter estimates and enforces the input-token budget for one LLM call.
type Budgeter struct {
	Counter             Counter
	MessageOverhead     int
	ToolSchemaOverhead  int
	SystemPromptOverhead int
	MaxInputTokens      int
	CompressionTrigger  int // absolute token count, derived from MaxInputTokens if zero
}

// New returns a Budgeter using the heuristic chars-per-token Counter and
// spec-default thresholds.
func New() *Budgeter {
	return &Budgeter{
		Counter:              CharsPerToken{Factor: DefaultCharsPerToken},
		MessageOverhead:      DefaultMessageOverhead,
		ToolSchemaOverhead:   DefaultToolSchemaOverhead,
		SystemPromptOverhead: DefaultSystemPromptOverhead,
		MaxInputTokens:       DefaultMaxInputTokens,
	}
}

func (b *Budgeter) compressionTrigger() int {
	if b.CompressionTrigger > 0 {
		return b.CompressionTrigger
	}
	return int(float64(b.MaxInputTokens) * DefaultCompressionTrigger)
}

// Estimate returns the estimated input token count for messages, tools, and
// an optional context pack string.
func (b *Budgeter) Estimate(messages []model.Message, tools []model.ToolDefinition, contextPack string) int {
	total := 0
	for _, msg := range messages {
		total += b.MessageOverhead
		total += b.Counter.Count(msg.Text())
		if msg.Role == model.RoleSystem {
			total += b.SystemPromptOverhead
		}
	}
	for _, t := range tools {
		total += b.ToolSchemaOverhead
		total += b.Counter.Count(string(t.InputSchema))
	}
	total += b.Counter.Count(contextPack)
	return total
}

// ShouldCompress reports whether estimated usage has crossed the soft cap.
func (b *Budgeter) ShouldCompress(estimated int) bool {
	return estimated >= b.compressionTrigger()
}

// IsOverBudget reports whether estimated usage has crossed the hard cap.
func (b *Budgeter) IsOverBudget(estimated int) bool {
	return estimated > b.MaxInputTokens
}

// SanitizeMessage truncates a message's text content to maxChars.
func (b *Budgeter) SanitizeMessage(msg model.Message, maxChars int) model.Message {
	out := msg
	out.Parts = make([]model.Part, len(msg.Parts))
	for i, p := range msg.Parts {
		if tp, ok := p.(model.TextPart); ok {
			text := tp.Text
			if len(text) > maxChars {
				text = text[:maxChars]
			}
			out.Parts[i] = model.TextPart{Text: text}
			continue
		}
		out.Parts[i] = p
	}
	return out
}

// Preflight runs the agent loop's pre-LLM-call budget check (spec §4.7):
// estimate, then if over budget sanitize every message, then if still over
// budget retain only the system prompt and the last DefaultFallbackTailCount
// messages, then fail with errs.KindBudgetExceeded if that's still over.
func (b *Budgeter) Preflight(messages []model.Message, tools []model.ToolDefinition, contextPack string, maxChars int) ([]model.Message, error) {
	if !b.IsOverBudget(b.Estimate(messages, tools, contextPack)) {
		return messages, nil
	}

	sanitized := make([]model.Message, len(messages))
	for i, msg := range messages {
		sanitized[i] = b.SanitizeMessage(msg, maxChars)
	}
	if !b.IsOverBudget(b.Estimate(sanitized, tools, contextPack)) {
		return sanitized, nil
	}

	tail := fallbackTail(sanitized, DefaultFallbackTailCount)
	if !b.IsOverBudget(b.Estimate(tail, tools, contextPack)) {
		return tail, nil
	}
	return nil, errs.Newf(errs.KindBudgetExceeded, "input exceeds token budget after sanitize and fallback (max=%d)", b.MaxInputTokens)
}

func fallbackTail(messages []model.Message, n int) []model.Message {
	systemEnd := 0
	for i, msg := range messages {
		if msg.Role != model.RoleSystem {
			break
		}
		systemEnd = i + 1
	}
	rest := messages[systemEnd:]
	if len(rest) > n {
		rest = rest[len(rest)-n:]
	}
	out := make([]model.Message, 0, systemEnd+len(rest))
	out = append(out, messages[:systemEnd]...)
	out = append(out, rest...)
	return out
}
