// Package history maintains the ordered per-session message log (spec
// §4.3): append-time sanitization, handle substitution for oversized tool
// outputs, and prefix summarization with a system-message + tail-N
// fallback. Truncation-by-turn-count and LLM-backed compression are
// generalized from the teacher's runtime.KeepRecentTurns and
// runtime.Compress history policies in
// runtime/agent/runtime/history.go.
package history

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/rudi77/taskforge/internal/ids"
	"github.com/rudi77/taskforge/internal/model"
	"github.com/rudi77/taskforge/internal/modelclient"
	"github.com/rudi77/taskforge/internal/toolresult"
)

const (
	// DefaultMessageCharCap is the per-message character cap applied on
	// append (spec §4.3 default).
	DefaultMessageCharCap = 50_000
	// DefaultSummarizeThreshold is the message-count threshold that
	// triggers summarization absent a budgeter-driven trigger.
	DefaultSummarizeThreshold = 20
	// DefaultKeepTail is the number of most-recent messages summarization
	// never removes.
	DefaultKeepTail = 5
	// DefaultPreviewChars is the preview length kept in history for a
	// handle-substituted tool output.
	DefaultPreviewChars = 500
)

const summaryPrompt = `Summarize the following conversation prefix for continuation purposes.
Capture user requests, decisions made, and artifacts produced. Be concise.

CONVERSATION:
%s`

// Manager owns one session's message log.
type Manager struct {
	messages       []model.Message
	results        toolresult.Store
	messageCharCap int
	summarizeAt    int
	keepTail       int
	previewChars   int
}

// New returns a Manager backed by a toolresult.Store for handle
// substitution, using spec default thresholds.
func New(results toolresult.Store) *Manager {
	return &Manager{
		results:        results,
		messageCharCap: DefaultMessageCharCap,
		summarizeAt:    DefaultSummarizeThreshold,
		keepTail:       DefaultKeepTail,
		previewChars:   DefaultPreviewChars,
	}
}

// Messages returns the current ordered log.
func (m *Manager) Messages() []model.Message {
	return append([]model.Message(nil), m.messages...)
}

// Seed replaces the log with messages already sanitized by a prior Manager
// (spec §4.1/§4.3: a session resumed after an awaiting-input pause must
// continue the same message log it was persisted with, not start empty).
// A no-op call with an empty slice leaves a fresh session's empty log as is.
func (m *Manager) Seed(messages []model.Message) {
	if len(messages) == 0 {
		return
	}
	m.messages = append([]model.Message(nil), messages...)
}

// Append sanitizes msg and adds it to the log (spec §4.3 "On append").
func (m *Manager) Append(_ context.Context, msg model.Message) error {
	sanitized := m.sanitize(msg)
	m.messages = append(m.messages, sanitized)
	return nil
}

// sanitize truncates text parts to the per-message cap and strips control
// characters; tool-result substitution with the toolresult store happens in
// SubstituteLargeOutput since it needs an async Put call.
func (m *Manager) sanitize(msg model.Message) model.Message {
	out := msg
	out.Parts = make([]model.Part, len(msg.Parts))
	for i, p := range msg.Parts {
		if tp, ok := p.(model.TextPart); ok {
			out.Parts[i] = model.TextPart{Text: capAndClean(tp.Text, m.messageCharCap)}
			continue
		}
		out.Parts[i] = p
	}
	return out
}

func capAndClean(s string, charCap int) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if charCap > 0 && len(cleaned) > charCap {
		return cleaned[:charCap]
	}
	return cleaned
}

// SubstituteLargeOutput stores payload in the tool-result store when it
// exceeds the preview threshold and returns the ToolResultPayload history
// should carry instead: a preview, size, and the handle (spec §4.2, §4.3).
func (m *Manager) SubstituteLargeOutput(ctx context.Context, sessionID ids.SessionID, toolName string, output []byte, success bool) (model.ToolResultPayload, error) {
	if len(output) <= m.previewChars {
		return model.ToolResultPayload{Success: success, Output: string(output), Size: len(output)}, nil
	}
	preview := string(output[:m.previewChars])
	if m.results == nil {
		return model.ToolResultPayload{Success: success, Output: preview, Preview: preview, Size: len(output)}, nil
	}
	handle, err := m.results.Put(ctx, sessionID, toolresult.Payload{ToolName: toolName, Output: output})
	if err != nil {
		return model.ToolResultPayload{}, fmt.Errorf("history: substitute large output: %w", err)
	}
	return model.ToolResultPayload{
		Success: success,
		Preview: preview,
		Handle:  handle,
		Size:    len(output),
	}, nil
}

// ShouldSummarize reports whether the log has grown past the message-count
// threshold (spec §4.3, independent of the budgeter's own trigger).
func (m *Manager) ShouldSummarize() bool {
	return len(m.messages) > m.summarizeAt
}

// Summarize replaces the prefix of the log (everything but the leading
// system message(s) and the trailing keepTail messages) with a single
// synthetic assistant summary message, using client to produce the summary
// text. The summarization input is itself sanitized so it never carries raw
// large outputs (spec §4.3).
func (m *Manager) Summarize(ctx context.Context, client modelclient.Client) error {
	systemEnd := 0
	for i, msg := range m.messages {
		if msg.Role != model.RoleSystem {
			break
		}
		systemEnd = i + 1
	}
	if len(m.messages)-systemEnd <= m.keepTail {
		return nil
	}

	splitIdx := len(m.messages) - m.keepTail
	toSummarize := m.messages[systemEnd:splitIdx]
	toKeep := m.messages[splitIdx:]

	var sb strings.Builder
	for _, msg := range toSummarize {
		sb.WriteString(formatForSummary(msg))
		sb.WriteString("\n")
	}

	resp, err := client.Complete(ctx, modelclient.Request{
		Messages: []model.Message{model.NewTextMessage(model.RoleUser, fmt.Sprintf(summaryPrompt, sb.String()))},
	})
	if err != nil {
		return m.fallback(systemEnd)
	}

	summary := model.NewTextMessage(model.RoleAssistant, "[Conversation Summary]\n"+firstText(resp.Content))
	rebuilt := make([]model.Message, 0, systemEnd+1+len(toKeep))
	rebuilt = append(rebuilt, m.messages[:systemEnd]...)
	rebuilt = append(rebuilt, summary)
	rebuilt = append(rebuilt, toKeep...)
	m.messages = rebuilt
	return nil
}

// fallback implements the spec §4.3 fallback: if summarization fails,
// retain the system message and the last N messages only.
func (m *Manager) fallback(systemEnd int) error {
	if len(m.messages) <= systemEnd+m.keepTail {
		return nil
	}
	tail := m.messages[len(m.messages)-m.keepTail:]
	rebuilt := make([]model.Message, 0, systemEnd+len(tail))
	rebuilt = append(rebuilt, m.messages[:systemEnd]...)
	rebuilt = append(rebuilt, tail...)
	m.messages = rebuilt
	return nil
}

func formatForSummary(msg model.Message) string {
	switch {
	case len(msg.ToolCalls) > 0:
		names := make([]string, len(msg.ToolCalls))
		for i, tc := range msg.ToolCalls {
			names[i] = tc.Name
		}
		return fmt.Sprintf("[%s] called tools: %s", msg.Role, strings.Join(names, ", "))
	case msg.ToolResult != nil:
		return fmt.Sprintf("[tool_result] %s", msg.ToolResult.Preview)
	default:
		return fmt.Sprintf("[%s] %s", msg.Role, msg.Text())
	}
}

func firstText(parts []model.Part) string {
	for _, p := range parts {
		if tp, ok := p.(model.TextPart); ok {
			return tp.Text
		}
	}
	return ""
}
