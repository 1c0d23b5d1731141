// Package model defines provider-agnostic message, tool-call, and content
// types shared by the history manager, context builder, planners, and model
// clients. Content is modeled as typed parts (text, image, document, tool
// use/result) rather than flattened strings, following the teacher's
// runtime/agent/model package.
package model

import "encoding/json"

// Role identifies the speaker of a message (spec §3 "Message").
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Part is a marker interface implemented by all message content blocks.
type Part interface{ isPart() }

// TextPart is plain text content.
type TextPart struct{ Text string }

// ImagePart carries image bytes attached to a message.
type ImagePart struct {
	Format string
	Bytes  []byte
}

// DocumentPart carries document content, e.g. from a RAG tool result.
type DocumentPart struct {
	Name   string
	Format string
	Text   string
	Chunks []string
	URI    string
}

func (TextPart) isPart()     {}
func (ImagePart) isPart()    {}
func (DocumentPart) isPart() {}

// ToolCallRequest is a single tool invocation requested by the assistant
// (spec §3 "ToolCallRequest"). ID is unique within one assistant turn.
type ToolCallRequest struct {
	ID     string
	Name   string
	Params json.RawMessage
}

// ToolResultPayload is the observation returned for one ToolCallRequest.
// Handle is set only when the serialized Output exceeded the large-output
// threshold and was moved to the tool-result store (spec §4.2).
type ToolResultPayload struct {
	Success bool
	Output  any
	Error   string
	Errkind string
	Preview string
	Handle  string
	Size    int
}

// Message is one ordered entry in a session's history (spec §3 "Message").
type Message struct {
	Role         Role
	Parts        []Part
	ToolCalls    []ToolCallRequest // populated only for assistant messages
	ToolCallID   string            // populated only for tool messages
	ToolResult   *ToolResultPayload
	Meta         map[string]any
}

// Text returns the concatenated text of all TextPart content, the common
// case for sanitization/budgeting.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if t, ok := p.(TextPart); ok {
			out += t.Text
		}
	}
	return out
}

// NewTextMessage constructs a single-part text message.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Parts: []Part{TextPart{Text: text}}}
}

// ToolDefinition describes a tool's name, description and JSON-Schema input
// as exposed to the model.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// TokenUsage tracks token counts for one model call or an aggregate.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// Add accumulates usage, used when aggregating across an ExecutionResult.
func (u *TokenUsage) Add(o TokenUsage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
}
