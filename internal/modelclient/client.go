// Package modelclient defines the provider-agnostic LLM invocation seam the
// planners and classifier call through, plus a handful of concrete provider
// adapters. Per spec §1, concrete provider HTTP clients are an external
// collaborator the core merely consumes through this interface.
package modelclient

import (
	"context"

	"github.com/rudi77/taskforge/internal/model"
)

// Request captures one model invocation.
type Request struct {
	// Model is the provider-specific model identifier.
	Model string
	// Role selects a logical model role (e.g. "planner", "summarizer",
	// "classifier", "reflection") when Model is left blank; the agent
	// definition's model-role mapping resolves it to a concrete Model.
	Role         string
	Messages     []model.Message
	Tools        []model.ToolDefinition
	Temperature  float32
	MaxTokens    int
}

// Response is the result of a non-streaming invocation.
type Response struct {
	Content    []model.Part
	ToolCalls  []model.ToolCallRequest
	Usage      model.TokenUsage
	StopReason string
}

// Client is the seam planners, the classifier, and the judge call through.
// Implementations wrap a concrete provider SDK.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// RoleResolver maps a logical role to a concrete (Client, model id) pair, as
// configured by an agent definition's per-role model mapping (spec §4.14).
type RoleResolver interface {
	Resolve(role string) (Client, string, error)
}
