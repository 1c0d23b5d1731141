// Package classifier implements the auto-epic classifier (spec §4.17): one
// fast/cheap-model LLM call that decides whether a mission is simple enough
// for the ordinary agent pipeline or complex enough to route to the epic
// orchestrator. Grounded on the teacher's structured-output call pattern in
// runtime/agent/runtime (a single tool-forced LLM call returning a typed
// verdict), generalized from a Goa-DSL response type to a plain struct.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rudi77/taskforge/internal/model"
	"github.com/rudi77/taskforge/internal/modelclient"
)

// Complexity is the classifier's verdict.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityComplex Complexity = "complex"
)

// DefaultConfidenceThreshold is the minimum confidence required to trust a
// "complex" verdict (spec §4.17 default).
const DefaultConfidenceThreshold = 0.7

// Verdict is the classifier's structured output.
type Verdict struct {
	Complexity Complexity `json:"complexity"`
	Confidence float64    `json:"confidence"`
	Reason     string     `json:"reason"`
}

const classifyPrompt = `Classify the following mission as "simple" (a single agent can
complete it directly) or "complex" (it needs decomposition into a planner/workers/judge
round loop). Respond with JSON only: {"complexity": "simple"|"complex", "confidence": 0..1, "reason": "..."}.

MISSION:
%s`

// Classifier issues the classification call.
type Classifier struct {
	Client               modelclient.Client
	ConfidenceThreshold  float64
}

// New returns a Classifier using the spec-default confidence threshold.
func New(client modelclient.Client) *Classifier {
	return &Classifier{Client: client, ConfidenceThreshold: DefaultConfidenceThreshold}
}

// Classify returns a Verdict for mission against the Classifier's own
// configured threshold. Any error, malformed response, or confidence below
// threshold falls back to ComplexitySimple (spec §4.17 "Fallback policy").
func (c *Classifier) Classify(ctx context.Context, mission string) Verdict {
	return c.ClassifyWithThreshold(ctx, mission, c.ConfidenceThreshold)
}

// ClassifyWithThreshold is Classify with the confidence threshold supplied
// by the caller instead of c.ConfidenceThreshold, letting the executor
// honor a per-profile `auto_epic.confidence_threshold` override (spec
// §4.16) without mutating shared Classifier state.
func (c *Classifier) ClassifyWithThreshold(ctx context.Context, mission string, threshold float64) Verdict {
	resp, err := c.Client.Complete(ctx, modelclient.Request{
		Role:     "classifier",
		Messages: []model.Message{model.NewTextMessage(model.RoleUser, fmt.Sprintf(classifyPrompt, mission))},
	})
	if err != nil {
		return Verdict{Complexity: ComplexitySimple, Reason: "classification call failed: " + err.Error()}
	}

	text := firstText(resp.Content)
	var v Verdict
	if err := json.Unmarshal([]byte(extractJSON(text)), &v); err != nil {
		return Verdict{Complexity: ComplexitySimple, Reason: "malformed classifier response"}
	}

	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	if v.Complexity != ComplexityComplex || v.Confidence < threshold {
		v.Complexity = ComplexitySimple
	}
	return v
}

func firstText(parts []model.Part) string {
	for _, p := range parts {
		if tp, ok := p.(model.TextPart); ok {
			return tp.Text
		}
	}
	return ""
}

// extractJSON trims any leading/trailing prose a model adds around the
// JSON object, keeping only the outermost braces.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
