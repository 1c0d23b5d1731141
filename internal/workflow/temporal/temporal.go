// Package temporal provides a Temporal-backed workflow.Gateway: the
// durable-execution binding for deployments that run each mission as a
// Temporal workflow execution rather than a plain in-process loop.
// send_request signals the paused execution directly instead of relaying
// through an external channel, since the signal itself is the durable
// hand-off point Temporal already persists in workflow history.
package temporal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/rudi77/taskforge/internal/errs"
)

// DefaultSignalName is the workflow signal channel a paused mission
// listens on for its resume request.
const DefaultSignalName = "taskforge_resume_request"

// RequestSignal is the payload written to a paused workflow's signal
// channel: everything ingest_resume_event needs once the reply arrives.
type RequestSignal struct {
	RunID          string          `json:"run_id"`
	Recipient      string          `json:"recipient"`
	Question       string          `json:"question"`
	RequiredInputs json.RawMessage `json:"required_inputs,omitempty"`
}

// Gateway implements workflow.Gateway by signaling a running Temporal
// workflow execution identified by run id.
type Gateway struct {
	Client     client.Client
	SignalName string
}

// New creates a lazy Temporal client from opts, which connects on first
// use rather than here, and returns a Gateway around it. The caller owns the returned Gateway's lifetime and
// should call Close when done with it.
func New(opts client.Options) (*Gateway, error) {
	c, err := client.NewLazyClient(opts)
	if err != nil {
		return nil, fmt.Errorf("workflow/temporal: dial: %w", err)
	}
	return &Gateway{Client: c}, nil
}

// Close releases the underlying Temporal client connection.
func (g *Gateway) Close() {
	if g.Client != nil {
		g.Client.Close()
	}
}

func (g *Gateway) signalName() string {
	if g.SignalName != "" {
		return g.SignalName
	}
	return DefaultSignalName
}

// SendRequest signals the Temporal workflow execution named runID with the
// pending question. An empty Temporal run id targets the execution's
// current run.
func (g *Gateway) SendRequest(ctx context.Context, runID, recipient, question string, requiredInputs json.RawMessage) error {
	payload := RequestSignal{RunID: runID, Recipient: recipient, Question: question, RequiredInputs: requiredInputs}
	err := g.Client.SignalWorkflow(ctx, runID, "", g.signalName(), payload)
	if err == nil {
		return nil
	}
	var notFound *serviceerror.NotFound
	if errors.As(err, &notFound) {
		return errs.Wrap(errs.KindHandleNotFound, fmt.Sprintf("workflow/temporal: no running workflow execution for run %s", runID), err)
	}
	return errs.Wrap(errs.KindInternal, "workflow/temporal: signal workflow", err)
}
