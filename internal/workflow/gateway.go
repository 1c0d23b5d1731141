package workflow

import (
	"context"
	"encoding/json"

	"goa.design/clue/log"
)

// NoopGateway discards every send_request call, for deployments that only
// use the checkpoint/resume protocol internally (e.g. tests, or a caller
// that dispatches notifications itself before calling SendRequest's wired
// equivalent out of band).
type NoopGateway struct{}

func (NoopGateway) SendRequest(context.Context, string, string, string, json.RawMessage) error {
	return nil
}

// LogGateway logs the wait-gate question instead of dispatching it
// anywhere, a placeholder for deployments that have not wired an actual
// messaging gateway yet (spec §4.18 "the gateway is external").
type LogGateway struct{}

func (LogGateway) SendRequest(ctx context.Context, runID, recipient, question string, requiredInputs json.RawMessage) error {
	log.Info(ctx, log.KV{K: "msg", V: "workflow wait-gate request"},
		log.KV{K: "run_id", V: runID},
		log.KV{K: "recipient", V: recipient},
		log.KV{K: "question", V: question},
		log.KV{K: "required_inputs", V: string(requiredInputs)})
	return nil
}
