package modelclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/rudi77/taskforge/internal/model"
)

// messagesClient captures the subset of the Anthropic SDK used by the
// adapter so tests can substitute a fake.
type messagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicClient implements Client on top of the Anthropic Claude Messages API.
type AnthropicClient struct {
	msg          messagesClient
	defaultModel string
	maxTokens    int
	temperature  float32
}

// NewAnthropicFromAPIKey builds an AnthropicClient reading credentials from
// the environment/API key, matching the teacher's NewFromAPIKey convenience
// constructor.
func NewAnthropicFromAPIKey(apiKey, defaultModel string, maxTokens int) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("modelclient: anthropic api key is required")
	}
	if defaultModel == "" {
		return nil, errors.New("modelclient: anthropic default model is required")
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{msg: &client.Messages, defaultModel: defaultModel, maxTokens: maxTokens}, nil
}

// Complete issues a non-streaming Messages.New request and translates the
// response into the runtime's provider-agnostic types.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Response, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return Response{}, err
	}
	msg, err := c.msg.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("anthropic messages.new: %w", err)
	}
	return translateAnthropic(msg), nil
}

func (c *AnthropicClient) prepareRequest(req Request) (sdk.MessageNewParams, error) {
	if len(req.Messages) == 0 {
		return sdk.MessageNewParams{}, errors.New("anthropic: messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	var system string
	msgs := make([]sdk.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == model.RoleSystem {
			system += m.Text()
			continue
		}
		block := sdk.NewTextBlock(m.Text())
		switch m.Role {
		case model.RoleAssistant:
			msgs = append(msgs, sdk.NewAssistantMessage(block))
		default:
			msgs = append(msgs, sdk.NewUserMessage(block))
		}
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(modelID),
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(float64(req.Temperature))
	}
	for _, t := range req.Tools {
		schema := sdk.ToolInputSchemaParam{}
		_ = json.Unmarshal(t.InputSchema, &schema)
		u := sdk.ToolUnionParamOfTool(schema, t.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(t.Description)
		}
		params.Tools = append(params.Tools, u)
	}
	return params, nil
}

func translateAnthropic(msg *sdk.Message) Response {
	var resp Response
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text == "" {
				continue
			}
			resp.Content = append(resp.Content, model.TextPart{Text: block.Text})
		case "tool_use":
			payload, _ := json.Marshal(block.Input)
			resp.ToolCalls = append(resp.ToolCalls, model.ToolCallRequest{
				ID:     block.ID,
				Name:   block.Name,
				Params: payload,
			})
		}
	}
	resp.Usage = model.TokenUsage{
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}
	resp.StopReason = string(msg.StopReason)
	return resp
}
