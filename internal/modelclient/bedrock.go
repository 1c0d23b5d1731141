package modelclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"github.com/rudi77/taskforge/internal/errs"
	"github.com/rudi77/taskforge/internal/model"
)

// runtimeClient mirrors the subset of *bedrockruntime.Client used by the
// adapter so tests can substitute a fake.
type runtimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockClient implements Client on top of the AWS Bedrock Converse API.
type BedrockClient struct {
	runtime      runtimeClient
	defaultModel string
	maxTokens    int
	temperature  float32
}

// NewBedrockClient builds a BedrockClient from an already-configured runtime
// client (the AWS config/credentials chain is the caller's concern).
func NewBedrockClient(runtime runtimeClient, defaultModel string, maxTokens int) (*BedrockClient, error) {
	if runtime == nil {
		return nil, errors.New("modelclient: bedrock runtime client is required")
	}
	if defaultModel == "" {
		return nil, errors.New("modelclient: bedrock default model is required")
	}
	return &BedrockClient{runtime: runtime, defaultModel: defaultModel, maxTokens: maxTokens}, nil
}

// Complete issues a Converse request and translates the response.
func (c *BedrockClient) Complete(ctx context.Context, req Request) (Response, error) {
	input, err := c.buildInput(req)
	if err != nil {
		return Response{}, err
	}
	out, err := c.runtime.Converse(ctx, input)
	if err != nil {
		return Response{}, wrapConverseError(err)
	}
	return translateBedrock(out), nil
}

// wrapConverseError folds an AWS API error's code and fault side into the
// taxonomy so callers can log which Bedrock failure mode they hit without
// needing to errors.As into the SDK's own types.
func wrapConverseError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return errs.Newf(errs.KindInternal, "bedrock converse: %s (%s): %s", apiErr.ErrorCode(), apiErr.ErrorFault(), apiErr.ErrorMessage())
	}
	return fmt.Errorf("bedrock converse: %w", err)
}

func (c *BedrockClient) buildInput(req Request) (*bedrockruntime.ConverseInput, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}

	var system []brtypes.SystemContentBlock
	messages := make([]brtypes.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == model.RoleSystem {
			system = append(system, &brtypes.SystemContentBlockMemberText{Value: m.Text()})
			continue
		}
		role := brtypes.ConversationRoleUser
		if m.Role == model.RoleAssistant {
			role = brtypes.ConversationRoleAssistant
		}
		messages = append(messages, brtypes.Message{
			Role:    role,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Text()}},
		})
	}
	if len(messages) == 0 {
		return nil, errors.New("bedrock: messages are required")
	}

	var toolConfig *brtypes.ToolConfiguration
	if len(req.Tools) > 0 {
		specs := make([]brtypes.Tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			var schemaDoc map[string]any
			_ = json.Unmarshal(t.InputSchema, &schemaDoc)
			specs = append(specs, &brtypes.ToolMemberToolSpec{
				Value: brtypes.ToolSpecification{
					Name:        aws.String(t.Name),
					Description: aws.String(t.Description),
					InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(&schemaDoc)},
				},
			})
		}
		toolConfig = &brtypes.ToolConfiguration{Tools: specs}
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(modelID),
		Messages: messages,
		System:   system,
	}
	if toolConfig != nil {
		input.ToolConfig = toolConfig
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	if maxTokens > 0 || req.Temperature > 0 {
		cfg := &brtypes.InferenceConfiguration{}
		if maxTokens > 0 {
			v := int32(maxTokens)
			cfg.MaxTokens = &v
		}
		temp := req.Temperature
		if temp == 0 {
			temp = c.temperature
		}
		if temp > 0 {
			cfg.Temperature = &temp
		}
		input.InferenceConfig = cfg
	}
	return input, nil
}

func translateBedrock(out *bedrockruntime.ConverseOutput) Response {
	var resp Response
	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if ok {
		for _, block := range msg.Value.Content {
			switch b := block.(type) {
			case *brtypes.ContentBlockMemberText:
				resp.Content = append(resp.Content, model.TextPart{Text: b.Value})
			case *brtypes.ContentBlockMemberToolUse:
				var payload json.RawMessage
				if b.Value.Input != nil {
					if data, err := b.Value.Input.MarshalSmithyDocument(); err == nil {
						payload = data
					}
				}
				resp.ToolCalls = append(resp.ToolCalls, model.ToolCallRequest{
					ID:     aws.ToString(b.Value.ToolUseId),
					Name:   aws.ToString(b.Value.Name),
					Params: payload,
				})
			}
		}
	}
	if out.Usage != nil {
		resp.Usage = model.TokenUsage{
			InputTokens:  int(aws.ToInt32(out.Usage.InputTokens)),
			OutputTokens: int(aws.ToInt32(out.Usage.OutputTokens)),
		}
	}
	resp.StopReason = string(out.StopReason)
	return resp
}
