package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// bedrockRuntimeClient mirrors the subset of *bedrockruntime.Client this
// adapter needs, so tests can substitute a fake without a live AWS session.
type bedrockRuntimeClient interface {
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// BedrockProvider implements Provider over the AWS Bedrock Converse API.
type BedrockProvider struct {
	runtime bedrockRuntimeClient
	model   string
	opts    Options
}

// NewBedrockProvider wraps a bedrockruntime client for the given model.
func NewBedrockProvider(runtime *bedrockruntime.Client, model string, opts Options) *BedrockProvider {
	return &BedrockProvider{runtime: runtime, model: model, opts: opts}
}

func (p *BedrockProvider) Name() string { return "bedrock" }

func (p *BedrockProvider) Close() error { return nil }

func (p *BedrockProvider) ListModels(ctx context.Context) ([]Model, error) {
	return nil, nil
}

// ChatStream converts neutral messages into a Bedrock Converse request,
// placing a CachePoint after the first system block and appending one to the
// last message's content exactly as required by the cache-placement rule,
// then streams the response back as neutral StreamEvents.
func (p *BedrockProvider) ChatStream(ctx context.Context, messages []Message, tools []Tool) (<-chan StreamEvent, error) {
	req := &Request{Provider: "bedrock", Model: p.model, Messages: messages, Tools: tools}
	req = Pipe(SortTools, SetCacheBedrock)(req)

	system, convMessages := toBedrockMessages(req)
	toolConfig := toBedrockToolConfig(req.Tools)

	input := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(p.model),
		Messages: convMessages,
		System:   system,
	}
	if toolConfig != nil {
		input.ToolConfig = toolConfig
	}

	out, err := p.runtime.ConverseStream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("bedrock converse stream: %w", err)
	}

	ch := make(chan StreamEvent, 16)
	go pumpBedrockStream(ctx, out, ch)
	return ch, nil
}

func toBedrockMessages(req *Request) ([]brtypes.SystemContentBlock, []brtypes.Message) {
	var system []brtypes.SystemContentBlock
	var conv []brtypes.Message

	cacheSystem, _ := req.Extra["bedrock_cache_system"].(bool)
	cacheLastIdx, _ := req.Extra["bedrock_cache_last_message_index"].(int)

	for i, m := range req.Messages {
		if m.Role == roleSystem {
			system = append(system, &brtypes.SystemContentBlockMemberText{Value: m.Content})
			continue
		}
		role := brtypes.ConversationRoleUser
		if m.Role == "assistant" {
			role = brtypes.ConversationRoleAssistant
		}
		var blocks []brtypes.ContentBlock
		if m.Content != "" {
			blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: m.Content})
		}
		for _, tc := range m.ToolCalls {
			var input document.Interface
			_ = json.Unmarshal(tc.Arguments, &input)
			blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
				ToolUseId: aws.String(tc.ID),
				Name:      aws.String(tc.Name),
				Input:     input,
			}})
		}
		if m.ToolCallID != "" {
			blocks = append(blocks, &brtypes.ContentBlockMemberToolResult{Value: brtypes.ToolResultBlock{
				ToolUseId: aws.String(m.ToolCallID),
				Content:   []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberText{Value: m.Content}},
			}})
		}
		if i == cacheLastIdx {
			blocks = append(blocks, &brtypes.ContentBlockMemberCachePoint{
				Value: brtypes.CachePointBlock{Type: brtypes.CachePointTypeDefault},
			})
		}
		conv = append(conv, brtypes.Message{Role: role, Content: blocks})
	}

	if cacheSystem && len(system) > 0 {
		// Insert after the first system block, per the cache-placement rule.
		head := system[:1]
		tail := system[1:]
		system = append(append(append([]brtypes.SystemContentBlock{}, head...),
			&brtypes.SystemContentBlockMemberCachePoint{Value: brtypes.CachePointBlock{Type: brtypes.CachePointTypeDefault}}), tail...)
	}
	return system, conv
}

func toBedrockToolConfig(tools []Tool) *brtypes.ToolConfiguration {
	if len(tools) == 0 {
		return nil
	}
	list := make([]brtypes.Tool, 0, len(tools))
	for _, t := range tools {
		var schema document.Interface
		_ = json.Unmarshal(t.Parameters, &schema)
		list = append(list, &brtypes.ToolMemberToolSpec{Value: brtypes.ToolSpecification{
			Name:        aws.String(t.Name),
			Description: aws.String(t.Description),
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: schema},
		}})
	}
	return &brtypes.ToolConfiguration{Tools: list}
}

func pumpBedrockStream(ctx context.Context, out *bedrockruntime.ConverseStreamOutput, ch chan<- StreamEvent) {
	defer close(ch)
	stream := out.GetStream()
	defer stream.Close()

	toolIdx := -1
	for event := range stream.Events() {
		switch e := event.(type) {
		case *brtypes.ConverseStreamOutputMemberContentBlockStart:
			if tu, ok := e.Value.Start.(*brtypes.ContentBlockStartMemberToolUse); ok {
				toolIdx++
				if !trySend(ctx, ch, StreamEvent{
					Type: EventToolCallBegin, ToolCallIndex: toolIdx,
					ToolCallID: aws.ToString(tu.Value.ToolUseId), ToolCallName: aws.ToString(tu.Value.Name),
				}) {
					return
				}
			}
		case *brtypes.ConverseStreamOutputMemberContentBlockDelta:
			switch d := e.Value.Delta.(type) {
			case *brtypes.ContentBlockDeltaMemberText:
				if !trySend(ctx, ch, StreamEvent{Type: EventContentDelta, Content: d.Value}) {
					return
				}
			case *brtypes.ContentBlockDeltaMemberToolUse:
				args := ""
				if d.Value.Input != nil {
					args = aws.ToString(d.Value.Input)
				}
				if !trySend(ctx, ch, StreamEvent{Type: EventToolCallDelta, ToolCallIndex: toolIdx, ToolCallArgs: args}) {
					return
				}
			}
		case *brtypes.ConverseStreamOutputMemberMetadata:
			if u := e.Value.Usage; u != nil {
				trySend(ctx, ch, StreamEvent{
					Type:         EventUsage,
					InputTokens:  int(aws.ToInt32(&u.InputTokens)),
					OutputTokens: int(aws.ToInt32(&u.OutputTokens)),
				})
			}
		case *brtypes.ConverseStreamOutputMemberMessageStop:
			trySend(ctx, ch, StreamEvent{Type: EventDone})
			return
		}
	}
	if err := stream.Err(); err != nil {
		trySend(ctx, ch, StreamEvent{Type: EventError, Err: err})
		return
	}
	trySend(ctx, ch, StreamEvent{Type: EventDone})
}

// BedrockFactory constructs BedrockProvider instances sharing one runtime client.
type BedrockFactory struct {
	Runtime *bedrockruntime.Client
}

func (f *BedrockFactory) Name() string { return "bedrock" }

func (f *BedrockFactory) Create(model string, opts Options) Provider {
	return NewBedrockProvider(f.Runtime, model, opts)
}

// NewBedrockRuntime loads the default AWS config for region and constructs
// the underlying bedrockruntime client used by BedrockFactory.
func NewBedrockRuntime(ctx context.Context, region string) (*bedrockruntime.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return bedrockruntime.NewFromConfig(cfg), nil
}
