package bedrock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/Bestehorn/LLMManager-sub002/internal/model"
)

// ConverseAPI is the subset of the runtime client used for invocation.
type ConverseAPI interface {
	Converse(ctx context.Context, in *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Invoker sends requests through the Converse API of one region.
type Invoker struct {
	client ConverseAPI
	region string
}

// NewInvoker wraps a runtime client bound to region.
func NewInvoker(client ConverseAPI, region string) *Invoker {
	return &Invoker{client: client, region: region}
}

// NewFactory returns a model.Factory building one runtime client per region
// from the default credential chain.
func NewFactory(optFns ...func(*awsconfig.LoadOptions) error) model.Factory {
	return func(ctx context.Context, region string) (model.Invoker, error) {
		cfg, err := loadConfig(ctx, region, optFns...)
		if err != nil {
			return nil, err
		}
		return NewInvoker(bedrockruntime.NewFromConfig(cfg), region), nil
	}
}

// Invoke runs one Converse call.
func (i *Invoker) Invoke(ctx context.Context, req *model.Request) (*model.Response, error) {
	if req.Region != "" && req.Region != i.region {
		return nil, fmt.Errorf("invoker for %s received request for %s", i.region, req.Region)
	}

	in, err := converseInput(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := i.client.Converse(ctx, in)
	if err != nil {
		return nil, mapError("Converse", err)
	}
	resp := converseResponse(out)
	if resp.Latency == 0 {
		resp.Latency = time.Since(start)
	}
	return resp, nil
}

// ====================================================================
// Request conversion
// ====================================================================

func converseInput(req *model.Request) (*bedrockruntime.ConverseInput, error) {
	in := &bedrockruntime.ConverseInput{
		ModelId: aws.String(req.Identifier),
	}

	for _, m := range req.Messages {
		msg, err := message(m)
		if err != nil {
			return nil, err
		}
		in.Messages = append(in.Messages, msg)
	}
	for _, s := range req.System {
		in.System = append(in.System, &types.SystemContentBlockMemberText{Value: s})
	}
	in.InferenceConfig = inferenceConfig(req.Inference)
	if len(req.ExtraFields) > 0 {
		in.AdditionalModelRequestFields = document.NewLazyDocument(req.ExtraFields)
	}
	return in, nil
}

func message(m model.Message) (types.Message, error) {
	out := types.Message{}
	switch m.Role {
	case model.RoleUser:
		out.Role = types.ConversationRoleUser
	case model.RoleAssistant:
		out.Role = types.ConversationRoleAssistant
	default:
		return out, fmt.Errorf("unsupported message role %q", m.Role)
	}

	for _, b := range m.Content {
		block, err := contentBlock(b)
		if err != nil {
			return out, err
		}
		out.Content = append(out.Content, block)
	}
	return out, nil
}

func contentBlock(b model.ContentBlock) (types.ContentBlock, error) {
	switch b.Type {
	case model.BlockText:
		return &types.ContentBlockMemberText{Value: b.Text}, nil
	case model.BlockImage:
		return &types.ContentBlockMemberImage{Value: types.ImageBlock{
			Format: types.ImageFormat(strings.ToLower(b.Format)),
			Source: &types.ImageSourceMemberBytes{Value: b.Bytes},
		}}, nil
	case model.BlockDocument:
		name := b.Name
		if name == "" {
			name = "document"
		}
		return &types.ContentBlockMemberDocument{Value: types.DocumentBlock{
			Format: types.DocumentFormat(strings.ToLower(b.Format)),
			Name:   aws.String(name),
			Source: &types.DocumentSourceMemberBytes{Value: b.Bytes},
		}}, nil
	case model.BlockVideo:
		return &types.ContentBlockMemberVideo{Value: types.VideoBlock{
			Format: types.VideoFormat(strings.ToLower(b.Format)),
			Source: &types.VideoSourceMemberBytes{Value: b.Bytes},
		}}, nil
	}
	return nil, fmt.Errorf("unsupported content block type %q", b.Type)
}

func inferenceConfig(c model.InferenceConfig) *types.InferenceConfiguration {
	if c.MaxTokens == nil && c.Temperature == nil && c.TopP == nil && len(c.StopSequences) == 0 {
		return nil
	}
	return &types.InferenceConfiguration{
		MaxTokens:     c.MaxTokens,
		Temperature:   c.Temperature,
		TopP:          c.TopP,
		StopSequences: c.StopSequences,
	}
}

// ====================================================================
// Response conversion
// ====================================================================

func converseResponse(out *bedrockruntime.ConverseOutput) *model.Response {
	resp := &model.Response{StopReason: string(out.StopReason)}

	if msg, ok := out.Output.(*types.ConverseOutputMemberMessage); ok {
		for _, c := range msg.Value.Content {
			// Only text is surfaced; tool use and reasoning blocks are dropped.
			if v, ok := c.(*types.ContentBlockMemberText); ok {
				resp.Content = append(resp.Content, model.ContentBlock{Type: model.BlockText, Text: v.Value})
			}
		}
	}
	if u := out.Usage; u != nil {
		resp.Usage = model.Usage{
			InputTokens:  int(aws.ToInt32(u.InputTokens)),
			OutputTokens: int(aws.ToInt32(u.OutputTokens)),
			TotalTokens:  int(aws.ToInt32(u.TotalTokens)),
		}
	}
	if m := out.Metrics; m != nil {
		resp.Latency = time.Duration(aws.ToInt64(m.LatencyMs)) * time.Millisecond
	}
	return resp
}
