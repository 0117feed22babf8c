// Package chain 编排基于 Eino 的 LLM 调用链
package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	llmctx "adventure-story-api/internal/domain/service"
	wfmodel "adventure-story-api/internal/workflow/model"
	wfnode "adventure-story-api/internal/workflow/node"
	workflowport "adventure-story-api/internal/workflow/port"
	workflowprompt "adventure-story-api/internal/workflow/prompt"
	"adventure-story-api/pkg/logger"
)

const workflowStoryGenerate = "story_generate"

// ErrEmptyResponse 模型返回空内容
var ErrEmptyResponse = errors.New("empty llm response")

// StoryChain 故事生成链：模板 -> ChatModel（json_schema，提供商降级）-> JSON 文本
type StoryChain struct {
	factory  workflowport.ChatModelFactory
	registry *workflowprompt.Registry

	chainOnce sync.Once
	chain     compose.Runnable[*wfmodel.StoryGenerateInput, *wfmodel.StoryGenerateOutput]
	chainErr  error
}

func NewStoryChain(factory workflowport.ChatModelFactory) *StoryChain {
	return &StoryChain{
		factory:  factory,
		registry: workflowprompt.NewRegistry(),
	}
}

// Generate 调用模型生成故事 JSON 文本
func (c *StoryChain) Generate(ctx context.Context, in *wfmodel.StoryGenerateInput) (*wfmodel.StoryGenerateOutput, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}

	chain, err := c.getChain()
	if err != nil {
		return nil, err
	}
	return chain.Invoke(ctx, in)
}

type storyChainState struct {
	In       *wfmodel.StoryGenerateInput
	Messages []*schema.Message
	OutMsg   *schema.Message
	Provider string
}

func (c *StoryChain) getChain() (compose.Runnable[*wfmodel.StoryGenerateInput, *wfmodel.StoryGenerateOutput], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *StoryChain) buildChain(ctx context.Context) (compose.Runnable[*wfmodel.StoryGenerateInput, *wfmodel.StoryGenerateOutput], error) {
	chain := compose.NewChain[*wfmodel.StoryGenerateInput, *wfmodel.StoryGenerateOutput]()

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, in *wfmodel.StoryGenerateInput) (*storyChainState, error) {
			if in == nil {
				return nil, fmt.Errorf("input is nil")
			}
			if strings.TrimSpace(in.Theme) == "" {
				return nil, fmt.Errorf("theme is empty")
			}
			return &storyChainState{In: in}, nil
		}),
		compose.WithNodeName("story.init"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *storyChainState) (*storyChainState, error) {
			msgs, err := c.formatMessages(ctx, st.In)
			if err != nil {
				return nil, err
			}
			st.Messages = msgs
			return st, nil
		}),
		compose.WithNodeName("story.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *storyChainState) (*storyChainState, error) {
			outMsg, provider, err := c.generateWithFallback(ctx, st.In, st.Messages)
			if err != nil {
				return nil, err
			}
			st.OutMsg = outMsg
			st.Provider = provider
			return st, nil
		}),
		compose.WithNodeName("story.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *storyChainState) (*wfmodel.StoryGenerateOutput, error) {
			raw := wfnode.ExtractJSONObject(st.OutMsg.Content, "title", "rootNode")
			if raw == "" {
				return nil, ErrEmptyResponse
			}
			out := &wfmodel.StoryGenerateOutput{
				Raw: raw,
				Meta: wfmodel.LLMUsageMeta{
					Provider:    st.Provider,
					Model:       c.factory.ModelName(st.Provider),
					GeneratedAt: time.Now(),
				},
			}
			if st.OutMsg.ResponseMeta != nil && st.OutMsg.ResponseMeta.Usage != nil {
				out.Meta.PromptTokens = st.OutMsg.ResponseMeta.Usage.PromptTokens
				out.Meta.CompletionTokens = st.OutMsg.ResponseMeta.Usage.CompletionTokens
			}
			return out, nil
		}),
		compose.WithNodeName("story.finalize"),
	)

	return chain.Compile(ctx)
}

func (c *StoryChain) formatMessages(ctx context.Context, in *wfmodel.StoryGenerateInput) ([]*schema.Message, error) {
	tpl, err := c.registry.ChatTemplate(workflowprompt.PromptStoryV1)
	if err != nil {
		return nil, err
	}
	format, err := c.registry.FormatInstructions(workflowprompt.PromptStoryV1)
	if err != nil {
		return nil, err
	}
	return tpl.Format(ctx, map[string]any{
		"format_instructions": format,
		"theme":               strings.TrimSpace(in.Theme),
	})
}

// generateWithFallback 依次尝试提供商，返回首个成功的响应及其提供商名
func (c *StoryChain) generateWithFallback(ctx context.Context, in *wfmodel.StoryGenerateInput, msgs []*schema.Message) (*schema.Message, string, error) {
	providers := c.factory.ProviderChain()
	if p := strings.TrimSpace(in.Provider); p != "" {
		providers = []string{p}
	}
	if len(providers) == 0 {
		return nil, "", fmt.Errorf("no llm provider configured")
	}

	var errs []error
	for i, provider := range providers {
		outMsg, err := c.generateOnce(ctx, provider, in, msgs)
		if err == nil {
			return outMsg, provider, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", provider, err))

		if i == len(providers)-1 || !wfnode.ShouldFallback(ctx, err) {
			break
		}
		logger.Warn(ctx, "llm provider failed, falling back",
			"provider", provider,
			"next_provider", providers[i+1],
			"error", err.Error(),
		)
	}
	return nil, "", errors.Join(errs...)
}

func (c *StoryChain) generateOnce(ctx context.Context, provider string, in *wfmodel.StoryGenerateInput, msgs []*schema.Message) (*schema.Message, error) {
	ctx = llmctx.WithWorkflowProvider(ctx, workflowStoryGenerate, provider)
	chatModel, err := c.factory.Get(ctx, provider)
	if err != nil {
		return nil, err
	}

	outMsg, err := chatModel.Generate(ctx, msgs, buildStoryModelOptions(in, true)...)
	if err != nil && wfnode.IsResponseFormatUnsupportedError(err) {
		logger.Warn(ctx, "llm json_schema not supported, fallback to prompt-only",
			"provider", provider,
			"model", c.factory.ModelName(provider),
			"error", err.Error(),
		)
		outMsg, err = chatModel.Generate(ctx, msgs, buildStoryModelOptions(in, false)...)
	}
	if err != nil {
		return nil, err
	}
	if outMsg == nil || strings.TrimSpace(outMsg.Content) == "" {
		return nil, ErrEmptyResponse
	}
	return outMsg, nil
}

func buildStoryModelOptions(in *wfmodel.StoryGenerateInput, enableSchema bool) []model.Option {
	opts := make([]model.Option, 0, 3)
	if in.Temperature != nil {
		opts = append(opts, model.WithTemperature(*in.Temperature))
	}
	if in.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*in.MaxTokens))
	}
	if enableSchema {
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{
				"type": "json_schema",
				"json_schema": map[string]any{
					"name":   "adventure_story",
					"strict": false,
					"schema": StoryJSONSchema(),
				},
			},
		}))
	}
	return opts
}

// StoryJSONSchema 递归故事结构的 JSON Schema，节点通过 $defs 自引用
func StoryJSONSchema() map[string]any {
	nodeRef := map[string]any{"$ref": "#/$defs/node"}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"title", "rootNode"},
		"properties": map[string]any{
			"title":    map[string]any{"type": "string"},
			"rootNode": nodeRef,
		},
		"$defs": map[string]any{
			"node": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []any{"content", "isEnding", "isWinningEnding"},
				"properties": map[string]any{
					"content":         map[string]any{"type": "string"},
					"isEnding":        map[string]any{"type": "boolean"},
					"isWinningEnding": map[string]any{"type": "boolean"},
					"options": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type":                 "object",
							"additionalProperties": false,
							"required":             []any{"text", "nextNode"},
							"properties": map[string]any{
								"text":     map[string]any{"type": "string"},
								"nextNode": nodeRef,
							},
						},
					},
				},
			},
		},
	}
}
