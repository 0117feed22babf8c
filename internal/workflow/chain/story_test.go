package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmctx "adventure-story-api/internal/domain/service"
	wfmodel "adventure-story-api/internal/workflow/model"
)

type fakeCall struct {
	provider string
	workflow string
	optCount int
	system   string
	user     string
}

type fakeChatModel struct {
	name    string
	replies []func() (*schema.Message, error)
	calls   *[]fakeCall
}

func (m *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	call := fakeCall{
		provider: llmctx.ProviderFromContext(ctx),
		workflow: llmctx.WorkflowFromContext(ctx),
		optCount: len(opts),
	}
	if len(input) == 2 {
		call.system = input[0].Content
		call.user = input[1].Content
	}
	*m.calls = append(*m.calls, call)

	if len(m.replies) == 0 {
		return nil, fmt.Errorf("%s: no reply scripted", m.name)
	}
	next := m.replies[0]
	m.replies = m.replies[1:]
	return next()
}

func (m *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

type fakeFactory struct {
	chain  []string
	models map[string]*fakeChatModel
}

func (f *fakeFactory) Get(_ context.Context, name string) (model.BaseChatModel, error) {
	m, ok := f.models[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found", name)
	}
	return m, nil
}

func (f *fakeFactory) ProviderChain() []string { return f.chain }

func (f *fakeFactory) ModelName(name string) string { return name + "-model" }

func reply(content string) func() (*schema.Message, error) {
	return func() (*schema.Message, error) {
		return &schema.Message{
			Role:    schema.Assistant,
			Content: content,
			ResponseMeta: &schema.ResponseMeta{
				Usage: &schema.TokenUsage{PromptTokens: 120, CompletionTokens: 800},
			},
		}, nil
	}
}

func fail(err error) func() (*schema.Message, error) {
	return func() (*schema.Message, error) { return nil, err }
}

const storyJSON = `{"title":"The Sunken Bell","rootNode":{"content":"You dive.","isEnding":false,"isWinningEnding":false,"options":[{"text":"Swim down","nextNode":{"content":"You find the bell.","isEnding":true,"isWinningEnding":true}}]}}`

func newFactory(providers ...string) (*fakeFactory, *[]fakeCall) {
	calls := &[]fakeCall{}
	f := &fakeFactory{chain: providers, models: map[string]*fakeChatModel{}}
	for _, p := range providers {
		f.models[p] = &fakeChatModel{name: p, calls: calls}
	}
	return f, calls
}

func TestStoryChain_Generate(t *testing.T) {
	f, calls := newFactory("openai")
	f.models["openai"].replies = append(f.models["openai"].replies, reply("```json\n"+storyJSON+"\n```"))

	out, err := NewStoryChain(f).Generate(context.Background(), &wfmodel.StoryGenerateInput{Theme: "  sunken cathedral "})
	require.NoError(t, err)

	assert.JSONEq(t, storyJSON, out.Raw)
	assert.Equal(t, "openai", out.Meta.Provider)
	assert.Equal(t, "openai-model", out.Meta.Model)
	assert.Equal(t, 120, out.Meta.PromptTokens)
	assert.Equal(t, 800, out.Meta.CompletionTokens)
	assert.False(t, out.Meta.GeneratedAt.IsZero())

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, "openai", call.provider)
	assert.Equal(t, "story_generate", call.workflow)
	assert.Equal(t, 1, call.optCount, "json_schema response format attached")
	assert.Contains(t, call.system, `"rootNode"`)
	assert.Equal(t, "Create the story with the theme: sunken cathedral", call.user)
}

func TestStoryChain_ResponseFormatFallback(t *testing.T) {
	f, calls := newFactory("openai")
	f.models["openai"].replies = append(f.models["openai"].replies,
		fail(errors.New("400: unknown parameter response_format")),
		reply(storyJSON),
	)

	temp := float32(0.4)
	out, err := NewStoryChain(f).Generate(context.Background(), &wfmodel.StoryGenerateInput{Theme: "x", Temperature: &temp})
	require.NoError(t, err)
	assert.JSONEq(t, storyJSON, out.Raw)

	require.Len(t, *calls, 2)
	assert.Equal(t, 2, (*calls)[0].optCount)
	assert.Equal(t, 1, (*calls)[1].optCount, "second attempt drops response_format")
}

func TestStoryChain_ProviderFallback(t *testing.T) {
	f, calls := newFactory("openai", "gemini")
	f.models["openai"].replies = append(f.models["openai"].replies, fail(errors.New("503 overloaded")))
	f.models["gemini"].replies = append(f.models["gemini"].replies, reply(storyJSON))

	out, err := NewStoryChain(f).Generate(context.Background(), &wfmodel.StoryGenerateInput{Theme: "x"})
	require.NoError(t, err)
	assert.Equal(t, "gemini", out.Meta.Provider)
	assert.Equal(t, "gemini-model", out.Meta.Model)

	require.Len(t, *calls, 2)
	assert.Equal(t, "openai", (*calls)[0].provider)
	assert.Equal(t, "gemini", (*calls)[1].provider)
}

func TestStoryChain_AllProvidersFail(t *testing.T) {
	f, _ := newFactory("openai", "gemini")
	f.models["openai"].replies = append(f.models["openai"].replies, fail(errors.New("boom")))
	f.models["gemini"].replies = append(f.models["gemini"].replies, reply("   "))

	_, err := NewStoryChain(f).Generate(context.Background(), &wfmodel.StoryGenerateInput{Theme: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai: boom")
	assert.Contains(t, err.Error(), ErrEmptyResponse.Error())
}

func TestStoryChain_NoFallbackAfterCancel(t *testing.T) {
	f, calls := newFactory("openai", "gemini")
	ctx, cancel := context.WithCancel(context.Background())
	f.models["openai"].replies = append(f.models["openai"].replies, func() (*schema.Message, error) {
		cancel()
		return nil, context.Canceled
	})

	_, err := NewStoryChain(f).Generate(ctx, &wfmodel.StoryGenerateInput{Theme: "x"})
	require.Error(t, err)
	assert.Len(t, *calls, 1)
}

func TestStoryChain_ExplicitProvider(t *testing.T) {
	f, calls := newFactory("openai", "gemini")
	f.models["gemini"].replies = append(f.models["gemini"].replies, reply(storyJSON))

	out, err := NewStoryChain(f).Generate(context.Background(), &wfmodel.StoryGenerateInput{Theme: "x", Provider: "gemini"})
	require.NoError(t, err)
	assert.Equal(t, "gemini", out.Meta.Provider)
	require.Len(t, *calls, 1)
}

func TestStoryChain_RejectsEmptyTheme(t *testing.T) {
	f, calls := newFactory("openai")
	_, err := NewStoryChain(f).Generate(context.Background(), &wfmodel.StoryGenerateInput{Theme: "  "})
	require.Error(t, err)
	assert.Empty(t, *calls)

	_, err = NewStoryChain(nil).Generate(context.Background(), &wfmodel.StoryGenerateInput{Theme: "x"})
	require.Error(t, err)
}

func TestStoryJSONSchema_IsRecursive(t *testing.T) {
	b, err := json.Marshal(StoryJSONSchema())
	require.NoError(t, err)

	var s struct {
		Properties struct {
			RootNode map[string]string `json:"rootNode"`
		} `json:"properties"`
		Defs struct {
			Node struct {
				Required   []string `json:"required"`
				Properties struct {
					Options struct {
						Items struct {
							Properties struct {
								NextNode map[string]string `json:"nextNode"`
							} `json:"properties"`
						} `json:"items"`
					} `json:"options"`
				} `json:"properties"`
			} `json:"node"`
		} `json:"$defs"`
	}
	require.NoError(t, json.Unmarshal(b, &s))
	assert.Equal(t, "#/$defs/node", s.Properties.RootNode["$ref"])
	assert.Equal(t, "#/$defs/node", s.Defs.Node.Properties.Options.Items.Properties.NextNode["$ref"])
	assert.ElementsMatch(t, []string{"content", "isEnding", "isWinningEnding"}, s.Defs.Node.Required)
}
