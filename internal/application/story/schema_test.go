package story

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStoryResponse_Valid(t *testing.T) {
	p, err := ParseStoryResponse(spaceStory)
	require.NoError(t, err)

	assert.Equal(t, "Stars Beyond", p.Title)
	require.NotNil(t, p.RootNode)
	assert.False(t, p.RootNode.IsEnding)
	require.Len(t, p.RootNode.Options, 2)
	assert.Equal(t, "Check the bridge", p.RootNode.Options[0].Text)

	bridge := p.RootNode.Options[0].NextNode
	require.Len(t, bridge.Options, 2)
	assert.True(t, bridge.Options[0].NextNode.IsWinningEnding)
	assert.Empty(t, bridge.Options[0].NextNode.Options)
}

func TestParseStoryResponse_Variants(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		check func(t *testing.T, p *StoryPayload)
	}{
		{
			name: "zero depth root ending",
			raw:  `{"title":"Short","rootNode":{"content":"The end.","isEnding":true,"isWinningEnding":true}}`,
			check: func(t *testing.T, p *StoryPayload) {
				assert.True(t, p.RootNode.IsEnding)
				assert.Empty(t, p.RootNode.Options)
			},
		},
		{
			name: "fenced with prose",
			raw:  "Here is your story:\n```json\n{\"title\":\"T\",\"rootNode\":{\"content\":\"c\",\"isEnding\":true,\"isWinningEnding\":false}}\n```\nEnjoy!",
			check: func(t *testing.T, p *StoryPayload) {
				assert.Equal(t, "T", p.Title)
			},
		},
		{
			name: "snake case next_node",
			raw:  `{"title":"T","rootNode":{"content":"c","isEnding":false,"isWinningEnding":false,"options":[{"text":"go","next_node":{"content":"d","isEnding":true,"isWinningEnding":true}}]}}`,
			check: func(t *testing.T, p *StoryPayload) {
				require.Len(t, p.RootNode.Options, 1)
				assert.Equal(t, "d", p.RootNode.Options[0].NextNode.Content)
			},
		},
		{
			name: "null options",
			raw:  `{"title":"T","rootNode":{"content":"c","isEnding":false,"isWinningEnding":false,"options":null}}`,
			check: func(t *testing.T, p *StoryPayload) {
				assert.Empty(t, p.RootNode.Options)
			},
		},
		{
			name: "example object in prose before story",
			raw:  "Format example: {\"k\": 1}\n{\"title\":\"T\",\"rootNode\":{\"content\":\"c\",\"isEnding\":true,\"isWinningEnding\":true}}",
			check: func(t *testing.T, p *StoryPayload) {
				assert.Equal(t, "T", p.Title)
				assert.Equal(t, "c", p.RootNode.Content)
			},
		},
		{
			name: "unrelated extra keys ignored",
			raw:  `{"title":"T","genre":"sci-fi","rootNode":{"content":"c","isEnding":true,"isWinningEnding":true,"mood":"calm"}}`,
			check: func(t *testing.T, p *StoryPayload) {
				assert.Equal(t, "T", p.Title)
			},
		},
		{
			name: "five options accepted",
			raw: `{"title":"T","rootNode":{"content":"c","isEnding":false,"isWinningEnding":false,"options":[
				{"text":"1","nextNode":{"content":"a","isEnding":true,"isWinningEnding":true}},
				{"text":"2","nextNode":{"content":"b","isEnding":true,"isWinningEnding":false}},
				{"text":"3","nextNode":{"content":"c","isEnding":true,"isWinningEnding":false}},
				{"text":"4","nextNode":{"content":"d","isEnding":true,"isWinningEnding":false}},
				{"text":"5","nextNode":{"content":"e","isEnding":true,"isWinningEnding":false}}]}}`,
			check: func(t *testing.T, p *StoryPayload) {
				assert.Len(t, p.RootNode.Options, 5)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseStoryResponse(tt.raw)
			require.NoError(t, err)
			tt.check(t, p)
		})
	}
}

func TestParseStoryResponse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantPath string
		contains string
	}{
		{name: "empty", raw: "   ", contains: "empty response"},
		{name: "not json", raw: "Once upon a time", contains: "malformed JSON"},
		{name: "truncated", raw: `{"title":"T","rootNode":{"content":"c"`, contains: "malformed JSON"},
		{name: "missing title", raw: `{"rootNode":{"content":"c","isEnding":true,"isWinningEnding":true}}`, wantPath: "title"},
		{name: "missing root", raw: `{"title":"T"}`, wantPath: "rootNode"},
		{name: "null root", raw: `{"title":"T","rootNode":null}`, wantPath: "rootNode"},
		{name: "missing content", raw: `{"title":"T","rootNode":{"isEnding":true,"isWinningEnding":true}}`, wantPath: "rootNode.content"},
		{name: "missing winning flag", raw: `{"title":"T","rootNode":{"content":"c","isEnding":true}}`, wantPath: "rootNode.isWinningEnding"},
		{name: "ending not boolean", raw: `{"title":"T","rootNode":{"content":"c","isEnding":"yes","isWinningEnding":false}}`, contains: "expected boolean, got string"},
		{name: "title not string", raw: `{"title":42,"rootNode":{"content":"c","isEnding":true,"isWinningEnding":false}}`, contains: "expected string, got number"},
		{name: "options not array", raw: `{"title":"T","rootNode":{"content":"c","isEnding":false,"isWinningEnding":false,"options":{"text":"x"}}}`, contains: "expected array"},
		{
			name:     "option without next node",
			raw:      `{"title":"T","rootNode":{"content":"c","isEnding":false,"isWinningEnding":false,"options":[{"text":"go"}]}}`,
			wantPath: "rootNode.options[0].nextNode",
		},
		{
			name:     "nested child missing field",
			raw:      `{"title":"T","rootNode":{"content":"c","isEnding":false,"isWinningEnding":false,"options":[{"text":"a","nextNode":{"content":"d","isEnding":true,"isWinningEnding":true}},{"text":"b","nextNode":{"content":"e","isWinningEnding":true}}]}}`,
			wantPath: "rootNode.options[1].nextNode.isEnding",
		},
		{
			name:     "truncated after complete child",
			raw:      `{"title":"T","rootNode":{"content":"a","isEnding":false,"isWinningEnding":false,"options":[{"text":"x","nextNode":{"content":"b","isEnding":true,"isWinningEnding":true}},{"text":"y","nextNode":{"content":"c","isEn`,
			contains: "malformed JSON",
		},
		{
			name:     "keys differ only by case",
			raw:      `{"TITLE":"T","rootnode":{"CONTENT":"c","isending":true,"ISWINNINGENDING":true}}`,
			wantPath: "TITLE",
			contains: `expected "title"`,
		},
		{
			name:     "nested key differs only by case",
			raw:      `{"title":"T","rootNode":{"content":"c","isending":true,"isWinningEnding":true}}`,
			wantPath: "rootNode.isending",
			contains: `expected "isEnding"`,
		},
		{
			name:     "option key differs only by case",
			raw:      `{"title":"T","rootNode":{"content":"c","isEnding":false,"isWinningEnding":false,"options":[{"text":"go","NextNode":{"content":"d","isEnding":true,"isWinningEnding":true}}]}}`,
			wantPath: "rootNode.options[0].NextNode",
		},
		{
			name:     "option without text",
			raw:      `{"title":"T","rootNode":{"content":"c","isEnding":false,"isWinningEnding":false,"options":[{"nextNode":{"content":"d","isEnding":true,"isWinningEnding":true}}]}}`,
			wantPath: "rootNode.options[0].text",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseStoryResponse(tt.raw)
			require.Error(t, err)
			assert.Nil(t, p)

			var se *SchemaError
			require.ErrorAs(t, err, &se)
			assert.True(t, IsSchemaError(err))
			assert.Contains(t, err.Error(), "invalid story response")
			if tt.wantPath != "" {
				assert.Equal(t, tt.wantPath, se.Path)
			}
			if tt.contains != "" {
				assert.Contains(t, se.Error(), tt.contains)
			}
		})
	}
}
