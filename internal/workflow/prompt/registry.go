// Package prompt 管理内嵌的提示词模板
package prompt

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*
var templatesFS embed.FS

type PromptID string

const (
	PromptStoryV1 PromptID = "story_v1"
)

type promptFiles struct {
	system string
	user   string
	// format 输出格式示例，作为 {format_instructions} 变量注入，可为空
	format string
}

var promptIndex = map[PromptID]promptFiles{
	PromptStoryV1: {
		system: "templates/story_v1.system.txt",
		user:   "templates/story_v1.user.txt",
		format: "templates/story_v1.format.json",
	},
}

// Registry 按 ID 缓存已解析的 ChatTemplate
type Registry struct {
	mu      sync.RWMutex
	cache   map[PromptID]einoprompt.ChatTemplate
	formats map[PromptID]string
}

func NewRegistry() *Registry {
	return &Registry{
		cache:   make(map[PromptID]einoprompt.ChatTemplate),
		formats: make(map[PromptID]string),
	}
}

func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}

	r.mu.RLock()
	if tpl, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return tpl, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.cache[id]; ok {
		return tpl, nil
	}

	files, ok := promptIndex[id]
	if !ok {
		return nil, fmt.Errorf("unknown prompt id: %s", id)
	}
	system, err := readEmbeddedText(files.system)
	if err != nil {
		return nil, err
	}
	user, err := readEmbeddedText(files.user)
	if err != nil {
		return nil, err
	}

	tpl := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	)
	r.cache[id] = tpl
	return tpl, nil
}

// FormatInstructions 返回提示词的输出格式示例
func (r *Registry) FormatInstructions(id PromptID) (string, error) {
	if r == nil {
		return "", fmt.Errorf("prompt registry is nil")
	}

	r.mu.RLock()
	if s, ok := r.formats[id]; ok {
		r.mu.RUnlock()
		return s, nil
	}
	r.mu.RUnlock()

	files, ok := promptIndex[id]
	if !ok {
		return "", fmt.Errorf("unknown prompt id: %s", id)
	}
	if files.format == "" {
		return "", nil
	}
	s, err := readEmbeddedText(files.format)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.formats[id] = s
	r.mu.Unlock()
	return s, nil
}

func readEmbeddedText(path string) (string, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
