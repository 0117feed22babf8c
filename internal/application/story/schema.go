// Package story 故事生成应用层：响应校验、树落库、任务状态机与读模型
package story

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	wfnode "adventure-story-api/internal/workflow/node"
)

// StoryPayload 校验通过的模型响应
type StoryPayload struct {
	Title    string
	RootNode *NodePayload
}

// NodePayload 递归节点，Options 中每个选项携带完整的子节点
type NodePayload struct {
	Content         string
	IsEnding        bool
	IsWinningEnding bool
	Options         []OptionPayload
}

// OptionPayload 选项文本与其指向的完整子节点
type OptionPayload struct {
	Text     string
	NextNode *NodePayload
}

// SchemaError 模型输出不符合故事结构
type SchemaError struct {
	Path   string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return "invalid story response: " + e.Reason
	}
	return fmt.Sprintf("invalid story response: %s: %s", e.Path, e.Reason)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// IsSchemaError 错误链中是否存在 SchemaError
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// 指针字段用于区分缺失/null 与零值
type wireStory struct {
	Title    *string   `json:"title"`
	RootNode *wireNode `json:"rootNode"`
}

type wireNode struct {
	Content         *string      `json:"content"`
	IsEnding        *bool        `json:"isEnding"`
	IsWinningEnding *bool        `json:"isWinningEnding"`
	Options         []wireOption `json:"options"`
}

type wireOption struct {
	Text     *string   `json:"text"`
	NextNode *wireNode `json:"nextNode"`
	// 兼容 snake_case 写法
	NextNodeSnake *wireNode `json:"next_node"`
}

// ParseStoryResponse 从模型输出中解析并校验故事结构
// 不限制深度、分支数和胜利路径，根节点直接为结局也合法
func ParseStoryResponse(raw string) (*StoryPayload, error) {
	text := wfnode.ExtractJSONObject(raw, "title", "rootNode")
	if strings.TrimSpace(text) == "" {
		return nil, &SchemaError{Reason: "empty response"}
	}

	var w wireStory
	if err := json.Unmarshal([]byte(text), &w); err != nil {
		return nil, decodeError(err)
	}
	// encoding/json 匹配字段名不区分大小写，这里要求键名与约定完全一致
	if err := checkStoryKeys([]byte(text)); err != nil {
		return nil, err
	}

	if w.Title == nil {
		return nil, &SchemaError{Path: "title", Reason: "field is required"}
	}
	if w.RootNode == nil {
		return nil, &SchemaError{Path: "rootNode", Reason: "field is required"}
	}

	root, err := convertNode(w.RootNode, "rootNode")
	if err != nil {
		return nil, err
	}
	return &StoryPayload{Title: strings.TrimSpace(*w.Title), RootNode: root}, nil
}

func convertNode(w *wireNode, path string) (*NodePayload, error) {
	switch {
	case w.Content == nil:
		return nil, &SchemaError{Path: path + ".content", Reason: "field is required"}
	case w.IsEnding == nil:
		return nil, &SchemaError{Path: path + ".isEnding", Reason: "field is required"}
	case w.IsWinningEnding == nil:
		return nil, &SchemaError{Path: path + ".isWinningEnding", Reason: "field is required"}
	}

	node := &NodePayload{
		Content:         *w.Content,
		IsEnding:        *w.IsEnding,
		IsWinningEnding: *w.IsWinningEnding,
	}
	if len(w.Options) == 0 {
		return node, nil
	}

	node.Options = make([]OptionPayload, 0, len(w.Options))
	for i := range w.Options {
		opt := &w.Options[i]
		optPath := fmt.Sprintf("%s.options[%d]", path, i)
		if opt.Text == nil {
			return nil, &SchemaError{Path: optPath + ".text", Reason: "field is required"}
		}

		next := opt.NextNode
		if next == nil {
			next = opt.NextNodeSnake
		}
		if next == nil {
			return nil, &SchemaError{Path: optPath + ".nextNode", Reason: "field is required"}
		}

		child, err := convertNode(next, optPath+".nextNode")
		if err != nil {
			return nil, err
		}
		node.Options = append(node.Options, OptionPayload{Text: *opt.Text, NextNode: child})
	}
	return node, nil
}

var (
	storyKeys  = []string{"title", "rootNode"}
	nodeKeys   = []string{"content", "isEnding", "isWinningEnding", "options"}
	optionKeys = []string{"text", "nextNode", "next_node"}
)

func checkStoryKeys(data []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return decodeError(err)
	}
	if err := checkKeyCase(doc, "", storyKeys); err != nil {
		return err
	}
	if root, ok := doc["rootNode"].(map[string]any); ok {
		return checkNodeKeys(root, "rootNode")
	}
	return nil
}

func checkNodeKeys(node map[string]any, path string) error {
	if err := checkKeyCase(node, path, nodeKeys); err != nil {
		return err
	}
	options, _ := node["options"].([]any)
	for i, o := range options {
		opt, ok := o.(map[string]any)
		if !ok {
			continue
		}
		optPath := fmt.Sprintf("%s.options[%d]", path, i)
		if err := checkKeyCase(opt, optPath, optionKeys); err != nil {
			return err
		}
		for _, k := range []string{"nextNode", "next_node"} {
			if child, ok := opt[k].(map[string]any); ok {
				if err := checkNodeKeys(child, optPath+".nextNode"); err != nil {
					return err
				}
				break
			}
		}
	}
	return nil
}

// checkKeyCase 只拒绝与约定键仅大小写不同的键，其余未知键忽略
func checkKeyCase(obj map[string]any, path string, known []string) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		for _, want := range known {
			if k != want && strings.EqualFold(k, want) {
				fieldPath := k
				if path != "" {
					fieldPath = path + "." + k
				}
				return &SchemaError{Path: fieldPath, Reason: fmt.Sprintf("unknown field, expected %q", want)}
			}
		}
	}
	return nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &SchemaError{
			Path:   typeErr.Field,
			Reason: fmt.Sprintf("expected %s, got %s", jsonKind(typeErr.Type), typeErr.Value),
			Err:    err,
		}
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &SchemaError{
			Reason: fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset),
			Err:    err,
		}
	}
	return &SchemaError{Reason: "malformed JSON", Err: err}
}

func jsonKind(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.String:
		return "string"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Struct, reflect.Map:
		return "object"
	default:
		return t.Kind().String()
	}
}
