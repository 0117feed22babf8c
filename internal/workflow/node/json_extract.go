// Package node 提供工作流节点共用的文本处理工具
package node

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ExtractJSONObject 从模型输出中截取 JSON 值
// 模型可能用 markdown 代码块包裹，或在前后夹杂说明文字
// 给出 keys 时只接受顶层含其中任一键的对象，说明文字里的示例对象会被跳过
// 没有可用的完整值时，从第一个无法完整解析的 { 或 [ 起返回剩余文本，让调用方拿到真实的解析错误（如输出被截断）；
// 文本中没有这样的位置则返回去除空白的原文
func ExtractJSONObject(s string, keys ...string) string {
	raw := strings.TrimSpace(stripCodeFence(s))
	if raw == "" {
		return raw
	}

	broken := -1
	for i := 0; i < len(raw); i++ {
		if raw[i] != '{' && raw[i] != '[' {
			continue
		}
		var v json.RawMessage
		if err := json.NewDecoder(strings.NewReader(raw[i:])).Decode(&v); err != nil {
			if broken < 0 {
				broken = i
			}
			continue
		}
		if len(keys) == 0 || hasTopLevelKey(v, keys) {
			return string(bytes.TrimSpace(v))
		}
	}
	if broken >= 0 {
		return raw[broken:]
	}
	return raw
}

// hasTopLevelKey v 为对象且含任一指定键，键名区分大小写
func hasTopLevelKey(v json.RawMessage, keys []string) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(v, &obj); err != nil {
		return false
	}
	for _, k := range keys {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}

// stripCodeFence 去掉 ```json ... ``` 包裹
func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	start := strings.Index(t, "```")
	if start < 0 {
		return t
	}
	body := t[start+3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	}
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return body
}
