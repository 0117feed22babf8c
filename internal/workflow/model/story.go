// Package model 定义工作流的输入输出结构
package model

import "time"

// StoryGenerateInput 故事生成输入
type StoryGenerateInput struct {
	Theme string
	// Provider 为空时按工厂的 ProviderChain 顺序尝试
	Provider    string
	Temperature *float32
	MaxTokens   *int
}

// StoryGenerateOutput 故事生成输出
type StoryGenerateOutput struct {
	// Raw 已剥离代码块/说明文字的 JSON 文本，尚未校验
	Raw  string
	Meta LLMUsageMeta
}

type LLMUsageMeta struct {
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	GeneratedAt      time.Time
}
