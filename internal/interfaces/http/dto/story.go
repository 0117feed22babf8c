// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"adventure-story-api/internal/application/story"
)

// CreateStoryRequest 创建故事请求
type CreateStoryRequest struct {
	Theme string `json:"theme" binding:"required"`
}

// OptionResponse 分支选项
type OptionResponse struct {
	Text   string `json:"text"`
	NodeID int64  `json:"node_id"`
}

// NodeResponse 故事节点
type NodeResponse struct {
	ID              int64            `json:"id"`
	Content         string           `json:"content"`
	IsEnding        bool             `json:"is_ending"`
	IsWinningEnding bool             `json:"is_winning_ending"`
	Options         []OptionResponse `json:"options"`
}

// CompleteStoryResponse 完整故事树
type CompleteStoryResponse struct {
	ID        int64                  `json:"id"`
	Title     string                 `json:"title"`
	SessionID string                 `json:"session_id"`
	CreatedAt time.Time              `json:"created_at"`
	RootNode  NodeResponse           `json:"root_node"`
	AllNodes  map[int64]NodeResponse `json:"all_nodes"`
}

func toNodeResponse(n story.NodeView) NodeResponse {
	opts := make([]OptionResponse, 0, len(n.Options))
	for _, o := range n.Options {
		opts = append(opts, OptionResponse{Text: o.Text, NodeID: o.NodeID})
	}
	return NodeResponse{
		ID:              n.ID,
		Content:         n.Content,
		IsEnding:        n.IsEnding,
		IsWinningEnding: n.IsWinningEnding,
		Options:         opts,
	}
}

// ToCompleteStoryResponse 将故事聚合转换为响应 DTO
func ToCompleteStoryResponse(cs *story.CompleteStory) *CompleteStoryResponse {
	if cs == nil {
		return nil
	}
	all := make(map[int64]NodeResponse, len(cs.AllNodes))
	for id, n := range cs.AllNodes {
		all[id] = toNodeResponse(n)
	}
	return &CompleteStoryResponse{
		ID:        cs.ID,
		Title:     cs.Title,
		SessionID: cs.SessionID,
		CreatedAt: cs.CreatedAt,
		RootNode:  toNodeResponse(cs.RootNode),
		AllNodes:  all,
	}
}
