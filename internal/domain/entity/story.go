// Package entity 定义领域实体
package entity

import (
	"time"

	"gorm.io/datatypes"
)

// Story 生成的分支故事
type Story struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Title     string    `json:"title" gorm:"type:varchar(255);not null"`
	SessionID string    `json:"session_id" gorm:"type:varchar(64);index"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (Story) TableName() string {
	return "stories"
}

// NewStory 创建故事
func NewStory(title, sessionID string) *Story {
	return &Story{
		Title:     title,
		SessionID: sessionID,
	}
}

// StoryOption 分支选项，NodeID 指向同一故事内的子节点
type StoryOption struct {
	Text   string `json:"text"`
	NodeID int64  `json:"node_id"`
}

// StoryNode 故事节点
type StoryNode struct {
	ID              int64                            `json:"id" gorm:"primaryKey;autoIncrement"`
	StoryID         int64                            `json:"story_id" gorm:"index;not null"`
	Content         string                           `json:"content" gorm:"type:text;not null"`
	IsRoot          bool                             `json:"is_root" gorm:"not null;default:false"`
	IsEnding        bool                             `json:"is_ending" gorm:"not null;default:false"`
	IsWinningEnding bool                             `json:"is_winning_ending" gorm:"not null;default:false"`
	Options         datatypes.JSONSlice[StoryOption] `json:"options"`
	CreatedAt       time.Time                        `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (StoryNode) TableName() string {
	return "story_nodes"
}

// NewStoryNode 创建节点，选项在子节点落库后回填
// 非结局节点的 winning 标记无意义，统一归零
func NewStoryNode(storyID int64, content string, isRoot, isEnding, isWinning bool) *StoryNode {
	return &StoryNode{
		StoryID:         storyID,
		Content:         content,
		IsRoot:          isRoot,
		IsEnding:        isEnding,
		IsWinningEnding: isEnding && isWinning,
		Options:         datatypes.JSONSlice[StoryOption]{},
	}
}

// OptionList 返回非 nil 的选项列表
func (n *StoryNode) OptionList() []StoryOption {
	if len(n.Options) == 0 {
		return []StoryOption{}
	}
	return []StoryOption(n.Options)
}
