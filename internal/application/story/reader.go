package story

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"adventure-story-api/internal/domain/entity"
	"adventure-story-api/internal/domain/repository"
	apperrors "adventure-story-api/pkg/errors"
	"adventure-story-api/pkg/logger"
)

// NodeView 节点的对外表示
type NodeView struct {
	ID              int64                `json:"id"`
	Content         string               `json:"content"`
	IsEnding        bool                 `json:"is_ending"`
	IsWinningEnding bool                 `json:"is_winning_ending"`
	Options         []entity.StoryOption `json:"options"`
}

// CompleteStory 故事聚合：元数据、根节点与按 ID 索引的全部节点
type CompleteStory struct {
	ID        int64              `json:"id"`
	Title     string             `json:"title"`
	SessionID string             `json:"session_id"`
	CreatedAt time.Time          `json:"created_at"`
	RootNode  NodeView           `json:"root_node"`
	AllNodes  map[int64]NodeView `json:"all_nodes"`
}

// StoryCache 读穿透缓存
type StoryCache interface {
	GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (interface{}, error)) ([]byte, error)
}

// StoryCacheKey 由缓存实现提供 key 规则
type StoryCacheKey func(storyID int64) string

// Reader 完整故事读模型，可选接入缓存
type Reader struct {
	stories  repository.StoryRepository
	nodes    repository.StoryNodeRepository
	cache    StoryCache
	cacheKey StoryCacheKey
	cacheTTL time.Duration
}

// NewReader 创建故事读模型
func NewReader(stories repository.StoryRepository, nodes repository.StoryNodeRepository) *Reader {
	return &Reader{stories: stories, nodes: nodes}
}

// WithCache 启用缓存；故事生成后不再变化，缓存无需失效
func (r *Reader) WithCache(cache StoryCache, key StoryCacheKey, ttl time.Duration) *Reader {
	r.cache = cache
	r.cacheKey = key
	r.cacheTTL = ttl
	return r
}

// GetCompleteStory 返回故事元数据、根节点与全部节点；故事不存在返回 CodeStoryNotFound，缺少根节点返回 CodeStoryInconsistent
func (r *Reader) GetCompleteStory(ctx context.Context, storyID int64) (*CompleteStory, error) {
	ctx, span := tracer.Start(ctx, "story.read_complete")
	defer span.End()
	span.SetAttributes(attribute.Int64("story.id", storyID))

	if r.cache == nil || r.cacheKey == nil {
		return r.load(ctx, storyID)
	}

	var loadErr error
	// 回源结果由同键的等待者共享，不随首个调用方取消
	loadCtx := context.WithoutCancel(ctx)
	data, err := r.cache.GetOrLoadSafe(ctx, r.cacheKey(storyID), r.cacheTTL, func() (interface{}, error) {
		cs, err := r.load(loadCtx, storyID)
		if err != nil {
			loadErr = err
			return nil, err
		}
		return cs, nil
	})
	if loadErr != nil {
		return nil, loadErr
	}
	if err == nil {
		var cs CompleteStory
		if err = json.Unmarshal(data, &cs); err == nil {
			return &cs, nil
		}
	}

	// 缓存不可用时直接回源
	logger.Warn(ctx, "story cache unavailable, reading from database", "story_id", storyID, "error", err.Error())
	return r.load(ctx, storyID)
}

func (r *Reader) load(ctx context.Context, storyID int64) (*CompleteStory, error) {
	story, err := r.stories.GetByID(ctx, storyID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to get story")
	}
	if story == nil {
		return nil, apperrors.ErrStoryNotFound.WithDetail(fmt.Sprintf("story %d", storyID))
	}

	nodes, err := r.nodes.ListByStory(ctx, storyID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to list story nodes")
	}

	all := make(map[int64]NodeView, len(nodes))
	var root *entity.StoryNode
	for _, n := range nodes {
		all[n.ID] = toNodeView(n)
		if n.IsRoot && root == nil {
			root = n
		}
	}
	if root == nil {
		// 根节点缺失说明落库逻辑有缺陷，不是客户端错误
		logger.Error(ctx, "story has no root node", apperrors.ErrStoryInconsistent,
			"story_id", storyID, "nodes", len(nodes))
		return nil, apperrors.ErrStoryInconsistent.WithDetail(fmt.Sprintf("story %d", storyID))
	}

	return &CompleteStory{
		ID:        story.ID,
		Title:     story.Title,
		SessionID: story.SessionID,
		CreatedAt: story.CreatedAt,
		RootNode:  all[root.ID],
		AllNodes:  all,
	}, nil
}

func toNodeView(n *entity.StoryNode) NodeView {
	return NodeView{
		ID:              n.ID,
		Content:         n.Content,
		IsEnding:        n.IsEnding,
		IsWinningEnding: n.IsWinningEnding,
		Options:         n.OptionList(),
	}
}
