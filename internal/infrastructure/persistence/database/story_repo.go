package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"adventure-story-api/internal/domain/entity"
)

// StoryRepository 故事仓储实现
type StoryRepository struct {
	client *Client
}

// NewStoryRepository 创建故事仓储
func NewStoryRepository(client *Client) *StoryRepository {
	return &StoryRepository{client: client}
}

// Create 创建故事
func (r *StoryRepository) Create(ctx context.Context, story *entity.Story) error {
	ctx, span := tracer.Start(ctx, "database.StoryRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(story).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create story: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取故事
func (r *StoryRepository) GetByID(ctx context.Context, id int64) (*entity.Story, error) {
	ctx, span := tracer.Start(ctx, "database.StoryRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var story entity.Story
	if err := db.First(&story, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return &story, nil
}

// StoryNodeRepository 故事节点仓储实现
type StoryNodeRepository struct {
	client *Client
}

// NewStoryNodeRepository 创建故事节点仓储
func NewStoryNodeRepository(client *Client) *StoryNodeRepository {
	return &StoryNodeRepository{client: client}
}

// Create 创建节点
func (r *StoryNodeRepository) Create(ctx context.Context, node *entity.StoryNode) error {
	ctx, span := tracer.Start(ctx, "database.StoryNodeRepository.Create")
	defer span.End()

	if node.Options == nil {
		node.Options = []entity.StoryOption{}
	}

	db := getDB(ctx, r.client.db)
	if err := db.Create(node).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create story node: %w", err)
	}
	return nil
}

// UpdateOptions 回填节点选项
func (r *StoryNodeRepository) UpdateOptions(ctx context.Context, nodeID int64, options []entity.StoryOption) error {
	ctx, span := tracer.Start(ctx, "database.StoryNodeRepository.UpdateOptions")
	defer span.End()

	if options == nil {
		options = []entity.StoryOption{}
	}

	db := getDB(ctx, r.client.db)
	result := db.Model(&entity.StoryNode{}).
		Where("id = ?", nodeID).
		Update("options", datatypes.JSONSlice[entity.StoryOption](options))
	if result.Error != nil {
		span.RecordError(result.Error)
		return fmt.Errorf("failed to update story node options: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to update story node options: node %d not found", nodeID)
	}
	return nil
}

// ListByStory 列出故事的全部节点
func (r *StoryNodeRepository) ListByStory(ctx context.Context, storyID int64) ([]*entity.StoryNode, error) {
	ctx, span := tracer.Start(ctx, "database.StoryNodeRepository.ListByStory")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var nodes []*entity.StoryNode
	if err := db.Where("story_id = ?", storyID).Order("id ASC").Find(&nodes).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list story nodes: %w", err)
	}
	return nodes, nil
}
