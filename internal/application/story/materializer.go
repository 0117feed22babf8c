package story

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"adventure-story-api/internal/domain/entity"
	"adventure-story-api/internal/domain/repository"
	"adventure-story-api/pkg/metrics"
)

var tracer = otel.Tracer("application.story")

// Materializer 将校验后的节点树写入存储
type Materializer struct {
	nodes repository.StoryNodeRepository
}

// NewMaterializer 创建节点树落库器
func NewMaterializer(nodes repository.StoryNodeRepository) *Materializer {
	return &Materializer{nodes: nodes}
}

// Materialize 先序深度优先写入整棵树，返回根节点
// 调用方负责事务边界；节点先插入拿到自增 ID，子节点全部落库后再回填父节点选项
func (m *Materializer) Materialize(ctx context.Context, storyID int64, root *NodePayload) (*entity.StoryNode, error) {
	if root == nil {
		return nil, fmt.Errorf("root node payload is nil")
	}

	ctx, span := tracer.Start(ctx, "story.materialize")
	defer span.End()

	count := 0
	node, err := m.persist(ctx, storyID, root, true, &count)
	span.SetAttributes(
		attribute.Int64("story.id", storyID),
		attribute.Int("story.nodes", count),
	)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	metrics.StoryNodesMaterialized.Observe(float64(count))
	return node, nil
}

func (m *Materializer) persist(ctx context.Context, storyID int64, p *NodePayload, isRoot bool, count *int) (*entity.StoryNode, error) {
	node := entity.NewStoryNode(storyID, p.Content, isRoot, p.IsEnding, p.IsWinningEnding)
	if err := m.nodes.Create(ctx, node); err != nil {
		return nil, fmt.Errorf("failed to create story node: %w", err)
	}
	*count++

	// 结局节点忽略选项；无选项的非结局节点按原样保留为叶子
	if p.IsEnding || len(p.Options) == 0 {
		return node, nil
	}

	options := make([]entity.StoryOption, 0, len(p.Options))
	for _, opt := range p.Options {
		child, err := m.persist(ctx, storyID, opt.NextNode, false, count)
		if err != nil {
			return nil, err
		}
		options = append(options, entity.StoryOption{Text: opt.Text, NodeID: child.ID})
	}

	if err := m.nodes.UpdateOptions(ctx, node.ID, options); err != nil {
		return nil, fmt.Errorf("failed to link options of node %d: %w", node.ID, err)
	}
	node.Options = options
	return node, nil
}
