package group

import (
	"context"

	"github.com/VitaminP8/forum/models"
)

type GroupInput struct {
	ParentID  uint
	Title     string
	Priority  int
	Protected bool
}

// GroupPatch changes only the fields that are set.
// The root group accepts nothing but Protected.
type GroupPatch struct {
	Title     *string
	Priority  *int
	Protected *bool
	ParentID  *uint
}

// GroupListItem is a child group with its number of live topics.
type GroupListItem struct {
	Group       models.TopicGroup
	TopicsCount int
}

type GroupStorage interface {
	CreateGroup(ctx context.Context, input GroupInput) (*models.TopicGroup, error)
	GetGroup(ctx context.Context, id uint) (*models.TopicGroup, error)
	ListChildren(ctx context.Context, id uint) ([]GroupListItem, error)
	EditGroup(ctx context.Context, id uint, patch GroupPatch) (*models.TopicGroup, error)
	// DeleteGroup returns the parent of the deleted group.
	DeleteGroup(ctx context.Context, id uint) (uint, error)
	// IsDescendant reports whether id is ancestorID itself or lies below it.
	IsDescendant(ctx context.Context, id, ancestorID uint) (bool, error)
}
