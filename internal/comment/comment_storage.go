package comment

import (
	"context"

	"github.com/VitaminP8/forum/models"
)

// Created is a new comment with its 1-indexed position among the live comments of the topic
// and the page that holds it.
type Created struct {
	Comment  *models.Comment
	Position int
	Page     int
}

type CommentStorage interface {
	CreateComment(ctx context.Context, topicID uint, body string) (*Created, error)
	GetComment(ctx context.Context, id uint) (*models.Comment, error)
	EditComment(ctx context.Context, id uint, body string) (*models.Comment, error)
	DeleteComment(ctx context.Context, id uint) error
	// ListComments pages the live comments of a topic in chronological order.
	// models.LastPage selects the final page.
	ListComments(ctx context.Context, topicID uint, page int) (models.Page[models.Comment], error)
}
