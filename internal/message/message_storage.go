package message

import (
	"context"

	"github.com/VitaminP8/forum/models"
)

type MessageInput struct {
	Title string
	Body  string
}

type MessageStorage interface {
	SendMessage(ctx context.Context, receiverID uint, input MessageInput) (*models.Message, error)
	// OpenMessage returns a message visible to the acting user and marks it read for the receiver.
	OpenMessage(ctx context.Context, id uint) (*models.Message, error)
	// ReplyMessage sends a new message to the other party of message id.
	ReplyMessage(ctx context.Context, id uint, input MessageInput) (*models.Message, error)
	// DeleteMessage hides the message on the acting user's side only.
	DeleteMessage(ctx context.Context, id uint) error
	Received(ctx context.Context, page int) (models.Page[models.Message], error)
	Sent(ctx context.Context, page int) (models.Page[models.Message], error)
	UnreadCount(ctx context.Context) (int, error)
}
