package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jinzhu/gorm"

	"github.com/VitaminP8/forum/internal/config"
	"github.com/VitaminP8/forum/internal/errs"
	"github.com/VitaminP8/forum/internal/message"
	"github.com/VitaminP8/forum/models"
)

type MessagePostgresStorage struct {
	cfg config.ForumConfig
}

func NewMessagePostgresStorage(cfg config.ForumConfig) *MessagePostgresStorage {
	return &MessagePostgresStorage{cfg: cfg}
}

func (s *MessagePostgresStorage) SendMessage(ctx context.Context, receiverID uint, input message.MessageInput) (*models.Message, error) {
	actor, err := requireActor(ctx, DB, models.PermissionParticipate)
	if err != nil {
		return nil, err
	}
	return s.send(actor, receiverID, input)
}

func (s *MessagePostgresStorage) send(author *models.User, receiverID uint, input message.MessageInput) (*models.Message, error) {
	if receiverID == author.ID {
		return nil, fmt.Errorf("cannot send a message to yourself: %w", errs.ErrInvalidInput)
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("empty message title: %w", errs.ErrInvalidInput)
	}

	var receiver models.User
	err := DB.Where("id = ?", receiverID).First(&receiver).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, fmt.Errorf("user %d: %w", receiverID, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("could not get user %d: %w", receiverID, err)
	}

	m := &models.Message{
		Title:      title,
		AuthorID:   author.ID,
		ReceiverID: receiverID,
		Unread:     true,
	}
	m.SetBody(input.Body)

	if err := DB.Create(m).Error; err != nil {
		return nil, fmt.Errorf("could not send message: %w", err)
	}

	m.Author = author
	m.Receiver = &receiver
	slog.Info("Message sent", "message_id", m.ID, "author_id", author.ID, "receiver_id", receiverID)
	return m, nil
}

// visibleMessage loads a message that userID takes part in and has not deleted on their side.
func visibleMessage(db *gorm.DB, userID, id uint) (*models.Message, error) {
	var m models.Message
	err := db.Preload("Author").Preload("Receiver").Where("id = ?", id).First(&m).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, fmt.Errorf("message %d: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("could not get message %d: %w", id, err)
	}

	switch userID {
	case m.ReceiverID:
		if m.ReceiverDeleted {
			return nil, fmt.Errorf("message %d: %w", id, errs.ErrNotFound)
		}
	case m.AuthorID:
		if m.AuthorDeleted {
			return nil, fmt.Errorf("message %d: %w", id, errs.ErrNotFound)
		}
	default:
		return nil, fmt.Errorf("message %d belongs to other users: %w", id, errs.ErrForbidden)
	}
	return &m, nil
}

func (s *MessagePostgresStorage) OpenMessage(ctx context.Context, id uint) (*models.Message, error) {
	viewer, err := requireUser(ctx, DB, models.PermissionParticipate)
	if err != nil {
		return nil, err
	}

	m, err := visibleMessage(DB, viewer.ID, id)
	if err != nil {
		return nil, err
	}

	if m.ReceiverID == viewer.ID && m.Unread {
		err := DB.Model(&models.Message{}).Where("id = ? AND unread = ?", id, true).UpdateColumn("unread", false).Error
		if err != nil {
			return nil, fmt.Errorf("could not mark message %d read: %w", id, err)
		}
		m.Unread = false
	}
	return m, nil
}

func (s *MessagePostgresStorage) ReplyMessage(ctx context.Context, id uint, input message.MessageInput) (*models.Message, error) {
	actor, err := requireActor(ctx, DB, models.PermissionParticipate)
	if err != nil {
		return nil, err
	}

	original, err := visibleMessage(DB, actor.ID, id)
	if err != nil {
		return nil, err
	}
	return s.send(actor, original.OtherParty(actor.ID), input)
}

func (s *MessagePostgresStorage) DeleteMessage(ctx context.Context, id uint) error {
	actor, err := requireActor(ctx, DB, models.PermissionParticipate)
	if err != nil {
		return err
	}

	err = DB.Transaction(func(tx *gorm.DB) error {
		m, err := visibleMessage(tx, actor.ID, id)
		if err != nil {
			return err
		}

		column := "author_deleted"
		if m.ReceiverID == actor.ID {
			column = "receiver_deleted"
		}
		return tx.Model(&models.Message{}).Where("id = ?", id).UpdateColumn(column, true).Error
	})
	if err != nil {
		return fmt.Errorf("could not delete message %d: %w", id, err)
	}

	slog.Info("Message deleted", "message_id", id, "user_id", actor.ID)
	return nil
}

func (s *MessagePostgresStorage) Received(ctx context.Context, page int) (models.Page[models.Message], error) {
	user, err := requireUser(ctx, DB, models.PermissionParticipate)
	if err != nil {
		return models.Page[models.Message]{}, err
	}

	query := DB.Model(&models.Message{}).Where("receiver_id = ? AND receiver_deleted = ?", user.ID, false)
	return paginate[models.Message](query, "created_at desc, id desc", page, s.cfg.MessagesPerPage, "Author")
}

func (s *MessagePostgresStorage) Sent(ctx context.Context, page int) (models.Page[models.Message], error) {
	user, err := requireUser(ctx, DB, models.PermissionParticipate)
	if err != nil {
		return models.Page[models.Message]{}, err
	}

	query := DB.Model(&models.Message{}).Where("author_id = ? AND author_deleted = ?", user.ID, false)
	return paginate[models.Message](query, "created_at desc, id desc", page, s.cfg.MessagesPerPage, "Receiver")
}

// UnreadCount is served by the inbox index.
func (s *MessagePostgresStorage) UnreadCount(ctx context.Context) (int, error) {
	user, err := requireUser(ctx, DB, models.PermissionParticipate)
	if err != nil {
		return 0, err
	}

	var count int
	err = DB.Model(&models.Message{}).
		Where("receiver_id = ? AND receiver_deleted = ? AND unread = ?", user.ID, false, true).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("could not count unread messages: %w", err)
	}
	return count, nil
}
