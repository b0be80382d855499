package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jinzhu/gorm"

	"github.com/VitaminP8/forum/internal/comment"
	"github.com/VitaminP8/forum/internal/config"
	"github.com/VitaminP8/forum/internal/errs"
	"github.com/VitaminP8/forum/models"
)

type CommentPostgresStorage struct {
	cfg config.ForumConfig
}

func NewCommentPostgresStorage(cfg config.ForumConfig) *CommentPostgresStorage {
	return &CommentPostgresStorage{cfg: cfg}
}

func (s *CommentPostgresStorage) CreateComment(ctx context.Context, topicID uint, body string) (*comment.Created, error) {
	actor, err := requireActor(ctx, DB, models.PermissionParticipate)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("empty comment: %w", errs.ErrInvalidInput)
	}

	c := &models.Comment{
		TopicID:  topicID,
		AuthorID: actor.ID,
	}
	c.SetBody(body)

	var position int
	err = DB.Transaction(func(tx *gorm.DB) error {
		if err := bumpInterest(tx, topicID); err != nil {
			return err
		}
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		return tx.Model(&models.Comment{}).
			Where("topic_id = ? AND deleted = ? AND id <= ?", topicID, false, c.ID).
			Count(&position).Error
	})
	if err != nil {
		return nil, fmt.Errorf("could not create comment: %w", err)
	}

	c.Author = actor
	slog.Info("Comment created", "comment_id", c.ID, "topic_id", topicID, "author_id", actor.ID)
	return &comment.Created{
		Comment:  c,
		Position: position,
		Page:     models.PageOf(position, s.cfg.CommentsPerPage),
	}, nil
}

func (s *CommentPostgresStorage) GetComment(ctx context.Context, id uint) (*models.Comment, error) {
	return liveComment(DB, id)
}

func liveComment(db *gorm.DB, id uint) (*models.Comment, error) {
	var c models.Comment
	err := db.Preload("Author").Where("id = ? AND deleted = ?", id, false).First(&c).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, fmt.Errorf("comment %d: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("could not get comment %d: %w", id, err)
	}
	return &c, nil
}

func (s *CommentPostgresStorage) EditComment(ctx context.Context, id uint, body string) (*models.Comment, error) {
	actor, err := requireActor(ctx, DB, models.PermissionWrite)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("empty comment: %w", errs.ErrInvalidInput)
	}

	var c *models.Comment
	err = DB.Transaction(func(tx *gorm.DB) error {
		current, err := liveComment(tx, id)
		if err != nil {
			return err
		}
		if !canManage(actor, current.AuthorID) {
			return fmt.Errorf("comment %d belongs to another user: %w", id, errs.ErrForbidden)
		}

		current.SetBody(body)
		res := tx.Model(&models.Comment{}).Where("id = ? AND deleted = ?", id, false).Updates(map[string]interface{}{
			"body":      current.Body,
			"body_html": current.BodyHTML,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("comment %d: %w", id, errs.ErrNotFound)
		}

		c, err = liveComment(tx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("could not edit comment %d: %w", id, err)
	}

	slog.Info("Comment edited", "comment_id", id, "editor_id", actor.ID)
	return c, nil
}

func (s *CommentPostgresStorage) DeleteComment(ctx context.Context, id uint) error {
	actor, err := requireActor(ctx, DB, models.PermissionWrite)
	if err != nil {
		return err
	}

	err = DB.Transaction(func(tx *gorm.DB) error {
		c, err := liveComment(tx, id)
		if err != nil {
			return err
		}
		if !canManage(actor, c.AuthorID) {
			return fmt.Errorf("comment %d belongs to another user: %w", id, errs.ErrForbidden)
		}

		res := tx.Model(&models.Comment{}).Where("id = ? AND deleted = ?", id, false).UpdateColumn("deleted", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("comment %d: %w", id, errs.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not delete comment %d: %w", id, err)
	}

	slog.Info("Comment deleted", "comment_id", id, "actor_id", actor.ID)
	return nil
}

func (s *CommentPostgresStorage) ListComments(ctx context.Context, topicID uint, page int) (models.Page[models.Comment], error) {
	if _, err := liveTopic(DB, topicID); err != nil {
		return models.Page[models.Comment]{}, err
	}

	query := DB.Model(&models.Comment{}).Where("topic_id = ? AND deleted = ?", topicID, false)

	if page == models.LastPage {
		var count int
		if err := query.Count(&count).Error; err != nil {
			return models.Page[models.Comment]{}, fmt.Errorf("could not count comments of topic %d: %w", topicID, err)
		}
		page = models.PageOf(count, s.cfg.CommentsPerPage)
	}

	return paginate[models.Comment](query, "created_at asc, id asc", page, s.cfg.CommentsPerPage, "Author")
}
