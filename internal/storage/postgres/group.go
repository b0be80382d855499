package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jinzhu/gorm"

	"github.com/VitaminP8/forum/internal/config"
	"github.com/VitaminP8/forum/internal/errs"
	"github.com/VitaminP8/forum/internal/group"
	"github.com/VitaminP8/forum/models"
)

type GroupPostgresStorage struct {
	cfg config.ForumConfig
}

func NewGroupPostgresStorage(cfg config.ForumConfig) *GroupPostgresStorage {
	return &GroupPostgresStorage{cfg: cfg}
}

func (s *GroupPostgresStorage) validate(title *string, priority *int) error {
	if title != nil && strings.TrimSpace(*title) == "" {
		return fmt.Errorf("empty group title: %w", errs.ErrInvalidInput)
	}
	if priority != nil && !s.cfg.ValidPriority(*priority) {
		return fmt.Errorf("priority %d out of range %d..%d: %w",
			*priority, s.cfg.MinPriority, s.cfg.MaxPriority, errs.ErrInvalidInput)
	}
	return nil
}

func (s *GroupPostgresStorage) CreateGroup(ctx context.Context, input group.GroupInput) (*models.TopicGroup, error) {
	actor, err := requireActor(ctx, DB, models.PermissionModerate)
	if err != nil {
		return nil, err
	}
	if err := s.validate(&input.Title, &input.Priority); err != nil {
		return nil, err
	}

	parentID := input.ParentID
	g := &models.TopicGroup{
		Title:     strings.TrimSpace(input.Title),
		Priority:  input.Priority,
		Protected: input.Protected,
		GroupID:   &parentID,
		AuthorID:  actor.ID,
	}

	err = DB.Transaction(func(tx *gorm.DB) error {
		if _, err := lockLiveGroup(tx, parentID); err != nil {
			return err
		}
		return tx.Create(g).Error
	})
	if err != nil {
		return nil, fmt.Errorf("could not create group: %w", err)
	}

	slog.Info("Group created", "group_id", g.ID, "parent_id", parentID, "author_id", actor.ID)
	return g, nil
}

func (s *GroupPostgresStorage) GetGroup(ctx context.Context, id uint) (*models.TopicGroup, error) {
	var g models.TopicGroup
	err := DB.Where("id = ? AND deleted = ?", id, false).First(&g).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, fmt.Errorf("group %d: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("could not get group %d: %w", id, err)
	}
	return &g, nil
}

func (s *GroupPostgresStorage) ListChildren(ctx context.Context, id uint) ([]group.GroupListItem, error) {
	if _, err := s.GetGroup(ctx, id); err != nil {
		return nil, err
	}

	var children []models.TopicGroup
	err := DB.Where("group_id = ? AND deleted = ?", id, false).
		Order("priority asc, created_at desc, id desc").
		Find(&children).Error
	if err != nil {
		return nil, fmt.Errorf("could not list children of group %d: %w", id, err)
	}

	ids := make([]uint, 0, len(children))
	for _, c := range children {
		ids = append(ids, c.ID)
	}
	counts, err := liveTopicCounts(DB, ids)
	if err != nil {
		return nil, err
	}

	items := make([]group.GroupListItem, 0, len(children))
	for _, c := range children {
		items = append(items, group.GroupListItem{Group: c, TopicsCount: counts[c.ID]})
	}
	return items, nil
}

func (s *GroupPostgresStorage) EditGroup(ctx context.Context, id uint, patch group.GroupPatch) (*models.TopicGroup, error) {
	if _, err := requireActor(ctx, DB, models.PermissionModerate); err != nil {
		return nil, err
	}
	if id == s.cfg.RootGroupID && (patch.Title != nil || patch.Priority != nil || patch.ParentID != nil) {
		return nil, fmt.Errorf("only protection of the root group can change: %w", errs.ErrInvalidInput)
	}
	if err := s.validate(patch.Title, patch.Priority); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.Title != nil {
		updates["title"] = strings.TrimSpace(*patch.Title)
	}
	if patch.Priority != nil {
		updates["priority"] = *patch.Priority
	}
	if patch.Protected != nil {
		updates["protected"] = *patch.Protected
	}

	var g models.TopicGroup
	err := DB.Transaction(func(tx *gorm.DB) error {
		if _, err := lockLiveGroup(tx, id); err != nil {
			return err
		}

		if patch.ParentID != nil {
			if _, err := lockLiveGroup(tx, *patch.ParentID); err != nil {
				return err
			}
			below, err := isDescendant(tx, *patch.ParentID, id)
			if err != nil {
				return err
			}
			if below {
				return fmt.Errorf("group %d cannot move below itself: %w", id, errs.ErrInvalidInput)
			}
			updates["group_id"] = *patch.ParentID
		}

		if len(updates) > 0 {
			if err := tx.Model(&models.TopicGroup{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", id).First(&g).Error
	})
	if err != nil {
		return nil, fmt.Errorf("could not edit group %d: %w", id, err)
	}

	slog.Info("Group edited", "group_id", id)
	return &g, nil
}

func (s *GroupPostgresStorage) DeleteGroup(ctx context.Context, id uint) (uint, error) {
	if _, err := requireActor(ctx, DB, models.PermissionModerate); err != nil {
		return 0, err
	}
	if id == s.cfg.RootGroupID {
		return 0, fmt.Errorf("the root group cannot be deleted: %w", errs.ErrInvalidInput)
	}

	var parentID uint
	err := DB.Transaction(func(tx *gorm.DB) error {
		g, err := lockLiveGroup(tx, id)
		if err != nil {
			return err
		}

		var children int
		if err := tx.Model(&models.TopicGroup{}).Where("group_id = ? AND deleted = ?", id, false).Count(&children).Error; err != nil {
			return err
		}
		if children > 0 {
			return fmt.Errorf("group %d has %d child groups: %w", id, children, errs.ErrConflict)
		}

		var topics int
		if err := tx.Model(&models.Topic{}).Where("group_id = ? AND deleted = ?", id, false).Count(&topics).Error; err != nil {
			return err
		}
		if topics > 0 {
			return fmt.Errorf("group %d has %d topics: %w", id, topics, errs.ErrConflict)
		}

		if err := tx.Model(&models.TopicGroup{}).Where("id = ?", id).Updates(map[string]interface{}{"deleted": true}).Error; err != nil {
			return err
		}
		if g.GroupID != nil {
			parentID = *g.GroupID
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("could not delete group %d: %w", id, err)
	}

	slog.Info("Group deleted", "group_id", id, "parent_id", parentID)
	return parentID, nil
}

func (s *GroupPostgresStorage) IsDescendant(ctx context.Context, id, ancestorID uint) (bool, error) {
	return isDescendant(DB, id, ancestorID)
}

// isDescendant walks the parent chain of id up to the root.
func isDescendant(db *gorm.DB, id, ancestorID uint) (bool, error) {
	visited := make(map[uint]bool)
	current := &id
	for current != nil {
		if *current == ancestorID {
			return true, nil
		}
		if visited[*current] {
			return false, fmt.Errorf("cycle in group tree at %d", *current)
		}
		visited[*current] = true

		var g models.TopicGroup
		err := db.Select("id, group_id").Where("id = ?", *current).First(&g).Error
		if gorm.IsRecordNotFoundError(err) {
			return false, fmt.Errorf("group %d: %w", *current, errs.ErrNotFound)
		}
		if err != nil {
			return false, fmt.Errorf("could not get group %d: %w", *current, err)
		}
		current = g.GroupID
	}
	return false, nil
}
