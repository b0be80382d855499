package postgres

import (
	"context"
	"fmt"

	"github.com/jinzhu/gorm"

	"github.com/VitaminP8/forum/internal/config"
	"github.com/VitaminP8/forum/internal/errs"
	"github.com/VitaminP8/forum/internal/feed"
	"github.com/VitaminP8/forum/models"
)

type FeedPostgresStorage struct {
	cfg config.ForumConfig
}

func NewFeedPostgresStorage(cfg config.ForumConfig) *FeedPostgresStorage {
	return &FeedPostgresStorage{cfg: cfg}
}

// topicPage loads a page of topics and attaches their live comment counts.
func (s *FeedPostgresStorage) topicPage(query *gorm.DB, order string, page int) (models.Page[feed.TopicItem], error) {
	topics, err := paginate[models.Topic](query, order, page, s.cfg.TopicsPerPage, "Author")
	if err != nil {
		return models.Page[feed.TopicItem]{}, err
	}

	ids := make([]uint, 0, len(topics.Items))
	for _, t := range topics.Items {
		ids = append(ids, t.ID)
	}
	counts, err := liveCommentCounts(DB, ids)
	if err != nil {
		return models.Page[feed.TopicItem]{}, err
	}

	result := models.Page[feed.TopicItem]{
		Items:   make([]feed.TopicItem, 0, len(topics.Items)),
		Number:  topics.Number,
		PerPage: topics.PerPage,
		Total:   topics.Total,
	}
	for _, t := range topics.Items {
		result.Items = append(result.Items, feed.TopicItem{Topic: t, CommentsCount: counts[t.ID]})
	}
	return result, nil
}

func (s *FeedPostgresStorage) Latest(ctx context.Context, target feed.Target, page int) (feed.LatestResult, error) {
	result := feed.LatestResult{Target: target}

	switch target {
	case feed.TargetTopics:
		topics, err := s.LatestTopics(ctx, page)
		if err != nil {
			return result, err
		}
		result.Topics = &topics
	case feed.TargetComments:
		comments, err := s.LatestComments(ctx, page)
		if err != nil {
			return result, err
		}
		result.Comments = &comments
	default:
		return result, fmt.Errorf("unknown target %q: %w", target, errs.ErrInvalidInput)
	}
	return result, nil
}

func (s *FeedPostgresStorage) LatestTopics(ctx context.Context, page int) (models.Page[feed.TopicItem], error) {
	query := DB.Model(&models.Topic{}).Where("deleted = ?", false)
	return s.topicPage(query, "created_at desc, id desc", page)
}

func (s *FeedPostgresStorage) LatestComments(ctx context.Context, page int) (models.Page[models.Comment], error) {
	query := DB.Model(&models.Comment{}).Where("deleted = ?", false)
	return paginate[models.Comment](query, "created_at desc, id desc", page, s.cfg.CommentsPerPage, "Author", "Topic")
}

func (s *FeedPostgresStorage) Hot(ctx context.Context, period feed.Period, page int) (models.Page[feed.TopicItem], error) {
	d, err := period.Duration()
	if err != nil {
		return models.Page[feed.TopicItem]{}, err
	}

	now := gorm.NowFunc()
	query := DB.Model(&models.Topic{}).
		Where("deleted = ? AND created_at BETWEEN ? AND ?", false, now.Add(-d), now)
	return s.topicPage(query, "interest desc, created_at desc, id desc", page)
}

func (s *FeedPostgresStorage) GroupTopics(ctx context.Context, groupID uint, page int) (models.Page[feed.TopicItem], error) {
	var count int
	if err := DB.Model(&models.TopicGroup{}).Where("id = ? AND deleted = ?", groupID, false).Count(&count).Error; err != nil {
		return models.Page[feed.TopicItem]{}, fmt.Errorf("could not get group %d: %w", groupID, err)
	}
	if count == 0 {
		return models.Page[feed.TopicItem]{}, fmt.Errorf("group %d: %w", groupID, errs.ErrNotFound)
	}

	query := DB.Model(&models.Topic{}).Where("group_id = ? AND deleted = ?", groupID, false)
	return s.topicPage(query, "created_at desc, id desc", page)
}

func (s *FeedPostgresStorage) UserTopics(ctx context.Context, userID uint, page int) (models.Page[feed.TopicItem], error) {
	var count int
	if err := DB.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return models.Page[feed.TopicItem]{}, fmt.Errorf("could not get user %d: %w", userID, err)
	}
	if count == 0 {
		return models.Page[feed.TopicItem]{}, fmt.Errorf("user %d: %w", userID, errs.ErrNotFound)
	}

	query := DB.Model(&models.Topic{}).Where("author_id = ? AND deleted = ?", userID, false)
	return s.topicPage(query, "created_at desc, id desc", page)
}
