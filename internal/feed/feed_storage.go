package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/VitaminP8/forum/internal/errs"
	"github.com/VitaminP8/forum/models"
)

type Target string

const (
	TargetTopics   Target = "topics"
	TargetComments Target = "comments"
)

type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

var periods = map[Period]time.Duration{
	PeriodDay:   24 * time.Hour,
	PeriodWeek:  7 * 24 * time.Hour,
	PeriodMonth: 30 * 24 * time.Hour,
	PeriodYear:  365 * 24 * time.Hour,
}

// Duration returns the length of the window, or ErrInvalidInput for an unknown period.
func (p Period) Duration() (time.Duration, error) {
	d, ok := periods[p]
	if !ok {
		return 0, fmt.Errorf("unknown period %q: %w", p, errs.ErrInvalidInput)
	}
	return d, nil
}

// TopicItem is a topic listed with its number of live comments.
type TopicItem struct {
	Topic         models.Topic
	CommentsCount int
}

// LatestResult carries exactly one of the two pages, chosen by Target.
type LatestResult struct {
	Target   Target
	Topics   *models.Page[TopicItem]
	Comments *models.Page[models.Comment]
}

type FeedStorage interface {
	Latest(ctx context.Context, target Target, page int) (LatestResult, error)
	LatestTopics(ctx context.Context, page int) (models.Page[TopicItem], error)
	LatestComments(ctx context.Context, page int) (models.Page[models.Comment], error)
	// Hot lists topics created within the period, most interesting first.
	Hot(ctx context.Context, period Period, page int) (models.Page[TopicItem], error)
	GroupTopics(ctx context.Context, groupID uint, page int) (models.Page[TopicItem], error)
	UserTopics(ctx context.Context, userID uint, page int) (models.Page[TopicItem], error)
}
