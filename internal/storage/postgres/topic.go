package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/jinzhu/gorm"

	"github.com/VitaminP8/forum/internal/config"
	"github.com/VitaminP8/forum/internal/errs"
	"github.com/VitaminP8/forum/internal/topic"
	"github.com/VitaminP8/forum/models"
)

var errAlreadyVoted = errors.New("already voted")

type TopicPostgresStorage struct {
	cfg config.ForumConfig
}

func NewTopicPostgresStorage(cfg config.ForumConfig) *TopicPostgresStorage {
	return &TopicPostgresStorage{cfg: cfg}
}

func (s *TopicPostgresStorage) CreateTopic(ctx context.Context, input topic.TopicInput) (*models.Topic, error) {
	actor, err := requireActor(ctx, DB, models.PermissionWrite)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("empty topic title: %w", errs.ErrInvalidInput)
	}

	t := &models.Topic{
		Title:    title,
		GroupID:  input.GroupID,
		AuthorID: actor.ID,
	}
	t.SetBody(input.Body)

	var answers []string
	if input.Poll != nil {
		poll, err := input.Poll.Normalize()
		if err != nil {
			return nil, err
		}
		t.Poll = &poll.Question
		answers = poll.Answers
	}

	err = DB.Transaction(func(tx *gorm.DB) error {
		g, err := lockLiveGroup(tx, input.GroupID)
		if err != nil {
			return err
		}
		if g.Protected && !actor.IsModerator() {
			return fmt.Errorf("group %d is protected: %w", g.ID, errs.ErrForbidden)
		}

		if err := tx.Create(t).Error; err != nil {
			return err
		}
		for _, body := range answers {
			if err := tx.Create(&models.PollAnswer{TopicID: t.ID, Body: body}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not create topic: %w", err)
	}

	t.Author = actor
	slog.Info("Topic created", "topic_id", t.ID, "group_id", t.GroupID, "author_id", actor.ID, "poll", t.HasPoll())
	return t, nil
}

func (s *TopicPostgresStorage) GetTopic(ctx context.Context, id uint) (*models.Topic, error) {
	return liveTopic(DB, id)
}

func (s *TopicPostgresStorage) EditTopic(ctx context.Context, id uint, edit topic.TopicEdit) (*models.Topic, error) {
	actor, err := requireActor(ctx, DB, models.PermissionWrite)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(edit.Title)
	if title == "" {
		return nil, fmt.Errorf("empty topic title: %w", errs.ErrInvalidInput)
	}

	var t *models.Topic
	err = DB.Transaction(func(tx *gorm.DB) error {
		current, err := liveTopic(tx, id)
		if err != nil {
			return err
		}
		if !canManage(actor, current.AuthorID) {
			return fmt.Errorf("topic %d belongs to another user: %w", id, errs.ErrForbidden)
		}

		current.SetBody(edit.Body)
		updates := map[string]interface{}{
			"title":     title,
			"body":      current.Body,
			"body_html": current.BodyHTML,
		}

		if edit.GroupID != nil && *edit.GroupID != current.GroupID {
			if !actor.IsModerator() {
				return fmt.Errorf("only moderators move topics: %w", errs.ErrForbidden)
			}
			if _, err := lockLiveGroup(tx, *edit.GroupID); err != nil {
				return err
			}
			updates["group_id"] = *edit.GroupID
		}

		res := tx.Model(&models.Topic{}).Where("id = ? AND deleted = ?", id, false).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("topic %d: %w", id, errs.ErrNotFound)
		}

		t, err = liveTopic(tx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("could not edit topic %d: %w", id, err)
	}

	slog.Info("Topic edited", "topic_id", id, "editor_id", actor.ID)
	return t, nil
}

// AddOrUpdatePoll sets the poll question and reconciles the answers with the given list.
// Answers that stay keep their votes. Removed answers are deleted together with their votes.
func (s *TopicPostgresStorage) AddOrUpdatePoll(ctx context.Context, id uint, input topic.PollInput) (*models.Topic, error) {
	actor, err := requireActor(ctx, DB, models.PermissionWrite)
	if err != nil {
		return nil, err
	}
	poll, err := input.Normalize()
	if err != nil {
		return nil, err
	}

	var t *models.Topic
	var added, removed int
	err = DB.Transaction(func(tx *gorm.DB) error {
		current, err := liveTopic(tx, id)
		if err != nil {
			return err
		}
		if !canManage(actor, current.AuthorID) {
			return fmt.Errorf("topic %d belongs to another user: %w", id, errs.ErrForbidden)
		}

		res := tx.Model(&models.Topic{}).Where("id = ? AND deleted = ?", id, false).Updates(map[string]interface{}{"poll": poll.Question})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("topic %d: %w", id, errs.ErrNotFound)
		}

		var existing []models.PollAnswer
		if err := tx.Where("topic_id = ? AND deleted = ?", id, false).Order("id asc").Find(&existing).Error; err != nil {
			return err
		}

		wanted := make(map[string]bool, len(poll.Answers))
		for _, a := range poll.Answers {
			wanted[a] = true
		}
		kept := make(map[string]bool, len(existing))
		var stale []uint
		for _, a := range existing {
			if wanted[a.Body] && !kept[a.Body] {
				kept[a.Body] = true
				continue
			}
			stale = append(stale, a.ID)
		}

		if len(stale) > 0 {
			if err := tx.Model(&models.PollAnswer{}).Where("id IN (?)", stale).UpdateColumn("deleted", true).Error; err != nil {
				return err
			}
			err := tx.Model(&models.PollVote{}).Where("answer_id IN (?) AND deleted = ?", stale, false).UpdateColumn("deleted", true).Error
			if err != nil {
				return err
			}
		}
		removed = len(stale)

		for _, body := range poll.Answers {
			if kept[body] {
				continue
			}
			if err := tx.Create(&models.PollAnswer{TopicID: id, Body: body}).Error; err != nil {
				return err
			}
			added++
		}

		t, err = liveTopic(tx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("could not update poll of topic %d: %w", id, err)
	}

	slog.Info("Poll updated", "topic_id", id, "added", added, "removed", removed)
	return t, nil
}

func (s *TopicPostgresStorage) Vote(ctx context.Context, topicID, answerID uint) (topic.VoteOutcome, error) {
	actor, err := requireActor(ctx, DB, models.PermissionParticipate)
	if err != nil {
		return topic.VoteRecorded, err
	}

	err = DB.Transaction(func(tx *gorm.DB) error {
		// the interest update locks the topic row, concurrent votes queue here
		if err := bumpInterest(tx, topicID); err != nil {
			return err
		}

		t, err := liveTopic(tx, topicID)
		if err != nil {
			return err
		}
		if !t.HasPoll() {
			return fmt.Errorf("topic %d has no poll: %w", topicID, errs.ErrInvalidInput)
		}

		var answers int
		err = tx.Model(&models.PollAnswer{}).
			Where("id = ? AND topic_id = ? AND deleted = ?", answerID, topicID, false).
			Count(&answers).Error
		if err != nil {
			return err
		}
		if answers == 0 {
			return fmt.Errorf("answer %d is not part of poll %d: %w", answerID, topicID, errs.ErrInvalidInput)
		}

		voted, err := hasVoted(tx, actor.ID, topicID)
		if err != nil {
			return err
		}
		if voted {
			return errAlreadyVoted
		}

		return tx.Create(&models.PollVote{AnswerID: answerID, TopicID: topicID, AuthorID: actor.ID}).Error
	})
	if errors.Is(err, errAlreadyVoted) || isUniqueViolation(err) {
		return topic.VoteAlreadyCast, nil
	}
	if err != nil {
		return topic.VoteRecorded, fmt.Errorf("could not vote in topic %d: %w", topicID, err)
	}

	slog.Info("Vote recorded", "topic_id", topicID, "answer_id", answerID, "user_id", actor.ID)
	return topic.VoteRecorded, nil
}

func (s *TopicPostgresStorage) HasVoted(ctx context.Context, userID, topicID uint) (bool, error) {
	return hasVoted(DB, userID, topicID)
}

func hasVoted(db *gorm.DB, userID, topicID uint) (bool, error) {
	var count int
	err := db.Model(&models.PollVote{}).
		Where("author_id = ? AND topic_id = ? AND deleted = ?", userID, topicID, false).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("could not check vote of user %d in topic %d: %w", userID, topicID, err)
	}
	return count > 0, nil
}

func (s *TopicPostgresStorage) DeleteTopic(ctx context.Context, id uint) error {
	actor, err := requireActor(ctx, DB, models.PermissionWrite)
	if err != nil {
		return err
	}

	err = DB.Transaction(func(tx *gorm.DB) error {
		t, err := liveTopic(tx, id)
		if err != nil {
			return err
		}
		if !canManage(actor, t.AuthorID) {
			return fmt.Errorf("topic %d belongs to another user: %w", id, errs.ErrForbidden)
		}

		res := tx.Model(&models.Topic{}).Where("id = ? AND deleted = ?", id, false).UpdateColumn("deleted", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("topic %d: %w", id, errs.ErrNotFound)
		}

		for _, model := range []interface{}{&models.Comment{}, &models.PollAnswer{}, &models.PollVote{}} {
			err := tx.Model(model).Where("topic_id = ? AND deleted = ?", id, false).UpdateColumn("deleted", true).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not delete topic %d: %w", id, err)
	}

	slog.Info("Topic deleted", "topic_id", id, "actor_id", actor.ID)
	return nil
}

func (s *TopicPostgresStorage) PollResults(ctx context.Context, topicID uint) ([]topic.PollResult, error) {
	t, err := liveTopic(DB, topicID)
	if err != nil {
		return nil, err
	}
	if !t.HasPoll() {
		return nil, fmt.Errorf("topic %d has no poll: %w", topicID, errs.ErrInvalidInput)
	}
	return pollResults(DB, topicID)
}

// PollAnswersForVoting hides the tally from users who have not voted yet.
func (s *TopicPostgresStorage) PollAnswersForVoting(ctx context.Context, topicID uint) (topic.PollView, error) {
	t, err := liveTopic(DB, topicID)
	if err != nil {
		return topic.PollView{}, err
	}
	if !t.HasPoll() {
		return topic.PollView{}, fmt.Errorf("topic %d has no poll: %w", topicID, errs.ErrInvalidInput)
	}

	view := topic.PollView{Question: *t.Poll}

	user, err := currentUser(ctx, DB)
	if err != nil {
		return view, err
	}
	if user != nil {
		if view.Voted, err = hasVoted(DB, user.ID, topicID); err != nil {
			return view, err
		}
	}

	if view.Voted {
		view.Results, err = pollResults(DB, topicID)
		return view, err
	}

	view.Answers, err = liveAnswers(DB, topicID)
	return view, err
}

func liveAnswers(db *gorm.DB, topicID uint) ([]models.PollAnswer, error) {
	answers := []models.PollAnswer{}
	err := db.Where("topic_id = ? AND deleted = ?", topicID, false).Order("id asc").Find(&answers).Error
	if err != nil {
		return nil, fmt.Errorf("could not get answers of topic %d: %w", topicID, err)
	}
	return answers, nil
}

// pollResults tallies the live votes of each live answer, most voted first.
func pollResults(db *gorm.DB, topicID uint) ([]topic.PollResult, error) {
	answers, err := liveAnswers(db, topicID)
	if err != nil {
		return nil, err
	}

	votes, err := countBy(db.Model(&models.PollVote{}).Where("topic_id = ? AND deleted = ?", topicID, false), "answer_id")
	if err != nil {
		return nil, err
	}

	total := 0
	for _, a := range answers {
		total += votes[a.ID]
	}

	results := make([]topic.PollResult, 0, len(answers))
	for _, a := range answers {
		r := topic.PollResult{Answer: a, Votes: votes[a.ID]}
		if total > 0 {
			r.Percent = math.Round(float64(r.Votes)/float64(total)*10000) / 10000 * 100
		}
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Votes > results[j].Votes
	})
	return results, nil
}
