package topic

import (
	"context"

	"github.com/VitaminP8/forum/models"
)

type PollInput struct {
	Question string
	Answers  []string
}

type TopicInput struct {
	GroupID uint
	Title   string
	Body    string
	Poll    *PollInput
}

// TopicEdit replaces title and body. A non-nil GroupID moves the topic, which only moderators may do.
type TopicEdit struct {
	Title   string
	Body    string
	GroupID *uint
}

type VoteOutcome int

const (
	VoteRecorded VoteOutcome = iota
	// VoteAlreadyCast means the user already holds a live vote in the poll. Nothing was changed.
	VoteAlreadyCast
)

func (o VoteOutcome) String() string {
	if o == VoteAlreadyCast {
		return "already voted"
	}
	return "vote recorded"
}

type PollResult struct {
	Answer  models.PollAnswer
	Votes   int
	Percent float64
}

// PollView is what a user sees of a poll: the tally after voting, the bare answers before.
type PollView struct {
	Question string
	Voted    bool
	Answers  []models.PollAnswer
	Results  []PollResult
}

type TopicStorage interface {
	CreateTopic(ctx context.Context, input TopicInput) (*models.Topic, error)
	GetTopic(ctx context.Context, id uint) (*models.Topic, error)
	EditTopic(ctx context.Context, id uint, edit TopicEdit) (*models.Topic, error)
	AddOrUpdatePoll(ctx context.Context, id uint, poll PollInput) (*models.Topic, error)
	Vote(ctx context.Context, topicID, answerID uint) (VoteOutcome, error)
	HasVoted(ctx context.Context, userID, topicID uint) (bool, error)
	DeleteTopic(ctx context.Context, id uint) error
	PollResults(ctx context.Context, topicID uint) ([]PollResult, error)
	PollAnswersForVoting(ctx context.Context, topicID uint) (PollView, error)
}
