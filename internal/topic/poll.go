package topic

import (
	"fmt"
	"strings"

	"github.com/VitaminP8/forum/internal/errs"
)

// Normalize trims the question and answers, drops empty answers and duplicates
// and keeps the authored order.
func (p PollInput) Normalize() (PollInput, error) {
	question := strings.TrimSpace(p.Question)
	if question == "" {
		return PollInput{}, fmt.Errorf("empty poll question: %w", errs.ErrInvalidInput)
	}

	seen := make(map[string]bool, len(p.Answers))
	answers := make([]string, 0, len(p.Answers))
	for _, a := range p.Answers {
		a = strings.TrimSpace(a)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		answers = append(answers, a)
	}
	if len(answers) == 0 {
		return PollInput{}, fmt.Errorf("poll without answers: %w", errs.ErrInvalidInput)
	}

	return PollInput{Question: question, Answers: answers}, nil
}
