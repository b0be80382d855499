package postgres

import (
	"fmt"
	"log/slog"

	"github.com/VitaminP8/forum/models"
)

// Migrate creates or updates the schema, including the indexes AutoMigrate cannot express.
func Migrate() error {
	err := DB.AutoMigrate(
		&models.Role{},
		&models.User{},
		&models.TopicGroup{},
		&models.Topic{},
		&models.PollAnswer{},
		&models.PollVote{},
		&models.Comment{},
		&models.Message{},
	).Error
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	// unread counter and both mailboxes
	if err := DB.Model(&models.Message{}).AddIndex("idx_messages_inbox", "receiver_id", "receiver_deleted", "unread").Error; err != nil {
		return fmt.Errorf("failed to create inbox index: %w", err)
	}
	if err := DB.Model(&models.Message{}).AddIndex("idx_messages_outbox", "author_id", "author_deleted").Error; err != nil {
		return fmt.Errorf("failed to create outbox index: %w", err)
	}

	// at most one live vote per user and topic
	err = DB.Exec("CREATE UNIQUE INDEX IF NOT EXISTS ux_poll_votes_live ON poll_votes (author_id, topic_id) WHERE NOT deleted").Error
	if err != nil {
		return fmt.Errorf("failed to create vote index: %w", err)
	}

	slog.Info("Schema migrated")
	return nil
}
