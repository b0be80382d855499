package postgres

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jinzhu/gorm"

	"github.com/VitaminP8/forum/internal/config"
	"github.com/VitaminP8/forum/models"
)

// ErrNoDefaultRole means the roles were never inserted. Users cannot be registered until they are.
var ErrNoDefaultRole = errors.New("no default role is configured, run init-data")

var defaultRoles = []struct {
	name        string
	permissions models.Permission
	isDefault   bool
}{
	{"Guest", models.PermissionRead, false},
	{"Participant", models.PermissionRead | models.PermissionParticipate, false},
	{"User", models.PermissionRead | models.PermissionParticipate | models.PermissionWrite, true},
	{"Moderator", models.PermissionRead | models.PermissionParticipate | models.PermissionWrite | models.PermissionModerate, false},
	{"Administrator", models.PermissionAll, false},
}

// InsertRoles creates the built-in roles or resets their permissions.
func InsertRoles() error {
	return DB.Transaction(func(tx *gorm.DB) error {
		for _, r := range defaultRoles {
			var role models.Role
			err := tx.Where("name = ?", r.name).First(&role).Error
			if err != nil && !gorm.IsRecordNotFoundError(err) {
				return fmt.Errorf("could not load role %s: %w", r.name, err)
			}

			role.Name = r.name
			role.Permissions = r.permissions
			role.IsDefault = r.isDefault
			if err := tx.Save(&role).Error; err != nil {
				return fmt.Errorf("could not save role %s: %w", r.name, err)
			}
		}
		slog.Info("Roles inserted", "count", len(defaultRoles))
		return nil
	})
}

// InsertRootGroup creates the root of the group tree with the configured id if it is missing.
func InsertRootGroup(cfg config.ForumConfig) error {
	var count int
	if err := DB.Model(&models.TopicGroup{}).Where("id = ?", cfg.RootGroupID).Count(&count).Error; err != nil {
		return fmt.Errorf("could not look up root group: %w", err)
	}
	if count > 0 {
		return nil
	}

	now := gorm.NowFunc()
	// explicit id, gorm would treat a zero primary key as unset
	err := DB.Exec(
		"INSERT INTO topic_groups (id, title, priority, protected, deleted, author_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		cfg.RootGroupID, "Forum", cfg.MinPriority, cfg.ProtectedRootGroup, false, 0, now, now,
	).Error
	if err != nil {
		return fmt.Errorf("could not create root group: %w", err)
	}

	if DB.Dialect().GetName() == "postgres" {
		err = DB.Exec("SELECT setval(pg_get_serial_sequence('topic_groups', 'id'), GREATEST(MAX(id), 1)) FROM topic_groups").Error
		if err != nil {
			return fmt.Errorf("could not advance group sequence: %w", err)
		}
	}

	slog.Info("Root group created", "group_id", cfg.RootGroupID)
	return nil
}

// CheckSetup verifies the initial data every storage relies on.
func CheckSetup(cfg config.ForumConfig) error {
	var roles int
	if err := DB.Model(&models.Role{}).Where("is_default = ?", true).Count(&roles).Error; err != nil {
		return fmt.Errorf("could not look up default role: %w", err)
	}
	if roles == 0 {
		return ErrNoDefaultRole
	}

	var groups int
	if err := DB.Model(&models.TopicGroup{}).Where("id = ? AND deleted = ?", cfg.RootGroupID, false).Count(&groups).Error; err != nil {
		return fmt.Errorf("could not look up root group: %w", err)
	}
	if groups == 0 {
		return fmt.Errorf("root group %d is missing, run init-data", cfg.RootGroupID)
	}
	return nil
}
