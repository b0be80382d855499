package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jinzhu/gorm"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/VitaminP8/forum/internal/auth"
	"github.com/VitaminP8/forum/internal/errs"
	"github.com/VitaminP8/forum/models"
)

// currentUser loads the acting user with its role. It returns nil for anonymous visitors.
func currentUser(ctx context.Context, db *gorm.DB) (*models.User, error) {
	userID, err := auth.GetUserIDFromContext(ctx)
	if err != nil {
		return nil, nil
	}

	var user models.User
	err = db.Preload("Role").Where("id = ?", userID).First(&user).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not load user %d: %w", userID, err)
	}
	return &user, nil
}

// requireUser returns the acting user if it holds perm.
func requireUser(ctx context.Context, db *gorm.DB, perm models.Permission) (*models.User, error) {
	user, err := currentUser(ctx, db)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("unauthorized: %w", errs.ErrForbidden)
	}
	if !user.Can(perm) {
		return nil, fmt.Errorf("user %d lacks permission %#x: %w", user.ID, int(perm), errs.ErrForbidden)
	}
	return user, nil
}

// requireActor is requireUser for mutations, which need a confirmed account.
func requireActor(ctx context.Context, db *gorm.DB, perm models.Permission) (*models.User, error) {
	user, err := currentUser(ctx, db)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("unauthorized: %w", errs.ErrForbidden)
	}
	if !user.Confirmed {
		return nil, fmt.Errorf("user %d: %w", user.ID, errs.ErrUnconfirmed)
	}
	if !user.Can(perm) {
		return nil, fmt.Errorf("user %d lacks permission %#x: %w", user.ID, int(perm), errs.ErrForbidden)
	}
	return user, nil
}

// canManage reports whether user may change content written by authorID.
func canManage(user *models.User, authorID uint) bool {
	return user.ID == authorID || user.IsModerator()
}

// lockLiveGroup takes the row lock of a live group for the rest of tx and returns it.
// Concurrent deletes and inserts of children serialize on this lock.
func lockLiveGroup(tx *gorm.DB, id uint) (*models.TopicGroup, error) {
	res := tx.Exec("UPDATE topic_groups SET id = id WHERE id = ? AND deleted = ?", id, false)
	if res.Error != nil {
		return nil, fmt.Errorf("could not lock group %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("group %d: %w", id, errs.ErrNotFound)
	}

	var group models.TopicGroup
	if err := tx.Where("id = ?", id).First(&group).Error; err != nil {
		return nil, fmt.Errorf("could not load group %d: %w", id, err)
	}
	return &group, nil
}

// bumpInterest increments the interest of a live topic, locking its row.
func bumpInterest(tx *gorm.DB, topicID uint) error {
	res := tx.Model(&models.Topic{}).
		Where("id = ? AND deleted = ?", topicID, false).
		UpdateColumn("interest", gorm.Expr("interest + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("could not update topic %d: %w", topicID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("topic %d: %w", topicID, errs.ErrNotFound)
	}
	return nil
}

func liveTopic(db *gorm.DB, id uint) (*models.Topic, error) {
	var topic models.Topic
	err := db.Preload("Author").Where("id = ? AND deleted = ?", id, false).First(&topic).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, fmt.Errorf("topic %d: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("could not get topic %d: %w", id, err)
	}
	return &topic, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// paginate counts query and loads the requested page of it. Pages below 1 are treated as 1,
// pages past the end come back empty.
func paginate[T any](query *gorm.DB, order string, page, perPage int, preload ...string) (models.Page[T], error) {
	if page < 1 {
		page = 1
	}
	result := models.Page[T]{Items: []T{}, Number: page, PerPage: perPage}

	if err := query.Count(&result.Total).Error; err != nil {
		return result, fmt.Errorf("could not count items: %w", err)
	}
	offset := (page - 1) * perPage
	if offset >= result.Total {
		return result, nil
	}

	q := query.Order(order)
	for _, p := range preload {
		q = q.Preload(p)
	}
	if err := q.Offset(offset).Limit(perPage).Find(&result.Items).Error; err != nil {
		return result, fmt.Errorf("could not load items: %w", err)
	}
	return result, nil
}

// countBy runs "SELECT column, count(*) ... GROUP BY column" over the rows matching query.
func countBy(query *gorm.DB, column string) (map[uint]int, error) {
	rows, err := query.Select(column + ", count(*)").Group(column).Rows()
	if err != nil {
		return nil, fmt.Errorf("could not count by %s: %w", column, err)
	}
	defer rows.Close()

	counts := make(map[uint]int)
	for rows.Next() {
		var (
			id uint
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("could not scan count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func liveCommentCounts(db *gorm.DB, topicIDs []uint) (map[uint]int, error) {
	if len(topicIDs) == 0 {
		return map[uint]int{}, nil
	}
	return countBy(db.Model(&models.Comment{}).Where("topic_id IN (?) AND deleted = ?", topicIDs, false), "topic_id")
}

func liveTopicCounts(db *gorm.DB, groupIDs []uint) (map[uint]int, error) {
	if len(groupIDs) == 0 {
		return map[uint]int{}, nil
	}
	return countBy(db.Model(&models.Topic{}).Where("group_id IN (?) AND deleted = ?", groupIDs, false), "group_id")
}
