package postgres

import (
	"context"
	"testing"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/VitaminP8/forum/internal/auth"
	"github.com/VitaminP8/forum/internal/config"
	"github.com/VitaminP8/forum/models"
)

// createUserContext returns a context acting as the given user
func createUserContext(userID uint) context.Context {
	return auth.WithUserID(context.Background(), userID)
}

func testConfig() config.ForumConfig {
	return config.Default().Forum
}

// setupTestDB opens an in-memory SQLite, migrates and seeds it like production
func setupTestDB(t *testing.T) *gorm.DB {
	oldDB := GetDB()

	db, err := gorm.Open("sqlite3", ":memory:")
	require.NoError(t, err, "Failed to connect to in-memory SQLite")

	// every connection to :memory: is a new database
	db.DB().SetMaxOpenConns(1)
	db.LogMode(false)
	InitDBWithConnection(db)

	require.NoError(t, Migrate(), "Failed to migrate database schema")
	require.NoError(t, InsertRoles(), "Failed to insert roles")
	require.NoError(t, InsertRootGroup(testConfig()), "Failed to insert root group")

	passwordCost = bcrypt.MinCost
	return oldDB
}

// teardownTestDB closes the test database and restores the original connection
func teardownTestDB(db *gorm.DB) {
	if DB != nil {
		DB.Close()
	}
	InitDBWithConnection(db)
}

// createTestUser creates a confirmed user with the named role
func createTestUser(t *testing.T, username, roleName string) *models.User {
	var role models.Role
	require.NoError(t, DB.Where("name = ?", roleName).First(&role).Error)

	hashed, err := hashPassword("password123")
	require.NoError(t, err)

	u := &models.User{
		Email:              username + "@example.com",
		Username:           username,
		UsernameNormalized: normalizeUsername(username),
		PasswordHash:       hashed,
		Confirmed:          true,
		RoleID:             role.ID,
	}
	require.NoError(t, DB.Create(u).Error, "Failed to create test user")
	u.Role = &role
	return u
}

func createTestGroup(t *testing.T, parentID uint, title string, protected bool) uint {
	g := &models.TopicGroup{Title: title, Priority: 3, Protected: protected, GroupID: &parentID}
	require.NoError(t, DB.Create(g).Error, "Failed to create test group")
	return g.ID
}

func createTestTopic(t *testing.T, groupID, authorID uint, title string) uint {
	topic := &models.Topic{Title: title, GroupID: groupID, AuthorID: authorID}
	topic.SetBody("body of " + title)
	require.NoError(t, DB.Create(topic).Error, "Failed to create test topic")
	return topic.ID
}

func createTestComment(t *testing.T, topicID, authorID uint, body string) uint {
	c := &models.Comment{TopicID: topicID, AuthorID: authorID}
	c.SetBody(body)
	require.NoError(t, DB.Create(c).Error, "Failed to create test comment")
	return c.ID
}
