package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VitaminP8/forum/internal/errs"
	"github.com/VitaminP8/forum/internal/feed"
	"github.com/VitaminP8/forum/internal/group"
	"github.com/VitaminP8/forum/internal/topic"
	"github.com/VitaminP8/forum/models"
)

func TestFeedPostgresStorage_Latest(t *testing.T) {
	cfg := testConfig()
	storage := NewFeedPostgresStorage(cfg)

	oldDB := setupTestDB(t)
	defer teardownTestDB(oldDB)

	author := createTestUser(t, "alice", "User")
	g := createTestGroup(t, cfg.RootGroupID, "General", false)
	first := createTestTopic(t, g, author.ID, "first")
	second := createTestTopic(t, g, author.ID, "second")
	gone := createTestTopic(t, g, author.ID, "gone")
	require.NoError(t, DB.Model(&models.Topic{}).Where("id = ?", gone).UpdateColumn("deleted", true).Error)

	createTestComment(t, first, author.ID, "c1")
	c2 := createTestComment(t, first, author.ID, "c2")
	deleted := createTestComment(t, first, author.ID, "c3")
	require.NoError(t, DB.Model(&models.Comment{}).Where("id = ?", deleted).UpdateColumn("deleted", true).Error)

	t.Run("Topics newest first with live comment counts", func(t *testing.T) {
		result, err := storage.Latest(context.Background(), feed.TargetTopics, 1)
		require.NoError(t, err)
		require.NotNil(t, result.Topics)
		assert.Nil(t, result.Comments)

		items := result.Topics.Items
		require.Len(t, items, 2)
		assert.Equal(t, second, items[0].Topic.ID)
		assert.Equal(t, 0, items[0].CommentsCount)
		assert.Equal(t, first, items[1].Topic.ID)
		assert.Equal(t, 2, items[1].CommentsCount)
		require.NotNil(t, items[1].Topic.Author)
		assert.Equal(t, "alice", items[1].Topic.Author.Username)
	})

	t.Run("Comments newest first with their topic", func(t *testing.T) {
		result, err := storage.Latest(context.Background(), feed.TargetComments, 1)
		require.NoError(t, err)
		require.NotNil(t, result.Comments)

		items := result.Comments.Items
		require.Len(t, items, 2)
		assert.Equal(t, c2, items[0].ID)
		require.NotNil(t, items[0].Topic)
		assert.Equal(t, "first", items[0].Topic.Title)
	})

	t.Run("Unknown target", func(t *testing.T) {
		_, err := storage.Latest(context.Background(), feed.Target("users"), 1)
		assert.ErrorIs(t, err, errs.ErrInvalidInput)
	})

	t.Run("Page past the end", func(t *testing.T) {
		page, err := storage.LatestTopics(context.Background(), 5)
		require.NoError(t, err)
		assert.Empty(t, page.Items)
		assert.Equal(t, 2, page.Total)
	})
}

func TestFeedPostgresStorage_Hot(t *testing.T) {
	cfg := testConfig()
	storage := NewFeedPostgresStorage(cfg)

	oldDB := setupTestDB(t)
	defer teardownTestDB(oldDB)

	author := createTestUser(t, "alice", "User")
	g := createTestGroup(t, cfg.RootGroupID, "General", false)

	calm := createTestTopic(t, g, author.ID, "calm")
	busy := createTestTopic(t, g, author.ID, "busy")
	old := createTestTopic(t, g, author.ID, "old")
	require.NoError(t, DB.Model(&models.Topic{}).Where("id = ?", busy).UpdateColumn("interest", 10).Error)
	require.NoError(t, DB.Model(&models.Topic{}).Where("id = ?", calm).UpdateColumn("interest", 2).Error)
	require.NoError(t, DB.Model(&models.Topic{}).Where("id = ?", old).Updates(map[string]interface{}{
		"interest":   100,
		"created_at": gorm.NowFunc().Add(-10 * 24 * time.Hour),
	}).Error)

	t.Run("Week keeps recent topics by interest", func(t *testing.T) {
		page, err := storage.Hot(context.Background(), feed.PeriodWeek, 1)
		require.NoError(t, err)
		require.Len(t, page.Items, 2)
		assert.Equal(t, busy, page.Items[0].Topic.ID)
		assert.Equal(t, calm, page.Items[1].Topic.ID)

		weekAgo := time.Now().UTC().Add(-7 * 24 * time.Hour)
		for _, item := range page.Items {
			assert.True(t, item.Topic.CreatedAt.After(weekAgo))
		}
	})

	t.Run("Month includes the older topic", func(t *testing.T) {
		page, err := storage.Hot(context.Background(), feed.PeriodMonth, 1)
		require.NoError(t, err)
		require.Len(t, page.Items, 3)
		assert.Equal(t, old, page.Items[0].Topic.ID)
	})

	t.Run("Unknown period", func(t *testing.T) {
		_, err := storage.Hot(context.Background(), feed.Period("bogus"), 1)
		assert.ErrorIs(t, err, errs.ErrInvalidInput)
	})
}

func TestFeedPostgresStorage_GroupAndUserTopics(t *testing.T) {
	cfg := testConfig()
	cfg.TopicsPerPage = 2
	storage := NewFeedPostgresStorage(cfg)

	oldDB := setupTestDB(t)
	defer teardownTestDB(oldDB)

	alice := createTestUser(t, "alice", "User")
	bob := createTestUser(t, "bob", "User")
	g1 := createTestGroup(t, cfg.RootGroupID, "One", false)
	g2 := createTestGroup(t, cfg.RootGroupID, "Two", false)
	for i := 0; i < 3; i++ {
		createTestTopic(t, g1, alice.ID, "a")
	}
	createTestTopic(t, g2, bob.ID, "b")

	t.Run("Group topics are paged", func(t *testing.T) {
		page, err := storage.GroupTopics(context.Background(), g1, 1)
		require.NoError(t, err)
		assert.Equal(t, 3, page.Total)
		assert.Len(t, page.Items, 2)
		assert.True(t, page.HasNext())

		page, err = storage.GroupTopics(context.Background(), g1, 2)
		require.NoError(t, err)
		assert.Len(t, page.Items, 1)
	})

	t.Run("User topics", func(t *testing.T) {
		page, err := storage.UserTopics(context.Background(), bob.ID, 1)
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, g2, page.Items[0].Topic.GroupID)
	})

	t.Run("Unknown owners", func(t *testing.T) {
		_, err := storage.GroupTopics(context.Background(), 9999, 1)
		assert.ErrorIs(t, err, errs.ErrNotFound)
		_, err = storage.UserTopics(context.Background(), 9999, 1)
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})
}

// TestForumScenario walks through a full discussion: a group, a topic, a comment by another user.
func TestForumScenario(t *testing.T) {
	cfg := testConfig()
	groups := NewGroupPostgresStorage(cfg)
	topics := NewTopicPostgresStorage(cfg)
	comments := NewCommentPostgresStorage(cfg)
	feeds := NewFeedPostgresStorage(cfg)

	oldDB := setupTestDB(t)
	defer teardownTestDB(oldDB)

	root, err := groups.GetGroup(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, root.Protected)

	mod := createTestUser(t, "mod", "Moderator")
	author := createTestUser(t, "alice", "User")
	commenter := createTestUser(t, "bob", "Participant")

	general, err := groups.CreateGroup(createUserContext(mod.ID), group.GroupInput{ParentID: 0, Title: "General", Priority: 3})
	require.NoError(t, err)

	t1, err := topics.CreateTopic(createUserContext(author.ID), topic.TopicInput{GroupID: general.ID, Title: "T1", Body: "hello"})
	require.NoError(t, err)

	c1, err := comments.CreateComment(createUserContext(commenter.ID), t1.ID, "C1")
	require.NoError(t, err)

	got, err := topics.GetTopic(context.Background(), t1.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Interest)

	latest, err := feeds.Latest(context.Background(), feed.TargetComments, 1)
	require.NoError(t, err)
	require.NotEmpty(t, latest.Comments.Items)
	assert.Equal(t, c1.Comment.ID, latest.Comments.Items[0].ID)

	children, err := groups.ListChildren(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "General", children[0].Group.Title)
	assert.Equal(t, 1, children[0].TopicsCount)
}
