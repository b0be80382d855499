package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VitaminP8/forum/internal/errs"
	"github.com/VitaminP8/forum/internal/group"
	"github.com/VitaminP8/forum/models"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }
func uintPtr(u uint) *uint    { return &u }

func TestGroupPostgresStorage_CreateGroup(t *testing.T) {
	cfg := testConfig()
	storage := NewGroupPostgresStorage(cfg)

	t.Run("Moderator creates a child of the root", func(t *testing.T) {
		oldDB := setupTestDB(t)
		defer teardownTestDB(oldDB)

		mod := createTestUser(t, "mod", "Moderator")

		g, err := storage.CreateGroup(createUserContext(mod.ID), group.GroupInput{
			ParentID: cfg.RootGroupID,
			Title:    "General",
			Priority: 3,
		})
		require.NoError(t, err)
		assert.NotZero(t, g.ID)
		require.NotNil(t, g.GroupID)
		assert.Equal(t, cfg.RootGroupID, *g.GroupID)
		assert.Equal(t, mod.ID, g.AuthorID)
	})

	t.Run("Priority outside the allowed range", func(t *testing.T) {
		oldDB := setupTestDB(t)
		defer teardownTestDB(oldDB)

		mod := createTestUser(t, "mod", "Moderator")
		ctx := createUserContext(mod.ID)

		_, err := storage.CreateGroup(ctx, group.GroupInput{ParentID: cfg.RootGroupID, Title: "G", Priority: 0})
		assert.ErrorIs(t, err, errs.ErrInvalidInput)
		_, err = storage.CreateGroup(ctx, group.GroupInput{ParentID: cfg.RootGroupID, Title: "G", Priority: 11})
		assert.ErrorIs(t, err, errs.ErrInvalidInput)
	})

	t.Run("Parent must be live", func(t *testing.T) {
		oldDB := setupTestDB(t)
		defer teardownTestDB(oldDB)

		mod := createTestUser(t, "mod", "Moderator")
		parent := createTestGroup(t, cfg.RootGroupID, "Old", false)
		require.NoError(t, DB.Model(&models.TopicGroup{}).Where("id = ?", parent).UpdateColumn("deleted", true).Error)

		_, err := storage.CreateGroup(createUserContext(mod.ID), group.GroupInput{ParentID: parent, Title: "Child", Priority: 1})
		assert.ErrorIs(t, err, errs.ErrNotFound)

		_, err = storage.CreateGroup(createUserContext(mod.ID), group.GroupInput{ParentID: 9999, Title: "Child", Priority: 1})
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("Plain users and anonymous visitors are refused", func(t *testing.T) {
		oldDB := setupTestDB(t)
		defer teardownTestDB(oldDB)

		u := createTestUser(t, "user", "User")
		input := group.GroupInput{ParentID: cfg.RootGroupID, Title: "G", Priority: 1}

		_, err := storage.CreateGroup(createUserContext(u.ID), input)
		assert.ErrorIs(t, err, errs.ErrForbidden)
		_, err = storage.CreateGroup(context.Background(), input)
		assert.ErrorIs(t, err, errs.ErrForbidden)
	})

	t.Run("Unconfirmed moderator", func(t *testing.T) {
		oldDB := setupTestDB(t)
		defer teardownTestDB(oldDB)

		mod := createTestUser(t, "mod", "Moderator")
		require.NoError(t, DB.Model(&models.User{}).Where("id = ?", mod.ID).UpdateColumn("confirmed", false).Error)

		_, err := storage.CreateGroup(createUserContext(mod.ID), group.GroupInput{ParentID: cfg.RootGroupID, Title: "G", Priority: 1})
		assert.ErrorIs(t, err, errs.ErrUnconfirmed)
	})
}

func TestGroupPostgresStorage_ListChildren(t *testing.T) {
	cfg := testConfig()
	storage := NewGroupPostgresStorage(cfg)

	oldDB := setupTestDB(t)
	defer teardownTestDB(oldDB)

	mod := createTestUser(t, "mod", "Moderator")
	ctx := createUserContext(mod.ID)

	low, err := storage.CreateGroup(ctx, group.GroupInput{ParentID: cfg.RootGroupID, Title: "Low", Priority: 5})
	require.NoError(t, err)
	older, err := storage.CreateGroup(ctx, group.GroupInput{ParentID: cfg.RootGroupID, Title: "Older", Priority: 1})
	require.NoError(t, err)
	newer, err := storage.CreateGroup(ctx, group.GroupInput{ParentID: cfg.RootGroupID, Title: "Newer", Priority: 1})
	require.NoError(t, err)
	gone, err := storage.CreateGroup(ctx, group.GroupInput{ParentID: cfg.RootGroupID, Title: "Gone", Priority: 1})
	require.NoError(t, err)
	_, err = storage.DeleteGroup(ctx, gone.ID)
	require.NoError(t, err)

	createTestTopic(t, older.ID, mod.ID, "one")
	createTestTopic(t, older.ID, mod.ID, "two")
	deleted := createTestTopic(t, older.ID, mod.ID, "deleted")
	require.NoError(t, DB.Model(&models.Topic{}).Where("id = ?", deleted).UpdateColumn("deleted", true).Error)

	t.Run("Ordered by priority then newest first with live topic counts", func(t *testing.T) {
		items, err := storage.ListChildren(context.Background(), cfg.RootGroupID)
		require.NoError(t, err)
		require.Len(t, items, 3)

		assert.Equal(t, newer.ID, items[0].Group.ID)
		assert.Equal(t, older.ID, items[1].Group.ID)
		assert.Equal(t, low.ID, items[2].Group.ID)

		assert.Equal(t, 0, items[0].TopicsCount)
		assert.Equal(t, 2, items[1].TopicsCount)
	})

	t.Run("Deleted group", func(t *testing.T) {
		_, err := storage.ListChildren(context.Background(), gone.ID)
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})
}

func TestGroupPostgresStorage_EditGroup(t *testing.T) {
	cfg := testConfig()
	storage := NewGroupPostgresStorage(cfg)

	t.Run("Edit fields of a regular group", func(t *testing.T) {
		oldDB := setupTestDB(t)
		defer teardownTestDB(oldDB)

		mod := createTestUser(t, "mod", "Moderator")
		id := createTestGroup(t, cfg.RootGroupID, "General", false)

		g, err := storage.EditGroup(createUserContext(mod.ID), id, group.GroupPatch{
			Title:     strPtr("Renamed"),
			Priority:  intPtr(7),
			Protected: boolPtr(true),
		})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", g.Title)
		assert.Equal(t, 7, g.Priority)
		assert.True(t, g.Protected)
	})

	t.Run("Root only accepts protection changes", func(t *testing.T) {
		oldDB := setupTestDB(t)
		defer teardownTestDB(oldDB)

		mod := createTestUser(t, "mod", "Moderator")
		ctx := createUserContext(mod.ID)

		_, err := storage.EditGroup(ctx, cfg.RootGroupID, group.GroupPatch{Title: strPtr("New root")})
		assert.ErrorIs(t, err, errs.ErrInvalidInput)
		_, err = storage.EditGroup(ctx, cfg.RootGroupID, group.GroupPatch{Priority: intPtr(2)})
		assert.ErrorIs(t, err, errs.ErrInvalidInput)

		g, err := storage.EditGroup(ctx, cfg.RootGroupID, group.GroupPatch{Protected: boolPtr(false)})
		require.NoError(t, err)
		assert.False(t, g.Protected)
		assert.Equal(t, "Forum", g.Title)
	})

	t.Run("Reparenting rejects the group itself and its descendants", func(t *testing.T) {
		oldDB := setupTestDB(t)
		defer teardownTestDB(oldDB)

		mod := createTestUser(t, "mod", "Moderator")
		ctx := createUserContext(mod.ID)

		a := createTestGroup(t, cfg.RootGroupID, "A", false)
		b := createTestGroup(t, a, "B", false)
		c := createTestGroup(t, b, "C", false)
		other := createTestGroup(t, cfg.RootGroupID, "Other", false)

		_, err := storage.EditGroup(ctx, a, group.GroupPatch{ParentID: uintPtr(a)})
		assert.ErrorIs(t, err, errs.ErrInvalidInput)
		_, err = storage.EditGroup(ctx, a, group.GroupPatch{ParentID: uintPtr(c)})
		assert.ErrorIs(t, err, errs.ErrInvalidInput)

		g, err := storage.EditGroup(ctx, b, group.GroupPatch{ParentID: uintPtr(other)})
		require.NoError(t, err)
		require.NotNil(t, g.GroupID)
		assert.Equal(t, other, *g.GroupID)

		below, err := storage.IsDescendant(context.Background(), c, other)
		require.NoError(t, err)
		assert.True(t, below)
		below, err = storage.IsDescendant(context.Background(), c, a)
		require.NoError(t, err)
		assert.False(t, below)
	})
}

func TestGroupPostgresStorage_IsDescendant(t *testing.T) {
	cfg := testConfig()
	storage := NewGroupPostgresStorage(cfg)

	oldDB := setupTestDB(t)
	defer teardownTestDB(oldDB)

	a := createTestGroup(t, cfg.RootGroupID, "A", false)
	b := createTestGroup(t, a, "B", false)

	t.Run("Chain up to the root", func(t *testing.T) {
		for _, tc := range []struct {
			id, ancestor uint
			want         bool
		}{
			{b, a, true},
			{b, cfg.RootGroupID, true},
			{a, a, true},
			{a, b, false},
			{cfg.RootGroupID, a, false},
		} {
			got, err := storage.IsDescendant(context.Background(), tc.id, tc.ancestor)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got, "IsDescendant(%d, %d)", tc.id, tc.ancestor)
		}
	})

	t.Run("Corrupted tree does not loop forever", func(t *testing.T) {
		require.NoError(t, DB.Model(&models.TopicGroup{}).Where("id = ?", a).UpdateColumn("group_id", b).Error)
		_, err := storage.IsDescendant(context.Background(), b, 9999)
		assert.Error(t, err)
	})
}

func TestGroupPostgresStorage_DeleteGroup(t *testing.T) {
	cfg := testConfig()
	storage := NewGroupPostgresStorage(cfg)

	t.Run("Empty group is deleted and the parent returned", func(t *testing.T) {
		oldDB := setupTestDB(t)
		defer teardownTestDB(oldDB)

		mod := createTestUser(t, "mod", "Moderator")
		parent := createTestGroup(t, cfg.RootGroupID, "Parent", false)
		child := createTestGroup(t, parent, "Child", false)

		parentID, err := storage.DeleteGroup(createUserContext(mod.ID), child)
		require.NoError(t, err)
		assert.Equal(t, parent, parentID)

		_, err = storage.GetGroup(context.Background(), child)
		assert.ErrorIs(t, err, errs.ErrNotFound)

		items, err := storage.ListChildren(context.Background(), parent)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("Group with a live child or topic is a conflict", func(t *testing.T) {
		oldDB := setupTestDB(t)
		defer teardownTestDB(oldDB)

		mod := createTestUser(t, "mod", "Moderator")
		ctx := createUserContext(mod.ID)

		withChild := createTestGroup(t, cfg.RootGroupID, "WithChild", false)
		createTestGroup(t, withChild, "Child", false)
		_, err := storage.DeleteGroup(ctx, withChild)
		assert.ErrorIs(t, err, errs.ErrConflict)

		withTopic := createTestGroup(t, cfg.RootGroupID, "WithTopic", false)
		topicID := createTestTopic(t, withTopic, mod.ID, "T")
		_, err = storage.DeleteGroup(ctx, withTopic)
		assert.ErrorIs(t, err, errs.ErrConflict)

		// a deleted topic no longer blocks
		require.NoError(t, DB.Model(&models.Topic{}).Where("id = ?", topicID).UpdateColumn("deleted", true).Error)
		_, err = storage.DeleteGroup(ctx, withTopic)
		assert.NoError(t, err)
	})

	t.Run("Root cannot be deleted", func(t *testing.T) {
		oldDB := setupTestDB(t)
		defer teardownTestDB(oldDB)

		admin := createTestUser(t, "admin", "Administrator")
		_, err := storage.DeleteGroup(createUserContext(admin.ID), cfg.RootGroupID)
		assert.ErrorIs(t, err, errs.ErrInvalidInput)
	})

	t.Run("Creating under a deleted parent fails", func(t *testing.T) {
		oldDB := setupTestDB(t)
		defer teardownTestDB(oldDB)

		mod := createTestUser(t, "mod", "Moderator")
		ctx := createUserContext(mod.ID)
		parent := createTestGroup(t, cfg.RootGroupID, "Parent", false)

		_, err := storage.DeleteGroup(ctx, parent)
		require.NoError(t, err)

		_, err = storage.CreateGroup(ctx, group.GroupInput{ParentID: parent, Title: "Orphan", Priority: 1})
		assert.ErrorIs(t, err, errs.ErrNotFound)

		var orphans int
		require.NoError(t, DB.Model(&models.TopicGroup{}).Where("group_id = ? AND deleted = ?", parent, false).Count(&orphans).Error)
		assert.Zero(t, orphans)
	})
}
