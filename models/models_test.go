package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermission_Has(t *testing.T) {
	user := PermissionRead | PermissionParticipate | PermissionWrite

	assert.True(t, user.Has(PermissionRead))
	assert.True(t, user.Has(PermissionRead|PermissionWrite))
	assert.False(t, user.Has(PermissionModerate))
	assert.False(t, user.Has(PermissionWrite|PermissionModerate))
	assert.True(t, PermissionAll.Has(PermissionAdminister|PermissionModerate))
}

func TestUser_Can(t *testing.T) {
	t.Run("Anonymous user can do nothing", func(t *testing.T) {
		var anonymous *User
		assert.False(t, anonymous.Can(PermissionRead))
		assert.False(t, anonymous.IsModerator())
		assert.False(t, anonymous.IsAdministrator())
	})

	t.Run("User without role can do nothing", func(t *testing.T) {
		u := &User{}
		assert.False(t, u.Can(PermissionRead))
	})

	t.Run("Moderator role", func(t *testing.T) {
		u := &User{Role: &Role{Permissions: PermissionRead | PermissionParticipate | PermissionWrite | PermissionModerate}}
		assert.True(t, u.IsModerator())
		assert.False(t, u.IsAdministrator())
		assert.True(t, u.Can(PermissionWrite))
	})

	t.Run("Administrator role", func(t *testing.T) {
		u := &User{Role: &Role{Permissions: PermissionAll}}
		assert.True(t, u.IsModerator())
		assert.True(t, u.IsAdministrator())
	})
}

func TestSetBody(t *testing.T) {
	t.Run("Topic body renders and sanitizes", func(t *testing.T) {
		topic := &Topic{}
		topic.SetBody("**bold** <script>alert(1)</script>")
		assert.Equal(t, "**bold** <script>alert(1)</script>", topic.Body)
		assert.Contains(t, topic.BodyHTML, "<strong>bold</strong>")
		assert.NotContains(t, topic.BodyHTML, "<script>")
	})

	t.Run("Rewriting the body regenerates the html", func(t *testing.T) {
		comment := &Comment{}
		comment.SetBody("first")
		comment.SetBody("_second_")
		assert.NotContains(t, comment.BodyHTML, "first")
		assert.Contains(t, comment.BodyHTML, "<em>second</em>")
	})
}

func TestMessage_OtherParty(t *testing.T) {
	msg := &Message{AuthorID: 1, ReceiverID: 2}
	assert.Equal(t, uint(2), msg.OtherParty(1))
	assert.Equal(t, uint(1), msg.OtherParty(2))
}

func TestPage(t *testing.T) {
	p := Page[int]{Number: 2, PerPage: 20, Total: 41}
	assert.Equal(t, 3, p.Pages())
	assert.True(t, p.HasPrev())
	assert.True(t, p.HasNext())

	empty := Page[int]{Number: 1, PerPage: 20}
	assert.Equal(t, 1, empty.Pages())
	assert.False(t, empty.HasNext())

	assert.Equal(t, 1, PageOf(1, 20))
	assert.Equal(t, 1, PageOf(20, 20))
	assert.Equal(t, 2, PageOf(21, 20))
	assert.Equal(t, 1, PageOf(0, 20))
}

func TestGravatar(t *testing.T) {
	u := &User{Email: "someone@example.com"}
	url := u.Gravatar("https://secure.gravatar.com/avatar", 256)
	assert.Contains(t, url, "https://secure.gravatar.com/avatar/")
	assert.Contains(t, url, "s=256")
}
