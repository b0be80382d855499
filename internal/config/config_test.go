package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, uint(0), cfg.Forum.RootGroupID)
	assert.True(t, cfg.Forum.ProtectedRootGroup)
	assert.Equal(t, 1, cfg.Forum.MinPriority)
	assert.Equal(t, 10, cfg.Forum.MaxPriority)
	assert.Equal(t, 20, cfg.Forum.TopicsPerPage)
	assert.Equal(t, 20, cfg.Forum.CommentsPerPage)
	assert.Equal(t, time.Hour, cfg.Forum.TokenTTL)
	assert.Equal(t, "[D3-Forum]", cfg.Mail.SubjectPrefix)
}

func TestLoad(t *testing.T) {
	t.Run("Environment overrides defaults", func(t *testing.T) {
		t.Setenv("DB_HOST", "pg")
		t.Setenv("DB_DRIVER", "sqlite")
		t.Setenv("FORUM_ADMIN_EMAIL", "boss@example.com")
		t.Setenv("FORUM_TOPICS_PER_PAGE", "5")
		t.Setenv("FORUM_SECRET_KEY", "s3cret")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "pg", cfg.Database.Host)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, "boss@example.com", cfg.Forum.AdminEmail)
		assert.Equal(t, 5, cfg.Forum.TopicsPerPage)
		assert.Equal(t, "s3cret", cfg.Forum.SecretKey)
	})

	t.Run("Missing secret falls back to development key", func(t *testing.T) {
		t.Setenv("FORUM_SECRET_KEY", "")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, devSecretKey, cfg.Forum.SecretKey)
	})

	t.Run("Unknown driver is rejected", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "mysql")

		_, err := Load()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown database driver")
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "h", Port: "1", User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=h user=u password=p dbname=n port=1 sslmode=disable", c.DSN())
}

func TestForumConfig_ValidPriority(t *testing.T) {
	c := Default().Forum
	assert.True(t, c.ValidPriority(1))
	assert.True(t, c.ValidPriority(10))
	assert.False(t, c.ValidPriority(0))
	assert.False(t, c.ValidPriority(11))
}
