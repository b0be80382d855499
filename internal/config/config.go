package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const devSecretKey = "dev-secret-change-in-production"

type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Mail     MailConfig     `mapstructure:"mail"`
	Forum    ForumConfig    `mapstructure:"forum"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig selects the store. Driver is "postgres" or "sqlite".
type DatabaseConfig struct {
	Driver     string `mapstructure:"driver"`
	Host       string `mapstructure:"host"`
	Port       string `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	Name       string `mapstructure:"name"`
	SSLMode    string `mapstructure:"sslmode"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// DSN builds the postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode,
	)
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type MailConfig struct {
	SubjectPrefix string `mapstructure:"subject_prefix"`
	Sender        string `mapstructure:"sender"`
	SMTPHost      string `mapstructure:"smtp_host"`
	SMTPPort      int    `mapstructure:"smtp_port"`
	SMTPUsername  string `mapstructure:"smtp_username"`
	SMTPPassword  string `mapstructure:"smtp_password"`
}

// ForumConfig holds the rules of the forum itself.
type ForumConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	AdminEmail         string        `mapstructure:"admin_email"`
	SecretKey          string        `mapstructure:"secret_key"`
	TokenTTL           time.Duration `mapstructure:"token_ttl"`
	GravatarURL        string        `mapstructure:"gravatar_url"`
	RootGroupID        uint          `mapstructure:"root_group_id"`
	ProtectedRootGroup bool          `mapstructure:"protected_root_group"`
	MinPriority        int           `mapstructure:"min_priority"`
	MaxPriority        int           `mapstructure:"max_priority"`
	TopicsPerPage      int           `mapstructure:"topics_per_page"`
	CommentsPerPage    int           `mapstructure:"comments_per_page"`
	MessagesPerPage    int           `mapstructure:"messages_per_page"`
	UsersPerPage       int           `mapstructure:"users_per_page"`
}

// ValidPriority reports whether p is one of the allowed group priorities.
func (c ForumConfig) ValidPriority(p int) bool {
	return p >= c.MinPriority && p <= c.MaxPriority
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "password")
	v.SetDefault("db.name", "forum")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.sqlite_path", "forum.db")

	v.SetDefault("redis.url", "redis://localhost:6379/0")

	v.SetDefault("mail.subject_prefix", "[D3-Forum]")
	v.SetDefault("mail.sender", "D3-Forum Admin <forum@example.com>")
	v.SetDefault("mail.smtp_host", "smtp.googlemail.com")
	v.SetDefault("mail.smtp_port", 587)
	v.SetDefault("mail.smtp_username", "")
	v.SetDefault("mail.smtp_password", "")

	v.SetDefault("forum.base_url", "http://localhost:8080")
	v.SetDefault("forum.admin_email", "forum_admin@example.com")
	v.SetDefault("forum.secret_key", "")
	v.SetDefault("forum.token_ttl", time.Hour)
	v.SetDefault("forum.gravatar_url", "https://secure.gravatar.com/avatar")
	v.SetDefault("forum.root_group_id", 0)
	v.SetDefault("forum.protected_root_group", true)
	v.SetDefault("forum.min_priority", 1)
	v.SetDefault("forum.max_priority", 10)
	v.SetDefault("forum.topics_per_page", 20)
	v.SetDefault("forum.comments_per_page", 20)
	v.SetDefault("forum.messages_per_page", 20)
	v.SetDefault("forum.users_per_page", 20)
}

// Default returns the configuration built from defaults only.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// defaults always decode
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load reads .env, an optional config.yaml and the environment, in increasing priority.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug(".env file not found")
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	// DB_HOST overrides db.host and so on
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Forum.SecretKey == "" {
		c.Forum.SecretKey = devSecretKey
		slog.Warn("FORUM_SECRET_KEY is not set, using an insecure development key")
	}
	if c.Forum.MinPriority > c.Forum.MaxPriority {
		return fmt.Errorf("invalid priority range %d..%d", c.Forum.MinPriority, c.Forum.MaxPriority)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	return nil
}
