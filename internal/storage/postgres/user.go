package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jinzhu/gorm"
	"golang.org/x/crypto/bcrypt"

	"github.com/VitaminP8/forum/internal/auth"
	"github.com/VitaminP8/forum/internal/config"
	"github.com/VitaminP8/forum/internal/errs"
	"github.com/VitaminP8/forum/internal/mail"
	"github.com/VitaminP8/forum/internal/user"
	"github.com/VitaminP8/forum/models"
)

const avatarSize = 256

// passwordCost is lowered by tests
var passwordCost = bcrypt.DefaultCost

type UserPostgresStorage struct {
	cfg    config.ForumConfig
	mailer mail.Mailer
	tokens *auth.Tokens
}

func NewUserPostgresStorage(cfg config.ForumConfig, mailer mail.Mailer, tokens *auth.Tokens) *UserPostgresStorage {
	return &UserPostgresStorage{cfg: cfg, mailer: mailer, tokens: tokens}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func hashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("empty password: %w", errs.ErrInvalidInput)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func checkPassword(u *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// checkUnique fails with ErrConflict if another account uses the email or the username.
func checkUnique(db *gorm.DB, exceptID uint, email, username string) error {
	query := db.Model(&models.User{}).
		Where("email = ? OR username = ? OR username_normalized = ?", email, username, normalizeUsername(username))
	if exceptID != 0 {
		query = query.Where("id <> ?", exceptID)
	}

	var count int
	if err := query.Count(&count).Error; err != nil {
		return fmt.Errorf("could not check user uniqueness: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("email or username already taken: %w", errs.ErrConflict)
	}
	return nil
}

// roleFor picks the administrator role for the configured admin email and the default role otherwise.
func (s *UserPostgresStorage) roleFor(db *gorm.DB, email string) (*models.Role, error) {
	query := db.Where("is_default = ?", true)
	if s.cfg.AdminEmail != "" && email == normalizeEmail(s.cfg.AdminEmail) {
		query = db.Where("permissions = ?", models.PermissionAll)
	}

	var role models.Role
	err := query.First(&role).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, ErrNoDefaultRole
	}
	if err != nil {
		return nil, fmt.Errorf("could not get role: %w", err)
	}
	return &role, nil
}

func (s *UserPostgresStorage) link(path, token string) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + path + token
}

// sendMail queues a mail carrying a signed token. Failures are logged and never reach the caller.
func (s *UserPostgresStorage) sendMail(ctx context.Context, u *models.User, kind mail.Kind, to, path string, token auth.Token) {
	signed, err := s.tokens.Generate(token)
	if err != nil {
		slog.Error("Could not generate token", "kind", kind, "user_id", u.ID, "error", err)
		return
	}

	email, err := mail.Compose(kind, to, mail.Data{Username: u.Username, Link: s.link(path, signed)})
	if err != nil {
		slog.Error("Could not compose email", "kind", kind, "user_id", u.ID, "error", err)
		return
	}

	if err := s.mailer.Send(ctx, email); err != nil {
		slog.Error("Could not queue email", "kind", kind, "user_id", u.ID, "error", err)
	}
}

func (s *UserPostgresStorage) RegisterUser(ctx context.Context, email, username, password string) (*models.User, error) {
	email = normalizeEmail(email)
	username = strings.TrimSpace(username)
	if email == "" || username == "" {
		return nil, fmt.Errorf("email and username are required: %w", errs.ErrInvalidInput)
	}

	if err := checkUnique(DB, 0, email, username); err != nil {
		return nil, err
	}

	hashed, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	role, err := s.roleFor(DB, email)
	if err != nil {
		return nil, err
	}

	u := &models.User{
		Email:              email,
		Username:           username,
		UsernameNormalized: normalizeUsername(username),
		PasswordHash:       hashed,
		RoleID:             role.ID,
		LastSeen:           gorm.NowFunc(),
	}
	u.Avatar = u.Gravatar(s.cfg.GravatarURL, avatarSize)

	err = DB.Create(u).Error
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("email or username already taken: %w", errs.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	u.Role = role

	slog.Info("User registered", "user_id", u.ID, "role", role.Name)
	s.sendMail(ctx, u, mail.KindConfirmAccount, u.Email, "/auth/confirm/", auth.Token{UserID: u.ID})
	return u, nil
}

func (s *UserPostgresStorage) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var u models.User
	err := DB.Preload("Role").Where("email = ?", normalizeEmail(email)).First(&u).Error
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		return nil, fmt.Errorf("could not get user: %w", err)
	}
	if err != nil || !checkPassword(&u, password) {
		return nil, fmt.Errorf("invalid email or password: %w", errs.ErrForbidden)
	}
	return &u, nil
}

func (s *UserPostgresStorage) Ping(ctx context.Context) error {
	u, err := currentUser(ctx, DB)
	if err != nil || u == nil {
		return err
	}
	err = DB.Model(&models.User{}).Where("id = ?", u.ID).UpdateColumn("last_seen", gorm.NowFunc()).Error
	if err != nil {
		return fmt.Errorf("could not update last seen of user %d: %w", u.ID, err)
	}
	return nil
}

func getUser(db *gorm.DB, query string, arg interface{}) (*models.User, error) {
	var u models.User
	err := db.Preload("Role").Where(query, arg).First(&u).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, fmt.Errorf("user %v: %w", arg, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("could not get user %v: %w", arg, err)
	}
	return &u, nil
}

func (s *UserPostgresStorage) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return getUser(DB, "id = ?", id)
}

func (s *UserPostgresStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return getUser(DB, "username_normalized = ?", normalizeUsername(username))
}

func (s *UserPostgresStorage) profileUpdates(u *models.User, p user.Profile) map[string]interface{} {
	avatar := strings.TrimSpace(p.Avatar)
	if avatar == "" {
		avatar = u.Gravatar(s.cfg.GravatarURL, avatarSize)
	}
	return map[string]interface{}{
		"name":     strings.TrimSpace(p.Name),
		"homeland": strings.TrimSpace(p.Homeland),
		"about":    p.About,
		"avatar":   avatar,
	}
}

func (s *UserPostgresStorage) EditProfile(ctx context.Context, p user.Profile) (*models.User, error) {
	actor, err := requireActor(ctx, DB, models.PermissionRead)
	if err != nil {
		return nil, err
	}

	err = DB.Model(&models.User{}).Where("id = ?", actor.ID).Updates(s.profileUpdates(actor, p)).Error
	if err != nil {
		return nil, fmt.Errorf("could not update profile of user %d: %w", actor.ID, err)
	}

	slog.Info("Profile updated", "user_id", actor.ID)
	return getUser(DB, "id = ?", actor.ID)
}

func (s *UserPostgresStorage) EditProfileAdmin(ctx context.Context, id uint, p user.AdminProfile) (*models.User, error) {
	actor, err := requireActor(ctx, DB, models.PermissionAdminister)
	if err != nil {
		return nil, err
	}

	email := normalizeEmail(p.Email)
	username := strings.TrimSpace(p.Username)
	if email == "" || username == "" {
		return nil, fmt.Errorf("email and username are required: %w", errs.ErrInvalidInput)
	}

	err = DB.Transaction(func(tx *gorm.DB) error {
		target, err := getUser(tx, "id = ?", id)
		if err != nil {
			return err
		}

		var roles int
		if err := tx.Model(&models.Role{}).Where("id = ?", p.RoleID).Count(&roles).Error; err != nil {
			return err
		}
		if roles == 0 {
			return fmt.Errorf("role %d does not exist: %w", p.RoleID, errs.ErrInvalidInput)
		}

		if err := checkUnique(tx, id, email, username); err != nil {
			return err
		}

		target.Email = email
		updates := s.profileUpdates(target, p.Profile)
		updates["email"] = email
		updates["username"] = username
		updates["username_normalized"] = normalizeUsername(username)
		updates["confirmed"] = p.Confirmed
		updates["role_id"] = p.RoleID

		return tx.Model(&models.User{}).Where("id = ?", id).Updates(updates).Error
	})
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("email or username already taken: %w", errs.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("could not update user %d: %w", id, err)
	}

	slog.Info("User updated by administrator", "user_id", id, "admin_id", actor.ID)
	return getUser(DB, "id = ?", id)
}

func (s *UserPostgresStorage) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	u, err := currentUser(ctx, DB)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("unauthorized: %w", errs.ErrForbidden)
	}
	if !checkPassword(u, oldPassword) {
		return fmt.Errorf("invalid password: %w", errs.ErrForbidden)
	}
	return s.setPassword(u.ID, newPassword)
}

func (s *UserPostgresStorage) setPassword(id uint, password string) error {
	hashed, err := hashPassword(password)
	if err != nil {
		return err
	}
	err = DB.Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{"password_hash": hashed}).Error
	if err != nil {
		return fmt.Errorf("could not update password of user %d: %w", id, err)
	}
	slog.Info("Password updated", "user_id", id)
	return nil
}

func (s *UserPostgresStorage) ResendConfirmation(ctx context.Context) error {
	u, err := currentUser(ctx, DB)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("unauthorized: %w", errs.ErrForbidden)
	}
	if u.Confirmed {
		return nil
	}
	s.sendMail(ctx, u, mail.KindConfirmAccount, u.Email, "/auth/confirm/", auth.Token{UserID: u.ID})
	return nil
}

func (s *UserPostgresStorage) RequestEmailChange(ctx context.Context, newEmail, password string) error {
	u, err := currentUser(ctx, DB)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("unauthorized: %w", errs.ErrForbidden)
	}
	if !checkPassword(u, password) {
		return fmt.Errorf("invalid password: %w", errs.ErrForbidden)
	}

	newEmail = normalizeEmail(newEmail)
	if newEmail == "" {
		return fmt.Errorf("empty email: %w", errs.ErrInvalidInput)
	}
	if err := checkUnique(DB, u.ID, newEmail, u.Username); err != nil {
		return err
	}

	s.sendMail(ctx, u, mail.KindConfirmNewEmail, newEmail, "/auth/change-email/", auth.Token{UserID: u.ID, NewEmail: newEmail})
	return nil
}

// RequestPasswordReset mails a reset link. Unknown addresses are ignored so they cannot be probed.
func (s *UserPostgresStorage) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := getUser(DB, "email = ?", normalizeEmail(email))
	if errors.Is(err, errs.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	s.sendMail(ctx, u, mail.KindResetPassword, u.Email, "/auth/reset/", auth.Token{UserID: u.ID})
	return nil
}

// tokenOwner returns the acting user if the token was issued for them.
func tokenOwner(ctx context.Context, token auth.Token) (*models.User, error) {
	u, err := currentUser(ctx, DB)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("unauthorized: %w", errs.ErrForbidden)
	}
	if token.UserID != u.ID {
		return nil, fmt.Errorf("token was issued for another user: %w", errs.ErrForbidden)
	}
	return u, nil
}

func (s *UserPostgresStorage) Confirm(ctx context.Context, token auth.Token) error {
	u, err := tokenOwner(ctx, token)
	if err != nil {
		return err
	}
	if u.Confirmed {
		return nil
	}

	err = DB.Model(&models.User{}).Where("id = ?", u.ID).Updates(map[string]interface{}{"confirmed": true}).Error
	if err != nil {
		return fmt.Errorf("could not confirm user %d: %w", u.ID, err)
	}
	slog.Info("User confirmed", "user_id", u.ID)
	return nil
}

func (s *UserPostgresStorage) ConfirmNewEmail(ctx context.Context, token auth.Token) error {
	u, err := tokenOwner(ctx, token)
	if err != nil {
		return err
	}
	if token.NewEmail == "" {
		return fmt.Errorf("token carries no email: %w", errs.ErrInvalidInput)
	}
	newEmail := normalizeEmail(token.NewEmail)

	updates := map[string]interface{}{"email": newEmail}
	// a gravatar follows the address it was built from
	if u.Avatar == u.Gravatar(s.cfg.GravatarURL, avatarSize) {
		changed := *u
		changed.Email = newEmail
		updates["avatar"] = changed.Gravatar(s.cfg.GravatarURL, avatarSize)
	}

	err = DB.Transaction(func(tx *gorm.DB) error {
		var taken int
		if err := tx.Model(&models.User{}).Where("email = ? AND id <> ?", newEmail, u.ID).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return fmt.Errorf("email already taken: %w", errs.ErrConflict)
		}
		return tx.Model(&models.User{}).Where("id = ?", u.ID).Updates(updates).Error
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("email already taken: %w", errs.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("could not change email of user %d: %w", u.ID, err)
	}

	slog.Info("Email changed", "user_id", u.ID)
	return nil
}

func (s *UserPostgresStorage) ConfirmReset(ctx context.Context, token auth.Token, newPassword string) error {
	u, err := getUser(DB, "id = ?", token.UserID)
	if err != nil {
		return err
	}
	return s.setPassword(u.ID, newPassword)
}

func (s *UserPostgresStorage) UserStats(ctx context.Context, id uint) (user.Stats, error) {
	var stats user.Stats
	if _, err := getUser(DB, "id = ?", id); err != nil {
		return stats, err
	}

	if err := DB.Model(&models.Topic{}).Where("author_id = ? AND deleted = ?", id, false).Count(&stats.Topics).Error; err != nil {
		return stats, fmt.Errorf("could not count topics of user %d: %w", id, err)
	}
	if err := DB.Model(&models.Comment{}).Where("author_id = ? AND deleted = ?", id, false).Count(&stats.Comments).Error; err != nil {
		return stats, fmt.Errorf("could not count comments of user %d: %w", id, err)
	}
	return stats, nil
}

// ListUsers pages the community, optionally filtered by a substring of the username or name.
func (s *UserPostgresStorage) ListUsers(ctx context.Context, filter string, page int) (models.Page[models.User], error) {
	query := DB.Model(&models.User{})
	if f := strings.ToLower(strings.TrimSpace(filter)); f != "" {
		pattern := "%" + f + "%"
		query = query.Where("username_normalized LIKE ? OR LOWER(name) LIKE ?", pattern, pattern)
	}
	return paginate[models.User](query, "username_normalized asc, id asc", page, s.cfg.UsersPerPage, "Role")
}
