package user

import (
	"context"

	"github.com/VitaminP8/forum/internal/auth"
	"github.com/VitaminP8/forum/models"
)

// Profile holds the fields a user edits on their own page.
// An empty Avatar resets it to the gravatar of the account email.
type Profile struct {
	Name     string
	Homeland string
	About    string
	Avatar   string
}

// AdminProfile is the administrator's view of an account.
type AdminProfile struct {
	Email     string
	Username  string
	Confirmed bool
	RoleID    uint
	Profile
}

// Stats counts the live content authored by a user.
type Stats struct {
	Topics   int
	Comments int
}

type UserStorage interface {
	RegisterUser(ctx context.Context, email, username, password string) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	// Ping refreshes the last-seen time of the acting user.
	Ping(ctx context.Context) error
	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	EditProfile(ctx context.Context, profile Profile) (*models.User, error)
	EditProfileAdmin(ctx context.Context, id uint, profile AdminProfile) (*models.User, error)
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error

	ResendConfirmation(ctx context.Context) error
	RequestEmailChange(ctx context.Context, newEmail, password string) error
	RequestPasswordReset(ctx context.Context, email string) error
	Confirm(ctx context.Context, token auth.Token) error
	ConfirmNewEmail(ctx context.Context, token auth.Token) error
	ConfirmReset(ctx context.Context, token auth.Token, newPassword string) error

	UserStats(ctx context.Context, id uint) (Stats, error)
	ListUsers(ctx context.Context, filter string, page int) (models.Page[models.User], error)
}
