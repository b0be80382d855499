package models

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/VitaminP8/forum/internal/markup"
)

// Permission is a bitmask of capabilities granted by a role.
type Permission int

const (
	PermissionRead        Permission = 0x01
	PermissionParticipate Permission = 0x02
	PermissionWrite       Permission = 0x04
	PermissionModerate    Permission = 0x08
	PermissionAdminister  Permission = 0x80

	// PermissionAll is the administrator mask.
	PermissionAll Permission = 0xff
)

// Has reports whether every bit of perm is set in p.
func (p Permission) Has(perm Permission) bool {
	return p&perm == perm
}

type Role struct {
	ID          uint   `gorm:"primary_key"`
	Name        string `gorm:"type:varchar(64);unique_index"`
	IsDefault   bool   `gorm:"index"`
	Permissions Permission
}

type User struct {
	ID                 uint   `gorm:"primary_key"`
	Email              string `gorm:"type:varchar(64);unique_index"`
	Username           string `gorm:"type:varchar(64);unique_index"`
	UsernameNormalized string `gorm:"type:varchar(64);unique_index"`
	PasswordHash       string `gorm:"type:varchar(128)"`
	Confirmed          bool
	RoleID             uint
	Role               *Role `gorm:"association_autoupdate:false;association_autocreate:false"`

	Name     string `gorm:"type:varchar(64)"`
	Homeland string `gorm:"type:varchar(64)"`
	About    string `gorm:"type:text"`
	Avatar   string `gorm:"type:varchar(256)"`

	CreatedAt time.Time
	UpdatedAt time.Time
	LastSeen  time.Time
}

// Can is nil-safe: a nil user is the anonymous visitor and can do nothing.
func (u *User) Can(perm Permission) bool {
	return u != nil && u.Role != nil && u.Role.Permissions.Has(perm)
}

func (u *User) IsModerator() bool {
	return u.Can(PermissionModerate)
}

func (u *User) IsAdministrator() bool {
	return u.Can(PermissionAdminister)
}

// Gravatar builds the default avatar URL for the user's email.
func (u *User) Gravatar(baseURL string, size int) string {
	sum := md5.Sum([]byte(u.Email))
	return fmt.Sprintf("%s/%s?s=%d&d=identicon&r=g", baseURL, hex.EncodeToString(sum[:]), size)
}

// TopicGroup is a node of the group tree. GroupID points to the parent and is nil only for the root.
type TopicGroup struct {
	ID        uint   `gorm:"primary_key"`
	Title     string `gorm:"type:varchar(64)"`
	Priority  int
	Protected bool
	Deleted   bool  `gorm:"index"`
	GroupID   *uint `gorm:"index"`
	AuthorID  uint
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

type Topic struct {
	ID       uint   `gorm:"primary_key"`
	Title    string `gorm:"type:varchar(128)"`
	Body     string `gorm:"type:text"`
	BodyHTML string `gorm:"type:text"`
	// Poll holds the poll question; nil means the topic has no poll.
	Poll      *string `gorm:"type:varchar(256)"`
	Interest  int
	Deleted   bool `gorm:"index"`
	GroupID   uint `gorm:"index"`
	AuthorID  uint `gorm:"index"`
	Author    *User     `gorm:"association_autoupdate:false;association_autocreate:false"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// SetBody stores the raw source and regenerates the sanitized HTML from it.
func (t *Topic) SetBody(raw string) {
	t.Body = raw
	t.BodyHTML = markup.Render(raw)
}

func (t *Topic) HasPoll() bool {
	return t.Poll != nil
}

type PollAnswer struct {
	ID        uint   `gorm:"primary_key"`
	TopicID   uint   `gorm:"index"`
	Body      string `gorm:"type:varchar(256)"`
	Deleted   bool
	CreatedAt time.Time
}

type PollVote struct {
	ID        uint `gorm:"primary_key"`
	AnswerID  uint `gorm:"index"`
	TopicID   uint `gorm:"index"`
	AuthorID  uint `gorm:"index"`
	Deleted   bool
	CreatedAt time.Time
}

type Comment struct {
	ID        uint   `gorm:"primary_key"`
	TopicID   uint   `gorm:"index"`
	AuthorID  uint   `gorm:"index"`
	Author    *User  `gorm:"association_autoupdate:false;association_autocreate:false"`
	Topic     *Topic `gorm:"association_autoupdate:false;association_autocreate:false"`
	Body      string `gorm:"type:text"`
	BodyHTML  string `gorm:"type:text"`
	Deleted   bool   `gorm:"index"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (c *Comment) SetBody(raw string) {
	c.Body = raw
	c.BodyHTML = markup.Render(raw)
}

// Message is a private note. Each side hides it independently.
type Message struct {
	ID              uint   `gorm:"primary_key"`
	Title           string `gorm:"type:varchar(128)"`
	Body            string `gorm:"type:text"`
	BodyHTML        string `gorm:"type:text"`
	AuthorID        uint   `gorm:"index"`
	Author          *User  `gorm:"association_autoupdate:false;association_autocreate:false"`
	ReceiverID      uint
	Receiver        *User `gorm:"association_autoupdate:false;association_autocreate:false"`
	AuthorDeleted   bool
	ReceiverDeleted bool
	Unread          bool
	CreatedAt       time.Time `gorm:"index"`
}

func (m *Message) SetBody(raw string) {
	m.Body = raw
	m.BodyHTML = markup.Render(raw)
}

// OtherParty returns the id of the participant that is not userID.
func (m *Message) OtherParty(userID uint) uint {
	if m.AuthorID == userID {
		return m.ReceiverID
	}
	return m.AuthorID
}
