package service

import (
	"context"
	"io"
	"time"

	"talk-chat/internal/model"
	"talk-chat/internal/repository"
)

// The interfaces below are satisfied by the gorm repositories and by the
// in-memory fakes in the tests.

// UserStore persists accounts.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	UpdateProfile(ctx context.Context, id uint, displayName string, avatarURL *string) error
	UpdateAvatar(ctx context.Context, id uint, avatarURL string) error
	SetBan(ctx context.Context, id uint, banned bool, reason *string) error
	SetRole(ctx context.Context, id uint, role model.Role) error
	Search(ctx context.Context, query string, excludeID uint, limit int) ([]model.User, error)
	List(ctx context.Context) ([]model.User, error)
}

// SessionStore persists bearer sessions.
type SessionStore interface {
	Create(ctx context.Context, session *model.Session) error
	GetByToken(ctx context.Context, token string) (*model.Session, error)
}

// CodeStore keeps one verification code per email. MarkUsed reports false
// when the code was already consumed.
type CodeStore interface {
	Upsert(ctx context.Context, code *model.VerificationCode) error
	Get(ctx context.Context, email string) (*model.VerificationCode, error)
	MarkUsed(ctx context.Context, email, code string) (bool, error)
}

// ChatStore persists chats, participants and messages.
type ChatStore interface {
	FindByPair(ctx context.Context, a, b uint) (*model.Chat, error)
	CreateWithParticipants(ctx context.Context, chat *model.Chat, members ...uint) error
	IsParticipant(ctx context.Context, chatID, userID uint) (bool, error)
	ParticipantIDs(ctx context.Context, chatID uint) ([]uint, error)
	CreateMessage(ctx context.Context, msg *model.Message) error
	Touch(ctx context.Context, chatID uint, at time.Time) error
	ListForUser(ctx context.Context, userID uint) ([]repository.ChatSummary, error)
	Messages(ctx context.Context, chatID uint) ([]repository.MessageRow, error)
}

// ContactStore persists bookmarks. Add reports false for a duplicate.
type ContactStore interface {
	Add(ctx context.Context, userID, contactID uint) (bool, error)
	List(ctx context.Context, userID uint) ([]repository.ContactRow, error)
}

// Transactor runs fn in a transaction carried by the context it passes on.
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Mailer delivers a verification code to an address.
type Mailer interface {
	SendCode(ctx context.Context, email, code string) error
}

// BlobStore writes an object and returns nothing but an error.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	PublicURL(key string) string
}

// Notifier pushes a payload to every live connection of the given users.
type Notifier interface {
	Notify(userIDs []uint, payload interface{})
}

// Presence answers whether users currently hold a live connection.
type Presence interface {
	Online(ctx context.Context, userIDs []uint) (map[uint]bool, error)
}
