package model

import (
	"fmt"
	"time"
)

// Chat is a one-to-one conversation. PairKey holds "<low id>:<high id>" and
// is unique, so a pair of users can only ever share one chat.
type Chat struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedBy uint      `gorm:"not null"`
	PairKey   string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	CreatedAt time.Time
	UpdatedAt time.Time `gorm:"index"`
}

// PairKey returns the canonical key for a pair of user ids.
func PairKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

type ChatParticipant struct {
	ID     uint `gorm:"primaryKey"`
	ChatID uint `gorm:"not null;uniqueIndex:idx_chat_participant"`
	UserID uint `gorm:"not null;uniqueIndex:idx_chat_participant;index"`
}

type Message struct {
	ID        uint      `gorm:"primaryKey"`
	ChatID    uint      `gorm:"not null;index:idx_message_chat_time,priority:1"`
	SenderID  uint      `gorm:"not null"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"index:idx_message_chat_time,priority:2"`
}

// Contact is a one-directional bookmark from UserID to ContactUserID.
type Contact struct {
	ID            uint      `gorm:"primaryKey"`
	UserID        uint      `gorm:"not null;uniqueIndex:idx_contact_pair"`
	ContactUserID uint      `gorm:"not null;uniqueIndex:idx_contact_pair"`
	AddedAt       time.Time `gorm:"autoCreateTime"`
}

// All returns every model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&VerificationCode{},
		&Session{},
		&Chat{},
		&ChatParticipant{},
		&Message{},
		&Contact{},
	}
}
