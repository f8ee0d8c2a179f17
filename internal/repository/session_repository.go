package repository

import (
	"context"

	"talk-chat/internal/model"
	"talk-chat/pkg/db"

	"gorm.io/gorm"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *model.Session) error {
	return translate(db.Conn(ctx, r.db).Create(session).Error)
}

// GetByToken returns the session for token regardless of expiry.
func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*model.Session, error) {
	var s model.Session
	if err := db.Conn(ctx, r.db).Where("token = ?", token).First(&s).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}
