package repository

import (
	"context"
	"errors"
	"time"

	"talk-chat/internal/model"
	"talk-chat/pkg/db"

	"gorm.io/gorm"
)

type ContactRow struct {
	ID          uint
	Username    string
	DisplayName string
	AvatarURL   *string
	AddedAt     time.Time
}

type ContactRepository struct {
	db *gorm.DB
}

func NewContactRepository(db *gorm.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// Add bookmarks contactID for userID. It reports false when the pair
// already existed, including when a concurrent insert won.
func (r *ContactRepository) Add(ctx context.Context, userID, contactID uint) (bool, error) {
	conn := db.Conn(ctx, r.db)

	var count int64
	if err := conn.Model(&model.Contact{}).
		Where("user_id = ? AND contact_user_id = ?", userID, contactID).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	err := translate(conn.Create(&model.Contact{UserID: userID, ContactUserID: contactID}).Error)
	if errors.Is(err, ErrDuplicate) {
		return false, nil
	}
	return err == nil, err
}

// List returns userID's contacts with their profiles, newest first.
func (r *ContactRepository) List(ctx context.Context, userID uint) ([]ContactRow, error) {
	var rows []ContactRow
	err := db.Conn(ctx, r.db).Table("contacts c").
		Select("u.id, u.username, u.display_name, u.avatar_url, c.added_at").
		Joins("JOIN users u ON u.id = c.contact_user_id").
		Where("c.user_id = ?", userID).
		Order("c.added_at DESC, c.id DESC").
		Scan(&rows).Error
	return rows, err
}
