package repository

import (
	"context"
	"strings"

	"talk-chat/internal/model"
	"talk-chat/pkg/db"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user. A taken username or email yields ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return translate(db.Conn(ctx, r.db).Create(user).Error)
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	var u model.User
	if err := db.Conn(ctx, r.db).First(&u, id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	if err := db.Conn(ctx, r.db).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username = ?", username)
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email = ?", email)
}

func (r *UserRepository) exists(ctx context.Context, query string, arg interface{}) (bool, error) {
	var count int64
	err := db.Conn(ctx, r.db).Model(&model.User{}).Where(query, arg).Count(&count).Error
	return count > 0, err
}

// UpdateProfile sets display name and avatar; a nil avatar clears it.
func (r *UserRepository) UpdateProfile(ctx context.Context, id uint, displayName string, avatarURL *string) error {
	return db.Conn(ctx, r.db).Model(&model.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"display_name": displayName,
			"avatar_url":   avatarURL,
		}).Error
}

func (r *UserRepository) UpdateAvatar(ctx context.Context, id uint, avatarURL string) error {
	return db.Conn(ctx, r.db).Model(&model.User{}).Where("id = ?", id).
		Update("avatar_url", avatarURL).Error
}

// SetBan bans (reason set) or unbans (reason cleared) a user.
func (r *UserRepository) SetBan(ctx context.Context, id uint, banned bool, reason *string) error {
	if !banned {
		reason = nil
	}
	return db.Conn(ctx, r.db).Model(&model.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_banned":  banned,
			"ban_reason": reason,
		}).Error
}

func (r *UserRepository) SetRole(ctx context.Context, id uint, role model.Role) error {
	return db.Conn(ctx, r.db).Model(&model.User{}).Where("id = ?", id).
		Update("role", role).Error
}

// Search matches a case-insensitive substring of username or display name,
// leaving out excludeID.
func (r *UserRepository) Search(ctx context.Context, query string, excludeID uint, limit int) ([]model.User, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"

	var users []model.User
	err := db.Conn(ctx, r.db).
		Where("(LOWER(username) LIKE ? OR LOWER(display_name) LIKE ?) AND id <> ?", pattern, pattern, excludeID).
		Order("id ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}

// List returns every user, newest first.
func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := db.Conn(ctx, r.db).Order("created_at DESC, id DESC").Find(&users).Error
	return users, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
