package repository

import (
	"context"

	"talk-chat/internal/model"
	"talk-chat/pkg/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VerificationRepository stores the pending code for each email.
type VerificationRepository struct {
	db *gorm.DB
}

func NewVerificationRepository(db *gorm.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// Upsert replaces whatever code the email had with a fresh unused one.
func (r *VerificationRepository) Upsert(ctx context.Context, code *model.VerificationCode) error {
	return db.Conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"code":       code.Code,
			"expires_at": code.ExpiresAt,
			"used":       false,
			"created_at": code.CreatedAt,
		}),
	}).Create(code).Error
}

func (r *VerificationRepository) Get(ctx context.Context, email string) (*model.VerificationCode, error) {
	var vc model.VerificationCode
	if err := db.Conn(ctx, r.db).Where("email = ?", email).First(&vc).Error; err != nil {
		return nil, translate(err)
	}
	return &vc, nil
}

// MarkUsed flips used for the exact (email, code) pair if it is still unused.
// It reports false when another request got there first.
func (r *VerificationRepository) MarkUsed(ctx context.Context, email, code string) (bool, error) {
	res := db.Conn(ctx, r.db).Model(&model.VerificationCode{}).
		Where("email = ? AND code = ? AND used = ?", email, code, false).
		Update("used", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
