package repository

import (
	"context"
	"time"

	"talk-chat/internal/model"
	"talk-chat/pkg/db"

	"gorm.io/gorm"
)

// ChatSummary is one row of a user's chat list.
type ChatSummary struct {
	ID               uint
	CreatedAt        time.Time
	UpdatedAt        time.Time
	OtherID          *uint
	OtherUsername    *string
	OtherDisplayName *string
	OtherAvatarURL   *string
	LastMessage      *string
	LastMessageTime  *time.Time
}

// MessageRow is a message joined with its sender's current profile.
type MessageRow struct {
	ID          uint
	Content     string
	SenderID    uint
	CreatedAt   time.Time
	Username    *string
	DisplayName *string
	AvatarURL   *string
}

type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) FindByPair(ctx context.Context, a, b uint) (*model.Chat, error) {
	var c model.Chat
	if err := db.Conn(ctx, r.db).Where("pair_key = ?", model.PairKey(a, b)).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// CreateWithParticipants inserts the chat and one participant row per member.
// Call it inside a transaction.
func (r *ChatRepository) CreateWithParticipants(ctx context.Context, chat *model.Chat, members ...uint) error {
	conn := db.Conn(ctx, r.db)
	if err := conn.Create(chat).Error; err != nil {
		return translate(err)
	}
	participants := make([]model.ChatParticipant, 0, len(members))
	for _, uid := range members {
		participants = append(participants, model.ChatParticipant{ChatID: chat.ID, UserID: uid})
	}
	return translate(conn.Create(&participants).Error)
}

func (r *ChatRepository) IsParticipant(ctx context.Context, chatID, userID uint) (bool, error) {
	var count int64
	err := db.Conn(ctx, r.db).Model(&model.ChatParticipant{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *ChatRepository) ParticipantIDs(ctx context.Context, chatID uint) ([]uint, error) {
	var ids []uint
	err := db.Conn(ctx, r.db).Model(&model.ChatParticipant{}).
		Where("chat_id = ?", chatID).
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *ChatRepository) CreateMessage(ctx context.Context, msg *model.Message) error {
	return db.Conn(ctx, r.db).Create(msg).Error
}

// Touch moves the chat's updated_at forward so it sorts to the top.
func (r *ChatRepository) Touch(ctx context.Context, chatID uint, at time.Time) error {
	return db.Conn(ctx, r.db).Model(&model.Chat{}).Where("id = ?", chatID).
		UpdateColumn("updated_at", at).Error
}

const chatListQuery = `
SELECT c.id, c.created_at, c.updated_at,
	u.id AS other_id, u.username AS other_username,
	u.display_name AS other_display_name, u.avatar_url AS other_avatar_url,
	(SELECT m.content FROM messages m WHERE m.chat_id = c.id
		ORDER BY m.created_at DESC, m.id DESC LIMIT 1) AS last_message,
	(SELECT m.created_at FROM messages m WHERE m.chat_id = c.id
		ORDER BY m.created_at DESC, m.id DESC LIMIT 1) AS last_message_time
FROM chats c
JOIN chat_participants me ON me.chat_id = c.id AND me.user_id = ?
LEFT JOIN chat_participants op ON op.chat_id = c.id AND op.user_id <> ?
LEFT JOIN users u ON u.id = op.user_id
ORDER BY c.updated_at DESC, c.id DESC`

// ListForUser returns every chat userID belongs to, most recently active first.
func (r *ChatRepository) ListForUser(ctx context.Context, userID uint) ([]ChatSummary, error) {
	var rows []ChatSummary
	err := db.Conn(ctx, r.db).Raw(chatListQuery, userID, userID).Scan(&rows).Error
	return rows, err
}

// Messages returns the whole history of a chat, oldest first.
func (r *ChatRepository) Messages(ctx context.Context, chatID uint) ([]MessageRow, error) {
	var rows []MessageRow
	err := db.Conn(ctx, r.db).Table("messages m").
		Select("m.id, m.content, m.sender_id, m.created_at, u.username, u.display_name, u.avatar_url").
		Joins("LEFT JOIN users u ON u.id = m.sender_id").
		Where("m.chat_id = ?", chatID).
		Order("m.created_at ASC, m.id ASC").
		Scan(&rows).Error
	return rows, err
}
