package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"talk-chat/internal/model"
	"talk-chat/internal/repository"
	"talk-chat/pkg/logger"
	"talk-chat/pkg/metrics"

	"go.uber.org/zap"
)

// ChatUser is the other participant as shown in the chat list. Online is
// set only when presence tracking is enabled.
type ChatUser struct {
	ID          uint    `json:"id"`
	Username    string  `json:"username"`
	DisplayName string  `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
	Online      *bool   `json:"online,omitempty"`
}

// ChatItem is one row of the chat list. LastMessage and LastMessageTime are
// nil for a chat with no messages yet.
type ChatItem struct {
	ID              uint       `json:"id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	OtherUser       *ChatUser  `json:"other_user"`
	LastMessage     *string    `json:"last_message"`
	LastMessageTime *time.Time `json:"last_message_time"`
}

// CreateChatResult reports the chat id and whether it already existed.
type CreateChatResult struct {
	ChatID  uint `json:"chat_id"`
	Existed bool `json:"existed"`
}

// SendResult identifies a stored message.
type SendResult struct {
	MessageID uint      `json:"message_id"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageSender is the author profile embedded in each message.
type MessageSender struct {
	Username    string  `json:"username"`
	DisplayName string  `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
}

// MessageItem is one entry of a chat history.
type MessageItem struct {
	ID        uint          `json:"id"`
	Content   string        `json:"content"`
	SenderID  uint          `json:"sender_id"`
	CreatedAt time.Time     `json:"created_at"`
	Sender    MessageSender `json:"sender"`
}

// ContactItem is a bookmarked user with the time they were added.
type ContactItem struct {
	ID          uint      `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarURL   *string   `json:"avatar_url"`
	AddedAt     time.Time `json:"added_at"`
}

// MessageEvent is pushed over the websocket when a message is stored.
type MessageEvent struct {
	Type    string      `json:"type"`
	ChatID  uint        `json:"chat_id"`
	Message MessageItem `json:"message"`
}

// ChatService owns one-to-one chats, their messages and the contact list.
type ChatService struct {
	users    UserStore
	chats    ChatStore
	contacts ContactStore
	tx       Transactor
	notifier Notifier
	presence Presence
	now      func() time.Time
}

// NewChatService wires the chat flows. notifier and presence may be nil.
func NewChatService(users UserStore, chats ChatStore, contacts ContactStore, tx Transactor, notifier Notifier, presence Presence) *ChatService {
	return &ChatService{
		users:    users,
		chats:    chats,
		contacts: contacts,
		tx:       tx,
		notifier: notifier,
		presence: presence,
		now:      time.Now,
	}
}

// List returns the caller's chats, most recently active first.
func (s *ChatService) List(ctx context.Context, userID uint) ([]ChatItem, error) {
	rows, err := s.chats.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	items := make([]ChatItem, 0, len(rows))
	var others []uint
	for _, row := range rows {
		item := ChatItem{
			ID:              row.ID,
			CreatedAt:       row.CreatedAt,
			UpdatedAt:       row.UpdatedAt,
			LastMessage:     row.LastMessage,
			LastMessageTime: row.LastMessageTime,
		}
		if row.OtherID != nil {
			item.OtherUser = &ChatUser{
				ID:          *row.OtherID,
				Username:    deref(row.OtherUsername),
				DisplayName: deref(row.OtherDisplayName),
				AvatarURL:   row.OtherAvatarURL,
			}
			others = append(others, *row.OtherID)
		}
		items = append(items, item)
	}

	s.annotatePresence(ctx, items, others)
	return items, nil
}

func (s *ChatService) annotatePresence(ctx context.Context, items []ChatItem, ids []uint) {
	if s.presence == nil || len(ids) == 0 {
		return
	}
	online, err := s.presence.Online(ctx, ids)
	if err != nil {
		logger.Warn("presence lookup failed", zap.Error(err))
		return
	}
	for i := range items {
		if u := items[i].OtherUser; u != nil {
			v := online[u.ID]
			u.Online = &v
		}
	}
}

// Create opens the one-to-one chat between the caller and otherID, or returns
// the existing one.
func (s *ChatService) Create(ctx context.Context, userID, otherID uint) (*CreateChatResult, error) {
	if otherID == 0 {
		return nil, validation("user_id is required")
	}
	if otherID == userID {
		return nil, validation("cannot create a chat with yourself")
	}
	if _, err := s.users.GetByID(ctx, otherID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("user not found")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if existing, err := s.chats.FindByPair(ctx, userID, otherID); err == nil {
		return &CreateChatResult{ChatID: existing.ID, Existed: true}, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("find chat: %w", err)
	}

	chat := &model.Chat{CreatedBy: userID, PairKey: model.PairKey(userID, otherID)}
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		return s.chats.CreateWithParticipants(ctx, chat, userID, otherID)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		// a concurrent request created the same pair first
		existing, findErr := s.chats.FindByPair(ctx, userID, otherID)
		if findErr != nil {
			return nil, fmt.Errorf("find chat after conflict: %w", findErr)
		}
		return &CreateChatResult{ChatID: existing.ID, Existed: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}

	return &CreateChatResult{ChatID: chat.ID, Existed: false}, nil
}

// Send stores a message and bumps the chat. Banned senders and
// non-participants are refused before anything is written.
func (s *ChatService) Send(ctx context.Context, userID, chatID uint, content string) (*SendResult, error) {
	content = strings.TrimSpace(content)
	if chatID == 0 || content == "" {
		return nil, validation("chat_id and content are required")
	}

	sender, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("load sender: %w", err)
	}
	if sender.IsBanned {
		return nil, forbidden("you are banned and cannot send messages")
	}

	if err := s.requireParticipant(ctx, chatID, userID); err != nil {
		return nil, err
	}

	msg := &model.Message{ChatID: chatID, SenderID: userID, Content: content, CreatedAt: s.now().UTC()}
	err = s.tx.Transaction(ctx, func(ctx context.Context) error {
		if err := s.chats.CreateMessage(ctx, msg); err != nil {
			return err
		}
		return s.chats.Touch(ctx, chatID, msg.CreatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}
	metrics.MessagesSent.Inc()

	s.push(ctx, chatID, MessageItem{
		ID:        msg.ID,
		Content:   msg.Content,
		SenderID:  userID,
		CreatedAt: msg.CreatedAt,
		Sender: MessageSender{
			Username:    sender.Username,
			DisplayName: sender.DisplayName,
			AvatarURL:   sender.AvatarURL,
		},
	})

	return &SendResult{MessageID: msg.ID, CreatedAt: msg.CreatedAt}, nil
}

// push is best effort; the message is already committed.
func (s *ChatService) push(ctx context.Context, chatID uint, item MessageItem) {
	if s.notifier == nil {
		return
	}
	ids, err := s.chats.ParticipantIDs(ctx, chatID)
	if err != nil {
		logger.Warn("load participants for push failed", zap.Uint("chat_id", chatID), zap.Error(err))
		return
	}
	s.notifier.Notify(ids, MessageEvent{Type: "message", ChatID: chatID, Message: item})
}

// Messages returns a chat's full history, oldest first, to participants only.
func (s *ChatService) Messages(ctx context.Context, userID, chatID uint) ([]MessageItem, error) {
	if chatID == 0 {
		return nil, validation("chat_id is required")
	}
	if err := s.requireParticipant(ctx, chatID, userID); err != nil {
		return nil, err
	}

	rows, err := s.chats.Messages(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	items := make([]MessageItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, MessageItem{
			ID:        row.ID,
			Content:   row.Content,
			SenderID:  row.SenderID,
			CreatedAt: row.CreatedAt,
			Sender: MessageSender{
				Username:    deref(row.Username),
				DisplayName: deref(row.DisplayName),
				AvatarURL:   row.AvatarURL,
			},
		})
	}
	return items, nil
}

func (s *ChatService) requireParticipant(ctx context.Context, chatID, userID uint) error {
	ok, err := s.chats.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return fmt.Errorf("check participant: %w", err)
	}
	if !ok {
		return forbidden("access denied")
	}
	return nil
}

// Contacts lists the caller's bookmarks, newest first.
func (s *ChatService) Contacts(ctx context.Context, userID uint) ([]ContactItem, error) {
	rows, err := s.contacts.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	items := make([]ContactItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, ContactItem{
			ID:          row.ID,
			Username:    row.Username,
			DisplayName: row.DisplayName,
			AvatarURL:   row.AvatarURL,
			AddedAt:     row.AddedAt,
		})
	}
	return items, nil
}

// AddContact bookmarks contactID. Adding twice is not an error.
func (s *ChatService) AddContact(ctx context.Context, userID, contactID uint) (string, error) {
	if contactID == 0 {
		return "", validation("user_id is required")
	}
	if contactID == userID {
		return "", validation("cannot add yourself as a contact")
	}
	if _, err := s.users.GetByID(ctx, contactID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", notFound("user not found")
		}
		return "", fmt.Errorf("load user: %w", err)
	}

	added, err := s.contacts.Add(ctx, userID, contactID)
	if err != nil {
		return "", fmt.Errorf("add contact: %w", err)
	}
	if !added {
		return "contact already added", nil
	}
	return "contact added", nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
