package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"talk-chat/internal/model"
	"talk-chat/internal/repository"
)

// memStore is an in-memory stand-in for every repository the services use.
type memStore struct {
	mu sync.Mutex

	users        map[uint]*model.User
	nextUserID   uint
	sessions     map[string]*model.Session
	codes        map[string]*model.VerificationCode
	chats        map[uint]*model.Chat
	nextChatID   uint
	participants map[uint][]uint
	messages     []model.Message
	contacts     []model.Contact

	// failCreateChat simulates a concurrent insert that won the pair key.
	failCreateChat bool
}

func newMemStore() *memStore {
	return &memStore{
		users:        map[uint]*model.User{},
		sessions:     map[string]*model.Session{},
		codes:        map[string]*model.VerificationCode{},
		chats:        map[uint]*model.Chat{},
		participants: map[uint][]uint{},
	}
}

// users

type memUsers struct{ *memStore }

func (s memUsers) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	s.nextUserID++
	u.ID = s.nextUserID
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s memUsers) GetByID(_ context.Context, id uint) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s memUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s memUsers) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := s.GetByUsername(ctx, username)
	return err == nil, nil
}

func (s memUsers) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s memUsers) UpdateProfile(_ context.Context, id uint, displayName string, avatarURL *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.DisplayName = displayName
		u.AvatarURL = avatarURL
	}
	return nil
}

func (s memUsers) UpdateAvatar(_ context.Context, id uint, avatarURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.AvatarURL = &avatarURL
	}
	return nil
}

func (s memUsers) SetBan(_ context.Context, id uint, banned bool, reason *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.IsBanned = banned
		if banned {
			u.BanReason = reason
		} else {
			u.BanReason = nil
		}
	}
	return nil
}

func (s memUsers) SetRole(_ context.Context, id uint, role model.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.Role = role
	}
	return nil
}

func (s memUsers) Search(_ context.Context, query string, excludeID uint, limit int) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(query)
	var out []model.User
	for _, u := range s.sortedUsers() {
		if u.ID == excludeID {
			continue
		}
		if strings.Contains(strings.ToLower(u.Username), q) || strings.Contains(strings.ToLower(u.DisplayName), q) {
			out = append(out, *u)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s memUsers) List(_ context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.User
	users := s.sortedUsers()
	for i := len(users) - 1; i >= 0; i-- {
		out = append(out, *users[i])
	}
	return out, nil
}

func (s *memStore) sortedUsers() []*model.User {
	out := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// sessions

type memSessions struct{ *memStore }

func (s memSessions) Create(_ context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.Token]; ok {
		return repository.ErrDuplicate
	}
	cp := *session
	s.sessions[session.Token] = &cp
	return nil
}

func (s memSessions) GetByToken(_ context.Context, token string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *session
	return &cp, nil
}

// verification codes

type memCodes struct{ *memStore }

func (s memCodes) Upsert(_ context.Context, code *model.VerificationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *code
	cp.Used = false
	s.codes[code.Email] = &cp
	return nil
}

func (s memCodes) Get(_ context.Context, email string) (*model.VerificationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vc, ok := s.codes[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *vc
	return &cp, nil
}

func (s memCodes) MarkUsed(_ context.Context, email, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vc, ok := s.codes[email]
	if !ok || vc.Used || vc.Code != code {
		return false, nil
	}
	vc.Used = true
	return true, nil
}

// chats

type memChats struct{ *memStore }

func (s memChats) FindByPair(_ context.Context, a, b uint) (*model.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := model.PairKey(a, b)
	for _, c := range s.chats {
		if c.PairKey == key {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s memChats) CreateWithParticipants(_ context.Context, chat *model.Chat, members ...uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreateChat {
		// the rival insert lands first, then ours collides
		s.failCreateChat = false
		s.nextChatID++
		rival := &model.Chat{ID: s.nextChatID, PairKey: chat.PairKey, CreatedBy: members[1]}
		s.chats[rival.ID] = rival
		s.participants[rival.ID] = append([]uint(nil), members...)
		return repository.ErrDuplicate
	}
	for _, c := range s.chats {
		if c.PairKey == chat.PairKey {
			return repository.ErrDuplicate
		}
	}
	s.nextChatID++
	chat.ID = s.nextChatID
	now := time.Now()
	chat.CreatedAt, chat.UpdatedAt = now, now
	cp := *chat
	s.chats[chat.ID] = &cp
	s.participants[chat.ID] = append([]uint(nil), members...)
	return nil
}

func (s memChats) IsParticipant(_ context.Context, chatID, userID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.participants[chatID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s memChats) ParticipantIDs(_ context.Context, chatID uint) ([]uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint(nil), s.participants[chatID]...), nil
}

func (s memChats) CreateMessage(_ context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.ID = uint(len(s.messages) + 1)
	s.messages = append(s.messages, *msg)
	return nil
}

func (s memChats) Touch(_ context.Context, chatID uint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[chatID]; ok {
		c.UpdatedAt = at
	}
	return nil
}

func (s memChats) ListForUser(_ context.Context, userID uint) ([]repository.ChatSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repository.ChatSummary
	for chatID, members := range s.participants {
		in := false
		var other *uint
		for _, m := range members {
			m := m
			if m == userID {
				in = true
			} else {
				other = &m
			}
		}
		if !in {
			continue
		}
		c := s.chats[chatID]
		row := repository.ChatSummary{ID: c.ID, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
		if other != nil {
			if u, ok := s.users[*other]; ok {
				row.OtherID = &u.ID
				row.OtherUsername = &u.Username
				row.OtherDisplayName = &u.DisplayName
				row.OtherAvatarURL = u.AvatarURL
			}
		}
		for i := range s.messages {
			if m := s.messages[i]; m.ChatID == chatID {
				content, at := m.Content, m.CreatedAt
				row.LastMessage, row.LastMessageTime = &content, &at
			}
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s memChats) Messages(_ context.Context, chatID uint) ([]repository.MessageRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repository.MessageRow
	for _, m := range s.messages {
		if m.ChatID != chatID {
			continue
		}
		row := repository.MessageRow{ID: m.ID, Content: m.Content, SenderID: m.SenderID, CreatedAt: m.CreatedAt}
		if u, ok := s.users[m.SenderID]; ok {
			row.Username = &u.Username
			row.DisplayName = &u.DisplayName
			row.AvatarURL = u.AvatarURL
		}
		out = append(out, row)
	}
	return out, nil
}

// contacts

type memContacts struct{ *memStore }

func (s memContacts) Add(_ context.Context, userID, contactID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.contacts {
		if c.UserID == userID && c.ContactUserID == contactID {
			return false, nil
		}
	}
	s.contacts = append(s.contacts, model.Contact{
		ID: uint(len(s.contacts) + 1), UserID: userID, ContactUserID: contactID, AddedAt: time.Now(),
	})
	return true, nil
}

func (s memContacts) List(_ context.Context, userID uint) ([]repository.ContactRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repository.ContactRow
	for i := len(s.contacts) - 1; i >= 0; i-- {
		c := s.contacts[i]
		if c.UserID != userID {
			continue
		}
		u := s.users[c.ContactUserID]
		out = append(out, repository.ContactRow{
			ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL, AddedAt: c.AddedAt,
		})
	}
	return out, nil
}

// passTx runs fn without a real transaction.
type passTx struct{}

func (passTx) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordingMailer struct {
	mu   sync.Mutex
	sent map[string]string
	err  error
}

func (m *recordingMailer) SendCode(_ context.Context, email, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sent == nil {
		m.sent = map[string]string{}
	}
	m.sent[email] = code
	return m.err
}

type recordingNotifier struct {
	mu     sync.Mutex
	userID [][]uint
	events []interface{}
}

func (n *recordingNotifier) Notify(userIDs []uint, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.userID = append(n.userID, userIDs)
	n.events = append(n.events, payload)
}

type staticPresence map[uint]bool

func (p staticPresence) Online(_ context.Context, ids []uint) (map[uint]bool, error) {
	out := map[uint]bool{}
	for _, id := range ids {
		out[id] = p[id]
	}
	return out, nil
}

type memBlobs struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func (b *memBlobs) Put(_ context.Context, key, contentType string, body io.Reader, _ int64) error {
	if b.err != nil {
		return b.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if b.objects == nil {
		b.objects, b.types = map[string][]byte{}, map[string]string{}
	}
	b.objects[key] = data
	b.types[key] = contentType
	return nil
}

func (b *memBlobs) PublicURL(key string) string {
	return "https://cdn.test/" + key
}

var errBoom = errors.New("boom")
