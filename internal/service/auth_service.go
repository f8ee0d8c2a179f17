package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"talk-chat/internal/model"
	"talk-chat/internal/repository"
	"talk-chat/pkg/logger"
	"talk-chat/pkg/password"

	"go.uber.org/zap"
)

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)
	usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,50}$`)
)

const minPasswordLength = 6

func validEmail(email string) bool {
	return utf8.RuneCountInString(email) <= model.MaxEmailLength && emailPattern.MatchString(email)
}

// SendCodeResult is the reply to send-code.
type SendCodeResult struct {
	Message string `json:"message"`
	// Code is only filled when no mail transport is configured.
	Code string `json:"code,omitempty"`
}

// RegisterInput carries the registration form.
type RegisterInput struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

// LoginInput carries login credentials.
type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResult is a freshly minted session token and its owner.
type AuthResult struct {
	Token  string `json:"token"`
	UserID uint   `json:"user_id"`
}

// AuthService handles email verification, registration and login.
type AuthService struct {
	users    UserStore
	codes    CodeStore
	tx       Transactor
	sessions *SessionService
	mailer   Mailer
	codeTTL  time.Duration
	now      func() time.Time
}

// NewAuthService wires the auth flow. A nil mailer puts send-code into
// development mode, where the code is logged and echoed to the caller.
func NewAuthService(users UserStore, codes CodeStore, tx Transactor, sessions *SessionService, mailer Mailer, codeTTL time.Duration) *AuthService {
	return &AuthService{
		users:    users,
		codes:    codes,
		tx:       tx,
		sessions: sessions,
		mailer:   mailer,
		codeTTL:  codeTTL,
		now:      time.Now,
	}
}

// SendCode stores a fresh six digit code for email and tries to deliver it.
// Delivery failures are logged, not returned.
func (s *AuthService) SendCode(ctx context.Context, email string) (*SendCodeResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !validEmail(email) {
		return nil, validation("invalid email")
	}

	registered, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if registered {
		return nil, conflict("email already registered")
	}

	code, err := newVerificationCode()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.codes.Upsert(ctx, &model.VerificationCode{
		Email:     email,
		Code:      code,
		ExpiresAt: now.Add(s.codeTTL),
		Used:      false,
		CreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("store verification code: %w", err)
	}

	result := &SendCodeResult{Message: "verification code sent"}
	if s.mailer == nil {
		logger.Info("verification code issued without mail transport",
			zap.String("email", email), zap.String("code", code))
		result.Code = code
		return result, nil
	}
	if err := s.mailer.SendCode(ctx, email, code); err != nil {
		logger.Error("failed to deliver verification code", zap.String("email", email), zap.Error(err))
	}
	return result, nil
}

// Register creates the account, consumes the code and opens a session, all
// in one transaction. Checks run in a fixed order and the first failure wins.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	code := strings.TrimSpace(in.Code)
	username := strings.ToLower(strings.TrimSpace(in.Username))
	displayName := strings.TrimSpace(in.DisplayName)
	plain := strings.TrimSpace(in.Password)

	if email == "" || code == "" || username == "" || displayName == "" || plain == "" {
		return nil, validation("all fields are required")
	}
	if !usernamePattern.MatchString(username) {
		return nil, validation("username must be 3-50 characters of a-z, 0-9 or _")
	}
	if utf8.RuneCountInString(plain) < minPasswordLength {
		return nil, validation("password must be at least 6 characters")
	}
	if utf8.RuneCountInString(displayName) > model.MaxDisplayNameLength {
		return nil, validation("display_name must be at most 100 characters")
	}

	vc, err := s.codes.Get(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, validation("verification code not found or already used")
	}
	if err != nil {
		return nil, fmt.Errorf("load verification code: %w", err)
	}
	if vc.Used {
		return nil, validation("verification code not found or already used")
	}
	if vc.Code != code {
		return nil, validation("invalid verification code")
	}
	if s.now().After(vc.ExpiresAt) {
		return nil, validation("verification code expired")
	}

	taken, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return nil, conflict("username already taken")
	}
	registered, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if registered {
		return nil, conflict("email already registered")
	}

	hash, err := password.Hash(plain)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		DisplayName:  displayName,
		Role:         model.RoleMember,
	}
	var session *model.Session
	err = s.tx.Transaction(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
		consumed, err := s.codes.MarkUsed(ctx, email, code)
		if err != nil {
			return fmt.Errorf("consume verification code: %w", err)
		}
		if !consumed {
			return validation("verification code not found or already used")
		}
		session, err = s.sessions.Create(ctx, user.ID)
		return err
	})
	if errors.Is(err, repository.ErrDuplicate) {
		// lost a race with another registration; report which key collided
		if taken, _ := s.users.ExistsByUsername(ctx, username); taken {
			return nil, conflict("username already taken")
		}
		return nil, conflict("email already registered")
	}
	if err != nil {
		return nil, err
	}

	logger.Info("user registered", zap.Uint("user_id", user.ID), zap.String("username", username))
	return &AuthResult{Token: session.Token, UserID: user.ID}, nil
}

// Login checks credentials and opens a new session. Unknown users and wrong
// passwords get the same answer; bans are reported only to the real owner.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	plain := strings.TrimSpace(in.Password)
	if username == "" || plain == "" {
		return nil, validation("username and password are required")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, validation("invalid username or password")
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !password.Verify(plain, user.PasswordHash) {
		return nil, validation("invalid username or password")
	}
	if user.IsBanned {
		return nil, forbidden("account is banned")
	}

	session, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: session.Token, UserID: user.ID}, nil
}

// newVerificationCode returns six uniformly random decimal digits.
func newVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
