package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"talk-chat/internal/model"
	"talk-chat/internal/repository"
	"talk-chat/pkg/logger"

	"go.uber.org/zap"
)

const (
	searchMinRunes   = 2
	searchLimit      = 20
	defaultBanReason = "Rules violation"
)

// Profile is the caller's own account.
type Profile struct {
	ID          uint       `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	AvatarURL   *string    `json:"avatar_url"`
	Role        model.Role `json:"role"`
	IsBanned    bool       `json:"is_banned"`
	BanReason   *string    `json:"ban_reason"`
	CreatedAt   time.Time  `json:"created_at"`
}

// SearchHit is the public view of another user.
type SearchHit struct {
	ID          uint       `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	AvatarURL   *string    `json:"avatar_url"`
	Role        model.Role `json:"role"`
	IsBanned    bool       `json:"is_banned"`
}

// UpdateProfileInput is the editable part of a profile.
type UpdateProfileInput struct {
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// UserService serves profiles, search and the moderation actions.
type UserService struct {
	users UserStore
}

// NewUserService returns a UserService over users.
func NewUserService(users UserStore) *UserService {
	return &UserService{users: users}
}

// Me returns the caller's own profile, including private fields.
func (s *UserService) Me(ctx context.Context, userID uint) (*Profile, error) {
	u, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := toProfile(u)
	return &p, nil
}

// UpdateProfile sets the display name and avatar. An empty avatar clears it.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, in UpdateProfileInput) error {
	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		return validation("display_name is required")
	}
	if utf8.RuneCountInString(displayName) > model.MaxDisplayNameLength {
		return validation("display_name must be at most 100 characters")
	}
	var avatar *string
	if a := strings.TrimSpace(in.AvatarURL); a != "" {
		if utf8.RuneCountInString(a) > model.MaxAvatarURLLength {
			return validation("avatar_url must be at most 512 characters")
		}
		avatar = &a
	}
	if err := s.users.UpdateProfile(ctx, userID, displayName, avatar); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// Search finds other users by username or display name. Queries shorter
// than two characters return nothing.
func (s *UserService) Search(ctx context.Context, userID uint, query string) ([]SearchHit, error) {
	query = strings.TrimSpace(query)
	hits := []SearchHit{}
	if utf8.RuneCountInString(query) < searchMinRunes {
		return hits, nil
	}

	users, err := s.users.Search(ctx, query, userID, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	for _, u := range users {
		hits = append(hits, SearchHit{
			ID:          u.ID,
			Username:    u.Username,
			DisplayName: u.DisplayName,
			AvatarURL:   u.AvatarURL,
			Role:        u.Role,
			IsBanned:    u.IsBanned,
		})
	}
	return hits, nil
}

// List returns every account with admin fields. Owners and admins only.
func (s *UserService) List(ctx context.Context, actorID uint) ([]Profile, error) {
	if err := s.requireModerator(ctx, actorID); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]Profile, 0, len(users))
	for i := range users {
		out = append(out, toProfile(&users[i]))
	}
	return out, nil
}

// Ban blocks targetID from sending. An empty reason becomes the default one.
func (s *UserService) Ban(ctx context.Context, actorID, targetID uint, reason string) error {
	if err := s.requireModerator(ctx, actorID); err != nil {
		return err
	}
	if targetID == 0 {
		return validation("user_id is required")
	}
	if _, err := s.load(ctx, targetID); err != nil {
		return err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultBanReason
	}
	if err := s.users.SetBan(ctx, targetID, true, &reason); err != nil {
		return fmt.Errorf("ban user: %w", err)
	}
	logger.Info("user banned", zap.Uint("actor_id", actorID), zap.Uint("user_id", targetID), zap.String("reason", reason))
	return nil
}

// Unban lifts a ban and clears its reason.
func (s *UserService) Unban(ctx context.Context, actorID, targetID uint) error {
	if err := s.requireModerator(ctx, actorID); err != nil {
		return err
	}
	if targetID == 0 {
		return validation("user_id is required")
	}
	if _, err := s.load(ctx, targetID); err != nil {
		return err
	}
	if err := s.users.SetBan(ctx, targetID, false, nil); err != nil {
		return fmt.Errorf("unban user: %w", err)
	}
	logger.Info("user unbanned", zap.Uint("actor_id", actorID), zap.Uint("user_id", targetID))
	return nil
}

// SetRole validates the requested role before checking privileges, so an
// unknown role is a 400 even for callers who may not assign roles at all.
func (s *UserService) SetRole(ctx context.Context, actorID, targetID uint, rawRole string) error {
	if targetID == 0 || strings.TrimSpace(rawRole) == "" {
		return validation("user_id and role are required")
	}
	role, ok := model.ParseRole(rawRole)
	if !ok {
		return validation("invalid role")
	}

	actor, err := s.load(ctx, actorID)
	if err != nil {
		return err
	}
	if !actor.Role.CanAssignRoles() {
		return forbidden("only the owner can assign roles")
	}
	if _, err := s.load(ctx, targetID); err != nil {
		return err
	}

	if err := s.users.SetRole(ctx, targetID, role); err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	logger.Info("user role changed", zap.Uint("actor_id", actorID), zap.Uint("user_id", targetID), zap.String("role", string(role)))
	return nil
}

func (s *UserService) requireModerator(ctx context.Context, actorID uint) error {
	actor, err := s.load(ctx, actorID)
	if err != nil {
		return err
	}
	if !actor.Role.CanModerate() {
		return forbidden("access denied")
	}
	return nil
}

func (s *UserService) load(ctx context.Context, id uint) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

func toProfile(u *model.User) Profile {
	return Profile{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		Role:        u.Role,
		IsBanned:    u.IsBanned,
		BanReason:   u.BanReason,
		CreatedAt:   u.CreatedAt,
	}
}
