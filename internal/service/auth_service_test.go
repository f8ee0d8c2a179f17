package service

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"testing"
	"time"

	"talk-chat/internal/model"
	"talk-chat/pkg/password"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	password.Cost = bcrypt.MinCost
}

type authFixture struct {
	store    *memStore
	auth     *AuthService
	sessions *SessionService
	mailer   *recordingMailer
	now      time.Time
}

func newAuthFixture(t *testing.T, withMailer bool) *authFixture {
	t.Helper()
	f := &authFixture{store: newMemStore(), now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	f.sessions = NewSessionService(memSessions{f.store}, 30*24*time.Hour)
	f.sessions.now = func() time.Time { return f.now }

	var mailer Mailer
	if withMailer {
		f.mailer = &recordingMailer{}
		mailer = f.mailer
	}
	f.auth = NewAuthService(memUsers{f.store}, memCodes{f.store}, passTx{}, f.sessions, mailer, 10*time.Minute)
	f.auth.now = func() time.Time { return f.now }
	return f
}

func (f *authFixture) register(t *testing.T, email, username string) *AuthResult {
	t.Helper()
	sent, err := f.auth.SendCode(context.Background(), email)
	require.NoError(t, err)
	res, err := f.auth.Register(context.Background(), RegisterInput{
		Email: email, Code: sent.Code, Username: username, DisplayName: username, Password: "secret1",
	})
	require.NoError(t, err)
	return res
}

func requireKind(t *testing.T, err error, kind Kind, msg string) {
	t.Helper()
	require.Error(t, err)
	e, ok := AsError(err)
	require.True(t, ok, "expected *service.Error, got %v", err)
	assert.Equal(t, kind, e.Kind)
	if msg != "" {
		assert.Equal(t, msg, e.Message)
	}
}

func TestSendCode(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()

	res, err := f.auth.SendCode(ctx, "  Alice@Example.COM ")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), res.Code)

	vc, err := memCodes{f.store}.Get(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, res.Code, vc.Code)
	assert.False(t, vc.Used)
	assert.Equal(t, f.now.Add(10*time.Minute), vc.ExpiresAt)

	_, err = f.auth.SendCode(ctx, "not-an-email")
	requireKind(t, err, KindValidation, "invalid email")

	long := strings.Repeat("a", model.MaxEmailLength) + "@example.com"
	_, err = f.auth.SendCode(ctx, long)
	requireKind(t, err, KindValidation, "invalid email")
}

func TestSendCode_WithMailerHidesCodeAndSwallowsFailure(t *testing.T) {
	f := newAuthFixture(t, true)
	f.mailer.err = errBoom

	res, err := f.auth.SendCode(context.Background(), "bob@example.com")
	require.NoError(t, err)
	assert.Empty(t, res.Code)
	assert.Len(t, f.mailer.sent["bob@example.com"], 6)
}

func TestSendCode_RegisteredEmail(t *testing.T) {
	f := newAuthFixture(t, false)
	f.register(t, "carol@example.com", "carol")

	_, err := f.auth.SendCode(context.Background(), "CAROL@example.com")
	requireKind(t, err, KindConflict, "email already registered")
	assert.Equal(t, http.StatusBadRequest, KindConflict.Status())
}

func TestRegister_Succeeds(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()

	res := f.register(t, "dave@example.com", "Dave_1")
	assert.NotZero(t, res.UserID)
	assert.NotEmpty(t, res.Token)

	u, err := memUsers{f.store}.GetByID(ctx, res.UserID)
	require.NoError(t, err)
	assert.Equal(t, "dave_1", u.Username)
	assert.Equal(t, model.RoleMember, u.Role)
	assert.True(t, password.Verify("secret1", u.PasswordHash))

	vc, _ := memCodes{f.store}.Get(ctx, "dave@example.com")
	assert.True(t, vc.Used)

	uid, err := f.sessions.Resolve(ctx, "Bearer "+res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.UserID, uid)
}

func TestRegister_CheckOrder(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()
	f.register(t, "taken@example.com", "taken")

	sent, err := f.auth.SendCode(ctx, "new@example.com")
	require.NoError(t, err)
	good := RegisterInput{Email: "new@example.com", Code: sent.Code, Username: "newbie", DisplayName: "New", Password: "secret1"}

	tests := []struct {
		name string
		edit func(in *RegisterInput)
		msg  string
	}{
		{"missing field", func(in *RegisterInput) { in.DisplayName = "  " }, "all fields are required"},
		{"bad username beats short password", func(in *RegisterInput) { in.Username = "no spaces"; in.Password = "x" }, "username must be 3-50 characters of a-z, 0-9 or _"},
		{"short username", func(in *RegisterInput) { in.Username = "ab" }, "username must be 3-50 characters of a-z, 0-9 or _"},
		{"short password", func(in *RegisterInput) { in.Password = " 12345 " }, "password must be at least 6 characters"},
		{"display name too long", func(in *RegisterInput) { in.DisplayName = strings.Repeat("я", model.MaxDisplayNameLength+1) }, "display_name must be at most 100 characters"},
		{"no code for email", func(in *RegisterInput) { in.Email = "other@example.com" }, "verification code not found or already used"},
		{"wrong code", func(in *RegisterInput) { in.Code = "000000x" }, "invalid verification code"},
		{"username taken", func(in *RegisterInput) { in.Username = "TAKEN" }, "username already taken"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := good
			tt.edit(&in)
			_, err := f.auth.Register(ctx, in)
			require.Error(t, err)
			e, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, http.StatusBadRequest, e.Kind.Status())
			assert.Equal(t, tt.msg, e.Message)
		})
	}
}

func TestRegister_ExpiredCode(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()
	sent, err := f.auth.SendCode(ctx, "late@example.com")
	require.NoError(t, err)

	f.now = f.now.Add(10*time.Minute + time.Second)
	_, err = f.auth.Register(ctx, RegisterInput{Email: "late@example.com", Code: sent.Code, Username: "late", DisplayName: "Late", Password: "secret1"})
	requireKind(t, err, KindValidation, "verification code expired")
}

func TestRegister_CodeIsSingleUse(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()
	sent, err := f.auth.SendCode(ctx, "once@example.com")
	require.NoError(t, err)

	in := RegisterInput{Email: "once@example.com", Code: sent.Code, Username: "once", DisplayName: "Once", Password: "secret1"}
	_, err = f.auth.Register(ctx, in)
	require.NoError(t, err)

	in.Username = "twice"
	_, err = f.auth.Register(ctx, in)
	requireKind(t, err, KindValidation, "verification code not found or already used")
}

func TestLogin(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()
	reg := f.register(t, "erin@example.com", "erin")

	res, err := f.auth.Login(ctx, LoginInput{Username: " ERIN ", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, reg.UserID, res.UserID)
	assert.NotEqual(t, reg.Token, res.Token)

	_, err = f.auth.Login(ctx, LoginInput{Username: "erin", Password: "wrong!"})
	requireKind(t, err, KindValidation, "invalid username or password")

	_, err = f.auth.Login(ctx, LoginInput{Username: "nobody", Password: "secret1"})
	requireKind(t, err, KindValidation, "invalid username or password")

	_, err = f.auth.Login(ctx, LoginInput{Username: "erin"})
	requireKind(t, err, KindValidation, "username and password are required")
}

func TestLogin_Banned(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()
	reg := f.register(t, "frank@example.com", "frank")
	reason := "spam"
	require.NoError(t, memUsers{f.store}.SetBan(ctx, reg.UserID, true, &reason))

	_, err := f.auth.Login(ctx, LoginInput{Username: "frank", Password: "secret1"})
	requireKind(t, err, KindForbidden, "account is banned")

	// a wrong password does not reveal the ban
	_, err = f.auth.Login(ctx, LoginInput{Username: "frank", Password: "nope123"})
	requireKind(t, err, KindValidation, "invalid username or password")

	// sessions opened before the ban stay valid
	uid, err := f.sessions.Resolve(ctx, reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.UserID, uid)
}

func TestSessionResolve(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()
	reg := f.register(t, "gina@example.com", "gina")

	for _, header := range []string{"", "Bearer ", "Bearer unknown"} {
		_, err := f.sessions.Resolve(ctx, header)
		assert.True(t, errors.Is(err, ErrUnauthenticated), "header %q", header)
	}

	uid, err := f.sessions.Resolve(ctx, reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.UserID, uid)

	f.now = f.now.Add(30*24*time.Hour + time.Second)
	_, err = f.sessions.Resolve(ctx, "Bearer "+reg.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestSessionTokensAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		tok, err := newSessionToken()
		require.NoError(t, err)
		assert.Len(t, tok, 43)
		assert.False(t, seen[tok])
		seen[tok] = true
	}
}
