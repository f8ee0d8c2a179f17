package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"talk-chat/internal/service"
	"talk-chat/pkg/response"

	"github.com/gin-gonic/gin"
)

// The handlers depend on these narrow views of the services so they can be
// driven by stubs in tests.

type AuthAPI interface {
	SendCode(ctx context.Context, email string) (*service.SendCodeResult, error)
	Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error)
	Login(ctx context.Context, in service.LoginInput) (*service.AuthResult, error)
}

type UserAPI interface {
	Me(ctx context.Context, userID uint) (*service.Profile, error)
	UpdateProfile(ctx context.Context, userID uint, in service.UpdateProfileInput) error
	Search(ctx context.Context, userID uint, query string) ([]service.SearchHit, error)
	List(ctx context.Context, actorID uint) ([]service.Profile, error)
	Ban(ctx context.Context, actorID, targetID uint, reason string) error
	Unban(ctx context.Context, actorID, targetID uint) error
	SetRole(ctx context.Context, actorID, targetID uint, role string) error
}

type ChatAPI interface {
	List(ctx context.Context, userID uint) ([]service.ChatItem, error)
	Create(ctx context.Context, userID, otherID uint) (*service.CreateChatResult, error)
	Send(ctx context.Context, userID, chatID uint, content string) (*service.SendResult, error)
	Messages(ctx context.Context, userID, chatID uint) ([]service.MessageItem, error)
	Contacts(ctx context.Context, userID uint) ([]service.ContactItem, error)
	AddContact(ctx context.Context, userID, contactID uint) (string, error)
}

type UploadAPI interface {
	UploadAvatar(ctx context.Context, userID uint, image string) (*service.UploadResult, error)
}

type SessionResolver interface {
	Resolve(ctx context.Context, header string) (uint, error)
}

type TicketIssuer interface {
	Issue(userID uint) (string, time.Time, error)
}

// ID accepts a JSON number or a numeric string. Anything else decodes to 0,
// which the services reject as missing.
type ID uint

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	n, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		*id = 0
		return nil
	}
	*id = ID(n)
	return nil
}

// bindJSON decodes the body into v. An empty body leaves v untouched so the
// services report the missing fields.
func bindJSON(c *gin.Context, v interface{}) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	err := json.NewDecoder(c.Request.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Error(c, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	response.BadRequest(c, "invalid request body")
	return false
}

func queryID(c *gin.Context, name string) uint {
	n, err := strconv.ParseUint(c.Query(name), 10, 64)
	if err != nil {
		return 0
	}
	return uint(n)
}
