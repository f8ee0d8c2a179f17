package handler

import (
	"talk-chat/internal/service"
	"talk-chat/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	service AuthAPI
}

func NewAuthHandler(s AuthAPI) *AuthHandler {
	return &AuthHandler{service: s}
}

// SendCode emails a verification code, or echoes it in development mode.
func (h *AuthHandler) SendCode(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.service.SendCode(c.Request.Context(), req.Email)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, res)
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterInput
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, res)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginInput
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, res)
}
