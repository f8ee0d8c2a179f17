package handler

import (
	"talk-chat/internal/service"
	"talk-chat/pkg/response"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	service UserAPI
}

func NewUserHandler(s UserAPI) *UserHandler {
	return &UserHandler{service: s}
}

// Me returns the caller's own profile.
func (h *UserHandler) Me(c *gin.Context) {
	profile, err := h.service.Me(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, profile)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req service.UpdateProfileInput
	if !bindJSON(c, &req) {
		return
	}
	if err := h.service.UpdateProfile(c.Request.Context(), CurrentUserID(c), req); err != nil {
		response.FromError(c, err)
		return
	}
	response.Message(c, "profile updated")
}

func (h *UserHandler) Search(c *gin.Context) {
	hits, err := h.service.Search(c.Request.Context(), CurrentUserID(c), c.Query("q"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"users": hits})
}

// List is the moderator view of every account.
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.service.List(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"users": users})
}

func (h *UserHandler) Ban(c *gin.Context) {
	var req struct {
		UserID ID     `json:"user_id"`
		Reason string `json:"reason"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := h.service.Ban(c.Request.Context(), CurrentUserID(c), uint(req.UserID), req.Reason); err != nil {
		response.FromError(c, err)
		return
	}
	response.Message(c, "user banned")
}

func (h *UserHandler) Unban(c *gin.Context) {
	var req struct {
		UserID ID `json:"user_id"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := h.service.Unban(c.Request.Context(), CurrentUserID(c), uint(req.UserID)); err != nil {
		response.FromError(c, err)
		return
	}
	response.Message(c, "user unbanned")
}

func (h *UserHandler) SetRole(c *gin.Context) {
	var req struct {
		UserID ID     `json:"user_id"`
		Role   string `json:"role"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := h.service.SetRole(c.Request.Context(), CurrentUserID(c), uint(req.UserID), req.Role); err != nil {
		response.FromError(c, err)
		return
	}
	response.Message(c, "role updated")
}
