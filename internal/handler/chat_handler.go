package handler

import (
	"talk-chat/pkg/response"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	service ChatAPI
	tickets TicketIssuer
}

func NewChatHandler(s ChatAPI, tickets TicketIssuer) *ChatHandler {
	return &ChatHandler{service: s, tickets: tickets}
}

func (h *ChatHandler) List(c *gin.Context) {
	chats, err := h.service.List(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"chats": chats})
}

// Create opens a 1:1 chat, or returns the existing one for the pair.
func (h *ChatHandler) Create(c *gin.Context) {
	var req struct {
		UserID ID `json:"user_id"`
	}
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.service.Create(c.Request.Context(), CurrentUserID(c), uint(req.UserID))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, res)
}

func (h *ChatHandler) Send(c *gin.Context) {
	var req struct {
		ChatID  ID     `json:"chat_id"`
		Content string `json:"content"`
	}
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.service.Send(c.Request.Context(), CurrentUserID(c), uint(req.ChatID), req.Content)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, res)
}

func (h *ChatHandler) Messages(c *gin.Context) {
	msgs, err := h.service.Messages(c.Request.Context(), CurrentUserID(c), queryID(c, "chat_id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"messages": msgs})
}

func (h *ChatHandler) Contacts(c *gin.Context) {
	contacts, err := h.service.Contacts(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"contacts": contacts})
}

func (h *ChatHandler) AddContact(c *gin.Context) {
	var req struct {
		UserID ID `json:"user_id"`
	}
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.service.AddContact(c.Request.Context(), CurrentUserID(c), uint(req.UserID))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Message(c, msg)
}

// Ticket issues a short-lived token for opening the websocket.
func (h *ChatHandler) Ticket(c *gin.Context) {
	ticket, expiresAt, err := h.tickets.Issue(CurrentUserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"ticket": ticket, "expires_at": expiresAt})
}
