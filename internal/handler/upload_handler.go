package handler

import (
	"talk-chat/pkg/response"

	"github.com/gin-gonic/gin"
)

type UploadHandler struct {
	service UploadAPI
}

func NewUploadHandler(s UploadAPI) *UploadHandler {
	return &UploadHandler{service: s}
}

// Avatar stores a base64 image and points the caller's avatar at it.
func (h *UploadHandler) Avatar(c *gin.Context) {
	var req struct {
		Image string `json:"image"`
	}
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.service.UploadAvatar(c.Request.Context(), CurrentUserID(c), req.Image)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, res)
}
