package handler

import (
	"net/http"

	"talk-chat/pkg/response"

	"github.com/gin-gonic/gin"
)

// actionTable routes the function-style endpoints (/fn/<group>?action=...)
// onto the REST handlers by method and action.
type actionTable map[string]gin.HandlerFunc

func actionKey(method, action string) string {
	return method + " " + action
}

func (t actionTable) dispatch(c *gin.Context) {
	h, ok := t[actionKey(c.Request.Method, c.Query("action"))]
	if !ok {
		response.BadRequest(c, "invalid action")
		return
	}
	h(c)
}

func authActions(h *AuthHandler) actionTable {
	return actionTable{
		actionKey(http.MethodPost, "send-code"): h.SendCode,
		actionKey(http.MethodPost, "register"):  h.Register,
		actionKey(http.MethodPost, "login"):     h.Login,
	}
}

func userActions(h *UserHandler) actionTable {
	return actionTable{
		actionKey(http.MethodGet, "me"):        h.Me,
		actionKey(http.MethodGet, "search"):    h.Search,
		actionKey(http.MethodGet, "list"):      h.List,
		actionKey(http.MethodPut, "profile"):   h.UpdateProfile,
		actionKey(http.MethodPost, "ban"):      h.Ban,
		actionKey(http.MethodPost, "unban"):    h.Unban,
		actionKey(http.MethodPost, "set-role"): h.SetRole,
	}
}

func chatActions(h *ChatHandler) actionTable {
	return actionTable{
		actionKey(http.MethodGet, "list"):         h.List,
		actionKey(http.MethodGet, "messages"):     h.Messages,
		actionKey(http.MethodGet, "contacts"):     h.Contacts,
		actionKey(http.MethodGet, "ws-ticket"):    h.Ticket,
		actionKey(http.MethodPost, "create"):      h.Create,
		actionKey(http.MethodPost, "send"):        h.Send,
		actionKey(http.MethodPost, "add-contact"): h.AddContact,
	}
}

// postOnly answers 405 before authentication, as the upload function did.
func postOnly(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		response.Error(c, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	c.Next()
}
