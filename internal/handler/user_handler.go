package handler

import (
	"net/http"
	"strconv"

	"factory-ops/internal/services"
	"factory-ops/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PresenceReader is the read side of the realtime session directory.
type PresenceReader interface {
	OnlineUsers() []uuid.UUID
}

type UserHandler struct {
	service  *services.UserService
	presence PresenceReader
}

func NewUserHandler(service *services.UserService, presence PresenceReader) *UserHandler {
	return &UserHandler{service: service, presence: presence}
}

func (h *UserHandler) Search(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	profiles, err := h.service.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(profiles))
}

func (h *UserHandler) Online(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	ids := h.presence.OnlineUsers()
	users := make([]string, 0, len(ids))
	for _, id := range ids {
		users = append(users, id.String())
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.OnlineUsersResponse{Users: users, Count: len(users)}))
}
