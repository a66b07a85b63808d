package handler

import (
	"net/http"
	"strconv"
	"time"

	"factory-ops/internal/domain/message"
	"factory-ops/internal/services"
	"factory-ops/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MessageHandler struct {
	service *services.ConversationService
}

func NewMessageHandler(service *services.ConversationService) *MessageHandler {
	return &MessageHandler{service: service}
}

// History serves GET /v1/conversations/:id/messages?before=<RFC3339>&limit=.
// nextBefore is the cursor for the following page; an empty page ends paging.
func (h *MessageHandler) History(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid conversation id")
		return
	}

	var before time.Time
	if raw := c.Query("before"); raw != "" {
		before, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			badRequest(c, "invalid before timestamp")
			return
		}
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	items, err := h.service.History(c.Request.Context(), userID, conversationID, before, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := httpdto.MessageHistoryResponse{Messages: items}
	if len(items) == 0 {
		resp.Messages = []message.Message{}
	} else {
		oldest := items[len(items)-1].CreatedAt
		resp.NextBefore = &oldest
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(resp))
}
