package handler

import (
	"net/http"
	"strconv"

	"factory-ops/internal/services"
	"factory-ops/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ConversationHandler struct {
	service *services.ConversationService
}

func NewConversationHandler(service *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	items, total, err := h.service.List(c.Request.Context(), userID, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	dtos := make([]httpdto.ConversationDTO, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, httpdto.FromConversation(item))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.Page[httpdto.ConversationDTO]{
		Items: dtos,
		Total: total,
		Page:  page,
		Limit: limit,
	}))
}

func (h *ConversationHandler) Create(c *gin.Context) {
	creatorID, ok := currentUser(c)
	if !ok {
		return
	}

	var req httpdto.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	participantIDs := make([]uuid.UUID, 0, len(req.Participants))
	for _, raw := range req.Participants {
		participantIDs = append(participantIDs, uuid.MustParse(raw))
	}

	conv, err := h.service.Create(c.Request.Context(), creatorID, services.CreateConversationInput{
		Name:           req.Name,
		IsGroup:        req.IsGroup,
		ParticipantIDs: participantIDs,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromConversation(conv)))
}

func (h *ConversationHandler) AddParticipant(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid conversation id")
		return
	}

	var req httpdto.AddParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	if err := h.service.AddParticipant(c.Request.Context(), actorID, conversationID, uuid.MustParse(req.UserID)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "added"}))
}

func (h *ConversationHandler) Leave(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid conversation id")
		return
	}

	if err := h.service.Leave(c.Request.Context(), userID, conversationID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "left"}))
}
