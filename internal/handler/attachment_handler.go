package handler

import (
	"net/http"

	"factory-ops/internal/services"
	"factory-ops/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type AttachmentHandler struct {
	service *services.AttachmentService
}

func NewAttachmentHandler(service *services.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{service: service}
}

func (h *AttachmentHandler) Presign(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if !h.service.Enabled() {
		c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse("attachment storage is not configured", "SERVICE_UNAVAILABLE"))
		return
	}

	var req httpdto.PresignAttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	res, err := h.service.Presign(c.Request.Context(), services.PresignInput{
		UploaderID:  userID,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		FileSize:    req.FileSize,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(res))
}
