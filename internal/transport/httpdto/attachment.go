package httpdto

type PresignAttachmentRequest struct {
	FileName    string `json:"fileName" binding:"required,max=255"`
	ContentType string `json:"contentType" binding:"required"`
	FileSize    int64  `json:"fileSize" binding:"required,gt=0"`
}

type OnlineUsersResponse struct {
	Users []string `json:"users"`
	Count int      `json:"count"`
}
