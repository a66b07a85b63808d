package httpdto

type MarkNotificationsReadRequest struct {
	IDs []string `json:"ids" binding:"required,min=1,max=500,dive,uuid"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

type UpdatedResponse struct {
	Updated int64 `json:"updated"`
}
