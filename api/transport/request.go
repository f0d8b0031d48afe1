package transport

type CreateTaskRequest struct {
	Description string `json:"description"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type RegisterRequest struct {
	DisplayName string `json:"display_name"`
	ChatID      string `json:"chat_id"`
	ChatKind    string `json:"chat_kind"`
	ChatTitle   string `json:"chat_title"`
}
