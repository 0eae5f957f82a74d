package model

const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string `json:"role" binding:"required,oneof=user assistant"`
	Content string `json:"content" binding:"required,max=4000"`
}

type ChatRequest struct {
	Message  string        `json:"message" binding:"required,max=4000"`
	RecordID string        `json:"recordId"`
	History  []ChatMessage `json:"history" binding:"omitempty,max=50,dive"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}
