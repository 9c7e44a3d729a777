package types

import "encoding/json"

type AgentDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Tier        string `json:"tier,omitempty"`
}

type AgentListResponse struct {
	Agents []AgentDefinition `json:"agents"`
}

type ChatMessage struct {
	Role        string          `json:"role"`
	Content     string          `json:"content,omitempty"`
	ToolCalls   json.RawMessage `json:"toolCalls,omitempty"`
	ToolResults json.RawMessage `json:"toolResults,omitempty"`
}

type ChatRequest struct {
	SessionId string        `json:"sessionId"`
	Agent     string        `json:"agent,omitempty"`
	Messages  []ChatMessage `json:"messages"`
}

type ChatResponse struct {
	SessionId     string         `json:"sessionId"`
	ContentBlocks []ContentBlock `json:"contentBlocks"`
	ProviderUsed  string         `json:"providerUsed"`
	Tier          string         `json:"tier"`
}

type ContentBlock struct {
	Type string `json:"type"` // text, tool_use
	Text string `json:"text,omitempty"`
}

type Conversation struct {
	SessionId    string `json:"sessionId"`
	Title        string `json:"title,omitempty"`
	Tier         string `json:"tier,omitempty"`
	MessageCount int    `json:"messageCount"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

type ConversationListResponse struct {
	Conversations []Conversation `json:"conversations"`
}

type ConversationMessagesRequest struct {
	SessionId string `path:"sessionId"`
	Limit     int    `form:"limit"`
}

type ConversationMessagesResponse struct {
	SessionId string        `json:"sessionId"`
	Messages  []ChatMessage `json:"messages"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type LoginRequest struct {
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}
