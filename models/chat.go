package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatRequest is the body of POST /api/chat/message. RagMode selects how
// retrieval participates in the answer: off, hybrid or only.
type ChatRequest struct {
	Message        string `json:"message" binding:"required"`
	RagMode        string `json:"rag_mode"`
	ConversationID string `json:"conversation_id"`
}

// RagSource is one retrieved passage cited in a chat answer.
type RagSource struct {
	Title     string  `json:"title"`
	Content   string  `json:"content"`
	Relevance float64 `json:"relevance"`
}

// ChatResponse is the body returned by POST /api/chat/message. RagSources and
// RagConfidence are present only when retrieval contributed to the answer.
type ChatResponse struct {
	Message        string      `json:"message"`
	ModelUsed      string      `json:"model_used"`
	ResponseTime   float64     `json:"response_time"`
	RagSources     []RagSource `json:"rag_sources,omitempty"`
	RagConfidence  *float64    `json:"rag_confidence,omitempty"`
	ConversationID string      `json:"conversation_id,omitempty"`
}

// Message is one persisted chat exchange (user question + assistant reply).
type Message struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID string             `bson:"conversation_id" json:"conversation_id"`
	Question       string             `bson:"question" json:"question"`
	Reply          string             `bson:"reply" json:"reply"`
	RagMode        string             `bson:"rag_mode" json:"rag_mode"`
	ModelUsed      string             `bson:"model_used" json:"model_used"`
	Timestamp      time.Time          `bson:"timestamp" json:"timestamp"`
}

// ConversationHistory is the body of GET /api/chat/conversations/:id.
type ConversationHistory struct {
	ConversationID string    `json:"conversation_id"`
	Messages       []Message `json:"messages"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
