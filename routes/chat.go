package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"aim-assistant-backend/internal/config"
	"aim-assistant-backend/internal/logger"
	"aim-assistant-backend/models"
	"aim-assistant-backend/services"
	"aim-assistant-backend/utils"
)

// ChatDeps bundles what the chat endpoints need. MessagesColl may be nil,
// which disables conversation persistence.
type ChatDeps struct {
	Cfg          *config.Config
	Composer     *services.Composer
	MessagesColl *mongo.Collection
}

// SetupChatRoutes registers the assistant chat endpoints.
func SetupChatRoutes(router *gin.Engine, deps ChatDeps) {
	chat := router.Group("/api/chat")
	{
		chat.POST("/message", handleChatMessage(deps))
		chat.GET("/conversations/:id", handleConversationHistory(deps))
	}
}

func handleChatMessage(deps ChatDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "message is required", err.Error())
			return
		}

		mode, err := services.ParseRAGMode(req.RagMode)
		if err != nil {
			utils.RespondWithBadRequest(c, err.Error(), nil)
			return
		}

		filter := models.SearchFilter{
			Limit:        deps.Cfg.DefaultMaxResults,
			MinRelevance: defaultMinRelevance,
		}

		answer, err := deps.Composer.Answer(c.Request.Context(), req.Message, mode, filter)
		if err != nil {
			respondServiceError(c, err)
			return
		}

		conversationID := req.ConversationID
		if conversationID == "" {
			conversationID = uuid.NewString()
		}

		resp := models.ChatResponse{
			Message:        answer.Answer,
			ModelUsed:      answer.ModelUsed,
			ResponseTime:   answer.ResponseTime.Seconds(),
			ConversationID: conversationID,
		}
		if len(answer.Sources) > 0 {
			resp.RagSources = chatSources(answer.Sources)
			confidence := answer.Confidence
			resp.RagConfidence = &confidence
		}

		persistMessage(c, deps, conversationID, req, answer)

		c.JSON(http.StatusOK, resp)
	}
}

func chatSources(refs []models.SourceRef) []models.RagSource {
	sources := make([]models.RagSource, 0, len(refs))
	for _, ref := range refs {
		sources = append(sources, models.RagSource{
			Title:     ref.Title,
			Content:   ref.Chunk,
			Relevance: ref.Relevance,
		})
	}
	return sources
}

// persistMessage stores the exchange. Persistence is best effort; a storage
// failure never fails the chat response.
func persistMessage(c *gin.Context, deps ChatDeps, conversationID string, req models.ChatRequest, answer *services.ComposedAnswer) {
	if deps.MessagesColl == nil {
		return
	}

	_, err := deps.MessagesColl.InsertOne(c.Request.Context(), models.Message{
		ConversationID: conversationID,
		Question:       req.Message,
		Reply:          answer.Answer,
		RagMode:        req.RagMode,
		ModelUsed:      answer.ModelUsed,
		Timestamp:      time.Now().UTC(),
	})
	if err != nil {
		logger.Warn("failed to persist chat message",
			"conversation_id", conversationID, "error", err)
	}
}

func handleConversationHistory(deps ChatDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.MessagesColl == nil {
			utils.RespondWithServiceUnavailable(c, "persistence_disabled",
				"Conversation history is not available")
			return
		}

		conversationID := c.Param("id")

		cursor, err := deps.MessagesColl.Find(c.Request.Context(),
			bson.M{"conversation_id": conversationID},
			options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load conversation", nil)
			return
		}
		defer cursor.Close(c.Request.Context())

		var messages []models.Message
		if err := cursor.All(c.Request.Context(), &messages); err != nil {
			utils.RespondWithInternalError(c, "Failed to load conversation", nil)
			return
		}

		if len(messages) == 0 {
			utils.RespondWithNotFound(c, "Conversation not found")
			return
		}

		c.JSON(http.StatusOK, models.ConversationHistory{
			ConversationID: conversationID,
			Messages:       messages,
			CreatedAt:      messages[0].Timestamp,
			UpdatedAt:      messages[len(messages)-1].Timestamp,
		})
	}
}
