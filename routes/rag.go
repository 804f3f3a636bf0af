package routes

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"aim-assistant-backend/internal/ai"
	"aim-assistant-backend/internal/config"
	"aim-assistant-backend/internal/logger"
	"aim-assistant-backend/internal/queue"
	"aim-assistant-backend/models"
	"aim-assistant-backend/services"
	"aim-assistant-backend/utils"
)

// Retrieval threshold below which chunks are treated as noise.
const defaultMinRelevance = 0.3

// RAGDeps bundles what the knowledge-base routes need.
type RAGDeps struct {
	Cfg         *config.Config
	Pipeline    *services.IngestionPipeline
	Composer    *services.Composer
	Store       services.Store
	Cache       *services.QueryCache
	Embedder    ai.Embedder
	QueueClient *asynq.Client // nil disables async ingestion
}

// SetupRAGRoutes registers the knowledge-base endpoints.
func SetupRAGRoutes(router *gin.Engine, deps RAGDeps) {
	rag := router.Group("/api/rag")
	{
		rag.POST("/ingest", handleIngestPDF(deps))
		rag.POST("/ingest/text", handleIngestText(deps))
		rag.GET("/documents", handleListDocuments(deps))
		rag.DELETE("/documents/:id", handleDeleteDocument(deps))
		rag.POST("/query", handleQuery(deps))
		rag.GET("/health", handleRAGHealth(deps))
	}
}

func handleIngestPDF(deps RAGDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseMultipartForm(deps.Cfg.MaxFileSize); err != nil {
			utils.RespondWithBadRequest(c, "File size exceeds maximum limit", nil)
			return
		}

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "No PDF file provided", nil)
			return
		}
		defer file.Close()

		ct := header.Header.Get("Content-Type")
		if !strings.Contains(ct, "pdf") && !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_file_type",
				"Only PDF files are allowed", nil)
			return
		}
		if header.Size > deps.Cfg.MaxFileSize {
			utils.RespondWithError(c, http.StatusBadRequest, "file_too_large",
				"File size exceeds maximum limit", nil)
			return
		}

		meta, ok := ingestMetaFromForm(c, header.Filename)
		if !ok {
			return
		}

		// Large uploads are staged on disk and processed by the worker.
		if deps.QueueClient != nil && header.Size > deps.Cfg.SyncProcessingLimit {
			enqueueIngest(c, deps, file, meta)
			return
		}

		content, err := io.ReadAll(io.LimitReader(file, deps.Cfg.MaxFileSize))
		if err != nil {
			utils.RespondWithBadRequest(c, "Cannot read uploaded file", nil)
			return
		}

		result, err := deps.Pipeline.Ingest(c.Request.Context(), content, meta)
		if err != nil {
			respondIngestError(c, err)
			return
		}

		c.JSON(http.StatusCreated, models.IngestResponse{
			DocumentID:    result.DocumentID,
			ChunksCreated: result.ChunksCreated,
			Message:       "Document ingested",
		})
	}
}

func ingestMetaFromForm(c *gin.Context, filename string) (services.IngestMeta, bool) {
	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}

	safety, err := models.ParseSafetyLevel(c.PostForm("safety"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "invalid_filter", err.Error(), nil)
		return services.IngestMeta{}, false
	}

	docType := strings.TrimSpace(c.PostForm("doc_type"))
	if docType == "" {
		docType = "pdf"
	}

	return services.IngestMeta{
		Title:   title,
		Source:  filename,
		DocType: docType,
		Topics:  splitTopics(c.PostForm("topics")),
		Safety:  safety,
	}, true
}

func enqueueIngest(c *gin.Context, deps RAGDeps, file io.Reader, meta services.IngestMeta) {
	stageDir := filepath.Join(deps.Cfg.FileStorageDir, "uploads")
	if err := os.MkdirAll(stageDir, 0755); err != nil {
		utils.RespondWithInternalError(c, "Failed to stage upload", nil)
		return
	}

	stagePath := filepath.Join(stageDir, fmt.Sprintf("%s.pdf", uuid.NewString()))
	dst, err := os.OpenFile(stagePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		utils.RespondWithInternalError(c, "Failed to stage upload", nil)
		return
	}
	_, copyErr := io.Copy(dst, io.LimitReader(file, deps.Cfg.MaxFileSize))
	closeErr := dst.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(stagePath)
		utils.RespondWithInternalError(c, "Failed to stage upload", nil)
		return
	}

	task, err := queue.NewIngestTask(queue.IngestPayload{
		FilePath: stagePath,
		Title:    meta.Title,
		Source:   meta.Source,
		DocType:  meta.DocType,
		Topics:   meta.Topics,
		Safety:   string(meta.Safety),
	})
	if err != nil {
		os.Remove(stagePath)
		utils.RespondWithInternalError(c, "Failed to create ingestion task", nil)
		return
	}

	info, err := deps.QueueClient.Enqueue(task)
	if err != nil {
		os.Remove(stagePath)
		utils.RespondWithError(c, http.StatusServiceUnavailable, "queue_error",
			"Failed to enqueue ingestion task", nil)
		return
	}

	logger.Info("ingestion enqueued", "task_id", info.ID, "title", meta.Title)

	c.JSON(http.StatusAccepted, models.IngestResponse{
		Message: "Document accepted for processing",
		TaskID:  info.ID,
	})
}

func handleIngestText(deps RAGDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.IngestTextRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "title and content are required", err.Error())
			return
		}

		safety, err := models.ParseSafetyLevel(req.Safety)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_filter", err.Error(), nil)
			return
		}

		docType := req.DocType
		if docType == "" {
			docType = "text"
		}

		result, err := deps.Pipeline.IngestText(c.Request.Context(), req.Content, services.IngestMeta{
			Title:   req.Title,
			Source:  "manual",
			DocType: docType,
			Topics:  req.Topics,
			Safety:  safety,
		})
		if err != nil {
			respondIngestError(c, err)
			return
		}

		c.JSON(http.StatusCreated, models.IngestResponse{
			DocumentID:    result.DocumentID,
			ChunksCreated: result.ChunksCreated,
			Message:       "Document ingested",
		})
	}
}

func handleListDocuments(deps RAGDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		documents, err := deps.Store.ListDocuments(c.Request.Context(),
			c.Query("doc_type"), splitTopics(c.Query("topics")))
		if err != nil {
			respondServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.DocumentListResponse{Documents: documents})
	}
}

func handleDeleteDocument(deps RAGDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := deps.Pipeline.Delete(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				utils.RespondWithNotFound(c, "Document not found")
				return
			}
			respondServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Document deleted"})
	}
}

func handleQuery(deps RAGDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "query is required", err.Error())
			return
		}

		filter, ok := buildFilter(c, req.SafetyLevel, req.Topics, req.MaxResults, deps.Cfg)
		if !ok {
			return
		}

		if cached := deps.Cache.Get(c.Request.Context(), req.Query, filter); cached != nil {
			c.JSON(http.StatusOK, cached)
			return
		}

		resp, err := deps.Composer.Query(c.Request.Context(), req.Query, filter)
		if err != nil {
			respondServiceError(c, err)
			return
		}

		deps.Cache.Set(c.Request.Context(), req.Query, filter, resp)
		c.JSON(http.StatusOK, resp)
	}
}

func handleRAGHealth(deps RAGDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := deps.Embedder.Embed(c.Request.Context(), "ping"); err != nil {
			utils.RespondWithServiceUnavailable(c, "embedding_unavailable",
				"Embedding provider is not responding")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":           "healthy",
			"embeddings_model": deps.Embedder.ModelInfo(),
			"vector_dimension": deps.Embedder.Dimension(),
		})
	}
}

func buildFilter(c *gin.Context, safetyRaw string, topics []string, maxResults int, cfg *config.Config) (models.SearchFilter, bool) {
	safety, err := models.ParseSafetyLevel(safetyRaw)
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "invalid_filter", err.Error(), nil)
		return models.SearchFilter{}, false
	}

	limit := maxResults
	if limit <= 0 {
		limit = cfg.DefaultMaxResults
	}
	if limit > 20 {
		limit = 20
	}

	return models.SearchFilter{
		Topics:       topics,
		Safety:       safety,
		Limit:        limit,
		MinRelevance: defaultMinRelevance,
	}, true
}

func splitTopics(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	topics := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

func respondIngestError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrExtractionFailed):
		utils.RespondWithUnprocessable(c, "extraction_failed",
			"Could not extract text from the uploaded PDF")
	case errors.Is(err, services.ErrEmptyDocument):
		utils.RespondWithUnprocessable(c, "empty_document",
			"Document contains no usable text")
	default:
		respondServiceError(c, err)
	}
}

func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ai.ErrEmbeddingUnavailable):
		utils.RespondWithServiceUnavailable(c, "embedding_unavailable",
			"Embedding provider is not responding")
	case errors.Is(err, services.ErrIndexUnavailable):
		utils.RespondWithServiceUnavailable(c, "index_unavailable",
			"Document store is not responding")
	case errors.Is(err, services.ErrInvalidFilter):
		utils.RespondWithError(c, http.StatusBadRequest, "invalid_filter", err.Error(), nil)
	case errors.Is(err, services.ErrNotFound):
		utils.RespondWithNotFound(c, "Resource not found")
	default:
		logger.Error("request failed", "path", c.FullPath(), "error", err)
		utils.RespondWithInternalError(c, "Internal server error", nil)
	}
}
