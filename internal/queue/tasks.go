package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"aim-assistant-backend/internal/logger"
	"aim-assistant-backend/models"
	"aim-assistant-backend/services"
)

const TaskIngestDocument = "rag:ingest"

// IngestPayload describes one deferred document ingestion. The upload is
// staged on disk so the payload stays small.
type IngestPayload struct {
	FilePath string   `json:"file_path"`
	Title    string   `json:"title"`
	Source   string   `json:"source"`
	DocType  string   `json:"doc_type"`
	Topics   []string `json:"topics"`
	Safety   string   `json:"safety"`
}

// NewIngestTask builds the asynq task for one staged upload.
func NewIngestTask(payload IngestPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling ingest payload: %w", err)
	}
	return asynq.NewTask(TaskIngestDocument, data,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

// TaskProcessor handles queued ingestion work.
type TaskProcessor struct {
	pipeline *services.IngestionPipeline
}

func NewTaskProcessor(pipeline *services.IngestionPipeline) *TaskProcessor {
	return &TaskProcessor{pipeline: pipeline}
}

// HandleIngest runs one staged ingestion. Deterministic failures (bad PDF,
// empty document) are not retried; the staged file is removed once the task
// reaches a terminal outcome.
func (p *TaskProcessor) HandleIngest(ctx context.Context, t *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshaling ingest payload: %v: %w", err, asynq.SkipRetry)
	}

	content, err := os.ReadFile(payload.FilePath)
	if err != nil {
		return fmt.Errorf("reading staged upload %s: %v: %w", payload.FilePath, err, asynq.SkipRetry)
	}

	safety, err := models.ParseSafetyLevel(payload.Safety)
	if err != nil {
		safety = models.SafetyGeneral
	}

	result, err := p.pipeline.Ingest(ctx, content, services.IngestMeta{
		Title:   payload.Title,
		Source:  payload.Source,
		DocType: payload.DocType,
		Topics:  payload.Topics,
		Safety:  safety,
	})
	if err != nil {
		if errors.Is(err, services.ErrExtractionFailed) || errors.Is(err, services.ErrEmptyDocument) {
			// Retrying cannot fix the input.
			p.removeStaged(payload.FilePath)
			return fmt.Errorf("ingestion failed permanently: %v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("ingesting %s: %w", payload.Title, err)
	}

	p.removeStaged(payload.FilePath)
	logger.Info("queued ingestion completed",
		"document_id", result.DocumentID, "chunks", result.ChunksCreated, "title", payload.Title)
	return nil
}

func (p *TaskProcessor) removeStaged(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove staged upload", "path", path, "error", err)
	}
}
