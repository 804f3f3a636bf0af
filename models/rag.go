package models

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SafetyLevel is the coarse content-sensitivity tag used to filter
// retrievable chunks.
type SafetyLevel string

const (
	SafetyGeneral  SafetyLevel = "general"
	SafetyTraining SafetyLevel = "training"
	SafetyMedical  SafetyLevel = "medical"
)

// ParseSafetyLevel validates a safety level string. An empty value defaults
// to general.
func ParseSafetyLevel(s string) (SafetyLevel, error) {
	switch SafetyLevel(strings.ToLower(strings.TrimSpace(s))) {
	case "", SafetyGeneral:
		return SafetyGeneral, nil
	case SafetyTraining:
		return SafetyTraining, nil
	case SafetyMedical:
		return SafetyMedical, nil
	}
	return "", fmt.Errorf("unknown safety level %q", s)
}

// Document ingestion status. A document becomes visible to list and search
// only once its chunks are fully committed.
const (
	DocStatusProcessing = "processing"
	DocStatusReady      = "ready"
)

// Document is one ingested source (PDF upload or manual text entry).
type Document struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title     string             `bson:"title" json:"title"`
	Source    string             `bson:"source" json:"source"`
	DocType   string             `bson:"doc_type" json:"doc_type"`
	Topics    []string           `bson:"topics" json:"topics"`
	Safety    SafetyLevel        `bson:"safety" json:"safety"`
	Status    string             `bson:"status" json:"-"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// DocumentChunk is one retrievable passage. Topics and safety are
// denormalized from the owning document so search can filter without a join.
type DocumentChunk struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DocumentID primitive.ObjectID `bson:"document_id" json:"document_id"`
	ChunkIndex int                `bson:"chunk_index" json:"chunk_index"`
	Content    string             `bson:"content" json:"content"`
	Compressed bool               `bson:"compressed" json:"-"`
	Topics     []string           `bson:"topics" json:"topics"`
	Safety     SafetyLevel        `bson:"safety" json:"safety"`
	Vector     []float32          `bson:"vector" json:"-"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

// SearchFilter narrows a similarity search. Topics match any; a zero
// MinRelevance keeps everything.
type SearchFilter struct {
	Topics       []string
	Safety       SafetyLevel
	Limit        int
	MinRelevance float64
}

// ScoredChunk pairs a chunk with its owning document's title and a relevance
// score in [0,1].
type ScoredChunk struct {
	Chunk     DocumentChunk
	Title     string
	Relevance float64
}

// RetrievalResult is the ranked outcome of one retrieval, with an aggregate
// confidence in [0,1] (0 when empty).
type RetrievalResult struct {
	Chunks     []ScoredChunk
	Confidence float64
}

// --- API request/response bodies ---

// QueryRequest is the body of POST /api/rag/query.
type QueryRequest struct {
	Query       string   `json:"query" binding:"required"`
	MaxResults  int      `json:"max_results"`
	Topics      []string `json:"topics"`
	SafetyLevel string   `json:"safety_level"`
}

// SourceRef is one cited source in a query response.
type SourceRef struct {
	Title     string  `json:"title"`
	Chunk     string  `json:"chunk"`
	Relevance float64 `json:"relevance"`
}

// QueryResponse is the body returned by POST /api/rag/query.
type QueryResponse struct {
	Answer     string      `json:"answer"`
	Sources    []SourceRef `json:"sources"`
	Confidence float64     `json:"confidence"`
}

// IngestTextRequest is the body of POST /api/rag/ingest/text.
type IngestTextRequest struct {
	Title   string   `json:"title" binding:"required"`
	Content string   `json:"content" binding:"required"`
	DocType string   `json:"doc_type"`
	Topics  []string `json:"topics"`
	Safety  string   `json:"safety"`
}

// IngestResponse is returned by the ingestion endpoints.
type IngestResponse struct {
	DocumentID    string `json:"document_id"`
	ChunksCreated int    `json:"chunks_created"`
	Message       string `json:"message"`
	TaskID        string `json:"task_id,omitempty"`
}

// DocumentListResponse wraps GET /api/rag/documents.
type DocumentListResponse struct {
	Documents []Document `json:"documents"`
}
