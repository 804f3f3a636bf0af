package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"aim-assistant-backend/models"
)

// MemoryStore is an in-process Store with the same visibility and delete
// semantics as MongoStore. Used in tests and in single-node deployments that
// run without MongoDB.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[primitive.ObjectID]models.Document
	chunks map[primitive.ObjectID][]models.DocumentChunk
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:   make(map[primitive.ObjectID]models.Document),
		chunks: make(map[primitive.ObjectID][]models.DocumentChunk),
	}
}

func (s *MemoryStore) InsertDocument(ctx context.Context, doc *models.Document) (string, error) {
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	doc.Status = models.DocStatusProcessing
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if doc.Topics == nil {
		doc.Topics = []string{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = *doc
	return doc.ID.Hex(), nil
}

func (s *MemoryStore) InsertChunks(ctx context.Context, documentID string, chunks []ChunkRecord) error {
	docID, err := primitive.ObjectIDFromHex(documentID)
	if err != nil {
		return ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[docID]
	if !ok {
		return ErrNotFound
	}

	now := time.Now().UTC()
	stored := make([]models.DocumentChunk, 0, len(chunks))
	for _, ch := range chunks {
		stored = append(stored, models.DocumentChunk{
			ID:         primitive.NewObjectID(),
			DocumentID: docID,
			ChunkIndex: ch.Index,
			Content:    ch.Content,
			Topics:     doc.Topics,
			Safety:     doc.Safety,
			Vector:     append([]float32(nil), ch.Vector...),
			CreatedAt:  now,
		})
	}

	s.chunks[docID] = stored
	doc.Status = models.DocStatusReady
	s.docs[docID] = doc
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, queryVector []float32, filter models.SearchFilter) ([]models.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var scored []models.ScoredChunk
	for docID, chunks := range s.chunks {
		doc, ok := s.docs[docID]
		if !ok || doc.Status != models.DocStatusReady {
			continue
		}
		for _, chunk := range chunks {
			if filter.Safety != "" && chunk.Safety != filter.Safety {
				continue
			}
			if len(filter.Topics) > 0 && !anyTopicMatch(chunk.Topics, filter.Topics) {
				continue
			}
			if len(chunk.Vector) != len(queryVector) {
				continue
			}
			scored = append(scored, models.ScoredChunk{
				Chunk:     chunk,
				Title:     doc.Title,
				Relevance: relevanceScore(CosineSimilarity(queryVector, chunk.Vector)),
			})
		}
	}

	rankScored(scored)

	if filter.Limit > 0 && len(scored) > filter.Limit {
		scored = scored[:filter.Limit]
	}
	return scored, nil
}

func anyTopicMatch(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

func (s *MemoryStore) ListDocuments(ctx context.Context, docType string, topics []string) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	documents := make([]models.Document, 0)
	for _, doc := range s.docs {
		if doc.Status != models.DocStatusReady {
			continue
		}
		if docType != "" && doc.DocType != docType {
			continue
		}
		if len(topics) > 0 && !anyTopicMatch(doc.Topics, topics) {
			continue
		}
		documents = append(documents, doc)
	}

	// Newest first, matching the persistent store's listing order.
	sort.SliceStable(documents, func(i, j int) bool {
		if !documents[i].CreatedAt.Equal(documents[j].CreatedAt) {
			return documents[i].CreatedAt.After(documents[j].CreatedAt)
		}
		return documents[i].ID.Hex() > documents[j].ID.Hex()
	})
	return documents, nil
}

func (s *MemoryStore) DeleteDocument(ctx context.Context, id string) error {
	docID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[docID]; !ok {
		return ErrNotFound
	}
	delete(s.docs, docID)
	delete(s.chunks, docID)
	return nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}
