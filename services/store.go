package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"aim-assistant-backend/models"
	"aim-assistant-backend/utils"
)

// ChunkRecord is one chunk to persist: its position in the document, its
// text and its embedding vector.
type ChunkRecord struct {
	Index   int
	Content string
	Vector  []float32
}

// Store is the vector index and document store. It is an explicitly owned,
// lifecycle-scoped resource so tests can run isolated instances.
//
// Write protocol: InsertDocument creates the parent row in a processing
// state invisible to readers; InsertChunks persists the chunk batch and then
// commits the parent. Readers therefore observe either the pre-ingestion or
// the fully-ingested state, never a chunk subset.
type Store interface {
	InsertDocument(ctx context.Context, doc *models.Document) (string, error)
	InsertChunks(ctx context.Context, documentID string, chunks []ChunkRecord) error
	Search(ctx context.Context, queryVector []float32, filter models.SearchFilter) ([]models.ScoredChunk, error)
	ListDocuments(ctx context.Context, docType string, topics []string) ([]models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	Close(ctx context.Context) error
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 for mismatched dimensions or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// relevanceScore maps cosine similarity onto [0,1].
func relevanceScore(cos float64) float64 {
	if cos < 0 {
		return 0
	}
	if cos > 1 {
		return 1
	}
	return cos
}

// rankScored orders scored chunks by relevance descending; ties break by
// chunk index ascending, then document id ascending, for determinism.
func rankScored(scored []models.ScoredChunk) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Relevance != scored[j].Relevance {
			return scored[i].Relevance > scored[j].Relevance
		}
		if scored[i].Chunk.ChunkIndex != scored[j].Chunk.ChunkIndex {
			return scored[i].Chunk.ChunkIndex < scored[j].Chunk.ChunkIndex
		}
		return scored[i].Chunk.DocumentID.Hex() < scored[j].Chunk.DocumentID.Hex()
	})
}

// MongoStore persists documents and chunks in MongoDB. Chunk bodies above
// compressThreshold are gzipped at rest.
type MongoStore struct {
	docs              *mongo.Collection
	chunks            *mongo.Collection
	client            *mongo.Client
	compressThreshold int
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	db := client.Database(dbName)
	return &MongoStore{
		docs:              db.Collection("rag_documents"),
		chunks:            db.Collection("rag_chunks"),
		client:            client,
		compressThreshold: 512,
	}
}

func (s *MongoStore) InsertDocument(ctx context.Context, doc *models.Document) (string, error) {
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

	if _, err := s.docs.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return doc.ID.Hex(), nil
}

func (s *MongoStore) InsertChunks(ctx context.Context, documentID string, chunks []ChunkRecord) error {
	docID, err := primitive.ObjectIDFromHex(documentID)
	if err != nil {
		return ErrNotFound
	}

	var doc models.Document
	if err := s.docs.FindOne(ctx, bson.M{"_id": docID}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	now := time.Now().UTC()
	records := make([]interface{}, 0, len(chunks))
	for _, ch := range chunks {
		content := ch.Content
		compressed := false
		if len(content) > s.compressThreshold {
			if packed, err := utils.CompressText(content); err == nil {
				content = base64.StdEncoding.EncodeToString(packed)
				compressed = true
			}
		}
		records = append(records, models.DocumentChunk{
			ID:         primitive.NewObjectID(),
			DocumentID: docID,
			ChunkIndex: ch.Index,
			Content:    content,
			Compressed: compressed,
			Topics:     doc.Topics,
			Safety:     doc.Safety,
			Vector:     ch.Vector,
			CreatedAt:  now,
		})
	}

	if _, err := s.chunks.InsertMany(ctx, records); err != nil {
		// Roll the partial batch back; the document stays uncommitted.
		s.chunks.DeleteMany(context.WithoutCancel(ctx), bson.M{"document_id": docID})
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	// Commit point: a single-document update, so readers flip atomically
	// from seeing nothing to seeing the whole document.
	_, err = s.docs.UpdateOne(ctx, bson.M{"_id": docID},
		bson.M{"$set": bson.M{"status": models.DocStatusReady}})
	if err != nil {
		s.chunks.DeleteMany(context.WithoutCancel(ctx), bson.M{"document_id": docID})
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return nil
}

func (s *MongoStore) Search(ctx context.Context, queryVector []float32, filter models.SearchFilter) ([]models.ScoredChunk, error) {
	match := bson.M{}
	if filter.Safety != "" {
		match["safety"] = filter.Safety
	}
	if len(filter.Topics) > 0 {
		match["topics"] = bson.M{"$in": filter.Topics}
	}

	cursor, err := s.chunks.Find(ctx, match)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	defer cursor.Close(ctx)

	var scored []models.ScoredChunk
	docIDs := make(map[primitive.ObjectID]bool)

	for cursor.Next(ctx) {
		var chunk models.DocumentChunk
		if err := cursor.Decode(&chunk); err != nil {
			continue
		}
		// Vectors from a different embedding space cannot be compared.
		if len(chunk.Vector) != len(queryVector) {
			continue
		}

		if chunk.Compressed {
			packed, err := base64.StdEncoding.DecodeString(chunk.Content)
			if err != nil {
				continue
			}
			text, err := utils.DecompressText(packed)
			if err != nil {
				continue
			}
			chunk.Content = text
			chunk.Compressed = false
		}

		scored = append(scored, models.ScoredChunk{
			Chunk:     chunk,
			Relevance: relevanceScore(CosineSimilarity(queryVector, chunk.Vector)),
		})
		docIDs[chunk.DocumentID] = true
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	titles, err := s.readyTitles(ctx, docIDs)
	if err != nil {
		return nil, err
	}

	// Drop chunks whose parent document is missing or uncommitted; a chunk is
	// never returned without its document's metadata.
	kept := scored[:0]
	for _, sc := range scored {
		title, ok := titles[sc.Chunk.DocumentID]
		if !ok {
			continue
		}
		sc.Title = title
		kept = append(kept, sc)
	}
	scored = kept

	rankScored(scored)

	if filter.Limit > 0 && len(scored) > filter.Limit {
		scored = scored[:filter.Limit]
	}
	return scored, nil
}

func (s *MongoStore) readyTitles(ctx context.Context, ids map[primitive.ObjectID]bool) (map[primitive.ObjectID]string, error) {
	titles := make(map[primitive.ObjectID]string, len(ids))
	if len(ids) == 0 {
		return titles, nil
	}

	idList := make([]primitive.ObjectID, 0, len(ids))
	for id := range ids {
		idList = append(idList, id)
	}

	cursor, err := s.docs.Find(ctx, bson.M{
		"_id":    bson.M{"$in": idList},
		"status": models.DocStatusReady,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc models.Document
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		titles[doc.ID] = doc.Title
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return titles, nil
}

func (s *MongoStore) ListDocuments(ctx context.Context, docType string, topics []string) ([]models.Document, error) {
	match := bson.M{"status": models.DocStatusReady}
	if docType != "" {
		match["doc_type"] = docType
	}
	if len(topics) > 0 {
		match["topics"] = bson.M{"$in": topics}
	}

	cursor, err := s.docs.Find(ctx, match,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	defer cursor.Close(ctx)

	documents := make([]models.Document, 0)
	if err := cursor.All(ctx, &documents); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return documents, nil
}

func (s *MongoStore) DeleteDocument(ctx context.Context, id string) error {
	docID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	// FindOneAndDelete is the claim: of two concurrent deletes only one wins,
	// the other observes NotFound.
	err = s.docs.FindOneAndDelete(ctx, bson.M{"_id": docID}).Err()
	if err == mongo.ErrNoDocuments {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	// Orphaned chunks in this window are invisible to Search, which joins
	// the parent row before returning anything.
	if _, err := s.chunks.DeleteMany(context.WithoutCancel(ctx), bson.M{"document_id": docID}); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
