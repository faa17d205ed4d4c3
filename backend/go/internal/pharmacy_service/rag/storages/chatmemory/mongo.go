package chatmemory

import (
	"PharmaChat/backend/go/internal/models"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/interfaces"
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore stores turns in one collection and per-conversation counters in another.
type MongoStore struct {
	turns    *mongo.Collection
	counters *mongo.Collection
}

// NewMongoStore creates a MongoStore and ensures the (conversation_id, sequence) unique index.
func NewMongoStore(ctx context.Context, db *mongo.Database) (*MongoStore, error) {
	s := &MongoStore{
		turns:    db.Collection("conversation_turns"),
		counters: db.Collection("conversation_counters"),
	}
	_, err := s.turns.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "sequence", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("create turn index: %w", err)
	}
	return s, nil
}

func (s *MongoStore) nextSequence(ctx context.Context, conversationID string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": conversationID},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("increment sequence: %w", err)
	}
	return counter.Seq, nil
}

func (s *MongoStore) Append(ctx context.Context, conversationID string, role models.SpeakerRole, text string) (models.ConversationTurn, error) {
	seq, err := s.nextSequence(ctx, conversationID)
	if err != nil {
		return models.ConversationTurn{}, err
	}
	turn := models.ConversationTurn{
		ConversationID: conversationID,
		Role:           role,
		Text:           text,
		Sequence:       seq,
		CreatedAt:      time.Now().UTC(),
	}
	if _, err := s.turns.InsertOne(ctx, turn); err != nil {
		return models.ConversationTurn{}, fmt.Errorf("insert turn: %w", err)
	}
	return turn, nil
}

func (s *MongoStore) RecentTurns(ctx context.Context, conversationID string, limit int) ([]models.ConversationTurn, error) {
	if limit <= 0 {
		return nil, nil
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "sequence", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.turns.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var turns []models.ConversationTurn
	if err = cursor.All(ctx, &turns); err != nil {
		return nil, err
	}
	reverse(turns)
	return turns, nil
}

// reverse turns newest-first query results into oldest-first order.
func reverse(turns []models.ConversationTurn) {
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
}

// compile-time check to ensure MongoStore implements the ChatMemory interface
var _ interfaces.ChatMemory = (*MongoStore)(nil)
