// Package analytics 消费查询事件，统计目录中答不上来的问题。
package analytics

import (
	"PharmaChat/backend/go/internal/models"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// QueryCount 是一个归一化后的问题及其出现次数。
type QueryCount struct {
	Query    string    `json:"query" bson:"_id"`
	Count    int       `json:"count" bson:"count"`
	LastSeen time.Time `json:"lastSeen" bson:"last_seen"`
}

// EventStore defines the interface for query event persistence.
type EventStore interface {
	Save(ctx context.Context, event *models.QueryEvent) error
	// Unanswered returns the most frequent queries that ended without catalog data.
	Unanswered(ctx context.Context, since time.Time, limit int) ([]QueryCount, error)
}

// NormalizeQuery lower-cases and collapses whitespace so that repeats group together.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// MongoEventStore is an implementation of EventStore using MongoDB.
type MongoEventStore struct {
	collection *mongo.Collection
}

// NewMongoEventStore creates a new MongoEventStore and its indexes.
func NewMongoEventStore(ctx context.Context, db *mongo.Database, collectionName string) (*MongoEventStore, error) {
	coll := db.Collection(collectionName)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "outcome", Value: 1}, {Key: "timestamp", Value: -1}},
	})
	if err != nil {
		return nil, err
	}
	return &MongoEventStore{collection: coll}, nil
}

// mongoEvent 在原始事件上附加归一化后的问题，便于分组。
type mongoEvent struct {
	models.QueryEvent `bson:",inline"`
	Normalized        string `bson:"normalized"`
}

// Save inserts an event.
func (s *MongoEventStore) Save(ctx context.Context, event *models.QueryEvent) error {
	_, err := s.collection.InsertOne(ctx, mongoEvent{QueryEvent: *event, Normalized: NormalizeQuery(event.Query)})
	return err
}

// Unanswered groups no-data events by normalized query.
func (s *MongoEventStore) Unanswered(ctx context.Context, since time.Time, limit int) ([]QueryCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"outcome":   models.OutcomeNoData,
			"timestamp": bson.M{"$gte": since},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":       "$normalized",
			"count":     bson.M{"$sum": 1},
			"last_seen": bson.M{"$max": "$timestamp"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: int64(limit)}},
	}
	cursor, err := s.collection.Aggregate(ctx, pipeline, options.Aggregate())
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []QueryCount
	if err = cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MemoryEventStore keeps events in process; used when MongoDB is not configured.
type MemoryEventStore struct {
	mu     sync.Mutex
	events []models.QueryEvent
}

// NewMemoryEventStore creates an empty store.
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{}
}

func (s *MemoryEventStore) Save(ctx context.Context, event *models.QueryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *event)
	return nil
}

func (s *MemoryEventStore) Unanswered(ctx context.Context, since time.Time, limit int) ([]QueryCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups := make(map[string]*QueryCount)
	for _, e := range s.events {
		if e.Outcome != models.OutcomeNoData || e.Timestamp.Before(since) {
			continue
		}
		key := NormalizeQuery(e.Query)
		g, ok := groups[key]
		if !ok {
			g = &QueryCount{Query: key}
			groups[key] = g
		}
		g.Count++
		if e.Timestamp.After(g.LastSeen) {
			g.LastSeen = e.Timestamp
		}
	}

	out := make([]QueryCount, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Query < out[j].Query
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
