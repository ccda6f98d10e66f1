package push

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Subscription struct {
	UserID    string    `bson:"user_id" json:"user_id"`
	Endpoint  string    `bson:"endpoint" json:"endpoint"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type SubscriptionStore interface {
	Save(ctx context.Context, s Subscription) error
	Delete(ctx context.Context, userID, endpoint string) error
	List(ctx context.Context, userID string) ([]Subscription, error)
}

type MongoSubscriptions struct {
	coll *mongo.Collection
}

func NewMongoSubscriptions(db *mongo.Database) *MongoSubscriptions {
	return &MongoSubscriptions{coll: db.Collection("push_subscriptions")}
}

func (s *MongoSubscriptions) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "endpoint", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *MongoSubscriptions) Save(ctx context.Context, sub Subscription) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	filter := bson.M{"user_id": sub.UserID, "endpoint": sub.Endpoint}
	_, err := s.coll.UpdateOne(ctx, filter, bson.M{"$setOnInsert": sub}, options.Update().SetUpsert(true))
	return err
}

func (s *MongoSubscriptions) Delete(ctx context.Context, userID, endpoint string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := s.coll.DeleteOne(ctx, bson.M{"user_id": userID, "endpoint": endpoint})
	return err
}

func (s *MongoSubscriptions) List(ctx context.Context, userID string) ([]Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	cur, err := s.coll.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	out := []Subscription{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type MemorySubscriptions struct {
	mu   sync.RWMutex
	subs map[string]map[string]Subscription // user -> endpoint -> sub
}

func NewMemorySubscriptions() *MemorySubscriptions {
	return &MemorySubscriptions{subs: make(map[string]map[string]Subscription)}
}

func (s *MemorySubscriptions) Save(_ context.Context, sub Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub.UserID]; !ok {
		s.subs[sub.UserID] = make(map[string]Subscription)
	}
	if _, ok := s.subs[sub.UserID][sub.Endpoint]; !ok {
		s.subs[sub.UserID][sub.Endpoint] = sub
	}
	return nil
}

func (s *MemorySubscriptions) Delete(_ context.Context, userID, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs[userID], endpoint)
	return nil
}

func (s *MemorySubscriptions) List(_ context.Context, userID string) ([]Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Subscription{}
	for _, sub := range s.subs[userID] {
		out = append(out, sub)
	}
	return out, nil
}
