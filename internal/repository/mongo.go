package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fathima-sithara/dm-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const opTimeout = 5 * time.Second

type MongoRepository struct {
	msgColl *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{msgColl: db.Collection("messages")}
}

func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.msgColl.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "recipient_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "read", Value: 1}}},
		{Keys: bson.D{{Key: "thread_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return err
}

func (r *MongoRepository) Insert(ctx context.Context, m *domain.Message) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if m.Reactions == nil {
		m.Reactions = []domain.Reaction{}
	}
	_, err := r.msgColl.InsertOne(ctx, m)
	return err
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var m domain.Message
	if err := r.msgColl.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return nil, notFound(err)
	}
	return normalize(&m), nil
}

func (r *MongoRepository) UpdateContent(ctx context.Context, id, content string, at time.Time) (*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return r.findOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"content": content, "edited": true, "edited_at": at}},
	)
}

func (r *MongoRepository) MarkConversationRead(ctx context.Context, counterpartID, readerID string, at time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	res, err := r.msgColl.UpdateMany(ctx,
		bson.M{"sender_id": counterpartID, "recipient_id": readerID, "read": false},
		bson.M{"$set": bson.M{"read": true, "read_at": at}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *MongoRepository) MarkOneRead(ctx context.Context, id, readerID string, at time.Time) (*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return r.findOneAndUpdate(ctx,
		bson.M{"_id": id, "recipient_id": readerID, "read": false},
		bson.M{"$set": bson.M{"read": true, "read_at": at}},
	)
}

func (r *MongoRepository) MarkRead(ctx context.Context, ids []string, readerID string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	res, err := r.msgColl.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "recipient_id": readerID, "read": false},
		bson.M{"$set": bson.M{"read": true, "read_at": at}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *MongoRepository) ToggleReaction(ctx context.Context, id, userID, emoji string, at time.Time) (*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return r.findOneAndUpdate(ctx, bson.M{"_id": id}, togglePipeline(userID, emoji, at))
}

func (r *MongoRepository) RemoveReaction(ctx context.Context, id, userID, emoji string) (*domain.Message, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	match := reactionMatch(userID, emoji)
	m, err := r.findOneAndUpdate(ctx,
		bson.M{"_id": id, "reactions": bson.M{"$elemMatch": match}},
		bson.M{"$pull": bson.M{"reactions": match}},
	)
	if err == nil {
		return m, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	// either the message or the reaction is missing
	m, err = r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return m, false, nil
}

func (r *MongoRepository) ListConversation(ctx context.Context, q ConversationQuery) ([]*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return r.find(ctx, conversationFilter(q), int64(q.Limit))
}

func (r *MongoRepository) ListThread(ctx context.Context, q ThreadQuery) ([]*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return r.find(ctx, threadFilter(q), int64(q.Limit))
}

// ScanForUser streams every message userID takes part in, newest first.
func (r *MongoRepository) ScanForUser(ctx context.Context, userID string, fn func(*domain.Message) error) error {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetBatchSize(500)
	cur, err := r.msgColl.Find(ctx, participantFilter(userID), opts)
	if err != nil {
		return err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var m domain.Message
		if err := cur.Decode(&m); err != nil {
			return err
		}
		if err := fn(normalize(&m)); err != nil {
			return err
		}
	}
	return cur.Err()
}

func (r *MongoRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return r.msgColl.CountDocuments(ctx, unreadFilter(userID))
}

func (r *MongoRepository) find(ctx context.Context, filter bson.M, limit int64) ([]*domain.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := r.msgColl.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*domain.Message{}
	for cur.Next(ctx) {
		var m domain.Message
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, normalize(&m))
	}
	return out, cur.Err()
}

func (r *MongoRepository) findOneAndUpdate(ctx context.Context, filter bson.M, update interface{}) (*domain.Message, error) {
	res := r.msgColl.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var m domain.Message
	if err := res.Decode(&m); err != nil {
		return nil, notFound(err)
	}
	return normalize(&m), nil
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func normalize(m *domain.Message) *domain.Message {
	if m.Reactions == nil {
		m.Reactions = []domain.Reaction{}
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return m
}
