package users

import (
	"context"
	"errors"
	"time"

	"github.com/fathima-sithara/dm-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const opTimeout = 3 * time.Second

var snippetProjection = bson.M{"username": 1, "display_name": 1, "avatar": 1, "last_active": 1}

// MongoDirectory reads the users collection owned by the user service.
type MongoDirectory struct {
	coll *mongo.Collection
}

func NewMongoDirectory(db *mongo.Database) *MongoDirectory {
	return &MongoDirectory{coll: db.Collection("users")}
}

func (d *MongoDirectory) FindByID(ctx context.Context, id string) (*domain.UserSnippet, error) {
	return d.findOne(ctx, bson.M{"_id": id})
}

func (d *MongoDirectory) FindByUsername(ctx context.Context, username string) (*domain.UserSnippet, error) {
	return d.findOne(ctx, bson.M{"username": username})
}

func (d *MongoDirectory) findOne(ctx context.Context, filter bson.M) (*domain.UserSnippet, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var u domain.UserSnippet
	err := d.coll.FindOne(ctx, filter, options.FindOne().SetProjection(snippetProjection)).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (d *MongoDirectory) FindMany(ctx context.Context, ids []string) (map[string]*domain.UserSnippet, error) {
	out := make(map[string]*domain.UserSnippet, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	cur, err := d.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetProjection(snippetProjection))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var u domain.UserSnippet
		if err := cur.Decode(&u); err != nil {
			return nil, err
		}
		out[u.ID] = &u
	}
	return out, cur.Err()
}

type follow struct {
	FollowerID string `bson:"follower_id"`
	FolloweeID string `bson:"followee_id"`
}

// MongoGraph reads the follows collection.
type MongoGraph struct {
	coll *mongo.Collection
}

func NewMongoGraph(db *mongo.Database) *MongoGraph {
	return &MongoGraph{coll: db.Collection("follows")}
}

func (g *MongoGraph) Following(ctx context.Context, userID string) ([]string, error) {
	return g.edges(ctx, bson.M{"follower_id": userID}, func(f follow) string { return f.FolloweeID })
}

func (g *MongoGraph) Followers(ctx context.Context, userID string) ([]string, error) {
	return g.edges(ctx, bson.M{"followee_id": userID}, func(f follow) string { return f.FollowerID })
}

func (g *MongoGraph) edges(ctx context.Context, filter bson.M, pick func(follow) string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	cur, err := g.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []string{}
	for cur.Next(ctx) {
		var f follow
		if err := cur.Decode(&f); err != nil {
			return nil, err
		}
		out = append(out, pick(f))
	}
	return out, cur.Err()
}
