package repository

import (
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func participantFilter(userID string) bson.M {
	return bson.M{"$or": []bson.M{
		{"sender_id": userID},
		{"recipient_id": userID},
	}}
}

func createdAtRange(before, start, end time.Time) bson.M {
	r := bson.M{}
	if !before.IsZero() {
		r["$lt"] = before
	}
	if !start.IsZero() {
		r["$gte"] = start
	}
	if !end.IsZero() {
		r["$lte"] = end
	}
	return r
}

func conversationFilter(q ConversationQuery) bson.M {
	filter := bson.M{"$or": []bson.M{
		{"sender_id": q.UserID, "recipient_id": q.CounterpartID},
		{"sender_id": q.CounterpartID, "recipient_id": q.UserID},
	}}
	if r := createdAtRange(q.Before, q.Start, q.End); len(r) > 0 {
		filter["created_at"] = r
	}
	if q.Text != "" {
		filter["content"] = bson.M{"$regex": regexp.QuoteMeta(q.Text), "$options": "i"}
	}
	return filter
}

func threadFilter(q ThreadQuery) bson.M {
	filter := participantFilter(q.ViewerID)
	filter["thread_id"] = q.ThreadID
	if !q.Before.IsZero() {
		filter["created_at"] = bson.M{"$lt": q.Before}
	}
	return filter
}

func unreadFilter(userID string) bson.M {
	return bson.M{"recipient_id": userID, "read": false}
}

func reactionMatch(userID, emoji string) bson.M {
	m := bson.M{"user_id": userID}
	if emoji != "" {
		m["emoji"] = emoji
	}
	return m
}

// togglePipeline replaces, adds or removes userID's reaction in one update.
// Values are wrapped in $literal so user input is never read as a field path.
func togglePipeline(userID, emoji string, at time.Time) mongo.Pipeline {
	reactions := bson.M{"$ifNull": bson.A{"$reactions", bson.A{}}}
	mine := bson.M{"$filter": bson.M{
		"input": reactions,
		"cond":  bson.M{"$eq": bson.A{"$$this.user_id", bson.M{"$literal": userID}}},
	}}
	others := bson.M{"$filter": bson.M{
		"input": reactions,
		"cond":  bson.M{"$ne": bson.A{"$$this.user_id", bson.M{"$literal": userID}}},
	}}
	added := bson.M{
		"user_id":    bson.M{"$literal": userID},
		"emoji":      bson.M{"$literal": emoji},
		"created_at": at,
	}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"reactions": bson.M{"$let": bson.M{
				"vars": bson.M{"mine": mine, "others": others},
				"in": bson.M{"$cond": bson.A{
					bson.M{"$in": bson.A{bson.M{"$literal": emoji}, "$$mine.emoji"}},
					"$$others",
					bson.M{"$concatArrays": bson.A{"$$others", bson.A{added}}},
				}},
			}},
		}}},
	}
}
