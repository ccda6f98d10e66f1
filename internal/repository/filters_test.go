package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestConversationFilter(t *testing.T) {
	before := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	f := conversationFilter(ConversationQuery{
		UserID: "alice", CounterpartID: "bob",
		Before: before, Start: start, Text: "a.b",
	})

	assert.Equal(t, []bson.M{
		{"sender_id": "alice", "recipient_id": "bob"},
		{"sender_id": "bob", "recipient_id": "alice"},
	}, f["$or"])
	assert.Equal(t, bson.M{"$lt": before, "$gte": start}, f["created_at"])
	assert.Equal(t, bson.M{"$regex": `a\.b`, "$options": "i"}, f["content"])
}

func TestConversationFilterWithoutBounds(t *testing.T) {
	f := conversationFilter(ConversationQuery{UserID: "alice", CounterpartID: "bob"})

	assert.NotContains(t, f, "created_at")
	assert.NotContains(t, f, "content")
}

func TestThreadFilter(t *testing.T) {
	f := threadFilter(ThreadQuery{ThreadID: "t1", ViewerID: "alice"})

	assert.Equal(t, "t1", f["thread_id"])
	assert.Equal(t, []bson.M{{"sender_id": "alice"}, {"recipient_id": "alice"}}, f["$or"])
	assert.NotContains(t, f, "created_at")
}

func TestReactionMatch(t *testing.T) {
	assert.Equal(t, bson.M{"user_id": "bob"}, reactionMatch("bob", ""))
	assert.Equal(t, bson.M{"user_id": "bob", "emoji": "👍"}, reactionMatch("bob", "👍"))
}

func TestTogglePipelineLiteralsUserInput(t *testing.T) {
	p := togglePipeline("$bob", "$emoji", time.Unix(0, 0))

	assert.Len(t, p, 1)
	raw, err := bson.MarshalExtJSON(p[0], false, false)
	assert.NoError(t, err)
	assert.Contains(t, string(raw), `{"$literal":"$bob"}`)
	assert.Contains(t, string(raw), `{"$literal":"$emoji"}`)
}
