package users

import (
	"context"
	"testing"

	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDirectory(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDirectory(domain.UserSnippet{ID: "alice", Username: "alice"})
	d.Put(domain.UserSnippet{ID: "bob", DisplayName: "Bob B"})

	u, err := d.FindByID(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "Bob B", u.Name())

	_, err = d.FindByID(ctx, "carol")
	assert.ErrorIs(t, err, ErrNotFound)

	u, err = d.FindByUsername(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.ID)
	_, err = d.FindByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	many, err := d.FindMany(ctx, []string{"alice", "carol", "bob"})
	require.NoError(t, err)
	assert.Len(t, many, 2)
	assert.Contains(t, many, "alice")
	assert.NotContains(t, many, "carol")
}

func TestMutual(t *testing.T) {
	g := NewMemoryGraph()
	g.Follow("alice", "bob")
	g.Follow("bob", "alice")
	g.Follow("alice", "carol")
	g.Follow("dave", "alice")
	g.Follow("alice", "erin")
	g.Follow("erin", "alice")
	g.Follow("alice", "alice")

	got, err := Mutual(context.Background(), g, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "erin"}, got)

	g.Unfollow("erin", "alice")
	got, err = Mutual(context.Background(), g, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, got)
}
