package users

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/fathima-sithara/dm-service/internal/domain"
)

var ErrNotFound = errors.New("user not found")

// Directory resolves user profiles.
type Directory interface {
	FindByID(ctx context.Context, id string) (*domain.UserSnippet, error)
	FindByUsername(ctx context.Context, username string) (*domain.UserSnippet, error)
	// FindMany returns the profiles that exist; unknown ids are left out.
	FindMany(ctx context.Context, ids []string) (map[string]*domain.UserSnippet, error)
}

// Graph is the follow relation.
type Graph interface {
	Following(ctx context.Context, userID string) ([]string, error)
	Followers(ctx context.Context, userID string) ([]string, error)
}

type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]domain.UserSnippet
}

func NewMemoryDirectory(users ...domain.UserSnippet) *MemoryDirectory {
	d := &MemoryDirectory{users: make(map[string]domain.UserSnippet)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *MemoryDirectory) Put(u domain.UserSnippet) {
	d.mu.Lock()
	d.users[u.ID] = u
	d.mu.Unlock()
}

func (d *MemoryDirectory) FindByID(_ context.Context, id string) (*domain.UserSnippet, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (d *MemoryDirectory) FindByUsername(_ context.Context, username string) (*domain.UserSnippet, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, u := range d.users {
		if strings.EqualFold(u.Username, username) {
			u := u
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (d *MemoryDirectory) FindMany(ctx context.Context, ids []string) (map[string]*domain.UserSnippet, error) {
	out := make(map[string]*domain.UserSnippet, len(ids))
	for _, id := range ids {
		if u, err := d.FindByID(ctx, id); err == nil {
			out[id] = u
		}
	}
	return out, nil
}

type MemoryGraph struct {
	mu      sync.RWMutex
	follows map[string]map[string]struct{} // follower -> followees
}

func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{follows: make(map[string]map[string]struct{})}
}

func (g *MemoryGraph) Follow(follower, followee string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.follows[follower]; !ok {
		g.follows[follower] = make(map[string]struct{})
	}
	g.follows[follower][followee] = struct{}{}
}

func (g *MemoryGraph) Unfollow(follower, followee string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.follows[follower], followee)
}

func (g *MemoryGraph) Following(_ context.Context, userID string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := []string{}
	for id := range g.follows[userID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (g *MemoryGraph) Followers(_ context.Context, userID string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := []string{}
	for follower, set := range g.follows {
		if _, ok := set[userID]; ok {
			out = append(out, follower)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Mutual returns the users that userID follows and that follow back,
// excluding userID itself.
func Mutual(ctx context.Context, g Graph, userID string) ([]string, error) {
	following, err := g.Following(ctx, userID)
	if err != nil {
		return nil, err
	}
	followers, err := g.Followers(ctx, userID)
	if err != nil {
		return nil, err
	}
	back := make(map[string]struct{}, len(followers))
	for _, id := range followers {
		back[id] = struct{}{}
	}
	out := []string{}
	for _, id := range following {
		if id == userID {
			continue
		}
		if _, ok := back[id]; ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}
