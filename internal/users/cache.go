package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedDirectory is a read-through Redis cache in front of another Directory.
type CachedDirectory struct {
	next   Directory
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	log    *zap.SugaredLogger
}

func NewCachedDirectory(next Directory, rdb *redis.Client, prefix string, ttl time.Duration, log *zap.SugaredLogger) *CachedDirectory {
	return &CachedDirectory{next: next, rdb: rdb, prefix: prefix, ttl: ttl, log: log}
}

func (d *CachedDirectory) key(id string) string { return fmt.Sprintf("%s:user:%s", d.prefix, id) }

func (d *CachedDirectory) FindByID(ctx context.Context, id string) (*domain.UserSnippet, error) {
	b, err := d.rdb.Get(ctx, d.key(id)).Bytes()
	if err == nil {
		var u domain.UserSnippet
		if jerr := json.Unmarshal(b, &u); jerr == nil {
			return &u, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		d.log.Warnw("user cache read failed", "user_id", id, "err", err)
	}

	u, err := d.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d.store(ctx, u)
	return u, nil
}

// FindByUsername always asks the backing directory; results warm the id cache.
func (d *CachedDirectory) FindByUsername(ctx context.Context, username string) (*domain.UserSnippet, error) {
	u, err := d.next.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	d.store(ctx, u)
	return u, nil
}

func (d *CachedDirectory) FindMany(ctx context.Context, ids []string) (map[string]*domain.UserSnippet, error) {
	out := make(map[string]*domain.UserSnippet, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = d.key(id)
	}
	var missing []string
	vals, err := d.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		d.log.Warnw("user cache mget failed", "err", err)
		missing = ids
	} else {
		for i, v := range vals {
			s, ok := v.(string)
			var u domain.UserSnippet
			if !ok || json.Unmarshal([]byte(s), &u) != nil {
				missing = append(missing, ids[i])
				continue
			}
			out[ids[i]] = &u
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	found, err := d.next.FindMany(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, u := range found {
		out[id] = u
		d.store(ctx, u)
	}
	return out, nil
}

func (d *CachedDirectory) store(ctx context.Context, u *domain.UserSnippet) {
	b, err := json.Marshal(u)
	if err != nil {
		return
	}
	if err := d.rdb.Set(ctx, d.key(u.ID), b, d.ttl).Err(); err != nil {
		d.log.Warnw("user cache write failed", "user_id", u.ID, "err", err)
	}
}
