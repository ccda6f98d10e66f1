package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type relayEnvelope struct {
	Origin     string          `json:"origin"`
	Recipients []string        `json:"recipients"`
	Frame      json.RawMessage `json:"frame"`
}

// RedisRelay mirrors events to other nodes over pub/sub. Each node
// ignores what it published itself.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
	nodeID  string
	log     *zap.SugaredLogger
}

func NewRedisRelay(rdb *redis.Client, channel, nodeID string, log *zap.SugaredLogger) *RedisRelay {
	return &RedisRelay{rdb: rdb, channel: channel, nodeID: nodeID, log: log}
}

func (r *RedisRelay) Forward(ctx context.Context, ev domain.Event, frame []byte) error {
	b, err := json.Marshal(relayEnvelope{Origin: r.nodeID, Recipients: ev.Targets(), Frame: frame})
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, b).Err()
}

// Run subscribes until ctx is done and hands foreign frames to deliver.
func (r *RedisRelay) Run(ctx context.Context, deliver func(userIDs []string, frame []byte)) {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.log.Warnw("bad relay payload", "err", err)
				continue
			}
			if env.Origin == r.nodeID {
				continue
			}
			deliver(env.Recipients, env.Frame)
		}
	}
}

// RedisPresence tracks connections across the cluster:
//   - <prefix>:conn:<user>  sorted set of connection ids scored by lease expiry, unix millis
//   - <prefix>:seen:<user>  last activity, unix millis
//
// A connection counts while its lease is unexpired. Live connections renew
// the lease through Touch, so ids left behind by a crashed node lapse after
// one ttl.
type RedisPresence struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisPresence(rdb *redis.Client, prefix string, ttl time.Duration) *RedisPresence {
	return &RedisPresence{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (p *RedisPresence) connKey(userID string) string { return fmt.Sprintf("%s:conn:%s", p.prefix, userID) }
func (p *RedisPresence) seenKey(userID string) string { return fmt.Sprintf("%s:seen:%s", p.prefix, userID) }

func (p *RedisPresence) Connected(ctx context.Context, userID, connID string) error {
	return p.lease(ctx, userID, connID)
}

// Touch renews the lease of a live connection.
func (p *RedisPresence) Touch(ctx context.Context, userID, connID string) error {
	return p.lease(ctx, userID, connID)
}

func (p *RedisPresence) lease(ctx context.Context, userID, connID string) error {
	now := time.Now()
	key := p.connKey(userID)
	pipe := p.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(now.UnixMilli(), 10))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.Add(p.ttl).UnixMilli()), Member: connID})
	pipe.Expire(ctx, key, p.ttl)
	pipe.Set(ctx, p.seenKey(userID), now.UnixMilli(), 0)
	_, err := pipe.Exec(ctx)
	return err
}

func (p *RedisPresence) Disconnected(ctx context.Context, userID, connID string) error {
	pipe := p.rdb.TxPipeline()
	pipe.ZRem(ctx, p.connKey(userID), connID)
	pipe.Set(ctx, p.seenKey(userID), time.Now().UnixMilli(), 0)
	_, err := pipe.Exec(ctx)
	return err
}

// IsOnline treats a Redis failure as offline, so the user gets a push.
func (p *RedisPresence) IsOnline(ctx context.Context, userID string) bool {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	n, err := p.rdb.ZCount(ctx, p.connKey(userID), "("+now, "+inf").Result()
	return err == nil && n > 0
}

func (p *RedisPresence) LastSeen(ctx context.Context, userID string) (time.Time, error) {
	v, err := p.rdb.Get(ctx, p.seenKey(userID)).Result()
	if err != nil {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
