package middleware

import (
	"net"
	"sync"
	"time"

	"github.com/fathima-sithara/dm-service/internal/auth"
	"github.com/fathima-sithara/dm-service/internal/utils"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter throttles each caller, keyed by user id when authenticated
// and by client IP otherwise.
type RateLimiter struct {
	visitors sync.Map
	rps      rate.Limit
	burst    int
	idle     time.Duration
	log      *zap.SugaredLogger
	stop     chan struct{}
	once     sync.Once
}

type visitor struct {
	limiter  *rate.Limiter
	mu       sync.Mutex
	lastSeen time.Time
}

func NewRateLimiter(perMinute, burst int, log *zap.SugaredLogger) *RateLimiter {
	if burst <= 0 {
		burst = 5
	}
	l := &RateLimiter{
		rps:   rate.Limit(float64(perMinute) / 60.0),
		burst: burst,
		idle:  5 * time.Minute,
		log:   log,
		stop:  make(chan struct{}),
	}
	go l.cleanupVisitors()
	return l
}

func (l *RateLimiter) getLimiter(key string) *rate.Limiter {
	now := time.Now()
	v, _ := l.visitors.LoadOrStore(key, &visitor{limiter: rate.NewLimiter(l.rps, l.burst), lastSeen: now})
	vi := v.(*visitor)
	vi.mu.Lock()
	vi.lastSeen = now
	vi.mu.Unlock()
	return vi.limiter
}

func (l *RateLimiter) cleanupVisitors() {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-t.C:
			cutoff := time.Now().Add(-l.idle)
			l.visitors.Range(func(k, v interface{}) bool {
				vi := v.(*visitor)
				vi.mu.Lock()
				stale := vi.lastSeen.Before(cutoff)
				vi.mu.Unlock()
				if stale {
					l.visitors.Delete(k)
				}
				return true
			})
		}
	}
}

func (l *RateLimiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

func (l *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := auth.UserID(c)
		if key == "" {
			key = "ip:" + getIP(c)
		}
		if !l.getLimiter(key).Allow() {
			l.log.Warnw("rate limit exceeded", "key", key, "path", c.Path())
			return utils.JSONError(c, fiber.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
		}
		return c.Next()
	}
}

func getIP(c *fiber.Ctx) string {
	ip := c.IP()
	if ip == "" {
		ip = "unknown"
	}
	host, _, err := net.SplitHostPort(ip)
	if err == nil {
		return host
	}
	return ip
}
