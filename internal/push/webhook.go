package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var errGone = errors.New("push endpoint gone")

type WebhookConfig struct {
	Timeout         time.Duration
	RetryMaxElapsed time.Duration
	MaxFailures     uint32
	BreakerTimeout  time.Duration
	// AllowPrivate lifts the endpoint address checks. Local testing only.
	AllowPrivate bool
}

// JobTimeout bounds one delivery: the whole retry window plus one last
// request.
func (c WebhookConfig) JobTimeout() time.Duration {
	return c.RetryMaxElapsed + c.Timeout
}

// WebhookPusher posts notifications as JSON to each registered endpoint.
// Endpoints answering 404 or 410 are forgotten. Every endpoint has its own
// circuit breaker.
type WebhookPusher struct {
	subs     SubscriptionStore
	client   *http.Client
	breakers sync.Map // endpoint -> *gobreaker.CircuitBreaker
	conf     WebhookConfig
	log      *zap.SugaredLogger
}

func NewWebhookPusher(subs SubscriptionStore, conf WebhookConfig, log *zap.SugaredLogger) *WebhookPusher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !conf.AllowPrivate {
		dialer := &net.Dialer{Timeout: conf.Timeout, Control: dialControl}
		transport.DialContext = dialer.DialContext
		transport.Proxy = nil
	}
	return &WebhookPusher{
		subs:   subs,
		client: &http.Client{Timeout: conf.Timeout, Transport: transport},
		conf:   conf,
		log:    log,
	}
}

func (p *WebhookPusher) breaker(endpoint string) *gobreaker.CircuitBreaker {
	if cb, ok := p.breakers.Load(endpoint); ok {
		return cb.(*gobreaker.CircuitBreaker)
	}
	st := gobreaker.Settings{
		Name:        endpoint,
		MaxRequests: 1,
		Timeout:     p.conf.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= p.conf.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errGone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.log.Infow("circuit breaker state", "endpoint", name, "from", from.String(), "to", to.String())
		},
	}
	cb, _ := p.breakers.LoadOrStore(endpoint, gobreaker.NewCircuitBreaker(st))
	return cb.(*gobreaker.CircuitBreaker)
}

func (p *WebhookPusher) Dispatch(ctx context.Context, userID string, n Notification) (Result, error) {
	subs, err := p.subs.List(ctx, userID)
	if err != nil {
		return Skipped, fmt.Errorf("list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return Skipped, nil
	}
	body, err := json.Marshal(n)
	if err != nil {
		return Skipped, err
	}

	result := Skipped
	var lastErr error
	for _, s := range subs {
		err := p.send(ctx, s.Endpoint, body)
		switch {
		case err == nil:
			result = Delivered
		case errors.Is(err, errGone), errors.Is(err, ErrEndpointNotAllowed):
			p.log.Infow("removing push endpoint", "user_id", userID, "endpoint", s.Endpoint, "reason", err)
			if derr := p.subs.Delete(ctx, userID, s.Endpoint); derr != nil {
				p.log.Warnw("remove push endpoint failed", "user_id", userID, "err", derr)
			}
		default:
			lastErr = err
		}
	}
	if result == Delivered {
		return Delivered, nil
	}
	return Skipped, lastErr
}

func (p *WebhookPusher) send(ctx context.Context, endpoint string, body []byte) error {
	if !p.conf.AllowPrivate {
		if err := CheckEndpoint(endpoint); err != nil {
			return err
		}
	}
	cb := p.breaker(endpoint)
	operation := func() error {
		_, err := cb.Execute(func() (interface{}, error) {
			return nil, p.post(ctx, endpoint, body)
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, errGone), errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(err)
		default:
			return err
		}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = p.conf.RetryMaxElapsed
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

func (p *WebhookPusher) post(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("TTL", "86400")

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrEndpointNotAllowed) {
			return backoff.Permanent(err)
		}
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return errGone
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("push endpoint status %d", resp.StatusCode)
	default:
		return backoff.Permanent(fmt.Errorf("push endpoint status %d", resp.StatusCode))
	}
}
