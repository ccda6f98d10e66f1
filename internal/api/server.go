package api

import (
	"context"
	"errors"
	"time"

	"github.com/fathima-sithara/dm-service/internal/apperror"
	"github.com/fathima-sithara/dm-service/internal/auth"
	"github.com/fathima-sithara/dm-service/internal/media"
	"github.com/fathima-sithara/dm-service/internal/middleware"
	"github.com/fathima-sithara/dm-service/internal/push"
	"github.com/fathima-sithara/dm-service/internal/service"
	"github.com/fathima-sithara/dm-service/internal/utils"
	"github.com/fathima-sithara/dm-service/internal/ws"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps are the collaborators behind the HTTP surface. Media, Subs, WS and
// Limiter are optional.
type Deps struct {
	Commands              *service.CommandService
	Queries               *service.QueryService
	Media                 *media.Service
	Subs                  push.SubscriptionStore
	WS                    *ws.Handler
	JWT                   *auth.JWTValidator
	Limiter               *middleware.RateLimiter
	Gatherer              prometheus.Gatherer
	RequestTimeout        time.Duration
	MaxUploadBytes        int
	AllowPrivateEndpoints bool
	Log                   *zap.SugaredLogger
}

func NewServer(d Deps) *fiber.App {
	bodyLimit := 4 * 1024 * 1024
	if d.MaxUploadBytes > bodyLimit {
		bodyLimit = d.MaxUploadBytes + 1024*1024
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 5 * time.Second
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	app := fiber.New(fiber.Config{
		BodyLimit:    bodyLimit,
		ErrorHandler: errorHandler(d.Log),
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	h := &Handlers{
		cmds:         d.Commands,
		queries:      d.Queries,
		media:        d.Media,
		subs:         d.Subs,
		allowPrivate: d.AllowPrivateEndpoints,
		timeout:      d.RequestTimeout,
		log:          d.Log,
	}

	app.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))

	v1 := app.Group("/v1")
	authn := auth.Middleware(d.JWT, d.Log)

	if d.WS != nil {
		v1.Get("/ws", authn, func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		}, websocket.New(d.WS.Serve))
	}

	v1.Use(authn)
	if d.Limiter != nil {
		v1.Use(d.Limiter.Handler())
	}

	v1.Post("/messages", h.sendMessage)
	v1.Patch("/messages/:msg_id", h.editMessage)
	v1.Post("/messages/:msg_id/read", h.markRead)
	v1.Post("/messages/:msg_id/reactions", h.toggleReaction)
	v1.Delete("/messages/:msg_id/reactions", h.removeReaction)

	v1.Get("/conversations", h.listConversations)
	v1.Get("/conversations/:user_id/messages", h.listMessages)
	v1.Post("/conversations/:user_id/read", h.markConversationRead)
	v1.Get("/threads/:thread_id/messages", h.fetchThread)

	v1.Get("/unread", h.unreadTotal)
	v1.Get("/contacts/suggestions", h.suggestContacts)
	v1.Post("/typing", h.typing)
	v1.Post("/media", h.uploadMedia)
	v1.Post("/push/subscriptions", h.subscribe)
	v1.Delete("/push/subscriptions", h.unsubscribe)

	return app
}

func errorHandler(log *zap.SugaredLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return utils.JSONError(c, fe.Code, "http_error", fe.Message)
		}
		status := apperror.HTTPStatus(err)
		code := string(apperror.KindOf(err))
		if code == "" {
			code = "internal"
		}
		if status >= fiber.StatusInternalServerError {
			log.Errorw("request failed", "method", c.Method(), "path", c.Path(), "err", err)
		}
		return utils.JSONError(c, status, code, apperror.ReasonOf(err))
	}
}

func (h *Handlers) ctx(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), h.timeout)
}
