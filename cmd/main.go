package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fathima-sithara/dm-service/internal/api"
	"github.com/fathima-sithara/dm-service/internal/auth"
	"github.com/fathima-sithara/dm-service/internal/config"
	"github.com/fathima-sithara/dm-service/internal/kafka"
	"github.com/fathima-sithara/dm-service/internal/media"
	"github.com/fathima-sithara/dm-service/internal/metrics"
	"github.com/fathima-sithara/dm-service/internal/middleware"
	"github.com/fathima-sithara/dm-service/internal/push"
	"github.com/fathima-sithara/dm-service/internal/realtime"
	"github.com/fathima-sithara/dm-service/internal/repository"
	"github.com/fathima-sithara/dm-service/internal/service"
	"github.com/fathima-sithara/dm-service/internal/users"
	"github.com/fathima-sithara/dm-service/internal/utils"
	"github.com/fathima-sithara/dm-service/internal/ws"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Log.Dev, cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Fatalw("metrics register", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		repo  repository.MessageRepository
		dir   users.Directory
		graph users.Graph
		subs  push.SubscriptionStore
	)
	switch cfg.Storage.Driver {
	case "mongo":
		mc, err := repository.NewMongoClient(ctx, cfg.Mongo.URI, cfg.MongoTimeout)
		if err != nil {
			logger.Fatalw("mongo init", "err", err)
		}
		defer func() { _ = mc.Disconnect(context.Background()) }()
		db := mc.Database(cfg.Mongo.DB)

		mrepo := repository.NewMongoRepository(db)
		msubs := push.NewMongoSubscriptions(db)
		ictx, cancel := context.WithTimeout(ctx, cfg.MongoTimeout)
		if err := mrepo.EnsureIndexes(ictx); err != nil {
			logger.Warnw("message indexes", "err", err)
		}
		if err := msubs.EnsureIndexes(ictx); err != nil {
			logger.Warnw("push subscription indexes", "err", err)
		}
		cancel()
		repo, dir, graph, subs = mrepo, users.NewMongoDirectory(db), users.NewMongoGraph(db), msubs
	default:
		logger.Warnw("using in-memory storage, data is lost on restart")
		repo, dir, graph, subs = repository.NewMemoryRepository(), users.NewMemoryDirectory(), users.NewMemoryGraph(), push.NewMemorySubscriptions()
	}

	reg := realtime.NewRegistry()
	var (
		presence service.Presence = reg
		tracker  ws.Tracker
		relay    *realtime.RedisRelay
	)
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatalw("redis ping", "addr", cfg.Redis.Addr, "err", err)
		}
		dir = users.NewCachedDirectory(dir, rdb, cfg.Redis.Prefix, cfg.CacheTTL, logger)
		rp := realtime.NewRedisPresence(rdb, cfg.Redis.Prefix, cfg.PresenceTTL)
		presence, tracker = rp, rp
		relay = realtime.NewRedisRelay(rdb, cfg.Redis.Channel, cfg.App.NodeID, logger)
	}

	var closers []func() error
	fanOpts := []realtime.Option{realtime.WithPresence(presence), realtime.WithQueueSize(cfg.WS.EventQueueSize)}
	if relay != nil {
		fanOpts = append(fanOpts, realtime.WithSink(relay))
	}
	if cfg.Kafka.Enabled {
		events := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, true)
		closers = append(closers, events.Close)
		fanOpts = append(fanOpts, realtime.WithSink(realtime.NewKafkaSink(events)))
	}

	var queue push.Queue
	if cfg.Push.Enabled {
		queue = buildPushQueue(ctx, cfg, subs, logger)
		fanOpts = append(fanOpts, realtime.WithPush(queue))
	}
	fanout := realtime.NewFanout(reg, logger, fanOpts...)

	if relay != nil {
		go relay.Run(ctx, fanout.DeliverLocal)
	}

	var mediaSvc *media.Service
	if cfg.S3.Enabled {
		store, err := media.NewS3Store(ctx, cfg.S3.Region, cfg.S3.Bucket, cfg.S3.Endpoint, cfg.S3.PublicRead)
		if err != nil {
			logger.Fatalw("s3 init", "err", err)
		}
		mediaSvc = media.NewService(store, cfg.S3.MaxUploadMB<<20, cfg.S3.ThumbnailWidth, cfg.PresignTTL, logger)
	}

	var jv *auth.JWTValidator
	if strings.EqualFold(cfg.JWT.Alg, "RS256") {
		jv, err = auth.NewJWTValidatorRS256(cfg.JWT.PublicKeyPath)
		if err != nil {
			logger.Fatalw("jwt validator init", "err", err)
		}
	} else {
		jv = auth.NewJWTValidatorHS256(cfg.JWT.HSSecret)
	}

	clock := utils.NewClock()
	cmds := service.NewCommandService(repo, dir, presence, fanout, clock, logger)
	queries := service.NewQueryService(repo, dir, graph, presence, clock, logger)
	wsh := ws.NewHandler(reg, cmds, tracker, ws.Config{
		PingInterval:   cfg.PingInterval,
		WriteDeadline:  cfg.WriteDeadline,
		MaxMessageSize: cfg.WS.MaxMessageSizeBytes,
		SendBuffer:     cfg.WS.SendBuffer,
	}, logger)

	limiter := middleware.NewRateLimiter(cfg.App.RateLimitPerMin, 20, logger)
	defer limiter.Stop()

	app := api.NewServer(api.Deps{
		Commands:              cmds,
		Queries:               queries,
		Media:                 mediaSvc,
		Subs:                  subs,
		WS:                    wsh,
		JWT:                   jv,
		Limiter:               limiter,
		Gatherer:              prometheus.DefaultGatherer,
		RequestTimeout:        cfg.RequestTimeout,
		MaxUploadBytes:        int(cfg.S3.MaxUploadMB << 20),
		AllowPrivateEndpoints: cfg.Push.AllowPrivateEndpoints,
		Log:                   logger,
	})

	errs := make(chan error, 1)
	go func() {
		addr := ":" + cfg.App.PortString()
		logger.Infow("dm service listening", "addr", addr, "node_id", cfg.App.NodeID, "storage", cfg.Storage.Driver)
		errs <- app.Listen(addr)
	}()

	select {
	case err := <-errs:
		logger.Errorw("server stopped", "err", err)
	case <-ctx.Done():
		logger.Infow("shutdown signal received")
	}

	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(sctx); err != nil {
		logger.Warnw("fiber shutdown", "err", err)
	}
	stop()
	fanout.Close()
	if queue != nil {
		if err := queue.Close(); err != nil {
			logger.Warnw("push queue close", "err", err)
		}
	}
	for _, c := range closers {
		if err := c(); err != nil {
			logger.Warnw("close", "err", err)
		}
	}
	logger.Infow("dm service stopped")
}

// buildPushQueue returns an in-process worker pool, or a Kafka topic with a
// consumer on this node when push.queue is "kafka".
func buildPushQueue(ctx context.Context, cfg *config.Config, subs push.SubscriptionStore, logger *zap.SugaredLogger) push.Queue {
	wc := push.WebhookConfig{
		Timeout:         cfg.PushTimeout,
		RetryMaxElapsed: cfg.PushRetryMax,
		MaxFailures:     cfg.Push.BreakerMaxFailures,
		BreakerTimeout:  cfg.BreakerTimeout,
		AllowPrivate:    cfg.Push.AllowPrivateEndpoints,
	}
	pusher := push.NewWebhookPusher(subs, wc, logger)

	if cfg.Push.Queue != "kafka" {
		return push.NewLocalQueue(pusher, cfg.Push.Workers, cfg.Push.QueueSize, wc.JobTimeout(), logger)
	}

	cons := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicPush, cfg.Kafka.GroupID, logger)
	worker := push.NewWorker(cons, pusher, wc.JobTimeout(), logger)
	go func() {
		defer cons.Close()
		if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Errorw("push worker stopped", "err", err)
		}
	}()
	return push.NewKafkaQueue(kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicPush, true), logger)
}
