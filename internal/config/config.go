package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Env                    string `mapstructure:"env"`
	Port                   int    `mapstructure:"port"`
	NodeID                 string `mapstructure:"node_id"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
	RequestTimeoutSeconds  int    `mapstructure:"request_timeout_seconds"`
	RateLimitPerMin        int    `mapstructure:"rate_limit_per_min"`
}

func (a *AppConfig) PortString() string { return fmt.Sprintf("%d", a.Port) }

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // mongo | memory
}

type MongoConfig struct {
	URI            string `mapstructure:"uri"`
	DB             string `mapstructure:"db"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type RedisConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Addr            string `mapstructure:"addr"`
	Password        string `mapstructure:"password"`
	DB              int    `mapstructure:"db"`
	Prefix          string `mapstructure:"prefix"`
	Channel         string `mapstructure:"channel"`
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"`
}

type KafkaConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	TopicEvents string   `mapstructure:"topic_events"`
	TopicPush   string   `mapstructure:"topic_push"`
	GroupID     string   `mapstructure:"group_id"`
}

type JWTConfig struct {
	Alg           string `mapstructure:"alg"`
	PublicKeyPath string `mapstructure:"public_key_path"`
	HSSecret      string `mapstructure:"hs_secret"`
}

type WSConfig struct {
	PingIntervalSeconds  int   `mapstructure:"ping_interval_seconds"`
	WriteDeadlineSeconds int   `mapstructure:"write_deadline_seconds"`
	MaxMessageSizeBytes  int64 `mapstructure:"max_message_size_bytes"`
	SendBuffer           int   `mapstructure:"send_buffer"`
	EventQueueSize       int   `mapstructure:"event_queue_size"`
}

type PushConfig struct {
	Enabled                bool   `mapstructure:"enabled"`
	Queue                  string `mapstructure:"queue"` // local | kafka
	Workers                int    `mapstructure:"workers"`
	QueueSize              int    `mapstructure:"queue_size"`
	TimeoutSeconds         int    `mapstructure:"timeout_seconds"`
	RetryMaxElapsedSeconds int    `mapstructure:"retry_max_elapsed_seconds"`
	BreakerMaxFailures     uint32 `mapstructure:"breaker_max_failures"`
	BreakerTimeoutSeconds  int    `mapstructure:"breaker_timeout_seconds"`
	AllowPrivateEndpoints  bool   `mapstructure:"allow_private_endpoints"`
}

type S3Config struct {
	Enabled           bool   `mapstructure:"enabled"`
	Region            string `mapstructure:"region"`
	Bucket            string `mapstructure:"bucket"`
	Endpoint          string `mapstructure:"endpoint"`
	PublicRead        bool   `mapstructure:"public_read"`
	PresignTTLMinutes int    `mapstructure:"presign_ttl_minutes"`
	MaxUploadMB       int64  `mapstructure:"max_upload_mb"`
	ThumbnailWidth    int    `mapstructure:"thumbnail_width"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Dev   bool   `mapstructure:"dev"`
}

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Storage StorageConfig `mapstructure:"storage"`
	Mongo   MongoConfig   `mapstructure:"mongo"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	JWT     JWTConfig     `mapstructure:"jwt"`
	WS      WSConfig      `mapstructure:"ws"`
	Push    PushConfig    `mapstructure:"push"`
	S3      S3Config      `mapstructure:"s3"`
	Log     LogConfig     `mapstructure:"log"`

	// derived
	ShutdownTimeout time.Duration `mapstructure:"-"`
	RequestTimeout  time.Duration `mapstructure:"-"`
	MongoTimeout    time.Duration `mapstructure:"-"`
	CacheTTL        time.Duration `mapstructure:"-"`
	PingInterval    time.Duration `mapstructure:"-"`
	PresenceTTL     time.Duration `mapstructure:"-"`
	WriteDeadline   time.Duration `mapstructure:"-"`
	PushTimeout     time.Duration `mapstructure:"-"`
	PushRetryMax    time.Duration `mapstructure:"-"`
	BreakerTimeout  time.Duration `mapstructure:"-"`
	PresignTTL      time.Duration `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8085)
	v.SetDefault("app.node_id", "")
	v.SetDefault("app.shutdown_timeout_seconds", 10)
	v.SetDefault("app.request_timeout_seconds", 5)
	v.SetDefault("app.rate_limit_per_min", 600)

	v.SetDefault("storage.driver", "mongo")

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.db", "dm")
	v.SetDefault("mongo.timeout_seconds", 10)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "dm")
	v.SetDefault("redis.channel", "dm:events")
	v.SetDefault("redis.cache_ttl_seconds", 300)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_events", "dm.events")
	v.SetDefault("kafka.topic_push", "dm.push")
	v.SetDefault("kafka.group_id", "dm-push-workers")

	v.SetDefault("jwt.alg", "HS256")
	v.SetDefault("jwt.public_key_path", "")
	v.SetDefault("jwt.hs_secret", "")

	v.SetDefault("ws.ping_interval_seconds", 25)
	v.SetDefault("ws.write_deadline_seconds", 10)
	v.SetDefault("ws.max_message_size_bytes", 65536)
	v.SetDefault("ws.send_buffer", 256)
	v.SetDefault("ws.event_queue_size", 1024)

	v.SetDefault("push.enabled", true)
	v.SetDefault("push.queue", "local")
	v.SetDefault("push.workers", 8)
	v.SetDefault("push.queue_size", 1024)
	v.SetDefault("push.timeout_seconds", 10)
	v.SetDefault("push.retry_max_elapsed_seconds", 30)
	v.SetDefault("push.breaker_max_failures", 5)
	v.SetDefault("push.breaker_timeout_seconds", 30)
	v.SetDefault("push.allow_private_endpoints", false)

	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.public_read", false)
	v.SetDefault("s3.presign_ttl_minutes", 60)
	v.SetDefault("s3.max_upload_mb", 50)
	v.SetDefault("s3.thumbnail_width", 320)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dev", false)
}

// Load reads path (if it exists) and overlays environment variables,
// e.g. APP_PORT, MONGO_URI, KAFKA_BROKERS=a:9092,b:9092.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}

	c.ShutdownTimeout = time.Duration(c.App.ShutdownTimeoutSeconds) * time.Second
	c.RequestTimeout = time.Duration(c.App.RequestTimeoutSeconds) * time.Second
	c.MongoTimeout = time.Duration(c.Mongo.TimeoutSeconds) * time.Second
	c.CacheTTL = time.Duration(c.Redis.CacheTTLSeconds) * time.Second
	c.PingInterval = time.Duration(c.WS.PingIntervalSeconds) * time.Second
	c.PresenceTTL = 3 * c.PingInterval
	c.WriteDeadline = time.Duration(c.WS.WriteDeadlineSeconds) * time.Second
	c.PushTimeout = time.Duration(c.Push.TimeoutSeconds) * time.Second
	c.PushRetryMax = time.Duration(c.Push.RetryMaxElapsedSeconds) * time.Second
	c.BreakerTimeout = time.Duration(c.Push.BreakerTimeoutSeconds) * time.Second
	c.PresignTTL = time.Duration(c.S3.PresignTTLMinutes) * time.Minute

	if c.App.NodeID == "" {
		host, _ := os.Hostname()
		c.App.NodeID = fmt.Sprintf("%s-%d", host, os.Getpid())
	}

	if err := validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func validate(c *Config) error {
	if c.App.Port <= 0 {
		return errors.New("app.port missing or invalid")
	}

	switch c.Storage.Driver {
	case "mongo":
		if c.Mongo.URI == "" {
			return errors.New("mongo.uri missing")
		}
		if c.Mongo.DB == "" {
			return errors.New("mongo.db missing")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.driver %q not supported", c.Storage.Driver)
	}

	switch strings.ToUpper(c.JWT.Alg) {
	case "RS256":
		if c.JWT.PublicKeyPath == "" {
			return errors.New("jwt.public_key_path required for RS256")
		}
	case "HS256":
		if c.JWT.HSSecret == "" {
			return errors.New("jwt.hs_secret required for HS256")
		}
	default:
		return fmt.Errorf("jwt.alg %q not supported", c.JWT.Alg)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis.addr missing")
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("kafka.brokers missing")
		}
		if c.Kafka.TopicEvents == "" || c.Kafka.TopicPush == "" {
			return errors.New("kafka topics missing")
		}
	}

	switch c.Push.Queue {
	case "local":
	case "kafka":
		if !c.Kafka.Enabled {
			return errors.New("push.queue=kafka requires kafka.enabled")
		}
	default:
		return fmt.Errorf("push.queue %q not supported", c.Push.Queue)
	}
	if c.Push.Workers <= 0 {
		return errors.New("push.workers must be positive")
	}

	if c.S3.Enabled && (c.S3.Bucket == "" || c.S3.Region == "") {
		return errors.New("s3.bucket and s3.region required when s3 is enabled")
	}
	return nil
}
