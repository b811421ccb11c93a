package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	Postgres   PostgresConfig
	Ledger     LedgerConfig
	JWT        JWTConfig
	RateLimit  RateLimitConfig
	Groq       GroqConfig
	Generation GenerationConfig
	R2         R2Config
	Zitadel    ZitadelConfig
	Gateway    GatewayConfig
	Music      MusicConfig
	Pipeline   PipelineConfig
	Archive    ArchiveConfig
	Tracing    TracingConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	DSN string
}

type LedgerConfig struct {
	Driver         string // "redis" or "postgres"
	StarterCredits int64  // granted once to merchants without a balance, 0 disables
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	SubmitPerHour int
}

type GroqConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout int // seconds
}

// GenerationConfig points at a queue-style inference provider. Each capability
// is a model path under BaseURL.
type GenerationConfig struct {
	APIKey       string
	BaseURL      string
	ImageModel   string
	VideoModel   string
	ComposeModel string
	MergeModel   string
	Timeout      int // seconds
	MockLatency  int // seconds a mock request stays pending
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type ZitadelConfig struct {
	Domain   string
	ClientID string
	Issuer   string
}

type GatewayConfig struct {
	Enabled bool
}

type MusicConfig struct {
	CatalogPath string
	DefaultMood string
	BaseURL     string
}

type PipelineConfig struct {
	MinViableSuccess int
	AspectRatio      string
	Retention        time.Duration // 0 keeps jobs forever
	LockTTL          time.Duration
	PollConcurrency  int
}

type ArchiveConfig struct {
	Enabled bool
	Prefix  string
}

type TracingConfig struct {
	Exporter     string // none, stdout, otlphttp
	Endpoint     string
	ServiceName  string
	SampleRatio  float64
	InsecureHTTP bool
}

func Load() (*Config, error) {
	// Local development convenience; real deployments use env vars or secrets
	_ = godotenv.Load()

	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("POSTGRES_DSN")
	readSecret("JWT_SECRET")
	readSecret("GROQ_API_KEY")
	readSecret("GENERATION_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("ZITADEL_CLIENT_ID")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.api_domain", "API_DOMAIN")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("postgres.dsn", "POSTGRES_DSN")
	_ = v.BindEnv("ledger.driver", "LEDGER_DRIVER")
	_ = v.BindEnv("ledger.starter_credits", "LEDGER_STARTER_CREDITS")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")
	_ = v.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = v.BindEnv("ratelimit.submit_per_hour", "RATELIMIT_SUBMIT_PER_HOUR")
	_ = v.BindEnv("groq.api_key", "GROQ_API_KEY")
	_ = v.BindEnv("groq.base_url", "GROQ_BASE_URL")
	_ = v.BindEnv("groq.timeout", "GROQ_TIMEOUT")
	_ = v.BindEnv("groq.model", "GROQ_MODEL")
	_ = v.BindEnv("generation.api_key", "GENERATION_API_KEY")
	_ = v.BindEnv("generation.base_url", "GENERATION_BASE_URL")
	_ = v.BindEnv("generation.image_model", "GENERATION_IMAGE_MODEL")
	_ = v.BindEnv("generation.video_model", "GENERATION_VIDEO_MODEL")
	_ = v.BindEnv("generation.compose_model", "GENERATION_COMPOSE_MODEL")
	_ = v.BindEnv("generation.merge_model", "GENERATION_MERGE_MODEL")
	_ = v.BindEnv("generation.timeout", "GENERATION_TIMEOUT")
	_ = v.BindEnv("generation.mock_latency", "GENERATION_MOCK_LATENCY")
	_ = v.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = v.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = v.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = v.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = v.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = v.BindEnv("zitadel.domain", "ZITADEL_DOMAIN")
	_ = v.BindEnv("zitadel.client_id", "ZITADEL_CLIENT_ID")
	_ = v.BindEnv("zitadel.issuer", "ZITADEL_ISSUER")
	_ = v.BindEnv("gateway.enabled", "GATEWAY_ENABLED")
	_ = v.BindEnv("music.catalog_path", "MUSIC_CATALOG_PATH")
	_ = v.BindEnv("music.default_mood", "MUSIC_DEFAULT_MOOD")
	_ = v.BindEnv("music.base_url", "MUSIC_BASE_URL")
	_ = v.BindEnv("pipeline.min_viable_success", "PIPELINE_MIN_VIABLE_SUCCESS")
	_ = v.BindEnv("pipeline.aspect_ratio", "PIPELINE_ASPECT_RATIO")
	_ = v.BindEnv("pipeline.retention", "PIPELINE_RETENTION")
	_ = v.BindEnv("pipeline.lock_ttl", "PIPELINE_LOCK_TTL")
	_ = v.BindEnv("pipeline.poll_concurrency", "PIPELINE_POLL_CONCURRENCY")
	_ = v.BindEnv("archive.enabled", "ARCHIVE_ENABLED")
	_ = v.BindEnv("archive.prefix", "ARCHIVE_PREFIX")
	_ = v.BindEnv("tracing.exporter", "TRACING_EXPORTER")
	_ = v.BindEnv("tracing.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	_ = v.BindEnv("tracing.service_name", "OTEL_SERVICE_NAME")
	_ = v.BindEnv("tracing.sample_ratio", "TRACING_SAMPLE_RATIO")
	_ = v.BindEnv("tracing.insecure", "TRACING_INSECURE")

	// Defaults
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("ledger.driver", "redis")
	v.SetDefault("ledger.starter_credits", 0)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expiration", 24)
	v.SetDefault("ratelimit.submit_per_hour", 10)

	// Groq defaults
	v.SetDefault("groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("groq.model", "llama-3.3-70b-versatile")
	v.SetDefault("groq.timeout", 60)

	// Generation provider defaults
	v.SetDefault("generation.base_url", "https://queue.fal.run")
	v.SetDefault("generation.image_model", "fal-ai/flux/schnell")
	v.SetDefault("generation.video_model", "fal-ai/kling-video/v1.6/standard/image-to-video")
	v.SetDefault("generation.compose_model", "fal-ai/ffmpeg-api/compose")
	v.SetDefault("generation.merge_model", "fal-ai/ffmpeg-api/merge-audio-video")
	v.SetDefault("generation.timeout", 60)
	v.SetDefault("generation.mock_latency", 3)

	// Music defaults
	v.SetDefault("music.default_mood", "upbeat")

	// Pipeline defaults
	v.SetDefault("pipeline.min_viable_success", 2)
	v.SetDefault("pipeline.aspect_ratio", "9:16")
	v.SetDefault("pipeline.retention", "0s")
	v.SetDefault("pipeline.lock_ttl", "60s")
	v.SetDefault("pipeline.poll_concurrency", 8)

	v.SetDefault("archive.enabled", true)
	v.SetDefault("archive.prefix", "videos")

	v.SetDefault("gateway.enabled", false)

	v.SetDefault("tracing.exporter", "none")
	v.SetDefault("tracing.service_name", "reelforge-api")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("tracing.insecure", false)

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      v.GetString("server.port"),
			Env:       v.GetString("server.env"),
			LogLevel:  v.GetString("server.log_level"),
			ApiDomain: v.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Postgres: PostgresConfig{
			DSN: v.GetString("postgres.dsn"),
		},
		Ledger: LedgerConfig{
			Driver:         strings.ToLower(v.GetString("ledger.driver")),
			StarterCredits: v.GetInt64("ledger.starter_credits"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Expiration: v.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			SubmitPerHour: v.GetInt("ratelimit.submit_per_hour"),
		},
		Groq: GroqConfig{
			APIKey:  v.GetString("groq.api_key"),
			BaseURL: v.GetString("groq.base_url"),
			Model:   v.GetString("groq.model"),
			Timeout: v.GetInt("groq.timeout"),
		},
		Generation: GenerationConfig{
			APIKey:       v.GetString("generation.api_key"),
			BaseURL:      v.GetString("generation.base_url"),
			ImageModel:   v.GetString("generation.image_model"),
			VideoModel:   v.GetString("generation.video_model"),
			ComposeModel: v.GetString("generation.compose_model"),
			MergeModel:   v.GetString("generation.merge_model"),
			Timeout:      v.GetInt("generation.timeout"),
			MockLatency:  v.GetInt("generation.mock_latency"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			SecretAccessKey: v.GetString("r2.secret_access_key"),
			BucketName:      v.GetString("r2.bucket_name"),
			PublicURL:       v.GetString("r2.public_url"),
		},
		Zitadel: ZitadelConfig{
			Domain:   v.GetString("zitadel.domain"),
			ClientID: v.GetString("zitadel.client_id"),
			Issuer:   v.GetString("zitadel.issuer"),
		},
		Gateway: GatewayConfig{
			Enabled: v.GetBool("gateway.enabled"),
		},
		Music: MusicConfig{
			CatalogPath: v.GetString("music.catalog_path"),
			DefaultMood: v.GetString("music.default_mood"),
			BaseURL:     v.GetString("music.base_url"),
		},
		Pipeline: PipelineConfig{
			MinViableSuccess: v.GetInt("pipeline.min_viable_success"),
			AspectRatio:      v.GetString("pipeline.aspect_ratio"),
			Retention:        v.GetDuration("pipeline.retention"),
			LockTTL:          v.GetDuration("pipeline.lock_ttl"),
			PollConcurrency:  v.GetInt("pipeline.poll_concurrency"),
		},
		Archive: ArchiveConfig{
			Enabled: v.GetBool("archive.enabled"),
			Prefix:  v.GetString("archive.prefix"),
		},
		Tracing: TracingConfig{
			Exporter:     strings.ToLower(v.GetString("tracing.exporter")),
			Endpoint:     v.GetString("tracing.endpoint"),
			ServiceName:  v.GetString("tracing.service_name"),
			SampleRatio:  v.GetFloat64("tracing.sample_ratio"),
			InsecureHTTP: v.GetBool("tracing.insecure"),
		},
	}

	if cfg.Pipeline.MinViableSuccess < 1 {
		cfg.Pipeline.MinViableSuccess = 2
	}
	if floor := minLockTTL(cfg); cfg.Pipeline.LockTTL < floor {
		cfg.Pipeline.LockTTL = floor
	}

	return cfg, nil
}

// lockTTLMargin covers Redis round trips and job (de)serialization inside a transition.
const lockTTLMargin = 30 * time.Second

// minLockTTL is the longest a stage transition can hold the advance lock:
// motion prompts (one Groq wave) followed by one generation fan-out.
func minLockTTL(cfg *Config) time.Duration {
	groq := time.Duration(cfg.Groq.Timeout) * time.Second
	if groq <= 0 {
		groq = 60 * time.Second
	}
	gen := time.Duration(cfg.Generation.Timeout) * time.Second
	if gen <= 0 {
		gen = 60 * time.Second
	}
	return groq + gen + lockTTLMargin
}
