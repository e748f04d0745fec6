package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	AWS       AWSConfig
	Ads       AdsConfig
	Player    PlayerConfig
	Catalog   CatalogConfig
	Telemetry TelemetryConfig
	Worker    WorkerConfig
	Admin     AdminConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/cinestream?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the ad creative bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	AdsBucket            string
	PresignExpireMinutes int
	CDNHost              string // optional host serving the ads bucket
}

// AdsConfig is the static ad rotation configuration.
type AdsConfig struct {
	IntervalMinutes float64
	DurationSeconds float64
	SkipAfterSecs   float64
	DefaultPlaylist []string
}

// Interval returns the recurring ad interval.
func (a AdsConfig) Interval() time.Duration {
	return time.Duration(a.IntervalMinutes * float64(time.Minute))
}

// Duration returns how long a single ad stays on screen.
func (a AdsConfig) Duration() time.Duration {
	return time.Duration(a.DurationSeconds * float64(time.Second))
}

// SkipAfter returns the countdown before a viewer may dismiss an ad.
func (a AdsConfig) SkipAfter() time.Duration {
	return time.Duration(a.SkipAfterSecs * float64(time.Second))
}

// PlayerConfig holds video source classification settings.
type PlayerConfig struct {
	EmbedMarkers []string // host substrings identifying third-party embedded players
	DirectHosts  []string // hosts serving playable media files directly
}

// CatalogConfig points at the upstream catalog REST API.
type CatalogConfig struct {
	BaseURL     string
	TimeoutSec  int
	CacheTTLSec int
}

// TelemetryConfig holds error tracking settings.
type TelemetryConfig struct {
	SentryDSN   string
	Environment string
	Release     string
}

// WorkerConfig controls the impression worker.
type WorkerConfig struct {
	Inline bool // run the impression worker inside the server process
}

// AdminConfig seeds the first admin account on startup when both fields are set.
type AdminConfig struct {
	Email    string
	Password string
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	jwtExpire, _ := strconv.Atoi(getEnv("JWT_EXPIRE_HOURS", "24"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "cinestream"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 20)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 2)),
		},
		Redis: RedisConfig{
			Addr:        getEnv("REDIS_ADDR", "localhost:6379"),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          redisDB,
			PoolSize:    getEnvInt("REDIS_POOL_SIZE", 20),
			DialTimeout: time.Duration(getEnvInt("REDIS_DIAL_TIMEOUT_SEC", 5)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: jwtExpire,
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			AdsBucket:            getEnv("AWS_S3_ADS_BUCKET", "cinestream-ads"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
			CDNHost:              getEnv("CDN_HOST", ""),
		},
		Ads: AdsConfig{
			IntervalMinutes: getEnvFloat("AD_INTERVAL_MINUTES", 10),
			DurationSeconds: getEnvFloat("AD_DURATION_SECONDS", 15),
			SkipAfterSecs:   getEnvFloat("AD_SKIP_AFTER_SECONDS", 5),
			DefaultPlaylist: splitTrim(getEnv("AD_DEFAULT_PLAYLIST", ""), ","),
		},
		Player: PlayerConfig{
			EmbedMarkers: splitTrim(getEnv("EMBED_PLAYER_MARKERS", "vidsrc,2embed,embed.su,multiembed,player.vimeo.com,dailymotion.com/embed"), ","),
			DirectHosts:  splitTrim(getEnv("DIRECT_MEDIA_HOSTS", ""), ","),
		},
		Catalog: CatalogConfig{
			BaseURL:     strings.TrimRight(getEnv("CATALOG_BASE_URL", "http://localhost:4000/api"), "/"),
			TimeoutSec:  getEnvInt("CATALOG_TIMEOUT_SEC", 5),
			CacheTTLSec: getEnvInt("CATALOG_CACHE_TTL_SEC", 300),
		},
		Telemetry: TelemetryConfig{
			SentryDSN:   getEnv("SENTRY_DSN", ""),
			Environment: getEnv("APP_ENV", "development"),
			Release:     getEnv("RELEASE", ""),
		},
		Worker: WorkerConfig{
			Inline: getEnvBool("WORKER_INLINE", true),
		},
		Admin: AdminConfig{
			Email:    strings.ToLower(strings.TrimSpace(getEnv("ADMIN_EMAIL", ""))),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Ads.IntervalMinutes <= 0 {
		return fmt.Errorf("AD_INTERVAL_MINUTES must be positive, got %v", c.Ads.IntervalMinutes)
	}
	if c.Ads.DurationSeconds <= 0 {
		return fmt.Errorf("AD_DURATION_SECONDS must be positive, got %v", c.Ads.DurationSeconds)
	}
	if c.Ads.SkipAfterSecs < 0 {
		return fmt.Errorf("AD_SKIP_AFTER_SECONDS must not be negative, got %v", c.Ads.SkipAfterSecs)
	}
	return nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
