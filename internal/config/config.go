package config

import (
	"fmt"
	"strings"
	"time"

	"eam/internal/attachments"
	"eam/internal/proxy"
	"eam/internal/resources"
	"eam/internal/session"
	"eam/internal/suggest"
	"eam/pkg/models"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig            `mapstructure:"server"`
	Log         LogConfig               `mapstructure:"log"`
	Database    DatabaseConfig          `mapstructure:"database"`
	Redis       session.RedisConfig     `mapstructure:"redis"`
	MinIO       attachments.MinIOConfig `mapstructure:"minio"`
	Attachments AttachmentsConfig       `mapstructure:"attachments"`
	Proxy       ProxyConfig             `mapstructure:"proxy"`
	Maintenance MaintenanceConfig       `mapstructure:"maintenance"`
	Suggest     suggest.Config          `mapstructure:"suggest"`
	WorkOrder   WorkOrderConfig         `mapstructure:"workorder"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	Version         string        `mapstructure:"version"`
	SecureCookies   bool          `mapstructure:"secure_cookies"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// DatabaseConfig selects the Postgres work order store. An empty URL keeps
// everything in memory.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type AttachmentsConfig struct {
	PublicURL string        `mapstructure:"public_url"`
	URLExpiry time.Duration `mapstructure:"url_expiry"`
}

type ProxyConfig struct {
	proxy.Config `mapstructure:",squash"`
	RateLimit    RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// MaintenanceConfig points the maintenance gate at a health endpoint. With no
// CheckURL the gate reads the local status store.
type MaintenanceConfig struct {
	CheckURL      string        `mapstructure:"check_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	CacheDuration time.Duration `mapstructure:"cache_duration"`
}

type WorkOrderConfig struct {
	UTCOffsetHours  float64         `mapstructure:"utc_offset_hours"`
	DeletableKinds  []string        `mapstructure:"deletable_kinds"`
	SaveStaleAfter  time.Duration   `mapstructure:"save_stale_after"`
	CreateRateLimit RateLimitConfig `mapstructure:"create_rate_limit"`
	Seed            bool            `mapstructure:"seed"`
}

// UTCOffset is the site time zone used by the quick time presets.
func (w WorkOrderConfig) UTCOffset() time.Duration {
	return time.Duration(w.UTCOffsetHours * float64(time.Hour))
}

// Capabilities applies the configured deletable kinds to the defaults.
func (w WorkOrderConfig) Capabilities() resources.Capabilities {
	kinds := make([]models.ResourceKind, 0, len(w.DeletableKinds))
	for _, k := range w.DeletableKinds {
		if k = strings.TrimSpace(strings.ToLower(k)); k != "" {
			kinds = append(kinds, models.ResourceKind(k))
		}
	}
	return resources.DefaultCapabilities().WithDeletable(kinds...)
}

// Load reads config.yaml from ./configs or the working directory, or file
// when given, and applies environment overrides. A missing file is not an error.
func Load(file string) (*Config, error) {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.SetEnvPrefix("EAM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || file != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.version", "dev")
	v.SetDefault("server.secure_cookies", false)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", true)

	v.SetDefault("database.url", "")
	v.SetDefault("database.migrations_dir", "migrations")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.bucket", "eam-attachments")
	v.SetDefault("minio.use_ssl", false)

	v.SetDefault("attachments.public_url", "/api/attachments/files")
	v.SetDefault("attachments.url_expiry", time.Hour)

	v.SetDefault("proxy.auth_header", "")
	v.SetDefault("proxy.auth_value", "")
	v.SetDefault("proxy.timeout", 30*time.Second)
	v.SetDefault("proxy.rate_limit.requests", 120)
	v.SetDefault("proxy.rate_limit.window", time.Minute)

	v.SetDefault("maintenance.check_url", "")
	v.SetDefault("maintenance.timeout", 3*time.Second)
	v.SetDefault("maintenance.cache_duration", 5*time.Second)

	v.SetDefault("suggest.url", "")
	v.SetDefault("suggest.api_key", "")
	v.SetDefault("suggest.timeout", 20*time.Second)
	v.SetDefault("suggest.debounce", 800*time.Millisecond)

	v.SetDefault("workorder.utc_offset_hours", 8)
	v.SetDefault("workorder.deletable_kinds", []string{"labor"})
	v.SetDefault("workorder.save_stale_after", 2*time.Minute)
	v.SetDefault("workorder.create_rate_limit.requests", 10)
	v.SetDefault("workorder.create_rate_limit.window", time.Minute)
	v.SetDefault("workorder.seed", true)
}

// bindEnvVariables accepts the conventional variable names next to the EAM_ ones.
func bindEnvVariables(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "EAM_SERVER_PORT", "PORT")
	v.BindEnv("server.mode", "EAM_SERVER_MODE", "GIN_MODE")

	// Database
	v.BindEnv("database.url", "EAM_DATABASE_URL", "DATABASE_URL")

	// Redis
	v.BindEnv("redis.addr", "EAM_REDIS_ADDR", "REDIS_ADDR")
	v.BindEnv("redis.password", "EAM_REDIS_PASSWORD", "REDIS_PASSWORD")

	// MinIO
	v.BindEnv("minio.endpoint", "EAM_MINIO_ENDPOINT", "MINIO_ENDPOINT")
	v.BindEnv("minio.access_key", "EAM_MINIO_ACCESS_KEY", "MINIO_ACCESS_KEY")
	v.BindEnv("minio.secret_key", "EAM_MINIO_SECRET_KEY", "MINIO_SECRET_KEY")
	v.BindEnv("minio.bucket", "EAM_MINIO_BUCKET", "MINIO_BUCKET")

	// Upstream services
	v.BindEnv("proxy.auth_value", "EAM_PROXY_AUTH_VALUE", "MAXIMO_API_KEY")
	v.BindEnv("maintenance.check_url", "EAM_MAINTENANCE_CHECK_URL", "HEALTH_CHECK_URL")
	v.BindEnv("suggest.url", "EAM_SUGGEST_URL", "SUGGEST_URL")
	v.BindEnv("suggest.api_key", "EAM_SUGGEST_API_KEY", "SUGGEST_API_KEY")
}
