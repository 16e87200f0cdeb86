package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/famalink/telemed-api/pkg/logger"
)

type Config struct {
	Env           string             `mapstructure:"env"`
	Server        ServerConfig       `mapstructure:"server"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Redis         RedisConfig        `mapstructure:"redis"`
	Auth          AuthConfig         `mapstructure:"auth"`
	Scheduling    SchedulingConfig   `mapstructure:"scheduling"`
	Video         VideoConfig        `mapstructure:"video"`
	Chat          ChatConfig         `mapstructure:"chat"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	RateLimit     RateLimitConfig    `mapstructure:"ratelimit"`
	CORS          CORSConfig         `mapstructure:"cors"`
	Outbox        OutboxConfig       `mapstructure:"outbox"`
	Audit         AuditConfig        `mapstructure:"audit"`
	Log           logger.Config      `mapstructure:"log"`

	// Secrets never come from the config file.
	Secrets Secrets `mapstructure:"-"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory"; memory keeps everything in process.
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
}

type AuthConfig struct {
	Issuer     string        `mapstructure:"issuer"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

type SchedulingConfig struct {
	TimeZone         string        `mapstructure:"time_zone"`
	SlotMinutes      int           `mapstructure:"slot_minutes"`
	DayStartHour     int           `mapstructure:"day_start_hour"`
	SlotCount        int           `mapstructure:"slot_count"`
	AllowedDurations []int         `mapstructure:"allowed_durations"`
	WeekCacheTTL     time.Duration `mapstructure:"week_cache_ttl"`
	CreateTimeout    time.Duration `mapstructure:"create_timeout"`
}

// Location resolves TimeZone, the zone appointment times are laid out in.
func (s SchedulingConfig) Location() (*time.Location, error) {
	return time.LoadLocation(s.TimeZone)
}

type VideoConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	RoomPrefix string        `mapstructure:"room_prefix"`
	RoomTTL    time.Duration `mapstructure:"room_ttl"`
	Language   string        `mapstructure:"language"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type ChatConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

type NotificationConfig struct {
	SMSEnabled   bool   `mapstructure:"sms_enabled"`
	SMSFrom      string `mapstructure:"sms_from"`
	EmailEnabled bool   `mapstructure:"email_enabled"`
	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPUser     string `mapstructure:"smtp_user"`
	EmailFrom    string `mapstructure:"email_from"`
	AppURL       string `mapstructure:"app_url"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type OutboxConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	BatchSize    int           `mapstructure:"batch_size"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	Channel      string        `mapstructure:"channel"`

	// Retention of processed events before the cleanup worker purges them.
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type AuditConfig struct {
	OutputPaths []string `mapstructure:"output_paths"`
}

// Secrets are read from TELEMED_* environment variables (unprefixed names work too).
type Secrets struct {
	JWTSecret        string `envconfig:"JWT_SECRET"`
	DatabasePassword string `envconfig:"DB_PASSWORD"`
	DailyAPIKey      string `envconfig:"DAILY_API_KEY"`
	TwilioAccountSID string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `envconfig:"TWILIO_AUTH_TOKEN"`
	StreamAPIKey     string `envconfig:"STREAM_API_KEY"`
	StreamAPISecret  string `envconfig:"STREAM_API_SECRET"`
	SMTPPassword     string `envconfig:"SMTP_PASSWORD"`
	// NotesKey is a base64 AES key; when set, consultation text is encrypted at rest.
	NotesKey string `envconfig:"NOTES_KEY"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.request_timeout", "20s")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "famalink")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.query_timeout", "5s")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", "100ms")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.lock_ttl", "10s")

	v.SetDefault("auth.issuer", "famalink")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.bcrypt_cost", 12)

	v.SetDefault("scheduling.time_zone", "Africa/Abidjan")
	v.SetDefault("scheduling.slot_minutes", 30)
	v.SetDefault("scheduling.day_start_hour", 8)
	v.SetDefault("scheduling.slot_count", 20)
	v.SetDefault("scheduling.allowed_durations", []int{15, 30, 45, 60})
	v.SetDefault("scheduling.week_cache_ttl", "2m")
	v.SetDefault("scheduling.create_timeout", "5s")

	v.SetDefault("video.base_url", "https://api.daily.co/v1")
	v.SetDefault("video.room_prefix", "famalink-consultation-")
	v.SetDefault("video.room_ttl", "1h")
	v.SetDefault("video.language", "fr")
	v.SetDefault("video.timeout", "10s")

	v.SetDefault("chat.token_ttl", "1h")

	v.SetDefault("notifications.smtp_port", 587)
	v.SetDefault("notifications.email_from", "no-reply@famalink.ci")
	v.SetDefault("notifications.app_url", "http://localhost:3000")

	v.SetDefault("ratelimit.rps", 20)
	v.SetDefault("ratelimit.burst", 40)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("outbox.enabled", true)
	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.poll_interval", "2s")
	v.SetDefault("outbox.max_attempts", 5)
	v.SetDefault("outbox.channel", "famalink.appointments")
	v.SetDefault("outbox.retention", "168h")
	v.SetDefault("outbox.cleanup_interval", "1h")

	v.SetDefault("audit.output_paths", []string{"stdout"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads config.yaml from the given directories (default "." and
// "./config"), then TELEMED_* environment variables, then secrets. A missing
// file is fine; defaults apply.
func Load(paths ...string) (*Config, error) {
	// .env only fills variables that are not already set.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("TELEMED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// TELEMED_REDIS_URL= switches to the in-process fallbacks.
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("TELEMED", &cfg.Secrets); err != nil {
		return nil, fmt.Errorf("failed to read secrets: %w", err)
	}
	if cfg.Secrets.DatabasePassword != "" {
		cfg.Database.Password = cfg.Secrets.DatabasePassword
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Secrets.JWTSecret == "" {
		return errors.New("TELEMED_JWT_SECRET is required")
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "memory" {
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	s := c.Scheduling
	if s.SlotMinutes <= 0 || 60%s.SlotMinutes != 0 {
		return fmt.Errorf("scheduling.slot_minutes must divide 60, got %d", s.SlotMinutes)
	}
	if s.SlotCount <= 0 || s.DayStartHour < 0 || s.DayStartHour*60+s.SlotCount*s.SlotMinutes > 24*60 {
		return fmt.Errorf("scheduling grid does not fit in a day")
	}
	if len(s.AllowedDurations) == 0 {
		return errors.New("scheduling.allowed_durations must not be empty")
	}
	for _, d := range s.AllowedDurations {
		if d <= 0 {
			return fmt.Errorf("scheduling.allowed_durations must be positive, got %d", d)
		}
	}
	if _, err := s.Location(); err != nil {
		return fmt.Errorf("invalid scheduling.time_zone: %w", err)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
