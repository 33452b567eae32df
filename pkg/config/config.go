package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment variable consumed by the service.
const EnvPrefix = "WASHPOINT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Stripe    StripeConfig
	Sweeper   SweeperConfig
	Fees      FeesConfig
	RateLimit RateLimitConfig
}

// Load parses the full configuration from the environment. Missing required
// secrets fail here, before the service binds a port.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"WASHPOINT_APP_ENV" required:"true"`
	Port         string `envconfig:"WASHPOINT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"WASHPOINT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"WASHPOINT_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"WASHPOINT_APP_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"WASHPOINT_DB_DSN"`
	Driver string `envconfig:"WASHPOINT_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"WASHPOINT_DB_HOST"`
	Port     int    `envconfig:"WASHPOINT_DB_PORT" default:"5432"`
	User     string `envconfig:"WASHPOINT_DB_USER"`
	Password string `envconfig:"WASHPOINT_DB_PASSWORD"`
	Name     string `envconfig:"WASHPOINT_DB_NAME"`
	SSLMode  string `envconfig:"WASHPOINT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"WASHPOINT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"WASHPOINT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"WASHPOINT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"WASHPOINT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"WASHPOINT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"WASHPOINT_REDIS_ADDR"`
	Password     string        `envconfig:"WASHPOINT_REDIS_PASSWORD"`
	DB           int           `envconfig:"WASHPOINT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"WASHPOINT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"WASHPOINT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"WASHPOINT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"WASHPOINT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WASHPOINT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig covers token verification only. Issuing and refreshing tokens
// belongs to the identity service in front of this API.
type JWTConfig struct {
	Secret string `envconfig:"WASHPOINT_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"WASHPOINT_JWT_ISSUER" default:"washpoint"`
}

type StripeConfig struct {
	APIKey string `envconfig:"WASHPOINT_STRIPE_API_KEY" required:"true"`
	Secret string `envconfig:"WASHPOINT_STRIPE_WEBHOOK_SECRET" required:"true"`
	Env    string `envconfig:"WASHPOINT_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// RateLimitConfig throttles the booking surface per client IP. Zero
// disables the limiter.
type RateLimitConfig struct {
	BookingWindow time.Duration `envconfig:"WASHPOINT_RATE_LIMIT_BOOKING_WINDOW" default:"1m"`
	BookingLimit  int           `envconfig:"WASHPOINT_RATE_LIMIT_BOOKING_LIMIT" default:"30"`
}

// SweeperConfig controls the expiry sweep. The grace window is compared
// against persisted creation timestamps, not in-process timers, so it holds
// across restarts and replicas.
type SweeperConfig struct {
	Interval    time.Duration `envconfig:"WASHPOINT_SWEEP_INTERVAL" default:"60s"`
	GraceWindow time.Duration `envconfig:"WASHPOINT_SWEEP_GRACE_WINDOW" default:"15m"`
	LockTTL     time.Duration `envconfig:"WASHPOINT_SWEEP_LOCK_TTL" default:"2m"`
}

type FeesConfig struct {
	TaxRate             string `envconfig:"WASHPOINT_FEES_TAX_RATE" default:"0.05"`
	ProcessingRate      string `envconfig:"WASHPOINT_FEES_PROCESSING_RATE" default:"0.029"`
	BasicPlatformFee    string `envconfig:"WASHPOINT_FEES_BASIC_PLATFORM_FEE" default:"2.00"`
	DeluxePlatformFee   string `envconfig:"WASHPOINT_FEES_DELUXE_PLATFORM_FEE" default:"5.00"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	parts := map[string]string{
		"WASHPOINT_DB_HOST": db.Host,
		"WASHPOINT_DB_USER": db.User,
		"WASHPOINT_DB_NAME": db.Name,
	}
	for _, key := range []string{"WASHPOINT_DB_HOST", "WASHPOINT_DB_USER", "WASHPOINT_DB_NAME"} {
		if parts[key] == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either WASHPOINT_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
