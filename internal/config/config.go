package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName             string
	AppEnv              string
	AppPort             string
	LogLevel            string
	DatabaseURL         string
	RedisURL            string
	NATSURL             string
	NATSSubject         string
	JWTSecret           string
	JWTTTL              time.Duration
	CookieName          string
	CookieSecure        bool
	BootstrapAdminUser  string
	BootstrapAdminPass  string
	BootstrapAdminName  string
	LoginRateLimit      int
	AttendanceRateLimit int
	RateLimitWindow     time.Duration
	QRCodeSize          int
	SummaryCacheTTL     time.Duration
	AllowedOrigins      string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsProduction reports whether the service runs with production settings.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ATTENDANCE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "QR Attendance API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("nats.subject", "attendance")
	v.SetDefault("jwt.ttl", "12h")
	v.SetDefault("auth.cookie_name", "attendance_session")
	v.SetDefault("auth.cookie_secure", false)
	v.SetDefault("bootstrap.admin_name", "Administrator")
	v.SetDefault("ratelimit.login_max", 10)
	v.SetDefault("ratelimit.attendance_max", 30)
	v.SetDefault("ratelimit.window", "1m")
	v.SetDefault("qr.size", 256)
	v.SetDefault("cache.summary_ttl", "1m")
	v.SetDefault("cors.allowed_origins", "*")

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	ttl, err := parseDuration(v.GetString("jwt.ttl"), 12*time.Hour)
	if err != nil {
		return Config{}, fmt.Errorf("invalid jwt ttl: %w", err)
	}

	window, err := parseDuration(v.GetString("ratelimit.window"), time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid rate limit window: %w", err)
	}

	summaryTTL, err := parseDuration(v.GetString("cache.summary_ttl"), time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid summary cache ttl: %w", err)
	}

	cfg := Config{
		AppName:             v.GetString("app.name"),
		AppEnv:              v.GetString("app.env"),
		AppPort:             v.GetString("app.port"),
		LogLevel:            strings.ToLower(v.GetString("log.level")),
		DatabaseURL:         v.GetString("database.url"),
		RedisURL:            v.GetString("redis.url"),
		NATSURL:             v.GetString("nats.url"),
		NATSSubject:         v.GetString("nats.subject"),
		JWTSecret:           v.GetString("jwt.secret"),
		JWTTTL:              ttl,
		CookieName:          v.GetString("auth.cookie_name"),
		CookieSecure:        v.GetBool("auth.cookie_secure"),
		BootstrapAdminUser:  v.GetString("bootstrap.admin_username"),
		BootstrapAdminPass:  v.GetString("bootstrap.admin_password"),
		BootstrapAdminName:  v.GetString("bootstrap.admin_name"),
		LoginRateLimit:      v.GetInt("ratelimit.login_max"),
		AttendanceRateLimit: v.GetInt("ratelimit.attendance_max"),
		RateLimitWindow:     window,
		QRCodeSize:          v.GetInt("qr.size"),
		SummaryCacheTTL:     summaryTTL,
		AllowedOrigins:      v.GetString("cors.allowed_origins"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.CookieName == "" {
		cfg.CookieName = "attendance_session"
	}

	if cfg.QRCodeSize <= 0 {
		cfg.QRCodeSize = 256
	}

	return cfg, nil
}

func parseDuration(value string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}
