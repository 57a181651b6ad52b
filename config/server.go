package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	defaultAccessTokenTTL  = 24 * time.Hour
	defaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// ErrMissingConfig is wrapped by LoadServerConfig when required keys are unset.
var ErrMissingConfig = errors.New("missing required configuration")

// ServerConfig holds everything the HTTP server needs at startup.
type ServerConfig struct {
	Listen        string
	Port          int
	AllowedOrigin string
	AppURL        string

	AccessTokenSecret  string
	RefreshTokenSecret string
	CookieSecret       string
	CookieSecure       bool

	AccessTokenTTL time.Duration
	// RefreshTokenTTL is used for both the refresh cookie and the persisted row.
	RefreshTokenTTL time.Duration

	// TrustedProxies lists the peers allowed to set forwarded-IP headers.
	// Empty means the socket peer is always the client.
	TrustedProxies []string

	RedisAddr        string
	LoginRatePerMin  int
	TimeLocation     string
	AuditRetention   int // days
	MailMaxAttempts  int
	MailRetryBackoff time.Duration

	SMTP SMTPConfig
}

// SMTPConfig configures outbound mail. An empty Host selects the log mailer.
type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
}

// fileConfig mirrors the TOML layout; durations are Go duration strings.
type fileConfig struct {
	Listen             string     `toml:"listen"`
	Port               int        `toml:"port"`
	AllowedOrigin      string     `toml:"allowed_origin"`
	AppURL             string     `toml:"app_url"`
	AccessTokenSecret  string     `toml:"access_token_secret"`
	RefreshTokenSecret string     `toml:"refresh_token_secret"`
	CookieSecret       string     `toml:"cookie_secret"`
	CookieSecure       bool       `toml:"cookie_secure"`
	AccessTokenTTL     string     `toml:"access_token_ttl"`
	RefreshTokenTTL    string     `toml:"refresh_token_ttl"`
	TrustedProxies     []string   `toml:"trusted_proxies"`
	RedisAddr          string     `toml:"redis_addr"`
	LoginRatePerMin    int        `toml:"login_rate_per_minute"`
	TimeLocation       string     `toml:"time_location"`
	AuditRetentionDays int        `toml:"audit_retention_days"`
	MailMaxAttempts    int        `toml:"mail_max_attempts"`
	MailRetryBackoff   string     `toml:"mail_retry_backoff"`
	SMTP               SMTPConfig `toml:"smtp"`
	Database           dbFile     `toml:"database"`
}

// LoadEnv loads a .env file from the working directory if one exists.
func LoadEnv() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
}

func defaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Listen:           "",
		AccessTokenTTL:   defaultAccessTokenTTL,
		RefreshTokenTTL:  defaultRefreshTokenTTL,
		LoginRatePerMin:  20,
		TimeLocation:     "UTC",
		AuditRetention:   90,
		MailMaxAttempts:  5,
		MailRetryBackoff: time.Minute,
		SMTP:             SMTPConfig{Port: 587},
	}
}

func readFileConfig(path string) (*fileConfig, error) {
	fc := &fileConfig{}
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := toml.Unmarshal(data, fc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc, nil
}

// LoadServerConfig merges defaults, the TOML file named by TASKBOARD_CONFIG and
// the environment, in that order. It fails if any required key is missing.
func LoadServerConfig() (*ServerConfig, error) {
	fc, err := readFileConfig(GetConfigFile())
	if err != nil {
		return nil, err
	}
	return buildServerConfig(fc)
}

func buildServerConfig(fc *fileConfig) (*ServerConfig, error) {
	cfg := defaultServerConfig()

	if err := cfg.applyFile(fc); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	var missing []string
	if cfg.AccessTokenSecret == "" {
		missing = append(missing, envPrefix+"ACCESS_TOKEN_SECRET")
	}
	if cfg.RefreshTokenSecret == "" {
		missing = append(missing, envPrefix+"REFRESH_TOKEN_SECRET")
	}
	if cfg.CookieSecret == "" {
		missing = append(missing, envPrefix+"COOKIE_SECRET")
	}
	if cfg.Port == 0 {
		missing = append(missing, envPrefix+"PORT")
	}
	if cfg.AllowedOrigin == "" {
		missing = append(missing, envPrefix+"ALLOWED_ORIGIN")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}

	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return nil, errors.New("access and refresh token secrets must differ")
	}
	if _, err := time.LoadLocation(cfg.TimeLocation); err != nil {
		return nil, fmt.Errorf("time location %q: %w", cfg.TimeLocation, err)
	}
	if cfg.AppURL == "" {
		cfg.AppURL = cfg.AllowedOrigin
	}
	return cfg, nil
}

func (c *ServerConfig) applyFile(fc *fileConfig) error {
	setString(&c.Listen, fc.Listen)
	setString(&c.AllowedOrigin, fc.AllowedOrigin)
	setString(&c.AppURL, fc.AppURL)
	setString(&c.AccessTokenSecret, fc.AccessTokenSecret)
	setString(&c.RefreshTokenSecret, fc.RefreshTokenSecret)
	setString(&c.CookieSecret, fc.CookieSecret)
	setString(&c.RedisAddr, fc.RedisAddr)
	setString(&c.TimeLocation, fc.TimeLocation)
	setInt(&c.Port, fc.Port)
	if len(fc.TrustedProxies) > 0 {
		c.TrustedProxies = fc.TrustedProxies
	}
	setInt(&c.LoginRatePerMin, fc.LoginRatePerMin)
	setInt(&c.AuditRetention, fc.AuditRetentionDays)
	setInt(&c.MailMaxAttempts, fc.MailMaxAttempts)
	if fc.CookieSecure {
		c.CookieSecure = true
	}
	if err := setDuration(&c.AccessTokenTTL, "access_token_ttl", fc.AccessTokenTTL); err != nil {
		return err
	}
	if err := setDuration(&c.RefreshTokenTTL, "refresh_token_ttl", fc.RefreshTokenTTL); err != nil {
		return err
	}
	if err := setDuration(&c.MailRetryBackoff, "mail_retry_backoff", fc.MailRetryBackoff); err != nil {
		return err
	}
	setString(&c.SMTP.Host, fc.SMTP.Host)
	setInt(&c.SMTP.Port, fc.SMTP.Port)
	setString(&c.SMTP.Username, fc.SMTP.Username)
	setString(&c.SMTP.Password, fc.SMTP.Password)
	setString(&c.SMTP.From, fc.SMTP.From)
	return nil
}

func (c *ServerConfig) applyEnv() error {
	setString(&c.Listen, getEnv("LISTEN"))
	setString(&c.AllowedOrigin, getEnv("ALLOWED_ORIGIN"))
	setString(&c.AppURL, getEnv("APP_URL"))
	setString(&c.AccessTokenSecret, getEnv("ACCESS_TOKEN_SECRET"))
	setString(&c.RefreshTokenSecret, getEnv("REFRESH_TOKEN_SECRET"))
	setString(&c.CookieSecret, getEnv("COOKIE_SECRET"))
	setString(&c.RedisAddr, getEnv("REDIS_ADDR"))
	setString(&c.TimeLocation, getEnv("TIME_LOCATION"))
	c.CookieSecure = getEnvBool("COOKIE_SECURE", c.CookieSecure)
	if proxies := getEnvList("TRUSTED_PROXIES"); len(proxies) > 0 {
		c.TrustedProxies = proxies
	}
	c.LoginRatePerMin = getEnvInt("LOGIN_RATE_PER_MINUTE", c.LoginRatePerMin)
	c.AuditRetention = getEnvInt("AUDIT_RETENTION_DAYS", c.AuditRetention)
	c.MailMaxAttempts = getEnvInt("MAIL_MAX_ATTEMPTS", c.MailMaxAttempts)

	if v := getEnv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sPORT: %w", envPrefix, err)
		}
		c.Port = port
	}
	if err := setDuration(&c.AccessTokenTTL, envPrefix+"ACCESS_TOKEN_TTL", getEnv("ACCESS_TOKEN_TTL")); err != nil {
		return err
	}
	if err := setDuration(&c.RefreshTokenTTL, envPrefix+"REFRESH_TOKEN_TTL", getEnv("REFRESH_TOKEN_TTL")); err != nil {
		return err
	}
	if err := setDuration(&c.MailRetryBackoff, envPrefix+"MAIL_RETRY_BACKOFF", getEnv("MAIL_RETRY_BACKOFF")); err != nil {
		return err
	}

	setString(&c.SMTP.Host, getEnv("SMTP_HOST"))
	c.SMTP.Port = getEnvInt("SMTP_PORT", c.SMTP.Port)
	setString(&c.SMTP.Username, getEnv("SMTP_USERNAME"))
	setString(&c.SMTP.Password, getEnv("SMTP_PASSWORD"))
	setString(&c.SMTP.From, getEnv("SMTP_FROM"))
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive", key)
	}
	*dst = d
	return nil
}
