package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Platform PlatformConfig
	SIP      SIPConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for managed-postgres posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
}

// PlatformConfig covers the real-time communication platform boundary:
// webhook verification plus the management and agent-dispatch APIs.
type PlatformConfig struct {
	// APIKey and APISecret authenticate both directions: the platform signs
	// webhook deliveries with them, and we sign management/dispatch requests.
	APIKey    string
	APISecret string

	ManagementURL string
	DispatchURL   string
}

// SIPConfig controls inbound trunk reconciliation and SIP participant
// classification on webhook events.
type SIPConfig struct {
	// TrunkName and DispatchRuleName identify the well-known shared resources
	// the reconciler maintains. They are looked up by name on every call.
	TrunkName        string
	DispatchRuleName string

	// RoomPrefix is the fixed room-name prefix the dispatch rule is created with.
	RoomPrefix string

	// IdentityPrefix marks SIP-originated participants by identity.
	IdentityPrefix string

	// TreatAllJoinsAsSIP short-circuits participant classification. Useful for
	// single-purpose deployments where every room is a phone call.
	TreatAllJoinsAsSIP bool

	// DedupTTL bounds the processed-event set. Must outlive the platform's
	// webhook redelivery window.
	DedupTTL time.Duration
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Optional; default applied in Validate().
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")

	c.Platform.APIKey = strings.TrimSpace(os.Getenv("PLATFORM_API_KEY"))
	c.Platform.APISecret = os.Getenv("PLATFORM_API_SECRET")
	c.Platform.ManagementURL = strings.TrimSpace(os.Getenv("PLATFORM_MANAGEMENT_URL"))
	c.Platform.DispatchURL = strings.TrimSpace(os.Getenv("PLATFORM_DISPATCH_URL"))

	c.SIP.TrunkName = strings.TrimSpace(os.Getenv("SIP_TRUNK_NAME"))
	c.SIP.DispatchRuleName = strings.TrimSpace(os.Getenv("SIP_DISPATCH_RULE_NAME"))
	c.SIP.RoomPrefix = strings.TrimSpace(os.Getenv("SIP_ROOM_PREFIX"))
	c.SIP.IdentityPrefix = strings.TrimSpace(os.Getenv("SIP_IDENTITY_PREFIX"))
	c.SIP.TreatAllJoinsAsSIP = mustBool("SIP_TREAT_ALL_JOINS_AS_SIP")
	c.SIP.DedupTTL = mustDuration("SIP_EVENT_DEDUP_TTL")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		// Short-lived operator tokens by default.
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}

	if c.Platform.APIKey == "" {
		errs = append(errs, errors.New("PLATFORM_API_KEY is required"))
	}
	if c.Platform.APISecret == "" {
		errs = append(errs, errors.New("PLATFORM_API_SECRET is required"))
	}
	if c.Platform.ManagementURL == "" {
		errs = append(errs, errors.New("PLATFORM_MANAGEMENT_URL is required"))
	}
	if c.Platform.DispatchURL == "" {
		errs = append(errs, errors.New("PLATFORM_DISPATCH_URL is required"))
	}

	if c.SIP.TrunkName == "" {
		c.SIP.TrunkName = "inbound-trunk"
	}
	if c.SIP.DispatchRuleName == "" {
		c.SIP.DispatchRuleName = "inbound-dispatch"
	}
	if c.SIP.RoomPrefix == "" {
		c.SIP.RoomPrefix = "call-"
	}
	if c.SIP.IdentityPrefix == "" {
		c.SIP.IdentityPrefix = "sip_"
	}
	if c.SIP.DedupTTL <= 0 {
		// Well beyond any plausible webhook redelivery window.
		c.SIP.DedupTTL = 48 * time.Hour
	}

	return joinErrors(errs)
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c *Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func mustBool(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
