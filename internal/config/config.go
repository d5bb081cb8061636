package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the dialer process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App    AppConfig
	Store  StoreConfig
	DB     DBConfig
	Redis  RedisConfig
	Auth   AuthConfig
	Twilio TwilioConfig
	Files  FilesConfig

	// PublicBaseURL is the externally reachable base the provider calls back on.
	PublicBaseURL string
	// AgentNumbers is the weighted agent line list, "target[:weight],...".
	AgentNumbers string
}

type AppConfig struct {
	Env  string
	Port int
}

const (
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type StoreConfig struct {
	// Backend is one of file, sqlite, postgres.
	Backend string
	// Path is the outcome file (file) or database file (sqlite).
	Path string
}

// DBConfig is only read when the store backend is postgres.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

// RedisConfig is optional. A host enables the shared terminal-event ledger.
type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	// Region and Edge route REST calls through a Twilio regional endpoint.
	Region string
	Edge   string

	ValidateSignature bool
	// MachineDetection is passed through to the provider ("Enable",
	// "DetectMessageEnd") when set.
	MachineDetection string
	// RingTimeout bounds how long a call rings before the provider gives up
	// and reports no-answer.
	RingTimeout int
}

type FilesConfig struct {
	ReportDir  string
	AudioDir   string
	ScriptPath string
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := intOr("APP_PORT", 8080)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.Store.Backend = strings.ToLower(strings.TrimSpace(os.Getenv("STORE_BACKEND")))
	c.Store.Path = strings.TrimSpace(os.Getenv("STORE_PATH"))

	if c.Store.Backend == StorePostgres {
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
	}

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	if c.Redis.Host != "" {
		n, err := intOr("REDIS_PORT", 6379)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth = loadAuth()

	c.Twilio.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Twilio.FromNumber = strings.TrimSpace(os.Getenv("TWILIO_FROM_NUMBER"))
	c.Twilio.Region = strings.TrimSpace(os.Getenv("TWILIO_REGION"))
	c.Twilio.Edge = strings.TrimSpace(os.Getenv("TWILIO_EDGE"))
	c.Twilio.MachineDetection = strings.TrimSpace(os.Getenv("TWILIO_MACHINE_DETECTION"))
	{
		b, err := boolOr("TWILIO_VALIDATE_SIGNATURE", true)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Twilio.ValidateSignature = b
	}
	{
		n, err := intOr("TWILIO_RING_TIMEOUT", 30)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Twilio.RingTimeout = n
	}

	c.PublicBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL")), "/")
	c.AgentNumbers = strings.TrimSpace(os.Getenv("AGENT_NUMBERS"))

	c.Files.ReportDir = strings.TrimSpace(os.Getenv("REPORT_DIR"))
	c.Files.AudioDir = strings.TrimSpace(os.Getenv("AUDIO_DIR"))
	c.Files.ScriptPath = strings.TrimSpace(os.Getenv("SCRIPT_PATH"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadAuth reads only the JWT settings, for tooling that mints tokens.
func LoadAuth() (AuthConfig, error) {
	a := loadAuth()
	if err := a.validate(false); err != nil {
		return AuthConfig{}, err
	}
	return a.withDefaults(), nil
}

func loadAuth() AuthConfig {
	return AuthConfig{
		JWTSecret:   os.Getenv("JWT_SECRET"),
		JWTIssuer:   strings.TrimSpace(os.Getenv("JWT_ISSUER")),
		JWTAudience: strings.TrimSpace(os.Getenv("JWT_AUDIENCE")),
		// Duration env vars are optional; defaults applied in Validate().
		AccessTokenTTL:  mustDuration("JWT_ACCESS_TTL"),
		RefreshTokenTTL: mustDuration("JWT_REFRESH_TTL"),
	}
}

// Validate checks the config and fills defaults in place.
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

	switch c.Store.Backend {
	case "":
		c.Store.Backend = StoreFile
		fallthrough
	case StoreFile:
		if c.Store.Path == "" {
			c.Store.Path = "call_results.json"
		}
	case StoreSQLite:
		if c.Store.Path == "" {
			c.Store.Path = "dialer.db"
		}
	case StorePostgres:
		errs = append(errs, c.validateDB()...)
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be one of file, sqlite, postgres, got %q", c.Store.Backend))
	}

	if c.Redis.Host != "" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if err := c.Auth.validate(c.IsProduction()); err != nil {
		errs = append(errs, err)
	}
	c.Auth = c.Auth.withDefaults()

	if c.Twilio.AccountSID == "" {
		errs = append(errs, errors.New("TWILIO_ACCOUNT_SID is required"))
	}
	if c.Twilio.AuthToken == "" {
		errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required"))
	}
	if c.Twilio.FromNumber == "" {
		errs = append(errs, errors.New("TWILIO_FROM_NUMBER is required"))
	}
	if c.Twilio.RingTimeout < 5 || c.Twilio.RingTimeout > 600 {
		errs = append(errs, fmt.Errorf("TWILIO_RING_TIMEOUT must be between 5 and 600 seconds, got %d", c.Twilio.RingTimeout))
	}
	if c.IsProduction() && !c.Twilio.ValidateSignature {
		errs = append(errs, errors.New("TWILIO_VALIDATE_SIGNATURE cannot be disabled in production"))
	}

	if c.PublicBaseURL == "" {
		errs = append(errs, errors.New("PUBLIC_BASE_URL is required"))
	} else if u, err := url.Parse(c.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("PUBLIC_BASE_URL must be an absolute URL, got %q", c.PublicBaseURL))
	}

	if c.Files.ReportDir == "" {
		c.Files.ReportDir = "reports"
	}
	if c.Files.AudioDir == "" {
		c.Files.AudioDir = "static"
	}

	return joinErrors(errs)
}

func (c *Config) validateDB() []error {
	var errs []error
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
	return errs
}

func (a AuthConfig) validate(production bool) error {
	var errs []error
	if a.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if production {
		if a.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if a.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	d := a.withDefaults()
	if d.RefreshTokenTTL <= d.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}
	return joinErrors(errs)
}

func (a AuthConfig) withDefaults() AuthConfig {
	if a.AccessTokenTTL <= 0 {
		a.AccessTokenTTL = 15 * time.Minute
	}
	if a.RefreshTokenTTL <= 0 {
		a.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	return a
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
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

func (c Config) RedisEnabled() bool { return c.Redis.Host != "" }

func (c Config) RedisAddr() string {
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

func intOr(key string, def int) (int, error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return def, nil
	}
	return mustInt(key)
}

func boolOr(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
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
