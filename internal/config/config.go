package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Server   ServerConfig   `env:",prefix=SERVER_"`
	Postgres PostgresConfig `env:",prefix=POSTGRES_"`
	Redis    RedisConfig    `env:",prefix=REDIS_"`
	Auth     AuthConfig     `env:",prefix=AUTH_"`
	Access   AccessConfig   `env:",prefix=ACCESS_"`
	SMTP     SMTPConfig     `env:",prefix=SMTP_"`
	Google   GoogleConfig   `env:",prefix=GOOGLE_"`
	Security SecurityConfig `env:",prefix="`
	CORS     CORSConfig     `env:",prefix=CORS_"`
	Env      string         `env:"ENV,default=development"`
}

type ServerConfig struct {
	Port         string   `env:"PORT,default=8080"`
	Host         string   `env:"HOST,default=0.0.0.0"`
	ReadTimeout  Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout Duration `env:"WRITE_TIMEOUT,default=15s"`
	PublicURL    string   `env:"PUBLIC_URL,default=http://localhost:8080"`
}

type PostgresConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=5432"`
	User     string `env:"USER,default=access_service"`
	Password string `env:"PASSWORD,default=access_service_password"`
	DBName   string `env:"DB,default=access_service_db"`
	SSLMode  string `env:"SSLMODE,default=disable"`
}

type RedisConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=6379"`
	Password string `env:"PASSWORD,default="`
	DB       int    `env:"DB,default=0"`
}

// AuthConfig covers sessions, passwords and email verification.
type AuthConfig struct {
	TokenSecret            string   `env:"TOKEN_SECRET,required"`
	SessionExpiry          Duration `env:"SESSION_EXPIRY,default=30d"`
	VerificationCodeExpiry Duration `env:"VERIFICATION_CODE_EXPIRY,default=30m"`
	PasswordMinLength      int      `env:"PASSWORD_MIN_LENGTH,default=6"`
	OAuthStateExpiry       Duration `env:"OAUTH_STATE_EXPIRY,default=10m"`
}

// AccessConfig covers course entitlement policy.
type AccessConfig struct {
	FreeLessons       []string `env:"FREE_LESSONS,default=A1,A2,A3"`
	DefaultPlan       string   `env:"DEFAULT_PLAN,default=full"`
	DefaultMaxDevices int      `env:"DEFAULT_MAX_DEVICES,default=3"`
	TokenExpiry       Duration `env:"TOKEN_EXPIRY,default=1y"`
	CourseCacheTTL    Duration `env:"COURSE_CACHE_TTL,default=1h"`
}

type SMTPConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     int    `env:"PORT,default=587"`
	User     string `env:"USER,default="`
	Password string `env:"PASSWORD,default="`
	From     string `env:"FROM,default=noreply@apcs.space"`
}

type GoogleConfig struct {
	ClientID     string `env:"CLIENT_ID,default="`
	ClientSecret string `env:"CLIENT_SECRET,default="`
	RedirectURL  string `env:"REDIRECT_URL,default="`
	SuccessPath  string `env:"SUCCESS_PATH,default=/auth-success.html"`
}

type SecurityConfig struct {
	BCryptCost        int      `env:"BCRYPT_COST,default=12"`
	RateLimitRequests int      `env:"RATE_LIMIT_REQUESTS,default=10"`
	RateLimitWindow   Duration `env:"RATE_LIMIT_WINDOW,default=1m"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	AllowedMethods []string `env:"ALLOWED_METHODS,default=GET,POST,OPTIONS"`
	AllowedHeaders []string `env:"ALLOWED_HEADERS,default=Content-Type,Authorization"`
}

// DSN returns PostgreSQL connection string
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// Address returns Redis connection address
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// IsFreeLesson reports whether lessonID is in the configured free set.
func (a AccessConfig) IsFreeLesson(lessonID string) bool {
	for _, id := range a.FreeLessons {
		if id == lessonID {
			return true
		}
	}
	return false
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	var config Config

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Validate token secret length
	if len(config.Auth.TokenSecret) < 32 {
		return nil, fmt.Errorf("AUTH_TOKEN_SECRET must be at least 32 characters long")
	}

	if config.Auth.PasswordMinLength < 6 {
		return nil, fmt.Errorf("AUTH_PASSWORD_MIN_LENGTH must be at least 6")
	}

	return &config, nil
}

// LoadWithDefaults loads configuration with default context
func LoadWithDefaults() (*Config, error) {
	return Load(context.Background())
}
