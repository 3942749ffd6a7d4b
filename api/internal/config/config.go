package config

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	CacheNone     = "none"
	CacheRedis    = "redis"
	CachePostgres = "postgres"
)

type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string
	DefaultLLM   string
	ModelTimeout time.Duration
	PromptDir    string

	CacheBackend string
	CacheTTL     time.Duration
	RedisURL     string
	DatabaseURL  string

	TelegramBotToken string
	WebhookURL       string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", "8000")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("gemini_model", "gemini-1.5-flash")
	v.SetDefault("openai_model", "gpt-4o-mini")
	v.SetDefault("default_llm", "gemini")
	v.SetDefault("model_timeout", "60s")
	v.SetDefault("cache_backend", CacheNone)
	v.SetDefault("cache_ttl", "24h")
	return v
}

// loadEnvFile reads .env (or ENV_FILE) when present; real env vars win.
func loadEnvFile() {
	path := strings.TrimSpace(os.Getenv("ENV_FILE"))
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err == nil {
		if err := godotenv.Load(path); err != nil {
			log.Printf("config: cannot load %s: %v", path, err)
		}
	}
}

// Load reads the environment. GOOGLE_API_KEY is required.
func Load() (*Config, error) {
	loadEnvFile()
	v := newViper()

	str := func(k string) string { return strings.TrimSpace(v.GetString(k)) }

	modelTimeout, err := time.ParseDuration(str("model_timeout"))
	if err != nil {
		return nil, fmt.Errorf("MODEL_TIMEOUT: %w", err)
	}
	cacheTTL, err := time.ParseDuration(str("cache_ttl"))
	if err != nil {
		return nil, fmt.Errorf("CACHE_TTL: %w", err)
	}

	cfg := &Config{
		Port:      str("port"),
		LogLevel:  str("log_level"),
		LogFormat: str("log_format"),

		GeminiAPIKey: str("google_api_key"),
		GeminiModel:  str("gemini_model"),
		OpenAIAPIKey: str("openai_api_key"),
		OpenAIModel:  str("openai_model"),
		DefaultLLM:   strings.ToLower(str("default_llm")),
		ModelTimeout: modelTimeout,
		PromptDir:    str("prompt_dir"),

		CacheBackend: strings.ToLower(str("cache_backend")),
		CacheTTL:     cacheTTL,
		RedisURL:     str("redis_url"),
		DatabaseURL:  resolveDSN(v),

		TelegramBotToken: str("telegram_bot_token"),
		WebhookURL:       str("webhook_url"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad is Load for main: a broken configuration stops the process.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

func (c *Config) validate() error {
	var errs []error
	if c.GeminiAPIKey == "" {
		errs = append(errs, errors.New("missing required env GOOGLE_API_KEY"))
	}
	switch c.DefaultLLM {
	case "gemini", "google":
	case "gpt", "openai":
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("DEFAULT_LLM=gpt needs OPENAI_API_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DEFAULT_LLM %q", c.DefaultLLM))
	}
	if c.ModelTimeout <= 0 {
		errs = append(errs, errors.New("MODEL_TIMEOUT must be positive"))
	}
	switch c.CacheBackend {
	case CacheNone, "":
		c.CacheBackend = CacheNone
	case CacheRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("CACHE_BACKEND=redis needs REDIS_URL"))
		}
	case CachePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("CACHE_BACKEND=postgres needs DATABASE_URL or POSTGRES_PASSWORD"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CACHE_BACKEND %q (none|redis|postgres)", c.CacheBackend))
	}
	return errors.Join(errs...)
}

// resolveDSN prefers DATABASE_URL and otherwise builds one from POSTGRES_* / PG* vars
// when a password is set.
func resolveDSN(v *viper.Viper) string {
	if s := strings.TrimSpace(v.GetString("database_url")); s != "" {
		return s
	}
	pass := v.GetString("postgres_password")
	if pass == "" {
		return ""
	}
	get := func(k, def string) string {
		if s := strings.TrimSpace(v.GetString(k)); s != "" {
			return s
		}
		return def
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(get("postgres_user", "plantdoctor"), pass),
		Host:     net.JoinHostPort(get("pghost", "db"), get("pgport", "5432")),
		Path:     "/" + get("postgres_db", "plantdoctor"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// SafeDSNSummary renders a DSN for logs without the password.
func SafeDSNSummary(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "dsn: parse error"
	}
	user := u.User.Username()
	host := u.Host
	port := ""
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host, port = h, p
	}
	db := strings.TrimPrefix(u.Path, "/")
	if port == "" {
		return fmt.Sprintf("host=%s db=%s user=%s", host, db, user)
	}
	return fmt.Sprintf("host=%s port=%s db=%s user=%s", host, port, db, user)
}
