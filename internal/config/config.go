package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type LogConfig struct {
	Level  string
	Format string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether at least one broker is configured.
func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration
	Prefix      string
}

func (c RedisConfig) Enabled() bool { return c.Addr != "" }

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	Prefix          string
}

func (c S3Config) Enabled() bool { return c.Endpoint != "" }

type AppConfig struct {
	DatabaseURL    string
	Port           string
	AllowedOrigins string
	JWTSecret      string
	OpenAIAPIKey   string
	StorageDir     string
	MigrationsAuto bool

	Log   LogConfig
	Kafka KafkaConfig
	Redis RedisConfig
	S3    S3Config
}

// Load reads .env when present, then the environment. Integrations whose
// address is empty stay disabled.
func Load() (AppConfig, error) {
	_ = godotenv.Load()

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return AppConfig{}, err
	}
	redisRetries, err := getEnvInt("REDIS_MAX_RETRIES", 3)
	if err != nil {
		return AppConfig{}, err
	}
	redisTimeout, err := getEnvInt("REDIS_TIMEOUT", 5)
	if err != nil {
		return AppConfig{}, err
	}
	useSSL, err := getEnvBool("S3_USE_SSL", false)
	if err != nil {
		return AppConfig{}, err
	}
	autoMigrate, err := getEnvBool("MIGRATIONS_AUTO", false)
	if err != nil {
		return AppConfig{}, err
	}

	cfg := AppConfig{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		Port:           getEnv("SERVER_PORT", "8080"),
		AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		StorageDir:     getEnv("STORAGE_DIR", "./storage"),
		MigrationsAuto: autoMigrate,
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_TOPIC", "loan-events"),
		},
		Redis: RedisConfig{
			Addr:        os.Getenv("REDIS_ADDR"),
			Password:    os.Getenv("REDIS_PASSWORD"),
			DB:          redisDB,
			MaxRetries:  redisRetries,
			DialTimeout: time.Duration(redisTimeout) * time.Second,
			Timeout:     time.Duration(redisTimeout) * time.Second,
			Prefix:      getEnv("REDIS_PREFIX", "loan_manager_"),
		},
		S3: S3Config{
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY"),
			SecretAccessKey: os.Getenv("S3_SECRET_KEY"),
			Bucket:          getEnv("S3_BUCKET", "loans"),
			UseSSL:          useSSL,
			Region:          getEnv("S3_REGION", "us-east-1"),
			Prefix:          os.Getenv("S3_PREFIX"),
		},
	}
	return cfg, nil
}

// Validate checks the settings the HTTP server cannot start without.
func (c AppConfig) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is not set")
	}
	if c.S3.Enabled() && (c.S3.AccessKeyID == "" || c.S3.SecretAccessKey == "") {
		return fmt.Errorf("S3_ENDPOINT is set but S3_ACCESS_KEY or S3_SECRET_KEY is missing")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int value %q for %s: %w", v, key, err)
	}
	return i, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid bool value %q for %s: %w", v, key, err)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
