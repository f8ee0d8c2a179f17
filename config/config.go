package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where LoadConfig looks when no path is given.
const DefaultPath = "config/config.yaml"

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Session   SessionConfig   `yaml:"session"`
	Log       LogConfig       `yaml:"log"`
	Redis     RedisConfig     `yaml:"redis"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Mail      MailConfig      `yaml:"mail"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Storage   StorageConfig   `yaml:"storage"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	CORS      CORSConfig      `yaml:"cors"`
}

type ServerConfig struct {
	Port         string        `yaml:"port"`
	Mode         string        `yaml:"mode"` // gin mode: debug, release, test
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// DatabaseConfig describes the relational store. Driver is postgres or mysql.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Charset  string `yaml:"charset"` // mysql only
	SSLMode  string `yaml:"sslMode"` // postgres only
	Schema   string `yaml:"schema"`  // postgres search_path
	LogSQL   bool   `yaml:"logSQL"`
	MaxIdle  int    `yaml:"maxIdle"`
	MaxOpen  int    `yaml:"maxOpen"`
}

// SessionConfig holds lifetimes for bearer sessions, verification codes and
// websocket tickets.
type SessionConfig struct {
	TTL          time.Duration `yaml:"ttl"`
	CodeTTL      time.Duration `yaml:"codeTTL"`
	TicketSecret string        `yaml:"ticketSecret"`
	TicketTTL    time.Duration `yaml:"ticketTTL"`
	Issuer       string        `yaml:"issuer"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Filename   string `yaml:"filename"`
	MaxSize    int    `yaml:"maxSize"` // MB
	MaxBackups int    `yaml:"maxBackups"`
	MaxAge     int    `yaml:"maxAge"` // days
	Compress   bool   `yaml:"compress"`
	Console    bool   `yaml:"console"`
}

// RedisConfig enables presence tracking. Nothing else depends on Redis.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `yaml:"pingInterval"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
}

// MailConfig selects how verification codes leave the process.
// Transport is "smtp", "kafka" or empty (codes are only logged).
type MailConfig struct {
	Transport string `yaml:"transport"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	From      string `yaml:"from"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Group   string   `yaml:"group"`
}

// StorageConfig points at an S3-compatible bucket. Empty keys fall back to
// the default AWS credential chain.
type StorageConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"accessKeyID"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	PublicBaseURL   string `yaml:"publicBaseURL"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// MailEnabled reports whether any delivery transport is configured.
func (m MailConfig) MailEnabled() bool {
	switch m.Transport {
	case "smtp":
		return m.Host != "" && m.Username != "" && m.Password != ""
	case "kafka":
		return true
	default:
		return false
	}
}

// LoadConfig reads path (or DefaultPath), falling back to defaults when the
// file is missing, then applies .env and environment overrides.
func LoadConfig(path string) *Config {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	if path == "" {
		path = getEnv("CONFIG_FILE", DefaultPath)
	}
	config := loadFromYAML(path)
	overrideWithEnvVars(config)

	return config
}

func loadFromYAML(filePath string) *Config {
	config := getDefaultConfig()

	data, err := os.ReadFile(filePath)
	if err != nil {
		return config
	}
	// Unmarshal over the defaults so a partial file keeps the rest.
	if err := yaml.Unmarshal(data, config); err != nil {
		return getDefaultConfig()
	}

	return config
}

func overrideWithEnvVars(config *Config) {
	envString(&config.Server.Port, "SERVER_PORT")
	envString(&config.Server.Mode, "GIN_MODE")
	envDuration(&config.Server.ReadTimeout, "SERVER_READ_TIMEOUT")
	envDuration(&config.Server.WriteTimeout, "SERVER_WRITE_TIMEOUT")
	envDuration(&config.Server.IdleTimeout, "SERVER_IDLE_TIMEOUT")

	db := &config.Database
	envString(&db.Driver, "DB_DRIVER")
	envString(&db.Host, "DB_HOST")
	envInt(&db.Port, "DB_PORT")
	envString(&db.Username, "DB_USERNAME")
	envString(&db.Password, "DB_PASSWORD")
	envString(&db.Database, "DB_DATABASE")
	envString(&db.Charset, "DB_CHARSET")
	envString(&db.SSLMode, "DB_SSLMODE")
	envString(&db.Schema, "DB_SCHEMA")
	db.LogSQL = getEnvBool("DB_LOG_SQL", db.LogSQL)
	envInt(&db.MaxIdle, "DB_MAX_IDLE")
	envInt(&db.MaxOpen, "DB_MAX_OPEN")

	envDuration(&config.Session.TTL, "SESSION_TTL")
	envDuration(&config.Session.CodeTTL, "CODE_TTL")
	envString(&config.Session.TicketSecret, "TICKET_SECRET")
	envDuration(&config.Session.TicketTTL, "TICKET_TTL")

	envString(&config.Log.Level, "LOG_LEVEL")
	envString(&config.Log.Filename, "LOG_FILENAME")
	config.Log.Console = getEnvBool("LOG_CONSOLE", config.Log.Console)

	config.Redis.Enabled = getEnvBool("REDIS_ENABLED", config.Redis.Enabled)
	envString(&config.Redis.Host, "REDIS_HOST")
	envInt(&config.Redis.Port, "REDIS_PORT")
	envString(&config.Redis.Password, "REDIS_PASSWORD")
	// 0 is a valid database index.
	if n := getEnvInt("REDIS_DB", -1); n >= 0 {
		config.Redis.DB = n
	}

	envDuration(&config.WebSocket.PingInterval, "WS_PING_INTERVAL")
	envDuration(&config.WebSocket.ReadTimeout, "WS_READ_TIMEOUT")

	mail := &config.Mail
	envString(&mail.Transport, "MAIL_TRANSPORT")
	envString(&mail.Host, "SMTP_HOST")
	envInt(&mail.Port, "SMTP_PORT")
	envString(&mail.Username, "SMTP_USER")
	envString(&mail.Password, "SMTP_PASSWORD")
	envString(&mail.From, "SMTP_FROM")

	envList(&config.Kafka.Brokers, "KAFKA_BROKERS")
	envString(&config.Kafka.Topic, "KAFKA_TOPIC")
	envString(&config.Kafka.Group, "KAFKA_GROUP")

	st := &config.Storage
	envString(&st.Endpoint, "S3_ENDPOINT")
	envString(&st.Region, "S3_REGION")
	envString(&st.Bucket, "S3_BUCKET")
	envString(&st.AccessKeyID, "S3_ACCESS_KEY")
	envString(&st.SecretAccessKey, "S3_SECRET_KEY")
	if envString(&st.PublicBaseURL, "S3_PUBLIC_URL") {
		st.PublicBaseURL = strings.TrimRight(st.PublicBaseURL, "/")
	}

	if rps := getEnvFloat("RATE_LIMIT_RPS", 0); rps > 0 {
		config.RateLimit.RPS = rps
	}
	envInt(&config.RateLimit.Burst, "RATE_LIMIT_BURST")

	envList(&config.CORS.AllowedOrigins, "CORS_ALLOWED_ORIGINS")
}

// The env* setters only overwrite dst when the variable holds a usable value.

func envString(dst *string, key string) bool {
	v := getEnv(key, "")
	if v == "" {
		return false
	}
	*dst = v
	return true
}

func envInt(dst *int, key string) {
	if n := getEnvInt(key, 0); n > 0 {
		*dst = n
	}
}

func envDuration(dst *time.Duration, key string) {
	if d := getEnvDuration(key, 0); d > 0 {
		*dst = d
	}
}

func envList(dst *[]string, key string) {
	if v := getEnv(key, ""); v != "" {
		*dst = splitList(v)
	}
}

func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			Mode:         "release",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     5432,
			Username: "talk",
			Password: "talk",
			Database: "talk",
			Charset:  "utf8mb4",
			SSLMode:  "disable",
			Schema:   "public",
			MaxIdle:  10,
			MaxOpen:  100,
		},
		Session: SessionConfig{
			TTL:          30 * 24 * time.Hour,
			CodeTTL:      10 * time.Minute,
			TicketSecret: "change-me",
			TicketTTL:    60 * time.Second,
			Issuer:       "talk-chat",
		},
		Log: LogConfig{
			Level:      "info",
			Filename:   "logs/app.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
			Console:    true,
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		WebSocket: WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  90 * time.Second,
		},
		Mail: MailConfig{
			Host: "smtp.gmail.com",
			Port: 587,
			From: "noreply@talk.local",
		},
		Kafka: KafkaConfig{
			Brokers: []string{"127.0.0.1:9092"},
			Topic:   "talk-mail",
			Group:   "talk-mail-worker",
		},
		Storage: StorageConfig{
			Region: "us-east-1",
			Bucket: "files",
		},
		RateLimit: RateLimitConfig{
			RPS:   5,
			Burst: 10,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
