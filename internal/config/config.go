package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Transport TransportConfig `mapstructure:"transport"`
	Store     StoreConfig     `mapstructure:"store"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	LLM       LLMConfig       `mapstructure:"llm"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host" validate:"required"`
	TCPPort         int           `mapstructure:"tcp_port" validate:"min=0,max=65535"`
	UDPPort         int           `mapstructure:"udp_port" validate:"min=0,max=65535"`
	UDPWorkers      int           `mapstructure:"udp_workers" validate:"min=1"`
	MaxConnections  int           `mapstructure:"max_connections" validate:"min=1"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// TCPAddr returns the stream listen address
func (c ServerConfig) TCPAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.TCPPort))
}

// UDPAddr returns the datagram listen address
func (c ServerConfig) UDPAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.UDPPort))
}

type TransportConfig struct {
	// MaxPayload bounds the encoded size of a single message
	MaxPayload int `mapstructure:"max_payload" validate:"min=64"`
	// Secret enables AES-GCM sealing when set
	Secret string `mapstructure:"secret"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=memory redis"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type ArchiveConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=none postgres mysql sqlite mongo"`
	// DSN is driver specific: a postgres URL, a mysql DSN, a sqlite file path
	// or a mongodb URI
	DSN      string `mapstructure:"dsn"`
	Database string `mapstructure:"database"`
	MaxConns int32  `mapstructure:"max_conns"`
	// AutoMigrate applies the postgres schema on startup
	AutoMigrate bool `mapstructure:"auto_migrate"`
	// BufferSize bounds turns waiting to be written before new ones are dropped
	BufferSize int `mapstructure:"buffer_size" validate:"min=0"`
}

type LLMConfig struct {
	DefaultProvider string          `mapstructure:"default_provider"`
	SystemPrompt    string          `mapstructure:"system_prompt"`
	HistoryWindow   int             `mapstructure:"history_window" validate:"min=0"`
	RequestTimeout  time.Duration   `mapstructure:"request_timeout"`
	OpenAI          OpenAIConfig    `mapstructure:"openai"`
	Anthropic       AnthropicConfig `mapstructure:"anthropic"`
	Ollama          OllamaConfig    `mapstructure:"ollama"`
	DeepSeek        DeepSeekConfig  `mapstructure:"deepseek"`
	Gemini          GeminiConfig    `mapstructure:"gemini"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OllamaConfig struct {
	Host         string `mapstructure:"host"`
	DefaultModel string `mapstructure:"default_model"`
}

type DeepSeekConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type AdminConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port" validate:"min=0,max=65535"`
	Username       string        `mapstructure:"username"`
	PasswordHash   string        `mapstructure:"password_hash"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

func (c AdminConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
	// File enables a rotating log file next to stderr output
	File         string        `mapstructure:"file"`
	RotationTime time.Duration `mapstructure:"rotation_time"`
	MaxAge       time.Duration `mapstructure:"max_age"`
}

var validate = validator.New()

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set config file path
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	// Read config file. SetConfigFile reports a missing file as a path
	// error rather than ConfigFileNotFoundError.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	// Override with environment variables
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the struct-level constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Store.Driver == "redis" && c.Redis.Host == "" {
		return fmt.Errorf("invalid configuration: redis store requires redis.host")
	}
	if c.Archive.Driver != "none" && c.Archive.DSN == "" {
		return fmt.Errorf("invalid configuration: archive driver %q requires archive.dsn", c.Archive.Driver)
	}
	if c.Admin.Enabled && (c.Admin.JWTSecret == "" || c.Admin.PasswordHash == "") {
		return fmt.Errorf("invalid configuration: admin API requires admin.jwt_secret and admin.password_hash")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.tcp_port", 5000)
	v.SetDefault("server.udp_port", 5001)
	v.SetDefault("server.udp_workers", 1)
	v.SetDefault("server.max_connections", 256)
	v.SetDefault("server.idle_timeout", "15m")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Transport
	v.SetDefault("transport.max_payload", 4096)

	// Store
	v.SetDefault("store.driver", "memory")

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Archive
	v.SetDefault("archive.driver", "none")
	v.SetDefault("archive.database", "chatbridge")
	v.SetDefault("archive.max_conns", 5)
	v.SetDefault("archive.auto_migrate", true)
	v.SetDefault("archive.buffer_size", 256)

	// LLM
	v.SetDefault("llm.default_provider", "ollama")
	v.SetDefault("llm.history_window", 0)
	v.SetDefault("llm.request_timeout", "2m")
	v.SetDefault("llm.ollama.host", "http://localhost:11434")
	v.SetDefault("llm.ollama.default_model", "llama3")

	// Rate limit
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.requests_per_minute", 30)
	v.SetDefault("rate_limit.burst", 5)

	// Admin
	v.SetDefault("admin.enabled", false)
	v.SetDefault("admin.host", "127.0.0.1")
	v.SetDefault("admin.port", 8080)
	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.access_token_ttl", "1h")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.rotation_time", "24h")
	v.SetDefault("logging.max_age", "168h") // 7 days
}

func bindEnvVars(v *viper.Viper) {
	// Transport
	v.BindEnv("transport.secret", "TRANSPORT_SECRET")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Archive
	v.BindEnv("archive.dsn", "ARCHIVE_DSN")

	// Admin
	v.BindEnv("admin.jwt_secret", "JWT_SECRET")
	v.BindEnv("admin.password_hash", "ADMIN_PASSWORD_HASH")

	// LLM API Keys
	v.BindEnv("llm.openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("llm.anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("llm.deepseek.api_key", "DEEPSEEK_API_KEY")
	v.BindEnv("llm.gemini.api_key", "GEMINI_API_KEY")
	v.BindEnv("llm.ollama.host", "OLLAMA_HOST")

	// Logging
	v.BindEnv("logging.level", "LOG_LEVEL")
}
