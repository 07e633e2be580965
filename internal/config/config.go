package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig `mapstructure:"log"`
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Tracing   TracingConfig   `mapstructure:"tracing"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Client    ClientConfig    `mapstructure:"client"`
	LoadTest  LoadTestConfig  `mapstructure:"loadtest"`

	// 实际读取到的配置文件路径，未找到文件时为空
	ConfigFile string `mapstructure:"-"`
}

type ServerConfig struct {
	Port        string
	Mode        string
	StaticDir   string `mapstructure:"static_dir"`
	BodyLimitMB int    `mapstructure:"body_limit_mb"`
}

type LogConfig struct {
	File    string `mapstructure:"file"`
	Console bool   `mapstructure:"console"`
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type RedisConfig struct {
	Host            string
	Port            int
	Password        string
	DB              int
	CacheTTLMinutes int `mapstructure:"cache_ttl_minutes"`
}

type JWTConfig struct {
	Secret      string        `mapstructure:"secret"`
	ExpireHours int           `mapstructure:"expire_hours"`
	ExpireTime  time.Duration `mapstructure:"-"`
}

type TracingConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint"`
	SampleRatio       float64 `mapstructure:"sample_ratio"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LimitRule struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

func (r LimitRule) Window() time.Duration {
	return time.Duration(r.WindowMinutes) * time.Minute
}

type RateLimitConfig struct {
	API  LimitRule `mapstructure:"api"`
	Auth LimitRule `mapstructure:"auth"`
}

// ClientConfig 答题端（cmd/quiztaker）使用
type ClientConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	CredentialsFile string `mapstructure:"credentials_file"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
}

func (c ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type LoadTarget struct {
	URL      string `mapstructure:"url"`
	Requests int    `mapstructure:"requests"`
}

type LoadTestConfig struct {
	Targets     []LoadTarget `mapstructure:"targets"`
	Concurrency int          `mapstructure:"concurrency"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.body_limit_mb", 50)

	v.SetDefault("log.file", "logs/app.log")
	v.SetDefault("log.console", true)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.dbname", "osian")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)

	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.cache_ttl_minutes", 10)

	v.SetDefault("jwt.expire_hours", 24)

	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("cors.allowed_origins", []string{
		"http://localhost:5000",
		"http://localhost:5500",
		"http://127.0.0.1:5500",
	})

	v.SetDefault("rate_limit.api.max_requests", 100)
	v.SetDefault("rate_limit.api.window_minutes", 15)
	v.SetDefault("rate_limit.auth.max_requests", 20)
	v.SetDefault("rate_limit.auth.window_minutes", 10)

	v.SetDefault("client.base_url", "http://localhost:5000/api")
	v.SetDefault("client.credentials_file", ".osian/credentials.json")
	v.SetDefault("client.timeout_seconds", 30)

	v.SetDefault("loadtest.concurrency", 0)
	v.SetDefault("loadtest.targets", []map[string]interface{}{
		{"url": "http://localhost:5000/", "requests": 200},
		{"url": "http://localhost:5000/api/health", "requests": 200},
	})
}

// LoadConfig 读取 path 目录下的 config.yaml；文件不存在时只使用默认值和环境变量
func LoadConfig(path string) (*Config, error) {
	// .env 可选，和后端原先的 dotenv 行为保持一致
	_ = godotenv.Load(filepath.Join(path, "..", ".env"))

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("OSIAN")
	v.AutomaticEnv()
	setDefaults(v)

	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.mode", "SERVER_MODE")
	v.BindEnv("server.static_dir", "STATIC_DIR")

	// Database
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	// Client
	v.BindEnv("client.base_url", "OSIAN_API_URL")

	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	} else {
		cfg.ConfigFile = v.ConfigFileUsed()
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = time.Duration(cfg.JWT.ExpireHours) * time.Hour

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	return &cfg, nil
}
