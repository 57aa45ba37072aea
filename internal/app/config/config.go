package config

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type CartConfig struct {
	Store         string        `yaml:"store" env:"CART_STORE" env-default:"redis"`
	TTL           time.Duration `yaml:"ttl" env:"CART_TTL" env-default:"720h"`
	MaxAttempts   int           `yaml:"max_attempts" env:"CART_MAX_ATTEMPTS" env-default:"5"`
	RetryBackoff  time.Duration `yaml:"retry_backoff" env:"CART_RETRY_BACKOFF" env-default:"5ms"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"CART_SWEEP_INTERVAL" env-default:"1m"`
}

type Config struct {
	Env        string           `yaml:"env" env:"ENV" env-default:"local"`
	GRPCServer GRPCServerConfig `yaml:"grpc_server"`
	HTTPServer HTTPServerConfig `yaml:"http_server"`
	Redis      RedisConfig      `yaml:"redis"`
	NATS       NATSConfig       `yaml:"nats"`
	Logger     LoggerConfig     `yaml:"logger"`
	Cart       CartConfig       `yaml:"cart"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

type GRPCServerConfig struct {
	Port              string        `yaml:"port" env:"GRPC_PORT_CART_SERVICE" env-default:"50055"`
	MaxConnectionIdle time.Duration `yaml:"max_connection_idle" env-default:"15m"`
	TimeoutGraceful   time.Duration `yaml:"timeout_graceful_shutdown" env-default:"15s"`
	HealthInterval    time.Duration `yaml:"health_interval" env:"HEALTH_INTERVAL" env-default:"10s"`
}

type HTTPServerConfig struct {
	Port string `yaml:"port" env:"HTTP_PORT_CART_SERVICE" env-default:"9095"`
}

type RedisConfig struct {
	Addr         string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB           int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	PoolSize     int           `yaml:"pool_size" env:"REDIS_POOL_SIZE" env-default:"10"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT" env-default:"5s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"REDIS_READ_TIMEOUT" env-default:"3s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"REDIS_WRITE_TIMEOUT" env-default:"3s"`
}

type NATSConfig struct {
	URL            string        `yaml:"url" env:"NATS_URL" env-default:"nats://localhost:4222"`
	QueueGroup     string        `yaml:"queue_group" env:"NATS_QUEUE_GROUP" env-default:"cart-service"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"NATS_REQUEST_TIMEOUT" env-default:"3s"`
}

type LoggerConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Encoding   string `yaml:"encoding" env:"LOG_ENCODING" env-default:"json"`
	TimeFormat string `yaml:"time_format" env:"LOG_TIME_FORMAT" env-default:"2006-01-02T15:04:05.000Z07:00"`
}

type TracingConfig struct {
	Endpoint    string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"OTEL_SERVICE_NAME" env-default:"cart-service"`
}

func (c *Config) Validate() error {
	switch c.Cart.Store {
	case StoreRedis, StoreMemory:
	default:
		return errors.New("cart.store must be either \"redis\" or \"memory\"")
	}
	if c.Cart.TTL <= 0 {
		return errors.New("cart.ttl must be positive")
	}
	if c.Cart.MaxAttempts < 1 {
		return errors.New("cart.max_attempts must be at least 1")
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return &cfg, nil
	}

	err := cleanenv.ReadConfig(path, &cfg)
	if err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, err
		}
		log.Printf("Warning: Config file not found at %s, attempting to load from environment variables only.", path)
		if errEnv := cleanenv.ReadEnv(&cfg); errEnv != nil {
			return nil, errEnv
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH_CART_SERVICE")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}
	return cfg
}
