package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/cwrk-planet/chat-service/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const defaultPath = "./config/config.yaml"

type HTTP struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR" validate:"required,hostname_port"`
	ReadTimeout     time.Duration `yaml:"readTimeout" envconfig:"READ_TIMEOUT" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" envconfig:"WRITE_TIMEOUT" validate:"gte=0"`
	IdleTimeout     time.Duration `yaml:"idleTimeout" envconfig:"IDLE_TIMEOUT" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	AllowedOrigins  []string      `yaml:"allowedOrigins" envconfig:"ALLOWED_ORIGINS" validate:"required,min=1,dive,required"`
}

// GRPC is optional: an empty addr disables the admin listener.
type GRPC struct {
	Addr        string        `yaml:"addr" envconfig:"ADDR" validate:"omitempty,hostname_port"`
	CallTimeout time.Duration `yaml:"callTimeout" envconfig:"CALL_TIMEOUT" validate:"gt=0"`
}

type Logging struct {
	Env       string `yaml:"env" envconfig:"ENV" validate:"oneof=dev stage prod"`
	Service   string `yaml:"service" envconfig:"SERVICE" validate:"required"`
	Version   string `yaml:"version" envconfig:"VERSION"`
	Backend   string `yaml:"backend" envconfig:"BACKEND" validate:"oneof=std zap"`
	Level     string `yaml:"level" envconfig:"LEVEL" validate:"omitempty,oneof=debug info warn warning error"`
	AddSource bool   `yaml:"addSource" envconfig:"ADD_SOURCE"`
	Debug     bool   `yaml:"debug" envconfig:"DEBUG"`
}

// Chat holds the room and rate-limit tunables.
type Chat struct {
	MaxRooms         int           `yaml:"maxRooms" envconfig:"MAX_ROOMS" validate:"gt=0"`
	RoomInactivity   time.Duration `yaml:"roomInactivity" envconfig:"ROOM_INACTIVITY" validate:"gt=0"`
	RateWindow       time.Duration `yaml:"rateWindow" envconfig:"RATE_WINDOW" validate:"gt=0"`
	MaxMessages      int           `yaml:"maxMessages" envconfig:"MAX_MESSAGES" validate:"gt=0"`
	MaxMessageLength int           `yaml:"maxMessageLength" envconfig:"MAX_MESSAGE_LENGTH" validate:"gt=0"`
	LengthCooldown   time.Duration `yaml:"lengthCooldown" envconfig:"LENGTH_COOLDOWN" validate:"gt=0"`
	SendBuffer       int           `yaml:"sendBuffer" envconfig:"SEND_BUFFER" validate:"gt=0"`
	PingInterval     time.Duration `yaml:"pingInterval" envconfig:"PING_INTERVAL" validate:"gt=0"`
	MaxFrameBytes    int64         `yaml:"maxFrameBytes" envconfig:"MAX_FRAME_BYTES" validate:"gt=0"`
}

type Config struct {
	HTTP    HTTP    `yaml:"http" envconfig:"HTTP"`
	GRPC    GRPC    `yaml:"grpc" envconfig:"GRPC"`
	Logging Logging `yaml:"logging" envconfig:"LOG"`
	Chat    Chat    `yaml:"chat" envconfig:"CHAT"`
}

// LoadConfig reads .env (if any), then the YAML file at CONFIG_PATH, then
// applies environment overrides such as HTTP_ADDR or CHAT_MAX_ROOMS.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	path, explicit := os.LookupEnv("CONFIG_PATH")
	if !explicit || path == "" {
		path, explicit = defaultPath, false
	}
	return Load(path, explicit)
}

// Load builds the config from the file at path. A missing file is an error
// only when required is set; otherwise defaults and env apply.
func Load(path string, required bool) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !required:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 15 * time.Second
	}
	if c.HTTP.IdleTimeout == 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	}
	if c.GRPC.CallTimeout == 0 {
		c.GRPC.CallTimeout = 10 * time.Second
	}

	if c.Logging.Service == "" {
		c.Logging.Service = "chat-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = string(logger.DetectEnv())
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = string(logger.BackendStd)
		if c.Logging.Env != string(logger.EnvDev) {
			c.Logging.Backend = string(logger.BackendZap)
		}
	}

	if c.Chat.MaxRooms == 0 {
		c.Chat.MaxRooms = 35
	}
	if c.Chat.RoomInactivity == 0 {
		c.Chat.RoomInactivity = time.Hour
	}
	if c.Chat.RateWindow == 0 {
		c.Chat.RateWindow = 5 * time.Second
	}
	if c.Chat.MaxMessages == 0 {
		c.Chat.MaxMessages = 7
	}
	if c.Chat.MaxMessageLength == 0 {
		c.Chat.MaxMessageLength = 400
	}
	if c.Chat.LengthCooldown == 0 {
		c.Chat.LengthCooldown = 1200 * time.Millisecond
	}
	if c.Chat.SendBuffer == 0 {
		c.Chat.SendBuffer = 256
	}
	if c.Chat.PingInterval == 0 {
		c.Chat.PingInterval = 15 * time.Second
	}
	if c.Chat.MaxFrameBytes == 0 {
		c.Chat.MaxFrameBytes = 16 << 10
	}
}

func (c *Config) validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoggerConfig maps the logging section onto pkg/logger.
func (c *Config) LoggerConfig() logger.Config {
	lvl, _ := logger.ParseLevel(c.Logging.Level)
	return logger.Config{
		Env:       logger.Env(c.Logging.Env),
		Service:   c.Logging.Service,
		Version:   c.Logging.Version,
		Backend:   logger.Backend(c.Logging.Backend),
		Level:     lvl,
		AddSource: c.Logging.AddSource,
		Debug:     c.Logging.Debug && c.Logging.Level == "",
	}
}
