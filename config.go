package switcher

import (
	"fmt"
	"io"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/ericselin/switcher/cache"
)

// Settings are the file-based settings of a switcher.
//
//	bucket: switcher-cache
//	storage: sqlite # or memory, redis
//	db: switcher.db # sqlite file, "memory" for a shared in-memory database
//	redisAddr: localhost:6379
//	logLevel: debug
type Settings struct {
	Bucket    string `yaml:"bucket"`
	Storage   string `yaml:"storage"`
	DB        string `yaml:"db"`
	RedisAddr string `yaml:"redisAddr"`
	LogLevel  string `yaml:"logLevel"`
}

// LoadSettings reads settings from a yaml file and fills in defaults.
func LoadSettings(filename string) (Settings, error) {
	var settings Settings
	settingsBytes, err := os.ReadFile(filename)
	if err != nil {
		return settings, err
	}
	if err := yaml.Unmarshal(settingsBytes, &settings); err != nil {
		return settings, err
	}
	if settings.Bucket == "" {
		settings.Bucket = DefaultBucket
	}
	if settings.Storage == "" {
		settings.Storage = "sqlite"
	}
	return settings, nil
}

// NewStorage creates the configured storage provider.
func (s Settings) NewStorage() (cache.Storage, error) {
	switch s.Storage {
	case "", "sqlite":
		db := s.DB
		if db == "memory" {
			db = cache.MemoryDB
		}
		return cache.NewSQLiteStorage(db), nil
	case "memory":
		return cache.NewMemoryStorage(), nil
	case "redis":
		if s.RedisAddr == "" {
			return nil, fmt.Errorf("Redis storage needs redisAddr")
		}
		return cache.NewRedisStorage(redis.NewClient(&redis.Options{Addr: s.RedisAddr})), nil
	default:
		return nil, fmt.Errorf("Unsupported cache provider: %s", s.Storage)
	}
}

// Logger creates a logger writing to w at the configured level (debug if not set).
func (s Settings) Logger(w io.Writer) (zerolog.Logger, error) {
	level := zerolog.DebugLevel
	if s.LogLevel != "" {
		l, err := zerolog.ParseLevel(s.LogLevel)
		if err != nil {
			return zerolog.Logger{}, err
		}
		level = l
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

// Config returns a switcher config using the settings, for the given window.
func (s Settings) Config(window Window, w io.Writer) (Config, error) {
	storage, err := s.NewStorage()
	if err != nil {
		return Config{}, err
	}
	logger, err := s.Logger(w)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Storage: storage,
		Bucket:  s.Bucket,
		Window:  window,
		Logger:  &logger,
	}, nil
}
