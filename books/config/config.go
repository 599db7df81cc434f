package config

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/Astemirdum/book-rating-service/pkg/auth"
	"github.com/Astemirdum/book-rating-service/pkg/circuit_breaker"
	"github.com/Astemirdum/book-rating-service/pkg/kafka"
	"github.com/Astemirdum/book-rating-service/pkg/logger"
	"github.com/Astemirdum/book-rating-service/pkg/postgres"
	"github.com/Astemirdum/book-rating-service/pkg/storage"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	ImageDriverDisk  = "disk"
	ImageDriverMinio = "minio"
)

type HTTPServer struct {
	Host         string        `envconfig:"BOOKS_HTTP_HOST" default:"0.0.0.0"`
	Port         string        `envconfig:"BOOKS_HTTP_PORT" default:"8080"`
	ReadTimeout  time.Duration `envconfig:"HTTP_READ" default:"15s"`
	WriteTimeout time.Duration `envconfig:"HTTP_WRITE"`
}

type Images struct {
	Driver    string `envconfig:"IMAGE_DRIVER" default:"disk"`
	Dir       string `envconfig:"IMAGE_DIR" default:"images"`
	PublicURL string `envconfig:"PUBLIC_URL" default:"http://localhost:8080"`
	Minio     storage.MinioConfig
}

type Config struct {
	Server         HTTPServer
	StoreDriver    string        `envconfig:"STORE_DRIVER"`
	Database       postgres.DB
	QueryTimeout   time.Duration `envconfig:"DB_QUERY_TIMEOUT" default:"5s"`
	Auth           auth.Config
	Images         Images
	CircuitBreaker circuit_breaker.Settings
	Kafka          kafka.Config
	Log            logger.Log
}

var (
	once sync.Once
	cfg  *Config
)

// NewConfig reads config from environment once. Options set values that
// the environment may still override.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		var config Config
		for _, op := range ops {
			op(&config)
		}
		if err := load(&config); err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = &config
		printConfig(cfg)
	})

	return cfg
}

func load(config *Config) error {
	if err := envconfig.Process("", config); err != nil {
		return err
	}
	if config.StoreDriver == "" {
		config.StoreDriver = StoreDriverPostgres
	}
	return nil
}

func printConfig(cfg *Config) {
	jscfg, _ := json.MarshalIndent(cfg, "", "	") //nolint:errcheck
	fmt.Println(string(jscfg))
}
