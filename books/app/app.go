package app

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/book-rating-service/books/config"
	"github.com/Astemirdum/book-rating-service/books/internal/handler"
	"github.com/Astemirdum/book-rating-service/books/internal/metrics"
	"github.com/Astemirdum/book-rating-service/books/internal/repository"
	"github.com/Astemirdum/book-rating-service/books/internal/server"
	"github.com/Astemirdum/book-rating-service/books/internal/service"
	"github.com/Astemirdum/book-rating-service/books/migrations"
	"github.com/Astemirdum/book-rating-service/pkg/auth"
	"github.com/Astemirdum/book-rating-service/pkg/circuit_breaker"
	"github.com/Astemirdum/book-rating-service/pkg/kafka"
	"github.com/Astemirdum/book-rating-service/pkg/logger"
	"github.com/Astemirdum/book-rating-service/pkg/postgres"
	"github.com/Astemirdum/book-rating-service/pkg/storage"
)

type closer func()

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newRepository(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.Repository, closer, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn("using in-memory store, data is lost on restart")
		return repository.NewMemory(), func() {}, nil
	}
	db, err := postgres.NewPostgresDB(ctx, &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return nil, nil, errors.Wrap(err, "db init")
	}
	repo, err := repository.NewRepository(db, log, cfg.QueryTimeout)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return repo, db.Close, nil
}

// newImageStore returns the store and, for the disk driver, the directory to serve.
func newImageStore(ctx context.Context, cfg *config.Config) (storage.ImageStore, string, error) {
	var (
		store storage.ImageStore
		dir   string
	)
	switch cfg.Images.Driver {
	case config.ImageDriverMinio:
		ms, err := storage.NewMinioStore(ctx, cfg.Images.Minio)
		if err != nil {
			return nil, "", err
		}
		store = ms
	case config.ImageDriverDisk, "":
		fs, err := storage.NewFileStore(cfg.Images.Dir, cfg.Images.PublicURL)
		if err != nil {
			return nil, "", err
		}
		store, dir = fs, fs.Dir()
	default:
		return nil, "", errors.Errorf("unknown image driver %q", cfg.Images.Driver)
	}
	return storage.WithCircuitBreaker(store, circuit_breaker.New(cfg.CircuitBreaker)), dir, nil
}

func newEnqueuer(cfg *config.Config, log *zap.Logger) (kafka.Enqueuer, io.Closer, error) {
	if !cfg.Kafka.Enabled() {
		log.Info("kafka disabled, events are dropped")
		return kafka.NopEnqueuer{}, nopCloser{}, nil
	}
	producer, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		return nil, nil, err
	}
	return kafka.NewEnqueuer(producer), producer, nil
}

func Run(cfg *config.Config) {
	log := logger.NewLogger(cfg.Log, "books")
	ctx := context.Background()

	repo, closeRepo, err := newRepository(ctx, cfg, log)
	if err != nil {
		log.Fatal("repository", zap.Error(err))
	}
	images, imagesDir, err := newImageStore(ctx, cfg)
	if err != nil {
		log.Fatal("image store", zap.Error(err))
	}
	events, producer, err := newEnqueuer(cfg, log)
	if err != nil {
		log.Fatal("kafka.NewProducer", zap.Error(err))
	}

	tokens := auth.NewTokenManager(cfg.Auth)
	m := metrics.NewDefault()
	svc := service.NewService(repo, images, tokens, log,
		service.WithEvents(events),
		service.WithMetrics(m),
	)

	h := handler.New(svc, svc, tokens, log,
		handler.WithMetrics(m.Handler()),
		handler.WithImagesDir(imagesDir),
	)
	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ", zap.String("addr", srv.Addr()))
	go func() {
		if err := srv.Run(); err != nil {
			log.Error("server run", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	termSig := <-sig

	log.Debug("Graceful shutdown", zap.Any("signal", termSig))

	closeCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err = srv.Stop(closeCtx); err != nil {
		log.DPanic("srv.Stop", zap.Error(err))
	}
	if err = producer.Close(); err != nil {
		log.Warn("producer.Close", zap.Error(err))
	}
	closeRepo()
	log.Info("Graceful shutdown finished")
}
