package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Astemirdum/book-rating-service/books/internal/ledger"
	"github.com/Astemirdum/book-rating-service/books/internal/metrics"
	"github.com/Astemirdum/book-rating-service/books/internal/model"
	booksRepo "github.com/Astemirdum/book-rating-service/books/internal/repository"
	"github.com/Astemirdum/book-rating-service/books/internal/validation"
	"github.com/Astemirdum/book-rating-service/pkg/kafka"
	"github.com/Astemirdum/book-rating-service/pkg/storage"
)

type TokenIssuer interface {
	Issue(userID string) (string, error)
}

type Service struct {
	log       *zap.Logger
	repo      booksRepo.Repository
	images    storage.ImageStore
	tokens    TokenIssuer
	events    kafka.Enqueuer
	metrics   *metrics.Metrics
	validator *validation.Validator
	now       func() time.Time
}

type Option func(s *Service)

func WithValidator(v *validation.Validator) Option {
	return func(s *Service) {
		s.validator = v
	}
}

func WithEvents(e kafka.Enqueuer) Option {
	return func(s *Service) {
		s.events = e
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(repo booksRepo.Repository, images storage.ImageStore, tokens TokenIssuer, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		log:    log.Named("service"),
		repo:   repo,
		images: images,
		tokens: tokens,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.validator == nil {
		s.validator = validation.New()
	}
	if s.events == nil {
		s.events = kafka.NopEnqueuer{}
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	return s
}

// releaseImage is best effort: the record change already happened.
func (s *Service) releaseImage(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := s.images.Release(ctx, ref); err != nil {
		s.metrics.ImageReleaseFailures.Inc()
		s.log.Warn("release image", zap.String("ref", ref), zap.Error(err))
	}
}

func (s *Service) publish(topic, key string, v any) {
	if err := s.events.Enqueue(topic, key, v); err != nil {
		s.metrics.EventPublishFailures.Inc()
		s.log.Warn("publish event", zap.String("topic", topic), zap.String("key", key), zap.Error(err))
	}
}

func display(b model.Book) model.Book {
	b.AverageRating = ledger.Display(b.AverageRating)
	return b
}

func displayAll(books []model.Book) []model.Book {
	for i := range books {
		books[i] = display(books[i])
	}
	return books
}
