package service

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/book-rating-service/books/internal/errs"
	"github.com/Astemirdum/book-rating-service/books/internal/metrics"
	"github.com/Astemirdum/book-rating-service/books/internal/model"
	"github.com/Astemirdum/book-rating-service/books/internal/validation"
	"github.com/Astemirdum/book-rating-service/pkg/kafka"
)

func ratingOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeAccepted
	case errors.Is(err, errs.ErrDuplicateRating):
		return metrics.OutcomeDuplicate
	case errors.Is(err, errs.ErrInvalidGrade):
		return metrics.OutcomeInvalid
	case errors.Is(err, errs.ErrNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}

// RateBook records the caller's only rating of a book. The returned book
// carries the stored average and no ratings list.
func (s *Service) RateBook(ctx context.Context, userID, bookID string, grade *json.Number) (book model.Book, err error) {
	defer func() {
		s.metrics.RatingsTotal.WithLabelValues(ratingOutcome(err)).Inc()
	}()

	g, err := validation.Grade(grade)
	if err != nil {
		return model.Book{}, err
	}
	if err := s.Authorize(ctx, bookID, userID, AccessRate); err != nil {
		return model.Book{}, err
	}

	book, err = s.repo.AppendRating(ctx, bookID, model.Rating{UserID: userID, Grade: g})
	if err != nil {
		return model.Book{}, err
	}
	book.Ratings = nil

	s.log.Debug("book rated",
		zap.String("bookId", bookID),
		zap.String("userId", userID),
		zap.Int("grade", g),
		zap.Float64("average", book.AverageRating),
	)
	s.publish(kafka.BookRatedTopic, bookID, model.RatingEvent{
		BookID:        bookID,
		UserID:        userID,
		Grade:         g,
		AverageRating: book.AverageRating,
		RatingCount:   book.RatingCount,
		Timestamp:     s.now().UTC(),
	})
	return book, nil
}
