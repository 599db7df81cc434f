package service

import (
	"bytes"
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/book-rating-service/books/internal/catalog"
	"github.com/Astemirdum/book-rating-service/books/internal/errs"
	"github.com/Astemirdum/book-rating-service/books/internal/model"
	"github.com/Astemirdum/book-rating-service/pkg/kafka"
	"github.com/Astemirdum/book-rating-service/pkg/storage"
)

const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

func validationOf(err error) (*errs.ValidationError, error) {
	if err == nil {
		return errs.NewValidationError(), nil
	}
	var verr *errs.ValidationError
	if errors.As(err, &verr) {
		return verr, nil
	}
	return nil, err
}

func checkUpload(up *model.Upload, verr *errs.ValidationError) storage.Image {
	if up == nil {
		return storage.Image{}
	}
	img, err := storage.DetectImage(up.Data)
	if err != nil {
		verr.Add("image", err.Error())
		return storage.Image{}
	}
	return img
}

func (s *Service) storeImage(ctx context.Context, img storage.Image) (string, error) {
	ref, err := s.images.Store(ctx, uuid.NewString()+img.Ext, bytes.NewReader(img.Data), int64(len(img.Data)), img.ContentType)
	if err != nil {
		s.log.Error("store image", zap.Error(err))
		return "", errs.Storage(err)
	}
	return ref, nil
}

// CreateBook validates everything before the image or record is written.
func (s *Service) CreateBook(ctx context.Context, userID string, in model.BookInput, up *model.Upload) (model.Book, error) {
	if userID == "" {
		return model.Book{}, errs.ErrUnauthenticated
	}
	fields, err := s.validator.NewBook(in)
	verr, err := validationOf(err)
	if err != nil {
		return model.Book{}, err
	}
	if up == nil {
		verr.Add("image", "is required")
	}
	img := checkUpload(up, verr)
	if err := verr.OrNil(); err != nil {
		return model.Book{}, err
	}

	ref, err := s.storeImage(ctx, img)
	if err != nil {
		return model.Book{}, err
	}

	var book model.Book
	fields.Apply(&book)
	book.UserID = userID
	book.ImageURL = ref

	created, err := s.repo.CreateBook(ctx, book)
	if err != nil {
		s.releaseImage(ctx, ref)
		return model.Book{}, err
	}
	s.metrics.BooksTotal.WithLabelValues(opCreate).Inc()
	s.log.Info("book created", zap.String("id", created.ID), zap.String("userId", userID))
	return display(created), nil
}

func (s *Service) GetBook(ctx context.Context, id string) (model.Book, error) {
	book, err := s.repo.GetBook(ctx, id)
	if err != nil {
		return model.Book{}, err
	}
	return display(book), nil
}

// UpdateBook merges the given fields. A new image replaces the old one,
// which is then released.
func (s *Service) UpdateBook(ctx context.Context, userID, id string, in model.BookInput, up *model.Upload) (model.Book, error) {
	if err := s.Authorize(ctx, id, userID, AccessOwner); err != nil {
		return model.Book{}, err
	}

	fields, err := s.validator.BookPatch(in)
	verr, err := validationOf(err)
	if err != nil {
		return model.Book{}, err
	}
	img := checkUpload(up, verr)
	if err := verr.OrNil(); err != nil {
		return model.Book{}, err
	}

	upd := model.BookUpdate{Fields: fields}
	if up != nil {
		if upd.ImageURL, err = s.storeImage(ctx, img); err != nil {
			return model.Book{}, err
		}
	}

	book, replaced, err := s.repo.UpdateBook(ctx, id, upd)
	if err != nil {
		s.releaseImage(ctx, upd.ImageURL)
		return model.Book{}, err
	}
	s.releaseImage(ctx, replaced)
	s.metrics.BooksTotal.WithLabelValues(opUpdate).Inc()
	return display(book), nil
}

func (s *Service) DeleteBook(ctx context.Context, userID, id string) error {
	if err := s.Authorize(ctx, id, userID, AccessOwner); err != nil {
		return err
	}
	ref, err := s.repo.DeleteBook(ctx, id)
	if err != nil {
		return err
	}
	s.releaseImage(ctx, ref)
	s.metrics.BooksTotal.WithLabelValues(opDelete).Inc()
	s.publish(kafka.BookDeletedTopic, id, model.DeletedEvent{
		BookID:    id,
		UserID:    userID,
		Timestamp: s.now().UTC(),
	})
	return nil
}

func (s *Service) ListBooks(ctx context.Context, filter model.BookFilter) (model.ListBooks, error) {
	list, err := s.repo.ListBooks(ctx, catalog.Normalize(filter))
	if err != nil {
		return model.ListBooks{}, err
	}
	list.Items = displayAll(list.Items)
	return list, nil
}

func (s *Service) BestRated(ctx context.Context) ([]model.Book, error) {
	books, err := s.repo.BestRated(ctx, catalog.BestRatedLimit)
	if err != nil {
		return nil, err
	}
	if books == nil {
		books = []model.Book{}
	}
	return displayAll(books), nil
}
