package repository

import (
	"context"

	"github.com/Astemirdum/book-rating-service/books/internal/model"
	"github.com/google/uuid"
)

type Repository interface {
	CreateBook(ctx context.Context, book model.Book) (model.Book, error)
	GetBook(ctx context.Context, id string) (model.Book, error)
	GetOwner(ctx context.Context, id string) (string, error)
	HasRated(ctx context.Context, bookID, userID string) (bool, error)
	// UpdateBook returns the merged book and the image it replaced, if any.
	UpdateBook(ctx context.Context, id string, upd model.BookUpdate) (model.Book, string, error)
	// DeleteBook returns the image reference of the removed book.
	DeleteBook(ctx context.Context, id string) (string, error)
	ListBooks(ctx context.Context, filter model.BookFilter) (model.ListBooks, error)
	BestRated(ctx context.Context, limit int) ([]model.Book, error)
	// AppendRating adds r and recomputes the average atomically per book.
	AppendRating(ctx context.Context, bookID string, r model.Rating) (model.Book, error)

	CreateUser(ctx context.Context, user model.User) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func copyRatings(rs []model.Rating) []model.Rating {
	if len(rs) == 0 {
		return nil
	}
	out := make([]model.Rating, len(rs))
	copy(out, rs)
	return out
}
