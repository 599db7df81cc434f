package handler

import (
	"context"
	"encoding/json"

	"github.com/Astemirdum/book-rating-service/books/internal/model"
	"github.com/Astemirdum/book-rating-service/books/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type BookService interface {
	CreateBook(ctx context.Context, userID string, in model.BookInput, up *model.Upload) (model.Book, error)
	GetBook(ctx context.Context, id string) (model.Book, error)
	UpdateBook(ctx context.Context, userID, id string, in model.BookInput, up *model.Upload) (model.Book, error)
	DeleteBook(ctx context.Context, userID, id string) error
	ListBooks(ctx context.Context, filter model.BookFilter) (model.ListBooks, error)
	BestRated(ctx context.Context) ([]model.Book, error)
	RateBook(ctx context.Context, userID, bookID string, grade *json.Number) (model.Book, error)
}

type UserService interface {
	Signup(ctx context.Context, email, password string) (model.User, error)
	Login(ctx context.Context, email, password string) (model.Session, error)
}

var (
	_ BookService = (*service.Service)(nil)
	_ UserService = (*service.Service)(nil)
)
