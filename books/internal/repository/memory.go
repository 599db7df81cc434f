package repository

import (
	"context"
	"sync"
	"time"

	"github.com/Astemirdum/book-rating-service/books/internal/catalog"
	"github.com/Astemirdum/book-rating-service/books/internal/errs"
	"github.com/Astemirdum/book-rating-service/books/internal/ledger"
	"github.com/Astemirdum/book-rating-service/books/internal/model"
	"github.com/google/uuid"
)

type memBook struct {
	mu      sync.Mutex
	book    model.Book
	deleted bool
}

func (m *memBook) snapshot() model.Book {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.book
	b.Ratings = copyRatings(m.book.Ratings)
	return b
}

// Memory keeps books in insertion order. The slice lock guards membership,
// each book carries its own lock for field and rating changes.
type Memory struct {
	mu    sync.RWMutex
	order []*memBook
	byID  map[string]*memBook
	users map[string]model.User
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		byID:  make(map[string]*memBook),
		users: make(map[string]model.User),
		now:   time.Now,
	}
}

var _ Repository = (*Memory)(nil)

func (r *Memory) lookup(id string) (*memBook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return b, nil
}

func (r *Memory) CreateBook(_ context.Context, book model.Book) (model.Book, error) {
	book.ID = uuid.NewString()
	book.CreatedAt = r.now()
	book.Ratings = nil
	book.AverageRating = 0
	book.RatingCount = 0

	r.mu.Lock()
	defer r.mu.Unlock()
	mb := &memBook{book: book}
	r.order = append(r.order, mb)
	r.byID[book.ID] = mb
	return book, nil
}

func (r *Memory) GetBook(_ context.Context, id string) (model.Book, error) {
	mb, err := r.lookup(id)
	if err != nil {
		return model.Book{}, err
	}
	return mb.snapshot(), nil
}

func (r *Memory) GetOwner(_ context.Context, id string) (string, error) {
	mb, err := r.lookup(id)
	if err != nil {
		return "", err
	}
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.book.UserID, nil
}

func (r *Memory) HasRated(_ context.Context, bookID, userID string) (bool, error) {
	mb, err := r.lookup(bookID)
	if err != nil {
		return false, err
	}
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return hasRated(mb.book.Ratings, userID), nil
}

func hasRated(rs []model.Rating, userID string) bool {
	for _, r := range rs {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

func (r *Memory) UpdateBook(_ context.Context, id string, upd model.BookUpdate) (model.Book, string, error) {
	mb, err := r.lookup(id)
	if err != nil {
		return model.Book{}, "", err
	}
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.deleted {
		return model.Book{}, "", errs.ErrNotFound
	}

	var replaced string
	upd.Fields.Apply(&mb.book)
	if upd.ImageURL != "" && upd.ImageURL != mb.book.ImageURL {
		replaced = mb.book.ImageURL
		mb.book.ImageURL = upd.ImageURL
	}
	b := mb.book
	b.Ratings = copyRatings(mb.book.Ratings)
	return b, replaced, nil
}

func (r *Memory) DeleteBook(_ context.Context, id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mb, ok := r.byID[id]
	if !ok {
		return "", errs.ErrNotFound
	}
	delete(r.byID, id)
	for i, o := range r.order {
		if o == mb {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.deleted = true
	return mb.book.ImageURL, nil
}

func (r *Memory) all() []model.Book {
	r.mu.RLock()
	defer r.mu.RUnlock()
	books := make([]model.Book, 0, len(r.order))
	for _, mb := range r.order {
		books = append(books, mb.snapshot())
	}
	return books
}

func (r *Memory) ListBooks(_ context.Context, filter model.BookFilter) (model.ListBooks, error) {
	filter = catalog.Normalize(filter)
	items, total := catalog.Filter(r.all(), filter)
	return catalog.NewPage(filter, items, total), nil
}

func (r *Memory) BestRated(_ context.Context, limit int) ([]model.Book, error) {
	return catalog.TopRated(r.all(), limit), nil
}

func (r *Memory) AppendRating(_ context.Context, bookID string, rating model.Rating) (model.Book, error) {
	mb, err := r.lookup(bookID)
	if err != nil {
		return model.Book{}, err
	}
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.deleted {
		return model.Book{}, errs.ErrNotFound
	}
	if hasRated(mb.book.Ratings, rating.UserID) {
		return model.Book{}, errs.ErrDuplicateRating
	}
	ledger.Append(&mb.book, rating)

	b := mb.book
	b.Ratings = copyRatings(mb.book.Ratings)
	return b, nil
}

func (r *Memory) CreateUser(_ context.Context, user model.User) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.Email]; ok {
		return model.User{}, errs.ErrEmailTaken
	}
	user.ID = uuid.NewString()
	r.users[user.Email] = user
	return user, nil
}

func (r *Memory) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[email]
	if !ok {
		return model.User{}, errs.ErrNotFound
	}
	return u, nil
}
