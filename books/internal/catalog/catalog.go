// Package catalog holds the store-independent parts of book queries:
// filter matching, ordering, pagination arithmetic and the best-rated cut.
package catalog

import (
	"sort"
	"strings"

	"github.com/Astemirdum/book-rating-service/books/internal/model"
)

const (
	BestRatedLimit  = 3
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize fills defaults. Page 0 with PageSize 0 means no pagination.
func Normalize(f model.BookFilter) model.BookFilter {
	if !f.Sort.Valid() {
		f.Sort = model.SortTitle
	}
	f.Title = strings.TrimSpace(f.Title)
	f.Author = strings.TrimSpace(f.Author)
	f.Genre = strings.TrimSpace(f.Genre)
	if f.Page <= 0 && f.PageSize <= 0 {
		f.Page, f.PageSize = 0, 0
		return f
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

func Paginated(f model.BookFilter) bool {
	return f.Page > 0 && f.PageSize > 0
}

func Offset(f model.BookFilter) int {
	if !Paginated(f) {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

func HasMore(skip, returned, total int) bool {
	return skip+returned < total
}

func NewPage(f model.BookFilter, items []model.Book, total int) model.ListBooks {
	if items == nil {
		items = []model.Book{}
	}
	return model.ListBooks{
		Paging: model.Paging{
			Page:       f.Page,
			PageSize:   f.PageSize,
			TotalCount: total,
			HasMore:    HasMore(Offset(f), len(items), total),
		},
		Items: items,
	}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func Match(b model.Book, f model.BookFilter) bool {
	if f.Title != "" && !containsFold(b.Title, f.Title) {
		return false
	}
	if f.Author != "" && !containsFold(b.Author, f.Author) {
		return false
	}
	if f.Genre != "" && !containsFold(b.Genre, f.Genre) {
		return false
	}
	if f.Year != nil && b.Year != *f.Year {
		return false
	}
	if f.MinRating != nil && b.AverageRating < *f.MinRating {
		return false
	}
	return true
}

// SortBooks orders books in place. Ties keep their incoming order.
func SortBooks(books []model.Book, s model.Sort) {
	var less func(a, b model.Book) bool
	switch s {
	case model.SortTitleDesc:
		less = func(a, b model.Book) bool { return a.Title > b.Title }
	case model.SortYear:
		less = func(a, b model.Book) bool { return a.Year < b.Year }
	case model.SortYearDesc:
		less = func(a, b model.Book) bool { return a.Year > b.Year }
	case model.SortRating:
		less = func(a, b model.Book) bool { return a.AverageRating < b.AverageRating }
	case model.SortRatingDesc:
		less = func(a, b model.Book) bool { return a.AverageRating > b.AverageRating }
	default:
		less = func(a, b model.Book) bool { return a.Title < b.Title }
	}
	sort.SliceStable(books, func(i, j int) bool { return less(books[i], books[j]) })
}

// Filter applies f to books in store order and returns the requested page
// along with the total number of matches.
func Filter(books []model.Book, f model.BookFilter) ([]model.Book, int) {
	f = Normalize(f)
	matched := make([]model.Book, 0, len(books))
	for _, b := range books {
		if Match(b, f) {
			matched = append(matched, b)
		}
	}
	SortBooks(matched, f.Sort)

	total := len(matched)
	if !Paginated(f) {
		return matched, total
	}
	from := Offset(f)
	if from >= total {
		return []model.Book{}, total
	}
	to := from + f.PageSize
	if to > total {
		to = total
	}
	return matched[from:to], total
}

// TopRated returns at most limit books by descending average. Books must be
// in store order, which decides ties.
func TopRated(books []model.Book, limit int) []model.Book {
	if limit <= 0 {
		return []model.Book{}
	}
	out := make([]model.Book, len(books))
	copy(out, books)
	SortBooks(out, model.SortRatingDesc)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
