package repository

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Astemirdum/book-rating-service/books/internal/errs"
	"github.com/Astemirdum/book-rating-service/books/internal/model"
)

func newBook(title string, year int) model.Book {
	return model.Book{
		UserID:   "owner",
		Title:    title,
		Author:   "author",
		Genre:    "genre",
		Year:     year,
		ImageURL: "http://img/" + title,
	}
}

func TestMemory_BookLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewMemory()

	created, err := r.CreateBook(ctx, newBook("Dune", 1965))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Zero(t, created.AverageRating)

	owner, err := r.GetOwner(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "owner", owner)

	title := "Dune Messiah"
	updated, replaced, err := r.UpdateBook(ctx, created.ID, model.BookUpdate{
		Fields:   model.BookFields{Title: &title},
		ImageURL: "http://img/new",
	})
	require.NoError(t, err)
	require.Equal(t, "Dune Messiah", updated.Title)
	require.Equal(t, 1965, updated.Year)
	require.Equal(t, "http://img/Dune", replaced)

	_, replaced, err = r.UpdateBook(ctx, created.ID, model.BookUpdate{})
	require.NoError(t, err)
	require.Empty(t, replaced)

	img, err := r.DeleteBook(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "http://img/new", img)

	_, err = r.GetBook(ctx, created.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = r.DeleteBook(ctx, created.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = r.AppendRating(ctx, created.ID, model.Rating{UserID: "u", Grade: 3})
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMemory_AppendRating(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewMemory()
	b, err := r.CreateBook(ctx, newBook("Animal Farm", 1945))
	require.NoError(t, err)

	for i, g := range []int{4, 5, 3} {
		_, err := r.AppendRating(ctx, b.ID, model.Rating{UserID: "u" + strconv.Itoa(i), Grade: g})
		require.NoError(t, err)
	}
	_, err = r.AppendRating(ctx, b.ID, model.Rating{UserID: "u0", Grade: 1})
	require.ErrorIs(t, err, errs.ErrDuplicateRating)

	got, err := r.GetBook(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, 4.0, got.AverageRating)
	require.Equal(t, 3, got.RatingCount)
	require.Equal(t, []model.Rating{{UserID: "u0", Grade: 4}, {UserID: "u1", Grade: 5}, {UserID: "u2", Grade: 3}}, got.Ratings)

	rated, err := r.HasRated(ctx, b.ID, "u1")
	require.NoError(t, err)
	require.True(t, rated)
	rated, err = r.HasRated(ctx, b.ID, "nobody")
	require.NoError(t, err)
	require.False(t, rated)
}

func TestMemory_AppendRatingConcurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewMemory()
	b, err := r.CreateBook(ctx, newBook("Hobbit", 1937))
	require.NoError(t, err)

	const n = 50
	sum := 0
	gg, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		grade := i%5 + 1
		sum += grade
		gg.Go(func() error {
			_, err := r.AppendRating(gctx, b.ID, model.Rating{UserID: "u" + strconv.Itoa(i), Grade: grade})
			return err
		})
	}
	require.NoError(t, gg.Wait())

	got, err := r.GetBook(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, n, got.RatingCount)
	require.Len(t, got.Ratings, n)
	require.InDelta(t, float64(sum)/n, got.AverageRating, 0.01)
}

func TestMemory_SnapshotIsolation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewMemory()
	b, err := r.CreateBook(ctx, newBook("Emma", 1815))
	require.NoError(t, err)
	_, err = r.AppendRating(ctx, b.ID, model.Rating{UserID: "u", Grade: 5})
	require.NoError(t, err)

	got, err := r.GetBook(ctx, b.ID)
	require.NoError(t, err)
	got.Ratings[0].Grade = 1

	again, err := r.GetBook(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, 5, again.Ratings[0].Grade)
}

func TestMemory_ListAndBestRated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewMemory()

	ids := make([]string, 0, 4)
	for _, b := range []model.Book{newBook("C", 1949), newBook("A", 1932), newBook("B", 1949), newBook("D", 2000)} {
		created, err := r.CreateBook(ctx, b)
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}
	grades := map[string]int{ids[0]: 3, ids[1]: 5, ids[2]: 5, ids[3]: 1}
	for id, g := range grades {
		_, err := r.AppendRating(ctx, id, model.Rating{UserID: "u", Grade: g})
		require.NoError(t, err)
	}

	year := 1949
	page, err := r.ListBooks(ctx, model.BookFilter{Year: &year})
	require.NoError(t, err)
	require.Equal(t, 2, page.TotalCount)
	require.Equal(t, "B", page.Items[0].Title)
	require.Equal(t, "C", page.Items[1].Title)
	require.False(t, page.HasMore)

	page, err = r.ListBooks(ctx, model.BookFilter{Page: 1, PageSize: 3})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	require.True(t, page.HasMore)

	best, err := r.BestRated(ctx, 3)
	require.NoError(t, err)
	require.Len(t, best, 3)
	require.Equal(t, []string{ids[1], ids[2], ids[0]}, []string{best[0].ID, best[1].ID, best[2].ID})

	best, err = r.BestRated(ctx, -1)
	require.NoError(t, err)
	require.Empty(t, best)
}

func TestMemory_Users(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := NewMemory()

	u, err := r.CreateUser(ctx, model.User{Email: "a@b.co", Password: "hash"})
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)

	_, err = r.CreateUser(ctx, model.User{Email: "a@b.co", Password: "other"})
	require.ErrorIs(t, err, errs.ErrEmailTaken)

	got, err := r.GetUserByEmail(ctx, "a@b.co")
	require.NoError(t, err)
	require.Equal(t, u, got)

	_, err = r.GetUserByEmail(ctx, "x@y.co")
	require.ErrorIs(t, err, errs.ErrNotFound)
}
