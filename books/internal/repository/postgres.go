package repository

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Astemirdum/book-rating-service/books/internal/catalog"
	"github.com/Astemirdum/book-rating-service/books/internal/errs"
	"github.com/Astemirdum/book-rating-service/books/internal/ledger"
	"github.com/Astemirdum/book-rating-service/books/internal/model"
)

const DefaultQueryTimeout = 5 * time.Second

type repository struct {
	db      *pgxpool.Pool
	log     *zap.Logger
	timeout time.Duration
}

func NewRepository(db *pgxpool.Pool, log *zap.Logger, timeout time.Duration) (*repository, error) {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &repository{
		db:      db,
		log:     log.Named("repo"),
		timeout: timeout,
	}, nil
}

var _ Repository = (*repository)(nil)

const (
	booksTableName   = `books`
	ratingsTableName = `ratings`
	usersTableName   = `users`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var bookColumns = []string{
	"id::text", "user_id::text", "title", "author", "genre", "year",
	"image_url", "average_rating", "rating_count", "created_at",
}

type bookRow struct {
	ID            string    `db:"id"`
	UserID        string    `db:"user_id"`
	Title         string    `db:"title"`
	Author        string    `db:"author"`
	Genre         string    `db:"genre"`
	Year          int       `db:"year"`
	ImageURL      string    `db:"image_url"`
	AverageRating float64   `db:"average_rating"`
	RatingCount   int       `db:"rating_count"`
	CreatedAt     time.Time `db:"created_at"`
}

func (b bookRow) toModel() model.Book {
	return model.Book{
		ID:            b.ID,
		UserID:        b.UserID,
		Title:         b.Title,
		Author:        b.Author,
		Genre:         b.Genre,
		Year:          b.Year,
		ImageURL:      b.ImageURL,
		AverageRating: b.AverageRating,
		RatingCount:   b.RatingCount,
		CreatedAt:     b.CreatedAt,
	}
}

type ratingRow struct {
	BookID string `db:"book_id"`
	UserID string `db:"user_id"`
	Grade  int    `db:"grade"`
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *repository) fail(op string, err error) error {
	r.log.Error(op, zap.Error(err))
	return errs.Storage(errors.Wrap(err, op))
}

func selectBooks(ctx context.Context, q querier, b sq.SelectBuilder) ([]model.Book, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[bookRow])
	if err != nil {
		return nil, err
	}
	books := make([]model.Book, 0, len(list))
	for _, row := range list {
		books = append(books, row.toModel())
	}
	return books, nil
}

// attachRatings loads ratings for books in insertion order.
func attachRatings(ctx context.Context, q querier, books []model.Book) error {
	if len(books) == 0 {
		return nil
	}
	ids := make([]string, 0, len(books))
	for _, b := range books {
		ids = append(ids, b.ID)
	}
	query, args, err := qb.Select("book_id::text", "user_id::text", "grade").
		From(ratingsTableName).
		Where("book_id = ANY(?::uuid[])", ids).
		OrderBy("id").
		ToSql()
	if err != nil {
		return err
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[ratingRow])
	if err != nil {
		return err
	}
	byBook := make(map[string][]model.Rating, len(books))
	for _, rr := range list {
		byBook[rr.BookID] = append(byBook[rr.BookID], model.Rating{UserID: rr.UserID, Grade: rr.Grade})
	}
	for i := range books {
		books[i].Ratings = byBook[books[i].ID]
	}
	return nil
}

func (r *repository) CreateBook(ctx context.Context, book model.Book) (model.Book, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query, args, err := qb.Insert(booksTableName).
		Columns("user_id", "title", "author", "genre", "year", "image_url").
		Values(book.UserID, book.Title, book.Author, book.Genre, book.Year, book.ImageURL).
		Suffix("RETURNING " + strings.Join(bookColumns, ", ")).
		ToSql()
	if err != nil {
		return model.Book{}, r.fail("CreateBook", err)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return model.Book{}, r.fail("CreateBook", err)
	}
	defer rows.Close()

	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[bookRow])
	if err != nil {
		return model.Book{}, r.fail("CreateBook", err)
	}
	return row.toModel(), nil
}

func (r *repository) getBook(ctx context.Context, q querier, id string, forUpdate bool) (model.Book, error) {
	b := qb.Select(bookColumns...).
		From(booksTableName).
		Where(sq.Eq{"id": id}).
		Limit(1)
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	books, err := selectBooks(ctx, q, b)
	if err != nil {
		return model.Book{}, err
	}
	if len(books) == 0 {
		return model.Book{}, errs.ErrNotFound
	}
	return books[0], nil
}

func (r *repository) GetBook(ctx context.Context, id string) (model.Book, error) {
	if !validID(id) {
		return model.Book{}, errs.ErrNotFound
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	book, err := r.getBook(ctx, r.db, id, false)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Book{}, err
		}
		return model.Book{}, r.fail("GetBook", err)
	}
	books := []model.Book{book}
	if err := attachRatings(ctx, r.db, books); err != nil {
		return model.Book{}, r.fail("GetBook.ratings", err)
	}
	return books[0], nil
}

func (r *repository) GetOwner(ctx context.Context, id string) (string, error) {
	if !validID(id) {
		return "", errs.ErrNotFound
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var owner string
	err := r.db.QueryRow(ctx, `select user_id::text from books where id = @id`, pgx.NamedArgs{"id": id}).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", errs.ErrNotFound
		}
		return "", r.fail("GetOwner", err)
	}
	return owner, nil
}

func (r *repository) HasRated(ctx context.Context, bookID, userID string) (bool, error) {
	if !validID(bookID) {
		return false, errs.ErrNotFound
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	q := `
select exists(select 1 from books where id = @book_id),
       exists(select 1 from ratings where book_id = @book_id and user_id::text = @user_id)`
	args := pgx.NamedArgs{
		"book_id": bookID,
		"user_id": userID,
	}
	var found, rated bool
	if err := r.db.QueryRow(ctx, q, args).Scan(&found, &rated); err != nil {
		return false, r.fail("HasRated", err)
	}
	if !found {
		return false, errs.ErrNotFound
	}
	return rated, nil
}

func (r *repository) UpdateBook(ctx context.Context, id string, upd model.BookUpdate) (model.Book, string, error) {
	if !validID(id) {
		return model.Book{}, "", errs.ErrNotFound
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return model.Book{}, "", r.fail("UpdateBook.begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	book, err := r.getBook(ctx, tx, id, true)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Book{}, "", err
		}
		return model.Book{}, "", r.fail("UpdateBook.lock", err)
	}

	var replaced string
	upd.Fields.Apply(&book)
	if upd.ImageURL != "" && upd.ImageURL != book.ImageURL {
		replaced = book.ImageURL
		book.ImageURL = upd.ImageURL
	}

	query, args, err := qb.Update(booksTableName).
		SetMap(map[string]any{
			"title":     book.Title,
			"author":    book.Author,
			"genre":     book.Genre,
			"year":      book.Year,
			"image_url": book.ImageURL,
		}).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.Book{}, "", r.fail("UpdateBook", err)
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return model.Book{}, "", r.fail("UpdateBook", err)
	}

	books := []model.Book{book}
	if err := attachRatings(ctx, tx, books); err != nil {
		return model.Book{}, "", r.fail("UpdateBook.ratings", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Book{}, "", r.fail("UpdateBook.commit", err)
	}
	return books[0], replaced, nil
}

func (r *repository) DeleteBook(ctx context.Context, id string) (string, error) {
	if !validID(id) {
		return "", errs.ErrNotFound
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var imageURL string
	err := r.db.QueryRow(ctx, `delete from books where id = @id returning image_url`, pgx.NamedArgs{"id": id}).Scan(&imageURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", errs.ErrNotFound
		}
		return "", r.fail("DeleteBook", err)
	}
	return imageURL, nil
}

func likePattern(s string) string {
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	return "%" + s + "%"
}

func orderBy(s model.Sort) []string {
	var key string
	switch s {
	case model.SortTitleDesc:
		key = "title DESC"
	case model.SortYear:
		key = "year ASC"
	case model.SortYearDesc:
		key = "year DESC"
	case model.SortRating:
		key = "average_rating ASC"
	case model.SortRatingDesc:
		key = "average_rating DESC"
	default:
		key = "title ASC"
	}
	return []string{key, "created_at ASC", "id ASC"}
}

func where(f model.BookFilter) sq.And {
	cond := sq.And{}
	if f.Title != "" {
		cond = append(cond, sq.ILike{"title": likePattern(f.Title)})
	}
	if f.Author != "" {
		cond = append(cond, sq.ILike{"author": likePattern(f.Author)})
	}
	if f.Genre != "" {
		cond = append(cond, sq.ILike{"genre": likePattern(f.Genre)})
	}
	if f.Year != nil {
		cond = append(cond, sq.Eq{"year": *f.Year})
	}
	if f.MinRating != nil {
		cond = append(cond, sq.GtOrEq{"average_rating": *f.MinRating})
	}
	return cond
}

func (r *repository) ListBooks(ctx context.Context, filter model.BookFilter) (model.ListBooks, error) {
	filter = catalog.Normalize(filter)
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	cond := where(filter)
	q := qb.Select(bookColumns...).
		From(booksTableName).
		Where(cond).
		OrderBy(orderBy(filter.Sort)...)
	if catalog.Paginated(filter) {
		q = q.Limit(uint64(filter.PageSize)).Offset(uint64(catalog.Offset(filter)))
	}

	var (
		books []model.Book
		total int
	)
	gg, gctx := errgroup.WithContext(ctx)
	gg.Go(func() error {
		var err error
		books, err = selectBooks(gctx, r.db, q)
		if err != nil {
			return err
		}
		return attachRatings(gctx, r.db, books)
	})
	gg.Go(func() error {
		query, args, err := qb.Select("count(*)").From(booksTableName).Where(cond).ToSql()
		if err != nil {
			return err
		}
		return r.db.QueryRow(gctx, query, args...).Scan(&total)
	})
	if err := gg.Wait(); err != nil {
		return model.ListBooks{}, r.fail("ListBooks", err)
	}
	r.log.Debug("ListBooks", zap.Int("total", total), zap.Int("items", len(books)))

	return catalog.NewPage(filter, books, total), nil
}

func (r *repository) BestRated(ctx context.Context, limit int) ([]model.Book, error) {
	if limit <= 0 {
		return []model.Book{}, nil
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	q := qb.Select(bookColumns...).
		From(booksTableName).
		OrderBy(orderBy(model.SortRatingDesc)...).
		Limit(uint64(limit))
	books, err := selectBooks(ctx, r.db, q)
	if err != nil {
		return nil, r.fail("BestRated", err)
	}
	if err := attachRatings(ctx, r.db, books); err != nil {
		return nil, r.fail("BestRated.ratings", err)
	}
	return books, nil
}

// AppendRating locks the book row so concurrent raters of one book are
// serialized. The primary key on (book_id, user_id) rejects duplicates.
func (r *repository) AppendRating(ctx context.Context, bookID string, rating model.Rating) (model.Book, error) {
	if !validID(bookID) {
		return model.Book{}, errs.ErrNotFound
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return model.Book{}, r.fail("AppendRating.begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	book, err := r.getBook(ctx, tx, bookID, true)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Book{}, err
		}
		return model.Book{}, r.fail("AppendRating.lock", err)
	}

	query, args, err := qb.Insert(ratingsTableName).
		Columns("book_id", "user_id", "grade").
		Values(bookID, rating.UserID, rating.Grade).
		Suffix("ON CONFLICT (book_id, user_id) DO NOTHING").
		ToSql()
	if err != nil {
		return model.Book{}, r.fail("AppendRating", err)
	}
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return model.Book{}, r.fail("AppendRating.insert", err)
	}
	if tag.RowsAffected() == 0 {
		return model.Book{}, errs.ErrDuplicateRating
	}

	book.RatingCount++
	book.AverageRating = ledger.NextAverage(book.AverageRating, book.RatingCount, rating.Grade)

	q := `
update books
    set average_rating = @avg, rating_count = @cnt
where id = @id`
	upd := pgx.NamedArgs{
		"avg": book.AverageRating,
		"cnt": book.RatingCount,
		"id":  bookID,
	}
	if _, err := tx.Exec(ctx, q, upd); err != nil {
		return model.Book{}, r.fail("AppendRating.update", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Book{}, r.fail("AppendRating.commit", err)
	}
	return book, nil
}

func (r *repository) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	q := `insert into users (email, password) values (@email, @password) returning id::text`
	args := pgx.NamedArgs{
		"email":    user.Email,
		"password": user.Password,
	}
	if err := r.db.QueryRow(ctx, q, args).Scan(&user.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return model.User{}, errs.ErrEmailTaken
		}
		return model.User{}, r.fail("CreateUser", err)
	}
	return user, nil
}

func (r *repository) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query, args, err := qb.Select("id::text", "email", "password").
		From(usersTableName).
		Where(sq.Eq{"email": email}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.User{}, r.fail("GetUserByEmail", err)
	}
	var u model.User
	if err := r.db.QueryRow(ctx, query, args...).Scan(&u.ID, &u.Email, &u.Password); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, errs.ErrNotFound
		}
		return model.User{}, r.fail("GetUserByEmail", err)
	}
	return u, nil
}
