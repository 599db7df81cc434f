package handler

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Astemirdum/book-rating-service/books/internal/model"
	"github.com/Astemirdum/book-rating-service/pkg/auth"
	"github.com/Astemirdum/book-rating-service/pkg/storage"
	"github.com/Astemirdum/book-rating-service/pkg/validate"
)

const (
	bookField  = "book"
	imageField = "image"

	msgInvalidBook = "invalid book data"
)

type listQuery struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	Genre     string `json:"genre"`
	Sort      string `json:"sort" validate:"omitempty,oneof=title -title year -year rating -rating"`
	Page      int    `json:"page" validate:"gte=0"`
	PageSize  int    `json:"pageSize" validate:"gte=0,lte=100"`
	Year      string `json:"year" validate:"omitempty,numeric"`
	MinRating string `json:"minRating" validate:"omitempty,numeric"`
}

func (q listQuery) filter() (model.BookFilter, error) {
	f := model.BookFilter{
		Title:    q.Title,
		Author:   q.Author,
		Genre:    q.Genre,
		Sort:     model.Sort(q.Sort),
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	if q.Year != "" {
		year, err := strconv.Atoi(q.Year)
		if err != nil {
			return model.BookFilter{}, err
		}
		f.Year = &year
	}
	if q.MinRating != "" {
		minRating, err := strconv.ParseFloat(q.MinRating, 64)
		if err != nil {
			return model.BookFilter{}, err
		}
		f.MinRating = &minRating
	}
	return f, nil
}

func (h *Handler) ListBooks(c echo.Context) error {
	var q listQuery
	if err := echo.QueryParamsBinder(c).
		String("title", &q.Title).
		String("author", &q.Author).
		String("genre", &q.Genre).
		String("sort", &q.Sort).
		Int("page", &q.Page).
		Int("pageSize", &q.PageSize).
		String("year", &q.Year).
		String("minRating", &q.MinRating).
		BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query")
	}
	if err := c.Validate(&q); err != nil {
		return invalid(validate.Fields(err))
	}
	filter, err := q.filter()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query")
	}

	list, err := h.booksSvc.ListBooks(c.Request().Context(), filter)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) BestRated(c echo.Context) error {
	books, err := h.booksSvc.BestRated(c.Request().Context())
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, books)
}

func (h *Handler) GetBook(c echo.Context) error {
	book, err := h.booksSvc.GetBook(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) CreateBook(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := auth.GetUserID(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication failed")
	}
	in, up, err := bookPayload(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidBook)
	}

	book, err := h.booksSvc.CreateBook(ctx, userID, in, up)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusCreated, messageResponse{Message: "Book saved", ID: book.ID})
}

func (h *Handler) UpdateBook(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := auth.GetUserID(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication failed")
	}
	in, up, err := bookPayload(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidBook)
	}

	book, err := h.booksSvc.UpdateBook(ctx, userID, c.Param("id"), in, up)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) DeleteBook(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := auth.GetUserID(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication failed")
	}
	if err := h.booksSvc.DeleteBook(ctx, userID, c.Param("id")); err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Book deleted"})
}

func (h *Handler) RateBook(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := auth.GetUserID(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication failed")
	}
	var req struct {
		Rating *json.Number `json:"rating"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "rating must be an integer between 1 and 5")
	}

	book, err := h.booksSvc.RateBook(ctx, userID, c.Param("id"), req.Rating)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, book)
}

// bookPayload reads a multipart form with a JSON "book" field and an
// optional "image" file, or a plain JSON body without an image.
func bookPayload(c echo.Context) (model.BookInput, *model.Upload, error) {
	var in model.BookInput
	ct := c.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(ct, echo.MIMEMultipartForm) {
		err := json.NewDecoder(c.Request().Body).Decode(&in)
		if err != nil && !errors.Is(err, io.EOF) {
			return model.BookInput{}, nil, err
		}
		return in, nil, nil
	}

	if raw := c.FormValue(bookField); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in); err != nil {
			return model.BookInput{}, nil, err
		}
	}
	fh, err := c.FormFile(imageField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return in, nil, nil
		}
		return model.BookInput{}, nil, err
	}
	up, err := readUpload(fh)
	if err != nil {
		return model.BookInput{}, nil, err
	}
	return in, up, nil
}

func readUpload(fh *multipart.FileHeader) (*model.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// one byte over the limit is enough to reject it later
	data, err := io.ReadAll(io.LimitReader(f, storage.MaxImageSize+1))
	if err != nil {
		return nil, err
	}
	return &model.Upload{Filename: fh.Filename, Data: data}, nil
}
