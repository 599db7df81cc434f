package handler_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Astemirdum/book-rating-service/books/internal/errs"
	"github.com/Astemirdum/book-rating-service/books/internal/handler"
	service_mocks "github.com/Astemirdum/book-rating-service/books/internal/handler/mocks"
	"github.com/Astemirdum/book-rating-service/books/internal/model"
)

const (
	bookID = "0b7a4c6e-8a88-4c33-9d4f-2f3c2e0b1a11"
	userID = "5c1f0d8e-6a0b-4a59-8a0f-7a3c2f9e4d21"
	token  = "valid-token"
)

type staticVerifier struct{}

func (staticVerifier) Verify(t string) (string, error) {
	if t != token {
		return "", errors.New("bad token")
	}
	return userID, nil
}

type response struct {
	expectedCode int
	expectedBody string
}

func newRouter(t *testing.T) (*echo.Echo, *service_mocks.MockBookService, *service_mocks.MockUserService) {
	t.Helper()
	c := gomock.NewController(t)
	books := service_mocks.NewMockBookService(c)
	users := service_mocks.NewMockUserService(c)
	log := zap.NewExample().Named("test")
	h := handler.New(books, users, staticVerifier{}, log)
	return h.NewRouter(), books, users
}

func serve(e *echo.Echo, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)
	return w
}

func body(w *httptest.ResponseRecorder) string {
	return strings.Trim(w.Body.String(), "\n")
}

var sampleBook = model.Book{
	ID:            bookID,
	UserID:        userID,
	Title:         "Nineteen Eighty-Four",
	Author:        "George Orwell",
	Genre:         "Dystopia",
	Year:          1949,
	ImageURL:      "http://localhost:8080/images/cover.png",
	AverageRating: 4.5,
	RatingCount:   2,
}

const sampleBookJSON = `{"_id":"` + bookID + `","userId":"` + userID + `","title":"Nineteen Eighty-Four","author":"George Orwell","genre":"Dystopia","year":1949,"imageUrl":"http://localhost:8080/images/cover.png","averageRating":4.5,"ratingCount":2}`

func TestHandler_GetBook(t *testing.T) {
	t.Parallel()
	type mockBehavior func(r *service_mocks.MockBookService)

	tests := []struct {
		name         string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok",
			mockBehavior: func(r *service_mocks.MockBookService) {
				r.EXPECT().GetBook(gomock.Any(), bookID).Return(sampleBook, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: sampleBookJSON,
			},
		},
		{
			name: "err. not found",
			mockBehavior: func(r *service_mocks.MockBookService) {
				r.EXPECT().GetBook(gomock.Any(), bookID).Return(model.Book{}, errs.ErrNotFound)
			},
			response: response{
				expectedCode: http.StatusNotFound,
				expectedBody: `{"message":"book not found"}`,
			},
		},
		{
			name: "err. storage",
			mockBehavior: func(r *service_mocks.MockBookService) {
				r.EXPECT().GetBook(gomock.Any(), bookID).Return(model.Book{}, errs.Storage(errors.New("conn refused")))
			},
			response: response{
				expectedCode: http.StatusInternalServerError,
				expectedBody: `{"message":"internal server error"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, books, _ := newRouter(t)
			tt.mockBehavior(books)

			r := httptest.NewRequest(http.MethodGet, "/api/v1/books/"+bookID, http.NoBody)
			w := serve(e, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, body(w))
		})
	}
}

func TestHandler_ListBooks(t *testing.T) {
	t.Parallel()
	type mockBehavior func(r *service_mocks.MockBookService)
	year := 1949

	tests := []struct {
		name         string
		query        string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name:  "ok. filter by year",
			query: "?year=1949",
			mockBehavior: func(r *service_mocks.MockBookService) {
				r.EXPECT().ListBooks(gomock.Any(), model.BookFilter{Year: &year}).
					Return(model.ListBooks{
						Paging: model.Paging{TotalCount: 1},
						Items:  []model.Book{sampleBook},
					}, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"page":0,"pageSize":0,"totalCount":1,"hasMore":false,"items":[` + sampleBookJSON + `]}`,
			},
		},
		{
			name:         "err. page size too big",
			query:        "?page=1&pageSize=500",
			mockBehavior: func(r *service_mocks.MockBookService) {},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"validation failed","errors":{"pageSize":"lte=100"}}`,
			},
		},
		{
			name:         "err. unknown sort",
			query:        "?sort=price",
			mockBehavior: func(r *service_mocks.MockBookService) {},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"validation failed","errors":{"sort":"oneof=title -title year -year rating -rating"}}`,
			},
		},
		{
			name:         "err. page not a number",
			query:        "?page=two",
			mockBehavior: func(r *service_mocks.MockBookService) {},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"invalid query"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, books, _ := newRouter(t)
			tt.mockBehavior(books)

			r := httptest.NewRequest(http.MethodGet, "/api/v1/books"+tt.query, http.NoBody)
			w := serve(e, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, body(w))
		})
	}
}

func TestHandler_BestRated(t *testing.T) {
	t.Parallel()
	e, books, _ := newRouter(t)
	books.EXPECT().BestRated(gomock.Any()).Return([]model.Book{sampleBook}, nil)

	w := serve(e, httptest.NewRequest(http.MethodGet, "/api/v1/books/bestrating", http.NoBody))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "["+sampleBookJSON+"]", body(w))
}

func TestHandler_RateBook(t *testing.T) {
	t.Parallel()
	type mockBehavior func(r *service_mocks.MockBookService)

	tests := []struct {
		name         string
		auth         string
		body         string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok",
			auth: "Bearer " + token,
			body: `{"rating":5}`,
			mockBehavior: func(r *service_mocks.MockBookService) {
				r.EXPECT().RateBook(gomock.Any(), userID, bookID, gomock.Any()).Return(sampleBook, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: sampleBookJSON,
			},
		},
		{
			name:         "err. no token",
			body:         `{"rating":5}`,
			mockBehavior: func(r *service_mocks.MockBookService) {},
			response: response{
				expectedCode: http.StatusUnauthorized,
				expectedBody: `{"message":"Authentication failed"}`,
			},
		},
		{
			name:         "err. bad token",
			auth:         "Bearer forged",
			body:         `{"rating":5}`,
			mockBehavior: func(r *service_mocks.MockBookService) {},
			response: response{
				expectedCode: http.StatusUnauthorized,
				expectedBody: `{"message":"Authentication failed"}`,
			},
		},
		{
			name: "err. invalid grade",
			auth: "Bearer " + token,
			body: `{"rating":6}`,
			mockBehavior: func(r *service_mocks.MockBookService) {
				r.EXPECT().RateBook(gomock.Any(), userID, bookID, gomock.Any()).Return(model.Book{}, errs.ErrInvalidGrade)
			},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"rating must be an integer between 1 and 5"}`,
			},
		},
		{
			name: "err. already rated",
			auth: "Bearer " + token,
			body: `{"rating":3}`,
			mockBehavior: func(r *service_mocks.MockBookService) {
				r.EXPECT().RateBook(gomock.Any(), userID, bookID, gomock.Any()).Return(model.Book{}, errs.ErrDuplicateRating)
			},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"you have already rated this book"}`,
			},
		},
		{
			name: "err. not found",
			auth: "Bearer " + token,
			body: `{"rating":3}`,
			mockBehavior: func(r *service_mocks.MockBookService) {
				r.EXPECT().RateBook(gomock.Any(), userID, bookID, gomock.Any()).Return(model.Book{}, errs.ErrNotFound)
			},
			response: response{
				expectedCode: http.StatusNotFound,
				expectedBody: `{"message":"book not found"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, books, _ := newRouter(t)
			tt.mockBehavior(books)

			r := httptest.NewRequest(http.MethodPost, "/api/v1/books/"+bookID+"/rating", strings.NewReader(tt.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			if tt.auth != "" {
				r.Header.Set(echo.HeaderAuthorization, tt.auth)
			}
			w := serve(e, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, body(w))
		})
	}
}

func multipartBook(t *testing.T, book string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	require.NoError(t, mw.WriteField("book", book))
	if image != nil {
		fw, err := mw.CreateFormFile("image", "cover.png")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestHandler_CreateBook(t *testing.T) {
	t.Parallel()
	png := []byte("\x89PNG\r\n\x1a\n0000")
	const payload = `{"title":"Dune","author":"Frank Herbert","genre":"Sci-Fi","year":"1965","userId":"someone-else"}`

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		e, books, _ := newRouter(t)
		books.EXPECT().
			CreateBook(gomock.Any(), userID, gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, _ string, in model.BookInput, up *model.Upload) (model.Book, error) {
				require.Equal(t, "Dune", *in.Title)
				require.Equal(t, "1965", in.Year.String())
				require.Equal(t, png, up.Data)
				return model.Book{ID: bookID}, nil
			})

		buf, ct := multipartBook(t, payload, png)
		r := httptest.NewRequest(http.MethodPost, "/api/v1/books", buf)
		r.Header.Set(echo.HeaderContentType, ct)
		r.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		w := serve(e, r)

		require.Equal(t, http.StatusCreated, w.Code)
		require.Equal(t, `{"message":"Book saved","id":"`+bookID+`"}`, body(w))
	})

	t.Run("err. validation", func(t *testing.T) {
		t.Parallel()
		e, books, _ := newRouter(t)
		verr := errs.NewValidationError()
		verr.Add("image", "is required")
		books.EXPECT().
			CreateBook(gomock.Any(), userID, gomock.Any(), (*model.Upload)(nil)).
			Return(model.Book{}, verr)

		buf, ct := multipartBook(t, payload, nil)
		r := httptest.NewRequest(http.MethodPost, "/api/v1/books", buf)
		r.Header.Set(echo.HeaderContentType, ct)
		r.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		w := serve(e, r)

		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, `{"message":"validation failed","errors":{"image":"is required"}}`, body(w))
	})

	t.Run("err. malformed book field", func(t *testing.T) {
		t.Parallel()
		e, _, _ := newRouter(t)

		buf, ct := multipartBook(t, `{"title":`, png)
		r := httptest.NewRequest(http.MethodPost, "/api/v1/books", buf)
		r.Header.Set(echo.HeaderContentType, ct)
		r.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		w := serve(e, r)

		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, `{"message":"invalid book data"}`, body(w))
	})
}

func TestHandler_UpdateBook(t *testing.T) {
	t.Parallel()
	e, books, _ := newRouter(t)
	genre := "Satire"
	books.EXPECT().
		UpdateBook(gomock.Any(), userID, bookID, model.BookInput{Genre: &genre}, (*model.Upload)(nil)).
		Return(model.Book{}, errs.ErrForbidden)

	r := httptest.NewRequest(http.MethodPut, "/api/v1/books/"+bookID, strings.NewReader(`{"genre":"Satire"}`))
	r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	r.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	w := serve(e, r)

	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, `{"message":"unauthorized access to this book"}`, body(w))
}

func TestHandler_DeleteBook(t *testing.T) {
	t.Parallel()
	e, books, _ := newRouter(t)
	books.EXPECT().DeleteBook(gomock.Any(), userID, bookID).Return(nil)

	r := httptest.NewRequest(http.MethodDelete, "/api/v1/books/"+bookID, http.NoBody)
	r.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	w := serve(e, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, `{"message":"Book deleted"}`, body(w))
}

func TestHandler_Signup(t *testing.T) {
	t.Parallel()
	type mockBehavior func(r *service_mocks.MockUserService)

	tests := []struct {
		name         string
		body         string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok",
			body: `{"email":"reader@example.com","password":"s3cret"}`,
			mockBehavior: func(r *service_mocks.MockUserService) {
				r.EXPECT().Signup(gomock.Any(), "reader@example.com", "s3cret").Return(model.User{ID: userID}, nil)
			},
			response: response{
				expectedCode: http.StatusCreated,
				expectedBody: `{"message":"User created"}`,
			},
		},
		{
			name:         "err. password required",
			body:         `{"email":"reader@example.com"}`,
			mockBehavior: func(r *service_mocks.MockUserService) {},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"validation failed","errors":{"password":"required"}}`,
			},
		},
		{
			name: "err. email taken",
			body: `{"email":"reader@example.com","password":"s3cret"}`,
			mockBehavior: func(r *service_mocks.MockUserService) {
				r.EXPECT().Signup(gomock.Any(), "reader@example.com", "s3cret").Return(model.User{}, errs.ErrEmailTaken)
			},
			response: response{
				expectedCode: http.StatusConflict,
				expectedBody: `{"message":"email already in use"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, _, users := newRouter(t)
			tt.mockBehavior(users)

			r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", strings.NewReader(tt.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := serve(e, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, body(w))
		})
	}
}

func TestHandler_Login(t *testing.T) {
	t.Parallel()
	e, _, users := newRouter(t)
	users.EXPECT().Login(gomock.Any(), "reader@example.com", "s3cret").
		Return(model.Session{UserID: userID, Token: "jwt"}, nil)
	users.EXPECT().Login(gomock.Any(), "reader@example.com", "wrong").
		Return(model.Session{}, errs.ErrInvalidLogin)

	login := func(password string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
			strings.NewReader(`{"email":"reader@example.com","password":"`+password+`"}`))
		r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		return serve(e, r)
	}

	w := login("s3cret")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, `{"userId":"`+userID+`","token":"jwt"}`, body(w))

	w = login("wrong")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, `{"message":"invalid email/password combination"}`, body(w))
}

func TestHandler_Health(t *testing.T) {
	t.Parallel()
	e, _, _ := newRouter(t)
	w := serve(e, httptest.NewRequest(http.MethodGet, "/manage/health", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "OK", w.Body.String())
}
