package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	md "github.com/Astemirdum/book-rating-service/pkg/middleware"
	"github.com/Astemirdum/book-rating-service/pkg/storage"
	"github.com/Astemirdum/book-rating-service/pkg/validate"
)

type Handler struct {
	booksSvc  BookService
	usersSvc  UserService
	verifier  md.TokenVerifier
	metrics   http.Handler
	imagesDir string
	log       *zap.Logger
}

type Option func(h *Handler)

// WithMetrics mounts the handler under /manage/metrics.
func WithMetrics(m http.Handler) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithImagesDir serves stored images from dir under /images.
func WithImagesDir(dir string) Option {
	return func(h *Handler) {
		h.imagesDir = dir
	}
}

func New(booksSvc BookService, usersSvc UserService, verifier md.TokenVerifier, log *zap.Logger, opts ...Option) *Handler {
	h := &Handler{
		booksSvc: booksSvc,
		usersSvc: usersSvc,
		verifier: verifier,
		log:      log.Named("handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS   = 10
		apiRPS    = 100
		bodyLimit = "2M"
	)
	e.HideBanner = true
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowMethods: []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
	}))

	base := e.Group("", md.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)
	if h.metrics != nil {
		base.GET("/manage/metrics", echo.WrapHandler(h.metrics))
	}
	if h.imagesDir != "" {
		e.Static(strings.TrimSuffix(storage.ImagesPath, "/"), h.imagesDir)
	}

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(md.RequestLoggerConfig(h.log)),
		middleware.RequestID(),
		md.NewRateLimiter(apiRPS),
		middleware.BodyLimit(bodyLimit),
	)

	authGroup := api.Group("/auth")
	authGroup.POST("/signup", h.Signup)
	authGroup.POST("/login", h.Login)

	jwt := md.JwtAuthentication(h.verifier)
	books := api.Group("/books")
	books.GET("", h.ListBooks)
	books.GET("/bestrating", h.BestRated)
	books.GET("/:id", h.GetBook)
	books.POST("", h.CreateBook, jwt)
	books.PUT("/:id", h.UpdateBook, jwt)
	books.DELETE("/:id", h.DeleteBook, jwt)
	books.POST("/:id/rating", h.RateBook, jwt)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

type messageResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
