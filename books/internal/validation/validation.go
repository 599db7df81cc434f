package validation

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Astemirdum/book-rating-service/books/internal/errs"
	"github.com/Astemirdum/book-rating-service/books/internal/model"
)

const (
	MinYear  = -6000
	MinGrade = 1
	MaxGrade = 5

	msgRequired = "is required"
	msgEmpty    = "must not be empty"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type Option func(v *Validator)

func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

func WithSanitizer(s *Sanitizer) Option {
	return func(v *Validator) {
		v.sanitizer = s
	}
}

// Validator turns raw client input into typed values or a field map of errors.
type Validator struct {
	sanitizer *Sanitizer
	now       func() time.Time
}

func New(opts ...Option) *Validator {
	v := &Validator{now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	if v.sanitizer == nil {
		v.sanitizer = NewSanitizer(DefaultSanitizeCacheSize)
	}
	return v
}

// NewBook requires every attribute.
func (v *Validator) NewBook(in model.BookInput) (model.BookFields, error) {
	return v.book(in, true)
}

// BookPatch validates only the attributes present in the input.
func (v *Validator) BookPatch(in model.BookInput) (model.BookFields, error) {
	return v.book(in, false)
}

func (v *Validator) book(in model.BookInput, required bool) (model.BookFields, error) {
	verr := errs.NewValidationError()
	var out model.BookFields

	out.Title = v.text(verr, "title", in.Title, required)
	out.Author = v.text(verr, "author", in.Author, required)
	out.Genre = v.text(verr, "genre", in.Genre, required)

	switch {
	case in.Year != nil:
		year, err := v.Year(*in.Year)
		if err != nil {
			verr.Add("year", err.Error())
		} else {
			out.Year = &year
		}
	case required:
		verr.Add("year", msgRequired)
	}

	if err := verr.OrNil(); err != nil {
		return model.BookFields{}, err
	}
	return out, nil
}

func (v *Validator) text(verr *errs.ValidationError, field string, in *string, required bool) *string {
	if in == nil {
		if required {
			verr.Add(field, msgRequired)
		}
		return nil
	}
	s := strings.TrimSpace(*in)
	if s == "" {
		verr.Add(field, msgEmpty)
		return nil
	}
	s = v.sanitizer.Sanitize(s)
	return &s
}

type yearError struct {
	max int
}

func (e yearError) Error() string {
	return "must be an integer between " + strconv.Itoa(MinYear) + " and " + strconv.Itoa(e.max)
}

// Year accepts any integral JSON number within [MinYear, current year].
func (v *Validator) Year(n json.Number) (int, error) {
	maxYear := v.now().Year()
	year, ok := integer(n)
	if !ok || year < MinYear || year > maxYear {
		return 0, yearError{max: maxYear}
	}
	return year, nil
}

// Grade rejects a missing, fractional or out of range value.
func Grade(n *json.Number) (int, error) {
	if n == nil {
		return 0, errs.ErrInvalidGrade
	}
	g, ok := integer(*n)
	if !ok || g < MinGrade || g > MaxGrade {
		return 0, errs.ErrInvalidGrade
	}
	return g, nil
}

// Email returns the normalized address.
func Email(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if !emailRe.MatchString(email) {
		verr := errs.NewValidationError()
		verr.Add("email", "must be a valid email address")
		return "", verr
	}
	return email, nil
}

func Password(raw string) error {
	if raw == "" {
		verr := errs.NewValidationError()
		verr.Add("password", msgRequired)
		return verr
	}
	return nil
}

func integer(n json.Number) (int, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(n.String()), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}
