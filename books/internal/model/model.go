package model

import (
	"encoding/json"
	"time"
)

type Book struct {
	ID            string    `json:"_id"`
	UserID        string    `json:"userId"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Genre         string    `json:"genre"`
	Year          int       `json:"year"`
	ImageURL      string    `json:"imageUrl"`
	Ratings       []Rating  `json:"ratings,omitempty"`
	AverageRating float64   `json:"averageRating"`
	RatingCount   int       `json:"ratingCount"`
	CreatedAt     time.Time `json:"-"`
}

type Rating struct {
	UserID string `json:"userId"`
	Grade  int    `json:"grade"`
}

type User struct {
	ID       string `json:"_id"`
	Email    string `json:"email"`
	Password string `json:"-"`
}

// BookFields carries already validated and sanitized attributes.
// A nil field is left untouched on update.
type BookFields struct {
	Title  *string
	Author *string
	Genre  *string
	Year   *int
}

func (f BookFields) Empty() bool {
	return f.Title == nil && f.Author == nil && f.Genre == nil && f.Year == nil
}

// Apply merges the set fields into b.
func (f BookFields) Apply(b *Book) {
	if f.Title != nil {
		b.Title = *f.Title
	}
	if f.Author != nil {
		b.Author = *f.Author
	}
	if f.Genre != nil {
		b.Genre = *f.Genre
	}
	if f.Year != nil {
		b.Year = *f.Year
	}
}

type BookUpdate struct {
	Fields   BookFields
	ImageURL string
}

type Sort string

const (
	SortTitle      Sort = "title"
	SortTitleDesc  Sort = "-title"
	SortYear       Sort = "year"
	SortYearDesc   Sort = "-year"
	SortRating     Sort = "rating"
	SortRatingDesc Sort = "-rating"
)

func (s Sort) Valid() bool {
	switch s {
	case SortTitle, SortTitleDesc, SortYear, SortYearDesc, SortRating, SortRatingDesc:
		return true
	}
	return false
}

type BookFilter struct {
	Title     string
	Author    string
	Genre     string
	Year      *int
	MinRating *float64
	Sort      Sort
	Page      int
	PageSize  int
}

type Paging struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"pageSize"`
	TotalCount int  `json:"totalCount"`
	HasMore    bool `json:"hasMore"`
}

type ListBooks struct {
	Paging `json:",inline"`
	Items  []Book `json:"items"`
}

type RatingEvent struct {
	BookID        string    `json:"bookId"`
	UserID        string    `json:"userId"`
	Grade         int       `json:"grade"`
	AverageRating float64   `json:"averageRating"`
	RatingCount   int       `json:"ratingCount"`
	Timestamp     time.Time `json:"timestamp"`
}

// BookInput is the raw client payload. Year accepts numbers and numeric strings.
type BookInput struct {
	Title  *string      `json:"title"`
	Author *string      `json:"author"`
	Genre  *string      `json:"genre"`
	Year   *json.Number `json:"year"`
}

// Upload is an image file received from a client, not yet checked.
type Upload struct {
	Filename string
	Data     []byte
}

type Session struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

type DeletedEvent struct {
	BookID    string    `json:"bookId"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}
