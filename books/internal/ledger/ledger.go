// Package ledger keeps a book's average rating up to date one grade at a time.
package ledger

import (
	"math"

	"github.com/Astemirdum/book-rating-service/books/internal/model"
)

const (
	StoredPrecision  = 3
	DisplayPrecision = 1
)

// NextAverage folds grade into old, the average of n-1 earlier grades.
// n is the count including grade. The sum of grades is never re-read.
func NextAverage(old float64, n, grade int) float64 {
	if n <= 1 {
		return Round(float64(grade), StoredPrecision)
	}
	return Round((old*float64(n-1)+float64(grade))/float64(n), StoredPrecision)
}

// Append adds r to b and refreshes the derived fields.
func Append(b *model.Book, r model.Rating) {
	n := b.RatingCount + 1
	b.AverageRating = NextAverage(b.AverageRating, n, r.Grade)
	b.RatingCount = n
	b.Ratings = append(b.Ratings, r)
}

// Display is the read-time rounding. It is never written back.
func Display(avg float64) float64 {
	return Round(avg, DisplayPrecision)
}

func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
