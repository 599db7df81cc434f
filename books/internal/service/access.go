package service

import (
	"context"

	"github.com/Astemirdum/book-rating-service/books/internal/errs"
)

type Access int

const (
	// AccessOwner allows modify and delete.
	AccessOwner Access = iota + 1
	// AccessRate allows a first rating by any user.
	AccessRate
)

// Authorize loads only what the decision needs: the owner reference for
// AccessOwner, rating presence for AccessRate.
func (s *Service) Authorize(ctx context.Context, bookID, userID string, access Access) error {
	if userID == "" {
		return errs.ErrUnauthenticated
	}
	switch access {
	case AccessOwner:
		owner, err := s.repo.GetOwner(ctx, bookID)
		if err != nil {
			return err
		}
		if owner != userID {
			return errs.ErrForbidden
		}
		return nil
	case AccessRate:
		rated, err := s.repo.HasRated(ctx, bookID, userID)
		if err != nil {
			return err
		}
		if rated {
			return errs.ErrDuplicateRating
		}
		return nil
	default:
		return errs.ErrForbidden
	}
}
