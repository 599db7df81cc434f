package service

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Astemirdum/book-rating-service/books/internal/errs"
	"github.com/Astemirdum/book-rating-service/books/internal/model"
	"github.com/Astemirdum/book-rating-service/books/internal/validation"
)

const hashCost = bcrypt.DefaultCost

func (s *Service) Signup(ctx context.Context, email, password string) (model.User, error) {
	email, err := validation.Email(email)
	if err != nil {
		return model.User{}, err
	}
	if err := validation.Password(password); err != nil {
		return model.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		// bcrypt rejects passwords longer than 72 bytes
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			verr := errs.NewValidationError()
			verr.Add("password", "must be at most 72 bytes")
			return model.User{}, verr
		}
		return model.User{}, errors.Wrap(err, "bcrypt.GenerateFromPassword")
	}

	user, err := s.repo.CreateUser(ctx, model.User{Email: email, Password: string(hash)})
	if err != nil {
		return model.User{}, err
	}
	s.log.Info("user created", zap.String("id", user.ID))
	return user, nil
}

// Login answers ErrInvalidLogin for both an unknown email and a wrong password.
func (s *Service) Login(ctx context.Context, email, password string) (model.Session, error) {
	email, err := validation.Email(email)
	if err != nil {
		return model.Session{}, errs.ErrInvalidLogin
	}
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Session{}, errs.ErrInvalidLogin
		}
		return model.Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return model.Session{}, errs.ErrInvalidLogin
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return model.Session{}, errors.Wrap(err, "issue token")
	}
	return model.Session{UserID: user.ID, Token: token}, nil
}
