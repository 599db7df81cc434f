package auth

import (
	"context"

	"github.com/pkg/errors"
)

type ctxKey int

const userIDKey ctxKey = iota + 1

var ErrNoUser = errors.New("user id is not in context")

func SetAuthContext(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func GetUserID(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok || userID == "" {
		return "", ErrNoUser
	}
	return userID, nil
}
