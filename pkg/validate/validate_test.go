package validate_test

import (
	"testing"

	"github.com/Astemirdum/book-rating-service/pkg/validate"
	"github.com/stretchr/testify/require"
)

type credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

func TestCustomValidator_Validate(t *testing.T) {
	v := validate.NewCustomValidator()

	require.NoError(t, v.Validate(credentials{Email: "a@b.io", Password: "x"}))

	err := v.Validate(credentials{Email: "nope"})
	require.Error(t, err)
	require.Equal(t, map[string]string{
		"email":    "email",
		"password": "required",
	}, validate.Fields(err))

	require.Nil(t, validate.Fields(nil))
}
