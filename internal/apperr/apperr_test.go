package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHelpersSeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("saving task: %w", Validation("name", "task name is required"))

	assert.True(t, IsValidation(err))
	assert.False(t, IsNotFound(err))

	v, ok := AsValidation(err)
	assert.True(t, ok)
	assert.Equal(t, "name", v.Field)
	assert.Equal(t, "validation (name): task name is required", v.Error())
}

func TestExternalServiceUnwraps(t *testing.T) {
	base := errors.New("connection reset")
	err := ExternalService("telegram", base)

	assert.True(t, IsExternalService(err))
	assert.ErrorIs(t, err, base)
	assert.Nil(t, ExternalService("telegram", nil))
}

func TestNotFoundMessage(t *testing.T) {
	assert.Equal(t, "meeting abc not found", NotFound("meeting", "abc").Error())
	assert.Equal(t, "team not found", NotFound("team", "").Error())
	assert.True(t, IsUnauthorized(fmt.Errorf("dm: %w", &UnauthorizedError{ChatID: 7})))
}
