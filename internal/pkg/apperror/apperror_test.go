package apperror

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(NotFound("order %d not found", 7)))
	assert.Equal(t, KindValidation, KindOf(Validation("rating out of range")))
	assert.Equal(t, KindConflict, KindOf(Conflict("already reviewed")))
	assert.Equal(t, KindInsufficientStock, KindOf(InsufficientStock("only 1 left")))
	assert.Equal(t, KindUnknown, KindOf(fmt.Errorf("plain error")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestKindOfWrapped(t *testing.T) {
	inner := Conflict("invalid transition")
	outer := fmt.Errorf("updating order: %w", inner)
	assert.Equal(t, KindConflict, KindOf(outer))
}

func TestErrorMessage(t *testing.T) {
	err := Wrap(KindValidation, fmt.Errorf("boom"), "bad payload")
	assert.Equal(t, "bad payload: boom", err.Error())
	assert.Equal(t, "validation_failed", KindOf(err).String())
}
