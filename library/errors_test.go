package library

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorMatchesByCode(t *testing.T) {
	err := NewNotFoundError("book %d not found", 7)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.Equal(t, "NOT_FOUND: book 7 not found", err.Error())

	wrapped := fmt.Errorf("issue: %w", NewOutOfStockError("Dune"))
	assert.ErrorIs(t, wrapped, ErrOutOfStock)

	var de *DomainError
	assert.True(t, errors.As(wrapped, &de))
	assert.Equal(t, "'Dune' is out of stock", de.Message)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, isUniqueViolation(nil))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}
