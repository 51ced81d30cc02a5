package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsSerializationFailure(t *testing.T) {
	conflict := &pgconn.PgError{Code: "40001"}
	assert.True(t, IsSerializationFailure(conflict))
	assert.True(t, IsSerializationFailure(fmt.Errorf("checkout: %w", conflict)))
	assert.False(t, IsSerializationFailure(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsSerializationFailure(errors.New("boom")))
	assert.False(t, IsSerializationFailure(nil))
}
