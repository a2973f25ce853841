package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	t.Run("tagged error", func(t *testing.T) {
		err := E(PermissionDenied, "nope")
		assert.Equal(t, PermissionDenied, KindOf(err))
	})

	t.Run("wrapped tagged error", func(t *testing.T) {
		err := fmt.Errorf("list users: %w", Wrap(StorageUnavailable, "query failed", errors.New("conn reset")))
		assert.Equal(t, StorageUnavailable, KindOf(err))
		assert.True(t, IsKind(err, StorageUnavailable))
	})

	t.Run("plain error is internal", func(t *testing.T) {
		assert.Equal(t, Internal, KindOf(errors.New("boom")))
	})

	t.Run("nil is not any kind", func(t *testing.T) {
		assert.False(t, IsKind(nil, Internal))
	})
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(StorageUnavailable, "x", nil))

	cause := errors.New("dial tcp: refused")
	err := Wrap(StorageUnavailable, "count users", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "count users: dial tcp: refused", err.Error())
}

func TestErrorIs(t *testing.T) {
	sentinel := New(InvalidArgument, 10003, "user name already taken")

	wrapped := fmt.Errorf("signup: %w", sentinel)
	assert.ErrorIs(t, wrapped, sentinel)

	other := New(InvalidArgument, 10001, "user not found")
	assert.False(t, errors.Is(wrapped, other))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "token_invalid", TokenInvalid.String())
	assert.Equal(t, "kind(99)", Kind(99).String())
}
