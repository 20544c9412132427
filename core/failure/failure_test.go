package failure

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{Startup, "StartupFailure"},
		{Connection, "ConnectionFailure"},
		{Configuration, "ConfigurationFailure"},
		{Unknown, "UnknownFailure"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := New(Connection, "read", io.ErrUnexpectedEOF)
	wrapped := fmt.Errorf("serve: %w", err)

	assert.Equal(t, Connection, KindOf(wrapped))
	assert.True(t, Is(wrapped, Connection))
	assert.False(t, Is(wrapped, Startup))
	assert.ErrorIs(t, wrapped, io.ErrUnexpectedEOF)
	assert.Equal(t, "ConnectionFailure: read: unexpected EOF", err.Error())
}

func TestNewNil(t *testing.T) {
	assert.NoError(t, New(Startup, "bind", nil))
	assert.Equal(t, Unknown, KindOf(errors.New("plain")))
	assert.False(t, Is(nil, Unknown))
}

func TestErrorf(t *testing.T) {
	err := Errorf(Configuration, "", "workers must be positive, got %d", 0)
	assert.Equal(t, "ConfigurationFailure: workers must be positive, got 0", err.Error())
}
