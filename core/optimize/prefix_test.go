package optimize

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPrefix(t *testing.T) {
	line := []byte("GET /hello HTTP/1.1\r\n")

	tests := []struct {
		name string
		buf  string
		want bool
	}{
		{"exact", "GET /hello HTTP/1.1\r\n", true},
		{"with headers", "GET /hello HTTP/1.1\r\nHost: x\r\n\r\n", true},
		{"short read", "GET /hel", false},
		{"empty", "", false},
		{"lowercase method", "get /hello HTTP/1.1\r\n", false},
		{"leading byte", " GET /hello HTTP/1.1\r\n", false},
		{"last byte differs", "GET /hello HTTP/1.1\r\r", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HasPrefix([]byte(tt.buf), line), tt.name)
	}
}

func TestHasPrefixWordsMatchesBytes(t *testing.T) {
	prefix := []byte("POST /some/longer/path HTTP/1.1\r\n")
	buf := append(append([]byte{}, prefix...), "Host: example\r\n\r\n"...)

	// Flip each byte of the prefix region in turn.
	for i := range prefix {
		mutated := append([]byte{}, buf...)
		mutated[i] ^= 0x20
		assert.Equal(t, bytes.HasPrefix(mutated, prefix), hasPrefixWords(mutated, prefix), "offset %d", i)
	}
	assert.True(t, hasPrefixWords(buf, prefix))
	assert.NotEmpty(t, Features())
}

func BenchmarkHasPrefix(b *testing.B) {
	prefix := []byte("GET /api/status HTTP/1.1\r\n")
	buf := []byte("GET /api/status HTTP/1.1\r\nHost: localhost\r\n\r\n")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		HasPrefix(buf, prefix)
	}
}
