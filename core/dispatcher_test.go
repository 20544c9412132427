package core

import (
	"io"
	"net"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchktools/pool-server/core/failure"
	"github.com/searchktools/pool-server/core/router"
)

// compileRoutes publishes the engine's table without starting it
func compileRoutes(e *Engine) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.routes.Store(e.table.Compile(e.opts.MatchPolicy))
}

// servePipe runs the dispatcher on one end of an in-memory connection
func servePipe(t *testing.T, d *Dispatcher, request string) (string, error) {
	t.Helper()
	client, server := net.Pipe()
	defer client.Close()

	errc := make(chan error, 1)
	go func() { errc <- d.Serve(server) }()

	_, err := client.Write([]byte(request))
	require.NoError(t, err)
	raw, _ := io.ReadAll(client)
	return string(raw), <-errc
}

func TestDispatcherResolve(t *testing.T) {
	e := newTestEngine(t, nil)
	compileRoutes(e)
	d := e.Dispatcher()

	tests := []struct {
		request string
		status  Status
		route   string
	}{
		{"GET /hello HTTP/1.1\r\nHost: localhost\r\n\r\n", StatusOK, "GET /hello"},
		{"GET / HTTP/1.1\r\n", StatusOK, "GET /"},
		{"POST /post HTTP/1.1\r\n", StatusOK, "POST /post"},
		{"GET /missing HTTP/1.1\r\n", StatusNotFound, ""},
		{"", StatusNotFound, ""},
	}

	for _, tt := range tests {
		res := d.Resolve([]byte(tt.request))
		assert.Equal(t, tt.status, res.Status, tt.request)
		if tt.status == StatusOK {
			assert.Equal(t, tt.route, res.Route.String())
		} else {
			assert.Equal(t, "unmatched", res.Label())
		}
	}
}

func TestDispatcherServe(t *testing.T) {
	e := newTestEngine(t, nil)
	compileRoutes(e)

	raw, err := servePipe(t, e.Dispatcher(), "GET /hello HTTP/1.1\r\nHost: localhost\r\n\r\n")
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK\r\nContent-Length: "+strconv.Itoa(len(okBody))+"\r\n\r\n"+okBody, raw)

	raw, err = servePipe(t, e.Dispatcher(), "GET /missing HTTP/1.1\r\n")
	require.NoError(t, err)
	resp := parseResponse(t, raw)
	assert.Equal(t, "HTTP/1.1 404 NOT FOUND", resp.status)
	assert.Equal(t, len(resp.body), resp.contentLength)
}

func TestDispatcherMatchPolicies(t *testing.T) {
	// "hello" and "/hello" compile to the same request line.
	tests := []struct {
		policy router.MatchPolicy
		want   string
	}{
		{router.FirstMatch, "hello"},
		{router.LastMatch, "/hello"},
	}

	for _, tt := range tests {
		e := newTestEngine(t, func(o *Options) { o.MatchPolicy = tt.policy })
		e.GET("/hello")
		compileRoutes(e)

		res := e.Dispatcher().Resolve([]byte("GET /hello HTTP/1.1\r\n"))
		assert.Equal(t, StatusOK, res.Status)
		assert.Equal(t, tt.want, res.Route.Path, tt.policy.String())
	}
}

func TestDispatcherTruncatedRead(t *testing.T) {
	e := newTestEngine(t, func(o *Options) { o.ReadBufferSize = 8 })
	compileRoutes(e)

	// Only "GET /hel" fits in the buffer, so nothing can match.
	raw, err := servePipe(t, e.Dispatcher(), "GET /hel")
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound.Line(), parseResponse(t, raw).status)
}

func TestDispatcherMissingBody(t *testing.T) {
	e := newTestEngine(t, nil)
	compileRoutes(e)
	require.NoError(t, os.Remove(e.opts.Bodies.OK))

	raw, err := servePipe(t, e.Dispatcher(), "GET /hello HTTP/1.1\r\n\r\n")
	assert.Empty(t, raw)
	assert.True(t, failure.Is(err, failure.Configuration))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDispatcherWriteFailure(t *testing.T) {
	e := newTestEngine(t, nil)
	compileRoutes(e)

	client, server := net.Pipe()
	errc := make(chan error, 1)
	go func() { errc <- e.Dispatcher().Serve(server) }()

	_, err := client.Write([]byte("GET /hello HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)
	client.Close()

	err = <-errc
	assert.True(t, failure.Is(err, failure.Connection))
}

func TestAppendResponse(t *testing.T) {
	tests := []struct {
		status Status
		body   string
		want   string
	}{
		{StatusOK, "hi", "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nhi"},
		{StatusNotFound, "", "HTTP/1.1 404 NOT FOUND\r\nContent-Length: 0\r\n\r\n"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, string(AppendResponse(nil, tt.status, []byte(tt.body))))
	}

	big := make([]byte, 12345)
	resp := parseResponse(t, string(AppendResponse(nil, StatusOK, big)))
	assert.Equal(t, 12345, resp.contentLength)
}

func BenchmarkDispatcherResolve(b *testing.B) {
	e := NewEngine(DefaultOptions())
	e.GET("hello")
	e.GET("")
	e.POST("post")
	compileRoutes(e)
	d := e.Dispatcher()
	req := []byte("GET /hello HTTP/1.1\r\nHost: localhost\r\n\r\n")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.Resolve(req)
	}
}
