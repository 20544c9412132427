package core

import "errors"

// Status is the outcome of dispatching one request
type Status int

const (
	StatusOK       Status = 200
	StatusNotFound Status = 404
)

// Line returns the HTTP status line without its trailing CRLF
func (s Status) Line() string {
	if s == StatusOK {
		return "HTTP/1.1 200 OK"
	}
	return "HTTP/1.1 404 NOT FOUND"
}

// HTTP header constants
const (
	HeaderContentLength = "Content-Length"
)

// Engine defaults
const (
	DefaultPort           = 8080
	DefaultWorkers        = 8
	DefaultReadBufferSize = 1024
)

// Error definitions
var (
	ErrEngineStarted = errors.New("engine already started")
)
