// Package static loads the canned response bodies from disk.
package static

import (
	"os"

	"github.com/searchktools/pool-server/core/failure"
)

const (
	DefaultOK       = "hello.html"
	DefaultNotFound = "404.html"
)

// Files names the success and not-found body files. They are read again for
// every response so edits on disk show up without a restart.
type Files struct {
	OK       string
	NotFound string
}

// Path returns the body file for a matched or unmatched request
func (f Files) Path(matched bool) string {
	if matched {
		return f.OK
	}
	return f.NotFound
}

// Read loads the body for a matched or unmatched request
func (f Files) Read(matched bool) ([]byte, error) {
	body, err := os.ReadFile(f.Path(matched))
	if err != nil {
		return nil, failure.New(failure.Configuration, "read body", err)
	}
	return body, nil
}

// Verify checks that both files can be read before the server starts
func (f Files) Verify() error {
	for _, path := range []string{f.OK, f.NotFound} {
		fh, err := os.Open(path)
		if err != nil {
			return failure.New(failure.Startup, "verify body file", err)
		}
		fh.Close()
	}
	return nil
}
