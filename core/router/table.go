package router

import (
	"fmt"
	"strings"

	"github.com/searchktools/pool-server/core/optimize"
)

// Method is a request method a route can match
type Method uint8

const (
	GET Method = iota + 1
	POST
)

func (m Method) String() string {
	switch m {
	case GET:
		return "GET"
	case POST:
		return "POST"
	default:
		return fmt.Sprintf("Method(%d)", uint8(m))
	}
}

// ParseMethod parses an upper-case method name
func ParseMethod(s string) (Method, error) {
	switch s {
	case "GET":
		return GET, nil
	case "POST":
		return POST, nil
	default:
		return 0, fmt.Errorf("unsupported method %q", s)
	}
}

// Route is an immutable (method, path) pair
type Route struct {
	Method Method
	Path   string
}

// NormalizedPath returns the path with exactly one added leading slash
// when it has none, for every method
func (r Route) NormalizedPath() string {
	return "/" + strings.TrimPrefix(r.Path, "/")
}

// RequestLine returns the canonical request line the route matches:
// "<METHOD> /<path> HTTP/1.1\r\n"
func (r Route) RequestLine() []byte {
	return []byte(r.Method.String() + " " + r.NormalizedPath() + " HTTP/1.1\r\n")
}

func (r Route) String() string {
	return r.Method.String() + " " + r.NormalizedPath()
}

// ParseRoute parses the "<METHOD> <path>" form produced by Route.String.
// A bare method selects the root path.
func ParseRoute(s string) (Route, error) {
	method, path, _ := strings.Cut(strings.TrimSpace(s), " ")
	m, err := ParseMethod(method)
	if err != nil {
		return Route{}, fmt.Errorf("route %q: %w", s, err)
	}
	path = strings.TrimSpace(path)
	if strings.ContainsAny(path, " \r\n") {
		return Route{}, fmt.Errorf("route %q: path contains whitespace", s)
	}
	return Route{Method: m, Path: path}, nil
}

// MatchPolicy decides which route wins when several match
type MatchPolicy uint8

const (
	// FirstMatch stops at the first matching route in declaration order
	FirstMatch MatchPolicy = iota
	// LastMatch scans every route and keeps the last one that matched
	LastMatch
)

func (p MatchPolicy) String() string {
	if p == LastMatch {
		return "last"
	}
	return "first"
}

// ParseMatchPolicy parses "first" or "last"
func ParseMatchPolicy(s string) (MatchPolicy, error) {
	switch strings.ToLower(s) {
	case "", "first":
		return FirstMatch, nil
	case "last":
		return LastMatch, nil
	default:
		return 0, fmt.Errorf("unknown match policy %q", s)
	}
}

// Table collects routes in declaration order. It is built by one goroutine
// before the server starts and frozen by Compile.
type Table struct {
	routes []Route
	frozen bool
}

// NewTable creates an empty route table
func NewTable() *Table {
	return &Table{}
}

// GET appends a GET route
func (t *Table) GET(path string) {
	t.Add(GET, path)
}

// POST appends a POST route
func (t *Table) POST(path string) {
	t.Add(POST, path)
}

// Add appends a route. Paths are not validated and duplicates are kept.
func (t *Table) Add(method Method, path string) {
	if t.frozen {
		panic("router: route added after the table was compiled")
	}
	t.routes = append(t.routes, Route{Method: method, Path: path})
}

// Len returns the number of routes
func (t *Table) Len() int {
	return len(t.routes)
}

// Routes returns a copy of the routes in declaration order
func (t *Table) Routes() []Route {
	return append([]Route(nil), t.routes...)
}

// Compile freezes the table and returns its immutable snapshot
func (t *Table) Compile(policy MatchPolicy) *Snapshot {
	t.frozen = true

	s := &Snapshot{
		routes: append([]Route(nil), t.routes...),
		lines:  make([][]byte, len(t.routes)),
		policy: policy,
	}
	for i, r := range s.routes {
		s.lines[i] = r.RequestLine()
	}
	return s
}

// Snapshot is the compiled, read-only form of a Table. It is shared by
// pointer between every worker and never modified.
type Snapshot struct {
	routes []Route
	lines  [][]byte
	policy MatchPolicy
}

// Match tests each route's request line as an exact byte prefix of buf
func (s *Snapshot) Match(buf []byte) (Route, bool) {
	var (
		found   Route
		matched bool
	)
	for i, line := range s.lines {
		if !optimize.HasPrefix(buf, line) {
			continue
		}
		found, matched = s.routes[i], true
		if s.policy == FirstMatch {
			break
		}
	}
	return found, matched
}

// Routes returns a copy of the compiled routes
func (s *Snapshot) Routes() []Route {
	return append([]Route(nil), s.routes...)
}

// Len returns the number of compiled routes
func (s *Snapshot) Len() int {
	return len(s.routes)
}

// Policy returns the match policy
func (s *Snapshot) Policy() MatchPolicy {
	return s.policy
}
