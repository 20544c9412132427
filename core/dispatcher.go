package core

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/searchktools/pool-server/core/failure"
	"github.com/searchktools/pool-server/core/observability"
	"github.com/searchktools/pool-server/core/pools"
	"github.com/searchktools/pool-server/core/router"
	"github.com/searchktools/pool-server/core/static"
)

// Result is the outcome of matching one request against the route table
type Result struct {
	Status  Status
	Route   router.Route
	Matched bool
}

// Label names the result for per-route statistics
func (r Result) Label() string {
	if !r.Matched {
		return "unmatched"
	}
	return r.Route.String()
}

// Dispatcher serves a single connection: one read, one match, one response
type Dispatcher struct {
	routes       func() *router.Snapshot
	files        static.Files
	bytePool     *pools.BytePool
	bufSize      int
	readTimeout  time.Duration
	writeTimeout time.Duration
	metrics      *observability.Metrics
	monitor      *observability.PerformanceMonitor
}

// Resolve matches buf against the current route snapshot. Anything that
// does not match, including an empty buffer, resolves to not found.
func (d *Dispatcher) Resolve(buf []byte) Result {
	route, ok := d.routes().Match(buf)
	if !ok {
		return Result{Status: StatusNotFound}
	}
	return Result{Status: StatusOK, Route: route, Matched: true}
}

// Serve reads the request, writes the canned response and closes conn.
// Errors are tagged ConnectionFailure (socket) or ConfigurationFailure
// (body file).
func (d *Dispatcher) Serve(conn net.Conn) error {
	defer conn.Close()
	start := time.Now()

	if d.readTimeout > 0 {
		conn.SetReadDeadline(start.Add(d.readTimeout))
	}

	buf := d.bytePool.Get(d.bufSize)
	defer d.bytePool.Put(buf)

	n, err := conn.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return d.finish(Result{Status: StatusNotFound}, start,
			failure.New(failure.Connection, "read request", err))
	}

	res := d.Resolve(buf[:n])

	body, err := d.files.Read(res.Matched)
	if err != nil {
		return d.finish(res, start, err)
	}

	out := d.bytePool.Get(len(body) + 64)
	defer d.bytePool.Put(out)
	resp := AppendResponse(out[:0], res.Status, body)

	if d.writeTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(d.writeTimeout))
	}
	if _, err := conn.Write(resp); err != nil {
		return d.finish(res, start, failure.New(failure.Connection, "write response", err))
	}

	d.metrics.ObserveResponse(int(res.Status))
	return d.finish(res, start, nil)
}

func (d *Dispatcher) finish(res Result, start time.Time, err error) error {
	d.monitor.RecordRequest(res.Label(), time.Since(start), err != nil)
	if err != nil {
		d.metrics.ObserveError(failure.KindOf(err).String())
	}
	return err
}

// AppendResponse appends "<status-line>\r\nContent-Length: <n>\r\n\r\n<body>"
// to dst
func AppendResponse(dst []byte, status Status, body []byte) []byte {
	dst = append(dst, status.Line()...)
	dst = append(dst, "\r\n"+HeaderContentLength+": "...)
	dst = appendInt(dst, len(body))
	dst = append(dst, "\r\n\r\n"...)
	return append(dst, body...)
}

// appendInt appends the decimal form of a non-negative int
func appendInt(b []byte, i int) []byte {
	if i == 0 {
		return append(b, '0')
	}

	var digits [20]byte
	n := 0
	for i > 0 {
		digits[n] = byte('0' + i%10)
		i /= 10
		n++
	}

	for n > 0 {
		n--
		b = append(b, digits[n])
	}

	return b
}
