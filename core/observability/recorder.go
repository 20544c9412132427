package observability

import (
	"context"
	"log/slog"
	"sync"
)

// Record is one captured log event
type Record struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// Recorder is an in-memory slog.Handler. Tests inject it to assert on events
// instead of scraping process output.
type Recorder struct {
	store *recordStore
	attrs []slog.Attr
	group string
}

type recordStore struct {
	mu      sync.Mutex
	records []Record
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{store: &recordStore{}}
}

// Logger returns a logger writing into the recorder
func (r *Recorder) Logger() *slog.Logger {
	return slog.New(r)
}

func (r *Recorder) Enabled(context.Context, slog.Level) bool {
	return true
}

func (r *Recorder) Handle(_ context.Context, rec slog.Record) error {
	attrs := make(map[string]any, len(r.attrs)+rec.NumAttrs())
	for _, a := range r.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	rec.Attrs(func(a slog.Attr) bool {
		attrs[r.key(a.Key)] = a.Value.Any()
		return true
	})

	r.store.mu.Lock()
	r.store.records = append(r.store.records, Record{
		Level:   rec.Level,
		Message: rec.Message,
		Attrs:   attrs,
	})
	r.store.mu.Unlock()
	return nil
}

func (r *Recorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &Recorder{store: r.store, group: r.group}
	next.attrs = append(next.attrs, r.attrs...)
	for _, a := range attrs {
		a.Key = r.key(a.Key)
		next.attrs = append(next.attrs, a)
	}
	return next
}

func (r *Recorder) WithGroup(name string) slog.Handler {
	if name == "" {
		return r
	}
	return &Recorder{store: r.store, attrs: r.attrs, group: r.key(name)}
}

func (r *Recorder) key(k string) string {
	if r.group == "" {
		return k
	}
	return r.group + "." + k
}

// Records returns a copy of everything captured so far
func (r *Recorder) Records() []Record {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return append([]Record(nil), r.store.records...)
}

// Find returns the records with the given message
func (r *Recorder) Find(msg string) []Record {
	var out []Record
	for _, rec := range r.Records() {
		if rec.Message == msg {
			out = append(out, rec)
		}
	}
	return out
}

// Count returns how many records carry the given message
func (r *Recorder) Count(msg string) int {
	return len(r.Find(msg))
}
