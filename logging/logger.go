// Package logging is the buffered, leveled, redacting pipeline every
// other component logs through. Entries are buffered until the buffer
// fills, the flush interval fires, or a CRITICAL entry arrives, then
// fanned out to the registered sinks.
package logging

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// LevelCritical sits above slog.LevelError and forces an immediate
// flush of the buffer.
const LevelCritical = slog.Level(12)

func levelName(l slog.Level) string {
	switch {
	case l >= LevelCritical:
		return "CRITICAL"
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

// Entry is one structured log record as it leaves the pipeline.
type Entry struct {
	Time        time.Time      `json:"timestamp"`
	Level       string         `json:"level"`
	Message     string         `json:"message"`
	Context     map[string]any `json:"context,omitempty"`
	Source      string         `json:"source"`
	Environment string         `json:"environment"`
	Version     string         `json:"version"`
}

// Sink receives flushed batches. Sinks are addable and removable at
// runtime by name.
type Sink interface {
	Name() string
	Write(entries []Entry) error
	Close() error
}

type Config struct {
	MinLevel      slog.Level
	BufferSize    int
	FlushInterval time.Duration

	// SamplingRate is the probability an entry below WARN is kept.
	// WARN and above are never sampled out. Zero means keep everything.
	SamplingRate float64

	// FilterSensitive controls redaction. Nil means "profile default":
	// on in production, off elsewhere.
	FilterSensitive *bool

	Environment string
	Version     string
}

type Logger struct {
	mu     sync.Mutex
	cfg    Config
	filter bool
	buf    []Entry
	sinks  map[string]Sink
	rand   func() float64
	stop   chan struct{}
	closed bool
}

func New(cfg Config) *Logger {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 50
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.SamplingRate <= 0 || cfg.SamplingRate > 1 {
		cfg.SamplingRate = 1
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	filter := cfg.Environment == "production"
	if cfg.FilterSensitive != nil {
		filter = *cfg.FilterSensitive
	}

	l := &Logger{
		cfg:    cfg,
		filter: filter,
		buf:    make([]Entry, 0, cfg.BufferSize),
		sinks:  map[string]Sink{},
		rand:   rand.Float64,
		stop:   make(chan struct{}),
	}

	go l.flushLoop()

	return l
}

func (l *Logger) flushLoop() {
	t := time.NewTicker(l.cfg.FlushInterval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			l.Flush()
		case <-l.stop:
			return
		}
	}
}

func (l *Logger) AddSink(s Sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks[s.Name()] = s
}

// RemoveSink detaches and closes the named sink.
func (l *Logger) RemoveSink(name string) {
	l.mu.Lock()
	s, ok := l.sinks[name]
	delete(l.sinks, name)
	l.mu.Unlock()

	if ok {
		s.Close()
	}
}

func (l *Logger) Debug(source, msg string, ctx map[string]any) {
	l.log(slog.LevelDebug, source, msg, ctx)
}

func (l *Logger) Info(source, msg string, ctx map[string]any) {
	l.log(slog.LevelInfo, source, msg, ctx)
}

func (l *Logger) Warn(source, msg string, ctx map[string]any) {
	l.log(slog.LevelWarn, source, msg, ctx)
}

func (l *Logger) Error(source, msg string, ctx map[string]any) {
	l.log(slog.LevelError, source, msg, ctx)
}

func (l *Logger) Critical(source, msg string, ctx map[string]any) {
	l.log(LevelCritical, source, msg, ctx)
}

// Log lets callers pick the level dynamically, e.g. from a fault's
// severity.
func (l *Logger) Log(level slog.Level, source, msg string, ctx map[string]any) {
	l.log(level, source, msg, ctx)
}

func (l *Logger) log(level slog.Level, source, msg string, ctx map[string]any) {
	if level < l.cfg.MinLevel {
		return
	}

	l.mu.Lock()

	if l.closed {
		l.mu.Unlock()
		return
	}

	// high-volume levels are sampled; WARN and above always pass
	if level < slog.LevelWarn && l.rand() > l.cfg.SamplingRate {
		l.mu.Unlock()
		return
	}

	if l.filter {
		ctx = redactContext(ctx)
	}

	l.buf = append(l.buf, Entry{
		Time:        time.Now(),
		Level:       levelName(level),
		Message:     msg,
		Context:     ctx,
		Source:      source,
		Environment: l.cfg.Environment,
		Version:     l.cfg.Version,
	})

	if level >= LevelCritical || len(l.buf) >= l.cfg.BufferSize {
		l.flushLocked()
	}

	l.mu.Unlock()
}

func (l *Logger) Flush() {
	l.mu.Lock()
	l.flushLocked()
	l.mu.Unlock()
}

// flushLocked hands the buffered entries to every sink. A failing sink
// cannot be reported anywhere, so its error is dropped.
func (l *Logger) flushLocked() {
	if len(l.buf) == 0 {
		return
	}

	batch := make([]Entry, len(l.buf))
	copy(batch, l.buf)
	l.buf = l.buf[:0]

	for _, s := range l.sinks {
		s.Write(batch)
	}
}

// Close performs a final flush and closes every sink. The logger drops
// all entries afterward.
func (l *Logger) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.stop)
	l.flushLocked()

	for name, s := range l.sinks {
		s.Close()
		delete(l.sinks, name)
	}
	l.mu.Unlock()
}
