package logging

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/moodesky/plumage/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ConsoleSink writes entries as JSON lines.
type ConsoleSink struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder
}

func NewConsoleSink(w io.Writer) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleSink{w: w, enc: json.NewEncoder(w)}
}

func (s *ConsoleSink) Name() string { return "console" }

func (s *ConsoleSink) Write(entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		if err := s.enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func (s *ConsoleSink) Close() error { return nil }

// RingSink keeps the most recent entries in a bounded ring for the
// diagnostics surface.
type RingSink struct {
	mu      sync.Mutex
	max     int
	entries []Entry
}

func NewRingSink(max int) *RingSink {
	if max <= 0 {
		max = 200
	}
	return &RingSink{max: max}
}

func (s *RingSink) Name() string { return "ring" }

func (s *RingSink) Write(entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entries...)
	if over := len(s.entries) - s.max; over > 0 {
		s.entries = append([]Entry(nil), s.entries[over:]...)
	}
	return nil
}

func (s *RingSink) Close() error { return nil }

// Entries returns a copy of the buffered entries, oldest first.
func (s *RingSink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Export serializes the ring as JSON for offline diagnostics.
func (s *RingSink) Export() ([]byte, error) {
	return json.Marshal(s.Entries())
}

// FuncSink forwards every entry to a callback, e.g. a metrics counter.
type FuncSink struct {
	name string
	fn   func(Entry)
}

func NewFuncSink(name string, fn func(Entry)) *FuncSink {
	return &FuncSink{name: name, fn: fn}
}

func (s *FuncSink) Name() string { return s.name }

func (s *FuncSink) Write(entries []Entry) error {
	for _, e := range entries {
		s.fn(e)
	}
	return nil
}

func (s *FuncSink) Close() error { return nil }

// DBSink persists recent entries to a local sqlite database so logs
// survive a crash. The table is pruned back to max rows on every write.
type DBSink struct {
	db  *gorm.DB
	max int
}

func NewDBSink(path string, max int) (*DBSink, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&models.LogRecord{}); err != nil {
		return nil, err
	}

	if max <= 0 {
		max = 1000
	}

	return &DBSink{db: db, max: max}, nil
}

func (s *DBSink) Name() string { return "db" }

func (s *DBSink) Write(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	recs := make([]models.LogRecord, 0, len(entries))
	for _, e := range entries {
		ctx, err := json.Marshal(e.Context)
		if err != nil {
			ctx = nil
		}
		recs = append(recs, models.LogRecord{
			Time:        e.Time,
			Level:       e.Level,
			Source:      e.Source,
			Message:     e.Message,
			Context:     ctx,
			Environment: e.Environment,
			Version:     e.Version,
		})
	}

	if err := s.db.Create(&recs).Error; err != nil {
		return err
	}

	return s.db.Exec(
		"DELETE FROM log_records WHERE id NOT IN (SELECT id FROM log_records ORDER BY id DESC LIMIT ?)",
		s.max,
	).Error
}

func (s *DBSink) Close() error {
	sqldb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqldb.Close()
}
