package store

import (
	"sync"
	"time"

	"github.com/ivlev/satwatch/internal/signal"
	"github.com/ivlev/satwatch/internal/track"
	"github.com/ivlev/satwatch/internal/vision"
)

// Record is one processed frame of the time series. Never mutated
// after append.
type Record struct {
	Frame     int                `json:"frame"`
	Timestamp time.Time          `json:"timestamp"`
	Status    track.Status       `json:"-"`
	Shape     vision.Ellipse     `json:"shape"`
	Sample    signal.FrameSample `json:"sample"`
	Alert     bool               `json:"alert"`
}

// Store is the append-only history of all filtered channels. One
// writer (the frame loop) appends; readers (plotting, export, the web
// layer) take consistent copies under the read lock and only ever
// observe a prefix of the log.
type Store struct {
	mu      sync.RWMutex
	records []Record
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// Append adds one record to the log.
func (s *Store) Append(r Record) {
	s.mu.Lock()
	s.records = append(s.records, r)
	s.mu.Unlock()
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Last returns the most recent record, if any.
func (s *Store) Last() (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return Record{}, false
	}
	return s.records[len(s.records)-1], true
}

// Range returns a copy of all records with fromFrame <= Frame <
// toFrame. A toFrame of -1 means "to the end".
func (s *Store) Range(fromFrame, toFrame int) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, r := range s.records {
		if r.Frame < fromFrame {
			continue
		}
		if toFrame >= 0 && r.Frame >= toFrame {
			break
		}
		out = append(out, r)
	}
	return out
}

// All returns a copy of the full log.
func (s *Store) All() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}
