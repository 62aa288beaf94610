package mapping

import (
	"sync"

	"apimapper/internal/config"
	"apimapper/internal/state"
)

const (
	defaultAscValue  = "asc"
	defaultDescValue = "desc"
)

// SortMapper maps the sorted column onto request keys. It remembers which
// keys it wrote last so they can be removed when sorting is cancelled,
// switches column or moves to client mode.
type SortMapper struct {
	mu          sync.Mutex
	lastWritten []Entry
}

// NewSortMapper returns a mapper with empty history.
func NewSortMapper() *SortMapper {
	return &SortMapper{}
}

// Build produces the sort fragment and records the keys it writes.
func (s *SortMapper) Build(m config.SortMapping, sort *state.Sort) Fragment {
	var frag Fragment

	if isServerMode(m.Mode) && sort.Active() {
		loc := normalizeLocation(m.Location)
		if loc != config.LocationBody {
			loc = config.LocationQuery
		}
		dir := directionLiteral(m, sort.Order)

		if m.FieldKey != "" || m.DirectionKey != "" {
			if m.FieldKey != "" {
				frag.set(loc, m.FieldKey, sort.Field)
			}
			if m.DirectionKey != "" {
				frag.set(loc, m.DirectionKey, dir)
			}
		} else {
			frag.set(loc, sort.Field, dir)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, prev := range s.lastWritten {
		if !containsKey(frag.Set, prev) {
			frag.remove(prev.Location, prev.Key)
		}
	}
	s.lastWritten = s.lastWritten[:0]
	for _, e := range frag.Set {
		s.lastWritten = append(s.lastWritten, Entry{Location: e.Location, Key: e.Key})
	}
	return frag
}

// LastWritten returns the keys written by the previous Build.
func (s *SortMapper) LastWritten() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.lastWritten))
	copy(out, s.lastWritten)
	return out
}

// Reset forgets the write history.
func (s *SortMapper) Reset() {
	s.mu.Lock()
	s.lastWritten = nil
	s.mu.Unlock()
}

func directionLiteral(m config.SortMapping, order string) string {
	if order == state.Descend {
		if m.DescValue != "" {
			return m.DescValue
		}
		return defaultDescValue
	}
	if m.AscValue != "" {
		return m.AscValue
	}
	return defaultAscValue
}

func containsKey(entries []Entry, key Entry) bool {
	for _, e := range entries {
		if e.Location == key.Location && e.Key == key.Key {
			return true
		}
	}
	return false
}
