package telemetry

import (
	"strings"
	"sync"
)

type Level int

const (
	LEVEL_DEBUG Level = iota
	LEVEL_WARNING
	LEVEL_BROKEN
	LEVEL_COUNT
)

type Entry struct {
	Level  Level
	Id     string
	Params []any
	Count  int64
}

// Recorder is an API that keeps every report in memory, it is meant to be
// used in tests.
type Recorder struct {
	mutex   sync.Mutex
	entries []Entry
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) push(e Entry) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.entries = append(r.entries, e)
}

func (r *Recorder) ReportBroken(id string, params ...any) {
	r.push(Entry{Level: LEVEL_BROKEN, Id: id, Params: params})
}

func (r *Recorder) ReportWarning(id string, params ...any) {
	r.push(Entry{Level: LEVEL_WARNING, Id: id, Params: params})
}

func (r *Recorder) ReportDebug(msg string, params ...any) {
	r.push(Entry{Level: LEVEL_DEBUG, Id: msg, Params: params})
}

func (r *Recorder) ReportCount(id string, count int64) {
	r.push(Entry{Level: LEVEL_COUNT, Id: id, Count: count})
}

func (r *Recorder) Entries() []Entry {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Count returns the amount of entries at the given level whose id ends with
// idSuffix, scoping prefixes are ignored that way.
func (r *Recorder) Count(level Level, idSuffix string) int {
	n := 0
	for _, e := range r.Entries() {
		if e.Level == level && strings.HasSuffix(e.Id, idSuffix) {
			n++
		}
	}
	return n
}
