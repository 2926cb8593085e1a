package publisher

import (
	"forummigrate/internal/components/assert"
	"forummigrate/internal/forum"
	"slices"
)

type State int

const (
	STATE_PENDING State = iota
	STATE_SUBMITTED
	STATE_CONFIRMED
	STATE_FAILED
	// STATE_SKIPPED is an entity never submitted, because its parent failed
	// or it was filtered out.
	STATE_SKIPPED
	// STATE_REUSED is an entity a previous run already created.
	STATE_REUSED
)

func (s State) String() string {
	switch s {
	case STATE_PENDING:
		return "pending"
	case STATE_SUBMITTED:
		return "submitted"
	case STATE_CONFIRMED:
		return "confirmed"
	case STATE_FAILED:
		return "failed"
	case STATE_SKIPPED:
		return "skipped"
	case STATE_REUSED:
		return "reused"
	}
	return "unknown"
}

var transitions = map[State][]State{
	STATE_PENDING:   {STATE_SUBMITTED, STATE_SKIPPED, STATE_REUSED},
	STATE_SUBMITTED: {STATE_CONFIRMED, STATE_FAILED},
}

// Event is an entity reaching a final state.
type Event struct {
	Kind          forum.Kind
	EntityID      string
	SourceKey     string
	State         State
	DestinationID int64
	Reason        string
}

// entity tracks one snapshot entity through the import.
type entity struct {
	kind  forum.Kind
	id    string
	key   string
	state State
}

func newEntity(kind forum.Kind, id, key string) *entity {
	return &entity{kind: kind, id: id, key: key, state: STATE_PENDING}
}

func (e *entity) to(next State) {
	assert.True(
		slices.Contains(transitions[e.state], next),
		"%s %s: illegal transition %s -> %s", e.kind, e.id, e.state, next,
	)
	e.state = next
}
