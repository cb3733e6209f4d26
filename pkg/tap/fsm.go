package tap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/OpenTraceLab/tapengine/pkg/bits"
)

var (
	// ErrNoPath means no route exists between two states. On the standard TAP
	// graph this signals an internal inconsistency.
	ErrNoPath = errors.New("tap: no path")
	// ErrInvalidPath means a state sequence contains a pair of states that are
	// not connected by a single transition.
	ErrInvalidPath = errors.New("tap: invalid path")
)

// Sequence captures the TMS drive pattern and the sequence of states that result
// from applying that pattern to the TAP controller.
type Sequence struct {
	TMS    bits.Sequence
	States []State
}

// String renders the visited states, e.g. "run_test_idle -> select_dr_scan".
func (s Sequence) String() string {
	names := make([]string, len(s.States))
	for i, st := range s.States {
		names[i] = st.String()
	}
	return strings.Join(names, " -> ")
}

type transit struct {
	from  State
	count int
	value string
}

// StateMachine tracks the TAP controller state locally. It does not perform any
// I/O; instead it produces the sequences of TMS bits needed so a hardware
// adapter can be instructed separately.
//
// A StateMachine is not safe for concurrent use.
type StateMachine struct {
	state State
	// replays memoizes HandleEvents; a key always yields the same state so
	// entries are never evicted.
	replays map[transit]State
}

// NewStateMachine creates a TAP state machine initialized to Test-Logic-Reset.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		state:   StateTestLogicReset,
		replays: make(map[transit]State),
	}
}

// State reports the current TAP state tracked by the machine.
func (m *StateMachine) State() State {
	return m.state
}

// StateOf reports whether the current state belongs to mode.
func (m *StateMachine) StateOf(mode Mode) bool {
	return m.state.IsOf(mode)
}

// Reset forces the machine into Test-Logic-Reset. It models a reset pulse
// and does not walk the graph.
func (m *StateMachine) Reset() {
	m.state = StateTestLogicReset
}

// Clock advances the machine one TCK cycle with the provided TMS bit and
// returns the new state.
func (m *StateMachine) Clock(tms bool) State {
	m.state = NextState(m.state, tms)
	return m.state
}

// HandleEvents replays a TMS sequence from the current state.
func (m *StateMachine) HandleEvents(events bits.Sequence) {
	if len(events) == 0 {
		return
	}
	key := transit{from: m.state, count: len(events), value: events.Key()}
	if next, ok := m.replays[key]; ok {
		m.state = next
		return
	}
	for _, event := range events {
		m.state = NextState(m.state, event)
	}
	m.replays[key] = m.state
}

// CacheLen returns the number of memoized replays.
func (m *StateMachine) CacheLen() int {
	return len(m.replays)
}

// FindPath returns the shortest state sequence from the current state to
// target, both ends included.
func (m *StateMachine) FindPath(target State) ([]State, error) {
	return FindPathFrom(m.state, target)
}

// FindPathFrom is FindPath with an explicit source state.
func (m *StateMachine) FindPathFrom(source, target State) ([]State, error) {
	return FindPathFrom(source, target)
}

// Plan computes the path and TMS bits needed to reach target without moving
// the machine.
func (m *StateMachine) Plan(target State) (Sequence, error) {
	path, err := m.FindPath(target)
	if err != nil {
		return Sequence{}, err
	}
	tms, err := GetEvents(path)
	if err != nil {
		return Sequence{}, err
	}
	return Sequence{TMS: tms, States: path}, nil
}

// FindPathFrom enumerates simple paths depth-first, taking the TMS=0 edge
// before the TMS=1 edge and skipping self-loops and revisits. The shortest
// path wins; among equally short paths the first one discovered is kept.
func FindPathFrom(source, target State) ([]State, error) {
	if !source.Valid() {
		return nil, fmt.Errorf("tap: invalid start state %d", source)
	}
	if !target.Valid() {
		return nil, fmt.Errorf("tap: invalid target state %d", target)
	}
	if source == target {
		return []State{source}, nil
	}

	var (
		best    []State
		onPath  [numStates]bool
		current = make([]State, 0, numStates)
	)

	var walk func(state State)
	walk = func(state State) {
		current = append(current, state)
		defer func() { current = current[:len(current)-1] }()

		if state == target {
			if best == nil || len(current) < len(best) {
				best = append([]State(nil), current...)
			}
			return
		}
		// Anything reached from here is at least one state longer, so it
		// can only tie or lose against best.
		if best != nil && len(current)+1 >= len(best) {
			return
		}

		onPath[state] = true
		defer func() { onPath[state] = false }()

		for _, next := range transitions[state] {
			if next == state || onPath[next] {
				continue
			}
			walk(next)
		}
	}
	walk(source)

	if best == nil {
		return nil, fmt.Errorf("%w from %s to %s", ErrNoPath, source, target)
	}
	return best, nil
}

// GetEvents converts a state path into the TMS sequence that walks it.
func GetEvents(path []State) (bits.Sequence, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	events := make(bits.Sequence, 0, len(path)-1)
	for i := 1; i < len(path); i++ {
		src, dst := path[i-1], path[i]
		if !src.Valid() || !dst.Valid() {
			return nil, fmt.Errorf("%w: invalid state in path", ErrInvalidPath)
		}
		for epos, next := range transitions[src] {
			if next == dst {
				events = append(events, epos == 1)
				break
			}
		}
	}
	if len(events) != len(path)-1 {
		return nil, fmt.Errorf("%w: %d transitions for %d states", ErrInvalidPath, len(events), len(path))
	}
	return events, nil
}
