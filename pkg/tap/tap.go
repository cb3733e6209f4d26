// Package tap models the IEEE 1149.1 Test Access Port controller: the sixteen
// controller states, the TMS-driven transitions between them, and a state
// machine that synthesizes and replays TMS sequences. It performs no I/O.
package tap

import (
	"errors"
	"fmt"
	"strings"
)

// State represents one of the 16 defined IEEE 1149.1 TAP controller states.
type State uint8

const (
	StateTestLogicReset State = iota
	StateRunTestIdle
	StateSelectDRScan
	StateCaptureDR
	StateShiftDR
	StateExit1DR
	StatePauseDR
	StateExit2DR
	StateUpdateDR
	StateSelectIRScan
	StateCaptureIR
	StateShiftIR
	StateExit1IR
	StatePauseIR
	StateExit2IR
	StateUpdateIR

	numStates
)

// ErrUnknownState is returned when a state name does not match any TAP state.
var ErrUnknownState = errors.New("tap: unknown state")

var stateNames = [numStates]string{
	StateTestLogicReset: "test_logic_reset",
	StateRunTestIdle:    "run_test_idle",
	StateSelectDRScan:   "select_dr_scan",
	StateCaptureDR:      "capture_dr",
	StateShiftDR:        "shift_dr",
	StateExit1DR:        "exit_1_dr",
	StatePauseDR:        "pause_dr",
	StateExit2DR:        "exit_2_dr",
	StateUpdateDR:       "update_dr",
	StateSelectIRScan:   "select_ir_scan",
	StateCaptureIR:      "capture_ir",
	StateShiftIR:        "shift_ir",
	StateExit1IR:        "exit_1_ir",
	StatePauseIR:        "pause_ir",
	StateExit2IR:        "exit_2_ir",
	StateUpdateIR:       "update_ir",
}

// String returns the canonical snake_case name of the state.
func (s State) String() string {
	if s < numStates {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

// Valid reports whether s is one of the 16 TAP states.
func (s State) Valid() bool {
	return s < numStates
}

// ParseState resolves a canonical state name, ignoring case.
func ParseState(name string) (State, error) {
	wanted := strings.ToLower(strings.TrimSpace(name))
	for i, n := range stateNames {
		if n == wanted {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownState, name)
}

// States returns every TAP state in declaration order.
func States() []State {
	out := make([]State, numStates)
	for i := range out {
		out[i] = State(i)
	}
	return out
}

// transitions is indexed by state, then by TMS value (0, 1).
var transitions = [numStates][2]State{
	StateTestLogicReset: {StateRunTestIdle, StateTestLogicReset},
	StateRunTestIdle:    {StateRunTestIdle, StateSelectDRScan},
	StateSelectDRScan:   {StateCaptureDR, StateSelectIRScan},
	StateCaptureDR:      {StateShiftDR, StateExit1DR},
	StateShiftDR:        {StateShiftDR, StateExit1DR},
	StateExit1DR:        {StatePauseDR, StateUpdateDR},
	StatePauseDR:        {StatePauseDR, StateExit2DR},
	StateExit2DR:        {StateShiftDR, StateUpdateDR},
	StateUpdateDR:       {StateRunTestIdle, StateSelectDRScan},
	StateSelectIRScan:   {StateCaptureIR, StateTestLogicReset},
	StateCaptureIR:      {StateShiftIR, StateExit1IR},
	StateShiftIR:        {StateShiftIR, StateExit1IR},
	StateExit1IR:        {StatePauseIR, StateUpdateIR},
	StatePauseIR:        {StatePauseIR, StateExit2IR},
	StateExit2IR:        {StateShiftIR, StateUpdateIR},
	StateUpdateIR:       {StateRunTestIdle, StateSelectDRScan},
}

// Exits returns the state reached from s when TCK is clocked with the given
// TMS value.
func (s State) Exits(event bool) State {
	return NextState(s, event)
}

// NextState returns the next TAP state after clocking TCK with the provided TMS
// value. It panics if an invalid state is supplied, which should never happen
// when interacting through the exported API.
func NextState(current State, tms bool) State {
	if !current.Valid() {
		panic(fmt.Sprintf("tap: unhandled state %d", current))
	}
	if tms {
		return transitions[current][1]
	}
	return transitions[current][0]
}

// Mode is a set of categories a state belongs to. Modes classify states; they
// never influence transitions.
type Mode uint8

const (
	ModeReset Mode = 1 << iota
	ModeIdle
	ModeDR
	ModeIR
	ModeShift
	ModeCapture
	ModePause
	ModeUpdate
)

var modeNames = []struct {
	mode Mode
	name string
}{
	{ModeReset, "reset"},
	{ModeIdle, "idle"},
	{ModeDR, "dr"},
	{ModeIR, "ir"},
	{ModeShift, "shift"},
	{ModeCapture, "capture"},
	{ModePause, "pause"},
	{ModeUpdate, "update"},
}

// String lists the member categories separated by '|'.
func (m Mode) String() string {
	var parts []string
	for _, mn := range modeNames {
		if m&mn.mode != 0 {
			parts = append(parts, mn.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseMode resolves a single category name.
func ParseMode(name string) (Mode, error) {
	wanted := strings.ToLower(strings.TrimSpace(name))
	for _, mn := range modeNames {
		if mn.name == wanted {
			return mn.mode, nil
		}
	}
	return 0, fmt.Errorf("tap: unknown mode %q", name)
}

var stateModes = [numStates]Mode{
	StateTestLogicReset: ModeReset | ModeIdle,
	StateRunTestIdle:    ModeIdle,
	StateSelectDRScan:   ModeDR,
	StateCaptureDR:      ModeDR | ModeShift | ModeCapture,
	StateShiftDR:        ModeDR | ModeShift,
	StateExit1DR:        ModeDR | ModeUpdate | ModePause,
	StatePauseDR:        ModeDR | ModePause,
	StateExit2DR:        ModeDR | ModeShift | ModeUpdate,
	StateUpdateDR:       ModeDR | ModeIdle,
	StateSelectIRScan:   ModeIR,
	StateCaptureIR:      ModeIR | ModeShift | ModeCapture,
	StateShiftIR:        ModeIR | ModeShift,
	StateExit1IR:        ModeIR | ModeUpdate | ModePause,
	StatePauseIR:        ModeIR | ModePause,
	StateExit2IR:        ModeIR | ModeShift | ModeUpdate,
	StateUpdateIR:       ModeIR | ModeIdle,
}

// Modes returns the categories of the state.
func (s State) Modes() Mode {
	if !s.Valid() {
		return 0
	}
	return stateModes[s]
}

// IsOf reports whether the state belongs to every category in mode.
func (s State) IsOf(mode Mode) bool {
	return mode != 0 && s.Modes()&mode == mode
}
