package jtag

import (
	"log/slog"
	"strings"

	"github.com/OpenTraceLab/tapengine/pkg/bits"
	"github.com/OpenTraceLab/tapengine/pkg/tap"
)

type pathKey struct {
	from, to tap.State
}

// Engine is the high-level JTAG master. It turns register operations into
// state machine path lookups and Controller calls, keeping the logical TAP
// model in step with the physical one.
//
// An Engine is not safe for concurrent use; JTAG is strictly sequential.
// Independent TAPs need independent engines.
type Engine struct {
	ctrl    Controller
	fsm     *tap.StateMachine
	paths   map[pathKey]bits.Sequence
	log     *slog.Logger
	metrics *Metrics
	trst    bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for path synthesis traces.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics records engine activity into m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTRST makes Reset request the hardware TRST line.
func WithTRST(use bool) Option {
	return func(e *Engine) { e.trst = use }
}

// NewEngine builds an engine around ctrl with a fresh state machine.
func NewEngine(ctrl Controller, opts ...Option) *Engine {
	e := &Engine{
		ctrl:  ctrl,
		fsm:   tap.NewStateMachine(),
		paths: make(map[pathKey]bits.Sequence),
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With("component", "jtag.engine")
	return e
}

// FSM returns the state machine.
func (e *Engine) FSM() *tap.StateMachine {
	return e.fsm
}

// Controller returns the JTAG controller.
func (e *Engine) Controller() Controller {
	return e.ctrl
}

// State returns the current TAP state.
func (e *Engine) State() tap.State {
	return e.fsm.State()
}

// StateNames lists the names ChangeStateByName accepts.
func (e *Engine) StateNames() []string {
	states := tap.States()
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = s.String()
	}
	return names
}

// CacheLen returns the number of synthesized paths kept by the engine.
func (e *Engine) CacheLen() int {
	return len(e.paths)
}

// Reset resets the attached TAP controller, then the model. The caches are
// kept: they stay valid whatever the current state.
func (e *Engine) Reset() error {
	return e.ResetWith(e.trst)
}

// ResetWith is Reset with an explicit choice of the TRST line.
func (e *Engine) ResetWith(useTRST bool) error {
	if err := e.ctrl.TAPReset(useTRST); err != nil {
		return err
	}
	e.fsm.Reset()
	e.metrics.reset()
	return nil
}

// ChangeState moves the TAP to target.
func (e *Engine) ChangeState(target tap.State) error {
	key := pathKey{from: e.fsm.State(), to: target}
	events, ok := e.paths[key]
	e.metrics.pathLookup(ok)
	if !ok {
		path, err := e.fsm.FindPath(target)
		if err != nil {
			return err
		}
		events, err = tap.GetEvents(path)
		if err != nil {
			return err
		}
		e.log.Debug("new path", "from", key.from, "to", target, "states", pathString(path[1:]))
	}
	// The controller may consume what it is given; the cached sequence must
	// stay intact, so both consumers get their own copy.
	if err := e.ctrl.WriteTMS(events.Copy()); err != nil {
		return err
	}
	if !ok {
		e.paths[key] = events
	}
	e.fsm.HandleEvents(events.Copy())
	e.metrics.tms(len(events))
	return nil
}

// ChangeStateByName is ChangeState with a state name such as "shift_dr".
func (e *Engine) ChangeStateByName(name string) error {
	target, err := tap.ParseState(name)
	if err != nil {
		return err
	}
	return e.ChangeState(target)
}

// GoIdle moves the TAP to Run-Test/Idle.
func (e *Engine) GoIdle() error {
	return e.ChangeState(tap.StateRunTestIdle)
}

// Run moves the TAP to Run-Test/Idle.
func (e *Engine) Run() error {
	return e.ChangeState(tap.StateRunTestIdle)
}

// CaptureIR moves the TAP to Capture-IR.
func (e *Engine) CaptureIR() error {
	return e.ChangeState(tap.StateCaptureIR)
}

// CaptureDR moves the TAP to Capture-DR.
func (e *Engine) CaptureDR() error {
	return e.ChangeState(tap.StateCaptureDR)
}

// WriteIR shifts instruction into the instruction register and updates it.
func (e *Engine) WriteIR(instruction bits.Sequence) error {
	if err := e.ChangeState(tap.StateShiftIR); err != nil {
		return err
	}
	n := len(instruction)
	if err := e.ctrl.Write(instruction); err != nil {
		return err
	}
	e.metrics.data("in", n)
	return e.ChangeState(tap.StateUpdateIR)
}

// WriteDR shifts data into the selected data register and updates it.
func (e *Engine) WriteDR(data bits.Sequence) error {
	if err := e.ChangeState(tap.StateShiftDR); err != nil {
		return err
	}
	n := len(data)
	if err := e.ctrl.Write(data); err != nil {
		return err
	}
	e.metrics.data("in", n)
	return e.ChangeState(tap.StateUpdateDR)
}

// ReadDR shifts length bits out of the selected data register.
func (e *Engine) ReadDR(length int) (bits.Sequence, error) {
	if err := e.ChangeState(tap.StateShiftDR); err != nil {
		return nil, err
	}
	data, err := e.ctrl.Read(length)
	if err != nil {
		return nil, err
	}
	e.metrics.data("out", len(data))
	if err := e.ChangeState(tap.StateUpdateDR); err != nil {
		return nil, err
	}
	return data, nil
}

func pathString(path []tap.State) string {
	names := make([]string, len(path))
	for i, s := range path {
		names[i] = strings.ToUpper(s.String())
	}
	return strings.Join(names, ", ")
}
