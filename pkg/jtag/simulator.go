package jtag

import "fmt"

// ShiftRegion identifies whether a shift operation targets the instruction or
// data register.
type ShiftRegion uint8

const (
	ShiftRegionIR ShiftRegion = iota
	ShiftRegionDR
)

func (r ShiftRegion) String() string {
	if r == ShiftRegionIR {
		return "IR"
	}
	return "DR"
}

// ShiftHook allows the simulator to emulate device-specific TDO behavior.
type ShiftHook func(region ShiftRegion, tms, tdi []byte, bits int) ([]byte, error)

// ResetHook is invoked on every ResetTAP request.
type ResetHook func(trst bool)

// ShiftOp captures a shift invocation for inspection within tests.
type ShiftOp struct {
	Region ShiftRegion
	TMS    []byte
	TDI    []byte
	Bits   int
}

// SimAdapter is an in-memory adapter useful for unit tests. It records every
// shift request and can optionally provide deterministic TDO data via OnShift.
type SimAdapter struct {
	InfoData AdapterInfo
	SpeedHz  int

	OnShift ShiftHook
	OnReset ResetHook

	shifts       []ShiftOp
	resets       int
	trstResets   int
	systemResets int
	closed       bool
}

// NewSimAdapter constructs a simulator configured with the provided AdapterInfo.
func NewSimAdapter(info AdapterInfo) *SimAdapter {
	return &SimAdapter{InfoData: info}
}

// LastShift returns a copy of the most recent shift request.
func (s *SimAdapter) LastShift() ShiftOp {
	if len(s.shifts) == 0 {
		return ShiftOp{}
	}
	return copyShift(s.shifts[len(s.shifts)-1])
}

// Shifts returns copies of all recorded shift requests, oldest first.
func (s *SimAdapter) Shifts() []ShiftOp {
	out := make([]ShiftOp, len(s.shifts))
	for i, op := range s.shifts {
		out[i] = copyShift(op)
	}
	return out
}

// ResetCounts reports how many TAP resets have been requested (total, and the
// subset that used nTRST).
func (s *SimAdapter) ResetCounts() (total, trst int) {
	return s.resets, s.trstResets
}

// SystemResets reports how many target resets have been requested.
func (s *SimAdapter) SystemResets() int {
	return s.systemResets
}

// Closed reports whether Close was called.
func (s *SimAdapter) Closed() bool {
	return s.closed
}

func (s *SimAdapter) Info() (AdapterInfo, error) {
	return s.InfoData, nil
}

func (s *SimAdapter) ShiftIR(tms, tdi []byte, bits int) ([]byte, error) {
	return s.shift(ShiftRegionIR, tms, tdi, bits)
}

func (s *SimAdapter) ShiftDR(tms, tdi []byte, bits int) ([]byte, error) {
	return s.shift(ShiftRegionDR, tms, tdi, bits)
}

func (s *SimAdapter) ResetTAP(trst bool) error {
	if s.closed {
		return errAdapterClosed
	}
	s.resets++
	if trst {
		s.trstResets++
	}
	if s.OnReset != nil {
		s.OnReset(trst)
	}
	return nil
}

func (s *SimAdapter) ResetSystem() error {
	if s.closed {
		return errAdapterClosed
	}
	s.systemResets++
	return nil
}

func (s *SimAdapter) SetSpeed(hz int) error {
	if hz <= 0 {
		return fmt.Errorf("jtag: invalid speed %dHz", hz)
	}
	s.SpeedHz = hz
	return nil
}

func (s *SimAdapter) Close() error {
	s.closed = true
	return nil
}

var errAdapterClosed = fmt.Errorf("jtag: simulator closed")

func (s *SimAdapter) shift(region ShiftRegion, tms, tdi []byte, bits int) ([]byte, error) {
	if s.closed {
		return nil, errAdapterClosed
	}
	if _, err := ValidateShiftBuffers(tms, tdi, bits); err != nil {
		return nil, err
	}

	s.shifts = append(s.shifts, copyShift(ShiftOp{
		Region: region,
		TMS:    tms,
		TDI:    tdi,
		Bits:   bits,
	}))

	if s.OnShift != nil {
		return s.OnShift(region, tms, tdi, bits)
	}

	// Default: echo TDI to TDO to keep tests predictable.
	required := (bits + 7) / 8
	tdo := make([]byte, required)
	copy(tdo, tdi)
	return tdo, nil
}

func copyShift(op ShiftOp) ShiftOp {
	return ShiftOp{
		Region: op.Region,
		TMS:    append([]byte(nil), op.TMS...),
		TDI:    append([]byte(nil), op.TDI...),
		Bits:   op.Bits,
	}
}
