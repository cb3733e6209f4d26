package jtag

import (
	"errors"
	"fmt"

	"github.com/OpenTraceLab/tapengine/pkg/bits"
	"github.com/OpenTraceLab/tapengine/pkg/tap"
)

// AdapterController drives an Adapter through the Controller capability.
//
// It follows the physical TAP by feeding every TMS bit it clocks through
// tap.NextState, which tells it whether a shift belongs to the instruction
// or the data register. The last TDI bit of a Write is held back and clocked
// together with the first TMS bit of the next WriteTMS, since the final data
// bit of a scan is shifted on the same edge that leaves the Shift state.
type AdapterController struct {
	adapter Adapter
	state   tap.State

	pending    bool
	hasPending bool
}

var _ Controller = (*AdapterController)(nil)

// NewAdapterController wraps adapter. The TAP is assumed to be in
// Test-Logic-Reset until the first reset says otherwise.
func NewAdapterController(adapter Adapter) *AdapterController {
	return &AdapterController{adapter: adapter, state: tap.StateTestLogicReset}
}

// Adapter returns the wrapped transport.
func (c *AdapterController) Adapter() Adapter {
	return c.adapter
}

// State reports the TAP state as followed from the clocked TMS bits.
func (c *AdapterController) State() tap.State {
	return c.state
}

// TAPReset resets the TAP, through nTRST when requested and supported,
// otherwise by clocking TMS high.
func (c *AdapterController) TAPReset(useTRST bool) error {
	trst := false
	if useTRST {
		info, err := c.adapter.Info()
		if err != nil && !errors.Is(err, ErrNotImplemented) {
			return err
		}
		trst = info.SupportsTRST
	}
	if err := c.adapter.ResetTAP(trst); err != nil {
		return err
	}
	c.state = tap.StateTestLogicReset
	c.hasPending = false
	return nil
}

// SystemReset pulses the target reset line.
func (c *AdapterController) SystemReset() error {
	return c.adapter.ResetSystem()
}

// Quit releases the adapter.
func (c *AdapterController) Quit() error {
	return c.adapter.Close()
}

// WriteTMS clocks the mode-select bits. A pending TDI bit from the previous
// Write goes out with the first of them.
func (c *AdapterController) WriteTMS(tms bits.Sequence) error {
	if len(tms) == 0 {
		return nil
	}
	tdi := make(bits.Sequence, len(tms))
	if c.hasPending {
		tdi[0] = c.pending
	}
	if _, err := c.shift(tms, tdi); err != nil {
		return err
	}
	c.hasPending = false
	for _, bit := range tms {
		c.state = tap.NextState(c.state, bit)
	}
	return nil
}

// Write shifts data into the register selected by the current Shift state.
func (c *AdapterController) Write(tdi bits.Sequence) error {
	if len(tdi) == 0 {
		return nil
	}
	if err := c.requireShift("write"); err != nil {
		return err
	}
	out := make(bits.Sequence, 0, len(tdi))
	if c.hasPending {
		out = append(out, c.pending)
	}
	out = append(out, tdi[:len(tdi)-1]...)
	if len(out) > 0 {
		if _, err := c.shift(make(bits.Sequence, len(out)), out); err != nil {
			return err
		}
	}
	c.pending = tdi[len(tdi)-1]
	c.hasPending = true
	return nil
}

// Read clocks n bits out of the register selected by the current Shift
// state, keeping TMS low so the TAP stays in place.
func (c *AdapterController) Read(n int) (bits.Sequence, error) {
	if n < 0 {
		return nil, fmt.Errorf("jtag: negative read length %d", n)
	}
	if n == 0 {
		return bits.Sequence{}, nil
	}
	if err := c.requireShift("read"); err != nil {
		return nil, err
	}
	skip := 0
	tdi := make(bits.Sequence, 0, n+1)
	if c.hasPending {
		tdi = append(tdi, c.pending)
		skip = 1
	}
	tdi = append(tdi, make(bits.Sequence, n)...)
	tdo, err := c.shift(make(bits.Sequence, len(tdi)), tdi)
	if err != nil {
		return nil, err
	}
	c.hasPending = false
	return tdo[skip:], nil
}

func (c *AdapterController) requireShift(op string) error {
	if c.state != tap.StateShiftDR && c.state != tap.StateShiftIR {
		return fmt.Errorf("jtag: %s in state %s, want a shift state", op, c.state)
	}
	return nil
}

func (c *AdapterController) shift(tms, tdi bits.Sequence) (bits.Sequence, error) {
	n := len(tms)
	var (
		tdo []byte
		err error
	)
	if regionOf(c.state) == ShiftRegionIR {
		tdo, err = c.adapter.ShiftIR(tms.Bytes(), tdi.Bytes(), n)
	} else {
		tdo, err = c.adapter.ShiftDR(tms.Bytes(), tdi.Bytes(), n)
	}
	if err != nil {
		return nil, err
	}
	if want := (n + 7) / 8; len(tdo) < want {
		return nil, fmt.Errorf("jtag: adapter returned %d TDO bytes for %d bits, want %d", len(tdo), n, want)
	}
	return bits.FromBytes(tdo, n), nil
}

// regionOf maps a TAP state to the register column of the state diagram it
// belongs to. Test-Logic-Reset and Run-Test/Idle count as DR.
func regionOf(state tap.State) ShiftRegion {
	if state.IsOf(tap.ModeIR) {
		return ShiftRegionIR
	}
	return ShiftRegionDR
}
