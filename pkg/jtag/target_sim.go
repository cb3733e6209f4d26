package jtag

import (
	"fmt"

	"github.com/OpenTraceLab/tapengine/pkg/bits"
	"github.com/OpenTraceLab/tapengine/pkg/tap"
)

// SimTarget emulates a single JTAG device one TCK cycle at a time. It keeps
// its own TAP controller, an instruction register and three data registers:
// IDCODE, BYPASS and a user register selected by UserInstruction.
//
// Attach it to a SimAdapter to get a bit-accurate simulated chain of one.
type SimTarget struct {
	IRLength        int
	IDCode          uint32
	UserInstruction uint64
	UserLength      int

	state   tap.State
	ir      uint64
	irShift bits.Sequence
	drShift bits.Sequence
	user    bits.Sequence
}

// NewSimTarget returns a device in Test-Logic-Reset with IDCODE selected.
func NewSimTarget(irLength int, idcode uint32) *SimTarget {
	t := &SimTarget{
		IRLength:        irLength,
		IDCode:          idcode,
		UserInstruction: 0x2,
		UserLength:      32,
	}
	t.Reset()
	return t
}

// Attach routes the adapter's shift and reset requests to the target.
func (t *SimTarget) Attach(sim *SimAdapter) {
	sim.OnShift = t.Shift
	sim.OnReset = func(bool) { t.Reset() }
}

// Reset forces Test-Logic-Reset, which selects IDCODE.
func (t *SimTarget) Reset() {
	t.state = tap.StateTestLogicReset
	t.ir = InstructionIDCode
}

// State returns the target's own view of its TAP state.
func (t *SimTarget) State() tap.State {
	return t.state
}

// Instruction returns the latched instruction register value.
func (t *SimTarget) Instruction() uint64 {
	return t.ir
}

// UserRegister returns the last value latched into the user register.
func (t *SimTarget) UserRegister() bits.Sequence {
	return t.user.Copy()
}

// Shift implements ShiftHook. The region reported by the adapter is ignored:
// the target follows TMS itself.
func (t *SimTarget) Shift(_ ShiftRegion, tms, tdi []byte, n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("jtag: bits must be positive, got %d", n)
	}
	tmsBits := bits.FromBytes(tms, n)
	tdiBits := bits.FromBytes(tdi, n)
	tdo := make(bits.Sequence, n)
	for i := 0; i < n; i++ {
		tdo[i] = t.Clock(tmsBits[i], tdiBits[i])
	}
	return tdo.Bytes(), nil
}

// Clock applies one TCK cycle and returns the TDO value driven during it.
func (t *SimTarget) Clock(tms, tdi bool) bool {
	tdo := false
	switch t.state {
	case tap.StateCaptureIR:
		// IEEE 1149.1 requires the two least significant bits to capture 01.
		t.irShift = bits.FromUint(0x1, t.IRLength)
	case tap.StateShiftIR:
		tdo = shiftThrough(&t.irShift, tdi)
	case tap.StateCaptureDR:
		t.drShift = t.captureDR()
	case tap.StateShiftDR:
		tdo = shiftThrough(&t.drShift, tdi)
	}

	t.state = tap.NextState(t.state, tms)

	switch t.state {
	case tap.StateTestLogicReset:
		t.ir = InstructionIDCode
	case tap.StateUpdateIR:
		if v, err := t.irShift.Uint64(); err == nil {
			t.ir = v
		}
	case tap.StateUpdateDR:
		if t.ir == t.UserInstruction {
			t.user = t.drShift.Copy()
		}
	}
	return tdo
}

func (t *SimTarget) captureDR() bits.Sequence {
	switch t.ir {
	case InstructionIDCode:
		return bits.FromUint(uint64(t.IDCode), 32)
	case t.UserInstruction:
		if len(t.user) == t.UserLength {
			return t.user.Copy()
		}
		return make(bits.Sequence, t.UserLength)
	default:
		// BYPASS and every unknown instruction select the 1-bit bypass
		// register, which captures 0.
		return make(bits.Sequence, 1)
	}
}

// shiftThrough moves reg one position towards TDO, feeding tdi in at the far
// end, and returns the bit that fell out.
func shiftThrough(reg *bits.Sequence, tdi bool) bool {
	r := *reg
	if len(r) == 0 {
		return false
	}
	out := r[0]
	copy(r, r[1:])
	r[len(r)-1] = tdi
	return out
}
