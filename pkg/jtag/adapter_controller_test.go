package jtag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/tapengine/pkg/bits"
	"github.com/OpenTraceLab/tapengine/pkg/tap"
)

const testIDCode = 0x4BA00477

func newSimEngine(t *testing.T) (*Engine, *AdapterController, *SimAdapter, *SimTarget) {
	t.Helper()
	sim := NewSimAdapter(AdapterInfo{Name: "sim"})
	target := NewSimTarget(4, testIDCode)
	target.Attach(sim)
	ctrl := NewAdapterController(sim)
	eng := NewEngine(ctrl)
	require.NoError(t, eng.Reset())
	return eng, ctrl, sim, target
}

func TestAdapterControllerFollowsTarget(t *testing.T) {
	eng, ctrl, _, target := newSimEngine(t)

	for _, s := range tap.States() {
		require.NoError(t, eng.ChangeState(s))
		require.Equal(t, s, ctrl.State(), "controller view")
		require.Equal(t, s, target.State(), "target view")
	}
}

func TestAdapterControllerUserRegister(t *testing.T) {
	eng, _, _, target := newSimEngine(t)

	require.NoError(t, eng.WriteIR(bits.FromUint(0x2, 4)))
	assert.Equal(t, uint64(0x2), target.Instruction())

	data := mustParseBits(t, "0xDEADBEEF")
	require.NoError(t, eng.WriteDR(data))
	assert.True(t, target.UserRegister().Equal(data), "user register = %s", target.UserRegister())

	got, err := eng.ReadDR(32)
	require.NoError(t, err)
	v, err := got.Uint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0xDEADBEEF), v)
}

func TestAdapterControllerIRCapture(t *testing.T) {
	eng, ctrl, sim, _ := newSimEngine(t)

	require.NoError(t, eng.ChangeState(tap.StateShiftIR))
	got, err := ctrl.Read(4)
	require.NoError(t, err)
	assert.Equal(t, "1000", got.String())
	assert.Equal(t, ShiftRegionIR, sim.LastShift().Region)
}

func TestAdapterControllerHoldsLastBit(t *testing.T) {
	eng, ctrl, sim, _ := newSimEngine(t)
	require.NoError(t, eng.ChangeState(tap.StateShiftDR))

	require.NoError(t, ctrl.Write(mustParseBits(t, "101")))
	last := sim.LastShift()
	assert.Equal(t, 2, last.Bits)
	assert.Equal(t, []byte{0x00}, last.TMS)
	assert.Equal(t, []byte{0x01}, last.TDI)

	require.NoError(t, ctrl.WriteTMS(mustParseBits(t, "11")))
	last = sim.LastShift()
	assert.Equal(t, 2, last.Bits)
	assert.Equal(t, []byte{0x03}, last.TMS)
	assert.Equal(t, []byte{0x01}, last.TDI, "pending bit goes out with the first TMS bit")
	assert.Equal(t, tap.StateUpdateDR, ctrl.State())

	// Nothing is pending any more.
	require.NoError(t, ctrl.WriteTMS(mustParseBits(t, "0")))
	assert.Equal(t, []byte{0x00}, sim.LastShift().TDI)
}

func TestAdapterControllerSingleBitWrite(t *testing.T) {
	eng, ctrl, sim, _ := newSimEngine(t)
	require.NoError(t, eng.ChangeState(tap.StateShiftDR))
	before := len(sim.Shifts())

	require.NoError(t, ctrl.Write(bits.New(true)))
	assert.Len(t, sim.Shifts(), before, "a single bit stays pending")
}

func TestAdapterControllerRequiresShiftState(t *testing.T) {
	_, ctrl, _, _ := newSimEngine(t)

	require.Error(t, ctrl.Write(bits.New(true)))
	_, err := ctrl.Read(1)
	require.Error(t, err)
	_, err = ctrl.Read(-1)
	require.Error(t, err)

	got, err := ctrl.Read(0)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, ctrl.Write(nil))
	require.NoError(t, ctrl.WriteTMS(nil))
}

func TestAdapterControllerResets(t *testing.T) {
	sim := NewSimAdapter(AdapterInfo{})
	ctrl := NewAdapterController(sim)

	require.NoError(t, ctrl.TAPReset(true))
	total, trst := sim.ResetCounts()
	assert.Equal(t, 1, total)
	assert.Zero(t, trst, "adapter without TRST falls back to TMS")

	sim.InfoData.SupportsTRST = true
	require.NoError(t, ctrl.TAPReset(true))
	require.NoError(t, ctrl.TAPReset(false))
	total, trst = sim.ResetCounts()
	assert.Equal(t, 3, total)
	assert.Equal(t, 1, trst)

	require.NoError(t, ctrl.SystemReset())
	assert.Equal(t, 1, sim.SystemResets())

	require.NoError(t, ctrl.Quit())
	assert.True(t, sim.Closed())
	assert.Same(t, sim, ctrl.Adapter().(*SimAdapter))
}

func TestAdapterControllerPropagatesErrors(t *testing.T) {
	boom := errors.New("probe stalled")
	sim := NewSimAdapter(AdapterInfo{})
	sim.OnShift = func(ShiftRegion, []byte, []byte, int) ([]byte, error) {
		return nil, boom
	}
	ctrl := NewAdapterController(sim)
	eng := NewEngine(ctrl)

	require.ErrorIs(t, eng.ChangeState(tap.StateShiftDR), boom)
	assert.Equal(t, tap.StateTestLogicReset, ctrl.State())
	assert.Equal(t, tap.StateTestLogicReset, eng.State())
}

func TestAdapterControllerRejectsShortTDO(t *testing.T) {
	sim := NewSimAdapter(AdapterInfo{})
	sim.OnShift = func(_ ShiftRegion, _, _ []byte, n int) ([]byte, error) {
		return make([]byte, (n+7)/8-1), nil
	}
	ctrl := NewAdapterController(sim)
	eng := NewEngine(ctrl)

	// A path of at most eight clocks still needs one byte back.
	require.Error(t, eng.ChangeState(tap.StateShiftDR))
	assert.Equal(t, tap.StateTestLogicReset, eng.State())

	sim.OnShift = nil
	require.NoError(t, eng.ChangeState(tap.StateShiftDR))
	sim.OnShift = func(_ ShiftRegion, _, _ []byte, n int) ([]byte, error) {
		return make([]byte, (n+7)/8-1), nil
	}
	_, err := ctrl.Read(16)
	require.Error(t, err)
	_, err = eng.ReadDR(9)
	require.Error(t, err)
}

func TestScanIDCodes(t *testing.T) {
	eng, _, _, target := newSimEngine(t)

	// Leave a different instruction selected; the scan must reset it away.
	require.NoError(t, eng.WriteIR(bits.FromUint(0xF, 4)))

	codes, err := ScanIDCodes(eng, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint32{testIDCode}, codes)
	assert.Equal(t, tap.StateRunTestIdle, eng.State())
	assert.Equal(t, uint64(InstructionIDCode), target.Instruction())

	// Past the single device only the zeros shifted in come back.
	codes, err = ScanIDCodes(eng, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint32{testIDCode, 0}, codes)

	_, err = ScanIDCodes(eng, 0)
	require.Error(t, err)
}
