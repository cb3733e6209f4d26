package jtag

import "github.com/OpenTraceLab/tapengine/pkg/bits"

// Common instruction register codes. They are provided for convenience only;
// devices define their own instruction sets and IR widths.
const (
	InstructionBypass = 0x0
	InstructionIDCode = 0x1
)

// Controller is the JTAG master capability the Engine drives. It is the only
// component that touches the outside world.
//
// WriteTMS and Write may consume the sequence they are given: an
// implementation is free to overwrite its elements. Callers that need to keep
// a sequence must pass a copy.
type Controller interface {
	// TAPReset resets the TAP controller, using the TRST line when useTRST
	// is set and the hardware provides one.
	TAPReset(useTRST bool) error
	// SystemReset resets the target device.
	SystemReset() error
	// Quit terminates the session.
	Quit() error
	// WriteTMS clocks the mode-select bits, first bit first.
	WriteTMS(tms bits.Sequence) error
	// Write clocks data bits into TDI while the TAP sits in a shift state.
	Write(tdi bits.Sequence) error
	// Read clocks n bits out of TDO and returns exactly n bits.
	Read(n int) (bits.Sequence, error)
}

// UnimplementedController fails every operation with ErrNotImplemented.
// Embed it in a partial Controller so that missing capabilities fail loudly
// instead of silently doing nothing.
type UnimplementedController struct{}

var _ Controller = UnimplementedController{}

func (UnimplementedController) TAPReset(bool) error             { return ErrNotImplemented }
func (UnimplementedController) SystemReset() error              { return ErrNotImplemented }
func (UnimplementedController) Quit() error                     { return ErrNotImplemented }
func (UnimplementedController) WriteTMS(bits.Sequence) error    { return ErrNotImplemented }
func (UnimplementedController) Write(bits.Sequence) error       { return ErrNotImplemented }
func (UnimplementedController) Read(int) (bits.Sequence, error) { return nil, ErrNotImplemented }
