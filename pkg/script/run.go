package script

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/OpenTraceLab/tapengine/pkg/bits"
	"github.com/OpenTraceLab/tapengine/pkg/jtag"
)

// Result holds the bits returned by one read statement.
type Result struct {
	Pos  lexer.Position
	Bits bits.Sequence
}

// Run executes prog statement by statement and stops at the first failure.
// Results gathered before the failure are returned with the error.
func Run(eng *jtag.Engine, prog *Program) ([]Result, error) {
	var results []Result
	for _, stmt := range prog.Statements {
		data, err := execute(eng, stmt)
		if err != nil {
			return results, fmt.Errorf("%s: %w", position(stmt.Pos), err)
		}
		if data != nil {
			results = append(results, Result{Pos: stmt.Pos, Bits: data})
		}
	}
	return results, nil
}

func execute(eng *jtag.Engine, stmt *Statement) (bits.Sequence, error) {
	switch {
	case stmt.Reset != nil:
		return nil, eng.ResetWith(stmt.Reset.TRST)
	case stmt.Idle != nil:
		return nil, eng.GoIdle()
	case stmt.State != nil:
		return nil, eng.ChangeStateByName(strings.ToLower(stmt.State.Name))
	case stmt.Capture != nil:
		if isIR(stmt.Capture.Register) {
			return nil, eng.CaptureIR()
		}
		return nil, eng.CaptureDR()
	case stmt.Shift != nil:
		value, err := bits.Parse(stmt.Shift.Value)
		if err != nil {
			return nil, err
		}
		if isIR(stmt.Shift.Register) {
			return nil, eng.WriteIR(value)
		}
		return nil, eng.WriteDR(value)
	case stmt.Read != nil:
		if stmt.Read.Length <= 0 {
			return nil, fmt.Errorf("read length must be positive, got %d", stmt.Read.Length)
		}
		return eng.ReadDR(stmt.Read.Length)
	default:
		return nil, fmt.Errorf("empty statement")
	}
}

func isIR(register string) bool {
	return strings.EqualFold(register, "ir")
}

func position(pos lexer.Position) string {
	if pos.Filename == "" {
		return fmt.Sprintf("line %d", pos.Line)
	}
	return fmt.Sprintf("%s:%d", pos.Filename, pos.Line)
}
