package script

import "github.com/alecthomas/participle/v2/lexer"

// Program is a parsed TAP script.
type Program struct {
	Statements []*Statement `@@*`
}

// Statement is one script command. Exactly one field is set.
type Statement struct {
	Pos lexer.Position

	Reset   *ResetStmt   `  @@`
	Idle    *IdleStmt    `| @@`
	State   *StateStmt   `| @@`
	Capture *CaptureStmt `| @@`
	Shift   *ShiftStmt   `| @@`
	Read    *ReadStmt    `| @@`
}

// ResetStmt: reset [trst]
type ResetStmt struct {
	TRST bool `"reset" @"trst"?`
}

// IdleStmt: idle
type IdleStmt struct {
	Keyword string `@"idle"`
}

// StateStmt: state <name>
type StateStmt struct {
	Name string `"state" @Ident`
}

// CaptureStmt: capture ir|dr
type CaptureStmt struct {
	Register string `"capture" @("ir" | "dr")`
}

// ShiftStmt writes a value through a register and updates it.
// Example: ir 0b0010, dr 0xDEADBEEF/32, dr 1011
type ShiftStmt struct {
	Register string `@("ir" | "dr")`
	Value    string `@(Bits | Int)`
}

// ReadStmt: read dr <length>
type ReadStmt struct {
	Register string `"read" @"dr"`
	Length   int    `@Int`
}
