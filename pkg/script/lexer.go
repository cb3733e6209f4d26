package script

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// Lexer tokenizes TAP scripts. Keywords are plain identifiers matched by the
// grammar, case-insensitively.
var Lexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Whitespace", Pattern: `\s+`},

	// 0b1010, 0x1F, 0x1F/6; must come before Int
	{Name: "Bits", Pattern: `0[bB][01_]+(/[0-9]+)?|0[xX][0-9a-fA-F_]+(/[0-9]+)?`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
})
