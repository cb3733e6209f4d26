// Package bits provides ordered bit sequences as clocked onto the JTAG TMS,
// TDI and TDO lines.
//
// A Sequence is kept in transmission order: index 0 is the first bit clocked.
// Whenever a sequence is turned into an integer or packed into bytes, the
// first-transmitted bit is the least significant one, which is the order the
// adapters in this module put bits on the wire.
package bits

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrTooLong is returned when a sequence does not fit the requested integer.
var ErrTooLong = errors.New("bits: sequence longer than 64 bits")

// Sequence is an ordered list of bit values in transmission order.
type Sequence []bool

// New builds a sequence from the given values.
func New(values ...bool) Sequence {
	return append(Sequence(nil), values...)
}

// FromUint returns the width low-order bits of value, least significant bit
// first.
func FromUint(value uint64, width int) Sequence {
	if width <= 0 {
		return Sequence{}
	}
	out := make(Sequence, width)
	for i := 0; i < width && i < 64; i++ {
		out[i] = value&(1<<uint(i)) != 0
	}
	return out
}

// FromBytes unpacks n bits from buf, bit 0 of buf[0] first.
func FromBytes(buf []byte, n int) Sequence {
	if n <= 0 {
		return Sequence{}
	}
	out := make(Sequence, n)
	for i := 0; i < n; i++ {
		if i/8 >= len(buf) {
			break
		}
		out[i] = buf[i/8]&(1<<(uint(i)%8)) != 0
	}
	return out
}

// Parse decodes a textual bit sequence.
//
//	0b1010      binary number, one bit per digit, LSB transmitted first
//	0x1F        hex number, four bits per digit
//	0x1F/6      hex number truncated or zero-extended to 6 bits
//	1011        raw bits in transmission order
func Parse(s string) (Sequence, error) {
	text := strings.ReplaceAll(strings.TrimSpace(s), "_", "")
	if text == "" {
		return nil, fmt.Errorf("bits: empty literal")
	}

	body, widthText, hasWidth := strings.Cut(text, "/")
	width := -1
	if hasWidth {
		w, err := strconv.Atoi(widthText)
		if err != nil || w < 0 {
			return nil, fmt.Errorf("bits: invalid width in %q", s)
		}
		width = w
	}

	lower := strings.ToLower(body)
	switch {
	case strings.HasPrefix(lower, "0b"):
		digits := lower[2:]
		if width < 0 {
			width = len(digits)
		}
		return parseRadix(digits, 1, width, s)
	case strings.HasPrefix(lower, "0x"):
		digits := lower[2:]
		if width < 0 {
			width = 4 * len(digits)
		}
		return parseRadix(digits, 4, width, s)
	}

	if hasWidth {
		return nil, fmt.Errorf("bits: width only applies to 0b/0x literals: %q", s)
	}
	out := make(Sequence, 0, len(body))
	for _, r := range body {
		switch r {
		case '0':
			out = append(out, false)
		case '1':
			out = append(out, true)
		default:
			return nil, fmt.Errorf("bits: invalid digit %q in %q", r, s)
		}
	}
	return out, nil
}

// parseRadix reads digits as a big-endian number where every digit carries
// bitsPerDigit bits, and returns the width least significant bits.
func parseRadix(digits string, bitsPerDigit, width int, orig string) (Sequence, error) {
	if digits == "" {
		return nil, fmt.Errorf("bits: missing digits in %q", orig)
	}
	out := make(Sequence, width)
	pos := 0
	for i := len(digits) - 1; i >= 0; i-- {
		v, err := strconv.ParseUint(digits[i:i+1], 1<<uint(bitsPerDigit), 8)
		if err != nil {
			return nil, fmt.Errorf("bits: invalid digit %q in %q", digits[i], orig)
		}
		for b := 0; b < bitsPerDigit; b++ {
			if pos < width {
				out[pos] = v&(1<<uint(b)) != 0
			}
			pos++
		}
	}
	return out, nil
}

// Len returns the number of bits.
func (s Sequence) Len() int {
	return len(s)
}

// Copy returns an independent copy that can be handed to a consumer allowed
// to clobber it.
func (s Sequence) Copy() Sequence {
	return append(Sequence(nil), s...)
}

// Bytes packs the sequence, first bit into bit 0 of the first byte.
func (s Sequence) Bytes() []byte {
	if len(s) == 0 {
		return nil
	}
	buf := make([]byte, (len(s)+7)/8)
	for i, bit := range s {
		if bit {
			buf[i/8] |= 1 << (uint(i) % 8)
		}
	}
	return buf
}

// Uint64 returns the integer value of the sequence.
func (s Sequence) Uint64() (uint64, error) {
	if len(s) > 64 {
		return 0, ErrTooLong
	}
	var v uint64
	for i, bit := range s {
		if bit {
			v |= 1 << uint(i)
		}
	}
	return v, nil
}

// Key returns a compact comparable encoding of the sequence value. Together
// with Len it identifies the sequence exactly, whatever its length.
func (s Sequence) Key() string {
	return string(s.Bytes())
}

// Reversed returns a copy with the bit order inverted.
func (s Sequence) Reversed() Sequence {
	out := make(Sequence, len(s))
	for i, bit := range s {
		out[len(s)-1-i] = bit
	}
	return out
}

// Equal reports whether both sequences hold the same bits.
func (s Sequence) Equal(other Sequence) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// String renders the bits in transmission order.
func (s Sequence) String() string {
	var b strings.Builder
	b.Grow(len(s))
	for _, bit := range s {
		if bit {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}
