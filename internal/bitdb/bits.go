package bitdb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/openfpga-tools/bitdb/internal/cram"
)

// ConfigBit identifies one physical configuration cell inside a tile,
// given by its frame index and bit offset, plus a polarity flag. The
// logical value of the bit is the physical cell value XOR Inv.
//
// ConfigBit is a comparable value type: equality and map-key hashing are
// structural on (Frame, Bit, Inv). Two bits with the same coordinates
// but opposite polarity are distinct identifiers for the same cell.
type ConfigBit struct {
	Frame int
	Bit   int
	Inv   bool
}

// String renders the bit in its textual form: an optional "!" (present
// iff inverted) followed by "F<frame>B<bit>".
func (b ConfigBit) String() string {
	if b.Inv {
		return fmt.Sprintf("!F%dB%d", b.Frame, b.Bit)
	}
	return fmt.Sprintf("F%dB%d", b.Frame, b.Bit)
}

// ParseConfigBit parses the textual form produced by String.
func ParseConfigBit(token string) (ConfigBit, error) {
	var cb ConfigBit
	s := token
	if strings.HasPrefix(s, "!") {
		cb.Inv = true
		s = s[1:]
	}
	if !strings.HasPrefix(s, "F") {
		return ConfigBit{}, parseError("", 0, fmt.Sprintf("bad config bit token %q", token))
	}
	rest := s[1:]
	bIdx := strings.IndexByte(rest, 'B')
	if bIdx < 0 {
		return ConfigBit{}, parseError("", 0, fmt.Sprintf("bad config bit token %q", token))
	}
	frame, err := strconv.Atoi(rest[:bIdx])
	if err != nil || frame < 0 {
		return ConfigBit{}, parseError("", 0, fmt.Sprintf("bad frame in config bit token %q", token))
	}
	bit, err := strconv.Atoi(rest[bIdx+1:])
	if err != nil || bit < 0 {
		return ConfigBit{}, parseError("", 0, fmt.Sprintf("bad bit in config bit token %q", token))
	}
	cb.Frame = frame
	cb.Bit = bit
	return cb, nil
}

// BitSet is a coverage set of configuration bits. Map keys give the
// structural hash and equality ConfigBit requires, so groups that share
// coordinates deduplicate by value, not by instance.
type BitSet map[ConfigBit]struct{}

// NewBitSet returns an empty coverage set.
func NewBitSet() BitSet { return make(BitSet) }

// Add inserts a bit into the set.
func (s BitSet) Add(b ConfigBit) { s[b] = struct{}{} }

// Contains reports whether the set holds b.
func (s BitSet) Contains(b ConfigBit) bool {
	_, ok := s[b]
	return ok
}

// ContainsCell reports whether the set holds a bit addressing the
// physical cell at (frame, bit), regardless of polarity.
func (s BitSet) ContainsCell(frame, bit int) bool {
	if _, ok := s[ConfigBit{Frame: frame, Bit: bit}]; ok {
		return true
	}
	_, ok := s[ConfigBit{Frame: frame, Bit: bit, Inv: true}]
	return ok
}

// BitGroup is an ordered list of configuration bits that together
// correspond to one setting. It reads as the AND of its members'
// logical values.
type BitGroup struct {
	Bits []ConfigBit
}

// Match reports whether every member bit's logical value reads true in
// the tile.
func (g BitGroup) Match(tile cram.View) bool {
	for _, b := range g.Bits {
		if tile.Bit(b.Frame, b.Bit) == b.Inv {
			return false
		}
	}
	return true
}

// SetGroup writes, for each member, the physical value that makes its
// logical value true: 1 unless the bit is inverted.
func (g BitGroup) SetGroup(tile cram.View) {
	for _, b := range g.Bits {
		tile.SetBit(b.Frame, b.Bit, !b.Inv)
	}
}

// ClearGroup writes the complementary physical values.
func (g BitGroup) ClearGroup(tile cram.View) {
	for _, b := range g.Bits {
		tile.SetBit(b.Frame, b.Bit, b.Inv)
	}
}

// AddCoverage inserts every member bit into the coverage set. Fuzzing
// uses the set to tell cells explained by the database apart from
// undocumented ones.
func (g BitGroup) AddCoverage(known BitSet) {
	for _, b := range g.Bits {
		known.Add(b)
	}
}

// Equal reports structural equality of two groups, member order
// included.
func (g BitGroup) Equal(other BitGroup) bool {
	if len(g.Bits) != len(other.Bits) {
		return false
	}
	for i, b := range g.Bits {
		if b != other.Bits[i] {
			return false
		}
	}
	return true
}

// String renders the group as its members in order, space-separated.
func (g BitGroup) String() string {
	tokens := make([]string, len(g.Bits))
	for i, b := range g.Bits {
		tokens[i] = b.String()
	}
	return strings.Join(tokens, " ")
}

// ParseBitGroup parses a whitespace-separated run of config bit tokens,
// such as one line of a database entry body.
func ParseBitGroup(s string) (BitGroup, error) {
	var g BitGroup
	for _, token := range strings.Fields(s) {
		b, err := ParseConfigBit(token)
		if err != nil {
			return BitGroup{}, err
		}
		g.Bits = append(g.Bits, b)
	}
	return g, nil
}

func (g BitGroup) clone() BitGroup {
	if g.Bits == nil {
		return BitGroup{}
	}
	bits := make([]ConfigBit, len(g.Bits))
	copy(bits, g.Bits)
	return BitGroup{Bits: bits}
}
