package bitdb

import (
	"fmt"
	"sort"

	"github.com/openfpga-tools/bitdb/internal/cram"
)

// WordSettingBits is a named multi-bit setting, such as a LUT
// initialisation word. Bits holds one group per logical bit position,
// in order of bit significance; Defval is the tile's power-up value and
// must have the same length.
type WordSettingBits struct {
	Name   string
	Bits   []BitGroup
	Defval []bool
}

// Value reads the word out of the tile, evaluating each position's
// group independently. A result equal to Defval returns ok=false: the
// setting is at its implicit default and need not be emitted.
//
// If cov is non-nil every position's bits are added to it.
func (w *WordSettingBits) Value(tile cram.View, cov BitSet) (value []bool, ok bool, err error) {
	value = make([]bool, len(w.Bits))
	atDefault := true
	for i, g := range w.Bits {
		if cov != nil {
			g.AddCoverage(cov)
		}
		value[i] = g.Match(tile)
		if value[i] != w.Defval[i] {
			atDefault = false
		}
	}
	if atDefault {
		return nil, false, nil
	}
	return value, true, nil
}

// SetValue writes the word into the tile, setting or clearing each
// position's group. The value length must equal the word's bit count.
func (w *WordSettingBits) SetValue(tile cram.View, value []bool) error {
	if len(value) != len(w.Bits) {
		return &Error{
			Code:   CodeShapeMismatch,
			Entry:  w.Name,
			Detail: fmt.Sprintf("value has %d bits, word has %d", len(value), len(w.Bits)),
		}
	}
	for i, g := range w.Bits {
		if value[i] {
			g.SetGroup(tile)
		} else {
			g.ClearGroup(tile)
		}
	}
	return nil
}

// Equal reports structural equality of two word settings.
func (w *WordSettingBits) Equal(other *WordSettingBits) bool {
	if w.Name != other.Name || len(w.Bits) != len(other.Bits) || len(w.Defval) != len(other.Defval) {
		return false
	}
	for i, g := range w.Bits {
		if !g.Equal(other.Bits[i]) {
			return false
		}
	}
	for i, d := range w.Defval {
		if d != other.Defval[i] {
			return false
		}
	}
	return true
}

func (w *WordSettingBits) clone() WordSettingBits {
	bits := make([]BitGroup, len(w.Bits))
	for i, g := range w.Bits {
		bits[i] = g.clone()
	}
	defval := make([]bool, len(w.Defval))
	copy(defval, w.Defval)
	return WordSettingBits{Name: w.Name, Bits: bits, Defval: defval}
}

// EnumSettingBits is a named setting with a finite set of textual
// options, such as an IO type. Each option is selected by its bit
// group; Defval, if non-empty, names the default option and must be a
// key of Options.
type EnumSettingBits struct {
	Name    string
	Options map[string]BitGroup
	Defval  string
}

// OptionNames returns the option names in sorted order.
func (e *EnumSettingBits) OptionNames() []string {
	names := make([]string, 0, len(e.Options))
	for name := range e.Options {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Value reads the enum out of the tile. Zero matching options returns
// ok=false: the setting is at its implicit state whether or not a
// default is declared. Exactly one match returns that option, unless it
// equals the declared default, in which case it also returns ok=false
// (default compaction). More than one match is an inconsistent-tile
// error.
//
// If cov is non-nil every option's bits are added to it.
func (e *EnumSettingBits) Value(tile cram.View, cov BitSet) (option string, ok bool, err error) {
	for _, name := range e.OptionNames() {
		g := e.Options[name]
		if cov != nil {
			g.AddCoverage(cov)
		}
		if g.Match(tile) {
			if ok {
				return "", false, inconsistentError(e.Name,
					fmt.Sprintf("both %q and %q match", option, name))
			}
			option = name
			ok = true
		}
	}
	if !ok || option == e.Defval {
		return "", false, nil
	}
	return option, true, nil
}

// SetValue configures the tile to the named option, setting its bits
// and clearing every other option's bits.
func (e *EnumSettingBits) SetValue(tile cram.View, option string) error {
	if _, exists := e.Options[option]; !exists {
		return notFoundError(e.Name, fmt.Sprintf("no option %q", option))
	}
	// Clear first so the chosen option's write wins on any shared cell.
	for name, g := range e.Options {
		if name != option {
			g.ClearGroup(tile)
		}
	}
	e.Options[option].SetGroup(tile)
	return nil
}

// Equal reports structural equality of two enum settings.
func (e *EnumSettingBits) Equal(other *EnumSettingBits) bool {
	if e.Name != other.Name || e.Defval != other.Defval || len(e.Options) != len(other.Options) {
		return false
	}
	for name, g := range e.Options {
		og, exists := other.Options[name]
		if !exists || !g.Equal(og) {
			return false
		}
	}
	return true
}

func (e *EnumSettingBits) clone() EnumSettingBits {
	options := make(map[string]BitGroup, len(e.Options))
	for name, g := range e.Options {
		options[name] = g.clone()
	}
	return EnumSettingBits{Name: e.Name, Options: options, Defval: e.Defval}
}
