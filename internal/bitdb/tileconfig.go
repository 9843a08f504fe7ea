package bitdb

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// TileConfig is the structured configuration of one tile: an ordered
// collection of named setting assignments. Only settings that deviate
// from the tile's default state appear, so configs stay compact and
// diffable.
//
// Unknowns records set cells the database cannot explain. Decoding
// produces them so fuzzing can spot undocumented bits; encoding sets
// them verbatim.
type TileConfig struct {
	Arcs     []ConfigArc
	Words    []ConfigWord
	Enums    []ConfigEnum
	Unknowns []ConfigUnknown
}

// ConfigArc assigns a driver to a mux sink.
type ConfigArc struct {
	Sink   string
	Source string
}

// ConfigWord assigns a value to a word setting.
type ConfigWord struct {
	Name  string
	Value []bool
}

// ConfigEnum assigns an option to an enum setting.
type ConfigEnum struct {
	Name  string
	Value string
}

// ConfigUnknown records a set cell with no database entry.
type ConfigUnknown struct {
	Frame int
	Bit   int
}

// Empty reports whether the config carries no assignments at all.
func (c *TileConfig) Empty() bool {
	return len(c.Arcs) == 0 && len(c.Words) == 0 && len(c.Enums) == 0 && len(c.Unknowns) == 0
}

// Equal reports structural equality of two configs, entry order
// included.
func (c *TileConfig) Equal(other *TileConfig) bool {
	if len(c.Arcs) != len(other.Arcs) || len(c.Words) != len(other.Words) ||
		len(c.Enums) != len(other.Enums) || len(c.Unknowns) != len(other.Unknowns) {
		return false
	}
	for i, a := range c.Arcs {
		if a != other.Arcs[i] {
			return false
		}
	}
	for i, w := range c.Words {
		if w.Name != other.Words[i].Name || !boolsEqual(w.Value, other.Words[i].Value) {
			return false
		}
	}
	for i, e := range c.Enums {
		if e != other.Enums[i] {
			return false
		}
	}
	for i, u := range c.Unknowns {
		if u != other.Unknowns[i] {
			return false
		}
	}
	return true
}

func boolsEqual(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// formatWordValue renders a bool vector as a 0/1 string, index i at
// character i.
func formatWordValue(value []bool) string {
	var sb strings.Builder
	for _, v := range value {
		if v {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// parseWordValue parses the 0/1 string form of a word value.
func parseWordValue(s string) ([]bool, error) {
	value := make([]bool, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '0':
			value[i] = false
		case '1':
			value[i] = true
		default:
			return nil, parseError("", 0, fmt.Sprintf("bad word value %q", s))
		}
	}
	return value, nil
}

// WriteTo renders the config in its textual form, one assignment per
// line.
func (c *TileConfig) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	for _, a := range c.Arcs {
		fmt.Fprintf(&sb, "arc: %s %s\n", a.Sink, a.Source)
	}
	for _, word := range c.Words {
		fmt.Fprintf(&sb, "word: %s %s\n", word.Name, formatWordValue(word.Value))
	}
	for _, e := range c.Enums {
		fmt.Fprintf(&sb, "enum: %s %s\n", e.Name, e.Value)
	}
	for _, u := range c.Unknowns {
		fmt.Fprintf(&sb, "unknown: F%dB%d\n", u.Frame, u.Bit)
	}
	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}

// String renders the config in its textual form.
func (c *TileConfig) String() string {
	var sb strings.Builder
	c.WriteTo(&sb)
	return sb.String()
}

// ParseTileConfig parses the textual form produced by WriteTo. Blank
// lines and # comments are skipped.
func ParseTileConfig(r io.Reader) (*TileConfig, error) {
	cfg := &TileConfig{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "arc:":
			if len(fields) != 3 {
				return nil, parseError("", lineNo, "arc line needs sink and source")
			}
			cfg.Arcs = append(cfg.Arcs, ConfigArc{
				Sink:   canonicalName(fields[1]),
				Source: canonicalName(fields[2]),
			})
		case "word:":
			if len(fields) != 3 {
				return nil, parseError("", lineNo, "word line needs name and value")
			}
			value, err := parseWordValue(fields[2])
			if err != nil {
				return nil, parseError("", lineNo, fmt.Sprintf("word %s: bad value %q", fields[1], fields[2]))
			}
			cfg.Words = append(cfg.Words, ConfigWord{Name: canonicalName(fields[1]), Value: value})
		case "enum:":
			if len(fields) != 3 {
				return nil, parseError("", lineNo, "enum line needs name and value")
			}
			cfg.Enums = append(cfg.Enums, ConfigEnum{
				Name:  canonicalName(fields[1]),
				Value: canonicalName(fields[2]),
			})
		case "unknown:":
			if len(fields) != 2 {
				return nil, parseError("", lineNo, "unknown line needs a bit token")
			}
			cb, err := ParseConfigBit(fields[1])
			if err != nil || cb.Inv {
				return nil, parseError("", lineNo, fmt.Sprintf("bad unknown bit %q", fields[1]))
			}
			cfg.Unknowns = append(cfg.Unknowns, ConfigUnknown{Frame: cb.Frame, Bit: cb.Bit})
		default:
			return nil, parseError("", lineNo, fmt.Sprintf("unknown config line %q", fields[0]))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read tile config: %w", err)
	}
	return cfg, nil
}
