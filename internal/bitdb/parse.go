package bitdb

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Database text format. One entry per blank-line-separated block:
//
//	.mux <sink>
//	<source> <bitgroup>            one line per arc
//
//	.config <name> <defval 0/1 string, index i = bit position i>
//	<bitgroup>                     one line per bit position
//
//	.config_enum <name> [<default option>]
//	<option> <bitgroup>            one line per option
//
// Lines starting with # are comments. The binding contract is the
// round-trip law: parsing the output of writeTo yields an equal
// database.

// Entry type keywords.
const (
	kwMux  = ".mux"
	kwWord = ".config"
	kwEnum = ".config_enum"
)

// canonicalName NFC-normalizes a sink, setting, or option name. Names
// arrive from external netlists; normalizing keeps map keys canonical
// so the same name cannot appear under two Unicode representations.
func canonicalName(name string) string {
	return norm.NFC.String(name)
}

// entryBlock is one keyword-led block of non-blank lines.
type entryBlock struct {
	keyword string
	header  []string // header tokens after the keyword
	body    []string // following lines, one per arc/position/option
	line    int      // line number of the header, for errors
}

// scanBlocks splits the input into entry blocks, dropping comments.
func scanBlocks(r io.Reader, file string) ([]entryBlock, error) {
	var blocks []entryBlock
	var current *entryBlock
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "#") {
			continue
		}
		if line == "" {
			if current != nil {
				blocks = append(blocks, *current)
				current = nil
			}
			continue
		}
		if strings.HasPrefix(line, ".") {
			if current != nil {
				blocks = append(blocks, *current)
			}
			fields := strings.Fields(line)
			current = &entryBlock{keyword: fields[0], header: fields[1:], line: lineNo}
			continue
		}
		if current == nil {
			return nil, parseError(file, lineNo, fmt.Sprintf("line %q outside any entry", line))
		}
		current.body = append(current.body, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read database %s: %w", file, err)
	}
	if current != nil {
		blocks = append(blocks, *current)
	}
	return blocks, nil
}

func parseMuxEntry(b entryBlock, file string) (MuxBits, error) {
	if len(b.header) != 1 {
		return MuxBits{}, parseError(file, b.line, ".mux needs exactly one sink name")
	}
	mux := MuxBits{Sink: canonicalName(b.header[0])}
	if len(b.body) == 0 {
		return MuxBits{}, parseError(file, b.line, fmt.Sprintf("mux %s has no arcs", mux.Sink))
	}
	for i, line := range b.body {
		fields := strings.Fields(line)
		source := canonicalName(fields[0])
		bits, err := ParseBitGroup(strings.Join(fields[1:], " "))
		if err != nil {
			return MuxBits{}, parseError(file, b.line+1+i,
				fmt.Sprintf("mux %s arc %s: %v", mux.Sink, source, err))
		}
		mux.Arcs = append(mux.Arcs, ArcData{Source: source, Sink: mux.Sink, Bits: bits})
	}
	return mux, nil
}

func parseWordEntry(b entryBlock, file string) (WordSettingBits, error) {
	if len(b.header) != 2 {
		return WordSettingBits{}, parseError(file, b.line, ".config needs a name and a default value")
	}
	word := WordSettingBits{Name: canonicalName(b.header[0])}
	defval, err := parseWordValue(b.header[1])
	if err != nil {
		return WordSettingBits{}, parseError(file, b.line,
			fmt.Sprintf("word %s: bad default %q", word.Name, b.header[1]))
	}
	word.Defval = defval
	if len(b.body) != len(defval) {
		return WordSettingBits{}, parseError(file, b.line,
			fmt.Sprintf("word %s: %d bit positions but default has %d bits", word.Name, len(b.body), len(defval)))
	}
	for i, line := range b.body {
		bits, err := ParseBitGroup(line)
		if err != nil {
			return WordSettingBits{}, parseError(file, b.line+1+i,
				fmt.Sprintf("word %s bit %d: %v", word.Name, i, err))
		}
		word.Bits = append(word.Bits, bits)
	}
	return word, nil
}

func parseEnumEntry(b entryBlock, file string) (EnumSettingBits, error) {
	if len(b.header) < 1 || len(b.header) > 2 {
		return EnumSettingBits{}, parseError(file, b.line, ".config_enum needs a name and an optional default")
	}
	enum := EnumSettingBits{
		Name:    canonicalName(b.header[0]),
		Options: make(map[string]BitGroup),
	}
	if len(b.header) == 2 {
		enum.Defval = canonicalName(b.header[1])
	}
	for i, line := range b.body {
		fields := strings.Fields(line)
		option := canonicalName(fields[0])
		bits, err := ParseBitGroup(strings.Join(fields[1:], " "))
		if err != nil {
			return EnumSettingBits{}, parseError(file, b.line+1+i,
				fmt.Sprintf("enum %s option %s: %v", enum.Name, option, err))
		}
		if _, dup := enum.Options[option]; dup {
			return EnumSettingBits{}, parseError(file, b.line+1+i,
				fmt.Sprintf("enum %s: duplicate option %s", enum.Name, option))
		}
		enum.Options[option] = bits
	}
	if enum.Defval != "" {
		if _, exists := enum.Options[enum.Defval]; !exists {
			return EnumSettingBits{}, parseError(file, b.line,
				fmt.Sprintf("enum %s: default %q is not an option", enum.Name, enum.Defval))
		}
	}
	return enum, nil
}

// parseEntries parses the whole text of one tile database into its
// entry maps. It does not lock; callers own synchronization.
func parseEntries(r io.Reader, file string) (map[string]MuxBits, map[string]WordSettingBits, map[string]EnumSettingBits, error) {
	blocks, err := scanBlocks(r, file)
	if err != nil {
		return nil, nil, nil, err
	}
	muxes := make(map[string]MuxBits)
	words := make(map[string]WordSettingBits)
	enums := make(map[string]EnumSettingBits)
	for _, b := range blocks {
		switch b.keyword {
		case kwMux:
			mux, err := parseMuxEntry(b, file)
			if err != nil {
				return nil, nil, nil, err
			}
			if _, dup := muxes[mux.Sink]; dup {
				return nil, nil, nil, parseError(file, b.line, fmt.Sprintf("duplicate mux %s", mux.Sink))
			}
			muxes[mux.Sink] = mux
		case kwWord:
			word, err := parseWordEntry(b, file)
			if err != nil {
				return nil, nil, nil, err
			}
			if _, dup := words[word.Name]; dup {
				return nil, nil, nil, parseError(file, b.line, fmt.Sprintf("duplicate word %s", word.Name))
			}
			words[word.Name] = word
		case kwEnum:
			enum, err := parseEnumEntry(b, file)
			if err != nil {
				return nil, nil, nil, err
			}
			if _, dup := enums[enum.Name]; dup {
				return nil, nil, nil, parseError(file, b.line, fmt.Sprintf("duplicate enum %s", enum.Name))
			}
			enums[enum.Name] = enum
		default:
			return nil, nil, nil, parseError(file, b.line, fmt.Sprintf("unknown entry keyword %q", b.keyword))
		}
	}
	return muxes, words, enums, nil
}

// String renders the mux as its database entry.
func (m *MuxBits) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", kwMux, m.Sink)
	for _, arc := range m.Arcs {
		sb.WriteString(arc.Source)
		if len(arc.Bits.Bits) > 0 {
			sb.WriteByte(' ')
			sb.WriteString(arc.Bits.String())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// String renders the word setting as its database entry.
func (w *WordSettingBits) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s %s\n", kwWord, w.Name, formatWordValue(w.Defval))
	for _, g := range w.Bits {
		sb.WriteString(g.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// String renders the enum setting as its database entry. Options are
// written in sorted order so output is deterministic.
func (e *EnumSettingBits) String() string {
	var sb strings.Builder
	sb.WriteString(kwEnum)
	sb.WriteByte(' ')
	sb.WriteString(e.Name)
	if e.Defval != "" {
		sb.WriteByte(' ')
		sb.WriteString(e.Defval)
	}
	sb.WriteByte('\n')
	for _, name := range e.OptionNames() {
		sb.WriteString(name)
		g := e.Options[name]
		if len(g.Bits) > 0 {
			sb.WriteByte(' ')
			sb.WriteString(g.String())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// writeEntries renders all entries in canonical (sorted, blank-line
// separated) form. It does not lock; callers own synchronization.
func writeEntries(w io.Writer, muxes map[string]MuxBits, words map[string]WordSettingBits, enums map[string]EnumSettingBits) error {
	var sb strings.Builder
	for _, sink := range sortedKeys(muxes) {
		mux := muxes[sink]
		sb.WriteString(mux.String())
		sb.WriteByte('\n')
	}
	for _, name := range sortedKeys(words) {
		word := words[name]
		sb.WriteString(word.String())
		sb.WriteByte('\n')
	}
	for _, name := range sortedKeys(enums) {
		enum := enums[name]
		sb.WriteString(enum.String())
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
