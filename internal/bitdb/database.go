package bitdb

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/openfpga-tools/bitdb/internal/cram"
)

// TileBitDatabase keeps track of what each bit in a tile does: every
// mux, word setting, and enum setting known for one tile type. Unlike
// the rest of the chip databases this one is mutable from within the
// tool, because fuzzing discovers and refines entries at runtime.
//
// All methods are safe for concurrent use. Reads take a shared lock;
// the Add* mutators take the exclusive lock. The dirty flag is tracked
// atomically so Save can short-circuit without locking at all.
//
// Instances are only constructed by a Registry, which guarantees one
// shared database per tile type so concurrent fuzz workers merge into
// the same state.
type TileBitDatabase struct {
	mu    sync.RWMutex
	dirty atomic.Bool

	path  string
	muxes map[string]MuxBits
	words map[string]WordSettingBits
	enums map[string]EnumSettingBits
}

// openTileBitDatabase loads a tile database from its backing file.
// Only the Registry calls this; everyone else shares its instances.
func openTileBitDatabase(path string) (*TileBitDatabase, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &Error{Code: CodeNotFound, File: path, Detail: "no database file"}
		}
		return nil, fmt.Errorf("open tile database: %w", err)
	}
	defer f.Close()

	muxes, words, enums, err := parseEntries(f, path)
	if err != nil {
		return nil, err
	}
	return &TileBitDatabase{path: path, muxes: muxes, words: words, enums: enums}, nil
}

// newEmptyDatabase returns a fresh database that will persist to path.
// The Registry uses it when a fuzz run starts a database from scratch.
func newEmptyDatabase(path string) *TileBitDatabase {
	return &TileBitDatabase{
		path:  path,
		muxes: make(map[string]MuxBits),
		words: make(map[string]WordSettingBits),
		enums: make(map[string]EnumSettingBits),
	}
}

// Sinks returns the sorted names of every mux sink in the database.
func (db *TileBitDatabase) Sinks() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return sortedKeys(db.muxes)
}

// MuxDataForSink returns a copy of the mux driving the given sink.
func (db *TileBitDatabase) MuxDataForSink(sink string) (MuxBits, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	mux, exists := db.muxes[canonicalName(sink)]
	if !exists {
		return MuxBits{}, notFoundError(sink, "no such mux sink")
	}
	return mux.clone(), nil
}

// SettingWords returns the sorted names of every word setting.
func (db *TileBitDatabase) SettingWords() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return sortedKeys(db.words)
}

// DataForSetword returns a copy of the named word setting.
func (db *TileBitDatabase) DataForSetword(name string) (WordSettingBits, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	word, exists := db.words[canonicalName(name)]
	if !exists {
		return WordSettingBits{}, notFoundError(name, "no such word setting")
	}
	return word.clone(), nil
}

// SettingEnums returns the sorted names of every enum setting.
func (db *TileBitDatabase) SettingEnums() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return sortedKeys(db.enums)
}

// DataForEnum returns a copy of the named enum setting.
func (db *TileBitDatabase) DataForEnum(name string) (EnumSettingBits, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	enum, exists := db.enums[canonicalName(name)]
	if !exists {
		return EnumSettingBits{}, notFoundError(name, "no such enum setting")
	}
	return enum.clone(), nil
}

// ConfigToTileCRAM writes a structured tile config into a raw tile
// view. Every entry dispatches to its mux, word, or enum; an entry the
// database has never heard of is an unknown-setting error.
func (db *TileBitDatabase) ConfigToTileCRAM(cfg *TileConfig, tile cram.View) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, arc := range cfg.Arcs {
		mux, exists := db.muxes[canonicalName(arc.Sink)]
		if !exists {
			return &Error{Code: CodeUnknownSetting, Entry: arc.Sink, Detail: "config names a mux the database lacks"}
		}
		if err := mux.SetDriver(tile, canonicalName(arc.Source)); err != nil {
			return err
		}
	}
	for _, word := range cfg.Words {
		wsb, exists := db.words[canonicalName(word.Name)]
		if !exists {
			return &Error{Code: CodeUnknownSetting, Entry: word.Name, Detail: "config names a word the database lacks"}
		}
		if err := wsb.SetValue(tile, word.Value); err != nil {
			return err
		}
	}
	for _, e := range cfg.Enums {
		esb, exists := db.enums[canonicalName(e.Name)]
		if !exists {
			return &Error{Code: CodeUnknownSetting, Entry: e.Name, Detail: "config names an enum the database lacks"}
		}
		if err := esb.SetValue(tile, canonicalName(e.Value)); err != nil {
			return err
		}
	}
	for _, u := range cfg.Unknowns {
		tile.SetBit(u.Frame, u.Bit, true)
	}
	return nil
}

// TileCRAMToConfig scans a raw tile view and reconstructs the
// structured config: every known mux, word, and enum is resolved, and
// only non-default values are emitted. Set cells no database entry
// explains come back as Unknowns, which is how fuzzing spots
// undocumented bits.
func (db *TileBitDatabase) TileCRAMToConfig(tile cram.View) (*TileConfig, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	cfg := &TileConfig{}
	coverage := NewBitSet()

	for _, sink := range sortedKeys(db.muxes) {
		mux := db.muxes[sink]
		driver, ok, err := mux.Driver(tile, coverage)
		if err != nil {
			return nil, err
		}
		if ok {
			cfg.Arcs = append(cfg.Arcs, ConfigArc{Sink: sink, Source: driver})
		}
	}
	for _, name := range sortedKeys(db.words) {
		word := db.words[name]
		value, ok, err := word.Value(tile, coverage)
		if err != nil {
			return nil, err
		}
		if ok {
			cfg.Words = append(cfg.Words, ConfigWord{Name: name, Value: value})
		}
	}
	for _, name := range sortedKeys(db.enums) {
		enum := db.enums[name]
		option, ok, err := enum.Value(tile, coverage)
		if err != nil {
			return nil, err
		}
		if ok {
			cfg.Enums = append(cfg.Enums, ConfigEnum{Name: name, Value: option})
		}
	}
	for f := 0; f < tile.Frames(); f++ {
		for b := 0; b < tile.FrameLength(); b++ {
			if tile.Bit(f, b) && !coverage.ContainsCell(f, b) {
				cfg.Unknowns = append(cfg.Unknowns, ConfigUnknown{Frame: f, Bit: b})
			}
		}
	}
	return cfg, nil
}

// AddMux inserts a mux, or merges it into the existing entry for the
// same sink: unseen arcs are appended, known arcs must carry the same
// bit group. A redefinition with different bits is a merge conflict.
func (db *TileBitDatabase) AddMux(mux MuxBits) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	sink := canonicalName(mux.Sink)
	existing, exists := db.muxes[sink]
	if !exists {
		fresh := mux.clone()
		fresh.Sink = sink
		for i := range fresh.Arcs {
			fresh.Arcs[i].Source = canonicalName(fresh.Arcs[i].Source)
			fresh.Arcs[i].Sink = sink
		}
		db.muxes[sink] = fresh
		db.dirty.Store(true)
		return nil
	}

	// Check every arc before touching the entry, so a conflict never
	// leaves a half-merged mux behind.
	var added []ArcData
	for _, arc := range mux.Arcs {
		source := canonicalName(arc.Source)
		if prior := existing.arcFor(source); prior != nil {
			if !prior.Bits.Equal(arc.Bits) {
				return &Error{
					Code:   CodeMergeConflict,
					Entry:  sink,
					Detail: fmt.Sprintf("arc from %q redefined with different bits", source),
				}
			}
			continue
		}
		added = append(added, ArcData{Source: source, Sink: sink, Bits: arc.Bits.clone()})
	}
	if len(added) > 0 {
		existing.Arcs = append(existing.Arcs, added...)
		db.muxes[sink] = existing
		db.dirty.Store(true)
	}
	return nil
}

// AddSettingWord inserts a word setting. Re-adding an identical word is
// a no-op; a redefinition with different bits or default is a merge
// conflict, since fuzzing must refine the database, not contradict it.
func (db *TileBitDatabase) AddSettingWord(word WordSettingBits) error {
	if len(word.Bits) != len(word.Defval) {
		return &Error{
			Code:   CodeShapeMismatch,
			Entry:  word.Name,
			Detail: fmt.Sprintf("%d bit positions but default has %d bits", len(word.Bits), len(word.Defval)),
		}
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	name := canonicalName(word.Name)
	if existing, exists := db.words[name]; exists {
		fresh := word
		fresh.Name = name
		if !existing.Equal(&fresh) {
			return &Error{Code: CodeMergeConflict, Entry: name, Detail: "word setting redefined"}
		}
		return nil
	}
	fresh := word.clone()
	fresh.Name = name
	db.words[name] = fresh
	db.dirty.Store(true)
	return nil
}

// AddSettingEnum inserts an enum setting, or merges it into the
// existing entry: unseen options are added, known options must carry
// the same bit group, and a default may be introduced where none was
// declared but never changed.
func (db *TileBitDatabase) AddSettingEnum(enum EnumSettingBits) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	name := canonicalName(enum.Name)
	existing, exists := db.enums[name]
	if !exists {
		fresh := EnumSettingBits{Name: name, Options: make(map[string]BitGroup, len(enum.Options))}
		for option, g := range enum.Options {
			fresh.Options[canonicalName(option)] = g.clone()
		}
		if enum.Defval != "" {
			fresh.Defval = canonicalName(enum.Defval)
			if _, declared := fresh.Options[fresh.Defval]; !declared {
				return &Error{Code: CodeMergeConflict, Entry: name,
					Detail: fmt.Sprintf("default %q is not an option", enum.Defval)}
			}
		}
		db.enums[name] = fresh
		db.dirty.Store(true)
		return nil
	}

	// Check every option and the default before touching the entry, so
	// a conflict never leaves a half-merged enum behind.
	added := make(map[string]BitGroup)
	for option, g := range enum.Options {
		option = canonicalName(option)
		if prior, declared := existing.Options[option]; declared {
			if !prior.Equal(g) {
				return &Error{
					Code:   CodeMergeConflict,
					Entry:  name,
					Detail: fmt.Sprintf("option %q redefined with different bits", option),
				}
			}
			continue
		}
		added[option] = g.clone()
	}

	adoptDefval := ""
	if enum.Defval != "" {
		defval := canonicalName(enum.Defval)
		switch existing.Defval {
		case "":
			_, declared := existing.Options[defval]
			if _, fresh := added[defval]; !declared && !fresh {
				return &Error{Code: CodeMergeConflict, Entry: name,
					Detail: fmt.Sprintf("default %q is not an option", enum.Defval)}
			}
			adoptDefval = defval
		case defval:
			// unchanged
		default:
			return &Error{
				Code:   CodeMergeConflict,
				Entry:  name,
				Detail: fmt.Sprintf("default changed from %q to %q", existing.Defval, defval),
			}
		}
	}

	if len(added) > 0 || adoptDefval != "" {
		for option, g := range added {
			existing.Options[option] = g
		}
		if adoptDefval != "" {
			existing.Defval = adoptDefval
		}
		db.enums[name] = existing
		db.dirty.Store(true)
	}
	return nil
}

// Dirty reports whether in-memory state differs from the last
// persisted state.
func (db *TileBitDatabase) Dirty() bool { return db.dirty.Load() }

// Path returns the backing file the database persists to.
func (db *TileBitDatabase) Path() string { return db.path }

// WriteTo renders the database in its canonical text form.
func (db *TileBitDatabase) WriteTo(w io.Writer) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return writeEntries(w, db.muxes, db.words, db.enums)
}

// Save persists the database to its backing file if it is dirty.
//
// The snapshot is serialized under the shared lock, so no mutation can
// tear it, and the dirty flag is cleared inside the same critical
// section. The file write happens outside the lock: a mutation racing
// with the write re-sets dirty and the next Save picks it up, and an
// I/O failure re-sets dirty so a retry stays possible. The file is
// written to a temp path and renamed into place.
func (db *TileBitDatabase) Save() error {
	if !db.dirty.Load() {
		return nil
	}

	var buf bytes.Buffer
	db.mu.RLock()
	err := writeEntries(&buf, db.muxes, db.words, db.enums)
	if err == nil {
		db.dirty.Store(false)
	}
	db.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("serialize tile database: %w", err)
	}

	if err := writeFileAtomic(db.path, buf.Bytes()); err != nil {
		db.dirty.Store(true)
		return fmt.Errorf("save tile database: %w", err)
	}
	return nil
}

// writeFileAtomic writes data to path via a temp file and rename, so a
// crashed save never leaves a torn database behind.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
