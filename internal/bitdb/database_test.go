package bitdb

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfpga-tools/bitdb/internal/cram"
)

// newTestDatabase writes the shared test database text to a temp file
// and opens it.
func newTestDatabase(t *testing.T) *TileBitDatabase {
	t.Helper()
	path := filepath.Join(t.TempDir(), "TEST_TILE.tdb")
	require.NoError(t, os.WriteFile(path, []byte(testDatabaseText), 0o644))
	db, err := openTileBitDatabase(path)
	require.NoError(t, err)
	return db
}

func newTestTile() *cram.Tile {
	return cram.NewTile(16, 16)
}

func TestTileBitDatabase_Accessors(t *testing.T) {
	db := newTestDatabase(t)

	assert.Equal(t, []string{"CLK0"}, db.Sinks())
	assert.Equal(t, []string{"LUT_INIT"}, db.SettingWords())
	assert.Equal(t, []string{"IO_TYPE"}, db.SettingEnums())

	mux, err := db.MuxDataForSink("CLK0")
	require.NoError(t, err)
	assert.Len(t, mux.Arcs, 2)

	word, err := db.DataForSetword("LUT_INIT")
	require.NoError(t, err)
	assert.Len(t, word.Bits, 4)

	enum, err := db.DataForEnum("IO_TYPE")
	require.NoError(t, err)
	assert.Equal(t, "LVCMOS33", enum.Defval)
}

func TestTileBitDatabase_Accessors_NotFound(t *testing.T) {
	db := newTestDatabase(t)

	_, err := db.MuxDataForSink("NOSUCH")
	assert.True(t, IsNotFound(err))
	_, err = db.DataForSetword("NOSUCH")
	assert.True(t, IsNotFound(err))
	_, err = db.DataForEnum("NOSUCH")
	assert.True(t, IsNotFound(err))
}

func TestTileBitDatabase_AccessorsReturnCopies(t *testing.T) {
	db := newTestDatabase(t)

	mux, err := db.MuxDataForSink("CLK0")
	require.NoError(t, err)
	mux.Arcs[0].Bits.Bits[0] = ConfigBit{Frame: 99, Bit: 99}
	mux.Arcs = append(mux.Arcs, ArcData{Source: "INJECTED", Sink: "CLK0"})

	again, err := db.MuxDataForSink("CLK0")
	require.NoError(t, err)
	assert.Len(t, again.Arcs, 2, "caller mutation must not reach the database")
	assert.Equal(t, ConfigBit{Frame: 0, Bit: 0}, again.Arcs[0].Bits.Bits[0])
}

func TestTileBitDatabase_ConfigRoundTrip(t *testing.T) {
	db := newTestDatabase(t)
	tile := newTestTile()

	cfg := &TileConfig{
		Arcs:  []ConfigArc{{Sink: "CLK0", Source: "ECLK1"}},
		Words: []ConfigWord{{Name: "LUT_INIT", Value: []bool{true, false, true, true}}},
		Enums: []ConfigEnum{{Name: "IO_TYPE", Value: "LVCMOS25"}},
	}
	require.NoError(t, db.ConfigToTileCRAM(cfg, tile))

	got, err := db.TileCRAMToConfig(tile)
	require.NoError(t, err)
	assert.True(t, cfg.Equal(got), "decode(encode(cfg)) must equal cfg\nwant:\n%s\ngot:\n%s", cfg, got)
}

func TestTileBitDatabase_DefaultTileDecodesEmpty(t *testing.T) {
	db := newTestDatabase(t)

	cfg, err := db.TileCRAMToConfig(newTestTile())
	require.NoError(t, err)
	assert.True(t, cfg.Empty(), "a zeroed tile is all defaults: %s", cfg)
}

func TestTileBitDatabase_ConfigToTileCRAM_UnknownSetting(t *testing.T) {
	db := newTestDatabase(t)
	tile := newTestTile()

	testCases := []struct {
		name string
		cfg  *TileConfig
	}{
		{"unknown mux", &TileConfig{Arcs: []ConfigArc{{Sink: "NOSUCH", Source: "X"}}}},
		{"unknown word", &TileConfig{Words: []ConfigWord{{Name: "NOSUCH", Value: []bool{true}}}}},
		{"unknown enum", &TileConfig{Enums: []ConfigEnum{{Name: "NOSUCH", Value: "X"}}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := db.ConfigToTileCRAM(tc.cfg, tile)
			require.Error(t, err)
			assert.True(t, IsUnknownSetting(err))
		})
	}
}

func TestTileBitDatabase_UnknownBitsReported(t *testing.T) {
	db := newTestDatabase(t)
	tile := newTestTile()

	// A set cell no entry explains comes back as an unknown.
	tile.SetBit(9, 3, true)
	cfg, err := db.TileCRAMToConfig(tile)
	require.NoError(t, err)
	assert.Equal(t, []ConfigUnknown{{Frame: 9, Bit: 3}}, cfg.Unknowns)

	// And encoding the config re-sets the cell verbatim.
	fresh := newTestTile()
	require.NoError(t, db.ConfigToTileCRAM(cfg, fresh))
	assert.True(t, fresh.Bit(9, 3))
}

func TestTileBitDatabase_AddMux_MergeUnion(t *testing.T) {
	db := newTestDatabase(t)

	// Same sink, disjoint new arc: merged in.
	err := db.AddMux(MuxBits{Sink: "CLK0", Arcs: []ArcData{
		{Source: "ECLK2", Sink: "CLK0", Bits: BitGroup{Bits: []ConfigBit{{Frame: 0, Bit: 2}}}},
	}})
	require.NoError(t, err)

	mux, err := db.MuxDataForSink("CLK0")
	require.NoError(t, err)
	require.Len(t, mux.Arcs, 3, "merge must union arcs")
	assert.Equal(t, "ECLK2", mux.Arcs[2].Source)
	assert.True(t, db.Dirty())
}

func TestTileBitDatabase_AddMux_RedundantReAddIsNoOp(t *testing.T) {
	db := newTestDatabase(t)

	mux, err := db.MuxDataForSink("CLK0")
	require.NoError(t, err)
	require.NoError(t, db.AddMux(mux))
	assert.False(t, db.Dirty(), "re-adding known arcs changes nothing")
}

func TestTileBitDatabase_AddMux_MergeConflict(t *testing.T) {
	db := newTestDatabase(t)

	err := db.AddMux(MuxBits{Sink: "CLK0", Arcs: []ArcData{
		{Source: "ECLK0", Sink: "CLK0", Bits: BitGroup{Bits: []ConfigBit{{Frame: 7, Bit: 7}}}},
	}})
	require.Error(t, err)
	assert.True(t, IsMergeConflict(err), "contradicting a known arc must fail")
}

func TestTileBitDatabase_AddSettingWord(t *testing.T) {
	db := newTestDatabase(t)

	word := WordSettingBits{
		Name:   "NEW_WORD",
		Bits:   []BitGroup{{Bits: []ConfigBit{{Frame: 5, Bit: 0}}}},
		Defval: []bool{false},
	}
	require.NoError(t, db.AddSettingWord(word))
	assert.True(t, db.Dirty())

	// Identical re-add is a no-op; a redefinition is a conflict.
	require.NoError(t, db.AddSettingWord(word))
	word.Bits[0] = BitGroup{Bits: []ConfigBit{{Frame: 5, Bit: 1}}}
	err := db.AddSettingWord(word)
	require.Error(t, err)
	assert.True(t, IsMergeConflict(err))
}

func TestTileBitDatabase_AddSettingWord_ShapeMismatch(t *testing.T) {
	db := newTestDatabase(t)

	err := db.AddSettingWord(WordSettingBits{
		Name:   "BAD",
		Bits:   []BitGroup{{Bits: []ConfigBit{{Frame: 5, Bit: 0}}}},
		Defval: []bool{false, true},
	})
	require.Error(t, err)
	assert.True(t, IsShapeMismatch(err))
}

func TestTileBitDatabase_AddSettingEnum_MergeOptions(t *testing.T) {
	db := newTestDatabase(t)

	// New option merges in.
	err := db.AddSettingEnum(EnumSettingBits{
		Name: "IO_TYPE",
		Options: map[string]BitGroup{
			"LVTTL": {Bits: []ConfigBit{{Frame: 2, Bit: 2}}},
		},
	})
	require.NoError(t, err)

	enum, err := db.DataForEnum("IO_TYPE")
	require.NoError(t, err)
	assert.Equal(t, []string{"LVCMOS25", "LVCMOS33", "LVTTL"}, enum.OptionNames())
	assert.Equal(t, "LVCMOS33", enum.Defval, "merge keeps the declared default")

	// Redefining an option's bits is a conflict.
	err = db.AddSettingEnum(EnumSettingBits{
		Name: "IO_TYPE",
		Options: map[string]BitGroup{
			"LVTTL": {Bits: []ConfigBit{{Frame: 2, Bit: 3}}},
		},
	})
	require.Error(t, err)
	assert.True(t, IsMergeConflict(err))

	// Changing the default is a conflict too.
	err = db.AddSettingEnum(EnumSettingBits{
		Name:    "IO_TYPE",
		Options: map[string]BitGroup{},
		Defval:  "LVCMOS25",
	})
	require.Error(t, err)
	assert.True(t, IsMergeConflict(err))
}

func TestTileBitDatabase_AddSettingEnum_AdoptDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "T.tdb")
	db := newEmptyDatabase(path)

	require.NoError(t, db.AddSettingEnum(EnumSettingBits{
		Name: "E",
		Options: map[string]BitGroup{
			"ON": {Bits: []ConfigBit{{Frame: 0, Bit: 0}}},
		},
	}))

	// A default may be introduced where none was declared.
	require.NoError(t, db.AddSettingEnum(EnumSettingBits{
		Name:    "E",
		Options: map[string]BitGroup{},
		Defval:  "ON",
	}))
	enum, err := db.DataForEnum("E")
	require.NoError(t, err)
	assert.Equal(t, "ON", enum.Defval)
}

func TestTileBitDatabase_SaveAndReload(t *testing.T) {
	db := newTestDatabase(t)

	require.NoError(t, db.AddMux(MuxBits{Sink: "CLK1", Arcs: []ArcData{
		{Source: "ECLK0", Sink: "CLK1", Bits: BitGroup{Bits: []ConfigBit{{Frame: 3, Bit: 0}}}},
	}}))
	require.True(t, db.Dirty())
	require.NoError(t, db.Save())
	assert.False(t, db.Dirty())

	reloaded, err := openTileBitDatabase(db.Path())
	require.NoError(t, err)
	assert.Equal(t, []string{"CLK0", "CLK1"}, reloaded.Sinks())

	mux, err := reloaded.MuxDataForSink("CLK1")
	require.NoError(t, err)
	want, err := db.MuxDataForSink("CLK1")
	require.NoError(t, err)
	assert.True(t, want.Equal(&mux))
}

func TestTileBitDatabase_SaveCleanIsNoOp(t *testing.T) {
	db := newEmptyDatabase(filepath.Join(t.TempDir(), "T.tdb"))

	require.NoError(t, db.Save())
	_, err := os.Stat(db.Path())
	assert.True(t, os.IsNotExist(err), "a clean database writes nothing")
}

func TestTileBitDatabase_SaveFailureKeepsDirty(t *testing.T) {
	// Parent "directory" is a regular file, so the write must fail.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	db := newEmptyDatabase(filepath.Join(blocker, "T.tdb"))
	require.NoError(t, db.AddMux(MuxBits{Sink: "S", Arcs: []ArcData{
		{Source: "A", Sink: "S", Bits: BitGroup{Bits: []ConfigBit{{Frame: 0, Bit: 0}}}},
	}}))

	err := db.Save()
	require.Error(t, err)
	assert.True(t, db.Dirty(), "a failed save must leave the database dirty for retry")
}

func TestTileBitDatabase_ConcurrentReadersAndWriter(t *testing.T) {
	db := newTestDatabase(t)
	tile := newTestTile()
	require.NoError(t, db.ConfigToTileCRAM(&TileConfig{
		Arcs: []ConfigArc{{Sink: "CLK0", Source: "ECLK0"}},
	}, tile))

	const readers = 8
	const iterations = 200

	var wg sync.WaitGroup
	errs := make(chan error, readers)

	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				mux, err := db.MuxDataForSink("CLK0")
				if err != nil {
					errs <- err
					return
				}
				// The original two arcs are immutable; a concurrent
				// merge may only append.
				if len(mux.Arcs) < 2 || mux.Arcs[0].Source != "ECLK0" {
					errs <- fmt.Errorf("reader observed torn mux: %d arcs", len(mux.Arcs))
					return
				}
				driver, ok, err := mux.Driver(tile, nil)
				if err != nil || !ok || driver != "ECLK0" {
					errs <- fmt.Errorf("driver resolution changed under read: %q %v %v", driver, ok, err)
					return
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			err := db.AddMux(MuxBits{Sink: "CLK0", Arcs: []ArcData{{
				Source: fmt.Sprintf("FUZZ%d", i),
				Sink:   "CLK0",
				Bits:   BitGroup{Bits: []ConfigBit{{Frame: 10, Bit: i % 16}}},
			}}})
			if err != nil && !IsMergeConflict(err) {
				errs <- err
				return
			}
		}
	}()

	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}
