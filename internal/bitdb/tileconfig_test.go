package bitdb

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTestConfig() *TileConfig {
	return &TileConfig{
		Arcs:     []ConfigArc{{Sink: "CLK0", Source: "ECLK1"}},
		Words:    []ConfigWord{{Name: "LUT_INIT", Value: []bool{true, false, true, true}}},
		Enums:    []ConfigEnum{{Name: "IO_TYPE", Value: "LVCMOS25"}},
		Unknowns: []ConfigUnknown{{Frame: 9, Bit: 3}},
	}
}

func TestTileConfig_String(t *testing.T) {
	want := "arc: CLK0 ECLK1\n" +
		"word: LUT_INIT 1011\n" +
		"enum: IO_TYPE LVCMOS25\n" +
		"unknown: F9B3\n"
	assert.Equal(t, want, makeTestConfig().String())
}

func TestParseTileConfig_RoundTrip(t *testing.T) {
	cfg := makeTestConfig()
	got, err := ParseTileConfig(strings.NewReader(cfg.String()))
	require.NoError(t, err)
	assert.True(t, cfg.Equal(got))
}

func TestParseTileConfig_Empty(t *testing.T) {
	cfg, err := ParseTileConfig(strings.NewReader("# nothing here\n\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Empty())
}

func TestParseTileConfig_Malformed(t *testing.T) {
	testCases := []struct {
		name string
		text string
	}{
		{"unknown line kind", "route: A B\n"},
		{"arc missing source", "arc: CLK0\n"},
		{"word bad value", "word: W 0x1\n"},
		{"enum missing value", "enum: E\n"},
		{"unknown with polarity", "unknown: !F1B2\n"},
		{"unknown bad token", "unknown: F1\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseTileConfig(strings.NewReader(tc.text))
			require.Error(t, err)
			assert.True(t, IsParseError(err), "expected a parse error, got %v", err)
		})
	}
}

func TestTileConfig_Equal(t *testing.T) {
	a := makeTestConfig()
	b := makeTestConfig()
	assert.True(t, a.Equal(b))

	b.Words[0].Value = []bool{true, false, true, false}
	assert.False(t, a.Equal(b))
}
