package bitdb

import (
	"fmt"

	"github.com/openfpga-tools/bitdb/internal/cram"
)

// ArcData is one configurable connection inside a mux: a source node
// driving the mux's sink, selected when its bit group matches. Sink is
// redundant with the owning MuxBits but kept so an arc can stand alone.
type ArcData struct {
	Source string
	Sink   string
	Bits   BitGroup
}

// Equal reports structural equality of two arcs.
func (a ArcData) Equal(other ArcData) bool {
	return a.Source == other.Source && a.Sink == other.Sink && a.Bits.Equal(other.Bits)
}

// MuxBits models a multiplexer: every possible source arc that can
// drive one sink node. At most one arc's bit group should match a given
// tile; the read path treats multiple matches as an inconsistency
// rather than picking one.
type MuxBits struct {
	Sink string
	Arcs []ArcData
}

// Driver works out which connection, if any, is made inside the tile.
//
// Arcs are evaluated in declaration order. Exactly one match returns
// that arc's source and ok=true. Zero matches returns ok=false: the
// sink is floating, a valid state. More than one match returns an
// inconsistent-tile error, since it indicates a corrupted tile or a
// database bug.
//
// If cov is non-nil, every arc's bits are added to it whether or not
// they match, so fuzzing can confirm it has exercised all known arcs.
func (m *MuxBits) Driver(tile cram.View, cov BitSet) (driver string, ok bool, err error) {
	for _, arc := range m.Arcs {
		if cov != nil {
			arc.Bits.AddCoverage(cov)
		}
		if arc.Bits.Match(tile) {
			if ok {
				return "", false, inconsistentError(m.Sink,
					fmt.Sprintf("both %q and %q drive sink", driver, arc.Source))
			}
			driver = arc.Source
			ok = true
		}
	}
	if !ok {
		return "", false, nil
	}
	return driver, true, nil
}

// SetDriver configures the tile so that the named source drives the
// sink: the chosen arc's bits are set and every other arc's bits are
// cleared, enforcing mutual exclusivity at write time.
func (m *MuxBits) SetDriver(tile cram.View, driver string) error {
	found := false
	for _, arc := range m.Arcs {
		if arc.Source == driver {
			found = true
		}
	}
	if !found {
		return notFoundError(m.Sink, fmt.Sprintf("no arc from driver %q", driver))
	}
	// Clear first so the chosen arc's write wins on any shared cell.
	for _, arc := range m.Arcs {
		if arc.Source != driver {
			arc.Bits.ClearGroup(tile)
		}
	}
	for _, arc := range m.Arcs {
		if arc.Source == driver {
			arc.Bits.SetGroup(tile)
		}
	}
	return nil
}

// Equal reports structural equality of two muxes, arc order included.
func (m *MuxBits) Equal(other *MuxBits) bool {
	if m.Sink != other.Sink || len(m.Arcs) != len(other.Arcs) {
		return false
	}
	for i, arc := range m.Arcs {
		if !arc.Equal(other.Arcs[i]) {
			return false
		}
	}
	return true
}

// arcFor returns a pointer to the arc with the given source, or nil.
func (m *MuxBits) arcFor(source string) *ArcData {
	for i := range m.Arcs {
		if m.Arcs[i].Source == source {
			return &m.Arcs[i]
		}
	}
	return nil
}

func (m *MuxBits) clone() MuxBits {
	arcs := make([]ArcData, len(m.Arcs))
	for i, arc := range m.Arcs {
		arcs[i] = ArcData{Source: arc.Source, Sink: arc.Sink, Bits: arc.Bits.clone()}
	}
	return MuxBits{Sink: m.Sink, Arcs: arcs}
}
