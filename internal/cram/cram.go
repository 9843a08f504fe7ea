package cram

import "fmt"

// View is a bit-addressable window onto one tile's configuration RAM.
//
// Implementations are not required to be safe for concurrent use; a view
// is owned by a single caller for the duration of an encode or decode.
type View interface {
	// Bit returns the physical value of the cell at (frame, bit).
	Bit(frame, bit int) bool

	// SetBit writes the physical value of the cell at (frame, bit).
	SetBit(frame, bit int, v bool)

	// Frames returns the number of frames in the tile.
	Frames() int

	// FrameLength returns the number of bits per frame.
	FrameLength() int
}

// Tile is an in-memory View backed by one uint64 slice per frame.
type Tile struct {
	frames int
	bits   int
	words  []uint64
}

const wordBits = 64

// NewTile allocates a zeroed tile with the given dimensions.
// Dimensions must be positive.
func NewTile(frames, bits int) *Tile {
	if frames <= 0 || bits <= 0 {
		panic(fmt.Sprintf("cram: invalid tile dimensions %dx%d", frames, bits))
	}
	wordsPerFrame := (bits + wordBits - 1) / wordBits
	return &Tile{
		frames: frames,
		bits:   bits,
		words:  make([]uint64, frames*wordsPerFrame),
	}
}

// Frames returns the number of frames in the tile.
func (t *Tile) Frames() int { return t.frames }

// FrameLength returns the number of bits per frame.
func (t *Tile) FrameLength() int { return t.bits }

func (t *Tile) index(frame, bit int) (word int, mask uint64) {
	if frame < 0 || frame >= t.frames || bit < 0 || bit >= t.bits {
		panic(fmt.Sprintf("cram: bit (%d, %d) out of range for %dx%d tile",
			frame, bit, t.frames, t.bits))
	}
	wordsPerFrame := (t.bits + wordBits - 1) / wordBits
	return frame*wordsPerFrame + bit/wordBits, 1 << uint(bit%wordBits)
}

// Bit returns the physical value of the cell at (frame, bit).
// Out-of-range coordinates panic, as with slice indexing.
func (t *Tile) Bit(frame, bit int) bool {
	word, mask := t.index(frame, bit)
	return t.words[word]&mask != 0
}

// SetBit writes the physical value of the cell at (frame, bit).
func (t *Tile) SetBit(frame, bit int, v bool) {
	word, mask := t.index(frame, bit)
	if v {
		t.words[word] |= mask
	} else {
		t.words[word] &^= mask
	}
}

// PopCount returns the number of set bits in the tile.
func (t *Tile) PopCount() int {
	n := 0
	for f := 0; f < t.frames; f++ {
		for b := 0; b < t.bits; b++ {
			if t.Bit(f, b) {
				n++
			}
		}
	}
	return n
}

// Clone returns an independent copy of the tile.
func (t *Tile) Clone() *Tile {
	c := &Tile{frames: t.frames, bits: t.bits, words: make([]uint64, len(t.words))}
	copy(c.words, t.words)
	return c
}
