package asm

import (
	"encoding/binary"
	"fmt"
)

// growThreshold is the size above which CodeBuffer switches from doubling
// growth to linear growth, matching spec §3's grow-policy invariant.
const growThreshold = 4 << 20 // 4 MiB

// CodeBuffer is a growable, append-only byte sink with random-access
// patching, modeled on the teacher's asm.CodeSegment/Buffer pair but
// decoupled from executable memory: the Assembler writes finalized bytes
// here, and the JIT runtime copies them into an executable mapping
// afterwards (spec §3, §4.1).
type CodeBuffer struct {
	buf []byte
}

// NewCodeBuffer returns an empty CodeBuffer with capacity hinted by size.
func NewCodeBuffer(sizeHint int) *CodeBuffer {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &CodeBuffer{buf: make([]byte, 0, sizeHint)}
}

// Len returns the current append cursor (== number of bytes written).
func (c *CodeBuffer) Len() int { return len(c.buf) }

// Cap returns the current backing capacity.
func (c *CodeBuffer) Cap() int { return cap(c.buf) }

// Bytes returns the written prefix of the buffer. The slice is invalidated
// by any subsequent mutating call.
func (c *CodeBuffer) Bytes() []byte { return c.buf }

func (c *CodeBuffer) grow(n int) {
	want := len(c.buf) + n
	if cap(c.buf) >= want {
		return
	}
	newCap := cap(c.buf)
	if newCap == 0 {
		newCap = 256
	}
	for newCap < want {
		if newCap < growThreshold {
			newCap *= 2
		} else {
			newCap += growThreshold
		}
	}
	grown := make([]byte, len(c.buf), newCap)
	copy(grown, c.buf)
	c.buf = grown
}

// EmitByte appends a single byte.
func (c *CodeBuffer) EmitByte(b byte) {
	c.grow(1)
	c.buf = append(c.buf, b)
}

// EmitBytes appends a verbatim byte slice.
func (c *CodeBuffer) EmitBytes(b []byte) {
	c.grow(len(b))
	c.buf = append(c.buf, b...)
}

// Emit16 appends a little-endian 16-bit word.
func (c *CodeBuffer) Emit16(v uint16) {
	c.grow(2)
	i := len(c.buf)
	c.buf = c.buf[:i+2]
	binary.LittleEndian.PutUint16(c.buf[i:], v)
}

// Emit32 appends a little-endian 32-bit word.
func (c *CodeBuffer) Emit32(v uint32) {
	c.grow(4)
	i := len(c.buf)
	c.buf = c.buf[:i+4]
	binary.LittleEndian.PutUint32(c.buf[i:], v)
}

// Emit64 appends a little-endian 64-bit word.
func (c *CodeBuffer) Emit64(v uint64) {
	c.grow(8)
	i := len(c.buf)
	c.buf = c.buf[:i+8]
	binary.LittleEndian.PutUint64(c.buf[i:], v)
}

// Patch8 overwrites a single byte at offset, failing with
// ErrOffsetOutOfRange if it falls outside the written prefix.
func (c *CodeBuffer) Patch8(offset int, v byte) error {
	if offset < 0 || offset+1 > len(c.buf) {
		return fmt.Errorf("%w: offset %d, len %d", ErrOffsetOutOfRange, offset, len(c.buf))
	}
	c.buf[offset] = v
	return nil
}

// Patch16 overwrites a little-endian 16-bit word at offset.
func (c *CodeBuffer) Patch16(offset int, v uint16) error {
	if offset < 0 || offset+2 > len(c.buf) {
		return fmt.Errorf("%w: offset %d, len %d", ErrOffsetOutOfRange, offset, len(c.buf))
	}
	binary.LittleEndian.PutUint16(c.buf[offset:], v)
	return nil
}

// Patch32 overwrites a little-endian 32-bit word at offset.
func (c *CodeBuffer) Patch32(offset int, v uint32) error {
	if offset < 0 || offset+4 > len(c.buf) {
		return fmt.Errorf("%w: offset %d, len %d", ErrOffsetOutOfRange, offset, len(c.buf))
	}
	binary.LittleEndian.PutUint32(c.buf[offset:], v)
	return nil
}

// Patch64 overwrites a little-endian 64-bit word at offset.
func (c *CodeBuffer) Patch64(offset int, v uint64) error {
	if offset < 0 || offset+8 > len(c.buf) {
		return fmt.Errorf("%w: offset %d, len %d", ErrOffsetOutOfRange, offset, len(c.buf))
	}
	binary.LittleEndian.PutUint64(c.buf[offset:], v)
	return nil
}

// PatchBytes overwrites len(b) bytes at offset.
func (c *CodeBuffer) PatchBytes(offset int, b []byte) error {
	if offset < 0 || offset+len(b) > len(c.buf) {
		return fmt.Errorf("%w: offset %d, len %d", ErrOffsetOutOfRange, offset, len(c.buf))
	}
	copy(c.buf[offset:], b)
	return nil
}

// Align pads the cursor with fill up to the next multiple of alignment,
// which must be a power of two.
func (c *CodeBuffer) Align(alignment int, fill byte) error {
	if alignment <= 0 || alignment&(alignment-1) != 0 {
		return fmt.Errorf("%w: alignment %d is not a power of two", ErrInvalidArgument, alignment)
	}
	rem := len(c.buf) % alignment
	if rem == 0 {
		return nil
	}
	pad := alignment - rem
	c.grow(pad)
	for i := 0; i < pad; i++ {
		c.buf = append(c.buf, fill)
	}
	return nil
}

// Reserve zero-fills n bytes and returns the starting offset, used for
// forward-jump placeholders that get patched once their target is known.
func (c *CodeBuffer) Reserve(n int) int {
	start := len(c.buf)
	c.grow(n)
	for i := 0; i < n; i++ {
		c.buf = append(c.buf, 0)
	}
	return start
}

// Reset returns the cursor to 0. If keepCapacity is false the backing array
// is also released.
func (c *CodeBuffer) Reset(keepCapacity bool) {
	if keepCapacity {
		c.buf = c.buf[:0]
	} else {
		c.buf = nil
	}
}
