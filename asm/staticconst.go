package asm

import "encoding/hex"

// StaticConstPool is the deduplicated read-only data pool described in
// SPEC_FULL.md's supplemented features, grounded on the teacher's
// impl_staticconst.go: callers hand it byte blobs (SIMD mask constants,
// jump tables) and get back a Label that is bound once the pool is
// serialized after the code — the same way any other label is bound.
// Neither the amd64 nor the arm64 Assembler has a label-addressed
// (RIP-relative / PC-relative) load, so no instruction they emit refers to
// the pool.
type StaticConstPool struct {
	byHash map[string]Label
	labels *LabelManager
	Blobs  []PoolEntry
}

// PoolEntry is one deduplicated blob awaiting placement.
type PoolEntry struct {
	Label Label
	Bytes []byte
}

// NewStaticConstPool returns an empty pool whose labels are minted from
// the given LabelManager, so Assembler.Finalize can resolve them exactly
// like any user-created label.
func NewStaticConstPool(labels *LabelManager) *StaticConstPool {
	return &StaticConstPool{byHash: make(map[string]Label), labels: labels}
}

// Alloc returns a Label for data, reusing an existing entry byte-for-byte
// identical to one already allocated (content-addressed deduplication).
func (p *StaticConstPool) Alloc(data []byte) Label {
	key := hex.EncodeToString(data)
	if l, ok := p.byHash[key]; ok {
		return l
	}
	l := p.labels.NewLabel()
	p.byHash[key] = l
	cp := append([]byte(nil), data...)
	p.Blobs = append(p.Blobs, PoolEntry{Label: l, Bytes: cp})
	return l
}

// Place appends every blob to buf in allocation order, binding each
// entry's label to its final offset, and alignment-padding each entry to
// an 8-byte boundary so SIMD loads stay naturally aligned.
func (p *StaticConstPool) Place(buf *CodeBuffer) error {
	for _, entry := range p.Blobs {
		if err := buf.Align(8, 0); err != nil {
			return err
		}
		off := uint64(buf.Len())
		buf.EmitBytes(entry.Bytes)
		if err := p.labels.Bind(entry.Label, off); err != nil {
			return err
		}
	}
	return nil
}
