package builder

import (
	"encoding/binary"
	"fmt"

	"github.com/codegenlib/jitasm/asm"
)

// JumpTableResolver produces the final byte contents of a jump table once
// every target label's offset is known, given the offset the table's
// entries are relative to (the instruction performing the indexed jump).
// Grounded on the teacher's asm.AssemblerBase.BuildJumpTable / impl.go's
// JumpTableEntry (table of int32 offsets relative to a given instruction).
type JumpTableResolver struct {
	targets  []asm.Label
	relative asm.Label
}

// BuildJumpTable records a jump-table request: targets, in dispatch-index
// order, each of which becomes one signed 32-bit offset relative to
// relativeTo's eventual bound position. The actual bytes are produced by
// Resolve once all labels are bound, since the table must be embedded as
// data (via EmbedData) before any of its targets necessarily are.
func (b *Builder) BuildJumpTable(targets []asm.Label, relativeTo asm.Label) *JumpTableResolver {
	return &JumpTableResolver{targets: append([]asm.Label(nil), targets...), relative: relativeTo}
}

// Resolve computes the table's int32-per-entry byte contents once both
// the targets and the relative-to label have offsets assigned by labels.
func (r *JumpTableResolver) Resolve(labels *asm.LabelManager) ([]byte, error) {
	base, err := labels.OffsetOf(r.relative)
	if err != nil {
		return nil, fmt.Errorf("%w: jump table's relative-to label is unbound", asm.ErrUnboundLabel)
	}
	out := make([]byte, 4*len(r.targets))
	for i, t := range r.targets {
		off, err := labels.OffsetOf(t)
		if err != nil {
			return nil, fmt.Errorf("%w: jump table entry %d targets an unbound label", asm.ErrUnboundLabel, i)
		}
		binary.LittleEndian.PutUint32(out[i*4:], uint32(int32(int64(off)-int64(base))))
	}
	return out, nil
}
