package regalloc

import (
	"fmt"

	"github.com/codegenlib/jitasm/asm"
	"github.com/codegenlib/jitasm/builder"
)

// Pools maps a register class to the physical-register pool available to
// it; the Builder's own RegisterClassVirtual never appears as a key here —
// a virtual register's Class field names the *target* class (GP or
// Vector) it will be assigned into.
type Pools map[asm.RegisterClass]*Pool

// spillSlotBytes is the frame-relative storage one spill slot consumes;
// every virtual register spills to a full 8-byte (or 16-byte, for vector)
// aligned slot to keep the rewrite pass's displacement arithmetic simple,
// matching the teacher's machine.go frame-slot sizing.
func spillSlotBytes(class asm.RegisterClass) int32 {
	if class == asm.RegisterClassVector {
		return 16
	}
	return 8
}

// Result is what Allocate reports back to the frame emitter once both the
// scan and rewrite passes have completed.
type Result struct {
	SpillAreaBytes    int32
	ClobberedCalleeSaved []asm.Register
}

// assignment is the allocator's terminal verdict for one virtual register
// (spec §3's Assigned(physical) or Spilled(frame_offset) states).
type assignment struct {
	physical asm.Register
	spilled  bool
	spillOff int32 // distance from frameBase down to the slot's lowest byte
}

// Allocate runs the full linear-scan pipeline over b's node list: interval
// construction, sorted scan with spill-at-furthest-use, spill-slot
// assignment, and the operand rewrite pass (spec §4.7 steps 1-5). frameBase
// is the physical register spilled operands are addressed relative to
// (rbp/x29 in every calling convention this package targets).
func Allocate(b *builder.Builder, pools Pools, frameBase asm.Register) (*Result, error) {
	intervals, err := buildIntervals(b)
	if err != nil {
		return nil, err
	}
	SortByStart(intervals)

	assignments := make(map[int]*assignment, len(intervals))
	active := &activeSet{}
	var spillCursor int32

	release := func(iv *Interval) {
		a := assignments[iv.VRegID]
		if a != nil && !a.spilled {
			pool := pools[asm.RegisterClass(iv.Class)]
			if pool != nil {
				pool.release(a.physical)
			}
		}
	}

	for _, iv := range intervals {
		active.expireBefore(iv.Start, release)

		pool := pools[asm.RegisterClass(iv.Class)]
		if pool == nil {
			return nil, fmt.Errorf("%w: no physical register pool for class %d", asm.ErrIllegalVirtReg, iv.Class)
		}

		if phys, ok := pool.allocate(); ok {
			assignments[iv.VRegID] = &assignment{physical: phys}
			active.insert(iv)
			continue
		}

		// Spill heuristic: spill at furthest use (spec §4.7 step 3).
		fi := active.furthestEnd()
		if fi >= 0 && active.items[fi].End > iv.End {
			evicted := active.items[fi]
			evictedAssign := assignments[evicted.VRegID]
			phys := evictedAssign.physical

			spillCursor += spillSlotBytes(asm.RegisterClass(evicted.Class))
			assignments[evicted.VRegID] = &assignment{spilled: true, spillOff: spillCursor}

			active.removeAt(fi)
			assignments[iv.VRegID] = &assignment{physical: phys}
			active.insert(iv)
			continue
		}

		spillCursor += spillSlotBytes(asm.RegisterClass(iv.Class))
		assignments[iv.VRegID] = &assignment{spilled: true, spillOff: spillCursor}
	}

	if err := rewrite(b, assignments, frameBase); err != nil {
		return nil, err
	}

	var clobbered []asm.Register
	for _, pool := range pools {
		clobbered = append(clobbered, pool.TouchedCalleeSaved()...)
	}

	return &Result{SpillAreaBytes: spillCursor, ClobberedCalleeSaved: clobbered}, nil
}

// buildIntervals performs spec §4.7 step 1: a single walk of the node
// list, extending each referenced virtual register's interval to cover
// the current position, with memory base/index operands counting as uses
// too.
func buildIntervals(b *builder.Builder) ([]*Interval, error) {
	byID := make(map[int]*Interval)
	var order []*Interval

	for _, n := range b.Nodes() {
		if n.Kind != builder.NodeInstruction {
			continue
		}
		for _, op := range n.Operands {
			regs := operandVRegs(op)
			for _, r := range regs {
				iv, ok := byID[r.VirtualID]
				if !ok {
					iv = &Interval{VRegID: r.VirtualID, SizeBits: r.SizeBits, Start: n.Position, End: n.Position}
					byID[r.VirtualID] = iv
					order = append(order, iv)
				}
				if n.Position < iv.Start {
					iv.Start = n.Position
				}
				if n.Position > iv.End {
					iv.End = n.Position
				}
			}
		}
	}

	for _, info := range b.VirtualRegisters() {
		if iv, ok := byID[info.ID]; ok {
			iv.Class = int(info.Class)
		}
	}
	return order, nil
}

func operandVRegs(op asm.Operand) []asm.Register {
	switch op.Kind {
	case asm.OperandKindRegister:
		if op.Reg.IsVirtual() {
			return []asm.Register{op.Reg}
		}
	case asm.OperandKindMemory:
		var out []asm.Register
		if op.Mem.HasBase && op.Mem.Base.IsVirtual() {
			out = append(out, op.Mem.Base)
		}
		if op.Mem.HasIndex && op.Mem.Index.IsVirtual() {
			out = append(out, op.Mem.Index)
		}
		return out
	}
	return nil
}
