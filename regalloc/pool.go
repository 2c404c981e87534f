package regalloc

import "github.com/codegenlib/jitasm/asm"

// Pool is the ordered set of physical registers available to the
// allocator for one register class, split into caller-saved and
// callee-saved tiers (spec §4.7 policies: "Caller-saved registers are
// preferred first for short-lived virtual registers; callee-saved
// registers ... are used only when the first group is exhausted").
// Registers reserved by the calling convention (stack pointer, frame
// pointer, platform TLS register) are simply never added to a Pool.
type Pool struct {
	CallerSaved []asm.Register
	CalleeSaved []asm.Register

	free    map[asm.RegisterID]bool
	order   []asm.Register // CallerSaved ++ CalleeSaved, fixed preference order
	touched map[asm.RegisterID]bool
}

// NewPool builds a Pool from its caller-saved and callee-saved register
// lists.
func NewPool(callerSaved, calleeSaved []asm.Register) *Pool {
	p := &Pool{
		CallerSaved: callerSaved,
		CalleeSaved: calleeSaved,
		free:        make(map[asm.RegisterID]bool),
		touched:     make(map[asm.RegisterID]bool),
	}
	p.order = append(p.order, callerSaved...)
	p.order = append(p.order, calleeSaved...)
	for _, r := range p.order {
		p.free[r.ID] = true
	}
	return p
}

// allocate returns a free physical register in caller-saved-first
// preference order, or (Register{}, false) if the pool is exhausted.
func (p *Pool) allocate() (asm.Register, bool) {
	for _, r := range p.order {
		if p.free[r.ID] {
			p.free[r.ID] = false
			p.touched[r.ID] = true
			return r, true
		}
	}
	return asm.Register{}, false
}

func (p *Pool) release(r asm.Register) {
	p.free[r.ID] = true
}

// isCalleeSaved reports whether r belongs to this pool's callee-saved
// tier — used to decide which touched registers the frame emitter must
// save/restore.
func (p *Pool) isCalleeSaved(r asm.Register) bool {
	for _, cs := range p.CalleeSaved {
		if cs.ID == r.ID {
			return true
		}
	}
	return false
}

// TouchedCalleeSaved returns every callee-saved register this pool handed
// out at least once, in CalleeSaved declaration order — the frame
// emitter's PreservedRegsUsed list (spec §4.8).
func (p *Pool) TouchedCalleeSaved() []asm.Register {
	var out []asm.Register
	for _, r := range p.CalleeSaved {
		if p.touched[r.ID] {
			out = append(out, r)
		}
	}
	return out
}
