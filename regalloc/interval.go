// Package regalloc implements the classic linear-scan register allocator
// of spec §4.7 (Poletto-Sarkar style: sorted intervals, an active set kept
// sorted by end position, spill-at-furthest-use). The teacher's own
// allocator (internal/engine/wazevo/backend/regalloc) is CFG/SSA-based and
// graph-coloring-flavored; the spec explicitly calls out that this is a
// case to re-architect rather than copy (§9 "no global register allocation
// across functions" — the per-function linear scan below is the target
// shape), so only the VReg/RealReg terminology and the sorted-active-set
// processing idea are carried over here, cross-checked against
// y1yang0-falcon's lsra.go as a second independent reference.
package regalloc

import "sort"

// Interval is a virtual register's liveness range over Builder node
// positions, the closed range [Start, End] inclusive of both ends per spec
// §4.7 step 1 ("extend the register's interval to cover the current position").
type Interval struct {
	VRegID   int
	SizeBits int
	Class    int // mirrors asm.RegisterClass as a plain int
	Start    int
	End      int

	// UseAsDef marks a register used as both input and output of the same
	// instruction. Allocate neither sets nor reads it: an interval ending at
	// a position and one starting at that position are both active there,
	// so they never share a physical register.
	UseAsDef bool
}

// byStart sorts intervals by ascending start position (spec §4.7 step 2),
// breaking ties by VRegID to keep ordering deterministic.
type byStart []*Interval

func (s byStart) Len() int      { return len(s) }
func (s byStart) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s byStart) Less(i, j int) bool {
	if s[i].Start != s[j].Start {
		return s[i].Start < s[j].Start
	}
	return s[i].VRegID < s[j].VRegID
}

// SortByStart sorts intervals in place by ascending start position.
func SortByStart(intervals []*Interval) { sort.Sort(byStart(intervals)) }

// activeSet maintains the linear scanner's currently-live intervals sorted
// by ascending end position, as spec §4.7 step 3 requires ("Maintain an
// active set sorted by end position").
type activeSet struct {
	items []*Interval
}

func (a *activeSet) insert(iv *Interval) {
	i := sort.Search(len(a.items), func(i int) bool { return a.items[i].End >= iv.End })
	a.items = append(a.items, nil)
	copy(a.items[i+1:], a.items[i:])
	a.items[i] = iv
}

func (a *activeSet) removeAt(i int) {
	a.items = append(a.items[:i], a.items[i+1:]...)
}

// expireBefore removes every active interval whose End is
// strictly less than start, freeing their physical-register assignment in
// the caller via the supplied release callback (spec §4.7 step 3 "Expire
// all active intervals whose end < current start; free their physical
// registers").
func (a *activeSet) expireBefore(start int, release func(iv *Interval)) {
	i := 0
	for i < len(a.items) {
		if a.items[i].End < start {
			release(a.items[i])
			a.removeAt(i)
			continue
		}
		i++
	}
}

// furthestEnd returns the index of the active interval with the largest
// End (the spec's "furthest use" spill heuristic), or -1 if empty.
func (a *activeSet) furthestEnd() int {
	best := -1
	for i, iv := range a.items {
		if best == -1 || iv.End > a.items[best].End {
			best = i
		}
		_ = iv
	}
	return best
}
