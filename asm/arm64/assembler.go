package arm64

import (
	"fmt"

	"github.com/codegenlib/jitasm/asm"
)

// Assembler is the AArch64 Assembler of spec §4.5: every instruction is
// exactly 4 bytes, so unlike amd64 there is no short-vs-long opcode
// choice — only the branch *displacement width* (imm26 vs imm19) varies by
// mnemonic, and only the final patched value (not the instruction length)
// is deferred to Finalize.
type Assembler struct {
	buf     *asm.CodeBuffer
	labels  *asm.LabelManager
	fixups  []asm.Fixup
	statics *asm.StaticConstPool
}

// NewAssembler returns an empty Assembler ready to emit.
func NewAssembler() *Assembler {
	labels := asm.NewLabelManager()
	return &Assembler{buf: asm.NewCodeBuffer(256), labels: labels, statics: asm.NewStaticConstPool(labels)}
}

// AllocateStaticConst interns data into this Assembler's deduplicated
// read-only data pool (SPEC_FULL.md supplemented feature 1).
func (a *Assembler) AllocateStaticConst(data []byte) asm.Label {
	return a.statics.Alloc(data)
}

func (a *Assembler) NewLabel() asm.Label { return a.labels.NewLabel() }

func (a *Assembler) NewNamedLabel(name string) (asm.Label, error) {
	return a.labels.NewNamedLabel(name)
}

func (a *Assembler) Bind(l asm.Label) error {
	return a.labels.Bind(l, uint64(a.buf.Len()))
}

func (a *Assembler) Len() int { return a.buf.Len() }

// MovImm64 lowers an arbitrary constant into MOVZ/MOVN/MOVK the way
// spec §4.4 prescribes.
func (a *Assembler) MovImm64(dst asm.Register, value int64) error {
	if dst.SizeBits != 32 && dst.SizeBits != 64 {
		return fmt.Errorf("%w: MovImm64 supports W/X registers only", asm.ErrInvalidOperandSize)
	}
	loadConst64(a.buf, sfBit(dst.SizeBits), value, rBits(dst.ID))
	return nil
}

func (a *Assembler) dp(op dpOp, dst, src1, src2 asm.Register) error {
	if dst.SizeBits != src1.SizeBits || dst.SizeBits != src2.SizeBits {
		return asm.ErrOperandSizeMismatch
	}
	word(a.buf, encodeDPReg(op, sfBit(dst.SizeBits), rBits(dst.ID), rBits(src1.ID), rBits(src2.ID)))
	return nil
}

func (a *Assembler) Add(dst, src1, src2 asm.Register) error { return a.dp(dpADD, dst, src1, src2) }
func (a *Assembler) Sub(dst, src1, src2 asm.Register) error { return a.dp(dpSUB, dst, src1, src2) }
func (a *Assembler) And(dst, src1, src2 asm.Register) error { return a.dp(dpAND, dst, src1, src2) }
func (a *Assembler) Orr(dst, src1, src2 asm.Register) error { return a.dp(dpORR, dst, src1, src2) }
func (a *Assembler) Eor(dst, src1, src2 asm.Register) error { return a.dp(dpEOR, dst, src1, src2) }

// Cmp emits `cmp src1, src2` as the canonical SUBS xzr, src1, src2 alias.
func (a *Assembler) Cmp(src1, src2 asm.Register) error {
	zr := asm.Register{ID: XZRSP, SizeBits: src1.SizeBits, Class: asm.RegisterClassGP}
	return a.dp(dpSUBS, zr, src1, src2)
}

// Mov emits `mov dst, src` as the canonical ORR dst, xzr, src alias. Neither
// dst nor src may be SP: register 31 has no encoding as a data-processing
// (register) operand and always decodes as XZR there, unlike in load/store
// and ADD/SUB-immediate encodings. Moving to/from SP needs AddImm(dst, sp,
// 0) or AddImm(sp, src, 0) instead.
func (a *Assembler) Mov(dst, src asm.Register) error {
	zr := asm.Register{ID: XZRSP, SizeBits: dst.SizeBits, Class: asm.RegisterClassGP}
	return a.dp(dpORR, dst, zr, src)
}

// AddImm emits `add dst, src, #imm` (unshifted imm12).
func (a *Assembler) AddImm(dst, src asm.Register, imm int64) error {
	return a.addSubImm(false, dst, src, imm)
}

// SubImm emits `sub dst, src, #imm` (unshifted imm12).
func (a *Assembler) SubImm(dst, src asm.Register, imm int64) error {
	return a.addSubImm(true, dst, src, imm)
}

func (a *Assembler) addSubImm(isSub bool, dst, src asm.Register, imm int64) error {
	if dst.SizeBits != src.SizeBits {
		return asm.ErrOperandSizeMismatch
	}
	imm12, err := unsignedImm12Unscaled(imm)
	if err != nil {
		return err
	}
	word(a.buf, encodeAddSubImm(isSub, sfBit(dst.SizeBits), rBits(dst.ID), rBits(src.ID), imm12))
	return nil
}

// StrImm emits `str rt, [rn, #imm]` (unsigned, scaled by rt's size).
func (a *Assembler) StrImm(rt, rn asm.Register, byteOffset int64) error {
	return a.ldrStrImm(false, rt, rn, byteOffset)
}

// LdrImm emits `ldr rt, [rn, #imm]`.
func (a *Assembler) LdrImm(rt, rn asm.Register, byteOffset int64) error {
	return a.ldrStrImm(true, rt, rn, byteOffset)
}

func (a *Assembler) ldrStrImm(isLoad bool, rt, rn asm.Register, byteOffset int64) error {
	sizeBytes := rt.SizeBits / 8
	imm12, err := unsignedImm12Scaled(byteOffset, sizeBytes)
	if err != nil {
		return err
	}
	word(a.buf, encodeLDRSTRImm(isLoad, rt.SizeBits, rBits(rt.ID), rBits(rn.ID), imm12))
	return nil
}

// StpPreIndex emits `stp rt1, rt2, [rn, #imm]!` (writeback before store),
// the canonical AAPCS64 frame-pointer/link-register push (spec §4.8).
func (a *Assembler) StpPreIndex(rt1, rt2, rn asm.Register, byteOffset int64) error {
	return a.ldpStp(false, pairPreIndex, rt1, rt2, rn, byteOffset)
}

// LdpPostIndex emits `ldp rt1, rt2, [rn], #imm` (writeback after load), the
// canonical epilogue restore paired with StpPreIndex.
func (a *Assembler) LdpPostIndex(rt1, rt2, rn asm.Register, byteOffset int64) error {
	return a.ldpStp(true, pairPostIndex, rt1, rt2, rn, byteOffset)
}

func (a *Assembler) ldpStp(isLoad bool, mode pairIndexMode, rt1, rt2, rn asm.Register, byteOffset int64) error {
	sizeBytes := rt1.SizeBits / 8
	imm7, err := signedImm7Scaled(byteOffset, sizeBytes)
	if err != nil {
		return err
	}
	word(a.buf, encodeLDPSTPImm(isLoad, mode, rt1.SizeBits, rBits(rt1.ID), rBits(rt2.ID), rBits(rn.ID), imm7))
	return nil
}

// Ret emits `ret x30`.
func (a *Assembler) Ret() { word(a.buf, encodeRET(uint32(X30))) }

// Nop emits `nop`.
func (a *Assembler) Nop() { word(a.buf, encodeNOP) }

// Blr emits `blr reg` (indirect call).
func (a *Assembler) Blr(reg asm.Register) { word(a.buf, encodeBLR(rBits(reg.ID))) }

// Br emits `br reg` (indirect branch without link).
func (a *Assembler) Br(reg asm.Register) { word(a.buf, encodeBR(rBits(reg.ID))) }

// --- Branches ---

// B emits an unconditional branch to target (imm26, ±128 MiB range).
func (a *Assembler) B(target asm.Label) error {
	return a.emitPCRelWord(target, asm.FixupBranch26, func(disp int64) (uint32, error) {
		imm, err := imm26FromByteDisp(disp)
		return encodeB(imm), err
	})
}

// BL emits a branch-and-link to target (imm26).
func (a *Assembler) BL(target asm.Label) error {
	return a.emitPCRelWord(target, asm.FixupBranch26, func(disp int64) (uint32, error) {
		imm, err := imm26FromByteDisp(disp)
		return encodeBL(imm), err
	})
}

// BCond emits a conditional branch (imm19, ±1 MiB range).
func (a *Assembler) BCond(cond Condition, target asm.Label) error {
	return a.emitPCRelWord(target, asm.FixupBranch19, func(disp int64) (uint32, error) {
		imm, err := imm19FromByteDisp(disp)
		return encodeBCond(cond.bits(), imm), err
	})
}

// Cbz emits `cbz rt, target` (imm19).
func (a *Assembler) Cbz(rt asm.Register, target asm.Label) error {
	return a.emitPCRelWord(target, asm.FixupBranch19, func(disp int64) (uint32, error) {
		imm, err := imm19FromByteDisp(disp)
		return encodeCBZCBNZ(false, sfBit(rt.SizeBits), imm, rBits(rt.ID)), err
	})
}

// Cbnz emits `cbnz rt, target` (imm19).
func (a *Assembler) Cbnz(rt asm.Register, target asm.Label) error {
	return a.emitPCRelWord(target, asm.FixupBranch19, func(disp int64) (uint32, error) {
		imm, err := imm19FromByteDisp(disp)
		return encodeCBZCBNZ(true, sfBit(rt.SizeBits), imm, rBits(rt.ID)), err
	})
}

// emitPCRelWord is the shared fixup machinery for every PC-relative
// 32-bit branch form: if target is already bound the instruction word is
// computed and emitted immediately; otherwise the instruction is emitted
// with a zero displacement as a placeholder and a fixup of the given kind
// recorded for Finalize, which patches only the displacement field.
//
// Per spec §4.4, a displacement overflowing the signed range is detected
// at Finalize for unbound (forward) targets; for already-bound targets we
// detect it here, immediately, since the information is already available
// and there is no reason to defer a check we can already perform.
func (a *Assembler) emitPCRelWord(target asm.Label, kind asm.FixupKind, encode func(disp int64) (uint32, error)) error {
	if a.labels.IsBound(target) {
		targetOff, _ := a.labels.OffsetOf(target)
		at := a.buf.Len()
		disp := int64(targetOff) - int64(at)
		w, err := encode(disp)
		if err != nil {
			return err
		}
		word(a.buf, w)
		return nil
	}
	at := a.buf.Len()
	placeholder, err := encode(0)
	if err != nil {
		return err
	}
	word(a.buf, placeholder)
	a.fixups = append(a.fixups, asm.Fixup{Kind: kind, AtOffset: at, InstrEnd: at, Target: target})
	return nil
}

// Finalize resolves every pending branch fixup (spec §4.5).
func (a *Assembler) Finalize() (asm.FinalizedCode, error) {
	if err := a.statics.Place(a.buf); err != nil {
		return asm.FinalizedCode{}, err
	}
	for _, fx := range a.fixups {
		targetOff, err := a.labels.OffsetOf(fx.Target)
		if err != nil {
			return asm.FinalizedCode{}, err
		}
		disp := int64(targetOff) - int64(fx.AtOffset)

		existing := a.buf.Bytes()[fx.AtOffset : fx.AtOffset+4]
		var cur [4]byte
		copy(cur[:], existing)
		base := leUint32(cur)

		var imm uint32
		switch fx.Kind {
		case asm.FixupBranch26:
			imm, err = imm26FromByteDisp(disp)
			if err != nil {
				return asm.FinalizedCode{}, err
			}
			base = (base &^ 0x3FFFFFF) | imm
		case asm.FixupBranch19:
			imm, err = imm19FromByteDisp(disp)
			if err != nil {
				return asm.FinalizedCode{}, err
			}
			base = (base &^ (0x7FFFF << 5)) | (imm << 5)
		default:
			return asm.FinalizedCode{}, fmt.Errorf("%w: unsupported fixup kind on arm64", asm.ErrInvalidArgument)
		}
		if err := a.buf.Patch32(fx.AtOffset, base); err != nil {
			return asm.FinalizedCode{}, err
		}
		_ = base
	}
	if ok, unbound := a.labels.AllBound(); !ok {
		return asm.FinalizedCode{}, fmt.Errorf("%w: %s", asm.ErrUnboundLabel, unbound)
	}
	return asm.FinalizedCode{Bytes: a.buf.Bytes()}, nil
}

func leUint32(b [4]byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
