package amd64

import (
	"fmt"

	"github.com/codegenlib/jitasm/asm"
)

// Assembler is the x86-64 Assembler of spec §4.5: it owns a CodeBuffer and
// a LabelManager, validates and encodes instructions immediately, and
// defers only label-dependent branch displacements to Finalize.
//
// Operands in this package's emit methods follow Intel-syntax "dst, src"
// order; reg-reg ALU/MOV forms are encoded MR (ModR/M.rm = dst,
// ModR/M.reg = src), matching the teacher's observed byte sequences for
// "mov rax, rdi; add rax, rsi" (48 89 F8 48 01 F0).
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
// read-only data pool (SPEC_FULL.md supplemented feature 1) and returns a
// Label bound once Finalize places the pool after the code. No memory
// operand form of this Assembler takes a label (RIP-relative addressing is
// not encoded), so its own instructions cannot load from the pool.
func (a *Assembler) AllocateStaticConst(data []byte) asm.Label {
	return a.statics.Alloc(data)
}

// NewLabel allocates a fresh label.
func (a *Assembler) NewLabel() asm.Label { return a.labels.NewLabel() }

// NewNamedLabel allocates a fresh named label.
func (a *Assembler) NewNamedLabel(name string) (asm.Label, error) {
	return a.labels.NewNamedLabel(name)
}

// Bind binds a label to the current write cursor.
func (a *Assembler) Bind(l asm.Label) error {
	return a.labels.Bind(l, uint64(a.buf.Len()))
}

// Len returns the current write cursor.
func (a *Assembler) Len() int { return a.buf.Len() }

func requireSize(r asm.Register, want int) error {
	if r.SizeBits != want {
		return fmt.Errorf("%w: expected %d-bit register, got %d-bit", asm.ErrInvalidOperandSize, want, r.SizeBits)
	}
	return nil
}

func requireNoGpbHiWithREX(regs ...asm.Register) error {
	anyExt := false
	for _, r := range regs {
		if r.SizeBits == 64 || extBit(r.ID) == 1 {
			anyExt = true
		}
	}
	if !anyExt {
		return nil
	}
	for _, r := range regs {
		if isGpbHi(r) {
			return asm.ErrInvalidUseOfGpbHi
		}
	}
	return nil
}

// MovRegReg emits `mov dst, src` for 32- or 64-bit GP registers.
func (a *Assembler) MovRegReg(dst, src asm.Register) error {
	if dst.SizeBits != src.SizeBits {
		return asm.ErrOperandSizeMismatch
	}
	if err := requireNoGpbHiWithREX(dst, src); err != nil {
		return err
	}
	var rex rexInfo
	switch dst.SizeBits {
	case 64:
		rex = rex.setW()
	case 32:
	default:
		return fmt.Errorf("%w: MovRegReg supports 32/64-bit only", asm.ErrInvalidOperandSize)
	}
	rex = encodeRegReg(a.buf, src, dst, rex)
	encodeREX(a.buf, rex)
	a.buf.EmitByte(0x89)
	emitModRMReg(a.buf, src, dst)
	return nil
}

// MovImmToReg emits `mov dst, imm32` (zero/sign-extended per width) for a
// 32- or 64-bit destination. A 64-bit destination with a value that does
// not fit in a sign-extended imm32 automatically uses the 10-byte
// MOVABS (0xB8+reg, imm64) form.
func (a *Assembler) MovImmToReg(dst asm.Register, imm int64) error {
	switch dst.SizeBits {
	case 32:
		var rex rexInfo
		if extBit(dst.ID) == 1 {
			rex = rex.setB()
		}
		encodeREX(a.buf, rex)
		a.buf.EmitByte(0xB8 | low3(dst.ID))
		a.buf.Emit32(uint32(int32(imm)))
		return nil
	case 64:
		if imm >= -(1<<31) && imm <= (1<<31)-1 {
			// mov r/m64, imm32 (sign-extended): opcode 0xC7 /0.
			rex := rexInfo{}.setW()
			if extBit(dst.ID) == 1 {
				rex = rex.setB()
			}
			encodeREX(a.buf, rex)
			a.buf.EmitByte(0xC7)
			a.buf.EmitByte(modrm(0b11, 0, low3(dst.ID)))
			a.buf.Emit32(uint32(int32(imm)))
			return nil
		}
		rex := rexInfo{}.setW()
		if extBit(dst.ID) == 1 {
			rex = rex.setB()
		}
		encodeREX(a.buf, rex)
		a.buf.EmitByte(0xB8 | low3(dst.ID))
		a.buf.Emit64(uint64(imm))
		return nil
	default:
		return fmt.Errorf("%w: MovImmToReg supports 32/64-bit only", asm.ErrInvalidOperandSize)
	}
}

// MovMemToReg emits `mov dst, [mem]`.
func (a *Assembler) MovMemToReg(dst asm.Register, mem asm.Memory) error {
	enc, err := encodeMemory(mem)
	if err != nil {
		return err
	}
	var rex rexInfo
	if dst.SizeBits == 64 {
		rex = rex.setW()
	}
	if extBit(dst.ID) == 1 {
		rex = rex.setR()
	}
	if enc.rexX {
		rex = rex.setX()
	}
	if enc.rexB {
		rex = rex.setB()
	}
	encodeREX(a.buf, rex)
	a.buf.EmitByte(0x8B)
	emitMemory(a.buf, low3(dst.ID), enc)
	return nil
}

// MovRegToMem emits `mov [mem], src`.
func (a *Assembler) MovRegToMem(mem asm.Memory, src asm.Register) error {
	enc, err := encodeMemory(mem)
	if err != nil {
		return err
	}
	var rex rexInfo
	if src.SizeBits == 64 {
		rex = rex.setW()
	}
	if extBit(src.ID) == 1 {
		rex = rex.setR()
	}
	if enc.rexX {
		rex = rex.setX()
	}
	if enc.rexB {
		rex = rex.setB()
	}
	encodeREX(a.buf, rex)
	a.buf.EmitByte(0x89)
	emitMemory(a.buf, low3(src.ID), enc)
	return nil
}

// Lea emits `lea dst, [mem]`.
func (a *Assembler) Lea(dst asm.Register, mem asm.Memory) error {
	enc, err := encodeMemory(mem)
	if err != nil {
		return err
	}
	rex := rexInfo{}
	if dst.SizeBits == 64 {
		rex = rex.setW()
	}
	if extBit(dst.ID) == 1 {
		rex = rex.setR()
	}
	if enc.rexX {
		rex = rex.setX()
	}
	if enc.rexB {
		rex = rex.setB()
	}
	encodeREX(a.buf, rex)
	a.buf.EmitByte(0x8D)
	emitMemory(a.buf, low3(dst.ID), enc)
	return nil
}

// AluOp identifies the reg-field opcode extension shared by the
// 0x01/0x03/0x81/0x83 ALU opcode group.
type AluOp int

const (
	AluAdd AluOp = iota
	AluOr
	AluAnd
	AluSub
	AluXor
	AluCmp
)

func (op AluOp) ext() byte {
	switch op {
	case AluAdd:
		return 0
	case AluOr:
		return 1
	case AluAnd:
		return 4
	case AluSub:
		return 5
	case AluXor:
		return 6
	case AluCmp:
		return 7
	default:
		return 0
	}
}

func (op AluOp) mrOpcode() byte {
	// MR form: op r/m, r. CMP uses 0x39 here for dst-src ordering.
	switch op {
	case AluAdd:
		return 0x01
	case AluOr:
		return 0x09
	case AluAnd:
		return 0x21
	case AluSub:
		return 0x29
	case AluXor:
		return 0x31
	case AluCmp:
		return 0x39
	default:
		return 0x01
	}
}

func (op AluOp) rmOpcode() byte {
	// RM form: op r, r/m — two opcode values above mrOpcode (e.g. 0x01 -> 0x03).
	return op.mrOpcode() + 2
}

// AluRegReg emits `op dst, src` (dst is both input and output for
// Add/Sub/And/Or/Xor; for Cmp dst is unmodified and flags record dst-src).
func (a *Assembler) AluRegReg(op AluOp, dst, src asm.Register) error {
	if dst.SizeBits != src.SizeBits {
		return asm.ErrOperandSizeMismatch
	}
	var rex rexInfo
	switch dst.SizeBits {
	case 64:
		rex = rex.setW()
	case 32:
	default:
		return fmt.Errorf("%w: AluRegReg supports 32/64-bit only", asm.ErrInvalidOperandSize)
	}
	rex = encodeRegReg(a.buf, src, dst, rex)
	encodeREX(a.buf, rex)
	a.buf.EmitByte(op.mrOpcode())
	emitModRMReg(a.buf, src, dst)
	return nil
}

// AluMemToReg emits `op dst, [mem]` (RM form): dst is both input and output
// for Add/Sub/And/Or/Xor; for Cmp dst is unmodified.
func (a *Assembler) AluMemToReg(op AluOp, dst asm.Register, mem asm.Memory) error {
	enc, err := encodeMemory(mem)
	if err != nil {
		return err
	}
	var rex rexInfo
	switch dst.SizeBits {
	case 64:
		rex = rex.setW()
	case 32:
	default:
		return fmt.Errorf("%w: AluMemToReg supports 32/64-bit only", asm.ErrInvalidOperandSize)
	}
	if extBit(dst.ID) == 1 {
		rex = rex.setR()
	}
	if enc.rexX {
		rex = rex.setX()
	}
	if enc.rexB {
		rex = rex.setB()
	}
	encodeREX(a.buf, rex)
	a.buf.EmitByte(op.rmOpcode())
	emitMemory(a.buf, low3(dst.ID), enc)
	return nil
}

// AluRegToMem emits `op [mem], src` (MR form).
func (a *Assembler) AluRegToMem(op AluOp, mem asm.Memory, src asm.Register) error {
	enc, err := encodeMemory(mem)
	if err != nil {
		return err
	}
	var rex rexInfo
	switch src.SizeBits {
	case 64:
		rex = rex.setW()
	case 32:
	default:
		return fmt.Errorf("%w: AluRegToMem supports 32/64-bit only", asm.ErrInvalidOperandSize)
	}
	if extBit(src.ID) == 1 {
		rex = rex.setR()
	}
	if enc.rexX {
		rex = rex.setX()
	}
	if enc.rexB {
		rex = rex.setB()
	}
	encodeREX(a.buf, rex)
	a.buf.EmitByte(op.mrOpcode())
	emitMemory(a.buf, low3(src.ID), enc)
	return nil
}

// AluImmToReg emits `op dst, imm`, selecting the one-byte sign-extended
// imm8 form (opcode 0x83) over the imm32 form (0x81) whenever the value
// fits, per spec §4.3's shortest-encoding edge-case policy.
func (a *Assembler) AluImmToReg(op AluOp, dst asm.Register, imm int64) error {
	var rex rexInfo
	switch dst.SizeBits {
	case 64:
		rex = rex.setW()
	case 32:
	default:
		return fmt.Errorf("%w: AluImmToReg supports 32/64-bit only", asm.ErrInvalidOperandSize)
	}
	if extBit(dst.ID) == 1 {
		rex = rex.setB()
	}
	encodeREX(a.buf, rex)
	if fitsSignedImm8(imm) {
		a.buf.EmitByte(0x83)
		a.buf.EmitByte(modrm(0b11, op.ext(), low3(dst.ID)))
		a.buf.EmitByte(byte(int8(imm)))
		return nil
	}
	if imm < -(1<<31) || imm > (1<<31)-1 {
		return fmt.Errorf("%w: %d does not fit in imm32", asm.ErrInvalidImmediate, imm)
	}
	a.buf.EmitByte(0x81)
	a.buf.EmitByte(modrm(0b11, op.ext(), low3(dst.ID)))
	a.buf.Emit32(uint32(int32(imm)))
	return nil
}

// ShiftOp identifies the ModR/M reg-field extension for the 0xC1 shift-
// group opcode (Intel SDM group 2).
type ShiftOp int

const (
	ShiftShl ShiftOp = iota
	ShiftShr
	ShiftSar
)

func (op ShiftOp) ext() byte {
	switch op {
	case ShiftShl:
		return 4
	case ShiftShr:
		return 5
	case ShiftSar:
		return 7
	default:
		return 4
	}
}

// ShiftImmToReg emits `shl/shr/sar dst, imm8` (opcode 0xC1 /ext ib).
func (a *Assembler) ShiftImmToReg(op ShiftOp, dst asm.Register, imm uint8) error {
	var rex rexInfo
	switch dst.SizeBits {
	case 64:
		rex = rex.setW()
	case 32:
	default:
		return fmt.Errorf("%w: ShiftImmToReg supports 32/64-bit only", asm.ErrInvalidOperandSize)
	}
	if extBit(dst.ID) == 1 {
		rex = rex.setB()
	}
	encodeREX(a.buf, rex)
	a.buf.EmitByte(0xC1)
	a.buf.EmitByte(modrm(0b11, op.ext(), low3(dst.ID)))
	a.buf.EmitByte(imm)
	return nil
}

// TestRegReg emits `test a, b` (computes a & b, sets flags, discards result).
func (a *Assembler) TestRegReg(x, y asm.Register) error {
	if x.SizeBits != y.SizeBits {
		return asm.ErrOperandSizeMismatch
	}
	var rex rexInfo
	switch x.SizeBits {
	case 64:
		rex = rex.setW()
	case 32:
	default:
		return fmt.Errorf("%w: TestRegReg supports 32/64-bit only", asm.ErrInvalidOperandSize)
	}
	rex = encodeRegReg(a.buf, y, x, rex)
	encodeREX(a.buf, rex)
	a.buf.EmitByte(0x85)
	emitModRMReg(a.buf, y, x)
	return nil
}

// PushReg emits `push reg` (always a 64-bit push in long mode).
func (a *Assembler) PushReg(reg asm.Register) error {
	var rex rexInfo
	if extBit(reg.ID) == 1 {
		rex = rex.setB()
	}
	encodeREX(a.buf, rex)
	a.buf.EmitByte(0x50 | low3(reg.ID))
	return nil
}

// PopReg emits `pop reg`.
func (a *Assembler) PopReg(reg asm.Register) error {
	var rex rexInfo
	if extBit(reg.ID) == 1 {
		rex = rex.setB()
	}
	encodeREX(a.buf, rex)
	a.buf.EmitByte(0x58 | low3(reg.ID))
	return nil
}

// Ret emits `ret`.
func (a *Assembler) Ret() { a.buf.EmitByte(0xC3) }

// Nop emits a one-byte `nop`.
func (a *Assembler) Nop() { a.buf.EmitByte(0x90) }

// CDQ / CQO sign-extend eax/rax into edx:eax / rdx:rax ahead of IDIV.
func (a *Assembler) Cdq() { a.buf.EmitByte(0x99) }
func (a *Assembler) Cqo() {
	a.buf.EmitByte(rexBase | rexW)
	a.buf.EmitByte(0x99)
}

// IdivReg64 emits `idiv src` (64-bit signed divide rdx:rax by src).
func (a *Assembler) IdivReg64(src asm.Register) error {
	rex := rexInfo{}.setW()
	if extBit(src.ID) == 1 {
		rex = rex.setB()
	}
	encodeREX(a.buf, rex)
	a.buf.EmitByte(0xF7)
	a.buf.EmitByte(modrm(0b11, 7, low3(src.ID)))
	return nil
}

// ImulRegReg64 emits `imul dst, src` (signed 64-bit multiply, two-operand
// form: 0F AF).
func (a *Assembler) ImulRegReg64(dst, src asm.Register) error {
	rex := rexInfo{}.setW()
	rex = encodeRegReg(a.buf, dst, src, rex)
	encodeREX(a.buf, rex)
	a.buf.EmitByte(0x0F)
	a.buf.EmitByte(0xAF)
	emitModRMReg(a.buf, dst, src)
	return nil
}

// CallReg emits an indirect `call reg`.
func (a *Assembler) CallReg(reg asm.Register) error {
	var rex rexInfo
	if extBit(reg.ID) == 1 {
		rex = rex.setB()
	}
	encodeREX(a.buf, rex)
	a.buf.EmitByte(0xFF)
	a.buf.EmitByte(modrm(0b11, 2, low3(reg.ID)))
	return nil
}

// --- Branches: label-aware, short-vs-long selection (spec §4.5) ---

// Call emits a direct `call target` (rel32 only; x86 has no short call).
// If target is already bound, the displacement is computed and patched
// immediately; otherwise a Rel32 fixup is recorded for Finalize.
func (a *Assembler) Call(target asm.Label) error {
	a.buf.EmitByte(0xE8)
	return a.emitRel32(target)
}

// Jmp emits an unconditional jump. If target is bound and within rel8
// range, the 2-byte short form (0xEB) is selected unless disabled; a
// forced short form is always emitted with a rel8 fixup resolved at
// Finalize, which fails with ErrDisplacementOutOfRange if the displacement
// does not fit.
func (a *Assembler) Jmp(target asm.Label, forceShort bool) error {
	return a.emitJump(0xEB, 0xE9, nil, target, forceShort)
}

// Jcc emits a conditional jump for the given Condition.
func (a *Assembler) Jcc(cond Condition, target asm.Label, forceShort bool) error {
	cc := conditionCC(cond)
	return a.emitJump(0x70|cc, 0x0F, []byte{0x80 | cc}, target, forceShort)
}

// emitJump implements the shared short/long selection and fixup recording
// logic for Jmp and Jcc. longPrefix/longTrailer together form the long
// opcode (for Jmp, longPrefix=0xE9 with no trailer; for Jcc,
// longPrefix=0x0F with trailer 0x80|cc).
func (a *Assembler) emitJump(shortOpcode, longPrefix byte, longTrailer []byte, target asm.Label, forceShort bool) error {
	bound := a.labels.IsBound(target)

	if bound && !forceShort {
		targetOff, _ := a.labels.OffsetOf(target)
		shortEnd := int64(a.buf.Len() + 2)
		disp := int64(targetOff) - shortEnd
		if disp >= -128 && disp <= 127 {
			a.buf.EmitByte(shortOpcode)
			a.buf.EmitByte(byte(int8(disp)))
			return nil
		}
		a.buf.EmitByte(longPrefix)
		a.buf.EmitBytes(longTrailer)
		return a.emitRel32(target)
	}

	if forceShort {
		a.buf.EmitByte(shortOpcode)
		at := a.buf.Reserve(1)
		end := a.buf.Len()
		a.fixups = append(a.fixups, asm.Fixup{Kind: asm.FixupRel8, AtOffset: at, InstrEnd: end, Target: target})
		return nil
	}

	a.buf.EmitByte(longPrefix)
	a.buf.EmitBytes(longTrailer)
	return a.emitRel32(target)
}

// emitRel32 reserves (or, if target is already bound, computes and writes)
// a 4-byte PC-relative displacement ending at the current cursor after the
// reservation, and records a Rel32 fixup when the target is not yet bound.
func (a *Assembler) emitRel32(target asm.Label) error {
	if a.labels.IsBound(target) {
		targetOff, _ := a.labels.OffsetOf(target)
		at := a.buf.Reserve(4)
		end := a.buf.Len()
		disp := int64(targetOff) - int64(end)
		if disp < -(1<<31) || disp > (1<<31)-1 {
			return fmt.Errorf("%w: rel32 displacement %d", asm.ErrDisplacementOutOfRange, disp)
		}
		return a.buf.Patch32(at, uint32(int32(disp)))
	}
	at := a.buf.Reserve(4)
	end := a.buf.Len()
	a.fixups = append(a.fixups, asm.Fixup{Kind: asm.FixupRel32, AtOffset: at, InstrEnd: end, Target: target})
	return nil
}

// Finalize resolves every pending fixup and returns the immutable
// finalized code (spec §4.5). The Assembler's buffer is left intact after
// a failure for diagnostics, but FinalizedCode is only returned on success.
func (a *Assembler) Finalize() (asm.FinalizedCode, error) {
	if err := a.statics.Place(a.buf); err != nil {
		return asm.FinalizedCode{}, err
	}
	for _, fx := range a.fixups {
		targetOff, err := a.labels.OffsetOf(fx.Target)
		if err != nil {
			return asm.FinalizedCode{}, err
		}
		disp := int64(targetOff) - int64(fx.InstrEnd)
		switch fx.Kind {
		case asm.FixupRel8:
			if disp < -128 || disp > 127 {
				return asm.FinalizedCode{}, fmt.Errorf("%w: rel8 displacement %d", asm.ErrDisplacementOutOfRange, disp)
			}
			if err := a.buf.Patch8(fx.AtOffset, byte(int8(disp))); err != nil {
				return asm.FinalizedCode{}, err
			}
		case asm.FixupRel32:
			if disp < -(1<<31) || disp > (1<<31)-1 {
				return asm.FinalizedCode{}, fmt.Errorf("%w: rel32 displacement %d", asm.ErrDisplacementOutOfRange, disp)
			}
			if err := a.buf.Patch32(fx.AtOffset, uint32(int32(disp))); err != nil {
				return asm.FinalizedCode{}, err
			}
		default:
			return asm.FinalizedCode{}, fmt.Errorf("%w: unsupported fixup kind on amd64", asm.ErrInvalidArgument)
		}
	}
	if ok, unbound := a.labels.AllBound(); !ok {
		return asm.FinalizedCode{}, fmt.Errorf("%w: %s", asm.ErrUnboundLabel, unbound)
	}
	return asm.FinalizedCode{Bytes: a.buf.Bytes()}, nil
}
