package arm64

import (
	"encoding/binary"
	"fmt"

	"github.com/codegenlib/jitasm/asm"
)

// word packs a 32-bit instruction into 4 little-endian bytes, per spec
// §4.4 ("every instruction is exactly 32 bits").
func word(buf *asm.CodeBuffer, w uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], w)
	buf.EmitBytes(b[:])
}

// encodeMovWide packs a MOVZ/MOVK/MOVN instruction. opc selects the
// variant (MOVN=0b00, MOVZ=0b10, MOVK=0b11); hw (0-3) selects the 16-bit
// lane shifted by hw*16; imm16 is the lane value.
func encodeMovWide(opc uint32, sf uint32, hw uint32, imm16 uint16, rd uint32) uint32 {
	return sf<<31 | opc<<29 | 0b100101<<23 | (hw&0x3)<<21 | uint32(imm16)<<5 | rd
}

func emitMovz(buf *asm.CodeBuffer, sf uint32, imm16 uint16, hw uint32, rd uint32) {
	word(buf, encodeMovWide(0b10, sf, hw, imm16, rd))
}

func emitMovk(buf *asm.CodeBuffer, sf uint32, imm16 uint16, hw uint32, rd uint32) {
	word(buf, encodeMovWide(0b11, sf, hw, imm16, rd))
}

func emitMovn(buf *asm.CodeBuffer, sf uint32, imm16 uint16, hw uint32, rd uint32) {
	word(buf, encodeMovWide(0b00, sf, hw, imm16, rd))
}

// loadConst64 lowers an arbitrary 64-bit constant into a MOVZ/MOVN seeded
// with the first informative hw-word, followed by a MOVK for every other
// non-redundant hw-word — following the teacher's load64bitConst, which
// itself ports the decision table from Go's own arm64 assembler
// (cmd/internal/obj/arm64). The encoder MUST skip MOVK for zero hw-words
// once the seed instruction has been chosen (spec §4.4).
func loadConst64(buf *asm.CodeBuffer, sf uint32, c int64, rd uint32) {
	var lanes [4]uint16
	zeros, negs := 0, 0
	lastLane := 4
	if sf == 0 {
		lastLane = 2 // 32-bit destinations only have two 16-bit lanes.
	}
	for i := 0; i < lastLane; i++ {
		lanes[i] = uint16((c >> uint(i*16)) & 0xffff)
		switch lanes[i] {
		case 0:
			zeros++
		case 0xffff:
			negs++
		}
	}

	if zeros == lastLane {
		emitMovz(buf, sf, 0, 0, rd)
		return
	}
	if negs == lastLane {
		emitMovn(buf, sf, 0, 0, rd)
		return
	}

	// Mixed lanes: the teacher's load64bitConst always seeds with whichever
	// of MOVZ/MOVN needs fewer following MOVKs (more zero lanes -> MOVZ
	// seed, more 0xffff lanes -> MOVN seed, ties favor MOVZ), then MOVKs
	// every lane the seed didn't already cover. The encoder MUST skip MOVK
	// for lanes equal to the seed's neutral value (spec §4.4).
	if zeros >= negs {
		seeded := false
		for i := 0; i < lastLane; i++ {
			if !seeded {
				if lanes[i] != 0 {
					emitMovz(buf, sf, lanes[i], uint32(i), rd)
					seeded = true
				}
				continue
			}
			if lanes[i] != 0 {
				emitMovk(buf, sf, lanes[i], uint32(i), rd)
			}
		}
	} else {
		seeded := false
		for i := 0; i < lastLane; i++ {
			if !seeded {
				if lanes[i] != 0xffff {
					emitMovn(buf, sf, ^lanes[i], uint32(i), rd)
					seeded = true
				}
				continue
			}
			if lanes[i] != 0xffff {
				emitMovk(buf, sf, lanes[i], uint32(i), rd)
			}
		}
	}
}

// --- Data-processing (register) ---

type dpOp int

const (
	dpADD dpOp = iota
	dpSUB
	dpADDS
	dpSUBS
	dpAND
	dpORR
	dpEOR
)

// encodeDPReg builds the "add/sub (shifted register)" or "logical
// (shifted register)" 32-bit word with shift amount 0 (no operand
// shifting is exposed at this layer).
func encodeDPReg(op dpOp, sf uint32, rd, rn, rm uint32) uint32 {
	switch op {
	case dpADD:
		return sf<<31 | 0b01011<<24 | rm<<16 | rn<<5 | rd
	case dpADDS:
		return sf<<31 | 1<<29 | 0b01011<<24 | rm<<16 | rn<<5 | rd
	case dpSUB:
		return sf<<31 | 1<<30 | 0b01011<<24 | rm<<16 | rn<<5 | rd
	case dpSUBS:
		return sf<<31 | 1<<30 | 1<<29 | 0b01011<<24 | rm<<16 | rn<<5 | rd
	case dpAND:
		return sf<<31 | 0b0_01010<<24 | rm<<16 | rn<<5 | rd
	case dpORR:
		return sf<<31 | 1<<29 | 0b0_01010<<24 | rm<<16 | rn<<5 | rd
	case dpEOR:
		return sf<<31 | 1<<30 | 0b0_01010<<24 | rm<<16 | rn<<5 | rd
	default:
		return 0
	}
}

// --- Data-processing (immediate) ---

// encodeAddSubImm builds the "add/sub (immediate)" 32-bit word used for
// stack-pointer adjustment in the prologue/epilogue (`sub sp, sp, #n` /
// `add sp, sp, #n`). imm12 is unshifted (shift field fixed at 0); frame
// sizes below 4096 bytes — the overwhelming majority — fit directly, and
// larger ones are rejected rather than silently truncated.
func encodeAddSubImm(isSub bool, sf uint32, rd, rn, imm12 uint32) uint32 {
	var op uint32
	if isSub {
		op = 1
	}
	return sf<<31 | op<<30 | 0b100010<<23 | (imm12&0xFFF)<<10 | rn<<5 | rd
}

func unsignedImm12Unscaled(v int64) (uint32, error) {
	if v < 0 || v > 0xFFF {
		return 0, fmt.Errorf("%w: immediate %d does not fit an unshifted imm12 add/sub operand", asm.ErrInvalidImmediate, v)
	}
	return uint32(v), nil
}

// --- Load/store ---

// unsignedImm12Scaled validates and scales a byte displacement for the
// LDR/STR unsigned-offset form, which stores imm12 = byte-offset / size.
func unsignedImm12Scaled(byteOffset int64, sizeBytes int) (uint32, error) {
	if byteOffset < 0 || byteOffset%int64(sizeBytes) != 0 {
		return 0, fmt.Errorf("%w: offset %d not a non-negative multiple of %d", asm.ErrInvalidDisplacement, byteOffset, sizeBytes)
	}
	scaled := byteOffset / int64(sizeBytes)
	if scaled > 0xFFF {
		return 0, fmt.Errorf("%w: scaled offset %d exceeds 12 bits", asm.ErrInvalidDisplacement, scaled)
	}
	return uint32(scaled), nil
}

// sizeField returns the "size" field (bits 31-30) for LDR/STR (Xt/Wt),
// selecting the 64-bit or 32-bit variant.
func sizeField(sizeBits int) uint32 {
	if sizeBits == 64 {
		return 0b11
	}
	return 0b10
}

func encodeLDRSTRImm(isLoad bool, sizeBits int, rt, rn, imm12 uint32) uint32 {
	opc := uint32(0b00)
	if isLoad {
		opc = 0b01
	}
	return sizeField(sizeBits)<<30 | 0b111_0_01<<24 | opc<<22 | imm12<<10 | rn<<5 | rt
}

// signedImm7Scaled validates and scales a byte displacement for the
// LDP/STP pair forms.
func signedImm7Scaled(byteOffset int64, sizeBytes int) (uint32, error) {
	if byteOffset%int64(sizeBytes) != 0 {
		return 0, fmt.Errorf("%w: offset %d not a multiple of %d", asm.ErrInvalidDisplacement, byteOffset, sizeBytes)
	}
	scaled := byteOffset / int64(sizeBytes)
	if scaled < -64 || scaled > 63 {
		return 0, fmt.Errorf("%w: scaled offset %d exceeds signed 7 bits", asm.ErrInvalidDisplacement, scaled)
	}
	return uint32(scaled) & 0x7F, nil
}

// pairIndexMode selects pre-index (writeback before access, used by
// prologue's `stp x29, x30, [sp, #-16]!`) vs post-index vs plain offset.
type pairIndexMode int

const (
	pairOffset pairIndexMode = iota
	pairPreIndex
	pairPostIndex
)

func encodeLDPSTPImm(isLoad bool, mode pairIndexMode, sizeBits int, rt1, rt2, rn, imm7 uint32) uint32 {
	opc := uint32(0b10)
	if sizeBits != 64 {
		opc = 0b00
	}
	var l uint32
	if isLoad {
		l = 1
	}
	var fixed uint32
	switch mode {
	case pairPreIndex:
		fixed = 0b011
	case pairPostIndex:
		fixed = 0b001
	default:
		fixed = 0b010
	}
	return opc<<30 | 0b101<<27 | fixed<<23 | l<<22 | imm7<<15 | rt2<<10 | rn<<5 | rt1
}

// --- Branches ---

func encodeB(imm26 uint32) uint32  { return 0b000101<<26 | imm26 }
func encodeBL(imm26 uint32) uint32 { return 0b100101<<26 | imm26 }

func encodeBCond(cond uint32, imm19 uint32) uint32 {
	return 0b0101010<<25 | (imm19&0x7FFFF)<<5 | cond
}

func encodeCBZCBNZ(isNonZero bool, sf uint32, imm19 uint32, rt uint32) uint32 {
	var op uint32
	if isNonZero {
		op = 1
	}
	return sf<<31 | 0b011010<<25 | op<<24 | (imm19&0x7FFFF)<<5 | rt
}

func encodeBR(rn uint32) uint32  { return 0b1101011_0_000_11111_000000<<10 | rn<<5 }
func encodeBLR(rn uint32) uint32 { return 0b1101011_0_001_11111_000000<<10 | rn<<5 }
func encodeRET(rn uint32) uint32 { return 0b1101011_0_010_11111_000000<<10 | rn<<5 }

const encodeNOP uint32 = 0xD503201F

// imm26Range / imm19Range bound the PC-relative branch offsets of spec
// §4.4: ±128 MiB for B/BL (imm26, scaled by 4), ±1 MiB for conditional and
// CBZ/CBNZ (imm19, scaled by 4).
func imm26FromByteDisp(disp int64) (uint32, error) {
	if disp%4 != 0 {
		return 0, fmt.Errorf("%w: branch displacement %d not 4-byte aligned", asm.ErrInvalidDisplacement, disp)
	}
	scaled := disp / 4
	if scaled < -(1<<25) || scaled > (1<<25)-1 {
		return 0, fmt.Errorf("%w: imm26 displacement %d out of range", asm.ErrDisplacementOutOfRange, disp)
	}
	return uint32(scaled) & 0x3FFFFFF, nil
}

func imm19FromByteDisp(disp int64) (uint32, error) {
	if disp%4 != 0 {
		return 0, fmt.Errorf("%w: branch displacement %d not 4-byte aligned", asm.ErrInvalidDisplacement, disp)
	}
	scaled := disp / 4
	if scaled < -(1<<18) || scaled > (1<<18)-1 {
		return 0, fmt.Errorf("%w: imm19 displacement %d out of range", asm.ErrDisplacementOutOfRange, disp)
	}
	return uint32(scaled) & 0x7FFFF, nil
}
