package amd64

import "github.com/codegenlib/jitasm/asm"

// Condition codes for Jcc/CMOVcc/SETcc, named after the x86 flag tests
// rather than their mnemonic suffix, matching the teacher's
// ConditionalRegisterState naming in internal/asm/amd64/consts.go.
type Condition int

const (
	ConditionE  Condition = iota // ZF=1 (equal / zero)
	ConditionNE                  // ZF=0
	ConditionS                   // SF=1 (negative)
	ConditionNS                  // SF=0
	ConditionG                   // signed >
	ConditionGE                  // signed >=
	ConditionL                   // signed <
	ConditionLE                  // signed <=
	ConditionA                   // unsigned >
	ConditionAE                  // unsigned >=
	ConditionB                   // unsigned <
	ConditionBE                  // unsigned <=
	ConditionO                   // OF=1
	ConditionNO                  // OF=0
)

// conditionCC returns the 4-bit "cc" field used by both the one-byte
// (0x70+cc) short Jcc and the two-byte (0x0F 0x80+cc) near Jcc encodings.
func conditionCC(c Condition) byte {
	switch c {
	case ConditionO:
		return 0x0
	case ConditionNO:
		return 0x1
	case ConditionB:
		return 0x2
	case ConditionAE:
		return 0x3
	case ConditionE:
		return 0x4
	case ConditionNE:
		return 0x5
	case ConditionBE:
		return 0x6
	case ConditionA:
		return 0x7
	case ConditionS:
		return 0x8
	case ConditionNS:
		return 0x9
	case ConditionL:
		return 0xC
	case ConditionGE:
		return 0xD
	case ConditionLE:
		return 0xE
	case ConditionG:
		return 0xF
	default:
		return 0x4
	}
}

// Instruction is the closed enumeration of amd64 mnemonic+shape forms this
// encoder supports. Naming follows the teacher's Go-assembler-derived
// convention (size suffix L=32bit, Q=64bit, W=16bit, B=8bit).
const (
	NONE asm.Instruction = iota
	MOVL
	MOVQ
	MOVW
	MOVB
	MOVZX
	MOVSX
	MOVABSQ // mov r64, imm64 (the only 10-byte amd64 form)
	LEAQ
	ADDL
	ADDQ
	SUBL
	SUBQ
	ANDL
	ANDQ
	ORL
	ORQ
	XORL
	XORQ
	CMPL
	CMPQ
	TESTL
	TESTQ
	PUSHQ
	POPQ
	RET
	NOP
	CALL
	CALLRM
	JMP
	JCC
	CDQ
	CQO
	IMULQ
	IDIVQ
	SHLQ
	SHRQ
	SARQ
)
