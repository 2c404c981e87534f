package arm64

import "github.com/codegenlib/jitasm/asm"

// Condition codes for B.cond, following the ARM ARM's 4-bit cond field.
type Condition int

const (
	ConditionEQ Condition = iota
	ConditionNE
	ConditionCS // HS
	ConditionCC // LO
	ConditionMI
	ConditionPL
	ConditionVS
	ConditionVC
	ConditionHI
	ConditionLS
	ConditionGE
	ConditionLT
	ConditionGT
	ConditionLE
	ConditionAL
)

func (c Condition) bits() uint32 { return uint32(c) & 0xF }

// Instruction is the closed enumeration of arm64 mnemonic+shape forms this
// encoder supports.
const (
	NONE asm.Instruction = iota
	MOVZ
	MOVK
	MOVN
	ADD
	SUB
	ADDS
	SUBS
	AND
	ORR
	EOR
	CMP
	MUL
	SDIV
	STRImm
	LDRImm
	STPImm
	LDPImm
	B
	BL
	BCond
	CBZ
	CBNZ
	BR
	BLR
	RET
	NOP
)
