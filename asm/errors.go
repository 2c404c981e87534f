package asm

import "errors"

// Error kinds raised by the encoder, assembler, builder, and register
// allocator layers. Each is a sentinel so callers can use errors.Is; richer
// context is added with fmt.Errorf("...: %w", Err...) at the raise site.
var (
	ErrOutOfMemory              = errors.New("asm: out of memory")
	ErrInvalidArgument          = errors.New("asm: invalid argument")
	ErrInvalidInstruction       = errors.New("asm: invalid instruction")
	ErrInvalidOperandSize       = errors.New("asm: invalid operand size")
	ErrOperandSizeMismatch      = errors.New("asm: operand size mismatch")
	ErrInvalidAddress           = errors.New("asm: invalid memory address operand")
	ErrInvalidAddressScale      = errors.New("asm: invalid memory address scale")
	ErrInvalidDisplacement      = errors.New("asm: invalid displacement")
	ErrInvalidPrefixCombination = errors.New("asm: invalid prefix combination")
	ErrInvalidImmediate         = errors.New("asm: immediate out of range for encoding")
	ErrInvalidUseOfGpbHi        = errors.New("asm: cannot use AH/BH/CH/DH with REX prefix")
	ErrInvalidUseOfGpq          = errors.New("asm: 64-bit operand requires REX.W")

	ErrInvalidLabel        = errors.New("asm: unknown label")
	ErrLabelAlreadyBound   = errors.New("asm: label already bound")
	ErrLabelAlreadyDefined = errors.New("asm: named label already defined")
	ErrLabelNameTooLong    = errors.New("asm: label name too long")
	ErrUnboundLabel        = errors.New("asm: label never bound")

	ErrDisplacementOutOfRange = errors.New("asm: branch displacement out of range for encoding")

	ErrIllegalVirtReg = errors.New("asm: virtual register allocation infeasible")
	ErrOverlappedRegs = errors.New("asm: overlapping register assignment")

	ErrOffsetOutOfRange = errors.New("asm: patch offset out of range")

	ErrFailedToMapExecutableMemory = errors.New("asm: failed to map executable memory")
)

// MaxLabelNameLength bounds the length of a named label, matching the
// teacher's JumpTableMaximumOffset-style defensive constants.
const MaxLabelNameLength = 255
