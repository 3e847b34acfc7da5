package vm

import "errors"

// Sentinel VmFault errors (§7). None of these panic the process: the
// interpreter returns them by value and the symbolic executor converts
// them into a leaf trace node.
var (
	ErrOutOfGas        = errors.New("vm: out of gas")
	ErrInvalidOpcode   = errors.New("vm: invalid opcode")
	ErrInvalidJump     = errors.New("vm: invalid jump destination")
	ErrInvalidMemory   = errors.New("vm: invalid memory size")
	ErrExecutionDone   = errors.New("vm: execution already finished")
	ErrGasUintOverflow = errors.New("vm: gas computation overflowed uint64")
)
