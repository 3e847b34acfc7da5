package vm

import (
	"golang.org/x/crypto/sha3"

	"github.com/bifrost-sh/heimdall/opcodes"
	"github.com/holiman/uint256"
)

// opHandler executes one opcode given its already-popped input frames
// (index 0 was the top of the stack) and returns the values to push.
// Handlers that mutate PC directly (JUMP/JUMPI) set v.jumped so Step
// skips its own pc++. Handlers that stop execution set v.ExitCode and
// may return a nil/empty outputs slice.
type opHandler func(v *VM, op opcodes.OpCode, inputs []StackFrame) ([]uint256.Int, error)

var jumpTable = map[opcodes.OpCode]opHandler{}

func reg(op opcodes.OpCode, h opHandler) { jumpTable[op] = h }

func init() {
	reg(opcodes.STOP, opStop)
	reg(opcodes.ADD, binOp(func(z, x, y *uint256.Int) { z.Add(x, y) }))
	reg(opcodes.MUL, binOp(func(z, x, y *uint256.Int) { z.Mul(x, y) }))
	reg(opcodes.SUB, binOp(func(z, x, y *uint256.Int) { z.Sub(x, y) }))
	reg(opcodes.DIV, binOp(func(z, x, y *uint256.Int) { z.Div(x, y) }))
	reg(opcodes.SDIV, binOp(func(z, x, y *uint256.Int) { z.SDiv(x, y) }))
	reg(opcodes.MOD, binOp(func(z, x, y *uint256.Int) { z.Mod(x, y) }))
	reg(opcodes.SMOD, binOp(func(z, x, y *uint256.Int) { z.SMod(x, y) }))
	reg(opcodes.ADDMOD, opAddMod)
	reg(opcodes.MULMOD, opMulMod)
	reg(opcodes.EXP, opExp)
	reg(opcodes.SIGNEXTEND, opSignExtend)

	reg(opcodes.LT, boolOp(func(x, y *uint256.Int) bool { return x.Lt(y) }))
	reg(opcodes.GT, boolOp(func(x, y *uint256.Int) bool { return x.Gt(y) }))
	reg(opcodes.SLT, boolOp(func(x, y *uint256.Int) bool { return x.Slt(y) }))
	reg(opcodes.SGT, boolOp(func(x, y *uint256.Int) bool { return x.Sgt(y) }))
	reg(opcodes.EQ, boolOp(func(x, y *uint256.Int) bool { return x.Eq(y) }))
	reg(opcodes.ISZERO, opIsZero)
	reg(opcodes.AND, binOp(func(z, x, y *uint256.Int) { z.And(x, y) }))
	reg(opcodes.OR, binOp(func(z, x, y *uint256.Int) { z.Or(x, y) }))
	reg(opcodes.XOR, binOp(func(z, x, y *uint256.Int) { z.Xor(x, y) }))
	reg(opcodes.NOT, opNot)
	reg(opcodes.BYTE, opByte)
	reg(opcodes.SHL, opShl)
	reg(opcodes.SHR, opShr)
	reg(opcodes.SAR, opSar)

	reg(opcodes.SHA3, opSha3)

	reg(opcodes.ADDRESS, opAddress)
	reg(opcodes.BALANCE, constOp(1))
	reg(opcodes.ORIGIN, opOrigin)
	reg(opcodes.CALLER, opCaller)
	reg(opcodes.CALLVALUE, opCallValue)
	reg(opcodes.CALLDATALOAD, opCalldataLoad)
	reg(opcodes.CALLDATASIZE, opCalldataSize)
	reg(opcodes.CALLDATACOPY, opCalldataCopy)
	reg(opcodes.CODESIZE, opCodeSize)
	reg(opcodes.CODECOPY, opCodeCopy)
	reg(opcodes.GASPRICE, opGasPrice)
	reg(opcodes.EXTCODESIZE, opExtCodeSize)
	reg(opcodes.EXTCODECOPY, opExtCodeCopy)
	reg(opcodes.RETURNDATASIZE, opReturnDataSize)
	reg(opcodes.RETURNDATACOPY, opReturnDataCopy)
	reg(opcodes.EXTCODEHASH, constOp(1))

	reg(opcodes.BLOCKHASH, constOp(0))
	reg(opcodes.COINBASE, opCoinbase)
	reg(opcodes.TIMESTAMP, opTimestamp)
	reg(opcodes.NUMBER, opNumber)
	reg(opcodes.DIFFICULTY, opDifficulty)
	reg(opcodes.GASLIMIT, opGasLimit)
	reg(opcodes.CHAINID, opChainID)
	reg(opcodes.SELFBALANCE, constOp(1))
	reg(opcodes.BASEFEE, opBaseFee)
	reg(opcodes.BLOBHASH, constOp(0))
	reg(opcodes.BLOBBASEFEE, constOp(0))

	reg(opcodes.POP, opPop)
	reg(opcodes.MLOAD, opMload)
	reg(opcodes.MSTORE, opMstore)
	reg(opcodes.MSTORE8, opMstore8)
	reg(opcodes.SLOAD, opSload)
	reg(opcodes.SSTORE, opSstore)
	reg(opcodes.JUMP, opJump)
	reg(opcodes.JUMPI, opJumpi)
	reg(opcodes.PC, opPC)
	reg(opcodes.MSIZE, opMsize)
	reg(opcodes.GAS, opGas)
	reg(opcodes.JUMPDEST, opNoop)
	reg(opcodes.TLOAD, opTload)
	reg(opcodes.TSTORE, opTstore)
	reg(opcodes.MCOPY, opMcopy)

	// DUPn/SWAPn are handled directly by VM.stepDup/VM.stepSwap (they
	// don't fit the pop-N/push-1 handler shape); no jumpTable entry.
	for i := 0; i < 5; i++ {
		reg(opcodes.LOG0+opcodes.OpCode(i), opLog(i))
	}

	reg(opcodes.CREATE, opCreate)
	reg(opcodes.CREATE2, opCreate)
	reg(opcodes.CALL, opExternalCall)
	reg(opcodes.CALLCODE, opExternalCall)
	reg(opcodes.DELEGATECALL, opExternalCall)
	reg(opcodes.STATICCALL, opExternalCall)
	reg(opcodes.RETURN, opReturn)
	reg(opcodes.REVERT, opRevert)
	reg(opcodes.INVALID, opInvalid)
	reg(opcodes.SELFDESTRUCT, opSelfDestruct)
}

// binOp builds a handler for two-input, one-output pure arithmetic/bitwise
// opcodes. x is the value that was on top of the stack, y the next one.
func binOp(f func(z, x, y *uint256.Int)) opHandler {
	return func(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
		var z uint256.Int
		x, y := in[0].Value, in[1].Value
		f(&z, &x, &y)
		return []uint256.Int{z}, nil
	}
}

func boolOp(f func(x, y *uint256.Int) bool) opHandler {
	return func(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
		x, y := in[0].Value, in[1].Value
		var z uint256.Int
		if f(&x, &y) {
			z.SetOne()
		}
		return []uint256.Int{z}, nil
	}
}

func constOp(val uint64) opHandler {
	return func(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
		return []uint256.Int{*uint256.NewInt(val)}, nil
	}
}

func opNoop(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	return nil, nil
}

func opStop(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	v.ExitCode = ExitStop
	return nil, nil
}

func opAddMod(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	var z uint256.Int
	x, y, m := in[0].Value, in[1].Value, in[2].Value
	z.AddMod(&x, &y, &m)
	return []uint256.Int{z}, nil
}

func opMulMod(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	var z uint256.Int
	x, y, m := in[0].Value, in[1].Value, in[2].Value
	z.MulMod(&x, &y, &m)
	return []uint256.Int{z}, nil
}

// opExp charges the dynamic 50-gas-per-byte surcharge for the exponent,
// on top of the 10 gas already charged as MinGas.
func opExp(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	base, exponent := in[0].Value, in[1].Value
	dyn := uint64(50 * byteLen(&exponent))
	if !v.useGas(dyn) {
		return nil, nil
	}
	var z uint256.Int
	z.Exp(&base, &exponent)
	return []uint256.Int{z}, nil
}

func byteLen(x *uint256.Int) int {
	return (x.BitLen() + 7) / 8
}

func opSignExtend(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	back, num := in[0].Value, in[1].Value
	var z uint256.Int
	z.ExtendSign(&num, &back)
	return []uint256.Int{z}, nil
}

func opIsZero(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	x := in[0].Value
	var z uint256.Int
	if x.IsZero() {
		z.SetOne()
	}
	return []uint256.Int{z}, nil
}

func opNot(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	x := in[0].Value
	var z uint256.Int
	z.Not(&x)
	return []uint256.Int{z}, nil
}

// opByte implements BYTE(i, x): i >= 32 -> 0, else the i-th
// most-significant byte of x.
func opByte(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	i, x := in[0].Value, in[1].Value
	z := x
	z.Byte(&i)
	return []uint256.Int{z}, nil
}

func opShl(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	shift, value := in[0].Value, in[1].Value
	var z uint256.Int
	if shift.LtUint64(256) {
		z.Lsh(&value, uint(shift.Uint64()))
	}
	return []uint256.Int{z}, nil
}

func opShr(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	shift, value := in[0].Value, in[1].Value
	var z uint256.Int
	if shift.LtUint64(256) {
		z.Rsh(&value, uint(shift.Uint64()))
	}
	return []uint256.Int{z}, nil
}

func opSar(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	shift, value := in[0].Value, in[1].Value
	var z uint256.Int
	if shift.GtUint64(255) {
		if value.Sign() >= 0 {
			return []uint256.Int{z}, nil
		}
		z.SetAllOne()
		return []uint256.Int{z}, nil
	}
	z.SRsh(&value, uint(shift.Uint64()))
	return []uint256.Int{z}, nil
}

// opSha3 hashes a memory slice with Keccak-256. Gas is 30 (MinGas) + 6
// per word + memory expansion.
func opSha3(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	offset, size := in[0].Value, in[1].Value
	off, sz, ok := to64(&offset, &size)
	if !ok {
		v.ExitCode = ExitInvalidMemory
		return nil, nil
	}
	if !v.chargeMemory(off, sz) {
		return nil, nil
	}
	words := (sz + 31) / 32
	if !v.useGas(6 * words) {
		return nil, nil
	}
	data := v.Memory.GetCopy(off, sz)
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var z uint256.Int
	z.SetBytes(h.Sum(nil))
	return []uint256.Int{z}, nil
}

func to64(offset, size *uint256.Int) (off, sz uint64, ok bool) {
	o, overflow1 := offset.Uint64WithOverflow()
	s, overflow2 := size.Uint64WithOverflow()
	if overflow1 || overflow2 {
		return 0, 0, false
	}
	return o, s, true
}

// u64 converts a single operand, used where only one value needs the
// overflow-checked conversion to a byte offset/length.
func u64(x *uint256.Int) (uint64, bool) {
	return x.Uint64WithOverflow()
}

func addr20ToU256(addr [20]byte) uint256.Int {
	var z uint256.Int
	var buf [32]byte
	copy(buf[12:], addr[:])
	z.SetBytes(buf[:])
	return z
}

func opAddress(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	return []uint256.Int{addr20ToU256(v.Context.Address)}, nil
}
func opOrigin(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	return []uint256.Int{addr20ToU256(v.Context.Origin)}, nil
}
func opCaller(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	return []uint256.Int{addr20ToU256(v.Context.Caller)}, nil
}
func opCallValue(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	return []uint256.Int{v.Context.Value}, nil
}
func opGasPrice(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	return []uint256.Int{v.Context.GasPrice}, nil
}
func opCoinbase(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	return []uint256.Int{{}}, nil
}
func opTimestamp(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	return []uint256.Int{*uint256.NewInt(v.Context.Timestamp)}, nil
}
func opNumber(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	return []uint256.Int{*uint256.NewInt(v.Context.Number)}, nil
}
func opDifficulty(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	return []uint256.Int{v.Context.Difficulty}, nil
}
func opGasLimit(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	return []uint256.Int{*uint256.NewInt(v.Context.GasLimit)}, nil
}
func opChainID(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	return []uint256.Int{v.Context.ChainID}, nil
}
func opBaseFee(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	return []uint256.Int{v.Context.BaseFee}, nil
}

func opCalldataLoad(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	offset := in[0].Value
	off, overflow := offset.Uint64WithOverflow()
	var z uint256.Int
	if overflow {
		return []uint256.Int{z}, nil
	}
	z.SetBytes(getData(v.Calldata, off, 32))
	return []uint256.Int{z}, nil
}

func opCalldataSize(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	return []uint256.Int{*uint256.NewInt(uint64(len(v.Calldata)))}, nil
}

func opCalldataCopy(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	return copyToMemory(v, in, v.Calldata)
}

func opCodeSize(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	return []uint256.Int{*uint256.NewInt(uint64(len(v.Code)))}, nil
}

func opCodeCopy(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	return copyToMemory(v, in, v.Code)
}

func opExtCodeSize(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	if v.Context.CodeSize != 0 {
		return []uint256.Int{*uint256.NewInt(v.Context.CodeSize)}, nil
	}
	return []uint256.Int{*uint256.NewInt(1)}, nil
}

func opExtCodeCopy(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	// inputs: addr, destOffset, offset, size. The synthesized external
	// code is empty, matching the "treat EXTCODE* as constants" contract.
	memIn := in[1:]
	return copyToMemory(v, memIn, nil)
}

func opReturnDataSize(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	return []uint256.Int{*uint256.NewInt(uint64(len(v.ReturnData)))}, nil
}

func opReturnDataCopy(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	return copyToMemory(v, in, v.ReturnData)
}

// copyToMemory implements the *COPY family: pop destOffset, offset, size;
// charge memory expansion + 3 gas/word; write source[offset:offset+size]
// (zero-padded past the end) into memory at destOffset.
func copyToMemory(v *VM, in []StackFrame, source []byte) ([]uint256.Int, error) {
	destOffset, offset, size := in[0].Value, in[1].Value, in[2].Value
	dest, sz, ok := to64(&destOffset, &size)
	if !ok {
		v.ExitCode = ExitInvalidMemory
		return nil, nil
	}
	if !v.chargeMemory(dest, sz) {
		return nil, nil
	}
	words := (sz + 31) / 32
	if !v.useGas(3 * words) {
		return nil, nil
	}
	off, _ := u64(&offset)
	data := getData(source, off, sz)
	op := opcodes.NewWrappedOpcode(opcodes.CODECOPY, in[1].Operation)
	if err := v.Memory.Store(dest, data, op); err != nil {
		v.ExitCode = ExitInvalidMemory
	}
	return nil, nil
}

// getData returns size bytes from data starting at offset, zero-padding
// past the end (and entirely, if offset itself is past the end).
func getData(data []byte, offset, size uint64) []byte {
	out := make([]byte, size)
	if offset >= uint64(len(data)) {
		return out
	}
	copy(out, data[offset:])
	return out
}

func opPop(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	return nil, nil
}

func opMload(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	offset := in[0].Value
	off, ok := u64(&offset)
	if !ok {
		v.ExitCode = ExitInvalidMemory
		return nil, nil
	}
	if !v.chargeMemory(off, 32) {
		return nil, nil
	}
	val, _ := v.Memory.Load(off)
	return []uint256.Int{val}, nil
}

func opMstore(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	offset, value := in[0].Value, in[1].Value
	off, ok := u64(&offset)
	if !ok {
		v.ExitCode = ExitInvalidMemory
		return nil, nil
	}
	if !v.chargeMemory(off, 32) {
		return nil, nil
	}
	word := value.Bytes32()
	opNode := opcodes.NewWrappedOpcode(op, in[1].Operation)
	if err := v.Memory.Store(off, word[:], opNode); err != nil {
		v.ExitCode = ExitInvalidMemory
	}
	return nil, nil
}

func opMstore8(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	offset, value := in[0].Value, in[1].Value
	off, ok := u64(&offset)
	if !ok {
		v.ExitCode = ExitInvalidMemory
		return nil, nil
	}
	if !v.chargeMemory(off, 1) {
		return nil, nil
	}
	b := byte(value.Uint64())
	opNode := opcodes.NewWrappedOpcode(op, in[1].Operation)
	if err := v.Memory.Store(off, []byte{b}, opNode); err != nil {
		v.ExitCode = ExitInvalidMemory
	}
	return nil, nil
}

func opMcopy(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	destOffset, offset, size := in[0].Value, in[1].Value, in[2].Value
	dest, sz, ok := to64(&destOffset, &size)
	if !ok {
		v.ExitCode = ExitInvalidMemory
		return nil, nil
	}
	off, ok2 := u64(&offset)
	if !ok2 {
		v.ExitCode = ExitInvalidMemory
		return nil, nil
	}
	maxEnd := dest
	if off+sz > maxEnd {
		maxEnd = off + sz
	}
	if !v.chargeMemory(0, maxEnd) {
		return nil, nil
	}
	words := (sz + 31) / 32
	if !v.useGas(3 * words) {
		return nil, nil
	}
	data := v.Memory.GetCopy(off, sz)
	opNode := opcodes.NewWrappedOpcode(op, in[1].Operation, in[2].Operation)
	if err := v.Memory.Store(dest, data, opNode); err != nil {
		v.ExitCode = ExitInvalidMemory
	}
	return nil, nil
}

func toWord(u *uint256.Int) Word {
	var w Word
	b := u.Bytes32()
	copy(w[:], b[:])
	return w
}

func opSload(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	key := toWord(&in[0].Value)
	cost := v.Storage.AccessCost(key) - 100 // MinGas already charged 100 (warm baseline)
	if cost > 0 {
		if !v.useGas(cost) {
			return nil, nil
		}
	}
	val := v.Storage.SLoad(key)
	var z uint256.Int
	z.SetBytes(val[:])
	return []uint256.Int{z}, nil
}

func opSstore(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	key := toWord(&in[0].Value)
	value := toWord(&in[1].Value)
	cost := v.Storage.StorageCost(key, value) - 100
	if !v.useGas(cost) {
		return nil, nil
	}
	v.Storage.SStore(key, value)
	return nil, nil
}

func opTload(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	key := toWord(&in[0].Value)
	val := v.Storage.TLoad(key)
	var z uint256.Int
	z.SetBytes(val[:])
	return []uint256.Int{z}, nil
}

func opTstore(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	key := toWord(&in[0].Value)
	value := toWord(&in[1].Value)
	v.Storage.TStore(key, value)
	return nil, nil
}

// opJump sets pc = target iff the byte at target is JUMPDEST.
func opJump(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	target := in[0].Value
	t, overflow := target.Uint64WithOverflow()
	if overflow || !v.jumpdests[t] {
		v.ExitCode = ExitInvalidJump
		return nil, nil
	}
	v.PC = t
	v.jumped = true
	return nil, nil
}

// opJumpi does the same, only if the condition is non-zero; otherwise
// falls through to pc+1.
func opJumpi(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	target, cond := in[0].Value, in[1].Value
	if cond.IsZero() {
		return nil, nil
	}
	t, overflow := target.Uint64WithOverflow()
	if overflow || !v.jumpdests[t] {
		v.ExitCode = ExitInvalidJump
		return nil, nil
	}
	v.PC = t
	v.jumped = true
	return nil, nil
}

func opPC(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	return []uint256.Int{*uint256.NewInt(v.PC)}, nil
}

func opMsize(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	return []uint256.Int{*uint256.NewInt(uint64(v.Memory.Len()))}, nil
}

func opGas(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	return []uint256.Int{*uint256.NewInt(v.Gas)}, nil
}

func opLog(n int) opHandler {
	return func(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
		offset, size := in[0].Value, in[1].Value
		off, sz, ok := to64(&offset, &size)
		if !ok {
			v.ExitCode = ExitInvalidMemory
			return nil, nil
		}
		if !v.chargeMemory(off, sz) {
			return nil, nil
		}
		words := (sz + 31) / 32
		if !v.useGas(375*uint64(n) + 8*sz + 0*words) {
			return nil, nil
		}
		topics := make([]opcodes.WrappedOpcode, n)
		for i := 0; i < n; i++ {
			topics[i] = in[2+i].Operation
		}
		v.Events = append(v.Events, Event{
			PC:     v.PC,
			Topics: topics,
			Offset: in[0].Operation,
			Size:   in[1].Operation,
			Data:   v.Memory.GetCopy(off, sz),
		})
		return nil, nil
	}
}

// opCreate/opCreate2 do not deploy anything (no world state): they
// consume their stack inputs, push a synthetic nonzero address, per the
// "does not execute external calls" contract applied symmetrically to
// contract creation.
func opCreate(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	return []uint256.Int{*uint256.NewInt(1)}, nil
}

// opExternalCall handles CALL/CALLCODE/DELEGATECALL/STATICCALL: it does
// not recurse, records the call, pushes success=1, and leaves ReturnData
// empty.
func opExternalCall(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	var gas, target, value, argsOffset, argsSize opcodes.WrappedOpcode
	var valueVal uint256.Int
	var argsOffV, argsSzV uint256.Int

	switch op {
	case opcodes.CALL, opcodes.CALLCODE:
		gas, target, value = in[0].Operation, in[1].Operation, in[2].Operation
		valueVal = in[2].Value
		argsOffset, argsSize = in[3].Operation, in[4].Operation
		argsOffV, argsSzV = in[3].Value, in[4].Value
	default: // DELEGATECALL, STATICCALL: no value operand
		gas, target = in[0].Operation, in[1].Operation
		argsOffset, argsSize = in[2].Operation, in[3].Operation
		argsOffV, argsSzV = in[2].Value, in[3].Value
	}

	argsOff, argsSz, ok := to64(&argsOffV, &argsSzV)
	if !ok {
		v.ExitCode = ExitInvalidMemory
		return nil, nil
	}
	if !v.chargeMemory(argsOff, argsSz) {
		return nil, nil
	}
	calldata := v.Memory.GetCopy(argsOff, argsSz)

	v.ExternalCalls = append(v.ExternalCalls, ExternalCall{
		PC: v.PC, Op: op, Gas: gas, Target: target, Value: value,
		ArgsOffset: argsOffset, ArgsSize: argsSize, Calldata: calldata,
	})
	v.ReturnData = []byte{}
	_ = valueVal
	return []uint256.Int{*uint256.NewInt(1)}, nil
}

func opReturn(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	offset, size := in[0].Value, in[1].Value
	off, sz, ok := to64(&offset, &size)
	if !ok {
		v.ExitCode = ExitInvalidMemory
		return nil, nil
	}
	if !v.chargeMemory(off, sz) {
		return nil, nil
	}
	v.ReturnData = v.Memory.GetCopy(off, sz)
	v.ExitCode = ExitReturn
	return nil, nil
}

func opRevert(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	offset, size := in[0].Value, in[1].Value
	off, sz, ok := to64(&offset, &size)
	if !ok {
		v.ExitCode = ExitInvalidMemory
		return nil, nil
	}
	if !v.chargeMemory(off, sz) {
		return nil, nil
	}
	v.ReturnData = v.Memory.GetCopy(off, sz)
	v.ExitCode = ExitRevert
	return nil, nil
}

func opInvalid(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	v.ExitCode = ExitInvalidOpcode
	return nil, nil
}

func opSelfDestruct(v *VM, op opcodes.OpCode, in []StackFrame) ([]uint256.Int, error) {
	v.ExitCode = ExitSelfDestruct
	return nil, nil
}
