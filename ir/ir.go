// Package ir is the decompiler's intermediate representation (C9): a
// small expression/statement AST, built from a symbolic.VMTrace by the
// decompile package, and a set of idempotent rewrite passes run to a
// whole-program fixpoint before C8 renders it as Solidity, Yul, or ABI
// JSON. Node kinds are plain structs behind a closed Expr/Stmt/
// Terminator interface (a tagged sum via type switch), matching
// spec.md's "no virtual dispatch required" redesign note rather than
// the method-per-node style go-ethereum itself avoids too.
package ir

import (
	"github.com/holiman/uint256"

	"github.com/bifrost-sh/heimdall/opcodes"
)

// TypeKind names the handful of surface types the decompiler infers
// (see snapshot.CalldataFrame.InferredType for the matching heuristic).
type TypeKind int

const (
	KindWord TypeKind = iota
	KindBool
	KindAddress
	KindBytes
)

// Type is a TypeKind plus, for KindBytes, its byte width.
type Type struct {
	Kind  TypeKind
	Width int
}

func (t Type) String() string {
	switch t.Kind {
	case KindBool:
		return "bool"
	case KindAddress:
		return "address"
	case KindBytes:
		return "bytes32"
	default:
		return "uint256"
	}
}

var Word = Type{Kind: KindWord}
var Bool = Type{Kind: KindBool}
var Address = Type{Kind: KindAddress}

func Bytes(width int) Type { return Type{Kind: KindBytes, Width: width} }

// Expr is any IR expression node.
type Expr interface{ isExpr() }

// Space names the address space a Load/Store cell lives in, so the
// decompile package's statement heuristic can render `storage[...]`
// vs `memory[...]` from the same node shapes instead of needing
// separate expression kinds per space.
type Space int

const (
	SpaceMemory Space = iota
	SpaceStorage
)

func (s Space) String() string {
	if s == SpaceStorage {
		return "storage"
	}
	return "memory"
}

type Const struct{ Value uint256.Int }
type Var struct{ Name string }
type Load struct {
	Type  Type
	Space Space
	Addr  Expr
}
type Cast struct {
	Type  Type
	Value Expr
}
type BinOp struct {
	Op   opcodes.OpCode
	X, Y Expr
}
type UnOp struct {
	Op opcodes.OpCode
	X  Expr
}
type Ternary struct {
	Cond, Then, Else Expr
}

// Call is a synthesized external-call expression, built by the
// decompile package's extcall_heuristic (spec.md §4.8 item 5):
// `address(Target).Name{gas: Gas, value: Value}(Args)`. Name is empty
// when the callee's selector could not be resolved.
type Call struct {
	Op                     opcodes.OpCode
	Target, Gas, Value     Expr
	Args                   []Expr
	Name                   string
	IsTransferDegradation  bool // gas == 2300 or empty calldata: render as .transfer(value)
}

func (Const) isExpr()   {}
func (Var) isExpr()     {}
func (Load) isExpr()    {}
func (Cast) isExpr()    {}
func (BinOp) isExpr()   {}
func (UnOp) isExpr()    {}
func (Ternary) isExpr() {}
func (Call) isExpr()    {}

// ConstFromUint64 builds a Const for a small literal, for convenience
// in passes and tests.
func ConstFromUint64(v uint64) Const { return Const{Value: *uint256.NewInt(v)} }

// Stmt is any IR statement node in a structured (post loop/if
// heuristic) function body.
type Stmt interface{ isStmt() }

type Assign struct {
	Name  string
	Value Expr
}
type Store struct {
	Space       Space
	Addr, Value Expr
}
type If struct {
	Cond       Expr
	Then, Else []Stmt
}
type While struct {
	Cond Expr
	Body []Stmt
}
type Return struct{ Values []Expr }
type Revert struct{ Data Expr }
type Log struct {
	// Name is the resolved event signature, empty for an unresolved
	// topic (spec.md §4.8 item 1: "emit X(...) when selector resolves,
	// else raw log<N>(...)").
	Name   string
	Topics []Expr
	Data   Expr
}

func (Assign) isStmt() {}
func (Store) isStmt()  {}
func (If) isStmt()     {}
func (While) isStmt()  {}
func (Return) isStmt() {}
func (Revert) isStmt() {}
func (Log) isStmt()    {}

// Terminator is a basic block's raw control-flow exit, as recovered
// directly from a CFG edge — distinct from the structured If/While
// statements the decompile heuristics build on top of it.
type Terminator interface{ isTerminator() }

type Jump struct{ Target uint64 }
type ConditionalJump struct {
	Cond       Expr
	Then, Else uint64
}
type TermReturn struct{ Values []Expr }
type TermRevert struct{ Data Expr }

func (Jump) isTerminator()            {}
func (ConditionalJump) isTerminator() {}
func (TermReturn) isTerminator()      {}
func (TermRevert) isTerminator()      {}

// Block is one basic block of a Function, keyed by its starting PC.
type Block struct {
	PC    uint64
	Stmts []Stmt
	Term  Terminator
}

// Function is a decompiled function: spec.md's "Function = [Block]".
type Function struct {
	Name      string
	Selector  [4]byte
	Blocks    []*Block
	VarCount  int
}

// NewVar allocates the next synthetic variable name for fn, in the
// `var_N` form the dead-variable-elimination pass recognizes.
func (fn *Function) NewVar() Var {
	name := syntheticVarName(fn.VarCount)
	fn.VarCount++
	return Var{Name: name}
}

func syntheticVarName(n int) string {
	const prefix = "var_"
	digits := []byte{}
	if n == 0 {
		digits = []byte{'0'}
	}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return prefix + string(digits)
}
