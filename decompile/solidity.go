package decompile

import (
	"fmt"
	"strings"

	"github.com/bifrost-sh/heimdall/ir"
	"github.com/bifrost-sh/heimdall/opcodes"
)

// RenderSolidity assembles the header comment and `contract
// DecompiledContract { ... }` body spec.md §6 describes, one function
// per ContractFunction. It never aims for compilable output — reading
// pseudocode, not round-tripping a contract, is the goal.
func RenderSolidity(fns []ContractFunction) string {
	var b strings.Builder
	b.WriteString("// decompiled by heimdall (solidity)\n")
	b.WriteString("contract DecompiledContract {\n")
	for i, f := range fns {
		if i > 0 {
			b.WriteString("\n")
		}
		writeSolidityFunction(&b, f)
	}
	b.WriteString("}\n")
	return b.String()
}

func writeSolidityFunction(b *strings.Builder, f ContractFunction) {
	snap := f.Snapshot
	params := make([]string, len(snap.ArgTypes()))
	for i, t := range snap.ArgTypes() {
		params[i] = fmt.Sprintf("%s %s", t, paramName(i))
	}
	fmt.Fprintf(b, "    // selector 0x%x\n", snap.Selector)
	for _, n := range f.Decompiled.Notices {
		fmt.Fprintf(b, "    // %s\n", n)
	}
	fmt.Fprintf(b, "    function %s(%s) external %s {\n",
		functionName(snap.Name), strings.Join(params, ", "), stateMutability(snap))
	if f.Decompiled.IR != nil {
		for _, blk := range f.Decompiled.IR.Blocks {
			writeSolidityStmts(b, blk.Stmts, 2)
		}
	}
	b.WriteString("    }\n")
}

func writeSolidityStmts(b *strings.Builder, stmts []ir.Stmt, depth int) {
	indent := strings.Repeat("    ", depth)
	for _, s := range stmts {
		switch n := s.(type) {
		case ir.Assign:
			fmt.Fprintf(b, "%svar %s = %s;\n", indent, n.Name, solExpr(n.Value))
		case ir.Store:
			fmt.Fprintf(b, "%s%s[%s] = %s;\n", indent, n.Space, solExpr(n.Addr), solExpr(n.Value))
		case ir.If:
			fmt.Fprintf(b, "%sif (%s) {\n", indent, solExpr(n.Cond))
			writeSolidityStmts(b, n.Then, depth+1)
			if len(n.Else) > 0 {
				fmt.Fprintf(b, "%s} else {\n", indent)
				writeSolidityStmts(b, n.Else, depth+1)
			}
			fmt.Fprintf(b, "%s}\n", indent)
		case ir.While:
			fmt.Fprintf(b, "%swhile (%s) {\n", indent, solExpr(n.Cond))
			writeSolidityStmts(b, n.Body, depth+1)
			fmt.Fprintf(b, "%s}\n", indent)
		case ir.Return:
			if len(n.Values) == 0 {
				fmt.Fprintf(b, "%sreturn;\n", indent)
				continue
			}
			vals := make([]string, len(n.Values))
			for i, v := range n.Values {
				vals[i] = solExpr(v)
			}
			fmt.Fprintf(b, "%sreturn %s;\n", indent, strings.Join(vals, ", "))
		case ir.Revert:
			if n.Data == nil {
				fmt.Fprintf(b, "%srevert();\n", indent)
				continue
			}
			fmt.Fprintf(b, "%srevert(%s);\n", indent, solExpr(n.Data))
		case ir.Log:
			parts := make([]string, 0, len(n.Topics)+1)
			for _, t := range n.Topics {
				parts = append(parts, solExpr(t))
			}
			parts = append(parts, solExpr(n.Data))
			if n.Name != "" {
				fmt.Fprintf(b, "%semit %s(%s);\n", indent, functionName(n.Name), strings.Join(parts, ", "))
			} else {
				fmt.Fprintf(b, "%slog%d(%s);\n", indent, len(n.Topics), strings.Join(parts, ", "))
			}
		}
	}
}

// solExpr renders an ir.Expr the way opcodes.WrappedOpcode.Solidify
// renders a provenance DAG, extended with the Load/Call node shapes
// the decompile heuristics introduce on top of it.
func solExpr(e ir.Expr) string {
	switch n := e.(type) {
	case nil:
		return ""
	case ir.Const:
		return opcodes.Constant(&n.Value).Solidify()
	case ir.Var:
		return n.Name
	case ir.Load:
		return fmt.Sprintf("%s[%s]", n.Space, solExpr(n.Addr))
	case ir.Cast:
		return fmt.Sprintf("%s(%s)", n.Type, solExpr(n.Value))
	case ir.BinOp:
		return fmt.Sprintf("(%s %s %s)", solExpr(n.X), solInfix(n.Op), solExpr(n.Y))
	case ir.UnOp:
		return fmt.Sprintf("%s(%s)", solUnary(n.Op), solExpr(n.X))
	case ir.Ternary:
		return fmt.Sprintf("(%s ? %s : %s)", solExpr(n.Cond), solExpr(n.Then), solExpr(n.Else))
	case ir.Call:
		return solCall(n)
	default:
		return "?"
	}
}

func solCall(n ir.Call) string {
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		args[i] = solExpr(a)
	}
	if !isExternalCallOp(n.Op) {
		return fmt.Sprintf("%s(%s)", n.Name, strings.Join(args, ", "))
	}
	if n.IsTransferDegradation {
		return fmt.Sprintf("address(%s).transfer(%s)", solExpr(n.Target), solExpr(n.Value))
	}
	name := n.Name
	if name == "" {
		name = "call"
	}
	opts := fmt.Sprintf("gas: %s", solExpr(n.Gas))
	if n.Value != nil {
		opts += fmt.Sprintf(", value: %s", solExpr(n.Value))
	}
	return fmt.Sprintf("address(%s).%s{%s}(%s)", solExpr(n.Target), name, opts, strings.Join(args, ", "))
}

func solInfix(op opcodes.OpCode) string {
	switch op {
	case opcodes.ADD:
		return "+"
	case opcodes.SUB:
		return "-"
	case opcodes.MUL:
		return "*"
	case opcodes.DIV, opcodes.SDIV:
		return "/"
	case opcodes.MOD, opcodes.SMOD:
		return "%"
	case opcodes.AND:
		return "&"
	case opcodes.OR:
		return "|"
	case opcodes.XOR:
		return "^"
	case opcodes.SHL:
		return "<<"
	case opcodes.SHR, opcodes.SAR:
		return ">>"
	case opcodes.LT, opcodes.SLT:
		return "<"
	case opcodes.GT, opcodes.SGT:
		return ">"
	case opcodes.EQ:
		return "=="
	case opcodes.EXP:
		return "**"
	default:
		return op.String()
	}
}

func solUnary(op opcodes.OpCode) string {
	switch op {
	case opcodes.ISZERO:
		return "!"
	case opcodes.NOT:
		return "~"
	default:
		return op.String()
	}
}
