package decompile

import (
	"fmt"
	"strings"

	"github.com/bifrost-sh/heimdall/ir"
	"github.com/bifrost-sh/heimdall/opcodes"
)

// RenderYul builds a single Yul `object { code { ... } }` dispatching on
// the calldata selector, per spec.md §6/§4.8 (analyzer kind Yul: "a
// switch over selectors with Yul-flavored bodies").
func RenderYul(fns []ContractFunction) string {
	var b strings.Builder
	b.WriteString("// decompiled by heimdall (yul)\n")
	b.WriteString("object \"DecompiledContract\" {\n")
	b.WriteString("  code {\n")
	b.WriteString("    switch selector()\n")
	for _, f := range fns {
		fmt.Fprintf(&b, "    case 0x%x {\n", f.Snapshot.Selector)
		if f.Decompiled.IR != nil {
			for _, blk := range f.Decompiled.IR.Blocks {
				writeYulStmts(&b, blk.Stmts, 3)
			}
		}
		b.WriteString("    }\n")
	}
	b.WriteString("    default { revert(0, 0) }\n")
	b.WriteString("  }\n")
	b.WriteString("}\n")
	return b.String()
}

func writeYulStmts(b *strings.Builder, stmts []ir.Stmt, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, s := range stmts {
		switch n := s.(type) {
		case ir.Assign:
			fmt.Fprintf(b, "%slet %s := %s\n", indent, n.Name, yulExpr(n.Value))
		case ir.Store:
			fmt.Fprintf(b, "%s%s(%s, %s)\n", indent, yulStoreOp(n.Space), yulExpr(n.Addr), yulExpr(n.Value))
		case ir.If:
			fmt.Fprintf(b, "%sif %s {\n", indent, yulExpr(n.Cond))
			writeYulStmts(b, n.Then, depth+1)
			fmt.Fprintf(b, "%s}\n", indent)
			if len(n.Else) > 0 {
				fmt.Fprintf(b, "%sif iszero(%s) {\n", indent, yulExpr(n.Cond))
				writeYulStmts(b, n.Else, depth+1)
				fmt.Fprintf(b, "%s}\n", indent)
			}
		case ir.While:
			fmt.Fprintf(b, "%sfor {} %s {} {\n", indent, yulExpr(n.Cond))
			writeYulStmts(b, n.Body, depth+1)
			fmt.Fprintf(b, "%s}\n", indent)
		case ir.Return:
			if len(n.Values) == 0 {
				fmt.Fprintf(b, "%sstop()\n", indent)
				continue
			}
			fmt.Fprintf(b, "%sreturn(%s, 0x20)\n", indent, yulExpr(n.Values[0]))
		case ir.Revert:
			if n.Data == nil {
				fmt.Fprintf(b, "%srevert(0, 0)\n", indent)
				continue
			}
			fmt.Fprintf(b, "%srevert(%s, 0x20)\n", indent, yulExpr(n.Data))
		case ir.Log:
			parts := make([]string, 0, len(n.Topics)+2)
			parts = append(parts, yulExpr(n.Data), "0x20")
			for _, t := range n.Topics {
				parts = append(parts, yulExpr(t))
			}
			fmt.Fprintf(b, "%slog%d(%s)\n", indent, len(n.Topics), strings.Join(parts, ", "))
		}
	}
}

func yulStoreOp(sp ir.Space) string {
	if sp == ir.SpaceStorage {
		return "sstore"
	}
	return "mstore"
}

func yulExpr(e ir.Expr) string {
	switch n := e.(type) {
	case nil:
		return "0"
	case ir.Const:
		return "0x" + n.Value.Hex()
	case ir.Var:
		return n.Name
	case ir.Load:
		if n.Space == ir.SpaceStorage {
			return fmt.Sprintf("sload(%s)", yulExpr(n.Addr))
		}
		return fmt.Sprintf("mload(%s)", yulExpr(n.Addr))
	case ir.Cast:
		return yulExpr(n.Value)
	case ir.BinOp:
		return fmt.Sprintf("%s(%s, %s)", yulBuiltin(n.Op), yulExpr(n.X), yulExpr(n.Y))
	case ir.UnOp:
		return fmt.Sprintf("%s(%s)", yulBuiltin(n.Op), yulExpr(n.X))
	case ir.Ternary:
		// Yul has no ternary; approximate with a nested switch-free form
		// since a decompiled body never needs to evaluate to an Expr.
		return fmt.Sprintf("or(and(%s, %s), and(iszero(%s), %s))",
			yulExpr(n.Cond), yulExpr(n.Then), yulExpr(n.Cond), yulExpr(n.Else))
	case ir.Call:
		return yulCall(n)
	default:
		return "0"
	}
}

func yulCall(n ir.Call) string {
	args := make([]string, 0, len(n.Args)+3)
	args = append(args, yulExpr(n.Gas), yulExpr(n.Target))
	if n.Value != nil {
		args = append(args, yulExpr(n.Value))
	}
	for _, a := range n.Args {
		args = append(args, yulExpr(a))
	}
	return fmt.Sprintf("%s(%s)", strings.ToLower(n.Op.String()), strings.Join(args, ", "))
}

func yulBuiltin(op opcodes.OpCode) string {
	return strings.ToLower(op.String())
}
