package ir

// rewriteExpr performs a post-order rewrite of e: children are rewritten
// first, then f is offered the (possibly already-rewritten) node. f
// returns the replacement and true if it applied a rule, or the input
// back with false if not.
func rewriteExpr(e Expr, f func(Expr) (Expr, bool)) (Expr, bool) {
	childChanged := false
	switch n := e.(type) {
	case Const, Var:
		// leaves
	case Load:
		addr, c := rewriteExpr(n.Addr, f)
		if c {
			n.Addr = addr
			childChanged = true
			e = n
		}
	case Cast:
		v, c := rewriteExpr(n.Value, f)
		if c {
			n.Value = v
			childChanged = true
			e = n
		}
	case BinOp:
		x, cx := rewriteExpr(n.X, f)
		y, cy := rewriteExpr(n.Y, f)
		if cx || cy {
			n.X, n.Y = x, y
			childChanged = true
			e = n
		}
	case UnOp:
		x, c := rewriteExpr(n.X, f)
		if c {
			n.X = x
			childChanged = true
			e = n
		}
	case Ternary:
		cnd, c1 := rewriteExpr(n.Cond, f)
		th, c2 := rewriteExpr(n.Then, f)
		el, c3 := rewriteExpr(n.Else, f)
		if c1 || c2 || c3 {
			n.Cond, n.Then, n.Else = cnd, th, el
			childChanged = true
			e = n
		}
	case Call:
		changed := false
		if n.Target != nil {
			if t, c := rewriteExpr(n.Target, f); c {
				n.Target, changed = t, true
			}
		}
		if n.Gas != nil {
			if g, c := rewriteExpr(n.Gas, f); c {
				n.Gas, changed = g, true
			}
		}
		if n.Value != nil {
			if v, c := rewriteExpr(n.Value, f); c {
				n.Value, changed = v, true
			}
		}
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			av, c := rewriteExpr(a, f)
			args[i] = av
			if c {
				changed = true
			}
		}
		n.Args = args
		if changed {
			childChanged = true
			e = n
		}
	}
	if out, applied := f(e); applied {
		return out, true
	}
	return e, childChanged
}

func walkStmts(stmts []Stmt, f func(Expr) (Expr, bool)) ([]Stmt, bool) {
	changed := false
	out := make([]Stmt, len(stmts))
	for i, s := range stmts {
		ns, c := walkStmt(s, f)
		out[i] = ns
		if c {
			changed = true
		}
	}
	return out, changed
}

func walkStmt(s Stmt, f func(Expr) (Expr, bool)) (Stmt, bool) {
	switch n := s.(type) {
	case Assign:
		v, c := rewriteExpr(n.Value, f)
		n.Value = v
		return n, c
	case Store:
		a, c1 := rewriteExpr(n.Addr, f)
		v, c2 := rewriteExpr(n.Value, f)
		n.Addr, n.Value = a, v
		return n, c1 || c2
	case If:
		cond, c0 := rewriteExpr(n.Cond, f)
		then, c1 := walkStmts(n.Then, f)
		els, c2 := walkStmts(n.Else, f)
		n.Cond, n.Then, n.Else = cond, then, els
		return n, c0 || c1 || c2
	case While:
		cond, c0 := rewriteExpr(n.Cond, f)
		body, c1 := walkStmts(n.Body, f)
		n.Cond, n.Body = cond, body
		return n, c0 || c1
	case Return:
		changed := false
		vals := make([]Expr, len(n.Values))
		for i, v := range n.Values {
			nv, c := rewriteExpr(v, f)
			vals[i] = nv
			if c {
				changed = true
			}
		}
		n.Values = vals
		return n, changed
	case Revert:
		if n.Data == nil {
			return n, false
		}
		d, c := rewriteExpr(n.Data, f)
		n.Data = d
		return n, c
	case Log:
		changed := false
		topics := make([]Expr, len(n.Topics))
		for i, t := range n.Topics {
			nt, c := rewriteExpr(t, f)
			topics[i] = nt
			if c {
				changed = true
			}
		}
		var data Expr
		if n.Data != nil {
			d, c := rewriteExpr(n.Data, f)
			data = d
			if c {
				changed = true
			}
		}
		n.Topics, n.Data = topics, data
		return n, changed
	default:
		return s, false
	}
}

func walkTerm(t Terminator, f func(Expr) (Expr, bool)) (Terminator, bool) {
	switch n := t.(type) {
	case ConditionalJump:
		c, ch := rewriteExpr(n.Cond, f)
		n.Cond = c
		return n, ch
	case TermReturn:
		changed := false
		vals := make([]Expr, len(n.Values))
		for i, v := range n.Values {
			nv, c := rewriteExpr(v, f)
			vals[i] = nv
			if c {
				changed = true
			}
		}
		n.Values = vals
		return n, changed
	case TermRevert:
		if n.Data == nil {
			return n, false
		}
		d, c := rewriteExpr(n.Data, f)
		n.Data = d
		return n, c
	default:
		return t, false
	}
}

// ApplyExprRewrite runs f over every expression reachable from fn's
// blocks (statements and terminators), replacing nodes f matches.
// It reports whether anything changed.
func ApplyExprRewrite(fn *Function, f func(Expr) (Expr, bool)) bool {
	changed := false
	for _, b := range fn.Blocks {
		stmts, c := walkStmts(b.Stmts, f)
		b.Stmts = stmts
		if c {
			changed = true
		}
		if b.Term != nil {
			term, c2 := walkTerm(b.Term, f)
			b.Term = term
			if c2 {
				changed = true
			}
		}
	}
	return changed
}

func visitExpr(e Expr, f func(Expr)) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case Load:
		visitExpr(n.Addr, f)
	case Cast:
		visitExpr(n.Value, f)
	case BinOp:
		visitExpr(n.X, f)
		visitExpr(n.Y, f)
	case UnOp:
		visitExpr(n.X, f)
	case Ternary:
		visitExpr(n.Cond, f)
		visitExpr(n.Then, f)
		visitExpr(n.Else, f)
	case Call:
		visitExpr(n.Target, f)
		visitExpr(n.Gas, f)
		visitExpr(n.Value, f)
		for _, a := range n.Args {
			visitExpr(a, f)
		}
	}
	f(e)
}

func visitStmtExprs(s Stmt, f func(Expr)) {
	switch n := s.(type) {
	case Assign:
		visitExpr(n.Value, f)
	case Store:
		visitExpr(n.Addr, f)
		visitExpr(n.Value, f)
	case If:
		visitExpr(n.Cond, f)
		for _, st := range n.Then {
			visitStmtExprs(st, f)
		}
		for _, st := range n.Else {
			visitStmtExprs(st, f)
		}
	case While:
		visitExpr(n.Cond, f)
		for _, st := range n.Body {
			visitStmtExprs(st, f)
		}
	case Return:
		for _, v := range n.Values {
			visitExpr(v, f)
		}
	case Revert:
		visitExpr(n.Data, f)
	case Log:
		for _, t := range n.Topics {
			visitExpr(t, f)
		}
		visitExpr(n.Data, f)
	}
}

func visitTermExprs(t Terminator, f func(Expr)) {
	switch n := t.(type) {
	case ConditionalJump:
		visitExpr(n.Cond, f)
	case TermReturn:
		for _, v := range n.Values {
			visitExpr(v, f)
		}
	case TermRevert:
		visitExpr(n.Data, f)
	}
}

// exprEqual is structural equality, used by the algebraic pass to
// recognize patterns like x-x and x/x.
func exprEqual(a, b Expr) bool {
	switch x := a.(type) {
	case Const:
		y, ok := b.(Const)
		return ok && x.Value.Eq(&y.Value)
	case Var:
		y, ok := b.(Var)
		return ok && x.Name == y.Name
	case Load:
		y, ok := b.(Load)
		return ok && x.Type == y.Type && exprEqual(x.Addr, y.Addr)
	case Cast:
		y, ok := b.(Cast)
		return ok && x.Type == y.Type && exprEqual(x.Value, y.Value)
	case BinOp:
		y, ok := b.(BinOp)
		return ok && x.Op == y.Op && exprEqual(x.X, y.X) && exprEqual(x.Y, y.Y)
	case UnOp:
		y, ok := b.(UnOp)
		return ok && x.Op == y.Op && exprEqual(x.X, y.X)
	case Ternary:
		y, ok := b.(Ternary)
		return ok && exprEqual(x.Cond, y.Cond) && exprEqual(x.Then, y.Then) && exprEqual(x.Else, y.Else)
	case Call:
		// Calls are never considered equal for CSE purposes: each one
		// is a distinct side-effecting operation even if its operands
		// happen to match another call's.
		return false
	default:
		return false
	}
}
