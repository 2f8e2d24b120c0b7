package compiler

// Walk traverses the tree rooted at n in depth-first order, calling fn for
// each node. If fn returns false the node's children are skipped.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}

	switch n := n.(type) {
	case *Block:
		for _, s := range n.Stmts {
			Walk(s, fn)
		}

	// Statements
	case *LocalStmt:
		walkExprs(n.Values, fn)
	case *AssignStmt:
		walkExprs(n.Targets, fn)
		walkExprs(n.Values, fn)
	case *CallStmt:
		Walk(n.Call, fn)
	case *ReturnStmt:
		walkExprs(n.Values, fn)
	case *IfStmt:
		for _, cl := range n.Clauses {
			Walk(cl.Cond, fn)
			Walk(cl.Body, fn)
		}
		if n.Else != nil {
			Walk(n.Else, fn)
		}
	case *WhileStmt:
		Walk(n.Cond, fn)
		Walk(n.Body, fn)
	case *RepeatStmt:
		Walk(n.Body, fn)
		Walk(n.Cond, fn)
	case *NumericForStmt:
		Walk(n.Start, fn)
		Walk(n.Limit, fn)
		if n.Step != nil {
			Walk(n.Step, fn)
		}
		Walk(n.Body, fn)
	case *GenericForStmt:
		Walk(n.Iter, fn)
		Walk(n.Body, fn)
	case *DoStmt:
		Walk(n.Body, fn)
	case *LocalFunctionStmt:
		Walk(n.Func, fn)
	case *FunctionStmt:
		Walk(n.Target, fn)
		Walk(n.Func, fn)

	// Expressions
	case *IndexExpr:
		Walk(n.Object, fn)
		Walk(n.Key, fn)
	case *FieldExpr:
		Walk(n.Object, fn)
	case *CallExpr:
		Walk(n.Func, fn)
		walkExprs(n.Args, fn)
	case *FunctionExpr:
		Walk(n.Body, fn)
	case *TableExpr:
		for _, it := range n.Items {
			if it.Key != nil {
				Walk(it.Key, fn)
			}
			Walk(it.Value, fn)
		}
	case *UnaryExpr:
		Walk(n.Operand, fn)
	case *BinaryExpr:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *ParenExpr:
		Walk(n.Inner, fn)
	}
}

func walkExprs(list []Expr, fn func(Node) bool) {
	for _, e := range list {
		Walk(e, fn)
	}
}
