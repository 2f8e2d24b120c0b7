package compiler

// ---------------------------------------------------------------------------
// Semantic checks: strict globals
// ---------------------------------------------------------------------------

// globalChecker rejects assignments to globals that were never declared.
// A global is declared by a declare statement or by a global function
// statement anywhere in the chunk.
type globalChecker struct {
	declared map[string]bool
	scopes   []map[string]bool
	errors   []*ParseError
}

// checkGlobals walks a parsed chunk and returns strict-global violations.
func checkGlobals(root *Block) []*ParseError {
	c := &globalChecker{declared: make(map[string]bool)}
	c.collectBlock(root)
	c.block(root)
	return c.errors
}

// ---------------------------------------------------------------------------
// Declaration pre-pass
// ---------------------------------------------------------------------------

func (c *globalChecker) collectBlock(b *Block) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		c.collectStmt(s)
	}
}

func (c *globalChecker) collectStmt(s Stmt) {
	switch s := s.(type) {
	case *DeclareStmt:
		c.declared[s.Name.Name] = true
	case *FunctionStmt:
		if n, ok := s.Target.(*Name); ok {
			c.declared[n.Name] = true
		}
		c.collectBlock(s.Func.Body)
	case *LocalFunctionStmt:
		c.collectBlock(s.Func.Body)
	case *IfStmt:
		for _, cl := range s.Clauses {
			c.collectBlock(cl.Body)
		}
		c.collectBlock(s.Else)
	case *WhileStmt:
		c.collectBlock(s.Body)
	case *RepeatStmt:
		c.collectBlock(s.Body)
	case *NumericForStmt:
		c.collectBlock(s.Body)
	case *GenericForStmt:
		c.collectBlock(s.Body)
	case *DoStmt:
		c.collectBlock(s.Body)
	}
}

// ---------------------------------------------------------------------------
// Scoped walk
// ---------------------------------------------------------------------------

func (c *globalChecker) push() {
	c.scopes = append(c.scopes, make(map[string]bool))
}

func (c *globalChecker) pop() {
	c.scopes = c.scopes[:len(c.scopes)-1]
}

func (c *globalChecker) bind(name string) {
	c.scopes[len(c.scopes)-1][name] = true
}

func (c *globalChecker) isLocal(name string) bool {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if c.scopes[i][name] {
			return true
		}
	}
	return false
}

func (c *globalChecker) block(b *Block) {
	if b == nil {
		return
	}
	c.push()
	c.stmts(b.Stmts)
	c.pop()
}

func (c *globalChecker) stmts(stmts []Stmt) {
	for _, s := range stmts {
		c.stmt(s)
	}
}

func (c *globalChecker) stmt(s Stmt) {
	switch s := s.(type) {
	case *LocalStmt:
		for _, v := range s.Values {
			c.expr(v)
		}
		for _, n := range s.Names {
			c.bind(n.Name)
		}

	case *AssignStmt:
		for _, v := range s.Values {
			c.expr(v)
		}
		for _, t := range s.Targets {
			if n, ok := t.(*Name); ok {
				if !c.isLocal(n.Name) && !c.declared[n.Name] {
					c.errors = append(c.errors, &ParseError{
						Location: n.SpanVal,
						Message:  "Assigning to undeclared global '" + n.Name + "'",
					})
				}
				continue
			}
			c.expr(t)
		}

	case *CallStmt:
		c.expr(s.Call)

	case *ReturnStmt:
		for _, v := range s.Values {
			c.expr(v)
		}

	case *IfStmt:
		for _, cl := range s.Clauses {
			c.expr(cl.Cond)
			c.block(cl.Body)
		}
		c.block(s.Else)

	case *WhileStmt:
		c.expr(s.Cond)
		c.block(s.Body)

	case *RepeatStmt:
		// the condition sees the body's locals
		c.push()
		c.stmts(s.Body.Stmts)
		c.expr(s.Cond)
		c.pop()

	case *NumericForStmt:
		c.expr(s.Start)
		c.expr(s.Limit)
		if s.Step != nil {
			c.expr(s.Step)
		}
		c.push()
		c.bind(s.Var.Name)
		c.block(s.Body)
		c.pop()

	case *GenericForStmt:
		c.expr(s.Iter)
		c.push()
		for _, v := range s.Vars {
			c.bind(v.Name)
		}
		c.block(s.Body)
		c.pop()

	case *DoStmt:
		c.block(s.Body)

	case *LocalFunctionStmt:
		c.bind(s.Name.Name)
		c.function(s.Func)

	case *FunctionStmt:
		if _, ok := s.Target.(*Name); !ok {
			c.expr(s.Target)
		}
		c.function(s.Func)
	}
}

func (c *globalChecker) function(fn *FunctionExpr) {
	c.push()
	if fn.IsMethod {
		c.bind("self")
	}
	for _, p := range fn.Params {
		c.bind(p.Name)
	}
	c.block(fn.Body)
	c.pop()
}

func (c *globalChecker) expr(e Expr) {
	switch e := e.(type) {
	case *FunctionExpr:
		c.function(e)
	case *IndexExpr:
		c.expr(e.Object)
		c.expr(e.Key)
	case *FieldExpr:
		c.expr(e.Object)
	case *CallExpr:
		c.expr(e.Func)
		for _, a := range e.Args {
			c.expr(a)
		}
	case *TableExpr:
		for _, it := range e.Items {
			if it.Key != nil {
				c.expr(it.Key)
			}
			c.expr(it.Value)
		}
	case *UnaryExpr:
		c.expr(e.Operand)
	case *BinaryExpr:
		c.expr(e.Left)
		c.expr(e.Right)
	case *ParenExpr:
		c.expr(e.Inner)
	}
}
