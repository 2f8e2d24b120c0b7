package compiler

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree
// ---------------------------------------------------------------------------

// Position represents a source location. Lines and columns are 0-based.
type Position struct {
	Offset int // byte offset
	Line   int // 0-based line number
	Column int // 0-based byte column
}

// Span represents a range in source code. End is exclusive.
type Span struct {
	Start Position
	End   Position
}

// MakeSpan creates a span from two positions.
func MakeSpan(start, end Position) Span {
	return Span{Start: start, End: end}
}

// Before reports whether p comes before q in the source.
func (p Position) Before(q Position) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Column < q.Column
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// Comment is a source comment captured by the lexer.
type Comment struct {
	SpanVal Span
	Text    string
	Block   bool // --[[ ]] rather than --
}

func (n *Comment) Span() Span { return n.SpanVal }
func (n *Comment) node()      {}

// TypeAnnotation is a parsed type. The code generator ignores types;
// they are kept so tooling can report them.
type TypeAnnotation struct {
	SpanVal Span
	Text    string // normalized source text of the type
}

func (n *TypeAnnotation) Span() Span { return n.SpanVal }
func (n *TypeAnnotation) node()      {}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// NilLiteral represents nil.
type NilLiteral struct {
	SpanVal Span
}

func (n *NilLiteral) Span() Span { return n.SpanVal }
func (n *NilLiteral) node()      {}
func (n *NilLiteral) expr()      {}

// BoolLiteral represents true or false.
type BoolLiteral struct {
	SpanVal Span
	Value   bool
}

func (n *BoolLiteral) Span() Span { return n.SpanVal }
func (n *BoolLiteral) node()      {}
func (n *BoolLiteral) expr()      {}

// NumberLiteral represents a numeric literal.
type NumberLiteral struct {
	SpanVal Span
	Value   float64
}

func (n *NumberLiteral) Span() Span { return n.SpanVal }
func (n *NumberLiteral) node()      {}
func (n *NumberLiteral) expr()      {}

// StringLiteral represents a string literal.
type StringLiteral struct {
	SpanVal Span
	Value   string
}

func (n *StringLiteral) Span() Span { return n.SpanVal }
func (n *StringLiteral) node()      {}
func (n *StringLiteral) expr()      {}

// Name represents a variable reference.
type Name struct {
	SpanVal Span
	Name    string
}

func (n *Name) Span() Span { return n.SpanVal }
func (n *Name) node()      {}
func (n *Name) expr()      {}

// IndexExpr represents obj[key].
type IndexExpr struct {
	SpanVal Span
	Object  Expr
	Key     Expr
}

func (n *IndexExpr) Span() Span { return n.SpanVal }
func (n *IndexExpr) node()      {}
func (n *IndexExpr) expr()      {}

// FieldExpr represents obj.name.
type FieldExpr struct {
	SpanVal Span
	Object  Expr
	Field   string
}

func (n *FieldExpr) Span() Span { return n.SpanVal }
func (n *FieldExpr) node()      {}
func (n *FieldExpr) expr()      {}

// CallExpr represents f(args) or obj:method(args).
type CallExpr struct {
	SpanVal Span
	Func    Expr   // callee; the receiver for method calls
	Method  string // non-empty for obj:method(args)
	Args    []Expr
}

func (n *CallExpr) Span() Span { return n.SpanVal }
func (n *CallExpr) node()      {}
func (n *CallExpr) expr()      {}

// Param is a function parameter.
type Param struct {
	SpanVal Span
	Name    string
	Type    *TypeAnnotation // nil when unannotated
}

// FunctionExpr represents a function body, named or anonymous.
type FunctionExpr struct {
	SpanVal    Span
	Name       string // debug name, empty for anonymous functions
	Params     []Param
	ReturnType *TypeAnnotation
	Body       *Block
	IsMethod   bool // declared with ':'; receives an implicit self
}

func (n *FunctionExpr) Span() Span { return n.SpanVal }
func (n *FunctionExpr) node()      {}
func (n *FunctionExpr) expr()      {}

// TableItemKind distinguishes the three table constructor item forms.
type TableItemKind int

const (
	TableItemList    TableItemKind = iota // {v}
	TableItemNamed                        // {name = v}
	TableItemGeneral                      // {[k] = v}
)

// TableItem is one entry in a table constructor.
type TableItem struct {
	Kind  TableItemKind
	Key   Expr // StringLiteral for named items; nil for list items
	Value Expr
}

// TableExpr represents a table constructor.
type TableExpr struct {
	SpanVal Span
	Items   []TableItem
}

func (n *TableExpr) Span() Span { return n.SpanVal }
func (n *TableExpr) node()      {}
func (n *TableExpr) expr()      {}

// UnaryExpr represents -x, not x or #x.
type UnaryExpr struct {
	SpanVal Span
	Op      TokenType
	Operand Expr
}

func (n *UnaryExpr) Span() Span { return n.SpanVal }
func (n *UnaryExpr) node()      {}
func (n *UnaryExpr) expr()      {}

// BinaryExpr represents a binary operation, including and/or.
type BinaryExpr struct {
	SpanVal Span
	Op      TokenType
	Left    Expr
	Right   Expr
}

func (n *BinaryExpr) Span() Span { return n.SpanVal }
func (n *BinaryExpr) node()      {}
func (n *BinaryExpr) expr()      {}

// ParenExpr represents a parenthesized expression.
type ParenExpr struct {
	SpanVal Span
	Inner   Expr
}

func (n *ParenExpr) Span() Span { return n.SpanVal }
func (n *ParenExpr) node()      {}
func (n *ParenExpr) expr()      {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// Block is a sequence of statements with its own scope.
type Block struct {
	SpanVal Span
	Stmts   []Stmt
}

func (n *Block) Span() Span { return n.SpanVal }
func (n *Block) node()      {}

// Binding is a name introduced by local or for.
type Binding struct {
	SpanVal Span
	Name    string
	Type    *TypeAnnotation
}

// LocalStmt represents local a, b = x, y.
type LocalStmt struct {
	SpanVal Span
	Names   []Binding
	Values  []Expr
}

func (n *LocalStmt) Span() Span { return n.SpanVal }
func (n *LocalStmt) node()      {}
func (n *LocalStmt) stmt()      {}

// AssignStmt represents a, t.b, t[c] = x, y, z.
type AssignStmt struct {
	SpanVal Span
	Targets []Expr // *Name, *FieldExpr or *IndexExpr
	Values  []Expr
}

func (n *AssignStmt) Span() Span { return n.SpanVal }
func (n *AssignStmt) node()      {}
func (n *AssignStmt) stmt()      {}

// CallStmt represents a call used as a statement.
type CallStmt struct {
	SpanVal Span
	Call    *CallExpr
}

func (n *CallStmt) Span() Span { return n.SpanVal }
func (n *CallStmt) node()      {}
func (n *CallStmt) stmt()      {}

// ReturnStmt represents return [values].
type ReturnStmt struct {
	SpanVal Span
	Values  []Expr
}

func (n *ReturnStmt) Span() Span { return n.SpanVal }
func (n *ReturnStmt) node()      {}
func (n *ReturnStmt) stmt()      {}

// IfClause is one condition/body pair of an if statement.
type IfClause struct {
	Cond Expr
	Body *Block
}

// IfStmt represents if/elseif/else.
type IfStmt struct {
	SpanVal Span
	Clauses []IfClause
	Else    *Block // nil when absent
}

func (n *IfStmt) Span() Span { return n.SpanVal }
func (n *IfStmt) node()      {}
func (n *IfStmt) stmt()      {}

// WhileStmt represents while cond do body end.
type WhileStmt struct {
	SpanVal Span
	Cond    Expr
	Body    *Block
}

func (n *WhileStmt) Span() Span { return n.SpanVal }
func (n *WhileStmt) node()      {}
func (n *WhileStmt) stmt()      {}

// RepeatStmt represents repeat body until cond. The condition sees the
// body's locals.
type RepeatStmt struct {
	SpanVal Span
	Body    *Block
	Cond    Expr
}

func (n *RepeatStmt) Span() Span { return n.SpanVal }
func (n *RepeatStmt) node()      {}
func (n *RepeatStmt) stmt()      {}

// NumericForStmt represents for v = start, limit[, step] do body end.
type NumericForStmt struct {
	SpanVal Span
	Var     Binding
	Start   Expr
	Limit   Expr
	Step    Expr // nil means 1
	Body    *Block
}

func (n *NumericForStmt) Span() Span { return n.SpanVal }
func (n *NumericForStmt) node()      {}
func (n *NumericForStmt) stmt()      {}

// GenericForStmt represents for k, v in expr do body end.
type GenericForStmt struct {
	SpanVal Span
	Vars    []Binding
	Iter    Expr
	Body    *Block
}

func (n *GenericForStmt) Span() Span { return n.SpanVal }
func (n *GenericForStmt) node()      {}
func (n *GenericForStmt) stmt()      {}

// DoStmt represents do body end.
type DoStmt struct {
	SpanVal Span
	Body    *Block
}

func (n *DoStmt) Span() Span { return n.SpanVal }
func (n *DoStmt) node()      {}
func (n *DoStmt) stmt()      {}

// BreakStmt represents break.
type BreakStmt struct {
	SpanVal Span
}

func (n *BreakStmt) Span() Span { return n.SpanVal }
func (n *BreakStmt) node()      {}
func (n *BreakStmt) stmt()      {}

// ContinueStmt represents continue.
type ContinueStmt struct {
	SpanVal Span
}

func (n *ContinueStmt) Span() Span { return n.SpanVal }
func (n *ContinueStmt) node()      {}
func (n *ContinueStmt) stmt()      {}

// LocalFunctionStmt represents local function name() end.
type LocalFunctionStmt struct {
	SpanVal Span
	Name    Binding
	Func    *FunctionExpr
}

func (n *LocalFunctionStmt) Span() Span { return n.SpanVal }
func (n *LocalFunctionStmt) node()      {}
func (n *LocalFunctionStmt) stmt()      {}

// FunctionStmt represents function a.b:c() end. Target is a *Name for
// global functions, otherwise a *FieldExpr chain.
type FunctionStmt struct {
	SpanVal Span
	Target  Expr
	Func    *FunctionExpr
}

func (n *FunctionStmt) Span() Span { return n.SpanVal }
func (n *FunctionStmt) node()      {}
func (n *FunctionStmt) stmt()      {}

// DeclareStmt represents declare name[: Type]. It makes a global assignable.
type DeclareStmt struct {
	SpanVal Span
	Name    Binding
}

func (n *DeclareStmt) Span() Span { return n.SpanVal }
func (n *DeclareStmt) node()      {}
func (n *DeclareStmt) stmt()      {}

// TypeAliasStmt represents [export] type Name = Type.
type TypeAliasStmt struct {
	SpanVal  Span
	Name     string
	Exported bool
	Type     *TypeAnnotation
}

func (n *TypeAliasStmt) Span() Span { return n.SpanVal }
func (n *TypeAliasStmt) node()      {}
func (n *TypeAliasStmt) stmt()      {}

// ---------------------------------------------------------------------------
// Parse result
// ---------------------------------------------------------------------------

// ParseResult is the outcome of a successful parse.
type ParseResult struct {
	Root     *Block
	Comments []Comment // only populated when comments are captured
	Lines    int       // number of lines in the source
}
