package compiler

import (
	"fmt"
	"sort"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent parser with error recovery
// ---------------------------------------------------------------------------

// Parser parses script source into an AST. Syntax errors do not stop the
// parse: the parser records them, resynchronizes and keeps going so that a
// single run reports every independent error.
type Parser struct {
	lexer     *Lexer
	opts      ParseOptions
	input     string
	curToken  Token
	peekToken Token
	prevEnd   Position // end of the last consumed token

	errors []*ParseError

	depth          int
	recursionLimit int
	aborted        bool
}

// NewParser creates a new parser for the given input.
func NewParser(input string, opts ParseOptions) *Parser {
	p := &Parser{
		lexer:          NewLexer(input),
		opts:           opts,
		input:          input,
		recursionLimit: ParseRecursionLimit.Get(),
	}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.prevEnd = p.curToken.End
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the peek token is of the given type.
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// curIsName reports whether the current token is the given contextual name.
func (p *Parser) curIsName(name string) bool {
	return p.curToken.Type == TokenName && p.curToken.Literal == name
}

// errorAt records a parse error at the given span. Errors at the same
// position as the previous one are dropped.
func (p *Parser) errorAt(span Span, format string, args ...any) {
	if n := len(p.errors); n > 0 && p.errors[n-1].Location.Start == span.Start {
		return
	}
	p.errors = append(p.errors, &ParseError{Location: span, Message: fmt.Sprintf(format, args...)})
}

// errorExpected records an "Expected X, got Y" error at the current token.
// Lexical error tokens report their own message instead.
func (p *Parser) errorExpected(what string, context string) {
	if p.curTokenIs(TokenError) {
		p.errorAt(p.curToken.Span(), "%s", p.curToken.Literal)
		return
	}
	if context != "" {
		p.errorAt(p.curToken.Span(), "Expected %s when parsing %s, got %s", what, context, p.curToken.Describe())
		return
	}
	p.errorAt(p.curToken.Span(), "Expected %s, got %s", what, p.curToken.Describe())
}

// expect advances if the current token matches, otherwise records an error
// and leaves the token in place.
func (p *Parser) expect(t TokenType, context string) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorExpected("'"+t.String()+"'", context)
	return false
}

// expectMatch consumes the token closing open, reporting where the
// construct was opened if it is missing.
func (p *Parser) expectMatch(closing TokenType, open Token) bool {
	if p.curTokenIs(closing) {
		p.nextToken()
		return true
	}
	if p.curTokenIs(TokenError) {
		p.errorAt(p.curToken.Span(), "%s", p.curToken.Literal)
		return false
	}
	p.errorAt(p.curToken.Span(), "Expected '%s' (to close '%s' at line %d), got %s",
		closing, open.Literal, open.Pos.Line+1, p.curToken.Describe())
	return false
}

// expectName consumes a name token and returns it as a binding.
func (p *Parser) expectName(context string) (Binding, bool) {
	if p.curTokenIs(TokenName) {
		b := Binding{SpanVal: p.curToken.Span(), Name: p.curToken.Literal}
		p.nextToken()
		return b, true
	}
	p.errorExpected("identifier", context)
	return Binding{SpanVal: Span{Start: p.curToken.Pos, End: p.curToken.Pos}}, false
}

// enter guards recursion depth. It returns false once the limit is hit,
// after which the parse is abandoned.
func (p *Parser) enter() bool {
	p.depth++
	if p.depth > p.recursionLimit {
		if !p.aborted {
			p.errorAt(p.curToken.Span(), "Exceeded allowed recursion depth; simplify your expression to make the code compile")
			p.aborted = true
		}
		return false
	}
	return !p.aborted
}

func (p *Parser) leave() {
	p.depth--
}

// Errors returns accumulated parse errors in source order.
func (p *Parser) Errors() []*ParseError {
	sort.SliceStable(p.errors, func(i, j int) bool {
		return p.errors[i].Location.Start.Before(p.errors[j].Location.Start)
	})
	return p.errors
}

// Comments returns the comments seen by the lexer.
func (p *Parser) Comments() []Comment {
	return p.lexer.Comments()
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseChunk parses the whole input as a single block.
func (p *Parser) ParseChunk() *Block {
	start := p.curToken.Pos
	var stmts []Stmt
	for {
		b := p.parseBlock()
		stmts = append(stmts, b.Stmts...)
		if p.curTokenIs(TokenEOF) || p.aborted {
			break
		}
		before := p.curToken.Pos.Offset
		p.errorExpected("<eof>", "")
		p.synchronize(before)
	}
	return &Block{SpanVal: MakeSpan(start, p.curToken.End), Stmts: stmts}
}

// blockFollow reports whether the current token ends a block.
func (p *Parser) blockFollow() bool {
	switch p.curToken.Type {
	case TokenEOF, TokenEnd, TokenElse, TokenElseif, TokenUntil:
		return true
	}
	return false
}

// statementKeyword reports whether the current token always starts a statement.
func (p *Parser) statementKeyword() bool {
	switch p.curToken.Type {
	case TokenLocal, TokenFunction, TokenIf, TokenWhile, TokenFor, TokenRepeat, TokenDo, TokenReturn, TokenBreak:
		return true
	}
	return false
}

// synchronize skips tokens after an error until something that plausibly
// starts the next statement.
func (p *Parser) synchronize(before int) {
	errLine := p.curToken.Pos.Line
	if n := len(p.errors); n > 0 {
		errLine = p.errors[n-1].Location.Start.Line
	}
	if p.curToken.Pos.Offset == before && !p.curTokenIs(TokenEOF) {
		p.nextToken()
	}
	for !p.curTokenIs(TokenEOF) {
		if p.blockFollow() || p.statementKeyword() {
			return
		}
		if (p.curTokenIs(TokenName) || p.curTokenIs(TokenLParen)) && p.curToken.Pos.Line > errLine {
			return
		}
		p.nextToken()
	}
}

// parseBlock parses statements until a block terminator.
func (p *Parser) parseBlock() *Block {
	start := p.curToken.Pos
	var stmts []Stmt

	if !p.enter() {
		p.leave()
		return &Block{SpanVal: MakeSpan(start, start)}
	}
	defer p.leave()

	for !p.blockFollow() && !p.aborted {
		if p.curTokenIs(TokenReturn) {
			stmts = append(stmts, p.parseReturn())
			break
		}

		before := p.curToken.Pos.Offset
		errsBefore := len(p.errors)
		stmt := p.parseStatement()
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
		if len(p.errors) > errsBefore {
			p.synchronize(before)
		} else if p.curToken.Pos.Offset == before {
			p.nextToken()
		}

		if p.curTokenIs(TokenSemicolon) {
			p.nextToken()
		}
	}

	return &Block{SpanVal: MakeSpan(start, p.prevEnd), Stmts: stmts}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// parseStatement parses a single statement.
func (p *Parser) parseStatement() Stmt {
	switch p.curToken.Type {
	case TokenIf:
		return p.parseIf()
	case TokenWhile:
		return p.parseWhile()
	case TokenDo:
		return p.parseDo()
	case TokenFor:
		return p.parseFor()
	case TokenRepeat:
		return p.parseRepeat()
	case TokenFunction:
		return p.parseFunctionStmt()
	case TokenLocal:
		return p.parseLocal()
	case TokenBreak:
		s := &BreakStmt{SpanVal: p.curToken.Span()}
		p.nextToken()
		return s
	case TokenName:
		switch {
		case p.curIsName("continue") && p.opts.SupportContinueStatement && p.continueFollows():
			s := &ContinueStmt{SpanVal: p.curToken.Span()}
			p.nextToken()
			return s
		case p.curIsName("type") && p.peekTokenIs(TokenName):
			return p.parseTypeAlias(false)
		case p.curIsName("export") && p.peekTokenIs(TokenName) && p.peekToken.Literal == "type":
			return p.parseTypeAlias(true)
		case p.curIsName("declare") && p.opts.AllowDeclarationSyntax &&
			(p.peekTokenIs(TokenName) || p.peekTokenIs(TokenFunction)):
			return p.parseDeclare()
		}
		return p.parseExprStatement()
	case TokenLParen:
		return p.parseExprStatement()
	}

	p.errorExpected("identifier", "expression")
	return nil
}

// continueFollows reports whether "continue" is used as a statement rather
// than as a name.
func (p *Parser) continueFollows() bool {
	switch p.peekToken.Type {
	case TokenLParen, TokenDot, TokenLBracket, TokenColon, TokenAssign, TokenComma, TokenString, TokenLBrace:
		return false
	}
	return true
}

// parseExprStatement parses a call statement or an assignment.
func (p *Parser) parseExprStatement() Stmt {
	start := p.curToken.Pos
	expr := p.parsePrimaryExpr()
	if expr == nil {
		return nil
	}

	if p.curTokenIs(TokenAssign) || p.curTokenIs(TokenComma) {
		targets := []Expr{expr}
		for p.curTokenIs(TokenComma) {
			p.nextToken()
			t := p.parsePrimaryExpr()
			if t == nil {
				return nil
			}
			targets = append(targets, t)
		}
		for _, t := range targets {
			switch t.(type) {
			case *Name, *FieldExpr, *IndexExpr:
			default:
				p.errorAt(t.Span(), "Assigned expression must be a variable or a field")
			}
		}
		if !p.expect(TokenAssign, "assignment") {
			return nil
		}
		values := p.parseExprList()
		return &AssignStmt{SpanVal: MakeSpan(start, p.prevEnd), Targets: targets, Values: values}
	}

	if call, ok := expr.(*CallExpr); ok {
		return &CallStmt{SpanVal: call.SpanVal, Call: call}
	}

	p.errorAt(expr.Span(), "Incomplete statement: expected assignment or a function call")
	return nil
}

// parseReturn parses return [exprlist] [;].
func (p *Parser) parseReturn() Stmt {
	start := p.curToken.Pos
	p.nextToken() // consume 'return'

	var values []Expr
	if !p.blockFollow() && !p.curTokenIs(TokenSemicolon) {
		values = p.parseExprList()
	}
	if p.curTokenIs(TokenSemicolon) {
		p.nextToken()
	}
	return &ReturnStmt{SpanVal: MakeSpan(start, p.prevEnd), Values: values}
}

// parseIf parses if/elseif/else/end.
func (p *Parser) parseIf() Stmt {
	open := p.curToken
	p.nextToken() // consume 'if'

	s := &IfStmt{}
	cond := p.parseExpr()
	p.expect(TokenThen, "if statement")
	s.Clauses = append(s.Clauses, IfClause{Cond: cond, Body: p.parseBlock()})

	for p.curTokenIs(TokenElseif) {
		p.nextToken()
		cond := p.parseExpr()
		p.expect(TokenThen, "if statement")
		s.Clauses = append(s.Clauses, IfClause{Cond: cond, Body: p.parseBlock()})
	}

	if p.curTokenIs(TokenElse) {
		p.nextToken()
		s.Else = p.parseBlock()
	}

	p.expectMatch(TokenEnd, open)
	s.SpanVal = MakeSpan(open.Pos, p.prevEnd)
	return s
}

// parseWhile parses while cond do block end.
func (p *Parser) parseWhile() Stmt {
	open := p.curToken
	p.nextToken() // consume 'while'

	cond := p.parseExpr()
	p.expect(TokenDo, "while loop")
	body := p.parseBlock()
	p.expectMatch(TokenEnd, open)
	return &WhileStmt{SpanVal: MakeSpan(open.Pos, p.prevEnd), Cond: cond, Body: body}
}

// parseDo parses do block end.
func (p *Parser) parseDo() Stmt {
	open := p.curToken
	p.nextToken() // consume 'do'

	body := p.parseBlock()
	p.expectMatch(TokenEnd, open)
	return &DoStmt{SpanVal: MakeSpan(open.Pos, p.prevEnd), Body: body}
}

// parseRepeat parses repeat block until cond.
func (p *Parser) parseRepeat() Stmt {
	open := p.curToken
	p.nextToken() // consume 'repeat'

	body := p.parseBlock()
	if !p.expectMatch(TokenUntil, open) {
		return &RepeatStmt{SpanVal: MakeSpan(open.Pos, p.prevEnd), Body: body, Cond: &NilLiteral{}}
	}
	cond := p.parseExpr()
	return &RepeatStmt{SpanVal: MakeSpan(open.Pos, p.prevEnd), Body: body, Cond: cond}
}

// parseFor parses numeric and generic for loops.
func (p *Parser) parseFor() Stmt {
	open := p.curToken
	p.nextToken() // consume 'for'

	first, ok := p.parseBinding("for loop")
	if !ok {
		return nil
	}

	if p.curTokenIs(TokenAssign) {
		p.nextToken()
		s := &NumericForStmt{Var: first}
		s.Start = p.parseExpr()
		p.expect(TokenComma, "index range")
		s.Limit = p.parseExpr()
		if p.curTokenIs(TokenComma) {
			p.nextToken()
			s.Step = p.parseExpr()
		}
		p.expect(TokenDo, "for loop")
		s.Body = p.parseBlock()
		p.expectMatch(TokenEnd, open)
		s.SpanVal = MakeSpan(open.Pos, p.prevEnd)
		return s
	}

	s := &GenericForStmt{Vars: []Binding{first}}
	for p.curTokenIs(TokenComma) {
		p.nextToken()
		b, ok := p.parseBinding("for loop")
		if !ok {
			return nil
		}
		s.Vars = append(s.Vars, b)
	}
	if !p.expect(TokenIn, "for loop") {
		return nil
	}
	s.Iter = p.parseExpr()
	if p.curTokenIs(TokenComma) {
		p.errorAt(p.curToken.Span(), "Generic for loops over multiple expressions are not supported")
		for p.curTokenIs(TokenComma) {
			p.nextToken()
			p.parseExpr()
		}
	}
	p.expect(TokenDo, "for loop")
	s.Body = p.parseBlock()
	p.expectMatch(TokenEnd, open)
	s.SpanVal = MakeSpan(open.Pos, p.prevEnd)
	return s
}

// parseFunctionStmt parses function a.b.c:d() body end.
func (p *Parser) parseFunctionStmt() Stmt {
	open := p.curToken
	p.nextToken() // consume 'function'

	nameTok := p.curToken
	b, ok := p.expectName("function name")
	if !ok {
		return nil
	}
	var target Expr = &Name{SpanVal: b.SpanVal, Name: b.Name}
	debugName := b.Name
	isMethod := false

	for p.curTokenIs(TokenDot) || p.curTokenIs(TokenColon) {
		isMethod = p.curTokenIs(TokenColon)
		p.nextToken()
		field, ok := p.expectName("function name")
		if !ok {
			return nil
		}
		target = &FieldExpr{SpanVal: MakeSpan(nameTok.Pos, field.SpanVal.End), Object: target, Field: field.Name}
		debugName = field.Name
		if isMethod {
			break
		}
	}

	fn := p.parseFunctionBody(open, debugName, isMethod)
	return &FunctionStmt{SpanVal: MakeSpan(open.Pos, p.prevEnd), Target: target, Func: fn}
}

// parseLocal parses local bindings and local functions.
func (p *Parser) parseLocal() Stmt {
	start := p.curToken.Pos
	p.nextToken() // consume 'local'

	if p.curTokenIs(TokenFunction) {
		open := p.curToken
		p.nextToken()
		name, ok := p.expectName("variable name")
		if !ok {
			return nil
		}
		fn := p.parseFunctionBody(open, name.Name, false)
		return &LocalFunctionStmt{SpanVal: MakeSpan(start, p.prevEnd), Name: name, Func: fn}
	}

	s := &LocalStmt{}
	for {
		b, _ := p.parseBinding("variable name")
		s.Names = append(s.Names, b)
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}

	if p.curTokenIs(TokenAssign) {
		p.nextToken()
		s.Values = p.parseExprList()
	}
	s.SpanVal = MakeSpan(start, p.prevEnd)
	return s
}

// parseBinding parses Name [: Type].
func (p *Parser) parseBinding(context string) (Binding, bool) {
	b, ok := p.expectName(context)
	if !ok {
		return b, false
	}
	if p.curTokenIs(TokenColon) {
		b.Type = p.parseAnnotation()
	}
	return b, true
}

// parseDeclare parses declare name[: Type] and declare function f(...)[: T].
func (p *Parser) parseDeclare() Stmt {
	start := p.curToken.Pos
	p.nextToken() // consume 'declare'

	if p.curTokenIs(TokenFunction) {
		p.nextToken()
		name, ok := p.expectName("declaration")
		if !ok {
			return nil
		}
		open := p.curToken
		if p.expect(TokenLParen, "declaration") {
			p.parseParamList(open)
		}
		if p.curTokenIs(TokenColon) {
			name.Type = p.parseAnnotation()
		}
		return &DeclareStmt{SpanVal: MakeSpan(start, p.prevEnd), Name: name}
	}

	name, ok := p.parseBinding("declaration")
	if !ok {
		return nil
	}
	return &DeclareStmt{SpanVal: MakeSpan(start, p.prevEnd), Name: name}
}

// parseTypeAlias parses [export] type Name[<T>] = Type.
func (p *Parser) parseTypeAlias(exported bool) Stmt {
	start := p.curToken.Pos
	if exported {
		p.nextToken() // consume 'export'
	}
	p.nextToken() // consume 'type'

	if !p.opts.AllowTypeAnnotations {
		p.errorAt(MakeSpan(start, p.curToken.End), "Type annotations are not allowed")
	}

	name, ok := p.expectName("type alias")
	if !ok {
		return nil
	}
	if p.curTokenIs(TokenLt) {
		p.parseGenericNames()
	}
	if !p.expect(TokenAssign, "type alias") {
		return nil
	}
	t := p.parseType()
	return &TypeAliasStmt{SpanVal: MakeSpan(start, p.prevEnd), Name: name.Name, Exported: exported, Type: t}
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

// parseFunctionBody parses [<T>] (params) [: Type] block end.
func (p *Parser) parseFunctionBody(open Token, name string, isMethod bool) *FunctionExpr {
	fn := &FunctionExpr{Name: name, IsMethod: isMethod}

	if p.curTokenIs(TokenLt) {
		p.parseGenericNames()
	}

	paren := p.curToken
	if p.expect(TokenLParen, "function") {
		fn.Params = p.parseParamList(paren)
	}
	if p.curTokenIs(TokenColon) {
		fn.ReturnType = p.parseAnnotation()
	}

	fn.Body = p.parseBlock()
	p.expectMatch(TokenEnd, open)
	fn.SpanVal = MakeSpan(open.Pos, p.prevEnd)
	return fn
}

// parseParamList parses parameters after '(' up to and including ')'.
func (p *Parser) parseParamList(open Token) []Param {
	var params []Param
	if p.curTokenIs(TokenRParen) {
		p.nextToken()
		return params
	}
	for {
		if p.curTokenIs(TokenEllipsis) {
			p.errorAt(p.curToken.Span(), "Variadic functions are not supported")
			p.nextToken()
			if p.curTokenIs(TokenColon) {
				p.parseAnnotation()
			}
			break
		}
		b, ok := p.parseBinding("function parameter")
		if !ok {
			break
		}
		params = append(params, Param{SpanVal: b.SpanVal, Name: b.Name, Type: b.Type})
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expectMatch(TokenRParen, open)
	return params
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Binary operator priorities: left and right binding power.
var binaryPriority = map[TokenType][2]int{
	TokenOr:      {1, 1},
	TokenAnd:     {2, 2},
	TokenEq:      {3, 3},
	TokenNe:      {3, 3},
	TokenLt:      {3, 3},
	TokenLe:      {3, 3},
	TokenGt:      {3, 3},
	TokenGe:      {3, 3},
	TokenConcat:  {9, 8}, // right associative
	TokenPlus:    {10, 10},
	TokenMinus:   {10, 10},
	TokenStar:    {11, 11},
	TokenSlash:   {11, 11},
	TokenPercent: {11, 11},
	TokenCaret:   {14, 13}, // right associative
}

const unaryPriority = 12

// ParseExpression parses a single expression.
func (p *Parser) ParseExpression() Expr {
	return p.parseExpr()
}

func (p *Parser) parseExpr() Expr {
	return p.parseSubExpr(0)
}

// parseExprList parses expr {, expr}.
func (p *Parser) parseExprList() []Expr {
	list := []Expr{p.parseExpr()}
	for p.curTokenIs(TokenComma) {
		p.nextToken()
		list = append(list, p.parseExpr())
	}
	return list
}

// parseSubExpr parses operators binding tighter than limit.
func (p *Parser) parseSubExpr(limit int) Expr {
	start := p.curToken.Pos
	if !p.enter() {
		p.leave()
		return &NilLiteral{SpanVal: p.curToken.Span()}
	}
	defer p.leave()

	var left Expr
	switch p.curToken.Type {
	case TokenNot, TokenMinus, TokenHash:
		op := p.curToken.Type
		p.nextToken()
		operand := p.parseSubExpr(unaryPriority)
		left = &UnaryExpr{SpanVal: MakeSpan(start, operand.Span().End), Op: op, Operand: operand}
	default:
		left = p.parseSimpleExpr()
	}

	for {
		prio, ok := binaryPriority[p.curToken.Type]
		if !ok || prio[0] <= limit {
			break
		}
		op := p.curToken.Type
		p.nextToken()
		right := p.parseSubExpr(prio[1])
		left = &BinaryExpr{SpanVal: MakeSpan(start, right.Span().End), Op: op, Left: left, Right: right}
	}
	return left
}

// parseSimpleExpr parses literals, constructors, function expressions and
// primary expressions.
func (p *Parser) parseSimpleExpr() Expr {
	tok := p.curToken
	switch tok.Type {
	case TokenNil:
		p.nextToken()
		return &NilLiteral{SpanVal: tok.Span()}
	case TokenTrue, TokenFalse:
		p.nextToken()
		return &BoolLiteral{SpanVal: tok.Span(), Value: tok.Type == TokenTrue}
	case TokenNumber:
		p.nextToken()
		v, _ := ParseNumber(tok.Literal)
		return &NumberLiteral{SpanVal: tok.Span(), Value: v}
	case TokenString:
		p.nextToken()
		return &StringLiteral{SpanVal: tok.Span(), Value: tok.Literal}
	case TokenLBrace:
		return p.parseTable()
	case TokenFunction:
		p.nextToken()
		return p.parseFunctionBody(tok, "", false)
	case TokenEllipsis:
		p.errorAt(tok.Span(), "Variadic functions are not supported")
		p.nextToken()
		return &NilLiteral{SpanVal: tok.Span()}
	}
	if e := p.parsePrimaryExpr(); e != nil {
		return e
	}
	return &NilLiteral{SpanVal: Span{Start: tok.Pos, End: tok.Pos}}
}

// parsePrimaryExpr parses a name or parenthesized expression followed by
// any number of field, index and call suffixes. Returns nil after
// reporting an error if no prefix expression is present.
func (p *Parser) parsePrimaryExpr() Expr {
	start := p.curToken.Pos

	var expr Expr
	switch p.curToken.Type {
	case TokenName:
		expr = &Name{SpanVal: p.curToken.Span(), Name: p.curToken.Literal}
		p.nextToken()
	case TokenLParen:
		open := p.curToken
		p.nextToken()
		inner := p.parseExpr()
		p.expectMatch(TokenRParen, open)
		expr = &ParenExpr{SpanVal: MakeSpan(start, p.prevEnd), Inner: inner}
	default:
		p.errorExpected("identifier", "expression")
		return nil
	}

	for {
		switch p.curToken.Type {
		case TokenDot:
			p.nextToken()
			field, ok := p.expectName("field name")
			if !ok {
				return expr
			}
			expr = &FieldExpr{SpanVal: MakeSpan(start, field.SpanVal.End), Object: expr, Field: field.Name}

		case TokenLBracket:
			open := p.curToken
			p.nextToken()
			key := p.parseExpr()
			p.expectMatch(TokenRBracket, open)
			expr = &IndexExpr{SpanVal: MakeSpan(start, p.prevEnd), Object: expr, Key: key}

		case TokenColon:
			p.nextToken()
			method, ok := p.expectName("method name")
			if !ok {
				return expr
			}
			args, ok := p.parseCallArgs()
			if !ok {
				return expr
			}
			expr = &CallExpr{SpanVal: MakeSpan(start, p.prevEnd), Func: expr, Method: method.Name, Args: args}

		case TokenLParen, TokenString, TokenLBrace:
			if p.curTokenIs(TokenLParen) && p.curToken.Pos.Line > p.prevEnd.Line {
				p.errorAt(p.curToken.Span(), "Ambiguous syntax: this looks like an argument list for a function call, but could also be a start of new statement; use ';' to separate statements")
			}
			args, _ := p.parseCallArgs()
			expr = &CallExpr{SpanVal: MakeSpan(start, p.prevEnd), Func: expr, Args: args}

		default:
			return expr
		}
	}
}

// parseCallArgs parses (args), a table argument or a string argument.
func (p *Parser) parseCallArgs() ([]Expr, bool) {
	switch p.curToken.Type {
	case TokenString:
		tok := p.curToken
		p.nextToken()
		return []Expr{&StringLiteral{SpanVal: tok.Span(), Value: tok.Literal}}, true
	case TokenLBrace:
		return []Expr{p.parseTable()}, true
	case TokenLParen:
		open := p.curToken
		p.nextToken()
		var args []Expr
		if !p.curTokenIs(TokenRParen) {
			args = p.parseExprList()
		}
		p.expectMatch(TokenRParen, open)
		return args, true
	}
	p.errorExpected("'(', '{' or <string>", "function call")
	return nil, false
}

// parseTable parses a table constructor.
func (p *Parser) parseTable() Expr {
	open := p.curToken
	p.nextToken() // consume '{'

	t := &TableExpr{}
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		switch {
		case p.curTokenIs(TokenLBracket):
			bracket := p.curToken
			p.nextToken()
			key := p.parseExpr()
			p.expectMatch(TokenRBracket, bracket)
			p.expect(TokenAssign, "table field")
			t.Items = append(t.Items, TableItem{Kind: TableItemGeneral, Key: key, Value: p.parseExpr()})

		case p.curTokenIs(TokenName) && p.peekTokenIs(TokenAssign):
			key := &StringLiteral{SpanVal: p.curToken.Span(), Value: p.curToken.Literal}
			p.nextToken()
			p.nextToken()
			t.Items = append(t.Items, TableItem{Kind: TableItemNamed, Key: key, Value: p.parseExpr()})

		default:
			before := p.curToken.Pos.Offset
			t.Items = append(t.Items, TableItem{Kind: TableItemList, Value: p.parseExpr()})
			if p.curToken.Pos.Offset == before {
				// nothing parsed; let the closing check report it
				p.expectMatch(TokenRBrace, open)
				t.SpanVal = MakeSpan(open.Pos, p.prevEnd)
				return t
			}
		}

		if p.curTokenIs(TokenComma) || p.curTokenIs(TokenSemicolon) {
			p.nextToken()
			continue
		}
		break
	}

	p.expectMatch(TokenRBrace, open)
	t.SpanVal = MakeSpan(open.Pos, p.prevEnd)
	return t
}
