package compiler

import "strings"

// ---------------------------------------------------------------------------
// Type annotations
// ---------------------------------------------------------------------------

// parseAnnotation parses ': Type' after a binding, parameter list or
// declaration.
func (p *Parser) parseAnnotation() *TypeAnnotation {
	colon := p.curToken
	p.nextToken() // consume ':'
	if !p.opts.AllowTypeAnnotations {
		p.errorAt(colon.Span(), "Type annotations are not allowed")
	}
	return p.parseReturnType()
}

// parseType parses a full type: unions and intersections of simple types.
func (p *Parser) parseType() *TypeAnnotation {
	start := p.curToken.Pos
	if !p.enter() {
		p.leave()
		return &TypeAnnotation{SpanVal: MakeSpan(start, start)}
	}
	defer p.leave()

	// leading separator is allowed: type T = | A | B
	if p.curTokenIs(TokenPipe) || p.curTokenIs(TokenAmp) {
		p.nextToken()
	}
	p.parseSimpleType()
	for p.curTokenIs(TokenPipe) || p.curTokenIs(TokenAmp) {
		p.nextToken()
		p.parseSimpleType()
	}
	return p.typeText(start)
}

// parseReturnType parses either a parenthesized type pack or a type.
func (p *Parser) parseReturnType() *TypeAnnotation {
	if !p.curTokenIs(TokenLParen) {
		return p.parseType()
	}
	start := p.curToken.Pos
	p.parseFunctionOrParenType(true)
	for p.curTokenIs(TokenQuestion) {
		p.nextToken()
	}
	for p.curTokenIs(TokenPipe) || p.curTokenIs(TokenAmp) {
		p.nextToken()
		p.parseSimpleType()
	}
	return p.typeText(start)
}

// typeText builds an annotation from the source consumed since start,
// with runs of whitespace collapsed.
func (p *Parser) typeText(start Position) *TypeAnnotation {
	end := p.prevEnd
	text := ""
	if end.Offset > start.Offset && end.Offset <= len(p.input) {
		text = strings.Join(strings.Fields(p.input[start.Offset:end.Offset]), " ")
	}
	return &TypeAnnotation{SpanVal: MakeSpan(start, end), Text: text}
}

// parseSimpleType parses one type term with optional '?' suffixes.
func (p *Parser) parseSimpleType() {
	switch p.curToken.Type {
	case TokenNil, TokenTrue, TokenFalse, TokenString:
		p.nextToken()

	case TokenName:
		if p.curIsName("typeof") && p.peekTokenIs(TokenLParen) {
			p.nextToken()
			open := p.curToken
			p.nextToken()
			p.parseExpr()
			p.expectMatch(TokenRParen, open)
			break
		}
		p.nextToken()
		if p.curTokenIs(TokenDot) {
			p.nextToken()
			p.expectName("type name")
		}
		if p.curTokenIs(TokenLt) {
			open := p.curToken
			p.nextToken()
			if !p.curTokenIs(TokenGt) {
				p.parseTypeList()
			}
			p.expectMatch(TokenGt, open)
		}

	case TokenLBrace:
		p.parseTableType()

	case TokenLt, TokenLParen:
		p.parseFunctionOrParenType(false)

	default:
		p.errorExpected("type", "type annotation")
		return
	}

	for p.curTokenIs(TokenQuestion) {
		p.nextToken()
	}
}

// parseTypeList parses Type {, Type}, allowing a trailing '...T' pack.
func (p *Parser) parseTypeList() int {
	n := 0
	for {
		if p.curTokenIs(TokenEllipsis) {
			p.nextToken()
			p.parseType()
			return n + 1
		}
		p.parseType()
		n++
		if !p.curTokenIs(TokenComma) {
			return n
		}
		p.nextToken()
	}
}

// parseFunctionOrParenType parses [<T>] (types) -> ReturnType, or (Type).
// A bare (A, B) type pack is only valid in return position.
func (p *Parser) parseFunctionOrParenType(allowPack bool) {
	generic := false
	if p.curTokenIs(TokenLt) {
		p.parseGenericNames()
		generic = true
	}

	open := p.curToken
	if !p.expect(TokenLParen, "function type") {
		return
	}
	n := 0
	if !p.curTokenIs(TokenRParen) {
		n = p.parseNamedTypeList()
	}
	p.expectMatch(TokenRParen, open)

	if p.curTokenIs(TokenArrow) {
		p.nextToken()
		p.parseReturnType()
		return
	}
	if generic || (n != 1 && !allowPack) {
		p.errorExpected("'->'", "function type")
	}
}

// parseNamedTypeList parses function type arguments, which may carry
// names: (x: number, string).
func (p *Parser) parseNamedTypeList() int {
	n := 0
	for {
		if p.curTokenIs(TokenName) && p.peekTokenIs(TokenColon) {
			p.nextToken()
			p.nextToken()
		}
		if p.curTokenIs(TokenEllipsis) {
			p.nextToken()
			p.parseType()
			return n + 1
		}
		p.parseType()
		n++
		if !p.curTokenIs(TokenComma) {
			return n
		}
		p.nextToken()
	}
}

// parseTableType parses { } , { T } and { name: T, [K]: V }.
func (p *Parser) parseTableType() {
	open := p.curToken
	p.nextToken() // consume '{'

	if !p.curTokenIs(TokenRBrace) && !(p.curTokenIs(TokenName) && p.peekTokenIs(TokenColon)) &&
		!p.curTokenIs(TokenLBracket) {
		// array shorthand
		p.parseType()
		p.expectMatch(TokenRBrace, open)
		return
	}

	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		if p.curTokenIs(TokenLBracket) {
			bracket := p.curToken
			p.nextToken()
			p.parseType()
			p.expectMatch(TokenRBracket, bracket)
		} else if _, ok := p.expectName("table type"); !ok {
			break
		}
		if !p.expect(TokenColon, "table type") {
			break
		}
		p.parseType()
		if p.curTokenIs(TokenComma) || p.curTokenIs(TokenSemicolon) {
			p.nextToken()
			continue
		}
		break
	}
	p.expectMatch(TokenRBrace, open)
}

// parseGenericNames parses <T, U...> after a function or alias name.
func (p *Parser) parseGenericNames() {
	open := p.curToken
	p.nextToken() // consume '<'
	if !p.opts.AllowTypeAnnotations {
		p.errorAt(open.Span(), "Type annotations are not allowed")
	}
	for {
		if _, ok := p.expectName("generic type list"); !ok {
			break
		}
		if p.curTokenIs(TokenEllipsis) {
			p.nextToken()
		}
		if p.curTokenIs(TokenAssign) {
			p.nextToken()
			p.parseType()
		}
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expectMatch(TokenGt, open)
}
