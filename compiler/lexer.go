package compiler

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: tokenizer for script source
// ---------------------------------------------------------------------------

// Lexer tokenizes script source. Positions are 0-based and columns count
// bytes.
type Lexer struct {
	input     string
	pos       int  // offset of ch
	readPos   int  // offset after ch
	ch        byte // current byte, 0 at EOF
	line      int  // line of ch (0-based)
	lineStart int  // offset of the current line start

	comments []Comment
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// Comments returns every comment seen so far, in source order.
func (l *Lexer) Comments() []Comment {
	return l.comments
}

// readChar advances to the next byte.
func (l *Lexer) readChar() {
	if l.readPos > 0 && l.pos < len(l.input) && l.input[l.pos] == '\n' {
		l.line++
		l.lineStart = l.readPos
	}
	if l.readPos >= len(l.input) {
		l.ch = 0
		l.pos = len(l.input)
		l.readPos = len(l.input) + 1
		return
	}
	l.ch = l.input[l.readPos]
	l.pos = l.readPos
	l.readPos++
}

// peekChar returns the next byte without consuming it.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.pos - l.lineStart,
	}
}

func (l *Lexer) token(t TokenType, literal string, start Position) Token {
	return Token{Type: t, Literal: literal, Pos: start, End: l.position()}
}

func (l *Lexer) errorToken(start Position, format string, args ...any) Token {
	return l.token(TokenError, fmt.Sprintf(format, args...), start)
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	if errTok, ok := l.skipWhitespaceAndComments(); !ok {
		return errTok
	}

	pos := l.position()
	if l.atEOF() {
		return l.token(TokenEOF, "", pos)
	}

	ch := l.ch
	switch {
	case isLetter(ch):
		return l.readName(pos)
	case isDigit(ch) || (ch == '.' && isDigit(l.peekChar())):
		return l.readNumber(pos)
	case ch == '"' || ch == '\'':
		return l.readString(pos, ch)
	case ch == '[':
		if level := l.longBracketLevel(); level >= 0 {
			content, ok := l.readLongBracket(level)
			if !ok {
				return l.errorToken(pos, "Unfinished long string")
			}
			return l.token(TokenString, content, pos)
		}
	case ch >= utf8.RuneSelf:
		_, size := utf8.DecodeRuneInString(l.input[l.pos:])
		for i := 0; i < size; i++ {
			l.readChar()
		}
		return l.errorToken(pos, "Unexpected Unicode character")
	}

	l.readChar()
	switch ch {
	case '+':
		return l.token(TokenPlus, "+", pos)
	case '-':
		if l.ch == '>' {
			l.readChar()
			return l.token(TokenArrow, "->", pos)
		}
		return l.token(TokenMinus, "-", pos)
	case '*':
		return l.token(TokenStar, "*", pos)
	case '/':
		return l.token(TokenSlash, "/", pos)
	case '%':
		return l.token(TokenPercent, "%", pos)
	case '^':
		return l.token(TokenCaret, "^", pos)
	case '#':
		return l.token(TokenHash, "#", pos)
	case '.':
		if l.ch == '.' {
			l.readChar()
			if l.ch == '.' {
				l.readChar()
				return l.token(TokenEllipsis, "...", pos)
			}
			return l.token(TokenConcat, "..", pos)
		}
		return l.token(TokenDot, ".", pos)
	case '=':
		if l.ch == '=' {
			l.readChar()
			return l.token(TokenEq, "==", pos)
		}
		return l.token(TokenAssign, "=", pos)
	case '~':
		if l.ch == '=' {
			l.readChar()
			return l.token(TokenNe, "~=", pos)
		}
	case '<':
		if l.ch == '=' {
			l.readChar()
			return l.token(TokenLe, "<=", pos)
		}
		return l.token(TokenLt, "<", pos)
	case '>':
		if l.ch == '=' {
			l.readChar()
			return l.token(TokenGe, ">=", pos)
		}
		return l.token(TokenGt, ">", pos)
	case '|':
		return l.token(TokenPipe, "|", pos)
	case '&':
		return l.token(TokenAmp, "&", pos)
	case '?':
		return l.token(TokenQuestion, "?", pos)
	case '(':
		return l.token(TokenLParen, "(", pos)
	case ')':
		return l.token(TokenRParen, ")", pos)
	case '{':
		return l.token(TokenLBrace, "{", pos)
	case '}':
		return l.token(TokenRBrace, "}", pos)
	case '[':
		return l.token(TokenLBracket, "[", pos)
	case ']':
		return l.token(TokenRBracket, "]", pos)
	case ';':
		return l.token(TokenSemicolon, ";", pos)
	case ':':
		return l.token(TokenColon, ":", pos)
	case ',':
		return l.token(TokenComma, ",", pos)
	}

	if ch < 0x20 || ch == 0x7f {
		return l.errorToken(pos, "Unexpected character 0x%02x", ch)
	}
	return l.errorToken(pos, "Unexpected character '%c'", ch)
}

// skipWhitespaceAndComments skips over whitespace and records comments.
// Returns false with an error token if a long comment is never closed.
func (l *Lexer) skipWhitespaceAndComments() (Token, bool) {
	for !l.atEOF() {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n' || l.ch == '\f' || l.ch == '\v':
			l.readChar()

		case l.ch == '-' && l.peekChar() == '-':
			start := l.position()
			l.readChar()
			l.readChar()

			if l.ch == '[' {
				if level := l.longBracketLevel(); level >= 0 {
					content, ok := l.readLongBracket(level)
					l.comments = append(l.comments, Comment{
						SpanVal: Span{Start: start, End: l.position()},
						Text:    content,
						Block:   true,
					})
					if !ok {
						return l.errorToken(start, "Unfinished long comment"), false
					}
					continue
				}
			}

			textStart := l.pos
			for !l.atEOF() && l.ch != '\n' {
				l.readChar()
			}
			l.comments = append(l.comments, Comment{
				SpanVal: Span{Start: start, End: l.position()},
				Text:    strings.TrimRight(l.input[textStart:l.pos], "\r"),
			})

		default:
			return Token{}, true
		}
	}
	return Token{}, true
}

// longBracketLevel reports the level of a long bracket opening at the
// current '[', or -1 when the bracket does not open a long string.
func (l *Lexer) longBracketLevel() int {
	i := l.pos + 1
	level := 0
	for i < len(l.input) && l.input[i] == '=' {
		level++
		i++
	}
	if i < len(l.input) && l.input[i] == '[' {
		return level
	}
	return -1
}

// readLongBracket consumes a long bracket of the given level and returns
// its contents. A newline directly after the opening bracket is dropped.
func (l *Lexer) readLongBracket(level int) (string, bool) {
	for i := 0; i < level+2; i++ {
		l.readChar()
	}
	if l.ch == '\r' && l.peekChar() == '\n' {
		l.readChar()
	}
	if l.ch == '\n' {
		l.readChar()
	}

	start := l.pos
	for !l.atEOF() {
		if l.ch == ']' && l.closesLongBracket(level) {
			content := l.input[start:l.pos]
			for i := 0; i < level+2; i++ {
				l.readChar()
			}
			return content, true
		}
		l.readChar()
	}
	return l.input[start:], false
}

func (l *Lexer) closesLongBracket(level int) bool {
	i := l.pos + 1
	for j := 0; j < level; j++ {
		if i >= len(l.input) || l.input[i] != '=' {
			return false
		}
		i++
	}
	return i < len(l.input) && l.input[i] == ']'
}

// readName reads an identifier or reserved word.
func (l *Lexer) readName(pos Position) Token {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	name := l.input[start:l.pos]
	if t, ok := reservedWords[name]; ok {
		return l.token(t, name, pos)
	}
	return l.token(TokenName, name, pos)
}

// readNumber reads a numeric literal.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos

	if l.ch == '0' && strings.IndexByte("xXbB", l.peekChar()) >= 0 {
		l.readChar()
		l.readChar()
	} else {
		for isDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
		if l.ch == '.' {
			l.readChar()
			for isDigit(l.ch) || l.ch == '_' {
				l.readChar()
			}
		}
		if l.ch == 'e' || l.ch == 'E' {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
		}
	}

	// Anything name-like glued to the literal makes it malformed.
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '.' {
		l.readChar()
	}

	text := l.input[start:l.pos]
	if _, ok := ParseNumber(text); !ok {
		return l.errorToken(pos, "Malformed number")
	}
	return l.token(TokenNumber, text, pos)
}

// ParseNumber converts the text of a number token to its value.
func ParseNumber(text string) (float64, bool) {
	s := strings.ReplaceAll(text, "_", "")
	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X':
			v, err := strconv.ParseUint(s[2:], 16, 64)
			return float64(v), err == nil
		case 'b', 'B':
			v, err := strconv.ParseUint(s[2:], 2, 64)
			return float64(v), err == nil
		}
	}
	if s == "" || !(isDigit(s[0]) || s[0] == '.') {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return v, true
		}
		return 0, false
	}
	return v, true
}

// readString reads a quoted string literal, decoding escapes.
func (l *Lexer) readString(pos Position, quote byte) Token {
	l.readChar() // opening quote

	var sb strings.Builder
	badEscape := false
	for {
		if l.atEOF() || l.ch == '\n' {
			return l.errorToken(pos, "Unfinished string")
		}
		if l.ch == quote {
			l.readChar()
			break
		}
		if l.ch != '\\' {
			sb.WriteByte(l.ch)
			l.readChar()
			continue
		}

		l.readChar() // backslash
		if l.atEOF() {
			return l.errorToken(pos, "Unfinished string")
		}
		switch l.ch {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case 'a':
			sb.WriteByte('\a')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'v':
			sb.WriteByte('\v')
		case '\\', '"', '\'', '\n':
			sb.WriteByte(l.ch)
		case 'x':
			l.readChar()
			hi, ok1 := hexValue(l.ch)
			if ok1 {
				l.readChar()
			}
			lo, ok2 := hexValue(l.ch)
			if !ok1 || !ok2 {
				badEscape = true
				continue
			}
			sb.WriteByte(hi<<4 | lo)
		case 'z':
			l.readChar()
			for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n' {
				l.readChar()
			}
			continue
		default:
			if !isDigit(l.ch) {
				badEscape = true
				break
			}
			v := 0
			for i := 0; i < 3 && isDigit(l.ch); i++ {
				v = v*10 + int(l.ch-'0')
				l.readChar()
			}
			if v > 255 {
				badEscape = true
			}
			sb.WriteByte(byte(v))
			continue
		}
		l.readChar()
	}

	if badEscape {
		return l.errorToken(pos, "Invalid escape sequence")
	}
	return l.token(TokenString, sb.String(), pos)
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func hexValue(ch byte) (byte, bool) {
	switch {
	case '0' <= ch && ch <= '9':
		return ch - '0', true
	case 'a' <= ch && ch <= 'f':
		return ch - 'a' + 10, true
	case 'A' <= ch && ch <= 'F':
		return ch - 'A' + 10, true
	}
	return 0, false
}
