package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenName   // foo, _bar
	TokenNumber // 42, 3.14, 0xFF, 1e10
	TokenString // "hello", 'hello', [[hello]]

	// Keywords
	TokenAnd
	TokenBreak
	TokenDo
	TokenElse
	TokenElseif
	TokenEnd
	TokenFalse
	TokenFor
	TokenFunction
	TokenIf
	TokenIn
	TokenLocal
	TokenNil
	TokenNot
	TokenOr
	TokenRepeat
	TokenReturn
	TokenThen
	TokenTrue
	TokenUntil
	TokenWhile

	// Operators
	TokenPlus     // +
	TokenMinus    // -
	TokenStar     // *
	TokenSlash    // /
	TokenPercent  // %
	TokenCaret    // ^
	TokenHash     // #
	TokenConcat   // ..
	TokenEllipsis // ...
	TokenEq       // ==
	TokenNe       // ~=
	TokenLt       // <
	TokenLe       // <=
	TokenGt       // >
	TokenGe       // >=
	TokenAssign   // =
	TokenArrow    // ->
	TokenPipe     // |
	TokenAmp      // &
	TokenQuestion // ?

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenSemicolon // ;
	TokenColon     // :
	TokenComma     // ,
	TokenDot       // .
)

var tokenNames = map[TokenType]string{
	TokenEOF:       "<eof>",
	TokenError:     "<error>",
	TokenName:      "identifier",
	TokenNumber:    "number",
	TokenString:    "string",
	TokenAnd:       "and",
	TokenBreak:     "break",
	TokenDo:        "do",
	TokenElse:      "else",
	TokenElseif:    "elseif",
	TokenEnd:       "end",
	TokenFalse:     "false",
	TokenFor:       "for",
	TokenFunction:  "function",
	TokenIf:        "if",
	TokenIn:        "in",
	TokenLocal:     "local",
	TokenNil:       "nil",
	TokenNot:       "not",
	TokenOr:        "or",
	TokenRepeat:    "repeat",
	TokenReturn:    "return",
	TokenThen:      "then",
	TokenTrue:      "true",
	TokenUntil:     "until",
	TokenWhile:     "while",
	TokenPlus:      "+",
	TokenMinus:     "-",
	TokenStar:      "*",
	TokenSlash:     "/",
	TokenPercent:   "%",
	TokenCaret:     "^",
	TokenHash:      "#",
	TokenConcat:    "..",
	TokenEllipsis:  "...",
	TokenEq:        "==",
	TokenNe:        "~=",
	TokenLt:        "<",
	TokenLe:        "<=",
	TokenGt:        ">",
	TokenGe:        ">=",
	TokenAssign:    "=",
	TokenArrow:     "->",
	TokenPipe:      "|",
	TokenAmp:       "&",
	TokenQuestion:  "?",
	TokenLParen:    "(",
	TokenRParen:    ")",
	TokenLBrace:    "{",
	TokenRBrace:    "}",
	TokenLBracket:  "[",
	TokenRBracket:  "]",
	TokenSemicolon: ";",
	TokenColon:     ":",
	TokenComma:     ",",
	TokenDot:       ".",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // raw text; decoded contents for strings; message for errors
	Pos     Position // start position
	End     Position // position just past the token
}

// Span returns the source range covered by the token.
func (t Token) Span() Span {
	return Span{Start: t.Pos, End: t.End}
}

// Describe formats the token the way parse errors quote it.
func (t Token) Describe() string {
	switch t.Type {
	case TokenEOF:
		return "<eof>"
	case TokenName, TokenNumber:
		return "'" + t.Literal + "'"
	case TokenString:
		return "string"
	case TokenError:
		return "<error>"
	}
	return "'" + t.Type.String() + "'"
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types. The contextual keywords
// continue, declare and type are lexed as names.
var reservedWords = map[string]TokenType{
	"and":      TokenAnd,
	"break":    TokenBreak,
	"do":       TokenDo,
	"else":     TokenElse,
	"elseif":   TokenElseif,
	"end":      TokenEnd,
	"false":    TokenFalse,
	"for":      TokenFor,
	"function": TokenFunction,
	"if":       TokenIf,
	"in":       TokenIn,
	"local":    TokenLocal,
	"nil":      TokenNil,
	"not":      TokenNot,
	"or":       TokenOr,
	"repeat":   TokenRepeat,
	"return":   TokenReturn,
	"then":     TokenThen,
	"true":     TokenTrue,
	"until":    TokenUntil,
	"while":    TokenWhile,
}
