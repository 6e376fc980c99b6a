package token

import "strings"

type Type int

const (
	LParen Type = iota
	RParen
	Ident
	String
	Number
)

func (t Type) String() string {
	switch t {
	case LParen:
		return "'('"
	case RParen:
		return "')'"
	case Ident:
		return "identifier"
	case String:
		return "string"
	case Number:
		return "number"
	}
	return "unknown"
}

type Token struct {
	Value string
	Type  Type
	Line  int
}

// Tokenize splits WAT source into tokens. Comments are dropped. Malformed
// input never fails here; the parser reports what it cannot use.
func Tokenize(src string) []Token {
	var tokens []Token
	line := 1

	for i := 0; i < len(src); i++ {
		c := src[i]

		switch {
		case c == '\n':
			line++

		case c == ' ' || c == '\t' || c == '\r':

		case c == ';' && i+1 < len(src) && src[i+1] == ';':
			for i+1 < len(src) && src[i+1] != '\n' {
				i++
			}

		case c == '(' && i+1 < len(src) && src[i+1] == ';':
			depth := 0
			for ; i < len(src); i++ {
				if src[i] == '\n' {
					line++
				}
				if src[i] == '(' && i+1 < len(src) && src[i+1] == ';' {
					depth++
					i++
				} else if src[i] == ';' && i+1 < len(src) && src[i+1] == ')' {
					depth--
					i++
					if depth == 0 {
						break
					}
				}
			}

		case c == '(':
			tokens = append(tokens, Token{"(", LParen, line})

		case c == ')':
			tokens = append(tokens, Token{")", RParen, line})

		case c == '"':
			start := i + 1
			for i++; i < len(src) && src[i] != '"'; i++ {
				if src[i] == '\\' {
					i++
				}
			}
			end := min(i, len(src))
			tokens = append(tokens, Token{src[start:end], String, line})

		default:
			start := i
			for i+1 < len(src) && !isDelimiter(src[i+1]) {
				i++
			}
			word := src[start : i+1]
			typ := Ident
			if isNumeric(word) {
				typ = Number
			}
			tokens = append(tokens, Token{word, typ, line})
		}
	}

	return tokens
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '(', ')', '"', ';':
		return true
	}
	return false
}

// isNumeric classifies a word as a numeric literal. Signed special floats
// (+inf, -nan:0x...) count as numbers; bare inf and nan stay identifiers.
func isNumeric(word string) bool {
	signed := word[0] == '+' || word[0] == '-'
	s := word
	if signed {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	if s[0] >= '0' && s[0] <= '9' {
		return true
	}
	return signed && (s == "inf" || strings.HasPrefix(s, "nan"))
}
