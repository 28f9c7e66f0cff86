package sandbox

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNewline
	tokIdent
	tokNumber
	tokString
	tokAssign // =
	tokLParen
	tokRParen
	tokComma
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokEq // ==
	tokNe // !=
	tokLt
	tokLe
	tokGt
	tokGe
)

type token struct {
	kind tokenKind
	text string
	num  float64
	line int
}

// scan tokenizes a transformation program. Statement separators (newlines
// and semicolons) are significant and surface as tokNewline.
func scan(src string) ([]token, error) {
	var tokens []token
	line := 1
	i := 0

	emit := func(kind tokenKind, text string) {
		tokens = append(tokens, token{kind: kind, text: text, line: line})
	}

	for i < len(src) {
		c := src[i]
		switch {
		case c == '\n' || c == ';':
			if c == '\n' {
				line++
			}
			emit(tokNewline, string(c))
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '(':
			emit(tokLParen, "(")
			i++
		case c == ')':
			emit(tokRParen, ")")
			i++
		case c == ',':
			emit(tokComma, ",")
			i++
		case c == '+':
			emit(tokPlus, "+")
			i++
		case c == '-':
			emit(tokMinus, "-")
			i++
		case c == '*':
			emit(tokStar, "*")
			i++
		case c == '/':
			emit(tokSlash, "/")
			i++
		case c == '=':
			if i+1 < len(src) && src[i+1] == '=' {
				emit(tokEq, "==")
				i += 2
			} else {
				emit(tokAssign, "=")
				i++
			}
		case c == '!':
			if i+1 < len(src) && src[i+1] == '=' {
				emit(tokNe, "!=")
				i += 2
			} else {
				return nil, fmt.Errorf("line %d: unexpected character %q", line, string(c))
			}
		case c == '<':
			if i+1 < len(src) && src[i+1] == '=' {
				emit(tokLe, "<=")
				i += 2
			} else {
				emit(tokLt, "<")
				i++
			}
		case c == '>':
			if i+1 < len(src) && src[i+1] == '=' {
				emit(tokGe, ">=")
				i += 2
			} else {
				emit(tokGt, ">")
				i++
			}
		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			var sb strings.Builder
			for j < len(src) && src[j] != quote {
				if src[j] == '\n' {
					return nil, fmt.Errorf("line %d: unterminated string literal", line)
				}
				sb.WriteByte(src[j])
				j++
			}
			if j >= len(src) {
				return nil, fmt.Errorf("line %d: unterminated string literal", line)
			}
			emit(tokString, sb.String())
			i = j + 1
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(src) && (src[j] >= '0' && src[j] <= '9' || src[j] == '.') {
				j++
			}
			text := src[i:j]
			num, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid number %q", line, text)
			}
			tokens = append(tokens, token{kind: tokNumber, text: text, num: num, line: line})
			i = j
		case isIdentStart(rune(c)):
			j := i
			for j < len(src) && isIdentPart(rune(src[j])) {
				j++
			}
			emit(tokIdent, src[i:j])
			i = j
		default:
			return nil, fmt.Errorf("line %d: unexpected character %q", line, string(c))
		}
	}

	tokens = append(tokens, token{kind: tokEOF, line: line})
	return tokens, nil
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
