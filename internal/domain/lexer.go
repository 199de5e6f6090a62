package domain

import (
	"fmt"
	"strings"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokLBracket
	tokRBracket
	tokLParen
	tokRParen
	tokComma
	tokDot
	tokPlus
	tokMinus
	tokEquals
	tokString
	tokNumber
	tokName
)

type token struct {
	typ tokenType
	val string
	pos int
}

// tokenize breaks a candidate expression into tokens. Only the shapes
// the mini-language needs are recognized; anything else is an error.
func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		ch := input[i]

		if ch == ' ' || ch == '\n' || ch == '\t' || ch == '\r' {
			i++
			continue
		}

		switch ch {
		case '[':
			tokens = append(tokens, token{tokLBracket, "[", i})
			i++
			continue
		case ']':
			tokens = append(tokens, token{tokRBracket, "]", i})
			i++
			continue
		case '(':
			tokens = append(tokens, token{tokLParen, "(", i})
			i++
			continue
		case ')':
			tokens = append(tokens, token{tokRParen, ")", i})
			i++
			continue
		case ',':
			tokens = append(tokens, token{tokComma, ",", i})
			i++
			continue
		case '.':
			// Dot only separates attributes; numbers carry their own dot below.
			tokens = append(tokens, token{tokDot, ".", i})
			i++
			continue
		case '+':
			tokens = append(tokens, token{tokPlus, "+", i})
			i++
			continue
		case '-':
			tokens = append(tokens, token{tokMinus, "-", i})
			i++
			continue
		case '=':
			tokens = append(tokens, token{tokEquals, "=", i})
			i++
			continue
		}

		// String literal, single or double quoted
		if ch == '\'' || ch == '"' {
			quote := ch
			i++
			var sb strings.Builder
			closed := false
			for i < len(input) {
				c := input[i]
				if c == '\\' && i+1 < len(input) {
					next := input[i+1]
					switch next {
					case 'n':
						sb.WriteByte('\n')
					case 't':
						sb.WriteByte('\t')
					default:
						sb.WriteByte(next)
					}
					i += 2
					continue
				}
				if c == quote {
					closed = true
					i++
					break
				}
				sb.WriteByte(c)
				i++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated string literal at position %d", i)
			}
			tokens = append(tokens, token{tokString, sb.String(), i})
			continue
		}

		// Number
		if ch >= '0' && ch <= '9' {
			start := i
			seenDot := false
			for i < len(input) {
				c := input[i]
				if c >= '0' && c <= '9' {
					i++
					continue
				}
				if c == '.' && !seenDot && i+1 < len(input) && input[i+1] >= '0' && input[i+1] <= '9' {
					seenDot = true
					i++
					continue
				}
				break
			}
			tokens = append(tokens, token{tokNumber, input[start:i], start})
			continue
		}

		// Name / keyword
		if isNameStart(ch) {
			start := i
			for i < len(input) && isNameChar(input[i]) {
				i++
			}
			tokens = append(tokens, token{tokName, input[start:i], start})
			continue
		}

		return nil, fmt.Errorf("unexpected character %q at position %d", string(ch), i)
	}
	tokens = append(tokens, token{tokEOF, "", len(input)})
	return tokens, nil
}

func isNameStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isNameChar(ch byte) bool {
	return isNameStart(ch) || (ch >= '0' && ch <= '9')
}
