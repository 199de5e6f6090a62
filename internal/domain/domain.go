// Package domain implements the filter mini-language shared by the
// search pipeline and the record store: lists of (field, operator, value)
// conditions mixed with prefix logic operators, with only the date/time
// construction helpers in scope.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// LogicAnd, LogicOr and LogicNot are the only bare strings a filter
// expression may contain.
const (
	LogicAnd = "&"
	LogicOr  = "|"
	LogicNot = "!"
)

// Condition is one (field, operator, value) triple.
type Condition struct {
	Field    string
	Operator string
	Value    interface{}
}

// Term is either a logic operator or a condition.
type Term struct {
	Logic string
	Cond  *Condition
}

// Domain is a parsed filter expression in prefix form.
type Domain []Term

func isLogicToken(s string) bool {
	return s == LogicAnd || s == LogicOr || s == LogicNot
}

// Parse evaluates a candidate expression and shapes it into a Domain.
// Both phases of Validate are applied; callers that only need a yes/no
// answer should use Validate instead.
func Parse(candidate string, env Env) (Domain, error) {
	value, err := evaluateCandidate(candidate, env)
	if err != nil {
		return nil, err
	}
	list, ok := value.(List)
	if !ok {
		return nil, fmt.Errorf("the filter must be a list")
	}
	out := make(Domain, 0, len(list))
	for _, item := range list {
		switch v := item.(type) {
		case string:
			if !isLogicToken(v) {
				return nil, fmt.Errorf("invalid operator %s", pyRepr(v))
			}
			out = append(out, Term{Logic: v})
		case Tuple:
			cond, err := conditionFromSeq([]interface{}(v))
			if err != nil {
				return nil, err
			}
			out = append(out, Term{Cond: cond})
		case List:
			cond, err := conditionFromSeq([]interface{}(v))
			if err != nil {
				return nil, err
			}
			out = append(out, Term{Cond: cond})
		default:
			return nil, fmt.Errorf("invalid element in filter: %s", pyRepr(item))
		}
	}
	return out, nil
}

func conditionFromSeq(items []interface{}) (*Condition, error) {
	if len(items) != 3 {
		return nil, fmt.Errorf("each condition must have 3 elements. Found: %s", pyRepr(Tuple(items)))
	}
	field, ok := items[0].(string)
	if !ok {
		return nil, fmt.Errorf("condition field must be a string. Found: %s", pyRepr(Tuple(items)))
	}
	op, ok := items[1].(string)
	if !ok {
		return nil, fmt.Errorf("condition operator must be a string. Found: %s", pyRepr(Tuple(items)))
	}
	return &Condition{Field: field, Operator: op, Value: items[2]}, nil
}

func evaluateCandidate(candidate string, env Env) (interface{}, error) {
	ast, err := parseExpression(candidate)
	if err != nil {
		return nil, err
	}
	return evaluate(ast, env)
}

// pyRepr renders an evaluated value the way the user wrote it, so
// validation errors quote the offending element recognizably.
func pyRepr(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "\\'") + "'"
	case Tuple:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = pyRepr(item)
		}
		if len(parts) == 1 {
			return "(" + parts[0] + ",)"
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case List:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = pyRepr(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case time.Time:
		return "'" + x.Format("2006-01-02 15:04:05") + "'"
	default:
		return fmt.Sprintf("%v", x)
	}
}
