package domain

import "fmt"

// Result is the outcome of validating a candidate filter expression.
// Domain carries the original string when valid, the rejected candidate
// otherwise, so a human can diagnose prompt drift either way.
type Result struct {
	Valid  bool
	Domain string
	Err    string
}

// Validate checks a candidate filter expression in two phases: the
// structural one (a list of logic tokens and 3-element conditions) and
// the semantic one (it actually evaluates under the restricted grammar).
// Field names are deliberately not checked against any schema.
func Validate(candidate string, env Env) Result {
	value, err := evaluateCandidate(candidate, env)
	if err != nil {
		return Result{Valid: false, Domain: candidate, Err: fmt.Sprintf("invalid syntax: %s", err)}
	}
	list, ok := value.(List)
	if !ok {
		return Result{Valid: false, Domain: candidate, Err: "the filter must be a list"}
	}
	for _, item := range list {
		switch v := item.(type) {
		case string:
			if !isLogicToken(v) {
				return Result{
					Valid:  false,
					Domain: candidate,
					Err:    fmt.Sprintf("invalid operator %s, use '&', '|' or '!'", pyRepr(v)),
				}
			}
		case Tuple:
			if len(v) != 3 {
				return Result{
					Valid:  false,
					Domain: candidate,
					Err:    fmt.Sprintf("each condition must have 3 elements (field, operator, value). Found: %s", pyRepr(v)),
				}
			}
		case List:
			if len(v) != 3 {
				return Result{
					Valid:  false,
					Domain: candidate,
					Err:    fmt.Sprintf("each condition must have 3 elements (field, operator, value). Found: %s", pyRepr(v)),
				}
			}
		default:
			return Result{
				Valid:  false,
				Domain: candidate,
				Err:    fmt.Sprintf("invalid element in filter: %s", pyRepr(item)),
			}
		}
	}
	return Result{Valid: true, Domain: candidate}
}
