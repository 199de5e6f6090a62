package domain

import (
	"fmt"
	"strings"
	"time"
)

// List and Tuple are the evaluated container values. Tuples are what
// conditions arrive as; lists hold the whole expression and `in` values.
type List []interface{}

type Tuple []interface{}

// Env scopes an evaluation. Only the date/time helper namespace and the
// today helper are bound; every other name fails.
type Env struct {
	Now func() time.Time
}

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// callable is an evaluator-internal function value (constructor or method).
type callable struct {
	name string
	fn   func(args []interface{}, kwargs map[string]interface{}) (interface{}, error)
}

// namespace is an evaluator-internal attribute bag (the datetime module
// and its classes).
type namespace struct {
	name    string
	members map[string]interface{}
}

// evaluate reduces an AST to a concrete value under the restricted bindings.
func evaluate(n node, env Env) (interface{}, error) {
	switch v := n.(type) {
	case strNode:
		return v.val, nil
	case intNode:
		return v.val, nil
	case floatNode:
		return v.val, nil
	case boolNode:
		return v.val, nil
	case noneNode:
		return nil, nil
	case listNode:
		out := make(List, 0, len(v.items))
		for _, item := range v.items {
			ev, err := evaluate(item, env)
			if err != nil {
				return nil, err
			}
			out = append(out, ev)
		}
		return out, nil
	case tupleNode:
		out := make(Tuple, 0, len(v.items))
		for _, item := range v.items {
			ev, err := evaluate(item, env)
			if err != nil {
				return nil, err
			}
			out = append(out, ev)
		}
		return out, nil
	case nameNode:
		return resolveName(v.name, env)
	case attrNode:
		recv, err := evaluate(v.recv, env)
		if err != nil {
			return nil, err
		}
		return resolveAttr(recv, v.name, env)
	case callNode:
		recv, err := evaluate(v.recv, env)
		if err != nil {
			return nil, err
		}
		// Class namespaces are callable through their __call__ member, so
		// datetime.datetime(2024, 1, 1) works alongside datetime.datetime.now().
		if ns, ok := recv.(*namespace); ok {
			if ctor, ok := ns.members["__call__"]; ok {
				recv = ctor
			}
		}
		c, ok := recv.(*callable)
		if !ok {
			return nil, fmt.Errorf("%s is not callable", describeValue(recv))
		}
		args := make([]interface{}, 0, len(v.args))
		for _, a := range v.args {
			ev, err := evaluate(a, env)
			if err != nil {
				return nil, err
			}
			args = append(args, ev)
		}
		kwargs := make(map[string]interface{}, len(v.kwargs))
		for _, kw := range v.kwargs {
			ev, err := evaluate(kw.val, env)
			if err != nil {
				return nil, err
			}
			kwargs[kw.name] = ev
		}
		return c.fn(args, kwargs)
	case binNode:
		left, err := evaluate(v.left, env)
		if err != nil {
			return nil, err
		}
		right, err := evaluate(v.right, env)
		if err != nil {
			return nil, err
		}
		return applyBinary(v.op, left, right)
	case negNode:
		operand, err := evaluate(v.operand, env)
		if err != nil {
			return nil, err
		}
		switch x := operand.(type) {
		case int64:
			return -x, nil
		case float64:
			return -x, nil
		case time.Duration:
			return -x, nil
		}
		return nil, fmt.Errorf("cannot negate %s", describeValue(operand))
	}
	return nil, fmt.Errorf("unsupported expression")
}

func resolveName(name string, env Env) (interface{}, error) {
	switch name {
	case "datetime":
		return datetimeNamespace(env), nil
	case "context_today":
		return &callable{name: "context_today", fn: func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
			return env.now(), nil
		}}, nil
	}
	return nil, fmt.Errorf("name '%s' is not defined", name)
}

func datetimeNamespace(env Env) *namespace {
	return &namespace{
		name: "datetime",
		members: map[string]interface{}{
			"datetime":  datetimeClass(env),
			"date":      dateClass(env),
			"timedelta": timedeltaCtor(),
		},
	}
}

func datetimeClass(env Env) *namespace {
	return &namespace{
		name: "datetime.datetime",
		members: map[string]interface{}{
			"__call__": &callable{name: "datetime.datetime", fn: func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
				return constructDatetime(args)
			}},
			"now": &callable{name: "datetime.datetime.now", fn: func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
				return env.now(), nil
			}},
			"today": &callable{name: "datetime.datetime.today", fn: func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
				return env.now(), nil
			}},
		},
	}
}

func dateClass(env Env) *namespace {
	return &namespace{
		name: "datetime.date",
		members: map[string]interface{}{
			"__call__": &callable{name: "datetime.date", fn: func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
				if len(args) != 3 {
					return nil, fmt.Errorf("datetime.date() takes 3 arguments")
				}
				y, m, d, err := threeInts(args)
				if err != nil {
					return nil, err
				}
				return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC), nil
			}},
			"today": &callable{name: "datetime.date.today", fn: func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
				n := env.now()
				return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, n.Location()), nil
			}},
		},
	}
}

func timedeltaCtor() *callable {
	return &callable{name: "datetime.timedelta", fn: func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		var total time.Duration
		addUnit := func(v interface{}, unit time.Duration, what string) error {
			switch x := v.(type) {
			case int64:
				total += time.Duration(x) * unit
			case float64:
				total += time.Duration(float64(unit) * x)
			default:
				return fmt.Errorf("timedelta %s must be a number", what)
			}
			return nil
		}
		// positional: days, seconds
		if len(args) > 0 {
			if err := addUnit(args[0], 24*time.Hour, "days"); err != nil {
				return nil, err
			}
		}
		if len(args) > 1 {
			if err := addUnit(args[1], time.Second, "seconds"); err != nil {
				return nil, err
			}
		}
		if len(args) > 2 {
			return nil, fmt.Errorf("too many positional arguments for timedelta")
		}
		units := map[string]time.Duration{
			"days":    24 * time.Hour,
			"seconds": time.Second,
			"minutes": time.Minute,
			"hours":   time.Hour,
			"weeks":   7 * 24 * time.Hour,
		}
		for name, v := range kwargs {
			unit, ok := units[name]
			if !ok {
				return nil, fmt.Errorf("unknown timedelta argument '%s'", name)
			}
			if err := addUnit(v, unit, name); err != nil {
				return nil, err
			}
		}
		return total, nil
	}}
}

func resolveAttr(recv interface{}, name string, env Env) (interface{}, error) {
	switch r := recv.(type) {
	case *namespace:
		member, ok := r.members[name]
		if !ok {
			return nil, fmt.Errorf("'%s' has no attribute '%s'", r.name, name)
		}
		return member, nil
	case time.Time:
		return datetimeMethod(r, name, env)
	}
	return nil, fmt.Errorf("%s has no attribute '%s'", describeValue(recv), name)
}

func datetimeMethod(t time.Time, name string, env Env) (interface{}, error) {
	switch name {
	case "strftime":
		return &callable{name: "strftime", fn: func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("strftime() takes exactly one argument")
			}
			format, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("strftime() format must be a string")
			}
			return strftime(t, format), nil
		}}, nil
	case "replace":
		return &callable{name: "replace", fn: func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
			if len(args) > 0 {
				return nil, fmt.Errorf("replace() only accepts keyword arguments")
			}
			return replaceDatetime(t, kwargs)
		}}, nil
	case "date":
		return &callable{name: "date", fn: func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()), nil
		}}, nil
	}
	return nil, fmt.Errorf("datetime has no attribute '%s'", name)
}

func replaceDatetime(t time.Time, kwargs map[string]interface{}) (time.Time, error) {
	year, month, day := t.Year(), int(t.Month()), t.Day()
	hour, minute, second := t.Hour(), t.Minute(), t.Second()
	for name, v := range kwargs {
		iv, ok := v.(int64)
		if !ok {
			return time.Time{}, fmt.Errorf("replace() argument '%s' must be an integer", name)
		}
		switch name {
		case "year":
			year = int(iv)
		case "month":
			month = int(iv)
		case "day":
			day = int(iv)
		case "hour":
			hour = int(iv)
		case "minute":
			minute = int(iv)
		case "second":
			second = int(iv)
		default:
			return time.Time{}, fmt.Errorf("unknown replace() argument '%s'", name)
		}
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, t.Location()), nil
}

func constructDatetime(args []interface{}) (interface{}, error) {
	if len(args) < 3 || len(args) > 7 {
		return nil, fmt.Errorf("datetime.datetime() takes 3 to 7 arguments")
	}
	vals := make([]int, 7)
	for i, a := range args {
		iv, ok := a.(int64)
		if !ok {
			return nil, fmt.Errorf("datetime.datetime() arguments must be integers")
		}
		vals[i] = int(iv)
	}
	return time.Date(vals[0], time.Month(vals[1]), vals[2], vals[3], vals[4], vals[5], 0, time.UTC), nil
}

func applyBinary(op byte, left, right interface{}) (interface{}, error) {
	switch l := left.(type) {
	case time.Time:
		switch r := right.(type) {
		case time.Duration:
			if op == '+' {
				return l.Add(r), nil
			}
			return l.Add(-r), nil
		case time.Time:
			if op == '-' {
				return l.Sub(r), nil
			}
		}
	case time.Duration:
		switch r := right.(type) {
		case time.Duration:
			if op == '+' {
				return l + r, nil
			}
			return l - r, nil
		case time.Time:
			if op == '+' {
				return r.Add(l), nil
			}
		}
	case int64:
		switch r := right.(type) {
		case int64:
			if op == '+' {
				return l + r, nil
			}
			return l - r, nil
		case float64:
			if op == '+' {
				return float64(l) + r, nil
			}
			return float64(l) - r, nil
		}
	case float64:
		switch r := right.(type) {
		case float64:
			if op == '+' {
				return l + r, nil
			}
			return l - r, nil
		case int64:
			if op == '+' {
				return l + float64(r), nil
			}
			return l - float64(r), nil
		}
	case string:
		if r, ok := right.(string); ok && op == '+' {
			return l + r, nil
		}
	}
	return nil, fmt.Errorf("unsupported operand types for %c", op)
}

func threeInts(args []interface{}) (int, int, int, error) {
	out := make([]int, 3)
	for i, a := range args[:3] {
		iv, ok := a.(int64)
		if !ok {
			return 0, 0, 0, fmt.Errorf("expected integer argument")
		}
		out[i] = int(iv)
	}
	return out[0], out[1], out[2], nil
}

// strftime renders the Python %-directives the filter prompts rely on.
// Unknown directives pass through untouched.
func strftime(t time.Time, format string) string {
	var sb strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' || i+1 >= len(format) {
			sb.WriteByte(format[i])
			continue
		}
		i++
		switch format[i] {
		case 'Y':
			sb.WriteString(fmt.Sprintf("%04d", t.Year()))
		case 'y':
			sb.WriteString(fmt.Sprintf("%02d", t.Year()%100))
		case 'm':
			sb.WriteString(fmt.Sprintf("%02d", int(t.Month())))
		case 'd':
			sb.WriteString(fmt.Sprintf("%02d", t.Day()))
		case 'H':
			sb.WriteString(fmt.Sprintf("%02d", t.Hour()))
		case 'M':
			sb.WriteString(fmt.Sprintf("%02d", t.Minute()))
		case 'S':
			sb.WriteString(fmt.Sprintf("%02d", t.Second()))
		case '%':
			sb.WriteByte('%')
		default:
			sb.WriteByte('%')
			sb.WriteByte(format[i])
		}
	}
	return sb.String()
}

func describeValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case *namespace:
		return x.name
	case *callable:
		return x.name
	case string:
		return fmt.Sprintf("'%s'", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
