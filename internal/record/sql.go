package record

import (
	"fmt"
	"strings"
	"time"

	"nlsearch/internal/domain"
)

// fragment is one compiled WHERE clause with its arguments.
type fragment struct {
	where string
	args  []interface{}
}

// compiler walks a parsed domain in prefix order: '&' and '|' consume two
// operands, '!' one, and leftover terms are joined with AND (the implicit
// default).
type compiler struct {
	registry *Registry
	col      Collection
	terms    domain.Domain
	pos      int
}

func (s *Store) compile(col Collection, d domain.Domain) (fragment, error) {
	c := &compiler{registry: s.registry, col: col, terms: d}
	var frags []fragment
	for c.pos < len(c.terms) {
		f, err := c.next()
		if err != nil {
			return fragment{}, err
		}
		frags = append(frags, f)
	}
	if len(frags) == 0 {
		return fragment{where: "1=1"}, nil
	}
	return joinFragments(frags, "AND"), nil
}

func (c *compiler) next() (fragment, error) {
	if c.pos >= len(c.terms) {
		return fragment{}, fmt.Errorf("filter ends in the middle of a logic expression")
	}
	term := c.terms[c.pos]
	c.pos++
	switch term.Logic {
	case domain.LogicAnd, domain.LogicOr:
		left, err := c.next()
		if err != nil {
			return fragment{}, err
		}
		right, err := c.next()
		if err != nil {
			return fragment{}, err
		}
		conj := "AND"
		if term.Logic == domain.LogicOr {
			conj = "OR"
		}
		return joinFragments([]fragment{left, right}, conj), nil
	case domain.LogicNot:
		operand, err := c.next()
		if err != nil {
			return fragment{}, err
		}
		return fragment{where: "NOT (" + operand.where + ")", args: operand.args}, nil
	}
	return c.leaf(term.Cond)
}

func joinFragments(frags []fragment, conj string) fragment {
	if len(frags) == 1 {
		return frags[0]
	}
	parts := make([]string, len(frags))
	var args []interface{}
	for i, f := range frags {
		parts[i] = "(" + f.where + ")"
		args = append(args, f.args...)
	}
	return fragment{where: strings.Join(parts, " "+conj+" "), args: args}
}

func (c *compiler) leaf(cond *domain.Condition) (fragment, error) {
	if cond == nil {
		return fragment{}, fmt.Errorf("empty condition in filter")
	}
	field, ok := c.col.field(cond.Field)
	if !ok {
		return fragment{}, fmt.Errorf("unknown field '%s' in collection '%s'", cond.Field, c.col.Name)
	}
	column := field.Name
	value := sqlValue(cond.Value)

	switch cond.Operator {
	case "child_of", "parent_of":
		return c.hierarchy(field, cond)
	}

	// Free-text match on a relation field resolves through the target
	// collection's label, the way name_search would.
	if field.Type == FieldMany2one {
		if _, isText := value.(string); isText {
			switch cond.Operator {
			case "like", "ilike", "=like", "=ilike", "not like", "not ilike":
				return c.relationLabelMatch(field, cond)
			}
		}
	}

	switch cond.Operator {
	case "=":
		if value == nil {
			return fragment{where: column + " IS NULL"}, nil
		}
		return fragment{where: column + " = ?", args: []interface{}{value}}, nil
	case "!=":
		if value == nil {
			return fragment{where: column + " IS NOT NULL"}, nil
		}
		return fragment{where: column + " <> ?", args: []interface{}{value}}, nil
	case ">", ">=", "<", "<=":
		return fragment{where: column + " " + cond.Operator + " ?", args: []interface{}{value}}, nil
	case "like":
		return fragment{where: column + " LIKE ?", args: []interface{}{wildcard(value)}}, nil
	case "not like":
		return fragment{where: column + " NOT LIKE ?", args: []interface{}{wildcard(value)}}, nil
	case "=like":
		return fragment{where: column + " LIKE ?", args: []interface{}{value}}, nil
	case "ilike":
		return fragment{where: "LOWER(" + column + ") LIKE LOWER(?)", args: []interface{}{wildcard(value)}}, nil
	case "not ilike":
		return fragment{where: "LOWER(" + column + ") NOT LIKE LOWER(?)", args: []interface{}{wildcard(value)}}, nil
	case "=ilike":
		return fragment{where: "LOWER(" + column + ") LIKE LOWER(?)", args: []interface{}{value}}, nil
	case "in":
		return fragment{where: column + " IN ?", args: []interface{}{valueList(value)}}, nil
	case "not in":
		return fragment{where: column + " NOT IN ?", args: []interface{}{valueList(value)}}, nil
	}
	return fragment{}, fmt.Errorf("unsupported operator '%s'", cond.Operator)
}

// relationLabelMatch compiles an ilike/like condition on a many2one field
// into a label subquery on the target collection.
func (c *compiler) relationLabelMatch(field Field, cond *domain.Condition) (fragment, error) {
	target, ok := c.registry.Get(field.Relation)
	if !ok {
		return fragment{}, fmt.Errorf("field '%s' points at unknown collection '%s'", field.Name, field.Relation)
	}
	label := target.labelField()
	value := sqlValue(cond.Value)
	negate := strings.HasPrefix(cond.Operator, "not ")
	exact := strings.HasPrefix(cond.Operator, "=")

	match := value
	if !exact {
		match = wildcard(value)
	}
	var inner string
	if strings.Contains(cond.Operator, "ilike") {
		inner = "SELECT id FROM " + target.TableName() + " WHERE LOWER(" + label + ") LIKE LOWER(?)"
	} else {
		inner = "SELECT id FROM " + target.TableName() + " WHERE " + label + " LIKE ?"
	}
	op := "IN"
	if negate {
		op = "NOT IN"
	}
	return fragment{
		where: field.Name + " " + op + " (" + inner + ")",
		args:  []interface{}{match},
	}, nil
}

// hierarchy compiles child_of/parent_of with a recursive CTE over the
// target collection's parent_id column.
func (c *compiler) hierarchy(field Field, cond *domain.Condition) (fragment, error) {
	targetName := field.Relation
	if field.Name == "id" || targetName == "" {
		targetName = c.col.Name
	}
	target, ok := c.registry.Get(targetName)
	if !ok {
		return fragment{}, fmt.Errorf("field '%s' points at unknown collection '%s'", field.Name, targetName)
	}
	table := target.TableName()
	label := target.labelField()

	var rootWhere string
	var rootArg interface{}
	switch v := sqlValue(cond.Value).(type) {
	case string:
		rootWhere = "LOWER(" + label + ") LIKE LOWER(?)"
		rootArg = wildcard(v)
	default:
		rootWhere = "id = ?"
		rootArg = v
	}

	var cte string
	if cond.Operator == "child_of" {
		cte = "WITH RECURSIVE tree(id) AS (" +
			"SELECT id FROM " + table + " WHERE " + rootWhere +
			" UNION SELECT t.id FROM " + table + " t JOIN tree ON t.parent_id = tree.id" +
			") SELECT id FROM tree"
	} else {
		cte = "WITH RECURSIVE tree(id, parent_id) AS (" +
			"SELECT id, parent_id FROM " + table + " WHERE " + rootWhere +
			" UNION SELECT t.id, t.parent_id FROM " + table + " t JOIN tree ON tree.parent_id = t.id" +
			") SELECT id FROM tree"
	}
	return fragment{
		where: field.Name + " IN (" + cte + ")",
		args:  []interface{}{rootArg},
	}, nil
}

// sqlValue maps evaluated mini-language values onto driver-friendly ones.
func sqlValue(v interface{}) interface{} {
	switch x := v.(type) {
	case time.Time:
		return x
	case domain.List:
		return []interface{}(x)
	case domain.Tuple:
		return []interface{}(x)
	default:
		return v
	}
}

func valueList(v interface{}) []interface{} {
	if list, ok := v.([]interface{}); ok {
		out := make([]interface{}, len(list))
		for i, item := range list {
			out[i] = sqlValue(item)
		}
		return out
	}
	return []interface{}{sqlValue(v)}
}

func wildcard(v interface{}) string {
	return "%" + fmt.Sprintf("%v", v) + "%"
}
