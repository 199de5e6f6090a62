// Package record implements the record-store collaborator: a registry of
// business collections with introspectable schemas, and a gorm-backed
// store that executes parsed filter expressions against their tables.
package record

import (
	"sort"
	"strings"
	"sync"
)

type FieldType string

const (
	FieldChar      FieldType = "char"
	FieldText      FieldType = "text"
	FieldInteger   FieldType = "integer"
	FieldFloat     FieldType = "float"
	FieldBoolean   FieldType = "boolean"
	FieldDate      FieldType = "date"
	FieldDatetime  FieldType = "datetime"
	FieldSelection FieldType = "selection"
	FieldMany2one  FieldType = "many2one"
	FieldOne2many  FieldType = "one2many"
	FieldMany2many FieldType = "many2many"
)

// Field describes one column of a collection.
type Field struct {
	Name      string
	Label     string
	Type      FieldType
	Stored    bool
	Internal  bool
	Selection []string // selection values, FieldSelection only
	Relation  string   // target collection, relational types only
}

// Collection is one named type of business record.
type Collection struct {
	Name       string // technical name, e.g. "invoice"
	Label      string // display name
	Table      string // SQL table; derived from Name when empty
	LabelField string // column used for free-text relation matching; "name" when empty
	Transient  bool
	Fields     []Field
}

func (c Collection) TableName() string {
	if c.Table != "" {
		return c.Table
	}
	return strings.ReplaceAll(c.Name, ".", "_")
}

func (c Collection) labelField() string {
	if c.LabelField != "" {
		return c.LabelField
	}
	return "name"
}

func (c Collection) field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Registry holds the known collections. Registration happens at startup;
// lookups are concurrent-safe.
type Registry struct {
	mu          sync.RWMutex
	collections map[string]Collection
}

func NewRegistry() *Registry {
	return &Registry{collections: make(map[string]Collection)}
}

func (r *Registry) Register(c Collection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collections[c.Name] = c
}

func (r *Registry) Get(name string) (Collection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collections[name]
	return c, ok
}

// All returns every registered collection sorted by technical name.
func (r *Registry) All() []Collection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Collection, 0, len(r.collections))
	for _, c := range r.collections {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
