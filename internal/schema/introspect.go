// Package schema renders human-readable field catalogues used to ground
// model prompts.
package schema

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"nlsearch/internal/record"
)

const (
	cacheTTL       = 5 * time.Minute
	cacheKeyPrefix = "nlsearch:schema:"
)

// selectionLimit caps how many selection values a field line lists.
const selectionLimit = 20

// Introspector describes registered collections for prompt grounding.
// The redis client is optional; without it every call renders fresh.
type Introspector struct {
	registry *record.Registry
	rdb      *redis.Client
	logger   *zap.Logger
}

func NewIntrospector(registry *record.Registry, rdb *redis.Client, logger *zap.Logger) *Introspector {
	return &Introspector{registry: registry, rdb: rdb, logger: logger}
}

// DescribeFields renders one line per stored, non-internal field of the
// collection. An unknown collection yields an empty string, which callers
// treat as "no grounding available".
func (in *Introspector) DescribeFields(ctx context.Context, collection string) string {
	key := cacheKeyPrefix + "fields:" + collection
	if cached, ok := in.cacheGet(ctx, key); ok {
		return cached
	}
	col, ok := in.registry.Get(collection)
	if !ok {
		return ""
	}
	var lines []string
	for _, f := range col.Fields {
		if !f.Stored || f.Internal {
			continue
		}
		label := f.Label
		if label == "" {
			label = f.Name
		}
		info := fmt.Sprintf("%s (%s, type=%s)", f.Name, label, f.Type)
		if f.Type == record.FieldSelection && len(f.Selection) > 0 {
			values := f.Selection
			if len(values) > selectionLimit {
				values = values[:selectionLimit]
			}
			quoted := make([]string, len(values))
			for i, v := range values {
				quoted[i] = "'" + v + "'"
			}
			info += " [" + strings.Join(quoted, ", ") + "]"
		}
		switch f.Type {
		case record.FieldMany2one, record.FieldOne2many, record.FieldMany2many:
			info += " -> " + f.Relation
		}
		lines = append(lines, info)
	}
	out := strings.Join(lines, "\n")
	in.cacheSet(ctx, key, out)
	return out
}

// ListCollections renders one "<technicalName> (<displayName>)" line per
// non-transient collection, sorted by technical name.
func (in *Introspector) ListCollections(ctx context.Context) string {
	key := cacheKeyPrefix + "collections"
	if cached, ok := in.cacheGet(ctx, key); ok {
		return cached
	}
	var lines []string
	for _, c := range in.registry.All() {
		if c.Transient {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s (%s)", c.Name, c.Label))
	}
	out := strings.Join(lines, "\n")
	in.cacheSet(ctx, key, out)
	return out
}

// Known reports whether the name matches a registered non-transient collection.
func (in *Introspector) Known(name string) bool {
	c, ok := in.registry.Get(name)
	return ok && !c.Transient
}

func (in *Introspector) cacheGet(ctx context.Context, key string) (string, bool) {
	if in.rdb == nil {
		return "", false
	}
	val, err := in.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		in.logger.Warn("schema cache read failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return val, true
}

func (in *Introspector) cacheSet(ctx context.Context, key, val string) {
	if in.rdb == nil {
		return
	}
	if err := in.rdb.Set(ctx, key, val, cacheTTL).Err(); err != nil {
		in.logger.Warn("schema cache write failed", zap.String("key", key), zap.Error(err))
	}
}
