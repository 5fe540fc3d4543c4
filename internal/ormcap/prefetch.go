package ormcap

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/tonimelisma/dbasync/internal/config"
	"github.com/tonimelisma/dbasync/internal/payload"
)

// attachPrefetch resolves one level of relations against records and
// recurses into nested prefetch specs: a has-many relation attaches as
// an array under the relation name, a has-one relation attaches as a
// single nested record (or nil).
func (c *sqlConn) attachPrefetch(ctx context.Context, source string, records []map[string]any, prefetch payload.Prefetch) error {
	byName := c.relations[source]

	for name, nested := range prefetch {
		rel, ok := byName[name]
		if !ok {
			return fmt.Errorf("ormcap: %s declares no relation %q", source, name)
		}

		if err := c.attachOne(ctx, rel, records, nested); err != nil {
			return err
		}
	}

	return nil
}

func (c *sqlConn) attachOne(ctx context.Context, rel config.Relation, parents []map[string]any, nested payload.Prefetch) error {
	ids := make([]any, 0, len(parents))
	seen := make(map[any]bool, len(parents))

	for _, parent := range parents {
		id, ok := parent["id"]
		if !ok || id == nil {
			continue
		}

		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	if len(ids) == 0 {
		for _, parent := range parents {
			if rel.Many {
				parent[rel.Name] = []map[string]any{}
			} else {
				parent[rel.Name] = nil
			}
		}

		return nil
	}

	sel := c.builder.Select("*").From(rel.Child).Where(sq.Eq{rel.ForeignKey: ids})

	children, err := c.queryRecords(ctx, sel)
	if err != nil {
		return fmt.Errorf("ormcap: prefetching %s: %w", rel.Name, err)
	}

	if len(nested) > 0 {
		if err := c.attachPrefetch(ctx, rel.Child, children, nested); err != nil {
			return err
		}
	}

	byParent := make(map[any][]map[string]any, len(ids))
	for _, child := range children {
		pid := child[rel.ForeignKey]
		byParent[pid] = append(byParent[pid], child)
	}

	for _, parent := range parents {
		pid := parent["id"]

		matches := byParent[pid]
		if rel.Many {
			if matches == nil {
				matches = []map[string]any{}
			}

			parent[rel.Name] = matches

			continue
		}

		if len(matches) > 0 {
			parent[rel.Name] = matches[0]
		} else {
			parent[rel.Name] = nil
		}
	}

	return nil
}
