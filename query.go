package dbasync

import "github.com/tonimelisma/dbasync/internal/payload"

// Cond is a query condition: a map of column->value (equality AND'd
// together), a list of sub-conditions AND'd together, or a raw SQL
// fragment.
type Cond = payload.Cond

// Attrs holds the recognized ResultSet attribute keys (rows, offset,
// limit, order_by, prefetch, and friends).
type Attrs = payload.Attrs

// Eq builds an equality condition from a column->value map.
func Eq(values map[string]any) Cond { return Cond{Eq: values} }

// Raw builds a condition from a literal SQL fragment, standing in for a
// raw subquery the caller constructs itself.
func Raw(sql string) Cond { return Cond{Raw: sql} }

// And combines multiple conditions with a logical AND.
func And(conds ...Cond) Cond { return Cond{And: conds} }
