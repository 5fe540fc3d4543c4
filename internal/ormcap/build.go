package ormcap

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/tonimelisma/dbasync/internal/payload"
)

// subqueryAlias is the alias used when rows, offset, or limit are present
// on a count query: the builder must emit
// `COUNT(*) FROM (…) AS subquery_for_count` for the underlying engine to
// produce correct SQL.
const subqueryAlias = "subquery_for_count"

// buildPredicate turns a payload.Cond into a squirrel.Sqlizer, recursively
// handling the {and: [...]} combinator search conditions can nest.
func buildPredicate(cond payload.Cond) (sq.Sqlizer, bool) {
	if cond.IsZero() {
		return nil, false
	}

	if cond.Raw != "" {
		return sq.Expr(cond.Raw), true
	}

	if len(cond.And) > 0 {
		and := make(sq.And, 0, len(cond.And))

		for _, sub := range cond.And {
			if p, ok := buildPredicate(sub); ok {
				and = append(and, p)
			}
		}

		if len(and) == 0 {
			return nil, false
		}

		return and, true
	}

	return sq.Eq(cond.Eq), true
}

func placeholderFor(driver string) sq.PlaceholderFormat {
	if driver == "postgres" {
		return sq.Dollar
	}

	return sq.Question
}

// effectiveLimit resolves attrs.Rows/attrs.Limit to the single row cap
// the underlying SQL uses. attrs.Rows is the ResultSet-level alias for a
// row cap; an explicit attrs.Limit, when the caller has set one
// directly, takes precedence.
func effectiveLimit(attrs payload.Attrs) (limit int, has bool) {
	if attrs.Limit > 0 {
		return attrs.Limit, true
	}

	if attrs.Rows > 0 {
		return attrs.Rows, true
	}

	return 0, false
}

func applyAttrs(sel sq.SelectBuilder, attrs payload.Attrs) sq.SelectBuilder {
	if attrs.OrderBy != "" {
		sel = sel.OrderBy(attrs.OrderBy)
	}

	if limit, ok := effectiveLimit(attrs); ok {
		sel = sel.Limit(uint64(limit))
	}

	if attrs.Offset > 0 {
		sel = sel.Offset(uint64(attrs.Offset))
	}

	return sel
}

func buildSelect(builder sq.StatementBuilderType, source string, cond payload.Cond, attrs payload.Attrs) sq.SelectBuilder {
	sel := builder.Select("*").From(source)

	if p, ok := buildPredicate(cond); ok {
		sel = sel.Where(p)
	}

	return applyAttrs(sel, attrs)
}

// buildCount builds the aggregate query for the count/sum/max/min/avg
// operation, honoring the subquery-wrap rule when rows/offset/limit are
// set on the resultset.
func buildCount(builder sq.StatementBuilderType, source string, cond payload.Cond, attrs payload.Attrs, fn, column string) (sq.SelectBuilder, error) {
	expr, err := aggregateExpr(fn, column)
	if err != nil {
		return sq.SelectBuilder{}, err
	}

	_, hasLimit := effectiveLimit(attrs)
	isSubquery := attrs.IsSubquery || hasLimit || attrs.Offset > 0

	if !isSubquery {
		sel := builder.Select(expr).From(source)

		if p, ok := buildPredicate(cond); ok {
			sel = sel.Where(p)
		}

		return sel, nil
	}

	inner := buildSelect(builder, source, cond, attrs)

	alias := attrs.Alias
	if alias == "" {
		alias = subqueryAlias
	}

	return builder.Select(expr).FromSelect(inner, alias), nil
}

func aggregateExpr(fn, column string) (string, error) {
	switch fn {
	case "", "count":
		if column == "" {
			return "COUNT(*)", nil
		}

		return fmt.Sprintf("COUNT(%s)", column), nil
	case "sum", "max", "min", "avg":
		if column == "" {
			return "", fmt.Errorf("ormcap: %s requires a column", fn)
		}

		return fmt.Sprintf("%s(%s)", sqlFuncName(fn), column), nil
	default:
		return "", fmt.Errorf("ormcap: unknown aggregate function %q", fn)
	}
}

func sqlFuncName(fn string) string {
	switch fn {
	case "sum":
		return "SUM"
	case "max":
		return "MAX"
	case "min":
		return "MIN"
	case "avg":
		return "AVG"
	default:
		return "COUNT"
	}
}
