package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/dbasync"
)

var (
	flagQuerySource  string
	flagQueryOp      string
	flagQueryEqJSON  string
	flagQueryOrderBy string
	flagQueryLimit   int
)

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Build a ResultSet from flags and run one terminal operation",
		Long: "query runs a single all/count/find operation against --source, filtered by\n" +
			"an optional --eq JSON object of equality conditions.",
		RunE: runQuery,
	}

	cmd.Flags().StringVar(&flagQuerySource, "source", "", "table/source name (required)")
	cmd.Flags().StringVar(&flagQueryOp, "op", "all", "operation: all, count, or find")
	cmd.Flags().StringVar(&flagQueryEqJSON, "eq", "", "JSON object of column equality filters, e.g. {\"active\":true}")
	cmd.Flags().StringVar(&flagQueryOrderBy, "order-by", "", "ORDER BY clause")
	cmd.Flags().IntVar(&flagQueryLimit, "limit", 0, "row cap (0 means unlimited)")
	_ = cmd.MarkFlagRequired("source")

	return cmd
}

func runQuery(cmd *cobra.Command, _ []string) error {
	cc := mustContext(cmd)

	cond, err := parseEqFlag(flagQueryEqJSON)
	if err != nil {
		return fmt.Errorf("parsing --eq: %w", err)
	}

	rs := cc.schema.ResultSet(flagQuerySource).Search(cond, dbasync.Attrs{})
	if flagQueryOrderBy != "" {
		rs = rs.OrderBy(flagQueryOrderBy)
	}
	if flagQueryLimit > 0 {
		rs = rs.Rows(flagQueryLimit)
	}

	var result any

	switch flagQueryOp {
	case "all":
		result, err = rs.All().Await(cmd.Context())
	case "count":
		result, err = rs.Count().Await(cmd.Context())
	case "find":
		result, err = rs.Find(cond).Await(cmd.Context())
	default:
		return fmt.Errorf("unknown --op %q: expected all, count, or find", flagQueryOp)
	}
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	return enc.Encode(result)
}

func parseEqFlag(raw string) (dbasync.Cond, error) {
	if raw == "" {
		return dbasync.Cond{}, nil
	}

	var values map[string]any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return dbasync.Cond{}, err
	}

	return dbasync.Eq(values), nil
}
