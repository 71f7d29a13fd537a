package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/prepare"
)

// QueryResult is the JSON payload of the query command.
type QueryResult struct {
	ID       string                   `json:"id"`
	Columns  []prepare.ColumnMetaData `json:"columns"`
	Rows     [][]any                  `json:"rows"`
	RowsHash string                   `json:"rows_hash"` // content hash of the result set
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Prepare and run a SQL query",
		Long: `Prepare a SQL query against the catalog and print its rows.

Text output is an aligned table; JSON output carries the column
metadata (label, type, precision, scale, nullability) with each row.

Examples:
  quarry query --catalog ./catalog "SELECT name FROM hr.emps WHERE deptno = 10"
  quarry query --db ./data.db "SELECT COUNT(*) FROM emps" --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runQuery(opts *RootOptions, sql string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts)
	ctx := commandContext(cmd)

	session, err := OpenSession(ctx, opts)
	if err != nil {
		return loadFailure(formatter, err)
	}
	defer session.Close()

	pc := prepare.NewContext(session.Root)
	res, err := prepare.New().PrepareSQL(ctx, pc, sql)
	if err != nil {
		return formatter.PrepareError(err)
	}
	formatter.VerboseLog("prepared %s: %d column(s)", res.ID, len(res.Columns))

	rows, err := res.Enumerate(ctx, pc.DataContext())
	if err != nil {
		return formatter.PrepareError(err)
	}

	if opts.Format == "json" {
		hash, err := ir.RowsHash(rows)
		if err != nil {
			return formatter.PrepareError(err)
		}
		out := QueryResult{ID: res.ID, Columns: res.Columns, Rows: make([][]any, len(rows)), RowsHash: hash}
		for i, row := range rows {
			out.Rows[i] = make([]any, len(row))
			for j, v := range row {
				out.Rows[i][j] = jsonValue(v)
			}
		}
		return formatter.Success(out)
	}

	header := make([]string, len(res.Columns))
	for i, c := range res.Columns {
		header[i] = c.Label
	}
	text := make([][]string, len(rows))
	for i, row := range rows {
		text[i] = make([]string, len(row))
		for j, v := range row {
			text[i][j] = v.String()
		}
	}
	return formatter.Table(header, text)
}

// jsonValue maps a value onto its JSON form. Decimals stay strings so no
// digit is lost.
func jsonValue(v ir.Value) any {
	switch x := v.(type) {
	case ir.Null:
		return nil
	case ir.Bool:
		return bool(x)
	case ir.Int:
		return int64(x)
	case ir.Float:
		return float64(x)
	case ir.String:
		return string(x)
	default:
		return v.String()
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
