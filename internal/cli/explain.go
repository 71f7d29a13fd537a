package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/prepare"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	Source bool // include the procedure listing
}

// ExplainResult is the JSON payload of the explain command.
type ExplainResult struct {
	ID       string `json:"id"`
	Format   string `json:"format"`
	Digest   string `json:"digest"`
	Logical  string `json:"logical"`
	Physical string `json:"physical"`
	Source   string `json:"source,omitempty"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <sql>",
		Short: "Show the plans of a SQL query",
		Long: `Prepare a SQL query without running it and print its logical plan
and the physical plan the optimizer chose. With --source the
generated procedure is printed too.

Examples:
  quarry explain --catalog ./catalog "SELECT x + 1 FROM T ORDER BY y"
  quarry explain --catalog ./catalog --source "SELECT * FROM hr.emps"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Source, "source", false, "include the generated procedure")

	return cmd
}

func runExplain(opts *ExplainOptions, sql string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)
	ctx := commandContext(cmd)

	session, err := OpenSession(ctx, opts.RootOptions)
	if err != nil {
		return loadFailure(formatter, err)
	}
	defer session.Close()

	res, err := prepare.New().PrepareSQL(ctx, prepare.NewContext(session.Root), sql)
	if err != nil {
		return formatter.PrepareError(err)
	}

	plan := res.Explain()
	out := ExplainResult{
		ID:       res.ID,
		Format:   ir.PlanFormatVersion,
		Digest:   plan.Digest,
		Logical:  plan.Logical,
		Physical: plan.Physical,
	}
	if opts.Source {
		out.Source = plan.Source
	}
	if opts.Format == "json" {
		return formatter.Success(out)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "Logical plan:")
	fmt.Fprint(w, out.Logical)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Physical plan:")
	fmt.Fprint(w, out.Physical)
	if out.Source != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Procedure:")
		fmt.Fprintln(w, out.Source)
	}
	return nil
}
