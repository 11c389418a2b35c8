package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"xorkevin.dev/ibu/cursor"
	"xorkevin.dev/ibu/sqldb"
	"xorkevin.dev/kerrors"
)

const (
	// nullParam is the parameter text read as null by exec --many
	nullParam = `\N`
)

type (
	execFlags struct {
		many   bool
		atomic bool
	}
)

func (c *Cmd) getExecCmd() *cobra.Command {
	execCmd := &cobra.Command{
		Use:   "exec SQL [param...]",
		Short: "Runs a statement",
		Long: `Runs a statement with positional string parameters and prints the number
of affected rows.

With --many the statement is run once per line of stdin. Each line holds tab
separated parameters, and \N is a null parameter.`,
		Args:              cobra.MinimumNArgs(1),
		RunE:              c.execExec,
		DisableAutoGenTag: true,
	}
	execCmd.PersistentFlags().BoolVar(&c.execFlags.many, "many", false, "run the statement for each parameter line read from stdin")
	execCmd.PersistentFlags().BoolVar(&c.execFlags.atomic, "atomic", false, "run in a transaction that is rolled back on failure")
	return execCmd
}

func (c *Cmd) execExec(cmd *cobra.Command, args []string) error {
	if c.execFlags.many && len(args) > 1 {
		return kerrors.WithMsg(nil, "Parameters are read from stdin with --many")
	}
	return c.withConn(cmd.Context(), func(ctx context.Context, conn *sqldb.Conn) error {
		cur := conn.Cursor()
		defer cur.Close()
		run := func(ctx context.Context) error {
			if c.execFlags.many {
				params, scanErr := readParams(cmd.InOrStdin())
				if _, err := cur.ExecuteMany(ctx, args[0], params); err != nil {
					return kerrors.WithMsg(err, "Failed to run statement")
				}
				if err := scanErr(); err != nil {
					return kerrors.WithMsg(err, "Failed to read parameters")
				}
				return nil
			}
			if _, err := cur.Execute(ctx, args[0], stringParams(args[1:])...); err != nil {
				return kerrors.WithMsg(err, "Failed to run statement")
			}
			return nil
		}
		var err error
		if c.execFlags.atomic {
			err = conn.Atomic(ctx, run)
		} else {
			err = run(ctx)
		}
		if err != nil {
			return err
		}
		return printAffected(cmd.OutOrStdout(), cur.RowCount())
	})
}

// readParams lazily reads tab separated parameter lines from r. The returned
// func reports any read error once the params have been consumed.
func readParams(r io.Reader) (cursor.ParamIter, func() error) {
	var scanErr error
	params := func(yield func([]any) bool) {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.TrimRight(scanner.Text(), "\r")
			if line == "" {
				continue
			}
			fields := strings.Split(line, "\t")
			row := make([]any, 0, len(fields))
			for _, i := range fields {
				if i == nullParam {
					row = append(row, nil)
				} else {
					row = append(row, i)
				}
			}
			if !yield(row) {
				return
			}
		}
		scanErr = scanner.Err()
	}
	return params, func() error {
		return scanErr
	}
}

func printAffected(w io.Writer, n int64) error {
	var err error
	if n < 0 {
		_, err = io.WriteString(w, "ok\n")
	} else {
		_, err = fmt.Fprintf(w, "%d rows affected\n", n)
	}
	if err != nil {
		return kerrors.WithMsg(err, "Failed to write output")
	}
	return nil
}

func (c *Cmd) getCallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call PROCEDURE [param...]",
		Short: "Calls a stored procedure",
		Long:  `Calls a stored procedure with positional string parameters.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withConn(cmd.Context(), func(ctx context.Context, conn *sqldb.Conn) error {
				cur := conn.Cursor()
				defer cur.Close()
				if _, err := cur.CallProc(ctx, args[0], stringParams(args[1:])...); err != nil {
					return kerrors.WithMsg(err, fmt.Sprintf("Failed to call %s", args[0]))
				}
				return printAffected(cmd.OutOrStdout(), cur.RowCount())
			})
		},
		DisableAutoGenTag: true,
	}
}
