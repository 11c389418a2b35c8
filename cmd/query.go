package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"xorkevin.dev/ibu/cursor"
	"xorkevin.dev/ibu/sqldb"
	"xorkevin.dev/ibu/typecast"
	"xorkevin.dev/kerrors"
)

type (
	queryFlags struct {
		output    string
		null      string
		maxDigits int
		places    int
	}
)

func (c *Cmd) getQueryCmd() *cobra.Command {
	queryCmd := &cobra.Command{
		Use:   "query SQL [param...]",
		Short: "Runs a query and prints its rows",
		Long: `Runs a query with positional string parameters and prints the typecast
result rows, as tab separated text or yaml.`,
		Args:              cobra.MinimumNArgs(1),
		RunE:              c.execQuery,
		DisableAutoGenTag: true,
	}
	queryCmd.PersistentFlags().StringVarP(&c.queryFlags.output, "output", "o", "text", "output format (text or yaml)")
	queryCmd.PersistentFlags().StringVar(&c.queryFlags.null, "null", "NULL", "text printed for null values")
	queryCmd.PersistentFlags().IntVar(&c.queryFlags.maxDigits, "max-digits", -1, "maximum significant digits of numbers (default is unset)")
	queryCmd.PersistentFlags().IntVar(&c.queryFlags.places, "places", -1, "decimal places of numbers (default is unset)")
	return queryCmd
}

func (c *Cmd) execQuery(cmd *cobra.Command, args []string) error {
	switch c.queryFlags.output {
	case "text", "yaml":
	default:
		return kerrors.WithMsg(nil, fmt.Sprintf("Invalid output format %s", c.queryFlags.output))
	}
	return c.withConn(cmd.Context(), func(ctx context.Context, conn *sqldb.Conn) error {
		cur := conn.Cursor()
		defer cur.Close()
		if _, err := cur.Execute(ctx, args[0], stringParams(args[1:])...); err != nil {
			return kerrors.WithMsg(err, "Failed to run query")
		}
		cols, err := cur.Columns()
		if err != nil {
			return kerrors.WithMsg(err, "Failed to read columns")
		}
		var rows [][]string
		for row, err := range cur.Rows(ctx) {
			if err != nil {
				return kerrors.WithMsg(err, "Failed to fetch row")
			}
			k, err := c.renderRow(row)
			if err != nil {
				return err
			}
			rows = append(rows, k)
		}
		if c.queryFlags.output == "yaml" {
			return writeYAML(cmd.OutOrStdout(), cols, rows)
		}
		return writeText(cmd.OutOrStdout(), cols, rows)
	})
}

func stringParams(args []string) []any {
	params := make([]any, 0, len(args))
	for _, i := range args {
		params = append(params, i)
	}
	return params
}

func (c *Cmd) renderRow(row cursor.Row) ([]string, error) {
	res := make([]string, 0, len(row))
	for _, i := range row {
		k, err := c.renderValue(i)
		if err != nil {
			return nil, err
		}
		res = append(res, k)
	}
	return res, nil
}

func (c *Cmd) renderValue(v any) (string, error) {
	switch k := v.(type) {
	case nil:
		return c.queryFlags.null, nil
	case *apd.Decimal, float64, float32, int64, int32, int:
		s, err := typecast.FormatNumber(k, c.queryFlags.maxDigits, c.queryFlags.places)
		if err != nil {
			return "", kerrors.WithMsg(err, "Failed to format number")
		}
		return s, nil
	case []byte:
		return string(k), nil
	case string:
		return k, nil
	case fmt.Stringer:
		return k.String(), nil
	default:
		return fmt.Sprint(v), nil
	}
}

func writeText(w io.Writer, cols []cursor.Column, rows [][]string) error {
	if len(cols) > 0 {
		names := make([]string, 0, len(cols))
		for _, i := range cols {
			names = append(names, i.Name)
		}
		if _, err := io.WriteString(w, strings.Join(names, "\t")+"\n"); err != nil {
			return kerrors.WithMsg(err, "Failed to write output")
		}
	}
	for _, i := range rows {
		if _, err := io.WriteString(w, strings.Join(i, "\t")+"\n"); err != nil {
			return kerrors.WithMsg(err, "Failed to write output")
		}
	}
	return nil
}

func writeYAML(w io.Writer, cols []cursor.Column, rows [][]string) error {
	nodes := make([]*yaml.Node, 0, len(rows))
	for _, row := range rows {
		m := &yaml.Node{Kind: yaml.MappingNode}
		for n, i := range row {
			m.Content = append(m.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: cols[n].Name},
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: i},
			)
		}
		nodes = append(nodes, m)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&yaml.Node{Kind: yaml.SequenceNode, Content: nodes}); err != nil {
		return kerrors.WithMsg(err, "Failed to write output")
	}
	if err := enc.Close(); err != nil {
		return kerrors.WithMsg(err, "Failed to write output")
	}
	return nil
}
