package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"xorkevin.dev/ibu/typecast"
	"xorkevin.dev/kerrors"
)

type (
	nameFlags struct {
		length  int
		hashLen int
	}
)

func (c *Cmd) getNameCmd() *cobra.Command {
	nameCmd := &cobra.Command{
		Use:   "name NAME...",
		Short: "Truncates identifiers",
		Long: `Truncates identifiers to a maximum length, replacing the tail of long names
with a stable hash of the full name.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, i := range args {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), typecast.TruncateName(i, c.nameFlags.length, c.nameFlags.hashLen)); err != nil {
					return kerrors.WithMsg(err, "Failed to write output")
				}
			}
			return nil
		},
		DisableAutoGenTag: true,
	}
	nameCmd.PersistentFlags().IntVarP(&c.nameFlags.length, "length", "l", 63, "maximum identifier length")
	nameCmd.PersistentFlags().IntVar(&c.nameFlags.hashLen, "hash", typecast.DefaultHashLen, "number of hash characters")
	return nameCmd
}
