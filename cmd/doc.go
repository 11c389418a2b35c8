package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
	"xorkevin.dev/kerrors"
)

type (
	docFlags struct {
		outputDir string
	}
)

func (c *Cmd) getDocCmd() *cobra.Command {
	docCmd := &cobra.Command{
		Use:               "doc",
		Short:             "generate documentation for ibu",
		Long:              `generate documentation for ibu in several formats`,
		DisableAutoGenTag: true,
	}
	docCmd.PersistentFlags().StringVarP(&c.docFlags.outputDir, "output", "o", ".", "documentation output path")

	docManCmd := &cobra.Command{
		Use:   "man",
		Short: "generate man page documentation for ibu",
		Long:  `generate man page documentation for ibu`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := doc.GenManTree(c.rootCmd, &doc.GenManHeader{
				Title:   "ibu",
				Section: "1",
			}, c.docFlags.outputDir); err != nil {
				return kerrors.WithMsg(err, "Failed to generate man pages")
			}
			return nil
		},
		DisableAutoGenTag: true,
	}
	docCmd.AddCommand(docManCmd)

	docMdCmd := &cobra.Command{
		Use:   "md",
		Short: "generate markdown documentation for ibu",
		Long:  `generate markdown documentation for ibu`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := doc.GenMarkdownTree(c.rootCmd, c.docFlags.outputDir); err != nil {
				return kerrors.WithMsg(err, "Failed to generate markdown docs")
			}
			return nil
		},
		DisableAutoGenTag: true,
	}
	docCmd.AddCommand(docMdCmd)

	return docCmd
}
