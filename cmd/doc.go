package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
	"xorkevin.dev/bitmend/fileio"
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
		Short:             "generate documentation for bitmend",
		Long:              `generate documentation for bitmend in several formats`,
		DisableAutoGenTag: true,
	}
	docCmd.PersistentFlags().StringVarP(&c.docFlags.outputDir, "output", "o", ".", "documentation output path")

	docManCmd := &cobra.Command{
		Use:               "man",
		Short:             "generate man page documentation for bitmend",
		Long:              `generate man page documentation for bitmend`,
		Run:               c.execDocMan,
		DisableAutoGenTag: true,
	}
	docCmd.AddCommand(docManCmd)

	docMdCmd := &cobra.Command{
		Use:               "md",
		Short:             "generate markdown documentation for bitmend",
		Long:              `generate markdown documentation for bitmend`,
		Run:               c.execDocMd,
		DisableAutoGenTag: true,
	}
	docCmd.AddCommand(docMdCmd)

	return docCmd
}

func (c *Cmd) mkOutputDir() {
	if err := os.MkdirAll(c.docFlags.outputDir, 0o777); err != nil {
		c.logFatal(kerrors.WithKind(err, fileio.ErrIO, "Failed creating documentation output dir"))
		return
	}
}

func (c *Cmd) execDocMan(cmd *cobra.Command, args []string) {
	c.mkOutputDir()
	if err := doc.GenManTree(c.rootCmd, &doc.GenManHeader{
		Title:   "bitmend",
		Section: "1",
		Source:  "bitmend " + c.version,
		Manual:  "bitmend manual",
	}, c.docFlags.outputDir); err != nil {
		c.logFatal(err)
		return
	}
}

func (c *Cmd) execDocMd(cmd *cobra.Command, args []string) {
	c.mkOutputDir()
	if err := doc.GenMarkdownTree(c.rootCmd, c.docFlags.outputDir); err != nil {
		c.logFatal(err)
		return
	}
}
