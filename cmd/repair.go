package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"xorkevin.dev/bitmend/batch"
	"xorkevin.dev/klog"
)

type (
	repairFlags struct {
		out string
	}
)

func (c *Cmd) addRepairCmds(cmd *cobra.Command) {
	createCmd := &cobra.Command{
		Use:               "create file",
		Short:             "creates the redundancy file of a file",
		Long:              `creates the redundancy file of a file`,
		Args:              cobra.ExactArgs(1),
		Run:               c.execCreate,
		DisableAutoGenTag: true,
	}
	createCmd.PersistentFlags().StringVarP(&c.repairFlags.out, "out", "o", "", "redundancy file (default is derived from the file name)")
	cmd.AddCommand(createCmd)

	verifyCmd := &cobra.Command{
		Use:               "verify file [redundancy]",
		Short:             "verifies a file against its redundancy file",
		Long:              `verifies a file against its redundancy file, exiting with status 6 when errors are found`,
		Args:              cobra.RangeArgs(1, 2),
		Run:               c.execVerify,
		DisableAutoGenTag: true,
	}
	cmd.AddCommand(verifyCmd)

	repairCmd := &cobra.Command{
		Use:               "repair file [redundancy [out]]",
		Short:             "repairs a file using its redundancy file",
		Long:              `repairs a file using its redundancy file and writes the repaired file`,
		Args:              cobra.RangeArgs(1, 3),
		Run:               c.execRepair,
		DisableAutoGenTag: true,
	}
	cmd.AddCommand(repairCmd)
}

func (c *Cmd) addBatchCmds(cmd *cobra.Command) {
	for _, i := range []struct {
		name  string
		short string
		run   func(r *batch.Runner, ctx context.Context, root string) (*batch.Result, error)
	}{
		{name: "createall", short: "creates redundancy files for every file in a dir", run: (*batch.Runner).CreateAll},
		{name: "verifyall", short: "verifies every file in a dir", run: (*batch.Runner).VerifyAll},
		{name: "repairall", short: "repairs every file in a dir", run: (*batch.Runner).RepairAll},
		{name: "updateall", short: "verifies every file in a dir, creating missing redundancy files", run: (*batch.Runner).UpdateAll},
	} {
		run := i.run
		cmd.AddCommand(&cobra.Command{
			Use:   i.name + " dir",
			Short: i.short,
			Long:  i.short,
			Args:  cobra.ExactArgs(1),
			Run: func(cmd *cobra.Command, args []string) {
				c.execBatch(args[0], run)
			},
			DisableAutoGenTag: true,
		})
	}
}

// splitName returns the root and slash relative path of a file
func splitName(name string) (string, string) {
	return filepath.Dir(name), filepath.ToSlash(filepath.Base(name))
}

func (c *Cmd) redundancyName(name string) string {
	root, p := splitName(name)
	return c.getNaming().RedundancyName(root, p)
}

func (c *Cmd) execCreate(cmd *cobra.Command, args []string) {
	svc := c.getService()
	redundancy := c.repairFlags.out
	if redundancy == "" {
		redundancy = c.redundancyName(args[0])
	}
	if err := svc.Create(context.Background(), args[0], redundancy); err != nil {
		c.logFatal(err)
		return
	}
}

func (c *Cmd) execVerify(cmd *cobra.Command, args []string) {
	svc := c.getService()
	redundancy := c.redundancyName(args[0])
	if len(args) > 1 {
		redundancy = args[1]
	}
	report, err := svc.Verify(context.Background(), args[0], redundancy)
	if err != nil {
		c.logFatal(err)
		return
	}
	if report.Total() > 0 {
		os.Exit(exitMismatch)
		return
	}
}

func (c *Cmd) execRepair(cmd *cobra.Command, args []string) {
	svc := c.getService()
	redundancy := c.redundancyName(args[0])
	if len(args) > 1 {
		redundancy = args[1]
	}
	root, p := splitName(args[0])
	out := c.getNaming().RepairName(root, p)
	if len(args) > 2 {
		out = args[2]
	}
	if err := svc.Repair(context.Background(), args[0], redundancy, out); err != nil {
		c.logFatal(err)
		return
	}
}

func (c *Cmd) execBatch(root string, run func(r *batch.Runner, ctx context.Context, root string) (*batch.Result, error)) {
	runner, err := batch.New(c.log.Logger, c.getService(), c.getFilter(), c.getNaming())
	if err != nil {
		c.logFatal(err)
		return
	}
	res, err := run(runner, context.Background(), root)
	if err != nil {
		c.logFatal(err)
		return
	}
	if res.Failed > 0 {
		c.log.Error(context.Background(), "Failed processing files", klog.AInt("failed", res.Failed))
		os.Exit(exitFailure)
		return
	}
	if res.Mismatched > 0 {
		c.log.Warn(context.Background(), "Found files with errors", klog.AInt("mismatched", res.Mismatched))
		os.Exit(exitMismatch)
		return
	}
}
