package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"xorkevin.dev/bitmend/bruteforce"
	"xorkevin.dev/bitmend/damage"
	"xorkevin.dev/bitmend/digest"
	"xorkevin.dev/bitmend/fileio"
	"xorkevin.dev/kerrors"
	"xorkevin.dev/klog"
)

type (
	sumFlags struct {
		stream   bool
		streamID string
		checksum string
	}

	damageFlags struct {
		script string
		count  int
		burst  int
		mask   string
		seed   int64
	}
)

func (c *Cmd) getSumCmd() *cobra.Command {
	sumCmd := &cobra.Command{
		Use:               "sum file",
		Short:             "prints the whole file checksum of a file",
		Long:              `prints the whole file checksum of a file, usable by basicrepair`,
		Args:              cobra.ExactArgs(1),
		Run:               c.execSum,
		DisableAutoGenTag: true,
	}
	sumCmd.PersistentFlags().BoolVar(&c.sumFlags.stream, "stream", false, "print a self describing stream hash instead of a hex digest")
	sumCmd.PersistentFlags().StringVar(&c.sumFlags.streamID, "stream-id", "", "stream hash id (one of "+strings.Join(digest.StreamIDs(), ", ")+")")
	return sumCmd
}

func (c *Cmd) execSum(cmd *cobra.Command, args []string) {
	data, err := fileio.ReadFile(args[0], viper.GetBool("direct_io"))
	if err != nil {
		c.logFatal(err)
		return
	}
	var sum string
	if c.sumFlags.stream || c.sumFlags.streamID != "" {
		sum, err = digest.StreamSum(data, c.sumFlags.streamID)
		if err != nil {
			c.logFatal(err)
			return
		}
	} else {
		alg, err := digest.Lookup(viper.GetString("cksum_algo"))
		if err != nil {
			c.logFatal(err)
			return
		}
		sum = alg.Sum(data)
	}
	fmt.Println(sum)
}

func (c *Cmd) getBasicRepairCmd() *cobra.Command {
	basicRepairCmd := &cobra.Command{
		Use:               "basicrepair file [out]",
		Short:             "repairs a single damaged byte using a whole file checksum",
		Long:              `repairs a single damaged byte of a file protected only by a known good whole file checksum, exiting with status 5 when no repair is found`,
		Args:              cobra.RangeArgs(1, 2),
		Run:               c.execBasicRepair,
		DisableAutoGenTag: true,
	}
	basicRepairCmd.PersistentFlags().StringVarP(&c.sumFlags.checksum, "checksum", "C", "", "known good checksum, a hex digest of the checksum algorithm or a stream hash")
	basicRepairCmd.MarkPersistentFlagRequired("checksum")
	return basicRepairCmd
}

func (c *Cmd) execBasicRepair(cmd *cobra.Command, args []string) {
	opts, err := c.getOptions()
	if err != nil {
		c.logFatal(err)
		return
	}
	root, p := splitName(args[0])
	out := c.getNaming().RepairName(root, p)
	if len(args) > 1 {
		out = args[1]
	}
	newMatcher, err := digest.NewMatcherFactory(opts.CksumAlgo, c.sumFlags.checksum)
	if err != nil {
		c.logFatal(kerrors.WithMsg(err, "Invalid checksum"))
		return
	}
	data, err := fileio.ReadFile(args[0], opts.DirectIO)
	if err != nil {
		c.logFatal(err)
		return
	}
	ctx := klog.CtxWithAttrs(context.Background(), klog.AString("file", args[0]))
	res, err := bruteforce.Search(ctx, c.log.Logger, data, newMatcher, opts.NumProcs)
	if err != nil {
		c.logFatal(err)
		return
	}
	if res.Intact {
		return
	}
	if err := fileio.WriteFile(out, res.Apply(data), 0o644); err != nil {
		c.logFatal(err)
		return
	}
	c.log.Info(ctx, "Wrote repaired file", klog.AString("out", out))
}

func (c *Cmd) getDamageCmd() *cobra.Command {
	damageCmd := &cobra.Command{
		Use:               "damage file [out]",
		Short:             "writes a copy of a file with injected errors",
		Long:              `writes a copy of a file with random byte errors or errors from a damage script, for testing repairs`,
		Args:              cobra.RangeArgs(1, 2),
		Run:               c.execDamage,
		DisableAutoGenTag: true,
	}
	defaults := damage.DefaultOptions()
	damageCmd.PersistentFlags().StringVarP(&c.damageFlags.script, "script", "s", "", "damage script file (- for stdin)")
	damageCmd.PersistentFlags().IntVar(&c.damageFlags.count, "count", defaults.Count, "number of random error bursts")
	damageCmd.PersistentFlags().IntVarP(&c.damageFlags.burst, "burst", "b", defaults.Burst, "bytes per error burst")
	damageCmd.PersistentFlags().StringVarP(&c.damageFlags.mask, "mask", "m", fmt.Sprintf("0x%02x", defaults.Mask), "bit mask xored into damaged bytes")
	damageCmd.PersistentFlags().Int64Var(&c.damageFlags.seed, "seed", 0, "random seed (0 uses the current time)")
	return damageCmd
}

func (c *Cmd) execDamage(cmd *cobra.Command, args []string) {
	out := args[0] + ".bad"
	if len(args) > 1 {
		out = args[1]
	}
	data, err := fileio.ReadFile(args[0], false)
	if err != nil {
		c.logFatal(err)
		return
	}
	seed := c.damageFlags.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	ctx := klog.CtxWithAttrs(context.Background(), klog.AString("file", args[0]))
	var changes []damage.Change
	if c.damageFlags.script != "" {
		changes, err = c.applyDamageScript(rng, data)
		if err != nil {
			c.logFatal(err)
			return
		}
	} else {
		mask, err := damage.ParseValue(c.damageFlags.mask)
		if err != nil {
			c.logFatal(kerrors.WithMsg(err, "Invalid mask"))
			return
		}
		changes = damage.Random(rng, data, damage.Options{
			Count: c.damageFlags.count,
			Burst: c.damageFlags.burst,
			Mask:  mask,
		})
	}
	for _, i := range changes {
		c.log.Debug(ctx, "Changed byte",
			klog.AInt("offset", i.Offset),
			klog.AString("from", fmt.Sprintf("0x%02x", i.From)),
			klog.AString("to", fmt.Sprintf("0x%02x", i.To)),
		)
	}
	if err := fileio.WriteFile(out, data, 0o644); err != nil {
		c.logFatal(err)
		return
	}
	c.log.Info(ctx, "Wrote damaged file",
		klog.AString("out", out),
		klog.AInt("changed", len(changes)),
	)
}

func (c *Cmd) applyDamageScript(rng *rand.Rand, data []byte) (_ []damage.Change, retErr error) {
	if c.damageFlags.script == "-" {
		return damage.Apply(rng, data, os.Stdin)
	}
	f, err := os.Open(c.damageFlags.script)
	if err != nil {
		return nil, kerrors.WithKind(err, fileio.ErrIO, "Failed opening damage script")
	}
	defer func() {
		if err := f.Close(); err != nil {
			retErr = errors.Join(retErr, kerrors.WithMsg(err, "Failed to close damage script"))
		}
	}()
	return damage.Apply(rng, data, f)
}
