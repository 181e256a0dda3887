package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"xorkevin.dev/bitmend/batch"
	"xorkevin.dev/bitmend/repair"
	"xorkevin.dev/bitmend/util/bytefmt"
	"xorkevin.dev/kerrors"
	"xorkevin.dev/klog"
)

type (
	Cmd struct {
		rootCmd     *cobra.Command
		log         *klog.LevelLogger
		version     string
		rootFlags   rootFlags
		repairFlags repairFlags
		sumFlags    sumFlags
		damageFlags damageFlags
		docFlags    docFlags
	}

	rootFlags struct {
		cfgFile  string
		logLevel string
		logJSON  bool
		verbose  int
	}
)

func New() *Cmd {
	return &Cmd{}
}

func (c *Cmd) Execute() {
	buildinfo := ReadVCSBuildInfo()
	c.version = buildinfo.ModVersion
	rootCmd := &cobra.Command{
		Use:               "bitmend",
		Short:             "A file bit rot repair utility",
		Long:              `A file bit rot repair utility that detects and repairs damaged blocks of files using checksums and parity`,
		Version:           c.version,
		PersistentPreRun:  c.initConfig,
		DisableAutoGenTag: true,
	}
	rootCmd.PersistentFlags().StringVar(&c.rootFlags.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/bitmend/bitmend.{json,yaml,toml})")
	rootCmd.PersistentFlags().StringVar(&c.rootFlags.logLevel, "log-level", "info", "log level")
	rootCmd.PersistentFlags().BoolVar(&c.rootFlags.logJSON, "log-json", false, "output json logs")
	rootCmd.PersistentFlags().CountVarP(&c.rootFlags.verbose, "verbose", "v", "verbose output (sets log level to debug)")

	c.addOptionFlags(rootCmd)

	c.rootCmd = rootCmd

	c.addRepairCmds(rootCmd)
	c.addBatchCmds(rootCmd)
	rootCmd.AddCommand(c.getSumCmd())
	rootCmd.AddCommand(c.getBasicRepairCmd())
	rootCmd.AddCommand(c.getDamageCmd())
	rootCmd.AddCommand(c.getDocCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFailure)
		return
	}
}

// addOptionFlags adds the flags overriding config file options
func (c *Cmd) addOptionFlags(cmd *cobra.Command) {
	defaults := repair.DefaultOptions()
	filter := batch.DefaultFilter()
	naming := batch.DefaultNaming()
	flags := cmd.PersistentFlags()
	flags.String("block-size", strconv.Itoa(defaults.BlockSize), "block size (e.g. 4096, 4k, 1MiB)")
	flags.Int("parity-disks", defaults.NumParityDisks, "number of parity disks")
	flags.String("parity-type", defaults.ParityType, "parity type (i interleaved, r reed-solomon, x hypercube, v matrix)")
	flags.String("cksum-algo", defaults.CksumAlgo, "checksum algorithm")
	flags.IntP("procs", "n", defaults.NumProcs, "number of workers")
	flags.Bool("direct-io", defaults.DirectIO, "read files with direct io")
	flags.String("files-incl", strings.Join(filter.FilesInclude, ","), "comma separated globs of files to include")
	flags.String("files-excl", strings.Join(filter.FilesExclude, ","), "comma separated globs of files to exclude")
	flags.String("dirs-incl", strings.Join(filter.DirsInclude, ","), "comma separated globs of dirs to include")
	flags.String("dirs-excl", strings.Join(filter.DirsExclude, ","), "comma separated globs of dirs to exclude")
	flags.String("output-pre", naming.Prefix, "redundancy file name prefix")
	flags.String("output-app", naming.Suffix, "redundancy file name suffix")
	flags.Bool("output-perdir", naming.PerDir, "place redundancy files in a subdirectory of each dir")
	flags.String("output-perdir-dir", naming.PerDirName, "name of the redundancy file subdirectory")
	flags.String("output-master-dir", naming.MasterDir, "mirror redundancy files under this dir")
	flags.String("repair-pre", naming.RepairPrefix, "repaired file name prefix")
	flags.String("repair-app", naming.RepairSuffix, "repaired file name suffix")

	for _, i := range []string{
		"block-size",
		"parity-disks",
		"parity-type",
		"cksum-algo",
		"procs",
		"direct-io",
		"files-incl",
		"files-excl",
		"dirs-incl",
		"dirs-excl",
		"output-pre",
		"output-app",
		"output-perdir",
		"output-perdir-dir",
		"output-master-dir",
		"repair-pre",
		"repair-app",
	} {
		viper.BindPFlag(flagConfigKey(i), flags.Lookup(i))
	}
}

var flagConfigKeys = map[string]string{
	"parity-disks": "num_parity_disks",
	"procs":        "num_procs",
}

func flagConfigKey(flag string) string {
	if k, ok := flagConfigKeys[flag]; ok {
		return k
	}
	return strings.ReplaceAll(flag, "-", "_")
}

// initConfig reads in config file and ENV variables if set.
func (c *Cmd) initConfig(cmd *cobra.Command, args []string) {
	logLevel := c.rootFlags.logLevel
	if c.rootFlags.verbose > 0 {
		logLevel = "debug"
	}
	logWriter := klog.NewSyncWriter(os.Stderr)
	var handler *klog.SlogHandler
	if c.rootFlags.logJSON {
		handler = klog.NewJSONSlogHandler(logWriter)
	} else {
		handler = klog.NewTextSlogHandler(logWriter)
		handler.FieldTimeInfo = ""
		handler.FieldCaller = ""
		handler.FieldMod = ""
	}
	c.log = klog.NewLevelLogger(klog.New(
		klog.OptHandler(handler),
		klog.OptMinLevelStr(logLevel),
	))

	if c.rootFlags.cfgFile != "" {
		viper.SetConfigFile(c.rootFlags.cfgFile)
	} else {
		viper.SetConfigName("bitmend")
		viper.AddConfigPath(".")

		// Search config in $XDG_CONFIG_HOME/bitmend directory
		if cfgdir, err := os.UserConfigDir(); err != nil {
			c.log.WarnErr(context.Background(), kerrors.WithMsg(err, "Failed reading user config dir"))
		} else {
			viper.AddConfigPath(filepath.Join(cfgdir, "bitmend"))
		}
	}

	viper.SetEnvPrefix("BITMEND")
	viper.AutomaticEnv() // read in environment variables that match
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		c.log.Debug(context.Background(), "Failed reading config", klog.AString("err", err.Error()))
	} else {
		c.log.Debug(context.Background(), "Using config", klog.AString("file", viper.ConfigFileUsed()))
	}
}

func (c *Cmd) getOptions() (repair.Options, error) {
	blockSize, err := bytefmt.FromString(viper.GetString("block_size"))
	if err != nil {
		return repair.Options{}, kerrors.WithMsg(err, "Invalid block size")
	}
	if blockSize < 1 || blockSize > int64(maxInt) {
		return repair.Options{}, kerrors.WithMsg(nil, "Block size out of range")
	}
	return repair.Options{
		BlockSize:      int(blockSize),
		NumParityDisks: viper.GetInt("num_parity_disks"),
		ParityType:     viper.GetString("parity_type"),
		CksumAlgo:      viper.GetString("cksum_algo"),
		NumProcs:       viper.GetInt("num_procs"),
		DirectIO:       viper.GetBool("direct_io"),
	}, nil
}

const maxInt = int(^uint(0) >> 1)

func getList(key string) []string {
	if s, ok := viper.Get(key).(string); ok {
		return batch.SplitList(s)
	}
	return viper.GetStringSlice(key)
}

func (c *Cmd) getFilter() batch.Filter {
	return batch.Filter{
		FilesInclude: getList("files_incl"),
		FilesExclude: getList("files_excl"),
		DirsInclude:  getList("dirs_incl"),
		DirsExclude:  getList("dirs_excl"),
	}
}

func (c *Cmd) getNaming() batch.Naming {
	return batch.Naming{
		Prefix:       viper.GetString("output_pre"),
		Suffix:       viper.GetString("output_app"),
		PerDir:       viper.GetBool("output_perdir"),
		PerDirName:   viper.GetString("output_perdir_dir"),
		MasterDir:    viper.GetString("output_master_dir"),
		RepairPrefix: viper.GetString("repair_pre"),
		RepairSuffix: viper.GetString("repair_app"),
	}
}

func (c *Cmd) getService() *repair.Service {
	opts, err := c.getOptions()
	if err != nil {
		c.logFatal(err)
		return nil
	}
	return repair.NewService(c.log.Logger, opts)
}

func (c *Cmd) logFatal(err error) {
	c.log.Err(context.Background(), err)
	os.Exit(exitCode(err))
}
