package batch

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"xorkevin.dev/kerrors"
)

// ErrConfig is returned when the batch config is invalid
var ErrConfig errConfig

type (
	errConfig struct{}
)

func (e errConfig) Error() string {
	return "Invalid batch config"
}

type (
	// Filter selects the files and directories of a tree
	//
	// Patterns are doublestar globs matched against both the base name and the
	// slash separated path relative to the root. A path is selected when it
	// matches an include pattern and no exclude pattern.
	Filter struct {
		FilesInclude []string `mapstructure:"files_incl"`
		FilesExclude []string `mapstructure:"files_excl"`
		DirsInclude  []string `mapstructure:"dirs_incl"`
		DirsExclude  []string `mapstructure:"dirs_excl"`
	}

	// Naming derives redundancy and repaired file names from file names
	Naming struct {
		Prefix string `mapstructure:"output_pre"`
		Suffix string `mapstructure:"output_app"`
		// PerDir places redundancy files in a subdirectory of each directory
		PerDir     bool   `mapstructure:"output_perdir"`
		PerDirName string `mapstructure:"output_perdir_dir"`
		// MasterDir mirrors the tree of redundancy files under a single
		// directory when set
		MasterDir    string `mapstructure:"output_master_dir"`
		RepairPrefix string `mapstructure:"repair_pre"`
		RepairSuffix string `mapstructure:"repair_app"`
	}
)

func DefaultFilter() Filter {
	return Filter{
		FilesInclude: []string{"*"},
		FilesExclude: []string{"*.fr", "*.rep"},
		DirsInclude:  []string{"*"},
		DirsExclude:  []string{".fr"},
	}
}

func DefaultNaming() Naming {
	return Naming{
		Suffix:       ".fr",
		PerDirName:   ".fr",
		RepairSuffix: ".rep",
	}
}

// Validate checks that every pattern is well formed
func (f Filter) Validate() error {
	for _, i := range [][]string{f.FilesInclude, f.FilesExclude, f.DirsInclude, f.DirsExclude} {
		for _, j := range i {
			if !doublestar.ValidatePattern(j) {
				return kerrors.WithKind(nil, ErrConfig, "Invalid glob pattern "+j)
			}
		}
	}
	return nil
}

func matchAny(patterns []string, p string) bool {
	base := path.Base(p)
	for _, i := range patterns {
		if ok, err := doublestar.Match(i, base); err == nil && ok {
			return true
		}
		if ok, err := doublestar.Match(i, p); err == nil && ok {
			return true
		}
	}
	return false
}

// MatchFile reports whether the file at slash path p is selected
func (f Filter) MatchFile(p string) bool {
	return matchAny(f.FilesInclude, p) && !matchAny(f.FilesExclude, p)
}

// MatchDir reports whether the directory at slash path p is walked
func (f Filter) MatchDir(p string) bool {
	return matchAny(f.DirsInclude, p) && !matchAny(f.DirsExclude, p)
}

// RedundancyName returns the redundancy file name of the file at slash path p
// under root
func (n Naming) RedundancyName(root, p string) string {
	dir, name := path.Split(p)
	name = n.Prefix + name + n.Suffix
	if n.MasterDir != "" {
		return filepath.Join(n.MasterDir, filepath.FromSlash(dir), name)
	}
	if n.PerDir {
		return filepath.Join(root, filepath.FromSlash(dir), n.PerDirName, name)
	}
	return filepath.Join(root, filepath.FromSlash(dir), name)
}

// IsOutput reports whether the file at slash path p is named like a
// redundancy or repaired file
func (n Naming) IsOutput(p string) bool {
	name := path.Base(p)
	return hasAffixes(name, n.Prefix, n.Suffix) || hasAffixes(name, n.RepairPrefix, n.RepairSuffix)
}

func hasAffixes(name, prefix, suffix string) bool {
	if prefix == "" && suffix == "" {
		return false
	}
	return len(name) > len(prefix)+len(suffix) && strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix)
}

// RepairName returns the repaired file name of the file at slash path p under
// root
func (n Naming) RepairName(root, p string) string {
	dir, name := path.Split(p)
	return filepath.Join(root, filepath.FromSlash(dir), n.RepairPrefix+name+n.RepairSuffix)
}

// SplitList splits a comma separated pattern list
func SplitList(s string) []string {
	var res []string
	for _, i := range strings.Split(s, ",") {
		if i = strings.TrimSpace(i); i != "" {
			res = append(res, i)
		}
	}
	return res
}
