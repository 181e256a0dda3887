package batch

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"xorkevin.dev/bitmend/fileio"
	"xorkevin.dev/bitmend/repair"
	"xorkevin.dev/klog"
)

func TestFilter(t *testing.T) {
	t.Parallel()

	f := DefaultFilter()
	for _, tc := range []struct {
		Path string
		File bool
		Dir  bool
	}{
		{Path: "a.txt", File: true, Dir: true},
		{Path: "dir/a.txt.fr", File: false, Dir: true},
		{Path: "dir/a.txt.rep", File: false, Dir: true},
		{Path: "dir/.fr", File: false, Dir: false},
		{Path: ".fr", File: false, Dir: false},
	} {
		tc := tc
		t.Run(tc.Path, func(t *testing.T) {
			t.Parallel()

			assert := require.New(t)

			assert.Equal(tc.File, f.MatchFile(tc.Path))
			assert.Equal(tc.Dir, f.MatchDir(tc.Path))
		})
	}

	t.Run("relative path patterns", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		f := Filter{
			FilesInclude: []string{"docs/**/*.md"},
			FilesExclude: []string{"**/draft-*"},
		}
		assert.True(f.MatchFile("docs/a/b.md"))
		assert.False(f.MatchFile("src/b.md"))
		assert.False(f.MatchFile("docs/a/draft-b.md"))
	})

	t.Run("invalid pattern", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		_, err := New(klog.Discard{}, nil, Filter{FilesInclude: []string{"[a"}}, DefaultNaming())
		assert.ErrorIs(err, ErrConfig)
	})
}

func TestNaming(t *testing.T) {
	t.Parallel()

	assert := require.New(t)

	n := DefaultNaming()
	assert.Equal(filepath.Join("root", "a", "b.txt.fr"), n.RedundancyName("root", "a/b.txt"))
	assert.Equal(filepath.Join("root", "a", "b.txt.rep"), n.RepairName("root", "a/b.txt"))
	assert.True(n.IsOutput("a/b.txt.fr"))
	assert.True(n.IsOutput("b.txt.rep"))
	assert.False(n.IsOutput("a/b.txt"))
	assert.False(n.IsOutput(".fr"))
	n.Suffix = ".chk"
	assert.True(n.IsOutput("a/b.txt.chk"))
	assert.False(n.IsOutput("a/b.txt.fr"))
	n.Suffix = ".fr"
	n.PerDir = true
	n.Prefix = "x-"
	assert.Equal(filepath.Join("root", "a", ".fr", "x-b.txt.fr"), n.RedundancyName("root", "a/b.txt"))
	assert.Equal(filepath.Join("root", ".fr", "x-b.txt.fr"), n.RedundancyName("root", "b.txt"))
	n.MasterDir = "master"
	assert.Equal(filepath.Join("master", "a", "x-b.txt.fr"), n.RedundancyName("root", "a/b.txt"))

	assert.Equal([]string{"*.fr", "*.rep"}, SplitList(" *.fr, ,*.rep"))
}

func TestRunner(t *testing.T) {
	t.Parallel()

	for _, perDir := range []bool{false, true} {
		perDir := perDir
		name := "sibling"
		if perDir {
			name = "per dir"
		}
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert := require.New(t)

			ctx := context.Background()
			rootDir := filepath.ToSlash(t.TempDir())

			files := map[string]string{
				"a.txt":              `protected file a`,
				"this/file/b.txt":    `protected file b with more content than a`,
				"this/file/c.bin":    `protected file c`,
				"skipped/d.txt":      `not protected`,
				"this/file/e.txt.fr": `looks like a redundancy file`,
			}
			addFile := func(name string, content string) {
				name = filepath.FromSlash(path.Join(rootDir, name))
				dir := filepath.Dir(name)
				assert.NoError(os.MkdirAll(dir, 0o777))
				assert.NoError(os.WriteFile(name, []byte(content), 0o644))
			}
			for k, v := range files {
				addFile(k, v)
			}

			opts := repair.DefaultOptions()
			opts.BlockSize = 4
			opts.NumParityDisks = 2
			svc := repair.NewService(klog.Discard{}, opts)
			filter := DefaultFilter()
			filter.DirsExclude = append(filter.DirsExclude, "skipped")
			naming := DefaultNaming()
			naming.PerDir = perDir
			runner, err := New(klog.Discard{}, svc, filter, naming)
			assert.NoError(err)

			res, err := runner.CreateAll(ctx, rootDir)
			assert.NoError(err)
			assert.Equal(&Result{Processed: 3, Created: 3}, res)
			for _, i := range []string{"a.txt", "this/file/b.txt", "this/file/c.bin"} {
				ok, err := fileio.Exists(naming.RedundancyName(rootDir, i))
				assert.NoError(err)
				assert.True(ok)
			}
			ok, err := fileio.Exists(naming.RedundancyName(rootDir, "skipped/d.txt"))
			assert.NoError(err)
			assert.False(ok)

			res, err = runner.VerifyAll(ctx, rootDir)
			assert.NoError(err)
			assert.Equal(&Result{Processed: 3}, res)

			addFile("this/file/b.txt", `protected file b with mxre content than a`)
			addFile("new.txt", `new file`)

			res, err = runner.UpdateAll(ctx, rootDir)
			assert.NoError(err)
			assert.Equal(&Result{Processed: 4, Mismatched: 1, Created: 1}, res)

			res, err = runner.RepairAll(ctx, rootDir)
			assert.NoError(err)
			assert.Equal(&Result{Processed: 4}, res)
			b, err := os.ReadFile(naming.RepairName(rootDir, "this/file/b.txt"))
			assert.NoError(err)
			assert.Equal(files["this/file/b.txt"], string(b))

			// a damaged redundancy file fails only its own file
			assert.NoError(os.WriteFile(naming.RedundancyName(rootDir, "a.txt"), []byte("garbage"), 0o644))
			res, err = runner.VerifyAll(ctx, rootDir)
			assert.NoError(err)
			assert.Equal(&Result{Processed: 4, Failed: 1, Mismatched: 1}, res)
		})
	}

	t.Run("custom output names", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		ctx := context.Background()
		rootDir := t.TempDir()
		assert.NoError(os.WriteFile(filepath.Join(rootDir, "a.txt"), []byte(`protected file a`), 0o644))
		assert.NoError(os.WriteFile(filepath.Join(rootDir, "b.txt"), []byte(`protected file b`), 0o644))

		opts := repair.DefaultOptions()
		opts.BlockSize = 4
		naming := DefaultNaming()
		naming.Suffix = ".chk"
		naming.RepairPrefix = "fixed-"
		naming.RepairSuffix = ""
		runner, err := New(klog.Discard{}, repair.NewService(klog.Discard{}, opts), DefaultFilter(), naming)
		assert.NoError(err)

		res, err := runner.CreateAll(ctx, rootDir)
		assert.NoError(err)
		assert.Equal(&Result{Processed: 2, Created: 2}, res)
		res, err = runner.CreateAll(ctx, rootDir)
		assert.NoError(err)
		assert.Equal(&Result{Processed: 2, Created: 2}, res)

		res, err = runner.RepairAll(ctx, rootDir)
		assert.NoError(err)
		assert.Equal(&Result{Processed: 2}, res)
		ok, err := fileio.Exists(naming.RepairName(rootDir, "a.txt"))
		assert.NoError(err)
		assert.True(ok)

		res, err = runner.VerifyAll(ctx, rootDir)
		assert.NoError(err)
		assert.Equal(&Result{Processed: 2}, res)
	})

	t.Run("missing root", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		runner, err := New(klog.Discard{}, repair.NewService(klog.Discard{}, repair.DefaultOptions()), DefaultFilter(), DefaultNaming())
		assert.NoError(err)
		_, err = runner.VerifyAll(context.Background(), filepath.Join(t.TempDir(), "missing"))
		assert.ErrorIs(err, fileio.ErrIO)
	})
}
