package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
	"xorkevin.dev/bitmend/bruteforce"
	"xorkevin.dev/bitmend/fileio"
	"xorkevin.dev/bitmend/parity"
	"xorkevin.dev/bitmend/stripe"
	"xorkevin.dev/kerrors"
)

func TestExitCode(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		Test string
		Err  error
		Code int
	}{
		{Test: "ok", Err: nil, Code: 0},
		{Test: "generic", Err: kerrors.WithMsg(nil, "failed"), Code: 1},
		{Test: "io", Err: kerrors.WithKind(nil, fileio.ErrIO, "failed"), Code: 2},
		{Test: "format", Err: kerrors.WithMsg(kerrors.WithKind(nil, stripe.ErrFormat, "bad"), "wrapped"), Code: 3},
		{Test: "uncorrectable", Err: kerrors.WithKind(nil, parity.ErrUncorrectable, "failed"), Code: 4},
		{Test: "not found", Err: kerrors.WithKind(nil, bruteforce.ErrNotFound, "failed"), Code: 5},
	} {
		tc := tc
		t.Run(tc.Test, func(t *testing.T) {
			t.Parallel()

			assert := require.New(t)

			assert.Equal(tc.Code, exitCode(tc.Err))
		})
	}
}

func TestFlagConfigKey(t *testing.T) {
	t.Parallel()

	assert := require.New(t)

	assert.Equal("num_parity_disks", flagConfigKey("parity-disks"))
	assert.Equal("num_procs", flagConfigKey("procs"))
	assert.Equal("output_perdir_dir", flagConfigKey("output-perdir-dir"))
}
