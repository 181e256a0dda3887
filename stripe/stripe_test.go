package stripe

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPartition(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name     string
		fileSize int64
		cfg      Config
		exp      *Layout
	}{
		{
			name:     "partial last block",
			fileSize: 32,
			cfg: Config{
				BlockSize:   5,
				ParityDisks: 2,
				Kind:        KindInterleaved,
			},
			exp: &Layout{
				Kind:           KindInterleaved,
				FileSize:       32,
				BlockSize:      5,
				NumBlocks:      7,
				NumDataDisks:   7,
				NumParityDisks: 2,
				DiskSize:       5,
			},
		},
		{
			name:     "file smaller than block size",
			fileSize: 32,
			cfg: Config{
				BlockSize:   64,
				ParityDisks: 3,
				Kind:        KindReedSolomon,
			},
			exp: &Layout{
				Kind:           KindReedSolomon,
				FileSize:       32,
				BlockSize:      64,
				NumBlocks:      1,
				NumDataDisks:   1,
				NumParityDisks: 3,
				DiskSize:       64,
			},
		},
		{
			name:     "empty file",
			fileSize: 0,
			cfg: Config{
				BlockSize:   16,
				ParityDisks: 1,
				Kind:        KindMatrix,
			},
			exp: &Layout{
				Kind:           KindMatrix,
				FileSize:       0,
				BlockSize:      16,
				NumBlocks:      1,
				NumDataDisks:   1,
				NumParityDisks: 1,
				DiskSize:       16,
			},
		},
		{
			name:     "hypercube",
			fileSize: 40,
			cfg: Config{
				BlockSize:   8,
				ParityDisks: 1,
				Kind:        KindHypercube,
			},
			exp: &Layout{
				Kind:           KindHypercube,
				FileSize:       40,
				BlockSize:      8,
				NumBlocks:      5,
				NumDataDisks:   1,
				NumParityDisks: 6,
				DiskSize:       40,
			},
		},
		{
			name:     "hypercube single block",
			fileSize: 3,
			cfg: Config{
				BlockSize: 8,
				Kind:      KindHypercube,
			},
			exp: &Layout{
				Kind:           KindHypercube,
				FileSize:       3,
				BlockSize:      8,
				NumBlocks:      1,
				NumDataDisks:   1,
				NumParityDisks: 2,
				DiskSize:       8,
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert := require.New(t)

			layout, err := Partition(tc.fileSize, tc.cfg)
			assert.NoError(err)
			assert.Equal(tc.exp, layout)
			assert.Zero(layout.DataSize() % layout.BlockSize)
			layout2, err := Partition(layout.FileSize, layout.Config(""))
			assert.NoError(err)
			assert.Equal(layout, layout2)
		})
	}
}

func TestPartitionInvalid(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name     string
		fileSize int64
		cfg      Config
	}{
		{name: "zero block size", fileSize: 10, cfg: Config{BlockSize: 0, ParityDisks: 1, Kind: KindInterleaved}},
		{name: "no parity disks", fileSize: 10, cfg: Config{BlockSize: 4, ParityDisks: 0, Kind: KindInterleaved}},
		{name: "unknown kind", fileSize: 10, cfg: Config{BlockSize: 4, ParityDisks: 1, Kind: "q"}},
		{name: "negative size", fileSize: -1, cfg: Config{BlockSize: 4, ParityDisks: 1, Kind: KindInterleaved}},
		{name: "block count overflow", fileSize: math.MaxInt64, cfg: Config{BlockSize: 2, ParityDisks: 1, Kind: KindInterleaved}},
		{name: "hypercube block count overflow", fileSize: math.MaxInt64 - 1, cfg: Config{BlockSize: 4096, Kind: KindHypercube}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := Partition(tc.fileSize, tc.cfg)
			require.True(t, errors.Is(err, ErrConfig))
		})
	}
}

func TestHypercubeAxes(t *testing.T) {
	t.Parallel()

	assert := require.New(t)

	for n, exp := range map[int]int{1: 1, 2: 1, 3: 2, 4: 2, 5: 3, 8: 3, 9: 4, 1024: 10, 1025: 11} {
		assert.Equal(exp, HypercubeAxes(n), "blocks %d", n)
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	assert := require.New(t)

	for inp, exp := range map[string]Kind{
		"i":            KindInterleaved,
		"Interleaved":  KindInterleaved,
		"r":            KindReedSolomon,
		"reed-solomon": KindReedSolomon,
		"x":            KindHypercube,
		"hypercube":    KindHypercube,
		"v":            KindMatrix,
		"matrix":       KindMatrix,
	} {
		k, err := ParseKind(inp)
		assert.NoError(err)
		assert.Equal(exp, k)
	}
	_, err := ParseKind("raid6")
	assert.True(errors.Is(err, ErrConfig))
}

func TestObjectData(t *testing.T) {
	t.Parallel()

	assert := require.New(t)

	obj, err := New(10, Config{BlockSize: 4, ParityDisks: 2, Kind: KindInterleaved, Algorithm: "sha1"})
	assert.NoError(err)
	assert.Len(obj.Parity, 2)
	assert.Len(obj.Checksums, 3)

	obj.SetData([]byte("0123456789extra"))
	assert.Len(obj.Data, 12)
	assert.Equal([]byte("0123456789"), obj.Bytes())
	assert.Equal([]byte("89\x00\x00"), obj.Disk(2))
	assert.Len(obj.Blocks(), 3)

	obj.SetData([]byte("012"))
	assert.Equal([]byte("012\x00\x00\x00\x00\x00\x00\x00"), obj.Bytes())

	obj.ComputeChecksums()
	for d, i := range obj.Checksums {
		assert.Equal(obj.Algorithm.Sum(obj.Disk(d)), i)
	}
	assert.Equal(int64(12+8+3*20), obj.MemoryUsed())

	_, err = New(10, Config{BlockSize: 4, ParityDisks: 1, Kind: KindInterleaved, Algorithm: "crc"})
	assert.True(errors.Is(err, ErrConfig))
}

func TestRedundancyFile(t *testing.T) {
	t.Parallel()

	assert := require.New(t)

	obj, err := New(10, Config{BlockSize: 4, ParityDisks: 2, Kind: KindReedSolomon, Algorithm: "sha-1"})
	assert.NoError(err)
	obj.SetData([]byte("0123456789"))
	obj.ComputeChecksums()
	obj.Parity[0] = []byte{0, 1, 0xfe, 0xff}
	obj.Parity[1] = []byte{0xde, 0xad, 0xbe, 0xef}

	b, err := obj.MarshalText()
	assert.NoError(err)
	lines := strings.Split(string(b), "\n")
	assert.Equal([]string{
		"r,3,2,4,10",
		"SHA1",
		obj.Checksums[0],
		obj.Checksums[1],
		obj.Checksums[2],
		"0001feff",
		"deadbeef",
		"",
	}, lines)

	parsed, err := Parse(bytes.NewReader(b))
	assert.NoError(err)
	assert.Equal(obj.Layout, parsed.Layout)
	assert.Equal(obj.Algorithm, parsed.Algorithm)
	assert.Equal(obj.Checksums, parsed.Checksums)
	assert.Equal(obj.Parity, parsed.Parity)
	assert.Nil(parsed.Data)

	b2, err := parsed.MarshalText()
	assert.NoError(err)
	assert.Equal(b, b2)

	// crlf line endings and trailing blank lines are tolerated
	crlf := strings.ReplaceAll(string(b), "\n", "\r\n") + "\r\n"
	parsed, err = Parse(strings.NewReader(crlf))
	assert.NoError(err)
	assert.Equal(obj.Parity, parsed.Parity)
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	const (
		sum0 = "da39a3ee5e6b4b0d3255bfef95601890afd80709"
		par  = "00000000"
	)

	for _, tc := range []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "short header", text: "i,1,1,4\nSHA1\n" + sum0 + "\n" + par + "\n"},
		{name: "bad kind", text: "q,1,1,4,4\nSHA1\n" + sum0 + "\n" + par + "\n"},
		{name: "non numeric", text: "i,one,1,4,4\nSHA1\n" + sum0 + "\n" + par + "\n"},
		{name: "zero block size", text: "i,1,1,0,4\nSHA1\n" + sum0 + "\n" + par + "\n"},
		{name: "disk count mismatch", text: "i,2,1,4,4\nSHA1\n" + sum0 + "\n" + sum0 + "\n" + par + "\n"},
		{name: "hypercube parity mismatch", text: "x,1,1,4,4\nSHA1\n" + sum0 + "\n" + par + "\n"},
		{name: "unknown algorithm", text: "i,1,1,4,4\nCRC32\n" + sum0 + "\n" + par + "\n"},
		{name: "missing checksum", text: "i,1,1,4,4\nSHA1\n"},
		{name: "bad checksum", text: "i,1,1,4,4\nSHA1\nxyz\n" + par + "\n"},
		{name: "short checksum", text: "i,1,1,4,4\nSHA1\nda39\n" + par + "\n"},
		{name: "missing parity", text: "i,1,1,4,4\nSHA1\n" + sum0 + "\n"},
		{name: "short parity", text: "i,1,1,4,4\nSHA1\n" + sum0 + "\n0000\n"},
		{name: "non hex parity", text: "i,1,1,4,4\nSHA1\n" + sum0 + "\n0000000g\n"},
		{name: "file size overflow", text: "i,1,1,2,9223372036854775807\nSHA1\n" + sum0 + "\n0000\n"},
		{name: "extra line", text: "i,1,1,4,4\nSHA1\n" + sum0 + "\n" + par + "\n" + par + "\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse(strings.NewReader(tc.text))
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrFormat))
		})
	}
}
