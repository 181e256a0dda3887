// Package stripe partitions a file into fixed size virtual data disks and
// holds the checksums and parity blocks that protect them.
//
// Hypercube layouts always have at least one axis, so a single block file
// records 2 parity disks in its header rather than 0. Headers claiming 0
// hypercube parity disks are rejected as malformed.
package stripe

import (
	"math"
	"math/bits"
	"strings"

	"xorkevin.dev/kerrors"
)

var (
	// ErrConfig is returned when the stripe config is invalid
	ErrConfig errConfig
	// ErrFormat is returned when a redundancy file is malformed
	ErrFormat errFormat
)

type (
	errConfig struct{}
	errFormat struct{}
)

func (e errConfig) Error() string {
	return "Invalid config"
}

func (e errFormat) Error() string {
	return "Malformed redundancy file"
}

type (
	// Kind is a parity scheme
	Kind string
)

const (
	KindInterleaved Kind = "i"
	KindReedSolomon Kind = "r"
	KindHypercube   Kind = "x"
	KindMatrix      Kind = "v"
)

var kindNames = map[Kind]string{
	KindInterleaved: "interleaved",
	KindReedSolomon: "reed-solomon",
	KindHypercube:   "hypercube",
	KindMatrix:      "matrix",
}

// ParseKind parses a parity scheme from its code (i, r, x, v) or name
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, v := range kindNames {
		if s == string(k) || s == v {
			return k, nil
		}
	}
	switch s {
	case "reedsolomon", "rs":
		return KindReedSolomon, nil
	case "vandermonde":
		return KindMatrix, nil
	}
	return "", kerrors.WithKind(nil, ErrConfig, "Unknown parity type "+s)
}

func (k Kind) String() string {
	if v, ok := kindNames[k]; ok {
		return v
	}
	return string(k)
}

type (
	// Config is the caller supplied redundancy config
	Config struct {
		BlockSize   int
		ParityDisks int
		Kind        Kind
		Algorithm   string
	}

	// Layout is the block partitioning of a file
	//
	// Every data disk is DiskSize bytes. Hypercube layouts have a single data
	// disk spanning all blocks, and all other layouts have one block per disk.
	Layout struct {
		Kind           Kind
		FileSize       int64
		BlockSize      int
		NumBlocks      int
		NumDataDisks   int
		NumParityDisks int
		DiskSize       int
	}
)

// HypercubeAxes returns the number of coordinate bits of numBlocks blocks
func HypercubeAxes(numBlocks int) int {
	// a single block still gets one axis
	numBlocks = max(numBlocks, 2)
	return bits.Len(uint(numBlocks - 1))
}

// Partition computes the layout of a file
func Partition(fileSize int64, cfg Config) (*Layout, error) {
	if fileSize < 0 {
		return nil, kerrors.WithKind(nil, ErrConfig, "Invalid file size")
	}
	if cfg.BlockSize <= 0 {
		return nil, kerrors.WithKind(nil, ErrConfig, "Invalid block size")
	}
	if _, ok := kindNames[cfg.Kind]; !ok {
		return nil, kerrors.WithKind(nil, ErrConfig, "Unknown parity type "+string(cfg.Kind))
	}
	blockSize := int64(cfg.BlockSize)
	if fileSize > math.MaxInt64-blockSize+1 {
		return nil, kerrors.WithKind(nil, ErrConfig, "File too large for block size")
	}
	numBlocks := (fileSize + blockSize - 1) / blockSize
	numBlocks = max(numBlocks, 1)
	if numBlocks > int64(maxInt/cfg.BlockSize) {
		return nil, kerrors.WithKind(nil, ErrConfig, "File too large for block size")
	}
	layout := Layout{
		Kind:      cfg.Kind,
		FileSize:  fileSize,
		BlockSize: cfg.BlockSize,
		NumBlocks: int(numBlocks),
	}
	if cfg.Kind == KindHypercube {
		layout.NumDataDisks = 1
		layout.NumParityDisks = 2 * HypercubeAxes(layout.NumBlocks)
		layout.DiskSize = layout.NumBlocks * layout.BlockSize
		return &layout, nil
	}
	if cfg.ParityDisks < 1 {
		return nil, kerrors.WithKind(nil, ErrConfig, "Must have at least 1 parity disk")
	}
	layout.NumDataDisks = layout.NumBlocks
	layout.NumParityDisks = cfg.ParityDisks
	layout.DiskSize = layout.BlockSize
	return &layout, nil
}

const maxInt = int(^uint(0) >> 1)

// DataSize returns the padded length of the data buffer
func (l Layout) DataSize() int {
	return l.NumBlocks * l.BlockSize
}

// Config returns the config that reproduces this layout
func (l Layout) Config(algorithm string) Config {
	return Config{
		BlockSize:   l.BlockSize,
		ParityDisks: l.NumParityDisks,
		Kind:        l.Kind,
		Algorithm:   algorithm,
	}
}

func allocBlockBuffers(blockSize, count int) ([][]byte, []byte) {
	buf := make([]byte, blockSize*count)
	blocks := make([][]byte, count)
	for i := range blocks {
		start := blockSize * i
		blocks[i] = buf[start : start+blockSize : start+blockSize]
	}
	return blocks, buf
}

func splitBlocks(buf []byte, blockSize int) [][]byte {
	blocks := make([][]byte, len(buf)/blockSize)
	for i := range blocks {
		start := blockSize * i
		blocks[i] = buf[start : start+blockSize : start+blockSize]
	}
	return blocks
}
