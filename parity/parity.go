// Package parity computes parity blocks over data blocks and reconstructs
// failed data blocks from them.
package parity

import (
	"crypto/subtle"
	"fmt"

	"xorkevin.dev/bitmend/stripe"
	"xorkevin.dev/kerrors"
)

var (
	// ErrConfig is returned when the parity config is invalid
	ErrConfig errConfig
	// ErrUncorrectable is returned when the failed blocks exceed the
	// correction capacity of the parity scheme
	ErrUncorrectable errUncorrectable
	// ErrShape is returned when the block shape does not match the engine
	ErrShape errShape
)

type (
	errConfig        struct{}
	errUncorrectable struct{}
	errShape         struct{}
)

func (e errConfig) Error() string {
	return "Invalid config"
}

func (e errUncorrectable) Error() string {
	return "Uncorrectable"
}

func (e errShape) Error() string {
	return "Invalid block shape"
}

type (
	// Engine is a parity scheme
	//
	// Repair overwrites the failed blocks in place and never modifies parity.
	// It returns [ErrUncorrectable] without modifying any block when the
	// failure pattern is known to exceed its capacity up front.
	Engine interface {
		ComputeParity(blocks, parity [][]byte) error
		Repair(blocks [][]byte, failed []int, parity [][]byte) error
	}
)

// New returns the engine for a layout
//
// Blocks passed to the engine are [stripe.Object.Blocks] for hypercube
// layouts and the data disks otherwise. Both are the same for non-hypercube
// layouts.
func New(layout stripe.Layout) (Engine, error) {
	switch layout.Kind {
	case stripe.KindInterleaved:
		return NewInterleaved(layout.NumParityDisks)
	case stripe.KindReedSolomon:
		return NewReedSolomon(layout.NumDataDisks, layout.NumParityDisks)
	case stripe.KindHypercube:
		return NewHypercube(layout.NumBlocks)
	case stripe.KindMatrix:
		return NewMatrix(layout.NumDataDisks, layout.NumParityDisks)
	default:
		return nil, kerrors.WithKind(nil, ErrConfig, "Unknown parity type "+string(layout.Kind))
	}
}

// FailedBlocks maps failed data disks to the blocks that may be damaged
func FailedBlocks(layout stripe.Layout, failedDisks []int) []int {
	if layout.Kind != stripe.KindHypercube {
		return failedDisks
	}
	if len(failedDisks) == 0 {
		return nil
	}
	// the single data disk covers every block
	blocks := make([]int, layout.NumBlocks)
	for i := range blocks {
		blocks[i] = i
	}
	return blocks
}

func xorInto(dst, src []byte) {
	subtle.XORBytes(dst, dst, src)
}

func checkShape(blocks, parity [][]byte, numParity int) (int, error) {
	if len(blocks) == 0 {
		return 0, kerrors.WithKind(nil, ErrShape, "No data blocks")
	}
	if len(parity) != numParity {
		return 0, kerrors.WithKind(nil, ErrShape, fmt.Sprintf("Expected %d parity blocks", numParity))
	}
	blockSize := len(blocks[0])
	for _, i := range blocks {
		if len(i) != blockSize {
			return 0, kerrors.WithKind(nil, ErrShape, "Varying data block size")
		}
	}
	for _, i := range parity {
		if len(i) != blockSize {
			return 0, kerrors.WithKind(nil, ErrShape, "Varying parity block size")
		}
	}
	return blockSize, nil
}

func checkFailed(failed []int, numBlocks int) error {
	for _, i := range failed {
		if i < 0 || i >= numBlocks {
			return kerrors.WithKind(nil, ErrShape, fmt.Sprintf("Failed block %d out of range", i))
		}
	}
	return nil
}
