package parity

import (
	"bytes"
	"fmt"

	"xorkevin.dev/bitmend/stripe"
	"xorkevin.dev/kerrors"
)

type (
	// Hypercube places block b at the coordinates given by the bits of b and
	// keeps one parity block per side of every axis
	//
	// Parity block 2k+s is the xor of every block whose bit k equals s.
	Hypercube struct {
		numBlocks int
		axes      int
	}
)

func NewHypercube(numBlocks int) (*Hypercube, error) {
	if numBlocks < 1 {
		return nil, kerrors.WithKind(nil, ErrConfig, "Must have at least 1 block")
	}
	return &Hypercube{
		numBlocks: numBlocks,
		axes:      stripe.HypercubeAxes(numBlocks),
	}, nil
}

func (e *Hypercube) group(block, axis int) int {
	return 2*axis + (block>>axis)&1
}

func (e *Hypercube) checkBlocks(blocks [][]byte) error {
	if len(blocks) != e.numBlocks {
		return kerrors.WithKind(nil, ErrShape, fmt.Sprintf("Expected %d blocks", e.numBlocks))
	}
	return nil
}

func (e *Hypercube) ComputeParity(blocks, parity [][]byte) error {
	if err := e.checkBlocks(blocks); err != nil {
		return err
	}
	if _, err := checkShape(blocks, parity, 2*e.axes); err != nil {
		return err
	}
	for _, i := range parity {
		clear(i)
	}
	for b, i := range blocks {
		for k := range e.axes {
			xorInto(parity[e.group(b, k)], i)
		}
	}
	return nil
}

// Repair reconstructs damaged blocks among the suspect failed blocks
//
// Suspects are first narrowed to the blocks whose coordinates lie on the
// sides of every axis where recomputed parity differs from the stored parity.
// Then any parity group containing exactly one unresolved suspect rebuilds
// that suspect from the rest of the group, until no suspects remain.
func (e *Hypercube) Repair(blocks [][]byte, failed []int, parity [][]byte) error {
	if err := e.checkBlocks(blocks); err != nil {
		return err
	}
	blockSize, err := checkShape(blocks, parity, 2*e.axes)
	if err != nil {
		return err
	}
	if err := checkFailed(failed, len(blocks)); err != nil {
		return err
	}
	if len(failed) == 0 {
		return nil
	}

	current := make([][]byte, len(parity))
	for i := range current {
		current[i] = make([]byte, blockSize)
	}
	if err := e.ComputeParity(blocks, current); err != nil {
		return err
	}
	dirty := newBitSet(len(parity))
	for i := range parity {
		if !bytes.Equal(current[i], parity[i]) {
			dirty.Add(i)
		}
	}

	suspects := newBitSet(len(blocks))
	for _, b := range failed {
		onDirtySides := true
		for k := range e.axes {
			if !dirty.Contains(e.group(b, k)) {
				onDirtySides = false
				break
			}
		}
		if onDirtySides {
			suspects.Add(b)
		}
	}
	if suspects.Size() == 0 {
		return kerrors.WithKind(nil, ErrUncorrectable, "Damage does not match any block coordinates")
	}

	for suspects.Size() > 0 {
		progress := false
		for g := range parity {
			if !dirty.Contains(g) {
				// clean groups contain no suspects
				continue
			}
			axis, side := g/2, g%2
			target := -1
			count := 0
			for b := range blocks {
				if (b>>axis)&1 != side || !suspects.Contains(b) {
					continue
				}
				target = b
				count++
				if count > 1 {
					break
				}
			}
			if count != 1 {
				continue
			}
			t := blocks[target]
			copy(t, parity[g])
			for b := range blocks {
				if b != target && (b>>axis)&1 == side {
					xorInto(t, blocks[b])
				}
			}
			suspects.Rm(target)
			progress = true
		}
		if !progress {
			return kerrors.WithKind(nil, ErrUncorrectable, fmt.Sprintf("%d damaged blocks share every parity group", suspects.Size()))
		}
	}
	return nil
}
