package parity

import (
	"fmt"

	"xorkevin.dev/kerrors"
)

type (
	// Interleaved assigns block d to parity group d mod the parity disk count
	// and xors every group into its parity block
	Interleaved struct {
		parityDisks int
	}
)

func NewInterleaved(parityDisks int) (*Interleaved, error) {
	if parityDisks < 1 {
		return nil, kerrors.WithKind(nil, ErrConfig, "Must have at least 1 parity disk")
	}
	return &Interleaved{
		parityDisks: parityDisks,
	}, nil
}

func (e *Interleaved) ComputeParity(blocks, parity [][]byte) error {
	if _, err := checkShape(blocks, parity, e.parityDisks); err != nil {
		return err
	}
	for _, i := range parity {
		clear(i)
	}
	for d, i := range blocks {
		xorInto(parity[d%e.parityDisks], i)
	}
	return nil
}

func (e *Interleaved) Repair(blocks [][]byte, failed []int, parity [][]byte) error {
	if _, err := checkShape(blocks, parity, e.parityDisks); err != nil {
		return err
	}
	if err := checkFailed(failed, len(blocks)); err != nil {
		return err
	}
	groups := newBitSet(e.parityDisks)
	seen := newBitSet(len(blocks))
	for _, d := range failed {
		if seen.Contains(d) {
			continue
		}
		seen.Add(d)
		g := d % e.parityDisks
		if groups.Contains(g) {
			return kerrors.WithKind(nil, ErrUncorrectable, fmt.Sprintf("Multiple failed blocks in interleave group %d", g))
		}
		groups.Add(g)
	}
	for _, d := range seen.Slice() {
		g := d % e.parityDisks
		b := blocks[d]
		copy(b, parity[g])
		for d2 := g; d2 < len(blocks); d2 += e.parityDisks {
			if d2 != d {
				xorInto(b, blocks[d2])
			}
		}
	}
	return nil
}
