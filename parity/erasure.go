package parity

import (
	"errors"
	"fmt"

	"xorkevin.dev/bitmend/reedsolomon"
	"xorkevin.dev/kerrors"
)

type (
	// Erasure is a Reed-Solomon scheme over data blocks
	//
	// Failed blocks are erasures at known positions, so up to parityDisks
	// failed blocks are correctable.
	Erasure struct {
		enc         reedsolomon.Encoder
		dataDisks   int
		parityDisks int
	}
)

// NewReedSolomon returns a polynomial code applied at every byte offset
func NewReedSolomon(dataDisks, parityDisks int) (*Erasure, error) {
	enc, err := reedsolomon.NewCodec(dataDisks, parityDisks)
	if err != nil {
		return nil, kerrors.WithKind(err, ErrConfig, "Invalid reed solomon config")
	}
	return &Erasure{
		enc:         enc,
		dataDisks:   dataDisks,
		parityDisks: parityDisks,
	}, nil
}

// NewMatrix returns a Vandermonde matrix code over whole blocks
func NewMatrix(dataDisks, parityDisks int) (*Erasure, error) {
	enc, err := reedsolomon.NewVandermondeEncoder(dataDisks, parityDisks)
	if err != nil {
		return nil, kerrors.WithKind(err, ErrConfig, "Invalid matrix config")
	}
	return &Erasure{
		enc:         enc,
		dataDisks:   dataDisks,
		parityDisks: parityDisks,
	}, nil
}

func (e *Erasure) ComputeParity(blocks, parity [][]byte) error {
	if len(blocks) != e.dataDisks {
		return kerrors.WithKind(nil, ErrShape, fmt.Sprintf("Expected %d data blocks", e.dataDisks))
	}
	if _, err := checkShape(blocks, parity, e.parityDisks); err != nil {
		return err
	}
	if err := e.enc.Encode(blocks, parity); err != nil {
		return kerrors.WithMsg(err, "Failed encoding parity blocks")
	}
	return nil
}

func (e *Erasure) Repair(blocks [][]byte, failed []int, parity [][]byte) error {
	if len(blocks) != e.dataDisks {
		return kerrors.WithKind(nil, ErrShape, fmt.Sprintf("Expected %d data blocks", e.dataDisks))
	}
	if _, err := checkShape(blocks, parity, e.parityDisks); err != nil {
		return err
	}
	if err := checkFailed(failed, len(blocks)); err != nil {
		return err
	}
	missing := newBitSet(len(blocks))
	for _, i := range failed {
		missing.Add(i)
	}
	if missing.Size() == 0 {
		return nil
	}
	if missing.Size() > e.parityDisks {
		return kerrors.WithKind(nil, ErrUncorrectable, fmt.Sprintf("%d failed blocks exceed %d parity blocks", missing.Size(), e.parityDisks))
	}
	shards := make([][]byte, len(blocks))
	for n, i := range blocks {
		if missing.Contains(n) {
			// reuse the block memory for the reconstructed shard
			shards[n] = i[:0]
		} else {
			shards[n] = i
		}
	}
	// the encoder may reslice parity shards, so parity is never handed over
	// directly
	parityShards := make([][]byte, len(parity))
	copy(parityShards, parity)
	if err := e.enc.ReconstructData(shards, parityShards); err != nil {
		if errors.Is(err, reedsolomon.ErrTooFewShards) {
			return kerrors.WithKind(err, ErrUncorrectable, "Too many failed blocks")
		}
		return kerrors.WithMsg(err, "Failed reconstructing data blocks")
	}
	for n := range blocks {
		if missing.Contains(n) {
			copy(blocks[n], shards[n])
		}
	}
	return nil
}
