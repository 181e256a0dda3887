// Package reedsolomon implements systematic Reed-Solomon erasure codes over
// GF(2^8) for equal sized shards.
package reedsolomon

import (
	"errors"

	"github.com/klauspost/reedsolomon"
	"xorkevin.dev/kerrors"
)

var (
	// ErrShape is returned when the data shape is invalid
	ErrShape errShape
	// ErrTooFewShards is returned when too many shards are missing to
	// reconstruct the data
	ErrTooFewShards errTooFewShards
)

type (
	errShape        struct{}
	errTooFewShards struct{}
)

func (e errShape) Error() string {
	return "Invalid data shape"
}

func (e errTooFewShards) Error() string {
	return "Too few shards"
}

type (
	// Encoder computes parity shards and reconstructs missing data shards
	//
	// Missing shards are passed to ReconstructData with zero length. Their
	// capacity is reused for the reconstructed data when large enough.
	Encoder interface {
		Encode(data, parity [][]byte) error
		ReconstructData(data, parity [][]byte) error
	}

	// Matrix is a Vandermonde matrix code over whole shards
	Matrix struct {
		dataShards   int
		parityShards int
		enc          reedsolomon.Encoder
		shardWork    [][]byte
	}
)

// MaxMatrixShards is the maximum total shard count of a [Matrix]
const MaxMatrixShards = 256

func NewVandermondeEncoder(dataShards, parityShards int) (*Matrix, error) {
	if dataShards < 1 {
		return nil, kerrors.WithKind(nil, ErrShape, "Must have at least 1 data shard")
	}
	if parityShards < 1 {
		return nil, kerrors.WithKind(nil, ErrShape, "Must have at least 1 parity shard")
	}
	if dataShards+parityShards > MaxMatrixShards {
		return nil, kerrors.WithKind(nil, ErrShape, "Shard counts may not exceed 256")
	}
	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, kerrors.WithMsg(err, "Failed to create vandermonde matrix encoder")
	}
	return &Matrix{
		dataShards:   dataShards,
		parityShards: parityShards,
		enc:          enc,
		shardWork:    make([][]byte, dataShards+parityShards),
	}, nil
}

func (m *Matrix) Encode(data, parity [][]byte) error {
	if len(data) != m.dataShards {
		return kerrors.WithKind(nil, ErrShape, "Invalid number of data shards")
	}
	if len(parity) != m.parityShards {
		return kerrors.WithKind(nil, ErrShape, "Invalid number of parity shards")
	}
	blockSize := len(data[0])
	for n, i := range data {
		if len(i) != blockSize {
			return kerrors.WithKind(nil, ErrShape, "Varying data block size")
		}
		m.shardWork[n] = i
	}
	for n, i := range parity {
		if len(i) != blockSize {
			return kerrors.WithKind(nil, ErrShape, "Varying parity block size")
		}
		m.shardWork[m.dataShards+n] = i
	}
	if err := m.enc.Encode(m.shardWork); err != nil {
		return kerrors.WithMsg(err, "Failed to reed solomon encode data")
	}
	return nil
}

func (m *Matrix) ReconstructData(data, parity [][]byte) error {
	if len(data) != m.dataShards {
		return kerrors.WithKind(nil, ErrShape, "Invalid number of data shards")
	}
	if len(parity) != m.parityShards {
		return kerrors.WithKind(nil, ErrShape, "Invalid number of parity shards")
	}
	blockSize, err := shardSize(data, parity)
	if err != nil {
		return err
	}
	for n, i := range data {
		if len(i) != blockSize && len(i) != 0 {
			return kerrors.WithKind(nil, ErrShape, "Varying data block size")
		}
		m.shardWork[n] = i
	}
	for n, i := range parity {
		if len(i) != blockSize && len(i) != 0 {
			return kerrors.WithKind(nil, ErrShape, "Varying parity block size")
		}
		m.shardWork[m.dataShards+n] = i
	}
	if err := m.enc.ReconstructData(m.shardWork); err != nil {
		if errors.Is(err, reedsolomon.ErrTooFewShards) {
			return kerrors.WithKind(err, ErrTooFewShards, "Too many missing shards to reconstruct data")
		}
		return kerrors.WithMsg(err, "Failed to reed solomon reconstruct data")
	}
	// reconstructed shards may have been reallocated
	for n := range data {
		data[n] = m.shardWork[n]
	}
	return nil
}

func shardSize(data, parity [][]byte) (int, error) {
	for _, i := range data {
		if len(i) != 0 {
			return len(i), nil
		}
	}
	for _, i := range parity {
		if len(i) != 0 {
			return len(i), nil
		}
	}
	return 0, kerrors.WithKind(nil, ErrTooFewShards, "All shards are missing")
}
