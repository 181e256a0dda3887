package stripe

import (
	"xorkevin.dev/bitmend/digest"
	"xorkevin.dev/kerrors"
)

type (
	// Object is the in-memory redundancy state of a single file
	Object struct {
		Layout
		Algorithm *digest.Algorithm
		// Data is the zero padded file contents and is nil for objects parsed
		// from a redundancy file
		Data      []byte
		Parity    [][]byte
		Checksums []string
	}
)

// New creates an object with zeroed parity buffers and no data
func New(fileSize int64, cfg Config) (*Object, error) {
	layout, err := Partition(fileSize, cfg)
	if err != nil {
		return nil, err
	}
	alg, err := digest.Lookup(cfg.Algorithm)
	if err != nil {
		return nil, kerrors.WithKind(err, ErrConfig, "Invalid checksum algorithm")
	}
	parity, _ := allocBlockBuffers(layout.BlockSize, layout.NumParityDisks)
	return &Object{
		Layout:    *layout,
		Algorithm: alg,
		Parity:    parity,
		Checksums: make([]string, layout.NumDataDisks),
	}, nil
}

// SetData copies b into a new data buffer
//
// Bytes past the file size are dropped, and the buffer is zero padded to the
// block boundary.
func (o *Object) SetData(b []byte) {
	o.Data = make([]byte, o.DataSize())
	copy(o.Data, b[:min(int64(len(b)), o.FileSize)])
}

// Bytes returns the file contents without padding
func (o *Object) Bytes() []byte {
	return o.Data[:o.FileSize]
}

// Disk returns data disk d
func (o *Object) Disk(d int) []byte {
	start := d * o.DiskSize
	return o.Data[start : start+o.DiskSize : start+o.DiskSize]
}

// Blocks returns the fixed size blocks of the data buffer
func (o *Object) Blocks() [][]byte {
	return splitBlocks(o.Data, o.BlockSize)
}

// ComputeChecksums hashes every data disk independently
func (o *Object) ComputeChecksums() {
	for d := range o.Checksums {
		o.Checksums[d] = o.Algorithm.Sum(o.Disk(d))
	}
}

// ChecksumMismatches returns the data disks whose checksums differ from ref
func (o *Object) ChecksumMismatches(ref *Object) []int {
	var res []int
	for d, i := range o.Checksums {
		if d >= len(ref.Checksums) || i != ref.Checksums[d] {
			res = append(res, d)
		}
	}
	return res
}

// MemoryUsed estimates the bytes of memory held by a fully loaded object
func (o *Object) MemoryUsed() int64 {
	return int64(o.NumDataDisks)*int64(o.DiskSize) +
		int64(o.NumParityDisks)*int64(o.BlockSize) +
		int64(o.NumDataDisks)*int64(o.Algorithm.Size())
}
