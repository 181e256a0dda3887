// Package repair creates redundancy for files, verifies files against their
// redundancy, and reconstructs damaged files.
package repair

import (
	"context"
	"fmt"

	"xorkevin.dev/bitmend/parity"
	"xorkevin.dev/bitmend/stripe"
	"xorkevin.dev/kerrors"
	"xorkevin.dev/klog"
)

// Encode computes the redundancy of data
func Encode(data []byte, cfg stripe.Config) (*stripe.Object, error) {
	obj, err := stripe.New(int64(len(data)), cfg)
	if err != nil {
		return nil, err
	}
	obj.SetData(data)
	if err := computeRedundancy(obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func computeRedundancy(obj *stripe.Object) error {
	engine, err := parity.New(obj.Layout)
	if err != nil {
		return err
	}
	obj.ComputeChecksums()
	if err := engine.ComputeParity(obj.Blocks(), obj.Parity); err != nil {
		return kerrors.WithMsg(err, "Failed computing parity")
	}
	return nil
}

// candidate lays out data with the layout of the reference
func candidate(data []byte, ref *stripe.Object) (*stripe.Object, error) {
	obj, err := stripe.New(ref.FileSize, ref.Layout.Config(ref.Algorithm.Name()))
	if err != nil {
		return nil, kerrors.WithMsg(err, "Invalid redundancy layout")
	}
	if obj.Layout != ref.Layout {
		return nil, kerrors.WithKind(nil, stripe.ErrFormat, "Redundancy layout does not match its own parameters")
	}
	obj.SetData(data)
	return obj, nil
}

type (
	// Report is the comparison of a file against its redundancy
	Report struct {
		// ChecksumMismatches are the data disks whose checksums differ
		ChecksumMismatches []int
		// ParityMismatches is the number of differing parity bytes
		ParityMismatches int
		SizeMismatch     bool
		FileSize         int64
		ExpectedSize     int64
	}
)

// Total returns the number of mismatches, where 0 means the file is intact
func (r Report) Total() int {
	total := len(r.ChecksumMismatches) + r.ParityMismatches
	if r.SizeMismatch {
		total++
	}
	return total
}

// Check compares data against the reference redundancy
//
// Data whose size differs from the recorded size is truncated or zero padded
// to the recorded size before comparison.
func Check(data []byte, ref *stripe.Object) (*Report, error) {
	obj, err := candidate(data, ref)
	if err != nil {
		return nil, err
	}
	if err := computeRedundancy(obj); err != nil {
		return nil, err
	}
	report := &Report{
		ChecksumMismatches: obj.ChecksumMismatches(ref),
		SizeMismatch:       int64(len(data)) != ref.FileSize,
		FileSize:           int64(len(data)),
		ExpectedSize:       ref.FileSize,
	}
	for p, i := range obj.Parity {
		refParity := ref.Parity[p]
		for n, j := range i {
			if j != refParity[n] {
				report.ParityMismatches++
			}
		}
	}
	return report, nil
}

// Reconstruct repairs data using the reference redundancy
//
// Failed data disks are located by checksum. The repaired data is checksummed
// again, and [parity.ErrUncorrectable] is returned if any disk still
// mismatches. The returned data always has the recorded size.
func Reconstruct(ctx context.Context, log klog.Logger, data []byte, ref *stripe.Object) ([]byte, error) {
	l := klog.NewLevelLogger(log)

	if int64(len(data)) != ref.FileSize {
		l.Warn(ctx, "File size differs from recorded size",
			klog.AInt("size", len(data)),
			klog.AInt("expected", int(ref.FileSize)),
		)
	}
	obj, err := candidate(data, ref)
	if err != nil {
		return nil, err
	}
	engine, err := parity.New(obj.Layout)
	if err != nil {
		return nil, err
	}
	obj.ComputeChecksums()
	failed := obj.ChecksumMismatches(ref)
	if len(failed) == 0 {
		l.Debug(ctx, "No damaged blocks")
		return obj.Bytes(), nil
	}
	l.Info(ctx, "Found damaged blocks",
		klog.AInt("count", len(failed)),
		klog.AString("disks", fmt.Sprint(failed)),
	)
	if err := engine.Repair(obj.Blocks(), parity.FailedBlocks(obj.Layout, failed), ref.Parity); err != nil {
		return nil, kerrors.WithMsg(err, "Failed repairing blocks")
	}
	obj.ComputeChecksums()
	if remaining := obj.ChecksumMismatches(ref); len(remaining) != 0 {
		return nil, kerrors.WithKind(nil, parity.ErrUncorrectable, fmt.Sprintf("Checksums still mismatch on disks %v after repair", remaining))
	}
	return obj.Bytes(), nil
}
