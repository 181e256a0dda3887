package repair

import (
	"bytes"
	"context"

	"github.com/shirou/gopsutil/mem"
	"xorkevin.dev/bitmend/fileio"
	"xorkevin.dev/bitmend/stripe"
	"xorkevin.dev/bitmend/util/bytefmt"
	"xorkevin.dev/kerrors"
	"xorkevin.dev/klog"
)

type (
	// Service runs redundancy operations on files
	Service struct {
		log  *klog.LevelLogger
		opts Options
	}
)

const (
	filePerm = 0o644
)

func NewService(log klog.Logger, opts Options) *Service {
	return &Service{
		log:  klog.NewLevelLogger(log),
		opts: opts,
	}
}

// checkMemory warns when an object would not fit in available memory
func (s *Service) checkMemory(ctx context.Context, fileSize int64, cfg stripe.Config) {
	obj, err := stripe.New(fileSize, cfg)
	if err != nil {
		return
	}
	estimate := obj.MemoryUsed()
	s.log.Debug(ctx, "Estimated memory use",
		klog.AString("estimate", bytefmt.ToString(estimate)),
	)
	v, err := mem.VirtualMemory()
	if err != nil {
		s.log.Debug(ctx, "Failed reading system memory", klog.AString("err", err.Error()))
		return
	}
	if uint64(estimate) > v.Available {
		s.log.Warn(ctx, "Estimated memory use exceeds available memory",
			klog.AString("estimate", bytefmt.ToString(estimate)),
			klog.AString("available", bytefmt.ToString(int64(v.Available))),
		)
	}
}

func (s *Service) readFile(name string) ([]byte, error) {
	return fileio.ReadFile(name, s.opts.DirectIO)
}

// LoadRedundancy reads and parses a redundancy file
func (s *Service) LoadRedundancy(name string) (*stripe.Object, error) {
	b, err := s.readFile(name)
	if err != nil {
		return nil, kerrors.WithMsg(err, "Failed reading redundancy file")
	}
	obj, err := stripe.Parse(bytes.NewReader(b))
	if err != nil {
		return nil, kerrors.WithMsg(err, "Invalid redundancy file")
	}
	return obj, nil
}

// Create writes the redundancy file of a file
func (s *Service) Create(ctx context.Context, name, redundancy string) error {
	ctx = klog.CtxWithAttrs(ctx, klog.AString("file", name))
	cfg, err := s.opts.StripeConfig()
	if err != nil {
		return err
	}
	data, err := s.readFile(name)
	if err != nil {
		return err
	}
	s.checkMemory(ctx, int64(len(data)), cfg)
	obj, err := Encode(data, cfg)
	if err != nil {
		return kerrors.WithMsg(err, "Failed computing redundancy")
	}
	s.log.Debug(ctx, "Computed redundancy",
		klog.AString("parity_type", obj.Kind.String()),
		klog.AInt("data_disks", obj.NumDataDisks),
		klog.AInt("parity_disks", obj.NumParityDisks),
		klog.AInt("block_size", obj.BlockSize),
		klog.AString("cksum_algo", obj.Algorithm.Name()),
	)
	if err := fileio.WriteFrom(redundancy, obj, filePerm); err != nil {
		return kerrors.WithMsg(err, "Failed writing redundancy file")
	}
	s.log.Info(ctx, "Created redundancy file", klog.AString("redundancy", redundancy))
	return nil
}

// Verify compares a file against its redundancy file
func (s *Service) Verify(ctx context.Context, name, redundancy string) (*Report, error) {
	ctx = klog.CtxWithAttrs(ctx, klog.AString("file", name))
	ref, err := s.LoadRedundancy(redundancy)
	if err != nil {
		return nil, err
	}
	data, err := s.readFile(name)
	if err != nil {
		return nil, err
	}
	s.checkMemory(ctx, ref.FileSize, ref.Layout.Config(ref.Algorithm.Name()))
	report, err := Check(data, ref)
	if err != nil {
		return nil, err
	}
	if report.SizeMismatch {
		s.log.Warn(ctx, "File size differs from recorded size",
			klog.AInt("size", int(report.FileSize)),
			klog.AInt("expected", int(report.ExpectedSize)),
		)
	}
	for _, i := range report.ChecksumMismatches {
		s.log.Debug(ctx, "Checksum mismatch", klog.AInt("disk", i))
	}
	if total := report.Total(); total > 0 {
		s.log.Warn(ctx, "Found errors in file",
			klog.AInt("errors", total),
			klog.AInt("checksum_mismatches", len(report.ChecksumMismatches)),
			klog.AInt("parity_mismatches", report.ParityMismatches),
		)
	} else {
		s.log.Info(ctx, "No errors detected in file")
	}
	return report, nil
}

// Repair writes the repaired contents of a file to out
//
// Nothing is written unless every data disk is fully repaired.
func (s *Service) Repair(ctx context.Context, name, redundancy, out string) error {
	ctx = klog.CtxWithAttrs(ctx, klog.AString("file", name))
	ref, err := s.LoadRedundancy(redundancy)
	if err != nil {
		return err
	}
	data, err := s.readFile(name)
	if err != nil {
		return err
	}
	s.checkMemory(ctx, ref.FileSize, ref.Layout.Config(ref.Algorithm.Name()))
	repaired, err := Reconstruct(ctx, s.log.Logger, data, ref)
	if err != nil {
		return err
	}
	if err := fileio.WriteFile(out, repaired, filePerm); err != nil {
		return kerrors.WithMsg(err, "Failed writing repaired file")
	}
	s.log.Info(ctx, "Wrote repaired file", klog.AString("out", out))
	return nil
}
