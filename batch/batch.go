// Package batch runs redundancy operations over directory trees.
package batch

import (
	"context"
	"io/fs"
	"path"
	"path/filepath"

	"xorkevin.dev/bitmend/fileio"
	"xorkevin.dev/bitmend/repair"
	"xorkevin.dev/kerrors"
	"xorkevin.dev/kfs"
	"xorkevin.dev/klog"
)

type (
	// Runner walks trees and runs redundancy operations on every selected
	// file
	Runner struct {
		log    *klog.LevelLogger
		svc    *repair.Service
		filter Filter
		naming Naming
	}

	// Result counts the outcome of a batch operation
	Result struct {
		Processed int
		Failed    int
		// Mismatched counts verified files with errors
		Mismatched int
		Created    int
	}

	fileOp func(ctx context.Context, root, p string, res *Result) error
)

func New(log klog.Logger, svc *repair.Service, filter Filter, naming Naming) (*Runner, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return &Runner{
		log:    klog.NewLevelLogger(log),
		svc:    svc,
		filter: filter,
		naming: naming,
	}, nil
}

// CreateAll writes redundancy files for every selected file
func (r *Runner) CreateAll(ctx context.Context, root string) (*Result, error) {
	return r.walk(ctx, root, r.create)
}

// VerifyAll verifies every selected file against its redundancy file
func (r *Runner) VerifyAll(ctx context.Context, root string) (*Result, error) {
	return r.walk(ctx, root, r.verify)
}

// RepairAll writes repaired copies of every selected file
func (r *Runner) RepairAll(ctx context.Context, root string) (*Result, error) {
	return r.walk(ctx, root, r.repair)
}

// UpdateAll verifies every selected file with a redundancy file and creates
// the missing redundancy files
func (r *Runner) UpdateAll(ctx context.Context, root string) (*Result, error) {
	return r.walk(ctx, root, r.update)
}

func (r *Runner) create(ctx context.Context, root, p string, res *Result) error {
	if err := r.svc.Create(ctx, filepath.Join(root, filepath.FromSlash(p)), r.naming.RedundancyName(root, p)); err != nil {
		return err
	}
	res.Created++
	return nil
}

func (r *Runner) verify(ctx context.Context, root, p string, res *Result) error {
	report, err := r.svc.Verify(ctx, filepath.Join(root, filepath.FromSlash(p)), r.naming.RedundancyName(root, p))
	if err != nil {
		return err
	}
	if report.Total() > 0 {
		res.Mismatched++
	}
	return nil
}

func (r *Runner) repair(ctx context.Context, root, p string, res *Result) error {
	return r.svc.Repair(ctx, filepath.Join(root, filepath.FromSlash(p)), r.naming.RedundancyName(root, p), r.naming.RepairName(root, p))
}

func (r *Runner) update(ctx context.Context, root, p string, res *Result) error {
	ok, err := fileio.Exists(r.naming.RedundancyName(root, p))
	if err != nil {
		return err
	}
	if !ok {
		return r.create(ctx, root, p, res)
	}
	return r.verify(ctx, root, p, res)
}

func (r *Runner) walk(ctx context.Context, root string, op fileOp) (*Result, error) {
	var rootDir fs.FS = kfs.DirFS(root)
	info, err := fs.Stat(rootDir, ".")
	if err != nil {
		return nil, kerrors.WithKind(err, fileio.ErrIO, "Failed to stat root dir")
	}
	if !info.IsDir() {
		return nil, kerrors.WithKind(nil, fileio.ErrIO, "Root is not a dir")
	}
	res := &Result{}
	if err := fs.WalkDir(rootDir, ".", func(p string, entry fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			r.log.WarnErr(ctx, kerrors.WithMsg(err, "Failed reading path "+p))
			res.Failed++
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			if p == "." {
				return nil
			}
			if (r.naming.PerDir && path.Base(p) == r.naming.PerDirName) || !r.filter.MatchDir(p) {
				r.log.Debug(ctx, "Skipping dir", klog.AString("path", p))
				return fs.SkipDir
			}
			r.log.Debug(ctx, "Exploring dir", klog.AString("path", p))
			return nil
		}
		if !entry.Type().IsRegular() || !r.filter.MatchFile(p) {
			r.log.Debug(ctx, "Skipping unmatched file", klog.AString("path", p))
			return nil
		}
		if r.naming.IsOutput(p) {
			r.log.Debug(ctx, "Skipping output file", klog.AString("path", p))
			return nil
		}
		fctx := klog.CtxWithAttrs(ctx, klog.AString("path", p))
		res.Processed++
		if err := op(fctx, root, p, res); err != nil {
			res.Failed++
			r.log.Err(fctx, kerrors.WithMsg(err, "Failed processing file"))
		}
		return nil
	}); err != nil {
		return res, kerrors.WithMsg(err, "Failed walking dir")
	}
	r.log.Info(ctx, "Finished batch",
		klog.AString("root", root),
		klog.AInt("processed", res.Processed),
		klog.AInt("failed", res.Failed),
		klog.AInt("mismatched", res.Mismatched),
		klog.AInt("created", res.Created),
	)
	return res, nil
}
