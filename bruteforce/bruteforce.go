// Package bruteforce repairs a single damaged byte of a file protected only by
// a whole-file checksum.
package bruteforce

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"xorkevin.dev/bitmend/digest"
	"xorkevin.dev/kerrors"
	"xorkevin.dev/klog"
)

// ErrNotFound is returned when no single byte substitution matches the
// checksum
var ErrNotFound errNotFound

type (
	errNotFound struct{}
)

func (e errNotFound) Error() string {
	return "No repair found"
}

type (
	// Span is the half open byte range [Start, End) searched by one worker
	Span struct {
		Start int
		End   int
	}

	// Result is the outcome of a search
	Result struct {
		// Intact is set when the data already matches the checksum
		Intact bool
		Offset int
		Value  byte
	}
)

// Spans partitions [0, size) into n contiguous spans whose sizes differ by at
// most 1
func Spans(size, n int) []Span {
	n = max(n, 1)
	spans := make([]Span, n)
	div := size / n
	mod := size % n
	start := 0
	for i := range spans {
		l := div
		if i < mod {
			l++
		}
		spans[i] = Span{Start: start, End: start + l}
		start += l
	}
	return spans
}

// Search finds a single byte substitution of data matching the checksum
//
// data is not modified. Each worker searches its own span over a private copy
// of data, and the search stops at the first match found by any worker.
func Search(ctx context.Context, log klog.Logger, data []byte, newMatcher digest.MatcherFactory, workers int) (*Result, error) {
	l := klog.NewLevelLogger(log)

	ok, err := newMatcher().Match(data)
	if err != nil {
		return nil, kerrors.WithMsg(err, "Failed computing checksum")
	}
	if ok {
		l.Info(ctx, "File already matches checksum")
		return &Result{Intact: true}, nil
	}

	spans := Spans(len(data), workers)
	l.Info(ctx, "Searching for single byte repair",
		klog.AInt("size", len(data)),
		klog.AInt("workers", len(spans)),
	)

	searchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	results := make(chan Result, len(spans))
	g, gctx := errgroup.WithContext(searchCtx)
	g.SetLimit(len(spans))
	for n, i := range spans {
		n, i := n, i
		g.Go(func() error {
			wctx := klog.CtxWithAttrs(gctx, klog.AInt("worker", n))
			l.Debug(wctx, "Worker started",
				klog.AInt("start", i.Start),
				klog.AInt("end", i.End),
			)
			res, found, err := searchSpan(gctx, data, newMatcher(), i)
			if err != nil {
				return err
			}
			if found {
				results <- res
				cancel()
			}
			l.Debug(wctx, "Worker finished")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(results)
	if res, ok := <-results; ok {
		l.Info(ctx, "Found single byte repair",
			klog.AInt("offset", res.Offset),
			klog.AString("value", fmt.Sprintf("0x%02x", res.Value)),
		)
		return &res, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, kerrors.WithMsg(err, "Search cancelled")
	}
	return nil, kerrors.WithKind(nil, ErrNotFound, "No single byte substitution matches the checksum")
}

func searchSpan(ctx context.Context, data []byte, m digest.Matcher, span Span) (Result, bool, error) {
	buf := make([]byte, len(data))
	copy(buf, data)
	for pos := span.Start; pos < span.End; pos++ {
		if ctx.Err() != nil {
			return Result{}, false, nil
		}
		orig := buf[pos]
		for v := 0; v < 256; v++ {
			b := byte(v)
			if b == orig {
				continue
			}
			buf[pos] = b
			ok, err := m.Match(buf)
			if err != nil {
				return Result{}, false, err
			}
			if ok {
				return Result{Offset: pos, Value: b}, true, nil
			}
		}
		buf[pos] = orig
	}
	return Result{}, false, nil
}

// Apply returns a copy of data with the result substitution applied
func (r Result) Apply(data []byte) []byte {
	res := make([]byte, len(data))
	copy(res, data)
	if !r.Intact {
		res[r.Offset] = r.Value
	}
	return res
}
