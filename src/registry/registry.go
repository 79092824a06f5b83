// Package registry builds a SketchSet from a directory of .shs sketch files. Each file is named
// <anything>.<id>.shs, and the set maps every id to the sketch decoded from its file.
//
// Files are decoded by a bounded pool of workers. By default the first failure aborts the whole
// load and no partial set is returned. With the best-effort option, files that fail are skipped and
// the partial set is returned along with a *multierror.Error listing each failure.
// When two files share an identifier, the one that sorts last (natural order) wins.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/will-rowe/shset/src/misc"
	"github.com/will-rowe/shset/src/shs"
)

// job is a single sketch file waiting to be decoded
type job struct {
	id   int
	path string
}

// LoadSketchSet decodes every file matching <prefix>*.shs and returns the resulting set.
// A prefix that matches nothing gives an empty set and no error.
func LoadSketchSet(ctx context.Context, prefix string, opts ...Option) (SketchSet, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.normalise()
	logger := log.With(o.Logger, "prefix", prefix)
	start := time.Now()

	paths, err := Discover(prefix)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		level.Info(logger).Log("msg", "no sketch files found")
		return SketchSet{}, nil
	}

	// identifiers come from the filenames, so check them all before doing any I/O
	var failures *multierror.Error
	jobs := make([]job, 0, len(paths))
	for _, path := range paths {
		id, err := ParseID(path)
		if err != nil {
			if !o.BestEffort {
				return nil, err
			}
			level.Warn(logger).Log("msg", "skipping sketch file", "path", path, "err", err)
			failures = multierror.Append(failures, err)
			continue
		}
		jobs = append(jobs, job{id: id, path: path})
	}

	// each worker writes only its own slot, the set is built from the slots afterwards
	sketches := make([]shs.Sketch, len(jobs))
	decoded := make([]bool, len(jobs))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Workers)
	for i, j := range jobs {
		if gctx.Err() != nil {
			break
		}
		i, j := i, j
		g.Go(func() error {
			sketch, err := shs.DecodeFile(gctx, j.path, o.SampleLimit)
			if err != nil {
				if o.BestEffort && gctx.Err() == nil {
					level.Warn(logger).Log("msg", "skipping sketch file", "path", j.path, "err", err)
					mu.Lock()
					failures = multierror.Append(failures, err)
					mu.Unlock()
					return nil
				}
				return err
			}
			level.Debug(logger).Log("msg", "decoded sketch file", "path", j.path, "id", j.id, "values", len(sketch))
			sketches[i] = sketch
			decoded[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	set := make(SketchSet, len(jobs))
	for i, j := range jobs {
		if !decoded[i] {
			continue
		}
		if _, ok := set[j.id]; ok {
			level.Debug(logger).Log("msg", "identifier seen more than once, keeping the later file", "id", j.id, "path", j.path)
		}
		set[j.id] = sketches[i]
	}
	failed := 0
	if failures != nil {
		failed = len(failures.Errors)
	}
	level.Info(logger).Log(
		"msg", "loaded sketch set",
		"files", len(paths),
		"genomes", len(set),
		"failed", failed,
		"size", humanize.Bytes(uint64(set.NumValues())*shs.HashValueSize),
		"duration", time.Since(start),
		"mem", misc.PrintMemUsage(),
	)
	return set, failures.ErrorOrNil()
}
