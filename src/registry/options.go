package registry

import (
	"runtime"

	"github.com/go-kit/log"
	"github.com/spf13/pflag"

	"github.com/will-rowe/shset/src/shs"
)

// Options holds the settings used by LoadSketchSet
type Options struct {
	SampleLimit int        // maximum number of values to decode per file, <= 0 reads whole files
	Workers     int        // number of files decoded at once
	BestEffort  bool       // skip files that fail instead of aborting the load
	Logger      log.Logger // where load progress is reported
}

// Option changes a single setting
type Option func(*Options)

// DefaultOptions returns the settings used when no options are given
func DefaultOptions() Options {
	return Options{
		SampleLimit: shs.NoLimit,
		Workers:     runtime.NumCPU(),
		Logger:      log.NewNopLogger(),
	}
}

// WithSampleLimit caps the number of values decoded from each file
func WithSampleLimit(limit int) Option {
	return func(o *Options) { o.SampleLimit = limit }
}

// WithWorkers sets how many files are decoded concurrently. The load is I/O bound, so values above the
// CPU count are kept as given. Zero or less uses runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(o *Options) { o.Workers = n }
}

// WithBestEffort makes the load skip bad files and report them alongside the partial set
func WithBestEffort(bestEffort bool) Option {
	return func(o *Options) { o.BestEffort = bestEffort }
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithOptions replaces all settings at once, e.g. with a struct that was filled in from flags
func WithOptions(opts Options) Option {
	return func(o *Options) { *o = opts }
}

// RegisterFlags binds the options to a flag set, with each flag name prepended by prefix
func (o *Options) RegisterFlags(prefix string, fs *pflag.FlagSet) {
	fs.IntVar(&o.SampleLimit, prefix+"sampleLimit", o.SampleLimit, "maximum number of hash values to load per sketch file (<= 0 loads every value)")
	fs.IntVar(&o.Workers, prefix+"workers", o.Workers, "number of sketch files to decode at once")
	fs.BoolVar(&o.BestEffort, prefix+"bestEffort", o.BestEffort, "skip sketch files that can't be loaded instead of stopping")
}

// normalise fills in anything left unset
func (o *Options) normalise() {
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.Logger == nil {
		o.Logger = log.NewNopLogger()
	}
}
