package registry

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/go-kit/log"
	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/will-rowe/shset/src/shs"
)

var (
	sketchA = shs.Sketch{12345, 54321, 9999999, 98765}
	sketchB = shs.Sketch{1, 2, 3, 5, 8, 13, 21}
	sketchC = shs.Sketch{18446744073709551615, 9223372036854775808}
)

// writeSketch encodes a fixture into dir
func writeSketch(t *testing.T, dir, name string, sketch shs.Sketch, enc shs.Encoding) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := shs.EncodeFile(path, sketch, enc); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseID(t *testing.T) {
	tests := []struct {
		path string
		id   int
		ok   bool
	}{
		{"genomes/foo.3.shs", 3, true},
		{"foo.bar.1024.shs", 1024, true},
		{"dir.v2/GCF_000005845.-7.shs", -7, true},
		{"foo.shs", 0, false},
		{"foo.three.shs", 0, false},
		{"dir.5/foo.shs", 0, false},
	}
	for _, tt := range tests {
		id, err := ParseID(tt.path)
		if tt.ok {
			if err != nil {
				t.Fatalf("%v: %v", tt.path, err)
			}
			if id != tt.id {
				t.Fatalf("%v: expected id %d, got %d", tt.path, tt.id, id)
			}
			continue
		}
		if !shs.IsKind(err, shs.NamingError) {
			t.Fatalf("%v: expected a naming error, got %v", tt.path, err)
		}
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeSketch(t, dir, "foo.10.shs", sketchA, shs.Raw)
	writeSketch(t, dir, "foo.2.shs", sketchA, shs.Raw)
	writeSketch(t, dir, "foo.3.shs.bak", sketchA, shs.Raw)
	writeSketch(t, dir, "bar.1.shs", sketchA, shs.Raw)
	paths, err := Discover(filepath.Join(dir, "foo"))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "foo.2.shs"), filepath.Join(dir, "foo.10.shs")}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Fatalf("discovered paths mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadSketchSet(t *testing.T) {
	dir := t.TempDir()
	writeSketch(t, dir, "genome.1.shs", sketchA, shs.Compressed)
	writeSketch(t, dir, "genome.2.shs", sketchB, shs.Raw)
	writeSketch(t, dir, "genome.3.shs", sketchC, shs.Compressed)

	set, err := LoadSketchSet(context.Background(), filepath.Join(dir, "genome"), WithWorkers(2))
	if err != nil {
		t.Fatal(err)
	}
	want := SketchSet{1: sketchA, 2: sketchB, 3: sketchC}
	if diff := cmp.Diff(want, set); diff != "" {
		t.Fatalf("sketch set mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, set.IDs()); diff != "" {
		t.Fatalf("identifier mismatch (-want +got):\n%s", diff)
	}
	if _, ok := set.Get(4); ok {
		t.Fatal("identifier 4 should not be in the set")
	}

	// sampling applies to every file
	set, err = LoadSketchSet(context.Background(), filepath.Join(dir, "genome"), WithSampleLimit(2))
	if err != nil {
		t.Fatal(err)
	}
	for id, sketch := range set {
		if len(sketch) != 2 {
			t.Fatalf("genome %d: expected 2 sampled values, got %d", id, len(sketch))
		}
	}
	if sketch, _ := set.Get(2); sketch[1] != sketchB[1] {
		t.Fatal("sample should be a prefix of the full sketch")
	}
}

func TestLoadSketchSetNoMatches(t *testing.T) {
	set, err := LoadSketchSet(context.Background(), filepath.Join(t.TempDir(), "nothing"))
	if err != nil {
		t.Fatal(err)
	}
	if set == nil || set.Len() != 0 {
		t.Fatal("expected an empty sketch set")
	}

	// a directory that doesn't exist is just another prefix that matches nothing
	set, err = LoadSketchSet(context.Background(), "/no/such/dir/genome")
	if err != nil || set.Len() != 0 {
		t.Fatalf("expected an empty sketch set, got %d entries and %v", set.Len(), err)
	}
}

func TestSuffixMustMatch(t *testing.T) {
	dir := t.TempDir()
	writeSketch(t, dir, "foo.3.shs", sketchA, shs.Raw)
	writeSketch(t, dir, "foo.3.shs.bak", sketchB, shs.Raw)
	set, err := LoadSketchSet(context.Background(), filepath.Join(dir, "foo"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(SketchSet{3: sketchA}, set); diff != "" {
		t.Fatalf("sketch set mismatch (-want +got):\n%s", diff)
	}
}

func TestCollisionKeepsLaterFile(t *testing.T) {
	dir := t.TempDir()
	writeSketch(t, dir, "a.7.shs", sketchA, shs.Raw)
	writeSketch(t, dir, "b.7.shs", sketchB, shs.Compressed)
	set, err := LoadSketchSet(context.Background(), dir+string(os.PathSeparator))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(SketchSet{7: sketchB}, set); diff != "" {
		t.Fatalf("sketch set mismatch (-want +got):\n%s", diff)
	}
}

func TestFailFast(t *testing.T) {
	dir := t.TempDir()
	writeSketch(t, dir, "foo.1.shs", sketchA, shs.Raw)
	writeSketch(t, dir, "foo.shs", sketchB, shs.Raw)
	set, err := LoadSketchSet(context.Background(), filepath.Join(dir, "foo"))
	if !shs.IsKind(err, shs.NamingError) {
		t.Fatalf("expected a naming error, got %v", err)
	}
	if set != nil {
		t.Fatal("a failed load should not return a partial set")
	}

	dir = t.TempDir()
	writeSketch(t, dir, "foo.1.shs", sketchA, shs.Raw)
	if err := os.WriteFile(filepath.Join(dir, "foo.2.shs"), []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}, 0644); err != nil {
		t.Fatal(err)
	}
	set, err = LoadSketchSet(context.Background(), filepath.Join(dir, "foo"))
	if !shs.IsKind(err, shs.DecodeError) {
		t.Fatalf("expected a decode error, got %v", err)
	}
	if set != nil {
		t.Fatal("a failed load should not return a partial set")
	}
}

func TestBestEffort(t *testing.T) {
	dir := t.TempDir()
	writeSketch(t, dir, "foo.1.shs", sketchA, shs.Compressed)
	writeSketch(t, dir, "foo.shs", sketchB, shs.Raw)
	if err := os.WriteFile(filepath.Join(dir, "foo.2.shs"), []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}, 0644); err != nil {
		t.Fatal(err)
	}
	set, err := LoadSketchSet(context.Background(), filepath.Join(dir, "foo"), WithBestEffort(true))
	if diff := cmp.Diff(SketchSet{1: sketchA}, set); diff != "" {
		t.Fatalf("sketch set mismatch (-want +got):\n%s", diff)
	}
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		t.Fatalf("expected a list of failures, got %v", err)
	}
	if len(merr.Errors) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(merr.Errors))
	}
	kinds := map[shs.Kind]bool{}
	for _, e := range merr.Errors {
		var shsErr *shs.Error
		if !errors.As(e, &shsErr) {
			t.Fatalf("unexpected failure type: %v", e)
		}
		kinds[shsErr.Kind] = true
	}
	if !kinds[shs.NamingError] || !kinds[shs.DecodeError] {
		t.Fatalf("expected a naming error and a decode error, got %v", err)
	}
}

func TestLoadCancelled(t *testing.T) {
	dir := t.TempDir()
	writeSketch(t, dir, "foo.1.shs", sketchA, shs.Compressed)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := LoadSketchSet(ctx, filepath.Join(dir, "foo"), WithBestEffort(true)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLogging(t *testing.T) {
	dir := t.TempDir()
	writeSketch(t, dir, "foo.1.shs", sketchA, shs.Raw)
	var buf bytes.Buffer
	if _, err := LoadSketchSet(context.Background(), filepath.Join(dir, "foo"), WithLogger(log.NewLogfmtLogger(&buf))); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "loaded sketch set") || !strings.Contains(buf.String(), "genomes=1") {
		t.Fatalf("unexpected log output: %v", buf.String())
	}
}

func TestRegisterFlags(t *testing.T) {
	opts := DefaultOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.RegisterFlags("shs.", fs)
	if err := fs.Parse([]string{"--shs.sampleLimit=5", "--shs.bestEffort", "--shs.workers=1"}); err != nil {
		t.Fatal(err)
	}
	if opts.SampleLimit != 5 || !opts.BestEffort || opts.Workers != 1 {
		t.Fatalf("flags were not bound to the options: %+v", opts)
	}

	dir := t.TempDir()
	writeSketch(t, dir, "foo.1.shs", sketchB, shs.Compressed)
	set, err := LoadSketchSet(context.Background(), filepath.Join(dir, "foo"), WithOptions(opts))
	if err != nil {
		t.Fatal(err)
	}
	if sketch, _ := set.Get(1); len(sketch) != 5 {
		t.Fatalf("expected 5 sampled values, got %d", len(sketch))
	}
}

func TestSnapshot(t *testing.T) {
	set := SketchSet{1: sketchA, 2: sketchB, 30: sketchC, 4: shs.Sketch{}}
	path := filepath.Join(t.TempDir(), "genomes.snapshot")
	if err := set.Dump(path); err != nil {
		t.Fatal(err)
	}
	loaded := make(SketchSet)
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(set, loaded); diff != "" {
		t.Fatalf("snapshot changed the set (-want +got):\n%s", diff)
	}

	empty := filepath.Join(t.TempDir(), "empty.snapshot")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if err := loaded.Load(empty); !shs.IsKind(err, shs.FormatError) {
		t.Fatalf("expected a format error, got %v", err)
	}
}

func TestSnapshotIntoNilSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genomes.snapshot")
	if err := (SketchSet{1: sketchA, 9: sketchC}).Dump(path); err != nil {
		t.Fatal(err)
	}

	// the set returned by a failed load is nil, it must still be usable as a snapshot target
	var set SketchSet
	if err := set.Load(path); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(SketchSet{1: sketchA, 9: sketchC}, set); diff != "" {
		t.Fatalf("snapshot into nil set mismatch (-want +got):\n%s", diff)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(set, loaded); diff != "" {
		t.Fatalf("LoadSnapshot mismatch (-want +got):\n%s", diff)
	}
	if _, err := LoadSnapshot(filepath.Join(t.TempDir(), "missing.snapshot")); !shs.IsKind(err, shs.IOError) {
		t.Fatalf("expected an io error for a missing snapshot, got %v", err)
	}
}

func TestWorkersAboveCPUCount(t *testing.T) {
	o := DefaultOptions()
	WithWorkers(runtime.NumCPU() * 8)(&o)
	o.normalise()
	if o.Workers != runtime.NumCPU()*8 {
		t.Fatalf("explicit worker count was changed to %d", o.Workers)
	}
	o.Workers = 0
	o.normalise()
	if o.Workers != runtime.NumCPU() {
		t.Fatalf("unset worker count should default to %d, got %d", runtime.NumCPU(), o.Workers)
	}
}
