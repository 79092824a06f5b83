package registry

import (
	"os"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/vmihailenco/msgpack.v2"

	"github.com/will-rowe/shset/src/shs"
	"github.com/will-rowe/shset/src/version"
)

// SketchSet maps genome identifiers to their sketches
type SketchSet map[int]shs.Sketch

// snapshot is the on-disk form of a SketchSet
type snapshot struct {
	Version  string     `msgpack:"version"`
	IDs      []int      `msgpack:"ids"`
	Sketches [][]uint64 `msgpack:"sketches"`
}

// Len returns the number of genomes in the set
func (set SketchSet) Len() int {
	return len(set)
}

// Get returns the sketch for a genome identifier
func (set SketchSet) Get(id int) (shs.Sketch, bool) {
	sketch, ok := set[id]
	return sketch, ok
}

// IDs returns the genome identifiers in ascending order
func (set SketchSet) IDs() []int {
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// NumValues returns the total number of hash values held by the set
func (set SketchSet) NumValues() int {
	total := 0
	for _, sketch := range set {
		total += len(sketch)
	}
	return total
}

// Dump is a method to write the set to a msgpack snapshot, so it can be reopened without decoding the sketch files again
func (set SketchSet) Dump(path string) error {
	snap := snapshot{Version: version.GetVersion()}
	for _, id := range set.IDs() {
		snap.IDs = append(snap.IDs, id)
		snap.Sketches = append(snap.Sketches, set[id])
	}
	data, err := msgpack.Marshal(&snap)
	if err != nil {
		return errors.Wrap(err, "could not serialise sketch set")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return shs.NewError(shs.IOError, path, err)
	}
	return nil
}

// LoadSnapshot reads a snapshot written by Dump into a new set
func LoadSnapshot(path string) (SketchSet, error) {
	set := make(SketchSet)
	if err := set.Load(path); err != nil {
		return nil, err
	}
	return set, nil
}

// Load is a method to populate the set from a snapshot written by Dump. Existing entries with the same identifiers are replaced.
// A nil set is allocated first.
func (set *SketchSet) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return shs.NewError(shs.IOError, path, err)
	}
	if len(data) == 0 {
		return shs.NewError(shs.FormatError, path, errors.New("sketch set snapshot appears empty"))
	}
	snap := &snapshot{}
	if err := msgpack.Unmarshal(data, snap); err != nil {
		return shs.NewError(shs.FormatError, path, errors.Wrap(err, "could not read sketch set snapshot"))
	}
	if len(snap.IDs) != len(snap.Sketches) {
		return shs.NewError(shs.FormatError, path, errors.Errorf("snapshot has %d identifiers but %d sketches", len(snap.IDs), len(snap.Sketches)))
	}
	if *set == nil {
		*set = make(SketchSet, len(snap.IDs))
	}
	for i, id := range snap.IDs {
		sketch := snap.Sketches[i]
		if sketch == nil {
			sketch = shs.Sketch{}
		}
		(*set)[id] = sketch
	}
	return nil
}
