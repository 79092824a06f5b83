package minhash

import (
	"container/heap"
	"fmt"
	"sort"

	"github.com/will-rowe/ntHash"

	"github.com/will-rowe/shset/src/shs"
)

// KMVsketch is the structure for the K-Minimum Values MinHash sketch of a set of k-mers
type KMVsketch struct {
	kmerSize   uint
	sketchSize uint
	heap       *IntHeap
	members    map[uint64]struct{}
}

// NewKMVsketch is the constructor for a KMVsketch data structure
func NewKMVsketch(k, s uint) *KMVsketch {
	newSketch := &KMVsketch{
		kmerSize:   k,
		sketchSize: s,
		heap:       &IntHeap{},
		members:    make(map[uint64]struct{}, s),
	}

	// init the heap
	heap.Init(newSketch.heap)
	return newSketch
}

// AddSequence is a method to decompose a sequence to canonical kmers, hash them and add any minimums to the sketch
func (KMVsketch *KMVsketch) AddSequence(sequence []byte) error {

	// check the sequence length
	if len(sequence) < int(KMVsketch.kmerSize) {
		return fmt.Errorf("sequence length (%d) is short than k-mer length (%d)", len(sequence), KMVsketch.kmerSize)
	}

	// initiate the rolling ntHash
	hasher, err := ntHash.New(&sequence, KMVsketch.kmerSize)
	if err != nil {
		return err
	}

	// get hashed kmers from sequence and evaluate
	for hv := range hasher.Hash(CANONICAL) {
		KMVsketch.add(hv)
	}
	return nil
}

// add offers a single hash value to the sketch, each value is only held once
func (KMVsketch *KMVsketch) add(hv uint64) {
	if KMVsketch.sketchSize == 0 {
		return
	}
	if _, ok := KMVsketch.members[hv]; ok {
		return
	}

	// if the heap isn't full yet, go ahead and add the hash
	if len(*KMVsketch.heap) < int(KMVsketch.sketchSize) {
		heap.Push(KMVsketch.heap, hv)
		KMVsketch.members[hv] = struct{}{}

		// or if the incoming hash is smaller than the hash at the top of the heap, replace the largest value currently in the sketch
	} else if hv < (*KMVsketch.heap)[0] {
		delete(KMVsketch.members, (*KMVsketch.heap)[0])
		(*KMVsketch.heap)[0] = hv
		KMVsketch.members[hv] = struct{}{}

		// re-establish the heap ordering after adding the new hash
		heap.Fix(KMVsketch.heap, 0)
	}
}

// GetSketch is a method to return the minimums currently held, sorted smallest first
func (KMVsketch *KMVsketch) GetSketch() shs.Sketch {
	sketch := make(shs.Sketch, len(*KMVsketch.heap))
	copy(sketch, *KMVsketch.heap)
	sort.Slice(sketch, func(i, j int) bool { return sketch[i] < sketch[j] })
	return sketch
}
