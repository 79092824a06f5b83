// Package minhash builds bottom-k (KMV) MinHash sketches from genome sequences and writes them as .shs
// files. The k-mers are hashed with the nthash rolling hash function.
package minhash

import "github.com/will-rowe/shset/src/shs"

// CANONICAL tell nthash to return the canonical k-mer (this is used in the KMV sketch)
const CANONICAL bool = true

// MinHash is an interface to group the different flavours of MinHash implemented here
type MinHash interface {
	AddSequence([]byte) error
	GetSketch() shs.Sketch
}
