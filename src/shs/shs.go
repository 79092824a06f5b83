// Package shs reads and writes .shs sketch files. A sketch file is either a raw array of 8-byte hash
// values, or a gzip stream holding an 8-byte element count followed by the values.
package shs

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// HashValueSize is 8, the number of bytes used for each hash value
const HashValueSize = 8

// NoLimit tells the decoder to read every value in a file
const NoLimit = -1

// Suffix is the file extension used by sketch files
const Suffix = ".shs"

// gzipMagic is the two byte header that marks a compressed sketch file
var gzipMagic = [2]byte{0x1f, 0x8b}

// byteOrder is the order used for the header and the hash values in both encodings
var byteOrder = binary.LittleEndian

// Sketch is an ordered set of hashed k-mer values for a single genome
type Sketch []uint64

// Encoding is the on-disk layout of a sketch file
type Encoding int

const (
	// Raw is a flat array of values with no header
	Raw Encoding = iota
	// Compressed is a gzip stream holding a count header and the values
	Compressed
)

// String satisfies the stringer interface
func (e Encoding) String() string {
	switch e {
	case Raw:
		return "raw"
	case Compressed:
		return "compressed"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// DetectEncoding looks at the first two bytes of a sketch file without consuming them.
// Anything that does not start with the gzip magic number is treated as Raw, including files
// shorter than two bytes.
func DetectEncoding(r *bufio.Reader) (Encoding, error) {
	magic, err := r.Peek(len(gzipMagic))
	if err != nil {
		if err == io.EOF {
			return Raw, nil
		}
		return Raw, err
	}
	if magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		return Compressed, nil
	}
	return Raw, nil
}
