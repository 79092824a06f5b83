package minhash

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"github.com/klauspost/pgzip"
	"github.com/pkg/errors"

	"github.com/will-rowe/shset/src/misc"
	"github.com/will-rowe/shset/src/shs"
)

// fastaExts are the file extensions accepted for genome files, each may also end in .gz
var fastaExts = []string{"fasta", "fa", "fna", "ffn"}

// SketchFASTA reads every record in a (possibly gzipped) FASTA file and returns a single KMV sketch
// for the whole genome. Records shorter than k are skipped.
func SketchFASTA(ctx context.Context, path string, kmerSize, sketchSize uint) (shs.Sketch, error) {
	if err := misc.CheckFile(path); err != nil {
		return nil, shs.NewError(shs.IOError, path, err)
	}
	if err := misc.CheckExt(path, fastaExts); err != nil {
		return nil, shs.NewError(shs.NamingError, path, err)
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, shs.NewError(shs.IOError, path, err)
	}
	defer fh.Close()

	var r io.Reader = fh
	if misc.IsGzipped(path) {
		gz, err := pgzip.NewReader(fh)
		if err != nil {
			return nil, shs.NewError(shs.FormatError, path, errors.Wrap(err, "could not open gzipped FASTA"))
		}
		defer gz.Close()
		r = gz
	}
	sketch, err := sketchRecords(ctx, r, kmerSize, sketchSize)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, shs.NewError(shs.FormatError, path, err)
	}
	return sketch, nil
}

// sketchRecords adds every FASTA record in r to one KMV sketch
func sketchRecords(ctx context.Context, r io.Reader, kmerSize, sketchSize uint) (shs.Sketch, error) {
	mh := NewKMVsketch(kmerSize, sketchSize)
	scanner := seqio.NewScanner(fasta.NewReader(r, linear.NewSeq("", nil, alphabet.DNAredundant)))
	records := 0
	for scanner.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, ok := scanner.Seq().(*linear.Seq)
		if !ok {
			return nil, fmt.Errorf("unexpected sequence type: %T", scanner.Seq())
		}
		records++
		if len(record.Seq) < int(kmerSize) {
			continue
		}
		sequence := make([]byte, len(record.Seq))
		for i, letter := range record.Seq {
			sequence[i] = byte(letter)
		}
		if err := mh.AddSequence(bytes.ToUpper(sequence)); err != nil {
			return nil, errors.Wrapf(err, "could not sketch record %q", record.ID)
		}
	}
	if err := scanner.Error(); err != nil {
		return nil, errors.Wrap(err, "could not read FASTA")
	}
	if records == 0 {
		return nil, errors.New("no FASTA records found")
	}
	return mh.GetSketch(), nil
}

// SketchFileName returns the path a genome sketch is written to: <outPrefix>.<id>.shs
func SketchFileName(outPrefix string, id int) string {
	return fmt.Sprintf("%s.%d%s", outPrefix, id, shs.Suffix)
}

// WriteGenomeSketch sketches a FASTA file and writes the result as a compressed sketch file that the
// registry can load under the given identifier. The path of the new file is returned.
func WriteGenomeSketch(ctx context.Context, fastaPath, outPrefix string, id int, kmerSize, sketchSize uint) (string, error) {
	sketch, err := SketchFASTA(ctx, fastaPath, kmerSize, sketchSize)
	if err != nil {
		return "", err
	}
	outPath := SketchFileName(outPrefix, id)
	if err := shs.EncodeFile(outPath, sketch, shs.Compressed); err != nil {
		return "", err
	}
	return outPath, nil
}
