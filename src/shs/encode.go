package shs

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/mholt/archiver"
	"github.com/pkg/errors"
)

// Encode writes a sketch to w using the requested encoding
func Encode(w io.Writer, sketch Sketch, enc Encoding) error {
	var buf bytes.Buffer
	buf.Grow((len(sketch) + 1) * HashValueSize)
	if enc == Compressed {
		if err := binary.Write(&buf, byteOrder, uint64(len(sketch))); err != nil {
			return err
		}
	}
	if err := binary.Write(&buf, byteOrder, []uint64(sketch)); err != nil {
		return err
	}
	switch enc {
	case Raw:
		_, err := buf.WriteTo(w)
		return err
	case Compressed:
		return archiver.NewGz().Compress(&buf, w)
	default:
		return errors.Errorf("unknown encoding: %v", enc)
	}
}

// EncodeFile writes a sketch to a new file at path, replacing any file already there
func EncodeFile(path string, sketch Sketch, enc Encoding) error {
	fh, err := os.Create(path)
	if err != nil {
		return NewError(IOError, path, err)
	}
	w := bufio.NewWriter(fh)
	if err := Encode(w, sketch, enc); err != nil {
		fh.Close()
		return NewError(IOError, path, errors.Wrap(err, "could not encode sketch"))
	}
	if err := w.Flush(); err != nil {
		fh.Close()
		return NewError(IOError, path, err)
	}
	if err := fh.Close(); err != nil {
		return NewError(IOError, path, err)
	}
	return nil
}
