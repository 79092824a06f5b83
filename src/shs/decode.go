package shs

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/klauspost/pgzip"
	"github.com/pkg/errors"
)

// checkEvery is how many values are decoded between checks of the context
const checkEvery = 4096

// maxPrealloc caps the up-front allocation made from a header count, the slice grows past it if the data is really there
const maxPrealloc = 1 << 27

// maxInt is the largest value an int can hold on this platform
const maxInt = int(^uint(0) >> 1)

// DecodeFile reads a sketch file from disk. If sampleLimit is positive, at most sampleLimit values are
// decoded, otherwise the whole file is read.
func DecodeFile(ctx context.Context, path string, sampleLimit int) (Sketch, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, NewError(IOError, path, err)
	}
	defer fh.Close()
	info, err := fh.Stat()
	if err != nil {
		return nil, NewError(IOError, path, err)
	}
	sketch, err := decode(ctx, fh, info.Size(), sampleLimit)
	if err != nil {
		return nil, withPath(err, path)
	}
	return sketch, nil
}

// Decode reads a sketch from r, using the same rules as DecodeFile
func Decode(ctx context.Context, r io.Reader, sampleLimit int) (Sketch, error) {
	return decode(ctx, r, -1, sampleLimit)
}

// decode checks the magic bytes and hands off to the decoder for that encoding.
// size is the number of bytes in r, or -1 if it is not known.
func decode(ctx context.Context, r io.Reader, size int64, sampleLimit int) (Sketch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	br := bufio.NewReader(r)
	enc, err := DetectEncoding(br)
	if err != nil {
		return nil, NewError(IOError, "", errors.Wrap(err, "could not read magic bytes"))
	}
	switch enc {
	case Compressed:
		return decodeCompressed(ctx, br, sampleLimit)
	case Raw:
		return decodeRaw(ctx, br, size, sampleLimit)
	default:
		return nil, NewError(FormatError, "", errors.Errorf("unknown encoding: %v", enc))
	}
}

// decodeCompressed reads the element count header and then the values from a gzip stream
func decodeCompressed(ctx context.Context, r io.Reader, sampleLimit int) (Sketch, error) {
	gz, err := pgzip.NewReader(r)
	if err != nil {
		return nil, NewError(FormatError, "", errors.Wrap(err, "could not open gzip stream"))
	}
	defer gz.Close()

	buf := make([]byte, HashValueSize)
	if _, err := io.ReadFull(gz, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, NewError(FormatError, "", errors.New("stream too short for the element count header"))
		}
		return nil, streamError(errors.Wrap(err, "could not read element count header"))
	}
	count := byteOrder.Uint64(buf)
	if count > uint64(maxInt)/HashValueSize {
		return nil, NewError(FormatError, "", errors.Errorf("declared element count is too large: %d", count))
	}
	want := int(count)
	if sampleLimit > 0 && sampleLimit < want {
		want = sampleLimit
	}
	prealloc := want
	if prealloc > maxPrealloc {
		prealloc = maxPrealloc
	}

	sketch := make(Sketch, 0, prealloc)
	for len(sketch) < want {
		if len(sketch)%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if _, err := io.ReadFull(gz, buf); err != nil {
			switch err {
			case io.EOF:
				return nil, NewError(FormatError, "", errors.Errorf("stream ended after %d of %d declared values", len(sketch), count))
			case io.ErrUnexpectedEOF:
				return nil, NewError(DecodeError, "", errors.Errorf("partial value at index %d", len(sketch)))
			default:
				return nil, streamError(errors.Wrapf(err, "could not read value at index %d", len(sketch)))
			}
		}
		sketch = append(sketch, byteOrder.Uint64(buf))
	}

	// when reading the whole file, the header has to account for all of it
	if sampleLimit <= 0 {
		n, err := io.ReadFull(gz, buf[:1])
		if n != 0 {
			return nil, NewError(FormatError, "", errors.Errorf("stream holds more values than the declared count (%d)", count))
		}
		if err != nil && err != io.EOF {
			return nil, streamError(errors.Wrap(err, "could not read end of stream"))
		}
	}
	return sketch, nil
}

// streamError sorts a failed read from a gzip stream: failures of the underlying file are IOErrors,
// anything else (bad checksum, corrupt deflate data) means the bytes themselves are wrong
func streamError(err error) error {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return NewError(IOError, "", err)
	}
	return NewError(FormatError, "", err)
}

// decodeRaw reads a headerless array of values. The raw layout has no count, so the file size (if known)
// is used to size the sketch. A sample limit stops the read early.
func decodeRaw(ctx context.Context, r io.Reader, size int64, sampleLimit int) (Sketch, error) {
	prealloc := 0
	if size >= 0 {
		if sampleLimit <= 0 && size%HashValueSize != 0 {
			return nil, NewError(DecodeError, "", errors.Errorf("file size (%d bytes) is not a multiple of %d", size, HashValueSize))
		}
		n := size / HashValueSize
		if sampleLimit > 0 && int64(sampleLimit) < n {
			n = int64(sampleLimit)
		}
		if n > maxPrealloc {
			n = maxPrealloc
		}
		prealloc = int(n)
	}

	sketch := make(Sketch, 0, prealloc)
	buf := make([]byte, HashValueSize)
	for sampleLimit <= 0 || len(sketch) < sampleLimit {
		if len(sketch)%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		_, err := io.ReadFull(r, buf)
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			return nil, NewError(DecodeError, "", errors.Errorf("partial value at index %d", len(sketch)))
		}
		if err != nil {
			return nil, NewError(IOError, "", errors.Wrapf(err, "could not read value at index %d", len(sketch)))
		}
		sketch = append(sketch, byteOrder.Uint64(buf))
	}
	return sketch, nil
}
