package registry

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/facette/natsort"
	"github.com/pkg/errors"

	"github.com/will-rowe/shset/src/shs"
)

// Discover returns every path matching <prefix>*.shs, in natural sort order
func Discover(prefix string) ([]string, error) {
	paths, err := doublestar.FilepathGlob(prefix + "*" + shs.Suffix)
	if err != nil {
		return nil, errors.Wrapf(err, "bad sketch file prefix: %q", prefix)
	}
	natsort.Sort(paths)
	return paths, nil
}

// ParseID returns the genome identifier from a sketch filename of the form <anything>.<id>.shs
func ParseID(path string) (int, error) {
	fields := strings.Split(filepath.Base(path), ".")
	if len(fields) < 3 {
		return 0, shs.NewError(shs.NamingError, path, errors.New("no identifier segment in filename"))
	}
	id, err := strconv.Atoi(fields[len(fields)-2])
	if err != nil {
		return 0, shs.NewError(shs.NamingError, path, errors.Wrap(err, "identifier segment is not an integer"))
	}
	return id, nil
}
