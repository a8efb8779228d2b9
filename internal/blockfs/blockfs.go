// Package blockfs adapts the internal/udf reader to the generic
// file/directory-info shape used by reporting and CLI code, the same role
// ISOFileSystemImpl played for BD-ROM reports, now generalized to any UDF
// image rather than one report's idea of a disc.
package blockfs

import (
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/s0up4200/udfview/internal/udf"
)

// Volume is a mounted UDF image: an open Reader plus the path normalization
// a CLI needs on top of it. Directory listings are not cached; every ReadDir
// call scans the directory again.
type Volume struct {
	imagePath   string
	reader      *udf.Reader
	volumeLabel string
}

// Open mounts path as a UDF volume, applying any Reader options (cache,
// legacy block translation, logger) the caller wants.
func Open(path string, opts ...udf.Option) (*Volume, error) {
	reader, err := udf.NewReader(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("opening UDF volume: %w", err)
	}
	return &Volume{
		imagePath:   path,
		reader:      reader,
		volumeLabel: reader.GetVolumeLabel(),
	}, nil
}

// Close releases the underlying image.
func (v *Volume) Close() error {
	return v.reader.Close()
}

// VolumeLabel returns the decoded Primary Volume Descriptor label.
func (v *Volume) VolumeLabel() string { return v.volumeLabel }

// Reader exposes the underlying udf.Reader for callers that need lower-
// level access (fingerprinting, raw block dumps).
func (v *Volume) Reader() *udf.Reader { return v.reader }

func normalize(p string) string {
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "/"
	}
	return "/" + p
}

// Entry describes one resolved path, file or directory, as much as a
// caller browsing the tree needs without round-tripping through the
// underlying udf.File/Directory types.
type Entry struct {
	Name        string
	FullPath    string
	IsDirectory bool
	Size        int64
	ModTime     time.Time

	file *udf.File
}

// Stat resolves p (file or directory) to an Entry.
func (v *Volume) Stat(p string) (Entry, error) {
	p = normalize(p)
	f, err := v.reader.FindFile(p)
	if err != nil {
		return Entry{}, fmt.Errorf("stat %s: %w", p, err)
	}
	return Entry{
		Name:        path.Base(p),
		FullPath:    p,
		IsDirectory: f.IsDirectory(),
		Size:        f.Size(),
		ModTime:     f.ModTime(),
		file:        f,
	}, nil
}

// OpenFile returns a reader over a file Entry's content.
func (v *Volume) OpenFile(e Entry) (io.ReadCloser, error) {
	if e.IsDirectory {
		return nil, fmt.Errorf("%s is a directory", e.FullPath)
	}
	if e.file == nil {
		f, err := v.reader.FindFile(e.FullPath)
		if err != nil {
			return nil, err
		}
		e.file = f
	}
	return e.file.Open()
}

// ReadDir lists the immediate children of a directory path, files and
// subdirectories together, sorted the way the underlying DirectoryCursor
// produced them (directory order on the image, not lexical).
func (v *Volume) ReadDir(p string) ([]Entry, error) {
	p = normalize(p)
	dirFile, err := v.reader.FindFile(p)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", p, err)
	}
	dir, err := v.reader.OpenDirectory(dirFile)
	if err != nil {
		return nil, err
	}

	cursor, err := v.reader.NewDirectoryCursor(dir.File)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for {
		de, ok, err := cursor.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		entries = append(entries, Entry{
			Name:        de.Name,
			FullPath:    path.Join(p, de.Name),
			IsDirectory: de.IsDirectory,
			Size:        de.Size,
		})
	}
	return entries, nil
}

// Walk visits every file under root, depth first, calling fn with each
// resolved Entry. Directories are descended into but not passed to fn
// themselves unless includeDirs is true.
func (v *Volume) Walk(root string, includeDirs bool, fn func(Entry) error) error {
	entries, err := v.ReadDir(root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDirectory {
			if includeDirs {
				if err := fn(e); err != nil {
					return err
				}
			}
			if err := v.Walk(e.FullPath, includeDirs, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}
