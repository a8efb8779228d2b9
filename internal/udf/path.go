package udf

import (
	"fmt"
	"strings"
)

// FindFile resolves an absolute, '/'-delimited path to a File by
// descending from the root directory one component at a time, following
// UDFFindFile's case-insensitive component match. The root itself
// ("/" or "") resolves to the cached root directory File built during
// Open.
func (r *Reader) FindFile(p string) (*File, error) {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		if r.rootDirectory != nil {
			return r.rootDirectory, nil
		}
		return &File{reader: r, Name: "", icb: r.rootICB}, nil
	}

	current := r.rootDirectory
	if current == nil {
		current = &File{reader: r, Name: "", icb: r.rootICB}
	}

	parts := strings.Split(p, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		dir, err := r.OpenDirectory(current)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a directory", ErrNotADirectory, strings.Join(parts[:i], "/"))
		}

		isLast := i == len(parts)-1
		var next *File
		if isLast {
			files, err := dir.GetFiles()
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				if strings.EqualFold(f.Name, part) {
					next = f
					break
				}
			}
			if next == nil {
				dirs, err := dir.GetDirectories()
				if err != nil {
					return nil, err
				}
				for _, d := range dirs {
					if strings.EqualFold(d.File.Name, part) {
						next = d.File
						break
					}
				}
			}
		} else {
			dirs, err := dir.GetDirectories()
			if err != nil {
				return nil, err
			}
			for _, d := range dirs {
				if strings.EqualFold(d.File.Name, part) {
					next = d.File
					break
				}
			}
		}

		if next == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, part)
		}
		current = next
	}

	return current, nil
}
