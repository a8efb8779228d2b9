package udf

import "fmt"

// DirectoryEntry is one entry yielded by a DirectoryCursor: a child name,
// its characteristics bits, its ICB, and enough of its resolved File entry
// to classify and size it without a second round trip.
type DirectoryEntry struct {
	Name            string
	Characteristics uint8
	ICB             LongAD
	IsDirectory     bool
	Size            int64
}

// DirectoryCursor is the literal ScanDir iterator state: a directory File
// plus however much of its content remains to be scanned. NewDirectoryCursor
// resolves the directory's File Entry once; Next then decodes one FID per
// call until the directory is exhausted.
type DirectoryCursor struct {
	reader *Reader
	dir    *File

	length uint32 // bytes of directory content remaining to scan
	pos    uint32 // byte pointer within the current window/content

	embedded bool
	content  []byte // embedded case: the ICB's own embedded content

	fileBlock uint32 // non-embedded case: current file-relative block index
	window    []byte // non-embedded case: two-block sliding window
}

// NewDirectoryCursor opens dir (which must be a file-type-4 ICB) for
// scanning, following UDFOpenDir's embedded-vs-allocation-chain branch.
func (r *Reader) NewDirectoryCursor(dir *File) (*DirectoryCursor, error) {
	view, err := dir.ensureEntry()
	if err != nil {
		return nil, err
	}
	if view.icbTag.FileType != ICBFileTypeDirectory {
		return nil, fmt.Errorf("%w: %s", ErrNotADirectory, dir.Name)
	}

	c := &DirectoryCursor{reader: r, dir: dir, length: uint32(view.informationLength)}

	if view.icbTag.Embedded() {
		content, err := embeddedContent(view, dir.data)
		if err != nil {
			return nil, err
		}
		if uint32(len(content)) < c.length {
			c.length = uint32(len(content))
		}
		c.embedded = true
		c.content = content
	}

	return c, nil
}

// loadWindow fills the two-block window starting at c.fileBlock, addressed
// through FileBlockDir per SPEC_FULL.md §4.8. A short read of the trailing
// block (end of allocation chain) is tolerated since the directory's
// length counter is what actually bounds iteration.
func (c *DirectoryCursor) loadWindow() error {
	c.reader.log().V(2).Info("sliding directory window", "dir", c.dir.Name, "fileBlock", c.fileBlock)

	b0, err := c.reader.FileBlockDir(c.dir, c.fileBlock)
	if err != nil {
		return err
	}
	d0, err := c.reader.readBlockCached(b0)
	if err != nil {
		return err
	}

	var d1 []byte
	if b1, err := c.reader.FileBlockDir(c.dir, c.fileBlock+1); err == nil {
		if data, err := c.reader.readBlockCached(b1); err == nil {
			d1 = data
		}
	}

	window := make([]byte, len(d0)+len(d1))
	copy(window, d0)
	copy(window[len(d0):], d1)
	c.window = window
	return nil
}

// Next decodes the next FID, skipping hidden/deleted/parent entries, and
// reports false once the directory's content is exhausted. It is the
// literal ScanDir operation: one call, one entry (or end-of-directory).
func (c *DirectoryCursor) Next() (DirectoryEntry, bool, error) {
	blockSize := blockSizeOf(c.reader)

	for c.pos < c.length {
		var buf []byte
		if c.embedded {
			buf = c.content
		} else {
			if c.window == nil {
				if err := c.loadWindow(); err != nil {
					return DirectoryEntry{}, false, err
				}
			}
			for c.pos >= blockSize {
				c.fileBlock++
				c.pos -= blockSize
				if c.length >= blockSize {
					c.length -= blockSize
				} else {
					c.length = 0
				}
				if err := c.loadWindow(); err != nil {
					return DirectoryEntry{}, false, err
				}
			}
			if c.pos >= c.length {
				break
			}
			buf = c.window
		}

		if int(c.pos) >= len(buf) {
			return DirectoryEntry{}, false, nil
		}

		fid, size, err := decodeFileIdentifier(buf[c.pos:])
		if err != nil {
			return DirectoryEntry{}, false, nil
		}
		c.pos += size

		if fid.Characteristics&(FileCharHidden|FileCharDeleted|FileCharParent) != 0 {
			continue
		}

		name := fid.Name
		if name == "" {
			name = "."
		}

		childRaw, _, err := c.reader.mapICB(fid.ICB)
		if err != nil {
			return DirectoryEntry{}, false, err
		}
		childView, err := viewFileEntry(childRaw)
		if err != nil {
			return DirectoryEntry{}, false, err
		}

		return DirectoryEntry{
			Name:            name,
			Characteristics: fid.Characteristics,
			ICB:             fid.ICB,
			IsDirectory:     childView.icbTag.FileType == ICBFileTypeDirectory,
			Size:            int64(childView.informationLength),
		}, true, nil
	}

	return DirectoryEntry{}, false, nil
}

// Directory is the higher-level listing API built on top of
// DirectoryCursor: it drains every entry once (cached after the first
// call) and offers them back split into files and subdirectories.
type Directory struct {
	reader  *Reader
	File    *File
	entries []DirectoryEntry
	read    bool
}

// OpenDirectory resolves dir as a Directory ready for GetFiles/GetDirectories.
func (r *Reader) OpenDirectory(dir *File) (*Directory, error) {
	if !dir.IsDirectory() {
		return nil, fmt.Errorf("%w: %s", ErrNotADirectory, dir.Name)
	}
	return &Directory{reader: r, File: dir}, nil
}

func (d *Directory) ensureEntries() error {
	if d.read {
		return nil
	}
	cursor, err := d.reader.NewDirectoryCursor(d.File)
	if err != nil {
		return err
	}
	for {
		entry, ok, err := cursor.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		d.entries = append(d.entries, entry)
	}
	d.read = true
	return nil
}

// GetFiles returns every non-directory entry.
func (d *Directory) GetFiles() ([]*File, error) {
	if err := d.ensureEntries(); err != nil {
		return nil, err
	}
	var files []*File
	for _, e := range d.entries {
		if e.IsDirectory {
			continue
		}
		files = append(files, &File{reader: d.reader, Name: e.Name, icb: e.ICB})
	}
	return files, nil
}

// GetDirectories returns every directory entry (parent entries already
// filtered out by DirectoryCursor).
func (d *Directory) GetDirectories() ([]*Directory, error) {
	if err := d.ensureEntries(); err != nil {
		return nil, err
	}
	var dirs []*Directory
	for _, e := range d.entries {
		if !e.IsDirectory {
			continue
		}
		dirs = append(dirs, &Directory{
			reader: d.reader,
			File:   &File{reader: d.reader, Name: e.Name, icb: e.ICB},
		})
	}
	return dirs, nil
}
