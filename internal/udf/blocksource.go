package udf

import (
	"fmt"
	"io"
	"os"
)

// BlockSource is the external collaborator every other component in this
// package is built on: something that can hand back fixed-size logical
// blocks by absolute block number. Splitting it out from Reader (the
// teacher's udf.Reader hard-coded an *os.File) lets tests build synthetic
// images in memory instead of via os.CreateTemp for every fixture.
type BlockSource interface {
	// ReadBlock returns exactly SectorSize bytes for the given block number.
	ReadBlock(block uint32) ([]byte, error)
	// TotalBlocks reports the size of the source in whole logical blocks.
	TotalBlocks() (uint32, error)
	Close() error
}

// fileBlockSource is the production BlockSource: a block-addressable disc
// image file (.iso, or a raw BD/DVD device node opened as a plain file).
type fileBlockSource struct {
	file *os.File
}

// OpenFileBlockSource opens path as a block source.
func OpenFileBlockSource(path string) (BlockSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("udf: open block source: %w", err)
	}
	return &fileBlockSource{file: f}, nil
}

func (s *fileBlockSource) ReadBlock(block uint32) ([]byte, error) {
	buf := make([]byte, SectorSize)
	n, err := s.file.ReadAt(buf, int64(block)*SectorSize)
	if n == SectorSize {
		return buf, nil
	}
	if err == nil || err == io.EOF {
		return nil, fmt.Errorf("%w: block %d: got %d of %d bytes", ErrShortRead, block, n, SectorSize)
	}
	return nil, fmt.Errorf("udf: read block %d: %w", block, err)
}

func (s *fileBlockSource) TotalBlocks() (uint32, error) {
	info, err := s.file.Stat()
	if err != nil {
		return 0, err
	}
	return uint32(info.Size() / SectorSize), nil
}

func (s *fileBlockSource) Close() error {
	return s.file.Close()
}

// memoryBlockSource is a BlockSource over an in-memory image, used by
// internal/udf's own tests to synthesize tiny UDF volumes without touching
// the filesystem.
type memoryBlockSource struct {
	data []byte
}

func newMemoryBlockSource(data []byte) *memoryBlockSource {
	return &memoryBlockSource{data: data}
}

func (s *memoryBlockSource) ReadBlock(block uint32) ([]byte, error) {
	off := int64(block) * SectorSize
	if off < 0 || off+SectorSize > int64(len(s.data)) {
		return nil, fmt.Errorf("%w: block %d out of range", ErrShortRead, block)
	}
	buf := make([]byte, SectorSize)
	copy(buf, s.data[off:off+SectorSize])
	return buf, nil
}

func (s *memoryBlockSource) TotalBlocks() (uint32, error) {
	return uint32(len(s.data) / SectorSize), nil
}

func (s *memoryBlockSource) Close() error { return nil }
