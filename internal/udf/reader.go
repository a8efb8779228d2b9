package udf

import (
	"fmt"

	"github.com/go-logr/logr"
)

// Reader is the entry point for navigating a UDF volume. It owns a
// BlockSource, the fixed block cache in front of it, and the volume state
// (partition table, partition maps, root ICB) that Open resolves once.
type Reader struct {
	source BlockSource
	config readerConfig
	cache  *blockCache

	volumeLabel     string
	blockSize       uint32
	partitionStart  uint32
	partitionSize   uint32
	partitionStarts map[uint16]uint32
	partitionMaps   []partitionMap
	rootICB         LongAD
	fileSetDesc     *FileSetDescriptor
	fileSetLocation uint32
	fsdLocation     uint32

	pvd *PrimaryVolumeDescriptor

	metadataFileICB        *LongAD
	metadataFileAllocDescs []AllocationDescriptor

	rootDirectory *File
}

// NewReader opens path as a block-addressable image and resolves its UDF
// volume structures, matching the combined effect of UDFOpen/DVDOpen in the
// reference implementation: by the time NewReader returns, the root
// directory is mapped and ready for FindFile/ScanDir.
func NewReader(path string, opts ...Option) (*Reader, error) {
	src, err := OpenFileBlockSource(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReaderFromSource(src, opts...)
	if err != nil {
		src.Close()
		return nil, err
	}
	return r, nil
}

// NewReaderFromSource builds a Reader over an already-open BlockSource,
// letting callers (and tests) supply a BlockSource besides the default
// file-backed one.
func NewReaderFromSource(src BlockSource, opts ...Option) (*Reader, error) {
	cfg := defaultReaderConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Reader{
		source:          src,
		config:          cfg,
		blockSize:       SectorSize,
		partitionStarts: make(map[uint16]uint32),
	}
	if cfg.cacheEnabled {
		r.cache = newBlockCache()
	}

	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

// Close releases the underlying block source.
func (r *Reader) Close() error {
	if r.source != nil {
		return r.source.Close()
	}
	return nil
}

func (r *Reader) log() logr.Logger { return r.config.logger }

// readBlockCached reads a single logical block, consulting and populating
// the block cache the way DVDReadLBUDFCached does. With caching disabled
// (WithCache(false)) this degrades to a direct BlockSource.ReadBlock call.
func (r *Reader) readBlockCached(block uint32) ([]byte, error) {
	if r.cache == nil {
		return r.source.ReadBlock(block)
	}
	if data, ok := r.cache.lookup(block); ok {
		return data, nil
	}
	data, err := r.source.ReadBlock(block)
	if err != nil {
		return nil, err
	}
	r.cache.insert(block, data)
	return data, nil
}

// readAt assembles an arbitrary byte range out of logical blocks, going
// through the same cache every other read path uses. File content reads
// (fileReader/extentReader) are built on this rather than on a raw
// io.ReaderAt so that in-memory and custom BlockSource implementations work
// identically to the file-backed one.
func (r *Reader) readAt(off int64, p []byte) (int, error) {
	bs := int64(blockSizeOf(r))
	n := 0
	for n < len(p) {
		block := uint32((off + int64(n)) / bs)
		within := int((off + int64(n)) % bs)
		data, err := r.readBlockCached(block)
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}
		avail := len(data) - within
		if avail <= 0 {
			break
		}
		want := len(p) - n
		if want > avail {
			want = avail
		}
		copy(p[n:n+want], data[within:within+want])
		n += want
	}
	return n, nil
}

func (r *Reader) GetVolumeLabel() string   { return r.volumeLabel }
func (r *Reader) BlockSize() uint32        { return r.blockSize }
func (r *Reader) PartitionStart() uint32   { return r.partitionStart }
func (r *Reader) FileSetLocation() uint32  { return r.fileSetLocation }
func (r *Reader) RootICB() LongAD          { return r.rootICB }
func (r *Reader) MaxADChains() int         { return r.config.maxADChains }

func (r *Reader) DebugPartitionMaps() []string {
	var out []string
	for i, pm := range r.partitionMaps {
		switch pm.kind {
		case partitionMapType1:
			out = append(out, fmt.Sprintf("%d:type1 partNum=%d", i, pm.partitionNumber))
		case partitionMapType2:
			switch {
			case pm.isMetadata:
				out = append(out, fmt.Sprintf("%d:type2 metadata icbLBN=%d", i, pm.metadataICBLBN))
			case pm.isSparable:
				out = append(out, fmt.Sprintf("%d:type2 sparable partNum=%d packetLen=%d sparingLocs=%v", i, pm.sparablePartNum, pm.sparablePacketLen, pm.sparingTableLocations))
			default:
				out = append(out, fmt.Sprintf("%d:type2", i))
			}
		default:
			out = append(out, fmt.Sprintf("%d:unknown", i))
		}
	}
	return out
}

// FreeFile is the explicit release counterpart to FindFile, named for
// parity with UDFFreeFile. Go's GC makes this non-essential, but it gives
// callers (and their own leak-detection tests) a real hook: the File's
// decoded metadata is dropped immediately rather than whenever the next GC
// cycle runs.
func (r *Reader) FreeFile(f *File) {
	if f != nil {
		f.Release()
	}
}
