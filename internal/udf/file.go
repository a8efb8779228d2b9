package udf

import (
	"bytes"
	"fmt"
	"io"
	"time"
)

// ICBTag is the Information Control Block tag embedded at the start of
// both FileEntry and ExtendedFileEntry (ECMA-167 4/14.6).
type ICBTag struct {
	PriorRecordedNumberOfDirectEntries uint32
	StrategyType                       uint16
	StrategyParameter                  [2]byte
	MaximumNumberOfEntries             uint16
	Reserved                           byte
	FileType                           uint8
	ParentICBLocation                  LBAddr
	Flags                              uint16
}

// AllocationType returns the low 3 bits of ICBTag.Flags: the allocation
// descriptor format governing how this ICB's data/directory content is
// laid out (0=short_ad, 1=long_ad, 2=ext_ad, 3=embedded in the ICB itself).
func (t ICBTag) AllocationType() uint16 { return t.Flags & 0x7 }

// Embedded reports whether file/directory content is embedded directly in
// the ICB's allocation-descriptor space rather than referenced through an
// allocation descriptor chain. This is ICB_DATA_IN_AD_SPACE(flags) from the
// reference implementation — flags&7==3, nothing more. The teacher's Go
// port additionally treated a zero allocation-descriptor length with a
// nonzero information length as embedded; that heuristic is dropped here in
// favor of the one-bit test the format actually specifies.
func (t ICBTag) Embedded() bool { return t.AllocationType() == 3 }

// FileEntry is a UDF File Entry (ECMA-167 4/14.9), used for ICBs whose
// descriptor tag is TagFile.
type FileEntry struct {
	DescriptorTag                 Tag
	ICBTag                        ICBTag
	UID                           uint32
	GID                           uint32
	Permissions                   uint32
	FileLinkCount                 uint16
	RecordFormat                  uint8
	RecordDisplayAttributes       uint8
	RecordLength                  uint32
	InformationLength             uint64
	LogicalBlocksRecorded         uint64
	AccessTime                    Timestamp
	ModificationTime              Timestamp
	AttributeTime                 Timestamp
	Checkpoint                    uint32
	ExtendedAttributeICB          LongAD
	ImplementationIdentifier      EntityID
	UniqueID                      uint64
	LengthOfExtendedAttributes    uint32
	LengthOfAllocationDescriptors uint32
	// Extended attributes and allocation descriptors follow in the block.
}

// fileEntryFixedSize is the byte offset at which extended attributes begin
// in a FileEntry block (offset 176 in the reference implementation).
const fileEntryFixedSize = 176

// ExtendedFileEntry is a UDF Extended File Entry (ECMA-167 4/14.17), used
// for ICBs whose descriptor tag is TagExtendedFileEntry. UDF 2.50+ prefers
// this form; BD-ROM metadata files in particular are always extended file
// entries.
type ExtendedFileEntry struct {
	DescriptorTag                 Tag
	ICBTag                        ICBTag
	UID                           uint32
	GID                           uint32
	Permissions                   uint32
	FileLinkCount                 uint16
	RecordFormat                  uint8
	RecordDisplayAttributes       uint8
	RecordLength                  uint32
	InformationLength             uint64
	ObjectSize                    uint64
	LogicalBlocksRecorded         uint64
	AccessTime                    Timestamp
	ModificationTime              Timestamp
	CreateTime                    Timestamp
	AttributeTime                 Timestamp
	Checkpoint                    uint32
	Reserved                      [4]byte
	ExtendedAttributeICB          LongAD
	StreamDirectoryICB            LongAD
	ImplementationIdentifier      EntityID
	UniqueID                      uint64
	LengthOfExtendedAttributes    uint32
	LengthOfAllocationDescriptors uint32
}

// extendedFileEntryFixedSize is the byte offset at which extended
// attributes begin in an ExtendedFileEntry block (offset 216).
const extendedFileEntryFixedSize = 216

// fileEntryView normalizes the two wire forms so the ICB mapper, allocation
// decoder, and directory reader don't need a type switch at every call
// site.
type fileEntryView struct {
	icbTag            ICBTag
	informationLength uint64
	modTime           Timestamp
	extAttrLength     uint32
	allocDescLength   uint32
	fixedSize         int64
	contentOffset     int64 // base offset of embedded content / AD table within the block
}

func viewFileEntry(e any) (fileEntryView, error) {
	switch fe := e.(type) {
	case *FileEntry:
		return fileEntryView{
			icbTag:            fe.ICBTag,
			informationLength: fe.InformationLength,
			modTime:           fe.ModificationTime,
			extAttrLength:     fe.LengthOfExtendedAttributes,
			allocDescLength:   fe.LengthOfAllocationDescriptors,
			fixedSize:         fileEntryFixedSize,
			contentOffset:     fileEntryFixedSize + int64(fe.LengthOfExtendedAttributes),
		}, nil
	case *ExtendedFileEntry:
		return fileEntryView{
			icbTag:            fe.ICBTag,
			informationLength: fe.InformationLength,
			modTime:           fe.ModificationTime,
			extAttrLength:     fe.LengthOfExtendedAttributes,
			allocDescLength:   fe.LengthOfAllocationDescriptors,
			fixedSize:         extendedFileEntryFixedSize,
			contentOffset:     extendedFileEntryFixedSize + int64(fe.LengthOfExtendedAttributes),
		}, nil
	default:
		return fileEntryView{}, fmt.Errorf("%w: not a file entry: %T", ErrMalformed, e)
	}
}

// File is a single UDF file: an ICB plus whatever the reader needs to
// resolve its content on demand. Values are copies; nothing about a File
// mutates the Reader's own state except via the shared block cache.
type File struct {
	reader *Reader
	Name   string
	icb    LongAD
	entry  *fileEntryView
	data   []byte
}

// Release drops the file's cached metadata, matching the lifecycle contract
// in spec: a File remains usable after Release (it will simply re-resolve
// its ICB on next access) but no longer holds decoded state.
func (f *File) Release() {
	f.entry = nil
	f.data = nil
}

func (f *File) ensureEntry() (fileEntryView, error) {
	if f.entry != nil {
		return *f.entry, nil
	}
	raw, data, err := f.reader.readFileEntryRaw(f.icb)
	if err != nil {
		return fileEntryView{}, err
	}
	v, err := viewFileEntry(raw)
	if err != nil {
		return fileEntryView{}, err
	}
	f.entry = &v
	f.data = data
	return v, nil
}

// rawAllocationDescriptors returns f's allocation descriptor chain with
// Location left partition-relative (not resolved through resolveLBAddr),
// the form FileBlockFile/FileBlockDir walk directly. Embedded files report
// no allocation descriptors, same as allocationDescriptors itself.
func (f *File) rawAllocationDescriptors() ([]AllocationDescriptor, error) {
	view, err := f.ensureEntry()
	if err != nil {
		return nil, err
	}
	return f.reader.allocationDescriptors(view, f.data, f.icb.ExtentLocation.PartitionReferenceNumber)
}

// Size returns the file's length in bytes.
func (f *File) Size() int64 {
	v, err := f.ensureEntry()
	if err != nil {
		return 0
	}
	return int64(v.informationLength)
}

// ModTime returns the file's modification time.
func (f *File) ModTime() time.Time {
	v, err := f.ensureEntry()
	if err != nil {
		return time.Time{}
	}
	return convertTimestamp(v.modTime)
}

// IsDirectory reports whether the ICB this File wraps describes a
// directory. Regular File values returned from GetFiles never need this,
// but FindFile uses it (through OpenDirectory) to check each directory it
// descends through; the final path component is not checked.
func (f *File) IsDirectory() bool {
	v, err := f.ensureEntry()
	if err != nil {
		return false
	}
	return v.icbTag.FileType == ICBFileTypeDirectory
}

func convertTimestamp(ts Timestamp) time.Time {
	if ts.Year == 0 {
		return time.Time{}
	}
	return time.Date(
		int(ts.Year),
		time.Month(ts.Month),
		int(ts.Day),
		int(ts.Hour),
		int(ts.Minute),
		int(ts.Second),
		int(ts.Microseconds)*1000,
		time.UTC,
	)
}

// readFileEntryRaw resolves an ICB to its decoded FileEntry/ExtendedFileEntry,
// delegating the actual tag-bounded scan to icb.go's mapICB — the same
// routine Open()'s root-ICB resolution and the metadata-file bootstrap use,
// so there is exactly one implementation of UDFMapICB's block walk.
func (r *Reader) readFileEntryRaw(icb LongAD) (any, []byte, error) {
	return r.mapICB(icb)
}

// allocationDescriptors extracts and decodes the allocation descriptor
// chain for a non-embedded file entry, following UDFFileEntry/
// UDFExtFileEntry's AD_chain loop: read entries one at a time out of the
// allocation-descriptor space until that space is exhausted, failing
// outright (not truncating) if more than MaxADChains are needed.
func (r *Reader) allocationDescriptors(view fileEntryView, data []byte, defaultPartition uint16) ([]AllocationDescriptor, error) {
	if view.icbTag.Embedded() {
		return nil, nil
	}
	if view.allocDescLength == 0 {
		return nil, nil
	}

	allocType := view.icbTag.AllocationType()
	var stride int
	switch allocType {
	case 0:
		stride = 8
	case 1:
		stride = 16
	case 2:
		stride = 20
	default:
		return nil, fmt.Errorf("%w: unsupported allocation descriptor type %d", ErrMalformed, allocType)
	}

	start := view.contentOffset
	end := start + int64(view.allocDescLength)
	if start < 0 || end > int64(len(data)) {
		return nil, fmt.Errorf("%w: allocation descriptor table out of range", ErrMalformed)
	}
	table := data[start:end]

	var out []AllocationDescriptor
	for p := 0; p+stride <= len(table); p += stride {
		if len(out) >= r.config.maxADChains {
			return nil, fmt.Errorf("%w: exceeded %d entries", ErrCapacityExceeded, r.config.maxADChains)
		}
		var (
			ad  AllocationDescriptor
			err error
		)
		switch allocType {
		case 0:
			ad, err = decodeShortAD(table[p:p+stride], defaultPartition)
		case 1:
			ad, err = decodeLongAD(table[p : p+stride])
		case 2:
			ad, err = decodeExtendedAD(table[p : p+stride])
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ad)
	}
	return out, nil
}

// embeddedContent returns the bytes embedded directly in an ICB's
// allocation-descriptor space (flags&7==3), per ICBFileEntry's
// `fad->content_offset = p; fad->Length = L_AD` branch.
func embeddedContent(view fileEntryView, data []byte) ([]byte, error) {
	start := view.contentOffset
	end := start + int64(view.allocDescLength)
	if start < 0 || end > int64(len(data)) {
		return nil, fmt.Errorf("%w: embedded content out of range", ErrMalformed)
	}
	return data[start:end], nil
}

// Open returns a reader over the file's content, stitched together across
// however many allocation descriptors it took to describe it.
func (f *File) Open() (io.ReadCloser, error) {
	raw, data, err := f.reader.readFileEntryRaw(f.icb)
	if err != nil {
		return nil, err
	}
	view, err := viewFileEntry(raw)
	if err != nil {
		return nil, err
	}

	size := int64(view.informationLength)
	if size < 0 {
		size = 0
	}

	if view.icbTag.Embedded() {
		content, err := embeddedContent(view, data)
		if err != nil {
			return nil, err
		}
		if int64(len(content)) > size {
			content = content[:size]
		}
		return io.NopCloser(bytes.NewReader(content)), nil
	}

	ads, err := f.reader.allocationDescriptors(view, data, f.icb.ExtentLocation.PartitionReferenceNumber)
	if err != nil {
		return nil, err
	}
	if len(ads) == 0 {
		return &fileReader{reader: f.reader, size: 0}, nil
	}

	exts := make([]extent, 0, len(ads))
	var fileOff int64
	for _, ad := range ads {
		if ad.Length == 0 || fileOff >= size {
			continue
		}
		block, err := f.reader.resolvePartitionBlock(ad.Partition, ad.Location)
		if err != nil {
			return nil, err
		}
		segLen := int64(ad.Length)
		if fileOff+segLen > size {
			segLen = size - fileOff
		}
		exts = append(exts, extent{
			fileStart: fileOff,
			fileEnd:   fileOff + segLen,
			physOff:   int64(block) * int64(blockSizeOf(f.reader)),
		})
		fileOff += segLen
	}
	if len(exts) == 0 {
		return &fileReader{reader: f.reader, size: 0}, nil
	}
	if len(exts) == 1 && exts[0].fileStart == 0 {
		return &fileReader{reader: f.reader, offset: exts[0].physOff, size: exts[0].fileEnd}, nil
	}
	return &extentReader{reader: f.reader, extents: exts, size: size}, nil
}

func blockSizeOf(r *Reader) uint32 {
	if r.blockSize == 0 {
		return SectorSize
	}
	return r.blockSize
}

type extent struct {
	fileStart int64
	fileEnd   int64
	physOff   int64
}

// fileReader implements io.ReadCloser for a single contiguous extent.
type fileReader struct {
	reader   *Reader
	offset   int64
	size     int64
	position int64
}

func (fr *fileReader) Read(p []byte) (int, error) {
	if fr.position >= fr.size {
		return 0, io.EOF
	}
	toRead := len(p)
	if remaining := fr.size - fr.position; int64(toRead) > remaining {
		toRead = int(remaining)
	}
	n, err := fr.reader.readAt(fr.offset+fr.position, p[:toRead])
	fr.position += int64(n)
	if fr.position >= fr.size && err == nil {
		err = io.EOF
	}
	return n, err
}

func (fr *fileReader) Close() error { return nil }

// extentReader implements io.ReadCloser by stitching together a
// discontiguous run of extents in file order.
type extentReader struct {
	reader  *Reader
	extents []extent
	size    int64

	pos int64
	idx int
}

func (er *extentReader) Read(p []byte) (int, error) {
	if er.pos >= er.size {
		return 0, io.EOF
	}
	toRead := len(p)
	if remaining := er.size - er.pos; int64(toRead) > remaining {
		toRead = int(remaining)
	}

	n := 0
	for n < toRead {
		if er.idx >= len(er.extents) {
			if n == 0 {
				return 0, io.EOF
			}
			return n, io.EOF
		}
		ex := er.extents[er.idx]
		if er.pos >= ex.fileEnd {
			er.idx++
			continue
		}
		if er.pos < ex.fileStart {
			er.pos = ex.fileStart
		}
		inExtent := ex.fileEnd - er.pos
		want := toRead - n
		if int64(want) > inExtent {
			want = int(inExtent)
		}
		off := ex.physOff + (er.pos - ex.fileStart)
		nn, rerr := er.reader.readAt(off, p[n:n+want])
		n += nn
		er.pos += int64(nn)
		if rerr != nil {
			if rerr == io.EOF {
				er.idx++
				continue
			}
			return n, rerr
		}
		if nn < want {
			er.idx++
		}
	}
	if er.pos >= er.size {
		return n, io.EOF
	}
	return n, nil
}

func (er *extentReader) Close() error { return nil }
