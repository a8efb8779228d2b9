package udf

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// TestDirectoryCursorNonEmbedded exercises the non-embedded path through
// NewDirectoryCursor/Next: a directory addressed via a single long_ad extent,
// read through the real FileBlockDir/translateFileBlock/readBlockCached
// stack rather than the embedded shortcut volume_test.go's synthetic root
// directory takes.
func TestDirectoryCursorNonEmbedded(t *testing.T) {
	const dirBlock = 5
	const childBlock = 10
	const totalBlocks = 20

	data := make([]byte, totalBlocks*SectorSize)

	// Directory content: one FID for "FILE.TXT".
	fid := buildFID(t, "FILE.TXT", LongAD{
		ExtentLength:   SectorSize,
		ExtentLocation: LBAddr{LogicalBlockNumber: childBlock, PartitionReferenceNumber: 0},
	})
	copy(data[dirBlock*SectorSize:], fid)

	// Child File Entry: embedded one-byte content.
	childFE := FileEntry{
		DescriptorTag:                 Tag{TagIdentifier: TagFile},
		ICBTag:                        ICBTag{FileType: ICBFileTypeFile, Flags: 3},
		InformationLength:             1,
		LengthOfAllocationDescriptors: 1,
	}
	var childBuf bytes.Buffer
	if err := binary.Write(&childBuf, binary.LittleEndian, childFE); err != nil {
		t.Fatal(err)
	}
	childBuf.WriteByte('X')
	copy(data[childBlock*SectorSize:], childBuf.Bytes())

	r := &Reader{
		source:          newMemoryBlockSource(data),
		config:          readerConfig{legacyBlockTranslation: true, maxADChains: MaxADChains},
		blockSize:       SectorSize,
		partitionStarts: map[uint16]uint32{},
	}

	// Directory's own File Entry: a single long_ad extent at dirBlock,
	// addressed through the AD table directly (white-box: entry/data set
	// without a real ICB decode, same as blockaddr_test.go).
	longAD := LongAD{ExtentLength: SectorSize, ExtentLocation: LBAddr{LogicalBlockNumber: dirBlock, PartitionReferenceNumber: 0}}
	var adBuf bytes.Buffer
	if err := binary.Write(&adBuf, binary.LittleEndian, longAD); err != nil {
		t.Fatal(err)
	}
	view := fileEntryView{
		icbTag:            ICBTag{FileType: ICBFileTypeDirectory, Flags: 1}, // long_ad, non-embedded
		informationLength: uint64(len(fid)),
		allocDescLength:   uint32(adBuf.Len()),
		contentOffset:     0,
	}
	dir := &File{reader: r, Name: "", entry: &view, data: adBuf.Bytes()}

	cursor, err := r.NewDirectoryCursor(dir)
	if err != nil {
		t.Fatalf("NewDirectoryCursor: %v", err)
	}

	entry, ok, err := cursor.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !ok {
		t.Fatalf("expected one entry")
	}
	if entry.Name != "FILE.TXT" {
		t.Fatalf("Name = %q, want FILE.TXT", entry.Name)
	}
	if entry.IsDirectory {
		t.Fatalf("expected a regular file")
	}
	if entry.Size != 1 {
		t.Fatalf("Size = %d, want 1", entry.Size)
	}

	_, ok, err = cursor.Next()
	if err != nil {
		t.Fatalf("second Next: %v", err)
	}
	if ok {
		t.Fatalf("expected directory to be exhausted")
	}
}
