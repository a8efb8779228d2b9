package udf

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// image builds a synthetic UDF volume in memory block by block: the volume
// recognition sequence, one anchor, a minimal main volume descriptor
// sequence (PVD/PD/LVD/terminator), a file set descriptor, and a root
// directory whose single child is a small regular file. It exists to drive
// Reader.open end to end without a real optical image fixture.
type image struct {
	blocks map[uint32][]byte
}

func newImage() *image {
	return &image{blocks: map[uint32][]byte{}}
}

func (im *image) put(block uint32, payload []byte) {
	buf := make([]byte, SectorSize)
	copy(buf, payload)
	im.blocks[block] = buf
}

// putStruct encodes v with binary.Write and writes it at block, matching
// the wire layout decodeFixed expects on read-back.
func (im *image) putStruct(block uint32, v any) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		panic(err)
	}
	im.put(block, buf.Bytes())
}

func (im *image) totalBlocks() uint32 {
	var max uint32
	for b := range im.blocks {
		if b > max {
			max = b
		}
	}
	return max + 1
}

func (im *image) source() *memoryBlockSource {
	total := im.totalBlocks()
	data := make([]byte, int(total)*SectorSize)
	for b, payload := range im.blocks {
		copy(data[int(b)*SectorSize:], payload)
	}
	return newMemoryBlockSource(data)
}

const (
	imgAnchorBlock  = 256
	imgMVDSBlock    = 300
	imgPVDBlock     = 300
	imgPDBlock      = 301
	imgLVDBlock     = 302
	imgTermBlock    = 303
	imgPartStart    = 500
	imgFSDPartLBN   = 10
	imgRootPartLBN  = 20
	imgChildPartLBN = 21
	imgDataPartLBN  = 22
)

func buildSyntheticVolume(t *testing.T) *image {
	t.Helper()
	im := newImage()

	// Volume Recognition Sequence: BEA01, NSR02, TEA01.
	im.put(16, append([]byte{0}, []byte("BEA01")...))
	im.put(17, append([]byte{0}, []byte("NSR02")...))
	im.put(18, append([]byte{0}, []byte("TEA01")...))

	// Anchor Volume Descriptor Pointer.
	im.putStruct(imgAnchorBlock, AnchorVolumeDescriptorPointer{
		DescriptorTag:                      Tag{TagIdentifier: TagAnchorVolume},
		MainVolumeDescriptorSequenceExtent: ExtentAD{Length: 4 * SectorSize, Location: imgMVDSBlock},
	})

	// Primary Volume Descriptor.
	pvd := PrimaryVolumeDescriptor{DescriptorTag: Tag{TagIdentifier: TagPrimaryVolume}}
	copy(pvd.VolumeIdentifier[:], append([]byte{8}, []byte("TESTVOL")...))
	im.putStruct(imgPVDBlock, pvd)

	// Partition Descriptor: partition 0 starts at imgPartStart.
	im.putStruct(imgPDBlock, PartitionDescriptor{
		DescriptorTag:             Tag{TagIdentifier: TagPartition},
		PartitionNumber:           0,
		PartitionStartingLocation: imgPartStart,
		PartitionLength:           1000,
	})

	// Logical Volume Descriptor, with a single type-1 partition map
	// appended immediately after the fixed struct.
	lvd := LogicalVolumeDescriptor{
		DescriptorTag:          Tag{TagIdentifier: TagLogicalVolume},
		LogicalBlockSize:       SectorSize,
		MapTableLength:         6,
		NumberOfPartitionMaps:  1,
	}
	binary.LittleEndian.PutUint32(lvd.LogicalVolumeContentsUse[4:8], imgFSDPartLBN)
	var lvdBuf bytes.Buffer
	if err := binary.Write(&lvdBuf, binary.LittleEndian, lvd); err != nil {
		t.Fatal(err)
	}
	partitionMap1 := []byte{1, 6, 0, 0, 0, 0} // type=1, len=6, partition number=0
	lvdBuf.Write(partitionMap1)
	im.put(imgLVDBlock, lvdBuf.Bytes())

	// Terminating descriptor, closing the main sequence.
	im.putStruct(imgTermBlock, Tag{TagIdentifier: TagTerminating})

	// File Set Descriptor, at partition-relative block imgFSDPartLBN.
	im.putStruct(imgPartStart+imgFSDPartLBN, FileSetDescriptor{
		DescriptorTag: Tag{TagIdentifier: TagFileSet},
		RootDirectoryICB: LongAD{
			ExtentLength:   SectorSize,
			ExtentLocation: LBAddr{LogicalBlockNumber: imgRootPartLBN, PartitionReferenceNumber: 0},
		},
	})

	// Root directory File Entry: embedded content holding one FID for
	// "HELLO.TXT".
	fid := buildFID(t, "HELLO.TXT", LongAD{
		ExtentLength:   SectorSize,
		ExtentLocation: LBAddr{LogicalBlockNumber: imgChildPartLBN, PartitionReferenceNumber: 0},
	})
	rootFE := FileEntry{
		DescriptorTag:                 Tag{TagIdentifier: TagFile},
		ICBTag:                        ICBTag{FileType: ICBFileTypeDirectory, Flags: 3}, // embedded
		InformationLength:             uint64(len(fid)),
		LengthOfAllocationDescriptors: uint32(len(fid)),
	}
	var rootBuf bytes.Buffer
	if err := binary.Write(&rootBuf, binary.LittleEndian, rootFE); err != nil {
		t.Fatal(err)
	}
	if rootBuf.Len() != fileEntryFixedSize {
		t.Fatalf("FileEntry fixed size mismatch: got %d, want %d", rootBuf.Len(), fileEntryFixedSize)
	}
	rootBuf.Write(fid)
	im.put(imgPartStart+imgRootPartLBN, rootBuf.Bytes())

	// Child File Entry: one short_ad extent pointing at the content block.
	content := []byte("hello world")
	childFE := FileEntry{
		DescriptorTag:                 Tag{TagIdentifier: TagFile},
		ICBTag:                        ICBTag{FileType: ICBFileTypeFile, Flags: 0}, // short_ad
		InformationLength:             uint64(len(content)),
		LengthOfAllocationDescriptors: 8,
	}
	var childBuf bytes.Buffer
	if err := binary.Write(&childBuf, binary.LittleEndian, childFE); err != nil {
		t.Fatal(err)
	}
	shortAD := make([]byte, 8)
	binary.LittleEndian.PutUint32(shortAD[0:4], uint32(len(content))) // flags 0: recorded+allocated
	binary.LittleEndian.PutUint32(shortAD[4:8], imgDataPartLBN)
	childBuf.Write(shortAD)
	im.put(imgPartStart+imgChildPartLBN, childBuf.Bytes())

	// File content block.
	im.put(imgPartStart+imgDataPartLBN, content)

	return im
}

// buildFID encodes a single File Identifier Descriptor for an 8-bit
// compressed name, following decodeFileIdentifier's layout exactly.
func buildFID(t *testing.T, name string, icb LongAD) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, Tag{TagIdentifier: TagFileIdentifier}); err != nil {
		t.Fatal(err)
	}
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // FileVersionNumber
	buf.WriteByte(0)                                   // Characteristics
	nameBytes := append([]byte{8}, []byte(name)...)    // compression ID 8 + raw chars
	buf.WriteByte(byte(len(nameBytes)))                // LengthOfFileIdentifier
	if err := binary.Write(&buf, binary.LittleEndian, icb); err != nil {
		t.Fatal(err)
	}
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // LengthOfImplementationUse
	buf.Write(nameBytes)

	out := buf.Bytes()
	for len(out)%4 != 0 {
		out = append(out, 0)
	}
	return out
}

func TestReaderOpenResolvesRootAndChild(t *testing.T) {
	im := buildSyntheticVolume(t)
	r, err := NewReaderFromSource(im.source())
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, "TESTVOL", r.VolumeIdentifier())

	root, err := r.FindFile("/")
	require.NoError(t, err)
	require.True(t, root.IsDirectory())

	child, err := r.FindFile("/HELLO.TXT")
	require.NoError(t, err)
	require.False(t, child.IsDirectory())
	require.EqualValues(t, len("hello world"), child.Size())

	rc, err := child.Open()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}

func TestReaderFindFileIsCaseInsensitive(t *testing.T) {
	im := buildSyntheticVolume(t)
	r, err := NewReaderFromSource(im.source())
	require.NoError(t, err)
	defer r.Close()

	f, err := r.FindFile("/hello.txt")
	require.NoError(t, err)
	require.Equal(t, "HELLO.TXT", f.Name)
}

func TestReaderFindFileMissingReturnsErrNotFound(t *testing.T) {
	im := buildSyntheticVolume(t)
	r, err := NewReaderFromSource(im.source())
	require.NoError(t, err)
	defer r.Close()

	_, err = r.FindFile("/NOPE.TXT")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNewReaderFromSourceRejectsNonUDFImage(t *testing.T) {
	im := newImage()
	im.put(16, []byte{0}) // no BEA01/NSR0x anywhere
	_, err := NewReaderFromSource(im.source())
	require.Error(t, err)
}
