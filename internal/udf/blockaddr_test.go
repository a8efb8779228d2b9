package udf

import "testing"

// syntheticMultiExtentFile builds a File whose cached fileEntryView already
// reports two non-embedded allocation descriptors, bypassing mapICB/block
// reads entirely: translateFileBlock only needs rawAllocationDescriptors,
// and ensureEntry short-circuits once f.entry is set.
func syntheticMultiExtentFile(r *Reader) *File {
	view := fileEntryView{
		icbTag:          ICBTag{FileType: ICBFileTypeFile, Flags: 0}, // AllocationType 0: short_ad, not embedded
		allocDescLength: 16,
		contentOffset:   0,
	}
	data := make([]byte, 16)
	// Two short_ad entries, each recorded+allocated (top flag bits zero):
	// extent 0 covers 4 blocks starting at block 100, extent 1 covers 4
	// blocks starting at block 900.
	putLE32(data[0:4], 4*SectorSize)
	putLE32(data[4:8], 100)
	putLE32(data[8:12], 4*SectorSize)
	putLE32(data[12:16], 900)

	return &File{reader: r, Name: "multi.bin", entry: &view, data: data}
}

func newTestReader(legacy bool) *Reader {
	return &Reader{
		config: readerConfig{
			legacyBlockTranslation: legacy,
			maxADChains:            MaxADChains,
		},
		blockSize:       SectorSize,
		partitionStart:  1000,
		fsdLocation:     2000,
		partitionStarts: map[uint16]uint32{},
	}
}

func TestTranslateFileBlockLegacyAlwaysUsesFirstExtent(t *testing.T) {
	r := newTestReader(true)
	f := syntheticMultiExtentFile(r)

	// Block 5 lives in the second extent on a correctly-tracked chain, but
	// the legacy translator never advances past AD[0].
	got, err := r.FileBlockFile(f, 5)
	if err != nil {
		t.Fatalf("FileBlockFile: %v", err)
	}
	want := uint32(100+5) + r.partitionStart
	if got != want {
		t.Fatalf("got %d, want %d (AD[0].Location + fileBlock + partitionStart)", got, want)
	}
}

func TestTranslateFileBlockCorrectedAdvancesAcrossExtents(t *testing.T) {
	r := newTestReader(false)
	f := syntheticMultiExtentFile(r)

	// Block 5 is one block into the second extent (extent 0 spans blocks
	// 0-3 of the file).
	got, err := r.FileBlockDir(f, 5)
	if err != nil {
		t.Fatalf("FileBlockDir: %v", err)
	}
	want := uint32(900+1) + r.fsdLocation
	if got != want {
		t.Fatalf("got %d, want %d (AD[1].Location + (fileBlock-cum) + fsdLocation)", got, want)
	}
}

func TestTranslateFileBlockNoAllocationDescriptorsPassesThrough(t *testing.T) {
	r := newTestReader(false)
	view := fileEntryView{icbTag: ICBTag{FileType: ICBFileTypeFile}}
	f := &File{reader: r, entry: &view, data: nil}

	got, err := r.FileBlockFile(f, 42)
	if err != nil {
		t.Fatalf("FileBlockFile: %v", err)
	}
	if got != 42+r.partitionStart {
		t.Fatalf("got %d, want %d", got, 42+r.partitionStart)
	}
}
