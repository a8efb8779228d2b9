package udf

import "testing"

func TestUnicodeDecode8Bit(t *testing.T) {
	data := []byte{8, 'H', 'E', 'L', 'L', 'O', ' ', ' '}
	got, lossless := unicodeDecode(data, len(data))
	if got != "HELLO" {
		t.Fatalf("got %q, want %q", got, "HELLO")
	}
	if !lossless {
		t.Fatalf("expected lossless decode")
	}
}

func TestUnicodeDecode16BitLossy(t *testing.T) {
	// Compression ID 16: each character is a high byte then a low byte.
	// A non-zero high byte (0x01) should be flagged as a lossy decode.
	data := []byte{16, 0x01, 'A', 0x00, 'B'}
	got, lossless := unicodeDecode(data, len(data))
	if got != "AB" {
		t.Fatalf("got %q, want %q", got, "AB")
	}
	if lossless {
		t.Fatalf("expected lossy decode when a 16-bit unit has a non-zero high byte")
	}
}

func TestUnicodeDecodeEmpty(t *testing.T) {
	got, lossless := unicodeDecode(nil, 0)
	if got != "" || !lossless {
		t.Fatalf("empty input should decode to empty, lossless; got %q, %v", got, lossless)
	}
}

func TestUnicodeDecodeUnknownCompression(t *testing.T) {
	got, lossless := unicodeDecode([]byte{3, 'x'}, 2)
	if got != "" || !lossless {
		t.Fatalf("unknown compression ID should decode to empty string; got %q, %v", got, lossless)
	}
}

func TestDecodeDString8Bit(t *testing.T) {
	data := append([]byte{8}, []byte("MY_VOLUME  ")...)
	if got := decodeDString(data); got != "MY_VOLUME" {
		t.Fatalf("got %q", got)
	}
}

func TestDecodeDString16BitBigEndian(t *testing.T) {
	// "AB" as 16-bit big-endian code units, compression ID 16.
	data := []byte{16, 0x00, 'A', 0x00, 'B', 0x00, 0x00}
	if got := decodeDString(data); got != "AB" {
		t.Fatalf("got %q", got)
	}
}

func TestDecodeDStringEmpty(t *testing.T) {
	if got := decodeDString(nil); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

func TestDecodeShortADSplitsFlags(t *testing.T) {
	buf := make([]byte, 8)
	// Top two bits of ExtentLength (0x40000000) select flag value 1
	// ("allocated, not recorded"); low 30 bits are the actual length.
	putLE32(buf[0:4], 0x40000000|1234)
	putLE32(buf[4:8], 999)

	ad, err := decodeShortAD(buf, 7)
	if err != nil {
		t.Fatalf("decodeShortAD: %v", err)
	}
	if ad.Flags != 1 {
		t.Fatalf("Flags = %d, want 1", ad.Flags)
	}
	if ad.Length != 1234 {
		t.Fatalf("Length = %d, want 1234", ad.Length)
	}
	if ad.Location != 999 {
		t.Fatalf("Location = %d, want 999", ad.Location)
	}
	if ad.Partition != 7 {
		t.Fatalf("Partition = %d, want 7 (caller-supplied default)", ad.Partition)
	}
}

func TestParsePartitionMapsType1(t *testing.T) {
	// type=1, length=6, reserved(2), partition number=3 (LE uint16).
	pm := []byte{1, 6, 0, 0, 3, 0}
	maps, err := parsePartitionMaps(pm, 1)
	if err != nil {
		t.Fatalf("parsePartitionMaps: %v", err)
	}
	if len(maps) != 1 || maps[0].kind != partitionMapType1 || maps[0].partitionNumber != 3 {
		t.Fatalf("unexpected maps: %+v", maps)
	}
}

func TestParsePartitionMapsRejectsTruncatedHeader(t *testing.T) {
	if _, err := parsePartitionMaps([]byte{1}, 1); err == nil {
		t.Fatalf("expected error for truncated partition map header")
	}
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
