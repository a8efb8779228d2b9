package udf

import "testing"

// These decoders run directly against bytes read off an untrusted optical
// image, so they're the fuzz targets SPEC_FULL.md's test-tooling section
// calls for: arbitrary, possibly-truncated or -malformed input must produce
// an error, never a panic.

func FuzzDecodeFileIdentifier(f *testing.F) {
	f.Add([]byte{})
	f.Add(make([]byte, 38))
	seed, err := dummyFID()
	if err == nil {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("decodeFileIdentifier panicked on %x: %v", data, r)
			}
		}()
		_, _, _ = decodeFileIdentifier(data)
	})
}

func FuzzUnicodeDecode(f *testing.F) {
	f.Add([]byte{8, 'A', 'B'}, 3)
	f.Add([]byte{16, 0, 'A', 0, 'B'}, 5)
	f.Add([]byte{}, 0)

	f.Fuzz(func(t *testing.T, data []byte, maxLen int) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("unicodeDecode panicked on %x (maxLen=%d): %v", data, maxLen, r)
			}
		}()
		_, _ = unicodeDecode(data, maxLen)
	})
}

func FuzzParsePartitionMaps(f *testing.F) {
	f.Add([]byte{1, 6, 0, 0, 0, 0}, uint32(1))
	f.Add([]byte{}, uint32(0))
	f.Add([]byte{2, 5}, uint32(1))

	f.Fuzz(func(t *testing.T, data []byte, n uint32) {
		if n > 1<<16 {
			t.Skip("unreasonable map count")
		}
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("parsePartitionMaps panicked on %x (n=%d): %v", data, n, r)
			}
		}()
		_, _ = parsePartitionMaps(data, n)
	})
}

func dummyFID() ([]byte, error) {
	data := make([]byte, 48)
	// Tag identifier 257 (LE uint16) at offset 0.
	data[0] = 0x01
	data[1] = 0x01
	data[19] = 10 // LengthOfFileIdentifier
	data[36] = 0  // LengthOfImplementationUse
	data[37] = 0
	name := append([]byte{8}, []byte("HELLO.TXT")...)
	copy(data[38:48], name)
	return data, nil
}
