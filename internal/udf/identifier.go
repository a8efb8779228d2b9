package udf

// VolumeIdentifier returns the Primary Volume Descriptor's VolumeIdentifier
// field (PVD offset 24, 32 bytes), unicode-decoded per UDFGetVolumeIdentifier.
// It returns the empty string if Open never saw a PVD.
func (r *Reader) VolumeIdentifier() string {
	if r.pvd == nil {
		return ""
	}
	s, _ := unicodeDecode(r.pvd.VolumeIdentifier[:], len(r.pvd.VolumeIdentifier))
	return s
}

// VolumeSetIdentifier returns the Primary Volume Descriptor's
// VolumeSetIdentifier field (PVD offset 72, 128 bytes) as a raw dstring,
// matching UDFGetVolumeSetIdentifier's choice not to unicode-decode it: the
// 128-byte field is returned byte-for-byte, trailing padding included.
func (r *Reader) VolumeSetIdentifier() []byte {
	if r.pvd == nil {
		return nil
	}
	out := make([]byte, len(r.pvd.VolumeSetIdentifier))
	copy(out, r.pvd.VolumeSetIdentifier[:])
	return out
}
