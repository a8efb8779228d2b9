package udf

import "errors"

// Sentinel errors a caller can test for with errors.Is. Every wrapping site
// adds context with fmt.Errorf("...: %w", ...) rather than minting a new
// error type, matching how the rest of this corpus reports I/O failures.
var (
	// ErrNotUDF means the Volume Recognition Sequence never produced an
	// NSR02/NSR03 descriptor.
	ErrNotUDF = errors.New("udf: not a UDF volume")

	// ErrAnchorNotFound means no Anchor Volume Descriptor Pointer was found
	// at any of the locations this package tries.
	ErrAnchorNotFound = errors.New("udf: anchor volume descriptor not found")

	// ErrMalformed means a descriptor failed a bounds or tag sanity check.
	ErrMalformed = errors.New("udf: malformed descriptor")

	// ErrShortRead means the block source returned fewer bytes than a full
	// logical block, including a read that runs past the end of the image.
	ErrShortRead = errors.New("udf: short block read")

	// ErrCapacityExceeded means an ICB's allocation descriptor chain would
	// need more than MaxADChains entries. The reference implementation fails
	// the mapping outright rather than truncating the chain.
	ErrCapacityExceeded = errors.New("udf: allocation descriptor chain too long")

	// ErrNotFound means a path component did not resolve to any directory
	// entry.
	ErrNotFound = errors.New("udf: not found")

	// ErrNotADirectory means a directory operation (OpenDirectory,
	// NewDirectoryCursor) was given a File that is not a directory. FindFile
	// reports a path whose intermediate component names a regular file as
	// ErrNotFound, since it only searches directories for those components.
	ErrNotADirectory = errors.New("udf: not a directory")
)
