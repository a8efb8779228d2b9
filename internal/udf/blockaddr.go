package udf

import "fmt"

// resolvePartitionBlock resolves a (partition reference, logical block
// number) pair to an absolute image block, the two-argument form
// UDFMapICB's callers use when they already have Location/PartitionRef
// split out rather than bundled into an LBAddr.
func (r *Reader) resolvePartitionBlock(partRef uint16, lbn uint32) (uint32, error) {
	return r.resolveLBAddr(LBAddr{
		LogicalBlockNumber:       lbn,
		PartitionReferenceNumber: partRef,
	})
}

// resolveLBAddr resolves a logical block address through the volume's
// partition map table, following UDFMapICB/UDFPartitionCacheLookup: type 1
// maps translate directly against the referenced partition's start sector,
// type 2 metadata maps recurse through the metadata file's own allocation
// chain, and type 2 sparable maps fall through to the direct partition
// start since no spared packet is ever consulted (see partitionMap's doc
// comment).
func (r *Reader) resolveLBAddr(addr LBAddr) (uint32, error) {
	pref := int(addr.PartitionReferenceNumber)
	if pref >= 0 && pref < len(r.partitionMaps) {
		pm := r.partitionMaps[pref]
		switch pm.kind {
		case partitionMapType1:
			start := r.partitionStart
			if ps, ok := r.partitionStarts[pm.partitionNumber]; ok {
				start = ps
			}
			return start + addr.LogicalBlockNumber, nil
		case partitionMapType2:
			if pm.isMetadata {
				return r.resolveMetadataBlock(addr.LogicalBlockNumber)
			}
		}
	}

	// Fallback: treat as a single direct partition, matching the
	// reference implementation's behavior when no partition map entry
	// describes the reference number.
	return r.partitionStart + addr.LogicalBlockNumber, nil
}

// resolveMetadataBlock walks the metadata main file's allocation descriptor
// chain to translate a block number relative to the metadata partition into
// an absolute image block, mirroring UDFMapMetadataPartition's lookup loop.
func (r *Reader) resolveMetadataBlock(lbn uint32) (uint32, error) {
	allocs, err := r.metadataFileAllocationDescriptors()
	if err != nil {
		return 0, err
	}

	blockSize := blockSizeOf(r)

	var fileBlockBase uint32
	for _, ad := range allocs {
		if ad.Length == 0 {
			continue
		}
		extentBlocks := ad.Length / blockSize
		if ad.Length%blockSize != 0 {
			extentBlocks++
		}

		if lbn < fileBlockBase+extentBlocks {
			within := lbn - fileBlockBase
			return r.resolvePartitionBlock(ad.Partition, ad.Location+within)
		}
		fileBlockBase += extentBlocks
	}

	return 0, fmt.Errorf("%w: metadata block %d out of range", ErrMalformed, lbn)
}

// metadataFileAllocationDescriptors resolves and caches the metadata main
// file's own allocation descriptors, the chain resolveMetadataBlock walks
// for every file whose ICB lives on the metadata partition.
func (r *Reader) metadataFileAllocationDescriptors() ([]AllocationDescriptor, error) {
	if r.metadataFileAllocDescs != nil {
		return r.metadataFileAllocDescs, nil
	}
	if r.metadataFileICB == nil {
		return nil, fmt.Errorf("%w: metadata partition present but metadata file ICB not set", ErrMalformed)
	}

	entry, entryData, err := r.mapICB(*r.metadataFileICB)
	if err != nil {
		return nil, fmt.Errorf("reading metadata file entry: %w", err)
	}
	view, err := viewFileEntry(entry)
	if err != nil {
		return nil, fmt.Errorf("metadata file entry: %w", err)
	}
	allocs, err := r.allocationDescriptors(view, entryData, 0)
	if err != nil {
		return nil, fmt.Errorf("metadata file allocation descriptors: %w", err)
	}
	if len(allocs) == 0 {
		return nil, fmt.Errorf("%w: metadata file has no allocation descriptors", ErrMalformed)
	}
	r.metadataFileAllocDescs = allocs
	return allocs, nil
}

// FileBlockFile and FileBlockDir are the two file-relative-block-to-absolute
// translators named directly in SPEC_FULL.md §4.8 (UDFFileBlockFile /
// UDFFileBlockDir in the reference implementation). Both walk the same raw,
// partition-relative allocation chain; they differ only in which scalar
// they add at the end, reflecting that directory content addresses through
// the file set descriptor's partition-relative frame while regular file
// content addresses through the partition's own start sector.
//
// By default (WithLegacyBlockTranslation(true), the default) the chain walk
// reproduces UDFFileBlockRaw's documented bug: the running offset between
// allocation descriptors is never advanced, so any multi-extent file
// resolves every block through AD[0] as if the file were one contiguous
// extent starting there. WithLegacyBlockTranslation(false) switches to the
// corrected walk that actually advances the offset between extents.
func (r *Reader) FileBlockFile(f *File, fileBlock uint32) (uint32, error) {
	raw, err := r.translateFileBlock(f, fileBlock)
	if err != nil {
		return 0, err
	}
	return raw + r.partitionStart, nil
}

func (r *Reader) FileBlockDir(f *File, fileBlock uint32) (uint32, error) {
	raw, err := r.translateFileBlock(f, fileBlock)
	if err != nil {
		return 0, err
	}
	return raw + r.fsdLocation, nil
}

// translateFileBlock implements UDFFileBlockRaw: resolve fileBlock against
// f's own allocation chain and return a partition/FSD-relative raw block
// number, with neither scalar added yet.
func (r *Reader) translateFileBlock(f *File, fileBlock uint32) (uint32, error) {
	ads, err := f.rawAllocationDescriptors()
	if err != nil {
		return 0, err
	}
	if len(ads) == 0 {
		return fileBlock, nil
	}

	blockSize := blockSizeOf(r)

	if r.config.legacyBlockTranslation {
		return ads[0].Location + fileBlock, nil
	}

	var cum uint32
	chosen := 0
	found := false
	for i, ad := range ads {
		blocks := ad.Length / blockSize
		if ad.Length%blockSize != 0 {
			blocks++
		}
		if fileBlock < cum+blocks {
			chosen = i
			found = true
			break
		}
		cum += blocks
	}
	if !found {
		chosen, cum = 0, 0
	}
	return ads[chosen].Location + (fileBlock - cum), nil
}
