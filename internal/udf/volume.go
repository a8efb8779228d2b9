package udf

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// open walks the volume structures once, end to end: the Volume
// Recognition Sequence, the anchor pointer, the main (and, on failure, a
// retried main) volume descriptor sequence, the file set descriptor, and
// finally the root directory's ICB. This is the combined effect of
// UDFOpen/DVDOpen in the reference implementation, run eagerly so that by
// the time NewReader returns, FindFile and ScanDir have everything they
// need.
func (r *Reader) open() error {
	if err := r.verifyVolume(); err != nil {
		return fmt.Errorf("not a valid UDF volume: %w", err)
	}

	anchor, err := r.findAnchorVolumeDescriptor()
	if err != nil {
		return fmt.Errorf("finding anchor volume descriptor: %w", err)
	}

	// UDFFindPartition in the reference implementation reads the main
	// sequence and, if that pass fails to locate a usable partition
	// descriptor, retries from the main sequence a second time rather
	// than falling back to the reserve sequence. SPEC_FULL.md §9
	// preserves that quirk rather than "fixing" it into a proper
	// reserve-sequence fallback.
	err = r.readVolumeDescriptorSequence(anchor.MainVolumeDescriptorSequenceExtent)
	if err != nil || (r.partitionStart == 0 && len(r.partitionMaps) == 0) {
		err = r.readVolumeDescriptorSequence(anchor.MainVolumeDescriptorSequenceExtent)
	}
	if err != nil {
		return fmt.Errorf("reading volume descriptor sequence: %w", err)
	}

	if r.fileSetLocation == 0 {
		return fmt.Errorf("%w: file set location not determined", ErrMalformed)
	}

	fsdBlock, err := r.resolvePartitionBlock(0, r.fileSetLocation)
	if err != nil {
		return fmt.Errorf("resolving file set descriptor location: %w", err)
	}
	data, err := r.readBlockCached(fsdBlock)
	if err != nil {
		return fmt.Errorf("reading file set descriptor: %w", err)
	}
	var fsd FileSetDescriptor
	if err := decodeFixed(data, &fsd); err != nil {
		return fmt.Errorf("decoding file set descriptor: %w", err)
	}
	if fsd.DescriptorTag.TagIdentifier != TagFileSet {
		return fmt.Errorf("%w: file set descriptor tag %d at block %d (expected %d)",
			ErrMalformed, fsd.DescriptorTag.TagIdentifier, fsdBlock, TagFileSet)
	}
	r.fileSetDesc = &fsd
	r.fsdLocation = fsdBlock
	r.rootICB = fsd.RootDirectoryICB

	r.log().V(1).Info("file set descriptor resolved", "block", fsdBlock, "rootICB", fsd.RootDirectoryICB)

	root, err := r.FindFile("/")
	if err != nil {
		return fmt.Errorf("resolving root directory: %w", err)
	}
	if err := r.checkRootSanity(root); err != nil {
		return err
	}
	r.rootDirectory = root

	return nil
}

// checkRootSanity enforces SPEC_FULL.md §4.7's Open invariant: the root
// must be a file-type-4 entity whose first allocation descriptor
// references partition 0, matching the reference implementation's
// "Root dir should be dir" / single-partition assumption.
func (r *Reader) checkRootSanity(root *File) error {
	if !root.IsDirectory() {
		return fmt.Errorf("%w: root ICB is not a directory", ErrMalformed)
	}
	ads, err := root.rawAllocationDescriptors()
	if err != nil {
		return fmt.Errorf("resolving root allocation descriptors: %w", err)
	}
	if len(ads) > 0 && ads[0].Partition != 0 {
		return fmt.Errorf("%w: root AD_chain[0].Partition == %d, want 0", ErrMalformed, ads[0].Partition)
	}
	return nil
}

// verifyVolume checks for the Volume Recognition Sequence starting at
// sector 16, following the BEA01/NSR0x/TEA01 walk in UDFVerifyVolume.
func (r *Reader) verifyVolume() error {
	foundNSR := false
	var descriptors []string

vrs:
	for i := uint32(0); i < 16; i++ {
		data, err := r.readBlockCached(VRSOffset/SectorSize + i)
		if err != nil {
			break
		}
		var vrd VolumeRecognitionDescriptor
		if err := decodeFixed(data, &vrd); err != nil {
			break
		}
		identifier := strings.TrimRight(string(vrd.StandardIdentifier[:]), "\x00")
		descriptors = append(descriptors, identifier)
		r.log().V(2).Info("volume recognition sequence entry", "block", VRSOffset/SectorSize+i, "identifier", identifier)

		switch identifier {
		case StandardIDBEA01:
			continue
		case StandardIDNSR02, StandardIDNSR03:
			foundNSR = true
		case StandardIDTEA01, "":
			break vrs
		default:
			if !foundNSR {
				return fmt.Errorf("%w: NSR descriptor not found in VRS, saw %v", ErrNotUDF, descriptors)
			}
			break vrs
		}
	}

	if !foundNSR {
		return fmt.Errorf("%w: NSR descriptor not found, saw %v", ErrNotUDF, descriptors)
	}
	return nil
}

// findAnchorVolumeDescriptor locates the Anchor Volume Descriptor Pointer,
// trying the standard locations in the order UDFFindAVDP checks them:
// sector 256, sector 512, and (since only the first usually matters on a
// well-formed disc) the two locations near the end of the image.
func (r *Reader) findAnchorVolumeDescriptor() (*AnchorVolumeDescriptorPointer, error) {
	totalBlocks, err := r.source.TotalBlocks()
	if err != nil {
		return nil, err
	}

	locations := []uint32{256, 512}
	if totalBlocks > 256 {
		locations = append(locations, totalBlocks-256)
	}
	if totalBlocks > 0 {
		locations = append(locations, totalBlocks-1)
	}

	for _, block := range locations {
		if block >= totalBlocks {
			continue
		}
		r.log().V(1).Info("trying anchor volume descriptor location", "block", block)
		data, err := r.readBlockCached(block)
		if err != nil {
			r.log().V(2).Info("anchor candidate unreadable", "block", block, "error", err)
			continue
		}
		tag, err := decodeTag(data)
		if err != nil || tag.TagIdentifier != TagAnchorVolume {
			r.log().V(2).Info("anchor candidate is not an AVDP", "block", block)
			continue
		}
		var anchor AnchorVolumeDescriptorPointer
		if err := decodeFixed(data, &anchor); err != nil {
			continue
		}
		r.log().V(1).Info("anchor volume descriptor found", "block", block)
		return &anchor, nil
	}

	return nil, ErrAnchorNotFound
}

// readVolumeDescriptorSequence walks one block per iteration across extent,
// dispatching on tag identifier, mirroring UDFScanDir's sibling loop over
// the main/reserve volume descriptor sequence.
func (r *Reader) readVolumeDescriptorSequence(extent ExtentAD) error {
	if extent.Length == 0 {
		return fmt.Errorf("%w: empty volume descriptor sequence extent", ErrMalformed)
	}
	blocks := extent.Length / SectorSize
	if extent.Length%SectorSize != 0 {
		blocks++
	}

	for i := uint32(0); i < blocks; i++ {
		data, err := r.readBlockCached(extent.Location + i)
		if err != nil {
			return err
		}
		tag, err := decodeTag(data)
		if err != nil {
			continue
		}

		switch tag.TagIdentifier {
		case TagPrimaryVolume:
			var pvd PrimaryVolumeDescriptor
			if err := decodeFixed(data, &pvd); err != nil {
				return err
			}
			r.pvd = &pvd
			r.volumeLabel = decodeDString(pvd.VolumeIdentifier[:])

		case TagPartition:
			var pd PartitionDescriptor
			if err := decodeFixed(data, &pd); err != nil {
				return err
			}
			r.partitionStarts[pd.PartitionNumber] = pd.PartitionStartingLocation
			if r.partitionStart == 0 {
				r.partitionStart = pd.PartitionStartingLocation
				r.partitionSize = pd.PartitionLength
			}
			r.log().V(1).Info("partition descriptor found", "number", pd.PartitionNumber,
				"start", pd.PartitionStartingLocation, "length", pd.PartitionLength)

		case TagLogicalVolume:
			var lvd LogicalVolumeDescriptor
			if err := decodeFixed(data, &lvd); err != nil {
				return err
			}
			if lvd.LogicalBlockSize != 0 {
				r.blockSize = lvd.LogicalBlockSize
			}
			r.log().V(1).Info("logical volume descriptor found", "blockSize", lvd.LogicalBlockSize,
				"partitionMaps", lvd.NumberOfPartitionMaps)
			if lvd.NumberOfPartitionMaps > 0 && lvd.MapTableLength > 0 {
				tableStart := binary.Size(lvd)
				tableEnd := tableStart + int(lvd.MapTableLength)
				if tableEnd > len(data) {
					return fmt.Errorf("%w: partition map table out of range", ErrMalformed)
				}
				maps, err := parsePartitionMaps(data[tableStart:tableEnd], lvd.NumberOfPartitionMaps)
				if err != nil {
					return fmt.Errorf("parsing partition maps: %w", err)
				}
				r.partitionMaps = maps
				for i, pm := range maps {
					r.log().V(2).Info("partition map decoded", "index", i, "kind", pm.kind,
						"isMetadata", pm.isMetadata, "isSparable", pm.isSparable)
					if pm.isSparable {
						for _, loc := range pm.sparingTableLocations {
							r.log().V(2).Info("sparing table location", "partitionMap", i, "location", loc)
						}
					}
				}
				if err := r.bootstrapMetadataPartition(); err != nil {
					return err
				}
			}

			fileSetLocation := binary.LittleEndian.Uint32(lvd.LogicalVolumeContentsUse[4:8])
			if fileSetLocation == 0 {
				// Empty contents-use field: fall back to the conventional
				// BD-ROM layout, which places the file set descriptor at
				// block 32 of the partition.
				fileSetLocation = 32
			}
			r.fileSetLocation = fileSetLocation

		case TagTerminating:
			return nil
		}
	}

	return nil
}

// bootstrapMetadataPartition locates the metadata main file's ICB out of
// the just-parsed partition map table and resolves its allocation
// descriptor chain immediately, the way UDFLogVolume eagerly opens the
// metadata file entry rather than deferring it to first use.
func (r *Reader) bootstrapMetadataPartition() error {
	r.metadataFileICB = nil
	r.metadataFileAllocDescs = nil

	for _, pm := range r.partitionMaps {
		if pm.kind == partitionMapType2 && pm.isMetadata {
			r.log().V(1).Info("metadata partition map found",
				"mainLoc", pm.metadataICBLBN, "mirrorLoc", pm.metadataMirrorLBN, "bitmapLoc", pm.metadataBitmapLBN)
			icb := LongAD{ExtentLocation: LBAddr{
				LogicalBlockNumber:       pm.metadataICBLBN,
				PartitionReferenceNumber: 0,
			}}
			r.metadataFileICB = &icb
			break
		}
	}

	if r.metadataFileICB == nil {
		return nil
	}
	allocs, err := r.metadataFileAllocationDescriptors()
	if err != nil {
		return err
	}
	r.log().V(2).Info("metadata main file resolved", "extents", len(allocs))
	return nil
}
