package manifest

// ParseLegacy reads manifests from producers that emit 4-value diff entries
// [sourceTile, w, h, destTile]. Those entries carry no source image; they
// copy from the image shown by the closest preceding key frame, or image 0
// when no key frame precedes the diff. The result is the canonical model, so
// the reconstructor never sees the legacy layout.
//
// The two layouts are not interchangeable: a 5-value entry in a legacy
// document is rejected, as is a 4-value entry in a canonical one.
func ParseLegacy(raw []byte) (*Manifest, error) {
	return decode(raw, legacyEntry)
}

func legacyEntry(frame, entry int, v []int, lastKey int) (TileCopy, error) {
	if len(v) != 4 {
		return TileCopy{}, newError(ErrMalformedManifest, frame, entry, "diffs",
			"expected 4 values [sourceTile, w, h, destTile], got %d", len(v))
	}
	return TileCopy{SourceImage: lastKey, SourceTile: v[0], Width: v[1], Height: v[2], DestTile: v[3]}, nil
}
