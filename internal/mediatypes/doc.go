// Package mediatypes classifies library files by their leading bytes.
//
// Classify reads at most PrefixSize (12) bytes and returns one of KindImage,
// KindRaw, KindVideo or KindOther. Directories are KindOther. The extension
// is consulted only when the header alone is ambiguous: ARW, DNG and NEF
// files carry a plain TIFF header, and MPEG transport streams have a one
// byte sync marker.
//
//	kind, err := mediatypes.Classify(path)
//	if err != nil {
//	    return err
//	}
//	if kind.IsMedia() {
//	    // catalog it
//	}
//
// IsImage, IsRawImage and IsVideo are convenience predicates over Classify.
// A RAW file is both an image and a RAW image.
package mediatypes
