package mediatypes

// Kind is the classification of a library file.
type Kind string

const (
	// KindImage is a displayable image (JPEG, PNG, HEIC, ...).
	KindImage Kind = "image"
	// KindRaw is a camera RAW file. Every RAW file is also an image.
	KindRaw Kind = "raw"
	// KindVideo is a video container.
	KindVideo Kind = "video"
	// KindOther is anything the scanner ignores.
	KindOther Kind = "other"
)

// IsImage reports whether k is a standard or RAW image.
func (k Kind) IsImage() bool {
	return k == KindImage || k == KindRaw
}

// IsMedia reports whether the scanner catalogs files of this kind.
func (k Kind) IsMedia() bool {
	return k.IsImage() || k == KindVideo
}

// tiffRawExtensions are RAW formats that share the plain TIFF header and can
// only be told apart by extension.
var tiffRawExtensions = map[string]bool{
	".arw": true,
	".dng": true,
	".nef": true,
	".nrw": true,
	".srw": true,
	".pef": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",
	".avif": "image/avif",

	".cr2": "image/x-canon-cr2",
	".crw": "image/x-canon-crw",
	".arw": "image/x-sony-arw",
	".dng": "image/x-adobe-dng",
	".nef": "image/x-nikon-nef",
	".orf": "image/x-olympus-orf",
	".rw2": "image/x-panasonic-rw2",
	".raf": "image/x-fuji-raf",

	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",
	".mts":  "video/mp2t",
}

// GetMimeType returns the MIME type for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}
