// Package media decodes, rotates, resizes and encodes the images the scanner
// derives from library files.
//
// Decoding goes through imaging (with the x/image decoders registered for
// WebP, TIFF and BMP). Thumbnails use libvips when InitVips has been called
// and the source actually needs shrinking. Formats without a Go decoder
// (HEIC, AVIF) and video frames are decoded through ffmpeg.
//
// All JPEG writes go to a temp file that is renamed into place.
package media
