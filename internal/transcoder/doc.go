// Package transcoder probes videos with ffprobe and writes browser-playable
// H.264/AAC MP4 copies with ffmpeg.
//
// A video needs transcoding when its codec is not one of h264, vp8, vp9 or
// av1, or its container is not mp4, m4v, webm or ogg. Both tools must be on
// PATH; Available reports whether they are.
package transcoder
