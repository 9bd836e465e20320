package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os/exec"

	"photo-library/internal/logging"
)

// DecodeWithFFmpeg decodes the first frame of path as a PNG through ffmpeg.
// It covers still formats without a Go decoder (HEIC, AVIF).
func DecodeWithFFmpeg(ctx context.Context, path string) (image.Image, error) {
	return ffmpegFrame(ctx, path, "")
}

// ExtractVideoFrame grabs the frame at one second, falling back to the
// first frame for clips shorter than that.
func ExtractVideoFrame(ctx context.Context, path string) (image.Image, error) {
	img, err := ffmpegFrame(ctx, path, "00:00:01")
	if err == nil {
		return img, nil
	}

	logging.Debug("ffmpeg frame at 1s failed for %s: %v, using first frame", path, err)
	return ffmpegFrame(ctx, path, "")
}

func ffmpegFrame(ctx context.Context, path, seek string) (image.Image, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	args := []string{"-hide_banner", "-loglevel", "error"}
	if seek != "" {
		args = append(args, "-ss", seek)
	}
	args = append(args,
		"-i", path,
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output for %s", path)
	}

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ffmpeg output: %w", err)
	}
	return img, nil
}
